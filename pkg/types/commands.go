package types

// Dashboard -> controller server command endpoints (fire-and-forget; the
// responses never feed back into snapshot state):
//
// POST /signal/{laneID}/force
//   -> { status: "success", message: string }
//
// POST /signal/{laneID}/simulate_emergency?active=<bool>
//   -> { status: "success", emergency: bool }
//
// POST /upload/{laneID}  (multipart, field "file")
//   -> { status: "success", file_path: string, lanes_ready: number, all_ready: bool }
//
// GET /video/{laneID}?t=<cacheBuster>
//   -> raw media bytes; t changes after any completed command
//
// DELETE /video/{laneID}
//   -> { status: "success", message: string }
//
// DELETE /videos
//   -> { status: "success", message: string }
//
// GET /status
//   -> { lanes_ready: number, lanes_with_videos: number[], all_ready: bool }
