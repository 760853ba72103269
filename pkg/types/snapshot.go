package types

// Feed snapshot (server -> dashboard), pushed on /ws/emergency:
//   signals: { "lane<N>": "RED" | "YELLOW" | "GREEN", ... }
//   emergency: { is_active: bool, lane_id: number | null }
//   accident:  { is_active: bool, lane_id: number | null } // optional
//   detections: { "lane<N>": [ { class: string, confidence: number }, ... ], ... }
//
// Every frame is the complete current state; there are no deltas.
// lane_id is null whenever is_active is false. Missing lane entries mean
// "no data", which the dashboard renders as RED with no detections.
