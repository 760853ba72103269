package types

import (
	"encoding/json"
	"fmt"
)

// DecodeError marks an inbound frame the client could not turn into a
// Snapshot: either not valid JSON, or missing a required top-level field.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode snapshot: %s: %v", e.Reason, e.Err)
	}
	return "decode snapshot: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

// DecodeSnapshot parses one raw feed frame. The top-level fields signals,
// emergency and detections must be present; accident is optional and
// unknown extra fields are ignored. Missing lane entries inside the maps
// are fine here — defaulting happens at the view-model layer.
func DecodeSnapshot(raw []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, &DecodeError{Reason: "malformed frame", Err: err}
	}
	if snap.Signals == nil {
		return nil, &DecodeError{Reason: `missing "signals"`}
	}
	if snap.Emergency == nil {
		return nil, &DecodeError{Reason: `missing "emergency"`}
	}
	if snap.Detections == nil {
		return nil, &DecodeError{Reason: `missing "detections"`}
	}
	return &snap, nil
}
