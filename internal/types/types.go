package types

import "strconv"

type SignalState string

const (
	SignalRed    SignalState = "RED"
	SignalYellow SignalState = "YELLOW"
	SignalGreen  SignalState = "GREEN"
)

// Valid reports whether s is one of the three known signal states. The
// decoder does not enforce this; consumers treat anything else as RED.
func (s SignalState) Valid() bool {
	switch s {
	case SignalRed, SignalYellow, SignalGreen:
		return true
	default:
		return false
	}
}

// LaneKey is the map key used for a lane inside a snapshot's sub-maps,
// e.g. LaneKey(1) == "lane1".
func LaneKey(laneID int) string {
	return "lane" + strconv.Itoa(laneID)
}

// Detection is one object-detection annotation for a lane. Confidence is
// whatever the server sent; clamping to 0..1 is a display concern.
type Detection struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
}

// Alert is the shared shape of the emergency and accident fields. LaneID
// is nil whenever IsActive is false.
type Alert struct {
	IsActive bool `json:"is_active"`
	LaneID   *int `json:"lane_id"`
}

// ActiveLane returns the lane the alert points at, if any.
func (a *Alert) ActiveLane() (int, bool) {
	if a == nil || !a.IsActive || a.LaneID == nil {
		return 0, false
	}
	return *a.LaneID, true
}

// Snapshot is one complete state update from the server. Every snapshot
// fully replaces the previous one; there are no deltas to merge.
type Snapshot struct {
	Signals    map[string]SignalState `json:"signals"`
	Emergency  *Alert                 `json:"emergency"`
	Accident   *Alert                 `json:"accident,omitempty"`
	Detections map[string][]Detection `json:"detections"`
}
