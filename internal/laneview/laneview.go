// Package laneview turns a raw feed snapshot into the per-lane records the
// rendering layer consumes. Everything here is pure: no state, no defaults
// baked into the decoder, just fail-safe mapping at the boundary.
package laneview

import "github.com/tmorst/signalboard/internal/types"

// Detection mirrors types.Detection with view-model field naming.
type Detection struct {
	ClassName  string  `json:"className"`
	Confidence float64 `json:"confidence"`
}

type LaneView struct {
	LaneID      int               `json:"laneId"`
	Signal      types.SignalState `json:"signalState"`
	IsEmergency bool              `json:"isEmergency"`
	Detections  []Detection       `json:"detections"`
}

// Alert is the banner-level view of an emergency or accident flag.
type Alert struct {
	Active bool `json:"active"`
	LaneID int  `json:"laneId,omitempty"`
}

// Banner is the global header state shown above the lane grid.
type Banner struct {
	Emergency Alert `json:"emergency"`
	Accident  Alert `json:"accident"`
}

// Derive maps a snapshot onto the configured lanes, in the order given.
// A nil snapshot, a missing lane key, or an unrecognized signal value all
// degrade to the safe default: RED, no emergency, no detections. An
// unknown lane is treated as stopped, never as proceeding.
func Derive(snap *types.Snapshot, laneIDs []int) []LaneView {
	views := make([]LaneView, 0, len(laneIDs))
	emergencyLane, emergencyOK := 0, false
	if snap != nil {
		emergencyLane, emergencyOK = snap.Emergency.ActiveLane()
	}

	for _, id := range laneIDs {
		v := LaneView{
			LaneID:     id,
			Signal:     types.SignalRed,
			Detections: []Detection{},
		}
		if snap != nil {
			key := types.LaneKey(id)
			if s, ok := snap.Signals[key]; ok && s.Valid() {
				v.Signal = s
			}
			v.IsEmergency = emergencyOK && emergencyLane == id
			for _, d := range snap.Detections[key] {
				v.Detections = append(v.Detections, Detection{ClassName: d.Class, Confidence: d.Confidence})
			}
		}
		views = append(views, v)
	}
	return views
}

// BannerFor derives the global banner state from a snapshot. The zero
// Banner (everything inactive) is returned for a nil snapshot.
func BannerFor(snap *types.Snapshot) Banner {
	var b Banner
	if snap == nil {
		return b
	}
	if lane, ok := snap.Emergency.ActiveLane(); ok {
		b.Emergency = Alert{Active: true, LaneID: lane}
	}
	if lane, ok := snap.Accident.ActiveLane(); ok {
		b.Accident = Alert{Active: true, LaneID: lane}
	}
	return b
}
