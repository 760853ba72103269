// Package controller simulates the signal controller the dashboard talks
// to: a round-robin green cycle with yellow clearance, emergency
// pre-emption, and manual overrides. It stands in for the real roadside
// unit; the vision pipeline that feeds the real one is out of scope and
// detections are synthesized while an emergency is simulated.
package controller

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tmorst/signalboard/internal/types"
)

type Msg interface{ isControllerMsg() }

// SetEmergency flags or clears an emergency on one lane. Flagging starts
// pre-emption; clearing resumes the normal cycle from the emergency lane.
type SetEmergency struct {
	LaneID int
	Active bool
}

// ForceGreen is the manual operator override: same clearance sequence as
// pre-emption but without latching the emergency flag.
type ForceGreen struct{ LaneID int }

// GetSnapshot replies with a complete wire snapshot of the current state.
type GetSnapshot struct{ Reply chan types.Snapshot }

type Shutdown struct{}

func (SetEmergency) isControllerMsg() {}
func (ForceGreen) isControllerMsg()   {}
func (GetSnapshot) isControllerMsg()  {}
func (Shutdown) isControllerMsg()     {}

type timerFired struct{ gen int }

func (timerFired) isControllerMsg() {}

// phase says what the armed timer means.
type phase int

const (
	phaseGreen    phase = iota // current lane holds green until the cycle timer fires
	phaseClearing              // a lane is yellow; on fire it goes red and the target gets green
	phaseHold                  // emergency lane holds green, no timer armed
)

type Config struct {
	LaneIDs        []int
	GreenDuration  time.Duration
	YellowDuration time.Duration
}

type Controller struct {
	inbox chan Msg
	cfg   Config
	log   *zap.Logger

	states        map[int]types.SignalState
	greenIdx      int // index into cfg.LaneIDs of the lane holding (or about to hold) green
	phase         phase
	clearTarget   int // lane that receives green once clearance finishes
	emergencyOn   bool
	emergencyLane int
	timerGen      int

	ctx    context.Context
	cancel context.CancelFunc
}

// New starts the controller with the first configured lane green, the way
// the roadside unit boots.
func New(parent context.Context, cfg Config, log *zap.Logger) *Controller {
	ctx, cancel := context.WithCancel(parent)
	c := &Controller{
		inbox:  make(chan Msg, 64),
		cfg:    cfg,
		log:    log.Named("controller"),
		states: make(map[int]types.SignalState, len(cfg.LaneIDs)),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, id := range cfg.LaneIDs {
		c.states[id] = types.SignalRed
	}
	c.states[cfg.LaneIDs[0]] = types.SignalGreen
	c.greenIdx = 0
	c.phase = phaseGreen
	go c.loop()
	return c
}

func (c *Controller) Inbox() chan<- Msg { return c.inbox }

// Snapshot fetches a race-free copy of the current wire state.
func (c *Controller) Snapshot() types.Snapshot {
	reply := make(chan types.Snapshot, 1)
	select {
	case c.inbox <- GetSnapshot{Reply: reply}:
	case <-c.ctx.Done():
		return types.Snapshot{}
	}
	select {
	case snap := <-reply:
		return snap
	case <-c.ctx.Done():
		return types.Snapshot{}
	}
}

func (c *Controller) loop() {
	c.arm(c.cfg.GreenDuration)

	for {
		select {
		case <-c.ctx.Done():
			return

		case m := <-c.inbox:
			switch msg := m.(type) {
			case timerFired:
				if msg.gen != c.timerGen {
					break // a newer override re-armed the timer
				}
				c.onTimer()

			case SetEmergency:
				c.onSetEmergency(msg.LaneID, msg.Active)

			case ForceGreen:
				if !c.hasLane(msg.LaneID) {
					break
				}
				c.log.Info("manual green override", zap.Int("lane", msg.LaneID))
				c.grant(msg.LaneID)

			case GetSnapshot:
				msg.Reply <- c.snapshot()

			case Shutdown:
				c.cancel()
				return
			}
		}
	}
}

func (c *Controller) onTimer() {
	switch c.phase {
	case phaseGreen:
		// Green ran out: clear it via yellow, then hand green to the
		// next lane in the rotation.
		lane := c.cfg.LaneIDs[c.greenIdx]
		c.states[lane] = types.SignalYellow
		c.phase = phaseClearing
		c.clearTarget = c.cfg.LaneIDs[(c.greenIdx+1)%len(c.cfg.LaneIDs)]
		c.arm(c.cfg.YellowDuration)

	case phaseClearing:
		for id, s := range c.states {
			if s != types.SignalRed && id != c.clearTarget {
				c.states[id] = types.SignalRed
			}
		}
		c.states[c.clearTarget] = types.SignalGreen
		c.greenIdx = c.laneIndex(c.clearTarget)
		if c.emergencyOn && c.clearTarget == c.emergencyLane {
			c.phase = phaseHold
		} else {
			c.phase = phaseGreen
			c.arm(c.cfg.GreenDuration)
		}
	}
}

func (c *Controller) onSetEmergency(laneID int, active bool) {
	if !c.hasLane(laneID) {
		return
	}
	if active {
		if c.emergencyOn && c.emergencyLane == laneID {
			return
		}
		c.log.Info("emergency pre-emption", zap.Int("lane", laneID))
		c.emergencyOn = true
		c.emergencyLane = laneID
		c.grant(laneID)
		return
	}
	if !c.emergencyOn || c.emergencyLane != laneID {
		return
	}
	c.log.Info("emergency cleared", zap.Int("lane", laneID))
	c.emergencyOn = false
	c.emergencyLane = 0
	if c.phase == phaseHold {
		// The lane keeps its green for a full cycle before rotation
		// resumes.
		c.phase = phaseGreen
		c.arm(c.cfg.GreenDuration)
	}
}

// grant moves green to laneID, clearing any conflicting green through a
// yellow interval first.
func (c *Controller) grant(laneID int) {
	current := c.cfg.LaneIDs[c.greenIdx]
	if current != laneID && c.states[current] == types.SignalGreen {
		c.states[current] = types.SignalYellow
		c.phase = phaseClearing
		c.clearTarget = laneID
		c.arm(c.cfg.YellowDuration)
		return
	}
	if c.phase == phaseClearing {
		// Clearance already running; just retarget it.
		c.clearTarget = laneID
		return
	}
	// Target already green (or nothing to clear): settle immediately.
	c.states[laneID] = types.SignalGreen
	c.greenIdx = c.laneIndex(laneID)
	if c.emergencyOn && laneID == c.emergencyLane {
		c.phase = phaseHold
		c.timerGen++ // disarm any pending cycle timer
	} else {
		c.phase = phaseGreen
		c.arm(c.cfg.GreenDuration)
	}
}

func (c *Controller) arm(d time.Duration) {
	c.timerGen++
	gen := c.timerGen
	time.AfterFunc(d, func() {
		select {
		case c.inbox <- timerFired{gen: gen}:
		case <-c.ctx.Done():
		}
	})
}

func (c *Controller) snapshot() types.Snapshot {
	signals := make(map[string]types.SignalState, len(c.states))
	for id, s := range c.states {
		signals[types.LaneKey(id)] = s
	}

	detections := make(map[string][]types.Detection, len(c.cfg.LaneIDs))
	for _, id := range c.cfg.LaneIDs {
		detections[types.LaneKey(id)] = []types.Detection{}
	}

	emergency := &types.Alert{}
	if c.emergencyOn {
		lane := c.emergencyLane
		emergency.IsActive = true
		emergency.LaneID = &lane
		// Simulated emergencies carry a synthetic detection so the
		// dashboard has something to annotate.
		detections[types.LaneKey(lane)] = []types.Detection{
			{Class: "ambulance", Confidence: 0.92},
		}
	}

	return types.Snapshot{
		Signals:    signals,
		Emergency:  emergency,
		Detections: detections,
	}
}

func (c *Controller) hasLane(laneID int) bool {
	_, ok := c.states[laneID]
	return ok
}

func (c *Controller) laneIndex(laneID int) int {
	for i, id := range c.cfg.LaneIDs {
		if id == laneID {
			return i
		}
	}
	return 0
}
