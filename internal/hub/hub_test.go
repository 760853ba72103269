package hub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tmorst/signalboard/internal/types"
)

type stubSource struct{}

func (stubSource) Snapshot() types.Snapshot {
	return types.Snapshot{
		Signals:    map[string]types.SignalState{"lane1": types.SignalGreen},
		Emergency:  &types.Alert{},
		Detections: map[string][]types.Detection{},
	}
}

// recvFrame receives one encoded frame with a timeout so tests never hang.
func recvFrame(t *testing.T, ch <-chan []byte, within time.Duration) []byte {
	t.Helper()
	select {
	case frame, ok := <-ch:
		if !ok {
			t.Fatalf("outbox closed unexpectedly")
		}
		return frame
	case <-time.After(within):
		t.Fatalf("timed out waiting for frame")
		return nil // unreachable
	}
}

func recvView(t *testing.T, ch <-chan View, within time.Duration) View {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(within):
		t.Fatalf("timed out waiting for view")
		return View{} // unreachable
	}
}

func TestHub_JoinGetsImmediateDecodableFrame(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := NewHub(ctx, stubSource{}, 10*time.Millisecond, zap.NewNop())

	out := make(chan []byte, 4)
	h.Inbox() <- Join{ID: "c1", Outbox: out}

	frame := recvFrame(t, out, time.Second)
	snap, err := types.DecodeSnapshot(frame)
	require.NoError(t, err)
	assert.Equal(t, types.SignalGreen, snap.Signals["lane1"])

	// And ticked frames keep coming.
	_ = recvFrame(t, out, time.Second)
}

func TestHub_SlowClientIsDropped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := NewHub(ctx, stubSource{}, 5*time.Millisecond, zap.NewNop())

	out := make(chan []byte, 1) // room for the join frame only, never drained
	h.Inbox() <- Join{ID: "slow", Outbox: out}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		reply := make(chan View, 1)
		h.Inbox() <- GetState{Reply: reply}
		if recvView(t, reply, time.Second).NumClients == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("slow client was never dropped")
}

func TestHub_LeaveStopsDelivery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := NewHub(ctx, stubSource{}, 5*time.Millisecond, zap.NewNop())

	out := make(chan []byte, 64)
	h.Inbox() <- Join{ID: "c1", Outbox: out}
	_ = recvFrame(t, out, time.Second)

	h.Inbox() <- Leave{ID: "c1"}

	reply := make(chan View, 1)
	h.Inbox() <- GetState{Reply: reply}
	assert.Equal(t, 0, recvView(t, reply, time.Second).NumClients)
}

func TestHub_ShutdownClosesOutboxes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := NewHub(ctx, stubSource{}, 5*time.Millisecond, zap.NewNop())

	out := make(chan []byte, 64)
	h.Inbox() <- Join{ID: "c1", Outbox: out}
	_ = recvFrame(t, out, time.Second)

	h.Inbox() <- Shutdown{}

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-out:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("outbox never closed after shutdown")
		}
	}
}
