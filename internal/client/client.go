// Package client keeps one logical feed subscription alive forever. It
// wraps feed.Conn with a retry state machine, caches the latest decoded
// snapshot, and fans both out to subscribers. Consumers never touch the
// socket and never see a transport error, only status transitions.
package client

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tmorst/signalboard/internal/feed"
	"github.com/tmorst/signalboard/internal/types"
)

type Status string

const (
	StatusConnecting   Status = "CONNECTING"
	StatusOpen         Status = "OPEN"
	StatusReconnecting Status = "RECONNECTING"
)

// DefaultReconnectDelay is how long the client waits before redialing.
const DefaultReconnectDelay = 3 * time.Second

// Update is what subscribers receive on every snapshot or status change.
// Snapshot is nil until the first good frame and is retained across
// disconnects afterwards.
type Update struct {
	Snapshot *types.Snapshot
	Status   Status
}

// Conn is the slice of feed.Conn the client needs; tests substitute
// scripted connections through Dial.
type Conn interface {
	Events() <-chan feed.Event
	Close()
}

// Dial opens one connection attempt. The default dials a real websocket.
type Dial func(ctx context.Context, url string) Conn

type Msg interface{ isClientMsg() }

// Subscribe registers an outbox. The current state is delivered to it
// immediately, so a late subscriber is never behind.
type Subscribe struct {
	ID     string
	Outbox chan Update
}

type Unsubscribe struct{ ID string }

// GetState reflects internal state without data races; used by the HTTP
// layer and tests.
type GetState struct{ Reply chan View }

type Shutdown struct{}

func (Subscribe) isClientMsg()   {}
func (Unsubscribe) isClientMsg() {}
func (GetState) isClientMsg()    {}
func (Shutdown) isClientMsg()    {}

type connEvent struct {
	gen int
	ev  feed.Event
}

func (connEvent) isClientMsg() {}

type View struct {
	Status         Status
	Snapshot       *types.Snapshot
	NumSubscribers int
	Dials          int
}

type Options struct {
	ReconnectDelay time.Duration // 0 means DefaultReconnectDelay
	Dial           Dial          // nil means feed.Open
}

type Client struct {
	url    string
	delay  time.Duration
	dial   Dial
	inbox  chan Msg
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// New starts the client and immediately opens the first connection.
func New(parent context.Context, url string, log *zap.Logger, opts Options) *Client {
	ctx, cancel := context.WithCancel(parent)
	c := &Client{
		url:    url,
		delay:  opts.ReconnectDelay,
		dial:   opts.Dial,
		inbox:  make(chan Msg, 64),
		log:    log.Named("feedclient"),
		ctx:    ctx,
		cancel: cancel,
	}
	if c.delay <= 0 {
		c.delay = DefaultReconnectDelay
	}
	if c.dial == nil {
		c.dial = func(ctx context.Context, url string) Conn {
			return feed.Open(ctx, url, log.Named("feed"))
		}
	}
	go c.loop()
	return c
}

func (c *Client) Inbox() chan<- Msg { return c.inbox }

// Close shuts the client down: the live connection is torn down and any
// pending reconnect is cancelled. Safe to call more than once.
func (c *Client) Close() {
	select {
	case c.inbox <- Shutdown{}:
	case <-c.ctx.Done():
	}
}

// State returns a race-free copy of the client's current state.
func (c *Client) State() View {
	reply := make(chan View, 1)
	select {
	case c.inbox <- GetState{Reply: reply}:
	case <-c.ctx.Done():
		return View{}
	}
	select {
	case v := <-reply:
		return v
	case <-c.ctx.Done():
		return View{}
	}
}

func (c *Client) loop() {
	var (
		status   Status
		snapshot *types.Snapshot
		subs     = make(map[string]chan Update)
		conn     Conn
		gen      int
		dials    int
		timer    *time.Timer
		timerC   <-chan time.Time
	)

	broadcast := func() {
		for id, out := range subs {
			select {
			case out <- Update{Snapshot: snapshot, Status: status}:
			default:
				// Subscriber is slow/full - drop them.
				close(out)
				delete(subs, id)
			}
		}
	}

	connect := func() {
		gen++
		dials++
		status = StatusConnecting
		conn = c.dial(c.ctx, c.url)
		go c.forward(gen, conn)
	}

	shutdown := func() {
		if timer != nil {
			timer.Stop()
		}
		if conn != nil {
			conn.Close()
		}
		for id, out := range subs {
			close(out)
			delete(subs, id)
		}
		c.cancel()
	}

	connect()

	for {
		select {
		case <-c.ctx.Done():
			shutdown()
			return

		case <-timerC:
			timer, timerC = nil, nil
			connect()
			broadcast()

		case m := <-c.inbox:
			switch msg := m.(type) {
			case Subscribe:
				subs[msg.ID] = msg.Outbox
				msg.Outbox <- Update{Snapshot: snapshot, Status: status}

			case Unsubscribe:
				delete(subs, msg.ID)

			case GetState:
				msg.Reply <- View{
					Status:         status,
					Snapshot:       snapshot,
					NumSubscribers: len(subs),
					Dials:          dials,
				}

			case Shutdown:
				shutdown()
				return

			case connEvent:
				if msg.gen != gen {
					break // superseded connection, ignore
				}
				switch ev := msg.ev.(type) {
				case feed.Opened:
					status = StatusOpen
					c.log.Info("feed connected", zap.String("url", c.url))
					broadcast()

				case feed.Frame:
					snap, err := types.DecodeSnapshot(ev.Data)
					if err != nil {
						// Malformed frame: keep the last good snapshot,
						// keep the connection.
						c.log.Warn("dropping malformed frame", zap.Error(err))
						break
					}
					snapshot = snap
					broadcast()

				case feed.ReadError:
					c.log.Warn("feed read error", zap.Error(ev.Err))

				case feed.Closed:
					if ev.Err != nil {
						c.log.Warn("feed connection lost", zap.Error(ev.Err))
					} else {
						c.log.Info("feed connection closed by server")
					}
					conn.Close()
					status = StatusReconnecting
					timer = time.NewTimer(c.delay)
					timerC = timer.C
					broadcast()
				}
			}
		}
	}
}

// forward tags a connection's events with its generation and funnels them
// into the loop. Events from a superseded generation are discarded there,
// so a late close from a stale connection can never clobber newer state.
func (c *Client) forward(gen int, conn Conn) {
	for ev := range conn.Events() {
		select {
		case c.inbox <- connEvent{gen: gen, ev: ev}:
		case <-c.ctx.Done():
			return
		}
	}
}
