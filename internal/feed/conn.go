// Package feed owns a single physical push connection to the controller
// server. A Conn dials once, surfaces everything that happens to it as an
// ordered stream of events, and is done. Retrying is the caller's job.
package feed

import (
	"context"
	"sync"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// Event is delivered on Conn.Events in the order things happened on the
// wire: at most one Opened, then any number of Frame/ReadError, then at
// most one Closed. No Frame follows a Closed.
type Event interface{ isFeedEvent() }

// Opened fires once the dial succeeded.
type Opened struct{}

// Frame carries one inbound message, unmodified. Decoding happens a layer
// up so the connection stays format-agnostic.
type Frame struct{ Data []byte }

// ReadError is informational; it does not itself end the connection.
type ReadError struct{ Err error }

// Closed fires once when the connection is finished, whether the dial
// failed, the peer went away, or the transport errored. Err is nil on a
// clean close.
type Closed struct{ Err error }

func (Opened) isFeedEvent()    {}
func (Frame) isFeedEvent()     {}
func (ReadError) isFeedEvent() {}
func (Closed) isFeedEvent()    {}

type Conn struct {
	url    string
	events chan Event
	log    *zap.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// Open starts dialing url and returns immediately; progress is reported
// on Events. The connection lives until the peer closes it, the transport
// fails, or Close is called.
func Open(parent context.Context, url string, log *zap.Logger) *Conn {
	ctx, cancel := context.WithCancel(parent)
	c := &Conn{
		url:    url,
		events: make(chan Event, 16),
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
	go c.run()
	return c
}

// Events yields the connection's lifecycle in order. The channel is closed
// after the final event; after a local Close the stream may simply end
// without a Closed, since the owner asked for the teardown itself.
func (c *Conn) Events() <-chan Event { return c.events }

// Close tears the connection down. Idempotent; safe before the dial has
// finished or after the connection already died.
func (c *Conn) Close() { c.closeOnce.Do(c.cancel) }

func (c *Conn) run() {
	defer close(c.events)

	c.log.Debug("dialing feed", zap.String("url", c.url))
	ws, _, err := websocket.Dial(c.ctx, c.url, nil)
	if err != nil {
		c.emit(Closed{Err: err})
		return
	}
	defer ws.Close(websocket.StatusNormalClosure, "bye")

	c.emit(Opened{})

	for {
		_, data, err := ws.Read(c.ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				c.emit(Closed{})
			default:
				if c.ctx.Err() == nil {
					c.emit(ReadError{Err: err})
				}
				c.emit(Closed{Err: err})
			}
			return
		}
		c.emit(Frame{Data: data})
	}
}

// emit delivers ev in order, unless the connection was closed locally, in
// which case pending events are discarded so run never blocks on an
// abandoned consumer.
func (c *Conn) emit(ev Event) {
	select {
	case c.events <- ev:
	case <-c.ctx.Done():
	}
}
