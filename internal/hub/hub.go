// Package hub fans the controller's state out to every connected
// dashboard. It polls the controller at the push interval and broadcasts
// the encoded snapshot to each subscriber outbox; slow subscribers are
// dropped rather than allowed to stall the feed.
package hub

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/tmorst/signalboard/internal/types"
)

// Source is anything that can produce the current wire snapshot; in
// production it is the controller.
type Source interface {
	Snapshot() types.Snapshot
}

type Msg interface{ isHubMsg() }

type Join struct {
	ID     string
	Outbox chan []byte // encoded frames for this subscriber
}

type Leave struct{ ID string }

type GetState struct {
	Reply chan View
}

type Shutdown struct{}

func (Join) isHubMsg()     {}
func (Leave) isHubMsg()    {}
func (GetState) isHubMsg() {}
func (Shutdown) isHubMsg() {}

type View struct {
	NumClients int
}

type Hub struct {
	inbox    chan Msg
	source   Source
	interval time.Duration
	clients  map[string]chan []byte
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewHub(parent context.Context, source Source, interval time.Duration, log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:    make(chan Msg, 64),
		source:   source,
		interval: interval,
		clients:  make(map[string]chan []byte),
		log:      log.Named("hub"),
		ctx:      ctx,
		cancel:   cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- Msg { return h.inbox }

func (h *Hub) loop() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case <-ticker.C:
			if len(h.clients) == 0 {
				break
			}
			frame, err := json.Marshal(h.source.Snapshot())
			if err != nil {
				h.log.Error("encode snapshot", zap.Error(err))
				break
			}
			h.broadcast(frame)

		case m := <-h.inbox:
			switch msg := m.(type) {
			case Join:
				h.clients[msg.ID] = msg.Outbox
				// First frame right away so a new dashboard is not
				// blank until the next tick.
				if frame, err := json.Marshal(h.source.Snapshot()); err == nil {
					msg.Outbox <- frame
				}
				h.log.Info("client connected", zap.String("id", msg.ID), zap.Int("active", len(h.clients)))

			case Leave:
				if ch, ok := h.clients[msg.ID]; ok {
					close(ch) // lets the connection's writer goroutine exit
					delete(h.clients, msg.ID)
				}
				h.log.Info("client disconnected", zap.String("id", msg.ID), zap.Int("active", len(h.clients)))

			case GetState:
				msg.Reply <- View{NumClients: len(h.clients)}

			case Shutdown:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) shutdown() {
	for id, ch := range h.clients {
		close(ch)
		delete(h.clients, id)
	}
	h.cancel()
}

func (h *Hub) broadcast(frame []byte) {
	for id, ch := range h.clients {
		select {
		case ch <- frame:
			// ok
		default:
			// Client is slow/full - drop them.
			close(ch)
			delete(h.clients, id)
		}
	}
}
