package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tmorst/signalboard/internal/hub"
)

// Handler upgrades /ws/emergency requests and streams the hub's snapshot
// frames until the dashboard goes away. Clients never send anything
// meaningful; the reader loop exists only to notice the disconnect.
func Handler(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// The dashboard dev server runs on another origin.
			InsecureSkipVerify: true,
		})
		if err != nil {
			log.Warn("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan []byte, 8)
		clientID := uuid.NewString()

		h.Inbox() <- hub.Join{ID: clientID, Outbox: out}
		defer func() { h.Inbox() <- hub.Leave{ID: clientID} }()

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for frame := range out {
				ctx, cancel := context.WithTimeout(writeCtx, 3*time.Second)
				_ = conn.Write(ctx, websocket.MessageText, frame)
				cancel()
			}
		}()

		// Reader loop
		for {
			if _, _, err := conn.Read(r.Context()); err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}
			// Inbound frames are ignored; the feed is one-way.
		}
	}
}
