package websocket

import (
	"context"
	"log/slog"

	"fadapulse/pkg/contracts/events"
)

// Bridge mirrors pipeline session events onto the hub so dashboard clients
// see every session, not only the one they requested.
type Bridge struct {
	hub    *Hub
	logger *slog.Logger
}

// NewBridge creates a bridge publishing into hub.
func NewBridge(hub *Hub, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		hub:    hub,
		logger: logger.With(slog.String("component", "websocket.bridge")),
	}
}

// Mirror forwards every event from ch to the hub until the channel closes or
// ctx ends. Call it on its own goroutine per session.
func (b *Bridge) Mirror(ctx context.Context, sessionID string, ch <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				b.logger.Debug("session stream closed",
					slog.String("session_id", sessionID))
				return
			}
			b.hub.Broadcast(TypeSessionEvent, ev)
		}
	}
}
