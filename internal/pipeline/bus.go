package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"fadapulse/pkg/contracts/events"
)

// ProgressBus keeps one append-only event log per session. One producer per
// session, any number of consumers; every consumer observes the full log in
// production order, including a replay when it joins late.
type ProgressBus struct {
	mu       sync.RWMutex
	sessions map[string]*sessionLog
	logger   *slog.Logger
}

type sessionLog struct {
	mu     sync.Mutex
	cond   *sync.Cond
	events []events.Event
	closed bool
}

func newSessionLog() *sessionLog {
	l := &sessionLog{}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// NewProgressBus creates an empty bus.
func NewProgressBus(logger *slog.Logger) *ProgressBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProgressBus{
		sessions: make(map[string]*sessionLog),
		logger:   logger,
	}
}

// Open creates the event log for a session. Must precede Publish and
// Subscribe for that session.
func (b *ProgressBus) Open(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.sessions[sessionID]; !ok {
		b.sessions[sessionID] = newSessionLog()
	}
}

// Publish appends an event to the session log, assigning its sequence
// number. Publishing a terminal kind closes the log; subsequent events are
// dropped. Publish never blocks on consumers.
func (b *ProgressBus) Publish(sessionID string, ev events.Event) error {
	b.mu.RLock()
	log, ok := b.sessions[sessionID]
	b.mu.RUnlock()
	if !ok {
		return ErrSessionNotFound
	}

	log.mu.Lock()
	defer log.mu.Unlock()

	if log.closed {
		b.logger.Warn("event published after terminal, dropped",
			"session_id", sessionID,
			"kind", string(ev.Kind),
		)
		return nil
	}

	ev.SessionID = sessionID
	ev.Sequence = int64(len(log.events)) + 1
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	log.events = append(log.events, ev)
	if ev.Kind.Terminal() {
		log.closed = true
	}
	log.cond.Broadcast()
	return nil
}

// Subscribe returns a channel that yields the session's full history and
// then live events until the log closes or ctx is cancelled. The channel is
// closed afterwards.
func (b *ProgressBus) Subscribe(ctx context.Context, sessionID string) (<-chan events.Event, error) {
	b.mu.RLock()
	log, ok := b.sessions[sessionID]
	b.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	out := make(chan events.Event)

	// The cond has no context awareness; wake waiters when the context
	// ends. The consumer cancels watch on exit so the watcher never
	// outlives the subscription.
	watch, stop := context.WithCancel(ctx)
	go func() {
		<-watch.Done()
		log.cond.Broadcast()
	}()

	go func() {
		defer close(out)
		defer stop()
		cursor := 0
		for {
			log.mu.Lock()
			for cursor == len(log.events) && !log.closed && ctx.Err() == nil {
				log.cond.Wait()
			}
			batch := make([]events.Event, len(log.events)-cursor)
			copy(batch, log.events[cursor:])
			cursor = len(log.events)
			done := log.closed
			log.mu.Unlock()

			for _, ev := range batch {
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}

			if done || ctx.Err() != nil {
				return
			}
		}
	}()

	return out, nil
}

// Events returns a snapshot of the session's log so far.
func (b *ProgressBus) Events(sessionID string) ([]events.Event, error) {
	b.mu.RLock()
	log, ok := b.sessions[sessionID]
	b.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	log.mu.Lock()
	defer log.mu.Unlock()
	out := make([]events.Event, len(log.events))
	copy(out, log.events)
	return out, nil
}

// Drop removes a session's log. Active subscribers finish their current
// replay and then see the log as closed.
func (b *ProgressBus) Drop(sessionID string) {
	b.mu.Lock()
	log, ok := b.sessions[sessionID]
	delete(b.sessions, sessionID)
	b.mu.Unlock()

	if ok {
		log.mu.Lock()
		log.closed = true
		log.cond.Broadcast()
		log.mu.Unlock()
	}
}
