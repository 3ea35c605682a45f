package eventbus

import (
	"context"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/verkstad/schema"
)

// EventType identifies the event payload.
type EventType string

const (
	// EventOutput carries a session output chunk.
	EventOutput EventType = "output"
	// EventSession carries session lifecycle updates.
	EventSession EventType = "session"
	// EventWorkspace carries workspace and tree updates.
	EventWorkspace EventType = "workspace"
)

// Event represents a UI-facing event emitted by the core engine.
type Event struct {
	Type      EventType
	Output    schema.OutputEvent
	Session   schema.SessionEvent
	Workspace schema.WorkspaceEvent
}

// Bus fans events out to subscribers. Publishing never blocks; events to
// a full subscriber channel are dropped.
type Bus struct {
	mu    sync.Mutex
	subs  map[chan Event]struct{}
	log   pslog.Logger
	depth int
}

// New constructs a Bus.
func New(logger pslog.Logger) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		subs:  make(map[chan Event]struct{}),
		log:   logger,
		depth: 256,
	}
}

// Subscribe registers a subscriber and returns its channel plus a cancel
// function that closes the channel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	if b == nil {
		return nil, func() {}
	}
	ch := make(chan Event, b.depth)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	count := len(b.subs)
	b.mu.Unlock()
	if b.log != nil {
		b.log.Debug("eventbus subscribe", "subs", count)
	}
	return ch, func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
		if b.log != nil {
			b.log.Debug("eventbus unsubscribe")
		}
	}
}

// OnOutput publishes a session output event.
func (b *Bus) OnOutput(event schema.OutputEvent) {
	b.publish(Event{Type: EventOutput, Output: event})
}

// OnSessionEvent publishes a session lifecycle event.
func (b *Bus) OnSessionEvent(event schema.SessionEvent) {
	b.publish(Event{Type: EventSession, Session: event})
}

// OnWorkspaceEvent publishes a workspace event.
func (b *Bus) OnWorkspaceEvent(event schema.WorkspaceEvent) {
	b.publish(Event{Type: EventWorkspace, Workspace: event})
}

func (b *Bus) publish(event Event) {
	if b == nil {
		return
	}
	// Sends are non-blocking, so holding the lock keeps a concurrent
	// unsubscribe from closing a channel mid-publish.
	b.mu.Lock()
	dropped := 0
	for sub := range b.subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	b.mu.Unlock()
	if dropped > 0 && b.log != nil {
		b.log.Trace("eventbus dropped", "count", dropped)
	}
}
