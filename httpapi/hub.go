package httpapi

import (
	"context"
	"sync"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/verkstad/schema"
)

// StreamEvent is sent to SSE clients. Type carries the schema event type
// string, or "session_output" for output chunks and "snapshot" for the
// connect-time state frame.
type StreamEvent struct {
	Seq         uint64                  `json:"seq"`
	Type        string                  `json:"type"`
	SessionID   schema.SessionID        `json:"session_id,omitempty"`
	Data        string                  `json:"data,omitempty"`
	Session     *schema.SessionSnapshot `json:"session,omitempty"`
	ExitCode    int                     `json:"exit_code,omitempty"`
	Found       bool                    `json:"found,omitempty"`
	Active      schema.SessionID        `json:"active,omitempty"`
	Name        string                  `json:"name,omitempty"`
	Root        string                  `json:"root,omitempty"`
	Reason      schema.TreeChangeReason `json:"reason,omitempty"`
	Tree        []schema.FileNode       `json:"tree,omitempty"`
	CurrentPath string                  `json:"current_path,omitempty"`
	Snapshot    *SnapshotPayload        `json:"snapshot,omitempty"`
	Timestamp   time.Time               `json:"timestamp"`
}

// SnapshotPayload seeds client state on connect.
type SnapshotPayload struct {
	Sessions    []schema.SessionSnapshot                       `json:"sessions"`
	Active      schema.SessionID                               `json:"active"`
	Scrollbacks map[schema.SessionID]schema.ScrollbackSnapshot `json:"scrollbacks"`
	Workspace   schema.WorkspaceSnapshot                       `json:"workspace"`
}

// Hub broadcasts engine events to stream subscribers and retains a
// bounded history for Last-Event-ID replay. Full subscriber channels drop
// the event; output delivery never blocks on a slow client.
type Hub struct {
	mu          sync.Mutex
	seq         uint64
	history     []StreamEvent
	subs        map[chan StreamEvent]struct{}
	historySize int
	buffer      int
	log         pslog.Logger
}

// NewHub constructs a hub with the given history and subscriber buffer
// sizes.
func NewHub(historySize, buffer int, logger pslog.Logger) *Hub {
	if historySize <= 0 {
		historySize = 1024
	}
	if buffer <= 0 {
		buffer = 256
	}
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Hub{
		subs:        make(map[chan StreamEvent]struct{}),
		historySize: historySize,
		buffer:      buffer,
		log:         logger,
	}
}

// OnOutput implements core.EventSink.
func (h *Hub) OnOutput(event schema.OutputEvent) {
	h.log.Trace("hub output event", "session", event.SessionID, "bytes", len(event.Data))
	h.publish(StreamEvent{
		Type:      "session_output",
		SessionID: event.SessionID,
		Data:      event.Data,
		Timestamp: time.Now(),
	})
}

// OnSessionEvent implements core.EventSink.
func (h *Hub) OnSessionEvent(event schema.SessionEvent) {
	h.log.Trace("hub session event", "type", event.Type, "session", event.Session.ID)
	sess := event.Session
	h.publish(StreamEvent{
		Type:      string(event.Type),
		SessionID: sess.ID,
		Session:   &sess,
		ExitCode:  event.ExitCode,
		Found:     event.Found,
		Active:    event.Active,
		Timestamp: time.Now(),
	})
}

// OnWorkspaceEvent implements core.EventSink.
func (h *Hub) OnWorkspaceEvent(event schema.WorkspaceEvent) {
	h.log.Trace("hub workspace event", "type", event.Type, "reason", event.Reason)
	h.publish(StreamEvent{
		Type:        string(event.Type),
		Name:        event.Name,
		Root:        event.Root,
		Reason:      event.Reason,
		Tree:        event.Tree,
		CurrentPath: event.CurrentPath,
		Timestamp:   time.Now(),
	})
}

// Subscribe registers a stream subscriber. The returned function removes
// the subscription and closes the channel.
func (h *Hub) Subscribe() (<-chan StreamEvent, func()) {
	h.mu.Lock()
	ch := make(chan StreamEvent, h.buffer)
	h.subs[ch] = struct{}{}
	count := len(h.subs)
	h.mu.Unlock()
	h.log.Info("hub subscribe", "subs", count)
	unsub := func() {
		h.mu.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		remaining := len(h.subs)
		h.mu.Unlock()
		h.log.Info("hub unsubscribe", "subs", remaining)
	}
	return ch, unsub
}

// Replay returns retained events with a seq greater than after.
func (h *Hub) Replay(after uint64) []StreamEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	events := make([]StreamEvent, 0, len(h.history))
	for _, event := range h.history {
		if event.Seq > after {
			events = append(events, event)
		}
	}
	h.log.Debug("hub replay", "after", after, "count", len(events))
	return events
}

func (h *Hub) publish(event StreamEvent) {
	// Sends are non-blocking, so holding the lock keeps a concurrent
	// unsubscribe from closing a channel mid-publish.
	h.mu.Lock()
	h.seq++
	event.Seq = h.seq
	h.history = append(h.history, event)
	if len(h.history) > h.historySize {
		h.history = h.history[len(h.history)-h.historySize:]
	}
	dropped := 0
	for sub := range h.subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	h.mu.Unlock()
	if dropped > 0 {
		h.log.Warn("hub event dropped", "type", event.Type, "dropped", dropped)
	}
}
