package httpapi

import (
	"testing"
	"time"

	"pkt.systems/verkstad/schema"
)

func recvEvent(t *testing.T, ch <-chan StreamEvent) StreamEvent {
	t.Helper()
	select {
	case event := <-ch:
		return event
	case <-time.After(2 * time.Second):
		t.Fatalf("no event arrived")
		return StreamEvent{}
	}
}

func TestHubAssignsSequenceAndReplays(t *testing.T) {
	hub := NewHub(16, 4, nil)
	for _, text := range []string{"a", "b", "c"} {
		hub.OnOutput(schema.OutputEvent{SessionID: "session-1", Data: text})
	}

	replay := hub.Replay(1)
	if len(replay) != 2 {
		t.Fatalf("expected 2 events after seq 1, got %d", len(replay))
	}
	if replay[0].Seq != 2 || replay[1].Seq != 3 {
		t.Fatalf("unexpected sequence %d, %d", replay[0].Seq, replay[1].Seq)
	}
	if replay[0].Data != "b" || replay[1].Data != "c" {
		t.Fatalf("unexpected payloads %q, %q", replay[0].Data, replay[1].Data)
	}
}

func TestHubHistoryBound(t *testing.T) {
	hub := NewHub(2, 4, nil)
	for i := 0; i < 5; i++ {
		hub.OnOutput(schema.OutputEvent{SessionID: "session-1", Data: "x"})
	}
	replay := hub.Replay(0)
	if len(replay) != 2 || replay[0].Seq != 4 || replay[1].Seq != 5 {
		t.Fatalf("expected newest two retained, got %+v", replay)
	}
}

func TestHubDropsWhenSubscriberFull(t *testing.T) {
	hub := NewHub(16, 1, nil)
	ch, unsub := hub.Subscribe()
	defer unsub()

	hub.OnOutput(schema.OutputEvent{SessionID: "session-1", Data: "first"})
	hub.OnOutput(schema.OutputEvent{SessionID: "session-1", Data: "second"})

	event := recvEvent(t, ch)
	if event.Data != "first" {
		t.Fatalf("expected first event, got %q", event.Data)
	}
	select {
	case extra := <-ch:
		t.Fatalf("expected drop, got %+v", extra)
	default:
	}

	// The dropped event still lands in the replay history.
	if replay := hub.Replay(1); len(replay) != 1 || replay[0].Data != "second" {
		t.Fatalf("expected dropped event in history, got %+v", replay)
	}
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub(16, 4, nil)
	ch, unsub := hub.Subscribe()
	unsub()
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel")
	}
	unsub()
	hub.OnOutput(schema.OutputEvent{SessionID: "session-1", Data: "late"})
}

func TestHubSessionEventMapping(t *testing.T) {
	hub := NewHub(16, 4, nil)
	ch, unsub := hub.Subscribe()
	defer unsub()

	hub.OnSessionEvent(schema.SessionEvent{
		Type:    schema.SessionKilled,
		Session: schema.SessionSnapshot{ID: "session-2", State: schema.SessionExited},
		Found:   true,
		Active:  "session-1",
	})
	event := recvEvent(t, ch)
	if event.Type != string(schema.SessionKilled) || !event.Found || event.Active != "session-1" {
		t.Fatalf("unexpected mapping %+v", event)
	}
	if event.Session == nil || event.Session.ID != "session-2" {
		t.Fatalf("expected session snapshot, got %+v", event.Session)
	}
}

func TestHubWorkspaceEventMapping(t *testing.T) {
	hub := NewHub(16, 4, nil)
	ch, unsub := hub.Subscribe()
	defer unsub()

	hub.OnWorkspaceEvent(schema.WorkspaceEvent{
		Type:        schema.TreeChanged,
		Name:        "proj",
		Root:        "/work/proj",
		Reason:      schema.TreeChangeExternal,
		Tree:        []schema.FileNode{{Name: "a.txt", Kind: schema.KindFile}},
		CurrentPath: "/work/proj",
	})
	event := recvEvent(t, ch)
	if event.Type != string(schema.TreeChanged) || event.Reason != schema.TreeChangeExternal {
		t.Fatalf("unexpected mapping %+v", event)
	}
	if len(event.Tree) != 1 || event.Root != "/work/proj" {
		t.Fatalf("unexpected payload %+v", event)
	}
}
