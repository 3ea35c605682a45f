package core

import "pkt.systems/verkstad/schema"

// EventSink receives session output, session lifecycle, and workspace
// events from the core service.
type EventSink interface {
	OnOutput(event schema.OutputEvent)
	OnSessionEvent(event schema.SessionEvent)
	OnWorkspaceEvent(event schema.WorkspaceEvent)
}
