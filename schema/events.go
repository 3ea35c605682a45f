package schema

// SessionEventType enumerates session lifecycle events.
type SessionEventType string

const (
	// SessionCreated is emitted after a session spawned successfully.
	SessionCreated SessionEventType = "session_created"
	// SessionExitedEvent is emitted once when a session's process reports
	// termination. Suppressed for sessions removed by an explicit kill.
	SessionExitedEvent SessionEventType = "session_exited"
	// SessionKilled is emitted after an explicit kill request.
	SessionKilled SessionEventType = "session_killed"
	// SessionActivated is emitted when the active session changes.
	SessionActivated SessionEventType = "session_activated"
)

// WorkspaceEventType enumerates workspace and tree events.
type WorkspaceEventType string

const (
	// WorkspaceOpened is emitted after a folder becomes the workspace root.
	WorkspaceOpened WorkspaceEventType = "workspace_opened"
	// WorkspaceClosed is emitted after returning to the virtual empty root.
	WorkspaceClosed WorkspaceEventType = "workspace_closed"
	// TreeChanged is emitted whenever the loaded tree was replaced.
	TreeChanged WorkspaceEventType = "tree_changed"
)

// OutputEvent carries one chunk of session output. Chunks preserve the
// order the process produced them; no ordering holds across sessions.
type OutputEvent struct {
	SessionID SessionID
	Data      string
}

// SessionEvent carries a session lifecycle change.
type SessionEvent struct {
	Type SessionEventType
	// Session is the snapshot at event time. For session_exited the state
	// is SessionExited and ExitCode is meaningful.
	Session  SessionSnapshot
	ExitCode int
	// Found reports, for session_killed, whether a live session was removed.
	Found bool
	// Active is the active session id after the event.
	Active SessionID
}

// WorkspaceEvent carries a workspace or tree change.
type WorkspaceEvent struct {
	Type WorkspaceEventType
	// Name and Root describe the workspace for workspace_opened.
	Name string
	Root string
	// Reason and Tree accompany tree_changed.
	Reason      TreeChangeReason
	Tree        []FileNode
	CurrentPath string
}
