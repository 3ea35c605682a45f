package schema

// SessionID identifies a shell session. IDs are assigned monotonically
// per engine instance ("session-1", "session-2", ...).
type SessionID string

// WindowID identifies the UI window that owns a session.
type WindowID string

// NodeID identifies a node in a file tree snapshot. IDs are stable within
// one snapshot but not across reloads.
type NodeID string

// NodeKind distinguishes files from directories.
type NodeKind string

const (
	// KindFile marks a regular file node.
	KindFile NodeKind = "file"
	// KindDirectory marks a directory node.
	KindDirectory NodeKind = "directory"
)

// SessionState describes where a session is in its lifecycle.
type SessionState string

const (
	// SessionSpawning indicates the process launch has been requested.
	SessionSpawning SessionState = "spawning"
	// SessionRunning indicates the process is live.
	SessionRunning SessionState = "running"
	// SessionExited indicates the process has terminated. Terminal state;
	// a new logical session requires a new id.
	SessionExited SessionState = "exited"
)

// TreeChangeReason explains why a tree_changed event was emitted.
type TreeChangeReason string

const (
	// TreeChangeMutation follows an engine-performed disk or virtual mutation.
	TreeChangeMutation TreeChangeReason = "mutation"
	// TreeChangeRefresh follows an explicit reload request.
	TreeChangeRefresh TreeChangeReason = "refresh"
	// TreeChangeExternal follows a change detected on disk outside the engine.
	TreeChangeExternal TreeChangeReason = "external"
)
