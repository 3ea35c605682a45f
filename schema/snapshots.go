package schema

import "time"

// SessionSnapshot is a read-only view of session state for transports.
type SessionSnapshot struct {
	ID         SessionID
	WindowID   WindowID
	WorkingDir string
	State      SessionState
	CreatedAt  time.Time
	Active     bool
}

// WorkspaceSnapshot is a read-only view of the workspace for transports.
// Root and Name are empty when no folder is open; the tree is then the
// synthetic virtual root's children.
type WorkspaceSnapshot struct {
	Open        bool
	Root        string
	Name        string
	CurrentPath string
	Tree        []FileNode
}

// ScrollbackSnapshot carries the retained tail of a session's output.
type ScrollbackSnapshot struct {
	SessionID  SessionID
	Data       string
	TotalBytes int64
}
