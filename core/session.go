package core

import (
	"time"

	"pkt.systems/verkstad/schema"
)

// session tracks the state of a single shell session.
type session struct {
	ID         schema.SessionID
	WindowID   schema.WindowID
	WorkingDir string
	State      schema.SessionState
	CreatedAt  time.Time
	term       Terminal
	scrollback *scrollback
	greet      *time.Timer
}

// Snapshot returns a transport-friendly view of the session.
func (s *session) Snapshot(active bool) schema.SessionSnapshot {
	return schema.SessionSnapshot{
		ID:         s.ID,
		WindowID:   s.WindowID,
		WorkingDir: s.WorkingDir,
		State:      s.State,
		CreatedAt:  s.CreatedAt,
		Active:     active,
	}
}
