package httpapi

import (
	"net"
	"strings"
)

// Config defines HTTP API settings.
type Config struct {
	Addr string
	// StreamBuffer is the per-subscriber event channel capacity.
	StreamBuffer int
	// StreamHistory is the number of events retained for reconnect replay.
	StreamHistory int
	// SnapshotTailBytes bounds the scrollback tail included per session in
	// the stream snapshot. Zero means the full retained scrollback.
	SnapshotTailBytes int
}

// IsLoopbackAddr reports whether addr binds a loopback interface. The
// engine carries no auth, so anything else deserves a warning.
func IsLoopbackAddr(addr string) bool {
	host, _, err := net.SplitHostPort(strings.TrimSpace(addr))
	if err != nil {
		return false
	}
	if host == "" || host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
