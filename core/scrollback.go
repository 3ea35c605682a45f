package core

import (
	"sync"

	"pkt.systems/verkstad/schema"
)

const defaultScrollbackBytes = schema.DefaultScrollbackBytes

// scrollback retains the newest output bytes of one session. Appends past
// the cap drop the oldest bytes; the total counts every byte ever seen.
// Appends arrive from the session's pump goroutine while reads come from
// API calls, hence the own lock.
type scrollback struct {
	mu    sync.Mutex
	data  []byte
	max   int
	total int64
}

// newScrollback returns a scrollback with default limits applied.
func newScrollback(maxBytes int) *scrollback {
	if maxBytes <= 0 {
		maxBytes = defaultScrollbackBytes
	}
	return &scrollback{max: maxBytes}
}

// Append adds a chunk, trimming the front to stay under the cap.
func (b *scrollback) Append(p []byte) {
	if len(p) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.total += int64(len(p))
	if len(p) >= b.max {
		b.data = append(b.data[:0:0], p[len(p)-b.max:]...)
		return
	}
	b.data = append(b.data, p...)
	if len(b.data) > b.max {
		b.data = append([]byte(nil), b.data[len(b.data)-b.max:]...)
	}
}

// Tail returns a copy of the newest maxBytes retained bytes. A bound at or
// below zero returns everything retained.
func (b *scrollback) Tail(maxBytes int) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	data := b.data
	if maxBytes > 0 && len(data) > maxBytes {
		data = data[len(data)-maxBytes:]
	}
	return append([]byte(nil), data...)
}

// Total reports the number of bytes ever appended.
func (b *scrollback) Total() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

// Len reports the retained byte count.
func (b *scrollback) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}
