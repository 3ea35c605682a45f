package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"pkt.systems/pslog"
	"pkt.systems/verkstad/schema"
)

func TestWithPathAddsField(t *testing.T) {
	capture := &logCapture{}
	logger := pslog.NewWithOptions(capture, pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		MinLevel:      pslog.InfoLevel,
		VerboseFields: true,
	})
	log := WithPath(logger, "/work/proj")
	log.Info("hello")

	entry := capture.firstEntry(t)
	if entry["path"] != "/work/proj" {
		t.Fatalf("expected path field, got %+v", entry)
	}
}

func TestWithPathSkipsEmpty(t *testing.T) {
	capture := &logCapture{}
	logger := pslog.NewWithOptions(capture, pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		MinLevel:      pslog.InfoLevel,
		VerboseFields: true,
	})
	log := WithPath(logger, "")
	log.Info("hello")

	entry := capture.firstEntry(t)
	if _, ok := entry["path"]; ok {
		t.Fatalf("did not expect path field, got %+v", entry)
	}
}

func TestWithSessionWindowAddsFields(t *testing.T) {
	capture := &logCapture{}
	logger := pslog.NewWithOptions(capture, pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		MinLevel:      pslog.InfoLevel,
		VerboseFields: true,
	})
	ctx := pslog.ContextWithLogger(context.Background(), logger)
	log := WithSessionWindow(ctx, "session-1", "win1")
	log.Info("hello")

	entry := capture.firstEntry(t)
	if entry["session"] != "session-1" {
		t.Fatalf("expected session field, got %+v", entry)
	}
	if entry["window"] != "win1" {
		t.Fatalf("expected window field, got %+v", entry)
	}
}

func TestWithSessionDeduplicates(t *testing.T) {
	capture := &logCapture{}
	logger := pslog.NewWithOptions(capture, pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		MinLevel:      pslog.InfoLevel,
		VerboseFields: true,
	})
	ctx := ContextWithSessionLogger(context.Background(), logger.With("session", schema.SessionID("session-1")), "session-1")
	log := WithSession(ctx, "session-1")
	log.Info("hello")

	entry := capture.firstEntry(t)
	if entry["session"] != "session-1" {
		t.Fatalf("expected session field, got %+v", entry)
	}
}

type logCapture struct {
	buf bytes.Buffer
}

func (c *logCapture) Write(p []byte) (int, error) {
	return c.buf.Write(p)
}

func (c *logCapture) firstEntry(t *testing.T) map[string]any {
	t.Helper()
	data := c.buf.Bytes()
	idx := bytes.IndexByte(data, '\n')
	if idx == -1 {
		idx = len(data)
	}
	line := bytes.TrimSpace(data[:idx])
	entry := map[string]any{}
	if err := json.Unmarshal(line, &entry); err != nil {
		t.Fatalf("parse log entry: %v", err)
	}
	return entry
}
