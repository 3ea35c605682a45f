package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/verkstad/internal/logx"
	"pkt.systems/verkstad/internal/ptysession"
	"pkt.systems/verkstad/schema"
)

func (s *service) CreateSession(ctx context.Context, req schema.CreateSessionRequest) (schema.CreateSessionResponse, error) {
	if ctx == nil {
		return schema.CreateSessionResponse{}, errors.New("missing context")
	}
	dir := strings.TrimSpace(req.WorkingDir)
	if dir == "" {
		dir = defaultWorkingDir()
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return schema.CreateSessionResponse{}, schema.ErrEngineClosed
	}
	s.nextSeq++
	id := schema.SessionID(fmt.Sprintf("session-%d", s.nextSeq))
	s.mu.Unlock()

	log := logx.WithSessionWindow(ctx, id, req.WindowID)
	log.Info("service session create start", "dir", dir)
	term, err := s.starter.Start(ptysession.Config{
		WorkingDir: dir,
		Cols:       s.cfg.TerminalCols,
		Rows:       s.cfg.TerminalRows,
		Shell:      s.cfg.Shell,
		ShellArgs:  s.cfg.ShellArgs,
	})
	if err != nil {
		log.Warn("service session spawn failed", "err", err)
		return schema.CreateSessionResponse{}, fmt.Errorf("spawn session: %w", err)
	}

	rec := &session{
		ID:         id,
		WindowID:   req.WindowID,
		WorkingDir: dir,
		State:      schema.SessionRunning,
		CreatedAt:  time.Now(),
		term:       term,
		scrollback: newScrollback(s.cfg.ScrollbackBytes),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		go term.Terminate(s.cfg.KillGrace)
		return schema.CreateSessionResponse{}, schema.ErrEngineClosed
	}
	s.sessions[id] = rec
	s.order = append(s.order, id)
	if s.active == "" {
		s.setActiveLocked(id)
	}
	if s.cfg.GreetingDelay > 0 {
		rec.greet = time.AfterFunc(s.cfg.GreetingDelay, func() { s.greetSession(id) })
	}
	snap := rec.Snapshot(s.active == id)
	event := schema.SessionEvent{Type: schema.SessionCreated, Session: snap, Active: s.active}
	s.pumps.Add(1)
	s.mu.Unlock()

	go s.pumpSession(rec)
	s.emitSessionEvent(event)
	log.Info("service session created", "pid", term.Pid(), "active", event.Active)
	return schema.CreateSessionResponse{Session: snap}, nil
}

func (s *service) ListSessions(ctx context.Context, req schema.ListSessionsRequest) (schema.ListSessionsResponse, error) {
	_ = req
	s.mu.Lock()
	defer s.mu.Unlock()
	sessions := make([]schema.SessionSnapshot, 0, len(s.order))
	for _, id := range s.order {
		rec := s.sessions[id]
		if rec == nil {
			continue
		}
		sessions = append(sessions, rec.Snapshot(id == s.active))
	}
	pslog.Ctx(ctx).Trace("service sessions listed", "count", len(sessions), "active", s.active)
	return schema.ListSessionsResponse{Sessions: sessions, Active: s.active}, nil
}

func (s *service) KillSession(ctx context.Context, req schema.KillSessionRequest) (schema.KillSessionResponse, error) {
	log := logx.WithSession(ctx, req.SessionID)

	s.mu.Lock()
	rec, ok := s.removeLocked(req.SessionID)
	snap := schema.SessionSnapshot{ID: req.SessionID}
	if ok {
		s.killed[req.SessionID] = true
		rec.State = schema.SessionExited
		snap = rec.Snapshot(false)
	}
	event := schema.SessionEvent{Type: schema.SessionKilled, Session: snap, Found: ok, Active: s.active}
	grace := s.cfg.KillGrace
	s.mu.Unlock()

	if ok {
		go rec.term.Terminate(grace)
	}
	s.emitSessionEvent(event)
	if ok {
		log.Info("service session killed", "active", event.Active)
	} else {
		log.Debug("service session kill missed")
	}
	return schema.KillSessionResponse{Killed: ok}, nil
}

func (s *service) ActivateSession(ctx context.Context, req schema.ActivateSessionRequest) (schema.ActivateSessionResponse, error) {
	log := logx.WithSession(ctx, req.SessionID)

	s.mu.Lock()
	rec, ok := s.sessions[req.SessionID]
	changed := ok && s.active != req.SessionID
	if ok {
		s.setActiveLocked(req.SessionID)
	}
	active := s.active
	var event schema.SessionEvent
	if changed {
		event = schema.SessionEvent{Type: schema.SessionActivated, Session: rec.Snapshot(true), Active: active}
	}
	s.mu.Unlock()

	if changed {
		s.emitSessionEvent(event)
		log.Info("service session activated")
	} else if !ok {
		log.Debug("service session activate ignored")
	}
	return schema.ActivateSessionResponse{Active: active}, nil
}

func (s *service) ActiveSession(ctx context.Context, req schema.ActiveSessionRequest) (schema.ActiveSessionResponse, error) {
	_ = ctx
	_ = req
	s.mu.Lock()
	defer s.mu.Unlock()
	return schema.ActiveSessionResponse{Active: s.active}, nil
}

func (s *service) WriteSession(ctx context.Context, req schema.WriteSessionRequest) (schema.WriteSessionResponse, error) {
	rec, ok := s.lookup(req.SessionID)
	if !ok {
		return schema.WriteSessionResponse{}, nil
	}
	if err := rec.term.Write([]byte(req.Data)); err != nil {
		s.dropStale(req.SessionID, logx.WithSession(ctx, req.SessionID), err)
		return schema.WriteSessionResponse{}, fmt.Errorf("write session: %w", err)
	}
	return schema.WriteSessionResponse{}, nil
}

func (s *service) ExecuteLine(ctx context.Context, req schema.ExecuteLineRequest) (schema.ExecuteLineResponse, error) {
	rec, ok := s.lookup(req.SessionID)
	if !ok {
		return schema.ExecuteLineResponse{}, nil
	}
	if err := rec.term.ExecuteLine(req.Line); err != nil {
		s.dropStale(req.SessionID, logx.WithSession(ctx, req.SessionID), err)
		return schema.ExecuteLineResponse{}, fmt.Errorf("execute line: %w", err)
	}
	return schema.ExecuteLineResponse{}, nil
}

func (s *service) ClearSession(ctx context.Context, req schema.ClearSessionRequest) (schema.ClearSessionResponse, error) {
	rec, ok := s.lookup(req.SessionID)
	if !ok {
		return schema.ClearSessionResponse{}, nil
	}
	if err := rec.term.Clear(); err != nil {
		s.dropStale(req.SessionID, logx.WithSession(ctx, req.SessionID), err)
		return schema.ClearSessionResponse{}, fmt.Errorf("clear session: %w", err)
	}
	return schema.ClearSessionResponse{}, nil
}

func (s *service) ResizeSession(ctx context.Context, req schema.ResizeSessionRequest) (schema.ResizeSessionResponse, error) {
	if req.Cols <= 0 || req.Rows <= 0 {
		return schema.ResizeSessionResponse{}, fmt.Errorf("%w: geometry %dx%d", schema.ErrInvalidRequest, req.Cols, req.Rows)
	}
	rec, ok := s.lookup(req.SessionID)
	if !ok {
		return schema.ResizeSessionResponse{}, nil
	}
	if err := rec.term.Resize(req.Cols, req.Rows); err != nil {
		s.dropStale(req.SessionID, logx.WithSession(ctx, req.SessionID), err)
		return schema.ResizeSessionResponse{}, fmt.Errorf("resize session: %w", err)
	}
	logx.WithSession(ctx, req.SessionID).Debug("service session resized", "cols", req.Cols, "rows", req.Rows)
	return schema.ResizeSessionResponse{}, nil
}

func (s *service) ChangeDir(ctx context.Context, req schema.ChangeDirRequest) (schema.ChangeDirResponse, error) {
	path := strings.TrimSpace(req.Path)
	if path == "" {
		return schema.ChangeDirResponse{}, schema.ErrInvalidPath
	}
	log := logx.WithPath(logx.WithSession(ctx, req.SessionID), path)
	rec, ok := s.lookup(req.SessionID)
	if !ok {
		log.Warn("service directory change failed", "err", schema.ErrSessionNotFound)
		return schema.ChangeDirResponse{}, schema.ErrSessionNotFound
	}
	if err := rec.term.PushDir(path); err != nil {
		s.dropStale(req.SessionID, log, err)
		return schema.ChangeDirResponse{}, fmt.Errorf("change directory: %w", err)
	}
	s.mu.Lock()
	if s.active == req.SessionID {
		s.lastPushed = schema.NormalizePath(path)
	}
	s.mu.Unlock()
	log.Debug("service directory pushed")
	return schema.ChangeDirResponse{Path: path}, nil
}

func (s *service) Scrollback(ctx context.Context, req schema.ScrollbackRequest) (schema.ScrollbackResponse, error) {
	_ = ctx
	rec, ok := s.lookup(req.SessionID)
	if !ok {
		return schema.ScrollbackResponse{}, schema.ErrSessionNotFound
	}
	data := rec.scrollback.Tail(req.MaxBytes)
	return schema.ScrollbackResponse{Scrollback: schema.ScrollbackSnapshot{
		SessionID:  req.SessionID,
		Data:       string(data),
		TotalBytes: rec.scrollback.Total(),
	}}, nil
}

func (s *service) lookup(id schema.SessionID) (*session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[id]
	return rec, ok
}

// pumpSession forwards one session's output into the sink and scrollback,
// then reports the exit.
func (s *service) pumpSession(rec *session) {
	defer s.pumps.Done()
	for chunk := range rec.term.Output() {
		rec.scrollback.Append(chunk)
		s.emitOutput(rec.ID, chunk)
	}
	<-rec.term.Done()
	s.finishSession(rec, rec.term.ExitCode())
}

// finishSession handles a self-reported process exit. A kill that already
// removed the id wins; its exit event is suppressed.
func (s *service) finishSession(rec *session, code int) {
	s.mu.Lock()
	if s.killed[rec.ID] {
		delete(s.killed, rec.ID)
		s.mu.Unlock()
		return
	}
	s.removeLocked(rec.ID)
	rec.State = schema.SessionExited
	event := schema.SessionEvent{
		Type:     schema.SessionExitedEvent,
		Session:  rec.Snapshot(false),
		ExitCode: code,
		Active:   s.active,
	}
	s.mu.Unlock()
	s.emitSessionEvent(event)
	s.logger.Info("service session exited", "session", rec.ID, "code", code, "active", event.Active)
}

// greetSession writes the scripted clear-plus-banner to the session's own
// input once the post-spawn delay elapses. Skipped if the session is gone.
func (s *service) greetSession(id schema.SessionID) {
	s.mu.Lock()
	rec, ok := s.sessions[id]
	banner := s.cfg.GreetingBanner
	s.mu.Unlock()
	if !ok {
		return
	}
	if err := rec.term.Greet(banner); err != nil {
		s.logger.Debug("service greeting skipped", "session", id, "err", err)
	}
}
