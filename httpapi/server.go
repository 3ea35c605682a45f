package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/verkstad/core"
	"pkt.systems/verkstad/schema"
)

// Server serves the engine API to the local UI process.
type Server struct {
	cfg     Config
	service core.Service
	hub     *Hub
}

// NewServer constructs an HTTP server.
func NewServer(cfg Config, service core.Service, hub *Hub) *Server {
	return &Server{
		cfg:     cfg,
		service: service,
		hub:     hub,
	}
}

// Handler returns an http.Handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/sessions", s.handleSessions)
	mux.HandleFunc("/api/sessions/write", s.handleWrite)
	mux.HandleFunc("/api/sessions/execute", s.handleExecute)
	mux.HandleFunc("/api/sessions/clear", s.handleClear)
	mux.HandleFunc("/api/sessions/resize", s.handleResize)
	mux.HandleFunc("/api/sessions/kill", s.handleKill)
	mux.HandleFunc("/api/sessions/active", s.handleActive)
	mux.HandleFunc("/api/sessions/cwd", s.handleChangeDir)
	mux.HandleFunc("/api/sessions/scrollback", s.handleScrollback)

	mux.HandleFunc("/api/workspace", s.handleWorkspace)
	mux.HandleFunc("/api/workspace/open", s.handleOpenFolder)
	mux.HandleFunc("/api/workspace/close", s.handleCloseFolder)
	mux.HandleFunc("/api/workspace/navigate", s.handleNavigate)
	mux.HandleFunc("/api/workspace/refresh", s.handleRefresh)

	mux.HandleFunc("/api/tree/read", s.handleReadDirectory)
	mux.HandleFunc("/api/files/create", s.handleCreateFile)
	mux.HandleFunc("/api/files/mkdir", s.handleCreateFolder)
	mux.HandleFunc("/api/files/delete", s.handleDelete)
	mux.HandleFunc("/api/files/rename", s.handleRename)
	mux.HandleFunc("/api/files/move", s.handleMove)
	mux.HandleFunc("/api/files/save", s.handleSave)

	mux.HandleFunc("/api/stream", s.handleStream)

	return withRequestLogging(mux)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	log := pslog.Ctx(r.Context())
	switch r.Method {
	case http.MethodGet:
		resp, err := s.service.ListSessions(r.Context(), schema.ListSessionsRequest{})
		if err != nil {
			log.Warn("http sessions list failed", "err", err)
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	case http.MethodPost:
		var payload struct {
			WorkingDir string `json:"working_dir"`
			WindowID   string `json:"window_id"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			log.Warn("http sessions decode failed", "err", err)
			writeError(w, http.StatusBadRequest, err)
			return
		}
		resp, err := s.service.CreateSession(r.Context(), schema.CreateSessionRequest{
			WorkingDir: payload.WorkingDir,
			WindowID:   schema.WindowID(payload.WindowID),
		})
		if err != nil {
			log.Warn("http sessions create failed", "err", err)
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		log.Info("http session created", "session", resp.Session.ID)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleWrite(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID string `json:"session_id"`
		Data      string `json:"data"`
	}
	s.post(w, r, &payload, func() (any, error) {
		return s.service.WriteSession(r.Context(), schema.WriteSessionRequest{
			SessionID: schema.SessionID(payload.SessionID),
			Data:      payload.Data,
		})
	})
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID string `json:"session_id"`
		Line      string `json:"line"`
	}
	s.post(w, r, &payload, func() (any, error) {
		return s.service.ExecuteLine(r.Context(), schema.ExecuteLineRequest{
			SessionID: schema.SessionID(payload.SessionID),
			Line:      payload.Line,
		})
	})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID string `json:"session_id"`
	}
	s.post(w, r, &payload, func() (any, error) {
		return s.service.ClearSession(r.Context(), schema.ClearSessionRequest{
			SessionID: schema.SessionID(payload.SessionID),
		})
	})
}

func (s *Server) handleResize(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID string `json:"session_id"`
		Cols      int    `json:"cols"`
		Rows      int    `json:"rows"`
	}
	s.post(w, r, &payload, func() (any, error) {
		return s.service.ResizeSession(r.Context(), schema.ResizeSessionRequest{
			SessionID: schema.SessionID(payload.SessionID),
			Cols:      payload.Cols,
			Rows:      payload.Rows,
		})
	})
}

func (s *Server) handleKill(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID string `json:"session_id"`
	}
	s.post(w, r, &payload, func() (any, error) {
		return s.service.KillSession(r.Context(), schema.KillSessionRequest{
			SessionID: schema.SessionID(payload.SessionID),
		})
	})
}

func (s *Server) handleActive(w http.ResponseWriter, r *http.Request) {
	log := pslog.Ctx(r.Context())
	switch r.Method {
	case http.MethodGet:
		resp, err := s.service.ActiveSession(r.Context(), schema.ActiveSessionRequest{})
		if err != nil {
			log.Warn("http active get failed", "err", err)
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	case http.MethodPost:
		var payload struct {
			SessionID string `json:"session_id"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			log.Warn("http active decode failed", "err", err)
			writeError(w, http.StatusBadRequest, err)
			return
		}
		resp, err := s.service.ActivateSession(r.Context(), schema.ActivateSessionRequest{
			SessionID: schema.SessionID(payload.SessionID),
		})
		if err != nil {
			log.Warn("http activate failed", "err", err)
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleChangeDir(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID string `json:"session_id"`
		Path      string `json:"path"`
	}
	s.post(w, r, &payload, func() (any, error) {
		return s.service.ChangeDir(r.Context(), schema.ChangeDirRequest{
			SessionID: schema.SessionID(payload.SessionID),
			Path:      payload.Path,
		})
	})
}

func (s *Server) handleScrollback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := pslog.Ctx(r.Context())
	resp, err := s.service.Scrollback(r.Context(), schema.ScrollbackRequest{
		SessionID: schema.SessionID(r.URL.Query().Get("session_id")),
		MaxBytes:  parseInt(r.URL.Query().Get("max_bytes"), 0),
	})
	if err != nil {
		log.Warn("http scrollback failed", "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWorkspace(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	resp, err := s.service.WorkspaceState(r.Context(), schema.WorkspaceStateRequest{})
	if err != nil {
		pslog.Ctx(r.Context()).Warn("http workspace state failed", "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOpenFolder(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Path string `json:"path"`
	}
	s.post(w, r, &payload, func() (any, error) {
		return s.service.OpenFolder(r.Context(), schema.OpenFolderRequest{Path: payload.Path})
	})
}

func (s *Server) handleCloseFolder(w http.ResponseWriter, r *http.Request) {
	var payload struct{}
	s.post(w, r, &payload, func() (any, error) {
		return s.service.CloseFolder(r.Context(), schema.CloseFolderRequest{})
	})
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		NodeID string `json:"node_id"`
		Path   string `json:"path"`
	}
	s.post(w, r, &payload, func() (any, error) {
		return s.service.Navigate(r.Context(), schema.NavigateRequest{
			NodeID: schema.NodeID(payload.NodeID),
			Path:   payload.Path,
		})
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var payload struct{}
	s.post(w, r, &payload, func() (any, error) {
		return s.service.RefreshWorkspace(r.Context(), schema.RefreshWorkspaceRequest{})
	})
}

func (s *Server) handleReadDirectory(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Path     string `json:"path"`
		MaxDepth int    `json:"max_depth"`
	}
	s.post(w, r, &payload, func() (any, error) {
		return s.service.ReadDirectory(r.Context(), schema.ReadDirectoryRequest{
			Path:     payload.Path,
			MaxDepth: payload.MaxDepth,
		})
	})
}

func (s *Server) handleCreateFile(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Path     string `json:"path"`
		ParentID string `json:"parent_id"`
		Name     string `json:"name"`
		Content  string `json:"content"`
	}
	s.post(w, r, &payload, func() (any, error) {
		return s.service.CreateFile(r.Context(), schema.CreateFileRequest{
			Path:     payload.Path,
			ParentID: schema.NodeID(payload.ParentID),
			Name:     payload.Name,
			Content:  payload.Content,
		})
	})
}

func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Path     string `json:"path"`
		ParentID string `json:"parent_id"`
		Name     string `json:"name"`
	}
	s.post(w, r, &payload, func() (any, error) {
		return s.service.CreateFolder(r.Context(), schema.CreateFolderRequest{
			Path:     payload.Path,
			ParentID: schema.NodeID(payload.ParentID),
			Name:     payload.Name,
		})
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Path   string `json:"path"`
		NodeID string `json:"node_id"`
	}
	s.post(w, r, &payload, func() (any, error) {
		return s.service.DeleteNode(r.Context(), schema.DeleteNodeRequest{
			Path:   payload.Path,
			NodeID: schema.NodeID(payload.NodeID),
		})
	})
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Path    string `json:"path"`
		NodeID  string `json:"node_id"`
		NewName string `json:"new_name"`
	}
	s.post(w, r, &payload, func() (any, error) {
		return s.service.RenameNode(r.Context(), schema.RenameNodeRequest{
			Path:    payload.Path,
			NodeID:  schema.NodeID(payload.NodeID),
			NewName: payload.NewName,
		})
	})
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SourcePath string `json:"source_path"`
		TargetDir  string `json:"target_dir"`
		NodeID     string `json:"node_id"`
		TargetID   string `json:"target_id"`
	}
	s.post(w, r, &payload, func() (any, error) {
		return s.service.MoveNode(r.Context(), schema.MoveNodeRequest{
			SourcePath: payload.SourcePath,
			TargetDir:  payload.TargetDir,
			NodeID:     schema.NodeID(payload.NodeID),
			TargetID:   schema.NodeID(payload.TargetID),
		})
	})
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	s.post(w, r, &payload, func() (any, error) {
		return s.service.SaveFile(r.Context(), schema.SaveFileRequest{
			Path:    payload.Path,
			Content: payload.Content,
		})
	})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("stream unsupported"))
		return
	}
	log := pslog.Ctx(r.Context())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	lastID := parseUint(r.Header.Get("Last-Event-ID"))

	snapshot := s.buildSnapshot(r)
	_ = writeSSEvent(w, StreamEvent{
		Type:      "snapshot",
		Snapshot:  &snapshot,
		Timestamp: time.Now(),
	})
	flusher.Flush()

	replayCount := 0
	if lastID > 0 {
		replay := s.hub.Replay(lastID)
		replayCount = len(replay)
		for _, event := range replay {
			_ = writeSSEvent(w, event)
		}
		flusher.Flush()
	}

	ch, unsubscribe := s.hub.Subscribe()
	defer unsubscribe()

	notify := r.Context().Done()
	log.Info("http stream opened", "last_id", lastID, "replay", replayCount, "sessions", len(snapshot.Sessions))
	for {
		select {
		case <-notify:
			log.Info("http stream closed")
			return
		case event := <-ch:
			_ = writeSSEvent(w, event)
			flusher.Flush()
		}
	}
}

func (s *Server) buildSnapshot(r *http.Request) SnapshotPayload {
	ctx := r.Context()
	sessions, err := s.service.ListSessions(ctx, schema.ListSessionsRequest{})
	if err != nil {
		return SnapshotPayload{}
	}
	tails := make(map[schema.SessionID]schema.ScrollbackSnapshot)
	for _, sess := range sessions.Sessions {
		tail, err := s.service.Scrollback(ctx, schema.ScrollbackRequest{
			SessionID: sess.ID,
			MaxBytes:  s.cfg.SnapshotTailBytes,
		})
		if err != nil {
			continue
		}
		tails[sess.ID] = tail.Scrollback
	}
	workspace := schema.WorkspaceSnapshot{}
	if wsResp, err := s.service.WorkspaceState(ctx, schema.WorkspaceStateRequest{}); err == nil {
		workspace = wsResp.Workspace
	}
	return SnapshotPayload{
		Sessions:    sessions.Sessions,
		Active:      sessions.Active,
		Scrollbacks: tails,
		Workspace:   workspace,
	}
}

// post decodes a JSON body into payload, runs the operation, and writes
// the JSON response or the mapped error.
func (s *Server) post(w http.ResponseWriter, r *http.Request, payload any, op func() (any, error)) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := pslog.Ctx(r.Context())
	if err := decodeJSON(r.Body, payload); err != nil && !errors.Is(err, io.EOF) {
		log.Warn("http decode failed", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := op()
	if err != nil {
		log.Warn("http request failed", "path", r.URL.Path, "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, schema.ErrSessionNotFound),
		errors.Is(err, schema.ErrNodeNotFound),
		errors.Is(err, schema.ErrNoWorkspace),
		errors.Is(err, schema.ErrSourceMissing):
		return http.StatusNotFound
	case errors.Is(err, schema.ErrDestinationExists):
		return http.StatusConflict
	case errors.Is(err, schema.ErrSessionExited):
		return http.StatusConflict
	case errors.Is(err, schema.ErrInvalidRequest),
		errors.Is(err, schema.ErrInvalidPath),
		errors.Is(err, schema.ErrInvalidName),
		errors.Is(err, schema.ErrNotDirectory):
		return http.StatusBadRequest
	case errors.Is(err, schema.ErrEngineClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(body io.Reader, target any) error {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeSSEvent(w http.ResponseWriter, event StreamEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if event.Seq > 0 {
		_, _ = fmt.Fprintf(w, "id: %d\n", event.Seq)
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", strings.TrimSpace(string(data)))
	return nil
}

func parseUint(value string) uint64 {
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}

func parseInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
