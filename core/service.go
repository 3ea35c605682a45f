package core

import (
	"context"
	"os"
	"sort"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/verkstad/internal/filetree"
	"pkt.systems/verkstad/schema"
)

// service implements the engine behavior. One instance owns one session
// registry and one workspace; tests run several side by side.
type service struct {
	cfg     schema.EngineConfig
	starter TerminalStarter
	scanner filetree.Scanner
	sink    EventSink
	logger  pslog.Logger

	mu       sync.Mutex
	sessions map[schema.SessionID]*session
	order    []schema.SessionID
	nextSeq  int
	active   schema.SessionID
	// killed marks ids removed by an explicit kill so the exit pump
	// suppresses their exit event.
	killed map[schema.SessionID]bool
	// lastPushed remembers the last directory pushed to the active
	// session; cleared whenever the active session changes.
	lastPushed string

	wsOpen      bool
	wsName      string
	tree        filetree.Tree
	currentPath string
	expanded    map[string]bool

	pumps  sync.WaitGroup
	closed bool
}

// NewService constructs the core engine.
func NewService(cfg schema.EngineConfig, deps ServiceDeps) (Service, error) {
	normalized, err := schema.NormalizeEngineConfig(cfg)
	if err != nil {
		return nil, err
	}
	cfg = normalized
	if deps.Terminals == nil {
		deps.Terminals = NewPTYStarter()
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &service{
		cfg:      cfg,
		starter:  deps.Terminals,
		scanner:  filetree.NewScanner(cfg),
		sink:     deps.EventSink,
		logger:   logger,
		sessions: make(map[schema.SessionID]*session),
		killed:   make(map[schema.SessionID]bool),
		tree:     filetree.New(),
		expanded: make(map[string]bool),
	}, nil
}

// Close kills every session and stops the engine. The registry is drained
// before any process is signalled, so no exit events follow.
func (s *service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	recs := make([]*session, 0, len(s.order))
	for _, id := range s.order {
		rec := s.sessions[id]
		if rec == nil {
			continue
		}
		recs = append(recs, rec)
		s.killed[id] = true
		if rec.greet != nil {
			rec.greet.Stop()
		}
	}
	s.sessions = make(map[schema.SessionID]*session)
	s.order = nil
	s.active = ""
	grace := s.cfg.KillGrace
	s.mu.Unlock()

	var tg sync.WaitGroup
	for _, rec := range recs {
		tg.Add(1)
		go func(rec *session) {
			defer tg.Done()
			rec.term.Terminate(grace)
		}(rec)
	}
	tg.Wait()
	s.pumps.Wait()
	s.logger.Info("service closed", "sessions", len(recs))
	return nil
}

func (s *service) emitOutput(id schema.SessionID, chunk []byte) {
	if s.sink == nil || len(chunk) == 0 {
		return
	}
	s.sink.OnOutput(schema.OutputEvent{SessionID: id, Data: string(chunk)})
}

func (s *service) emitSessionEvent(event schema.SessionEvent) {
	if s.sink == nil {
		return
	}
	s.sink.OnSessionEvent(event)
}

func (s *service) emitWorkspaceEvent(event schema.WorkspaceEvent) {
	if s.sink == nil {
		return
	}
	s.sink.OnWorkspaceEvent(event)
}

// setActiveLocked moves the active pointer and forgets the last pushed
// directory so the next navigation reaches the new session.
func (s *service) setActiveLocked(id schema.SessionID) {
	if s.active == id {
		return
	}
	s.active = id
	s.lastPushed = ""
}

// removeLocked drops id from the registry, stops its greeting, and hands
// the active pointer to the earliest-created survivor.
func (s *service) removeLocked(id schema.SessionID) (*session, bool) {
	rec, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
		s.order = removeSessionID(s.order, id)
		if rec.greet != nil {
			rec.greet.Stop()
		}
	}
	if s.active == id {
		next := schema.SessionID("")
		if len(s.order) > 0 {
			next = s.order[0]
		}
		s.setActiveLocked(next)
	}
	return rec, ok
}

// dropStale removes a session whose process handle turned out dead. The
// exit pump still emits the exit event once the process is reaped.
func (s *service) dropStale(id schema.SessionID, log pslog.Logger, err error) {
	s.mu.Lock()
	_, ok := s.removeLocked(id)
	s.mu.Unlock()
	if ok {
		log.Warn("service removed stale session", "err", err)
	}
}

// pushNeededLocked records path as pushed and reports whether the push
// should actually be written. Identical consecutive pushes are dropped.
func (s *service) pushNeededLocked(path string) bool {
	if path == "" || s.active == "" {
		return false
	}
	if s.lastPushed == path {
		return false
	}
	s.lastPushed = path
	return true
}

func (s *service) pushDir(term Terminal, id schema.SessionID, path string) {
	if err := term.PushDir(path); err != nil {
		s.dropStale(id, s.logger.With("session", id), err)
	}
}

// treeEventLocked builds a tree_changed event around the given transfer
// nodes.
func (s *service) treeEventLocked(reason schema.TreeChangeReason, transfer []schema.FileNode) schema.WorkspaceEvent {
	return schema.WorkspaceEvent{
		Type:        schema.TreeChanged,
		Name:        s.wsName,
		Root:        s.tree.RootPath(),
		Reason:      reason,
		Tree:        transfer,
		CurrentPath: s.currentPath,
	}
}

func removeSessionID(order []schema.SessionID, id schema.SessionID) []schema.SessionID {
	out := order[:0:0]
	for _, v := range order {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func sortedPaths(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// defaultWorkingDir picks the spawn directory when none was requested:
// the user's home, falling back to the process working directory.
func defaultWorkingDir() string {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return home
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}
