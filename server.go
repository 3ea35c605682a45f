// Package verkstad composes the session engine, the workspace watcher,
// and the local HTTP API into one runnable server.
package verkstad

import (
	"context"
	"errors"
	"sync"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/verkstad/core"
	"pkt.systems/verkstad/httpapi"
	"pkt.systems/verkstad/internal/eventbus"
	"pkt.systems/verkstad/internal/watcher"
	"pkt.systems/verkstad/schema"
)

// Server runs the composed engine until stopped.
type Server interface {
	Start(ctx context.Context) error
	Wait() error
	Stop(ctx context.Context) error
}

// ServerConfig configures the compositor.
type ServerConfig struct {
	Engine schema.EngineConfig
	HTTP   httpapi.Config
	// Watch enables the filesystem watcher for open workspaces.
	Watch         bool
	WatchDebounce time.Duration
}

// ServerDeps captures dependencies required to build the server.
type ServerDeps struct {
	ServiceDeps core.ServiceDeps
}

// New constructs a verkstad server. The engine's events fan out to the
// HTTP stream hub, the internal event bus, and any sink provided in deps.
func New(cfg ServerConfig, deps ServerDeps) (Server, error) {
	normalized, err := schema.NormalizeEngineConfig(cfg.Engine)
	if err != nil {
		return nil, err
	}
	cfg.Engine = normalized

	serviceDeps := deps.ServiceDeps
	logger := serviceDeps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	bus := eventbus.New(logger)
	hub := httpapi.NewHub(cfg.HTTP.StreamHistory, cfg.HTTP.StreamBuffer, logger)

	sinks := make([]core.EventSink, 0, 3)
	if serviceDeps.EventSink != nil {
		sinks = append(sinks, serviceDeps.EventSink)
	}
	sinks = append(sinks, hub, bus)
	serviceDeps.EventSink = eventFanout{sinks: sinks}

	service, err := core.NewService(cfg.Engine, serviceDeps)
	if err != nil {
		return nil, err
	}

	return &compositeServer{
		cfg:     cfg,
		service: service,
		bus:     bus,
		httpSrv: httpapi.NewServer(cfg.HTTP, service, hub),
	}, nil
}

type compositeServer struct {
	cfg     ServerConfig
	service core.Service
	bus     *eventbus.Bus
	httpSrv *httpapi.Server
	logger  pslog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	errCh   chan error
	started bool
	loops   sync.WaitGroup
}

func (s *compositeServer) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		pslog.Ctx(ctx).Warn("server start rejected", "reason", "already started")
		return errors.New("server already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.errCh = make(chan error, 2)
	s.started = true
	s.logger = pslog.Ctx(s.ctx)
	s.mu.Unlock()

	log := s.logger
	log.Info(
		"server start",
		"http_addr", s.cfg.HTTP.Addr,
		"watch", s.cfg.Watch,
	)
	go func() {
		if err := httpapi.ListenAndServe(s.ctx, s.cfg.HTTP.Addr, s.httpSrv.Handler()); err != nil {
			log.Error("http server failed", "err", err)
			s.errCh <- err
		}
	}()
	if s.cfg.Watch {
		// Subscribe before returning so a workspace opened right after
		// Start cannot slip past the loop.
		events, unsubscribe := s.bus.Subscribe()
		s.loops.Add(1)
		go s.watchLoop(events, unsubscribe)
	}
	return nil
}

func (s *compositeServer) Wait() error {
	s.mu.Lock()
	ctx := s.ctx
	errCh := s.errCh
	started := s.started
	s.mu.Unlock()
	if !started {
		return errors.New("server not started")
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil {
			pslog.Ctx(ctx).Error("server stopped", "err", err)
			_ = s.Stop(context.Background())
			return err
		}
		return nil
	}
}

func (s *compositeServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	started := s.started
	log := s.logger
	s.mu.Unlock()
	if !started {
		return nil
	}
	if log == nil {
		log = pslog.Ctx(context.Background())
	}
	log.Info("server stop requested")
	if err := s.service.Close(); err != nil {
		log.Warn("server engine close failed", "err", err)
	} else {
		log.Info("server engine closed")
	}
	if cancel != nil {
		cancel()
	}
	s.loops.Wait()
	if ctx == nil {
		log.Info("server stop completed")
		return nil
	}
	select {
	case <-ctx.Done():
		log.Warn("server stop timed out", "err", ctx.Err())
		return ctx.Err()
	case <-s.ctx.Done():
		log.Info("server stopped")
		return nil
	}
}

// watchLoop follows workspace lifecycle events and keeps a filesystem
// watcher on the current root. Watcher signals trigger an external
// refresh; the refresh result travels back out as a tree event.
func (s *compositeServer) watchLoop(events <-chan eventbus.Event, unsubscribe func()) {
	defer s.loops.Done()
	defer unsubscribe()
	log := s.logger.With("component", "watch")

	var w *watcher.Watcher
	var changes <-chan struct{}
	stop := func() {
		if w == nil {
			return
		}
		if err := w.Close(); err != nil {
			log.Debug("watcher close failed", "err", err)
		}
		w = nil
		changes = nil
	}
	defer stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if event.Type != eventbus.EventWorkspace {
				continue
			}
			switch event.Workspace.Type {
			case schema.WorkspaceOpened:
				stop()
				next, err := watcher.New(event.Workspace.Root, s.cfg.WatchDebounce, s.cfg.Engine.NoiseDirs, log)
				if err != nil {
					log.Warn("watcher start failed", "root", event.Workspace.Root, "err", err)
					continue
				}
				w = next
				changes = next.Changes()
				log.Info("watcher started", "root", event.Workspace.Root)
			case schema.WorkspaceClosed:
				stop()
				log.Info("watcher stopped")
			}
		case _, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			_, err := s.service.RefreshWorkspace(s.ctx, schema.RefreshWorkspaceRequest{
				Reason: schema.TreeChangeExternal,
			})
			if err != nil {
				// The workspace may have closed between the signal and the
				// refresh.
				log.Debug("external refresh skipped", "err", err)
			}
		}
	}
}
