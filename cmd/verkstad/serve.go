package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/verkstad"
	"pkt.systems/verkstad/core"
	"pkt.systems/verkstad/httpapi"
	"pkt.systems/verkstad/internal/appconfig"
	"pkt.systems/verkstad/internal/version"
	"pkt.systems/verkstad/schema"
)

const serveBanner = `
┌───────────────────────────────────────┐
│  verkstad · workspace session engine  │
└───────────────────────────────────────┘
`

func newServeCmd() *cobra.Command {
	var cfgPath string
	var noBanner bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the verkstad engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			logMode := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_MODE")))
			showBanner := !noBanner && logMode != "json" && logMode != "structured"
			if showBanner {
				_, _ = fmt.Fprint(cmd.OutOrStdout(), serveBanner)
			}
			logger := pslog.Ctx(cmd.Context())
			logger.Info("verkstad starting", "version", version.CurrentWithDirty())
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}

			serverCfg := verkstad.ServerConfig{
				Engine: cfg.EngineConfig(),
				HTTP: httpapi.Config{
					Addr:          cfg.HTTP.Addr,
					StreamBuffer:  cfg.HTTP.StreamBuffer,
					StreamHistory: cfg.HTTP.StreamHistory,
				},
				Watch:         cfg.Workspace.Watch,
				WatchDebounce: cfg.WatchDebounce(),
			}
			serverDeps := verkstad.ServerDeps{
				ServiceDeps: core.ServiceDeps{
					Terminals: core.NewPTYStarter(),
					Logger:    logger,
				},
			}
			if cfg.Logging.TraceOutput {
				serverDeps.ServiceDeps.EventSink = outputTracer{log: logger}
			}
			server, err := verkstad.New(serverCfg, serverDeps)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Stop(stopCtx); err != nil {
					logger.Warn("server stop failed", "err", err)
				}
			}()
			logger.Info("http server listening", "addr", serverCfg.HTTP.Addr)
			if err := server.Start(ctx); err != nil {
				return err
			}
			return server.Wait()
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().BoolVar(&noBanner, "no-banner", false, "disable startup banner")
	return cmd
}

// outputTracer logs raw session output at trace level. Wired only when
// logging.trace_output is enabled; the chunks can be large and noisy.
type outputTracer struct {
	log pslog.Logger
}

func (t outputTracer) OnOutput(event schema.OutputEvent) {
	t.log.Trace("session output", "session", event.SessionID, "data", event.Data)
}

func (t outputTracer) OnSessionEvent(schema.SessionEvent)     {}
func (t outputTracer) OnWorkspaceEvent(schema.WorkspaceEvent) {}
