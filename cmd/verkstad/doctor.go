package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/verkstad/internal/appconfig"
	"pkt.systems/verkstad/internal/ptysession"
	"pkt.systems/verkstad/schema"
)

func newDoctorCmd() *cobra.Command {
	var cfgPath string
	var skipPTY bool
	var ptyTimeout time.Duration
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run verkstad diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())

			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			configPath := cfgPath
			if strings.TrimSpace(configPath) == "" {
				path, err := appconfig.DefaultConfigPath()
				if err != nil {
					return err
				}
				configPath = path
			}
			logger.Info("doctor start", "config", configPath)

			engineCfg, err := schema.NormalizeEngineConfig(cfg.EngineConfig())
			if err != nil {
				return err
			}
			platform := ptysession.Current()
			shell := engineCfg.Shell
			shellArgs := engineCfg.ShellArgs
			if shell == "" {
				shell = platform.Shell
				shellArgs = platform.ShellArgs
			}
			logger.Info("doctor platform",
				"name", platform.Name,
				"shell", shell,
				"shell_args", strings.Join(shellArgs, " "),
				"line_terminator", fmt.Sprintf("%q", platform.LineTerminator),
				"clear_command", platform.ClearCommand,
				"backslash_paths", platform.BackslashPaths,
			)

			resolved, err := resolveShell(shell)
			if err != nil {
				return fmt.Errorf("doctor shell: %w", err)
			}
			logger.Info("doctor shell ok", "path", resolved)

			if skipPTY {
				logger.Info("doctor pty skipped")
			} else {
				if err := probePTY(engineCfg, ptyTimeout); err != nil {
					return err
				}
				logger.Info("doctor pty ok")
			}
			logger.Info("doctor complete")
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().BoolVar(&skipPTY, "skip-pty", false, "skip the PTY spawn check")
	cmd.Flags().DurationVar(&ptyTimeout, "pty-timeout", 10*time.Second, "timeout for the PTY spawn check")
	return cmd
}

// resolveShell locates the shell binary. Absolute paths are checked
// directly; bare names go through PATH.
func resolveShell(shell string) (string, error) {
	shell = strings.TrimSpace(shell)
	if shell == "" {
		return "", errors.New("shell is empty")
	}
	if filepath.IsAbs(shell) {
		info, err := os.Stat(shell)
		if err != nil {
			return "", err
		}
		if info.IsDir() {
			return "", fmt.Errorf("%s is a directory", shell)
		}
		return shell, nil
	}
	return exec.LookPath(shell)
}

// probePTY spawns the configured shell behind a real PTY, asks it to echo,
// and waits for any output to come back.
func probePTY(cfg schema.EngineConfig, timeout time.Duration) error {
	sess, err := ptysession.Start(ptysession.Config{
		WorkingDir: os.TempDir(),
		Cols:       cfg.TerminalCols,
		Rows:       cfg.TerminalRows,
		Shell:      cfg.Shell,
		ShellArgs:  cfg.ShellArgs,
	})
	if err != nil {
		return fmt.Errorf("doctor pty spawn: %w", err)
	}
	defer sess.Terminate(2 * time.Second)

	if err := sess.ExecuteLine(sess.Platform().EchoCommand("verkstad doctor")); err != nil {
		return fmt.Errorf("doctor pty write: %w", err)
	}
	select {
	case _, ok := <-sess.Output():
		if !ok {
			return fmt.Errorf("doctor pty: output closed before any data (exit %d)", sess.ExitCode())
		}
		return nil
	case <-sess.Done():
		return fmt.Errorf("doctor pty: shell exited early (code %d)", sess.ExitCode())
	case <-time.After(timeout):
		return errors.New("doctor pty: no output before timeout")
	}
}
