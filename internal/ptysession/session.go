// Package ptysession runs one shell process behind a pseudo-terminal and
// exposes its raw byte streams. Policy (registries, events, scrollback)
// lives with the caller; a Session only owns the process and its PTY.
package ptysession

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/creack/pty"

	"pkt.systems/verkstad/schema"
)

// Config describes one shell spawn.
type Config struct {
	WorkingDir string
	Cols       int
	Rows       int
	// Shell overrides the platform default when set.
	Shell     string
	ShellArgs []string
	// Env entries are appended after the inherited environment and the
	// forced color variables, so they win on conflict.
	Env []string
}

// Session is a live shell process attached to a PTY. Output is read into
// the session's own channel, which closes when the process side of the
// PTY is gone. A session is single use; there is no restart.
type Session struct {
	platform Platform
	cmd      *exec.Cmd
	ptmx     *os.File

	mu     sync.Mutex
	closed bool

	output  chan []byte
	exited  chan struct{}
	code    atomic.Int64
	dropped atomic.Int64
}

const outputChunkSize = 4096

// Start spawns the shell and begins reading output. The returned session
// is running; spawn failure returns an error and no session.
func Start(cfg Config) (*Session, error) {
	p := Current()
	shell, args := cfg.Shell, cfg.ShellArgs
	if shell == "" {
		shell, args = p.Shell, p.ShellArgs
	}
	cmd := exec.Command(shell, args...)
	cmd.Dir = cfg.WorkingDir
	cmd.Env = append(os.Environ(), "TERM=xterm-256color", "COLORTERM=truecolor")
	cmd.Env = append(cmd.Env, cfg.Env...)

	ws := &pty.Winsize{Rows: uint16(cfg.Rows), Cols: uint16(cfg.Cols)}
	ptmx, err := pty.StartWithSize(cmd, ws)
	if err != nil {
		return nil, fmt.Errorf("spawn shell %s: %w", shell, err)
	}

	s := &Session{
		platform: p,
		cmd:      cmd,
		ptmx:     ptmx,
		output:   make(chan []byte, 64),
		exited:   make(chan struct{}),
	}
	go s.readLoop()
	go s.reap()
	return s, nil
}

// Platform returns the capability table the session was spawned with.
func (s *Session) Platform() Platform {
	return s.platform
}

// Pid returns the shell's process id.
func (s *Session) Pid() int {
	if s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

// Output is the session's output stream. Chunks arrive in the order the
// process produced them; the channel closes when output ends. Chunks are
// dropped, not buffered indefinitely, when the consumer falls behind.
func (s *Session) Output() <-chan []byte {
	return s.output
}

// Done is closed once the process has been reaped.
func (s *Session) Done() <-chan struct{} {
	return s.exited
}

// ExitCode is valid after Done is closed.
func (s *Session) ExitCode() int {
	return int(s.code.Load())
}

// Dropped counts output chunks discarded because the consumer fell behind.
func (s *Session) Dropped() int64 {
	return s.dropped.Load()
}

// Write sends raw bytes to the shell's input.
func (s *Session) Write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return schema.ErrSessionExited
	}
	if _, err := s.ptmx.Write(data); err != nil {
		return fmt.Errorf("write input: %w", err)
	}
	return nil
}

// ExecuteLine submits a command line, appending the platform terminator.
func (s *Session) ExecuteLine(line string) error {
	return s.Write([]byte(line + s.platform.LineTerminator))
}

// Clear runs the platform clear command in the shell.
func (s *Session) Clear() error {
	return s.ExecuteLine(s.platform.ClearCommand)
}

// PushDir runs a quoted cd to path in the shell.
func (s *Session) PushDir(path string) error {
	return s.ExecuteLine(s.platform.ChangeDirCommand(path))
}

// Greet clears the screen and echoes the banner. Used once shortly after
// spawn; callers skip it when the session is already gone.
func (s *Session) Greet(banner string) error {
	if err := s.Clear(); err != nil {
		return err
	}
	if banner == "" {
		return nil
	}
	return s.ExecuteLine(s.platform.EchoCommand(banner))
}

// Resize updates the PTY geometry.
func (s *Session) Resize(cols, rows int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return schema.ErrSessionExited
	}
	if err := pty.Setsize(s.ptmx, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)}); err != nil {
		return fmt.Errorf("resize: %w", err)
	}
	return nil
}

// Terminate closes the PTY, asks the process to exit and escalates to a
// hard kill after grace. It returns once the process is reaped or killed.
func (s *Session) Terminate(grace time.Duration) {
	s.closePTY()
	proc := s.cmd.Process
	if proc == nil {
		return
	}
	// Signal is not supported everywhere; the kill below covers that.
	_ = proc.Signal(syscall.SIGTERM)
	select {
	case <-s.exited:
	case <-time.After(grace):
		_ = proc.Kill()
		<-s.exited
	}
}

func (s *Session) closePTY() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.ptmx.Close()
}

func (s *Session) readLoop() {
	buf := make([]byte, outputChunkSize)
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case s.output <- data:
			default:
				s.dropped.Add(1)
			}
		}
		if err != nil {
			close(s.output)
			return
		}
	}
}

func (s *Session) reap() {
	err := s.cmd.Wait()
	code := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
	}
	s.code.Store(int64(code))
	s.closePTY()
	close(s.exited)
}
