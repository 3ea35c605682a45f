package core

import (
	"time"

	"pkt.systems/verkstad/internal/ptysession"
)

// Terminal is one live shell bound to a pseudo-terminal. Output delivers
// chunks in process order and closes when the process side goes away;
// Done closes once the exit code is known.
type Terminal interface {
	Pid() int
	Output() <-chan []byte
	Done() <-chan struct{}
	ExitCode() int
	Write(data []byte) error
	ExecuteLine(line string) error
	Clear() error
	PushDir(path string) error
	Greet(banner string) error
	Resize(cols, rows int) error
	Terminate(grace time.Duration)
}

// TerminalStarter spawns terminals for new sessions.
type TerminalStarter interface {
	Start(cfg ptysession.Config) (Terminal, error)
}

type ptyStarter struct{}

// NewPTYStarter returns the production starter backed by real
// pseudo-terminals.
func NewPTYStarter() TerminalStarter {
	return ptyStarter{}
}

func (ptyStarter) Start(cfg ptysession.Config) (Terminal, error) {
	sess, err := ptysession.Start(cfg)
	if err != nil {
		return nil, err
	}
	return sess, nil
}
