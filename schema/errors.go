package schema

import "errors"

var (
	// ErrInvalidRequest indicates a malformed request payload.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrSessionNotFound indicates a requested session could not be found.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExited indicates the session's process has already terminated.
	ErrSessionExited = errors.New("session already exited")
	// ErrNoWorkspace indicates no folder is open.
	ErrNoWorkspace = errors.New("no folder open")
	// ErrNodeNotFound indicates a tree node could not be resolved.
	ErrNodeNotFound = errors.New("node not found")
	// ErrInvalidPath indicates a path that cannot be used.
	ErrInvalidPath = errors.New("invalid path")
	// ErrInvalidName indicates a node name with separators or reserved parts.
	ErrInvalidName = errors.New("invalid name")
	// ErrSourceMissing indicates the source of a mutation does not exist.
	ErrSourceMissing = errors.New("source does not exist")
	// ErrDestinationExists indicates the target of a mutation already exists.
	ErrDestinationExists = errors.New("destination already exists")
	// ErrNotDirectory indicates a file where a directory was required.
	ErrNotDirectory = errors.New("not a directory")
	// ErrEngineClosed indicates the engine has shut down.
	ErrEngineClosed = errors.New("engine closed")
)
