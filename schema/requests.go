package schema

// Session lifecycle.

// CreateSessionRequest describes a request to spawn a terminal session.
type CreateSessionRequest struct {
	WorkingDir string
	WindowID   WindowID
}

// CreateSessionResponse reports the created session snapshot.
type CreateSessionResponse struct {
	Session SessionSnapshot
}

// ListSessionsRequest describes a request to list sessions.
type ListSessionsRequest struct{}

// ListSessionsResponse reports sessions and the active id.
type ListSessionsResponse struct {
	Sessions []SessionSnapshot
	Active   SessionID
}

// KillSessionRequest describes a request to terminate a session.
type KillSessionRequest struct {
	SessionID SessionID
}

// KillSessionResponse reports whether a live session was removed.
type KillSessionResponse struct {
	Killed bool
}

// ActivateSessionRequest describes a request to mark a session active.
type ActivateSessionRequest struct {
	SessionID SessionID
}

// ActivateSessionResponse reports the active session id.
type ActivateSessionResponse struct {
	Active SessionID
}

// ActiveSessionRequest describes a request to read the active session id.
type ActiveSessionRequest struct{}

// ActiveSessionResponse reports the active session id, empty when none.
type ActiveSessionResponse struct {
	Active SessionID
}

// Session input.

// WriteSessionRequest describes raw input for a session's process.
type WriteSessionRequest struct {
	SessionID SessionID
	Data      string
}

// WriteSessionResponse reports completion of the write.
type WriteSessionResponse struct{}

// ExecuteLineRequest describes a command line to run in a session.
type ExecuteLineRequest struct {
	SessionID SessionID
	Line      string
}

// ExecuteLineResponse reports completion of the submission.
type ExecuteLineResponse struct{}

// ClearSessionRequest describes a request to clear a session's screen.
type ClearSessionRequest struct {
	SessionID SessionID
}

// ClearSessionResponse reports completion of the clear.
type ClearSessionResponse struct{}

// ResizeSessionRequest describes a request to resize a session's terminal.
type ResizeSessionRequest struct {
	SessionID SessionID
	Cols      int
	Rows      int
}

// ResizeSessionResponse reports completion of the resize.
type ResizeSessionResponse struct{}

// ChangeDirRequest describes a request to change a session's directory.
type ChangeDirRequest struct {
	SessionID SessionID
	Path      string
}

// ChangeDirResponse reports the directory pushed to the session.
type ChangeDirResponse struct {
	Path string
}

// ScrollbackRequest describes a request to fetch retained session output.
type ScrollbackRequest struct {
	SessionID SessionID
	MaxBytes  int
}

// ScrollbackResponse reports the scrollback snapshot.
type ScrollbackResponse struct {
	Scrollback ScrollbackSnapshot
}

// Workspace lifecycle.

// OpenFolderRequest describes a request to open a folder as the workspace.
type OpenFolderRequest struct {
	Path string
}

// OpenFolderResponse reports the opened workspace and its scanned tree.
type OpenFolderResponse struct {
	Name string
	Root string
	Tree []FileNode
}

// CloseFolderRequest describes a request to close the workspace.
type CloseFolderRequest struct{}

// CloseFolderResponse reports completion of the close.
type CloseFolderResponse struct{}

// WorkspaceStateRequest describes a request to read workspace state.
type WorkspaceStateRequest struct{}

// WorkspaceStateResponse reports the workspace snapshot.
type WorkspaceStateResponse struct {
	Workspace WorkspaceSnapshot
}

// RefreshWorkspaceRequest describes a request to rescan the workspace
// tree. An empty reason defaults to TreeChangeRefresh.
type RefreshWorkspaceRequest struct {
	Reason TreeChangeReason
}

// RefreshWorkspaceResponse reports the rescanned nodes.
type RefreshWorkspaceResponse struct {
	Tree []FileNode
}

// NavigateRequest describes a navigation to a tree node or path.
type NavigateRequest struct {
	NodeID NodeID
	Path   string
}

// NavigateResponse reports the resulting current path and expansions.
type NavigateResponse struct {
	CurrentPath string
	Expanded    []string
}

// Tree reads.

// ReadDirectoryRequest describes a request to scan a directory subtree.
type ReadDirectoryRequest struct {
	Path     string
	MaxDepth int
}

// ReadDirectoryResponse reports the scanned nodes.
type ReadDirectoryResponse struct {
	Tree []FileNode
}

// Tree mutations.

// CreateFileRequest describes a request to create a file.
type CreateFileRequest struct {
	Path     string
	ParentID NodeID
	Name     string
	Content  string
}

// CreateFileResponse reports the created file's path.
type CreateFileResponse struct {
	Path string
}

// CreateFolderRequest describes a request to create a directory.
type CreateFolderRequest struct {
	Path     string
	ParentID NodeID
	Name     string
}

// CreateFolderResponse reports the created directory's path.
type CreateFolderResponse struct {
	Path string
}

// DeleteNodeRequest describes a request to delete a file or directory.
type DeleteNodeRequest struct {
	Path   string
	NodeID NodeID
}

// DeleteNodeResponse reports completion of the delete.
type DeleteNodeResponse struct{}

// RenameNodeRequest describes a request to rename a node in place.
type RenameNodeRequest struct {
	Path    string
	NodeID  NodeID
	NewName string
}

// RenameNodeResponse reports the node's path after the rename.
type RenameNodeResponse struct {
	Path string
}

// MoveNodeRequest describes a request to move a node to a directory.
type MoveNodeRequest struct {
	SourcePath string
	TargetDir  string
	NodeID     NodeID
	TargetID   NodeID
}

// MoveNodeResponse reports the node's path after the move.
type MoveNodeResponse struct {
	Path string
}

// SaveFileRequest describes a request to write file contents.
type SaveFileRequest struct {
	Path    string
	Content string
}

// SaveFileResponse reports completion of the write.
type SaveFileResponse struct{}
