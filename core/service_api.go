package core

import (
	"context"

	"pkt.systems/verkstad/schema"
)

// Service is the transport-agnostic API for shell sessions, the workspace,
// and the file tree.
type Service interface {
	CreateSession(ctx context.Context, req schema.CreateSessionRequest) (schema.CreateSessionResponse, error)
	ListSessions(ctx context.Context, req schema.ListSessionsRequest) (schema.ListSessionsResponse, error)
	KillSession(ctx context.Context, req schema.KillSessionRequest) (schema.KillSessionResponse, error)
	ActivateSession(ctx context.Context, req schema.ActivateSessionRequest) (schema.ActivateSessionResponse, error)
	ActiveSession(ctx context.Context, req schema.ActiveSessionRequest) (schema.ActiveSessionResponse, error)
	WriteSession(ctx context.Context, req schema.WriteSessionRequest) (schema.WriteSessionResponse, error)
	ExecuteLine(ctx context.Context, req schema.ExecuteLineRequest) (schema.ExecuteLineResponse, error)
	ClearSession(ctx context.Context, req schema.ClearSessionRequest) (schema.ClearSessionResponse, error)
	ResizeSession(ctx context.Context, req schema.ResizeSessionRequest) (schema.ResizeSessionResponse, error)
	ChangeDir(ctx context.Context, req schema.ChangeDirRequest) (schema.ChangeDirResponse, error)
	Scrollback(ctx context.Context, req schema.ScrollbackRequest) (schema.ScrollbackResponse, error)
	OpenFolder(ctx context.Context, req schema.OpenFolderRequest) (schema.OpenFolderResponse, error)
	CloseFolder(ctx context.Context, req schema.CloseFolderRequest) (schema.CloseFolderResponse, error)
	WorkspaceState(ctx context.Context, req schema.WorkspaceStateRequest) (schema.WorkspaceStateResponse, error)
	Navigate(ctx context.Context, req schema.NavigateRequest) (schema.NavigateResponse, error)
	RefreshWorkspace(ctx context.Context, req schema.RefreshWorkspaceRequest) (schema.RefreshWorkspaceResponse, error)
	ReadDirectory(ctx context.Context, req schema.ReadDirectoryRequest) (schema.ReadDirectoryResponse, error)
	CreateFile(ctx context.Context, req schema.CreateFileRequest) (schema.CreateFileResponse, error)
	CreateFolder(ctx context.Context, req schema.CreateFolderRequest) (schema.CreateFolderResponse, error)
	DeleteNode(ctx context.Context, req schema.DeleteNodeRequest) (schema.DeleteNodeResponse, error)
	RenameNode(ctx context.Context, req schema.RenameNodeRequest) (schema.RenameNodeResponse, error)
	MoveNode(ctx context.Context, req schema.MoveNodeRequest) (schema.MoveNodeResponse, error)
	SaveFile(ctx context.Context, req schema.SaveFileRequest) (schema.SaveFileResponse, error)
	Close() error
}
