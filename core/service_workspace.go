package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"pkt.systems/pslog"
	"pkt.systems/verkstad/internal/filetree"
	"pkt.systems/verkstad/internal/logx"
	"pkt.systems/verkstad/schema"
)

func (s *service) OpenFolder(ctx context.Context, req schema.OpenFolderRequest) (schema.OpenFolderResponse, error) {
	if ctx == nil {
		return schema.OpenFolderResponse{}, errors.New("missing context")
	}
	raw := strings.TrimSpace(req.Path)
	if raw == "" {
		return schema.OpenFolderResponse{}, schema.ErrInvalidPath
	}
	log := logx.WithPath(pslog.Ctx(ctx), raw)
	abs, err := filepath.Abs(raw)
	if err != nil {
		log.Warn("service workspace open failed", "err", err)
		return schema.OpenFolderResponse{}, fmt.Errorf("%w: %s", schema.ErrInvalidPath, raw)
	}
	info, err := os.Stat(abs)
	if err != nil {
		log.Warn("service workspace open failed", "err", err)
		return schema.OpenFolderResponse{}, fmt.Errorf("%w: %s", schema.ErrInvalidPath, raw)
	}
	if !info.IsDir() {
		log.Warn("service workspace open failed", "err", schema.ErrNotDirectory)
		return schema.OpenFolderResponse{}, fmt.Errorf("%w: %s", schema.ErrNotDirectory, raw)
	}
	root := schema.NormalizePath(abs)
	nodes := s.scanner.Scan(ctx, root)
	tree := filetree.FromNodes(root, nodes)
	name := path.Base(root)

	s.mu.Lock()
	s.wsOpen = true
	s.wsName = name
	s.tree = tree
	s.currentPath = root
	s.expanded = make(map[string]bool)
	transfer := tree.Nodes()
	active := s.active
	var term Terminal
	if rec := s.sessions[active]; rec != nil {
		term = rec.term
	}
	push := term != nil && s.pushNeededLocked(root)
	event := schema.WorkspaceEvent{
		Type:        schema.WorkspaceOpened,
		Name:        name,
		Root:        root,
		Tree:        transfer,
		CurrentPath: root,
	}
	s.mu.Unlock()

	if push {
		s.pushDir(term, active, root)
	}
	s.emitWorkspaceEvent(event)
	log.Info("service workspace opened", "name", name, "nodes", len(transfer))
	return schema.OpenFolderResponse{Name: name, Root: root, Tree: transfer}, nil
}

func (s *service) CloseFolder(ctx context.Context, req schema.CloseFolderRequest) (schema.CloseFolderResponse, error) {
	_ = req
	s.mu.Lock()
	wasOpen := s.wsOpen
	s.wsOpen = false
	s.wsName = ""
	s.tree = filetree.New()
	s.currentPath = ""
	s.expanded = make(map[string]bool)
	s.mu.Unlock()

	if wasOpen {
		s.emitWorkspaceEvent(schema.WorkspaceEvent{Type: schema.WorkspaceClosed})
		pslog.Ctx(ctx).Info("service workspace closed")
	}
	return schema.CloseFolderResponse{}, nil
}

func (s *service) WorkspaceState(ctx context.Context, req schema.WorkspaceStateRequest) (schema.WorkspaceStateResponse, error) {
	_ = ctx
	_ = req
	s.mu.Lock()
	defer s.mu.Unlock()
	return schema.WorkspaceStateResponse{Workspace: schema.WorkspaceSnapshot{
		Open:        s.wsOpen,
		Root:        s.tree.RootPath(),
		Name:        s.wsName,
		CurrentPath: s.currentPath,
		Tree:        s.tree.Nodes(),
	}}, nil
}

func (s *service) Navigate(ctx context.Context, req schema.NavigateRequest) (schema.NavigateResponse, error) {
	ref := filetree.Ref{ID: req.NodeID, Path: req.Path}
	if ref.ID == "" && strings.TrimSpace(ref.Path) == "" {
		return schema.NavigateResponse{}, schema.ErrInvalidRequest
	}

	s.mu.Lock()
	node, ok := s.tree.Find(ref)
	if !ok {
		s.mu.Unlock()
		return schema.NavigateResponse{}, schema.ErrNodeNotFound
	}
	target := ""
	if node.IsDir() {
		key := node.Path
		if key == "" {
			key = string(node.ID)
		}
		if s.expanded[key] {
			delete(s.expanded, key)
		} else {
			s.expanded[key] = true
		}
		target = node.Path
	} else if parent, ok := s.tree.ParentOf(ref); ok {
		target = parent.Path
	} else if s.wsOpen {
		// Top-level file: containment is the workspace root itself.
		target = s.tree.RootPath()
	}
	if target != "" {
		s.currentPath = target
	}
	current := s.currentPath
	expanded := sortedPaths(s.expanded)
	active := s.active
	var term Terminal
	push := false
	if target != "" {
		if rec := s.sessions[active]; rec != nil {
			term = rec.term
			push = s.pushNeededLocked(target)
		}
	}
	s.mu.Unlock()

	if push {
		s.pushDir(term, active, target)
	}
	pslog.Ctx(ctx).Debug("service navigated", "path", current, "pushed", push)
	return schema.NavigateResponse{CurrentPath: current, Expanded: expanded}, nil
}

func (s *service) RefreshWorkspace(ctx context.Context, req schema.RefreshWorkspaceRequest) (schema.RefreshWorkspaceResponse, error) {
	reason := req.Reason
	if reason == "" {
		reason = schema.TreeChangeRefresh
	}
	s.mu.Lock()
	open := s.wsOpen
	root := s.tree.RootPath()
	s.mu.Unlock()
	if !open {
		return schema.RefreshWorkspaceResponse{}, schema.ErrNoWorkspace
	}

	nodes := s.scanner.Scan(ctx, root)
	tree := filetree.FromNodes(root, nodes)

	s.mu.Lock()
	if !s.wsOpen || s.tree.RootPath() != root {
		s.mu.Unlock()
		return schema.RefreshWorkspaceResponse{}, schema.ErrNoWorkspace
	}
	s.tree = tree
	transfer := tree.Nodes()
	event := s.treeEventLocked(reason, transfer)
	s.mu.Unlock()

	s.emitWorkspaceEvent(event)
	pslog.Ctx(ctx).Debug("service workspace refreshed", "reason", reason, "nodes", len(transfer))
	return schema.RefreshWorkspaceResponse{Tree: transfer}, nil
}
