package core

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/verkstad/internal/filetree"
	"pkt.systems/verkstad/internal/logx"
	"pkt.systems/verkstad/schema"
)

// maxNameProbe bounds the search for an unused auto-generated name.
const maxNameProbe = 10000

func (s *service) ReadDirectory(ctx context.Context, req schema.ReadDirectoryRequest) (schema.ReadDirectoryResponse, error) {
	raw := strings.TrimSpace(req.Path)
	if raw == "" {
		return schema.ReadDirectoryResponse{}, schema.ErrInvalidPath
	}
	depth := req.MaxDepth
	if depth <= 0 {
		depth = s.cfg.ScanDepth
	}
	nodes := s.scanner.ScanDepth(ctx, raw, depth)
	logx.WithPath(pslog.Ctx(ctx), raw).Debug("service directory read", "nodes", len(nodes), "depth", depth)
	return schema.ReadDirectoryResponse{Tree: nodes}, nil
}

func (s *service) CreateFile(ctx context.Context, req schema.CreateFileRequest) (schema.CreateFileResponse, error) {
	log := pslog.Ctx(ctx)
	name := strings.TrimSpace(req.Name)

	s.mu.Lock()
	if s.wsOpen && s.tree.DiskBacked() {
		dir := s.diskTargetLocked(req.Path, req.ParentID)
		root := s.tree.RootPath()
		s.mu.Unlock()
		if name == "" {
			name = nextAvailableName(dir, "New File")
		} else if err := schema.ValidateName(name); err != nil {
			return schema.CreateFileResponse{}, err
		}
		full := schema.NormalizePath(filepath.Join(dir, name))
		if err := filetree.WriteNewFile(full, []byte(req.Content)); err != nil {
			logx.WithPath(log, full).Warn("service file create failed", "err", err)
			return schema.CreateFileResponse{}, err
		}
		s.refreshAfterMutation(ctx, root)
		logx.WithPath(log, full).Info("service file created")
		return schema.CreateFileResponse{Path: full}, nil
	}

	parent := s.virtualTargetLocked(req.Path, req.ParentID)
	if name == "" {
		name = s.virtualNextNameLocked(parent, "New File")
	}
	nt, node, err := s.tree.Insert(parent, schema.FileNode{
		Name:     name,
		Kind:     schema.KindFile,
		Content:  req.Content,
		Size:     int64(len(req.Content)),
		Modified: time.Now(),
	})
	if err != nil {
		s.mu.Unlock()
		log.Warn("service file create failed", "name", name, "err", err)
		return schema.CreateFileResponse{}, err
	}
	s.tree = nt
	event := s.treeEventLocked(schema.TreeChangeMutation, nt.Nodes())
	s.mu.Unlock()

	s.emitWorkspaceEvent(event)
	log.Info("service file created", "name", name)
	return schema.CreateFileResponse{Path: node.Path}, nil
}

func (s *service) CreateFolder(ctx context.Context, req schema.CreateFolderRequest) (schema.CreateFolderResponse, error) {
	log := pslog.Ctx(ctx)
	name := strings.TrimSpace(req.Name)

	s.mu.Lock()
	if s.wsOpen && s.tree.DiskBacked() {
		dir := s.diskTargetLocked(req.Path, req.ParentID)
		root := s.tree.RootPath()
		s.mu.Unlock()
		if name == "" {
			name = nextAvailableName(dir, "New Folder")
		} else if err := schema.ValidateName(name); err != nil {
			return schema.CreateFolderResponse{}, err
		}
		full := schema.NormalizePath(filepath.Join(dir, name))
		if err := filetree.MakeDir(full); err != nil {
			logx.WithPath(log, full).Warn("service folder create failed", "err", err)
			return schema.CreateFolderResponse{}, err
		}
		s.refreshAfterMutation(ctx, root)
		logx.WithPath(log, full).Info("service folder created")
		return schema.CreateFolderResponse{Path: full}, nil
	}

	parent := s.virtualTargetLocked(req.Path, req.ParentID)
	if name == "" {
		name = s.virtualNextNameLocked(parent, "New Folder")
	}
	nt, node, err := s.tree.Insert(parent, schema.FileNode{
		Name:     name,
		Kind:     schema.KindDirectory,
		Modified: time.Now(),
	})
	if err != nil {
		s.mu.Unlock()
		log.Warn("service folder create failed", "name", name, "err", err)
		return schema.CreateFolderResponse{}, err
	}
	s.tree = nt
	event := s.treeEventLocked(schema.TreeChangeMutation, nt.Nodes())
	s.mu.Unlock()

	s.emitWorkspaceEvent(event)
	log.Info("service folder created", "name", name)
	return schema.CreateFolderResponse{Path: node.Path}, nil
}

func (s *service) DeleteNode(ctx context.Context, req schema.DeleteNodeRequest) (schema.DeleteNodeResponse, error) {
	log := pslog.Ctx(ctx)

	s.mu.Lock()
	if s.wsOpen && s.tree.DiskBacked() {
		target, ok := s.nodePathLocked(req.Path, req.NodeID)
		root := s.tree.RootPath()
		s.mu.Unlock()
		if !ok {
			return schema.DeleteNodeResponse{}, schema.ErrNodeNotFound
		}
		if err := filetree.RemoveTree(target); err != nil {
			logx.WithPath(log, target).Warn("service delete failed", "err", err)
			return schema.DeleteNodeResponse{}, err
		}
		s.refreshAfterMutation(ctx, root)
		logx.WithPath(log, target).Info("service node deleted")
		return schema.DeleteNodeResponse{}, nil
	}

	nt, err := s.tree.Remove(filetree.Ref{ID: req.NodeID, Path: req.Path})
	if err != nil {
		s.mu.Unlock()
		log.Warn("service delete failed", "err", err)
		return schema.DeleteNodeResponse{}, err
	}
	s.tree = nt
	event := s.treeEventLocked(schema.TreeChangeMutation, nt.Nodes())
	s.mu.Unlock()

	s.emitWorkspaceEvent(event)
	log.Info("service node deleted")
	return schema.DeleteNodeResponse{}, nil
}

func (s *service) RenameNode(ctx context.Context, req schema.RenameNodeRequest) (schema.RenameNodeResponse, error) {
	log := pslog.Ctx(ctx)

	s.mu.Lock()
	if s.wsOpen && s.tree.DiskBacked() {
		target, ok := s.nodePathLocked(req.Path, req.NodeID)
		root := s.tree.RootPath()
		s.mu.Unlock()
		if !ok {
			return schema.RenameNodeResponse{}, schema.ErrNodeNotFound
		}
		renamed, err := filetree.RenameInPlace(target, req.NewName)
		if err != nil {
			logx.WithPath(log, target).Warn("service rename failed", "err", err)
			return schema.RenameNodeResponse{}, err
		}
		s.refreshAfterMutation(ctx, root)
		logx.WithPath(log, renamed).Info("service node renamed")
		return schema.RenameNodeResponse{Path: renamed}, nil
	}

	nt, node, err := s.tree.Rename(filetree.Ref{ID: req.NodeID, Path: req.Path}, req.NewName)
	if err != nil {
		s.mu.Unlock()
		log.Warn("service rename failed", "err", err)
		return schema.RenameNodeResponse{}, err
	}
	s.tree = nt
	event := s.treeEventLocked(schema.TreeChangeMutation, nt.Nodes())
	s.mu.Unlock()

	s.emitWorkspaceEvent(event)
	log.Info("service node renamed", "name", node.Name)
	return schema.RenameNodeResponse{Path: node.Path}, nil
}

func (s *service) MoveNode(ctx context.Context, req schema.MoveNodeRequest) (schema.MoveNodeResponse, error) {
	log := pslog.Ctx(ctx)

	s.mu.Lock()
	if s.wsOpen && s.tree.DiskBacked() {
		src, srcOK := s.nodePathLocked(req.SourcePath, req.NodeID)
		dst, dstOK := s.nodePathLocked(req.TargetDir, req.TargetID)
		root := s.tree.RootPath()
		s.mu.Unlock()
		if !srcOK {
			return schema.MoveNodeResponse{}, fmt.Errorf("%w: source", schema.ErrNodeNotFound)
		}
		if !dstOK {
			return schema.MoveNodeResponse{}, fmt.Errorf("%w: target", schema.ErrNodeNotFound)
		}
		moved, err := filetree.MoveInto(src, dst)
		if err != nil {
			logx.WithPath(log, src).Warn("service move failed", "err", err)
			return schema.MoveNodeResponse{}, err
		}
		s.refreshAfterMutation(ctx, root)
		logx.WithPath(log, moved).Info("service node moved")
		return schema.MoveNodeResponse{Path: moved}, nil
	}

	nt, node, err := s.tree.Move(
		filetree.Ref{ID: req.NodeID, Path: req.SourcePath},
		filetree.Ref{ID: req.TargetID, Path: req.TargetDir},
	)
	if err != nil {
		s.mu.Unlock()
		log.Warn("service move failed", "err", err)
		return schema.MoveNodeResponse{}, err
	}
	s.tree = nt
	event := s.treeEventLocked(schema.TreeChangeMutation, nt.Nodes())
	s.mu.Unlock()

	s.emitWorkspaceEvent(event)
	log.Info("service node moved", "name", node.Name)
	return schema.MoveNodeResponse{Path: node.Path}, nil
}

func (s *service) SaveFile(ctx context.Context, req schema.SaveFileRequest) (schema.SaveFileResponse, error) {
	raw := strings.TrimSpace(req.Path)
	if raw == "" {
		return schema.SaveFileResponse{}, schema.ErrInvalidPath
	}
	log := logx.WithPath(pslog.Ctx(ctx), raw)
	if err := filetree.SaveFile(raw, []byte(req.Content)); err != nil {
		log.Warn("service save failed", "err", err)
		return schema.SaveFileResponse{}, err
	}
	log.Info("service file saved", "bytes", len(req.Content))
	return schema.SaveFileResponse{}, nil
}

// refreshAfterMutation reloads the whole tree from the workspace root and
// publishes it. The commit is skipped if the workspace moved meanwhile.
func (s *service) refreshAfterMutation(ctx context.Context, root string) {
	nodes := s.scanner.Scan(ctx, root)
	tree := filetree.FromNodes(root, nodes)

	s.mu.Lock()
	if !s.wsOpen || s.tree.RootPath() != root {
		s.mu.Unlock()
		return
	}
	s.tree = tree
	event := s.treeEventLocked(schema.TreeChangeMutation, tree.Nodes())
	s.mu.Unlock()

	s.emitWorkspaceEvent(event)
}

// diskTargetLocked picks the effective directory for a disk-backed create:
// explicit path, then the parent node's resolved path, then the current
// navigation path, then the workspace root.
func (s *service) diskTargetLocked(explicit string, parent schema.NodeID) string {
	if p := strings.TrimSpace(explicit); p != "" {
		return schema.NormalizePath(p)
	}
	if parent != "" {
		if node, ok := s.tree.Find(filetree.Ref{ID: parent}); ok && node.Path != "" {
			if node.IsDir() {
				return node.Path
			}
			return path.Dir(node.Path)
		}
	}
	if s.currentPath != "" {
		return s.currentPath
	}
	return s.tree.RootPath()
}

// virtualTargetLocked is the virtual-mode counterpart; a zero ref targets
// the top level.
func (s *service) virtualTargetLocked(explicit string, parent schema.NodeID) filetree.Ref {
	if parent != "" {
		return filetree.Ref{ID: parent}
	}
	if p := strings.TrimSpace(explicit); p != "" {
		return filetree.Ref{Path: p}
	}
	if s.currentPath != "" {
		return filetree.Ref{Path: s.currentPath}
	}
	return filetree.Ref{}
}

// nodePathLocked resolves the disk path of a mutation target: an explicit
// path wins, otherwise the referenced node's stored path.
func (s *service) nodePathLocked(explicit string, id schema.NodeID) (string, bool) {
	if p := strings.TrimSpace(explicit); p != "" {
		return schema.NormalizePath(p), true
	}
	if id != "" {
		if node, ok := s.tree.Find(filetree.Ref{ID: id}); ok && node.Path != "" {
			return node.Path, true
		}
	}
	return "", false
}

// nextAvailableName probes dir for the first unused "base", "base 1",
// "base 2", ... name.
func nextAvailableName(dir, base string) string {
	name := base
	for i := 1; i <= maxNameProbe; i++ {
		if _, err := os.Stat(filepath.Join(dir, name)); os.IsNotExist(err) {
			return name
		}
		name = fmt.Sprintf("%s %d", base, i)
	}
	return name
}

// virtualNextNameLocked is nextAvailableName against the in-memory tree.
func (s *service) virtualNextNameLocked(parent filetree.Ref, base string) string {
	taken := make(map[string]bool)
	if parent.ID == "" && parent.Path == "" {
		for _, fn := range s.tree.Nodes() {
			taken[fn.Name] = true
		}
	} else if node, ok := s.tree.Find(parent); ok {
		for _, child := range node.Children {
			taken[child.Name] = true
		}
	}
	name := base
	for i := 1; i <= maxNameProbe; i++ {
		if !taken[name] {
			return name
		}
		name = fmt.Sprintf("%s %d", base, i)
	}
	return name
}
