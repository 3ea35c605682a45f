package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"pkt.systems/verkstad/schema"
)

func openWorkspace(t *testing.T, svc Service, root string) schema.OpenFolderResponse {
	t.Helper()
	resp, err := svc.OpenFolder(context.Background(), schema.OpenFolderRequest{Path: root})
	if err != nil {
		t.Fatalf("open folder: %v", err)
	}
	return resp
}

func currentTree(t *testing.T, svc Service) []schema.FileNode {
	t.Helper()
	state, err := svc.WorkspaceState(context.Background(), schema.WorkspaceStateRequest{})
	if err != nil {
		t.Fatalf("workspace state: %v", err)
	}
	return state.Workspace.Tree
}

func TestCreateFileOnDiskRoundTrip(t *testing.T) {
	svc := newTestEngine(t, &fakeStarter{}, &recordingSink{})
	root := t.TempDir()
	openWorkspace(t, svc, root)

	resp, err := svc.CreateFile(context.Background(), schema.CreateFileRequest{Name: "f.txt", Content: "payload"})
	if err != nil {
		t.Fatalf("create file: %v", err)
	}
	want := schema.NormalizePath(filepath.Join(root, "f.txt"))
	if resp.Path != want {
		t.Fatalf("expected path %q, got %q", want, resp.Path)
	}
	data, err := os.ReadFile(filepath.Join(root, "f.txt"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("unexpected content %q", data)
	}
	node := findNode(t, currentTree(t, svc), "f.txt")
	if node.Content != "payload" {
		t.Fatalf("expected refreshed tree content, got %q", node.Content)
	}

	// Creating the same file again fails and leaves exactly one f.txt.
	if _, err := svc.CreateFile(context.Background(), schema.CreateFileRequest{Name: "f.txt", Content: "other"}); !errors.Is(err, schema.ErrDestinationExists) {
		t.Fatalf("expected destination exists, got %v", err)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	data, _ = os.ReadFile(filepath.Join(root, "f.txt"))
	if string(data) != "payload" {
		t.Fatalf("second create clobbered content: %q", data)
	}
}

func TestCreateFolderAutoDisambiguates(t *testing.T) {
	svc := newTestEngine(t, &fakeStarter{}, &recordingSink{})
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "New Folder"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	openWorkspace(t, svc, root)

	first, err := svc.CreateFolder(context.Background(), schema.CreateFolderRequest{})
	if err != nil {
		t.Fatalf("create folder: %v", err)
	}
	if filepath.Base(first.Path) != "New Folder 1" {
		t.Fatalf("expected New Folder 1, got %q", first.Path)
	}
	second, err := svc.CreateFolder(context.Background(), schema.CreateFolderRequest{})
	if err != nil {
		t.Fatalf("second create folder: %v", err)
	}
	if filepath.Base(second.Path) != "New Folder 2" {
		t.Fatalf("expected New Folder 2, got %q", second.Path)
	}
	for _, name := range []string{"New Folder", "New Folder 1", "New Folder 2"} {
		info, err := os.Stat(filepath.Join(root, name))
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q on disk: %v", name, err)
		}
	}
}

func TestCreateTargetsParentNode(t *testing.T) {
	svc := newTestEngine(t, &fakeStarter{}, &recordingSink{})
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	opened := openWorkspace(t, svc, root)
	sub := findNode(t, opened.Tree, "sub")

	resp, err := svc.CreateFile(context.Background(), schema.CreateFileRequest{ParentID: sub.ID, Name: "in.txt", Content: "x"})
	if err != nil {
		t.Fatalf("create file: %v", err)
	}
	want := schema.NormalizePath(filepath.Join(root, "sub", "in.txt"))
	if resp.Path != want {
		t.Fatalf("expected %q, got %q", want, resp.Path)
	}
	if _, err := os.Stat(filepath.Join(root, "sub", "in.txt")); err != nil {
		t.Fatalf("expected file on disk: %v", err)
	}
}

func TestCreateExplicitPathBeatsCurrentPath(t *testing.T) {
	svc := newTestEngine(t, &fakeStarter{}, &recordingSink{})
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	openWorkspace(t, svc, root) // current path is the root now

	resp, err := svc.CreateFile(context.Background(), schema.CreateFileRequest{
		Path: filepath.Join(root, "sub"),
		Name: "deep.txt",
	})
	if err != nil {
		t.Fatalf("create file: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "sub", "deep.txt")); err != nil {
		t.Fatalf("expected file under sub: %v", err)
	}
	want := schema.NormalizePath(filepath.Join(root, "sub", "deep.txt"))
	if resp.Path != want {
		t.Fatalf("expected %q, got %q", want, resp.Path)
	}
}

func TestRenamePreconditionLeavesBothUntouched(t *testing.T) {
	svc := newTestEngine(t, &fakeStarter{}, &recordingSink{})
	root := t.TempDir()
	for _, name := range []string{"a.txt", "b.txt"} {
		if err := os.WriteFile(filepath.Join(root, name), []byte(name), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	openWorkspace(t, svc, root)

	resp, err := svc.RenameNode(context.Background(), schema.RenameNodeRequest{
		Path:    filepath.Join(root, "a.txt"),
		NewName: "c.txt",
	})
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if filepath.Base(resp.Path) != "c.txt" {
		t.Fatalf("unexpected renamed path %q", resp.Path)
	}

	if _, err := svc.RenameNode(context.Background(), schema.RenameNodeRequest{
		Path:    filepath.Join(root, "c.txt"),
		NewName: "b.txt",
	}); !errors.Is(err, schema.ErrDestinationExists) {
		t.Fatalf("expected destination exists, got %v", err)
	}
	for _, name := range []string{"b.txt", "c.txt"} {
		if _, err := os.Stat(filepath.Join(root, name)); err != nil {
			t.Fatalf("expected %q untouched: %v", name, err)
		}
	}
}

func TestMoveOnDisk(t *testing.T) {
	svc := newTestEngine(t, &fakeStarter{}, &recordingSink{})
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.Mkdir(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	opened := openWorkspace(t, svc, root)
	file := findNode(t, opened.Tree, "a.txt")
	sub := findNode(t, opened.Tree, "sub")

	resp, err := svc.MoveNode(context.Background(), schema.MoveNodeRequest{NodeID: file.ID, TargetID: sub.ID})
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	want := schema.NormalizePath(filepath.Join(root, "sub", "a.txt"))
	if resp.Path != want {
		t.Fatalf("expected %q, got %q", want, resp.Path)
	}
	if _, err := os.Stat(filepath.Join(root, "a.txt")); !os.IsNotExist(err) {
		t.Fatalf("expected source gone, stat err %v", err)
	}

	// The old node id died with the rescan; moving by stale path now
	// reports the missing source.
	if _, err := svc.MoveNode(context.Background(), schema.MoveNodeRequest{
		SourcePath: filepath.Join(root, "a.txt"),
		TargetDir:  filepath.Join(root, "sub"),
	}); !errors.Is(err, schema.ErrSourceMissing) {
		t.Fatalf("expected source missing, got %v", err)
	}
}

func TestDeleteOnDisk(t *testing.T) {
	svc := newTestEngine(t, &fakeStarter{}, &recordingSink{})
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "sub", "deep"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	opened := openWorkspace(t, svc, root)
	sub := findNode(t, opened.Tree, "sub")

	if _, err := svc.DeleteNode(context.Background(), schema.DeleteNodeRequest{NodeID: sub.ID}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "sub")); !os.IsNotExist(err) {
		t.Fatalf("expected subtree removed, stat err %v", err)
	}
	if len(currentTree(t, svc)) != 0 {
		t.Fatalf("expected empty tree after delete")
	}
	if _, err := svc.DeleteNode(context.Background(), schema.DeleteNodeRequest{Path: filepath.Join(root, "sub")}); !errors.Is(err, schema.ErrSourceMissing) {
		t.Fatalf("expected source missing, got %v", err)
	}
}

func TestMutationsEmitTreeChanged(t *testing.T) {
	sink := &recordingSink{}
	svc := newTestEngine(t, &fakeStarter{}, sink)
	root := t.TempDir()
	openWorkspace(t, svc, root)

	if _, err := svc.CreateFolder(context.Background(), schema.CreateFolderRequest{Name: "made"}); err != nil {
		t.Fatalf("create folder: %v", err)
	}
	changed := sink.workspaceEvents(schema.TreeChanged)
	if len(changed) != 1 || changed[0].Reason != schema.TreeChangeMutation {
		t.Fatalf("unexpected tree events: %+v", changed)
	}
	findNode(t, changed[0].Tree, "made")
}

func TestVirtualTreeMutations(t *testing.T) {
	sink := &recordingSink{}
	svc := newTestEngine(t, &fakeStarter{}, sink)

	if _, err := svc.CreateFolder(context.Background(), schema.CreateFolderRequest{}); err != nil {
		t.Fatalf("create folder: %v", err)
	}
	tree := currentTree(t, svc)
	top := findNode(t, tree, "New Folder")

	if _, err := svc.CreateFile(context.Background(), schema.CreateFileRequest{ParentID: top.ID, Content: "v"}); err != nil {
		t.Fatalf("create file: %v", err)
	}
	tree = currentTree(t, svc)
	top = findNode(t, tree, "New Folder")
	if len(top.Children) != 1 || top.Children[0].Name != "New File" {
		t.Fatalf("expected New File child, got %+v", top.Children)
	}
	if top.Children[0].Content != "v" {
		t.Fatalf("expected content retained, got %q", top.Children[0].Content)
	}

	if _, err := svc.RenameNode(context.Background(), schema.RenameNodeRequest{NodeID: top.Children[0].ID, NewName: "notes.md"}); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if _, err := svc.CreateFolder(context.Background(), schema.CreateFolderRequest{}); err != nil {
		t.Fatalf("second folder: %v", err)
	}
	tree = currentTree(t, svc)
	other := findNode(t, tree, "New Folder 1")
	renamed := findNode(t, findNode(t, tree, "New Folder").Children, "notes.md")

	if _, err := svc.MoveNode(context.Background(), schema.MoveNodeRequest{NodeID: renamed.ID, TargetID: other.ID}); err != nil {
		t.Fatalf("move: %v", err)
	}
	tree = currentTree(t, svc)
	if kids := findNode(t, tree, "New Folder").Children; len(kids) != 0 {
		t.Fatalf("expected source emptied, got %+v", kids)
	}
	findNode(t, findNode(t, tree, "New Folder 1").Children, "notes.md")

	if _, err := svc.DeleteNode(context.Background(), schema.DeleteNodeRequest{NodeID: top.ID}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	tree = currentTree(t, svc)
	if len(tree) != 1 || tree[0].Name != "New Folder 1" {
		t.Fatalf("expected only New Folder 1 left, got %+v", tree)
	}

	if events := sink.workspaceEvents(schema.TreeChanged); len(events) == 0 {
		t.Fatalf("expected tree_changed events for virtual mutations")
	}
}

func TestVirtualPreconditions(t *testing.T) {
	svc := newTestEngine(t, &fakeStarter{}, &recordingSink{})

	if _, err := svc.CreateFolder(context.Background(), schema.CreateFolderRequest{Name: "dup"}); err != nil {
		t.Fatalf("create folder: %v", err)
	}
	if _, err := svc.CreateFolder(context.Background(), schema.CreateFolderRequest{Name: "dup"}); !errors.Is(err, schema.ErrDestinationExists) {
		t.Fatalf("expected destination exists, got %v", err)
	}
	if _, err := svc.DeleteNode(context.Background(), schema.DeleteNodeRequest{NodeID: "missing"}); !errors.Is(err, schema.ErrNodeNotFound) {
		t.Fatalf("expected node not found, got %v", err)
	}
}

func TestSaveFileWrites(t *testing.T) {
	svc := newTestEngine(t, &fakeStarter{}, &recordingSink{})
	target := filepath.Join(t.TempDir(), "out.txt")

	if _, err := svc.SaveFile(context.Background(), schema.SaveFileRequest{Path: target, Content: "one"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := svc.SaveFile(context.Background(), schema.SaveFileRequest{Path: target, Content: "two"}); err != nil {
		t.Fatalf("second save: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "two" {
		t.Fatalf("expected overwrite, got %q", data)
	}
	if _, err := svc.SaveFile(context.Background(), schema.SaveFileRequest{}); !errors.Is(err, schema.ErrInvalidPath) {
		t.Fatalf("expected invalid path, got %v", err)
	}
}

func TestReadDirectoryIndependentOfWorkspace(t *testing.T) {
	svc := newTestEngine(t, &fakeStarter{}, &recordingSink{})
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "a", "b"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	resp, err := svc.ReadDirectory(context.Background(), schema.ReadDirectoryRequest{Path: root, MaxDepth: 1})
	if err != nil {
		t.Fatalf("read directory: %v", err)
	}
	a := findNode(t, resp.Tree, "a")
	if len(a.Children) != 0 {
		t.Fatalf("expected depth bound to exclude children, got %+v", a.Children)
	}
}
