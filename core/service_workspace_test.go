package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"pkt.systems/verkstad/schema"
)

func workspaceFixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("alpha"), 0o644); err != nil {
		t.Fatalf("write a.txt: %v", err)
	}
	if err := os.Mkdir(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir sub: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "sub", "inner.txt"), []byte("inner"), 0o644); err != nil {
		t.Fatalf("write inner.txt: %v", err)
	}
	return root
}

func findNode(t *testing.T, tree []schema.FileNode, name string) schema.FileNode {
	t.Helper()
	for _, n := range tree {
		if n.Name == name {
			return n
		}
	}
	t.Fatalf("node %q not in tree %+v", name, tree)
	return schema.FileNode{}
}

func TestOpenFolderScansAndPushes(t *testing.T) {
	starter := &fakeStarter{}
	sink := &recordingSink{}
	svc := newTestEngine(t, starter, sink)
	root := workspaceFixture(t)

	mustCreate(t, svc, root)
	resp, err := svc.OpenFolder(context.Background(), schema.OpenFolderRequest{Path: root})
	if err != nil {
		t.Fatalf("open folder: %v", err)
	}
	if resp.Name != filepath.Base(root) {
		t.Fatalf("expected name %q, got %q", filepath.Base(root), resp.Name)
	}
	if resp.Root != schema.NormalizePath(root) {
		t.Fatalf("expected root %q, got %q", schema.NormalizePath(root), resp.Root)
	}
	if len(resp.Tree) != 2 {
		t.Fatalf("expected 2 top-level nodes, got %d", len(resp.Tree))
	}
	findNode(t, resp.Tree, "a.txt")
	findNode(t, resp.Tree, "sub")

	if cds := cdLines(starter.term(0).lines()); len(cds) != 1 {
		t.Fatalf("expected one cd push on open, got %q", cds)
	}
	if opened := sink.workspaceEvents(schema.WorkspaceOpened); len(opened) != 1 || opened[0].Root != resp.Root {
		t.Fatalf("unexpected opened events: %+v", opened)
	}

	state, err := svc.WorkspaceState(context.Background(), schema.WorkspaceStateRequest{})
	if err != nil {
		t.Fatalf("workspace state: %v", err)
	}
	if !state.Workspace.Open || state.Workspace.CurrentPath != resp.Root {
		t.Fatalf("unexpected workspace state: %+v", state.Workspace)
	}
}

func TestNavigateFileTargetsParentExactlyOnce(t *testing.T) {
	starter := &fakeStarter{}
	svc := newTestEngine(t, starter, &recordingSink{})
	root := workspaceFixture(t)

	mustCreate(t, svc, root)
	opened, err := svc.OpenFolder(context.Background(), schema.OpenFolderRequest{Path: root})
	if err != nil {
		t.Fatalf("open folder: %v", err)
	}
	file := findNode(t, opened.Tree, "a.txt")

	nav, err := svc.Navigate(context.Background(), schema.NavigateRequest{NodeID: file.ID})
	if err != nil {
		t.Fatalf("navigate: %v", err)
	}
	if nav.CurrentPath != opened.Root {
		t.Fatalf("expected current path %q, got %q", opened.Root, nav.CurrentPath)
	}
	// Open already pushed the root; clicking a file contained in it must
	// not push again.
	if cds := cdLines(starter.term(0).lines()); len(cds) != 1 || cds[0] != `cd "`+opened.Root+`"`+"\r" {
		t.Fatalf("expected exactly one cd targeting the root, got %q", cds)
	}

	if _, err := svc.Navigate(context.Background(), schema.NavigateRequest{NodeID: file.ID}); err != nil {
		t.Fatalf("second navigate: %v", err)
	}
	if cds := cdLines(starter.term(0).lines()); len(cds) != 1 {
		t.Fatalf("redundant navigation pushed again: %q", cds)
	}
}

func TestNavigateDirectoryTogglesExpansion(t *testing.T) {
	starter := &fakeStarter{}
	svc := newTestEngine(t, starter, &recordingSink{})
	root := workspaceFixture(t)

	mustCreate(t, svc, root)
	opened, err := svc.OpenFolder(context.Background(), schema.OpenFolderRequest{Path: root})
	if err != nil {
		t.Fatalf("open folder: %v", err)
	}
	dir := findNode(t, opened.Tree, "sub")

	nav, err := svc.Navigate(context.Background(), schema.NavigateRequest{NodeID: dir.ID})
	if err != nil {
		t.Fatalf("navigate: %v", err)
	}
	if nav.CurrentPath != dir.Path {
		t.Fatalf("expected current path %q, got %q", dir.Path, nav.CurrentPath)
	}
	if len(nav.Expanded) != 1 || nav.Expanded[0] != dir.Path {
		t.Fatalf("expected expansion %q, got %v", dir.Path, nav.Expanded)
	}
	if cds := cdLines(starter.term(0).lines()); len(cds) != 2 {
		t.Fatalf("expected cd to root then sub, got %q", cds)
	}

	nav, err = svc.Navigate(context.Background(), schema.NavigateRequest{NodeID: dir.ID})
	if err != nil {
		t.Fatalf("second navigate: %v", err)
	}
	if len(nav.Expanded) != 0 {
		t.Fatalf("expected expansion toggled off, got %v", nav.Expanded)
	}
	if cds := cdLines(starter.term(0).lines()); len(cds) != 2 {
		t.Fatalf("redundant navigation pushed again: %q", cds)
	}
}

func TestNavigateByPathToleratesSeparators(t *testing.T) {
	svc := newTestEngine(t, &fakeStarter{}, &recordingSink{})
	root := workspaceFixture(t)

	if _, err := svc.OpenFolder(context.Background(), schema.OpenFolderRequest{Path: root}); err != nil {
		t.Fatalf("open folder: %v", err)
	}
	nav, err := svc.Navigate(context.Background(), schema.NavigateRequest{Path: root + `\sub`})
	if err != nil {
		t.Fatalf("navigate by path: %v", err)
	}
	want := schema.NormalizePath(filepath.Join(root, "sub"))
	if nav.CurrentPath != want {
		t.Fatalf("expected current path %q, got %q", want, nav.CurrentPath)
	}
}

func TestActiveChangeResetsPushMemory(t *testing.T) {
	starter := &fakeStarter{}
	svc := newTestEngine(t, starter, &recordingSink{})
	root := workspaceFixture(t)

	mustCreate(t, svc, root)
	second := mustCreate(t, svc, root)
	opened, err := svc.OpenFolder(context.Background(), schema.OpenFolderRequest{Path: root})
	if err != nil {
		t.Fatalf("open folder: %v", err)
	}
	file := findNode(t, opened.Tree, "a.txt")

	if _, err := svc.ActivateSession(context.Background(), schema.ActivateSessionRequest{SessionID: second.ID}); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if _, err := svc.Navigate(context.Background(), schema.NavigateRequest{NodeID: file.ID}); err != nil {
		t.Fatalf("navigate: %v", err)
	}

	// The new active session has not seen the root yet, so the same path
	// is pushed once to it.
	if cds := cdLines(starter.term(0).lines()); len(cds) != 1 {
		t.Fatalf("expected one cd on first session, got %q", cds)
	}
	if cds := cdLines(starter.term(1).lines()); len(cds) != 1 || cds[0] != `cd "`+opened.Root+`"`+"\r" {
		t.Fatalf("expected one cd on second session, got %q", cds)
	}
}

func TestNavigateGuards(t *testing.T) {
	svc := newTestEngine(t, &fakeStarter{}, &recordingSink{})

	if _, err := svc.Navigate(context.Background(), schema.NavigateRequest{}); !errors.Is(err, schema.ErrInvalidRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}
	if _, err := svc.Navigate(context.Background(), schema.NavigateRequest{NodeID: "missing"}); !errors.Is(err, schema.ErrNodeNotFound) {
		t.Fatalf("expected node not found, got %v", err)
	}
}

func TestCloseFolderReturnsToVirtual(t *testing.T) {
	sink := &recordingSink{}
	svc := newTestEngine(t, &fakeStarter{}, sink)
	root := workspaceFixture(t)

	if _, err := svc.OpenFolder(context.Background(), schema.OpenFolderRequest{Path: root}); err != nil {
		t.Fatalf("open folder: %v", err)
	}
	if _, err := svc.CloseFolder(context.Background(), schema.CloseFolderRequest{}); err != nil {
		t.Fatalf("close folder: %v", err)
	}

	state, err := svc.WorkspaceState(context.Background(), schema.WorkspaceStateRequest{})
	if err != nil {
		t.Fatalf("workspace state: %v", err)
	}
	if state.Workspace.Open || state.Workspace.Root != "" || len(state.Workspace.Tree) != 0 {
		t.Fatalf("expected virtual empty state, got %+v", state.Workspace)
	}
	if closed := sink.workspaceEvents(schema.WorkspaceClosed); len(closed) != 1 {
		t.Fatalf("expected one closed event, got %d", len(closed))
	}
	// Closing again is a quiet no-op.
	if _, err := svc.CloseFolder(context.Background(), schema.CloseFolderRequest{}); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if closed := sink.workspaceEvents(schema.WorkspaceClosed); len(closed) != 1 {
		t.Fatalf("expected still one closed event, got %d", len(closed))
	}
}

func TestOpenFolderGuards(t *testing.T) {
	svc := newTestEngine(t, &fakeStarter{}, &recordingSink{})
	root := workspaceFixture(t)

	if _, err := svc.OpenFolder(context.Background(), schema.OpenFolderRequest{}); !errors.Is(err, schema.ErrInvalidPath) {
		t.Fatalf("expected invalid path, got %v", err)
	}
	if _, err := svc.OpenFolder(context.Background(), schema.OpenFolderRequest{Path: filepath.Join(root, "nope")}); !errors.Is(err, schema.ErrInvalidPath) {
		t.Fatalf("expected invalid path for missing dir, got %v", err)
	}
	if _, err := svc.OpenFolder(context.Background(), schema.OpenFolderRequest{Path: filepath.Join(root, "a.txt")}); !errors.Is(err, schema.ErrNotDirectory) {
		t.Fatalf("expected not a directory, got %v", err)
	}
}

func TestRefreshPicksUpExternalChanges(t *testing.T) {
	sink := &recordingSink{}
	svc := newTestEngine(t, &fakeStarter{}, sink)
	root := workspaceFixture(t)

	if _, err := svc.OpenFolder(context.Background(), schema.OpenFolderRequest{Path: root}); err != nil {
		t.Fatalf("open folder: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "later.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write later.txt: %v", err)
	}

	resp, err := svc.RefreshWorkspace(context.Background(), schema.RefreshWorkspaceRequest{Reason: schema.TreeChangeExternal})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	findNode(t, resp.Tree, "later.txt")

	changed := sink.workspaceEvents(schema.TreeChanged)
	if len(changed) != 1 || changed[0].Reason != schema.TreeChangeExternal {
		t.Fatalf("unexpected tree events: %+v", changed)
	}
}

func TestRefreshWithoutWorkspaceFails(t *testing.T) {
	svc := newTestEngine(t, &fakeStarter{}, &recordingSink{})
	if _, err := svc.RefreshWorkspace(context.Background(), schema.RefreshWorkspaceRequest{}); !errors.Is(err, schema.ErrNoWorkspace) {
		t.Fatalf("expected no workspace, got %v", err)
	}
}
