package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveShellAbsolutePath(t *testing.T) {
	shell := filepath.Join(t.TempDir(), "fakeshell")
	if err := os.WriteFile(shell, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := resolveShell(shell)
	if err != nil {
		t.Fatalf("resolveShell: %v", err)
	}
	if got != shell {
		t.Fatalf("resolveShell = %q, want %q", got, shell)
	}
}

func TestResolveShellRejects(t *testing.T) {
	tests := []struct {
		name  string
		shell string
	}{
		{name: "empty", shell: "  "},
		{name: "missing absolute", shell: filepath.Join(t.TempDir(), "no-such-shell")},
		{name: "missing in path", shell: "no-such-shell-binary-xyz"},
		{name: "directory", shell: t.TempDir()},
	}
	for _, tc := range tests {
		if _, err := resolveShell(tc.shell); err == nil {
			t.Fatalf("%s: expected error for %q", tc.name, tc.shell)
		}
	}
}
