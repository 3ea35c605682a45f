package filetree

import (
	"fmt"
	"os"
	"path/filepath"

	"pkt.systems/verkstad/schema"
)

// Disk operations guard the obvious precondition failures and report them
// as recoverable errors. The in-memory tree is refreshed by the caller
// after a successful operation; it is never patched directly.

// WriteNewFile creates a file that must not already exist.
func WriteNewFile(path string, content []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%w: %s", schema.ErrDestinationExists, path)
		}
		return fmt.Errorf("create file: %w", err)
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		return fmt.Errorf("write file: %w", err)
	}
	return f.Close()
}

// MakeDir creates a directory whose parent must already exist.
func MakeDir(path string) error {
	if err := os.Mkdir(path, 0o755); err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%w: %s", schema.ErrDestinationExists, path)
		}
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: parent of %s", schema.ErrInvalidPath, path)
		}
		return fmt.Errorf("create directory: %w", err)
	}
	return nil
}

// RemoveTree deletes a file or directory subtree that must exist.
func RemoveTree(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", schema.ErrSourceMissing, path)
		}
		return fmt.Errorf("stat: %w", err)
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

// RenameInPlace renames the last path segment and returns the new path.
func RenameInPlace(path, newName string) (string, error) {
	if err := schema.ValidateName(newName); err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", schema.ErrSourceMissing, path)
		}
		return "", fmt.Errorf("stat: %w", err)
	}
	dst := filepath.Join(filepath.Dir(path), newName)
	if _, err := os.Stat(dst); err == nil {
		return "", fmt.Errorf("%w: %s", schema.ErrDestinationExists, dst)
	}
	if err := os.Rename(path, dst); err != nil {
		return "", fmt.Errorf("rename: %w", err)
	}
	return schema.NormalizePath(dst), nil
}

// MoveInto moves src into targetDir, keeping its name, and returns the new
// path.
func MoveInto(src, targetDir string) (string, error) {
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", schema.ErrSourceMissing, src)
		}
		return "", fmt.Errorf("stat: %w", err)
	}
	info, err := os.Stat(targetDir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %s", schema.ErrNotDirectory, targetDir)
	}
	dst := filepath.Join(targetDir, filepath.Base(src))
	if _, err := os.Stat(dst); err == nil {
		return "", fmt.Errorf("%w: %s", schema.ErrDestinationExists, dst)
	}
	if err := os.Rename(src, dst); err != nil {
		return "", fmt.Errorf("move: %w", err)
	}
	return schema.NormalizePath(dst), nil
}

// SaveFile writes content to path, creating the file when absent.
func SaveFile(path string, content []byte) error {
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("save file: %w", err)
	}
	return nil
}
