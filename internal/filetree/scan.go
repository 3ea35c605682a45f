package filetree

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"pkt.systems/pslog"
	"pkt.systems/verkstad/schema"
)

// Scanner reads directory subtrees into transfer nodes. Scans are best
// effort: unreadable entries are skipped and an unreadable top directory
// yields an empty list, never an error.
type Scanner struct {
	MaxDepth        int
	MaxContentBytes int64
	NoiseDirs       []string
}

// NewScanner builds a scanner from engine settings.
func NewScanner(cfg schema.EngineConfig) Scanner {
	return Scanner{
		MaxDepth:        cfg.ScanDepth,
		MaxContentBytes: cfg.MaxContentBytes,
		NoiseDirs:       cfg.NoiseDirs,
	}
}

// Scan reads the entries of dir down to the scanner's depth bound.
// Hidden entries and noise directories are filtered out. Files at or
// under the content ceiling carry their content; larger files carry the
// oversize placeholder.
func (s Scanner) Scan(ctx context.Context, dir string) []schema.FileNode {
	return s.ScanDepth(ctx, dir, s.MaxDepth)
}

// ScanDepth is Scan with an explicit depth bound. A maxDepth below one
// reads a single level.
func (s Scanner) ScanDepth(ctx context.Context, dir string, maxDepth int) []schema.FileNode {
	if maxDepth < 1 {
		maxDepth = 1
	}
	log := pslog.Ctx(ctx)
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Debug("scan: unreadable directory", "path", dir, "error", err)
		return []schema.FileNode{}
	}
	nodes := make([]schema.FileNode, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if entry.IsDir() && s.noise(name) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			log.Debug("scan: skipping entry", "path", filepath.Join(dir, name), "error", err)
			continue
		}
		full := schema.NormalizePath(filepath.Join(dir, name))
		fn := schema.FileNode{
			ID:       newNodeID(),
			Name:     name,
			Path:     full,
			Size:     info.Size(),
			Modified: info.ModTime(),
		}
		if entry.IsDir() {
			fn.Kind = schema.KindDirectory
			fn.Size = 0
			if maxDepth > 1 {
				fn.Children = s.ScanDepth(ctx, filepath.Join(dir, name), maxDepth-1)
			}
		} else {
			fn.Kind = schema.KindFile
			fn.Content = s.readContent(filepath.Join(dir, name), info.Size())
		}
		nodes = append(nodes, fn)
	}
	sortNodes(nodes)
	return nodes
}

func (s Scanner) readContent(path string, size int64) string {
	if size > s.MaxContentBytes {
		return schema.OversizeContentPlaceholder
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}

func (s Scanner) noise(name string) bool {
	for _, n := range s.NoiseDirs {
		if name == n {
			return true
		}
	}
	return false
}

// sortNodes orders directories before files, each alphabetically without
// case sensitivity.
func sortNodes(nodes []schema.FileNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].Kind != nodes[j].Kind {
			return nodes[i].Kind == schema.KindDirectory
		}
		return strings.ToLower(nodes[i].Name) < strings.ToLower(nodes[j].Name)
	})
}
