package schema

import "time"

// OversizeContentPlaceholder replaces file content above the configured
// byte ceiling. The node's Size field still reports the true on-disk size.
const OversizeContentPlaceholder = "[file too large to load]"

// FileNode is the transfer form of one file or directory. Path is absent
// for purely virtual nodes; Content is present only for files whose size
// is under the ceiling, otherwise it carries OversizeContentPlaceholder.
type FileNode struct {
	ID       NodeID     `json:"id"`
	Name     string     `json:"name"`
	Kind     NodeKind   `json:"kind"`
	Path     string     `json:"path,omitempty"`
	Size     int64      `json:"size"`
	Modified time.Time  `json:"modified"`
	Content  string     `json:"content,omitempty"`
	Children []FileNode `json:"children,omitempty"`
}

// IsDir reports whether the node is a directory.
func (n FileNode) IsDir() bool {
	return n.Kind == KindDirectory
}

// Child returns the direct child with the given name, if any.
func (n FileNode) Child(name string) (FileNode, bool) {
	for _, child := range n.Children {
		if child.Name == name {
			return child, true
		}
	}
	return FileNode{}, false
}
