// Package filetree holds the in-memory file tree: an immutable arena of
// nodes addressed by index, mutated through copy-on-write snapshots, plus
// the disk scanner and guarded disk operations that back it when a
// workspace folder is open.
package filetree

import (
	"fmt"
	"strings"
	"time"

	"pkt.systems/verkstad/schema"
)

// Tree is one immutable snapshot of the file tree. Mutating methods
// return a new snapshot; nodes referenced by an older snapshot are never
// written again. The zero value is an empty virtual tree.
type Tree struct {
	nodes    []node
	roots    []int32
	rootPath string
}

type node struct {
	id       schema.NodeID
	name     string
	kind     schema.NodeKind
	path     string
	size     int64
	modified time.Time
	content  string
	children []int32
}

// Ref addresses a node by id or by path. The id wins when both are set.
type Ref struct {
	ID   schema.NodeID
	Path string
}

func (r Ref) isZero() bool {
	return r.ID == "" && r.Path == ""
}

// New returns an empty virtual tree.
func New() Tree {
	return Tree{}
}

// FromNodes builds a disk-backed snapshot from scanned nodes. rootPath is
// the workspace root the nodes were scanned from; empty builds a virtual
// snapshot.
func FromNodes(rootPath string, entries []schema.FileNode) Tree {
	t := Tree{rootPath: rootPath}
	for _, fn := range entries {
		idx := t.add(fn)
		t.roots = append(t.roots, idx)
	}
	return t
}

// RootPath returns the workspace root, empty for virtual trees.
func (t Tree) RootPath() string {
	return t.rootPath
}

// DiskBacked reports whether the snapshot was loaded from a workspace root.
func (t Tree) DiskBacked() bool {
	return t.rootPath != ""
}

// Len counts nodes reachable from the top level.
func (t Tree) Len() int {
	n := 0
	var walk func(idx int32)
	walk = func(idx int32) {
		n++
		for _, c := range t.nodes[idx].children {
			walk(c)
		}
	}
	for _, r := range t.roots {
		walk(r)
	}
	return n
}

// Nodes materializes the whole snapshot as transfer nodes.
func (t Tree) Nodes() []schema.FileNode {
	out := make([]schema.FileNode, 0, len(t.roots))
	for _, r := range t.roots {
		out = append(out, t.materialize(r))
	}
	return out
}

// Find resolves a ref to its node, children included.
func (t Tree) Find(ref Ref) (schema.FileNode, bool) {
	trail, ok := t.locate(ref)
	if !ok {
		return schema.FileNode{}, false
	}
	return t.materialize(trail[len(trail)-1]), true
}

// Resolve maps an absolute or root-relative path to its node. Mixed
// separator styles are tolerated.
func (t Tree) Resolve(path string) (schema.FileNode, bool) {
	return t.Find(Ref{Path: path})
}

// ParentOf resolves the parent of a ref. Top-level nodes have no parent
// node; for those ok is false and the caller falls back to the root path.
func (t Tree) ParentOf(ref Ref) (schema.FileNode, bool) {
	trail, ok := t.locate(ref)
	if !ok || len(trail) < 2 {
		return schema.FileNode{}, false
	}
	return t.materialize(trail[len(trail)-2]), true
}

// Insert adds child under parent and returns the new snapshot plus the
// inserted node. A zero parent inserts at the top level. An empty child id
// is assigned.
func (t Tree) Insert(parent Ref, child schema.FileNode) (Tree, schema.FileNode, error) {
	if err := schema.ValidateName(child.Name); err != nil {
		return t, schema.FileNode{}, err
	}
	var trail []int32
	if !parent.isZero() {
		var ok bool
		trail, ok = t.locate(parent)
		if !ok {
			return t, schema.FileNode{}, schema.ErrNodeNotFound
		}
		if t.nodes[trail[len(trail)-1]].kind != schema.KindDirectory {
			return t, schema.FileNode{}, schema.ErrNotDirectory
		}
		if t.childNamed(trail[len(trail)-1], child.Name) {
			return t, schema.FileNode{}, fmt.Errorf("%w: %s", schema.ErrDestinationExists, child.Name)
		}
	} else {
		for _, r := range t.roots {
			if t.nodes[r].name == child.Name {
				return t, schema.FileNode{}, fmt.Errorf("%w: %s", schema.ErrDestinationExists, child.Name)
			}
		}
	}
	nt, newTrail := t.cloneTrail(trail)
	idx := nt.add(child)
	if len(newTrail) > 0 {
		p := newTrail[len(newTrail)-1]
		nt.nodes[p].children = append(nt.nodes[p].children, idx)
	} else {
		nt.roots = append(nt.roots, idx)
	}
	return nt, nt.materialize(idx), nil
}

// Remove deletes the referenced node and its subtree from the snapshot.
func (t Tree) Remove(ref Ref) (Tree, error) {
	trail, ok := t.locate(ref)
	if !ok {
		return t, schema.ErrNodeNotFound
	}
	nt, _ := t.detach(trail)
	return nt, nil
}

// Rename changes the referenced node's name in place.
func (t Tree) Rename(ref Ref, newName string) (Tree, schema.FileNode, error) {
	if err := schema.ValidateName(newName); err != nil {
		return t, schema.FileNode{}, err
	}
	trail, ok := t.locate(ref)
	if !ok {
		return t, schema.FileNode{}, schema.ErrNodeNotFound
	}
	if t.siblingNamed(trail, newName) {
		return t, schema.FileNode{}, fmt.Errorf("%w: %s", schema.ErrDestinationExists, newName)
	}
	nt, newTrail := t.cloneTrail(trail)
	ni := newTrail[len(newTrail)-1]
	nt.nodes[ni].name = newName
	if old := nt.nodes[ni].path; old != "" {
		dir := old[:strings.LastIndex(old, "/")+1]
		nt.nodes[ni].path = dir + newName
	}
	return nt, nt.materialize(ni), nil
}

// Move reparents src under targetDir. Moving a node into itself or one of
// its descendants is rejected; moving into its current parent is a no-op.
func (t Tree) Move(src, targetDir Ref) (Tree, schema.FileNode, error) {
	srcTrail, ok := t.locate(src)
	if !ok {
		return t, schema.FileNode{}, fmt.Errorf("%w: source", schema.ErrNodeNotFound)
	}
	dstTrail, ok := t.locate(targetDir)
	if !ok {
		return t, schema.FileNode{}, fmt.Errorf("%w: target", schema.ErrNodeNotFound)
	}
	dstIdx := dstTrail[len(dstTrail)-1]
	if t.nodes[dstIdx].kind != schema.KindDirectory {
		return t, schema.FileNode{}, schema.ErrNotDirectory
	}
	if len(srcTrail) <= len(dstTrail) && indexEqual(srcTrail, dstTrail[:len(srcTrail)]) {
		return t, schema.FileNode{}, fmt.Errorf("%w: cannot move a directory into itself", schema.ErrInvalidPath)
	}
	if len(srcTrail) >= 2 && srcTrail[len(srcTrail)-2] == dstIdx {
		return t, t.materialize(srcTrail[len(srcTrail)-1]), nil
	}
	srcIdx := srcTrail[len(srcTrail)-1]
	if t.childNamed(dstIdx, t.nodes[srcIdx].name) {
		return t, schema.FileNode{}, fmt.Errorf("%w: %s", schema.ErrDestinationExists, t.nodes[srcIdx].name)
	}
	nt, moved := t.detach(srcTrail)
	dstTrail, ok = nt.locate(Ref{ID: t.nodes[dstIdx].id})
	if !ok {
		return t, schema.FileNode{}, fmt.Errorf("%w: target", schema.ErrNodeNotFound)
	}
	nt, newTrail := nt.cloneTrail(dstTrail)
	p := newTrail[len(newTrail)-1]
	nt.nodes[p].children = append(nt.nodes[p].children, moved)
	return nt, nt.materialize(moved), nil
}

// add appends fn and its children to the arena, assigning ids where empty,
// and returns the new node's index.
func (t *Tree) add(fn schema.FileNode) int32 {
	id := fn.ID
	if id == "" {
		id = newNodeID()
	}
	n := node{
		id:       id,
		name:     fn.Name,
		kind:     fn.Kind,
		path:     fn.Path,
		size:     fn.Size,
		modified: fn.Modified,
		content:  fn.Content,
	}
	t.nodes = append(t.nodes, n)
	idx := int32(len(t.nodes) - 1)
	for _, c := range fn.Children {
		ci := t.add(c)
		t.nodes[idx].children = append(t.nodes[idx].children, ci)
	}
	return idx
}

func (t Tree) materialize(idx int32) schema.FileNode {
	n := t.nodes[idx]
	fn := schema.FileNode{
		ID:       n.id,
		Name:     n.name,
		Kind:     n.kind,
		Path:     n.path,
		Size:     n.size,
		Modified: n.modified,
		Content:  n.content,
	}
	if len(n.children) > 0 {
		fn.Children = make([]schema.FileNode, 0, len(n.children))
		for _, c := range n.children {
			fn.Children = append(fn.Children, t.materialize(c))
		}
	}
	return fn
}

// locate returns the arena-index trail from a top-level node down to the
// referenced node.
func (t Tree) locate(ref Ref) ([]int32, bool) {
	if ref.ID != "" {
		for _, r := range t.roots {
			if trail, ok := t.findID(r, ref.ID, nil); ok {
				return trail, true
			}
		}
		return nil, false
	}
	if ref.Path == "" {
		return nil, false
	}
	segs := t.relativeSegments(ref.Path)
	if len(segs) == 0 {
		return nil, false
	}
	trail := make([]int32, 0, len(segs))
	candidates := t.roots
	for _, seg := range segs {
		found := false
		for _, idx := range candidates {
			if t.nodes[idx].name == seg {
				trail = append(trail, idx)
				candidates = t.nodes[idx].children
				found = true
				break
			}
		}
		if !found {
			return nil, false
		}
	}
	return trail, true
}

func (t Tree) findID(idx int32, id schema.NodeID, prefix []int32) ([]int32, bool) {
	trail := append(append([]int32(nil), prefix...), idx)
	if t.nodes[idx].id == id {
		return trail, true
	}
	for _, c := range t.nodes[idx].children {
		if found, ok := t.findID(c, id, trail); ok {
			return found, true
		}
	}
	return nil, false
}

// relativeSegments normalizes a path and strips the workspace root prefix
// when present.
func (t Tree) relativeSegments(path string) []string {
	p := schema.NormalizePath(path)
	if t.rootPath != "" {
		root := schema.NormalizePath(t.rootPath)
		if p == root {
			return nil
		}
		if strings.HasPrefix(p, root+"/") {
			p = p[len(root)+1:]
		}
	}
	return schema.SplitPath(p)
}

// cloneTrail copies the arena and clones every node along trail into fresh
// indices, rewiring parent links so old snapshots stay untouched.
func (t Tree) cloneTrail(trail []int32) (Tree, []int32) {
	nodes := make([]node, len(t.nodes), len(t.nodes)+len(trail)+1)
	copy(nodes, t.nodes)
	nt := Tree{
		nodes:    nodes,
		roots:    append([]int32(nil), t.roots...),
		rootPath: t.rootPath,
	}
	newTrail := make([]int32, len(trail))
	for i, idx := range trail {
		cl := nt.nodes[idx]
		cl.children = append([]int32(nil), cl.children...)
		nt.nodes = append(nt.nodes, cl)
		ni := int32(len(nt.nodes) - 1)
		newTrail[i] = ni
		if i == 0 {
			replaceIndex(nt.roots, idx, ni)
		} else {
			replaceIndex(nt.nodes[newTrail[i-1]].children, idx, ni)
		}
	}
	return nt, newTrail
}

// detach clones the trail's ancestors and unlinks the trail's last node,
// returning the new snapshot and the detached subtree's index, which stays
// valid in the new arena.
func (t Tree) detach(trail []int32) (Tree, int32) {
	target := trail[len(trail)-1]
	nt, newAnc := t.cloneTrail(trail[:len(trail)-1])
	if len(newAnc) > 0 {
		p := newAnc[len(newAnc)-1]
		nt.nodes[p].children = removeIndex(nt.nodes[p].children, target)
	} else {
		nt.roots = removeIndex(nt.roots, target)
	}
	return nt, target
}

func (t Tree) childNamed(idx int32, name string) bool {
	for _, c := range t.nodes[idx].children {
		if t.nodes[c].name == name {
			return true
		}
	}
	return false
}

func (t Tree) siblingNamed(trail []int32, name string) bool {
	self := trail[len(trail)-1]
	siblings := t.roots
	if len(trail) >= 2 {
		siblings = t.nodes[trail[len(trail)-2]].children
	}
	for _, c := range siblings {
		if c != self && t.nodes[c].name == name {
			return true
		}
	}
	return false
}

func replaceIndex(s []int32, old, new int32) {
	for i, v := range s {
		if v == old {
			s[i] = new
			return
		}
	}
}

func removeIndex(s []int32, v int32) []int32 {
	out := s[:0:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

func indexEqual(a, b []int32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
