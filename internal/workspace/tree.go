package workspace

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// Kind discriminates the two node types of a workspace tree.
type Kind int

const (
	KindFile Kind = iota
	KindFolder
)

var kindNames = map[Kind]string{
	KindFile:   "file",
	KindFolder: "folder",
}

var kindFromName = map[string]Kind{
	"file":   KindFile,
	"folder": KindFolder,
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, ok := kindFromName[s]
	if !ok {
		return fmt.Errorf("unknown node kind %q", s)
	}
	*k = v
	return nil
}

type node struct {
	kind    Kind
	content string
	// children is non-nil exactly for folders.
	children map[string]*node
}

func newFolder() *node {
	return &node{kind: KindFolder, children: make(map[string]*node)}
}

// Tree is the in-memory workspace: one rooted file tree built up
// incrementally from generation events and direct edits. All methods are
// safe for concurrent use and every mutation is atomic with respect to
// readers.
type Tree struct {
	mu   sync.RWMutex
	root *node
}

func NewTree() *Tree {
	return &Tree{root: newFolder()}
}

// SplitPath splits a workspace path into segments. Producers emit paths
// with either separator, so both "/" and "\" delimit; empty segments from
// leading, trailing or doubled separators are dropped.
func SplitPath(path string) []string {
	return strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == '\\'
	})
}

// SetPath places a node at path, creating missing ancestor folders along the
// way. Writing a folder over an existing folder keeps its children; every
// other collision, including a file sitting where an ancestor folder is
// needed, is resolved by replacing the existing node (last write wins).
// A path with no segments is ignored.
func (t *Tree) SetPath(path string, kind Kind, content string) {
	segments := SplitPath(path)
	if len(segments) == 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	cur := t.root
	for _, seg := range segments[:len(segments)-1] {
		child, ok := cur.children[seg]
		if !ok || child.kind != KindFolder {
			child = newFolder()
			cur.children[seg] = child
		}
		cur = child
	}

	name := segments[len(segments)-1]
	if kind == KindFolder {
		if existing, ok := cur.children[name]; ok && existing.kind == KindFolder {
			// Folders merge: a repeated create keeps what is already there.
			return
		}
		cur.children[name] = newFolder()
		return
	}
	cur.children[name] = &node{kind: KindFile, content: content}
}

// Content returns the content of the file at path. The bool is false when
// the path is absent, crosses a file mid-path, or names a folder.
func (t *Tree) Content(path string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := t.lookup(path)
	if n == nil || n.kind != KindFile {
		return "", false
	}
	return n.content, true
}

// Stat reports the kind of the node at path.
func (t *Tree) Stat(path string) (Kind, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := t.lookup(path)
	if n == nil {
		return 0, false
	}
	return n.kind, true
}

func (t *Tree) lookup(path string) *node {
	segments := SplitPath(path)
	if len(segments) == 0 {
		return nil
	}
	cur := t.root
	for _, seg := range segments[:len(segments)-1] {
		child, ok := cur.children[seg]
		if !ok || child.kind != KindFolder {
			return nil
		}
		cur = child
	}
	return cur.children[segments[len(segments)-1]]
}

// FileCount returns the number of files in the tree.
func (t *Tree) FileCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return countFiles(t.root)
}

func countFiles(n *node) int {
	total := 0
	for _, child := range n.children {
		if child.kind == KindFile {
			total++
		} else {
			total += countFiles(child)
		}
	}
	return total
}

// Reset drops every node, returning the tree to empty.
func (t *Tree) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.root = newFolder()
}
