package workspace

// SnapshotNode is the wire form of one tree node, matching the fileSystem
// object exchanged with UI clients: folders carry children keyed by name,
// files carry content.
type SnapshotNode struct {
	Type     Kind     `json:"type"`
	Content  string   `json:"content,omitempty"`
	Children Snapshot `json:"children,omitempty"`
}

// Snapshot is a detached copy of a workspace tree keyed by top-level name.
// Names coming off the wire may themselves contain path separators; Tree
// methods and the runner both split them the same way SetPath does.
type Snapshot map[string]*SnapshotNode

// Snapshot returns a deep copy of the tree. Mutating the copy cannot affect
// the tree and later tree writes cannot affect the copy.
func (t *Tree) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return snapshotChildren(t.root)
}

func snapshotChildren(n *node) Snapshot {
	if len(n.children) == 0 {
		return nil
	}
	snap := make(Snapshot, len(n.children))
	for name, child := range n.children {
		sn := &SnapshotNode{Type: child.kind}
		if child.kind == KindFile {
			sn.Content = child.content
		} else {
			sn.Children = snapshotChildren(child)
		}
		snap[name] = sn
	}
	return snap
}

// Overwrite replaces the entire tree with the contents of snap, applying
// the usual SetPath semantics to each entry so separator-bearing names land
// as nested nodes.
func (t *Tree) Overwrite(snap Snapshot) {
	fresh := NewTree()
	applySnapshot(fresh, "", snap)

	t.mu.Lock()
	t.root = fresh.root
	t.mu.Unlock()
}

// NewTreeFromSnapshot builds a tree holding the contents of snap.
func NewTreeFromSnapshot(snap Snapshot) *Tree {
	t := NewTree()
	t.Overwrite(snap)
	return t
}

func applySnapshot(t *Tree, prefix string, snap Snapshot) {
	for name, sn := range snap {
		if sn == nil {
			continue
		}
		path := name
		if prefix != "" {
			path = prefix + "/" + name
		}
		switch sn.Type {
		case KindFolder:
			t.SetPath(path, KindFolder, "")
			applySnapshot(t, path, sn.Children)
		case KindFile:
			t.SetPath(path, KindFile, sn.Content)
		}
	}
}
