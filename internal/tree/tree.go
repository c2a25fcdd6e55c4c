// Package tree provides the node model shared by the merge engine.
//
// A Tree is an arena of nodes addressed by a stable identity. Each node holds
// an attribute bag (Content) and an ordered list of child identities. The
// root is a synthetic node that only carries tree-wide attributes.
//
// Identity is unique across the whole tree, not just among siblings. Every
// mutating method copies the content it is given, so a tree never aliases
// content owned by another tree.
package tree

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

var (
	// ErrDuplicateID is returned when a node id is already present in the tree.
	ErrDuplicateID = errors.New("duplicate node id")
	// ErrUnknownNode is returned when an operation names an id that is not in the tree.
	ErrUnknownNode = errors.New("unknown node id")
)

// Node is a single tree node.
type Node[ID comparable] struct {
	ID       ID
	Content  Content
	Children []ID
}

// Tree is a rooted tree of nodes keyed by identity.
type Tree[ID comparable] struct {
	rootID ID
	nodes  map[ID]*Node[ID]
	parent map[ID]ID
}

// New creates a tree holding only a root node.
func New[ID comparable](rootID ID, rootContent Content) *Tree[ID] {
	t := &Tree[ID]{
		rootID: rootID,
		nodes:  make(map[ID]*Node[ID]),
		parent: make(map[ID]ID),
	}
	t.nodes[rootID] = &Node[ID]{ID: rootID, Content: rootContent.Clone()}
	return t
}

// RootID returns the identity of the synthetic root.
func (t *Tree[ID]) RootID() ID {
	return t.rootID
}

// Root returns the root node.
func (t *Tree[ID]) Root() *Node[ID] {
	return t.nodes[t.rootID]
}

// Len returns the number of nodes, root included.
func (t *Tree[ID]) Len() int {
	return len(t.nodes)
}

// Contains reports whether id names a node in the tree.
func (t *Tree[ID]) Contains(id ID) bool {
	_, ok := t.nodes[id]
	return ok
}

// Node looks up a node by identity.
func (t *Tree[ID]) Node(id ID) (*Node[ID], bool) {
	n, ok := t.nodes[id]
	return n, ok
}

// Content returns the content of a node, or nil if the node is absent.
func (t *Tree[ID]) Content(id ID) Content {
	if n, ok := t.nodes[id]; ok {
		return n.Content
	}
	return nil
}

// Parent returns the parent of a node. It returns false for the root and for
// ids that are not in the tree.
func (t *Tree[ID]) Parent(id ID) (ID, bool) {
	p, ok := t.parent[id]
	return p, ok
}

// Children returns a copy of the ordered child ids of a node.
func (t *Tree[ID]) Children(id ID) []ID {
	n, ok := t.nodes[id]
	if !ok || len(n.Children) == 0 {
		return nil
	}
	out := make([]ID, len(n.Children))
	copy(out, n.Children)
	return out
}

// Add appends a new child under parentID.
func (t *Tree[ID]) Add(parentID, id ID, content Content) error {
	p, ok := t.nodes[parentID]
	if !ok {
		return fmt.Errorf("add %v under %v: %w", id, parentID, ErrUnknownNode)
	}
	return t.Insert(parentID, len(p.Children), id, content)
}

// Insert adds a new child under parentID at position pos. Positions past the
// end append.
func (t *Tree[ID]) Insert(parentID ID, pos int, id ID, content Content) error {
	p, ok := t.nodes[parentID]
	if !ok {
		return fmt.Errorf("insert %v under %v: %w", id, parentID, ErrUnknownNode)
	}
	if _, exists := t.nodes[id]; exists {
		return fmt.Errorf("insert %v: %w", id, ErrDuplicateID)
	}
	if pos < 0 {
		pos = 0
	}
	if pos > len(p.Children) {
		pos = len(p.Children)
	}
	p.Children = append(p.Children, id)
	copy(p.Children[pos+1:], p.Children[pos:])
	p.Children[pos] = id

	t.nodes[id] = &Node[ID]{ID: id, Content: content.Clone()}
	t.parent[id] = parentID
	return nil
}

// SetContent replaces the content of a node with a copy of content.
func (t *Tree[ID]) SetContent(id ID, content Content) error {
	n, ok := t.nodes[id]
	if !ok {
		return fmt.Errorf("set content of %v: %w", id, ErrUnknownNode)
	}
	n.Content = content.Clone()
	return nil
}

// SetAttr sets a single attribute on a node. A nil value removes it.
func (t *Tree[ID]) SetAttr(id ID, name string, value any) error {
	n, ok := t.nodes[id]
	if !ok {
		return fmt.Errorf("set %s on %v: %w", name, id, ErrUnknownNode)
	}
	if n.Content == nil {
		n.Content = Content{}
	}
	n.Content.Set(name, value)
	return nil
}

// Walk visits every node in pre-order, root first.
func (t *Tree[ID]) Walk(fn func(n *Node[ID], depth int)) {
	t.walk(t.rootID, 0, fn)
}

func (t *Tree[ID]) walk(id ID, depth int, fn func(n *Node[ID], depth int)) {
	n, ok := t.nodes[id]
	if !ok {
		return
	}
	fn(n, depth)
	for _, child := range n.Children {
		t.walk(child, depth+1, fn)
	}
}

// IDs returns the ids of every non-root node in pre-order.
func (t *Tree[ID]) IDs() []ID {
	ids := make([]ID, 0, len(t.nodes))
	t.Walk(func(n *Node[ID], depth int) {
		if depth > 0 {
			ids = append(ids, n.ID)
		}
	})
	return ids
}

// Predecessors returns the siblings that precede id under its parent.
func (t *Tree[ID]) Predecessors(id ID) []ID {
	parentID, ok := t.parent[id]
	if !ok {
		return nil
	}
	siblings := t.nodes[parentID].Children
	for i, s := range siblings {
		if s == id {
			out := make([]ID, i)
			copy(out, siblings[:i])
			return out
		}
	}
	return nil
}

// Depth returns the number of edges between id and the root, or -1 if id is
// not in the tree.
func (t *Tree[ID]) Depth(id ID) int {
	if _, ok := t.nodes[id]; !ok {
		return -1
	}
	depth := 0
	for cur := id; cur != t.rootID; depth++ {
		cur = t.parent[cur]
	}
	return depth
}

// IsAncestor reports whether anc is a proper ancestor of id.
func (t *Tree[ID]) IsAncestor(anc, id ID) bool {
	cur, ok := t.parent[id]
	for ok {
		if cur == anc {
			return true
		}
		cur, ok = t.parent[cur]
	}
	return false
}

// Clone returns a deep copy of the tree. No content is shared.
func (t *Tree[ID]) Clone() *Tree[ID] {
	out := &Tree[ID]{
		rootID: t.rootID,
		nodes:  make(map[ID]*Node[ID], len(t.nodes)),
		parent: make(map[ID]ID, len(t.parent)),
	}
	for id, n := range t.nodes {
		var children []ID
		if len(n.Children) > 0 {
			children = make([]ID, len(n.Children))
			copy(children, n.Children)
		}
		out.nodes[id] = &Node[ID]{ID: id, Content: n.Content.Clone(), Children: children}
	}
	for id, p := range t.parent {
		out.parent[id] = p
	}
	return out
}

// Relabel returns a deep copy of the tree with node ids substituted through
// remap. Ids missing from remap keep their value. The root is never relabeled.
func (t *Tree[ID]) Relabel(remap map[ID]ID) (*Tree[ID], error) {
	if len(remap) == 0 {
		return t.Clone(), nil
	}
	mapID := func(id ID) ID {
		if id == t.rootID {
			return id
		}
		if to, ok := remap[id]; ok {
			return to
		}
		return id
	}

	out := New(t.rootID, t.Root().Content)
	var err error
	t.Walk(func(n *Node[ID], depth int) {
		if depth == 0 || err != nil {
			return
		}
		parentID := t.parent[n.ID]
		if addErr := out.Add(mapID(parentID), mapID(n.ID), n.Content); addErr != nil {
			err = fmt.Errorf("relabel %v: %w", n.ID, addErr)
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Validate checks the structural invariants of the tree: the root exists,
// every child reference resolves, every node is reachable from the root
// exactly once, and parent links agree with child lists.
func (t *Tree[ID]) Validate() error {
	if t == nil || t.nodes == nil {
		return errors.New("tree is nil")
	}
	if _, ok := t.nodes[t.rootID]; !ok {
		return fmt.Errorf("root %v: %w", t.rootID, ErrUnknownNode)
	}

	seen := make(map[ID]bool, len(t.nodes))
	stack := []ID{t.rootID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[id] {
			return fmt.Errorf("node %v reachable more than once: %w", id, ErrDuplicateID)
		}
		seen[id] = true

		n, ok := t.nodes[id]
		if !ok {
			return fmt.Errorf("child reference %v: %w", id, ErrUnknownNode)
		}
		for i := len(n.Children) - 1; i >= 0; i-- {
			child := n.Children[i]
			if p, ok := t.parent[child]; !ok || p != id {
				return fmt.Errorf("node %v: parent link does not match child list of %v", child, id)
			}
			stack = append(stack, child)
		}
	}
	if len(seen) != len(t.nodes) {
		return fmt.Errorf("%d node(s) unreachable from root", len(t.nodes)-len(seen))
	}
	return nil
}

// Equal reports whether two trees have the same shape, ids, child order, and
// content.
func Equal[ID comparable](a, b *Tree[ID]) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.rootID != b.rootID || len(a.nodes) != len(b.nodes) {
		return false
	}
	for id, an := range a.nodes {
		bn, ok := b.nodes[id]
		if !ok {
			return false
		}
		if len(an.Children) != len(bn.Children) {
			return false
		}
		for i := range an.Children {
			if an.Children[i] != bn.Children[i] {
				return false
			}
		}
		if !an.Content.Equal(bn.Content) {
			return false
		}
	}
	return true
}

// String renders the tree shape in a compact brace notation, e.g. R{a{b,c}d}.
func (t *Tree[ID]) String() string {
	var sb strings.Builder
	t.format(&sb, t.rootID)
	return sb.String()
}

func (t *Tree[ID]) format(sb *strings.Builder, id ID) {
	n := t.nodes[id]
	fmt.Fprint(sb, n.ID)
	if len(n.Children) == 0 {
		return
	}
	sb.WriteByte('{')
	for i, child := range n.Children {
		if i > 0 && len(t.nodes[n.Children[i-1]].Children) == 0 {
			sb.WriteByte(',')
		}
		t.format(sb, child)
	}
	sb.WriteByte('}')
}

// valuesEqual compares attribute values structurally.
func valuesEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}
