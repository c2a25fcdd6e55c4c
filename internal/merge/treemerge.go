package merge

import (
	"fmt"
	"maps"
	"slices"

	"github.com/dtuma/processdash-sub018/internal/tree"
)

// MergeTrees performs the structural three-way merge of base, main and
// incoming. Incoming ids must already be rematched. None of the inputs are
// modified and the merged tree shares no content with them.
//
// A node survives when both branches kept it, or when it is new in at least
// one branch. Deletion by either branch wins silently over a modification by
// the other. Content of nodes held by both branches is merged attribute by
// attribute through the registry.
func MergeTrees[ID comparable](base, main, incoming *tree.Tree[ID], r *Registry) (*tree.Tree[ID], []Warning[ID], error) {
	if err := checkInputs(base, main, incoming, r); err != nil {
		return nil, nil, err
	}
	ws := newWarningSet[ID]()
	merged, err := mergeTrees(base, main, incoming, r, ws)
	if err != nil {
		return nil, nil, err
	}
	return merged, ws.items(), nil
}

func checkInputs[ID comparable](base, main, incoming *tree.Tree[ID], r *Registry) error {
	named := []struct {
		name string
		t    *tree.Tree[ID]
	}{{"base", base}, {"main", main}, {"incoming", incoming}}
	for _, in := range named {
		if in.t == nil {
			return invalid(in.name, "tree is nil", nil)
		}
		if err := in.t.Validate(); err != nil {
			return invalid(in.name, "malformed tree", err)
		}
	}
	if main.RootID() != base.RootID() || incoming.RootID() != base.RootID() {
		return invalid("main", fmt.Sprintf("root ids differ: base=%v main=%v incoming=%v",
			base.RootID(), main.RootID(), incoming.RootID()), nil)
	}
	if r == nil {
		return invalid("registry", "registry is nil", nil)
	}
	if !r.def.Kind.IsValid() {
		return invalid("registry", "no default policy", nil)
	}
	return nil
}

type pendingMove[ID comparable] struct {
	id, to ID
}

type treeMerger[ID comparable] struct {
	base, main, incoming *tree.Tree[ID]
	registry             *Registry
	warnings             *warningSet[ID]

	rootID    ID
	survivors []ID
	survives  map[ID]bool
	parent    map[ID]ID
}

func mergeTrees[ID comparable](base, main, incoming *tree.Tree[ID], r *Registry, ws *warningSet[ID]) (*tree.Tree[ID], error) {
	m := &treeMerger[ID]{
		base:     base,
		main:     main,
		incoming: incoming,
		registry: r,
		warnings: ws,
		rootID:   base.RootID(),
		survives: make(map[ID]bool),
		parent:   make(map[ID]ID),
	}
	m.selectSurvivors()
	m.assignParents()
	return m.build()
}

// selectSurvivors lists surviving ids in main pre-order followed by the
// remaining incoming pre-order.
func (m *treeMerger[ID]) selectSurvivors() {
	consider := func(id ID) {
		if m.survives[id] {
			return
		}
		inMain, inIncoming := m.main.Contains(id), m.incoming.Contains(id)
		keep := inMain && inIncoming
		if !m.base.Contains(id) {
			keep = inMain || inIncoming
		}
		if keep {
			m.survives[id] = true
			m.survivors = append(m.survivors, id)
		}
	}
	for _, id := range m.main.IDs() {
		consider(id)
	}
	for _, id := range m.incoming.IDs() {
		consider(id)
	}
}

// assignParents picks a parent for every survivor. Main's structure is laid
// down first, which is acyclic on its own; incoming-only moves are then
// adopted one at a time and rejected if they would close a cycle.
func (m *treeMerger[ID]) assignParents() {
	var moves []pendingMove[ID]

	for _, id := range m.survivors {
		inMain, inIncoming := m.main.Contains(id), m.incoming.Contains(id)
		switch {
		case inMain && inIncoming:
			pm, _ := m.main.Parent(id)
			pi, _ := m.incoming.Parent(id)
			pb, inBase := m.base.Parent(id)
			if inBase && pb == pm && pi != pm {
				// Main's parent is only a fallback here; the move decides.
				m.parent[id] = m.survivingParent(id, pm, m.main, false)
				moves = append(moves, pendingMove[ID]{id, pi})
				continue
			}
			m.parent[id] = m.survivingParent(id, pm, m.main, true)
			switch {
			case pm == pi:
			case inBase && pb == pi:
			case inBase:
				m.conflict(KeyMoveConflict, id)
			default:
				m.conflict(KeyAddConflict, id)
			}
		case inMain:
			pm, _ := m.main.Parent(id)
			m.parent[id] = m.survivingParent(id, pm, m.main, true)
		default:
			pi, _ := m.incoming.Parent(id)
			m.parent[id] = m.survivingParent(id, pi, m.incoming, true)
		}
	}

	// Moves are applied in incoming pre-order so that a parent's move is
	// settled before its children are checked.
	order := make(map[ID]int, len(m.survivors))
	for i, id := range m.incoming.IDs() {
		order[id] = i
	}
	slices.SortStableFunc(moves, func(a, b pendingMove[ID]) int {
		return order[a.id] - order[b.id]
	})

	for _, mv := range moves {
		to := m.survivingParent(mv.id, mv.to, m.incoming, true)
		if to == mv.id || m.isAncestor(mv.id, to) {
			m.conflict(KeyCycleConflict, mv.id)
			continue
		}
		m.parent[mv.id] = to
	}
}

// survivingParent returns p when it survives, otherwise the nearest surviving
// ancestor of p in src. Falling back reports a Parent_Deleted warning when
// report is set.
func (m *treeMerger[ID]) survivingParent(id, p ID, src *tree.Tree[ID], report bool) ID {
	if p == m.rootID || m.survives[p] {
		return p
	}
	if report {
		m.warnings.add(Warning[ID]{
			Severity:   SeverityWarning,
			Key:        KeyParentDeleted,
			SubjectIDs: []ID{id, p},
		})
	}
	cur := p
	for {
		next, ok := src.Parent(cur)
		if !ok {
			return m.rootID
		}
		if next == m.rootID || m.survives[next] {
			return next
		}
		cur = next
	}
}

// isAncestor reports whether anc is above id in the parent map built so far.
func (m *treeMerger[ID]) isAncestor(anc, id ID) bool {
	for steps := 0; steps <= len(m.survivors); steps++ {
		p, ok := m.parent[id]
		if !ok {
			return false
		}
		if p == anc {
			return true
		}
		id = p
	}
	return true
}

func (m *treeMerger[ID]) conflict(key string, id ID) {
	m.warnings.add(Warning[ID]{Severity: SeverityConflict, Key: key, SubjectIDs: []ID{id}})
}

func (m *treeMerger[ID]) build() (*tree.Tree[ID], error) {
	rootContent := m.mergeContent(m.rootID)
	merged := tree.New(m.rootID, rootContent)

	byParent := make(map[ID][]ID)
	for _, id := range m.survivors {
		p := m.parent[id]
		byParent[p] = append(byParent[p], id)
	}

	var add func(p ID) error
	add = func(p ID) error {
		for _, child := range m.childOrder(p, byParent[p]) {
			if err := merged.Add(p, child, m.mergeContent(child)); err != nil {
				return fmt.Errorf("build merged tree: %w", err)
			}
			if err := add(child); err != nil {
				return err
			}
		}
		return nil
	}
	if err := add(m.rootID); err != nil {
		return nil, err
	}
	return merged, nil
}

// childOrder orders the merged children of p. Main's order is kept; nodes
// placed by incoming go right after their closest incoming predecessor,
// skipping over anything main added there; all others are appended.
func (m *treeMerger[ID]) childOrder(p ID, members []ID) []ID {
	if len(members) == 0 {
		return nil
	}
	wanted := make(map[ID]bool, len(members))
	for _, id := range members {
		wanted[id] = true
	}
	placed := make(map[ID]bool, len(members))
	var list []ID

	for _, id := range m.main.Children(p) {
		if wanted[id] {
			list = append(list, id)
			placed[id] = true
		}
	}

	for _, id := range m.incoming.Children(p) {
		if !wanted[id] || placed[id] {
			continue
		}
		pos := m.insertionPos(list, p, id)
		list = append(list, id)
		copy(list[pos+1:], list[pos:])
		list[pos] = id
		placed[id] = true
	}

	for _, id := range members {
		if !placed[id] {
			list = append(list, id)
		}
	}
	return list
}

func (m *treeMerger[ID]) insertionPos(list []ID, p, id ID) int {
	pos := 0
	preds := m.incoming.Predecessors(id)
	for i := len(preds) - 1; i >= 0; i-- {
		if idx := indexOf(list, preds[i]); idx >= 0 {
			pos = idx + 1
			break
		}
	}
	for pos < len(list) && m.addedByMainUnder(list[pos], p) {
		pos++
	}
	return pos
}

// addedByMainUnder reports whether main placed id under p where base did not.
func (m *treeMerger[ID]) addedByMainUnder(id, p ID) bool {
	if mp, ok := m.main.Parent(id); !ok || mp != p {
		return false
	}
	bp, ok := m.base.Parent(id)
	return !ok || bp != p
}

// mergeContent produces a freshly owned content bag for a survivor.
func (m *treeMerger[ID]) mergeContent(id ID) tree.Content {
	mainC, inMain := m.main.Node(id)
	incC, inIncoming := m.incoming.Node(id)
	switch {
	case inMain && !inIncoming:
		return mainC.Content.Clone()
	case inIncoming && !inMain:
		return incC.Content.Clone()
	}

	baseC := m.base.Content(id)
	keys := unionKeys(baseC, mainC.Content, incC.Content)
	out := make(tree.Content, len(keys))
	for _, attr := range keys {
		v, w := MergeOne(m.registry, id, attr, baseC.Get(attr), mainC.Content.Get(attr), incC.Content.Get(attr))
		if w != nil {
			m.warnings.add(*w)
		}
		if v != nil {
			out[attr] = tree.CloneValue(v)
		}
	}
	return out
}

func unionKeys(bags ...tree.Content) []string {
	set := make(map[string]bool)
	for _, c := range bags {
		for k := range c {
			set[k] = true
		}
	}
	return slices.Sorted(maps.Keys(set))
}

func indexOf[ID comparable](list []ID, id ID) int {
	for i, v := range list {
		if v == id {
			return i
		}
	}
	return -1
}
