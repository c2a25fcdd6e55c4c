package merge

import (
	"strings"

	"github.com/dtuma/processdash-sub018/internal/tree"
)

// CorrelationKey extracts a value identifying the real-world entity behind a
// node. It returns false when the node carries no usable key.
type CorrelationKey func(c tree.Content) (string, bool)

// AttrKey correlates nodes on the exact value of one string attribute.
func AttrKey(name string) CorrelationKey {
	return func(c tree.Content) (string, bool) {
		v := c.StringAttr(name)
		return v, v != ""
	}
}

// FoldedKey correlates nodes on the case-insensitive combination of several
// string attributes. Every attribute must be non-empty.
func FoldedKey(names ...string) CorrelationKey {
	return func(c tree.Content) (string, bool) {
		parts := make([]string, len(names))
		for i, name := range names {
			v := c.StringAttr(name)
			if v == "" {
				return "", false
			}
			parts[i] = strings.ToLower(v)
		}
		return strings.Join(parts, "|"), true
	}
}

// Rematch finds nodes that both branches added independently for the same
// entity. The returned map sends each such incoming id to the id main chose.
//
// Only nodes absent from base are considered on either side, and an incoming
// node whose id main already holds is left alone. Keys are tried in priority
// order and the first match wins. isUnassigned, when set, excludes
// placeholder ids from correlation.
func Rematch[ID comparable](base, main, incoming *tree.Tree[ID], keys []CorrelationKey, isUnassigned func(ID) bool) map[ID]ID {
	remap := make(map[ID]ID)
	if len(keys) == 0 {
		return remap
	}
	skip := func(id ID) bool {
		return isUnassigned != nil && isUnassigned(id)
	}

	// Index main's additions per key. Ids that incoming also holds already
	// line up and are not candidates.
	index := make([]map[string]ID, len(keys))
	for i := range index {
		index[i] = make(map[string]ID)
	}
	for _, id := range main.IDs() {
		if skip(id) || base.Contains(id) || incoming.Contains(id) {
			continue
		}
		c := main.Content(id)
		for i, key := range keys {
			if v, ok := key(c); ok {
				if _, taken := index[i][v]; !taken {
					index[i][v] = id
				}
			}
		}
	}

	claimed := make(map[ID]bool)
	for _, id := range incoming.IDs() {
		if skip(id) || base.Contains(id) || main.Contains(id) {
			continue
		}
		c := incoming.Content(id)
		for i, key := range keys {
			v, ok := key(c)
			if !ok {
				continue
			}
			target, found := index[i][v]
			if !found || claimed[target] {
				continue
			}
			remap[id] = target
			claimed[target] = true
			break
		}
	}
	return remap
}

// relabelIncoming applies the rematch substitution to the incoming tree,
// including id-valued payloads held in the named attributes.
func relabelIncoming[ID comparable](incoming *tree.Tree[ID], remap map[ID]ID, idAttrs []string) (*tree.Tree[ID], error) {
	out, err := incoming.Relabel(remap)
	if err != nil {
		return nil, err
	}
	if len(remap) == 0 || len(idAttrs) == 0 {
		return out, nil
	}

	out.Walk(func(n *tree.Node[ID], depth int) {
		for _, attr := range idAttrs {
			switch v := n.Content.Get(attr).(type) {
			case ID:
				if to, ok := remap[v]; ok {
					n.Content[attr] = to
				}
			case []ID:
				mapped := make([]ID, len(v))
				for i, id := range v {
					if to, ok := remap[id]; ok {
						id = to
					}
					mapped[i] = id
				}
				n.Content[attr] = mapped
			}
		}
	})
	return out, nil
}
