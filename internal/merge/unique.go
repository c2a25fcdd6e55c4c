package merge

import (
	"github.com/dtuma/processdash-sub018/internal/tree"
)

// DefaultUniqueSuffix is appended to a losing value until it is unused.
const DefaultUniqueSuffix = "x"

// UniqueAttr names a string attribute whose non-empty values must be unique
// across the merged tree.
type UniqueAttr struct {
	Name string
	// Key is the warning key for a collision. Empty means
	// "Attribute.<Name>_Conflict".
	Key string
}

func (u UniqueAttr) warningKey() string {
	if u.Key != "" {
		return u.Key
	}
	return AttributeKey(u.Name + "_Conflict")
}

// ResolveUniqueness rewrites colliding values in merged, in place, so that
// every attribute in attrs is unique among non-empty values. Nodes are scanned
// in pre-order. On a repeat, the node whose merged value is the value it holds
// in main keeps it; when that lookup fails for the node being scanned (it is
// not in main, or main holds something else) the scanned node loses. The loser
// gets suffix appended until the value is unused anywhere in the tree, and a
// Conflict warning names (keeper, loser). Each attribute is checked
// independently.
func ResolveUniqueness[ID comparable](merged, main *tree.Tree[ID], attrs []UniqueAttr, suffix string) []Warning[ID] {
	if suffix == "" {
		suffix = DefaultUniqueSuffix
	}
	var out []Warning[ID]
	ids := merged.IDs()
	for _, attr := range attrs {
		out = append(out, resolveAttr(merged, main, ids, attr, suffix)...)
	}
	return out
}

func resolveAttr[ID comparable](merged, main *tree.Tree[ID], ids []ID, attr UniqueAttr, suffix string) []Warning[ID] {
	taken := make(map[string]bool)
	for _, id := range ids {
		if v := merged.Content(id).StringAttr(attr.Name); v != "" {
			taken[v] = true
		}
	}

	var out []Warning[ID]
	seen := make(map[string]ID)
	for _, id := range ids {
		v := merged.Content(id).StringAttr(attr.Name)
		if v == "" {
			continue
		}
		other, dup := seen[v]
		if !dup {
			seen[v] = id
			continue
		}

		keeper, loser := id, other
		if main.Content(id).StringAttr(attr.Name) != v {
			keeper, loser = other, id
		}

		fixed := v + suffix
		for taken[fixed] {
			fixed += suffix
		}
		taken[fixed] = true
		seen[v] = keeper
		seen[fixed] = loser
		_ = merged.SetAttr(loser, attr.Name, fixed)

		out = append(out, Warning[ID]{
			Severity:   SeverityConflict,
			Key:        attr.warningKey(),
			SubjectIDs: []ID{keeper, loser},
			Attr:       attr.Name,
		})
	}
	return out
}
