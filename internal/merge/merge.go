// Package merge reconciles two independently edited copies of a tree against
// their common ancestor.
//
// Merge runs the full pipeline: incoming nodes that duplicate a node main
// added are rematched onto main's ids, the trees are merged structurally with
// per-attribute policies from a Registry, tree-wide unique attributes are
// re-enforced, and per-branch rename maps are derived for callers that must
// retarget other data. Disagreements between branches never fail a merge;
// they are reported as Warnings. Only malformed input is an error.
package merge

import (
	"log/slog"

	"github.com/dtuma/processdash-sub018/internal/tree"
)

// Options configures one merge. A zero Options merges with the default
// registry and no correlation, uniqueness, or rename tracking.
type Options[ID comparable] struct {
	// Registry holds attribute policies. Nil means DefaultRegistry.
	Registry *Registry

	// Correlation keys used to rematch independent additions, in priority
	// order.
	Correlation []CorrelationKey

	// IDAttrs name attributes whose values hold node ids (a single ID or
	// []ID). Rematched ids are substituted inside them.
	IDAttrs []string

	// Unique lists attributes that must stay unique across the tree.
	Unique []UniqueAttr

	// UniqueSuffix is appended to losing values. Empty means
	// DefaultUniqueSuffix.
	UniqueSuffix string

	// RenameAttrs name attributes whose value changes are reported per
	// branch.
	RenameAttrs []string

	// IsUnassigned marks placeholder ids that never take part in
	// correlation.
	IsUnassigned func(ID) bool

	Logger *slog.Logger
}

// Result is the outcome of a merge.
type Result[ID comparable] struct {
	Merged   *tree.Tree[ID]
	Warnings []Warning[ID]

	// IDRemap sends rematched incoming ids to main's ids. Never nil.
	IDRemap map[ID]ID

	// Incoming is the incoming tree after rematching, the tree whose ids
	// line up with Merged.
	Incoming *tree.Tree[ID]

	// MainRenames and IncomingRenames map attribute name to old value to
	// merged value, for each attribute in Options.RenameAttrs.
	MainRenames     map[string]map[string]string
	IncomingRenames map[string]map[string]string
}

// Conflicts returns only the conflict-severity warnings.
func (r *Result[ID]) Conflicts() []Warning[ID] {
	return Conflicts(r.Warnings)
}

// Merge reconciles main and incoming against base. The inputs are not
// modified. Identical inputs and options always produce identical results.
func Merge[ID comparable](base, main, incoming *tree.Tree[ID], opts Options[ID]) (*Result[ID], error) {
	registry := opts.Registry
	if registry == nil {
		registry = DefaultRegistry()
	}
	if err := checkInputs(base, main, incoming, registry); err != nil {
		return nil, err
	}
	for _, u := range opts.Unique {
		if u.Name == "" {
			return nil, invalid("options", "unique attribute with empty name", nil)
		}
	}
	for _, name := range opts.RenameAttrs {
		if name == "" {
			return nil, invalid("options", "rename attribute with empty name", nil)
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	remap := Rematch(base, main, incoming, opts.Correlation, opts.IsUnassigned)
	relabeled, err := relabelIncoming(incoming, remap, opts.IDAttrs)
	if err != nil {
		return nil, invalid("incoming", "rematched ids collide", err)
	}
	logger.Debug("rematched incoming additions", "count", len(remap))

	ws := newWarningSet[ID]()
	merged, err := mergeTrees(base, main, relabeled, registry, ws)
	if err != nil {
		return nil, err
	}
	logger.Debug("merged tree", "nodes", merged.Len()-1, "warnings", len(ws.list))

	ws.addAll(ResolveUniqueness(merged, main, opts.Unique, opts.UniqueSuffix))

	res := &Result[ID]{
		Merged:          merged,
		Warnings:        ws.items(),
		IDRemap:         remap,
		Incoming:        relabeled,
		MainRenames:     make(map[string]map[string]string),
		IncomingRenames: make(map[string]map[string]string),
	}
	for _, attr := range opts.RenameAttrs {
		res.MainRenames[attr] = RenameMap(attr, main, merged)
		res.IncomingRenames[attr] = RenameMap(attr, relabeled, merged)
	}
	logger.Debug("merge complete",
		"warnings", len(res.Warnings),
		"conflicts", len(res.Conflicts()))
	return res, nil
}
