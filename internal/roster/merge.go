package roster

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/dtuma/processdash-sub018/internal/merge"
	"github.com/dtuma/processdash-sub018/internal/tree"
)

// Warning keys for roster-wide uniqueness collisions.
const (
	KeyNameConflict     = "Attribute.Name_Conflict"
	KeyInitialsConflict = "Attribute.Initials_Conflict"
	exceptionKey        = "exception"
)

// Registry returns the attribute policies for member nodes:
//   - color: when both sides recolor a member, incoming wins silently.
//   - server_identity: main wins silently. It moves in step with the name,
//     whose conflict is already reported.
//   - exception_<week>: all weeks report under one "exception" key.
//   - extra: key union, main winning per key.
//
// Every other attribute reports real conflicts. overrides, when given, are
// applied on top and may name exact attributes or patterns (a key holding
// any of ".*+?[" is treated as a pattern).
func Registry(overrides map[string]merge.Policy) (*merge.Registry, error) {
	b := merge.NewRegistryBuilder().
		Register(AttrColor, merge.PreferIncoming()).
		Register(AttrServerIdentity, merge.PreferMain()).
		Register(AttrExtra, merge.OpaqueUnion()).
		RegisterPattern(ExceptionPrefix+".*", merge.Collapse(exceptionKey))

	names := make([]string, 0, len(overrides))
	for name := range overrides {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if strings.ContainsAny(name, ".*+?[") {
			b.RegisterPattern(name, overrides[name])
		} else {
			b.Register(name, overrides[name])
		}
	}
	return b.Build()
}

// Options tunes a roster merge.
type Options struct {
	// Policies override the default attribute policies.
	Policies map[string]merge.Policy
	// UniqueSuffix disambiguates colliding names and initials. Empty means
	// merge.DefaultUniqueSuffix.
	UniqueSuffix string
	Logger       *slog.Logger
}

// MergeResult is the outcome of a roster merge.
type MergeResult struct {
	Merged   *Roster
	Warnings []merge.Warning[int]

	// ChangedIncomingIDs sends ids of members incoming added to the id main
	// gave the same person.
	ChangedIncomingIDs map[int]int

	// MainInitialsChanges and IncomingInitialsChanges send a branch's old
	// initials to the merged initials, for data keyed by initials.
	MainInitialsChanges     map[string]string
	IncomingInitialsChanges map[string]string

	// names of every member seen in any input, for Describe.
	names map[int]string
}

// HasConflicts reports whether any warning needs a person to confirm it.
func (r *MergeResult) HasConflicts() bool {
	return len(merge.Conflicts(r.Warnings)) > 0
}

// Merge reconciles two edited copies of a roster against their common
// ancestor. Members both sides added for the same person (same server
// identity, or same name and initials ignoring case) become one member with
// main's id. Name and initials stay unique; a collision keeps main's value
// and suffixes the other.
func Merge(base, main, incoming *Roster, opts Options) (*MergeResult, error) {
	trees := make([]*tree.Tree[int], 3)
	for i, r := range []*Roster{base, main, incoming} {
		t, err := ToTree(r)
		if err != nil {
			return nil, fmt.Errorf("%s roster: %w", []string{"base", "main", "incoming"}[i], err)
		}
		trees[i] = t
	}

	registry, err := Registry(opts.Policies)
	if err != nil {
		return nil, err
	}

	res, err := merge.Merge(trees[0], trees[1], trees[2], merge.Options[int]{
		Registry: registry,
		Correlation: []merge.CorrelationKey{
			merge.AttrKey(AttrServerIdentity),
			merge.FoldedKey(AttrName, AttrInitials),
		},
		Unique: []merge.UniqueAttr{
			{Name: AttrName, Key: KeyNameConflict},
			{Name: AttrInitials, Key: KeyInitialsConflict},
		},
		UniqueSuffix: opts.UniqueSuffix,
		RenameAttrs:  []string{AttrInitials},
		IsUnassigned: func(id int) bool { return id == Unassigned },
		Logger:       opts.Logger,
	})
	if err != nil {
		return nil, err
	}

	merged, err := FromTree(res.Merged)
	if err != nil {
		return nil, fmt.Errorf("rebuild merged roster: %w", err)
	}
	normalizeSubteams(merged, main)

	out := &MergeResult{
		Merged:                  merged,
		Warnings:                res.Warnings,
		ChangedIncomingIDs:      res.IDRemap,
		MainInitialsChanges:     res.MainRenames[AttrInitials],
		IncomingInitialsChanges: res.IncomingRenames[AttrInitials],
		names:                   make(map[int]string),
	}
	for _, r := range []*Roster{base, incoming, main, merged} {
		for _, m := range r.Members {
			if m.Name != "" {
				out.names[m.ID] = m.Name
			}
		}
	}
	return out, nil
}

// normalizeSubteams spells subteam names the way main does when they differ
// only in case, and drops the duplicates that creates.
func normalizeSubteams(merged, main *Roster) {
	canonical := make(map[string]string)
	for _, name := range main.SubteamNames() {
		canonical[strings.ToLower(name)] = name
	}
	for i := range merged.Members {
		m := &merged.Members[i]
		if len(m.Subteams) == 0 {
			continue
		}
		var out []string
		for _, s := range m.Subteams {
			if c, ok := canonical[strings.ToLower(s)]; ok {
				s = c
			}
			if !slices.Contains(out, s) {
				out = append(out, s)
			}
		}
		slices.Sort(out)
		m.Subteams = out
	}
}

// Describe renders a warning as a sentence for a person.
func (r *MergeResult) Describe(w merge.Warning[int]) string {
	who := func(i int) string {
		if i >= len(w.SubjectIDs) {
			return "?"
		}
		id := w.SubjectIDs[i]
		if id == RootID {
			return "the team"
		}
		if name, ok := r.names[id]; ok {
			return fmt.Sprintf("%s (#%d)", name, id)
		}
		return fmt.Sprintf("#%d", id)
	}

	switch w.Key {
	case KeyNameConflict:
		return fmt.Sprintf("%s and %s were given the same name; the second was renamed", who(0), who(1))
	case KeyInitialsConflict:
		return fmt.Sprintf("%s and %s were given the same initials; the second was changed", who(0), who(1))
	case merge.AttributeKey(exceptionKey):
		return fmt.Sprintf("Both copies changed the schedule exceptions of %s; the main copy was kept", who(0))
	case merge.AttributeKey(AttrZeroDay):
		return "Both copies changed the team start date; the main copy was kept"
	case merge.KeyMoveConflict, merge.KeyAddConflict, merge.KeyCycleConflict:
		return fmt.Sprintf("Both copies placed %s differently; the main copy was kept", who(0))
	case merge.KeyParentDeleted:
		return fmt.Sprintf("%s lost its parent %s and was moved up", who(0), who(1))
	}
	if w.Attr != "" {
		return fmt.Sprintf("Both copies changed %s of %s; the main copy was kept", strings.ReplaceAll(w.Attr, "_", " "), who(0))
	}
	return w.String()
}
