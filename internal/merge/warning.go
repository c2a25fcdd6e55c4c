package merge

import (
	"fmt"
	"strings"
)

// Severity ranks a merge warning.
type Severity int

const (
	// SeverityInfo is informational; no action is needed.
	SeverityInfo Severity = iota
	// SeverityWarning is a situation handled silently but worth surfacing.
	SeverityWarning
	// SeverityConflict is a disagreement that was forcibly resolved and
	// should be confirmed by a person.
	SeverityConflict
)

// String returns the lower-case name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// MarshalText encodes the severity by name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a severity name.
func (s *Severity) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "info":
		*s = SeverityInfo
	case "warning":
		*s = SeverityWarning
	case "conflict":
		*s = SeverityConflict
	default:
		return fmt.Errorf("unknown severity %q", text)
	}
	return nil
}

// Warning keys emitted by the structural merge.
const (
	KeyMoveConflict  = "Tree.Move_Conflict"
	KeyAddConflict   = "Tree.Add_Conflict"
	KeyCycleConflict = "Tree.Cycle_Conflict"
	KeyParentDeleted = "Tree.Parent_Deleted"
)

// AttributeKey returns the message key used for a conflict on attr.
func AttributeKey(attr string) string {
	return "Attribute." + attr
}

// Warning records one merge decision worth telling a person about. It carries
// no resolution logic; SubjectIDs hold one id for a single-node conflict and
// two (winner, loser) for a cross-node conflict.
type Warning[ID comparable] struct {
	Severity   Severity `json:"severity" yaml:"severity"`
	Key        string   `json:"key" yaml:"key"`
	SubjectIDs []ID     `json:"subject_ids" yaml:"subject_ids"`
	Attr       string   `json:"attr,omitempty" yaml:"attr,omitempty"`
}

func (w Warning[ID]) String() string {
	ids := make([]string, len(w.SubjectIDs))
	for i, id := range w.SubjectIDs {
		ids[i] = fmt.Sprint(id)
	}
	return fmt.Sprintf("%s %s [%s]", w.Severity, w.Key, strings.Join(ids, ","))
}

// IsConflict reports whether the warning has conflict severity.
func (w Warning[ID]) IsConflict() bool {
	return w.Severity == SeverityConflict
}

// warningSet keeps warnings in emission order and drops repeats of the same
// (severity, key, subjects) triple.
type warningSet[ID comparable] struct {
	list []Warning[ID]
	seen map[string]bool
}

func newWarningSet[ID comparable]() *warningSet[ID] {
	return &warningSet[ID]{seen: make(map[string]bool)}
}

func (s *warningSet[ID]) add(w Warning[ID]) {
	key := fmt.Sprintf("%d|%s|%v", w.Severity, w.Key, w.SubjectIDs)
	if s.seen[key] {
		return
	}
	s.seen[key] = true
	s.list = append(s.list, w)
}

func (s *warningSet[ID]) addAll(ws []Warning[ID]) {
	for _, w := range ws {
		s.add(w)
	}
}

func (s *warningSet[ID]) items() []Warning[ID] {
	out := make([]Warning[ID], len(s.list))
	copy(out, s.list)
	return out
}

// Conflicts filters a warning list down to conflict severity.
func Conflicts[ID comparable](ws []Warning[ID]) []Warning[ID] {
	var out []Warning[ID]
	for _, w := range ws {
		if w.IsConflict() {
			out = append(out, w)
		}
	}
	return out
}
