package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/dtuma/processdash-sub018/internal/merge"
	"github.com/dtuma/processdash-sub018/internal/roster"
)

// Sides a report can retarget.
const (
	SideMain     = "main"
	SideIncoming = "incoming"
)

// Report records what a roster merge did, so the id and initials changes can
// be applied later to data kept outside the roster.
type Report struct {
	Meta Meta `json:"meta" yaml:"meta"`

	BaseRev     string `json:"base_rev" yaml:"base_rev"`
	MainRev     string `json:"main_rev" yaml:"main_rev"`
	IncomingRev string `json:"incoming_rev" yaml:"incoming_rev"`
	MergedRev   string `json:"merged_rev" yaml:"merged_rev"`

	Warnings []ReportWarning `json:"warnings" yaml:"warnings"`

	ChangedIncomingIDs      map[int]int       `json:"changed_incoming_ids,omitempty" yaml:"changed_incoming_ids,omitempty"`
	MainInitialsChanges     map[string]string `json:"main_initials_changes,omitempty" yaml:"main_initials_changes,omitempty"`
	IncomingInitialsChanges map[string]string `json:"incoming_initials_changes,omitempty" yaml:"incoming_initials_changes,omitempty"`
}

// ReportWarning is a merge warning with its human-readable sentence.
type ReportWarning struct {
	merge.Warning[int] `yaml:",inline"`
	Message            string `json:"message" yaml:"message"`
}

// NewReport builds a report from a merge result and the revs of its inputs.
// The merged rev is computed from the result.
func NewReport(res *roster.MergeResult, baseRev, mainRev, incomingRev string) (*Report, error) {
	mergedRev, err := Rev(FromRoster(res.Merged))
	if err != nil {
		return nil, err
	}
	r := &Report{
		Meta:                    Meta{SchemaVersion: SchemaVersion},
		BaseRev:                 baseRev,
		MainRev:                 mainRev,
		IncomingRev:             incomingRev,
		MergedRev:               mergedRev,
		Warnings:                make([]ReportWarning, 0, len(res.Warnings)),
		ChangedIncomingIDs:      res.ChangedIncomingIDs,
		MainInitialsChanges:     res.MainInitialsChanges,
		IncomingInitialsChanges: res.IncomingInitialsChanges,
	}
	for _, w := range res.Warnings {
		r.Warnings = append(r.Warnings, ReportWarning{Warning: w, Message: res.Describe(w)})
	}
	rev, err := r.rev()
	if err != nil {
		return nil, err
	}
	r.Meta.SnapshotRev = rev
	return r, nil
}

// rev hashes the report with its own rev left out. encoding/json writes
// struct fields in declaration order and sorts map keys, which is enough
// for a stable hash.
func (r *Report) rev() (string, error) {
	bare := *r
	bare.Meta.SnapshotRev = ""
	bare.Meta.GeneratedAt = ""
	data, err := json.Marshal(&bare)
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}
	return ComputeSnapshotRev(data), nil
}

// HasConflicts reports whether any warning needs a person to confirm it.
func (r *Report) HasConflicts() bool {
	for _, w := range r.Warnings {
		if w.IsConflict() {
			return true
		}
	}
	return false
}

// Renames returns the id and initials changes to apply to data owned by one
// side of the merge. Main keeps its ids, so only incoming has an id map.
func (r *Report) Renames(side string) (map[int]int, map[string]string, error) {
	switch side {
	case SideMain:
		return nil, r.MainInitialsChanges, nil
	case SideIncoming:
		return r.ChangedIncomingIDs, r.IncomingInitialsChanges, nil
	default:
		return nil, nil, fmt.Errorf("unknown side %q (want %s or %s)", side, SideMain, SideIncoming)
	}
}

// SaveReport writes a report as JSON or YAML depending on the extension.
func SaveReport(path string, r *Report) error {
	var data []byte
	var err error
	if FormatForPath(path) == FormatYAML {
		data, err = yaml.Marshal(r)
	} else {
		data, err = json.MarshalIndent(r, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// LoadReport reads a report written by SaveReport and checks its rev.
func LoadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	var r Report
	if FormatForPath(path) == FormatYAML {
		err = yaml.Unmarshal(data, &r)
	} else {
		err = json.Unmarshal(data, &r)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse report %s: %w", path, err)
	}
	if r.Meta.SnapshotRev != "" {
		rev, err := r.rev()
		if err != nil {
			return nil, err
		}
		if rev != r.Meta.SnapshotRev {
			return nil, fmt.Errorf("report %s was modified after it was written (rev %s, content %s)", path, r.Meta.SnapshotRev, rev)
		}
	}
	return &r, nil
}
