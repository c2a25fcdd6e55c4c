// Package roster models a project team roster and merges concurrently edited
// copies of it.
package roster

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dtuma/processdash-sub018/internal/merge"
)

const (
	// RootID is the id of the synthetic root that holds roster-wide settings.
	RootID = -100

	// Unassigned marks a placeholder member row that has not been given an
	// id yet. Such rows never take part in a merge.
	Unassigned = -1

	// DateLayout is the format of ZeroDay.
	DateLayout = "2006-01-02"
)

// Member is one person on the team.
type Member struct {
	ID             int    `json:"id" yaml:"id"`
	Name           string `json:"name" yaml:"name"`
	Initials       string `json:"initials" yaml:"initials"`
	ServerIdentity string `json:"server_identity,omitempty" yaml:"server_identity,omitempty"`
	Color          string `json:"color,omitempty" yaml:"color,omitempty"`

	HoursPerWeek float64 `json:"hours_per_week,omitempty" yaml:"hours_per_week,omitempty"`
	// StartWeek and EndWeek are week offsets from the roster's zero day.
	StartWeek *int `json:"start_week,omitempty" yaml:"start_week,omitempty"`
	EndWeek   *int `json:"end_week,omitempty" yaml:"end_week,omitempty"`
	// Exceptions override HoursPerWeek for individual weeks.
	Exceptions map[int]float64 `json:"exceptions,omitempty" yaml:"exceptions,omitempty"`

	Subteams []string `json:"subteams,omitempty" yaml:"subteams,omitempty"`

	// Extra holds attributes written by newer tools that this one does not
	// interpret. They are carried through merges untouched.
	Extra map[string]string `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// IsPlaceholder reports whether the member is an unsaved empty row.
func (m Member) IsPlaceholder() bool {
	return m.ID == Unassigned
}

// Roster is a team member list plus its schedule anchor.
type Roster struct {
	ZeroDay string   `json:"zero_day,omitempty" yaml:"zero_day,omitempty"`
	Members []Member `json:"members" yaml:"members"`
}

// Member looks up a member by id.
func (r *Roster) Member(id int) (Member, bool) {
	for _, m := range r.Members {
		if m.ID == id {
			return m, true
		}
	}
	return Member{}, false
}

// SubteamNames returns the distinct subteam names used by any member, sorted.
func (r *Roster) SubteamNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range r.Members {
		for _, s := range m.Subteams {
			if !seen[s] {
				seen[s] = true
				names = append(names, s)
			}
		}
	}
	sort.Strings(names)
	return names
}

// Validate checks the invariants a saved roster always satisfies: member ids
// are unique, and non-empty names and initials are unique. Placeholder rows
// are ignored.
func (r *Roster) Validate() error {
	if r == nil {
		return fmt.Errorf("roster is nil: %w", merge.ErrInvalidInput)
	}
	if r.ZeroDay != "" {
		if _, err := time.Parse(DateLayout, r.ZeroDay); err != nil {
			return fmt.Errorf("invalid zero_day %q: %w", r.ZeroDay, merge.ErrInvalidInput)
		}
	}
	ids := make(map[int]bool)
	names := make(map[string]int)
	initials := make(map[string]int)
	for _, m := range r.Members {
		if m.IsPlaceholder() {
			continue
		}
		if m.ID == RootID {
			return fmt.Errorf("member id %d is reserved: %w", RootID, merge.ErrInvalidInput)
		}
		if ids[m.ID] {
			return fmt.Errorf("duplicate member id %d: %w", m.ID, merge.ErrInvalidInput)
		}
		ids[m.ID] = true
		if other, dup := names[m.Name]; dup && m.Name != "" {
			return fmt.Errorf("members %d and %d share name %q: %w", other, m.ID, m.Name, merge.ErrInvalidInput)
		}
		names[m.Name] = m.ID
		if other, dup := initials[m.Initials]; dup && m.Initials != "" {
			return fmt.Errorf("members %d and %d share initials %q: %w", other, m.ID, m.Initials, merge.ErrInvalidInput)
		}
		initials[m.Initials] = m.ID
		for _, s := range m.Subteams {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("member %d has an empty subteam name: %w", m.ID, merge.ErrInvalidInput)
			}
		}
	}
	return nil
}
