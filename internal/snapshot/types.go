// Package snapshot reads and writes roster files and merge reports.
//
// Roster snapshots are deterministic JSON (or YAML) documents: members are
// sorted by id and every object's keys are written in lexicographic order,
// so two snapshots of the same roster are byte-identical and can be diffed
// or hashed. The snapshot_rev in the meta block is the sha256 of the
// canonical bytes with the rev itself left out.
package snapshot

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/dtuma/processdash-sub018/internal/roster"
)

// SchemaVersion is the roster snapshot format version this package writes.
const SchemaVersion = 1

// Snapshot is a roster file.
type Snapshot struct {
	Meta    Meta            `json:"meta" yaml:"meta"`
	ZeroDay string          `json:"zero_day,omitempty" yaml:"zero_day,omitempty"`
	Members []roster.Member `json:"members" yaml:"members"`
}

// Meta contains snapshot metadata.
type Meta struct {
	SchemaVersion int    `json:"schema_version" yaml:"schema_version"`
	SnapshotRev   string `json:"snapshot_rev,omitempty" yaml:"snapshot_rev,omitempty"`
	GeneratedAt   string `json:"generated_at,omitempty" yaml:"generated_at,omitempty"`
}

// FromRoster wraps a roster in a snapshot with no rev yet.
func FromRoster(r *roster.Roster) *Snapshot {
	return &Snapshot{
		Meta:    Meta{SchemaVersion: SchemaVersion},
		ZeroDay: r.ZeroDay,
		Members: r.Members,
	}
}

// Roster returns the roster the snapshot holds.
func (s *Snapshot) Roster() *roster.Roster {
	return &roster.Roster{ZeroDay: s.ZeroDay, Members: s.Members}
}

// Format is a snapshot file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatForPath picks the encoding from a file extension; anything other
// than .yaml or .yml is JSON.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// SaveOptions configures Save.
type SaveOptions struct {
	// Format overrides the encoding picked from the file extension.
	Format Format
	// Stamp records the generation time in the meta block. The time is not
	// part of the rev.
	Stamp bool
}

// SaveResult describes a written snapshot.
type SaveResult struct {
	OutputPath  string `json:"out" yaml:"out"`
	SnapshotRev string `json:"snapshot_rev" yaml:"snapshot_rev"`
	MemberCount int    `json:"members" yaml:"members"`
}

// VerifyResult contains the result of a verify operation.
type VerifyResult struct {
	InputPath   string `json:"input" yaml:"input"`
	Valid       bool   `json:"valid" yaml:"valid"`
	SnapshotRev string `json:"snapshot_rev" yaml:"snapshot_rev"`
	MemberCount int    `json:"members" yaml:"members"`
	Message     string `json:"message,omitempty" yaml:"message,omitempty"`
}

// FormatTimestamp formats a time.Time as ISO-8601 with Z suffix.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}
