package snapshot

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dtuma/processdash-sub018/internal/roster"
)

// Encode renders s in the given format with its rev filled in. The rev is
// the same for both formats.
func Encode(s *Snapshot, format Format) ([]byte, string, error) {
	out := Canonicalize(s)
	out.Meta.SchemaVersion = SchemaVersion
	rev, err := Rev(out)
	if err != nil {
		return nil, "", err
	}
	out.Meta.SnapshotRev = rev

	switch format {
	case FormatYAML:
		var buf bytes.Buffer
		encoder := yaml.NewEncoder(&buf)
		encoder.SetIndent(2)
		if err := encoder.Encode(out); err != nil {
			return nil, "", fmt.Errorf("failed to encode snapshot as YAML: %w", err)
		}
		if err := encoder.Close(); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), rev, nil
	case FormatJSON, "":
		data, err := PrettyJSON(out)
		if err != nil {
			return nil, "", err
		}
		return data, rev, nil
	default:
		return nil, "", fmt.Errorf("unknown snapshot format %q", format)
	}
}

// Save validates r and writes it to path.
func Save(path string, r *roster.Roster, opts SaveOptions) (*SaveResult, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	snap := FromRoster(r)
	if opts.Stamp {
		snap.Meta.GeneratedAt = FormatTimestamp(time.Now())
	}
	format := opts.Format
	if format == "" {
		format = FormatForPath(path)
	}

	data, rev, err := Encode(snap, format)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write snapshot: %w", err)
	}

	return &SaveResult{
		OutputPath:  path,
		SnapshotRev: rev,
		MemberCount: len(snap.Members),
	}, nil
}
