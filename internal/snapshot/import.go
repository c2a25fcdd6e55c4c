package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dtuma/processdash-sub018/internal/merge"
)

// Decode parses snapshot bytes in the given format.
func Decode(data []byte, format Format) (*Snapshot, error) {
	var snap Snapshot
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("failed to parse snapshot: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("failed to parse snapshot: %w", err)
		}
	}
	if err := validateSnapshot(&snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Load reads and parses a snapshot file.
func Load(path string) (*Snapshot, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	format, err := formatFor(path, data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	snap, err := Decode(data, format)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return snap, data, nil
}

func validateSnapshot(snap *Snapshot) error {
	// Files written by hand may leave the meta block out.
	if snap.Meta.SchemaVersion == 0 {
		snap.Meta.SchemaVersion = SchemaVersion
	}
	if snap.Meta.SchemaVersion < 1 || snap.Meta.SchemaVersion > SchemaVersion {
		return fmt.Errorf("unsupported schema_version: %d", snap.Meta.SchemaVersion)
	}
	if rev := snap.Meta.SnapshotRev; rev != "" && !strings.HasPrefix(rev, "sha256:") {
		return fmt.Errorf("invalid snapshot_rev %q", rev)
	}
	return snap.Roster().Validate()
}

// Verify checks that a snapshot file holds a valid roster, that its stored
// rev matches its content, and that it is written canonically.
func Verify(inputPath string) (*VerifyResult, error) {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	result := &VerifyResult{InputPath: inputPath}
	format, err := formatFor(inputPath, data)
	if err != nil {
		return nil, err
	}
	snap, err := Decode(data, format)
	if err != nil {
		if errors.Is(err, merge.ErrInvalidInput) {
			result.Message = err.Error()
			return result, nil
		}
		return nil, err
	}
	result.SnapshotRev = snap.Meta.SnapshotRev
	result.MemberCount = len(snap.Members)

	rev, err := Rev(snap)
	if err != nil {
		return nil, err
	}
	if snap.Meta.SnapshotRev == "" {
		result.Message = fmt.Sprintf("snapshot has no rev; content rev is %s", rev)
		return result, nil
	}
	if snap.Meta.SnapshotRev != rev {
		result.Message = fmt.Sprintf("snapshot_rev mismatch: stored %s, content %s", snap.Meta.SnapshotRev, rev)
		return result, nil
	}

	canonical, _, err := Encode(snap, format)
	if err != nil {
		return nil, err
	}
	if string(canonical) != string(data) {
		result.Message = fmt.Sprintf("not canonical: %s", findFirstDiff(string(data), string(canonical)))
		return result, nil
	}

	result.Valid = true
	result.Message = "snapshot is canonical"
	return result, nil
}

func findFirstDiff(a, b string) string {
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}

	for i := 0; i < minLen; i++ {
		if a[i] != b[i] {
			start := i - 20
			if start < 0 {
				start = 0
			}
			end := i + 20
			if end > minLen {
				end = minLen
			}
			return fmt.Sprintf("difference at byte %d: ...%s... vs ...%s...",
				i, strings.ReplaceAll(a[start:end], "\n", "\\n"),
				strings.ReplaceAll(b[start:end], "\n", "\\n"))
		}
	}

	if len(a) != len(b) {
		return fmt.Sprintf("length mismatch: %d vs %d", len(a), len(b))
	}

	return "unknown difference"
}
