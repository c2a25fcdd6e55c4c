package snapshot

import (
	"bytes"
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"

	"github.com/dtuma/processdash-sub018/internal/roster"
)

// CanonicalJSON produces a deterministic JSON encoding:
// - Keys sorted lexicographically
// - Members sorted by id, subteams sorted, exception weeks sorted numerically
// - No insignificant whitespace
// - Empty optional fields omitted
func CanonicalJSON(s *Snapshot) ([]byte, error) {
	ordered := buildOrderedSnapshot(s)

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)

	if err := encoder.Encode(ordered); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	// Remove trailing newline added by Encode
	result := buf.Bytes()
	if len(result) > 0 && result[len(result)-1] == '\n' {
		result = result[:len(result)-1]
	}

	return result, nil
}

// ComputeSnapshotRev computes the sha256 hash of canonical JSON bytes.
// Returns "sha256:<hex>" format.
func ComputeSnapshotRev(data []byte) string {
	hash := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(hash[:])
}

// Rev returns the rev of a snapshot's content. The stored rev and the
// generation time do not contribute.
func Rev(s *Snapshot) (string, error) {
	bare := *s
	bare.Meta.SnapshotRev = ""
	bare.Meta.GeneratedAt = ""
	data, err := CanonicalJSON(&bare)
	if err != nil {
		return "", err
	}
	return ComputeSnapshotRev(data), nil
}

// Canonicalize returns a copy of s with members in canonical order.
func Canonicalize(s *Snapshot) *Snapshot {
	out := *s
	out.Members = slices.Clone(s.Members)
	slices.SortStableFunc(out.Members, func(a, b roster.Member) int {
		return cmp.Compare(a.ID, b.ID)
	})
	for i := range out.Members {
		if len(out.Members[i].Subteams) > 0 {
			out.Members[i].Subteams = slices.Sorted(slices.Values(out.Members[i].Subteams))
		}
	}
	return &out
}

// orderedMap is a slice of key-value pairs that marshals as a JSON object
// with keys in the order they appear in the slice.
type orderedMap []keyValue

type keyValue struct {
	Key   string
	Value any
}

func (om orderedMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, kv := range om {
		if i > 0 {
			buf.WriteByte(',')
		}

		keyJSON, err := json.Marshal(kv.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')

		valJSON, err := json.Marshal(kv.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(valJSON)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// buildOrderedSnapshot creates an ordered map structure for canonical JSON.
// Order: members, meta, zero_day
func buildOrderedSnapshot(s *Snapshot) orderedMap {
	c := Canonicalize(s)
	result := make(orderedMap, 0, 3)

	members := make([]orderedMap, 0, len(c.Members))
	for i := range c.Members {
		members = append(members, buildOrderedMember(&c.Members[i]))
	}
	result = append(result, keyValue{"members", members})
	result = append(result, keyValue{"meta", buildOrderedMeta(&c.Meta)})
	if c.ZeroDay != "" {
		result = append(result, keyValue{"zero_day", c.ZeroDay})
	}
	return result
}

func buildOrderedMeta(m *Meta) orderedMap {
	result := make(orderedMap, 0, 3)

	if m.GeneratedAt != "" {
		result = append(result, keyValue{"generated_at", m.GeneratedAt})
	}
	result = append(result, keyValue{"schema_version", m.SchemaVersion})
	if m.SnapshotRev != "" {
		result = append(result, keyValue{"snapshot_rev", m.SnapshotRev})
	}

	return result
}

func buildOrderedMember(m *roster.Member) orderedMap {
	result := make(orderedMap, 0, 11)

	// Fields in lexicographic order
	if m.Color != "" {
		result = append(result, keyValue{"color", m.Color})
	}
	if m.EndWeek != nil {
		result = append(result, keyValue{"end_week", *m.EndWeek})
	}
	if len(m.Exceptions) > 0 {
		result = append(result, keyValue{"exceptions", buildOrderedExceptions(m.Exceptions)})
	}
	if len(m.Extra) > 0 {
		// encoding/json already sorts string map keys
		result = append(result, keyValue{"extra", m.Extra})
	}
	if m.HoursPerWeek != 0 {
		result = append(result, keyValue{"hours_per_week", m.HoursPerWeek})
	}
	result = append(result, keyValue{"id", m.ID})
	result = append(result, keyValue{"initials", m.Initials})
	result = append(result, keyValue{"name", m.Name})
	if m.ServerIdentity != "" {
		result = append(result, keyValue{"server_identity", m.ServerIdentity})
	}
	if m.StartWeek != nil {
		result = append(result, keyValue{"start_week", *m.StartWeek})
	}
	if len(m.Subteams) > 0 {
		result = append(result, keyValue{"subteams", m.Subteams})
	}

	return result
}

func buildOrderedExceptions(ex map[int]float64) orderedMap {
	weeks := make([]int, 0, len(ex))
	for w := range ex {
		weeks = append(weeks, w)
	}
	slices.Sort(weeks)

	result := make(orderedMap, 0, len(ex))
	for _, w := range weeks {
		result = append(result, keyValue{strconv.Itoa(w), ex[w]})
	}
	return result
}

// PrettyJSON produces human-readable indented JSON with canonical ordering.
// Useful for diffs but not for hashing.
func PrettyJSON(s *Snapshot) ([]byte, error) {
	data, err := CanonicalJSON(s)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return nil, fmt.Errorf("failed to indent snapshot: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
