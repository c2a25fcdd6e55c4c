package snapshot

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtuma/processdash-sub018/internal/merge"
	"github.com/dtuma/processdash-sub018/internal/roster"
)

func intp(v int) *int { return &v }

func sampleRoster() *roster.Roster {
	return &roster.Roster{
		ZeroDay: "2024-01-08",
		Members: []roster.Member{
			{
				ID: 20, Name: "Ben Ng", Initials: "bn",
				Subteams: []string{"qa", "dev"},
			},
			{
				ID: 10, Name: "Ann Lee", Initials: "al", Color: "#ff0000",
				HoursPerWeek: 20, StartWeek: intp(2),
				Exceptions: map[int]float64{10: 0, 9: 5},
				Extra:      map[string]string{"z": "1", "a": "2"},
			},
		},
	}
}

func TestCanonicalJSON_Deterministic(t *testing.T) {
	a := FromRoster(sampleRoster())

	shuffled := sampleRoster()
	shuffled.Members[0], shuffled.Members[1] = shuffled.Members[1], shuffled.Members[0]
	shuffled.Members[1].Subteams = []string{"dev", "qa"}
	b := FromRoster(shuffled)

	ja, err := CanonicalJSON(a)
	require.NoError(t, err)
	jb, err := CanonicalJSON(b)
	require.NoError(t, err)
	assert.Equal(t, string(ja), string(jb))

	s := string(ja)
	assert.True(t, strings.HasPrefix(s, `{"members":[{"color":"#ff0000","exceptions":{"9":5,"10":0},"extra":{"a":"2","z":"1"}`), s)
	assert.Less(t, strings.Index(s, `"id":10`), strings.Index(s, `"id":20`))
	assert.Contains(t, s, `"subteams":["dev","qa"]`)
	assert.True(t, strings.HasSuffix(s, `"meta":{"schema_version":1},"zero_day":"2024-01-08"}`), s)
}

func TestCanonicalize_DoesNotMutateInput(t *testing.T) {
	r := sampleRoster()
	_ = Canonicalize(FromRoster(r))
	assert.Equal(t, 20, r.Members[0].ID)
	assert.Equal(t, []string{"qa", "dev"}, r.Members[0].Subteams)
}

func TestRev_IgnoresStampAndStoredRev(t *testing.T) {
	s := FromRoster(sampleRoster())
	rev, err := Rev(s)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(rev, "sha256:"))

	s.Meta.GeneratedAt = "2024-05-01T00:00:00Z"
	s.Meta.SnapshotRev = "sha256:bogus"
	again, err := Rev(s)
	require.NoError(t, err)
	assert.Equal(t, rev, again)

	s.Members[0].Initials = "bx"
	changed, err := Rev(s)
	require.NoError(t, err)
	assert.NotEqual(t, rev, changed)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	for _, name := range []string{"team.json", "team.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "out", name)
			res, err := Save(path, sampleRoster(), SaveOptions{})
			require.NoError(t, err)
			assert.Equal(t, 2, res.MemberCount)

			snap, _, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, res.SnapshotRev, snap.Meta.SnapshotRev)

			rev, err := Rev(snap)
			require.NoError(t, err)
			assert.Equal(t, res.SnapshotRev, rev)

			m, ok := snap.Roster().Member(10)
			require.True(t, ok)
			assert.Equal(t, "Ann Lee", m.Name)
			assert.Equal(t, 5.0, m.Exceptions[9])
			assert.Equal(t, 2, *m.StartWeek)
		})
	}
}

func TestSave_SameRevForBothFormats(t *testing.T) {
	dir := t.TempDir()
	j, err := Save(filepath.Join(dir, "a.json"), sampleRoster(), SaveOptions{})
	require.NoError(t, err)
	y, err := Save(filepath.Join(dir, "a.yml"), sampleRoster(), SaveOptions{})
	require.NoError(t, err)
	assert.Equal(t, j.SnapshotRev, y.SnapshotRev)
}

func TestSave_RejectsInvalidRoster(t *testing.T) {
	r := sampleRoster()
	r.Members[1].Initials = "bn"
	_, err := Save(filepath.Join(t.TempDir(), "bad.json"), r, SaveOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, merge.ErrInvalidInput)
}

func TestLoad_WithoutMeta(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hand.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"members":[{"id":1,"name":"A","initials":"a"}]}`), 0644))

	snap, _, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, snap.Meta.SchemaVersion)
	assert.Len(t, snap.Members, 1)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"future.json":  `{"meta":{"schema_version":9},"members":[]}`,
		"badrev.json":  `{"meta":{"schema_version":1,"snapshot_rev":"md5:x"},"members":[]}`,
		"dup.json":     `{"members":[{"id":1,"name":"A","initials":"a"},{"id":1,"name":"B","initials":"b"}]}`,
		"garbage.yaml": "members: [",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, []byte(content), 0644))
			_, _, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestVerify(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "team.json")
	_, err := Save(path, sampleRoster(), SaveOptions{})
	require.NoError(t, err)

	res, err := Verify(path)
	require.NoError(t, err)
	assert.True(t, res.Valid, res.Message)
	assert.Equal(t, 2, res.MemberCount)

	t.Run("edited content", func(t *testing.T) {
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		edited := filepath.Join(dir, "edited.json")
		require.NoError(t, os.WriteFile(edited, []byte(strings.Replace(string(data), "Ann Lee", "Ann Li", 1)), 0644))

		res, err := Verify(edited)
		require.NoError(t, err)
		assert.False(t, res.Valid)
		assert.Contains(t, res.Message, "snapshot_rev mismatch")
	})

	t.Run("not canonical", func(t *testing.T) {
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		compact := filepath.Join(dir, "compact.json")
		require.NoError(t, os.WriteFile(compact, []byte(strings.ReplaceAll(string(data), "\n  ", "\n ")), 0644))

		res, err := Verify(compact)
		require.NoError(t, err)
		assert.False(t, res.Valid)
		assert.Contains(t, res.Message, "not canonical")
	})

	t.Run("invalid roster", func(t *testing.T) {
		bad := filepath.Join(dir, "dup.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{"members":[{"id":1,"name":"A","initials":"a"},{"id":2,"name":"A","initials":"b"}]}`), 0644))

		res, err := Verify(bad)
		require.NoError(t, err)
		assert.False(t, res.Valid)
		assert.Contains(t, res.Message, "share name")
	})
}

func mergedFixture(t *testing.T) *roster.MergeResult {
	t.Helper()
	base := &roster.Roster{Members: []roster.Member{{ID: 1, Name: "Ann", Initials: "al"}}}
	main := &roster.Roster{Members: []roster.Member{
		{ID: 1, Name: "Ann", Initials: "al"},
		{ID: 2, Name: "Ben", Initials: "bn"},
	}}
	incoming := &roster.Roster{Members: []roster.Member{
		{ID: 1, Name: "Ann", Initials: "al"},
		{ID: 3, Name: "Bea", Initials: "bn"},
	}}
	res, err := roster.Merge(base, main, incoming, roster.Options{})
	require.NoError(t, err)
	return res
}

func TestReport_RoundTrip(t *testing.T) {
	res := mergedFixture(t)
	require.True(t, res.HasConflicts())
	require.Equal(t, map[string]string{"bn": "bnx"}, res.IncomingInitialsChanges)

	rep, err := NewReport(res, "sha256:b", "sha256:m", "sha256:i")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(rep.Meta.SnapshotRev, "sha256:"))
	assert.True(t, rep.HasConflicts())
	require.NotEmpty(t, rep.Warnings)
	assert.NotEmpty(t, rep.Warnings[0].Message)

	for _, name := range []string{"report.json", "report.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, SaveReport(path, rep))

			loaded, err := LoadReport(path)
			require.NoError(t, err)
			assert.Equal(t, rep.Meta.SnapshotRev, loaded.Meta.SnapshotRev)
			assert.Equal(t, rep.IncomingInitialsChanges, loaded.IncomingInitialsChanges)
			require.Len(t, loaded.Warnings, len(rep.Warnings))
			assert.Equal(t, rep.Warnings[0].Key, loaded.Warnings[0].Key)
			assert.Equal(t, rep.Warnings[0].Severity, loaded.Warnings[0].Severity)
		})
	}
}

func TestReport_DetectsTampering(t *testing.T) {
	rep, err := NewReport(mergedFixture(t), "", "", "")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, SaveReport(path, rep))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte(strings.Replace(string(data), `"merged_rev": "sha256:`, `"merged_rev": "sha256:0`, 1)), 0644))

	_, err = LoadReport(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "modified")
}

func TestReport_Renames(t *testing.T) {
	rep := &Report{
		ChangedIncomingIDs:      map[int]int{31: 30},
		MainInitialsChanges:     map[string]string{"ab": "abx"},
		IncomingInitialsChanges: map[string]string{"cd": "cdx"},
	}

	ids, initials, err := rep.Renames(SideMain)
	require.NoError(t, err)
	assert.Nil(t, ids)
	assert.Equal(t, map[string]string{"ab": "abx"}, initials)

	ids, initials, err = rep.Renames(SideIncoming)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{31: 30}, ids)
	assert.Equal(t, map[string]string{"cd": "cdx"}, initials)

	_, _, err = rep.Renames("base")
	assert.Error(t, err)
}

func TestDetectFormat(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		want    Format
		wantErr bool
	}{
		{"json object", `  {"members":[]}`, FormatJSON, false},
		{"yaml mapping", "members:\n  - id: 1\n", FormatYAML, false},
		{"broken json", `{"members":`, "", true},
		{"plain text", "just some words", "", true},
		{"yaml list", "- a\n- b\n", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DetectFormat([]byte(tc.input))
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestLoad_SniffsUnknownExtension(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "team.roster")
	require.NoError(t, os.WriteFile(yamlPath, []byte("members:\n  - id: 1\n    name: A\n    initials: a\n"), 0644))

	snap, _, err := Load(yamlPath)
	require.NoError(t, err)
	require.Len(t, snap.Members, 1)
	assert.Equal(t, "A", snap.Members[0].Name)
}
