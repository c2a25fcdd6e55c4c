package timelog_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtuma/processdash-sub018/internal/testutil"
	"github.com/dtuma/processdash-sub018/internal/timelog"
)

func newStore(t *testing.T) *timelog.Store {
	t.Helper()
	database, _ := testutil.TempDB(t)
	return timelog.New(database)
}

func add(t *testing.T, s *timelog.Store, id int, initials string, minutes int) timelog.Entry {
	t.Helper()
	e, err := s.Add(context.Background(), timelog.Entry{
		MemberID: id, Initials: initials, Date: "2024-03-04", Minutes: minutes,
	})
	require.NoError(t, err)
	return e
}

func TestAddAndList(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	e := add(t, s, 10, "al", 30)
	assert.NotEmpty(t, e.UUID)
	add(t, s, 20, "bn", 45)
	add(t, s, 10, "al", 15)

	all, err := s.List(ctx, timelog.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, e, all[0])

	id := 10
	mine, err := s.List(ctx, timelog.Filter{MemberID: &id})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	byInitials, err := s.List(ctx, timelog.Filter{Initials: "bn"})
	require.NoError(t, err)
	require.Len(t, byInitials, 1)
	assert.Equal(t, 45, byInitials[0].Minutes)
}

func TestAdd_DefaultsDateToToday(t *testing.T) {
	s := newStore(t)
	e, err := s.Add(context.Background(), timelog.Entry{MemberID: 1, Initials: "a", Minutes: 5})
	require.NoError(t, err)
	assert.Len(t, e.Date, len(timelog.DateLayout))
}

func TestAdd_Invalid(t *testing.T) {
	s := newStore(t)
	cases := map[string]timelog.Entry{
		"no initials":      {MemberID: 1, Date: "2024-01-01", Minutes: 5},
		"negative minutes": {MemberID: 1, Initials: "a", Date: "2024-01-01", Minutes: -1},
		"bad date":         {MemberID: 1, Initials: "a", Date: "01/02/2024", Minutes: 5},
	}
	for name, e := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := s.Add(context.Background(), e)
			assert.ErrorIs(t, err, timelog.ErrInvalidEntry)
		})
	}
}

func TestRetarget_ChainIsNotFollowed(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	add(t, s, 11, "jd", 10)
	add(t, s, 12, "jdx", 20)

	res, err := s.Retarget(ctx, timelog.RetargetPlan{
		Side:            "incoming",
		IDRemap:         map[int]int{11: 12, 12: 13},
		InitialsRenames: map[string]string{"jd": "jdx", "jdx": "jdxx"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.EntriesChecked)
	assert.Equal(t, 2, res.IDsChanged)
	assert.Equal(t, 2, res.InitialsChanged)
	assert.NotEmpty(t, res.RunUUID)

	all, err := s.List(ctx, timelog.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 12, all[0].MemberID)
	assert.Equal(t, "jdx", all[0].Initials)
	assert.Equal(t, 13, all[1].MemberID)
	assert.Equal(t, "jdxx", all[1].Initials)
}

func TestRetarget_Swap(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	add(t, s, 1, "ab", 10)
	add(t, s, 2, "cd", 20)

	_, err := s.Retarget(ctx, timelog.RetargetPlan{
		Side:            "main",
		InitialsRenames: map[string]string{"ab": "cd", "cd": "ab"},
	})
	require.NoError(t, err)

	all, err := s.List(ctx, timelog.Filter{})
	require.NoError(t, err)
	assert.Equal(t, "cd", all[0].Initials)
	assert.Equal(t, "ab", all[1].Initials)
}

func TestRetarget_DryRunLeavesDataAlone(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	add(t, s, 31, "xy", 10)
	add(t, s, 5, "zz", 10)

	res, err := s.Retarget(ctx, timelog.RetargetPlan{
		Side:    "incoming",
		IDRemap: map[int]int{31: 30},
		DryRun:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.IDsChanged)
	assert.Zero(t, res.InitialsChanged)
	assert.Empty(t, res.RunUUID)

	id := 31
	still, err := s.List(ctx, timelog.Filter{MemberID: &id})
	require.NoError(t, err)
	assert.Len(t, still, 1)
}

func TestRetarget_EmptyPlan(t *testing.T) {
	s := newStore(t)
	add(t, s, 1, "a", 1)

	res, err := s.Retarget(context.Background(), timelog.RetargetPlan{Side: "main"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.EntriesChecked)
	assert.Zero(t, res.IDsChanged)
	assert.Zero(t, res.InitialsChanged)
}

func TestRetarget_RecordsRun(t *testing.T) {
	database, _ := testutil.TempDB(t)
	s := timelog.New(database)
	add(t, s, 31, "xy", 10)

	res, err := s.Retarget(context.Background(), timelog.RetargetPlan{
		Side: "incoming", ReportRev: "sha256:abc", IDRemap: map[int]int{31: 30},
	})
	require.NoError(t, err)

	var side, rev string
	var ids int
	err = database.QueryRow(`SELECT side, report_rev, ids_changed FROM retarget_runs WHERE uuid = ?`, res.RunUUID).
		Scan(&side, &rev, &ids)
	require.NoError(t, err)
	assert.Equal(t, "incoming", side)
	assert.Equal(t, "sha256:abc", rev)
	assert.Equal(t, 1, ids)
}
