package tree

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTree(t *testing.T) *Tree[string] {
	t.Helper()
	tr := New("R", Content{"zero_day": "2024-01-01"})
	require.NoError(t, tr.Add("R", "a", Content{"name": "A"}))
	require.NoError(t, tr.Add("a", "c", nil))
	require.NoError(t, tr.Add("a", "d", nil))
	require.NoError(t, tr.Add("R", "b", Content{"tags": []string{"x"}}))
	return tr
}

func TestTree_Structure(t *testing.T) {
	tr := sampleTree(t)

	assert.Equal(t, "R{a{c,d}b}", tr.String())
	assert.Equal(t, 5, tr.Len())
	assert.Equal(t, []string{"a", "c", "d", "b"}, tr.IDs())
	assert.Equal(t, []string{"c"}, tr.Predecessors("d"))
	assert.Empty(t, tr.Predecessors("a"))
	assert.Equal(t, 2, tr.Depth("d"))
	assert.Equal(t, -1, tr.Depth("zz"))
	assert.True(t, tr.IsAncestor("a", "d"))
	assert.False(t, tr.IsAncestor("b", "d"))

	parent, ok := tr.Parent("c")
	require.True(t, ok)
	assert.Equal(t, "a", parent)

	_, ok = tr.Parent("R")
	assert.False(t, ok)
	require.NoError(t, tr.Validate())
}

func TestTree_AddRejectsDuplicatesAnywhere(t *testing.T) {
	tr := sampleTree(t)

	err := tr.Add("b", "c", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateID))

	err = tr.Add("missing", "z", nil)
	assert.True(t, errors.Is(err, ErrUnknownNode))
}

func TestTree_InsertPosition(t *testing.T) {
	tr := sampleTree(t)

	require.NoError(t, tr.Insert("R", 1, "i", nil))
	require.NoError(t, tr.Insert("R", 99, "j", nil))
	require.NoError(t, tr.Insert("R", -4, "k", nil))
	assert.Equal(t, "R{k,a{c,d}i,b,j}", tr.String())
}

func TestTree_CloneDoesNotAlias(t *testing.T) {
	tr := sampleTree(t)
	cp := tr.Clone()
	require.True(t, Equal(tr, cp))

	cp.Content("a")["name"] = "changed"
	cp.Content("b")["tags"].([]string)[0] = "y"
	require.NoError(t, cp.Add("b", "e", nil))

	assert.Equal(t, "A", tr.Content("a").StringAttr("name"))
	assert.Equal(t, []string{"x"}, tr.Content("b")["tags"])
	assert.False(t, tr.Contains("e"))
	assert.False(t, Equal(tr, cp))
}

func TestTree_AddCopiesContent(t *testing.T) {
	tr := New[int](0, nil)
	content := Content{"initials": "jd"}
	require.NoError(t, tr.Add(0, 10, content))

	content["initials"] = "zz"
	assert.Equal(t, "jd", tr.Content(10).StringAttr("initials"))
}

func TestTree_Relabel(t *testing.T) {
	tr := sampleTree(t)

	out, err := tr.Relabel(map[string]string{"a": "x", "R": "nope"})
	require.NoError(t, err)
	assert.Equal(t, "R{x{c,d}b}", out.String())
	assert.Equal(t, "A", out.Content("x").StringAttr("name"))
	assert.Equal(t, "R{a{c,d}b}", tr.String(), "original must be untouched")

	_, err = tr.Relabel(map[string]string{"a": "b"})
	assert.True(t, errors.Is(err, ErrDuplicateID))
}

func TestTree_ValidateNil(t *testing.T) {
	var tr *Tree[int]
	assert.Error(t, tr.Validate())
	assert.Error(t, (&Tree[int]{}).Validate())
}

func TestContent_EqualTreatsNilAsAbsent(t *testing.T) {
	a := Content{"name": "A", "color": nil}
	b := Content{"name": "A"}
	assert.True(t, a.Equal(b))
	assert.True(t, b.Equal(a))
	assert.False(t, a.Equal(Content{"name": "B"}))
	assert.True(t, Content(nil).Equal(Content{}))
}

func TestContent_CloneNested(t *testing.T) {
	c := Content{
		"extra": map[string]any{"k": []any{"v", map[string]any{"deep": 1}}},
		"nil":   nil,
	}
	cp := c.Clone()
	_, hasNil := cp["nil"]
	assert.False(t, hasNil)

	cp["extra"].(map[string]any)["k"].([]any)[1].(map[string]any)["deep"] = 2
	assert.Equal(t, 1, c["extra"].(map[string]any)["k"].([]any)[1].(map[string]any)["deep"])
	assert.Equal(t, []string{"extra", "nil"}, c.Keys())
}
