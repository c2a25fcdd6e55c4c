package render

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rows [][]string

func (r rows) Table() ([]string, [][]string) {
	return []string{"KEY", "VALUE"}, r
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatTable, "JSON": FormatJSON, "yaml": FormatYAML, "table": FormatTable} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, Options{Format: FormatTable})
	require.NoError(t, r.Render(rows{{"jd", "jdx"}, {"abc", "d"}}))

	want := "KEY  VALUE\n" +
		"---  -----\n" +
		"jd   jdx\n" +
		"abc  d\n"
	assert.Equal(t, want, buf.String())
}

func TestRenderTable_Porcelain(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, Options{Format: FormatTable, Porcelain: true})
	require.NoError(t, r.RenderTable([]string{"A", "B"}, [][]string{{"1", "2"}}))
	assert.Equal(t, "A\tB\n1\t2\n", buf.String())
}

func TestRenderTable_EmptyWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewRenderer(&buf, Options{}).RenderTable([]string{"A"}, nil))
	assert.Empty(t, buf.String())
}

func TestRenderMap_SortedByKey(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, Options{Porcelain: true})
	require.NoError(t, r.RenderMap("OLD", "NEW", map[string]string{"jdx": "jdxx", "jd": "jdx"}))
	assert.Equal(t, "OLD\tNEW\njd\tjdx\njdx\tjdxx\n", buf.String())
}

func TestRender_StructuredFormats(t *testing.T) {
	data := map[string]int{"b": 2, "a": 1}

	var js bytes.Buffer
	require.NoError(t, NewRenderer(&js, Options{Format: FormatJSON}).Render(data))
	assert.JSONEq(t, `{"a":1,"b":2}`, js.String())

	var ym bytes.Buffer
	require.NoError(t, NewRenderer(&ym, Options{Format: FormatYAML}).Render(data))
	assert.YAMLEq(t, "a: 1\nb: 2\n", ym.String())

	// Non-tabular data falls back to JSON in table mode.
	var tb bytes.Buffer
	require.NoError(t, NewRenderer(&tb, Options{Format: FormatTable}).Render(data))
	assert.JSONEq(t, `{"a":1,"b":2}`, tb.String())
}
