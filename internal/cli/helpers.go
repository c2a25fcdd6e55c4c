package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/dtuma/processdash-sub018/internal/cli/appctx"
	"github.com/dtuma/processdash-sub018/internal/render"
	"github.com/dtuma/processdash-sub018/internal/snapshot"
)

// newRenderer builds a renderer for the configured output format.
func newRenderer(app *appctx.App, w io.Writer) (*render.Renderer, render.Format, error) {
	format, err := render.ParseFormat(app.Config.Output)
	if err != nil {
		return nil, "", err
	}
	return render.NewRenderer(w, render.Options{Format: format}), format, nil
}

// warningTable shows report warnings as rows.
type warningTable []snapshot.ReportWarning

func (t warningTable) Table() ([]string, [][]string) {
	rows := make([][]string, 0, len(t))
	for _, w := range t {
		ids := make([]string, len(w.SubjectIDs))
		for i, id := range w.SubjectIDs {
			ids[i] = fmt.Sprint(id)
		}
		rows = append(rows, []string{w.Severity.String(), w.Key, strings.Join(ids, ","), w.Message})
	}
	return []string{"SEVERITY", "KEY", "MEMBERS", "MESSAGE"}, rows
}

// idRows lists an id remap sorted by old id.
func idRows(m map[int]int) [][]string {
	rows := make([][]string, 0, len(m))
	for _, from := range slices.Sorted(maps.Keys(m)) {
		rows = append(rows, []string{fmt.Sprint(from), fmt.Sprint(m[from])})
	}
	return rows
}
