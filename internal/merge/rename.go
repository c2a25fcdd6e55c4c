package merge

import (
	"github.com/dtuma/processdash-sub018/internal/tree"
)

// RenameMap reports how the values of attr changed between a branch and the
// merged tree. For every node present in both (matched by id) whose branch
// and merged values are both non-empty and differ, the map sends the branch
// value to the merged value. The result depends only on its inputs.
func RenameMap[ID comparable](attr string, branch, merged *tree.Tree[ID]) map[string]string {
	out := make(map[string]string)
	for _, id := range branch.IDs() {
		mc := merged.Content(id)
		if mc == nil {
			continue
		}
		from := branch.Content(id).StringAttr(attr)
		to := mc.StringAttr(attr)
		if from != "" && to != "" && from != to {
			out[from] = to
		}
	}
	return out
}
