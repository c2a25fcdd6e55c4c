package cli

import (
	"fmt"
	"io"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"

	"github.com/dtuma/processdash-sub018/internal/cli/appctx"
	"github.com/dtuma/processdash-sub018/internal/snapshot"
)

var diffCmd = &cobra.Command{
	Use:   "diff <A> <B>",
	Short: "Compare two roster files",
	Long: `Compare two roster files as unified diff of their canonical form.

Both files are loaded, validated, and re-rendered canonically before the
comparison, so member order, key order, and JSON versus YAML encoding do not
show up as differences.

Examples:
  teammerge diff base.json merged.json
  teammerge diff ours.yaml theirs.json --unified 1
`,
	Args: cobra.ExactArgs(2),
	RunE: appctx.WithApp(appctx.DefaultOptions(), func(app *appctx.App, cmd *cobra.Command, args []string) error {
		_, err := runDiff(cmd.OutOrStdout(), args[0], args[1], diffUnified)
		return err
	}),
}

var diffUnified int

func init() {
	rootCmd.AddCommand(diffCmd)

	diffCmd.Flags().IntVar(&diffUnified, "unified", 3, "Lines of unified context")
}

// runDiff writes the diff and reports whether the rosters differ.
func runDiff(w io.Writer, pathA, pathB string, contextLines int) (bool, error) {
	a, err := canonicalText(pathA)
	if err != nil {
		return false, err
	}
	b, err := canonicalText(pathB)
	if err != nil {
		return false, err
	}
	if a == b {
		fmt.Fprintln(w, "Rosters are identical.")
		return false, nil
	}

	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(a),
		B:        difflib.SplitLines(b),
		FromFile: pathA,
		ToFile:   pathB,
		Context:  contextLines,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return false, fmt.Errorf("failed to diff rosters: %w", err)
	}
	fmt.Fprint(w, text)
	return true, nil
}

// canonicalText renders a roster file canonically, without its meta block
// so stamps and revs do not show up as differences.
func canonicalText(path string) (string, error) {
	snap, _, err := snapshot.Load(path)
	if err != nil {
		return "", err
	}
	snap.Meta = snapshot.Meta{SchemaVersion: snapshot.SchemaVersion}
	data, err := snapshot.PrettyJSON(snap)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
