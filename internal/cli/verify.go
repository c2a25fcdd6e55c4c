package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dtuma/processdash-sub018/internal/bulk"
	"github.com/dtuma/processdash-sub018/internal/cli/appctx"
	"github.com/dtuma/processdash-sub018/internal/render"
	"github.com/dtuma/processdash-sub018/internal/snapshot"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <file>...",
	Short: "Check that roster files are valid and canonical",
	Long: `Verify loads each roster file and checks that:
  - the roster is valid (unique ids, names and initials; a parseable zero day)
  - the stored snapshot_rev matches the content
  - the file is written in canonical form

Files written by 'teammerge merge --out' always pass. A file edited by hand
usually fails the rev check; re-save it with a merge or fix the rev.`,
	Args: cobra.MinimumNArgs(1),
	RunE: appctx.WithApp(appctx.DefaultOptions(), func(app *appctx.App, cmd *cobra.Command, args []string) error {
		return runVerify(cmd.Context(), app, cmd.OutOrStdout(), args, verifyJobs)
	}),
}

var verifyJobs int

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().IntVarP(&verifyJobs, "jobs", "j", 0, "Files to check in parallel (0 = one per CPU)")
}

type verifyResults []*snapshot.VerifyResult

func (v verifyResults) Table() ([]string, [][]string) {
	rows := make([][]string, 0, len(v))
	for _, r := range v {
		status := "ok"
		if !r.Valid {
			status = "FAIL"
		}
		rows = append(rows, []string{r.InputPath, status, fmt.Sprint(r.MemberCount), r.Message})
	}
	return []string{"FILE", "STATUS", "MEMBERS", "MESSAGE"}, rows
}

func runVerify(ctx context.Context, app *appctx.App, w io.Writer, paths []string, jobs int) error {
	if ctx == nil {
		ctx = context.Background()
	}
	checked := bulk.Execute(ctx, bulk.Operation{Jobs: jobs}, paths,
		func(_ context.Context, path string) (*snapshot.VerifyResult, error) {
			return snapshot.Verify(path)
		})
	if err := checked.Err(); err != nil {
		return err
	}
	if checked.Skipped > 0 {
		return ctx.Err()
	}

	results := verifyResults(checked.Values)
	failed := 0
	for _, res := range results {
		if !res.Valid {
			failed++
		}
	}
	app.Logger.Debug("verified roster files", "files", len(paths), "failed", failed)

	r, format, err := newRenderer(app, w)
	if err != nil {
		return err
	}
	if format == render.FormatTable {
		err = r.Render(results)
	} else {
		err = r.Render([]*snapshot.VerifyResult(results))
	}
	if err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed verification", failed, len(paths))
	}
	return nil
}
