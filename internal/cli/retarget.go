package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dtuma/processdash-sub018/internal/cli/appctx"
	"github.com/dtuma/processdash-sub018/internal/render"
	"github.com/dtuma/processdash-sub018/internal/snapshot"
	"github.com/dtuma/processdash-sub018/internal/timelog"
)

var retargetCmd = &cobra.Command{
	Use:   "retarget",
	Short: "Apply a merge report's id and initials changes to a time log",
	Long: `Retarget rewrites the member ids and initials in a time log so they match
the merged roster.

Each side of a merge owns its own time log. Use --side main for the log that
belongs with the main roster and --side incoming for the other one. Main keeps
its ids, so only initials change there; incoming may also have ids folded
into main's.

All changes are applied in one transaction, simultaneously: a report that
renames jd to jdx and jdx to jdxx moves each entry one step, never two.`,
	Args: cobra.NoArgs,
	RunE: appctx.WithApp(appctx.WithDB(), func(app *appctx.App, cmd *cobra.Command, args []string) error {
		return runRetarget(cmd.Context(), app, cmd.OutOrStdout(), retargetOpts)
	}),
}

type retargetOptions struct {
	Report string
	Side   string
	DryRun bool
}

var retargetOpts retargetOptions

func init() {
	rootCmd.AddCommand(retargetCmd)

	retargetCmd.Flags().StringVar(&retargetOpts.Report, "report", "", "Merge report written by 'teammerge merge --report'")
	retargetCmd.Flags().StringVar(&retargetOpts.Side, "side", "", "Which side's time log this is: main or incoming")
	retargetCmd.Flags().BoolVar(&retargetOpts.DryRun, "dry-run", false, "Count the changes without writing them")
	_ = retargetCmd.MarkFlagRequired("report")
	_ = retargetCmd.MarkFlagRequired("side")
}

type retargetSummary struct {
	*timelog.RetargetResult
}

func (s retargetSummary) Table() ([]string, [][]string) {
	return []string{"ENTRIES", "IDS CHANGED", "INITIALS CHANGED", "RUN"}, [][]string{{
		fmt.Sprint(s.EntriesChecked), fmt.Sprint(s.IDsChanged), fmt.Sprint(s.InitialsChanged), runLabel(s.RetargetResult),
	}}
}

func runLabel(r *timelog.RetargetResult) string {
	if r.DryRun {
		return "(dry run)"
	}
	return r.RunUUID
}

func runRetarget(ctx context.Context, app *appctx.App, w io.Writer, opts retargetOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	report, err := snapshot.LoadReport(opts.Report)
	if err != nil {
		return err
	}
	ids, initials, err := report.Renames(opts.Side)
	if err != nil {
		return err
	}

	store := timelog.New(app.DB)
	res, err := store.Retarget(ctx, timelog.RetargetPlan{
		Side:            opts.Side,
		ReportRev:       report.Meta.SnapshotRev,
		IDRemap:         ids,
		InitialsRenames: initials,
		DryRun:          opts.DryRun,
	})
	if err != nil {
		return fmt.Errorf("failed to retarget time log: %w", err)
	}
	app.Logger.Info("retargeted time log",
		"side", opts.Side, "entries", res.EntriesChecked,
		"ids_changed", res.IDsChanged, "initials_changed", res.InitialsChanged,
		"dry_run", res.DryRun)

	r, format, err := newRenderer(app, w)
	if err != nil {
		return err
	}
	if format == render.FormatTable {
		return r.Render(retargetSummary{res})
	}
	return r.Render(res)
}
