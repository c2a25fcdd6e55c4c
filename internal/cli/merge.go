package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dtuma/processdash-sub018/internal/cli/appctx"
	"github.com/dtuma/processdash-sub018/internal/render"
	"github.com/dtuma/processdash-sub018/internal/roster"
	"github.com/dtuma/processdash-sub018/internal/snapshot"
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Three-way merge two edited copies of a roster",
	Long: `Merge reconciles the main and incoming copies of a roster against their
common base and writes the merged roster.

Edits made on only one side are adopted. When both sides changed the same
thing differently, main wins and a conflict is reported. Members both sides
added for the same person are folded into main's id, and colliding names or
initials are suffixed to stay unique.

The merge report (--report) records the warnings plus the id and initials
changes each side needs; feed it to 'teammerge retarget'.

Examples:
  teammerge merge --base base.json --main ours.json --incoming theirs.json --out merged.json
  teammerge merge --base b.yaml --main m.yaml --incoming i.yaml --report report.json -o json
`,
	Args: cobra.NoArgs,
	RunE: appctx.WithApp(appctx.DefaultOptions(), func(app *appctx.App, cmd *cobra.Command, args []string) error {
		return runMerge(app, cmd.OutOrStdout(), mergeOpts)
	}),
}

// errConflicts is returned by merge --strict when a conflict needs review.
var errConflicts = errors.New("merge finished with conflicts that need review")

type mergeOptions struct {
	Base     string
	Main     string
	Incoming string
	Out      string
	Report   string
	Strict   bool
}

var mergeOpts mergeOptions

func init() {
	rootCmd.AddCommand(mergeCmd)

	mergeCmd.Flags().StringVar(&mergeOpts.Base, "base", "", "Common ancestor roster file")
	mergeCmd.Flags().StringVar(&mergeOpts.Main, "main", "", "Main (local) roster file")
	mergeCmd.Flags().StringVar(&mergeOpts.Incoming, "incoming", "", "Incoming roster file")
	mergeCmd.Flags().StringVar(&mergeOpts.Out, "out", "", "Write the merged roster here (.json or .yaml)")
	mergeCmd.Flags().StringVar(&mergeOpts.Report, "report", "", "Write the merge report here (.json or .yaml)")
	mergeCmd.Flags().BoolVar(&mergeOpts.Strict, "strict", false, "Exit with an error when conflicts were reported")
	for _, name := range []string{"base", "main", "incoming"} {
		_ = mergeCmd.MarkFlagRequired(name)
	}
}

// loadWithRev loads a roster file and returns its content rev.
func loadWithRev(path string) (*snapshot.Snapshot, string, error) {
	snap, _, err := snapshot.Load(path)
	if err != nil {
		return nil, "", err
	}
	rev, err := snapshot.Rev(snap)
	if err != nil {
		return nil, "", err
	}
	return snap, rev, nil
}

func runMerge(app *appctx.App, w io.Writer, opts mergeOptions) error {
	base, baseRev, err := loadWithRev(opts.Base)
	if err != nil {
		return fmt.Errorf("base: %w", err)
	}
	main, mainRev, err := loadWithRev(opts.Main)
	if err != nil {
		return fmt.Errorf("main: %w", err)
	}
	incoming, incomingRev, err := loadWithRev(opts.Incoming)
	if err != nil {
		return fmt.Errorf("incoming: %w", err)
	}

	policies, err := app.Config.MergePolicies()
	if err != nil {
		return err
	}

	res, err := roster.Merge(base.Roster(), main.Roster(), incoming.Roster(), roster.Options{
		Policies:     policies,
		UniqueSuffix: app.Config.UniqueSuffix,
		Logger:       app.Logger,
	})
	if err != nil {
		return err
	}

	report, err := snapshot.NewReport(res, baseRev, mainRev, incomingRev)
	if err != nil {
		return err
	}

	if opts.Out != "" {
		saved, err := snapshot.Save(opts.Out, res.Merged, snapshot.SaveOptions{})
		if err != nil {
			return fmt.Errorf("failed to write merged roster: %w", err)
		}
		app.Logger.Info("wrote merged roster", "path", saved.OutputPath, "members", saved.MemberCount, "rev", saved.SnapshotRev)
	}
	if opts.Report != "" {
		if err := snapshot.SaveReport(opts.Report, report); err != nil {
			return err
		}
		app.Logger.Info("wrote merge report", "path", opts.Report, "rev", report.Meta.SnapshotRev)
	}

	if err := printReport(app, w, report, len(res.Merged.Members)); err != nil {
		return err
	}

	if opts.Strict && report.HasConflicts() {
		return errConflicts
	}
	return nil
}

func printReport(app *appctx.App, w io.Writer, report *snapshot.Report, members int) error {
	r, format, err := newRenderer(app, w)
	if err != nil {
		return err
	}
	if format != render.FormatTable {
		return r.Render(report)
	}

	conflicts := 0
	for _, warn := range report.Warnings {
		if warn.IsConflict() {
			conflicts++
		}
	}
	fmt.Fprintf(w, "Merged %d members: %d warning(s), %d conflict(s)\n", members, len(report.Warnings), conflicts)

	if len(report.Warnings) > 0 {
		fmt.Fprintln(w)
		if err := r.Render(warningTable(report.Warnings)); err != nil {
			return err
		}
	}
	if len(report.ChangedIncomingIDs) > 0 {
		fmt.Fprintln(w, "\nIncoming ids folded into main:")
		if err := r.RenderTable([]string{"INCOMING", "MERGED"}, idRows(report.ChangedIncomingIDs)); err != nil {
			return err
		}
	}
	for _, side := range []struct {
		label   string
		renames map[string]string
	}{
		{"Initials to change in main:", report.MainInitialsChanges},
		{"Initials to change in incoming:", report.IncomingInitialsChanges},
	} {
		if len(side.renames) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s\n", side.label)
		if err := r.RenderMap("OLD", "NEW", side.renames); err != nil {
			return err
		}
	}
	return nil
}
