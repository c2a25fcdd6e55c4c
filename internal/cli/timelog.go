package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dtuma/processdash-sub018/internal/cli/appctx"
	"github.com/dtuma/processdash-sub018/internal/db"
	"github.com/dtuma/processdash-sub018/internal/render"
	"github.com/dtuma/processdash-sub018/internal/timelog"
)

var timelogCmd = &cobra.Command{
	Use:   "timelog",
	Short: "Record and list time attributed to team members",
	Long: `The time log is a small SQLite store of time entries keyed by member id and
initials. It is the data 'teammerge retarget' rewrites after a merge.`,
}

var timelogAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a time log entry",
	Args:  cobra.NoArgs,
	RunE: appctx.WithApp(appctx.WithDB(), func(app *appctx.App, cmd *cobra.Command, args []string) error {
		return runTimelogAdd(cmd.Context(), app, cmd.OutOrStdout(), timelogAddEntry)
	}),
}

var timelogLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List time log entries",
	Args:  cobra.NoArgs,
	RunE: appctx.WithApp(appctx.WithDB(), func(app *appctx.App, cmd *cobra.Command, args []string) error {
		var filter timelog.Filter
		if cmd.Flags().Changed("member") {
			filter.MemberID = &timelogLsMember
		}
		filter.Initials = timelogLsInitials
		return runTimelogLs(cmd.Context(), app, cmd.OutOrStdout(), filter)
	}),
}

var timelogMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the time log database",
	Long: `Migrate applies any pending SQL migrations to the time log.

Migrations are embedded in the binary and tracked in the schema_migrations
table. This command is safe to run multiple times.

Use --status to show the current migration status.`,
	Args: cobra.NoArgs,
	RunE: appctx.WithApp(appctx.DefaultOptions(), func(app *appctx.App, cmd *cobra.Command, args []string) error {
		return runTimelogMigrate(app, cmd.OutOrStdout(), timelogMigrateStatus)
	}),
}

var (
	timelogAddEntry      timelog.Entry
	timelogLsMember      int
	timelogLsInitials    string
	timelogMigrateStatus bool
)

func init() {
	rootCmd.AddCommand(timelogCmd)
	timelogCmd.AddCommand(timelogAddCmd, timelogLsCmd, timelogMigrateCmd)

	timelogAddCmd.Flags().IntVar(&timelogAddEntry.MemberID, "member", 0, "Member id")
	timelogAddCmd.Flags().StringVar(&timelogAddEntry.Initials, "initials", "", "Member initials")
	timelogAddCmd.Flags().IntVar(&timelogAddEntry.Minutes, "minutes", 0, "Minutes worked")
	timelogAddCmd.Flags().StringVar(&timelogAddEntry.Date, "date", "", "Work date, YYYY-MM-DD (default today)")
	timelogAddCmd.Flags().StringVar(&timelogAddEntry.Note, "note", "", "Free-form note")
	_ = timelogAddCmd.MarkFlagRequired("member")
	_ = timelogAddCmd.MarkFlagRequired("initials")
	_ = timelogAddCmd.MarkFlagRequired("minutes")

	timelogLsCmd.Flags().IntVar(&timelogLsMember, "member", 0, "Only entries for this member id")
	timelogLsCmd.Flags().StringVar(&timelogLsInitials, "initials", "", "Only entries with these initials")

	timelogMigrateCmd.Flags().BoolVar(&timelogMigrateStatus, "status", false, "Show current migration status")
}

type entryTable []timelog.Entry

func (t entryTable) Table() ([]string, [][]string) {
	rows := make([][]string, 0, len(t))
	for _, e := range t {
		rows = append(rows, []string{
			e.Date, fmt.Sprint(e.MemberID), e.Initials, fmt.Sprint(e.Minutes), e.Note,
		})
	}
	return []string{"DATE", "MEMBER", "INITIALS", "MINUTES", "NOTE"}, rows
}

func runTimelogAdd(ctx context.Context, app *appctx.App, w io.Writer, e timelog.Entry) error {
	if ctx == nil {
		ctx = context.Background()
	}
	added, err := timelog.New(app.DB).Add(ctx, e)
	if err != nil {
		return err
	}
	app.Logger.Debug("added time entry", "uuid", added.UUID)

	r, format, err := newRenderer(app, w)
	if err != nil {
		return err
	}
	if format == render.FormatTable {
		fmt.Fprintf(w, "Added %s\n", added.UUID)
		return nil
	}
	return r.Render(added)
}

func runTimelogLs(ctx context.Context, app *appctx.App, w io.Writer, filter timelog.Filter) error {
	if ctx == nil {
		ctx = context.Background()
	}
	entries, err := timelog.New(app.DB).List(ctx, filter)
	if err != nil {
		return err
	}

	r, format, err := newRenderer(app, w)
	if err != nil {
		return err
	}
	if format == render.FormatTable {
		return r.Render(entryTable(entries))
	}
	if entries == nil {
		entries = []timelog.Entry{}
	}
	return r.Render(entries)
}

func runTimelogMigrate(app *appctx.App, w io.Writer, statusOnly bool) error {
	database, err := db.Open(app.Config.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open time log: %w", err)
	}
	defer database.Close()

	if statusOnly {
		applied, pending, err := database.MigrationStatus()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Time log: %s\n", database.Path())
		fmt.Fprintf(w, "Applied: %d\n", len(applied))
		for _, m := range pending {
			fmt.Fprintf(w, "Pending: %s\n", m)
		}
		return nil
	}

	applied, err := database.MigrateWithInfo()
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if len(applied) == 0 {
		fmt.Fprintln(w, "Time log is up to date. No migrations to apply.")
		return nil
	}
	fmt.Fprintf(w, "Applied %d migration(s) to %s:\n", len(applied), database.Path())
	for _, m := range applied {
		fmt.Fprintf(w, "  %s\n", m)
	}
	return nil
}
