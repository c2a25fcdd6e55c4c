package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "teammerge",
	Short: "Three-way merge for concurrently edited team rosters",
	Long: `teammerge reconciles two edited copies of a team roster against the copy
they both started from. One-sided edits are adopted, real disagreements are
resolved in favor of the main copy and reported, and members both copies
added for the same person are folded into one.

The merge report it writes lists the id and initials changes each side must
apply to its own data; 'teammerge retarget' applies them to a time log.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to time log database (overrides TEAMMERGE_DB_PATH)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error (overrides TEAMMERGE_LOG_LEVEL)")
	rootCmd.PersistentFlags().StringP("format", "o", "", "Output format: table, json or yaml (overrides TEAMMERGE_OUTPUT)")
}
