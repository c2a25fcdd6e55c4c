// Package appctx provides a shared bootstrap helper for CLI commands.
// It centralizes config loading, logger setup, and database opening
// to reduce boilerplate across commands.
package appctx

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dtuma/processdash-sub018/internal/config"
	"github.com/dtuma/processdash-sub018/internal/db"
)

// App holds the shared application context for commands.
type App struct {
	// Config is the loaded configuration
	Config *config.Config

	// Logger writes diagnostics to the command's stderr
	Logger *slog.Logger

	// DB is the opened time log (nil if NeedsDB is false)
	DB *db.DB
}

// Close releases resources held by the App.
// Safe to call multiple times.
func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
		a.DB = nil
	}
}

// Options configures the bootstrap behavior.
type Options struct {
	// NeedsDB indicates whether to open the time log database. The database
	// must be fully migrated.
	NeedsDB bool
}

// DefaultOptions returns default options (no database).
func DefaultOptions() Options {
	return Options{}
}

// WithDB returns options that open the time log.
func WithDB() Options {
	return Options{NeedsDB: true}
}

// RunFunc is the signature for command run functions.
type RunFunc func(app *App, cmd *cobra.Command, args []string) error

// WithApp wraps a command's run function with shared bootstrap logic.
// The database is closed automatically when the wrapped function returns.
func WithApp(opts Options, fn RunFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := Bootstrap(cmd, opts)
		if err != nil {
			return err
		}
		defer app.Close()

		return fn(app, cmd, args)
	}
}

// Bootstrap initializes the App according to the given options.
// Callers are responsible for calling App.Close() when done.
func Bootstrap(cmd *cobra.Command, opts Options) (*App, error) {
	app := &App{}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	app.Config = cfg

	// Flags override config
	if v := flagValue(cmd, "db"); v != "" {
		app.Config.DBPath = v
	}
	if v := flagValue(cmd, "log-level"); v != "" {
		app.Config.LogLevel = v
	}
	if v := flagValue(cmd, "format"); v != "" {
		app.Config.Output = v
	}

	level, err := ParseLevel(app.Config.LogLevel)
	if err != nil {
		return nil, err
	}
	app.Logger = NewLogger(cmd.ErrOrStderr(), level)

	if opts.NeedsDB {
		database, err := db.Open(app.Config.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open time log: %w", err)
		}
		if err := database.RequiresMigrationError(); err != nil {
			database.Close()
			return nil, err
		}
		app.DB = database
		app.Logger.Debug("opened time log", "path", database.Path())
	}

	return app, nil
}

func flagValue(cmd *cobra.Command, name string) string {
	if f := cmd.Flag(name); f != nil {
		return f.Value.String()
	}
	return ""
}

// ParseLevel maps a configured level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q (want debug, info, warn or error)", s)
	}
}

// NewLogger returns a text logger at the given level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
