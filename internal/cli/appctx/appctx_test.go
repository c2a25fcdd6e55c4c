package appctx

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/dtuma/processdash-sub018/internal/db"
)

func isolate(t *testing.T, dbPath string) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	t.Setenv("TEAMMERGE_DB_PATH", dbPath)
	for _, v := range []string{"TEAMMERGE_DB_PATH_FILE", "TEAMMERGE_LOG_LEVEL", "TEAMMERGE_OUTPUT", "TEAMMERGE_UNIQUE_SUFFIX"} {
		t.Setenv(v, "")
		os.Unsetenv(v)
	}
}

func testCommand(args ...string) *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Flags().String("db", "", "Database path")
	cmd.Flags().String("log-level", "", "Log level")
	cmd.Flags().String("format", "", "Output format")
	cmd.ParseFlags(args)
	return cmd
}

func migratedDB(t *testing.T, path string) {
	t.Helper()
	database, err := db.Open(path)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	if err := database.Migrate(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	database.Close()
}

func TestBootstrap_ConfigOnly(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "timelog.db")
	isolate(t, dbPath)

	app, err := Bootstrap(testCommand(), DefaultOptions())
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	defer app.Close()

	if app.Config == nil || app.Logger == nil {
		t.Fatal("Config and Logger should be set")
	}
	if app.DB != nil {
		t.Error("DB should be nil when NeedsDB is false")
	}
	if _, err := os.Stat(dbPath); !os.IsNotExist(err) {
		t.Error("database file should not be created without NeedsDB")
	}
}

func TestBootstrap_WithDB(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "timelog.db")
	migratedDB(t, dbPath)
	isolate(t, dbPath)

	app, err := Bootstrap(testCommand(), WithDB())
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	defer app.Close()

	if app.DB == nil {
		t.Fatal("DB should be opened")
	}
	if app.DB.Path() != dbPath {
		t.Errorf("DB path = %q, want %q", app.DB.Path(), dbPath)
	}
}

func TestBootstrap_RequiresMigration(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "fresh.db")
	isolate(t, dbPath)

	_, err := Bootstrap(testCommand(), WithDB())
	if err == nil {
		t.Fatal("expected migration error for unmigrated time log")
	}
	if !strings.Contains(err.Error(), "timelog migrate") {
		t.Errorf("error should point at the migrate command, got: %v", err)
	}
}

func TestBootstrap_FlagOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	envPath := filepath.Join(tmpDir, "env.db")
	overridePath := filepath.Join(tmpDir, "override.db")
	migratedDB(t, overridePath)
	isolate(t, envPath)

	cmd := testCommand("--db", overridePath, "--log-level", "debug", "--format", "json")
	var stderr bytes.Buffer
	cmd.SetErr(&stderr)

	app, err := Bootstrap(cmd, WithDB())
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	defer app.Close()

	if app.Config.DBPath != overridePath {
		t.Errorf("DBPath should be override path %q, got %q", overridePath, app.Config.DBPath)
	}
	if app.Config.Output != "json" {
		t.Errorf("Output = %q, want json", app.Config.Output)
	}
	if !strings.Contains(stderr.String(), "opened time log") {
		t.Errorf("debug logging should be enabled, got %q", stderr.String())
	}
}

func TestBootstrap_BadLogLevel(t *testing.T) {
	isolate(t, filepath.Join(t.TempDir(), "timelog.db"))

	if _, err := Bootstrap(testCommand("--log-level", "loud"), DefaultOptions()); err == nil {
		t.Fatal("expected error for unknown log level")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
