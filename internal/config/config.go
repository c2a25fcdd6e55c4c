package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dtuma/processdash-sub018/internal/merge"
)

const (
	localDBPath = ".teammerge/timelog.db"
	appDir      = "teammerge"
)

// Config represents the application configuration
type Config struct {
	DBPath       string `yaml:"db_path"`
	LogLevel     string `yaml:"log_level"`
	Output       string `yaml:"output"`
	UniqueSuffix string `yaml:"unique_suffix"`
	// Policies overrides roster attribute policies, keyed by attribute name
	// or pattern, e.g. {"hours_per_week": "prefer-incoming"}.
	Policies map[string]string `yaml:"policies"`
}

// Load loads configuration from multiple sources with precedence:
// 1. Environment variables
// 2. ./.env.local (dotenv) - walks up parent directories to find it
// 3. ~/.config/teammerge/config.yaml (YAML)
func Load() (*Config, error) {
	cfg := &Config{
		LogLevel:     "info",
		Output:       "table",
		UniqueSuffix: merge.DefaultUniqueSuffix,
	}

	// Load .env.local if it exists (walking up parent directories)
	if envPath := findEnvLocal(); envPath != "" {
		_ = godotenv.Load(envPath)
	}

	// The YAML file is optional; only a malformed one is an error.
	if err := loadYAMLConfig(cfg); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Override with environment variables
	if dbPath := getEnvOrFile("TEAMMERGE_DB_PATH", "TEAMMERGE_DB_PATH_FILE"); dbPath != "" {
		cfg.DBPath = dbPath
	}
	if logLevel := os.Getenv("TEAMMERGE_LOG_LEVEL"); logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if output := os.Getenv("TEAMMERGE_OUTPUT"); output != "" {
		cfg.Output = output
	}
	if suffix := os.Getenv("TEAMMERGE_UNIQUE_SUFFIX"); suffix != "" {
		cfg.UniqueSuffix = suffix
	}

	if cfg.DBPath == "" {
		// Check for project-local database first
		if _, err := os.Stat(localDBPath); err == nil {
			cfg.DBPath = localDBPath
		} else {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("failed to get home directory: %w", err)
			}
			cfg.DBPath = filepath.Join(homeDir, ".local", "share", appDir, "timelog.db")
		}
	}

	return cfg, nil
}

// MergePolicies parses the configured policy overrides.
func (c *Config) MergePolicies() (map[string]merge.Policy, error) {
	if len(c.Policies) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(c.Policies))
	for name := range c.Policies {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]merge.Policy, len(c.Policies))
	for _, name := range names {
		p, err := merge.ParsePolicy(c.Policies[name])
		if err != nil {
			return nil, fmt.Errorf("policy for %q: %w", name, err)
		}
		out[name] = p
	}
	return out, nil
}

// loadYAMLConfig loads configuration from ~/.config/teammerge/config.yaml
func loadYAMLConfig(cfg *Config) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(homeDir, ".config", appDir, "config.yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// getEnvOrFile gets an environment variable value, or reads it from a file
// if the _FILE variant is set
func getEnvOrFile(envVar, fileVar string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}

	if filePath := os.Getenv(fileVar); filePath != "" {
		data, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimSpace(string(data))
		}
	}

	return ""
}

// findEnvLocal searches for .env.local starting from cwd and walking up
// parent directories. Stops at the user's home directory.
func findEnvLocal() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		if _, err := os.Stat(".env.local"); err == nil {
			return ".env.local"
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	homeDir = filepath.Clean(homeDir)
	dir := filepath.Clean(cwd)

	for {
		envPath := filepath.Join(dir, ".env.local")
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
		if dir == homeDir {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}
