// Package config loads the supervisor configuration.
// Values are resolved from (highest to lowest priority):
// 1. Environment variables (BDB_*)
// 2. The config file (~/.bdb/config.yaml, or the legacy ~/.bdbrc)
// 3. Defaults
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var (
	ErrInsecureConfig = errors.New("config file has insecure permissions")
	ErrConfigExists   = errors.New("config file already exists")
)

const (
	dirName        = ".bdb"
	fileName       = "config.yaml"
	legacyFileName = ".bdbrc"
	envFileName    = ".env"

	// EnvConfigPath overrides the config file location.
	EnvConfigPath = "BDB_CONFIG"
)

// Config holds all supervisor configuration.
type Config struct {
	LLM       LLMConfig        `yaml:"llm"`
	Hooks     HooksConfig      `yaml:"hooks"`
	Logging   LoggingConfig    `yaml:"logging"`
	Telemetry TelemetryConfig  `yaml:"telemetry"`
	Blocklist []BlocklistEntry `yaml:"blocklist"`
}

// LLMConfig selects the model used for arbitration, stop review and failure hints.
type LLMConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	APIKey    string `yaml:"api_key"`
	APIKeyEnv string `yaml:"api_key_env"`
	BaseURL   string `yaml:"base_url"`
	// Timeout in seconds.
	Timeout   int   `yaml:"timeout"`
	MaxTokens int64 `yaml:"max_tokens"`
}

// HooksConfig holds the per-event pipeline settings.
type HooksConfig struct {
	Stop        StopConfig        `yaml:"stop"`
	PreTool     PreToolConfig     `yaml:"pre_tool"`
	ToolFailure ToolFailureConfig `yaml:"tool_failure"`
	PreCompact  PreCompactConfig  `yaml:"pre_compact"`
}

// StopConfig toggles the stop review and its evasion signature families.
type StopConfig struct {
	Enabled                bool `yaml:"enabled"`
	BlockPermissionSeeking bool `yaml:"block_permission_seeking"`
	BlockPlanDeviation     bool `yaml:"block_plan_deviation"`
	BlockQualityShortcuts  bool `yaml:"block_quality_shortcuts"`
}

// PreToolConfig configures command screening.
type PreToolConfig struct {
	Enabled bool `yaml:"enabled"`
	// Categories toggles catalog rule categories by key.
	Categories map[string]bool `yaml:"categories"`
	// LLMFallback is "block" or "allow", used when arbitration has no model.
	LLMFallback string `yaml:"llm_fallback"`
	// ProtectedPaths are extra doublestar globs no tool may touch.
	ProtectedPaths []string `yaml:"protected_paths"`
}

// ToolFailureConfig configures recovery hints.
type ToolFailureConfig struct {
	Enabled bool `yaml:"enabled"`
	// ConfidenceThreshold is one of low, medium, high.
	ConfidenceThreshold string `yaml:"confidence_threshold"`
}

// PreCompactConfig configures context preservation before compaction.
type PreCompactConfig struct {
	Enabled           bool `yaml:"enabled"`
	InjectGitContext  bool `yaml:"inject_git_context"`
	QuoteContextFiles bool `yaml:"quote_context_files"`
	// ContextPatterns are extra doublestar globs, relative to cwd, to preserve.
	ContextPatterns []string `yaml:"context_patterns"`
}

// LoggingConfig configures the rotating log file.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// TelemetryConfig configures OTLP metric export.
type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
}

// BlocklistEntry is a user-defined pattern blocked for the listed tools.
type BlocklistEntry struct {
	Pattern string   `yaml:"pattern"`
	Reason  string   `yaml:"reason"`
	Tools   []string `yaml:"tools"`
}

// Category keys accepted under hooks.pre_tool.categories.
var CategoryKeys = []string{
	"ci_bypass",
	"destructive_git",
	"branch_switching",
	"interactive_git",
	"dangerous_files",
	"git_history",
	"credential_access",
}

const (
	defaultProvider        = "anthropic"
	defaultModel           = "claude-haiku-4-5"
	defaultTimeout         = 30
	defaultMaxTokens       = 1024
	defaultBlocklistReason = "Blocked by user blocklist"
)

// Default returns the default configuration.
func Default() Config {
	categories := make(map[string]bool, len(CategoryKeys))
	for _, key := range CategoryKeys {
		categories[key] = true
	}

	return Config{
		LLM: LLMConfig{
			Provider:  defaultProvider,
			Model:     defaultModel,
			Timeout:   defaultTimeout,
			MaxTokens: defaultMaxTokens,
		},
		Hooks: HooksConfig{
			Stop: StopConfig{
				Enabled:                true,
				BlockPermissionSeeking: true,
				BlockPlanDeviation:     true,
				BlockQualityShortcuts:  true,
			},
			PreTool: PreToolConfig{
				Enabled:     true,
				Categories:  categories,
				LLMFallback: "block",
			},
			ToolFailure: ToolFailureConfig{
				Enabled:             true,
				ConfidenceThreshold: "medium",
			},
			PreCompact: PreCompactConfig{
				Enabled:           true,
				InjectGitContext:  true,
				QuoteContextFiles: true,
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       "~/.bdb/supervisor.log",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Telemetry: TelemetryConfig{
			Endpoint: "localhost:4317",
			Insecure: true,
		},
	}
}

// Dir returns the per-user state directory (~/.bdb).
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, dirName), nil
}

// DefaultPath returns ~/.bdb/config.yaml.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// ResolvePath picks the config file to read: BDB_CONFIG, then
// ~/.bdb/config.yaml, then the legacy ~/.bdbrc. An empty result means none exists.
func ResolvePath() string {
	if override := strings.TrimSpace(os.Getenv(EnvConfigPath)); override != "" {
		return override
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	for _, candidate := range []string{
		filepath.Join(home, dirName, fileName),
		filepath.Join(home, legacyFileName),
	} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// Load reads the config at path on top of Default, then applies environment
// overrides. An empty path or a missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromPath(path, &cfg); err != nil {
			return applyEnv(Default()), err
		}
	}

	cfg = normalize(cfg)
	return applyEnv(cfg), nil
}

func loadFromPath(path string, cfg *Config) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to stat config %s: %w", path, err)
	}
	if err := CheckPermissions(info); err != nil {
		return fmt.Errorf("%w: %s (run: chmod 600 %s)", err, path, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	// Decoding into the populated defaults keeps unset keys, including
	// individual entries of the categories map.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("invalid YAML in %s: %w", path, err)
	}
	return nil
}

// CheckPermissions rejects files readable or writable by group or others.
func CheckPermissions(info fs.FileInfo) error {
	if info.Mode().Perm()&0o077 != 0 {
		return ErrInsecureConfig
	}
	return nil
}

func normalize(cfg Config) Config {
	for i, entry := range cfg.Blocklist {
		if entry.Reason == "" {
			cfg.Blocklist[i].Reason = defaultBlocklistReason
		}
		if len(entry.Tools) == 0 {
			cfg.Blocklist[i].Tools = []string{"*"}
		}
	}
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	cfg.Hooks.PreTool.LLMFallback = strings.ToLower(strings.TrimSpace(cfg.Hooks.PreTool.LLMFallback))
	cfg.Hooks.ToolFailure.ConfidenceThreshold = strings.ToLower(strings.TrimSpace(cfg.Hooks.ToolFailure.ConfidenceThreshold))
	return cfg
}

// applyEnv applies environment variable overrides.
func applyEnv(cfg Config) Config {
	if v := os.Getenv("BDB_LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("BDB_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("BDB_LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("BDB_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("BDB_LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}
	if v := os.Getenv("BDB_OTEL_ENDPOINT"); v != "" {
		cfg.Telemetry.Endpoint = v
		cfg.Telemetry.Enabled = true
	}
	return cfg
}

// LoadEnvFile loads KEY=VALUE pairs from ~/.bdb/.env without overriding
// variables already set in the environment. A missing file is not an error.
func LoadEnvFile(dir string) error {
	path := filepath.Join(dir, envFileName)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

var providerKeyEnv = map[string]string{
	"anthropic": "ANTHROPIC_API_KEY",
}

// ResolveAPIKey returns api_key, else the variable named by api_key_env, else
// the provider's conventional variable.
func (c LLMConfig) ResolveAPIKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	if c.APIKeyEnv != "" {
		return os.Getenv(c.APIKeyEnv)
	}
	if name, ok := providerKeyEnv[c.Provider]; ok {
		return os.Getenv(name)
	}
	return ""
}

// TimeoutDuration returns the per-call timeout.
func (c LLMConfig) TimeoutDuration() time.Duration {
	if c.Timeout <= 0 {
		return defaultTimeout * time.Second
	}
	return time.Duration(c.Timeout) * time.Second
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
