package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/hpungsan/pasteboard/internal/htmlsplit"
	"github.com/hpungsan/pasteboard/internal/pasteboard"
)

// Config holds application configuration.
type Config struct {
	// MaxTextBytes is the largest text a record may carry.
	MaxTextBytes int `json:"max_text_bytes" toml:"max_text_bytes"`

	// HistoryLimit is how many payloads the history keeps. Older entries
	// are soft-deleted after each copy.
	HistoryLimit int `json:"history_limit" toml:"history_limit"`

	// SplitTag is the payload tag that marks split HTML.
	SplitTag string `json:"split_tag,omitempty" toml:"split_tag,omitempty"`

	// SplitOnCopy splits local images out of HTML when a payload is copied.
	// nil means the default (true).
	SplitOnCopy *bool `json:"split_on_copy,omitempty" toml:"split_on_copy,omitempty"`

	// CompressMinBytes is the encoded size from which stored blobs are
	// zstd-compressed.
	CompressMinBytes int `json:"compress_min_bytes" toml:"compress_min_bytes"`

	// AllowedPaths is an allowlist of directories for import/export operations.
	// Paths outside ~/.pasteboard/exports require either being in this list or AllowUnsafePaths=true.
	// Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty" toml:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for import/export.
	// Symlink and extension checks still apply.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty" toml:"allow_unsafe_paths,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// If set to 1, all database access is serialized (reduces "database is locked" errors).
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty" toml:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty" toml:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty" toml:"disabled_tools,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty" toml:"log_level,omitempty"`

	// WebBind and WebPort are the history viewer's listen address.
	WebBind string `json:"web_bind,omitempty" toml:"web_bind,omitempty"`
	WebPort int    `json:"web_port,omitempty" toml:"web_port,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	split := true
	return &Config{
		MaxTextBytes:     pasteboard.DefaultMaxTextLength,
		HistoryLimit:     200,
		SplitTag:         htmlsplit.DefaultSplitTag,
		SplitOnCopy:      &split,
		CompressMinBytes: 1024,
		LogLevel:         "info",
		WebBind:          "127.0.0.1",
		WebPort:          8765,
	}
}

// SplitEnabled reports whether copies split HTML.
func (c *Config) SplitEnabled() bool {
	return c.SplitOnCopy == nil || *c.SplitOnCopy
}

// SlogLevel maps LogLevel onto slog. Unknown names mean info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load loads configuration from baseDir/config.json, or baseDir/config.toml
// when there is no JSON file. Returns default config if neither exists.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.pasteboard.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFileRaw(findConfigFile(baseDir))
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// LoadWithRepo loads configuration from both global (~/.pasteboard) and repo (.pasteboard) directories.
// Repo config is found by walking upward from startDir to find the nearest .pasteboard/config.*.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(findConfigFile(globalDir))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// findConfigFile returns the config file in dir, preferring JSON.
func findConfigFile(dir string) string {
	for _, name := range []string{"config.json", "config.toml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// FindRepoConfig walks upward from startDir to find the nearest .pasteboard config file.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		if path := findConfigFile(filepath.Join(dir, ".pasteboard")); path != "" {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the path is empty or the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if strings.EqualFold(filepath.Ext(configPath), ".toml") {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", configPath, err)
		}
		return cfg, nil
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", configPath, err)
	}
	return cfg, nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.MaxTextBytes = firstNonZero(overlay.MaxTextBytes, base.MaxTextBytes)
	result.HistoryLimit = firstNonZero(overlay.HistoryLimit, base.HistoryLimit)
	result.CompressMinBytes = firstNonZero(overlay.CompressMinBytes, base.CompressMinBytes)
	result.DBMaxOpenConns = firstNonZero(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = firstNonZero(overlay.DBMaxIdleConns, base.DBMaxIdleConns)
	result.WebPort = firstNonZero(overlay.WebPort, base.WebPort)
	result.SplitTag = firstNonEmpty(overlay.SplitTag, base.SplitTag)
	result.LogLevel = firstNonEmpty(overlay.LogLevel, base.LogLevel)
	result.WebBind = firstNonEmpty(overlay.WebBind, base.WebBind)

	// Tri-state: an explicit overlay value wins
	result.SplitOnCopy = base.SplitOnCopy
	if overlay.SplitOnCopy != nil {
		v := *overlay.SplitOnCopy
		result.SplitOnCopy = &v
	}

	// Booleans: overlay wins if true, else base
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	// Arrays: merge and deduplicate
	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func firstNonZero(a, b int) int {
	if a != 0 {
		return a
	}
	return b
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string(nil), a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
