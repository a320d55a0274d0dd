package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
)

// RepoFileName is the per-repository config file, read from the
// repository root.
const RepoFileName = ".plansync.toml"

// EnvPrefix prefixes every environment override
const EnvPrefix = "PLANSYNC_"

// Config holds everything needed to wire the engine for one repository
type Config struct {
	RepoDir string

	// APIURL is the planning service base URL. Empty selects the
	// in-memory service, useful for dry runs.
	APIURL   string
	APIToken string

	// SeedFile optionally fills the in-memory service with a YAML data
	// set. Relative paths are resolved against RepoDir.
	SeedFile string

	TrackingPrefix string
	WorkingPrefix  string
	DocumentDir    string

	// DBPath is the sqlite audit database. Relative paths are resolved
	// against the repository's .git directory.
	DBPath string

	CacheTTL       time.Duration
	PerCallTimeout time.Duration
	MaxRetries     int
	BaseDelay      time.Duration
	MaxDelay       time.Duration

	LogLevel string
}

// Default returns the built-in configuration for repoDir
func Default(repoDir string) Config {
	return Config{
		RepoDir:        repoDir,
		TrackingPrefix: "plansync",
		WorkingPrefix:  "plan",
		DocumentDir:    "plans",
		DBPath:         "plansync.db",
		CacheTTL:       5 * time.Minute,
		PerCallTimeout: 30 * time.Second,
		MaxRetries:     4,
		BaseDelay:      500 * time.Millisecond,
		MaxDelay:       8 * time.Second,
		LogLevel:       "info",
	}
}

type fileConfig struct {
	APIURL         string `toml:"api_url"`
	APIToken       string `toml:"api_token"`
	SeedFile       string `toml:"seed_file"`
	TrackingPrefix string `toml:"tracking_prefix"`
	WorkingPrefix  string `toml:"working_prefix"`
	DocumentDir    string `toml:"document_dir"`
	DBPath         string `toml:"db_path"`
	CacheTTL       string `toml:"cache_ttl"`
	PerCallTimeout string `toml:"per_call_timeout"`
	MaxRetries     int    `toml:"max_retries"`
	BaseDelay      string `toml:"base_delay"`
	MaxDelay       string `toml:"max_delay"`
	LogLevel       string `toml:"log_level"`
}

// UserFile returns the path of the per-user config file
func UserFile() string {
	return filepath.Join(xdg.ConfigHome, "plansync", "config.toml")
}

// Load layers the defaults, the user file, the repository file and
// PLANSYNC_* environment variables, later layers winning. Missing files
// are skipped.
func Load(repoDir string) (Config, error) {
	abs, err := filepath.Abs(repoDir)
	if err != nil {
		return Config{}, fmt.Errorf("resolve repository dir: %w", err)
	}
	cfg := Default(abs)

	for _, path := range []string{UserFile(), filepath.Join(abs, RepoFileName)} {
		if err := cfg.applyFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyFile(path string) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}

	setString := func(key, value string, dst *string) {
		if meta.IsDefined(key) {
			*dst = strings.TrimSpace(value)
		}
	}
	setString("api_url", raw.APIURL, &c.APIURL)
	setString("api_token", raw.APIToken, &c.APIToken)
	setString("seed_file", raw.SeedFile, &c.SeedFile)
	setString("tracking_prefix", raw.TrackingPrefix, &c.TrackingPrefix)
	setString("working_prefix", raw.WorkingPrefix, &c.WorkingPrefix)
	setString("document_dir", raw.DocumentDir, &c.DocumentDir)
	setString("db_path", raw.DBPath, &c.DBPath)
	setString("log_level", raw.LogLevel, &c.LogLevel)

	durations := []struct {
		key   string
		value string
		dst   *time.Duration
	}{
		{"cache_ttl", raw.CacheTTL, &c.CacheTTL},
		{"per_call_timeout", raw.PerCallTimeout, &c.PerCallTimeout},
		{"base_delay", raw.BaseDelay, &c.BaseDelay},
		{"max_delay", raw.MaxDelay, &c.MaxDelay},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.value))
		if err != nil {
			return fmt.Errorf("parse %s in %s: %w", d.key, path, err)
		}
		*d.dst = v
	}

	if meta.IsDefined("max_retries") {
		c.MaxRetries = raw.MaxRetries
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"API_URL":         &c.APIURL,
		"API_TOKEN":       &c.APIToken,
		"SEED_FILE":       &c.SeedFile,
		"TRACKING_PREFIX": &c.TrackingPrefix,
		"WORKING_PREFIX":  &c.WorkingPrefix,
		"DOCUMENT_DIR":    &c.DocumentDir,
		"DB_PATH":         &c.DBPath,
		"LOG_LEVEL":       &c.LogLevel,
	}
	for key, dst := range strs {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	durations := map[string]*time.Duration{
		"CACHE_TTL":        &c.CacheTTL,
		"PER_CALL_TIMEOUT": &c.PerCallTimeout,
		"BASE_DELAY":       &c.BaseDelay,
		"MAX_DELAY":        &c.MaxDelay,
	}
	for key, dst := range durations {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("parse %s%s: %w", EnvPrefix, key, err)
		}
		*dst = d
	}

	if v, ok := lookup(EnvPrefix + "MAX_RETRIES"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("parse %sMAX_RETRIES: %w", EnvPrefix, err)
		}
		c.MaxRetries = n
	}
	return nil
}

// Validate rejects values the engine cannot run with
func (c Config) Validate() error {
	switch {
	case c.TrackingPrefix == "" || c.WorkingPrefix == "":
		return fmt.Errorf("branch prefixes must not be empty")
	case c.TrackingPrefix == c.WorkingPrefix:
		return fmt.Errorf("tracking and working prefixes must differ, both are %q", c.TrackingPrefix)
	case c.DocumentDir == "" || filepath.IsAbs(c.DocumentDir):
		return fmt.Errorf("document_dir must be a relative path, got %q", c.DocumentDir)
	case c.CacheTTL < 0:
		return fmt.Errorf("cache_ttl must not be negative")
	case c.PerCallTimeout <= 0:
		return fmt.Errorf("per_call_timeout must be positive")
	case c.MaxRetries < 0:
		return fmt.Errorf("max_retries must not be negative")
	}
	return nil
}

// DatabasePath resolves DBPath against the repository's .git directory
func (c Config) DatabasePath() string {
	if filepath.IsAbs(c.DBPath) {
		return c.DBPath
	}
	return filepath.Join(c.RepoDir, ".git", c.DBPath)
}

// SeedPath resolves SeedFile against RepoDir. Empty when unset.
func (c Config) SeedPath() string {
	if c.SeedFile == "" || filepath.IsAbs(c.SeedFile) {
		return c.SeedFile
	}
	return filepath.Join(c.RepoDir, c.SeedFile)
}

// UsesMemoryService reports whether no planning service is configured
func (c Config) UsesMemoryService() bool {
	return c.APIURL == ""
}
