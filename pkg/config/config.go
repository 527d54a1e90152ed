package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/rubiojr/annots/pkg/maintenance"
	"github.com/rubiojr/annots/pkg/search"
)

//go:embed config.toml.sample
var configTemplate string

// Environment variables overriding the config file.
const (
	EnvStorageDir = "ANNOTS_STORAGE_DIR"
	EnvTimezone   = "ANNOTS_TIMEZONE"
	EnvAPIKey     = "ANNOTS_API_KEY"
)

const (
	DefaultListen        = "127.0.0.1:8484"
	DefaultDatabaseName  = "annots.db"
	defaultStoragePrefix = "/home/user/.local/share/annots"
)

type Config struct {
	StorageDir string `toml:"storage_dir"`
	// Timezone is an IANA name. Empty means time.Local.
	Timezone             string `toml:"timezone"`
	HistoryFloor         Date   `toml:"history_floor"`
	InnerLimitMultiplier int    `toml:"inner_limit_multiplier"`
	DefaultLimit         int    `toml:"default_limit"`
	// OptimizeInterval is how often serve runs database maintenance.
	OptimizeInterval Duration  `toml:"optimize_interval"`
	API              APIConfig `toml:"api"`
}

type APIConfig struct {
	Listen string `toml:"listen"`
	// APIKey is the bearer token required by POST /api/import. Empty
	// disables the endpoint.
	APIKey string `toml:"api_key"`
}

// Duration is a time.Duration encoded as a Go duration string ("90m").
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

// Date is a calendar date encoded as YYYY-MM-DD.
type Date struct {
	time.Time
}

func (d Date) MarshalText() ([]byte, error) {
	if d.IsZero() {
		return []byte{}, nil
	}
	return []byte(d.Format(time.DateOnly)), nil
}

func (d *Date) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		d.Time = time.Time{}
		return nil
	}
	t, err := time.Parse(time.DateOnly, string(text))
	if err != nil {
		return fmt.Errorf("parsing date %q: %w", text, err)
	}
	d.Time = t
	return nil
}

func GetDefaultConfig() (*Config, error) {
	storageDir, err := GetDefaultStorageDir()
	if err != nil {
		return nil, fmt.Errorf("getting default storage directory: %w", err)
	}
	cfg := &Config{StorageDir: storageDir}
	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg, nil
}

// LoadConfig reads the TOML file at configPath. A missing file yields the
// default configuration. ANNOTS_STORAGE_DIR, ANNOTS_TIMEZONE and
// ANNOTS_API_KEY override the file.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return GetDefaultConfig()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	config.applyEnv()

	if config.StorageDir == "" {
		storageDir, err := GetDefaultStorageDir()
		if err != nil {
			return nil, fmt.Errorf("getting default storage directory: %w", err)
		}
		config.StorageDir = storageDir
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadEnvFile loads KEY=value pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.HistoryFloor.IsZero() {
		c.HistoryFloor = Date{search.DefaultHistoryFloor}
	}
	if c.InnerLimitMultiplier == 0 {
		c.InnerLimitMultiplier = search.DefaultInnerLimitMultiplier
	}
	if c.DefaultLimit == 0 {
		c.DefaultLimit = search.DefaultLimit
	}
	if c.OptimizeInterval.Duration == 0 {
		c.OptimizeInterval.Duration = maintenance.DefaultInterval
	}
	if c.API.Listen == "" {
		c.API.Listen = DefaultListen
	}
}

func (c *Config) applyEnv() {
	if dir := os.Getenv(EnvStorageDir); dir != "" {
		c.StorageDir = dir
	}
	if tz := os.Getenv(EnvTimezone); tz != "" {
		c.Timezone = tz
	}
	if key := os.Getenv(EnvAPIKey); key != "" {
		c.API.APIKey = key
	}
}

// Validate checks the values LoadConfig cannot default.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.InnerLimitMultiplier < 0 {
		return fmt.Errorf("inner_limit_multiplier must be positive, got %d", c.InnerLimitMultiplier)
	}
	if c.OptimizeInterval.Duration < 0 {
		return fmt.Errorf("optimize_interval must be positive, got %v", c.OptimizeInterval.Duration)
	}
	if c.DefaultLimit < 0 || c.DefaultLimit > search.MaxLimit {
		return fmt.Errorf("default_limit must be between 1 and %d, got %d", search.MaxLimit, c.DefaultLimit)
	}
	return nil
}

// Location returns the timezone day boundaries are computed in.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// DBPath returns the path of the annotation database.
func (c *Config) DBPath() string {
	return filepath.Join(c.StorageDir, DefaultDatabaseName)
}

// SearchOptions returns the search service options described by the config.
func (c *Config) SearchOptions() (search.Options, error) {
	loc, err := c.Location()
	if err != nil {
		return search.Options{}, err
	}
	return search.Options{
		Location:             loc,
		HistoryFloor:         c.HistoryFloor.Time,
		InnerLimitMultiplier: c.InnerLimitMultiplier,
		DefaultLimit:         c.DefaultLimit,
	}, nil
}

func (c *Config) SaveConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(configPath, data, 0644)
}

func (c *Config) SaveTemplateConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	template, err := c.generateConfigTemplate()
	if err != nil {
		return fmt.Errorf("generating config template: %w", err)
	}
	return os.WriteFile(configPath, []byte(template), 0644)
}

func (c *Config) generateConfigTemplate() (string, error) {
	storageDir := c.StorageDir
	if storageDir == "" {
		var err error
		storageDir, err = GetDefaultStorageDir()
		if err != nil {
			return "", fmt.Errorf("getting default storage directory: %w", err)
		}
	}

	// Replace the placeholder storage_dir with the actual path
	return strings.Replace(configTemplate, defaultStoragePrefix, storageDir, 1), nil
}

// GetDefaultStorageDir returns the default storage directory for databases
func GetDefaultStorageDir() (string, error) {
	// Use XDG_DATA_HOME if set, otherwise use ~/.local/share
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	annotsDir := filepath.Join(dataDir, "annots")

	if err := os.MkdirAll(annotsDir, 0755); err != nil {
		return "", fmt.Errorf("creating storage directory %s: %w", annotsDir, err)
	}

	return annotsDir, nil
}

// GetConfigDir returns the configuration directory for annots
func GetConfigDir() (string, error) {
	// Use XDG_CONFIG_HOME if set, otherwise use ~/.config
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	annotsConfigDir := filepath.Join(configDir, "annots")

	if err := os.MkdirAll(annotsConfigDir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory %s: %w", annotsConfigDir, err)
	}

	return annotsConfigDir, nil
}

// GetDefaultConfigPath returns the default configuration file path
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}
