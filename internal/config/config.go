// Package config manages entryrev configuration and the .entryrev directory.
// Settings are read from a TOML file and may be overridden by ENTRYREV_*
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
)

const (
	Dir          = ".entryrev"
	ConfigFile   = "config"
	DatabaseFile = "entries.db"
	LedgerFile   = "tokens.ledger"
	TokensFile   = "tokens.json"
)

// Storage backends
const (
	BackendSQLite   = "sqlite"
	BackendWeaviate = "weaviate"
)

// Defaults
const (
	DefaultTokenTTL      = "24h"
	DefaultBaseURL       = "http://localhost:8720"
	DefaultEmptyValue    = "(empty)"
	DefaultDiffThreshold = 0.9
)

// Actor is a display identity listed in the config
type Actor struct {
	ID        string `toml:"id"`
	Name      string `toml:"name"`
	AvatarURL string `toml:"avatar_url,omitempty"`
}

// Config represents the entryrev configuration
type Config struct {
	Backend       string `toml:"backend" env:"ENTRYREV_BACKEND"`
	Database      string `toml:"database,omitempty" env:"ENTRYREV_DATABASE"`
	WeaviateURL   string `toml:"weaviate_url,omitempty" env:"ENTRYREV_WEAVIATE_URL"`
	WeaviateClass string `toml:"weaviate_class,omitempty" env:"ENTRYREV_WEAVIATE_CLASS"`
	FormsClass    string `toml:"forms_class,omitempty" env:"ENTRYREV_FORMS_CLASS"`

	// Actor is the identity CLI commands act as
	Actor        string              `toml:"actor,omitempty" env:"ENTRYREV_ACTOR"`
	Capabilities map[string][]string `toml:"capabilities,omitempty"`
	Actors       []Actor             `toml:"actors,omitempty"`

	TokenSecret string `toml:"token_secret,omitempty" env:"ENTRYREV_TOKEN_SECRET"`
	TokenTTL    string `toml:"token_ttl,omitempty" env:"ENTRYREV_TOKEN_TTL"`
	Ledger      string `toml:"ledger,omitempty" env:"ENTRYREV_LEDGER"`
	TokensFile  string `toml:"tokens_file,omitempty" env:"ENTRYREV_TOKENS_FILE"`

	BaseURL            string  `toml:"base_url,omitempty" env:"ENTRYREV_BASE_URL"`
	Timezone           string  `toml:"timezone,omitempty" env:"ENTRYREV_TIMEZONE"`
	RestoreMeta        bool    `toml:"restore_meta" env:"ENTRYREV_RESTORE_META"`
	DeleteAfterRestore bool    `toml:"delete_after_restore" env:"ENTRYREV_DELETE_AFTER_RESTORE"`
	EmptyValue         string  `toml:"empty_value,omitempty" env:"ENTRYREV_EMPTY_VALUE"`
	DiffThreshold      float64 `toml:"diff_threshold,omitempty" env:"ENTRYREV_DIFF_THRESHOLD"`

	path string // path to .entryrev directory
}

// FindRoot finds the .entryrev directory by walking up from the current directory
func FindRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		root := filepath.Join(dir, Dir)
		if info, err := os.Stat(root); err == nil && info.IsDir() {
			return root, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not an entryrev workspace (or any parent up to root)")
		}
		dir = parent
	}
}

// Load finds and loads the configuration, then applies environment overrides
func Load() (*Config, error) {
	root, err := FindRoot()
	if err != nil {
		return nil, err
	}
	return LoadFrom(root)
}

// LoadFrom loads the configuration stored in the .entryrev directory root
func LoadFrom(root string) (*Config, error) {
	data, err := os.ReadFile(filepath.Join(root, ConfigFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg.path = root
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendSQLite
	}
	if c.TokenTTL == "" {
		c.TokenTTL = DefaultTokenTTL
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.EmptyValue == "" {
		c.EmptyValue = DefaultEmptyValue
	}
	if c.DiffThreshold == 0 {
		c.DiffThreshold = DefaultDiffThreshold
	}
}

// Validate checks settings that would otherwise fail late
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSQLite:
	case BackendWeaviate:
		if c.WeaviateURL == "" {
			return fmt.Errorf("weaviate backend requires weaviate_url")
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if _, err := c.TokenTTLDuration(); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.DiffThreshold < 0 || c.DiffThreshold > 1 {
		return fmt.Errorf("diff_threshold must be between 0 and 1")
	}
	return nil
}

// Save saves the configuration to disk
func (c *Config) Save() error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(filepath.Join(c.path, ConfigFile), data, 0600)
}

// Path returns the path to the .entryrev directory
func (c *Config) Path() string {
	return c.path
}

// DatabasePath returns the path to the SQLite database
func (c *Config) DatabasePath() string {
	return c.resolve(c.Database, DatabaseFile)
}

// LedgerPath returns the path to the consumed token ledger
func (c *Config) LedgerPath() string {
	return c.resolve(c.Ledger, LedgerFile)
}

// TokensPath returns the path to the server bearer token file
func (c *Config) TokensPath() string {
	return c.resolve(c.TokensFile, TokensFile)
}

func (c *Config) resolve(p, def string) string {
	if p == "" {
		p = def
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.path, p)
}

// TokenTTLDuration parses the restore token lifetime
func (c *Config) TokenTTLDuration() (time.Duration, error) {
	ttl := c.TokenTTL
	if ttl == "" {
		ttl = DefaultTokenTTL
	}
	d, err := time.ParseDuration(ttl)
	if err != nil {
		return 0, fmt.Errorf("invalid token_ttl %q: %w", ttl, err)
	}
	return d, nil
}

// Location returns the time zone revision dates are shown in
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Initialize creates a new .entryrev directory in dir
func Initialize(dir string, cfg Config) (*Config, error) {
	root := filepath.Join(dir, Dir)

	if _, err := os.Stat(root); err == nil {
		return nil, fmt.Errorf("entryrev workspace already exists")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s directory: %w", Dir, err)
	}

	cfg.path = root
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		os.RemoveAll(root)
		return nil, err
	}
	if err := cfg.Save(); err != nil {
		os.RemoveAll(root)
		return nil, err
	}
	return &cfg, nil
}
