// Package config loads the YAML configuration file. A missing file is
// created with defaults on first run so users have something to edit.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gakucal/gakucal/internal/reconcile"
	"github.com/gakucal/gakucal/internal/timetable"
)

const dateLayout = "2006-01-02"

// TermConfig is the academic-term date range, as calendar dates.
type TermConfig struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// Config is the top-level application configuration.
type Config struct {
	// PortalURL is the student portal's registration list page.
	PortalURL string `yaml:"portal_url"`

	// CalendarID is the target calendar for synced events.
	CalendarID string `yaml:"calendar_id"`

	// Term bounds the recurring events and the holiday lookup.
	Term TermConfig `yaml:"term"`

	// DataDir holds changes.json and the holiday cache.
	DataDir string `yaml:"data_dir"`

	// TokenEnv names the environment variable carrying the OAuth access
	// token. The token itself never lives in this file.
	TokenEnv string `yaml:"token_env"`

	// DelayMS / JitterMS shape the pause between calendar API calls.
	DelayMS  int `yaml:"delay_ms"`
	JitterMS int `yaml:"jitter_ms"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		CalendarID: "primary",
		DataDir:    "~/.local/share/gakucal",
		TokenEnv:   "GAKUCAL_TOKEN",
		DelayMS:    300,
		JitterMS:   200,
	}
}

// Normalize fills missing values with defaults so partially-filled configs
// still behave.
func (c *Config) Normalize() {
	if c.CalendarID == "" {
		c.CalendarID = "primary"
	}
	if c.DataDir == "" {
		c.DataDir = "~/.local/share/gakucal"
	}
	if c.TokenEnv == "" {
		c.TokenEnv = "GAKUCAL_TOKEN"
	}
	if c.DelayMS <= 0 {
		c.DelayMS = 300
	}
	if c.JitterMS < 0 {
		c.JitterMS = 200
	}
}

// TermRange parses the configured term into a date range.
func (c *Config) TermRange() (reconcile.Range, error) {
	if c.Term.Start == "" || c.Term.End == "" {
		return reconcile.Range{}, errors.New("term.start and term.end are required")
	}
	start, err := time.ParseInLocation(dateLayout, c.Term.Start, timetable.JST)
	if err != nil {
		return reconcile.Range{}, fmt.Errorf("term.start: %w", err)
	}
	end, err := time.ParseInLocation(dateLayout, c.Term.End, timetable.JST)
	if err != nil {
		return reconcile.Range{}, fmt.Errorf("term.end: %w", err)
	}
	r := reconcile.Range{Start: start, End: end}
	if err := r.Validate(); err != nil {
		return reconcile.Range{}, err
	}
	return r, nil
}

// Token reads the OAuth access token from the configured environment
// variable.
func (c *Config) Token() (string, error) {
	token := os.Getenv(c.TokenEnv)
	if token == "" {
		return "", fmt.Errorf("environment variable %s is not set", c.TokenEnv)
	}
	return token, nil
}

// Delay and Jitter convert the configured millisecond values.
func (c *Config) Delay() time.Duration  { return time.Duration(c.DelayMS) * time.Millisecond }
func (c *Config) Jitter() time.Duration { return time.Duration(c.JitterMS) * time.Millisecond }

// DefaultPath returns the default config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "gakucal.yaml"
	}
	return filepath.Join(home, ".config", "gakucal", "config.yaml")
}

// Load reads the YAML config at path. A missing file is created with
// defaults and returned; the caller still has to fill in the portal URL
// and term before a sync can run.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes the configuration atomically with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".gakucal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
