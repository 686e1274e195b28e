// Package config loads pv's settings from a YAML file overlaid by PV_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override (PV_BASE_URL -> base_url).
const EnvPrefix = "PV_"

// Card variants.
const (
	CardCrossRef = "crossref"
	CardAuthor   = "author"
)

// Theme modes.
const (
	ThemeAuto  = "auto"
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// Config is the on-disk configuration, corresponding to config.yaml.
type Config struct {
	BaseURL              string `yaml:"base_url" koanf:"base_url"`
	Language             string `yaml:"language" koanf:"language"`
	ViewerRole           string `yaml:"viewer_role" koanf:"viewer_role"`
	SessionCookie        string `yaml:"session_cookie,omitempty" koanf:"session_cookie"`
	CardVariant          string `yaml:"card_variant" koanf:"card_variant"`
	PageSize             int    `yaml:"page_size" koanf:"page_size"`
	ScrollThresholdLines int    `yaml:"scroll_threshold_lines" koanf:"scroll_threshold_lines"`
	RequestTimeout       string `yaml:"request_timeout" koanf:"request_timeout"`
	LookaheadWorkers     int    `yaml:"lookahead_workers" koanf:"lookahead_workers"`
	LogFile              string `yaml:"log_file,omitempty" koanf:"log_file"`
	LogLevel             string `yaml:"log_level" koanf:"log_level"`
	HistoryDB            string `yaml:"history_db,omitempty" koanf:"history_db"`
	Theme                string `yaml:"theme" koanf:"theme"`
	MarkdownDescriptions bool   `yaml:"markdown_descriptions" koanf:"markdown_descriptions"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:              "http://localhost:8080",
		Language:             "zh",
		ViewerRole:           "USER",
		CardVariant:          CardCrossRef,
		PageSize:             10,
		ScrollThresholdLines: 40,
		RequestTimeout:       "15s",
		LookaheadWorkers:     4,
		LogLevel:             "info",
		Theme:                ThemeAuto,
	}
}

// Load reads configuration from path, then overlays PV_* environment
// variables. A missing file is not an error; path may be empty.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("accessing config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}
	// PV_CONFIG names the file itself and is not a setting.
	k.Delete("config")

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to path, creating parent directories.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

var validRoles = map[string]bool{"USER": true, "MODERATOR": true, "ADMIN": true}

// Validate checks that the configuration contains usable values.
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.BaseURL)
	switch {
	case c.BaseURL == "":
		errs = append(errs, errors.New("base_url is required"))
	case err != nil:
		errs = append(errs, fmt.Errorf("invalid base_url %q: %w", c.BaseURL, err))
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, fmt.Errorf("invalid base_url %q: scheme must be http or https", c.BaseURL))
	}

	if c.Language != "zh" && c.Language != "en" {
		errs = append(errs, fmt.Errorf("invalid language %q: must be zh or en", c.Language))
	}
	if !validRoles[strings.ToUpper(c.ViewerRole)] {
		errs = append(errs, fmt.Errorf("invalid viewer_role %q: must be USER, MODERATOR or ADMIN", c.ViewerRole))
	}
	if c.CardVariant != CardCrossRef && c.CardVariant != CardAuthor {
		errs = append(errs, fmt.Errorf("invalid card_variant %q: must be crossref or author", c.CardVariant))
	}
	if c.PageSize <= 0 {
		errs = append(errs, errors.New("page_size must be positive"))
	}
	if c.ScrollThresholdLines < 0 {
		errs = append(errs, errors.New("scroll_threshold_lines must be non-negative"))
	}
	if _, err := c.Timeout(); err != nil {
		errs = append(errs, err)
	}
	if c.LookaheadWorkers <= 0 {
		errs = append(errs, errors.New("lookahead_workers must be positive"))
	}
	switch c.Theme {
	case ThemeAuto, ThemeDark, ThemeLight:
	default:
		errs = append(errs, fmt.Errorf("invalid theme %q: must be auto, dark or light", c.Theme))
	}
	return errors.Join(errs...)
}

// Timeout parses request_timeout.
func (c *Config) Timeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid request_timeout %q: %w", c.RequestTimeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("request_timeout must be positive, got %s", d)
	}
	return d, nil
}

// Role returns the viewer role in the form the site issues it.
func (c *Config) Role() string {
	return strings.ToUpper(c.ViewerRole)
}
