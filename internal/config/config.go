// Package config provides configuration loading for the admit CLI.
//
// Configuration is layered: defaults, an optional YAML file, then ADMIT_*
// environment variables. It is read exactly once; the resulting Config is
// passed explicitly to everything downstream.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Configuration keys.
const (
	KeyBrowserName       = "browser.name"
	KeyBrowserRemote     = "browser.remote"
	KeyBrowserGrid       = "browser.grid"
	KeyBrowserMarionette = "browser.marionette"
	KeyOnlyRun           = "filter.only_run"
	KeyMethod            = "filter.method"
	KeyIgnoreClass       = "filter.ignore_class"
	KeyIgnoreMethod      = "filter.ignore_method"
	KeyIgnoredOnly       = "filter.ignored_only"
	KeyManifest          = "manifest"
	KeyAuditDSN          = "audit.dsn"
	KeyLoggingLevel      = "logging.level"
	KeyLoggingFormat     = "logging.format"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "ADMIT"

// Config holds the application configuration.
type Config struct {
	// Browser selects the driver target for the run
	Browser BrowserConfig `mapstructure:"browser"`

	// Filter holds the environment filters
	Filter FilterConfig `mapstructure:"filter"`

	// Manifest is the path of the test manifest
	Manifest string `mapstructure:"manifest"`

	// Audit configuration
	Audit AuditConfig `mapstructure:"audit"`

	// Logging configuration
	Logging LoggingConfig `mapstructure:"logging"`
}

// BrowserConfig holds the browser selection and run-mode flags.
type BrowserConfig struct {
	Name   string `mapstructure:"name"`
	Remote bool   `mapstructure:"remote"`
	Grid   bool   `mapstructure:"grid"`

	// Marionette is nil when unset. Unset and true both select Marionette.
	Marionette *bool `mapstructure:"-"`
}

// FilterConfig holds the raw environment filter values. List values are
// comma-separated.
type FilterConfig struct {
	OnlyRun      string `mapstructure:"only_run"`
	Method       string `mapstructure:"method"`
	IgnoreClass  string `mapstructure:"ignore_class"`
	IgnoreMethod string `mapstructure:"ignore_method"`
	IgnoredOnly  bool   `mapstructure:"ignored_only"`
}

// AuditConfig holds the decision audit store configuration.
type AuditConfig struct {
	DSN string `mapstructure:"dsn"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultConfig returns a configuration with default values.
// There is no default browser; it must always be configured.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from file and environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".admit"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("admit")
		v.SetConfigType("yaml")
	}

	// Environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		// Config file is optional
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	// Unmarshal
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if v.IsSet(KeyBrowserMarionette) {
		marionette := v.GetBool(KeyBrowserMarionette)
		cfg.Browser.Marionette = &marionette
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyBrowserRemote, false)
	v.SetDefault(KeyBrowserGrid, false)
	v.SetDefault(KeyOnlyRun, "")
	v.SetDefault(KeyMethod, "")
	v.SetDefault(KeyIgnoreClass, "")
	v.SetDefault(KeyIgnoreMethod, "")
	v.SetDefault(KeyIgnoredOnly, false)
	v.SetDefault(KeyLoggingLevel, "info")
	v.SetDefault(KeyLoggingFormat, "text")
}

// bindEnv binds keys that have no default so that Unmarshal sees their
// environment values. browser.marionette stays without a default to keep
// "unset" observable.
func bindEnv(v *viper.Viper) error {
	for _, key := range []string{KeyBrowserName, KeyBrowserMarionette, KeyManifest, KeyAuditDSN} {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("error binding %s: %w", key, err)
		}
	}
	return nil
}
