// Package config loads the TOML profile configuration for the CLI.
// The driver library itself is configured programmatically; this package
// only serves the command-line frontend.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// ErrNoProfile is returned when the requested profile does not exist.
var ErrNoProfile = errors.New("config: no such profile")

// passwordEnvVar overrides the password of the selected profile so
// credentials can stay out of the config file.
const passwordEnvVar = "WEBDAV_GO_PASSWORD"

// Config is the parsed TOML configuration file.
type Config struct {
	DefaultProfile string             `toml:"default_profile"`
	LogLevel       string             `toml:"log_level"`
	Profiles       map[string]Profile `toml:"profiles"`
}

// Profile holds the connection settings for one WebDAV endpoint.
type Profile struct {
	BaseURL  string `toml:"base_url"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	Root     string `toml:"root"`
}

// DefaultConfigPath returns the per-user config file location,
// e.g. ~/.config/webdav-go/config.toml.
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}

	return filepath.Join(dir, "webdav-go", "config.toml")
}

// Load reads and parses a TOML config file and validates it. Unknown keys
// are fatal — silently ignoring a typo in a config file leads to
// hard-to-debug behavior.
func Load(path string) (*Config, error) {
	var cfg Config

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}

		return nil, fmt.Errorf("config: unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	return &cfg, nil
}

// Resolve loads the config file and selects a profile by name. An empty
// name falls back to default_profile, then to "default". The profile
// password may be overridden by the WEBDAV_GO_PASSWORD environment
// variable.
func Resolve(path, profileName string) (*Config, Profile, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, Profile{}, err
	}

	if profileName == "" {
		profileName = cfg.DefaultProfile
	}

	if profileName == "" {
		profileName = "default"
	}

	profile, ok := cfg.Profiles[profileName]
	if !ok {
		return nil, Profile{}, fmt.Errorf("%w: %q", ErrNoProfile, profileName)
	}

	if pw := os.Getenv(passwordEnvVar); pw != "" {
		profile.Password = pw
	}

	return cfg, profile, nil
}

func validate(cfg *Config) error {
	if len(cfg.Profiles) == 0 {
		return errors.New("at least one [profiles.<name>] section is required")
	}

	for name, p := range cfg.Profiles {
		if p.BaseURL == "" {
			return fmt.Errorf("profile %q: base_url is required", name)
		}

		if p.Username == "" {
			return fmt.Errorf("profile %q: username is required", name)
		}
	}

	switch cfg.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q (use debug, info, warn or error)", cfg.LogLevel)
	}

	return nil
}
