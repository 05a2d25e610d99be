// Package config loads client configuration from an optional YAML file in the
// user config dir, overlaid on compiled-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Defaults used when no config file overrides them.
const (
	DefaultChatBase         = "http://localhost:6688/api"
	DefaultNotificationBase = "http://localhost:6687/events"
	DefaultAnalyticsBase    = "http://localhost:6690/api/event"
)

// ServerConfig holds the remote endpoints the client talks to.
type ServerConfig struct {
	Chat         string `yaml:"chat"`
	Notification string `yaml:"notification"`
	Analytics    string `yaml:"analytics"`
}

// Config is the full client configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// Default returns the compiled-in configuration.
func Default() Config {
	return Config{Server: ServerConfig{
		Chat:         DefaultChatBase,
		Notification: DefaultNotificationBase,
		Analytics:    DefaultAnalyticsBase,
	}}
}

// Load reads the YAML file at path over the defaults. A missing file is not an
// error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Default(), fmt.Errorf("parse config: %w", err)
	}
	if cfg.Server.Chat == "" {
		cfg.Server.Chat = DefaultChatBase
	}
	if cfg.Server.Notification == "" {
		cfg.Server.Notification = DefaultNotificationBase
	}
	if cfg.Server.Analytics == "" {
		cfg.Server.Analytics = DefaultAnalyticsBase
	}
	return cfg, nil
}

// DefaultPath is the per-user config file location (app.yml under the user
// config dir), mirroring where the desktop build keeps it.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "app.yml"
	}
	return filepath.Join(dir, "chatsync", "app.yml")
}
