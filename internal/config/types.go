package config

import "time"

// Config represents the complete executor configuration.
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Executor ExecutorConfig `yaml:"executor"`
	Admin    AdminConfig    `yaml:"admin"`
	Logs     LogsConfig     `yaml:"logs"`
	Handlers HandlersConfig `yaml:"handlers"`

	// Path is the file the config was loaded from, empty for env-only configs.
	Path string `yaml:"-"`
}

// ServiceConfig defines process-level settings.
type ServiceConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	// Debug forces debug logging and mirrors job logs to stderr.
	Debug bool `yaml:"debug"`
}

// ExecutorConfig defines how this executor identifies and exposes itself.
type ExecutorConfig struct {
	// Key is the app name the admin groups executors by.
	Key string `yaml:"key"`
	// Address is what the admin calls back on. Derived when empty.
	Address  string `yaml:"address"`
	Listen   string `yaml:"listen"`
	BasePath string `yaml:"base_path"`
}

// AdminConfig defines how to reach the scheduling admin.
type AdminConfig struct {
	URL               string        `yaml:"url"`
	AccessToken       string        `yaml:"access_token"`
	Timeout           time.Duration `yaml:"timeout"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
}

// LogsConfig defines job log storage.
type LogsConfig struct {
	Dir    string `yaml:"dir"`
	Layout string `yaml:"layout"` // per-run | daily
	// Retention is how long job log files are kept. 0 keeps them forever.
	Retention time.Duration `yaml:"retention"`
}

// HandlersConfig selects the built-in job handlers to expose.
type HandlersConfig struct {
	Builtin []string `yaml:"builtin"`
}

// ChecksumManifest is the on-disk .checksums format.
type ChecksumManifest struct {
	Version     int               `yaml:"version"`
	GeneratedAt string            `yaml:"generated_at"`
	Hashes      map[string]string `yaml:"hashes"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
		Executor: ExecutorConfig{
			Listen:   ":9999",
			BasePath: "/",
		},
		Admin: AdminConfig{
			Timeout:           10 * time.Second,
			HeartbeatInterval: 30 * time.Second,
		},
		Logs: LogsConfig{
			Layout:    "per-run",
			Retention: 30 * 24 * time.Hour,
		},
		Handlers: HandlersConfig{
			Builtin: []string{"demoJobHandler"},
		},
	}
}
