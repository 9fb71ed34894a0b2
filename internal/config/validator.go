package config

import (
	"fmt"
	"net/url"
	"strings"
)

// validate fails fast on anything the executor cannot start without.
func validate(cfg *Config) error {
	required := []struct {
		name  string
		value string
		env   string
	}{
		{"executor.key", cfg.Executor.Key, EnvExecutorKey},
		{"admin.url", cfg.Admin.URL, EnvAdminURL},
		{"admin.access_token", cfg.Admin.AccessToken, EnvAccessToken},
		{"logs.dir", cfg.Logs.Dir, EnvJobLogPath},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("%s is required (or set %s)", r.name, r.env)
		}
		if matches := envVarPattern.FindStringSubmatch(r.value); len(matches) > 1 {
			return fmt.Errorf("%s: environment variable ${%s} is not set", r.name, matches[1])
		}
	}

	u, err := url.Parse(cfg.Admin.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("admin.url must be an http(s) URL (got %q)", cfg.Admin.URL)
	}

	if cfg.Executor.Listen == "" {
		return fmt.Errorf("executor.listen is required")
	}
	if cfg.Executor.Address == "" {
		return fmt.Errorf("executor.address could not be derived")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Service.LogLevel] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}
	if cfg.Service.LogFormat != "json" && cfg.Service.LogFormat != "text" {
		return fmt.Errorf("service.log_format must be json or text (got %q)", cfg.Service.LogFormat)
	}

	switch strings.ToLower(cfg.Logs.Layout) {
	case "", "per-run", "daily":
	default:
		return fmt.Errorf("logs.layout must be per-run or daily (got %q)", cfg.Logs.Layout)
	}
	if cfg.Logs.Retention < 0 {
		return fmt.Errorf("logs.retention must not be negative")
	}

	if cfg.Admin.Timeout <= 0 {
		return fmt.Errorf("admin.timeout must be positive")
	}
	if cfg.Admin.HeartbeatInterval <= 0 {
		return fmt.Errorf("admin.heartbeat_interval must be positive")
	}

	if len(cfg.Handlers.Builtin) == 0 {
		return fmt.Errorf("handlers.builtin must list at least one handler")
	}
	return nil
}
