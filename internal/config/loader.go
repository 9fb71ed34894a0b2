package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Environment overrides, applied after the file.
const (
	EnvExecutorKey   = "XXL_JOB_EXECUTOR_KEY"
	EnvAdminURL      = "XXL_JOB_SCHEDULE_CENTER_URL"
	EnvAccessToken   = "XXL_JOB_ACCESS_TOKEN"
	EnvJobLogPath    = "XXL_JOB_JOB_LOG_PATH"
	EnvDebugLog      = "XXL_JOB_DEBUG_LOG"
	EnvExecutorURL   = "XXL_JOB_EXECUTOR_URL"
	EnvExecutorAddr  = "XXL_JOB_EXECUTOR_LISTEN"
	EnvExecutorRoute = "XXL_JOB_EXECUTOR_URI"
)

// Load reads configuration from configPath, applies environment overrides
// and defaults, and validates the result. An empty configPath builds the
// config from defaults and the environment alone.
//
// If a .checksums manifest sits beside the file, the file must match it.
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	if configPath != "" {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
		}

		info, err := os.Stat(absPath)
		if err != nil {
			return nil, fmt.Errorf("config file not found: %s\n"+
				"Hint: Check the path or run with --config flag", absPath)
		}
		if info.IsDir() {
			absPath = filepath.Join(absPath, "config.yaml")
			if _, err := os.Stat(absPath); err != nil {
				return nil, fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
			}
		}

		if err := VerifyLock(absPath); err != nil {
			return nil, err
		}
		if err := loadConfigFile(absPath, cfg); err != nil {
			return nil, err
		}
		cfg.Path = absPath
	}

	applyEnvOverrides(cfg)
	if err := applyDerivedDefaults(cfg); err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadConfigFile parses path over cfg, so keys absent from the file keep
// their defaults.
func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	interpolated := interpolateEnv(string(data))
	if err := yaml.Unmarshal([]byte(interpolated), cfg); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		// Left in place; validation reports it.
		return match
	})
}

func applyEnvOverrides(cfg *Config) {
	set := func(dst *string, name string) {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			*dst = v
		}
	}
	set(&cfg.Executor.Key, EnvExecutorKey)
	set(&cfg.Executor.Address, EnvExecutorURL)
	set(&cfg.Executor.Listen, EnvExecutorAddr)
	set(&cfg.Executor.BasePath, EnvExecutorRoute)
	set(&cfg.Admin.URL, EnvAdminURL)
	set(&cfg.Admin.AccessToken, EnvAccessToken)
	set(&cfg.Logs.Dir, EnvJobLogPath)

	if v, ok := os.LookupEnv(EnvDebugLog); ok && v != "" {
		cfg.Service.Debug = ParseToggle(v)
	}
}

// ParseToggle reports whether s reads as "on": yes, on, true, enable,
// enabled or 1, case-insensitively.
func ParseToggle(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "on", "true", "enable", "enabled", "1":
		return true
	default:
		return false
	}
}

// applyDerivedDefaults fills values computed from other settings.
func applyDerivedDefaults(cfg *Config) error {
	if cfg.Service.Debug {
		cfg.Service.LogLevel = "debug"
	}
	cfg.Service.LogLevel = strings.ToLower(cfg.Service.LogLevel)
	if cfg.Executor.BasePath == "" {
		cfg.Executor.BasePath = "/"
	}

	if cfg.Executor.Address == "" && cfg.Executor.Listen != "" {
		addr, err := deriveAddress(cfg.Executor.Listen, cfg.Executor.BasePath)
		if err != nil {
			return err
		}
		cfg.Executor.Address = addr
	}
	return nil
}

// deriveAddress builds http://<host>:<port><base>/ from the listen address,
// falling back to the hostname when listening on all interfaces.
func deriveAddress(listen, basePath string) (string, error) {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "", fmt.Errorf("executor.listen %q: %w", listen, err)
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host, err = os.Hostname()
		if err != nil {
			return "", fmt.Errorf("derive executor.address: %w", err)
		}
	}

	path := strings.Trim(basePath, "/")
	if path != "" {
		path = "/" + path
	}
	return "http://" + net.JoinHostPort(host, port) + path + "/", nil
}
