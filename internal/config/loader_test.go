package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every override so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		EnvExecutorKey, EnvAdminURL, EnvAccessToken, EnvJobLogPath, EnvDebugLog,
		EnvExecutorURL, EnvExecutorAddr, EnvExecutorRoute,
	} {
		t.Setenv(name, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimalYAML = `
executor:
  key: demo-executor
  address: http://10.0.0.5:9999/
admin:
  url: http://admin:8080/xxl-job-admin
  access_token: secret
logs:
  dir: /var/log/xxl-executor
`

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		env     map[string]string
		wantErr string
		checkFn func(t *testing.T, cfg *Config)
	}{
		{
			name: "minimal valid config",
			yaml: minimalYAML,
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.Executor.Key != "demo-executor" {
					t.Errorf("executor.key = %q", cfg.Executor.Key)
				}
				if cfg.Executor.Listen != ":9999" {
					t.Errorf("default listen not applied: %q", cfg.Executor.Listen)
				}
				if cfg.Admin.Timeout != 10*time.Second {
					t.Errorf("default admin.timeout not applied: %v", cfg.Admin.Timeout)
				}
				if cfg.Admin.HeartbeatInterval != 30*time.Second {
					t.Errorf("default heartbeat not applied: %v", cfg.Admin.HeartbeatInterval)
				}
				if cfg.Logs.Layout != "per-run" {
					t.Errorf("default layout not applied: %q", cfg.Logs.Layout)
				}
				if cfg.Logs.Retention != 30*24*time.Hour {
					t.Errorf("default retention not applied: %v", cfg.Logs.Retention)
				}
				if len(cfg.Handlers.Builtin) != 1 || cfg.Handlers.Builtin[0] != "demoJobHandler" {
					t.Errorf("default handlers not applied: %v", cfg.Handlers.Builtin)
				}
				if cfg.Path == "" {
					t.Error("Path not recorded")
				}
			},
		},
		{
			name: "full config",
			yaml: `
service:
  log_level: WARN
  log_format: text
executor:
  key: demo
  listen: 127.0.0.1:9000
  base_path: /executor
admin:
  url: https://admin.example.com
  access_token: secret
  timeout: 3s
  heartbeat_interval: 15s
logs:
  dir: ./logs
  layout: daily
  retention: 0s
handlers:
  builtin: [shell, httpJobHandler]
`,
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.Service.LogLevel != "warn" {
					t.Errorf("log level not normalized: %q", cfg.Service.LogLevel)
				}
				if cfg.Executor.Address != "http://127.0.0.1:9000/executor/" {
					t.Errorf("derived address = %q", cfg.Executor.Address)
				}
				if cfg.Admin.Timeout != 3*time.Second || cfg.Admin.HeartbeatInterval != 15*time.Second {
					t.Errorf("durations not parsed: %+v", cfg.Admin)
				}
				if cfg.Logs.Layout != "daily" || cfg.Logs.Retention != 0 {
					t.Errorf("logs not parsed: %+v", cfg.Logs)
				}
				if strings.Join(cfg.Handlers.Builtin, ",") != "shell,httpJobHandler" {
					t.Errorf("handlers = %v", cfg.Handlers.Builtin)
				}
			},
		},
		{
			name: "env var interpolation",
			yaml: strings.Replace(minimalYAML, "access_token: secret", "access_token: ${TEST_XXL_TOKEN}", 1),
			env:  map[string]string{"TEST_XXL_TOKEN": "from-env"},
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.Admin.AccessToken != "from-env" {
					t.Errorf("access_token = %q", cfg.Admin.AccessToken)
				}
			},
		},
		{
			name:    "unresolved env var",
			yaml:    strings.Replace(minimalYAML, "access_token: secret", "access_token: ${TEST_XXL_UNSET_TOKEN}", 1),
			wantErr: "TEST_XXL_UNSET_TOKEN",
		},
		{
			name: "environment overrides file",
			yaml: minimalYAML,
			env: map[string]string{
				EnvExecutorKey: "env-key",
				EnvAdminURL:    "http://other-admin:8080",
				EnvJobLogPath:  "/tmp/env-logs",
				EnvDebugLog:    "Enabled",
			},
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.Executor.Key != "env-key" {
					t.Errorf("executor.key = %q", cfg.Executor.Key)
				}
				if cfg.Admin.URL != "http://other-admin:8080" {
					t.Errorf("admin.url = %q", cfg.Admin.URL)
				}
				if cfg.Logs.Dir != "/tmp/env-logs" {
					t.Errorf("logs.dir = %q", cfg.Logs.Dir)
				}
				if !cfg.Service.Debug || cfg.Service.LogLevel != "debug" {
					t.Errorf("debug toggle not applied: %+v", cfg.Service)
				}
			},
		},
		{
			name:    "missing executor key",
			yaml:    strings.Replace(minimalYAML, "key: demo-executor", "key: \"\"", 1),
			wantErr: "executor.key is required",
		},
		{
			name:    "missing admin url",
			yaml:    strings.Replace(minimalYAML, "url: http://admin:8080/xxl-job-admin", "url: \"\"", 1),
			wantErr: "admin.url is required",
		},
		{
			name:    "missing access token",
			yaml:    strings.Replace(minimalYAML, "access_token: secret", "access_token: \"\"", 1),
			wantErr: "admin.access_token is required",
		},
		{
			name:    "missing log dir",
			yaml:    strings.Replace(minimalYAML, "dir: /var/log/xxl-executor", "dir: \"\"", 1),
			wantErr: "logs.dir is required",
		},
		{
			name:    "bad admin url",
			yaml:    strings.Replace(minimalYAML, "http://admin:8080/xxl-job-admin", "admin:8080", 1),
			wantErr: "admin.url must be an http(s) URL",
		},
		{
			name:    "bad layout",
			yaml:    minimalYAML + "  layout: hourly\n",
			wantErr: "logs.layout",
		},
		{
			name:    "bad log level",
			yaml:    minimalYAML + "service:\n  log_level: loud\n",
			wantErr: "service.log_level",
		},
		{
			name:    "invalid yaml",
			yaml:    "executor: [",
			wantErr: "failed to parse YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load(writeConfig(t, tt.yaml))
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("expected error containing %q, got nil", tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want it to contain %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() failed: %v", err)
			}
			if tt.checkFn != nil {
				tt.checkFn(t, cfg)
			}
		})
	}
}

func TestLoadFromEnvironmentOnly(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvExecutorKey, "env-only")
	t.Setenv(EnvAdminURL, "http://admin:8080")
	t.Setenv(EnvAccessToken, "secret")
	t.Setenv(EnvJobLogPath, t.TempDir())
	t.Setenv(EnvExecutorURL, "http://executor:9999/")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") failed: %v", err)
	}
	if cfg.Executor.Address != "http://executor:9999/" {
		t.Errorf("address = %q", cfg.Executor.Address)
	}
	if cfg.Path != "" {
		t.Errorf("Path = %q, want empty", cfg.Path)
	}

	clearEnv(t)
	if _, err := Load(""); err == nil {
		t.Fatal("expected failure with nothing configured")
	}
}

func TestLoadDirectoryAndMissingFile(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, minimalYAML)
	cfg, err := Load(filepath.Dir(path))
	if err != nil {
		t.Fatalf("Load(dir) failed: %v", err)
	}
	if cfg.Path != path {
		t.Errorf("Path = %q, want %q", cfg.Path, path)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
	if _, err := Load(t.TempDir()); err == nil {
		t.Fatal("expected error for directory without config.yaml")
	}
}

func TestLoadRefusesTamperedLockedConfig(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, minimalYAML)
	if _, err := Lock(path); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err != nil {
		t.Fatalf("Load() of locked config failed: %v", err)
	}

	if err := os.WriteFile(path, []byte(minimalYAML+"\n# edited\n"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "config verification failed") {
		t.Fatalf("Load() of tampered config = %v", err)
	}
}

func TestParseToggle(t *testing.T) {
	for _, s := range []string{"yes", "ON", "true", "enable", "Enabled", "1", " 1 "} {
		if !ParseToggle(s) {
			t.Errorf("ParseToggle(%q) = false", s)
		}
	}
	for _, s := range []string{"", "no", "off", "0", "false", "disabled"} {
		if ParseToggle(s) {
			t.Errorf("ParseToggle(%q) = true", s)
		}
	}
}

func TestDeriveAddress(t *testing.T) {
	host, err := os.Hostname()
	if err != nil {
		t.Skip("no hostname")
	}

	tests := []struct {
		listen, base, want string
	}{
		{"127.0.0.1:9999", "/", "http://127.0.0.1:9999/"},
		{":9999", "/", "http://" + host + ":9999/"},
		{"0.0.0.0:8081", "/xxl/", "http://" + host + ":8081/xxl/"},
	}
	for _, tt := range tests {
		got, err := deriveAddress(tt.listen, tt.base)
		if err != nil {
			t.Fatalf("deriveAddress(%q) failed: %v", tt.listen, err)
		}
		if got != tt.want {
			t.Errorf("deriveAddress(%q, %q) = %q, want %q", tt.listen, tt.base, got, tt.want)
		}
	}

	if _, err := deriveAddress("no-port", "/"); err == nil {
		t.Error("expected error for listen without port")
	}
}
