package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mattjoyce/xxl-executor/internal/admin"
	"github.com/mattjoyce/xxl-executor/internal/api"
	"github.com/mattjoyce/xxl-executor/internal/config"
	"github.com/mattjoyce/xxl-executor/internal/handler"
	"github.com/mattjoyce/xxl-executor/internal/handlers"
	"github.com/mattjoyce/xxl-executor/internal/joblog"
	"github.com/mattjoyce/xxl-executor/internal/lock"
	"github.com/mattjoyce/xxl-executor/internal/log"
	"github.com/mattjoyce/xxl-executor/internal/runner"
	"github.com/mattjoyce/xxl-executor/internal/watch"
)

const version = "0.1.0"

const (
	// shutdownTimeout bounds deregistration plus the wait for running jobs.
	shutdownTimeout  = 30 * time.Second
	retentionEvery   = time.Hour
	defaultConfigEnv = "XXL_JOB_CONFIG"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 {
		printUsage()
		return 1
	}

	cmd := args[0]
	rest := args[1:]

	switch cmd {
	case "start":
		if hasHelpFlag(rest) {
			printStartHelp()
			return 0
		}
		return runStart(rest)
	case "config":
		return runConfigNoun(rest)
	case "watch":
		return runWatch(rest)
	case "version":
		fmt.Printf("xxl-executor version %s\n", version)
		return 0
	case "help", "--help", "-h":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

func printUsage() {
	fmt.Print(`xxl-executor - executor agent for an xxl-job scheduling admin

Usage:
  xxl-executor <command> [flags]

Commands:
  start             Register with the admin and serve jobs in the foreground
  config check      Validate configuration and integrity
  config lock       Record the config file hash in .checksums
  watch             Live terminal view of a running executor's health
  version           Show version information
  help              Show this help message

The config file defaults to $XXL_JOB_CONFIG. Without one, configuration comes
from XXL_JOB_* environment variables alone.
`)
}

func printStartHelp() {
	fmt.Println("Usage: xxl-executor start [--config PATH]")
}

func printConfigNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: xxl-executor config <check|lock> [--config PATH]")
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		printConfigNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printConfigNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "check":
		return runConfigCheck(actionArgs)
	case "lock":
		return runConfigLock(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return 1
	}
}

// configFlag registers --config with the env default.
func configFlag(fs *flag.FlagSet) *string {
	return fs.String("config", os.Getenv(defaultConfigEnv), "Path to configuration file or directory")
}

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	configPath := configFlag(fs)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("xxl-executor starting", "version", version, "config", cfg.Path, "executor", cfg.Executor.Key)

	layout, err := joblog.ParseLayout(cfg.Logs.Layout)
	if err != nil {
		logger.Error("invalid log layout", "error", err)
		return 1
	}
	var logOpts []joblog.Option
	if cfg.Service.Debug {
		logOpts = append(logOpts, joblog.WithMirror(os.Stderr))
	}
	logs, err := joblog.New(cfg.Logs.Dir, layout, logOpts...)
	if err != nil {
		logger.Error("failed to prepare job log directory", "dir", cfg.Logs.Dir, "error", err)
		return 1
	}
	logger.Info("job logs ready", "dir", logs.Dir(), "layout", logs.Layout(), "retention", cfg.Logs.Retention)

	pidLockPath := lock.PathFor(cfg.Logs.Dir)
	pidLock, err := lock.Acquire(pidLockPath)
	if err != nil {
		logger.Error("failed to acquire PID lock (another instance may be running)", "path", pidLockPath, "error", err)
		return 1
	}
	defer pidLock.Release()
	logger.Info("acquired PID lock", "path", pidLockPath)

	fns, err := handlers.Select(cfg.Handlers.Builtin)
	if err != nil {
		logger.Error("failed to select job handlers", "error", err)
		return 1
	}
	table, err := handler.NewTable(fns)
	if err != nil {
		logger.Error("failed to build handler table", "error", err)
		return 1
	}
	logger.Info("job handlers registered", "handlers", table.Names())

	client, err := admin.New(admin.Config{
		URL:         cfg.Admin.URL,
		AccessToken: cfg.Admin.AccessToken,
		Timeout:     cfg.Admin.Timeout,
		AppName:     cfg.Executor.Key,
		Address:     cfg.Executor.Address,
	})
	if err != nil {
		logger.Error("failed to configure admin client", "error", err)
		return 1
	}

	jobRunner := runner.New(runner.Config{
		Handlers: table,
		Logs:     logs,
		Reporter: client,
	})
	server := api.New(api.Config{
		Listen:      cfg.Executor.Listen,
		BasePath:    cfg.Executor.BasePath,
		AccessToken: cfg.Admin.AccessToken,
	}, jobRunner, logs, log.WithComponent("api"))
	heartbeat := admin.NewHeartbeat(client, cfg.Admin.HeartbeatInterval)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGHUP, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Start(gctx); err != nil {
			return fmt.Errorf("api: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := logs.RunRetention(gctx, cfg.Logs.Retention, retentionEvery); err != nil {
			return fmt.Errorf("log retention: %w", err)
		}
		return nil
	})
	heartbeat.Start(gctx)

	logger.Info("xxl-executor running (press Ctrl+C to stop)",
		"listen", cfg.Executor.Listen,
		"address", cfg.Executor.Address,
		"admin", cfg.Admin.URL,
	)

	runErr := g.Wait()
	if ctx.Err() != nil {
		logger.Info("received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	heartbeat.Stop(shutdownCtx)
	if err := jobRunner.Shutdown(shutdownCtx); err != nil {
		logger.Warn("jobs still running at exit", "error", err)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Error("component failed", "error", runErr)
		return 1
	}
	logger.Info("xxl-executor stopped")
	return 0
}

// configSummary is what config check prints.
type configSummary struct {
	Path      string   `json:"path,omitempty"`
	Executor  string   `json:"executor"`
	Address   string   `json:"address"`
	Listen    string   `json:"listen"`
	BasePath  string   `json:"base_path"`
	Admin     string   `json:"admin"`
	LogDir    string   `json:"log_dir"`
	LogLayout string   `json:"log_layout"`
	Handlers  []string `json:"handlers"`
	Locked    bool     `json:"locked"`
}

func runConfigCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	configPath := configFlag(fs)
	jsonOut := fs.Bool("json", false, "Output in JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config load error: %v\n", err)
		return 1
	}
	if _, err := handlers.Select(cfg.Handlers.Builtin); err != nil {
		fmt.Fprintf(os.Stderr, "Handler error: %v\n", err)
		return 1
	}

	summary := configSummary{
		Path:      cfg.Path,
		Executor:  cfg.Executor.Key,
		Address:   cfg.Executor.Address,
		Listen:    cfg.Executor.Listen,
		BasePath:  cfg.Executor.BasePath,
		Admin:     cfg.Admin.URL,
		LogDir:    cfg.Logs.Dir,
		LogLayout: cfg.Logs.Layout,
		Handlers:  cfg.Handlers.Builtin,
	}
	if cfg.Path != "" {
		if manifest, err := config.LoadChecksums(filepath.Dir(cfg.Path)); err == nil {
			_, summary.Locked = manifest.Hashes[filepath.Base(cfg.Path)]
		}
	}

	if *jsonOut {
		out, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "JSON format error: %v\n", err)
			return 1
		}
		fmt.Println(string(out))
		return 0
	}

	fmt.Println("Configuration OK")
	if summary.Path != "" {
		fmt.Printf("  config:    %s (locked: %t)\n", summary.Path, summary.Locked)
	}
	fmt.Printf("  executor:  %s at %s\n", summary.Executor, summary.Address)
	fmt.Printf("  listen:    %s%s\n", summary.Listen, summary.BasePath)
	fmt.Printf("  admin:     %s\n", summary.Admin)
	fmt.Printf("  job logs:  %s (%s)\n", summary.LogDir, summary.LogLayout)
	fmt.Printf("  handlers:  %v\n", summary.Handlers)
	return 0
}

func runConfigLock(args []string) int {
	fs := flag.NewFlagSet("lock", flag.ContinueOnError)
	configPath := configFlag(fs)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "Error: --config is required")
		return 1
	}

	path, err := resolveConfigFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	checksumPath, err := config.Lock(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to lock config: %v\n", err)
		return 1
	}
	fmt.Printf("Locked %s in %s\n", path, checksumPath)
	return 0
}

// resolveConfigFile maps a directory to its config.yaml.
func resolveConfigFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("config file not found: %s", path)
	}
	if info.IsDir() {
		path = filepath.Join(path, "config.yaml")
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("directory provided but config.yaml not found: %s", path)
		}
	}
	return path, nil
}

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	configPath := configFlag(fs)
	address := fs.String("url", "", "Executor address (default: executor.address from config)")
	interval := fs.Duration("interval", watch.DefaultInterval, "Polling interval")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	target := *address
	if target == "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: --url not set and config unavailable: %v\n", err)
			return 1
		}
		target = cfg.Executor.Address
	}

	if err := watch.Run(watch.HealthURL(target), *interval); err != nil {
		fmt.Fprintf(os.Stderr, "watch: %v\n", err)
		return 1
	}
	return 0
}
