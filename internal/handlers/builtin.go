// Package handlers provides job handlers that ship with the executor binary.
// They are enabled by name through handlers.builtin in the config.
package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"

	"github.com/mattjoyce/xxl-executor/internal/handler"
)

const (
	DemoName  = "demoJobHandler"
	ShellName = "shell"
	HTTPName  = "httpJobHandler"

	maxBodyLog = 4 << 10
)

// Builtins returns every built-in handler keyed by name.
func Builtins() map[string]handler.Func {
	return map[string]handler.Func{
		DemoName:  Demo,
		ShellName: Shell,
		HTTPName:  NewHTTP(&http.Client{}),
	}
}

// Select returns the named subset of Builtins. Unknown names are an error.
func Select(names []string) (map[string]handler.Func, error) {
	all := Builtins()
	selected := make(map[string]handler.Func, len(names))
	for _, name := range names {
		fn, ok := all[name]
		if !ok {
			known := make([]string, 0, len(all))
			for k := range all {
				known = append(known, k)
			}
			sort.Strings(known)
			return nil, fmt.Errorf("unknown built-in handler %q (available: %s)", name, strings.Join(known, ", "))
		}
		selected[name] = fn
	}
	return selected, nil
}

// Demo sleeps for params.seconds (default 9), logging progress every
// params.interval_ms (default 1000).
func Demo(ctx context.Context, logger *slog.Logger, params handler.Params, shared any) (any, error) {
	seconds := params.Int("seconds", 9)
	interval := time.Duration(params.Int("interval_ms", 1000)) * time.Millisecond
	if interval <= 0 {
		interval = time.Second
	}
	logger.Debug("params", "params", params, "shared", shared != nil)

	deadline := time.Duration(seconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var elapsed time.Duration
	for elapsed < deadline {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			elapsed += interval
			logger.Debug(fmt.Sprintf("%s passed", elapsed))
		}
	}
	return fmt.Sprintf("slept %s", deadline), nil
}

// Shell runs params.command, split with shell quoting rules but not run
// through a shell. Output lines go to the job log. The process is killed
// when ctx is cancelled.
func Shell(ctx context.Context, logger *slog.Logger, params handler.Params, _ any) (any, error) {
	command := params.String("command")
	if strings.TrimSpace(command) == "" {
		return nil, errors.New("params.command is required")
	}
	argv, err := shellquote.Split(command)
	if err != nil {
		return nil, fmt.Errorf("parse command: %w", err)
	}
	if len(argv) == 0 {
		return nil, errors.New("params.command is empty")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if dir := params.String("dir"); dir != "" {
		cmd.Dir = dir
	}

	logger.Info("exec", "argv", argv)
	out, err := cmd.CombinedOutput()
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line != "" {
			logger.Info(line)
		}
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%s exited with code %d", argv[0], exitErr.ExitCode())
		}
		return nil, fmt.Errorf("run %s: %w", argv[0], err)
	}
	return "exit 0", nil
}

// NewHTTP returns a handler that sends params.method (default GET) to
// params.url with optional params.body and fails on a non-2xx answer.
func NewHTTP(client *http.Client) handler.Func {
	return func(ctx context.Context, logger *slog.Logger, params handler.Params, _ any) (any, error) {
		url := params.String("url")
		if url == "" {
			return nil, errors.New("params.url is required")
		}
		method := strings.ToUpper(params.String("method"))
		if method == "" {
			method = http.MethodGet
		}

		var body io.Reader
		if b := params.String("body"); b != "" {
			body = strings.NewReader(b)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, body)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		if ct := params.String("content_type"); ct != "" {
			req.Header.Set("Content-Type", ct)
		} else if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		logger.Info("request", "method", method, "url", url)
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", method, url, err)
		}
		defer resp.Body.Close()

		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyLog))
		logger.Info("response", "status", resp.StatusCode, "body", string(bytes.TrimSpace(snippet)))

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("%s %s: status %d", method, url, resp.StatusCode)
		}
		return resp.StatusCode, nil
	}
}
