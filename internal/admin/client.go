// Package admin talks to the scheduling admin: registration, deregistration
// and completion callbacks. Every call carries the shared access token.
package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/xxl-executor/internal/log"
	"github.com/mattjoyce/xxl-executor/internal/protocol"
)

const (
	registryPath       = "/api/registry"
	registryRemovePath = "/api/registryRemove"
	callbackPath       = "/api/callback"

	defaultTimeout = 10 * time.Second
)

// Config describes how to reach the admin and how this executor registers.
type Config struct {
	// URL is the admin base URL, e.g. http://admin:8080/xxl-job-admin.
	URL         string
	AccessToken string
	Timeout     time.Duration
	// AppName is the registry key the admin groups executors by.
	AppName string
	// Address is the URL the admin uses to reach this executor.
	Address string

	HTTPClient *http.Client
}

// Client is a thin JSON-over-HTTP client for the admin API.
type Client struct {
	baseURL string
	token   string
	appName string
	address string
	http    *http.Client
	logger  *slog.Logger
}

// New validates cfg and returns a Client.
func New(cfg Config) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(cfg.URL))
	if err != nil {
		return nil, fmt.Errorf("invalid admin url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("admin url must be http or https, got %q", cfg.URL)
	}
	if cfg.AppName == "" {
		return nil, fmt.Errorf("executor app name is required")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("executor address is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL: strings.TrimRight(u.String(), "/"),
		token:   cfg.AccessToken,
		appName: cfg.AppName,
		address: cfg.Address,
		http:    httpClient,
		logger:  log.WithComponent("admin"),
	}, nil
}

func (c *Client) registryParam() protocol.RegistryParam {
	return protocol.RegistryParam{
		RegistryGroup: protocol.RegistryGroupExecutor,
		RegistryKey:   c.appName,
		RegistryValue: c.address,
	}
}

// Register announces this executor to the admin. It doubles as the heartbeat.
func (c *Client) Register(ctx context.Context) error {
	return c.post(ctx, registryPath, c.registryParam())
}

// Deregister removes this executor from the admin's registry.
func (c *Client) Deregister(ctx context.Context) error {
	return c.post(ctx, registryRemovePath, c.registryParam())
}

// ReportCompletion sends a single-element callback. Delivery failures are
// logged, not returned: the job has already finished.
func (c *Client) ReportCompletion(ctx context.Context, result protocol.HandleCallbackParam) {
	if err := c.post(ctx, callbackPath, []protocol.HandleCallbackParam{result}); err != nil {
		c.logger.Error("failed to report job completion",
			"log_id", result.LogID,
			"handle_code", result.HandleCode,
			"error", err,
		)
		return
	}
	c.logger.Debug("reported job completion", "log_id", result.LogID, "handle_code", result.HandleCode)
}

// post sends body as JSON and checks the ReturnT envelope.
func (c *Client) post(ctx context.Context, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if c.token != "" {
		req.Header.Set(protocol.AccessTokenHeader, c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s: unexpected status %d", path, resp.StatusCode)
	}

	ret, _, err := protocol.DecodeReturn(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if !ret.OK() {
		return fmt.Errorf("%s: admin returned code %d: %s", path, ret.Code, ret.Msg)
	}
	return nil
}
