// Package host talks to the laboratory application that owns the
// instruments and the protocol runner.
package host

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"labagent/pkg/config"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ProtocolRunner starts a protocol on the host. A nil ProtocolRunner means
// the host exposes no run entry point.
type ProtocolRunner interface {
	RunProtocol(ctx context.Context, name string) error
}

// RunnerFunc adapts a plain function to ProtocolRunner.
type RunnerFunc func(ctx context.Context, name string) error

// RunProtocol implements ProtocolRunner.
func (f RunnerFunc) RunProtocol(ctx context.Context, name string) error {
	return f(ctx, name)
}

// Command is the JSON body posted to the host's command endpoint.
type Command struct {
	Command  string `json:"command"`
	Protocol string `json:"protocol,omitempty"`
}

// CommandClient posts commands to the host over HTTP.
type CommandClient struct {
	url    string
	client *http.Client
}

// NewCommandClient creates a client for url with the given request timeout.
func NewCommandClient(url string, timeout time.Duration) *CommandClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CommandClient{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// NewFromConfig returns a runner for cfg, or nil when no run_url is set.
// The returned interface is nil (not a typed nil) so callers can compare.
func NewFromConfig(cfg config.HostConfig, sys *config.SystemConfig) ProtocolRunner {
	if cfg.RunURL == "" {
		return nil
	}
	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 && sys != nil {
		timeout = time.Duration(sys.DownloadTimeoutMs) * time.Millisecond
	}
	slog.Info("Host command client configured", "url", cfg.RunURL, "timeout", timeout.String())
	return NewCommandClient(cfg.RunURL, timeout)
}

// RunProtocol asks the host to start the named protocol.
func (c *CommandClient) RunProtocol(ctx context.Context, name string) error {
	return c.send(ctx, Command{Command: "run_protocol", Protocol: name})
}

func (c *CommandClient) send(ctx context.Context, cmd Command) error {
	body, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to encode command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("host request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("host rejected %s: %s: %s", cmd.Command, resp.Status, bytes.TrimSpace(msg))
	}

	slog.InfoContext(ctx, "Host command accepted", "command", cmd.Command, "protocol", cmd.Protocol)
	return nil
}
