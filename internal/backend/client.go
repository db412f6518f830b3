package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Keyring-Network/keyring-gavryn/agent-console/internal/results"
)

const maxErrorBody = 64 << 10

type Config struct {
	BaseURL       string
	Timeout       time.Duration
	HealthTimeout time.Duration
}

type Health struct {
	Status      string `json:"status"`
	APIKeyValid bool   `json:"api_key_valid"`
	Model       string `json:"model"`
	Version     string `json:"version"`
}

// StatusError is returned for a non-2xx response whose body could not be
// read as a run result.
type StatusError struct {
	Code int
}

func (e StatusError) Error() string {
	return fmt.Sprintf("backend returned status %d", e.Code)
}

type Client struct {
	baseURL       string
	timeout       time.Duration
	healthTimeout time.Duration
	client        *http.Client
}

func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:5000"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	healthTimeout := cfg.HealthTimeout
	if healthTimeout <= 0 {
		healthTimeout = 2 * time.Second
	}
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		timeout:       timeout,
		healthTimeout: healthTimeout,
		client:        &http.Client{},
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Process submits one instruction and waits for the whole run. The body is
// decoded regardless of the HTTP status since the backend reports rejected
// runs as {status, message} with a 4xx/5xx code.
func (c *Client) Process(ctx context.Context, instruction string) (results.RunResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(map[string]string{"instruction": instruction})
	if err != nil {
		return results.RunResult{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/process", bytes.NewReader(body))
	if err != nil {
		return results.RunResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return results.RunResult{}, err
	}
	defer resp.Body.Close()

	var run results.RunResult
	if resp.StatusCode >= 300 {
		raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if readErr != nil || json.Unmarshal(raw, &run) != nil || run.Status == "" {
			return results.RunResult{}, StatusError{Code: resp.StatusCode}
		}
		return run, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		return results.RunResult{}, fmt.Errorf("decode run result: %w", err)
	}
	return run, nil
}

func (c *Client) Health(ctx context.Context) (Health, error) {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return Health{}, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return Health{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return Health{}, StatusError{Code: resp.StatusCode}
	}
	var health Health
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return Health{}, fmt.Errorf("decode health: %w", err)
	}
	return health, nil
}
