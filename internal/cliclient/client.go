// Package cliclient is forgectl's HTTP client for the forge-api control
// plane. The control-plane API is plain JSON over HTTP, so this is a thin
// net/http wrapper rather than a generated RPC stub, the same shape
// pkg/agentfetch uses on the DPU side of the same API.
package cliclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client speaks to forge-api's JSON/HTTP surface as an authenticated operator.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New builds a Client authenticating with an operator API key (sent as
// X-API-Key, the same header internal/auth.Middleware checks for).
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && out != nil {
		return ErrNotFound
	}
	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, respBody)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response from %s: %w", path, err)
	}
	return nil
}

// ErrNotFound is returned when forge-api answers a lookup with 404.
var ErrNotFound = fmt.Errorf("not found")

// ManagedHost mirrors the subset of machine.ManagedHost forgectl displays.
type ManagedHost struct {
	MachineID     string     `json:"machine_id"`
	TenantID      string     `json:"tenant_id"`
	State         string     `json:"state"`
	PreviousState string     `json:"previous_state,omitempty"`
	AllocatedTo   *string    `json:"allocated_to,omitempty"`
	LastPhoneHome *time.Time `json:"last_phone_home,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// HealthAlert mirrors machine.HealthAlert.
type HealthAlert struct {
	ID              string    `json:"id"`
	MachineID       string    `json:"machine_id"`
	Kind            string    `json:"kind"`
	Target          string    `json:"target"`
	Message         string    `json:"message"`
	Classification  string    `json:"classification,omitempty"`
	OccurrenceCount int       `json:"occurrence_count"`
	Resolved        bool      `json:"resolved"`
	FirstSeenAt     time.Time `json:"first_seen_at"`
	LastSeenAt      time.Time `json:"last_seen_at"`
}

// HealthAlertOverride mirrors machine.HealthAlertOverride.
type HealthAlertOverride struct {
	MachineID string    `json:"machine_id"`
	Mode      string    `json:"mode"`
	Alerts    []any     `json:"alerts"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GetMachine fetches a managed host by ID.
func (c *Client) GetMachine(ctx context.Context, machineID string) (ManagedHost, error) {
	var out ManagedHost
	err := c.do(ctx, http.MethodGet, "/api/v1/machines/"+machineID, nil, &out)
	return out, err
}

// ListHealthAlerts fetches the effective open health alerts for a host.
func (c *Client) ListHealthAlerts(ctx context.Context, machineID string) ([]HealthAlert, error) {
	var out []HealthAlert
	err := c.do(ctx, http.MethodGet, "/api/v1/machines/"+machineID+"/health-alerts", nil, &out)
	return out, err
}

// GetHealthOverride fetches a host's installed health-alert override. It
// returns ErrNotFound if none is installed.
func (c *Client) GetHealthOverride(ctx context.Context, machineID string) (HealthAlertOverride, error) {
	var out HealthAlertOverride
	err := c.do(ctx, http.MethodGet, "/api/v1/machines/"+machineID+"/health-overrides", nil, &out)
	return out, err
}
