// internal/backend/client.go
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"intake-crm-workers/internal/common/config"
	"intake-crm-workers/internal/models"
)

const SourceName = "api"

var (
	ErrNotFound = errors.New("lead not found")
	ErrDecode   = errors.New("decode backend response")
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("crm backend returned %d: %s", e.StatusCode, e.Body)
}

// Client reads leads from the CRM backend REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(cfg config.BackendConfig) *Client {
	timeout := config.GetDuration(cfg.Timeout)
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Name() string { return SourceName }

// FetchLeads returns every lead the backend lists, in the backend's order.
func (c *Client) FetchLeads(ctx context.Context) ([]models.Lead, error) {
	body, err := c.get(ctx, "/api/leads")
	if err != nil {
		return nil, err
	}
	return decodeLeads(body)
}

func (c *Client) FetchLead(ctx context.Context, id string) (*models.Lead, error) {
	body, err := c.get(ctx, "/api/leads/"+url.PathEscape(id))
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}

	var envelope struct {
		Lead *models.Lead `json:"lead"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Lead != nil {
		return envelope.Lead, nil
	}

	var lead models.Lead
	if err := json.Unmarshal(body, &lead); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return &lead, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 512)}
	}
	return body, nil
}

// decodeLeads accepts either {"leads": [...]} or a bare array.
func decodeLeads(body []byte) ([]models.Lead, error) {
	trimmed := bytes.TrimSpace(body)

	var leads []models.Lead
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &leads); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
	} else {
		var envelope struct {
			Leads []models.Lead `json:"leads"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		leads = envelope.Leads
	}

	if leads == nil {
		leads = []models.Lead{}
	}
	return leads, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
