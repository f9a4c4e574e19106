// Package tui implements a terminal dashboard for the gateway's management
// API, in the teacher's bubbletea/bubbles/lipgloss style: an HTTP
// client, a lipgloss palette, and one bubbletea model per tab.
package tui

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Client wraps HTTP calls to the gateway's management API.
type Client struct {
	baseURL   string
	secretKey string
	http      *http.Client
}

// NewClient creates a management API client targeting host:port.
func NewClient(host string, port int, secretKey string) *Client {
	return &Client{
		baseURL:   fmt.Sprintf("http://%s:%d", host, port),
		secretKey: strings.TrimSpace(secretKey),
		http:      &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) doRequest(method, path string, body io.Reader) ([]byte, int, error) {
	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return nil, 0, err
	}
	if c.secretKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.secretKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return data, resp.StatusCode, nil
}

func (c *Client) get(path string) ([]byte, error) {
	data, code, err := c.doRequest(http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if code >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", code, strings.TrimSpace(string(data)))
	}
	return data, nil
}

func (c *Client) getJSON(path string) (map[string]any, error) {
	data, err := c.get(path)
	if err != nil {
		return nil, err
	}
	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetStats fetches the aggregate per-(provider,model) usage totals.
func (c *Client) GetStats() (map[string]any, error) {
	return c.getJSON("/api/stats")
}

// GetRequests fetches the most recent request log entries.
func (c *Client) GetRequests(limit int) ([]map[string]any, error) {
	path := "/api/stats/requests"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	wrapper, err := c.getJSON(path)
	if err != nil {
		return nil, err
	}
	return extractList(wrapper, "requests")
}

// GetCredentials lists every persisted credential, redacted server-side.
func (c *Client) GetCredentials() ([]map[string]any, error) {
	wrapper, err := c.getJSON("/auth")
	if err != nil {
		return nil, err
	}
	return extractList(wrapper, "auth_files")
}

// GetFallbackModels lists the configured virtual models.
func (c *Client) GetFallbackModels() ([]map[string]any, error) {
	wrapper, err := c.getJSON("/api/fallback")
	if err != nil {
		return nil, err
	}
	return extractList(wrapper, "models")
}

// GetConfig fetches the flattened read-only config view.
func (c *Client) GetConfig() (map[string]any, error) {
	return c.getJSON("/api/config")
}

func extractList(wrapper map[string]any, key string) ([]map[string]any, error) {
	arr, ok := wrapper[key]
	if !ok || arr == nil {
		return nil, nil
	}
	raw, err := json.Marshal(arr)
	if err != nil {
		return nil, err
	}
	var result []map[string]any
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, err
	}
	return result, nil
}
