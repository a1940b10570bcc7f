// Package client talks to a running ssbsql-server.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ssbsql/internal/db"
	"ssbsql/internal/models"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type Status struct {
	Status        string        `json:"status"`
	Version       string        `json:"version"`
	Timestamp     string        `json:"timestamp"`
	SchemaVersion int           `json:"schema_version"`
	Latest        uint64        `json:"latest"`
	Behind        uint64        `json:"behind"`
	Stats         db.IndexStats `json:"stats"`
}

func (c *Client) Status(ctx context.Context) (*Status, error) {
	var out Status
	if err := c.get(ctx, "/api/v1/status", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Latest(ctx context.Context) (uint64, error) {
	var out struct {
		Latest uint64 `json:"latest"`
	}
	if err := c.get(ctx, "/api/v1/latest", &out); err != nil {
		return 0, err
	}
	return out.Latest, nil
}

// Messages lists index rows. filters takes the /messages query parameters:
// type, author, private, since, mine, links_to and limit.
func (c *Client) Messages(ctx context.Context, filters url.Values) ([]models.IndexedMessage, error) {
	var out struct {
		Messages []models.IndexedMessage `json:"messages"`
	}
	if err := c.get(ctx, "/api/v1/messages?"+filters.Encode(), &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

func (c *Client) Message(ctx context.Context, key string) (*models.IndexedMessage, error) {
	var out struct {
		Message models.IndexedMessage `json:"message"`
	}
	if err := c.get(ctx, "/api/v1/messages/"+url.PathEscape(key), &out); err != nil {
		return nil, err
	}
	return &out.Message, nil
}

func (c *Client) Backlinks(ctx context.Context, key string, filters url.Values) ([]models.IndexedMessage, error) {
	params := url.Values{}
	for k, v := range filters {
		params[k] = v
	}
	params.Set("key", key)
	var out struct {
		Backlinks []models.IndexedMessage `json:"backlinks"`
	}
	if err := c.get(ctx, "/api/v1/backlinks?"+params.Encode(), &out); err != nil {
		return nil, err
	}
	return out.Backlinks, nil
}

// Wait blocks until the server has indexed seq or timeout passes.
func (c *Client) Wait(ctx context.Context, seq uint64, timeout time.Duration) (uint64, error) {
	params := url.Values{"seq": {strconv.FormatUint(seq, 10)}}
	if timeout > 0 {
		params.Set("timeout", timeout.String())
	}
	var out struct {
		Latest uint64 `json:"latest"`
	}
	if err := c.get(ctx, "/api/v1/wait?"+params.Encode(), &out); err != nil {
		return 0, err
	}
	return out.Latest, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var payload map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil {
			if msg, ok := payload["error"].(string); ok {
				return fmt.Errorf("http %d: %s", resp.StatusCode, msg)
			}
		}
		return fmt.Errorf("http %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
