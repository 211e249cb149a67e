// Package remote talks to the hosted row store holding the canonical copy of
// every log table.
//
// The backend exposes a PostgREST-style HTTP interface: POST inserts a row
// and, with the right Prefer header, returns the stored representation
// including the server-assigned id and logged_at timestamp; GET with an
// equality filter on child_id selects a child's rows. The sync engine only
// needs those two operations, captured by the Store interface so tests can
// substitute an in-memory implementation.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Row is one JSON-shaped row returned by the remote store.
type Row map[string]any

// String returns the named field as a string, or "" when absent or not a
// string.
func (r Row) String(key string) string {
	s, _ := r[key].(string)
	return s
}

// InsertResult carries the server-assigned identity of a freshly inserted
// row.
type InsertResult struct {
	ID       string
	LoggedAt string
}

// Store is the row-level interface the sync engine consumes.
type Store interface {
	// Insert stores one row and returns its server-assigned id and
	// creation timestamp.
	Insert(ctx context.Context, table string, payload map[string]any) (*InsertResult, error)

	// Select returns all rows in the table belonging to the child.
	Select(ctx context.Context, table, childID string) ([]Row, error)
}

// APIError is a rejection from the remote store.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote store returned status %d", e.Status)
	}
	return fmt.Sprintf("remote store returned status %d: %s", e.Status, e.Message)
}

// Client implements Store against a Supabase-style REST endpoint.
type Client struct {
	baseURL string
	apiKey  string
	token   string
	httpc   *http.Client
}

// NewClient creates a client for the given project URL and anon key.
//
// accessToken is the signed-in user's bearer token; pass "" to authenticate
// with the anon key alone.
func NewClient(baseURL, apiKey, accessToken string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		token:   accessToken,
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Insert implements Store.Insert.
func (c *Client) Insert(ctx context.Context, table string, payload map[string]any) (*InsertResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal insert payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/rest/v1/"+table, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build insert request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	// Ask PostgREST to echo the stored row back so we learn the
	// server-assigned id and timestamp.
	req.Header.Set("Prefer", "return=representation")

	rows, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("insert into %s returned no representation", table)
	}

	res := &InsertResult{
		ID:       rows[0].String("id"),
		LoggedAt: rows[0].String("logged_at"),
	}
	if res.ID == "" || res.LoggedAt == "" {
		return nil, fmt.Errorf("insert into %s succeeded but returned no id/timestamp", table)
	}
	return res, nil
}

// Select implements Store.Select.
func (c *Client) Select(ctx context.Context, table, childID string) ([]Row, error) {
	u := fmt.Sprintf("%s/rest/v1/%s?select=*&child_id=eq.%s",
		c.baseURL, table, url.QueryEscape(childID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build select request: %w", err)
	}
	c.setHeaders(req)

	return c.do(req)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("apikey", c.apiKey)
	token := c.token
	if token == "" {
		token = c.apiKey
	}
	req.Header.Set("Authorization", "Bearer "+token)
}

// do executes the request and decodes the JSON row array, converting non-2xx
// responses into an APIError.
func (c *Client) do(req *http.Request) ([]Row, error) {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to remote store failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read remote store response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Status: resp.StatusCode, Message: errorMessage(data)}
	}

	if len(data) == 0 {
		return nil, nil
	}

	var rows []Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("malformed remote store response: %w", err)
	}
	return rows, nil
}

// errorMessage extracts the message field from a PostgREST error body.
func errorMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err != nil || body.Message == "" {
		return ""
	}
	return body.Message
}
