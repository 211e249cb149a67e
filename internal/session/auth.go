package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// AuthClient signs users in and out against the hosted auth endpoint
// (GoTrue-style HTTP API under /auth/v1).
type AuthClient struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

// NewAuthClient creates an auth client for the given project URL and anon
// key.
func NewAuthClient(baseURL, apiKey string) *AuthClient {
	return &AuthClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
}

// SignUp registers a new account and returns the session when the project
// issues one immediately.
func (c *AuthClient) SignUp(ctx context.Context, email, password string) (*Session, error) {
	return c.postSession(ctx, "/auth/v1/signup", "", map[string]string{
		"email":    email,
		"password": password,
	})
}

// SignIn exchanges email and password for a session.
func (c *AuthClient) SignIn(ctx context.Context, email, password string) (*Session, error) {
	return c.postSession(ctx, "/auth/v1/token?grant_type=password", "", map[string]string{
		"email":    email,
		"password": password,
	})
}

// SignOut revokes the session's tokens.
func (c *AuthClient) SignOut(ctx context.Context, accessToken string) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/auth/v1/logout", accessToken, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("sign-out request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("sign-out rejected with status %d", resp.StatusCode)
	}
	return nil
}

// UpdateActiveChild writes the active child selection into the user's
// metadata and returns the updated user. This is the producer side of what
// Resolver reads.
func (c *AuthClient) UpdateActiveChild(ctx context.Context, accessToken, childID string) (*User, error) {
	body := map[string]any{
		"data": map[string]any{activeChildKey: childID},
	}

	req, err := c.newRequest(ctx, http.MethodPut, "/auth/v1/user", accessToken, body)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("user update request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read user update response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("user update rejected with status %d: %s", resp.StatusCode, authErrorMessage(data))
	}

	var user User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("malformed user update response: %w", err)
	}
	return &user, nil
}

func (c *AuthClient) postSession(ctx context.Context, path, accessToken string, body any) (*Session, error) {
	req, err := c.newRequest(ctx, http.MethodPost, path, accessToken, body)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read auth response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("auth rejected with status %d: %s", resp.StatusCode, authErrorMessage(data))
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("malformed auth response: %w", err)
	}
	return &sess, nil
}

func (c *AuthClient) newRequest(ctx context.Context, method, path, accessToken string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal auth request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build auth request: %w", err)
	}

	req.Header.Set("apikey", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	token := accessToken
	if token == "" {
		token = c.apiKey
	}
	req.Header.Set("Authorization", "Bearer "+token)

	return req, nil
}

// authErrorMessage extracts a message from a GoTrue error body, which uses
// either "msg" or "error_description" depending on the endpoint.
func authErrorMessage(data []byte) string {
	var body struct {
		Msg         string `json:"msg"`
		Description string `json:"error_description"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	if body.Msg != "" {
		return body.Msg
	}
	return body.Description
}
