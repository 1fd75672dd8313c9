// Package identity is a thin REST client for the external identity
// provider (a Firebase-Auth-compatible API). Passwords pass through to
// the provider and are never stored or hashed locally.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Client struct {
	Base   string
	APIKey string
	HTTP   *http.Client
}

func New(base, apiKey string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{Base: strings.TrimRight(base, "/"), APIKey: apiKey, HTTP: hc}
}

type credentials struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

// SignUp creates the user at the provider and returns its stable uid.
func (c *Client) SignUp(ctx context.Context, email, password string) (string, error) {
	return c.post(ctx, "accounts:signUp", email, password)
}

// SignIn verifies the credentials and returns the provider uid.
func (c *Client) SignIn(ctx context.Context, email, password string) (string, error) {
	return c.post(ctx, "accounts:signInWithPassword", email, password)
}

func (c *Client) post(ctx context.Context, action, email, password string) (string, error) {
	target := fmt.Sprintf("%s/v1/%s?key=%s", c.Base, action, c.APIKey)

	b, _ := json.Marshal(credentials{Email: email, Password: password, ReturnSecureToken: true})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%s status=%d body=%s", action, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload struct {
		LocalID string `json:"localId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode %s: %w", action, err)
	}
	if payload.LocalID == "" {
		return "", fmt.Errorf("%s: empty localId", action)
	}
	return payload.LocalID, nil
}
