// Package push sends topic notifications through the FCM legacy HTTP
// API. Delivery is best effort; callers must treat errors as advisory.
package push

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
	URL       string
	ServerKey string
	HTTP      *http.Client
}

func New(url, serverKey string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 5 * time.Second}
	}
	return &Client{URL: url, ServerKey: serverKey, HTTP: hc}
}

type message struct {
	To           string       `json:"to"`
	Notification notification `json:"notification"`
}

type notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// NotifyTopic pushes a notification to /topics/<topic>.
func (c *Client) NotifyTopic(ctx context.Context, topic, title, body string) error {
	b, _ := json.Marshal(message{
		To:           "/topics/" + topic,
		Notification: notification{Title: title, Body: body},
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "key="+c.ServerKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("sending notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("notification status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return nil
}
