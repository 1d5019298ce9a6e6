// Package telnyx is a minimal call-control client for the out-of-band speak
// and gather sequence used with JSON event webhooks.
package telnyx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Client posts call actions to the Telnyx v2 API. All calls are fallible and
// bounded; a failure is logged and acked upstream, never fatal to the call.
type Client struct {
	apiKey   string
	baseURL  string
	voice    string
	language string
	client   *http.Client
	log      zerolog.Logger
}

// Config configures the client.
type Config struct {
	APIKey   string
	BaseURL  string
	Voice    string
	Language string
	Timeout  time.Duration
}

// NewClient builds the call-control client.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.telnyx.com"
	}
	if cfg.Voice == "" {
		cfg.Voice = "alice"
	}
	if cfg.Language == "" {
		cfg.Language = "es-MX"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		apiKey:   cfg.APIKey,
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		voice:    cfg.Voice,
		language: cfg.Language,
		client:   &http.Client{Timeout: cfg.Timeout},
		log:      log,
	}
}

// Speak vocalizes text on the live call.
func (c *Client) Speak(ctx context.Context, callControlID, text string) error {
	return c.action(ctx, callControlID, "speak", map[string]any{
		"payload":  text,
		"voice":    c.voice,
		"language": c.language,
	})
}

// GatherUsingSpeak speaks a prompt and starts speech recognition for the
// caller's answer.
func (c *Client) GatherUsingSpeak(ctx context.Context, callControlID, prompt string) error {
	return c.action(ctx, callControlID, "gather_using_speak", map[string]any{
		"speech": map[string]any{
			"language":                c.language,
			"interim_results":         false,
			"end_of_speech_detection": true,
		},
		"speak": map[string]any{
			"payload":  prompt,
			"voice":    c.voice,
			"language": c.language,
		},
	})
}

// Hangup ends the call.
func (c *Client) Hangup(ctx context.Context, callControlID string) error {
	return c.action(ctx, callControlID, "hangup", map[string]any{})
}

func (c *Client) action(ctx context.Context, callControlID, name string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s action: %w", name, err)
	}

	url := fmt.Sprintf("%s/v2/calls/%s/actions/%s", c.baseURL, callControlID, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building %s request: %w", name, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s action: %w", name, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s action: upstream status %d", name, resp.StatusCode)
	}

	c.log.Debug().Str("action", name).Str("call_control_id", callControlID).Msg("call action accepted")
	return nil
}
