// Package waclient wraps the WhatsApp Cloud API endpoints the bot needs.
package waclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"log/slog"
)

const (
	defaultBaseURL   = "https://graph.facebook.com/v18.0"
	defaultUserAgent = "turnosbot-messaging/0.1"
)

// Config controls how the WhatsApp client behaves.
type Config struct {
	BaseURL       string
	AccessToken   string
	PhoneNumberID string
	Timeout       time.Duration
	HTTPClient    *http.Client
	Logger        *slog.Logger
	UserAgent     string
}

// Client wraps the Cloud API message endpoint.
type Client struct {
	accessToken   string
	phoneNumberID string
	baseURL       string
	httpClient    *http.Client
	logger        *slog.Logger
	userAgent     string
}

// New creates a configured Client with sane defaults.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, errors.New("waclient: access token is required")
	}
	if strings.TrimSpace(cfg.PhoneNumberID) == "" {
		return nil, errors.New("waclient: phone number id is required")
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 20 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		accessToken:   cfg.AccessToken,
		phoneNumberID: cfg.PhoneNumberID,
		baseURL:       baseURL,
		httpClient:    httpClient,
		logger:        logger,
		userAgent:     userAgent,
	}, nil
}

// APIError is a non-2xx response from the Cloud API.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("waclient: api error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("waclient: api error %d", e.StatusCode)
}

type textPayload struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		Body string `json:"body"`
	} `json:"text"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// SendText delivers one text message and returns the provider message id.
func (c *Client) SendText(ctx context.Context, to, body string) (string, error) {
	payload := textPayload{MessagingProduct: "whatsapp", To: CleanNumber(to), Type: "text"}
	payload.Text.Body = body
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("waclient: marshal send body: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("waclient: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("waclient: http error: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("waclient: read response: %w", err)
	}

	var decoded sendResponse
	_ = json.Unmarshal(raw, &decoded)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: decoded.Error.Message, Body: string(raw)}
		c.logger.Error("whatsapp send failed", "status", resp.StatusCode, "error", apiErr.Message)
		return "", apiErr
	}

	id := ""
	if len(decoded.Messages) > 0 {
		id = decoded.Messages[0].ID
	}
	c.logger.Info("whatsapp message sent", "provider_message_id", id)
	return id, nil
}

// Send implements the messaging.Sender contract.
func (c *Client) Send(ctx context.Context, recipient, text string) error {
	_, err := c.SendText(ctx, recipient, text)
	return err
}

// CleanNumber normalizes a phone number to the digits-only form the Cloud
// API expects, assuming Argentine mobile conventions for bare local
// numbers.
func CleanNumber(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	clean := b.String()
	switch {
	case strings.HasPrefix(clean, "549"):
		return clean
	case strings.HasPrefix(clean, "54"):
		if len(clean) == 12 {
			return "549" + clean[2:]
		}
		return clean
	case len(clean) == 10:
		return "549" + clean
	case len(clean) == 11 && strings.HasPrefix(clean, "15"):
		return "549" + clean[2:]
	case len(clean) >= 8:
		return "549" + clean
	default:
		return clean
	}
}
