package sms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mwangikariuki/shopkit-backend/pkg/config"
	pkgerrors "github.com/mwangikariuki/shopkit-backend/pkg/errors"
	"github.com/mwangikariuki/shopkit-backend/pkg/logger"
)

const (
	messagingPath  = "/version1/messaging"
	requestTimeout = 10 * time.Second
)

var (
	errUsernameRequired = errors.New("sms username is required")
	errAPIKeyRequired   = errors.New("sms api key is required")
	errLoggerRequired   = errors.New("sms logger is required")
)

// Client wraps the Africa's Talking messaging endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	username   string
	apiKey     string
	senderID   string
	logger     *logger.Logger
}

// NewClient initializes the SMS wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.SMSConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	username := strings.TrimSpace(cfg.Username)
	if username == "" {
		return nil, errUsernameRequired
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.africastalking.com"
	}

	c := &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    baseURL,
		username:   username,
		apiKey:     apiKey,
		senderID:   strings.TrimSpace(cfg.SenderID),
		logger:     logg,
	}

	logg.Info(ctx, "sms client initialized")
	return c, nil
}

// WithBaseURL overrides the API endpoint, primarily for tests.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

type sendResponse struct {
	SMSMessageData struct {
		Recipients []struct {
			Number     string `json:"number"`
			Status     string `json:"status"`
			StatusCode int    `json:"statusCode"`
		} `json:"Recipients"`
	} `json:"SMSMessageData"`
}

// Send delivers one SMS to the given phone number.
func (c *Client) Send(ctx context.Context, to, message string) error {
	phone := strings.TrimSpace(to)
	if phone == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient phone is required")
	}
	if strings.TrimSpace(message) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "message body is required")
	}

	form := url.Values{}
	form.Set("username", c.username)
	form.Set("to", phone)
	form.Set("message", message)
	if c.senderID != "" {
		form.Set("from", c.senderID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+messagingPath, strings.NewReader(form.Encode()))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build sms request")
	}
	req.Header.Set("apiKey", c.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	c.log(ctx, "request", "send_sms", map[string]any{"to": phone})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log(ctx, "error", "send_sms", map[string]any{"error": err.Error()})
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sms gateway request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		c.log(ctx, "error", "send_sms", map[string]any{
			"status": resp.StatusCode,
			"body":   string(detail),
		})
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("sms gateway returned status %d", resp.StatusCode))
	}

	var decoded sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode sms gateway response")
	}
	for _, recipient := range decoded.SMSMessageData.Recipients {
		if recipient.StatusCode >= 400 {
			c.log(ctx, "error", "send_sms", map[string]any{
				"recipient": recipient.Number,
				"status":    recipient.Status,
			})
			return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("sms rejected for %s: %s", recipient.Number, recipient.Status))
		}
	}

	c.log(ctx, "response", "send_sms", map[string]any{"status": resp.StatusCode})
	return nil
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c.logger == nil {
		return
	}
	merged := map[string]any{"phase": phase, "operation": op}
	for k, v := range fields {
		merged[k] = v
	}
	c.logger.Info(c.logger.WithFields(ctx, merged), "sms gateway call")
}
