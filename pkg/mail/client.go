package mail

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

	"github.com/mwangikariuki/shopkit-backend/pkg/config"
	pkgerrors "github.com/mwangikariuki/shopkit-backend/pkg/errors"
	"github.com/mwangikariuki/shopkit-backend/pkg/logger"
)

const (
	defaultBaseURL = "https://api.sendgrid.com"
	sendPath       = "/v3/mail/send"
	requestTimeout = 10 * time.Second
)

var (
	errAPIKeyRequired = errors.New("sendgrid api key is required")
	errFromRequired   = errors.New("sendgrid from address is required")
	errLoggerRequired = errors.New("mail logger is required")
)

// Message is a single outbound email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Client wraps the SendGrid v3 mail send endpoint with auth, logging, and
// error mapping.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	from       string
	logger     *logger.Logger
}

// NewClient initializes the mail wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.MailConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	from := strings.TrimSpace(cfg.DefaultFrom)
	if from == "" {
		return nil, errFromRequired
	}

	c := &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		from:       from,
		logger:     logg,
	}

	logg.Info(ctx, "mail client initialized")
	return c, nil
}

// WithBaseURL overrides the API endpoint, primarily for tests.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

type sendRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From             emailAddress      `json:"from"`
	Subject          string            `json:"subject"`
	Content          []content         `json:"content"`
}

type personalization struct {
	To []emailAddress `json:"to"`
}

type emailAddress struct {
	Email string `json:"email"`
}

type content struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Send delivers one email through SendGrid.
func (c *Client) Send(ctx context.Context, msg Message) error {
	to := strings.TrimSpace(msg.To)
	if to == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient email is required")
	}

	body := sendRequest{
		Personalizations: []personalization{{To: []emailAddress{{Email: to}}}},
		From:             emailAddress{Email: c.from},
		Subject:          msg.Subject,
		Content:          []content{{Type: "text/plain", Value: msg.Body}},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode mail payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+sendPath, bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build mail request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	c.log(ctx, "request", "send_mail", map[string]any{"to": to, "subject": msg.Subject})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log(ctx, "error", "send_mail", map[string]any{"error": err.Error()})
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sendgrid request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		c.log(ctx, "error", "send_mail", map[string]any{
			"status": resp.StatusCode,
			"body":   string(detail),
		})
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("sendgrid returned status %d", resp.StatusCode))
	}

	c.log(ctx, "response", "send_mail", map[string]any{"status": resp.StatusCode})
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
	c.logger.Info(c.logger.WithFields(ctx, merged), "mail gateway call")
}
