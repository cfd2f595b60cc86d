// Package email sends transactional email through the Brevo HTTP API.
package email

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

	"github.com/otherjamesbrown/notetaker/pkg/logging"
)

// ErrNotConfigured is returned when no API key is available.
var ErrNotConfigured = errors.New("email API key not configured")

// Address is a mailbox.
type Address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Message is a rendered email.
type Message struct {
	To      Address
	Subject string
	HTML    string
	Text    string
}

// Sender delivers email. Send returns the provider's message id.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// Config configures the Brevo sender.
type Config struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"-"`
	SenderName  string        `yaml:"sender_name"`
	SenderEmail string        `yaml:"sender_email"`
	Timeout     time.Duration `yaml:"timeout"`
}

// DefaultConfig returns the default sender settings.
func DefaultConfig() Config {
	return Config{
		BaseURL:     "https://api.brevo.com",
		SenderName:  "AI Virtual Student",
		SenderEmail: "noreply@aivirtualstudent.com",
		Timeout:     10 * time.Second,
	}
}

// BrevoSender posts to /v3/smtp/email.
type BrevoSender struct {
	cfg        Config
	httpClient *http.Client
	logger     logging.Logger
}

// NewBrevoSender creates a sender. Empty fields in cfg take defaults.
func NewBrevoSender(cfg Config, logger logging.Logger) *BrevoSender {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.SenderName == "" {
		cfg.SenderName = def.SenderName
	}
	if cfg.SenderEmail == "" {
		cfg.SenderEmail = def.SenderEmail
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &BrevoSender{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With(logging.F("component", "email")),
	}
}

type brevoRequest struct {
	Sender      Address   `json:"sender"`
	To          []Address `json:"to"`
	Subject     string    `json:"subject"`
	HTMLContent string    `json:"htmlContent"`
	TextContent string    `json:"textContent"`
}

type brevoResponse struct {
	MessageID string `json:"messageId"`
	Message   string `json:"message"`
}

// Send implements Sender.
func (s *BrevoSender) Send(ctx context.Context, msg Message) (string, error) {
	if s.cfg.APIKey == "" {
		return "", ErrNotConfigured
	}
	if msg.To.Email == "" {
		return "", errors.New("recipient address is required")
	}

	body, err := json.Marshal(brevoRequest{
		Sender:      Address{Email: s.cfg.SenderEmail, Name: s.cfg.SenderName},
		To:          []Address{{Email: msg.To.Email}},
		Subject:     msg.Subject,
		HTMLContent: msg.HTML,
		TextContent: msg.Text,
	})
	if err != nil {
		return "", fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/v3/smtp/email", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("api-key", s.cfg.APIKey)
	req.Header.Set("content-type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var out brevoResponse
	_ = json.Unmarshal(raw, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := out.Message
		if detail == "" {
			detail = strings.TrimSpace(string(raw))
		}
		return "", fmt.Errorf("email API returned HTTP %d: %s", resp.StatusCode, detail)
	}

	s.logger.Debug("Email sent",
		logging.F("to", msg.To.Email),
		logging.F("message_id", out.MessageID))
	return out.MessageID, nil
}

// LogSender logs messages instead of delivering them, for setups without
// an email provider.
type LogSender struct {
	logger logging.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger logging.Logger) *LogSender {
	return &LogSender{logger: logger.With(logging.F("component", "email"))}
}

// Send implements Sender.
func (s *LogSender) Send(ctx context.Context, msg Message) (string, error) {
	s.logger.Info("Email delivery disabled, message not sent",
		logging.F("to", msg.To.Email),
		logging.F("subject", msg.Subject))
	return "", nil
}
