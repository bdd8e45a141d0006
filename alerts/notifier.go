// Package alerts pushes high-severity anomaly findings to operators over
// SMS or webhooks.
package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/serisow/datalens/anomaly"
)

// Notifier delivers one alert message.
type Notifier interface {
	Notify(ctx context.Context, subject, message string) error
}

// TwilioCredentials carries everything the SMS notifier needs.
type TwilioCredentials struct {
	AccountSid string
	AuthToken  string
	FromNumber string
	ToNumber   string
}

func (c TwilioCredentials) validate() error {
	if c.AccountSid == "" {
		return fmt.Errorf("account_sid not configured")
	}
	if c.AuthToken == "" {
		return fmt.Errorf("auth_token not configured")
	}
	if c.FromNumber == "" {
		return fmt.Errorf("from_number not configured")
	}
	if c.ToNumber == "" {
		return fmt.Errorf("to_number not configured")
	}
	return nil
}

// SMSNotifier sends alerts through Twilio.
type SMSNotifier struct {
	logger      *slog.Logger
	credentials TwilioCredentials
}

func NewSMSNotifier(logger *slog.Logger, credentials TwilioCredentials) (*SMSNotifier, error) {
	if err := credentials.validate(); err != nil {
		return nil, fmt.Errorf("error extracting Twilio credentials: %w", err)
	}
	return &SMSNotifier{logger: logger, credentials: credentials}, nil
}

func (s *SMSNotifier) Notify(_ context.Context, subject, message string) error {
	body := subject + "\n" + message

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: s.credentials.AccountSid,
		Password: s.credentials.AuthToken,
	})

	params := &twilioApi.CreateMessageParams{
		To:   &s.credentials.ToNumber,
		From: &s.credentials.FromNumber,
		Body: &body,
	}

	result, err := client.Api.CreateMessage(params)
	if err != nil {
		s.logger.Error("Failed to send SMS",
			slog.String("error", err.Error()),
			slog.String("to", s.credentials.ToNumber))
		return fmt.Errorf("failed to send SMS: %w", err)
	}

	s.logger.Info("Alert SMS sent",
		slog.String("message_sid", deref(result.Sid)),
		slog.String("status", deref(result.Status)))
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// WebhookNotifier POSTs alerts as JSON to a configured URL.
type WebhookNotifier struct {
	logger *slog.Logger
	url    string
	client *http.Client
}

func NewWebhookNotifier(logger *slog.Logger, url string) *WebhookNotifier {
	return &WebhookNotifier{
		logger: logger,
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *WebhookNotifier) Notify(ctx context.Context, subject, message string) error {
	payload, err := json.Marshal(map[string]string{
		"subject": subject,
		"message": message,
	})
	if err != nil {
		return fmt.Errorf("error marshaling alert payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("error creating alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		w.logger.Error("Failed to deliver alert webhook",
			slog.String("error", err.Error()),
			slog.String("url", w.url))
		return fmt.Errorf("failed to deliver alert webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("alert webhook returned status %d", resp.StatusCode)
	}

	w.logger.Info("Alert webhook delivered", slog.String("url", w.url))
	return nil
}

// NotifyFindings formats high-severity findings into one alert and fans it
// out to every notifier. Findings below High are ignored.
func NotifyFindings(ctx context.Context, logger *slog.Logger, notifiers []Notifier, source string, findings []anomaly.Finding) {
	var high []anomaly.Finding
	for _, f := range findings {
		if f.Severity == anomaly.SeverityHigh {
			high = append(high, f)
		}
	}
	if len(high) == 0 || len(notifiers) == 0 {
		return
	}

	subject := fmt.Sprintf("Data alert: %d high-severity findings in %s", len(high), source)
	var lines []string
	for _, f := range high {
		lines = append(lines, fmt.Sprintf("- %s (%s): %s", f.Type, f.Column, f.Message))
	}
	message := strings.Join(lines, "\n")

	for _, n := range notifiers {
		if err := n.Notify(ctx, subject, message); err != nil {
			logger.Error("Alert delivery failed", slog.String("error", err.Error()))
		}
	}
}
