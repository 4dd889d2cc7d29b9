package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/JonMunkholm/outreach/internal/logging"
)

var tracer = otel.Tracer("outreach.internal.dispatch")

// DefaultTwilioBaseURL is the production REST endpoint.
const DefaultTwilioBaseURL = "https://api.twilio.com"

// TwilioConfig holds the credentials and tuning for TwilioSender.
type TwilioConfig struct {
	AccountSID  string
	AuthToken   string
	From        string
	BaseURL     string
	MaxAttempts int
	Timeout     time.Duration
}

// TwilioSender posts SMS messages using Twilio's REST API.
type TwilioSender struct {
	cfg        TwilioConfig
	httpClient *http.Client
	logger     *slog.Logger

	// backoff returns the pause before the given retry attempt.
	backoff func(attempt int) time.Duration
}

var _ Sender = (*TwilioSender)(nil)

// NewTwilioSender builds a sender with sane defaults.
func NewTwilioSender(cfg TwilioConfig, logger *slog.Logger) *TwilioSender {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultTwilioBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TwilioSender{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
		backoff:    jitter,
	}
}

func jitter(int) time.Duration {
	return time.Duration(200+rand.Intn(300)) * time.Millisecond
}

func (s *TwilioSender) configured() bool {
	return s.cfg.AccountSID != "" && s.cfg.AuthToken != "" && s.cfg.From != ""
}

// Send dispatches a single SMS, retrying transient failures. It returns the
// provider message SID.
func (s *TwilioSender) Send(ctx context.Context, to, body string) (string, error) {
	if !s.configured() {
		return "", ErrCredentialsMissing
	}
	if to == "" {
		return "", fmt.Errorf("%w: recipient required", ErrInvalidRecipient)
	}
	if strings.TrimSpace(body) == "" {
		return "", fmt.Errorf("%w: body required", ErrInvalidMessage)
	}

	ctx, span := tracer.Start(ctx, "dispatch.twilio.send")
	defer span.End()
	span.SetAttributes(
		attribute.String("outreach.to", logging.MaskPhone(to)),
		attribute.Int("outreach.body_length", len(body)),
	)

	payload := url.Values{}
	payload.Set("To", e164(to))
	payload.Set("From", s.cfg.From)
	payload.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.cfg.BaseURL, s.cfg.AccountSID)

	var lastErr error
attempts:
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		sid, retry, err := s.post(ctx, endpoint, payload)
		if err == nil {
			span.SetAttributes(attribute.String("outreach.message_id", sid))
			s.logger.InfoContext(ctx, "twilio sms sent", "to", to, "sid", sid, "attempt", attempt)
			return sid, nil
		}
		lastErr = err
		if !retry || attempt == s.cfg.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			lastErr = ctx.Err()
			break attempts
		case <-time.After(s.backoff(attempt)):
		}
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, "send failed")
	s.logger.WarnContext(ctx, "twilio sms failed", "to", to, "error", lastErr)
	return "", lastErr
}

// post makes one send attempt. retry reports whether the failure is transient.
func (s *TwilioSender) post(ctx context.Context, endpoint string, payload url.Values) (sid string, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(payload.Encode()))
	if err != nil {
		return "", false, err
	}
	req.SetBasicAuth(s.cfg.AccountSID, s.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", ctx.Err() == nil, fmt.Errorf("twilio send failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var parsed struct {
			SID string `json:"sid"`
		}
		if err := json.Unmarshal(body, &parsed); err != nil || parsed.SID == "" {
			return "", false, fmt.Errorf("twilio send failed: unreadable response")
		}
		return parsed.SID, false, nil
	}

	// Don't retry non-rate-limit 4xx errors.
	retry = resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
	return "", retry, fmt.Errorf("twilio send failed: %s", formatTwilioError(resp.StatusCode, body))
}

// Status fetches the delivery status of a sent message.
func (s *TwilioSender) Status(ctx context.Context, messageID string) (MessageStatus, error) {
	if s.cfg.AccountSID == "" || s.cfg.AuthToken == "" {
		return MessageStatus{}, ErrCredentialsMissing
	}
	if messageID == "" {
		return MessageStatus{}, fmt.Errorf("%w: message id required", ErrInvalidMessage)
	}

	ctx, span := tracer.Start(ctx, "dispatch.twilio.status")
	defer span.End()
	span.SetAttributes(attribute.String("outreach.message_id", messageID))

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages/%s.json",
		s.cfg.BaseURL, s.cfg.AccountSID, url.PathEscape(messageID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return MessageStatus{}, err
	}
	req.SetBasicAuth(s.cfg.AccountSID, s.cfg.AuthToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return MessageStatus{}, fmt.Errorf("twilio status failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("twilio status failed: %s", formatTwilioError(resp.StatusCode, body))
		span.RecordError(err)
		return MessageStatus{}, err
	}

	var parsed struct {
		SID          string  `json:"sid"`
		Status       string  `json:"status"`
		ErrorCode    *int    `json:"error_code"`
		ErrorMessage *string `json:"error_message"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return MessageStatus{}, fmt.Errorf("twilio status failed: decode: %w", err)
	}

	status := MessageStatus{MessageID: parsed.SID, Status: parsed.Status}
	if parsed.ErrorCode != nil {
		status.ErrorCode = *parsed.ErrorCode
	}
	if parsed.ErrorMessage != nil {
		status.ErrorMessage = *parsed.ErrorMessage
	}
	return status, nil
}

type twilioAPIError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

func formatTwilioError(status int, body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return fmt.Sprintf("status %d", status)
	}
	var parsed twilioAPIError
	if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil && parsed.Message != "" {
		if parsed.Code != 0 {
			return fmt.Sprintf("status %d code %d: %s", status, parsed.Code, parsed.Message)
		}
		return fmt.Sprintf("status %d: %s", status, parsed.Message)
	}
	return fmt.Sprintf("status %d: %s", status, trimmed)
}
