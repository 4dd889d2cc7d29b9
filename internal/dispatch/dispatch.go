// Package dispatch sends composed outreach messages over SMS.
//
// A Sender delivers one message to one canonical phone. Bulk wraps a Sender
// with body validation, a per-second rate limit and per-recipient results so
// a failed recipient never stops the rest of the batch.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/outreach/internal/core"
)

var (
	ErrCredentialsMissing = errors.New("dispatch: twilio credentials missing")
	ErrInvalidMessage     = errors.New("dispatch: invalid message")
	ErrInvalidRecipient   = errors.New("dispatch: invalid recipient")
	ErrBatchTooLarge      = errors.New("dispatch: batch exceeds send time limit")
)

// Sender delivers single messages and reports their provider status.
type Sender interface {
	Send(ctx context.Context, to, body string) (string, error)
	Status(ctx context.Context, messageID string) (MessageStatus, error)
}

// Message is one outbound SMS.
type Message struct {
	ContactRef int    `json:"contact_ref"`
	To         string `json:"to"`
	Body       string `json:"body"`
}

// Result is the outcome for one Message. To is always masked.
type Result struct {
	ContactRef int    `json:"contact_ref"`
	To         string `json:"to"`
	Success    bool   `json:"success"`
	MessageID  string `json:"message_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

// MessageStatus is the provider's view of a sent message.
type MessageStatus struct {
	MessageID    string `json:"message_id"`
	Status       string `json:"status"`
	ErrorCode    int    `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Summary counts the results of a bulk send.
type Summary struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// Summarize counts successes and failures in results.
func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		if r.Success {
			s.Sent++
		} else {
			s.Failed++
		}
	}
	return s
}

// ValidateBody rejects empty bodies and bodies longer than maxLength characters.
func ValidateBody(body string, maxLength int) error {
	if strings.TrimSpace(body) == "" {
		return fmt.Errorf("%w: body is empty", ErrInvalidMessage)
	}
	if maxLength > 0 && utf8.RuneCountInString(body) > maxLength {
		return fmt.Errorf("%w: body exceeds %d characters", ErrInvalidMessage, maxLength)
	}
	return nil
}

// MessagesFor pairs composed messages with their contacts' phones.
// Composed entries whose ContactRef matches no contact are dropped.
func MessagesFor(contacts []core.ExtractedContact, composed []core.ComposedMessage) []Message {
	phones := make(map[int]string, len(contacts))
	for _, c := range contacts {
		phones[c.RowIndex] = c.CanonicalPhone
	}
	out := make([]Message, 0, len(composed))
	for _, m := range composed {
		phone, ok := phones[m.ContactRef]
		if !ok {
			continue
		}
		out = append(out, Message{ContactRef: m.ContactRef, To: phone, Body: m.RenderedText})
	}
	return out
}

// e164 formats a canonical phone for the provider.
func e164(canonical string) string {
	return "+" + strings.TrimPrefix(canonical, "+")
}
