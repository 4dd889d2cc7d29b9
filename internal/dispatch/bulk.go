package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/JonMunkholm/outreach/internal/core"
)

// Observer receives one call per attempted recipient.
type Observer interface {
	ObserveDispatch(success bool)
}

// BulkConfig tunes Bulk.
type BulkConfig struct {
	RatePerSecond int
	MaxLength     int
	BatchSize     int
}

// Bulk sends many messages through a Sender at a fixed rate.
type Bulk struct {
	sender   Sender
	cfg      BulkConfig
	limiter  *rate.Limiter
	logger   *slog.Logger
	observer Observer
}

// NewBulk wraps sender. observer may be nil.
func NewBulk(sender Sender, cfg BulkConfig, logger *slog.Logger, observer Observer) *Bulk {
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 1
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = 1600
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bulk{
		sender:   sender,
		cfg:      cfg,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RatePerSecond),
		logger:   logger,
		observer: observer,
	}
}

// Send delivers msgs in order and returns one Result per message.
// Invalid recipients and bodies fail locally without calling the provider.
// When ctx ends the remaining messages are reported as failed.
func (b *Bulk) Send(ctx context.Context, msgs []Message) []Result {
	results := make([]Result, 0, len(msgs))

	for i, msg := range msgs {
		result := Result{ContactRef: msg.ContactRef, To: core.MaskPhone(msg.To)}

		switch {
		case ctx.Err() != nil:
			result.Error = ctx.Err().Error()
		case !core.IsCanonicalPhone(msg.To):
			result.Error = ErrInvalidRecipient.Error()
		default:
			if err := ValidateBody(msg.Body, b.cfg.MaxLength); err != nil {
				result.Error = err.Error()
				break
			}
			if err := b.limiter.Wait(ctx); err != nil {
				result.Error = err.Error()
				break
			}
			sid, err := b.sender.Send(ctx, msg.To, msg.Body)
			if err != nil {
				result.Error = err.Error()
				break
			}
			result.Success = true
			result.MessageID = sid
		}

		if b.observer != nil {
			b.observer.ObserveDispatch(result.Success)
		}
		results = append(results, result)

		if (i+1)%b.cfg.BatchSize == 0 {
			b.logger.InfoContext(ctx, "dispatch progress", "processed", i+1, "total", len(msgs))
		}
	}

	summary := Summarize(results)
	b.logger.InfoContext(ctx, "dispatch finished", "sent", summary.Sent, "failed", summary.Failed)
	return results
}

// Pacing returns the minimum time Send needs for n messages at the configured
// rate. The first second's worth of messages goes out without waiting.
func (b *Bulk) Pacing(n int) time.Duration {
	waiting := n - b.limiter.Burst()
	if waiting <= 0 {
		return 0
	}
	return time.Duration(waiting) * time.Second / time.Duration(b.cfg.RatePerSecond)
}

// CheckBudget fails with ErrBatchTooLarge when pacing n messages alone would
// take longer than budget. A non-positive budget allows any size.
func (b *Bulk) CheckBudget(n int, budget time.Duration) error {
	if budget <= 0 {
		return nil
	}
	if need := b.Pacing(n); need > budget {
		return fmt.Errorf("%w: %d messages need %s, limit %s", ErrBatchTooLarge, n, need, budget)
	}
	return nil
}

// Status proxies to the underlying Sender.
func (b *Bulk) Status(ctx context.Context, messageID string) (MessageStatus, error) {
	return b.sender.Status(ctx, messageID)
}
