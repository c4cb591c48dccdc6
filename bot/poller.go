package bot

import (
	"context"
	"time"

	"github.com/yury-yury/telegram-bot/core/logger"
	"github.com/yury-yury/telegram-bot/telegram"
	"log/slog"
)

const (
	defaultLongPollSeconds = 60
	defaultRetryDelay      = 5 * time.Second
)

// Fetcher retrieves pending updates starting at an offset.
type Fetcher interface {
	GetUpdates(ctx context.Context, offset, timeoutSeconds int) ([]telegram.Update, error)
}

// Handler consumes inbound messages.
type Handler interface {
	HandleMessage(ctx context.Context, msg telegram.Message)
}

// Poller owns the offset cursor and drives fetch -> dispatch in an unbounded
// loop until its context is cancelled.
//
// The cursor lives in memory only. A restart re-fetches from zero and may
// redeliver updates the upstream still retains, so handlers are expected to
// be safe under at-least-once delivery.
type Poller struct {
	tg             Fetcher
	handler        Handler
	timeoutSeconds int
	retryDelay     time.Duration

	offset int
}

// NewPoller constructs a Poller. Non-positive timeout and delay fall back to
// defaults.
func NewPoller(tg Fetcher, handler Handler, timeoutSeconds int, retryDelay time.Duration) *Poller {
	if timeoutSeconds <= 0 {
		timeoutSeconds = defaultLongPollSeconds
	}
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}
	return &Poller{
		tg:             tg,
		handler:        handler,
		timeoutSeconds: timeoutSeconds,
		retryDelay:     retryDelay,
	}
}

// Offset returns the update id the next fetch will start from.
func (p *Poller) Offset() int {
	return p.offset
}

// Run blocks until ctx is done. Fetch failures are retried at the same
// offset after retryDelay; they never terminate the loop.
func (p *Poller) Run(ctx context.Context) error {
	logger.Info(ctx, "bot", "poller.started",
		slog.String("status", "ok"),
		slog.Int("timeout_seconds", p.timeoutSeconds),
	)

	for {
		if err := ctx.Err(); err != nil {
			logger.Info(ctx, "bot", "poller.stopped", slog.String("status", "cancelled"))
			return err
		}

		updates, err := p.tg.GetUpdates(ctx, p.offset, p.timeoutSeconds)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info(ctx, "bot", "poller.stopped", slog.String("status", "cancelled"))
				return ctx.Err()
			}
			logger.Warn(ctx, "bot", "poll.fetch_failed",
				slog.String("status", "retry"),
				slog.Int("offset", p.offset),
				slog.Duration("backoff", p.retryDelay),
				slog.String("err", err.Error()),
			)
			select {
			case <-ctx.Done():
				logger.Info(ctx, "bot", "poller.stopped", slog.String("status", "cancelled"))
				return ctx.Err()
			case <-time.After(p.retryDelay):
			}
			continue
		}

		for _, upd := range updates {
			// Acknowledge before dispatch so a poison update cannot wedge
			// the loop in an infinite redelivery cycle.
			p.offset = upd.ID + 1

			if upd.Message == nil {
				logger.Debug(ctx, "bot", "update.no_message",
					slog.String("status", "skip"),
					slog.Int("update_id", upd.ID),
				)
				continue
			}

			msg := *upd.Message
			p.handler.HandleMessage(p.updateContext(ctx, upd.ID, msg), msg)
		}
	}
}

// updateContext derives a per-update context carrying the correlation id and
// update metadata, and logs a sampled receipt line.
func (p *Poller) updateContext(ctx context.Context, updateID int, msg telegram.Message) context.Context {
	var userID int64
	if msg.From != nil {
		userID = msg.From.ID
	}
	rid := logger.BuildRID(updateID, msg.Chat.ID, userID)
	uctx := logger.WithRID(ctx, rid)
	uctx = logger.WithUpdateMeta(uctx, updateID, userID, msg.Chat.ID)

	if logger.ShouldSampleDebug() {
		attrs := []slog.Attr{
			slog.String("status", "ok"),
			slog.String("chat_type", msg.Chat.Type),
		}
		if msg.Text != "" {
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(msg.Text, 256)))
		}
		if msg.From != nil && msg.From.Username != "" {
			attrs = append(attrs, slog.String("username", logger.SanitizeLimit(msg.From.Username, 64)))
		}
		logger.Debug(uctx, "bot", "update.received", attrs...)
	}
	return uctx
}
