// Package dispatch orchestrates the per-event reply pipeline: eligibility,
// question extraction, answer generation, and reply delivery.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/answerline/answerline/internal/bot"
	"github.com/answerline/answerline/internal/config"
	"github.com/answerline/answerline/internal/log"
	"github.com/answerline/answerline/internal/webhook"
)

// AnswerService produces one free-text answer for a question.
type AnswerService interface {
	Answer(ctx context.Context, question string) (string, error)
}

// ReplyDispatcher delivers a reply authorized by a reply token.
type ReplyDispatcher interface {
	Reply(ctx context.Context, replyToken, text string) error
}

// EventStore tracks processed event ids for redelivery dedup. May be nil,
// in which case redelivered events are processed again.
type EventStore interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

// eventTimeout bounds one event's pipeline including both outbound calls.
// Nothing upstream imposes a limit, so we do.
const eventTimeout = 60 * time.Second

// Dispatcher fans a webhook batch out into independent per-event pipelines.
type Dispatcher struct {
	policy      bot.Policy
	answer      AnswerService
	replier     ReplyDispatcher
	store       EventStore
	maxReplyLen int
	logger      *slog.Logger
}

// New creates a new Dispatcher.
func New(cfg *config.Config, answer AnswerService, replier ReplyDispatcher, store EventStore) *Dispatcher {
	return &Dispatcher{
		policy: bot.Policy{
			BotUserID:         cfg.Line.BotUserID,
			DirectChatAllowed: cfg.Line.DirectChatAllowed(),
		},
		answer:      answer,
		replier:     replier,
		store:       store,
		maxReplyLen: cfg.Line.MaxReplyLength,
		logger:      log.WithComponent("dispatch"),
	}
}

// HandleBatch processes every event of one delivery concurrently and
// returns once all of them have settled. A failing event is logged and
// never aborts its siblings; the batch as a whole always "succeeds" so
// the platform has no reason to redeliver it.
func (d *Dispatcher) HandleBatch(ctx context.Context, cb *webhook.Callback) {
	if len(cb.Events) == 0 {
		return
	}

	batchID := uuid.NewString()
	logger := d.logger.With("batch_id", batchID)
	logger.Info("processing batch", "events", len(cb.Events))

	start := time.Now()
	var wg sync.WaitGroup
	for i := range cb.Events {
		ev := &cb.Events[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := d.handleEvent(ctx, logger, ev); err != nil {
				logger.Error("event failed",
					"event_id", ev.WebhookEventID,
					"error", err,
				)
			}
		}()
	}
	wg.Wait()

	logger.Info("batch processed", "duration_ms", time.Since(start).Milliseconds())
}

// handleEvent runs one event through the reply pipeline. A nil return
// covers both a delivered reply and a deliberate skip; errors are
// contained by the caller.
func (d *Dispatcher) handleEvent(ctx context.Context, logger *slog.Logger, ev *webhook.Event) error {
	ctx, cancel := context.WithTimeout(ctx, eventTimeout)
	defer cancel()

	logger = logger.With("event_id", ev.WebhookEventID)

	if ev.IsRedelivery() && d.store != nil && ev.WebhookEventID != "" {
		seen, err := d.store.Seen(ctx, ev.WebhookEventID)
		if err != nil {
			// Dedup is best-effort; fall through and process.
			logger.Warn("dedup lookup failed", "error", err)
		} else if seen {
			logger.Info("skipping redelivered event")
			return nil
		}
	}

	if !d.policy.ShouldRespond(ev) {
		logger.Debug("event not eligible for reply")
		return nil
	}

	question, err := bot.ExtractQuestion(ev.Message)
	if err != nil {
		return err
	}
	if question == "" {
		logger.Debug("no question after mention removal")
		return nil
	}

	answerText, err := d.answer.Answer(ctx, question)
	if err != nil {
		return err
	}

	if ev.ReplyToken == "" {
		// Cannot be fulfilled; not an error.
		logger.Warn("empty reply token, skipping reply")
		return nil
	}

	if err := d.replier.Reply(ctx, ev.ReplyToken, truncate(answerText, d.maxReplyLen)); err != nil {
		return err
	}

	if d.store != nil && ev.WebhookEventID != "" {
		if err := d.store.Mark(ctx, ev.WebhookEventID); err != nil {
			logger.Warn("failed to record processed event", "error", err)
		}
	}

	logger.Info("reply delivered")
	return nil
}

// truncate caps s at max characters, counted in runes so a multibyte
// character is never split.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
