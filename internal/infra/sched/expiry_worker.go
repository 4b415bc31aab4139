package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"ai-chat-subscription/internal/domain/ports/repository"
	"ai-chat-subscription/internal/infra/metrics"
)

// ExpiryWorker periodically flips lapsed time-boxed subscriptions to expired.
// The entitlement resolver already observes lapses lazily on each chat turn;
// the sweep keeps admin stats honest for users who stopped chatting.
type ExpiryWorker struct {
	interval time.Duration
	subs     repository.SubscriptionRepository
	log      *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, subs repository.SubscriptionRepository, logger *zerolog.Logger) *ExpiryWorker {
	l := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{interval: interval, subs: subs, log: &l}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("starting expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.subs.ExpireLapsed(ctx, repository.NoTX, time.Now())
			if err != nil {
				w.log.Error().Err(err).Msg("expiry sweep failed")
				continue
			}
			if n > 0 {
				metrics.AddSubscriptionsExpired(n)
				w.log.Info().Int64("count", n).Msg("lapsed subscriptions expired")
			}
		}
	}
}
