package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/infra"
)

// ReliableNotifier оборачивает транспорт: лимит скорости, предохранитель и повторы.
type ReliableNotifier struct {
	next       Notifier
	cb         *gobreaker.CircuitBreaker
	limiter    *rate.Limiter
	attempts   uint
	retryDelay time.Duration
}

func NewReliableNotifier(next Notifier, cfg infra.NotifierConfig, metrics *infra.Metrics) *ReliableNotifier {
	if metrics == nil {
		metrics = infra.NewMetrics(nil)
	}
	const name = "notifier"

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(cfg.CBMaxRequests),
		Interval:    cfg.CBInterval,
		Timeout:     cfg.CBTimeout, // через сколько CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		// Дубликат не поломка транспорта
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrDuplicate)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.BreakerState.WithLabelValues(name).Set(float64(to))
		},
	})

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	return &ReliableNotifier{
		next:       next,
		cb:         cb,
		limiter:    rate.NewLimiter(limit, burst),
		attempts:   uint(attempts),
		retryDelay: 100 * time.Millisecond,
	}
}

func (w *ReliableNotifier) Notify(ctx context.Context, n Notification) error {
	// 1. Rate Limiter
	if err := w.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("notify: rate limit: %w", err)
	}

	// 2. Circuit Breaker
	_, err := w.cb.Execute(func() (interface{}, error) {
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(w.attempts),
			retry.Delay(w.retryDelay),
			retry.DelayType(retry.BackOffDelay),
			retry.LastErrorOnly(true),
			retry.RetryIf(func(err error) bool {
				return !errors.Is(err, ErrDuplicate)
			}),
		)
		return nil, r.Do(func() error {
			return w.next.Notify(ctx, n)
		})
	})
	return err
}
