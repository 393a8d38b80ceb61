package engine

import (
	"context"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/domain"
	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/infra"
	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/policy"
	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/repository/postgres"
)

type Config struct {
	Ledger      infra.LedgerConfig
	Sponsorship infra.SponsorshipConfig
}

// Engine транзакционный движок журнала. Каждая бизнес-операция это одна транзакция,
// которая либо целиком фиксируется, либо не оставляет ни одной строки.
type Engine struct {
	db      *postgres.DB
	authz   policy.Authorizer
	cfg     Config
	logger  *zap.Logger
	metrics *infra.Metrics
	tracer  trace.Tracer
	now     func() time.Time
}

func New(db *postgres.DB, authz policy.Authorizer, cfg Config, logger *zap.Logger, metrics *infra.Metrics) *Engine {
	if metrics == nil {
		metrics = infra.NewMetrics(nil)
	}
	if cfg.Ledger.MaxAttempts < 1 {
		cfg.Ledger.MaxAttempts = 1
	}
	return &Engine{
		db:      db,
		authz:   authz,
		cfg:     cfg,
		logger:  logger.Named("ledger"),
		metrics: metrics,
		tracer:  otel.Tracer("github.com/filipedeschamps/tabnews.com.br-sub004/internal/engine"),
		now:     time.Now,
	}
}

// serializable выполняет fn в SERIALIZABLE транзакции. На serialization failure (40001)
// транзакция целиком начинается заново, до MaxAttempts раз с фиксированной паузой.
// Остальные ошибки возвращаются сразу, без повтора.
func (e *Engine) serializable(ctx context.Context, op string, fn func(s *postgres.Store) error) error {
	attempts := 0

	r := retry.New(
		retry.Context(ctx),
		retry.Attempts(uint(e.cfg.Ledger.MaxAttempts)),
		retry.RetryIf(postgres.IsSerializationFailure),
		retry.LastErrorOnly(true),
		retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
			return e.cfg.Ledger.RetryDelay
		}),
	)

	err := r.Do(func() error {
		attempts++
		if attempts > 1 {
			e.metrics.TxRetries.WithLabelValues(op).Inc()
			e.logger.Debug("retrying after serialization failure",
				zap.String("op", op), zap.Int("attempt", attempts))
		}
		return e.db.WithStore(ctx, postgres.Serializable, fn)
	})

	if err != nil && postgres.IsSerializationFailure(err) {
		e.metrics.TxConflicts.WithLabelValues(op).Inc()
		e.logger.Warn("transaction conflict, retries exhausted",
			zap.String("op", op), zap.Int("attempts", attempts), zap.Error(err))
		return &domain.ConflictError{Op: op, Attempts: attempts, Cause: err}
	}
	return err
}

// startSpan открывает спан операции и возвращает функцию, закрывающую его с итогом.
func (e *Engine) startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "ledger."+op, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		e.metrics.LedgerLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// Balance текущий баланс получателя в разделе.
func (e *Engine) Balance(ctx context.Context, kind domain.SubjectKind, recipientID uuid.UUID) (int64, error) {
	return e.db.Store().Operations.CurrentBalance(ctx, kind, recipientID)
}

// ContentTabCoins баланс контента с разбивкой на credit и debit.
func (e *Engine) ContentTabCoins(ctx context.Context, contentID uuid.UUID) (domain.BalanceSplit, error) {
	return e.db.Store().Operations.CreditDebitSplit(ctx, domain.KindContentTabCoin, contentID)
}

// History строки получателя в порядке sequence.
func (e *Engine) History(ctx context.Context, kind domain.SubjectKind, recipientID uuid.UUID, limit int) ([]domain.Operation, error) {
	return e.db.Store().Operations.History(ctx, kind, recipientID, limit)
}
