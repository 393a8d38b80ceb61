package firewall

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/domain"
	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/infra"
	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/notify"
	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/policy"
	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/repository/postgres"
)

// Dispatcher — best-effort доставка пачки уведомлений, не блокирует вызывающего.
type Dispatcher interface {
	Dispatch(batch []notify.Notification) bool
}

// Guard проверяет правила перед защищаемым действием и выполняет блокировки.
// Источник данных для обнаружения только журнал событий.
type Guard struct {
	db         *postgres.DB
	registry   *Registry
	authz      policy.Authorizer
	dispatcher Dispatcher
	timeout    time.Duration
	logger     *zap.Logger
	metrics    *infra.Metrics
	tracer     trace.Tracer
}

func NewGuard(db *postgres.DB, registry *Registry, authz policy.Authorizer, dispatcher Dispatcher,
	sideEffectTimeout time.Duration, logger *zap.Logger, metrics *infra.Metrics,
) *Guard {
	if metrics == nil {
		metrics = infra.NewMetrics(nil)
	}
	if sideEffectTimeout <= 0 {
		sideEffectTimeout = 10 * time.Second
	}
	return &Guard{
		db:         db,
		registry:   registry,
		authz:      authz,
		dispatcher: dispatcher,
		timeout:    sideEffectTimeout,
		logger:     logger.Named("firewall"),
		metrics:    metrics,
		tracer:     otel.Tracer("github.com/filipedeschamps/tabnews.com.br-sub004/internal/firewall"),
	}
}

// Check пропускает действие или, если порог превышен, выполняет побочный эффект и
// возвращает RateLimitedError. Отсутствующая в базе зависимость не блокирует действие.
func (g *Guard) Check(ctx context.Context, ruleID domain.RuleID, origin domain.Origin) (err error) {
	rule, ok := g.registry.Rule(ruleID)
	if !ok {
		return &domain.UnexpectedError{Op: "firewall", Cause: fmt.Errorf("unknown rule %q", ruleID)}
	}
	// Без IP нечего считать
	if origin.IP == "" {
		return nil
	}

	ctx, span := g.tracer.Start(ctx, "firewall.check", trace.WithAttributes(
		attribute.String("rule", string(rule.ID)),
		attribute.String("ip", origin.IP)))
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	recorded, err := g.db.Store().Events.Count(ctx, domain.EventQuery{
		Type:         rule.EventType,
		OriginatorIP: origin.IP,
		Window:       rule.Window,
	})
	if err != nil {
		return g.failOpen(rule, err)
	}
	if !rule.Exceeded(recorded) {
		g.metrics.FirewallDecisions.WithLabelValues(string(rule.ID), "allow").Inc()
		return nil
	}

	res, err := g.block(ctx, rule, origin)
	if err != nil {
		return g.failOpen(rule, err)
	}

	g.metrics.FirewallDecisions.WithLabelValues(string(rule.ID), "deny").Inc()
	g.metrics.SideEffectRows.WithLabelValues(string(res.Event.Type)).Observe(float64(res.Affected()))
	g.logger.Warn("firewall rule tripped",
		zap.String("rule", string(rule.ID)),
		zap.String("ip", origin.IP),
		zap.Int("recorded", recorded),
		zap.Int("threshold", rule.Threshold),
		zap.Int("affected", res.Affected()),
		zap.String("block_event_id", res.Event.ID.String()))

	// Только после commit. Автоматическая блокировка никого не пропускает.
	g.dispatcher.Dispatch(rule.SideEffect.Notifications(res, PhaseBlock, uuid.Nil))

	return &domain.RateLimitedError{Rule: rule.ID, BlockEventID: res.Event.ID, Affected: res.Affected()}
}

// block выполняет побочный эффект в одной транзакции: выборка событий окна, один
// массовый UPDATE, одно событие блокировки.
func (g *Guard) block(ctx context.Context, rule Rule, origin domain.Origin) (*domain.BlockResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var res *domain.BlockResult
	err := g.db.WithStore(ctx, postgres.ReadCommitted, func(s *postgres.Store) error {
		triggers, err := s.Events.List(ctx, domain.EventQuery{
			Type:         rule.EventType,
			OriginatorIP: origin.IP,
			Window:       rule.Window,
		})
		if err != nil {
			return err
		}

		br, meta, err := rule.SideEffect.Apply(ctx, s, subjectIDs(triggers))
		if err != nil {
			return err
		}
		meta["rule"] = string(rule.ID)
		meta["trigger_events"] = len(triggers)

		ev, err := s.Events.Record(ctx, domain.EventInput{
			Type:     rule.SideEffect.BlockEventType(),
			Origin:   origin,
			Metadata: meta,
		})
		if err != nil {
			return err
		}
		br.Event = ev
		res = &br
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (g *Guard) failOpen(rule Rule, err error) error {
	var dep *domain.DependencyUnavailableError
	if errors.As(err, &dep) {
		g.metrics.FirewallDecisions.WithLabelValues(string(rule.ID), "fail_open").Inc()
		g.logger.Warn("firewall dependency unavailable, allowing action",
			zap.String("rule", string(rule.ID)), zap.Error(err))
		return nil
	}
	g.metrics.FirewallDecisions.WithLabelValues(string(rule.ID), "error").Inc()
	return err
}

// subjectIDs собирает metadata.id из событий окна, без повторов.
func subjectIDs(events []domain.Event) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(events))
	ids := make([]uuid.UUID, 0, len(events))
	for i := range events {
		id, err := uuid.Parse(events[i].MetadataString("id"))
		if err != nil || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}
