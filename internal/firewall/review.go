package firewall

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/domain"
	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/policy"
	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/repository/postgres"
)

const metaRelatedEvent = "related_event_id"

// Review — решение модератора по событию блокировки. unblock возвращает строки в
// прежнее состояние, confirm закрепляет блокировку. Каждое событие ревьюится один раз.
func (g *Guard) Review(ctx context.Context, actor domain.Actor, origin domain.Origin,
	blockEventID uuid.UUID, decision domain.ReviewDecision,
) (*domain.ReviewResult, error) {
	if err := policy.Require(g.authz, actor, domain.FeatureReviewFirewall, nil); err != nil {
		return nil, err
	}
	if !decision.Valid() {
		return nil, &domain.ValidationError{
			Key:     "decision",
			Message: `"decision" must be "unblock" or "confirm".`,
		}
	}

	ctx, span := g.tracer.Start(ctx, "firewall.review")
	defer span.End()

	var (
		res *domain.ReviewResult
		se  SideEffect
	)
	err := g.db.WithStore(ctx, postgres.Serializable, func(s *postgres.Store) error {
		block, err := s.Events.Get(ctx, blockEventID)
		if err != nil {
			return err
		}
		if !block.Type.IsFirewallBlock() {
			return &domain.ValidationError{Key: "event_id", Message: "This event is not a firewall block."}
		}
		var ok bool
		if se, ok = g.registry.SideEffectFor(block.Type); !ok {
			return &domain.ValidationError{Key: "event_id", Message: "No firewall rule handles this event."}
		}

		reviewed, err := s.Events.Count(ctx, domain.EventQuery{
			Metadata: map[string]string{metaRelatedEvent: blockEventID.String()},
		})
		if err != nil {
			return err
		}
		if reviewed > 0 {
			return &domain.ValidationError{
				Key:     "event_id",
				Message: "This firewall event was already reviewed.",
				Action:  "Refresh the review queue.",
			}
		}

		var (
			br      domain.BlockResult
			meta    map[string]any
			evType  domain.EventType
			applyFn = se.Restore
		)
		evType = se.UnblockEventType()
		if decision == domain.ReviewConfirm {
			applyFn = se.Confirm
			evType = se.ConfirmEventType()
		}
		if br, meta, err = applyFn(ctx, s, block); err != nil {
			return err
		}
		meta[metaRelatedEvent] = blockEventID.String()

		ev, err := s.Events.Record(ctx, domain.EventInput{Type: evType, Origin: origin, Metadata: meta})
		if err != nil {
			return err
		}
		br.Event = ev
		res = &domain.ReviewResult{
			BlockEventID: blockEventID,
			Decision:     decision,
			BlockResult:  br,
			ReviewedAt:   ev.CreatedAt,
		}
		return nil
	})
	if err != nil {
		// Два модератора одновременно: второй получает конфликт, а не двойное ревью
		if postgres.IsSerializationFailure(err) {
			return nil, &domain.ConflictError{Op: "review", Attempts: 1, Cause: err}
		}
		return nil, err
	}

	phase := PhaseUnblock
	if decision == domain.ReviewConfirm {
		phase = PhaseConfirm
	}
	// Ревьюер не получает письмо о собственном действии
	g.dispatcher.Dispatch(se.Notifications(&res.BlockResult, phase, actor.ID))

	g.logger.Info("firewall event reviewed",
		zap.String("block_event_id", blockEventID.String()),
		zap.String("decision", string(decision)),
		zap.String("reviewer_id", actor.ID.String()),
		zap.Int("affected", res.Affected()))
	return res, nil
}
