package engine

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/domain"
	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/policy"
	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/repository/postgres"
)

type UndoInput struct {
	Kind        domain.SubjectKind
	OperationID uuid.UUID
	Reason      string
}

type UndoResult struct {
	Event     *domain.Event     `json:"event"`
	Operation *domain.Operation `json:"operation"`
}

// Undo дописывает компенсирующую строку к операции. Повторный вызов добавит еще одну,
// поэтому отмена не идемпотентна.
func (e *Engine) Undo(ctx context.Context, actor domain.Actor, origin domain.Origin, in UndoInput) (res *UndoResult, err error) {
	ctx, end := e.startSpan(ctx, "undo",
		attribute.String("kind", string(in.Kind)),
		attribute.String("operation_id", in.OperationID.String()))
	defer func() { end(err) }()

	if err := policy.Require(e.authz, actor, domain.FeatureUndoOperation, nil); err != nil {
		return nil, err
	}
	if !in.Kind.Valid() {
		return nil, &domain.ValidationError{Key: "kind", Message: "Unknown operation kind."}
	}
	if in.OperationID == uuid.Nil {
		return nil, &domain.ValidationError{Key: "operation_id", Message: "Operation id is required."}
	}

	err = e.db.WithStore(ctx, postgres.ReadCommitted, func(s *postgres.Store) error {
		ev, err := s.Events.Record(ctx, domain.EventInput{
			Type:   domain.EventUndoOperation,
			Origin: origin,
			Metadata: map[string]any{
				"kind":         string(in.Kind),
				"operation_id": in.OperationID.String(),
				"reason":       in.Reason,
			},
		})
		if err != nil {
			return err
		}
		op, err := s.Operations.Undo(ctx, in.Kind, in.OperationID, ev.ID)
		if err != nil {
			return err
		}
		res = &UndoResult{Event: ev, Operation: op}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.metrics.UndoTotal.Inc()
	e.logger.Info("operation reverted",
		zap.String("kind", string(in.Kind)),
		zap.String("operation_id", in.OperationID.String()),
		zap.String("reversal_id", res.Operation.ID.String()))
	return res, nil
}
