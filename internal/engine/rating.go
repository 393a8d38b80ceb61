package engine

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/domain"
	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/policy"
	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/repository/postgres"
)

type RateInput struct {
	ContentID      uuid.UUID
	ContentOwnerID uuid.UUID
	Direction      domain.Direction
}

type RateResult struct {
	Event           *domain.Event       `json:"event"`
	RaterTabCoins   int64               `json:"rater_tabcoins"`
	RaterTabCash    int64               `json:"rater_tabcash"`
	ContentTabCoins domain.BalanceSplit `json:"content_tabcoins"`
}

func (in RateInput) validate() error {
	if in.ContentID == uuid.Nil {
		return &domain.ValidationError{Key: "content_id", Message: "Content id is required."}
	}
	if in.ContentOwnerID == uuid.Nil {
		return &domain.ValidationError{Key: "owner_id", Message: "Content owner is required."}
	}
	if !in.Direction.Valid() {
		return &domain.ValidationError{
			Key:     "transaction_type",
			Message: `"transaction_type" must be "credit" or "debit".`,
			Action:  "Fix the request payload.",
		}
	}
	return nil
}

// Rate оценка контента. Оценивающий платит 2 TabCoins и получает 1 TabCash,
// владелец и контент получают ±1 TabCoin. Все пять записей атомарны.
func (e *Engine) Rate(ctx context.Context, actor domain.Actor, origin domain.Origin, in RateInput) (res *RateResult, err error) {
	ctx, end := e.startSpan(ctx, "rate",
		attribute.String("content_id", in.ContentID.String()),
		attribute.String("direction", string(in.Direction)))
	defer func() {
		e.metrics.RatingsTotal.WithLabelValues(string(in.Direction), outcome(err)).Inc()
		end(err)
	}()

	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := policy.Require(e.authz, actor, domain.FeatureUpdateContentTabCoin, nil); err != nil {
		return nil, err
	}
	if actor.ID == in.ContentOwnerID {
		return nil, &domain.ValidationError{
			Key:     "owner_id",
			Message: "You cannot rate your own content.",
			Action:  "Rate content published by other users.",
		}
	}

	if origin.IP != "" {
		recent, err := e.db.Store().Events.Count(ctx, domain.EventQuery{
			Type:         domain.EventUpdateContentTabCoins,
			OriginatorIP: origin.IP,
			Window:       e.cfg.Ledger.RatingWindow,
			Metadata:     map[string]string{"content_id": in.ContentID.String()},
		})
		if err != nil {
			return nil, err
		}
		if recent > 0 {
			return nil, &domain.ValidationError{
				Key:     "content_id",
				Message: "This content was already rated from your network recently.",
				Action:  "Wait before rating this content again.",
			}
		}
	}

	sign := in.Direction.Sign()

	err = e.serializable(ctx, "rate", func(s *postgres.Store) error {
		// Проверка до записи: при нехватке не пишется ничего.
		available, err := s.Operations.CurrentBalance(ctx, domain.KindUserTabCoin, actor.ID)
		if err != nil {
			return err
		}
		if available < domain.RatingCost {
			return &domain.InsufficientBalanceError{
				Kind:      domain.KindUserTabCoin,
				Required:  domain.RatingCost,
				Available: available,
			}
		}

		ev, err := s.Events.Record(ctx, domain.EventInput{
			Type:   domain.EventUpdateContentTabCoins,
			Origin: origin,
			Metadata: map[string]any{
				"content_id":       in.ContentID.String(),
				"content_owner_id": in.ContentOwnerID.String(),
				"transaction_type": string(in.Direction),
				"amount":           sign * domain.RatingEffect,
			},
		})
		if err != nil {
			return err
		}

		ops := []domain.OperationInput{
			{Kind: domain.KindUserTabCoin, RecipientID: actor.ID, Amount: -domain.RatingCost},
			{Kind: domain.KindUserTabCash, RecipientID: actor.ID, Amount: domain.RatingReward},
			{Kind: domain.KindUserTabCoin, RecipientID: in.ContentOwnerID, Amount: sign * domain.RatingEffect},
			{
				Kind:        domain.KindContentTabCoin,
				RecipientID: in.ContentID,
				Amount:      sign * domain.RatingEffect,
				BalanceType: in.Direction.BalanceType(),
			},
		}
		for _, op := range ops {
			op.OriginatorKind = domain.OriginatorEvent
			op.OriginatorID = ev.ID
			if _, err := s.Operations.Append(ctx, op); err != nil {
				return err
			}
		}

		coins, err := s.Operations.CurrentBalance(ctx, domain.KindUserTabCoin, actor.ID)
		if err != nil {
			return err
		}
		cash, err := s.Operations.CurrentBalance(ctx, domain.KindUserTabCash, actor.ID)
		if err != nil {
			return err
		}
		split, err := s.Operations.CreditDebitSplit(ctx, domain.KindContentTabCoin, in.ContentID)
		if err != nil {
			return err
		}

		res = &RateResult{Event: ev, RaterTabCoins: coins, RaterTabCash: cash, ContentTabCoins: split}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("content rated",
		zap.String("content_id", in.ContentID.String()),
		zap.String("rater_id", actor.ID.String()),
		zap.String("direction", string(in.Direction)),
		zap.String("event_id", res.Event.ID.String()))
	return res, nil
}

// outcome метка результата для метрик.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	switch status := domain.HTTPStatus(err); {
	case status == http.StatusUnprocessableEntity:
		return "rejected"
	case status == http.StatusServiceUnavailable:
		return "conflict"
	case status < http.StatusInternalServerError:
		return "invalid"
	}
	return "error"
}
