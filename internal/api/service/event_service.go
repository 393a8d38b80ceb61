package service

import (
	"context"
	"net"

	"github.com/google/uuid"

	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/domain"
	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/policy"
	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/repository/postgres"
)

// Страница очереди ревью.
const (
	DefaultEventLimit = 100
	MaxEventLimit     = 500
)

// EventService чтение журнала событий для очереди ревью файрвола.
type EventService struct {
	db    *postgres.DB
	authz policy.Authorizer
}

func NewEventService(db *postgres.DB, authz policy.Authorizer) *EventService {
	return &EventService{db: db, authz: authz}
}

// List отдает свежие события первыми, не больше MaxEventLimit за запрос.
func (s *EventService) List(ctx context.Context, actor domain.Actor, q domain.EventQuery) ([]domain.Event, error) {
	if err := policy.Require(s.authz, actor, domain.FeatureReviewFirewall, nil); err != nil {
		return nil, err
	}
	if q.OriginatorIP != "" && net.ParseIP(q.OriginatorIP) == nil {
		return nil, &domain.ValidationError{Key: "ip", Message: `"ip" must be an IPv4 or IPv6 address.`}
	}
	switch {
	case q.Limit <= 0:
		q.Limit = DefaultEventLimit
	case q.Limit > MaxEventLimit:
		q.Limit = MaxEventLimit
	}
	q.NewestFirst = true
	return s.db.Store().Events.List(ctx, q)
}

func (s *EventService) Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Event, error) {
	if err := policy.Require(s.authz, actor, domain.FeatureReviewFirewall, nil); err != nil {
		return nil, err
	}
	return s.db.Store().Events.Get(ctx, id)
}
