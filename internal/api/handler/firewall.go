package handler

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/domain"
)

type EventService interface {
	List(ctx context.Context, actor domain.Actor, q domain.EventQuery) ([]domain.Event, error)
	Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Event, error)
}

type Reviewer interface {
	Review(ctx context.Context, actor domain.Actor, origin domain.Origin, blockEventID uuid.UUID, decision domain.ReviewDecision) (*domain.ReviewResult, error)
}

// FirewallHandler очередь ревью: журнал событий и решение модератора.
type FirewallHandler struct {
	events   EventService
	reviewer Reviewer
	logger   *zap.Logger
}

func NewFirewallHandler(events EventService, reviewer Reviewer, logger *zap.Logger) *FirewallHandler {
	return &FirewallHandler{events: events, reviewer: reviewer, logger: logger.Named("firewall-handler")}
}

// ListEvents GET /v1/events?type=&ip=&window=&limit=
// Свежие события первыми, размер страницы ограничивает сервис.
func (h *FirewallHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := domain.EventQuery{
		Type:         domain.EventType(r.URL.Query().Get("type")),
		OriginatorIP: r.URL.Query().Get("ip"),
	}
	if q.OriginatorIP != "" && net.ParseIP(q.OriginatorIP) == nil {
		writeError(w, r, h.logger, &domain.ValidationError{Key: "ip", Message: `"ip" must be an IPv4 or IPv6 address.`})
		return
	}
	limit, err := intQuery(r, "limit", 0)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	q.Limit = limit
	if raw := r.URL.Query().Get("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			writeError(w, r, h.logger, &domain.ValidationError{Key: "window", Message: `"window" must be a duration like "15m".`})
			return
		}
		q.Window = d
	}

	actor, _ := originFrom(r)
	events, err := h.events.List(r.Context(), actor, q)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if events == nil {
		events = []domain.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// GetEvent GET /v1/events/{id}
func (h *FirewallHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	actor, _ := originFrom(r)
	ev, err := h.events.Get(r.Context(), actor, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

type ReviewRequest struct {
	Decision domain.ReviewDecision `json:"decision"`
}

// Review POST /v1/firewall/{id}/review
func (h *FirewallHandler) Review(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req ReviewRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	actor, origin := originFrom(r)
	res, err := h.reviewer.Review(r.Context(), actor, origin, id, req.Decision)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
