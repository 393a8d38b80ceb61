package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/domain"
	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/engine"
)

// Ledger то, что обработчикам нужно от движка.
type Ledger interface {
	Rate(ctx context.Context, actor domain.Actor, origin domain.Origin, in engine.RateInput) (*engine.RateResult, error)
	Sponsor(ctx context.Context, actor domain.Actor, origin domain.Origin, in engine.SponsorInput) (*engine.SponsorResult, error)
	Undo(ctx context.Context, actor domain.Actor, origin domain.Origin, in engine.UndoInput) (*engine.UndoResult, error)
	Balance(ctx context.Context, kind domain.SubjectKind, recipientID uuid.UUID) (int64, error)
	ContentTabCoins(ctx context.Context, contentID uuid.UUID) (domain.BalanceSplit, error)
	History(ctx context.Context, kind domain.SubjectKind, recipientID uuid.UUID, limit int) ([]domain.Operation, error)
}

// ContentLookup владелец контента нужен оценке, клиент его не присылает.
type ContentLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Content, error)
}

type LedgerHandler struct {
	ledger   Ledger
	contents ContentLookup
	logger   *zap.Logger
}

func NewLedgerHandler(l Ledger, contents ContentLookup, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{ledger: l, contents: contents, logger: logger.Named("ledger-handler")}
}

type RateRequest struct {
	TransactionType domain.Direction `json:"transaction_type"`
}

// Rate POST /v1/contents/{id}/tabcoins
func (h *LedgerHandler) Rate(w http.ResponseWriter, r *http.Request) {
	contentID, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req RateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	content, err := h.contents.Get(r.Context(), contentID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if content.Status != domain.ContentPublished {
		writeError(w, r, h.logger, &domain.ValidationError{
			Key:     "content_id",
			Message: "Only published content can be rated.",
		})
		return
	}

	actor, origin := originFrom(r)
	res, err := h.ledger.Rate(r.Context(), actor, origin, engine.RateInput{
		ContentID:      content.ID,
		ContentOwnerID: content.OwnerID,
		Direction:      req.TransactionType,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// ContentTabCoins GET /v1/contents/{id}/tabcoins
func (h *LedgerHandler) ContentTabCoins(w http.ResponseWriter, r *http.Request) {
	contentID, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	split, err := h.ledger.ContentTabCoins(r.Context(), contentID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, split)
}

type BalanceResponse struct {
	Kind        domain.SubjectKind `json:"kind"`
	RecipientID uuid.UUID          `json:"recipient_id"`
	Balance     int64              `json:"balance"`
}

// Balance GET /v1/balances/{kind}/{id}
func (h *LedgerHandler) Balance(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	balance, err := h.ledger.Balance(r.Context(), kind, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{Kind: kind, RecipientID: id, Balance: balance})
}

// History GET /v1/balances/{kind}/{id}/operations?limit=
func (h *LedgerHandler) History(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	limit, err := intQuery(r, "limit", 100)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	ops, err := h.ledger.History(r.Context(), kind, id, limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if ops == nil {
		ops = []domain.Operation{}
	}
	writeJSON(w, http.StatusOK, ops)
}

type UndoRequest struct {
	Reason string `json:"reason"`
}

// Undo POST /v1/operations/{kind}/{id}/undo
func (h *LedgerHandler) Undo(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req UndoRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	actor, origin := originFrom(r)
	res, err := h.ledger.Undo(r.Context(), actor, origin, engine.UndoInput{Kind: kind, OperationID: id, Reason: req.Reason})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

type SponsorRequest struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	Slug      string `json:"slug"`
	SourceURL string `json:"source_url"`
	TabCash   int64  `json:"tabcash"`
	Duration  string `json:"duration"` // "168h"
}

// Sponsor POST /v1/sponsored-contents
func (h *LedgerHandler) Sponsor(w http.ResponseWriter, r *http.Request) {
	var req SponsorRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var duration time.Duration
	if req.Duration != "" {
		d, err := time.ParseDuration(req.Duration)
		if err != nil || d <= 0 {
			writeError(w, r, h.logger, &domain.ValidationError{Key: "duration", Message: `"duration" must be a positive duration like "168h".`})
			return
		}
		duration = d
	}

	actor, origin := originFrom(r)
	res, err := h.ledger.Sponsor(r.Context(), actor, origin, engine.SponsorInput{
		Title:     req.Title,
		Body:      req.Body,
		Slug:      req.Slug,
		SourceURL: req.SourceURL,
		TabCash:   req.TabCash,
		Duration:  duration,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}
