package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/api/service"
	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/domain"
)

type ContentService interface {
	Create(ctx context.Context, actor domain.Actor, origin domain.Origin, in service.CreateContentInput) (*domain.Content, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Content, error)
}

type ContentHandler struct {
	service ContentService
	logger  *zap.Logger
}

func NewContentHandler(s ContentService, logger *zap.Logger) *ContentHandler {
	return &ContentHandler{service: s, logger: logger.Named("content-handler")}
}

type CreateContentRequest struct {
	ParentID  *uuid.UUID           `json:"parent_id"`
	Title     string               `json:"title"`
	Body      string               `json:"body"`
	Slug      string               `json:"slug"`
	SourceURL string               `json:"source_url"`
	Status    domain.ContentStatus `json:"status"`
}

// Create POST /v1/contents. Комментарий, если передан parent_id.
func (h *ContentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateContentRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	in := service.CreateContentInput{
		Title:     req.Title,
		Body:      req.Body,
		Slug:      req.Slug,
		SourceURL: req.SourceURL,
		Status:    req.Status,
	}
	if req.ParentID != nil {
		in.ParentID = uuid.NullUUID{UUID: *req.ParentID, Valid: true}
	}

	actor, origin := originFrom(r)
	content, err := h.service.Create(r.Context(), actor, origin, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, content)
}

// Get GET /v1/contents/{id}
func (h *ContentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	content, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, content)
}
