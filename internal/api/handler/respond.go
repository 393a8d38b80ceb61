package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/domain"
	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/infra/auth"
)

// ErrorBody единый формат ошибки API.
type ErrorBody struct {
	Name       string `json:"name"`
	Message    string `json:"message"`
	Action     string `json:"action"`
	Key        string `json:"key,omitempty"`
	StatusCode int    `json:"status_code"`
	RequestID  string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// writeError переводит доменную ошибку в ответ. Внутренние детали не уходят клиенту.
func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	status := domain.HTTPStatus(err)
	body := ErrorBody{
		Name:       "InternalServerError",
		Message:    "An unexpected error occurred.",
		Action:     "Try again later.",
		StatusCode: status,
		RequestID:  middleware.GetReqID(r.Context()),
	}

	var uf domain.UserFacing
	if errors.As(err, &uf) {
		body.Name = strings.TrimPrefix(fmt.Sprintf("%T", uf), "*domain.")
		body.Message = uf.UserMessage()
		body.Action = uf.UserAction()
	} else if status == http.StatusServiceUnavailable {
		body.Name = "ServiceUnavailableError"
		body.Message = "A required dependency is unavailable."
	}
	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		body.Key = validation.Key
	}
	var limited *domain.RateLimitedError
	if errors.As(err, &limited) {
		w.Header().Set("Retry-After", "60")
	}

	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("request_id", body.RequestID),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	writeJSON(w, status, body)
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &domain.ValidationError{Key: "body", Message: "Invalid request body.", Action: "Send a valid JSON object."}
	}
	return nil
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, &domain.ValidationError{Key: name, Message: fmt.Sprintf("%q must be a UUID.", name)}
	}
	return id, nil
}

func kindParam(r *http.Request) (domain.SubjectKind, error) {
	kind := domain.SubjectKind(chi.URLParam(r, "kind"))
	if !kind.Valid() {
		return "", &domain.ValidationError{Key: "kind", Message: fmt.Sprintf("Unknown ledger %q.", kind)}
	}
	return kind, nil
}

func intQuery(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, &domain.ValidationError{Key: name, Message: fmt.Sprintf("%q must be a positive integer.", name)}
	}
	return n, nil
}

// originFrom кто и откуда. IP уже нормализован middleware.RealIP, порт отбрасывается.
func originFrom(r *http.Request) (domain.Actor, domain.Origin) {
	actor := auth.ActorFrom(r.Context())
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	if net.ParseIP(ip) == nil {
		ip = ""
	}

	origin := domain.Origin{IP: ip}
	if actor.ID != uuid.Nil {
		origin.UserID = uuid.NullUUID{UUID: actor.ID, Valid: true}
	}
	return actor, origin
}
