package domain

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// UserFacing ошибка, которую можно показать пользователю как есть.
type UserFacing interface {
	error
	UserMessage() string
	UserAction() string
}

// ValidationError некорректный ввод, исправляется вызывающим.
type ValidationError struct {
	Key     string
	Message string
	Action  string
}

func (e *ValidationError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("validation: %s: %s", e.Key, e.Message)
	}
	return "validation: " + e.Message
}
func (e *ValidationError) UserMessage() string { return e.Message }
func (e *ValidationError) UserAction() string  { return e.Action }

type ForbiddenError struct {
	Feature string
}

func (e *ForbiddenError) Error() string { return "forbidden: missing feature " + e.Feature }
func (e *ForbiddenError) UserMessage() string {
	return "You are not allowed to perform this action."
}
func (e *ForbiddenError) UserAction() string {
	return fmt.Sprintf("Check that your account has the \"%s\" feature.", e.Feature)
}

type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string       { return fmt.Sprintf("%s %s not found", e.Resource, e.ID) }
func (e *NotFoundError) UserMessage() string { return fmt.Sprintf("The %s was not found.", e.Resource) }
func (e *NotFoundError) UserAction() string  { return "Check the identifier and try again." }

// ConflictError конкурентная модификация, повторы исчерпаны. Временная ошибка.
// Op называет операцию (rate, sponsor, review), от нее зависит текст для пользователя.
type ConflictError struct {
	Op       string
	Attempts int
	Cause    error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: %s gave up after %d attempts: %v", e.Op, e.Attempts, e.Cause)
}
func (e *ConflictError) Unwrap() error { return e.Cause }
func (e *ConflictError) UserMessage() string {
	switch e.Op {
	case "rate":
		return "Too many concurrent votes on this content."
	case "review":
		return "This firewall event is being reviewed by someone else."
	default:
		return "The request conflicted with other changes happening at the same time."
	}
}
func (e *ConflictError) UserAction() string { return "Try again later." }

// InsufficientBalanceError бизнес-отказ, повтор не поможет.
type InsufficientBalanceError struct {
	Kind      SubjectKind
	Required  int64
	Available int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient %s balance: required %d, available %d", e.Kind, e.Required, e.Available)
}
func (e *InsufficientBalanceError) UserMessage() string {
	return fmt.Sprintf("You do not have enough %s to perform this action.", currencyName(e.Kind))
}
func (e *InsufficientBalanceError) UserAction() string {
	return fmt.Sprintf("You need at least %d %s, you have %d.", e.Required, currencyName(e.Kind), e.Available)
}

// CapacityError превышен лимит одновременно активных спонсорских публикаций.
type CapacityError struct {
	Scope string // "global" или "owner"
	Limit int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("sponsorship capacity exceeded (%s limit %d)", e.Scope, e.Limit)
}
func (e *CapacityError) UserMessage() string {
	if e.Scope == "owner" {
		return fmt.Sprintf("You already have %d active sponsored publications.", e.Limit)
	}
	return "All sponsored slots are currently taken."
}
func (e *CapacityError) UserAction() string { return "Wait until an active sponsorship expires." }

// RateLimitedError отказ файрвола. Побочный эффект к моменту возврата уже выполнен.
type RateLimitedError struct {
	Rule         RuleID
	BlockEventID uuid.UUID
	Affected     int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("firewall: rule %s tripped, %d rows affected (event %s)", e.Rule, e.Affected, e.BlockEventID)
}
func (e *RateLimitedError) UserMessage() string {
	return "Too many requests from your network in a short period."
}
func (e *RateLimitedError) UserAction() string {
	return "Recent activity from your network was sent to review. Wait before trying again."
}

// DependencyUnavailableError нет таблицы/функции, от которой зависит файрвол.
type DependencyUnavailableError struct {
	Dependency string
	Cause      error
}

func (e *DependencyUnavailableError) Error() string {
	return fmt.Sprintf("dependency %s unavailable: %v", e.Dependency, e.Cause)
}
func (e *DependencyUnavailableError) Unwrap() error { return e.Cause }

// UnexpectedError все остальное. Транзакция всегда откатывается.
type UnexpectedError struct {
	Op    string
	Cause error
}

func (e *UnexpectedError) Error() string { return fmt.Sprintf("%s: unexpected: %v", e.Op, e.Cause) }
func (e *UnexpectedError) Unwrap() error { return e.Cause }

func currencyName(k SubjectKind) string {
	switch k {
	case KindUserTabCash, KindSponsoredContentTabCash:
		return "TabCash"
	default:
		return "TabCoins"
	}
}

// HTTPStatus маппит таксономию ошибок на коды ответа.
func HTTPStatus(err error) int {
	var (
		validation *ValidationError
		forbidden  *ForbiddenError
		notFound   *NotFoundError
		conflict   *ConflictError
		balance    *InsufficientBalanceError
		capacity   *CapacityError
		limited    *RateLimitedError
		dependency *DependencyUnavailableError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &forbidden):
		return http.StatusForbidden
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &conflict):
		return http.StatusServiceUnavailable
	case errors.As(err, &balance), errors.As(err, &capacity):
		return http.StatusUnprocessableEntity
	case errors.As(err, &limited):
		return http.StatusTooManyRequests
	case errors.As(err, &dependency):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
