package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/domain"
)

// SQLSTATE коды, на которые реагирует движок.
const (
	codeSerializationFailure = "40001"
	codeForeignKeyViolation  = "23503"
	codeUniqueViolation      = "23505"
	codeUndefinedTable       = "42P01"
	codeUndefinedFunction    = "42883"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsSerializationFailure единственный класс ошибок, который имеет смысл повторять.
func IsSerializationFailure(err error) bool {
	return pgCode(err) == codeSerializationFailure
}

// IsDependencyMissing таблица или функция еще не развернута (миграция не применена).
func IsDependencyMissing(err error) bool {
	switch pgCode(err) {
	case codeUndefinedTable, codeUndefinedFunction:
		return true
	}
	return false
}

// wrap переводит ошибку драйвера в доменную, сохраняя исходную цепочку для errors.As.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	switch pgCode(err) {
	case codeForeignKeyViolation:
		return &domain.NotFoundError{Resource: "recipient"}
	case codeUniqueViolation:
		var pgErr *pgconn.PgError
		errors.As(err, &pgErr)
		return &domain.ValidationError{
			Key:     pgErr.ConstraintName,
			Message: "This value is already in use.",
			Action:  "Choose a different value.",
		}
	case codeUndefinedTable, codeUndefinedFunction:
		return &domain.DependencyUnavailableError{Dependency: op, Cause: err}
	}
	return fmt.Errorf("postgres: %s: %w", op, err)
}
