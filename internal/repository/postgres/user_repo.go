package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/domain"
)

type UserRepo struct {
	q Querier
}

func NewUserRepo(q Querier) *UserRepo {
	return &UserRepo{q: q}
}

// splitFeatures разбирает array_to_string(features, ',').
func splitFeatures(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}

func (r *UserRepo) Create(ctx context.Context, in domain.UserInput) (*domain.User, error) {
	query := `
		INSERT INTO users (username, email, features)
		VALUES ($1, $2, $3::text[])
		RETURNING id, created_at`

	u := &domain.User{
		Username: in.Username,
		Email:    in.Email,
		Features: append([]string(nil), domain.DefaultUserFeatures...),
	}
	err := r.q.QueryRowContext(ctx, query, in.Username, in.Email, u.Features).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		return nil, wrap("create user", err)
	}
	return u, nil
}

func (r *UserRepo) Get(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `SELECT id, username, email, array_to_string(features, ','), created_at FROM users WHERE id = $1`

	u := &domain.User{}
	var features string
	err := r.q.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.Username, &u.Email, &features, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.NotFoundError{Resource: "user", ID: id.String()}
		}
		return nil, wrap("get user", err)
	}
	u.Features = splitFeatures(features)
	return u, nil
}

// StripFeatures снимает features со всей пачки пользователей одним UPDATE ... RETURNING.
func (r *UserRepo) StripFeatures(ctx context.Context, ids []uuid.UUID, features []string) ([]domain.AffectedUser, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		WITH targets AS (
			SELECT id, features FROM users WHERE id = ANY($1::uuid[]) FOR UPDATE
		)
		UPDATE users u
		SET features = ARRAY(SELECT f FROM unnest(u.features) AS f WHERE f <> ALL($2::text[])),
			updated_at = now()
		FROM targets t
		WHERE u.id = t.id
		RETURNING u.id, u.username, u.email, array_to_string(t.features, ','), array_to_string(u.features, ',')`

	rows, err := r.q.QueryContext(ctx, query, uuidStrings(ids), features)
	if err != nil {
		return nil, wrap("strip user features", err)
	}
	defer rows.Close()

	var affected []domain.AffectedUser
	for rows.Next() {
		var (
			a          domain.AffectedUser
			prev, curr string
		)
		if err := rows.Scan(&a.ID, &a.Username, &a.Email, &prev, &curr); err != nil {
			return nil, wrap("strip user features", err)
		}
		a.PreviousFeatures = splitFeatures(prev)
		a.Features = splitFeatures(curr)
		affected = append(affected, a)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("strip user features", err)
	}
	return affected, nil
}

// GrantFeatures добавляет features пользователю без дублей.
func (r *UserRepo) GrantFeatures(ctx context.Context, id uuid.UUID, features []string) (*domain.AffectedUser, error) {
	query := `
		WITH target AS (
			SELECT id, features FROM users WHERE id = $1 FOR UPDATE
		)
		UPDATE users u
		SET features = ARRAY(SELECT DISTINCT f FROM unnest(u.features || $2::text[]) AS f ORDER BY f),
			updated_at = now()
		FROM target t
		WHERE u.id = t.id
		RETURNING u.id, u.username, u.email, array_to_string(t.features, ','), array_to_string(u.features, ',')`

	var (
		a          domain.AffectedUser
		prev, curr string
	)
	err := r.q.QueryRowContext(ctx, query, id, features).Scan(&a.ID, &a.Username, &a.Email, &prev, &curr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.NotFoundError{Resource: "user", ID: id.String()}
		}
		return nil, wrap("grant user features", err)
	}
	a.PreviousFeatures = splitFeatures(prev)
	a.Features = splitFeatures(curr)
	return &a, nil
}
