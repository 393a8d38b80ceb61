package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/domain"
)

type ContentRepo struct {
	q Querier
}

func NewContentRepo(q Querier) *ContentRepo {
	return &ContentRepo{q: q}
}

func (r *ContentRepo) Create(ctx context.Context, in domain.ContentInput) (*domain.Content, error) {
	if in.Status == "" {
		in.Status = domain.ContentPublished
	}
	if in.Type == "" {
		in.Type = domain.ContentTypeContent
	}

	query := `
		INSERT INTO contents (owner_id, parent_id, slug, title, body, source_url, status, type, published_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, NULLIF($6, ''), $7, $8,
			CASE WHEN $7 = 'published' THEN now() END)
		RETURNING id, created_at, published_at`

	c := &domain.Content{
		OwnerID:   in.OwnerID,
		ParentID:  in.ParentID,
		Slug:      in.Slug,
		Title:     in.Title,
		Body:      in.Body,
		SourceURL: in.SourceURL,
		Status:    in.Status,
		Type:      in.Type,
	}
	var publishedAt sql.NullTime
	err := r.q.QueryRowContext(ctx, query,
		in.OwnerID, in.ParentID, in.Slug, in.Title, in.Body, in.SourceURL, string(in.Status), string(in.Type),
	).Scan(&c.ID, &c.CreatedAt, &publishedAt)
	if err != nil {
		return nil, wrap("create content", err)
	}
	if publishedAt.Valid {
		c.PublishedAt = &publishedAt.Time
	}
	return c, nil
}

func (r *ContentRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Content, error) {
	query := `
		SELECT id, owner_id, parent_id, slug, COALESCE(title, ''), body, COALESCE(source_url, ''),
			status, type, created_at, published_at
		FROM contents WHERE id = $1`

	c := &domain.Content{}
	var (
		status, typ string
		publishedAt sql.NullTime
	)
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.OwnerID, &c.ParentID, &c.Slug, &c.Title, &c.Body, &c.SourceURL,
		&status, &typ, &c.CreatedAt, &publishedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.NotFoundError{Resource: "content", ID: id.String()}
		}
		return nil, wrap("get content", err)
	}
	c.Status = domain.ContentStatus(status)
	c.Type = domain.ContentType(typ)
	if publishedAt.Valid {
		c.PublishedAt = &publishedAt.Time
	}
	return c, nil
}

// Выражения SET для переходов статуса. $3 всегда целевой статус.
const (
	setStatusTarget  = `status = $3`
	setStatusRestore = `status = CASE WHEN c.published_at IS NULL THEN 'draft' ELSE $3::text END`
	setStatusDelete  = `status = $3, deleted_at = now()`
)

// transition переводит пачку контента одним UPDATE ... RETURNING. В выборку попадают только
// строки нужного уровня (root/child) в одном из статусов from. Для каждой строки возвращается
// прежний и новый статус и текущий баланс TabCoins.
func (r *ContentRepo) transition(ctx context.Context, op string, ids []uuid.UUID, root bool,
	from []domain.ContentStatus, to domain.ContentStatus, setExpr string,
) ([]domain.AffectedContent, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := transitionQuery(setExpr)

	rows, err := r.q.QueryContext(ctx, query, uuidStrings(ids), statusStrings(from), string(to), root)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer rows.Close()

	var affected []domain.AffectedContent
	for rows.Next() {
		var (
			a            domain.AffectedContent
			prev, status string
		)
		if err := rows.Scan(&a.ID, &a.OwnerID, &a.OwnerUsername, &a.OwnerEmail, &a.ParentID,
			&a.Title, &a.Slug, &prev, &status, &a.TabCoins); err != nil {
			return nil, wrap(op, err)
		}
		a.PreviousStatus = domain.ContentStatus(prev)
		a.Status = domain.ContentStatus(status)
		affected = append(affected, a)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(op, err)
	}
	return affected, nil
}

// transitionQuery собирает UPDATE для transition. Параметры: $1 ids, $2 статусы from,
// $3 целевой статус, $4 root. setExpr обязан использовать $3.
func transitionQuery(setExpr string) string {
	return fmt.Sprintf(`
		WITH targets AS (
			SELECT id, status FROM contents
			WHERE id = ANY($1::uuid[]) AND status = ANY($2::text[]) AND (parent_id IS NULL) = $4
			FOR UPDATE
		)
		UPDATE contents c
		SET %s, updated_at = now()
		FROM targets t, users u
		WHERE c.id = t.id AND u.id = c.owner_id
		RETURNING c.id, c.owner_id, u.username, u.email, c.parent_id, COALESCE(c.title, ''), c.slug,
			t.status, c.status,
			(SELECT COALESCE(SUM(o.amount), 0) FROM content_tabcoin_operations o WHERE o.recipient_id = c.id)`,
		setExpr)
}

// Quarantine отправляет опубликованный контент и черновики в статус firewall.
func (r *ContentRepo) Quarantine(ctx context.Context, ids []uuid.UUID, root bool) ([]domain.AffectedContent, error) {
	return r.transition(ctx, "quarantine contents", ids, root,
		[]domain.ContentStatus{domain.ContentPublished, domain.ContentDraft},
		domain.ContentFirewall, setStatusTarget)
}

// Restore возвращает контент из карантина: published, если он был опубликован, иначе draft.
func (r *ContentRepo) Restore(ctx context.Context, ids []uuid.UUID, root bool) ([]domain.AffectedContent, error) {
	return r.transition(ctx, "restore contents", ids, root,
		[]domain.ContentStatus{domain.ContentFirewall},
		domain.ContentPublished, setStatusRestore)
}

// Delete подтверждает блокировку: контент из карантина становится deleted.
func (r *ContentRepo) Delete(ctx context.Context, ids []uuid.UUID, root bool) ([]domain.AffectedContent, error) {
	return r.transition(ctx, "delete contents", ids, root,
		[]domain.ContentStatus{domain.ContentFirewall},
		domain.ContentDeleted, setStatusDelete)
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func statusStrings(ss []domain.ContentStatus) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}
