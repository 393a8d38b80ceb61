package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/domain"
)

type SponsoredRepo struct {
	q Querier
}

func NewSponsoredRepo(q Querier) *SponsoredRepo {
	return &SponsoredRepo{q: q}
}

const activeSponsorship = `(deactivate_at IS NULL OR deactivate_at > now())`

// CountActive считает активные спонсорские публикации: глобально или одного владельца.
func (r *SponsoredRepo) CountActive(ctx context.Context, ownerID uuid.NullUUID) (int, error) {
	var (
		n   int
		err error
	)
	if ownerID.Valid {
		err = r.q.QueryRowContext(ctx,
			`SELECT count(*) FROM sponsored_contents WHERE owner_id = $1 AND `+activeSponsorship,
			ownerID.UUID).Scan(&n)
	} else {
		err = r.q.QueryRowContext(ctx,
			`SELECT count(*) FROM sponsored_contents WHERE `+activeSponsorship).Scan(&n)
	}
	if err != nil {
		return 0, wrap("count active sponsorships", err)
	}
	return n, nil
}

func (r *SponsoredRepo) Create(ctx context.Context, contentID, ownerID uuid.UUID, tabcash int64, deactivateAt *time.Time) (*domain.SponsoredContent, error) {
	query := `
		INSERT INTO sponsored_contents (content_id, owner_id, tabcash, deactivate_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	s := &domain.SponsoredContent{
		ContentID:    contentID,
		OwnerID:      ownerID,
		TabCash:      tabcash,
		DeactivateAt: deactivateAt,
	}
	var deactivate sql.NullTime
	if deactivateAt != nil {
		deactivate = sql.NullTime{Time: *deactivateAt, Valid: true}
	}
	if err := r.q.QueryRowContext(ctx, query, contentID, ownerID, tabcash, deactivate).Scan(&s.ID, &s.CreatedAt); err != nil {
		return nil, wrap("create sponsored content", err)
	}
	return s, nil
}
