package domain

import (
	"time"

	"github.com/google/uuid"
)

// SponsoredContent платное продвижение публикации за TabCash.
type SponsoredContent struct {
	ID           uuid.UUID  `json:"id"`
	ContentID    uuid.UUID  `json:"content_id"`
	OwnerID      uuid.UUID  `json:"owner_id"`
	TabCash      int64      `json:"tabcash"`
	DeactivateAt *time.Time `json:"deactivate_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// IsActive активна, пока deactivate_at не наступил (NULL = бессрочно).
func (s *SponsoredContent) IsActive(now time.Time) bool {
	return s.DeactivateAt == nil || s.DeactivateAt.After(now)
}
