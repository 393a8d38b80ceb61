package domain

import (
	"time"

	"github.com/google/uuid"
)

// RuleID имя правила файрвола, совпадает с типом отслеживаемого события.
type RuleID string

const (
	RuleCreateUser             RuleID = "create:user"
	RuleCreateContentTextRoot  RuleID = "create:content:text_root"
	RuleCreateContentTextChild RuleID = "create:content:text_child"
)

// BlockResult итог побочного эффекта (блокировки или ревью).
type BlockResult struct {
	Event    *Event            `json:"event"`
	Contents []AffectedContent `json:"contents,omitempty"`
	Users    []AffectedUser    `json:"users,omitempty"`
}

func (r *BlockResult) Affected() int {
	if r == nil {
		return 0
	}
	return len(r.Contents) + len(r.Users)
}

// ReviewDecision решение модератора по событию блокировки.
type ReviewDecision string

const (
	ReviewUnblock ReviewDecision = "unblock" // ложное срабатывание, вернуть как было
	ReviewConfirm ReviewDecision = "confirm" // подтвердить блокировку
)

func (d ReviewDecision) Valid() bool {
	return d == ReviewUnblock || d == ReviewConfirm
}

// ReviewResult итог ревью блокировки.
type ReviewResult struct {
	BlockEventID uuid.UUID      `json:"block_event_id"`
	Decision     ReviewDecision `json:"decision"`
	BlockResult
	ReviewedAt time.Time `json:"reviewed_at"`
}
