package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Kind — шаблон письма, который выберет внешний mailer.
type Kind string

const (
	KindContentQuarantined Kind = "firewall:content_quarantined"
	KindUserDisabled       Kind = "firewall:user_disabled"
	KindContentRestored    Kind = "firewall:content_restored"
	KindUserRestored       Kind = "firewall:user_restored"
	KindContentRemoved     Kind = "moderation:content_removed"
	KindUserBlocked        Kind = "moderation:user_blocked"
)

// Notification — одно сообщение одному получателю о затронутой строке.
type Notification struct {
	Kind        Kind           `json:"kind"`
	EventID     uuid.UUID      `json:"event_id"`
	SubjectID   uuid.UUID      `json:"subject_id"` // контент или пользователь, о котором письмо
	RecipientID uuid.UUID      `json:"recipient_id"`
	Username    string         `json:"username"`
	Email       string         `json:"email"`
	Payload     map[string]any `json:"payload,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Notifier — транспорт доставки. Ошибка означает, что это сообщение не доставлено.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// ErrDuplicate — сообщение об этой строке по этому событию уже отправлялось.
var ErrDuplicate = errors.New("notify: duplicate notification")
