package domain

import (
	"time"

	"github.com/google/uuid"
)

type ContentStatus string

const (
	ContentDraft     ContentStatus = "draft"
	ContentPublished ContentStatus = "published"
	ContentFirewall  ContentStatus = "firewall" // карантин после срабатывания файрвола
	ContentDeleted   ContentStatus = "deleted"
)

type ContentType string

const (
	ContentTypeContent ContentType = "content"
	ContentTypeAd      ContentType = "ad"
)

// Content внешняя сущность. Ядро меняет только status.
type Content struct {
	ID          uuid.UUID     `json:"id"`
	OwnerID     uuid.UUID     `json:"owner_id"`
	ParentID    uuid.NullUUID `json:"parent_id"`
	Slug        string        `json:"slug"`
	Title       string        `json:"title,omitempty"`
	Body        string        `json:"body"`
	SourceURL   string        `json:"source_url,omitempty"`
	Status      ContentStatus `json:"status"`
	Type        ContentType   `json:"type"`
	CreatedAt   time.Time     `json:"created_at"`
	PublishedAt *time.Time    `json:"published_at,omitempty"`
}

func (c *Content) IsRoot() bool { return !c.ParentID.Valid }

type ContentInput struct {
	OwnerID   uuid.UUID
	ParentID  uuid.NullUUID
	Slug      string
	Title     string
	Body      string
	SourceURL string
	Status    ContentStatus
	Type      ContentType
}

// AffectedContent строка, переведенная файрволом или модерацией в новый статус.
type AffectedContent struct {
	ID             uuid.UUID     `json:"id"`
	OwnerID        uuid.UUID     `json:"owner_id"`
	OwnerUsername  string        `json:"owner_username"`
	OwnerEmail     string        `json:"-"`
	ParentID       uuid.NullUUID `json:"parent_id"`
	Title          string        `json:"title,omitempty"`
	Slug           string        `json:"slug"`
	PreviousStatus ContentStatus `json:"previous_status"`
	Status         ContentStatus `json:"status"`
	TabCoins       int64         `json:"tabcoins"`
}
