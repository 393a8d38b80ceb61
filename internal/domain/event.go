package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventCreateUser             EventType = "create:user"
	EventCreateContentTextRoot  EventType = "create:content:text_root"
	EventCreateContentTextChild EventType = "create:content:text_child"
	EventUpdateContentTabCoins  EventType = "update:content:tabcoins"
	EventCreateSponsoredContent EventType = "create:sponsored_content"
	EventUndoOperation          EventType = "undo:operation"

	EventFirewallBlockUsers             EventType = "firewall:block_users"
	EventFirewallBlockContentsTextRoot  EventType = "firewall:block_contents:text_root"
	EventFirewallBlockContentsTextChild EventType = "firewall:block_contents:text_child"

	EventFirewallUnblockUsers             EventType = "firewall:unblock_users"
	EventFirewallUnblockContentsTextRoot  EventType = "firewall:unblock_contents:text_root"
	EventFirewallUnblockContentsTextChild EventType = "firewall:unblock_contents:text_child"

	EventModerationBlockUsers             EventType = "moderation:block_users"
	EventModerationBlockContentsTextRoot  EventType = "moderation:block_contents:text_root"
	EventModerationBlockContentsTextChild EventType = "moderation:block_contents:text_child"
)

// IsFirewallBlock событие, записанное побочным эффектом файрвола.
func (t EventType) IsFirewallBlock() bool {
	return strings.HasPrefix(string(t), "firewall:block_")
}

// Event неизменяемая запись аудита. Единственный источник данных для файрвола.
type Event struct {
	ID               uuid.UUID      `json:"id"`
	Type             EventType      `json:"type"`
	OriginatorUserID uuid.NullUUID  `json:"originator_user_id"`
	OriginatorIP     string         `json:"originator_ip"`
	Metadata         map[string]any `json:"metadata"`
	CreatedAt        time.Time      `json:"created_at"`
}

// MetadataString достает строковое поле метаданных.
func (e *Event) MetadataString(key string) string {
	if e == nil || e.Metadata == nil {
		return ""
	}
	s, _ := e.Metadata[key].(string)
	return s
}

// MetadataIDs разбирает список идентификаторов из метаданных. После чтения из базы
// это []any, в только что записанном событии []string.
func (e *Event) MetadataIDs(key string) []uuid.UUID {
	if e == nil || e.Metadata == nil {
		return nil
	}
	var raw []string
	switch v := e.Metadata[key].(type) {
	case []string:
		raw = v
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	default:
		return nil
	}
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		if id, err := uuid.Parse(s); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

type EventInput struct {
	Type     EventType
	Origin   Origin
	Metadata map[string]any
}

// EventQuery фильтр скользящего окна по журналу событий.
type EventQuery struct {
	Type         EventType
	OriginatorIP string
	Window       time.Duration     // created_at > now() - Window; 0 = без ограничения
	Metadata     map[string]string // metadata->>key = value

	// Только для List: 0 = все строки окна.
	Limit       int
	NewestFirst bool
}

// Origin кто и откуда выполняет действие. Ядро доверяет этим данным как есть.
type Origin struct {
	UserID uuid.NullUUID
	IP     string
}

func UserOrigin(userID uuid.UUID, ip string) Origin {
	return Origin{UserID: uuid.NullUUID{UUID: userID, Valid: true}, IP: ip}
}
