package infra

import (
	"fmt"

	"github.com/google/uuid"
)

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "tabnews"
)

// Очередь исходящих уведомлений. Ее вычитывает внешний mailer.
const (
	RedisKeyNotificationOutbox = RedisNamespace + ":notifications:outbox"
)

// NotificationDedupeKey ключ SetNX, чтобы одно событие не порождало два письма об одной строке.
func NotificationDedupeKey(eventID, subjectID uuid.UUID, kind string) string {
	return fmt.Sprintf("%s:notifications:dedupe:%s:%s:%s", RedisNamespace, eventID, subjectID, kind)
}

// Глобально выключенные features (SET). Оператор может, например, временно остановить голосование.
const (
	RedisKeyDisabledFeatures = RedisNamespace + ":features:disabled"
)

// Канал, в который ledgerctl публикует изменение списка выключенных features.
const (
	RedisChannelFeaturesChanged = RedisNamespace + ":features:changed"
)
