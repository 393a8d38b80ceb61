package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/infra"
)

// RedisOutbox передает уведомления внешнему mailer через список в Redis.
// SetNX по (событие, строка, вид) не дает отправить одно письмо дважды.
type RedisOutbox struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

func NewRedisOutbox(rdb *redis.Client, dedupeTTL time.Duration, logger *zap.Logger) *RedisOutbox {
	if dedupeTTL <= 0 {
		dedupeTTL = 24 * time.Hour
	}
	return &RedisOutbox{rdb: rdb, ttl: dedupeTTL, logger: logger.Named("outbox"), now: time.Now}
}

func (o *RedisOutbox) Notify(ctx context.Context, n Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = o.now()
	}

	key := infra.NotificationDedupeKey(n.EventID, n.SubjectID, string(n.Kind))
	ok, err := o.rdb.SetNX(ctx, key, "1", o.ttl).Result()
	if err != nil {
		return fmt.Errorf("outbox: dedupe: %w", err)
	}
	if !ok {
		return ErrDuplicate
	}

	payload, err := json.Marshal(n)
	if err != nil {
		o.rdb.Del(ctx, key)
		return fmt.Errorf("outbox: marshal: %w", err)
	}
	if err := o.rdb.RPush(ctx, infra.RedisKeyNotificationOutbox, payload).Err(); err != nil {
		// Снимаем метку, чтобы повтор мог отправить сообщение
		if delErr := o.rdb.Del(ctx, key).Err(); delErr != nil {
			o.logger.Warn("could not release dedupe key", zap.String("key", key), zap.Error(delErr))
		}
		return fmt.Errorf("outbox: push: %w", err)
	}
	return nil
}
