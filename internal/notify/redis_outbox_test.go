package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/infra"
)

func newOutbox(t *testing.T) (*RedisOutbox, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisOutbox(rdb, time.Hour, zaptest.NewLogger(t)), mr
}

func TestRedisOutbox_PushesOncePerEvent(t *testing.T) {
	outbox, mr := newOutbox(t)
	ctx := context.Background()

	n := Notification{
		Kind:        KindUserDisabled,
		EventID:     uuid.New(),
		SubjectID:   uuid.New(),
		RecipientID: uuid.New(),
		Username:    "spam1",
		Email:       "spam1@example.com",
	}

	require.NoError(t, outbox.Notify(ctx, n))
	assert.ErrorIs(t, outbox.Notify(ctx, n), ErrDuplicate)

	items, err := mr.List(infra.RedisKeyNotificationOutbox)
	require.NoError(t, err)
	require.Len(t, items, 1)

	var got Notification
	require.NoError(t, json.Unmarshal([]byte(items[0]), &got))
	assert.Equal(t, n.RecipientID, got.RecipientID)
	assert.Equal(t, KindUserDisabled, got.Kind)
	assert.False(t, got.CreatedAt.IsZero())

	ttl := mr.TTL(infra.NotificationDedupeKey(n.EventID, n.SubjectID, string(n.Kind)))
	assert.Equal(t, time.Hour, ttl)
}

func TestRedisOutbox_OneMessagePerAffectedRow(t *testing.T) {
	outbox, mr := newOutbox(t)
	ctx := context.Background()
	eventID, owner := uuid.New(), uuid.New()

	// Два контента одного владельца в одной блокировке: два письма
	require.NoError(t, outbox.Notify(ctx, Notification{Kind: KindContentQuarantined, EventID: eventID, SubjectID: uuid.New(), RecipientID: owner}))
	require.NoError(t, outbox.Notify(ctx, Notification{Kind: KindContentQuarantined, EventID: eventID, SubjectID: uuid.New(), RecipientID: owner}))

	items, err := mr.List(infra.RedisKeyNotificationOutbox)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}
