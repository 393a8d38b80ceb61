package policy

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/domain"
	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/infra"
)

func rater() domain.Actor {
	return domain.Actor{
		ID:       uuid.New(),
		Features: map[string]bool{domain.FeatureUpdateContentTabCoin: true},
	}
}

func TestFeatureAuthorizer_Can(t *testing.T) {
	a := NewFeatureAuthorizer(nil, zaptest.NewLogger(t))

	assert.True(t, a.Can(rater(), domain.FeatureUpdateContentTabCoin, nil))
	assert.False(t, a.Can(rater(), domain.FeatureCreateSponsored, nil))
	assert.False(t, a.Can(domain.Actor{}, domain.FeatureUpdateContentTabCoin, nil))

	a.Disable(domain.FeatureUpdateContentTabCoin)
	assert.False(t, a.Can(rater(), domain.FeatureUpdateContentTabCoin, nil))

	a.Enable(domain.FeatureUpdateContentTabCoin)
	assert.True(t, a.Can(rater(), domain.FeatureUpdateContentTabCoin, nil))
}

func TestFeatureAuthorizer_RefreshFromRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	_, err := mr.SAdd(infra.RedisKeyDisabledFeatures, domain.FeatureUpdateContentTabCoin)
	require.NoError(t, err)

	a := NewFeatureAuthorizer(rdb, zaptest.NewLogger(t))
	require.NoError(t, a.Refresh(context.Background()))
	assert.False(t, a.Can(rater(), domain.FeatureUpdateContentTabCoin, nil))

	mr.Del(infra.RedisKeyDisabledFeatures)
	require.NoError(t, a.Refresh(context.Background()))
	assert.True(t, a.Can(rater(), domain.FeatureUpdateContentTabCoin, nil))
}

func TestRequire(t *testing.T) {
	a := NewFeatureAuthorizer(nil, zaptest.NewLogger(t))

	err := Require(a, domain.Actor{}, domain.FeatureUndoOperation, nil)
	var forbidden *domain.ForbiddenError
	require.ErrorAs(t, err, &forbidden)
	assert.Equal(t, domain.FeatureUndoOperation, forbidden.Feature)

	assert.NoError(t, Require(a, rater(), domain.FeatureUpdateContentTabCoin, nil))
}

func TestFeatureAuthorizer_ListenerPicksUpChanges(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	a := NewFeatureAuthorizer(rdb, zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.StartListener(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Подписка асинхронная, поэтому публикуем, пока сигнал не дойдет
	require.Eventually(t, func() bool {
		if err := SetFeatureDisabled(context.Background(), rdb, domain.FeatureUpdateContentTabCoin, true); err != nil {
			return false
		}
		return !a.Can(rater(), domain.FeatureUpdateContentTabCoin, nil)
	}, 2*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		if err := SetFeatureDisabled(context.Background(), rdb, domain.FeatureUpdateContentTabCoin, false); err != nil {
			return false
		}
		return a.Can(rater(), domain.FeatureUpdateContentTabCoin, nil)
	}, 2*time.Second, 20*time.Millisecond)
}
