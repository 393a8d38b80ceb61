package policy

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/domain"
	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/infra"
)

// Authorizer решает, может ли участник выполнить действие над ресурсом.
type Authorizer interface {
	Can(actor domain.Actor, feature string, resource any) bool
}

// FeatureAuthorizer проверяет feature в наборе участника. Поверх этого есть глобальный
// список выключенных features: он живет в памяти и синхронизируется из Redis.
type FeatureAuthorizer struct {
	mu       sync.RWMutex
	disabled map[string]bool

	rdb    *redis.Client
	logger *zap.Logger
}

func NewFeatureAuthorizer(rdb *redis.Client, logger *zap.Logger) *FeatureAuthorizer {
	return &FeatureAuthorizer{
		disabled: make(map[string]bool),
		rdb:      rdb,
		logger:   logger.Named("authorizer"),
	}
}

// Can работает только с памятью. Анонимный участник не может ничего, что требует feature.
func (a *FeatureAuthorizer) Can(actor domain.Actor, feature string, resource any) bool {
	if actor.IsAnonymous() || !actor.Has(feature) {
		return false
	}

	a.mu.RLock()
	off := a.disabled[feature]
	a.mu.RUnlock()
	return !off
}

func (a *FeatureAuthorizer) Disable(feature string) {
	a.mu.Lock()
	a.disabled[feature] = true
	a.mu.Unlock()
}

func (a *FeatureAuthorizer) Enable(feature string) {
	a.mu.Lock()
	delete(a.disabled, feature)
	a.mu.Unlock()
}

// Refresh перечитывает список выключенных features из Redis. При ошибке сети
// сохраняется прежнее состояние.
func (a *FeatureAuthorizer) Refresh(ctx context.Context) error {
	if a.rdb == nil {
		return nil
	}
	members, err := a.rdb.SMembers(ctx, infra.RedisKeyDisabledFeatures).Result()
	if err != nil {
		return err
	}

	next := make(map[string]bool, len(members))
	for _, f := range members {
		next[f] = true
	}

	a.mu.Lock()
	a.disabled = next
	a.mu.Unlock()

	a.logger.Info("disabled features refreshed", zap.Int("count", len(next)))
	return nil
}

// StartListener подписывается на канал изменений и перечитывает список при каждом сигнале.
// Блокирует до отмены ctx.
func (a *FeatureAuthorizer) StartListener(ctx context.Context) {
	if a.rdb == nil {
		return
	}
	pubsub := a.rdb.Subscribe(ctx, infra.RedisChannelFeaturesChanged)
	defer pubsub.Close()

	ch := pubsub.Channel()
	a.logger.Info("features listener started")

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				a.logger.Warn("features channel closed")
				return
			}
			if err := a.Refresh(ctx); err != nil {
				a.logger.Error("refresh after signal failed", zap.String("payload", msg.Payload), zap.Error(err))
			}
		case <-ctx.Done():
			a.logger.Info("features listener stopping")
			return
		}
	}
}

// SetFeatureDisabled меняет глобальный список в Redis и оповещает все инстансы.
func SetFeatureDisabled(ctx context.Context, rdb *redis.Client, feature string, disabled bool) error {
	var err error
	if disabled {
		err = rdb.SAdd(ctx, infra.RedisKeyDisabledFeatures, feature).Err()
	} else {
		err = rdb.SRem(ctx, infra.RedisKeyDisabledFeatures, feature).Err()
	}
	if err != nil {
		return fmt.Errorf("update disabled features: %w", err)
	}
	return rdb.Publish(ctx, infra.RedisChannelFeaturesChanged, feature).Err()
}

// Require — Can в виде ошибки для сервисного слоя.
func Require(a Authorizer, actor domain.Actor, feature string, resource any) error {
	if !a.Can(actor, feature, resource) {
		return &domain.ForbiddenError{Feature: feature}
	}
	return nil
}
