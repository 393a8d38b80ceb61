package notify

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/infra"
)

// NewTransport собирает транспорт по конфигу и оборачивает его в ReliableNotifier.
func NewTransport(cfg infra.NotifierConfig, rdb *redis.Client, logger *zap.Logger, metrics *infra.Metrics) (Notifier, error) {
	var base Notifier
	switch cfg.Transport {
	case "", "log":
		base = NewLogNotifier(logger)
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("notify: redis transport requires a redis client")
		}
		base = NewRedisOutbox(rdb, cfg.DedupeTTL, logger)
	default:
		return nil, fmt.Errorf("notify: unknown transport %q", cfg.Transport)
	}
	return NewReliableNotifier(base, cfg, metrics), nil
}
