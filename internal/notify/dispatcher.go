package notify

/*
Dispatcher отделяет доставку уведомлений от транзакционного пути.

- Dispatch никогда не блокирует вызывающего: пачка кладется в буферизованный канал,
  при переполнении пачка сбрасывается (load shedding) с логом и метрикой.
- Каждая пачка обрабатывается по принципу "settle all": все сообщения отправляются
  независимо, ошибка одного не влияет на остальные и никогда не доходит до вызывающего.
- Stop закрывает вход под тем же мьютексом, что и отправка, и ждет, пока воркер дочитает очередь (drain).
*/

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/infra"
)

type Dispatcher struct {
	ch       chan []Notification
	notifier Notifier
	timeout  time.Duration
	logger   *zap.Logger
	metrics  *infra.Metrics
	wg       sync.WaitGroup

	// mu защищает closed и закрытие ch: отправка идет под RLock, close под Lock
	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(n Notifier, queueSize int, timeout time.Duration, logger *zap.Logger, metrics *infra.Metrics) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1000
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if metrics == nil {
		metrics = infra.NewMetrics(nil)
	}
	return &Dispatcher{
		ch:       make(chan []Notification, queueSize),
		notifier: n,
		timeout:  timeout,
		logger:   logger.Named("notify"),
		metrics:  metrics,
	}
}

func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go d.worker()
}

// Stop запирает вход и ждет, пока воркер отправит все, что осталось в очереди.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.ch)
	d.mu.Unlock()

	d.logger.Info("stopping dispatcher: draining queue...")
	d.wg.Wait()
	d.logger.Info("dispatcher stopped gracefully")
}

// Dispatch ставит пачку в очередь. Возвращает false, если пачка сброшена.
func (d *Dispatcher) Dispatch(batch []Notification) bool {
	if len(batch) == 0 {
		return true
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop(batch, "dispatcher is stopping")
		return false
	}

	select {
	case d.ch <- batch:
		d.metrics.NotifyQueueFill.Set(float64(len(d.ch)))
		return true
	default:
		d.drop(batch, "queue overflow")
		return false
	}
}

func (d *Dispatcher) drop(batch []Notification, reason string) {
	for _, n := range batch {
		d.metrics.NotificationsTotal.WithLabelValues(string(n.Kind), "dropped").Inc()
	}
	d.logger.Error("notification batch dropped",
		zap.String("reason", reason),
		zap.Int("size", len(batch)),
		zap.String("event_id", batch[0].EventID.String()))
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for batch := range d.ch {
		d.metrics.NotifyQueueFill.Set(float64(len(d.ch)))
		d.settle(batch)
	}
	d.logger.Info("notify worker finished")
}

// settle отправляет все сообщения пачки параллельно и ждет завершения каждого.
func (d *Dispatcher) settle(batch []Notification) {
	var (
		wg     sync.WaitGroup
		failed atomic.Int32
	)
	for _, n := range batch {
		wg.Add(1)
		go func(n Notification) {
			defer wg.Done()
			// Background: запрос, породивший пачку, к этому моменту уже завершен
			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			defer cancel()

			err := d.notifier.Notify(ctx, n)
			switch {
			case err == nil:
				d.metrics.NotificationsTotal.WithLabelValues(string(n.Kind), "sent").Inc()
			case errors.Is(err, ErrDuplicate):
				d.metrics.NotificationsTotal.WithLabelValues(string(n.Kind), "duplicate").Inc()
			default:
				failed.Add(1)
				d.metrics.NotificationsTotal.WithLabelValues(string(n.Kind), "failed").Inc()
				d.logger.Warn("notification failed",
					zap.String("kind", string(n.Kind)),
					zap.String("recipient_id", n.RecipientID.String()),
					zap.Error(err))
			}
		}(n)
	}
	wg.Wait()

	d.logger.Debug("notification batch settled",
		zap.String("event_id", batch[0].EventID.String()),
		zap.Int("size", len(batch)),
		zap.Int32("failed", failed.Load()))
}
