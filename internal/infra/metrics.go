package infra

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Latency: сколько времени заняла обработка HTTP-запроса
	RequestDuration *prometheus.HistogramVec

	// Ledger: исходы оценок и повторы транзакций на serialization failure
	RatingsTotal  *prometheus.CounterVec
	TxRetries     *prometheus.CounterVec
	TxConflicts   *prometheus.CounterVec
	Sponsorships  *prometheus.CounterVec
	UndoTotal     prometheus.Counter
	LedgerLatency *prometheus.HistogramVec

	// Firewall: решения гарда и размер побочных эффектов
	FirewallDecisions *prometheus.CounterVec
	SideEffectRows    *prometheus.HistogramVec

	// Notifications: best-effort доставка
	NotificationsTotal *prometheus.CounterVec
	NotifyQueueFill    prometheus.Gauge
	BreakerState       *prometheus.GaugeVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tabnews_http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"route", "status"}),
		RatingsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tabnews_ledger_ratings_total",
			Help: "Content ratings by direction and outcome.",
		}, []string{"direction", "result"}),
		TxRetries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tabnews_ledger_tx_retries_total",
			Help: "Transactions restarted after a serialization failure.",
		}, []string{"op"}),
		TxConflicts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tabnews_ledger_tx_conflicts_total",
			Help: "Transactions that exhausted their retry budget.",
		}, []string{"op"}),
		Sponsorships: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tabnews_ledger_sponsorships_total",
			Help: "Sponsorship attempts by outcome.",
		}, []string{"result"}),
		UndoTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "tabnews_ledger_undo_total",
			Help: "Operations reverted by undo.",
		}),
		LedgerLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tabnews_ledger_op_duration_seconds",
			Help:    "Ledger operation latency including retries.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		FirewallDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tabnews_firewall_decisions_total",
			Help: "Firewall guard decisions (allow, deny, fail_open).",
		}, []string{"rule", "decision"}),
		SideEffectRows: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tabnews_firewall_side_effect_rows",
			Help:    "Rows transitioned by one firewall side effect.",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}, []string{"event_type"}),
		NotificationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tabnews_notifications_total",
			Help: "Notification deliveries by kind and outcome.",
		}, []string{"kind", "result"}), // result: sent, failed, dropped, duplicate
		NotifyQueueFill: f.NewGauge(prometheus.GaugeOpts{
			Name: "tabnews_notify_queue_utilization",
			Help: "Current number of batches waiting in the notification queue.",
		}),
		BreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tabnews_notify_circuit_breaker_state",
			Help: "Current state of the notifier circuit breaker (0=closed, 1=half-open, 2=open).",
		}, []string{"name"}),
	}
}
