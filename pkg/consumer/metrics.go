// pkg/consumer/metrics.go

package consumer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// -----------------------------------------------------------------------------
// Service label (заполняется из serviceid.InitServiceName)
// -----------------------------------------------------------------------------

var serviceLabel = "unknown"

// SetServiceLabel задаёт единое имя сервиса для метрик.
// Вызывается единожды из serviceid.InitServiceName().
func SetServiceLabel(name string) { serviceLabel = name }

// -----------------------------------------------------------------------------
// Prometheus-метрики
// -----------------------------------------------------------------------------

var consumerMetrics = struct {
	Relayed       *prometheus.CounterVec
	Popped        *prometheus.CounterVec
	PollErrors    *prometheus.CounterVec
	DroppedErrors *prometheus.CounterVec
	Discarded     *prometheus.CounterVec
	QueueDepth    *prometheus.GaugeVec
}{
	Relayed: promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "asynkaf", Subsystem: "consumer", Name: "relayed_total",
			Help: "Messages moved from the broker into the queue",
		},
		[]string{"service"},
	),
	Popped: promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "asynkaf", Subsystem: "consumer", Name: "popped_total",
			Help: "Messages handed to callers via Pop",
		},
		[]string{"service"},
	),
	PollErrors: promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "asynkaf", Subsystem: "consumer", Name: "poll_errors_total",
			Help: "Errors returned by the broker client during polling",
		},
		[]string{"service"},
	),
	DroppedErrors: promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "asynkaf", Subsystem: "consumer", Name: "dropped_errors_total",
			Help: "Poll errors dropped because the Errors() channel was full",
		},
		[]string{"service"},
	),
	Discarded: promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "asynkaf", Subsystem: "consumer", Name: "discarded_total",
			Help: "Unread messages discarded when the consumer was closed",
		},
		[]string{"service"},
	),
	QueueDepth: promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "asynkaf", Subsystem: "consumer", Name: "queue_depth",
			Help: "Messages currently buffered between poller and Pop",
		},
		[]string{"service"},
	),
}
