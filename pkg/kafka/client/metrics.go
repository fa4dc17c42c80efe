// pkg/kafka/client/metrics.go

package client

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

var clientMetrics = struct {
	ConnectAttempts *prometheus.CounterVec
	ConnectErrors   *prometheus.CounterVec
	SessionErrors   *prometheus.CounterVec
	ConsumeErrors   *prometheus.CounterVec
	Messages        *prometheus.CounterVec
}{
	ConnectAttempts: promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "asynkaf", Subsystem: "kafka_client", Name: "connect_attempts_total",
			Help: "Kafka consumer group connect attempts",
		},
		[]string{"service"},
	),
	ConnectErrors: promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "asynkaf", Subsystem: "kafka_client", Name: "connect_errors_total",
			Help: "Kafka consumer group connect errors",
		},
		[]string{"service"},
	),
	SessionErrors: promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "asynkaf", Subsystem: "kafka_client", Name: "session_errors_total",
			Help: "Errors returned by consume sessions",
		},
		[]string{"service"},
	),
	ConsumeErrors: promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "asynkaf", Subsystem: "kafka_client", Name: "consume_errors_total",
			Help: "Asynchronous errors reported by the consumer group",
		},
		[]string{"service"},
	),
	Messages: promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "asynkaf", Subsystem: "kafka_client", Name: "messages_total",
			Help: "Messages received from claims",
		},
		[]string{"service"},
	),
}
