package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// DeliveredTotal — общее число сообщений, извлечённых из очереди потребителя.
	DeliveredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "asynkaf",
		Subsystem: "relay",
		Name:      "delivered_total",
		Help:      "Total number of messages delivered from the consumer queue",
	})

	// PollErrorsObserved — число ошибок опроса, полученных из канала ошибок потребителя.
	PollErrorsObserved = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "asynkaf",
		Subsystem: "relay",
		Name:      "poll_errors_observed_total",
		Help:      "Total number of poll errors observed on the consumer error channel",
	})

	// DeliveryLag — гистограмма задержек от отметки времени брокера до извлечения.
	DeliveryLag = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "asynkaf",
		Subsystem: "relay",
		Name:      "delivery_lag_seconds",
		Help:      "Lag from broker timestamp to delivery from the queue (seconds)",
		Buckets:   prometheus.DefBuckets,
	})

	// LastOffset — последнее доставленное смещение по topic/partition.
	LastOffset = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "asynkaf",
		Subsystem: "relay",
		Name:      "last_offset",
		Help:      "Last delivered offset per topic/partition",
	}, []string{"topic", "partition"})
)

// Register регистрирует все метрики в заданном реестре.
// Можно вызвать без аргументов, чтобы зарегистрировать в DefaultRegisterer.
func Register(registerers ...prometheus.Registerer) {
	once.Do(func() {
		var reg prometheus.Registerer
		if len(registerers) > 0 && registerers[0] != nil {
			reg = registerers[0]
		} else {
			reg = prometheus.DefaultRegisterer
		}
		reg.MustRegister(
			DeliveredTotal,
			PollErrorsObserved,
			DeliveryLag,
			LastOffset,
		)
	})
}
