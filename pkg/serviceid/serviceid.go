// pkg/serviceid/serviceid.go

package serviceid

import (
	"github.com/YangYounghwa/asynkaf/pkg/backoff"
	"github.com/YangYounghwa/asynkaf/pkg/consumer"
	kafkaclient "github.com/YangYounghwa/asynkaf/pkg/kafka/client"
)

// ServiceNameKey — ключ лейбла для метрик всех подсистем.
const ServiceNameKey = "service"

// InitServiceName задаёт единое имя сервиса для backoff, Kafka-клиента
// и консьюмера. Вызывается в main() до первых метрик.
func InitServiceName(name string) {
	backoff.SetServiceLabel(name)
	kafkaclient.SetServiceLabel(name)
	consumer.SetServiceLabel(name)
}
