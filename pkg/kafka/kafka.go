// pkg/kafka/kafka.go

package kafka

import (
	"context"
	"time"
)

// DefaultPollTimeout — время ожидания одного Poll по умолчанию.
const DefaultPollTimeout = 1000 * time.Millisecond

// Message — универсальное представление Kafka-сообщения.
type Message struct {
	Key       []byte
	Value     []byte
	Topic     string
	Partition int32
	Offset    int64
	Timestamp time.Time
	Headers   map[string][]byte
}

// Client — минимальный контракт получения сообщений из брокера.
//
// Poll возвращает очередное сообщение либо (nil, nil), если за timeout
// ничего не пришло. Ошибка означает сбой доставки конкретного опроса;
// клиент остаётся пригодным для следующих вызовов Poll.
// Close освобождает соединение. Все реализации должны переносить
// повторный Close без паники.
type Client interface {
	Poll(ctx context.Context, timeout time.Duration) (*Message, error)
	Close() error
}
