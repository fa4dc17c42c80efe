// pkg/consumer/queue.go

package consumer

import (
	"context"
	"sync"

	"github.com/YangYounghwa/asynkaf/pkg/kafka"
)

// messageQueue — неограниченная потокобезопасная FIFO-очередь сообщений.
//
// Push никогда не блокируется: буфер растёт по мере необходимости.
// Pop блокируется, пока не появится сообщение, не отменится контекст
// или очередь не будет закрыта. Close отбрасывает непрочитанный остаток,
// после чего все ожидающие Pop получают ErrClosed.
type messageQueue struct {
	mu     sync.Mutex
	items  []*kafka.Message
	notify chan struct{}
	closed bool
}

func newMessageQueue() *messageQueue {
	return &messageQueue{notify: make(chan struct{})}
}

// Push добавляет сообщение в хвост очереди.
// Возвращает false, если очередь уже закрыта.
func (q *messageQueue) Push(msg *kafka.Message) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.items = append(q.items, msg)
	consumerMetrics.QueueDepth.WithLabelValues(serviceLabel).Inc()

	// Разбудить всех ожидающих Pop: закрыть текущий notify и завести новый.
	close(q.notify)
	q.notify = make(chan struct{})
	return true
}

// Pop снимает сообщение с головы очереди, блокируясь при необходимости.
func (q *messageQueue) Pop(ctx context.Context) (*kafka.Message, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			msg := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			if len(q.items) == 0 {
				q.items = nil // отпустить разросшийся буфер
			}
			consumerMetrics.QueueDepth.WithLabelValues(serviceLabel).Dec()
			q.mu.Unlock()
			return msg, nil
		}
		if q.closed {
			q.mu.Unlock()
			return nil, ErrClosed
		}
		wait := q.notify
		q.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Len возвращает текущую глубину очереди.
func (q *messageQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close закрывает очередь и отбрасывает непрочитанные сообщения.
// Возвращает число отброшенных. Повторные вызовы безопасны.
func (q *messageQueue) Close() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return 0
	}
	q.closed = true
	discarded := len(q.items)
	q.items = nil
	if discarded > 0 {
		consumerMetrics.QueueDepth.WithLabelValues(serviceLabel).Sub(float64(discarded))
	}
	close(q.notify)
	return discarded
}
