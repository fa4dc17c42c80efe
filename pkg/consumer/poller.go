// pkg/consumer/poller.go

package consumer

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/YangYounghwa/asynkaf/pkg/kafka"
	"github.com/YangYounghwa/asynkaf/pkg/logger"
)

// poller перекладывает сообщения из kafka.Client во внутреннюю очередь.
// Запускается единственной горутиной из New/NewFromClient и живёт до
// отмены контекста в Close.
type poller struct {
	client  kafka.Client
	queue   *messageQueue
	timeout time.Duration
	errs    chan<- error
	log     *logger.Logger
	done    chan struct{}
}

// run — основной цикл опроса. Завершается только по отмене ctx
// либо по закрытию очереди.
func (p *poller) run(ctx context.Context) {
	defer close(p.done)
	p.log.Debug("poller started", zap.Duration("poll_timeout", p.timeout))

	for {
		select {
		case <-ctx.Done():
			p.log.Debug("poller stopped", zap.Int("queue_depth", p.queue.Len()))
			return
		default:
		}

		msg, err := p.client.Poll(ctx, p.timeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue // остановка придёт через ctx.Done
			}
			p.reportError(err)
			continue
		}
		if msg == nil {
			continue // таймаут опроса: новых сообщений нет
		}

		if !p.queue.Push(msg) {
			p.log.Debug("queue closed, poller exiting")
			return
		}
		consumerMetrics.Relayed.WithLabelValues(serviceLabel).Inc()
	}
}

// reportError публикует ошибку опроса: метрика, debug-лог и
// неблокирующая отправка в канал Errors().
func (p *poller) reportError(err error) {
	consumerMetrics.PollErrors.WithLabelValues(serviceLabel).Inc()
	p.log.Debug("poll error", zap.Error(err))

	select {
	case p.errs <- err:
	default:
		consumerMetrics.DroppedErrors.WithLabelValues(serviceLabel).Inc()
	}
}
