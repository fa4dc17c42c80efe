// pkg/consumer/consumer.go

// Package consumer реализует фоновое чтение Kafka с блокирующей выдачей.
//
// Consumer владеет единственным poller'ом, который перекладывает сообщения
// из kafka.Client в неограниченную FIFO-очередь. Вызывающая сторона
// получает их через Pop в порядке поступления. Время жизни ограничено
// парой New/Close; Close идемпотентен.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/YangYounghwa/asynkaf/pkg/kafka"
	kafkaclient "github.com/YangYounghwa/asynkaf/pkg/kafka/client"
	"github.com/YangYounghwa/asynkaf/pkg/logger"
)

var (
	// ErrClosed возвращается из Pop после Close.
	ErrClosed = errors.New("consumer: closed")

	// ErrInvalidConfig оборачивает все ошибки валидации Config.
	ErrInvalidConfig = errors.New("consumer: invalid config")
)

// Consumer владеет фоновым poller'ом и очередью сообщений.
type Consumer struct {
	client kafka.Client
	queue  *messageQueue
	poll   *poller
	errs   chan error

	cancel context.CancelFunc
	log    *logger.Logger

	closeOnce sync.Once
	closed    atomic.Bool
	closeErr  error
}

// New создаёт Kafka-клиент по cfg и запускает фоновый poller.
// Контекст ограничивает только установку соединения: время жизни
// консьюмера определяется вызовом Close, а не ctx.
func New(ctx context.Context, cfg Config, log *logger.Logger) (*Consumer, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cl, err := kafkaclient.New(ctx, kafkaclient.Config{
		Brokers:       cfg.Brokers,
		GroupID:       cfg.GroupID,
		Topics:        cfg.Topics,
		Version:       cfg.Version,
		InitialOffset: cfg.InitialOffset,
		Backoff:       cfg.Backoff,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("consumer: create kafka client: %w", err)
	}
	return start(cl, cfg, log), nil
}

// NewFromClient запускает poller поверх готового клиента.
// Consumer становится владельцем client и закроет его в Close.
func NewFromClient(client kafka.Client, cfg Config, log *logger.Logger) (*Consumer, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: client is nil", ErrInvalidConfig)
	}
	cfg.applyDefaults()
	return start(client, cfg, log), nil
}

func start(client kafka.Client, cfg Config, log *logger.Logger) *Consumer {
	log = log.Named("consumer")
	ctx, cancel := context.WithCancel(context.Background())

	c := &Consumer{
		client: client,
		queue:  newMessageQueue(),
		errs:   make(chan error, cfg.ErrorBuffer),
		cancel: cancel,
		log:    log,
	}
	c.poll = &poller{
		client:  client,
		queue:   c.queue,
		timeout: cfg.PollTimeout,
		errs:    c.errs,
		log:     log,
		done:    make(chan struct{}),
	}
	go c.poll.run(ctx)

	log.Info("consumer started",
		zap.String("group", cfg.GroupID),
		zap.Strings("topics", cfg.Topics),
		zap.Duration("poll_timeout", cfg.PollTimeout),
	)
	return c
}

// Pop возвращает следующее сообщение в порядке поступления.
// Блокируется, пока очередь пуста; прерывается отменой ctx либо Close,
// после которого возвращает ErrClosed.
func (c *Consumer) Pop(ctx context.Context) (*kafka.Message, error) {
	msg, err := c.queue.Pop(ctx)
	if err != nil {
		return nil, err
	}
	consumerMetrics.Popped.WithLabelValues(serviceLabel).Inc()
	return msg, nil
}

// Errors возвращает канал ошибок фонового опроса. Канал закрывается
// в Close. При переполнении буфера новые ошибки отбрасываются.
func (c *Consumer) Errors() <-chan error { return c.errs }

// Len возвращает число сообщений, ожидающих Pop.
func (c *Consumer) Len() int { return c.queue.Len() }

// IsClosed сообщает, был ли консьюмер закрыт.
func (c *Consumer) IsClosed() bool { return c.closed.Load() }

// Close останавливает poller, дожидается его завершения, закрывает
// клиент и отбрасывает непрочитанные сообщения. Повторные вызовы
// безопасны и возвращают результат первого.
func (c *Consumer) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.cancel()
		<-c.poll.done

		if err := c.client.Close(); err != nil {
			c.closeErr = fmt.Errorf("consumer: close client: %w", err)
			c.log.Error("kafka client close failed", zap.Error(err))
		}

		discarded := c.queue.Close()
		if discarded > 0 {
			consumerMetrics.Discarded.WithLabelValues(serviceLabel).Add(float64(discarded))
			c.log.Warn("unread messages discarded", zap.Int("count", discarded))
		}
		close(c.errs)

		c.log.Info("consumer closed")
	})
	return c.closeErr
}
