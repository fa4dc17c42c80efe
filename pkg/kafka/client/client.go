// pkg/kafka/client/client.go

// Package client реализует kafka.Client поверх sarama.ConsumerGroup.
//
// Сессия consumer group читается фоновой горутиной, сообщения складываются
// в буферизованный канал, откуда их забирает Poll. Такое разделение даёт
// poll-семантику поверх push-модели sarama.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/dnwe/otelsarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/YangYounghwa/asynkaf/pkg/backoff"
	"github.com/YangYounghwa/asynkaf/pkg/kafka"
	"github.com/YangYounghwa/asynkaf/pkg/logger"
)

var tracer = otel.Tracer("kafka-client")

// pollClient адаптирует sarama.ConsumerGroup к poll-контракту kafka.Client.
type pollClient struct {
	group  sarama.ConsumerGroup
	topics []string
	msgs   chan *kafka.Message
	errs   chan error
	cancel context.CancelFunc
	done   chan struct{}
	log    *logger.Logger

	closeOnce sync.Once
	closeErr  error
}

// New подключается к брокерам с ретраями и запускает фоновое чтение.
// Контекст ограничивает установку соединения; закрытие клиента
// выполняется только через Close.
func New(ctx context.Context, cfg Config, log *logger.Logger) (kafka.Client, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log = log.Named("kafka-client")

	sarCfg, err := buildSaramaConfig(cfg)
	if err != nil {
		return nil, err
	}

	var group sarama.ConsumerGroup
	connectOp := func(ctx context.Context) error {
		clientMetrics.ConnectAttempts.WithLabelValues(serviceLabel).Inc()
		g, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, sarCfg)
		if err != nil {
			clientMetrics.ConnectErrors.WithLabelValues(serviceLabel).Inc()
			return err
		}
		group = g
		return nil
	}

	ctxConn, span := tracer.Start(ctx, "Connect",
		trace.WithAttributes(attribute.StringSlice("brokers", cfg.Brokers), attribute.String("group", cfg.GroupID)))
	if err := backoff.Execute(ctxConn, cfg.Backoff, log, connectOp); err != nil {
		span.RecordError(err)
		span.End()
		return nil, fmt.Errorf("kafka client: connect failed: %w", err)
	}
	span.End()

	log.Info("kafka consumer group connected",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("group", cfg.GroupID),
		zap.Strings("topics", cfg.Topics),
	)

	runCtx, cancel := context.WithCancel(context.Background())
	c := &pollClient{
		group:  group,
		topics: cfg.Topics,
		msgs:   make(chan *kafka.Message, cfg.BufferSize),
		errs:   make(chan error, 16),
		cancel: cancel,
		done:   make(chan struct{}),
		log:    log,
	}
	go c.run(runCtx)
	go c.forwardErrors()
	return c, nil
}

// run держит сессию consumer group открытой, пока клиент не закрыт.
// После ребаланса Consume возвращается, и сессия открывается заново.
func (c *pollClient) run(ctx context.Context) {
	defer close(c.done)
	handler := otelsarama.WrapConsumerGroupHandler(&groupHandler{out: c.msgs})

	for {
		if ctx.Err() != nil {
			return
		}

		ctxSess, span := tracer.Start(ctx, "ConsumeSession",
			trace.WithAttributes(attribute.StringSlice("topics", c.topics)))
		err := c.group.Consume(ctxSess, c.topics, handler)
		span.End()

		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return
			}
			clientMetrics.SessionErrors.WithLabelValues(serviceLabel).Inc()
			c.log.Warn("consume session error", zap.Error(err))
			select {
			case c.errs <- err:
			default:
			}

			// Пауза перед следующей сессией.
			select {
			case <-time.After(500 * time.Millisecond):
			case <-ctx.Done():
				return
			}
		}
	}
}

// forwardErrors переносит асинхронные ошибки sarama в канал клиента.
// group.Errors() закрывается вместе с группой.
func (c *pollClient) forwardErrors() {
	for err := range c.group.Errors() {
		clientMetrics.ConsumeErrors.WithLabelValues(serviceLabel).Inc()
		select {
		case c.errs <- err:
		default:
		}
	}
}

// Poll возвращает следующее сообщение либо (nil, nil) по истечении timeout.
func (c *pollClient) Poll(ctx context.Context, timeout time.Duration) (*kafka.Message, error) {
	if timeout <= 0 {
		timeout = kafka.DefaultPollTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg := <-c.msgs:
		return msg, nil
	case err := <-c.errs:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, nil
	}
}

// Close останавливает чтение и закрывает consumer group.
// Повторные вызовы безопасны и возвращают результат первого.
func (c *pollClient) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		<-c.done
		if err := c.group.Close(); err != nil {
			c.closeErr = fmt.Errorf("kafka client: close group: %w", err)
		}
		c.log.Info("kafka client closed")
	})
	return c.closeErr
}

// -----------------------------------------------------------------------------
// Internal handler
// -----------------------------------------------------------------------------

// groupHandler транслирует sarama-сообщения в kafka.Message.
type groupHandler struct {
	out chan<- *kafka.Message
}

func (h *groupHandler) Setup(_ sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(_ sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for m := range claim.Messages() {
		headers := make(map[string][]byte, len(m.Headers))
		for _, hdr := range m.Headers {
			if hdr != nil && hdr.Key != nil && hdr.Value != nil {
				headers[string(hdr.Key)] = hdr.Value
			}
		}

		msg := &kafka.Message{
			Key:       m.Key,
			Value:     m.Value,
			Topic:     m.Topic,
			Partition: m.Partition,
			Offset:    m.Offset,
			Timestamp: m.Timestamp,
			Headers:   headers,
		}

		select {
		case h.out <- msg:
			clientMetrics.Messages.WithLabelValues(serviceLabel).Inc()
		case <-sess.Context().Done():
			return nil
		}
		// MarkMessage не вызывается: авто-коммит отключён (см. buildSaramaConfig).
	}
	return nil
}
