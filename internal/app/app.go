// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/YangYounghwa/asynkaf/internal/config"
	"github.com/YangYounghwa/asynkaf/internal/metrics"
	"github.com/YangYounghwa/asynkaf/pkg/consumer"
	"github.com/YangYounghwa/asynkaf/pkg/httpserver"
	"github.com/YangYounghwa/asynkaf/pkg/logger"
	"github.com/YangYounghwa/asynkaf/pkg/serviceid"
	"github.com/YangYounghwa/asynkaf/pkg/telemetry"
)

// Run собирает подсистемы сервиса и ведёт их до отмены ctx.
func Run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	serviceid.InitServiceName(cfg.ServiceName)
	metrics.Register(nil)

	// Трассировка опциональна: без endpoint сервис работает без экспорта span'ов.
	if cfg.Telemetry.Endpoint != "" {
		cfg.Telemetry.ServiceName = cfg.ServiceName
		cfg.Telemetry.ServiceVersion = cfg.ServiceVersion
		shutdownTracer, err := telemetry.InitTracer(ctx, cfg.Telemetry, log)
		if err != nil {
			return fmt.Errorf("init tracer: %w", err)
		}
		defer shutdownSafe(ctx, "telemetry", func() error { return shutdownTracer(ctx) }, log)
	} else {
		log.Info("telemetry disabled: otel endpoint is not set")
	}

	// Консьюмер: фоновый poller + очередь.
	cons, err := consumer.New(ctx, cfg.Kafka, log)
	if err != nil {
		return fmt.Errorf("consumer init: %w", err)
	}
	defer shutdownSafe(ctx, "consumer", cons.Close, log)

	// HTTP-сервер: метрики и health-пробы.
	readiness := func() error {
		if cons.IsClosed() {
			return errors.New("consumer is closed")
		}
		return nil
	}
	httpSrv, err := httpserver.New(
		httpserver.Config{
			Addr:            fmt.Sprintf(":%d", cfg.HTTP.Port),
			ReadTimeout:     cfg.HTTP.ReadTimeout,
			WriteTimeout:    cfg.HTTP.WriteTimeout,
			IdleTimeout:     cfg.HTTP.IdleTimeout,
			ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
			MetricsPath:     cfg.HTTP.MetricsPath,
			HealthzPath:     cfg.HTTP.HealthzPath,
			ReadyzPath:      cfg.HTTP.ReadyzPath,
		},
		readiness,
		log,
		httpserver.RecoverMiddleware(log),
	)
	if err != nil {
		return fmt.Errorf("httpserver init: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	// HTTP
	g.Go(func() error { return httpSrv.Start(ctx) })

	// Наблюдение за ошибками фонового опроса.
	g.Go(func() error {
		for {
			select {
			case err, ok := <-cons.Errors():
				if !ok {
					return nil
				}
				metrics.PollErrorsObserved.Inc()
				log.WithContext(ctx).Warn("kafka poll error", zap.Error(err))
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	// Основной цикл выдачи сообщений из очереди.
	g.Go(func() error {
		for {
			msg, err := cons.Pop(ctx)
			if err != nil {
				if errors.Is(err, consumer.ErrClosed) || errors.Is(err, context.Canceled) {
					return ctx.Err()
				}
				return fmt.Errorf("pop: %w", err)
			}

			metrics.DeliveredTotal.Inc()
			metrics.LastOffset.WithLabelValues(msg.Topic, strconv.Itoa(int(msg.Partition))).Set(float64(msg.Offset))
			if !msg.Timestamp.IsZero() {
				metrics.DeliveryLag.Observe(time.Since(msg.Timestamp).Seconds())
			}

			log.WithContext(ctx).Debug("message received",
				zap.String("topic", msg.Topic),
				zap.Int32("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Int("bytes", len(msg.Value)),
			)
		}
	})

	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) {
			log.WithContext(ctx).Info("relay stopped by context")
			return nil
		}
		return err
	}
	return nil
}

// shutdownSafe оборачивает вызов Close()/Shutdown() с логированием.
func shutdownSafe(ctx context.Context, name string, fn func() error, log *logger.Logger) {
	log.WithContext(ctx).Info(fmt.Sprintf("%s: shutting down", name))
	if err := fn(); err != nil {
		log.WithContext(ctx).Error(fmt.Sprintf("%s shutdown error", name), zap.Error(err))
	} else {
		log.WithContext(ctx).Info(fmt.Sprintf("%s: shutdown complete", name))
	}
}
