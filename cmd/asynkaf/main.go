// cmd/asynkaf/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/YangYounghwa/asynkaf/internal/app"
	"github.com/YangYounghwa/asynkaf/internal/config"
	"github.com/YangYounghwa/asynkaf/pkg/logger"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:          "asynkaf",
		Short:        "Kafka consumer relay service",
		SilenceUsage: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			// 1) Загрузка конфига
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("config load: %w", err)
			}

			// 2) Логгер
			log, err := logger.New(cfg.Logging)
			if err != nil {
				return fmt.Errorf("logger init: %w", err)
			}
			defer log.Sync()

			// 2a) При dev-режиме — вывести конфиг
			if cfg.Logging.DevMode {
				if err := cfg.Print(); err != nil {
					log.Sugar().Warnw("failed to print config", "error", err)
				}
			}

			// 3) Контекст с отменой по SIGINT/SIGTERM
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			log.Sugar().Infow("starting service",
				"service.name", cfg.ServiceName,
				"service.version", cfg.ServiceVersion,
				"config.path", configPath,
			)

			// 4) Запуск приложения
			if err := app.Run(ctx, cfg, log); err != nil {
				log.Sugar().Errorw("application exited with error", "error", err)
				return err
			}

			log.Sugar().Infow("shutdown complete")
			return nil
		},
	}

	root.Flags().StringVar(&configPath, "config", "config/config.yaml", "path to config file")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
