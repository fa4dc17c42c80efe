// pkg/consumer/config.go

package consumer

import (
	"fmt"
	"strings"
	"time"

	"github.com/YangYounghwa/asynkaf/pkg/backoff"
	"github.com/YangYounghwa/asynkaf/pkg/kafka"
)

const defaultErrorBuffer = 64

// Config содержит параметры консьюмера.
//
// Brokers — адреса bootstrap-брокеров.
// GroupID — идентификатор consumer group.
// Topics  — топики для подписки.
// Version — строка версии протокола Kafka (по умолчанию "2.8.0").
type Config struct {
	Brokers []string `mapstructure:"brokers"`
	GroupID string   `mapstructure:"group_id"`
	Topics  []string `mapstructure:"topics"`
	Version string   `mapstructure:"version"`

	// InitialOffset — откуда начинать чтение без сохранённого смещения:
	// "newest" (по умолчанию) или "oldest".
	InitialOffset string `mapstructure:"initial_offset"`

	// PollTimeout ограничивает один опрос брокера фоновым poller'ом.
	PollTimeout time.Duration `mapstructure:"poll_timeout"`

	// ErrorBuffer — ёмкость канала Errors(). При переполнении новые
	// ошибки отбрасываются и учитываются только в метриках.
	ErrorBuffer int `mapstructure:"error_buffer"`

	// Backoff — стратегия ретраев при подключении к брокерам.
	Backoff backoff.Config `mapstructure:"backoff"`
}

func (c *Config) applyDefaults() {
	if c.PollTimeout <= 0 {
		c.PollTimeout = kafka.DefaultPollTimeout
	}
	if c.ErrorBuffer <= 0 {
		c.ErrorBuffer = defaultErrorBuffer
	}
}

// validate проверяет поля, необходимые для подключения к брокерам.
func (c Config) validate() error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("%w: brokers required", ErrInvalidConfig)
	}
	for _, b := range c.Brokers {
		if strings.TrimSpace(b) == "" {
			return fmt.Errorf("%w: empty broker address", ErrInvalidConfig)
		}
	}
	if c.GroupID == "" {
		return fmt.Errorf("%w: GroupID required", ErrInvalidConfig)
	}
	if len(c.Topics) == 0 {
		return fmt.Errorf("%w: topics required", ErrInvalidConfig)
	}
	return nil
}
