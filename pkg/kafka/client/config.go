// pkg/kafka/client/config.go

package client

import (
	"fmt"
	"strings"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"github.com/YangYounghwa/asynkaf/pkg/backoff"
)

// Config содержит параметры подключения consumer group.
//
// Brokers — адреса брокеров.
// GroupID — идентификатор consumer group.
// Topics  — топики для подписки.
// Version — строка версии протокола Kafka (например, "2.8.0").
type Config struct {
	Brokers []string
	GroupID string
	Topics  []string
	Version string

	// ClientID идентифицирует клиента на брокере.
	// Пустое значение → "asynkaf-<uuid>".
	ClientID string

	// InitialOffset — "newest" | "oldest"; откуда начинать чтение,
	// когда у группы нет сохранённого смещения.
	InitialOffset string

	// BufferSize — ёмкость внутреннего канала между сессией и Poll.
	BufferSize int

	// Backoff — стратегия ретраев при подключении.
	Backoff backoff.Config
}

func (c *Config) applyDefaults() {
	if c.Version == "" {
		c.Version = "2.8.0"
	}
	if c.ClientID == "" {
		c.ClientID = "asynkaf-" + uuid.NewString()
	}
	if c.InitialOffset == "" {
		c.InitialOffset = "newest"
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 256
	}
}

// validate проверяет обязательные поля.
func (c Config) validate() error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("kafka client: brokers required")
	}
	if c.GroupID == "" {
		return fmt.Errorf("kafka client: GroupID required")
	}
	if len(c.Topics) == 0 {
		return fmt.Errorf("kafka client: topics required")
	}
	switch strings.ToLower(c.InitialOffset) {
	case "newest", "oldest":
	default:
		return fmt.Errorf("kafka client: InitialOffset must be one of [newest, oldest]")
	}
	return nil
}

// buildSaramaConfig транслирует Config в sarama.Config.
func buildSaramaConfig(cfg Config) (*sarama.Config, error) {
	version, err := sarama.ParseKafkaVersion(cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("kafka client: invalid Version %q: %w", cfg.Version, err)
	}

	sc := sarama.NewConfig()
	sc.Version = version
	sc.ClientID = cfg.ClientID
	sc.Consumer.Return.Errors = true
	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}

	// Авто-коммит отключён: смещения группой не фиксируются.
	sc.Consumer.Offsets.AutoCommit.Enable = false

	switch strings.ToLower(cfg.InitialOffset) {
	case "oldest":
		sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	default:
		sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	return sc, nil
}
