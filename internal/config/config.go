// internal/config/config.go

package config

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/YangYounghwa/asynkaf/pkg/consumer"
	"github.com/YangYounghwa/asynkaf/pkg/logger"
	"github.com/YangYounghwa/asynkaf/pkg/telemetry"
)

// -----------------------------------------------------------------------------
// Структуры
// -----------------------------------------------------------------------------

// Config — все настройки сервиса.
type Config struct {
	ServiceName    string           `mapstructure:"service_name"`
	ServiceVersion string           `mapstructure:"service_version"`
	Kafka          consumer.Config  `mapstructure:"kafka"`
	Logging        logger.Config    `mapstructure:"logging"`
	Telemetry      telemetry.Config `mapstructure:"telemetry"`
	HTTP           HTTPConfig       `mapstructure:"http"`
}

// HTTPConfig хранит конфигурацию HTTP-/metrics-сервера.
type HTTPConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MetricsPath     string        `mapstructure:"metrics_path"`
	HealthzPath     string        `mapstructure:"healthz_path"`
	ReadyzPath      string        `mapstructure:"readyz_path"`
}

// -----------------------------------------------------------------------------
// Loader
// -----------------------------------------------------------------------------

// Load загружает и валидирует конфиг.
// Если path пустой — читаются только ENV и defaults.
func Load(path string) (*Config, error) {
	v := viper.New()

	/* ---------- 1) defaults ---------- */

	v.SetDefault("service_name", "asynkaf")
	v.SetDefault("service_version", "v0.1.0")

	// Kafka
	v.SetDefault("kafka.version", "2.8.0")
	v.SetDefault("kafka.initial_offset", "newest")
	v.SetDefault("kafka.poll_timeout", "1s")
	v.SetDefault("kafka.error_buffer", 64)
	v.SetDefault("kafka.backoff.initial_interval", "1s")
	v.SetDefault("kafka.backoff.max_interval", "30s")
	v.SetDefault("kafka.backoff.max_elapsed_time", "2m")

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.dev_mode", false)

	// Telemetry (пустой endpoint → трассировка выключена)
	v.SetDefault("telemetry.otel_endpoint", "")
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("telemetry.sampler_ratio", 1.0)

	// HTTP
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", "10s")
	v.SetDefault("http.write_timeout", "15s")
	v.SetDefault("http.idle_timeout", "60s")
	v.SetDefault("http.shutdown_timeout", "5s")
	v.SetDefault("http.metrics_path", "/metrics")
	v.SetDefault("http.healthz_path", "/healthz")
	v.SetDefault("http.readyz_path", "/readyz")

	/* ---------- 2) env ---------- */

	v.SetEnvPrefix("ASYNKAF")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	/* ---------- 3) optional file ---------- */

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %q: %w", path, err)
		}
	}

	/* ---------- 4) decode ---------- */

	var cfg Config
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		func(f, t reflect.Kind, data interface{}) (interface{}, error) {
			if f == reflect.String && t == reflect.Bool {
				return strconv.ParseBool(data.(string))
			}
			return data, nil
		},
	)
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:    "mapstructure",
		Result:     &cfg,
		DecodeHook: decodeHook,
	})
	if err != nil {
		return nil, fmt.Errorf("create config decoder: %w", err)
	}
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	/* ---------- 5) validate ---------- */

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// -----------------------------------------------------------------------------
// Validation helpers
// -----------------------------------------------------------------------------

func (c *Config) Validate() error {
	// service
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}
	if c.ServiceVersion == "" {
		return fmt.Errorf("service_version is required")
	}

	// kafka
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required")
	}
	if c.Kafka.GroupID == "" {
		return fmt.Errorf("kafka.group_id is required")
	}
	if len(c.Kafka.Topics) == 0 {
		return fmt.Errorf("kafka.topics must contain at least one entry")
	}
	if c.Kafka.PollTimeout <= 0 {
		return fmt.Errorf("kafka.poll_timeout must be > 0")
	}
	switch strings.ToLower(c.Kafka.InitialOffset) {
	case "", "newest", "oldest":
	default:
		return fmt.Errorf("kafka.initial_offset must be one of [newest, oldest]")
	}

	// http
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be in (0, 65535]")
	}

	return nil
}

// Print выводит итоговую конфигурацию в stdout.
func (c *Config) Print() error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	fmt.Println("Loaded configuration:\n" + string(b))
	return nil
}
