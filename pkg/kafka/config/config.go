package kafka_config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"stayhub/pkg/logger"
	"strconv"
	"time"
)

// Config holds the producer settings. Brokers come from the service config so
// KAFKA_BROKERS is read in exactly one place.
type Config struct {
	Brokers []string

	ProducerMaxAttempts  int
	ProducerBatchTimeout time.Duration
	ProducerWriteTimeout time.Duration
	ProducerRequireAcks  int    // -1 = all, 0 = none, 1 = leader only
	ProducerCompression  string // "none", "gzip", "snappy", "lz4", "zstd"
	ProducerAsync        bool
}

var (
	compressionCodecs = []string{"none", "gzip", "snappy", "lz4", "zstd"}
	ackLevels         = []int{-1, 0, 1}
)

func Load(brokers []string) (*Config, error) {
	cfg := &Config{
		Brokers:              brokers,
		ProducerMaxAttempts:  fromEnv(EnvKafkaProducerMaxAttempts, DefaultProducerMaxAttempts, strconv.Atoi),
		ProducerBatchTimeout: fromEnv(EnvKafkaProducerBatchTimeout, DefaultProducerBatchTimeout, time.ParseDuration),
		ProducerWriteTimeout: fromEnv(EnvKafkaProducerWriteTimeout, DefaultProducerWriteTimeout, time.ParseDuration),
		ProducerRequireAcks:  fromEnv(EnvKafkaProducerRequireAcks, DefaultProducerRequireAcks, strconv.Atoi),
		ProducerCompression:  fromEnv(EnvKafkaProducerCompression, DefaultProducerCompression, identity),
		ProducerAsync:        fromEnv(EnvKafkaProducerAsync, DefaultProducerAsync, strconv.ParseBool),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every problem at once so a misconfigured deploy fails
// with the full list.
func (cfg *Config) Validate() error {
	var problems []error
	fail := func(format string, args ...any) {
		problems = append(problems, fmt.Errorf(format, args...))
	}

	if len(cfg.Brokers) == 0 {
		fail("at least one Kafka broker is required")
	}
	for i, broker := range cfg.Brokers {
		if broker == "" {
			fail("Broker %d cannot be empty", i)
		}
	}
	if cfg.ProducerMaxAttempts <= 0 {
		fail("ProducerMaxAttempts must be positive, got %d", cfg.ProducerMaxAttempts)
	}
	if cfg.ProducerBatchTimeout <= 0 {
		fail("ProducerBatchTimeout must be positive, got %s", cfg.ProducerBatchTimeout)
	}
	if cfg.ProducerWriteTimeout <= 0 {
		fail("ProducerWriteTimeout must be positive, got %s", cfg.ProducerWriteTimeout)
	}
	if !slices.Contains(compressionCodecs, cfg.ProducerCompression) {
		fail("ProducerCompression must be one of %v, got %q", compressionCodecs, cfg.ProducerCompression)
	}
	if !slices.Contains(ackLevels, cfg.ProducerRequireAcks) {
		fail("ProducerRequireAcks must be one of %v, got %d", ackLevels, cfg.ProducerRequireAcks)
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid Kafka producer configuration: %w", errors.Join(problems...))
	}
	return nil
}

func (cfg *Config) LogConfiguration(log *logger.Logger) {
	log.Info("Kafka configuration loaded successfully",
		"brokers", cfg.Brokers,
		"producer_max_attempts", cfg.ProducerMaxAttempts,
		"producer_batch_timeout", cfg.ProducerBatchTimeout,
		"producer_write_timeout", cfg.ProducerWriteTimeout,
		"producer_require_acks", cfg.ProducerRequireAcks,
		"producer_compression", cfg.ProducerCompression,
		"producer_async", cfg.ProducerAsync,
	)
}

// fromEnv falls back to def when the variable is unset or does not parse.
func fromEnv[T any](key string, def T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		return def
	}
	return v
}

func identity(s string) (string, error) { return s, nil }
