package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"stayhub/pkg/client"
	"stayhub/pkg/logger"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	Port string

	JWTSecret string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaBrokers       []string
	BookingEventsTopic string

	RateLimitRPS   float64
	RateLimitBurst int

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	CORSAllowedOrigins []string
	CancellationCutoff time.Duration

	Log    *logger.Logger
	Client *client.Client
}

func Load(serviceName string) *Config {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	cfg := &Config{
		MongoURI:          env(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: env(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  envParsed(time.ParseDuration, EnvMongoConnTimeout, DefaultMongoConnTimeout),

		Port: env(EnvPort, DefaultPort),

		JWTSecret: env(EnvJWTSecret, ""),

		RedisAddr:     env(EnvRedisAddr, ""),
		RedisPassword: env(EnvRedisPassword, ""),
		RedisDB:       envParsed(strconv.Atoi, EnvRedisDB, DefaultRedisDB),

		KafkaBrokers:       envList(EnvKafkaBrokers, ""),
		BookingEventsTopic: env(EnvBookingEventsTopic, DefaultBookingEventsTopic),

		RateLimitRPS:   envParsed(parseFloat, EnvRateLimitRPS, DefaultRateLimitRPS),
		RateLimitBurst: envParsed(strconv.Atoi, EnvRateLimitBurst, DefaultRateLimitBurst),

		RequestTimeout: envParsed(time.ParseDuration, EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: envParsed(time.ParseDuration, EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: envParsed(strconv.Atoi, EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     envParsed(time.ParseDuration, EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    envParsed(time.ParseDuration, EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     envParsed(time.ParseDuration, EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: envParsed(time.ParseDuration, EnvShutdownTimeout, DefaultShutdownTimeout),

		CORSAllowedOrigins: envList(EnvCORSAllowedOrigins, DefaultCORSAllowedOrigins),
		CancellationCutoff: envParsed(time.ParseDuration, EnvCancellationCutoff, DefaultCancellationCutoff),

		Log: logger.New(logger.Config{
			Level:     env(EnvLogLevel, DefaultLogLevel),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

// SetRedis connects only when REDIS_ADDR is configured.
func (cfg *Config) SetRedis() {
	if !cfg.RedisEnabled() {
		return
	}
	cfg.Client.SetRedis(cfg.Log, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.MongoConnTimeout)
}

func (cfg *Config) RedisEnabled() bool {
	return cfg.RedisAddr != ""
}

func (cfg *Config) KafkaEnabled() bool {
	return len(cfg.KafkaBrokers) > 0
}

func (cfg *Config) Validate() error {
	var problems []string
	fail := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		fail("Port must be between 1 and 65535, got: %q", cfg.Port)
	}
	switch {
	case cfg.MongoURI == "":
		fail("MongoURI cannot be empty")
	case !mongoSchemeRe.MatchString(cfg.MongoURI):
		fail("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI))
	}
	if cfg.MongoDatabaseName == "" {
		fail("MongoDatabaseName cannot be empty")
	}
	if len(cfg.JWTSecret) < minJWTSecretLength {
		fail("JWTSecret must be at least %d characters", minJWTSecretLength)
	}
	if cfg.RedisDB < 0 {
		fail("RedisDB cannot be negative, got: %d", cfg.RedisDB)
	}
	if cfg.KafkaEnabled() && cfg.BookingEventsTopic == "" {
		fail("BookingEventsTopic cannot be empty when Kafka is enabled")
	}

	for name, d := range map[string]time.Duration{
		"MongoConnTimeout": cfg.MongoConnTimeout,
		"RequestTimeout":   cfg.RequestTimeout,
		"IdempotencyTTL":   cfg.IdempotencyTTL,
		"ReadTimeout":      cfg.ReadTimeout,
		"WriteTimeout":     cfg.WriteTimeout,
		"IdleTimeout":      cfg.IdleTimeout,
		"ShutdownTimeout":  cfg.ShutdownTimeout,
	} {
		if d <= 0 {
			fail("%s must be positive, got: %s", name, d)
		}
	}
	// Zero disables the cutoff entirely.
	if cfg.CancellationCutoff < 0 {
		fail("CancellationCutoff cannot be negative, got: %s", cfg.CancellationCutoff)
	}

	if cfg.RateLimitRPS <= 0 {
		fail("RateLimitRPS must be positive, got: %v", cfg.RateLimitRPS)
	}
	if cfg.RateLimitBurst <= 0 {
		fail("RateLimitBurst must be positive, got: %d", cfg.RateLimitBurst)
	}
	if cfg.MaxRequestSize <= 0 {
		fail("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize)
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		fail("CORSAllowedOrigins cannot be empty")
	}

	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	var b strings.Builder
	b.WriteString("configuration validation failed:")
	for i, p := range problems {
		fmt.Fprintf(&b, "\n  %d. %s", i+1, p)
	}
	return errors.New(b.String())
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"port", cfg.Port,
		"jwt_secret_set", cfg.JWTSecret != "",
		"redis_enabled", cfg.RedisEnabled(),
		"redis_db", cfg.RedisDB,
		"kafka_enabled", cfg.KafkaEnabled(),
		"kafka_brokers", cfg.KafkaBrokers,
		"booking_events_topic", cfg.BookingEventsTopic,
		"rate_limit_rps", cfg.RateLimitRPS,
		"rate_limit_burst", cfg.RateLimitBurst,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"cors_allowed_origins", cfg.CORSAllowedOrigins,
		"cancellation_cutoff", cfg.CancellationCutoff,
	)
}

var (
	mongoSchemeRe     = regexp.MustCompile(`^mongodb(\+srv)?://.+`)
	mongoCredentialRe = regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
)

func redactMongoURI(uri string) string {
	return mongoCredentialRe.ReplaceAllString(uri, "${1}***:***@")
}

func env(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// envParsed keeps the fallback when the value is present but malformed.
func envParsed[T any](parse func(string) (T, error), key string, fallback T) T {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	if parsed, err := parse(v); err == nil {
		return parsed
	}
	return fallback
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

func envList(key, fallback string) []string {
	var out []string
	for _, part := range strings.Split(env(key, fallback), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log)
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = 10
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
