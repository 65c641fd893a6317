package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/yungbote/progressfacts/internal/data/db"
	"github.com/yungbote/progressfacts/internal/platform/envutil"
	"github.com/yungbote/progressfacts/internal/platform/logger"
	"github.com/yungbote/progressfacts/internal/progress/throttle"
)

const configFileEnv = "PROGRESS_CONFIG_FILE"

type ThrottleConfig struct {
	MinSpacingMS   int  `yaml:"minSpacingMs" validate:"gte=0"`
	DedupeWindowMS int  `yaml:"dedupeWindowMs" validate:"gte=0"`
	SuppressMS     int  `yaml:"suppressMs" validate:"gte=1000"`
	QueueSize      int  `yaml:"queueSize" validate:"gte=1,lte=65536"`
	WritesDisabled bool `yaml:"writesDisabled"`
}

func (c ThrottleConfig) Throttle() throttle.Config {
	return throttle.Config{
		MinSpacing:     time.Duration(c.MinSpacingMS) * time.Millisecond,
		DedupeWindow:   time.Duration(c.DedupeWindowMS) * time.Millisecond,
		SuppressFor:    time.Duration(c.SuppressMS) * time.Millisecond,
		QueueSize:      c.QueueSize,
		WritesDisabled: c.WritesDisabled,
	}
}

type OtelConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	Headers     string  `yaml:"headers"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sampleRatio" validate:"gte=0,lte=1"`
}

type MetricsConfig struct {
	Enabled         bool   `yaml:"enabled"`
	SLOEnabled      bool   `yaml:"sloEnabled"`
	SLOAlertWebhook string `yaml:"sloAlertWebhook" validate:"omitempty,url"`
}

type Config struct {
	LogMode     string `yaml:"logMode" validate:"required"`
	Port        string `yaml:"port" validate:"required,numeric"`
	ServiceName string `yaml:"serviceName" validate:"required"`
	Environment string `yaml:"environment"`

	StoreDriver string            `yaml:"storeDriver" validate:"oneof=postgres sqlite badger memory"`
	Postgres    db.PostgresConfig `yaml:"postgres"`
	SQLitePath  string            `yaml:"sqlitePath" validate:"required_if=StoreDriver sqlite"`
	// BadgerPath empty runs badger in memory.
	BadgerPath     string `yaml:"badgerPath"`
	TxnMaxAttempts int    `yaml:"txnMaxAttempts" validate:"gte=1,lte=20"`

	MirrorDriver      string `yaml:"mirrorDriver" validate:"oneof=redis store none"`
	RedisAddr         string `yaml:"redisAddr" validate:"required_if=MirrorDriver redis"`
	RedisMirrorPrefix string `yaml:"redisMirrorPrefix"`

	JWTSecretKey   string   `yaml:"jwtSecretKey"`
	AllowedOrigins []string `yaml:"allowedOrigins"`

	Throttle ThrottleConfig `yaml:"throttle"`
	Otel     OtelConfig     `yaml:"otel"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

func defaultConfig() Config {
	d := throttle.DefaultConfig()
	return Config{
		LogMode:     "development",
		Port:        "8080",
		ServiceName: "progressd",
		Environment: "development",
		StoreDriver: "memory",
		Postgres: db.PostgresConfig{
			Host: "localhost",
			Port: "5432",
			User: "postgres",
			Name: "progress",
		},
		TxnMaxAttempts:    5,
		MirrorDriver:      "none",
		RedisMirrorPrefix: "progressFacts",
		Throttle: ThrottleConfig{
			MinSpacingMS:   int(d.MinSpacing / time.Millisecond),
			DedupeWindowMS: int(d.DedupeWindow / time.Millisecond),
			SuppressMS:     int(d.SuppressFor / time.Millisecond),
			QueueSize:      d.QueueSize,
		},
		Otel:    OtelConfig{SampleRatio: 1},
		Metrics: MetricsConfig{Enabled: true, SLOEnabled: true},
	}
}

// LoadConfig layers defaults, the optional YAML file named by
// PROGRESS_CONFIG_FILE, then environment variables, and validates the result.
func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := defaultConfig()
	if path := envutil.String(configFileEnv, ""); path != "" {
		if err := overlayFile(&cfg, path); err != nil {
			return Config{}, err
		}
		log.Info("Loaded config file", "path", path)
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func overlayFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.LogMode = envutil.String("LOG_MODE", cfg.LogMode)
	cfg.Port = envutil.String("PORT", cfg.Port)
	cfg.ServiceName = envutil.String("OTEL_SERVICE_NAME", cfg.ServiceName)
	cfg.Environment = envutil.String("APP_ENV", cfg.Environment)

	cfg.StoreDriver = strings.ToLower(envutil.String("STORE_DRIVER", cfg.StoreDriver))
	cfg.Postgres.Host = envutil.String("POSTGRES_HOST", cfg.Postgres.Host)
	cfg.Postgres.Port = envutil.String("POSTGRES_PORT", cfg.Postgres.Port)
	cfg.Postgres.User = envutil.String("POSTGRES_USER", cfg.Postgres.User)
	cfg.Postgres.Password = envutil.String("POSTGRES_PASSWORD", cfg.Postgres.Password)
	cfg.Postgres.Name = envutil.String("POSTGRES_NAME", cfg.Postgres.Name)
	cfg.SQLitePath = envutil.String("SQLITE_PATH", cfg.SQLitePath)
	cfg.BadgerPath = envutil.String("BADGER_PATH", cfg.BadgerPath)
	cfg.TxnMaxAttempts = envutil.Int("TXN_MAX_ATTEMPTS", cfg.TxnMaxAttempts)

	cfg.MirrorDriver = strings.ToLower(envutil.String("MIRROR_DRIVER", cfg.MirrorDriver))
	cfg.RedisAddr = envutil.String("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisMirrorPrefix = envutil.String("REDIS_MIRROR_PREFIX", cfg.RedisMirrorPrefix)

	cfg.JWTSecretKey = envutil.String("JWT_SECRET_KEY", cfg.JWTSecretKey)
	if raw := envutil.String("CORS_ALLOWED_ORIGINS", ""); raw != "" {
		cfg.AllowedOrigins = splitList(raw)
	}

	cfg.Throttle.MinSpacingMS = envutil.Int("THROTTLE_MIN_SPACING_MS", cfg.Throttle.MinSpacingMS)
	cfg.Throttle.DedupeWindowMS = envutil.Int("THROTTLE_DEDUPE_WINDOW_MS", cfg.Throttle.DedupeWindowMS)
	cfg.Throttle.SuppressMS = envutil.Int("THROTTLE_SUPPRESS_MS", cfg.Throttle.SuppressMS)
	cfg.Throttle.QueueSize = envutil.Int("THROTTLE_QUEUE_SIZE", cfg.Throttle.QueueSize)
	cfg.Throttle.WritesDisabled = envutil.Bool("WRITES_DISABLED", cfg.Throttle.WritesDisabled)

	cfg.Otel.Enabled = envutil.Bool("OTEL_ENABLED", cfg.Otel.Enabled)
	cfg.Otel.Endpoint = envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Otel.Endpoint)
	cfg.Otel.Headers = envutil.String("OTEL_EXPORTER_OTLP_HEADERS", cfg.Otel.Headers)
	cfg.Otel.Insecure = envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", cfg.Otel.Insecure)
	cfg.Otel.SampleRatio = envutil.Float("OTEL_SAMPLER_RATIO", cfg.Otel.SampleRatio)

	cfg.Metrics.Enabled = envutil.Bool("METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Metrics.SLOEnabled = envutil.Bool("SLO_ENABLED", cfg.Metrics.SLOEnabled)
	cfg.Metrics.SLOAlertWebhook = envutil.String("SLO_ALERT_WEBHOOK", cfg.Metrics.SLOAlertWebhook)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c Config) Addr() string {
	return ":" + c.Port
}
