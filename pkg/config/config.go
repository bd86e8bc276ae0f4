package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"SignalPilot/pkg/logger"
)

type Config struct {
	Environment string        `yaml:"environment" default:"development" validate:"oneof=development staging production test"`
	Log         logger.Config `yaml:"log"`
	Server      Server        `yaml:"server"`
	Metrics     Metrics       `yaml:"metrics"`
	Trading     Trading       `yaml:"trading"`
	Strategy    Strategy      `yaml:"strategy"`
	Storage     Storage       `yaml:"storage"`
	Kafka       Kafka         `yaml:"kafka"`
	ClickHouse  ClickHouse    `yaml:"clickhouse"`
	Redis       Redis         `yaml:"redis"`
	Cache       Cache         `yaml:"cache"`
	Queue       Queue         `yaml:"queue"`
	Telegram    Telegram      `yaml:"telegram"`
	Notify      Notify        `yaml:"notify"`
	RateLimit   RateLimit     `yaml:"rate_limit"`
}

type Server struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	SlowRequest     time.Duration `yaml:"slow_request" default:"2s"`
}

type Metrics struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"/metrics"`
}

// Trading holds the clock settings of the live session and the day limits of the simulator.
type Trading struct {
	Timezone            string        `yaml:"timezone" default:"America/Sao_Paulo"`
	CollectionStartHour int           `yaml:"collection_start_hour" default:"16" validate:"gte=0,lte=23"`
	CollectionEndHour   int           `yaml:"collection_end_hour" default:"23" validate:"gte=0,lte=23,gtefield=CollectionStartHour"`
	StartHour           int           `yaml:"start_hour" default:"17" validate:"gte=0,lte=23"`
	EndHour             int           `yaml:"end_hour" default:"23" validate:"gte=0,lte=23,gtefield=StartHour"`
	DailyTarget         float64       `yaml:"daily_target" default:"12" validate:"gt=0"`
	InfinityStop        float64       `yaml:"infinity_stop" default:"-49" validate:"lt=0"`
	MartingaleMaxLosses int           `yaml:"martingale_max_losses" default:"3" validate:"gte=1"`
	BufferSize          int           `yaml:"buffer_size" default:"200" validate:"gte=10"`
	MinHourSignals      int           `yaml:"min_hour_signals" default:"5" validate:"gte=1"`
	AnalysisMinute      int           `yaml:"analysis_minute" default:"59" validate:"gte=0,lte=59"`
	CheckInterval       time.Duration `yaml:"check_interval" default:"30s"`
}

// Location resolves the trading timezone.
func (t Trading) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return nil, fmt.Errorf("trading timezone %q: %w", t.Timezone, err)
	}
	return loc, nil
}

// Strategy holds the decision policy thresholds. They may be hot-reloaded.
type Strategy struct {
	LossWindow        time.Duration `yaml:"loss_window" default:"10m"`
	MinOperations     int           `yaml:"min_operations" default:"10" validate:"gte=1"`
	G2PauseRate       float64       `yaml:"g2_pause_rate" default:"30" validate:"gt=0,lte=100"`
	G1MartingaleRate  float64       `yaml:"g1_martingale_rate" default:"65" validate:"gt=0,lte=100"`
	FirstInfinityRate float64       `yaml:"first_infinity_rate" default:"60" validate:"gt=0,lte=100"`
	ChangeThreshold   float64       `yaml:"change_threshold" default:"70" validate:"gt=0,lte=100"`
	HistorySize       int           `yaml:"history_size" default:"500" validate:"gte=1"`
}

type Storage struct {
	Backend      string   `yaml:"backend" default:"csv" validate:"oneof=csv postgres clickhouse both kafka"`
	DataDir      string   `yaml:"data_dir" default:"data"`
	Postgres     Postgres `yaml:"postgres"`
	ArchiveKafka bool     `yaml:"archive_to_kafka"`
	// store behind the signal topic consumer when Backend is kafka
	KafkaSink string `yaml:"kafka_sink" default:"csv" validate:"oneof=csv postgres clickhouse both"`
}

type Postgres struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns" default:"10"`
	MaxIdleConns    int           `yaml:"max_idle_conns" default:"5"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" default:"30m"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout" default:"5s"`
}

type Kafka struct {
	Brokers       []string `yaml:"brokers"`
	SignalsTopic  string   `yaml:"signals_topic" default:"signals.raw"`
	AnalysisTopic string   `yaml:"analysis_topic" default:"signals.analysis"`
	LogsTopic     string   `yaml:"logs_topic" default:"signalpilot.logs"`
	RequiredAcks  int      `yaml:"required_acks" default:"-1"`
	Compression   string   `yaml:"compression" default:"snappy" validate:"oneof=gzip snappy lz4 zstd"`
	Producer      struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		Linger       time.Duration `yaml:"linger" default:"200ms"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
	} `yaml:"producer"`
	Consumer struct {
		Enabled    bool          `yaml:"enabled"`
		GroupID    string        `yaml:"group_id" default:"signalpilot"`
		Workers    int           `yaml:"workers" default:"2" validate:"gte=1"`
		BufferSize int           `yaml:"buffer_size" default:"256"`
		RetryMax   int           `yaml:"retry_max" default:"3"`
		BackoffMin time.Duration `yaml:"backoff_min" default:"200ms"`
		BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
		DLQTopic   string        `yaml:"dlq_topic" default:"signals.dlq"`
	} `yaml:"consumer"`
}

type ClickHouse struct {
	Host         string        `yaml:"host" default:"localhost"`
	Port         int           `yaml:"port" default:"9000"`
	Database     string        `yaml:"database" default:"signalpilot"`
	User         string        `yaml:"user" default:"default"`
	Password     string        `yaml:"password"`
	UseHTTP      bool          `yaml:"use_http"`
	AsyncInsert  bool          `yaml:"async_insert"`
	DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout  time.Duration `yaml:"read_timeout" default:"30s"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"30s"`
}

type Redis struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr" default:"localhost:6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix" default:"signalpilot"`
}

type Cache struct {
	ConditionsTTL time.Duration `yaml:"conditions_ttl" default:"5m"`
	SimulationTTL time.Duration `yaml:"simulation_ttl" default:"24h"`
	LockTTL       time.Duration `yaml:"lock_ttl" default:"2m"`
	MemoryItems   int           `yaml:"memory_items" default:"1000"`
}

type Queue struct {
	Name       string        `yaml:"name" default:"simulations"`
	Workers    int           `yaml:"workers" default:"2" validate:"gte=1"`
	MaxRetries int           `yaml:"max_retries" default:"3"`
	JobTimeout time.Duration `yaml:"job_timeout" default:"2m"`
}

type Telegram struct {
	Mode           string        `yaml:"mode" default:"bot" validate:"oneof=bot relay off"`
	BotToken       string        `yaml:"bot_token"`
	Group          string        `yaml:"group"`
	APIURL         string        `yaml:"api_url" default:"https://api.telegram.org"`
	RelayURL       string        `yaml:"relay_url"`
	PollTimeout    time.Duration `yaml:"poll_timeout" default:"30s"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
	PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
}

type Notify struct {
	WebhookURL      string        `yaml:"webhook_url" validate:"omitempty,url"`
	ChatID          string        `yaml:"chat_id"`
	Timeout         time.Duration `yaml:"timeout" default:"5s"`
	BreakerFailures uint32        `yaml:"breaker_failures" default:"5"`
	BreakerCooldown time.Duration `yaml:"breaker_cooldown" default:"30s"`
}

type RateLimit struct {
	PerSecond float64 `yaml:"per_second" default:"5"`
	Burst     int     `yaml:"burst" default:"10"`
}

// Default returns a configuration made only of defaults.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &c
}

// Load reads and parses a YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML (or defaults when path is empty) and
// overrides it with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c := Default()
	if path != "" {
		var err error
		if c, err = Load(path); err != nil {
			return nil, err
		}
	}
	c.ApplyEnv(os.LookupEnv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides fields from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(key string, fn func(string)) {
		if v, ok := lookup(key); ok && v != "" {
			fn(v)
		}
	}
	set("TG_BOT_TOKEN", func(v string) { c.Telegram.BotToken = v })
	set("TG_GROUP", func(v string) { c.Telegram.Group = v })
	set("PG_DSN", func(v string) { c.Storage.Postgres.DSN = v })
	set("LOG_LEVEL", func(v string) { c.Log.Level = strings.ToLower(v) })
	set("BACKEND", func(v string) { c.Storage.Backend = strings.ToLower(v) })
	set("KAFKA_BROKERS", func(v string) { c.Kafka.Brokers = splitList(v) })
	set("KAFKA_TOPIC", func(v string) { c.Kafka.SignalsTopic = v })
	set("REDIS_ADDR", func(v string) {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	})
	set("TRADING_TIMEZONE", func(v string) { c.Trading.Timezone = v })
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the cross-field requirements of the chosen backends.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if _, err := c.Trading.Location(); err != nil {
		return err
	}
	switch c.Storage.Backend {
	case "postgres", "both":
		if c.Storage.Postgres.DSN == "" {
			return errors.New("storage.postgres.dsn is required for backend " + c.Storage.Backend)
		}
	case "kafka":
		if len(c.Kafka.Brokers) == 0 {
			return errors.New("kafka.brokers is required for backend kafka")
		}
		if (c.Storage.KafkaSink == "postgres" || c.Storage.KafkaSink == "both") && c.Storage.Postgres.DSN == "" {
			return errors.New("storage.postgres.dsn is required for kafka sink " + c.Storage.KafkaSink)
		}
	}
	if c.Kafka.Consumer.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers is required when the consumer is enabled")
	}
	if c.Telegram.Mode == "relay" && c.Telegram.RelayURL == "" {
		return errors.New("telegram.relay_url is required in relay mode")
	}
	return nil
}
