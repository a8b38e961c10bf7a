package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Log struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Data struct {
		Backend       string        `yaml:"backend" default:"file"`
		Root          string        `yaml:"root" default:"data"`
		BaseURL       string        `yaml:"base_url"`
		Timeout       time.Duration `yaml:"timeout" default:"15s"`
		Participants  []string      `yaml:"participants"`
		MealMode      string        `yaml:"meal_mode" default:"aggregated"`
		SignalBackend string        `yaml:"signal_backend" default:"csv"`
	} `yaml:"data"`
	Scoring struct {
		CalorieScale       float64 `yaml:"calorie_scale" default:"1000"`
		SugarScale         float64 `yaml:"sugar_scale" default:"100"`
		ProteinScale       float64 `yaml:"protein_scale" default:"100"`
		DefaultWindowHours int     `yaml:"default_window_hours" default:"2"`
		MaxWindowHours     int     `yaml:"max_window_hours" default:"24"`
	} `yaml:"scoring"`
	Quiz struct {
		Participant string        `yaml:"participant" default:"1"`
		QuestionTTL time.Duration `yaml:"question_ttl" default:"10m"`
	} `yaml:"quiz"`
	Store struct {
		Backend string `yaml:"backend" default:"memory"`
	} `yaml:"store"`
	Redis struct {
		Host         string `yaml:"host" default:"localhost"`
		Port         int    `yaml:"port" default:"6379"`
		Password     string `yaml:"password"`
		DB           int    `yaml:"db"`
		PoolSize     int    `yaml:"pool_size" default:"10"`
		MinIdleConns int    `yaml:"min_idle_conns" default:"2"`
		Prefix       string `yaml:"prefix" default:"mealsignal"`
	} `yaml:"redis"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"mealsignal"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
		MaxOpenConns     int           `yaml:"max_open_conns" default:"10"`
		MaxIdleConns     int           `yaml:"max_idle_conns" default:"5"`
		ConnMaxLifetime  time.Duration `yaml:"conn_max_lifetime" default:"5m"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		EventsTopic  string   `yaml:"events_topic" default:"mealsignal.events"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Ingest struct {
			Enabled      bool          `yaml:"enabled"`
			Topic        string        `yaml:"topic" default:"mealsignal.biosignals"`
			GroupID      string        `yaml:"group_id" default:"mealsignal-ingest"`
			Workers      int           `yaml:"workers" default:"2"`
			BufferSize   int           `yaml:"buffer_size" default:"256"`
			RetryMax     int           `yaml:"retry_max" default:"3"`
			BackoffMin   time.Duration `yaml:"backoff_min" default:"50ms"`
			BackoffMax   time.Duration `yaml:"backoff_max" default:"2s"`
			DLQTopic     string        `yaml:"dlq_topic"`
			MinBytes     int           `yaml:"min_bytes" default:"1000"`
			MaxBytes     int           `yaml:"max_bytes" default:"10000000"`
			BatchSize    int           `yaml:"batch_size" default:"500"`
			BatchTimeout time.Duration `yaml:"batch_timeout" default:"2s"`
		} `yaml:"ingest"`
	} `yaml:"kafka"`
	RateLimit struct {
		Capacity     float64 `yaml:"capacity" default:"10"`
		RefillPerSec float64 `yaml:"refill_per_sec" default:"5"`
	} `yaml:"ratelimit"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes, fills defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	c.applyEnv(os.Getenv)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("DATA_ROOT"); v != "" {
		c.Data.Root = v
	}
	if v := getenv("DATA_BASE_URL"); v != "" {
		c.Data.BaseURL = v
		c.Data.Backend = "http"
	}
	if v := getenv("PARTICIPANTS"); v != "" {
		c.Data.Participants = strings.Split(v, ",")
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		host, port, ok := strings.Cut(v, ":")
		c.Redis.Host = host
		if p, err := strconv.Atoi(port); ok && err == nil {
			c.Redis.Port = p
		}
		c.Store.Backend = "redis"
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	switch c.Data.Backend {
	case "file":
		if c.Data.Root == "" {
			return fmt.Errorf("data.root is required for the file backend")
		}
	case "http":
		if c.Data.BaseURL == "" {
			return fmt.Errorf("data.base_url is required for the http backend")
		}
	default:
		return fmt.Errorf("data.backend must be 'file' or 'http', got '%s'", c.Data.Backend)
	}
	switch c.Data.MealMode {
	case "raw", "aggregated", "grouped":
	default:
		return fmt.Errorf("data.meal_mode must be one of raw, aggregated, grouped, got '%s'", c.Data.MealMode)
	}
	switch c.Data.SignalBackend {
	case "csv":
	case "clickhouse":
		if c.ClickHouse.Host == "" {
			return fmt.Errorf("clickhouse.host is required when data.signal_backend is 'clickhouse'")
		}
	default:
		return fmt.Errorf("data.signal_backend must be 'csv' or 'clickhouse', got '%s'", c.Data.SignalBackend)
	}
	if len(c.Data.Participants) == 0 {
		return fmt.Errorf("data.participants cannot be empty")
	}
	if c.Scoring.CalorieScale <= 0 || c.Scoring.SugarScale <= 0 || c.Scoring.ProteinScale <= 0 {
		return fmt.Errorf("scoring scales must be positive")
	}
	if c.Scoring.DefaultWindowHours < 0 || c.Scoring.DefaultWindowHours > c.Scoring.MaxWindowHours {
		return fmt.Errorf("scoring.default_window_hours must be within [0, %d]", c.Scoring.MaxWindowHours)
	}
	if c.Store.Backend != "memory" && c.Store.Backend != "redis" {
		return fmt.Errorf("store.backend must be 'memory' or 'redis', got '%s'", c.Store.Backend)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Kafka.Ingest.Enabled && (!c.Kafka.Enabled || c.ClickHouse.Host == "") {
		return fmt.Errorf("kafka.ingest requires kafka.enabled and clickhouse.host")
	}
	return nil
}

// ClickHouseEnabled reports whether a ClickHouse connection is needed.
func (c *Config) ClickHouseEnabled() bool {
	return c.Data.SignalBackend == "clickhouse" || c.Kafka.Ingest.Enabled
}
