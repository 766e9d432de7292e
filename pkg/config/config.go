package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// WatchEntry is one descriptor polled by the collector. AdminLevel is a
// pointer so an omitted level is distinguishable from level 0.
type WatchEntry struct {
	Indicator  string `yaml:"indicator"`
	AdminLevel *int   `yaml:"admin_level"`
	Taxonomy   string `yaml:"taxonomy"`
	Category   string `yaml:"category"`
	Period     string `yaml:"period"`
}

type Config struct {
	Environment string `yaml:"environment"`
	Log         struct {
		Level   string `yaml:"level"`
		Format  string `yaml:"format"`
		Output  string `yaml:"output"`
		Collect struct {
			Enabled        bool          `yaml:"enabled"`
			Topic          string        `yaml:"topic"`
			Interval       time.Duration `yaml:"interval"`
			CountThreshold int           `yaml:"count_threshold"`
		} `yaml:"collect"`
	} `yaml:"log"`
	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		SlowThreshold   time.Duration `yaml:"slow_threshold"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Backend struct {
		Type         string        `yaml:"type"`
		BatchSize    int           `yaml:"batch_size"`
		BatchTimeout time.Duration `yaml:"batch_timeout"`
		Persist      bool          `yaml:"persist_queries"`
	} `yaml:"backend"`
	Storage struct {
		Type string `yaml:"type"`
	} `yaml:"storage"`
	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled"`
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	UDA struct {
		BaseURL       string        `yaml:"base_url"`
		IndicatorPath string        `yaml:"indicator_path"`
		APIKey        string        `yaml:"api_key"`
		AuthHeader    string        `yaml:"auth_header"`
		AuthScheme    string        `yaml:"auth_scheme"`
		UserAgent     string        `yaml:"user_agent"`
		Timeout       time.Duration `yaml:"timeout"`
		RetryAttempts int           `yaml:"retry_attempts"`
		RateLimit     struct {
			Capacity     float64 `yaml:"capacity"`
			RefillPerSec float64 `yaml:"refill_per_sec"`
		} `yaml:"rate_limit"`
	} `yaml:"uda"`
	Cache struct {
		Type          string        `yaml:"type"`
		TTL           time.Duration `yaml:"ttl"`
		MemoryMaxSize int           `yaml:"memory_max_size"`
		Redis         struct {
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	// Queue reuses cache.redis for its connection.
	Queue struct {
		Enabled    bool          `yaml:"enabled"`
		Workers    int           `yaml:"workers"`
		RetryLimit int           `yaml:"retry_limit"`
		RetryDelay time.Duration `yaml:"retry_delay"`
		Prefix     string        `yaml:"prefix"`
	} `yaml:"queue"`
	Collector struct {
		Enabled     bool          `yaml:"enabled"`
		Interval    time.Duration `yaml:"interval"`
		MinInterval time.Duration `yaml:"min_interval"`
		BufferSize  int           `yaml:"buffer_size"`
		Watchlist   []WatchEntry  `yaml:"watchlist"`
	} `yaml:"collector"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	c, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := read(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("UDA_API_KEY"); v != "" {
		c.UDA.APIKey = v
	}
	if v := os.Getenv("UDA_BASE_URL"); v != "" {
		c.UDA.BaseURL = v
	}
	if v := os.Getenv("BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := os.Getenv("STORAGE"); v != "" {
		c.Storage.Type = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func read(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Backend.Type == "" {
		c.Backend.Type = "storage"
	}
	if c.Storage.Type == "" {
		c.Storage.Type = "sqlite"
	}
	if c.SQLite.Path == "" {
		c.SQLite.Path = "data/urbanpull.db"
	}
	if c.UDA.IndicatorPath == "" {
		c.UDA.IndicatorPath = "indicator"
	}
	if c.UDA.AuthHeader == "" {
		c.UDA.AuthHeader = "Authorization"
	}
	if c.UDA.AuthScheme == "" {
		c.UDA.AuthScheme = "Token"
	}
	if c.UDA.Timeout == 0 {
		c.UDA.Timeout = 20 * time.Second
	}
	if c.UDA.RetryAttempts == 0 {
		c.UDA.RetryAttempts = 3
	}
	if c.Cache.Type == "" {
		c.Cache.Type = "memory"
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 15 * time.Minute
	}
	if c.Cache.Redis.Host == "" {
		c.Cache.Redis.Host = "localhost"
	}
	if c.Cache.Redis.Port == 0 {
		c.Cache.Redis.Port = 6379
	}
	if c.Queue.Workers == 0 {
		c.Queue.Workers = 2
	}
	if c.Queue.RetryDelay == 0 {
		c.Queue.RetryDelay = 30 * time.Second
	}
	if c.Collector.Interval == 0 {
		c.Collector.Interval = time.Hour
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Backend.Type != "kafka" && c.Backend.Type != "storage" {
		return fmt.Errorf("backend.type must be 'kafka' or 'storage', got '%s'", c.Backend.Type)
	}
	if c.Storage.Type != "sqlite" && c.Storage.Type != "clickhouse" {
		return fmt.Errorf("storage.type must be 'sqlite' or 'clickhouse', got '%s'", c.Storage.Type)
	}
	if c.Backend.Type == "kafka" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when backend.type is kafka")
	}
	if c.Kafka.Consumer.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka.consumer.enabled is true")
	}
	switch c.Cache.Type {
	case "memory", "redis", "layered":
	default:
		return fmt.Errorf("cache.type must be 'memory', 'redis' or 'layered', got '%s'", c.Cache.Type)
	}
	if c.UDA.BaseURL == "" {
		return fmt.Errorf("uda.base_url is required")
	}
	if c.UDA.APIKey == "" {
		return fmt.Errorf("uda.api_key is required")
	}
	for i, w := range c.Collector.Watchlist {
		if w.Indicator == "" {
			return fmt.Errorf("collector.watchlist[%d].indicator is required", i)
		}
		if w.AdminLevel == nil {
			return fmt.Errorf("collector.watchlist[%d].admin_level is required", i)
		}
		if w.Taxonomy != "" && w.Category != "" && w.Taxonomy != w.Category {
			return fmt.Errorf("collector.watchlist[%d]: taxonomy and category differ", i)
		}
	}
	return nil
}
