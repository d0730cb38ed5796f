package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"StockPulse/pkg/util"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
	Backend struct {
		Type         string        `yaml:"type"` // kafka or clickhouse
		BatchSize    int           `yaml:"batch_size"`
		BatchTimeout time.Duration `yaml:"batch_timeout"`
	} `yaml:"backend"`
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
	MarketData struct {
		APIKey         string        `yaml:"api_key"`
		WebSocketURL   string        `yaml:"websocket_url"`
		Symbols        []string      `yaml:"symbols"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"market_data"`
	Models struct {
		ServiceURL string        `yaml:"service_url"`
		Timeout    time.Duration `yaml:"timeout"`
		Enabled    []string      `yaml:"enabled"` // transformer, lstm
	} `yaml:"models"`
	Predictor struct {
		MinConfidence float64       `yaml:"min_confidence"`
		MinBars       int           `yaml:"min_bars"`
		WindowBars    int           `yaml:"window_bars"`
		HistorySize   int           `yaml:"history_size"`
		AdapterBudget time.Duration `yaml:"adapter_budget"`
		MaxStaleness  time.Duration `yaml:"max_staleness"`
		State         struct {
			Type string `yaml:"type"` // file, redis, memory
			Path string `yaml:"path"` // for file store
			Key  string `yaml:"key"`  // for redis store
		} `yaml:"state"`
		Cache struct {
			ReportTTL time.Duration `yaml:"report_ttl"`
			BarsTTL   time.Duration `yaml:"bars_ttl"`
		} `yaml:"cache"`
	} `yaml:"predictor"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()

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

	if v := os.Getenv("MARKET_DATA_API_KEY"); v != "" {
		c.MarketData.APIKey = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.MarketData.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("MODEL_SERVICE_URL"); v != "" {
		c.Models.ServiceURL = v
	}
	c.Server.Port = util.ParseIntDefault(os.Getenv("SERVER_PORT"), c.Server.Port)
	c.Predictor.MinConfidence = util.ParseFloatDefault(os.Getenv("MIN_CONFIDENCE"), c.Predictor.MinConfidence)

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Predictor.MinConfidence == 0 {
		c.Predictor.MinConfidence = 0.6
	}
	if c.Predictor.MinBars == 0 {
		c.Predictor.MinBars = 20
	}
	if c.Predictor.WindowBars == 0 {
		c.Predictor.WindowBars = 250
	}
	if c.Predictor.HistorySize == 0 {
		c.Predictor.HistorySize = 1000
	}
	if c.Predictor.AdapterBudget == 0 {
		c.Predictor.AdapterBudget = 5 * time.Second
	}
	if c.Predictor.MaxStaleness == 0 {
		c.Predictor.MaxStaleness = 30 * 24 * time.Hour
	}
	if c.Predictor.State.Type == "" {
		c.Predictor.State.Type = "file"
	}
	if c.Predictor.State.Path == "" {
		c.Predictor.State.Path = "data/adaptive_state.json"
	}
	if c.Predictor.State.Key == "" {
		c.Predictor.State.Key = "stockpulse:adaptive_state"
	}
	if c.MarketData.ReconnectDelay == 0 {
		c.MarketData.ReconnectDelay = 5 * time.Second
	}
	if c.MarketData.PingInterval == 0 {
		c.MarketData.PingInterval = 20 * time.Second
	}
	if len(c.Models.Enabled) == 0 {
		c.Models.Enabled = []string{"transformer", "lstm"}
	}
	if c.Models.Timeout == 0 {
		c.Models.Timeout = 3 * time.Second
	}
	if c.Kafka.RequiredAcks == 0 {
		c.Kafka.RequiredAcks = -1
	}
	if c.Kafka.Compression == "" {
		c.Kafka.Compression = "snappy"
	}
	if c.Kafka.Producer.MaxAttempts == 0 {
		c.Kafka.Producer.MaxAttempts = 3
	}
	if c.Kafka.Producer.BatchSize == 0 {
		c.Kafka.Producer.BatchSize = 100
	}
	if c.Kafka.Producer.BatchBytes == 0 {
		c.Kafka.Producer.BatchBytes = 1 << 20
	}
	if c.Kafka.Producer.Linger == 0 {
		c.Kafka.Producer.Linger = time.Second
	}
	if c.Kafka.Producer.WriteTimeout == 0 {
		c.Kafka.Producer.WriteTimeout = 10 * time.Second
	}
	if c.Kafka.Producer.ReadTimeout == 0 {
		c.Kafka.Producer.ReadTimeout = 10 * time.Second
	}
	if c.Kafka.Consumer.GroupID == "" {
		c.Kafka.Consumer.GroupID = "stockpulse-ingest"
	}
	if c.Kafka.Consumer.Workers == 0 {
		c.Kafka.Consumer.Workers = 4
	}
	if c.Kafka.Consumer.BufferSize == 0 {
		c.Kafka.Consumer.BufferSize = 1000
	}
	if c.Kafka.Consumer.RetryMax == 0 {
		c.Kafka.Consumer.RetryMax = 3
	}
	if c.Kafka.Consumer.BackoffMin == 0 {
		c.Kafka.Consumer.BackoffMin = 100 * time.Millisecond
	}
	if c.Kafka.Consumer.BackoffMax == 0 {
		c.Kafka.Consumer.BackoffMax = 5 * time.Second
	}
	if c.Kafka.Consumer.MinBytes == 0 {
		c.Kafka.Consumer.MinBytes = 1 << 10
	}
	if c.Kafka.Consumer.MaxBytes == 0 {
		c.Kafka.Consumer.MaxBytes = 10 << 20
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Backend.Type == "" {
		return fmt.Errorf("backend.type is required")
	}
	if c.Backend.Type != "kafka" && c.Backend.Type != "clickhouse" {
		return fmt.Errorf("backend.type must be 'kafka' or 'clickhouse', got '%s'", c.Backend.Type)
	}
	if c.Models.ServiceURL == "" {
		return fmt.Errorf("models.service_url is required")
	}
	if c.Predictor.MinConfidence < 0 || c.Predictor.MinConfidence > 1 {
		return fmt.Errorf("predictor.min_confidence must be in [0,1]")
	}
	switch c.Predictor.State.Type {
	case "file", "redis", "memory":
	default:
		return fmt.Errorf("predictor.state.type must be 'file', 'redis' or 'memory', got '%s'", c.Predictor.State.Type)
	}
	if c.Predictor.State.Type == "redis" && !c.Redis.Enabled {
		return fmt.Errorf("predictor.state.type 'redis' requires redis.enabled")
	}
	return nil
}
