package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

type Config struct {
	Environment string `yaml:"environment" default:"production" validate:"required"`

	Pipeline struct {
		OutputMode      string        `yaml:"output_mode" default:"training" validate:"oneof=training backup"`
		HistoryOnly     bool          `yaml:"history_only"`
		StartDate       string        `yaml:"start_date" default:"2020-01-01" validate:"required"`
		GracePeriod     time.Duration `yaml:"grace_period" default:"120h"`
		RefreshData     bool          `yaml:"refresh_data"`
		IgnoreGroups    []string      `yaml:"ignore_groups"`
		StockSkipTables []string      `yaml:"stock_skip_tables"`
		Workers         int           `yaml:"workers" default:"4" validate:"gte=1"`
	} `yaml:"pipeline"`

	Server struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`

	Logging struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"logging"`

	Sink struct {
		Backend  string `yaml:"backend" default:"clickhouse" validate:"oneof=clickhouse kafka"`
		Database string `yaml:"database" default:"optforge"`
	} `yaml:"sink"`

	ClickHouse struct {
		Host         string        `yaml:"host" default:"localhost"`
		Port         int           `yaml:"port" default:"9000"`
		Database     string        `yaml:"database" default:"default"`
		User         string        `yaml:"user" default:"default"`
		Password     string        `yaml:"password"`
		DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"30s"`
	} `yaml:"clickhouse"`

	Kafka struct {
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic" default:"optforge.features"`
		RequiredAcks int           `yaml:"required_acks" default:"-1"`
		Compression  string        `yaml:"compression" default:"gzip"`
		BatchSize    int           `yaml:"batch_size" default:"500"`
		BatchTimeout time.Duration `yaml:"batch_timeout" default:"1s"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	} `yaml:"kafka"`

	Rates struct {
		BaseURL string        `yaml:"base_url" validate:"omitempty,url"`
		Timeout time.Duration `yaml:"timeout" default:"15s"`
	} `yaml:"rates"`

	Dividends struct {
		BaseURL string        `yaml:"base_url"`
		APIKey  string        `yaml:"api_key"`
		Timeout time.Duration `yaml:"timeout" default:"15s"`
	} `yaml:"dividends"`

	Cache struct {
		TTL   time.Duration `yaml:"ttl" default:"168h"`
		Redis struct {
			Enabled  bool   `yaml:"enabled"`
			Addr     string `yaml:"addr" default:"localhost:6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`
}

// Load reads, defaults, parses and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
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

	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("RATES_URL"); v != "" {
		c.Rates.BaseURL = v
	}
	if v := os.Getenv("DIVIDENDS_API_KEY"); v != "" {
		c.Dividends.APIKey = v
	}
	if v := os.Getenv("OUTPUT_MODE"); v != "" {
		c.Pipeline.OutputMode = v
	}
	// Overrides can change cross-field requirements, e.g. switching the
	// output mode, so the merged config is validated again.
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

// Validate checks structural validity and cross-field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if _, err := c.StartDate(); err != nil {
		return err
	}
	if c.Sink.Backend == "kafka" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers required when sink.backend is kafka")
	}
	// Backup mode never touches the rate feed, so the URL is only required
	// for training runs.
	if c.Pipeline.OutputMode == "training" && c.Rates.BaseURL == "" {
		return fmt.Errorf("rates.base_url required when pipeline.output_mode is training")
	}
	return nil
}

// StartDate parses the configured pipeline start date.
func (c *Config) StartDate() (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", c.Pipeline.StartDate, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("pipeline.start_date: %w", err)
	}
	return t, nil
}
