package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Log         struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"console" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Server struct {
		Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		CORSOrigins     []string      `yaml:"cors_origins"`
		RateLimit       struct {
			PerSecond float64 `yaml:"per_second" default:"2" validate:"gt=0"`
			Burst     int     `yaml:"burst" default:"5" validate:"gte=1"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Regime   RegimeConfig   `yaml:"regime"`
	Policy   PolicyConfig   `yaml:"policy"`
	Backtest BacktestConfig `yaml:"backtest"`
	Data     struct {
		Source       string        `yaml:"source" default:"csv" validate:"oneof=clickhouse csv yahoo"`
		CSVDir       string        `yaml:"csv_dir" default:"data"`
		Timeframe    string        `yaml:"timeframe" default:"1h" validate:"oneof=5m 15m 1h 1d"`
		Days         int           `yaml:"days" default:"730" validate:"gte=1,lte=730"`
		YahooURL     string        `yaml:"yahoo_url" default:"https://query1.finance.yahoo.com" validate:"url"`
		FetchTimeout time.Duration `yaml:"fetch_timeout" default:"30s"`
	} `yaml:"data"`
	Watchlist struct {
		Symbols []string `yaml:"symbols"`
	} `yaml:"watchlist"`
	Jobs struct {
		Workers    int           `yaml:"workers" default:"2" validate:"gte=1,lte=64"`
		QueueSize  int           `yaml:"queue_size" default:"100" validate:"gte=1"`
		RetryLimit int           `yaml:"retry_limit" default:"2" validate:"gte=0"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"10s"`
		StatusTTL  time.Duration `yaml:"status_ttl" default:"24h"`
		Lease      time.Duration `yaml:"lease" default:"10m"`
	} `yaml:"jobs"`
	Kafka struct {
		Enabled      bool          `yaml:"enabled"`
		Brokers      []string      `yaml:"brokers"`
		ResultsTopic string        `yaml:"results_topic" default:"regimetrader.backtest.results"`
		TradesTopic  string        `yaml:"trades_topic" default:"regimetrader.backtest.trades"`
		RequiredAcks int           `yaml:"required_acks" default:"-1"`
		Compression  string        `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"regimetrader"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
		Breaker          struct {
			MaxFailures uint32        `yaml:"max_failures" default:"5"`
			OpenTimeout time.Duration `yaml:"open_timeout" default:"30s"`
		} `yaml:"breaker"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled   bool          `yaml:"enabled"`
		Host      string        `yaml:"host" default:"localhost"`
		Port      int           `yaml:"port" default:"6379"`
		Password  string        `yaml:"password"`
		DB        int           `yaml:"db"`
		Prefix    string        `yaml:"prefix" default:"regimetrader"`
		ResultTTL time.Duration `yaml:"result_ttl" default:"15m"`
	} `yaml:"redis"`
}

// RegimeConfig configures the hidden Markov regime model.
type RegimeConfig struct {
	States         int     `yaml:"states" default:"7" validate:"gte=2,lte=32"`
	CovarianceType string  `yaml:"covariance_type" default:"diag" validate:"eq=diag"`
	Iterations     int     `yaml:"n_iter" default:"1000" validate:"gte=1"`
	Tolerance      float64 `yaml:"tol" default:"0.01" validate:"gte=0"`
	Seed           int64   `yaml:"seed" default:"42"`
	MinSamples     int     `yaml:"min_samples" default:"100" validate:"gte=1"`
}

// PolicyConfig holds the confirmation-vote thresholds.
type PolicyConfig struct {
	RSIMax        float64 `yaml:"rsi_max" default:"95"`
	VolatilityMax float64 `yaml:"volatility_max" default:"15"`
	ADXMin        float64 `yaml:"adx_min" default:"15"`
	MinConditions int     `yaml:"min_conditions" default:"7" validate:"gte=0,lte=8"`
	// EnforceVote gates entries on MinConditions. Off by default: the vote is advisory
	// until product signs off on changing entry behaviour.
	EnforceVote bool `yaml:"enforce_vote"`
}

// BacktestConfig holds the simulation parameters.
type BacktestConfig struct {
	InitialCapital float64       `yaml:"initial_capital" default:"2000" validate:"gt=0"`
	Leverage       float64       `yaml:"leverage" default:"2.5" validate:"gte=1"`
	Cooldown       time.Duration `yaml:"cooldown" default:"48h" validate:"gte=0"`
	SampleEvery    int           `yaml:"sample_every" default:"24" validate:"gte=1"`
	Workers        int           `yaml:"workers" default:"4" validate:"gte=1,lte=64"`
}

var validate = validator.New()

// Default returns a config populated only from `default` tags.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &c
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes on top of the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
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

	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Watchlist.Symbols = splitList(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		host, port, ok := strings.Cut(v, ":")
		c.Redis.Host = host
		if ok {
			if p, err := strconv.Atoi(port); err == nil {
				c.Redis.Port = p
			}
		}
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks tag rules and the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Data.Source == "clickhouse" && !c.ClickHouse.Enabled {
		return fmt.Errorf("data.source 'clickhouse' requires clickhouse.enabled")
	}
	for _, s := range c.Watchlist.Symbols {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("watchlist.symbols contains an empty symbol")
		}
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
