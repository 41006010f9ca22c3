package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultConfigFile        = "./config.json"
	defaultBaseURL           = "https://app.hydrawise.com/api/v2"
	defaultTimeout           = 30 * time.Second
	defaultRetries           = 2
	defaultLookback          = 7 * 24 * time.Hour
	defaultTable             = "hydrawise_flow_meter"
	defaultMySQLPort         = 3306
	defaultInfluxMeasurement = "flow_meter"
	defaultDiagnosticsTopic  = "hydrawise-diagnostics"
	defaultPushJob           = "hydrawise_flowmeter_etl"
)

// Config holds all job settings. The file sections mirror the JSON config
// file; the remaining fields come from the environment.
type Config struct {
	Hydrawise HydrawiseConfig `yaml:"hydrawise"`
	MySQL     *MySQLConfig    `yaml:"mysql"`
	Postgres  *PostgresConfig `yaml:"postgres"`
	InfluxDB  *InfluxDBConfig `yaml:"influxdb"`

	LogLevel  string `yaml:"-"`
	LogFormat string `yaml:"-"`
	DryRun    bool   `yaml:"-"`

	KafkaBrokers          []string `yaml:"-"`
	KafkaDiagnosticsTopic string   `yaml:"-"`

	PushgatewayURL string `yaml:"-"`
	PushJob        string `yaml:"-"`

	offline bool
}

// HydrawiseConfig describes the upstream API account and query.
type HydrawiseConfig struct {
	ControllerID string            `yaml:"controller_id"`
	APIPayload   map[string]string `yaml:"api-payload"`
	BaseURL      string            `yaml:"base_url"`
	Timeout      time.Duration     `yaml:"timeout"`
	Retries      int               `yaml:"retries"`
	Lookback     time.Duration     `yaml:"lookback"`
}

// MySQLConfig holds the connection parameters of the primary store.
// Keys not listed here are accepted and ignored.
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	Table    string `yaml:"table"`
}

// PostgresConfig selects PostgreSQL as the primary store instead of MySQL.
type PostgresConfig struct {
	URL   string `yaml:"url"`
	Table string `yaml:"table"`
}

// InfluxDBConfig enables mirroring rows into an InfluxDB bucket.
type InfluxDBConfig struct {
	URL         string `yaml:"url"`
	Token       string `yaml:"token"`
	Org         string `yaml:"org"`
	Bucket      string `yaml:"bucket"`
	Measurement string `yaml:"measurement"`
}

// Path returns the config file path from CONFIG_FILE, falling back to ./config.json.
func Path() string {
	return sharedcfg.EnvOrDefault("CONFIG_FILE", defaultConfigFile)
}

// Option adjusts a Config from command-line flags before it is validated.
type Option func(*Config)

// WithDryRun forces dry-run mode; no store section is required then.
func WithDryRun() Option {
	return func(c *Config) { c.DryRun = true }
}

// WithOfflineReport marks a run that reads a saved report instead of the
// API, so the Hydrawise account settings are not required.
func WithOfflineReport() Option {
	return func(c *Config) { c.offline = true }
}

// Load reads a JSON or YAML config file and overlays environment settings.
// A .env file in the working directory is loaded first when present.
// Hydrawise settings absent from the file keep their defaults; an explicit
// zero is kept, so "retries: 0" disables retries and "timeout: 0" disables
// the request timeout.
func Load(path string, opts ...Option) (*Config, error) {
	_ = godotenv.Load(".env")

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Config{Hydrawise: HydrawiseConfig{
		BaseURL:  defaultBaseURL,
		Timeout:  defaultTimeout,
		Retries:  defaultRetries,
		Lookback: defaultLookback,
	}}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.LogLevel = sharedcfg.EnvOrDefault("LOG_LEVEL", "info")
	cfg.LogFormat = sharedcfg.EnvOrDefault("LOG_FORMAT", "json")
	dryRun := strings.TrimSpace(os.Getenv("DRY_RUN"))
	cfg.DryRun = dryRun == "1" || strings.EqualFold(dryRun, "true")
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(brokers)
	}
	cfg.KafkaDiagnosticsTopic = sharedcfg.EnvOrDefault("KAFKA_DIAGNOSTICS_TOPIC", defaultDiagnosticsTopic)
	cfg.PushgatewayURL = os.Getenv("PUSHGATEWAY_URL")
	cfg.PushJob = sharedcfg.EnvOrDefault("PUSHGATEWAY_JOB", defaultPushJob)

	for _, opt := range opts {
		opt(&cfg)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Hydrawise.BaseURL == "" {
		c.Hydrawise.BaseURL = defaultBaseURL
	}
	if c.MySQL != nil {
		if c.MySQL.Port == 0 {
			c.MySQL.Port = defaultMySQLPort
		}
		if c.MySQL.Table == "" {
			c.MySQL.Table = defaultTable
		}
	}
	if c.Postgres != nil && c.Postgres.Table == "" {
		c.Postgres.Table = defaultTable
	}
	if c.InfluxDB != nil && c.InfluxDB.Measurement == "" {
		c.InfluxDB.Measurement = defaultInfluxMeasurement
	}
}

func (c *Config) validate() error {
	if !c.offline {
		if c.Hydrawise.ControllerID == "" {
			return errors.New("hydrawise.controller_id is required")
		}
		if len(c.Hydrawise.APIPayload) == 0 {
			return errors.New("hydrawise.api-payload is required")
		}
	}
	if c.Hydrawise.Timeout < 0 {
		return errors.New("hydrawise.timeout must not be negative")
	}
	if c.Hydrawise.Retries < 0 {
		return errors.New("hydrawise.retries must not be negative")
	}
	if c.Hydrawise.Lookback <= 0 {
		return errors.New("hydrawise.lookback must be positive")
	}

	if c.MySQL == nil && c.Postgres == nil && !c.DryRun {
		return errors.New("one of mysql or postgres is required")
	}
	if c.MySQL != nil && c.Postgres != nil {
		return errors.New("mysql and postgres are mutually exclusive")
	}
	if c.MySQL != nil {
		if c.MySQL.Host == "" {
			return errors.New("mysql.host is required")
		}
		if c.MySQL.Database == "" {
			return errors.New("mysql.database is required")
		}
	}
	if c.Postgres != nil && c.Postgres.URL == "" {
		return errors.New("postgres.url is required")
	}
	if c.InfluxDB != nil {
		if c.InfluxDB.URL == "" || c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "" {
			return errors.New("influxdb requires url, org and bucket")
		}
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaDiagnosticsTopic == "" {
		return errors.New("KAFKA_DIAGNOSTICS_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}
