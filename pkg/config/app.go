package config

import (
	"fmt"
	"os"
	"time"
)

// EnvPrefix is the prefix for derived environment variable names
const EnvPrefix = "EXCHANGER"

// Config is the exchanger process configuration shared by every binary
type Config struct {
	Server   ServerConfig   `yaml:"server" json:"server"`
	Exchange ExchangeConfig `yaml:"exchange" json:"exchange"`
	Alert    AlertConfig    `yaml:"alert" json:"alert"`
	Store    StoreConfig    `yaml:"store" json:"store"`
	Metrics  MetricsConfig  `yaml:"metrics" json:"metrics"`
	Tracing  TracingConfig  `yaml:"tracing" json:"tracing"`
	Log      LogConfig      `yaml:"log" json:"log"`
}

// ServerConfig configures the TCP front end and its worker pool
type ServerConfig struct {
	Addr         string        `yaml:"addr" json:"addr"`
	Workers      int           `yaml:"workers" json:"workers" env:"MAX_WORKERS"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
}

// ExchangeConfig configures the exchange-rate API client and estimator
type ExchangeConfig struct {
	Host             string        `yaml:"host" json:"host"`
	Scheme           string        `yaml:"scheme" json:"scheme"`
	Base             string        `yaml:"base" json:"base"`
	Target           string        `yaml:"target" json:"target"`
	ModelWindowDays  int           `yaml:"model_window_days" json:"model_window_days"`
	ServerWindowDays int           `yaml:"server_window_days" json:"server_window_days"`
	Timeout          time.Duration `yaml:"timeout" json:"timeout"`
}

// AlertConfig configures the periodic rate alert
type AlertConfig struct {
	Threshold    float64        `yaml:"threshold" json:"threshold" env:"RATE_THRESHOLD"`
	IntervalDays float64        `yaml:"interval_days" json:"interval_days" env:"EMAILER_INTERVAL"`
	EstimateDays int            `yaml:"estimate_days" json:"estimate_days"`
	SendGrid     SendGridConfig `yaml:"sendgrid" json:"sendgrid"`
	NATS         NATSConfig     `yaml:"nats" json:"nats"`
}

// SendGridConfig configures e-mail delivery
type SendGridConfig struct {
	URI    string `yaml:"uri" json:"uri"`
	APIKey string `yaml:"api_key" json:"api_key" env:"SENDGRID_API_KEY"`
	From   string `yaml:"from" json:"from" env:"SOURCE_EMAIL"`
	To     string `yaml:"to" json:"to" env:"USER_EMAIL"`
}

// NATSConfig configures alert publication; an empty URL disables it
type NATSConfig struct {
	URL     string `yaml:"url" json:"url"`
	Subject string `yaml:"subject" json:"subject"`
}

// StoreConfig configures the rate history database; an empty DSN disables it
type StoreConfig struct {
	Driver string `yaml:"driver" json:"driver"`
	DSN    string `yaml:"dsn" json:"dsn"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
}

// TracingConfig configures OpenTelemetry export
type TracingConfig struct {
	Exporter    string `yaml:"exporter" json:"exporter"`
	ZipkinURL   string `yaml:"zipkin_url" json:"zipkin_url"`
	ServiceName string `yaml:"service_name" json:"service_name"`
}

// LogConfig configures the process logger
type LogConfig struct {
	Format string `yaml:"format" json:"format"`
	Level  string `yaml:"level" json:"level"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         "127.0.0.1:7878",
			Workers:      4,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
		},
		Exchange: ExchangeConfig{
			Host:             "api.exchangerate.host",
			Scheme:           "http",
			Base:             "EUR",
			Target:           "INR",
			ModelWindowDays:  15,
			ServerWindowDays: 4,
			Timeout:          10 * time.Second,
		},
		Alert: AlertConfig{
			Threshold:    90.0,
			IntervalDays: 1.0,
			EstimateDays: 5,
			SendGrid: SendGridConfig{
				URI: "https://api.sendgrid.com/v3/mail/send",
			},
			NATS: NATSConfig{
				Subject: "exchanger.alerts",
			},
		},
		Store: StoreConfig{
			Driver: "sqlite3",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    "127.0.0.1:9102",
		},
		Tracing: TracingConfig{
			Exporter:    "none",
			ZipkinURL:   "http://localhost:9411/api/v2/spans",
			ServiceName: "exchanger",
		},
		Log: LogConfig{
			Format: "text",
			Level:  "info",
		},
	}
}

// LoadApp builds the configuration: defaults, then the file at path if it
// is non-empty, then environment overrides, then validation.
func LoadApp(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := Load(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := ApplyEnvOverrides(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to apply env overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadAppFromEnv is LoadApp with the path taken from EXCHANGER_CONFIG
func LoadAppFromEnv() (*Config, error) {
	return LoadApp(os.Getenv(EnvPrefix + "_CONFIG"))
}

// Validate checks the values every binary relies on
func (c *Config) Validate() error {
	return Validate(c,
		RequiredFields("Server.Addr", "Exchange.Host", "Exchange.Base", "Exchange.Target"),
		RangeValidator("Server.Workers", 1, 4096),
		RangeValidator("Exchange.ModelWindowDays", 2, 3650),
		RangeValidator("Exchange.ServerWindowDays", 1, 365),
		RangeValidator("Alert.IntervalDays", 0.0001, 365),
		RangeValidator("Alert.EstimateDays", 1, 365),
		PositiveDuration("Server.ReadTimeout", "Server.WriteTimeout", "Exchange.Timeout"),
		RequiredWhen("Alert.NATS.URL", "Alert.NATS.Subject"),
		RequiredWhen("Metrics.Enabled", "Metrics.Addr"),
		OneOfValidator("Exchange.Scheme", "http", "https"),
		OneOfValidator("Store.Driver", "sqlite3", "pgx", "postgres"),
		OneOfValidator("Tracing.Exporter", "none", "stdout", "zipkin"),
		OneOfValidator("Log.Format", "text", "json"),
	)
}

// AlertInterval converts IntervalDays into a duration
func (a AlertConfig) AlertInterval() time.Duration {
	return time.Duration(a.IntervalDays * float64(24*time.Hour))
}
