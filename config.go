// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package hivegate holds the service configuration shared by the entry point
// and examples.
package hivegate

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/absmach/hivegate/pkg/breaker"
	"github.com/absmach/hivegate/pkg/gateway"
	"github.com/absmach/hivegate/pkg/metrics"
	"github.com/absmach/hivegate/pkg/rest"
	"github.com/absmach/hivegate/pkg/transport"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment variable read by NewConfig.
const EnvPrefix = "HIVEGATE_"

// noDefaults names a tag no field carries, so a parse with it applies only
// variables that are actually set.
const noDefaults = "nodefault"

var (
	errMissingToken = errors.New("missing token")
	errQueueSize    = errors.New("queue size must be positive")
)

// Config is the service configuration.
type Config struct {
	// ConfigFile names an optional YAML file. Values from the file are
	// applied over defaults and are in turn overridden by the environment.
	ConfigFile string `env:"CONFIG_FILE" yaml:"-"`

	// Gateway
	Token            string        `env:"TOKEN"             yaml:"token"`
	GatewayURL       string        `env:"GATEWAY_URL"       envDefault:"wss://swarm-dev.hiven.io/socket" yaml:"gateway_url"`
	ParseMode        string        `env:"PARSE_MODE"        envDefault:"lenient"                         yaml:"parse_mode"`
	QueueSize        int           `env:"QUEUE_SIZE"        envDefault:"5"                               yaml:"queue_size"`
	MaxInFlight      int           `env:"MAX_IN_FLIGHT"     envDefault:"64"                              yaml:"max_in_flight"`
	HandshakeTimeout time.Duration `env:"HANDSHAKE_TIMEOUT" envDefault:"30s"                             yaml:"handshake_timeout"`
	DialTimeout      time.Duration `env:"DIAL_TIMEOUT"      envDefault:"10s"                             yaml:"dial_timeout"`
	WriteTimeout     time.Duration `env:"WRITE_TIMEOUT"     envDefault:"10s"                             yaml:"write_timeout"`

	// REST
	APIURL              string        `env:"API_URL"               envDefault:"https://api.hiven.io/v1" yaml:"api_url"`
	RESTTimeout         time.Duration `env:"REST_TIMEOUT"          envDefault:"10s"                     yaml:"rest_timeout"`
	BreakerMaxFailures  int           `env:"BREAKER_MAX_FAILURES"  envDefault:"5"                       yaml:"breaker_max_failures"`
	BreakerResetTimeout time.Duration `env:"BREAKER_RESET_TIMEOUT" envDefault:"30s"                     yaml:"breaker_reset_timeout"`
	RateLimitBurst      float64       `env:"RATE_LIMIT_BURST"      envDefault:"5"                       yaml:"rate_limit_burst"`
	RateLimitPerSecond  float64       `env:"RATE_LIMIT_PER_SECOND" envDefault:"1"                       yaml:"rate_limit_per_second"`

	// Bot
	ReplyDelay time.Duration `env:"REPLY_DELAY" envDefault:"1s" yaml:"reply_delay"`

	// Observability
	MetricsPort     int           `env:"METRICS_PORT"     envDefault:"9090" yaml:"metrics_port"`
	HealthPort      int           `env:"HEALTH_PORT"      envDefault:"8080" yaml:"health_port"`
	LogLevel        string        `env:"LOG_LEVEL"        envDefault:"info" yaml:"log_level"`
	LogFormat       string        `env:"LOG_FORMAT"       envDefault:"json" yaml:"log_format"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"  yaml:"shutdown_timeout"`
}

// NewConfig loads the configuration from the environment and, when
// CONFIG_FILE is set, from a YAML file. An empty opts.Prefix means EnvPrefix.
func NewConfig(opts env.Options) (Config, error) {
	if opts.Prefix == "" {
		opts.Prefix = EnvPrefix
	}

	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, err
	}
	if cfg.ConfigFile == "" {
		return cfg, nil
	}

	file, err := os.ReadFile(cfg.ConfigFile)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	defaults := opts
	defaults.Environment = map[string]string{}
	var fcfg Config
	if err := env.ParseWithOptions(&fcfg, defaults); err != nil {
		return Config{}, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(file))
	dec.KnownFields(true)
	if err := dec.Decode(&fcfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file %s: %w", cfg.ConfigFile, err)
	}

	overrides := opts
	overrides.DefaultValueTagName = noDefaults
	if err := env.ParseWithOptions(&fcfg, overrides); err != nil {
		return Config{}, err
	}
	fcfg.ConfigFile = cfg.ConfigFile

	return fcfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Token == "" {
		return errMissingToken
	}
	if err := checkURL(c.GatewayURL, "ws", "wss"); err != nil {
		return fmt.Errorf("invalid gateway url: %w", err)
	}
	if err := checkURL(c.APIURL, "http", "https"); err != nil {
		return fmt.Errorf("invalid api url: %w", err)
	}
	if _, err := transport.ParseMode(c.ParseMode); err != nil {
		return err
	}
	if c.QueueSize <= 0 {
		return errQueueSize
	}
	if c.MaxInFlight < 0 || c.ReplyDelay < 0 || c.RateLimitPerSecond < 0 {
		return errors.New("limits must not be negative")
	}

	return nil
}

// GatewayConfig returns the gateway client configuration.
func (c Config) GatewayConfig(logger *slog.Logger, m *metrics.Metrics) (gateway.Config, error) {
	mode, err := transport.ParseMode(c.ParseMode)
	if err != nil {
		return gateway.Config{}, err
	}

	return gateway.Config{
		URL:              c.GatewayURL,
		Token:            c.Token,
		Mode:             mode,
		QueueSize:        c.QueueSize,
		HandshakeTimeout: c.HandshakeTimeout,
		DialTimeout:      c.DialTimeout,
		WriteTimeout:     c.WriteTimeout,
		MaxInFlight:      c.MaxInFlight,
		Logger:           logger,
		Metrics:          m,
	}, nil
}

// RESTConfig returns the REST client configuration.
func (c Config) RESTConfig(logger *slog.Logger, m *metrics.Metrics) rest.Config {
	return rest.Config{
		BaseURL: c.APIURL,
		Token:   c.Token,
		Timeout: c.RESTTimeout,
		Breaker: breaker.Config{
			MaxFailures:  c.BreakerMaxFailures,
			ResetTimeout: c.BreakerResetTimeout,
		},
		RateLimit: rest.RateLimit{
			Burst:     c.RateLimitBurst,
			PerSecond: c.RateLimitPerSecond,
		},
		Logger:  logger,
		Metrics: m,
	}
}

func checkURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("%q must use %v and name a host", raw, schemes)
}
