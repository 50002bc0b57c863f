package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/plan-feasibility/internal/rules"
)

// #region config-struct
// Config is the process configuration, loaded once at startup.
type Config struct {
	DB              string           `yaml:"db" validate:"required"`
	ObserverAddr    string           `yaml:"observer_addr"`
	ObserverTimeout time.Duration    `yaml:"observer_timeout" validate:"gte=0"`
	HTTPAddr        string           `yaml:"http_addr" validate:"required"`
	GRPCAddr        string           `yaml:"grpc_addr" validate:"required"`
	MaxAttempts     int              `yaml:"max_attempts" validate:"gte=1"`
	Log             LogConfig        `yaml:"log"`
	Thresholds      rules.Thresholds `yaml:"thresholds"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// #endregion config-struct

// #region defaults
// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		DB:              "feasibility.db",
		ObserverTimeout: 5 * time.Second,
		HTTPAddr:        ":8080",
		GRPCAddr:        ":50051",
		MaxAttempts:     3,
		Log:             LogConfig{Level: "info", Format: "text"},
		Thresholds:      rules.DefaultThresholds(),
	}
}

// #endregion defaults

// #region load
var validate = validator.New()

// Load reads path over the defaults, applies environment overrides, and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("%w: read config: %v", rules.ErrConfig, err)
		}
		if err := decode(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w: parse config %s: %v", rules.ErrConfig, path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(raw []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks field bounds, including the rule thresholds.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", rules.ErrConfig, err)
	}
	return c.Thresholds.Validate()
}

// #endregion load

// #region env
// applyEnv overrides file values with FEASIBILITY_* variables.
func (c *Config) applyEnv() error {
	c.DB = envOr("FEASIBILITY_DB", c.DB)
	c.ObserverAddr = envOr("FEASIBILITY_OBSERVER_ADDR", c.ObserverAddr)
	c.HTTPAddr = envOr("FEASIBILITY_HTTP_ADDR", c.HTTPAddr)
	c.GRPCAddr = envOr("FEASIBILITY_GRPC_ADDR", c.GRPCAddr)
	c.Log.Level = envOr("FEASIBILITY_LOG_LEVEL", c.Log.Level)
	c.Log.Format = envOr("FEASIBILITY_LOG_FORMAT", c.Log.Format)

	if v := os.Getenv("FEASIBILITY_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: FEASIBILITY_MAX_ATTEMPTS: %v", rules.ErrConfig, err)
		}
		c.MaxAttempts = n
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion env
