// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry // import "github.com/oci-observability/ocimetricsforwarder/internal/telemetry"

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls the process's own logs and metrics.
type Config struct {
	// Level is a zap level name: debug, info, warn or error.
	Level string `mapstructure:"level"`
	// Encoding is either json or console.
	Encoding string `mapstructure:"encoding"`
	// MetricsEndpoint is the listen address of the Prometheus endpoint. Empty disables it.
	MetricsEndpoint string `mapstructure:"metrics_endpoint"`
}

// NewDefaultConfig returns the production defaults.
func NewDefaultConfig() Config {
	return Config{
		Level:           "info",
		Encoding:        "json",
		MetricsEndpoint: ":8888",
	}
}

// Validate checks the log settings.
func (c Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	if c.Encoding != "json" && c.Encoding != "console" {
		return fmt.Errorf("invalid log encoding %q, must be json or console", c.Encoding)
	}
	return nil
}

// NewLogger builds the process logger from cfg.
func NewLogger(cfg Config, options ...zap.Option) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.Encoding = cfg.Encoding
	if cfg.Encoding == "console" {
		zapCfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapCfg.Build(options...)
}
