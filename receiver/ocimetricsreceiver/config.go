// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package ocimetricsreceiver // import "github.com/oci-observability/ocimetricsforwarder/receiver/ocimetricsreceiver"

import (
	"errors"
	"strings"
	"time"
)

const (
	defaultEndpoint           = ":8080"
	defaultPath               = "/"
	defaultMaxRequestBodySize = 20 << 20
	defaultTimeout            = 60 * time.Second
)

var (
	errMissingEndpoint = errors.New("endpoint must be set")
	errBadPath         = errors.New("path must start with /")
	errBadBodySize     = errors.New("max_request_body_size must be positive")
)

// Config defines the HTTP endpoint OCI Connector Hub (or an OCI Function) posts metric batches to.
type Config struct {
	Endpoint           string        `mapstructure:"endpoint"`
	Path               string        `mapstructure:"path"`
	MaxRequestBodySize int64         `mapstructure:"max_request_body_size"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
}

// NewDefaultConfig returns the default receiver configuration.
func NewDefaultConfig() *Config {
	return &Config{
		Endpoint:           defaultEndpoint,
		Path:               defaultPath,
		MaxRequestBodySize: defaultMaxRequestBodySize,
		ReadTimeout:        defaultTimeout,
		WriteTimeout:       defaultTimeout,
	}
}

// Validate checks the receiver configuration.
func (cfg *Config) Validate() error {
	if cfg.Endpoint == "" {
		return errMissingEndpoint
	}
	if !strings.HasPrefix(cfg.Path, "/") {
		return errBadPath
	}
	if cfg.MaxRequestBodySize <= 0 {
		return errBadBodySize
	}
	return nil
}
