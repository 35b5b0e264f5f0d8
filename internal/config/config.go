// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package config // import "github.com/oci-observability/ocimetricsforwarder/internal/config"

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"go.uber.org/multierr"

	dtconfig "github.com/oci-observability/ocimetricsforwarder/exporter/dynatraceexporter/config"
	"github.com/oci-observability/ocimetricsforwarder/internal/telemetry"
	"github.com/oci-observability/ocimetricsforwarder/receiver/ocimetricsreceiver"
)

// EnvPrefix is the prefix of environment variables overriding file settings.
// A double underscore separates nested keys, so OCIFWD_EXPORTER__API_TOKEN
// sets exporter.api_token.
const EnvPrefix = "OCIFWD_"

const keyDelimiter = "."

// Translator configures the mapping engine.
type Translator struct {
	// CatchAll forwards metrics without a mapping under a generated key.
	CatchAll bool `mapstructure:"catch_all"`
	// MappingFile replaces the built-in mapping table when set.
	MappingFile string `mapstructure:"mapping_file"`
}

// Config is the forwarder process configuration.
type Config struct {
	Receiver   *ocimetricsreceiver.Config `mapstructure:"receiver"`
	Translator Translator                 `mapstructure:"translator"`
	Exporter   *dtconfig.Config           `mapstructure:"exporter"`
	Telemetry  telemetry.Config           `mapstructure:"telemetry"`
}

// NewDefaultConfig returns the configuration used when nothing is overridden.
func NewDefaultConfig() *Config {
	return &Config{
		Receiver:  ocimetricsreceiver.NewDefaultConfig(),
		Exporter:  dtconfig.NewDefaultConfig(),
		Telemetry: telemetry.NewDefaultConfig(),
	}
}

// Load reads the YAML file at path, when path is not empty, then applies
// environment overrides on top of the defaults.
func Load(path string) (*Config, error) {
	var fileProvider koanf.Provider
	if path != "" {
		fileProvider = file.Provider(path)
	}
	return load(fileProvider)
}

func load(fileProvider koanf.Provider) (*Config, error) {
	k := koanf.New(keyDelimiter)
	if fileProvider != nil {
		if err := k.Load(fileProvider, yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, keyDelimiter, envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg := NewDefaultConfig()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "mapstructure"}); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", keyDelimiter)
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs error
	if err := c.Receiver.Validate(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("receiver: %w", err))
	}
	if err := c.Exporter.Validate(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("exporter: %w", err))
	}
	if err := c.Telemetry.Validate(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("telemetry: %w", err))
	}
	return errs
}
