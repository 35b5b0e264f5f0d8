// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package config // import "github.com/oci-observability/ocimetricsforwarder/exporter/dynatraceexporter/config"

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dynatrace-oss/dynatrace-metric-utils-go/metric/apiconstants"
	"go.opentelemetry.io/collector/config/configopaque"
	"go.opentelemetry.io/collector/config/configretry"
)

// AuthMode selects how requests to the ingest API are authenticated.
type AuthMode string

const (
	// AuthModeAPIToken sends a static API token in the Authorization header.
	AuthModeAPIToken AuthMode = "api_token"
	// AuthModeOAuth obtains bearer tokens with the OAuth2 client credentials flow.
	AuthModeOAuth AuthMode = "oauth"
	// AuthModeNone sends no credentials. Used with the local OneAgent endpoint.
	AuthModeNone AuthMode = "none"
)

const (
	// DefaultOAuthTokenURL is the Dynatrace SSO token endpoint.
	DefaultOAuthTokenURL = "https://sso.dynatrace.com/sso/oauth2/token"
	// DefaultOAuthScope grants metric ingestion.
	DefaultOAuthScope = "storage:metrics:write"
	// MetricIngestPath is appended to a bare tenant URL.
	MetricIngestPath = "/api/v2/metrics/ingest"

	defaultTimeout = 10 * time.Second
)

var (
	errBadEndpoint        = errors.New("endpoint must start with https:// or http://")
	errMissingToken       = errors.New("api_token is required when auth_mode is api_token")
	errMissingClientID    = errors.New("oauth.client_id is required when auth_mode is oauth")
	errMissingSecret      = errors.New("oauth.client_secret is required when auth_mode is oauth")
	errMissingResourceURN = errors.New("oauth.resource_urn is required when auth_mode is oauth")
	errNegativeTimeout    = errors.New("timeout must not be negative")
)

// OAuthConfig holds the client credentials used in AuthModeOAuth.
type OAuthConfig struct {
	ClientID     string              `mapstructure:"client_id"`
	ClientSecret configopaque.String `mapstructure:"client_secret"`
	// ResourceURN identifies the Dynatrace account, e.g. urn:dtaccount:<uuid>.
	ResourceURN string   `mapstructure:"resource_urn"`
	TokenURL    string   `mapstructure:"token_url"`
	Scopes      []string `mapstructure:"scopes"`
}

// Config defines configuration for the Dynatrace exporter.
type Config struct {
	// Endpoint is the full ingest URL or a tenant URL such as https://abc123.live.dynatrace.com.
	Endpoint string   `mapstructure:"endpoint"`
	AuthMode AuthMode `mapstructure:"auth_mode"`

	APIToken configopaque.String `mapstructure:"api_token"`
	OAuth    OAuthConfig         `mapstructure:"oauth"`

	// ProxyURL routes every request, including token requests, through an HTTP proxy.
	ProxyURL string        `mapstructure:"proxy_url"`
	Timeout  time.Duration `mapstructure:"timeout"`

	BackOffConfig configretry.BackOffConfig `mapstructure:"retry_on_failure"`

	// DefaultDimensions are added to every line. Dimensions of a record take precedence.
	DefaultDimensions map[string]string `mapstructure:"default_dimensions"`
}

// NewDefaultConfig returns a Config that ships to the local OneAgent.
func NewDefaultConfig() *Config {
	return &Config{
		Endpoint: apiconstants.GetDefaultOneAgentEndpoint(),
		AuthMode: AuthModeNone,
		OAuth: OAuthConfig{
			TokenURL: DefaultOAuthTokenURL,
			Scopes:   []string{DefaultOAuthScope},
		},
		Timeout:           defaultTimeout,
		BackOffConfig:     configretry.NewDefaultBackOffConfig(),
		DefaultDimensions: map[string]string{},
	}
}

// Validate checks if the exporter configuration is valid.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.Endpoint, "http://") && !strings.HasPrefix(c.Endpoint, "https://") {
		return errBadEndpoint
	}
	if c.Timeout < 0 {
		return errNegativeTimeout
	}
	if c.ProxyURL != "" {
		if _, err := url.Parse(c.ProxyURL); err != nil {
			return fmt.Errorf("invalid proxy_url: %w", err)
		}
	}

	switch c.AuthMode {
	case AuthModeAPIToken:
		if c.APIToken == "" {
			return errMissingToken
		}
	case AuthModeOAuth:
		if c.OAuth.ClientID == "" {
			return errMissingClientID
		}
		if c.OAuth.ClientSecret == "" {
			return errMissingSecret
		}
		if c.OAuth.ResourceURN == "" {
			return errMissingResourceURN
		}
	case AuthModeNone:
	default:
		return fmt.Errorf("unknown auth_mode %q", c.AuthMode)
	}

	return c.BackOffConfig.Validate()
}

// IngestURL returns the metric ingest URL. A tenant URL without a path is
// completed with MetricIngestPath.
func (c *Config) IngestURL() string {
	u, err := url.Parse(c.Endpoint)
	if err != nil || (u.Path != "" && u.Path != "/") {
		return c.Endpoint
	}
	return strings.TrimSuffix(c.Endpoint, "/") + MetricIngestPath
}
