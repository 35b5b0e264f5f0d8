// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"testing"
	"time"

	"github.com/dynatrace-oss/dynatrace-metric-utils-go/metric/apiconstants"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/collector/config/configretry"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.Equal(t, &Config{
		Endpoint: apiconstants.GetDefaultOneAgentEndpoint(),
		AuthMode: AuthModeNone,
		OAuth: OAuthConfig{
			TokenURL: "https://sso.dynatrace.com/sso/oauth2/token",
			Scopes:   []string{"storage:metrics:write"},
		},
		Timeout:           10 * time.Second,
		BackOffConfig:     configretry.NewDefaultBackOffConfig(),
		DefaultDimensions: map[string]string{},
	}, cfg)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "api token",
			mutate: func(c *Config) {
				c.Endpoint = "https://abc123.live.dynatrace.com"
				c.AuthMode = AuthModeAPIToken
				c.APIToken = "dt0c01.token"
			},
		},
		{
			name: "oauth",
			mutate: func(c *Config) {
				c.Endpoint = "https://abc123.live.dynatrace.com"
				c.AuthMode = AuthModeOAuth
				c.OAuth.ClientID = "dt0s02.client"
				c.OAuth.ClientSecret = "secret"
				c.OAuth.ResourceURN = "urn:dtaccount:1234"
			},
		},
		{
			name:    "bad endpoint",
			mutate:  func(c *Config) { c.Endpoint = "abc123.live.dynatrace.com" },
			wantErr: "endpoint must start with https:// or http://",
		},
		{
			name:    "missing token",
			mutate:  func(c *Config) { c.AuthMode = AuthModeAPIToken },
			wantErr: "api_token is required when auth_mode is api_token",
		},
		{
			name:    "missing client id",
			mutate:  func(c *Config) { c.AuthMode = AuthModeOAuth },
			wantErr: "oauth.client_id is required when auth_mode is oauth",
		},
		{
			name: "missing client secret",
			mutate: func(c *Config) {
				c.AuthMode = AuthModeOAuth
				c.OAuth.ClientID = "id"
			},
			wantErr: "oauth.client_secret is required when auth_mode is oauth",
		},
		{
			name: "missing resource urn",
			mutate: func(c *Config) {
				c.AuthMode = AuthModeOAuth
				c.OAuth.ClientID = "id"
				c.OAuth.ClientSecret = "secret"
			},
			wantErr: "oauth.resource_urn is required when auth_mode is oauth",
		},
		{
			name:    "unknown auth mode",
			mutate:  func(c *Config) { c.AuthMode = "basic" },
			wantErr: `unknown auth_mode "basic"`,
		},
		{
			name:    "negative timeout",
			mutate:  func(c *Config) { c.Timeout = -time.Second },
			wantErr: "timeout must not be negative",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestIngestURL(t *testing.T) {
	tests := []struct {
		endpoint string
		want     string
	}{
		{"https://abc123.live.dynatrace.com", "https://abc123.live.dynatrace.com/api/v2/metrics/ingest"},
		{"https://abc123.live.dynatrace.com/", "https://abc123.live.dynatrace.com/api/v2/metrics/ingest"},
		{"https://abc123.live.dynatrace.com/api/v2/metrics/ingest", "https://abc123.live.dynatrace.com/api/v2/metrics/ingest"},
		{"http://localhost:14499/metrics/ingest", "http://localhost:14499/metrics/ingest"},
	}
	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			cfg := &Config{Endpoint: tt.endpoint}
			assert.Equal(t, tt.want, cfg.IngestURL())
		})
	}
}

func TestSecretsAreRedacted(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.APIToken = "dt0c01.token"
	cfg.OAuth.ClientSecret = "secret"
	assert.Equal(t, "[REDACTED]", cfg.APIToken.String())
	assert.Equal(t, "[REDACTED]", cfg.OAuth.ClientSecret.String())
}
