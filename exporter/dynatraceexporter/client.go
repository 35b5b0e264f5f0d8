// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package dynatraceexporter // import "github.com/oci-observability/ocimetricsforwarder/exporter/dynatraceexporter"

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/multierr"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/oci-observability/ocimetricsforwarder/exporter/dynatraceexporter/config"
)

// errFailedToGetSecurityToken indicates a problem communicating with the Dynatrace SSO.
var errFailedToGetSecurityToken = errors.New("failed to get security token from token endpoint")

// newHTTPClient builds the client used for ingest requests. In OAuth mode the
// transport fetches and refreshes bearer tokens on demand.
func newHTTPClient(cfg *config.Config) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.ProxyURL != "" {
		proxy, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy_url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxy)
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}
	if cfg.AuthMode != config.AuthModeOAuth {
		return client, nil
	}

	credentials := newClientCredentialsConfig(cfg.OAuth)
	tokenClient := &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, tokenClient)
	client.Transport = &oauth2.Transport{
		Source: errorWrappingTokenSource{
			ts:       credentials.TokenSource(ctx),
			tokenURL: credentials.TokenURL,
		},
		Base: transport,
	}
	return client, nil
}

func newClientCredentialsConfig(cfg config.OAuthConfig) *clientcredentials.Config {
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = config.DefaultOAuthTokenURL
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{config.DefaultOAuthScope}
	}
	return &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: string(cfg.ClientSecret),
		TokenURL:     tokenURL,
		Scopes:       scopes,
		EndpointParams: url.Values{
			"resource": {cfg.ResourceURN},
		},
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

type errorWrappingTokenSource struct {
	ts       oauth2.TokenSource
	tokenURL string
}

func (ewts errorWrappingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := ewts.ts.Token()
	if err != nil {
		return tok, multierr.Combine(
			fmt.Errorf("%w (endpoint %q)", errFailedToGetSecurityToken, ewts.tokenURL),
			err)
	}
	return tok, nil
}
