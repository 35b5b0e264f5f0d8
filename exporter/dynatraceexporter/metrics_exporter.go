// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package dynatraceexporter // import "github.com/oci-observability/ocimetricsforwarder/exporter/dynatraceexporter"

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dynatrace-oss/dynatrace-metric-utils-go/metric/apiconstants"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/oci-observability/ocimetricsforwarder/exporter/dynatraceexporter/config"
	"github.com/oci-observability/ocimetricsforwarder/exporter/dynatraceexporter/serialization"
	"github.com/oci-observability/ocimetricsforwarder/internal/telemetry"
	"github.com/oci-observability/ocimetricsforwarder/pkg/translator/ocimetrics"
)

const userAgent = "ocimetricsforwarder"

var errExporterDisabled = errors.New("exporter is disabled after a rejected request")

// Exporter forwards translated records to the Dynatrace metrics ingest API.
type Exporter struct {
	logger     *zap.Logger
	metrics    *telemetry.Metrics
	cfg        *config.Config
	client     *http.Client
	serializer *serialization.Serializer
	ingestURL  string
	linesLimit int

	isDisabled atomic.Bool
}

// New creates an Exporter for cfg. cfg must have passed Validate.
func New(cfg *config.Config, set telemetry.Settings) (*Exporter, error) {
	client, err := newHTTPClient(cfg)
	if err != nil {
		return nil, err
	}
	return newExporter(cfg, set, client), nil
}

func newExporter(cfg *config.Config, set telemetry.Settings, client *http.Client) *Exporter {
	return &Exporter{
		logger:     set.Logger.With(zap.String("component", "dynatrace_exporter")),
		metrics:    set.Metrics,
		cfg:        cfg,
		client:     client,
		serializer: serialization.NewSerializer(cfg.DefaultDimensions),
		ingestURL:  cfg.IngestURL(),
		linesLimit: apiconstants.GetPayloadLinesLimit(),
	}
}

// PushRecords serializes records and sends them in chunks of at most the
// API's line limit. It returns the number of records that did not reach
// Dynatrace, including lines the API reported as invalid.
func (e *Exporter) PushRecords(ctx context.Context, records []ocimetrics.Record) (int, error) {
	lines, serErr := e.serializer.SerializeRecords(records)
	dropped := len(records) - len(lines)
	if serErr != nil {
		e.logger.Warn("Failed to serialize records", zap.Int("dropped", dropped), zap.Error(serErr))
		e.metrics.LinesDropped.Add(float64(dropped))
	}
	if len(lines) == 0 {
		return dropped, nil
	}

	if e.isDisabled.Load() {
		e.metrics.LinesDropped.Add(float64(len(lines)))
		return dropped + len(lines), errExporterDisabled
	}

	var errs error
	for start := 0; start < len(lines); start += e.linesLimit {
		end := start + e.linesLimit
		if end > len(lines) {
			end = len(lines)
		}
		chunk := lines[start:end]
		invalid, err := e.sendWithRetry(ctx, chunk)
		if err != nil {
			e.metrics.LinesDropped.Add(float64(len(chunk)))
			dropped += len(chunk)
			errs = multierr.Append(errs, err)
			if errors.Is(err, errExporterDisabled) || ctx.Err() != nil {
				remaining := len(lines) - end
				e.metrics.LinesDropped.Add(float64(remaining))
				dropped += remaining
				break
			}
			continue
		}
		dropped += invalid
	}
	return dropped, errs
}

func (e *Exporter) sendWithRetry(ctx context.Context, lines []string) (int, error) {
	var invalid int
	op := func() error {
		n, err := e.send(ctx, lines)
		invalid = n
		return err
	}
	err := backoff.RetryNotify(op, backoff.WithContext(e.newBackOff(), ctx), func(err error, wait time.Duration) {
		e.logger.Warn("Sending metrics failed, retrying", zap.Error(err), zap.Duration("backoff", wait))
	})
	return invalid, err
}

func (e *Exporter) newBackOff() backoff.BackOff {
	rc := e.cfg.BackOffConfig
	if !rc.Enabled {
		return &backoff.StopBackOff{}
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = rc.InitialInterval
	b.RandomizationFactor = rc.RandomizationFactor
	b.Multiplier = rc.Multiplier
	b.MaxInterval = rc.MaxInterval
	b.MaxElapsedTime = rc.MaxElapsedTime
	return b
}

// send posts one payload. Errors wrapped with backoff.Permanent are not retried.
func (e *Exporter) send(ctx context.Context, lines []string) (int, error) {
	if e.isDisabled.Load() {
		return 0, backoff.Permanent(errExporterDisabled)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.ingestURL, strings.NewReader(strings.Join(lines, "\n")))
	if err != nil {
		return 0, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=UTF-8")
	req.Header.Set("User-Agent", userAgent)
	if e.cfg.AuthMode == config.AuthModeAPIToken {
		req.Header.Set("Authorization", "Api-Token "+string(e.cfg.APIToken))
	}

	resp, err := e.client.Do(req)
	if err != nil {
		err = fmt.Errorf("sending metrics failed: %w", err)
		if isRejectedToken(err) {
			return 0, backoff.Permanent(err)
		}
		return 0, err
	}
	defer resp.Body.Close()
	e.metrics.ExportRequests.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	switch {
	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusNotFound:
		// Bad token or wrong tenant. Every further request would fail the same way.
		e.logger.Error("Dynatrace rejected the request, disabling exporter",
			zap.String("status", resp.Status), zap.String("endpoint", e.ingestURL))
		e.isDisabled.Store(true)
		return 0, backoff.Permanent(fmt.Errorf("%w: %s", errExporterDisabled, resp.Status))
	case resp.StatusCode == http.StatusRequestEntityTooLarge:
		return 0, backoff.Permanent(fmt.Errorf("payload too large: %s", resp.Status))
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return 0, fmt.Errorf("server responded with %s", resp.Status)
	case resp.StatusCode == http.StatusBadRequest, resp.StatusCode >= 200 && resp.StatusCode < 300:
		return e.readResponse(resp, len(lines)), nil
	default:
		return 0, backoff.Permanent(fmt.Errorf("unexpected response %s", resp.Status))
	}
}

// readResponse logs the line counts reported by the API and returns the number of invalid lines.
func (e *Exporter) readResponse(resp *http.Response, sent int) int {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		e.logger.Warn("Failed to read response from Dynatrace", zap.Error(err))
	}

	var body metricsResponse
	if err := json.Unmarshal(bodyBytes, &body); err != nil {
		if resp.StatusCode == http.StatusBadRequest {
			e.logger.Warn("Dynatrace rejected the payload", zap.String("status", resp.Status))
			e.metrics.LinesInvalid.Add(float64(sent))
			return sent
		}
		// The local OneAgent endpoint answers with an empty body.
		e.metrics.LinesSent.Add(float64(sent))
		return 0
	}

	e.metrics.LinesSent.Add(float64(body.Ok))
	e.metrics.LinesInvalid.Add(float64(body.Invalid))
	if body.Invalid > 0 || body.Error != nil {
		fields := []zap.Field{
			zap.Int("accepted-lines", body.Ok),
			zap.Int("rejected-lines", body.Invalid),
			zap.String("status", resp.Status),
		}
		if body.Error != nil {
			fields = append(fields, zap.String("error-message", body.Error.Message))
			for _, l := range body.Error.InvalidLines {
				e.logger.Debug("Invalid line", zap.Int("line", l.Line), zap.String("error", l.Error))
			}
		}
		e.logger.Warn("Response from Dynatrace", fields...)
	} else {
		e.logger.Debug("Response from Dynatrace", zap.Int("accepted-lines", body.Ok))
	}
	return body.Invalid
}

// isRejectedToken reports whether the token endpoint refused the client credentials.
func isRejectedToken(err error) bool {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) || re.Response == nil {
		return false
	}
	return re.Response.StatusCode >= 400 && re.Response.StatusCode < 500
}

// Disabled reports whether a 401, 403 or 404 response has switched the exporter off.
func (e *Exporter) Disabled() bool {
	return e.isDisabled.Load()
}

// Response from Dynatrace is expected to be in JSON format.
type metricsResponse struct {
	Ok      int            `json:"linesOk"`
	Invalid int            `json:"linesInvalid"`
	Error   *responseError `json:"error,omitempty"`
}

type responseError struct {
	Code         int           `json:"code"`
	Message      string        `json:"message"`
	InvalidLines []invalidLine `json:"invalidLines,omitempty"`
}

type invalidLine struct {
	Line  int    `json:"line"`
	Error string `json:"error"`
}
