// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry // import "github.com/oci-observability/ocimetricsforwarder/internal/telemetry"

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "ocifwd"

// Metrics are the self-observability counters of the forwarder.
type Metrics struct {
	EventsReceived prometheus.Counter
	EventsInvalid  prometheus.Counter
	// EventsUnresolved is labelled by outcome, and by catch_all when the
	// event was summarized instead of dropped.
	EventsUnresolved *prometheus.CounterVec
	RecordsEmitted   *prometheus.CounterVec

	LinesSent      prometheus.Counter
	LinesInvalid   prometheus.Counter
	LinesDropped   prometheus.Counter
	ExportRequests *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EventsReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_received_total",
			Help:      "Number of OCI metric events received.",
		}),
		EventsInvalid: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_invalid_total",
			Help:      "Number of events rejected because they were malformed.",
		}),
		EventsUnresolved: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_unresolved_total",
			Help:      "Number of events without a destination mapping.",
		}, []string{"outcome", "catch_all"}),
		RecordsEmitted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_emitted_total",
			Help:      "Number of Dynatrace records produced by translation.",
		}, []string{"path"}),
		LinesSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_sent_total",
			Help:      "Number of lines accepted by the Dynatrace API.",
		}),
		LinesInvalid: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_invalid_total",
			Help:      "Number of lines rejected by the Dynatrace API as invalid.",
		}),
		LinesDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_dropped_total",
			Help:      "Number of lines that could not be serialized or delivered.",
		}),
		ExportRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "export_requests_total",
			Help:      "Number of ingest requests by HTTP status code.",
		}, []string{"code"}),
	}
}

// Settings carries the logger and counters handed to each component.
type Settings struct {
	Logger  *zap.Logger
	Metrics *Metrics
}

// NewNopSettings returns Settings that discard logs and register counters on a private registry.
func NewNopSettings() Settings {
	return Settings{
		Logger:  zap.NewNop(),
		Metrics: NewMetrics(prometheus.NewRegistry()),
	}
}

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the metrics in reg. Collection errors are logged and the
// remaining metrics are still served.
func Handler(reg *prometheus.Registry, logger *zap.Logger) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
		ErrorLog:      promLogger{logger: logger},
	})
}

type promLogger struct {
	logger *zap.Logger
}

func (l promLogger) Println(v ...any) {
	l.logger.Sugar().Error(v...)
}
