// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package ocimetricsreceiver // import "github.com/oci-observability/ocimetricsforwarder/receiver/ocimetricsreceiver"

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/oci-observability/ocimetricsforwarder/internal/telemetry"
	"github.com/oci-observability/ocimetricsforwarder/pkg/translator/ocimetrics"
)

// headerCallID carries the invocation ID when OCI Functions fronts the receiver.
const headerCallID = "Fn-Call-Id"

var (
	errNilNextConsumer = errors.New("nil next consumer")
	errNotJSON         = errors.New("request body is not a JSON object or array")
)

// RecordsConsumer receives the records of one batch. The Dynatrace exporter implements it.
type RecordsConsumer interface {
	PushRecords(ctx context.Context, records []ocimetrics.Record) (int, error)
}

// Summary is the response body of a processed batch.
type Summary struct {
	BatchID string `json:"batchId"`
	// Received is the number of elements in the batch.
	Received int `json:"received"`
	// Translated counts events that produced a mapped or catch-all result.
	Translated int `json:"translated"`
	Records    int `json:"records"`
	// Dropped counts well-formed events without a destination mapping.
	Dropped int `json:"dropped"`
	Invalid int `json:"invalid"`
	// Undelivered counts records that did not reach Dynatrace.
	Undelivered int `json:"undelivered"`
}

// Receiver accepts OCI Monitoring metric events over HTTP, translates them and
// hands the resulting records to the next consumer.
type Receiver struct {
	cfg          *Config
	logger       *zap.Logger
	metrics      *telemetry.Metrics
	translator   *ocimetrics.Translator
	nextConsumer RecordsConsumer

	server     *http.Server
	addr       net.Addr
	shutdownWG sync.WaitGroup
}

// New creates a Receiver.
func New(cfg *Config, set telemetry.Settings, translator *ocimetrics.Translator, nextConsumer RecordsConsumer) (*Receiver, error) {
	if nextConsumer == nil {
		return nil, errNilNextConsumer
	}
	return &Receiver{
		cfg:          cfg,
		logger:       set.Logger.With(zap.String("component", "oci_metrics_receiver")),
		metrics:      set.Metrics,
		translator:   translator,
		nextConsumer: nextConsumer,
	}, nil
}

// Start listens on the configured endpoint and serves requests until Shutdown.
// Errors after the listener is bound are sent to fatal.
func (r *Receiver) Start(_ context.Context, fatal func(error)) error {
	ln, err := net.Listen("tcp", r.cfg.Endpoint)
	if err != nil {
		return fmt.Errorf("failed to bind to address %s: %w", r.cfg.Endpoint, err)
	}

	r.addr = ln.Addr()

	mux := http.NewServeMux()
	mux.Handle(r.cfg.Path, r)
	r.server = &http.Server{
		Handler:           mux,
		ReadTimeout:       r.cfg.ReadTimeout,
		ReadHeaderTimeout: r.cfg.ReadTimeout,
		WriteTimeout:      r.cfg.WriteTimeout,
	}

	r.logger.Info("Starting HTTP server", zap.Stringer("endpoint", r.addr), zap.String("path", r.cfg.Path))
	r.shutdownWG.Add(1)
	go func() {
		defer r.shutdownWG.Done()
		if errHTTP := r.server.Serve(ln); !errors.Is(errHTTP, http.ErrServerClosed) && errHTTP != nil {
			fatal(errHTTP)
		}
	}()
	return nil
}

// Shutdown stops accepting requests and waits for in-flight batches.
func (r *Receiver) Shutdown(ctx context.Context) error {
	if r.server == nil {
		return nil
	}
	err := r.server.Shutdown(ctx)
	r.shutdownWG.Wait()
	return err
}

// ServeHTTP handles one batch of events.
func (r *Receiver) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		r.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", req.Method))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, r.cfg.MaxRequestBodySize))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			r.writeError(w, http.StatusRequestEntityTooLarge, err)
			return
		}
		r.writeError(w, http.StatusBadRequest, err)
		return
	}

	batchID := req.Header.Get(headerCallID)
	if batchID == "" {
		batchID = uuid.NewString()
	}

	summary, err := r.ProcessBatch(req.Context(), batchID, body)
	switch {
	case errors.Is(err, errNotJSON):
		r.writeError(w, http.StatusBadRequest, err)
	case err != nil:
		r.writeSummary(w, http.StatusBadGateway, summary)
	default:
		r.writeSummary(w, http.StatusOK, summary)
	}
}

// ProcessBatch translates every event of body, a single event object or an
// array of them, and forwards the records in one call. A malformed element
// is logged and counted without affecting the other elements.
func (r *Receiver) ProcessBatch(ctx context.Context, batchID string, body []byte) (Summary, error) {
	logger := r.logger.With(zap.String("batch_id", batchID))
	summary := Summary{BatchID: batchID}

	root := gjson.ParseBytes(body)
	var elements []gjson.Result
	switch {
	case root.IsArray():
		root.ForEach(func(_, value gjson.Result) bool {
			elements = append(elements, value)
			return true
		})
	case root.IsObject():
		elements = []gjson.Result{root}
	default:
		return summary, errNotJSON
	}
	if !gjson.ValidBytes(body) {
		logger.Warn("Batch is not valid JSON, decoding elements individually")
	}

	var records []ocimetrics.Record
	for i, element := range elements {
		summary.Received++
		r.metrics.EventsReceived.Inc()

		event, err := decodeEvent(element)
		if err != nil {
			summary.Invalid++
			r.metrics.EventsInvalid.Inc()
			logger.Error("Skipping malformed event", zap.Int("index", i), zap.Error(err))
			continue
		}

		res := r.translator.Translate(event)
		if res.Outcome != ocimetrics.OutcomeResolved {
			r.metrics.EventsUnresolved.WithLabelValues(res.Outcome.String(), strconv.FormatBool(res.CatchAll)).Inc()
			if !res.CatchAll {
				summary.Dropped++
				continue
			}
		}
		summary.Translated++
		path := "mapped"
		if res.CatchAll {
			path = "catch_all"
		}
		r.metrics.RecordsEmitted.WithLabelValues(path).Add(float64(len(res.Records)))
		records = append(records, res.Records...)
	}
	summary.Records = len(records)

	if len(records) == 0 {
		logger.Debug("Batch produced no records", zap.Int("received", summary.Received))
		return summary, nil
	}

	undelivered, err := r.nextConsumer.PushRecords(ctx, records)
	summary.Undelivered = undelivered
	if err != nil {
		logger.Error("Failed to deliver records", zap.Int("records", len(records)), zap.Int("undelivered", undelivered), zap.Error(err))
		return summary, err
	}
	logger.Debug("Batch processed",
		zap.Int("received", summary.Received),
		zap.Int("records", summary.Records),
		zap.Int("undelivered", undelivered))
	return summary, nil
}

func decodeEvent(element gjson.Result) (*ocimetrics.Event, error) {
	if !element.IsObject() {
		return nil, fmt.Errorf("expected a JSON object, got %s", element.Type)
	}
	var event ocimetrics.Event
	if err := json.Unmarshal([]byte(element.Raw), &event); err != nil {
		return nil, fmt.Errorf("failed to decode event: %w", err)
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *Receiver) writeSummary(w http.ResponseWriter, status int, summary Summary) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(summary); err != nil {
		r.logger.Error("error writing to response writer", zap.Error(err))
	}
}

func (r *Receiver) writeError(w http.ResponseWriter, status int, err error) {
	r.logger.Warn("Rejecting request", zap.Int("status", status), zap.Error(err))
	http.Error(w, err.Error(), status)
}
