// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package ocimetrics // import "github.com/oci-observability/ocimetricsforwarder/pkg/translator/ocimetrics"

import (
	"strings"
	"unicode"

	"go.uber.org/zap"
)

const (
	catchAllKeyPrefix = "cloud.oci."
	namespacePrefix   = "oci_"

	dimensionCloudProvider = "cloud.provider"
	cloudProviderOCI       = "oci"
)

// Record is a single outbound Dynatrace metric. Exactly one of Value or Summary is meaningful:
// Summary is set for catch-all records only.
type Record struct {
	Key        string
	Dimensions map[string]string
	Value      float64
	Summary    *SummaryStat
	// Timestamp is expressed in milliseconds since the Unix epoch.
	Timestamp int64
}

// Result is the translation of one Event.
type Result struct {
	Records []Record
	Outcome ResolveOutcome
	// CatchAll is set when Records were produced by summarizing an unmapped metric.
	CatchAll bool
}

// Translator turns OCI events into Dynatrace records.
type Translator struct {
	table    *Table
	catchAll bool
	logger   *zap.Logger
}

// NewTranslator creates a Translator. When catchAll is set, metrics without a
// matching rule are forwarded as summaries under a synthesized key.
func NewTranslator(table *Table, catchAll bool, logger *zap.Logger) *Translator {
	return &Translator{
		table:    table,
		catchAll: catchAll,
		logger:   logger,
	}
}

// Translate resolves the destination of e and aggregates its datapoints.
// e must have passed Validate.
func (t *Translator) Translate(e *Event) Result {
	dims := e.MergedDimensions()
	fields := []zap.Field{
		zap.String("namespace", e.Namespace),
		zap.String("metric", e.Name),
	}

	mapping, ok := t.table.Lookup(e.Namespace)
	if !ok {
		return t.unresolved(e, nil, dims, OutcomeUnmappedNamespace, fields)
	}

	res, outcome := mapping.Resolve(e.Name, dims, e.Datapoints)
	if outcome != OutcomeResolved {
		return t.unresolved(e, mapping, dims, outcome, fields)
	}

	renamed := mapping.RenameDimensions(dims)
	records := make([]Record, 0, len(res.Results))
	for _, r := range res.Results {
		records = append(records, Record{
			Key:        res.DestinationKey,
			Dimensions: copyDimensions(renamed),
			Value:      r.Value,
			Timestamp:  r.Timestamp * 1000,
		})
	}
	return Result{Records: records, Outcome: OutcomeResolved}
}

func (t *Translator) unresolved(e *Event, mapping *MetricMapping, dims map[string]string, outcome ResolveOutcome, fields []zap.Field) Result {
	fields = append(fields, zap.Stringer("outcome", outcome))
	if !t.catchAll {
		t.logger.Error("Dropping metric without a destination mapping", fields...)
		return Result{Outcome: outcome}
	}
	t.logger.Debug("Forwarding metric through catch-all summarization", fields...)

	var summaryDims map[string]string
	if mapping != nil {
		summaryDims = mapping.RenameDimensions(dims)
	} else {
		summaryDims = copyDimensions(dims)
		summaryDims[dimensionCloudProvider] = cloudProviderOCI
	}

	key := CatchAllKey(e.Namespace, e.Name)
	summaries := Summarize(e.Datapoints)
	records := make([]Record, 0, len(summaries))
	for _, s := range summaries {
		stat := s.Stat
		records = append(records, Record{
			Key:        key,
			Dimensions: copyDimensions(summaryDims),
			Summary:    &stat,
			Timestamp:  s.Timestamp * 1000,
		})
	}
	return Result{Records: records, Outcome: outcome, CatchAll: true}
}

// CatchAllKey derives the Dynatrace key used for metrics without a curated mapping,
// e.g. oci_faas/FunctionQueuedCount becomes cloud.oci.faas.function_queued_count.
func CatchAllKey(namespace, metricName string) string {
	ns := strings.ToLower(strings.TrimPrefix(namespace, namespacePrefix))
	return catchAllKeyPrefix + ns + "." + snakeCase(metricName)
}

func snakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

func copyDimensions(dims map[string]string) map[string]string {
	out := make(map[string]string, len(dims)+1)
	for k, v := range dims {
		out[k] = v
	}
	return out
}
