// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package serialization renders translated OCI records as Dynatrace metric ingest lines.
package serialization // import "github.com/oci-observability/ocimetricsforwarder/exporter/dynatraceexporter/serialization"

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/oci-observability/ocimetricsforwarder/pkg/translator/ocimetrics"
)

var (
	errEmptyKey      = errors.New("metric key must not be empty")
	errInvalidNumber = errors.New("value is not a finite number")
)

var valueEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

// Serializer turns records into ingest lines.
type Serializer struct {
	defaultDimensions map[string]string
	now               func() time.Time
}

// NewSerializer creates a Serializer. defaultDimensions are added to every line
// unless the record carries a dimension with the same (lowercased) name.
func NewSerializer(defaultDimensions map[string]string) *Serializer {
	return &Serializer{
		defaultDimensions: defaultDimensions,
		now:               time.Now,
	}
}

// SerializeRecords serializes every record. Records that cannot be serialized are
// skipped and their errors combined.
func (s *Serializer) SerializeRecords(records []ocimetrics.Record) ([]string, error) {
	output := make([]string, 0, len(records))
	var errs error
	for _, r := range records {
		line, err := s.SerializeRecord(r)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", r.Key, err))
			continue
		}
		output = append(output, line)
	}
	return output, errs
}

// SerializeRecord renders one record as
// key[,dim="value",...] gauge,<value> <timestamp_ms>.
func (s *Serializer) SerializeRecord(r ocimetrics.Record) (string, error) {
	if r.Key == "" {
		return "", errEmptyKey
	}
	ts := r.Timestamp
	if ts == 0 {
		ts = s.now().UnixMilli()
	}
	dims := mergeDimensions(s.defaultDimensions, r.Dimensions)
	if r.Summary != nil {
		return serializeSummary(r.Key, dims, *r.Summary, ts)
	}
	return serializeGauge(r.Key, dims, r.Value, ts)
}

func mergeDimensions(defaults, dims map[string]string) map[string]string {
	merged := make(map[string]string, len(defaults)+len(dims))
	for k, v := range defaults {
		merged[strings.ToLower(k)] = v
	}
	for k, v := range dims {
		merged[strings.ToLower(k)] = v
	}
	return merged
}

func writeLine(b *strings.Builder, key string, dims map[string]string, value string, ts int64) string {
	b.WriteString(key)
	keys := make([]string, 0, len(dims))
	for k := range dims {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteByte(',')
		b.WriteString(k)
		b.WriteString(`="`)
		valueEscaper.WriteString(b, dims[k]) //nolint:errcheck
		b.WriteByte('"')
	}
	b.WriteString(" gauge,")
	b.WriteString(value)
	b.WriteByte(' ')
	b.WriteString(strconv.FormatInt(ts, 10))
	return b.String()
}

func formatNumber(v float64) (string, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "", errInvalidNumber
	}
	return strconv.FormatFloat(v, 'f', -1, 64), nil
}
