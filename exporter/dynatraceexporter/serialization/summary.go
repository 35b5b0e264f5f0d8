// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package serialization // import "github.com/oci-observability/ocimetricsforwarder/exporter/dynatraceexporter/serialization"

import (
	"errors"
	"strings"

	"github.com/oci-observability/ocimetricsforwarder/pkg/translator/ocimetrics"
)

var (
	errEmptySummary      = errors.New("summary must have a positive count")
	errSummaryMinOverMax = errors.New("summary min is greater than max")
)

// serializeSummary renders a catch-all summary. Dynatrace requires count > 0 and min <= max.
func serializeSummary(key string, dims map[string]string, stat ocimetrics.SummaryStat, ts int64) (string, error) {
	if stat.Count <= 0 {
		return "", errEmptySummary
	}
	for _, v := range []float64{stat.Min, stat.Max, stat.Sum} {
		if _, err := formatNumber(v); err != nil {
			return "", err
		}
	}
	if stat.Min > stat.Max {
		return "", errSummaryMinOverMax
	}
	var b strings.Builder
	return writeLine(&b, key, dims, stat.String(), ts), nil
}
