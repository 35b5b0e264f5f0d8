// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package serialization // import "github.com/oci-observability/ocimetricsforwarder/exporter/dynatraceexporter/serialization"

import (
	"strings"
)

func serializeGauge(key string, dims map[string]string, value float64, ts int64) (string, error) {
	v, err := formatNumber(value)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	return writeLine(&b, key, dims, v, ts), nil
}
