// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package ocimetrics // import "github.com/oci-observability/ocimetricsforwarder/pkg/translator/ocimetrics"

import (
	"sort"
)

// DestinationRule maps a source metric onto one Dynatrace metric key.
type DestinationRule struct {
	DestinationKey string
	Aggregation    AggregateFunc
	// DimensionFilter restricts the rule to events carrying every listed dimension value.
	// An empty filter matches any event.
	DimensionFilter map[string]string
}

// Matches reports whether every filter entry is present in dims with an equal value.
func (r DestinationRule) Matches(dims map[string]string) bool {
	for key, want := range r.DimensionFilter {
		got, ok := dims[key]
		if !ok || got != want {
			return false
		}
	}
	return true
}

// MetricMapping describes how the metrics of one OCI namespace translate to Dynatrace.
type MetricMapping struct {
	// MetricKeys maps the OCI metric name to its candidate rules, in evaluation order.
	MetricKeys map[string][]DestinationRule
	// DimensionRenames maps an OCI dimension name to every Dynatrace dimension it is written to.
	DimensionRenames map[string][]string
	// ConstantDimensions are attached to every record of the namespace.
	ConstantDimensions map[string]string
}

// RenameDimensions translates OCI dimensions into Dynatrace dimensions.
// Dimensions without a rename entry are dropped. When two source dimensions
// map to the same destination, the one sorting last wins.
func (m *MetricMapping) RenameDimensions(src map[string]string) map[string]string {
	out := make(map[string]string, len(m.ConstantDimensions)+len(src))
	for k, v := range m.ConstantDimensions {
		out[k] = v
	}

	keys := make([]string, 0, len(src))
	for k := range src {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		for _, dest := range m.DimensionRenames[k] {
			out[dest] = src[k]
		}
	}
	return out
}

// ResolveOutcome tells why Resolve did or did not produce a Resolution.
type ResolveOutcome int

const (
	OutcomeResolved ResolveOutcome = iota
	OutcomeUnmappedMetric
	OutcomeNoMatchingRule
	OutcomeUnmappedNamespace
)

func (o ResolveOutcome) String() string {
	switch o {
	case OutcomeResolved:
		return "resolved"
	case OutcomeUnmappedMetric:
		return "unmapped_metric"
	case OutcomeNoMatchingRule:
		return "no_matching_rule"
	case OutcomeUnmappedNamespace:
		return "unmapped_namespace"
	}
	return "unknown"
}

// Resolution is the destination chosen for an event together with its aggregated buckets.
type Resolution struct {
	DestinationKey string
	Results        []AggregateResult
}

// Resolve picks the first rule of metricName that matches dims and aggregates dps with it.
// The Resolution is only meaningful when the outcome is OutcomeResolved.
func (m *MetricMapping) Resolve(metricName string, dims map[string]string, dps []Datapoint) (Resolution, ResolveOutcome) {
	rules, ok := m.MetricKeys[metricName]
	if !ok {
		return Resolution{}, OutcomeUnmappedMetric
	}
	rule, ok := firstMatch(rules, dims)
	if !ok {
		return Resolution{}, OutcomeNoMatchingRule
	}
	return Resolution{
		DestinationKey: rule.DestinationKey,
		Results:        Aggregate(dps, rule.Aggregation),
	}, OutcomeResolved
}

func firstMatch(rules []DestinationRule, dims map[string]string) (DestinationRule, bool) {
	for _, rule := range rules {
		if rule.Matches(dims) {
			return rule, true
		}
	}
	return DestinationRule{}, false
}
