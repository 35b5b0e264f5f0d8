// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package ocimetrics // import "github.com/oci-observability/ocimetricsforwarder/pkg/translator/ocimetrics"

import (
	"fmt"
	"sort"
	"strconv"
)

// Datapoint is a single raw OCI Monitoring sample.
type Datapoint struct {
	// Timestamp is expressed in milliseconds since the Unix epoch.
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// AggregateResult is one reduced bucket. Timestamp is the bucket start in seconds since the Unix epoch.
type AggregateResult struct {
	Timestamp int64
	Value     float64
}

// SummaryStat keeps min, max, sum and count of a bucket so the backend can derive any statistic later.
type SummaryStat struct {
	Min   float64
	Max   float64
	Sum   float64
	Count int64
}

func (s SummaryStat) String() string {
	return "min=" + formatFloat(s.Min) +
		",max=" + formatFloat(s.Max) +
		",sum=" + formatFloat(s.Sum) +
		",count=" + strconv.FormatInt(s.Count, 10)
}

// SummaryResult is one summarized bucket.
type SummaryResult struct {
	Timestamp int64
	Stat      SummaryStat
}

// AggregateFunc selects the reduction applied to the values of a bucket.
type AggregateFunc int

const (
	AggregateMax AggregateFunc = iota + 1
	AggregateMin
	AggregateSum
	AggregateMean
)

var aggregateFuncNames = map[AggregateFunc]string{
	AggregateMax:  "max",
	AggregateMin:  "min",
	AggregateSum:  "sum",
	AggregateMean: "mean",
}

func (f AggregateFunc) String() string {
	if name, ok := aggregateFuncNames[f]; ok {
		return name
	}
	return "AggregateFunc(" + strconv.Itoa(int(f)) + ")"
}

// ParseAggregateFunc maps the textual name used in mapping files to its AggregateFunc.
func ParseAggregateFunc(name string) (AggregateFunc, error) {
	for f, n := range aggregateFuncNames {
		if n == name {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown aggregation function %q", name)
}

const secondsPerMinute = 60

// bucketKey truncates a millisecond timestamp to the start of its UTC minute, in seconds.
func bucketKey(tsMillis int64) int64 {
	secs := floorDiv(tsMillis, 1000)
	return secs - floorMod(secs, secondsPerMinute)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int64) int64 {
	return a - floorDiv(a, b)*b
}

// Bucket groups datapoint values by the minute they fall in. Values keep their arrival order.
func Bucket(dps []Datapoint) map[int64][]float64 {
	buckets := make(map[int64][]float64)
	for _, dp := range dps {
		key := bucketKey(dp.Timestamp)
		buckets[key] = append(buckets[key], dp.Value)
	}
	return buckets
}

func sortedKeys(buckets map[int64][]float64) []int64 {
	keys := make([]int64, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Reduce applies fn to the values of one bucket. values must not be empty.
func Reduce(values []float64, fn AggregateFunc) float64 {
	switch fn {
	case AggregateMax:
		result := values[0]
		for _, v := range values[1:] {
			if v > result {
				result = v
			}
		}
		return result
	case AggregateMin:
		result := values[0]
		for _, v := range values[1:] {
			if v < result {
				result = v
			}
		}
		return result
	case AggregateSum:
		return sum(values)
	case AggregateMean:
		return sum(values) / float64(len(values))
	}
	panic(fmt.Sprintf("unsupported aggregation function %v", fn))
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

// Aggregate buckets dps per minute and reduces every bucket with fn.
// Results are ordered by ascending bucket timestamp.
func Aggregate(dps []Datapoint, fn AggregateFunc) []AggregateResult {
	buckets := Bucket(dps)
	results := make([]AggregateResult, 0, len(buckets))
	for _, ts := range sortedKeys(buckets) {
		results = append(results, AggregateResult{Timestamp: ts, Value: Reduce(buckets[ts], fn)})
	}
	return results
}

// Summarize buckets dps per minute and keeps min, max, sum and count of every bucket.
func Summarize(dps []Datapoint) []SummaryResult {
	buckets := Bucket(dps)
	results := make([]SummaryResult, 0, len(buckets))
	for _, ts := range sortedKeys(buckets) {
		values := buckets[ts]
		results = append(results, SummaryResult{
			Timestamp: ts,
			Stat: SummaryStat{
				Min:   Reduce(values, AggregateMin),
				Max:   Reduce(values, AggregateMax),
				Sum:   sum(values),
				Count: int64(len(values)),
			},
		})
	}
	return results
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
