// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package ocimetrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucket(t *testing.T) {
	tests := []struct {
		name string
		dps  []Datapoint
		want map[int64][]float64
	}{
		{
			name: "empty",
			dps:  nil,
			want: map[int64][]float64{},
		},
		{
			name: "same minute shares a bucket",
			dps: []Datapoint{
				{Timestamp: 1_700_000_000_000, Value: 10},
				{Timestamp: 1_700_000_030_000, Value: 50},
				{Timestamp: 1_700_000_039_999, Value: 5},
			},
			want: map[int64][]float64{1_699_999_980: {10, 50, 5}},
		},
		{
			name: "minute boundary splits buckets",
			dps: []Datapoint{
				{Timestamp: 1_700_000_039_999, Value: 1},
				{Timestamp: 1_700_000_040_000, Value: 2},
			},
			want: map[int64][]float64{
				1_699_999_980: {1},
				1_700_000_040: {2},
			},
		},
		{
			name: "arrival order is kept inside a bucket",
			dps: []Datapoint{
				{Timestamp: 1_700_000_050_000, Value: 3},
				{Timestamp: 1_700_000_000_000, Value: 1},
				{Timestamp: 1_700_000_020_000, Value: 2},
			},
			want: map[int64][]float64{1_699_999_980: {3, 1, 2}},
		},
		{
			name: "sub-second precision is discarded",
			dps: []Datapoint{
				{Timestamp: 60_999, Value: 1},
				{Timestamp: 119_999, Value: 2},
			},
			want: map[int64][]float64{60: {1, 2}},
		},
		{
			name: "pre-epoch timestamps floor down",
			dps: []Datapoint{
				{Timestamp: -1, Value: 1},
				{Timestamp: -60_000, Value: 2},
				{Timestamp: -60_001, Value: 3},
			},
			want: map[int64][]float64{
				-60:  {1, 2},
				-120: {3},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Bucket(tt.dps))
		})
	}
}

func TestReduce(t *testing.T) {
	values := []float64{4, 1, 7, 2}
	assert.Equal(t, 7.0, Reduce(values, AggregateMax))
	assert.Equal(t, 1.0, Reduce(values, AggregateMin))
	assert.Equal(t, 14.0, Reduce(values, AggregateSum))
	assert.Equal(t, 3.5, Reduce(values, AggregateMean))
	assert.Equal(t, 9.0, Reduce([]float64{9}, AggregateMean))
}

func TestReduceIsOrderIndependent(t *testing.T) {
	forward := []float64{1, 2, 3, 4, 5, 6}
	backward := []float64{6, 5, 4, 3, 2, 1}
	shuffled := []float64{3, 6, 1, 5, 2, 4}
	for _, fn := range []AggregateFunc{AggregateMax, AggregateMin, AggregateSum, AggregateMean} {
		t.Run(fn.String(), func(t *testing.T) {
			want := Reduce(forward, fn)
			assert.Equal(t, want, Reduce(backward, fn))
			assert.Equal(t, want, Reduce(shuffled, fn))
		})
	}
}

func TestAggregate(t *testing.T) {
	dps := []Datapoint{
		{Timestamp: 1_700_000_090_000, Value: 8},
		{Timestamp: 1_700_000_000_000, Value: 10},
		{Timestamp: 1_700_000_045_000, Value: 4},
		{Timestamp: 1_700_000_030_000, Value: 50},
		{Timestamp: 1_700_000_059_000, Value: 6},
	}

	tests := []struct {
		fn   AggregateFunc
		want []AggregateResult
	}{
		{
			fn: AggregateMax,
			want: []AggregateResult{
				{Timestamp: 1_699_999_980, Value: 50},
				{Timestamp: 1_700_000_040, Value: 8},
			},
		},
		{
			fn: AggregateMin,
			want: []AggregateResult{
				{Timestamp: 1_699_999_980, Value: 10},
				{Timestamp: 1_700_000_040, Value: 4},
			},
		},
		{
			fn: AggregateSum,
			want: []AggregateResult{
				{Timestamp: 1_699_999_980, Value: 60},
				{Timestamp: 1_700_000_040, Value: 18},
			},
		},
		{
			fn: AggregateMean,
			want: []AggregateResult{
				{Timestamp: 1_699_999_980, Value: 30},
				{Timestamp: 1_700_000_040, Value: 6},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.fn.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Aggregate(dps, tt.fn))
		})
	}
}

func TestAggregateSortsBuckets(t *testing.T) {
	dps := []Datapoint{
		{Timestamp: 300_000, Value: 1},
		{Timestamp: 0, Value: 1},
		{Timestamp: 180_000, Value: 1},
		{Timestamp: 60_000, Value: 1},
	}
	results := Aggregate(dps, AggregateSum)
	require.Len(t, results, 4)
	for i := 1; i < len(results); i++ {
		assert.Less(t, results[i-1].Timestamp, results[i].Timestamp)
	}
}

func TestAggregateEmpty(t *testing.T) {
	results := Aggregate(nil, AggregateMax)
	assert.NotNil(t, results)
	assert.Empty(t, results)
	assert.Empty(t, Summarize([]Datapoint{}))
}

func TestSummarize(t *testing.T) {
	dps := []Datapoint{
		{Timestamp: 1_700_000_070_000, Value: 2},
		{Timestamp: 1_700_000_000_000, Value: 3},
		{Timestamp: 1_700_000_010_000, Value: 9},
		{Timestamp: 1_700_000_020_000, Value: 1},
	}
	want := []SummaryResult{
		{Timestamp: 1_699_999_980, Stat: SummaryStat{Min: 1, Max: 9, Sum: 13, Count: 3}},
		{Timestamp: 1_700_000_040, Stat: SummaryStat{Min: 2, Max: 2, Sum: 2, Count: 1}},
	}
	assert.Equal(t, want, Summarize(dps))
}

func TestSummaryStatString(t *testing.T) {
	s := SummaryStat{Min: 0.5, Max: 9, Sum: 13.25, Count: 3}
	assert.Equal(t, "min=0.5,max=9,sum=13.25,count=3", s.String())
}

func TestParseAggregateFunc(t *testing.T) {
	for _, fn := range []AggregateFunc{AggregateMax, AggregateMin, AggregateSum, AggregateMean} {
		parsed, err := ParseAggregateFunc(fn.String())
		require.NoError(t, err)
		assert.Equal(t, fn, parsed)
	}

	_, err := ParseAggregateFunc("median")
	assert.EqualError(t, err, `unknown aggregation function "median"`)
	assert.Equal(t, "AggregateFunc(42)", AggregateFunc(42).String())
}
