// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package serialization

import (
	"math"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oci-observability/ocimetricsforwarder/pkg/translator/ocimetrics"
)

func TestSerializeRecord(t *testing.T) {
	tests := []struct {
		name    string
		record  ocimetrics.Record
		want    string
		wantErr error
	}{
		{
			name: "gauge without dimensions",
			record: ocimetrics.Record{
				Key:       "cloud.oci.compute.cpu.util",
				Value:     50,
				Timestamp: 1_699_999_980_000,
			},
			want: "cloud.oci.compute.cpu.util gauge,50 1699999980000",
		},
		{
			name: "gauge with dimensions in sorted order",
			record: ocimetrics.Record{
				Key: "cloud.oci.compute.cpu.util",
				Dimensions: map[string]string{
					"oci.region":      "us-1",
					"oci.resource_id": "ocid1.instance.abc",
					"cloud.provider":  "oci",
					"oci.service":     "compute",
				},
				Value:     50,
				Timestamp: 1_699_999_980_000,
			},
			want: `cloud.oci.compute.cpu.util,cloud.provider="oci",oci.region="us-1",oci.resource_id="ocid1.instance.abc",oci.service="compute" gauge,50 1699999980000`,
		},
		{
			name: "dimension names are lowercased",
			record: ocimetrics.Record{
				Key:        "my.metric",
				Dimensions: map[string]string{"LabelKey": "LabelValue"},
				Value:      13.1,
				Timestamp:  100,
			},
			want: `my.metric,labelkey="LabelValue" gauge,13.1 100`,
		},
		{
			name: "quotes and backslashes are escaped",
			record: ocimetrics.Record{
				Key:        "my.metric",
				Dimensions: map[string]string{"name": `say "hi" \o/`, "multi": "a\nb", "comma": "a,b"},
				Value:      1,
				Timestamp:  100,
			},
			want: `my.metric,comma="a,b",multi="a\nb",name="say \"hi\" \\o/" gauge,1 100`,
		},
		{
			name: "small and negative numbers keep full precision",
			record: ocimetrics.Record{
				Key:       "my.metric",
				Value:     -0.000125,
				Timestamp: 100,
			},
			want: "my.metric gauge,-0.000125 100",
		},
		{
			name: "large numbers are not written in exponent form",
			record: ocimetrics.Record{
				Key:       "my.metric",
				Value:     12_345_678_901_234,
				Timestamp: 100,
			},
			want: "my.metric gauge,12345678901234 100",
		},
		{
			name: "summary",
			record: ocimetrics.Record{
				Key:        "cloud.oci.faas.function_queued_count",
				Dimensions: map[string]string{"cloud.provider": "oci"},
				Summary:    &ocimetrics.SummaryStat{Min: 2, Max: 4, Sum: 6, Count: 2},
				Timestamp:  1_699_999_980_000,
			},
			want: `cloud.oci.faas.function_queued_count,cloud.provider="oci" gauge,min=2,max=4,sum=6,count=2 1699999980000`,
		},
		{
			name:    "empty key",
			record:  ocimetrics.Record{Value: 1, Timestamp: 100},
			wantErr: errEmptyKey,
		},
		{
			name:    "not a number",
			record:  ocimetrics.Record{Key: "my.metric", Value: math.NaN(), Timestamp: 100},
			wantErr: errInvalidNumber,
		},
		{
			name:    "infinite",
			record:  ocimetrics.Record{Key: "my.metric", Value: math.Inf(1), Timestamp: 100},
			wantErr: errInvalidNumber,
		},
		{
			name: "summary without samples",
			record: ocimetrics.Record{
				Key:       "my.metric",
				Summary:   &ocimetrics.SummaryStat{},
				Timestamp: 100,
			},
			wantErr: errEmptySummary,
		},
		{
			name: "summary with min over max",
			record: ocimetrics.Record{
				Key:       "my.metric",
				Summary:   &ocimetrics.SummaryStat{Min: 5, Max: 1, Sum: 6, Count: 2},
				Timestamp: 100,
			},
			wantErr: errSummaryMinOverMax,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewSerializer(nil).SerializeRecord(tt.record)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSerializeRecordDefaultTimestamp(t *testing.T) {
	s := NewSerializer(nil)
	now := time.UnixMilli(1_700_000_123_456)
	s.now = func() time.Time { return now }

	got, err := s.SerializeRecord(ocimetrics.Record{Key: "my.metric", Value: 1})
	require.NoError(t, err)
	assert.Equal(t, "my.metric gauge,1 1700000123456", got)

	line, err := NewSerializer(nil).SerializeRecord(ocimetrics.Record{Key: "my.metric", Value: 1})
	require.NoError(t, err)
	fields := strings.Fields(line)
	require.Len(t, fields, 3)
	ts, err := strconv.ParseInt(fields[2], 10, 64)
	require.NoError(t, err)
	assert.InDelta(t, time.Now().UnixMilli(), ts, float64(time.Minute.Milliseconds()))
}

func TestSerializeRecordDefaultDimensions(t *testing.T) {
	s := NewSerializer(map[string]string{"Env": "prod", "oci.region": "default"})

	got, err := s.SerializeRecord(ocimetrics.Record{
		Key:        "my.metric",
		Dimensions: map[string]string{"oci.region": "us-1"},
		Value:      1,
		Timestamp:  100,
	})
	require.NoError(t, err)
	assert.Equal(t, `my.metric,env="prod",oci.region="us-1" gauge,1 100`, got)
}

func TestSerializeRecords(t *testing.T) {
	records := []ocimetrics.Record{
		{Key: "a", Value: 1, Timestamp: 100},
		{Key: "b", Value: math.NaN(), Timestamp: 100},
		{Key: "c", Summary: &ocimetrics.SummaryStat{Min: 1, Max: 1, Sum: 1, Count: 1}, Timestamp: 100},
		{Value: 2, Timestamp: 100},
	}
	lines, err := NewSerializer(nil).SerializeRecords(records)
	assert.Equal(t, []string{
		"a gauge,1 100",
		"c gauge,min=1,max=1,sum=1,count=1 100",
	}, lines)
	require.Error(t, err)
	assert.ErrorIs(t, err, errInvalidNumber)
	assert.ErrorIs(t, err, errEmptyKey)
	assert.ErrorContains(t, err, "b: ")

	lines, err = NewSerializer(nil).SerializeRecords(nil)
	assert.NoError(t, err)
	assert.Empty(t, lines)
}
