// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package ocimetrics // import "github.com/oci-observability/ocimetricsforwarder/pkg/translator/ocimetrics"

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

//go:embed mappings.yaml
var defaultMappings []byte

// Table is the namespace registry. It is never mutated after construction and
// may be shared by concurrent readers.
type Table struct {
	namespaces map[string]*MetricMapping
}

// Lookup returns the mapping registered for an OCI namespace.
func (t *Table) Lookup(namespace string) (*MetricMapping, bool) {
	m, ok := t.namespaces[namespace]
	return m, ok
}

// Namespaces returns the registered namespace names in sorted order.
func (t *Table) Namespaces() []string {
	names := make([]string, 0, len(t.namespaces))
	for name := range t.namespaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var loadDefaultTable = sync.OnceValues(func() (*Table, error) {
	return LoadTable(bytes.NewReader(defaultMappings))
})

// DefaultTable returns the table built from the embedded mapping file.
func DefaultTable() (*Table, error) {
	return loadDefaultTable()
}

// LoadTableFile builds a table from a mapping file on disk.
func LoadTableFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mapping file: %w", err)
	}
	defer f.Close()
	return LoadTable(f)
}

type ruleDoc struct {
	Key         string            `yaml:"key"`
	Aggregation string            `yaml:"aggregation"`
	Filter      map[string]string `yaml:"filter"`
}

type namespaceDoc struct {
	Metrics            map[string][]ruleDoc `yaml:"metrics"`
	Dimensions         map[string][]string  `yaml:"dimensions"`
	ConstantDimensions map[string]string    `yaml:"constant_dimensions"`
}

var errEmptyTable = errors.New("mapping file does not declare any namespace")

// LoadTable parses a YAML mapping document. Every problem found is reported, not only the first one.
func LoadTable(r io.Reader) (*Table, error) {
	var doc map[string]namespaceDoc
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errEmptyTable
		}
		return nil, fmt.Errorf("failed to decode mapping file: %w", err)
	}
	if len(doc) == 0 {
		return nil, errEmptyTable
	}

	t := &Table{namespaces: make(map[string]*MetricMapping, len(doc))}
	var errs error
	for ns, nsDoc := range doc {
		m, err := buildMapping(ns, nsDoc)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		t.namespaces[ns] = m
	}
	if errs != nil {
		return nil, errs
	}
	return t, nil
}

func buildMapping(ns string, doc namespaceDoc) (*MetricMapping, error) {
	m := &MetricMapping{
		MetricKeys:         make(map[string][]DestinationRule, len(doc.Metrics)),
		DimensionRenames:   doc.Dimensions,
		ConstantDimensions: doc.ConstantDimensions,
	}
	if m.DimensionRenames == nil {
		m.DimensionRenames = map[string][]string{}
	}
	if m.ConstantDimensions == nil {
		m.ConstantDimensions = map[string]string{}
	}

	var errs error
	for name, rules := range doc.Metrics {
		if len(rules) == 0 {
			errs = multierr.Append(errs, fmt.Errorf("%s/%s: no destination rules", ns, name))
			continue
		}
		converted := make([]DestinationRule, 0, len(rules))
		for i, rd := range rules {
			if rd.Key == "" {
				errs = multierr.Append(errs, fmt.Errorf("%s/%s[%d]: missing destination key", ns, name, i))
				continue
			}
			fn, err := ParseAggregateFunc(rd.Aggregation)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s/%s[%d]: %w", ns, name, i, err))
				continue
			}
			filter := rd.Filter
			if filter == nil {
				filter = map[string]string{}
			}
			converted = append(converted, DestinationRule{
				DestinationKey:  rd.Key,
				Aggregation:     fn,
				DimensionFilter: filter,
			})
		}
		m.MetricKeys[name] = converted
	}
	return m, errs
}
