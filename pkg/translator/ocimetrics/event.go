// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package ocimetrics // import "github.com/oci-observability/ocimetricsforwarder/pkg/translator/ocimetrics"

import (
	"errors"

	"go.uber.org/multierr"
)

const (
	dimensionResourceGroup = "resourceGroup"
	dimensionCompartmentID = "compartmentId"
)

var (
	errMissingNamespace  = errors.New("event has no namespace")
	errMissingName       = errors.New("event has no metric name")
	errMissingDatapoints = errors.New("event has no datapoints")
)

// Event is one metric payload as delivered by the OCI Service Connector.
type Event struct {
	Namespace     string            `json:"namespace"`
	ResourceGroup string            `json:"resourceGroup,omitempty"`
	CompartmentID string            `json:"compartmentId"`
	Name          string            `json:"name"`
	Dimensions    map[string]string `json:"dimensions"`
	Datapoints    []Datapoint       `json:"datapoints"`
}

// Validate rejects events that cannot be translated.
func (e *Event) Validate() error {
	var errs []error
	if e.Namespace == "" {
		errs = append(errs, errMissingNamespace)
	}
	if e.Name == "" {
		errs = append(errs, errMissingName)
	}
	if e.Datapoints == nil {
		errs = append(errs, errMissingDatapoints)
	}
	return multierr.Combine(errs...)
}

// MergedDimensions returns the event dimensions with resourceGroup and compartmentId added.
func (e *Event) MergedDimensions() map[string]string {
	dims := make(map[string]string, len(e.Dimensions)+2)
	for k, v := range e.Dimensions {
		dims[k] = v
	}
	if e.ResourceGroup != "" {
		dims[dimensionResourceGroup] = e.ResourceGroup
	}
	if e.CompartmentID != "" {
		dims[dimensionCompartmentID] = e.CompartmentID
	}
	return dims
}
