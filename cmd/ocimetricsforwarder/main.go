// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Program ocimetricsforwarder receives OCI Monitoring metric batches over HTTP
// and ingests them into Dynatrace.
package main // import "github.com/oci-observability/ocimetricsforwarder/cmd/ocimetricsforwarder"

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
