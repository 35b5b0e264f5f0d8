// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/oci-observability/ocimetricsforwarder/exporter/dynatraceexporter"
	"github.com/oci-observability/ocimetricsforwarder/internal/config"
	"github.com/oci-observability/ocimetricsforwarder/internal/telemetry"
	"github.com/oci-observability/ocimetricsforwarder/pkg/translator/ocimetrics"
	"github.com/oci-observability/ocimetricsforwarder/receiver/ocimetricsreceiver"
)

const shutdownTimeout = 15 * time.Second

// newRootCommand returns the command that runs the forwarder until its context is canceled.
func newRootCommand() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "ocimetricsforwarder",
		Short: "Forwards OCI Monitoring metrics to Dynatrace",
		Example: "ocimetricsforwarder --config /etc/ocifwd/config.yaml\n" +
			"OCIFWD_EXPORTER__ENDPOINT=https://abc12345.live.dynatrace.com OCIFWD_EXPORTER__AUTH_MODE=api_token " +
			"OCIFWD_EXPORTER__API_TOKEN=dt0c01.xxx ocimetricsforwarder",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err = cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			logger, err := telemetry.NewLogger(cfg.Telemetry)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			return run(cmd.Context(), cfg, logger)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML configuration file; OCIFWD_* environment variables override it")
	cmd.CompletionOptions.DisableDefaultCmd = true
	return cmd
}

func loadTable(cfg config.Translator) (*ocimetrics.Table, error) {
	if cfg.MappingFile == "" {
		return ocimetrics.DefaultTable()
	}
	return ocimetrics.LoadTableFile(cfg.MappingFile)
}

// run wires the receiver, translator and exporter and blocks until ctx is done
// or a server fails.
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	reg := telemetry.NewRegistry()
	set := telemetry.Settings{
		Logger:  logger,
		Metrics: telemetry.NewMetrics(reg),
	}

	table, err := loadTable(cfg.Translator)
	if err != nil {
		return fmt.Errorf("failed to load mapping table: %w", err)
	}
	logger.Info("Loaded mapping table",
		zap.Strings("namespaces", table.Namespaces()),
		zap.Bool("catch_all", cfg.Translator.CatchAll))
	translator := ocimetrics.NewTranslator(table, cfg.Translator.CatchAll, logger)

	exporter, err := dynatraceexporter.New(cfg.Exporter, set)
	if err != nil {
		return err
	}
	receiver, err := ocimetricsreceiver.New(cfg.Receiver, set, translator, exporter)
	if err != nil {
		return err
	}

	fatal := make(chan error, 2)
	reportFatal := func(err error) {
		select {
		case fatal <- err:
		default:
		}
	}

	var telemetryServer *http.Server
	if cfg.Telemetry.MetricsEndpoint != "" {
		ln, errListen := net.Listen("tcp", cfg.Telemetry.MetricsEndpoint)
		if errListen != nil {
			return fmt.Errorf("failed to bind metrics endpoint %s: %w", cfg.Telemetry.MetricsEndpoint, errListen)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", telemetry.Handler(reg, logger))
		telemetryServer = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		logger.Info("Serving self-metrics", zap.Stringer("endpoint", ln.Addr()))
		go func() {
			if errHTTP := telemetryServer.Serve(ln); !errors.Is(errHTTP, http.ErrServerClosed) && errHTTP != nil {
				reportFatal(errHTTP)
			}
		}()
	}

	if err = receiver.Start(ctx, reportFatal); err != nil {
		if telemetryServer != nil {
			_ = telemetryServer.Close()
		}
		return err
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case runErr = <-fatal:
		logger.Error("Server failed, shutting down", zap.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err = receiver.Shutdown(shutdownCtx); err != nil {
		runErr = multierr.Append(runErr, err)
	}
	if telemetryServer != nil {
		if err = telemetryServer.Shutdown(shutdownCtx); err != nil {
			runErr = multierr.Append(runErr, err)
		}
	}
	return runErr
}
