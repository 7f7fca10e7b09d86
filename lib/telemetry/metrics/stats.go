package metrics

import (
	"log/slog"
	"slices"

	"github.com/artie-labs/warehouse/lib/config"
	"github.com/artie-labs/warehouse/lib/config/constants"
	"github.com/artie-labs/warehouse/lib/telemetry/metrics/base"
	"github.com/artie-labs/warehouse/lib/telemetry/metrics/datadog"
	"github.com/artie-labs/warehouse/lib/telemetry/metrics/prometheus"
)

var supportedExporterKinds = []constants.ExporterKind{constants.Datadog, constants.Prometheus}

func exporterKindValid(kind constants.ExporterKind) bool {
	return slices.Contains(supportedExporterKinds, kind)
}

func LoadExporter(cfg config.Config) base.Client {
	kind := cfg.Telemetry.Metrics.Provider
	settings := cfg.Telemetry.Metrics.Settings
	if !exporterKindValid(kind) {
		slog.Info("Invalid or no exporter kind passed in, skipping...", slog.Any("exporterKind", kind))
		return NullMetricsProvider{}
	}

	var client base.Client
	var err error
	switch kind {
	case constants.Datadog:
		client, err = datadog.NewDatadogClient(settings)
	case constants.Prometheus:
		client, err = prometheus.NewPrometheusClient(settings)
	}

	if err != nil {
		slog.Error("Metrics client error", slog.Any("err", err), slog.Any("provider", kind))
		return NullMetricsProvider{}
	}

	slog.Info("Metrics client loaded", slog.Any("provider", kind))
	return client
}
