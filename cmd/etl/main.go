// Command etl fetches the recent Hydrawise flow meter report for one
// controller, normalizes it and stores the rows. It runs once and exits;
// schedule it with cron or a Kubernetes CronJob.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/hydrawise-flowmeter-etl/internal/adapter/hydrawise"
	"github.com/couchcryptid/hydrawise-flowmeter-etl/internal/adapter/influx"
	kafkaadapter "github.com/couchcryptid/hydrawise-flowmeter-etl/internal/adapter/kafka"
	"github.com/couchcryptid/hydrawise-flowmeter-etl/internal/adapter/sqlstore"
	"github.com/couchcryptid/hydrawise-flowmeter-etl/internal/config"
	"github.com/couchcryptid/hydrawise-flowmeter-etl/internal/observability"
	"github.com/couchcryptid/hydrawise-flowmeter-etl/internal/pipeline"
)

func main() {
	if err := run(); err != nil {
		slog.Error("etl run failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", config.Path(), "path to the JSON or YAML config file")
	reportFile := flag.String("report-file", "", "read the report from this file instead of the Hydrawise API")
	dryRun := flag.Bool("dry-run", false, "normalize and log rows without storing them")
	initSchema := flag.Bool("init-schema", false, "create the flow meter table if it does not exist")
	flag.Parse()

	var opts []config.Option
	if *dryRun {
		opts = append(opts, config.WithDryRun())
	}
	if *reportFile != "" {
		opts = append(opts, config.WithOfflineReport())
	}
	cfg, err := config.Load(*configPath, opts...)
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg)
	slog.SetDefault(logger)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var source pipeline.ReportSource
	if *reportFile != "" {
		logger.Info("reading report from file", "path", *reportFile)
		source = hydrawise.FileSource{Path: *reportFile}
	} else {
		source = hydrawise.NewClient(cfg.Hydrawise, logger)
	}

	var sink pipeline.RowSink
	if !cfg.DryRun {
		store, err := sqlstore.Open(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer closeWith(logger, "sql store", store.Close)

		if *initSchema {
			if err := store.EnsureSchema(ctx); err != nil {
				return err
			}
		}

		sink = store
		if cfg.InfluxDB != nil {
			mirror := influx.NewWriter(cfg.InfluxDB)
			defer closeWith(logger, "influxdb writer", mirror.Close)
			sink = pipeline.NewMultiSink(logger, store, mirror)
			logger.Info("influxdb mirror enabled", "bucket", cfg.InfluxDB.Bucket)
		}
	}

	settings := pipeline.Settings{
		ControllerID: cfg.Hydrawise.ControllerID,
		Lookback:     cfg.Hydrawise.Lookback,
		DryRun:       cfg.DryRun,
	}
	if len(cfg.KafkaBrokers) > 0 {
		publisher := kafkaadapter.NewWriter(cfg, logger)
		defer closeWith(logger, "kafka writer", publisher.Close)
		settings.Publisher = publisher
		logger.Info("diagnostics publishing enabled", "topic", cfg.KafkaDiagnosticsTopic)
	}

	p := pipeline.New(source, sink, logger, metrics, settings)
	_, runErr := p.Run(ctx)

	if cfg.PushgatewayURL != "" {
		if err := metrics.Push(ctx, cfg.PushgatewayURL, cfg.PushJob); err != nil {
			logger.Error("metrics push failed", "error", err)
		}
	}

	if runErr != nil {
		return fmt.Errorf("run: %w", runErr)
	}
	return nil
}

func closeWith(logger *slog.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logger.Error("close error", "component", name, "error", err)
	}
}
