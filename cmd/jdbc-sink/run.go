package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/hasnat/kafka-connect-jdbc/internal/pipeline"
	"github.com/hasnat/kafka-connect-jdbc/pkg/config"
	"github.com/hasnat/kafka-connect-jdbc/pkg/connector/registry"
	"github.com/hasnat/kafka-connect-jdbc/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func newRunCmd() *cobra.Command {
	var configFile, logLevel string
	var tasks int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the sink",
		Long: `Run the sink with the given YAML configuration. Any setting can be
overridden from the environment, e.g. JDBC_SINK_SINK_TABLE=orders.

Example:
  jdbc-sink run --config sink.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.Logging.Level = logLevel
			}
			if tasks > 0 {
				cfg.Tasks = tasks
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to the YAML configuration file (required)")
	_ = cmd.MarkFlagRequired("config")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error), overrides logging.level")
	cmd.Flags().IntVar(&tasks, "tasks", 0, "Number of sink tasks, overrides tasks")
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Encoding:    cfg.Logging.Encoding,
		Development: cfg.Logging.Development,
	}); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	log := logger.With(
		zap.String("component", "jdbc-sink-cli"),
		zap.String("connector", cfg.Name))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Tracing.Enabled {
		shutdown, err := setupTracing(cfg.Tracing)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	if cfg.Metrics.Listen != "" {
		srv := serveMetrics(cfg.Metrics.Listen, log)
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	tasks, err := pipeline.BuildTasks(cfg, registry.GetRegistry())
	if err != nil {
		return err
	}

	log.Info("starting sink",
		zap.Int("tasks", len(tasks)),
		zap.Strings("topics", cfg.Source.Topics),
		zap.String("table", cfg.Sink.Table),
		zap.String("driver", cfg.Sink.Driver.Class))

	start := time.Now()
	err = pipeline.NewRunner(tasks...).Run(ctx)

	var written int64
	for _, t := range tasks {
		written += t.Stats().Written
	}
	log.Info("sink stopped",
		zap.Duration("duration", time.Since(start)),
		zap.Int64("records_written", written),
		zap.Error(err))
	return err
}

func serveMetrics(addr string, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("metrics server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()
	return srv
}

// setupTracing installs a global tracer provider exporting to stdout.
func setupTracing(cfg config.TracingConfig) (func(), error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", cfg.ServiceName),
		)),
	)
	otel.SetTracerProvider(tp)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = tp.Shutdown(ctx)
	}, nil
}
