package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/lyricgen/lyricgen/internal/batch"
	"github.com/lyricgen/lyricgen/internal/config"
	"github.com/lyricgen/lyricgen/internal/delivery"
	"github.com/lyricgen/lyricgen/internal/fanout"
	"github.com/lyricgen/lyricgen/internal/logging"
	"github.com/lyricgen/lyricgen/internal/metrics"
	"github.com/lyricgen/lyricgen/internal/providers"
	"github.com/lyricgen/lyricgen/internal/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the generate, curate and export workflow over HTTP",
	Long: `Starts an HTTP server over a single shared batch:

  POST /v1/batches         run a batch
  GET  /v1/batch           current batch, results and curation entries
  PUT  /v1/batch/entries   edit or select a response
  GET  /v1/batch/export    download the dataset
  GET  /v1/batch/report    markdown summary of the batch
  POST /v1/batch/deliver   push the dataset to the configured sink
  GET  /healthz, /metrics`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveListen, "listen", "l", "", "Listen address (default: server.listen)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadProjectConfig(configPath)
	if err != nil {
		return ExitError{Code: exitConfig, Err: err}
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return ExitError{Code: exitConfig, Err: err}
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	coll := metrics.New(registry)

	provider, err := providers.Resolve(cmd.Context(), cfg)
	if err != nil {
		return ExitError{Code: exitGeneral, Err: err}
	}

	var sink delivery.Sink
	if resolved, err := delivery.Resolve(cfg.Delivery); err != nil {
		logger.Warn("delivery disabled", zap.Error(err))
	} else {
		sink = delivery.Instrument(resolved, coll)
	}

	srv := server.New(server.Options{
		Coordinator: fanout.NewCoordinator(provider, fanout.Options{
			Concurrency: cfg.Generation.Concurrency,
			MaxCount:    cfg.Generation.MaxCount,
			Logger:      logger,
			Metrics:     coll,
		}),
		State:        batch.NewState(),
		Sink:         sink,
		Generation:   cfg.Generation,
		ArtifactName: delivery.ArtifactFilename(cfg.Delivery),
		Gatherer:     registry,
		Logger:       logger,
		Version:      version,
	})

	listen := cfg.Server.Listen
	if serveListen != "" {
		listen = serveListen
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("lyricgen server",
		zap.String("provider", provider.Name()),
		zap.String("listen", listen),
		zap.Int("default_count", cfg.Generation.Count),
	)
	if err := srv.ListenAndServe(ctx, listen); err != nil {
		return ExitError{Code: exitGeneral, Err: err}
	}
	return nil
}
