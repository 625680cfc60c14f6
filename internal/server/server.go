// Package server exposes a single-operator HTTP surface over one shared
// batch: submit, inspect, curate, export and deliver.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lyricgen/lyricgen/internal/batch"
	"github.com/lyricgen/lyricgen/internal/config"
	"github.com/lyricgen/lyricgen/internal/delivery"
	"github.com/lyricgen/lyricgen/internal/fanout"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Options struct {
	Coordinator  *fanout.Coordinator
	State        *batch.State
	Sink         delivery.Sink
	Generation   config.GenerationConfig
	ArtifactName string
	Gatherer     prometheus.Gatherer
	Logger       *zap.Logger
	Version      string
}

type Server struct {
	coordinator  *fanout.Coordinator
	state        *batch.State
	sink         delivery.Sink
	generation   config.GenerationConfig
	artifactName string
	logger       *zap.Logger
	version      string

	// submitting serializes batch runs; a second submission gets 409.
	submitting sync.Mutex
	router     *gin.Engine
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	state := opts.State
	if state == nil {
		state = batch.NewState()
	}
	artifactName := opts.ArtifactName
	if artifactName == "" {
		artifactName = config.DefaultArtifactName
	}
	s := &Server{
		coordinator:  opts.Coordinator,
		state:        state,
		sink:         opts.Sink,
		generation:   opts.Generation,
		artifactName: artifactName,
		logger:       logger,
		version:      opts.Version,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(logger))

	router.GET("/healthz", s.health)
	if opts.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/v1")
	v1.POST("/batches", s.submitBatch)
	v1.GET("/batch", s.getBatch)
	v1.PUT("/batch/entries", s.upsertEntry)
	v1.GET("/batch/export", s.exportBatch)
	v1.GET("/batch/report", s.batchReport)
	v1.POST("/batch/deliver", s.deliverBatch)

	s.router = router
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("server exited gracefully")
	return nil
}
