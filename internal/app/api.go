package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jaennil/guide_helper/backend/hips/internal/decoder"
	v1 "github.com/jaennil/guide_helper/backend/hips/internal/infrastructure/http/v1"
	"github.com/jaennil/guide_helper/backend/hips/internal/infrastructure/http/v1/handler"
	"github.com/jaennil/guide_helper/backend/hips/internal/loader"
	"github.com/jaennil/guide_helper/backend/hips/internal/repository/cache"
	"github.com/jaennil/guide_helper/backend/hips/internal/tilecache"
	"github.com/jaennil/guide_helper/backend/hips/internal/usecase"
	"github.com/jaennil/guide_helper/backend/hips/pkg/config"
	"github.com/jaennil/guide_helper/backend/hips/pkg/http_server"
	"github.com/jaennil/guide_helper/backend/hips/pkg/logger"
	"github.com/jaennil/guide_helper/backend/hips/pkg/telemetry"
	"golang.org/x/sync/errgroup"
)

func Run(cfg *config.Config) {
	l := logger.NewZapLogger(cfg.Logger)
	defer l.Sync()

	l.Info("app config", "cfg", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctx = logger.WithLogger(ctx, l)

	if cfg.Telemetry.Enabled {
		shutdownTelemetry, err := telemetry.InitTracer(telemetry.Config{
			ServiceName:    cfg.Telemetry.ServiceName,
			ServiceVersion: cfg.Telemetry.ServiceVersion,
			Environment:    cfg.Telemetry.Environment,
			OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		}, l)
		if err != nil {
			l.Fatal("failed to initialize telemetry", "error", err)
		}
		defer func() {
			if err := shutdownTelemetry(context.Background()); err != nil {
				l.Error("failed to shutdown telemetry", "error", err)
			}
		}()
		l.Info("telemetry initialized", "service", cfg.Telemetry.ServiceName)
	}

	store, err := cache.NewFromConfig(cfg.Cache, cfg.Redis, l)
	if err != nil {
		l.Fatal("failed to initialize disk cache", "error", err)
	}
	if closer, ok := store.(io.Closer); ok {
		defer closer.Close()
	}

	dec := decoder.New()
	fetcher := loader.NewHTTPFetcher(cfg.Loader.Timeout, cfg.Loader.UserAgent, l)
	pool := loader.NewPool(loader.Config{
		Workers:   cfg.Loader.Workers,
		QueueSize: cfg.Loader.QueueSize,
	}, fetcher, dec, store, l)
	defer pool.Close()

	budget := cfg.Cache.Budget(len(cfg.Surveys))
	sessions := make([]*usecase.Session, 0, len(cfg.Surveys))
	for _, sc := range cfg.Surveys {
		survey, err := buildSurvey(sc)
		if err != nil {
			l.Fatal("invalid survey", "error", err)
		}

		opts := tilecache.Options{
			Budget:      budget,
			MaxInflight: cfg.Cache.MaxInflight,
			MaxVisible:  cfg.Cache.MaxVisible,
			WriteQueue:  cfg.Cache.WriteQueue,
			Splitter:    dec,
			Logger:      l,
		}
		if store != nil {
			opts.Disk = store
		}

		tc, err := tilecache.New(survey, pool, opts)
		if err != nil {
			l.Fatal("failed to create tile cache", "survey", survey.ID, "error", err)
		}
		if lister, ok := store.(cache.Lister); ok {
			keys, err := lister.Keys(survey.ID)
			if err != nil {
				l.Warn("failed to list disk cache", "survey", survey.ID, "error", err)
			} else {
				tc.SeedDiskIndex(keys)
				l.Info("disk cache index loaded", "survey", survey.ID, "tiles", len(keys))
			}
		}

		sessions = append(sessions, usecase.NewSession(tc, l))
	}

	surveyUseCase := usecase.NewSurveyUseCase(l, sessions...)
	coverageUseCase := usecase.NewCoverageUseCase(l)

	validate := validator.New()
	h := handler.NewHandler(validate, surveyUseCase, coverageUseCase)
	router := v1.NewRouter(h, l, cfg.Telemetry.Enabled)

	httpServer := http_server.NewServer(ctx, cfg.HTTP.Server, router)

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range sessions {
		g.Go(func() error {
			return s.Run(gctx)
		})
	}

	g.Go(func() error {
		l.Info("starting http server...", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		l.Info("http server stopped", "address", httpServer.Addr)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		l.Info("received shutdown signal")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		l.Info("shutting down http server...", "address", httpServer.Addr)
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			l.Error("http server shutdown failed", "error", err)
			return err
		}
		l.Info("http_server shutdown completed")
		return nil
	})

	if err := g.Wait(); err != nil {
		l.Error("application stopped with error", "error", err)
	}

	l.Info("application shutdown completed")
}
