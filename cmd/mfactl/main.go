package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/danmuck/mfactl/internal/auth"
	"github.com/danmuck/mfactl/internal/config"
	"github.com/danmuck/mfactl/internal/logging"
	"github.com/danmuck/mfactl/internal/observability"
	"github.com/danmuck/mfactl/internal/protocol/assembler"
	"github.com/danmuck/mfactl/internal/receiver"
)

var startedAt = time.Now()

func main() {
	configPath := flag.String("config", "receiver.toml", "path to receiver config")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "mfactl: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	logging.ConfigureRuntime()

	cfg, err := config.LoadReceiverConfig(configPath)
	if err != nil {
		return err
	}
	key, err := cfg.Key()
	if err != nil {
		return err
	}

	logger := observability.InitLogger(cfg.Name)
	observability.RegisterMetrics()

	pipe, err := receiver.NewPipeline(receiver.Options{
		Key: key,
		Limits: assembler.Limits{
			Capacity:         cfg.FrameCapacity,
			InterByteTimeout: cfg.InterByteTimeout(),
		},
		CarryPartial: cfg.CarryPartial,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	// Seed the sample window so the stability score never starts empty.
	signalSrc := receiver.NewSyntheticSource(startedAt.UnixNano())
	pipe.SeedWindow(signalSrc)

	source := receiver.NewLoopback()
	if cfg.TransportPath != "" {
		f, err := os.Open(cfg.TransportPath)
		if err != nil {
			return fmt.Errorf("open transport %s: %w", cfg.TransportPath, err)
		}
		go func() {
			defer f.Close()
			if err := receiver.Bridge(f, source); err != nil {
				logger.Error().Err(err).Msg("transport bridge failed")
			}
		}()
		logger.Info().Str("transport", cfg.TransportPath).Msg("transport attached")
	} else {
		logger.Warn().Msg("no transport_path configured, receiver idles until bytes arrive")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		err := pipe.Run(ctx, source, signalSrc, receiver.LoopConfig{
			PollInterval:  cfg.PollInterval(),
			SignalRefresh: cfg.SignalRefresh(),
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("pipeline stopped")
		}
	}()

	router := newRouter(cfg, pipe, logger)
	srv := &http.Server{Addr: cfg.Addr, Handler: router}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", cfg.Addr).Msg("status api listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newRouter(cfg config.ReceiverConfig, pipe *receiver.Pipeline, logger zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(logger))
	r.Use(observability.RequestMetricsMiddleware())
	if len(cfg.CorsOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: cfg.CorsOrigins,
			AllowMethods: []string{"GET"},
			AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
			MaxAge:       12 * time.Hour,
		}))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(startedAt).String(),
			"service": cfg.Name,
		})
	})

	status := r.Group("/")
	if cfg.StatusToken != "" {
		status.Use(auth.Middleware(auth.StaticToken{Token: cfg.StatusToken}))
	}
	status.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, pipe.Report())
	})
	status.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
