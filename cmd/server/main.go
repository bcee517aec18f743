package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"playerbridge/internal/asset"
	"playerbridge/internal/dispatch"
	"playerbridge/internal/engine"
	"playerbridge/internal/engine/ffmpeg"
	"playerbridge/internal/engine/mpv"
	"playerbridge/internal/engine/virtual"
	"playerbridge/internal/platform/config"
	"playerbridge/internal/platform/logger"
	"playerbridge/internal/platform/metrics"
	"playerbridge/internal/player"
	"playerbridge/internal/thumbnail"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	cfg, err := config.FromEnv()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Error("load config", "error", err)
		os.Exit(1)
	}

	eng, err := newEngine(cfg.Engine, log)
	if err != nil {
		log.Error("engine setup", "error", err)
		os.Exit(1)
	}
	format, err := thumbnail.ParseFormat(cfg.ThumbnailFormat)
	if err != nil {
		log.Error("thumbnail setup", "error", err)
		os.Exit(1)
	}

	met := metrics.New()
	queue := dispatch.New(log)
	reg := player.NewRegistry(player.Options{
		Engine:  eng,
		Assets:  asset.New(cfg.AssetRoot),
		Queue:   queue,
		Log:     log,
		Metrics: met,
	})
	thumbs := thumbnail.New(thumbnail.Options{
		Thumbnailer: eng.Thumbnailer(),
		Prober:      eng.Prober(),
		Format:      format,
		Timeout:     cfg.ThumbnailTimeout,
		Log:         log,
		Metrics:     met,
	})

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() { met.SetActivePlayers(reg.Count()) }).ServeHTTP(w, r)
	})
	player.NewHandler(reg, log, met, cfg.WSOrigin).Register(r)
	thumbnail.NewHandler(thumbs, log).Register(r)

	addr := ":" + cfg.Port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", cfg.Port,
		"engine", eng.Name(),
		"asset_root", cfg.AssetRoot,
		"thumbnail_format", string(format),
		"log_level", cfg.LogLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
	}

	// disposing every player also closes the open event sockets
	reg.Close()
	queue.Close()

	log.Info("server stopped")
}

func newEngine(cfg config.Engine, log *slog.Logger) (engine.Engine, error) {
	switch cfg.Name {
	case "virtual":
		return virtual.New(virtual.Options{Log: log}), nil
	case "mpv", "":
		return mpv.New(mpv.Config{
			Path:             cfg.MPVPath,
			Args:             cfg.MPVArgs,
			Tools:            ffmpeg.New(cfg.FFmpegPath, cfg.FFprobePath, log),
			RendererServices: cfg.RendererServices,
			ScanInterval:     cfg.ScanInterval,
			Log:              log,
		}), nil
	}
	return nil, fmt.Errorf("unknown engine %q (want mpv or virtual)", cfg.Name)
}
