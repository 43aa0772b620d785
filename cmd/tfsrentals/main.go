package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"tfsrentals/internal/bootstrap"
	"tfsrentals/internal/config"
	"tfsrentals/internal/http/handlers"
	applog "tfsrentals/internal/log"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	lg, err := applog.Setup(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Printf("[warn] could not open log file %s: %v", cfg.LogFile, err)
		lg, err = applog.Setup(cfg.LogLevel, "")
		if err != nil {
			log.Fatal(err)
		}
	}
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, deps, err := bootstrap.Open(ctx, cfg, lg)
	if err != nil {
		lg.Fatal("startup failed", zap.Error(err))
	}
	defer db.Close()

	if seeded, err := bootstrap.SeedIfEmpty(ctx, db, deps); err != nil {
		lg.Fatal("seed catalog", zap.Error(err))
	} else if seeded {
		lg.Info("seeded default catalog")
	}

	go deps.Emails.Run(ctx, cfg.EmailInterval, cfg.EmailBatch)

	mediaDir := ""
	if cfg.MinioEndpoint == "" {
		mediaDir = cfg.MediaDir
		if abs, err := filepath.Abs(mediaDir); err == nil {
			mediaDir = abs
		}
		lg.Info("serving local media", zap.String("dir", mediaDir))
	}
	app := handlers.NewApp(deps, handlers.Options{MediaDir: mediaDir})

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(sctx); err != nil {
			lg.Error("shutdown", zap.Error(err))
		}
	}()

	lg.Info("listening", zap.String("port", cfg.Port))
	if err := app.Listen(":" + cfg.Port); err != nil {
		lg.Error("server stopped", zap.Error(err))
	}
}
