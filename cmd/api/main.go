package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"teamboard/configs"
	v1 "teamboard/internal/api/v1"
	"teamboard/internal/config"
	"teamboard/pkg/logger"
)

func main() {
	cfg := configs.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.InitLoggers(cfg.LogDir)
	defer logger.SyncLoggers()
	logger.SystemLogger.Info("Starting application",
		zap.String("time", time.Now().Format(time.RFC3339)),
		zap.String("env", cfg.Env),
		zap.String("driver", cfg.DBDriver),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	deps, err := config.NewDependencies(connectCtx, cfg)
	cancel()
	if err != nil {
		logger.ErrorLogger.Error("Cannot initialise dependencies", zap.Error(err))
		logger.SyncLoggers()
		os.Exit(1)
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	go deps.Hub.Run(hubCtx)

	app := v1.NewApp(deps)

	go func() {
		<-ctx.Done()
		logger.SystemLogger.Info("Shutting down")
		stopHub()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			logger.ErrorLogger.Error("Shutdown error", zap.Error(err))
		}
	}()

	logger.SystemLogger.Info("Application ready", zap.String("port", cfg.Port))
	if err := app.Listen(":" + cfg.Port); err != nil {
		logger.ErrorLogger.Error("Application failed to start", zap.Error(err))
	}

	stopHub()
	closeCtx, cancelClose := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelClose()
	if err := deps.Close(closeCtx); err != nil {
		logger.ErrorLogger.Error("Error closing store", zap.Error(err))
	}
}
