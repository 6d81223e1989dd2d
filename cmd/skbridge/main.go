package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/woxQAQ/skwasm-bridge/internal/bridge"
	"github.com/woxQAQ/skwasm-bridge/internal/config"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const shutdownTimeout = 10 * time.Second

func newLogger(level string) (*zap.Logger, error) {
	var cfg zap.Config
	if level == "debug" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	cfg.Level = lvl
	return cfg.Build()
}

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "", "Path to configuration file")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error); overrides the configuration")
	engineName := flag.String("engine", "", "Engine to start; overrides the configuration")
	probe := flag.Bool("probe", false, "Print what each engine build imports and exports, then exit")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadBridgeConfig(*configPath)
	if err != nil {
		zap.NewExample().Fatal("Failed to load configuration", zap.Error(err))
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *engineName != "" {
		cfg.Engine = *engineName
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		zap.NewExample().Fatal("Invalid log level", zap.String("level", cfg.LogLevel), zap.Error(err))
	}
	defer logger.Sync()

	logger.Info("Starting skbridge",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("date", date),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	b, err := bridge.New(ctx, cfg, nil, logger)
	if err != nil {
		logger.Fatal("Failed to create bridge", zap.Error(err))
	}
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		if err := b.Close(shutdownCtx); err != nil {
			logger.Error("Shutdown error", zap.Error(err))
		}
	}()

	if *probe {
		reports, err := b.Probe(ctx)
		if err != nil {
			logger.Error("Probe failed", zap.Error(err))
			return
		}
		out, err := bridge.MarshalReports(reports)
		if err != nil {
			logger.Error("Failed to render probe report", zap.Error(err))
			return
		}
		os.Stdout.Write(out)
		return
	}

	if err := b.Start(ctx, cfg.Engine); err != nil {
		logger.Error("Failed to start engine", zap.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("Received shutdown signal")
}
