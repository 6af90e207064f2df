package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/harborwatch/bridgewatch/config"
	"github.com/harborwatch/bridgewatch/gateway"
	"github.com/harborwatch/bridgewatch/internal"
	"github.com/harborwatch/bridgewatch/protocol"
)

func main() {
	configPath := flag.String("config", "", "path to config.yml (default: search working directory)")
	flag.Parse()

	var paths []string
	if *configPath != "" {
		paths = append(paths, *configPath)
	}
	cfg, err := config.Load(paths...)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := internal.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Gateway.UpstreamAPIKey == "" {
		logger.Fatal("upstream API key is required (gateway.upstreamAPIKey or BRIDGEWATCH_UPSTREAM_API_KEY)")
	}

	gw := gateway.New(gateway.Options{
		Port:                 cfg.Gateway.Port,
		UpstreamURL:          cfg.Gateway.UpstreamURL,
		UpstreamAPIKey:       cfg.Gateway.UpstreamAPIKey,
		SharedSecret:         cfg.Gateway.SharedSecret,
		MaxConnectionsPerIP:  cfg.Gateway.MaxConnectionsPerIP,
		MaxMessagesPerMinute: cfg.Gateway.MaxMessagesPerMinute,
		SubscriptionTimeout:  cfg.Gateway.SubscriptionTimeout(),
		Limits: protocol.Limits{
			MaxBoundingBoxes: cfg.Gateway.MaxBoundingBoxes,
			MaxBoxAreaDeg2:   cfg.Gateway.MaxBoxAreaDeg2,
		},
		Logger: logger,
	})
	if err := gw.Start(); err != nil {
		logger.Fatal("gateway failed to start", zap.Error(err))
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := gw.Shutdown(ctx); err != nil {
		logger.Error("gateway shutdown error", zap.Error(err))
	} else {
		logger.Info("gateway shut down cleanly")
	}
}
