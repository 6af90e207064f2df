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
	"github.com/harborwatch/bridgewatch/feed"
	"github.com/harborwatch/bridgewatch/geo"
	"github.com/harborwatch/bridgewatch/internal"
	"github.com/harborwatch/bridgewatch/notify"
	"github.com/harborwatch/bridgewatch/protocol"
	"github.com/harborwatch/bridgewatch/stream"
	"github.com/harborwatch/bridgewatch/tracking"
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

	tracker := tracking.New(tracking.Options{
		BridgeName:   cfg.Bridge.Name,
		BridgeLat:    cfg.Bridge.Latitude,
		BridgeLon:    cfg.Bridge.Longitude,
		ThresholdNM:  cfg.Bridge.ThresholdNM,
		MinSpeedKn:   cfg.Bridge.MinSpeedKn,
		Cooldown:     cfg.Bridge.Cooldown(),
		StaleTimeout: cfg.Bridge.StaleTimeout(),
	})

	notifier := notify.New(notify.Options{
		URL:      cfg.Notify.URL,
		Topic:    cfg.Notify.Topic,
		Token:    cfg.Notify.Token,
		Priority: cfg.Notify.Priority,
		Tags:     cfg.Notify.Tags,
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := stream.New(stream.Options{
		URL:            cfg.Dispatch.GatewayURL,
		SharedSecret:   cfg.Dispatch.SharedSecret,
		Subscription:   buildSubscription(cfg),
		InitialBackoff: cfg.Dispatch.ReconnectInitial(),
		MaxBackoff:     cfg.Dispatch.ReconnectMax(),
		Logger:         logger,
		OnMessage: func(data []byte) {
			env, err := feed.Decode(data)
			if err != nil {
				logger.Debug("undecodable feed message", zap.Error(err))
				return
			}
			if env.Position != nil {
				fields := []zap.Field{
					zap.Int("mmsi", env.MetaData.MMSI),
					zap.Float64("sog_kn", env.Position.Sog),
					zap.String("nav_status", feed.NavStatusLabel(env.Position.NavigationalStatus)),
				}
				if env.Position.TrueHeading != feed.HeadingUnavailable {
					fields = append(fields, zap.Int("heading", env.Position.TrueHeading))
				}
				logger.Debug("position report", fields...)
			}
			event := tracker.Ingest(env)
			if event == nil {
				return
			}
			fields := []zap.Field{
				zap.Int("mmsi", event.MMSI),
				zap.String("vessel", event.Name),
				zap.String("direction", string(event.Direction)),
				zap.Float64("speed_kn", event.SpeedKn),
				zap.String("distance", geo.PresentableDistance(event.DistanceNM)),
			}
			if event.CourseDeg != feed.CourseUnavailable {
				fields = append(fields, zap.String("course", geo.Compass(event.CourseDeg)))
			}
			logger.Info("crossing detected", fields...)
			if cfg.Notify.URL == "" {
				return
			}
			// Fire-and-forget so a slow sink never stalls the read loop.
			go func(event *tracking.CrossingEvent) {
				nctx, ncancel := context.WithTimeout(ctx, 15*time.Second)
				defer ncancel()
				if err := notifier.Notify(nctx, event); err != nil {
					logger.Error("notification failed", zap.Int("mmsi", event.MMSI), zap.Error(err))
				}
			}(event)
		},
	})

	go client.Run(ctx)
	go evictionLoop(ctx, tracker, cfg.Bridge.EvictionInterval(), logger)

	logger.Info("dispatch service started",
		zap.String("gateway", cfg.Dispatch.GatewayURL),
		zap.String("bridge", cfg.Bridge.Name))

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info("shutdown signal received")

	cancel()
	client.Close()
	logger.Info("dispatch service shut down cleanly")
}

func buildSubscription(cfg *config.AppConfig) protocol.Subscription {
	sub := protocol.Subscription{}
	for _, box := range cfg.Dispatch.BoundingBoxes {
		sub.BoundingBoxes = append(sub.BoundingBoxes, protocol.BoundingBox(box))
	}
	for _, t := range cfg.Dispatch.FilterMessageTypes {
		sub.FilterMessageTypes = append(sub.FilterMessageTypes, t)
	}
	return sub
}

func evictionLoop(ctx context.Context, tracker *tracking.Tracker, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			vessels, cooldowns := tracker.Evict()
			logger.Info("eviction sweep",
				zap.Int("tracked", tracker.TrackedCount()),
				zap.Int("vessels_evicted", vessels),
				zap.Int("cooldowns_evicted", cooldowns))
		}
	}
}
