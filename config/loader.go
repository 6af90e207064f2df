package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Load reads, validates, and defaults the application configuration. When no
// paths are given, config.yml is looked up in the working directory and under
// ./deploy/.
func Load(paths ...string) (*AppConfig, error) {
	if len(paths) == 0 {
		paths = []string{"config.yml", "./deploy/config.yml"}
	}
	var data []byte
	var err error
	for _, p := range paths {
		data, err = os.ReadFile(p)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	v := validator.New()
	if err := v.Struct(cfg.Gateway); err != nil {
		return nil, fmt.Errorf("gateway config: %w", err)
	}
	if err := v.Struct(cfg.Bridge); err != nil {
		return nil, fmt.Errorf("bridge config: %w", err)
	}
	if err := v.Struct(cfg.Dispatch); err != nil {
		return nil, fmt.Errorf("dispatch config: %w", err)
	}
	if err := v.Struct(cfg.Notify); err != nil {
		return nil, fmt.Errorf("notify config: %w", err)
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := os.Getenv("BRIDGEWATCH_UPSTREAM_API_KEY"); v != "" {
		cfg.Gateway.UpstreamAPIKey = v
	}
	if v := os.Getenv("BRIDGEWATCH_SHARED_SECRET"); v != "" {
		cfg.Gateway.SharedSecret = v
		cfg.Dispatch.SharedSecret = v
	}
	if v := os.Getenv("BRIDGEWATCH_NOTIFY_TOKEN"); v != "" {
		cfg.Notify.Token = v
	}
	if v := os.Getenv("BRIDGEWATCH_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.Port = port
		}
	}
	if v := os.Getenv("BRIDGEWATCH_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

func applyDefaults(cfg *AppConfig) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = 8090
	}
	if cfg.Gateway.MaxConnectionsPerIP == 0 {
		cfg.Gateway.MaxConnectionsPerIP = 5
	}
	if cfg.Gateway.MaxMessagesPerMinute == 0 {
		cfg.Gateway.MaxMessagesPerMinute = 60
	}
	if cfg.Gateway.SubscriptionTimeoutSec == 0 {
		cfg.Gateway.SubscriptionTimeoutSec = 10
	}
	if cfg.Gateway.MaxBoundingBoxes == 0 {
		cfg.Gateway.MaxBoundingBoxes = 5
	}
	if cfg.Gateway.MaxBoxAreaDeg2 == 0 {
		cfg.Gateway.MaxBoxAreaDeg2 = 25.0
	}
	if cfg.Bridge.ThresholdNM == 0 {
		cfg.Bridge.ThresholdNM = 0.5
	}
	if cfg.Bridge.MinSpeedKn == 0 {
		cfg.Bridge.MinSpeedKn = 0.5
	}
	if cfg.Bridge.CooldownMin == 0 {
		cfg.Bridge.CooldownMin = 30
	}
	if cfg.Bridge.StaleTimeoutMin == 0 {
		cfg.Bridge.StaleTimeoutMin = 15
	}
	if cfg.Bridge.EvictionIntervalMin == 0 {
		cfg.Bridge.EvictionIntervalMin = 5
	}
	if cfg.Dispatch.ReconnectInitialSec == 0 {
		cfg.Dispatch.ReconnectInitialSec = 2
	}
	if cfg.Dispatch.ReconnectMaxSec == 0 {
		cfg.Dispatch.ReconnectMaxSec = 60
	}
	if cfg.Notify.Priority == 0 {
		cfg.Notify.Priority = 4
	}
}
