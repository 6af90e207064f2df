package config

import "time"

// GatewayConfig configures the downstream websocket listener and its
// admission policy.
type GatewayConfig struct {
	Port                   int     `yaml:"port" validate:"gt=0"`
	UpstreamURL            string  `yaml:"upstreamURL" validate:"required,url"`
	UpstreamAPIKey         string  `yaml:"upstreamAPIKey"`
	SharedSecret           string  `yaml:"sharedSecret"`
	MaxConnectionsPerIP    int     `yaml:"maxConnectionsPerIP" validate:"gte=0"`
	MaxMessagesPerMinute   int     `yaml:"maxMessagesPerMinute" validate:"gte=0"`
	SubscriptionTimeoutSec int     `yaml:"subscriptionTimeoutSec" validate:"gte=0"`
	MaxBoundingBoxes       int     `yaml:"maxBoundingBoxes" validate:"gte=0"`
	MaxBoxAreaDeg2         float64 `yaml:"maxBoxAreaDeg2" validate:"gte=0"`
}

// BridgeConfig describes the watched landmark and the crossing detection
// thresholds around it.
type BridgeConfig struct {
	Name                string  `yaml:"name" validate:"required"`
	Latitude            float64 `yaml:"latitude" validate:"gte=-90,lte=90"`
	Longitude           float64 `yaml:"longitude" validate:"gte=-180,lte=180"`
	ThresholdNM         float64 `yaml:"thresholdNM" validate:"gte=0"`
	MinSpeedKn          float64 `yaml:"minSpeedKn" validate:"gte=0"`
	CooldownMin         int     `yaml:"cooldownMin" validate:"gte=0"`
	StaleTimeoutMin     int     `yaml:"staleTimeoutMin" validate:"gte=0"`
	EvictionIntervalMin int     `yaml:"evictionIntervalMin" validate:"gte=0"`
}

// DispatchConfig configures the dispatch service's connection to the gateway
// and its feed subscription.
type DispatchConfig struct {
	GatewayURL          string          `yaml:"gatewayURL" validate:"required,url"`
	SharedSecret        string          `yaml:"sharedSecret"`
	BoundingBoxes       [][2][2]float64 `yaml:"boundingBoxes" validate:"required,min=1"`
	FilterMessageTypes  []string        `yaml:"filterMessageTypes"`
	ReconnectInitialSec int             `yaml:"reconnectInitialSec" validate:"gte=0"`
	ReconnectMaxSec     int             `yaml:"reconnectMaxSec" validate:"gte=0"`
}

// NotifyConfig configures the push-notification sink.
type NotifyConfig struct {
	URL      string   `yaml:"url" validate:"omitempty,url"`
	Topic    string   `yaml:"topic"`
	Token    string   `yaml:"token"`
	Priority int      `yaml:"priority" validate:"gte=0,lte=5"`
	Tags     []string `yaml:"tags"`
}

// AppConfig is the root configuration structure shared by both binaries.
type AppConfig struct {
	LogLevel string         `yaml:"logLevel"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Bridge   BridgeConfig   `yaml:"bridge"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Notify   NotifyConfig   `yaml:"notify"`
}

// SubscriptionTimeout returns the gateway's first-message deadline.
func (g GatewayConfig) SubscriptionTimeout() time.Duration {
	return time.Duration(g.SubscriptionTimeoutSec) * time.Second
}

// Cooldown returns the minimum interval between two dispatched events for the
// same vessel.
func (b BridgeConfig) Cooldown() time.Duration {
	return time.Duration(b.CooldownMin) * time.Minute
}

// StaleTimeout returns how long a tracked vessel may go without an update
// before eviction.
func (b BridgeConfig) StaleTimeout() time.Duration {
	return time.Duration(b.StaleTimeoutMin) * time.Minute
}

// EvictionInterval returns the period of the stale-state sweep.
func (b BridgeConfig) EvictionInterval() time.Duration {
	return time.Duration(b.EvictionIntervalMin) * time.Minute
}

// ReconnectInitial returns the first reconnect backoff delay.
func (d DispatchConfig) ReconnectInitial() time.Duration {
	return time.Duration(d.ReconnectInitialSec) * time.Second
}

// ReconnectMax returns the reconnect backoff ceiling.
func (d DispatchConfig) ReconnectMax() time.Duration {
	return time.Duration(d.ReconnectMaxSec) * time.Second
}
