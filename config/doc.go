// Package config handles application configuration loading and validation.
//
// Configuration is loaded from config.yml and validated using struct tags.
// Secrets (the upstream API key, the gateway shared secret, the notification
// sink token) can be supplied or overridden through BRIDGEWATCH_* environment
// variables so the YAML file can be committed without credentials.
package config
