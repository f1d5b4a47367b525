package config

import (
	"fmt"
	"os"
	"time"

	"github.com/adhocore/gronx"
	"gopkg.in/yaml.v3"
)

const (
	defaultAddr   = "0.0.0.0:3000"
	defaultWSAddr = "0.0.0.0:3001"

	defaultCacheThreads  = 100
	defaultCacheSections = 500
	defaultCacheEvents   = 2000
	defaultCacheUsers    = 200

	defaultLockDuration = 600 * time.Second
	minLockDuration     = time.Second

	defaultRateRPS   = 1000
	defaultRateBurst = 1000

	defaultTelemetryCron          = "* * * * *"
	defaultTelemetryBufferSize    = 1024 * 1024
	defaultTelemetryFileMaxSize   = 40 * 1024 * 1024 // 40MB
	defaultTelemetryFlushInterval = 2 * time.Second
	defaultTelemetryQueueCapacity = 2048

	defaultWSSendBuffer     = 64
	defaultWSMaxMessageSize = 64 * 1024
)

// Addr returns the REST listen address.
func (c *Config) Addr() string {
	if c.Server.Address == "" {
		return defaultAddr
	}
	return c.Server.Address
}

// WSAddr returns the broadcast listen address.
func (c *Config) WSAddr() string {
	if c.Server.WSAddress == "" {
		return defaultWSAddr
	}
	return c.Server.WSAddress
}

// LoadConfigFile reads and parses a config file.
func LoadConfigFile(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

// ValidateConfig fills in missing defaults and rejects invalid values.
func (c *Config) ValidateConfig() error {
	if c.Server.Address == "" {
		c.Server.Address = defaultAddr
	}
	if c.Server.WSAddress == "" {
		c.Server.WSAddress = defaultWSAddr
	}

	for name, n := range map[string]int{
		"threads":  c.Cache.Threads,
		"sections": c.Cache.Sections,
		"events":   c.Cache.Events,
		"users":    c.Cache.Users,
	} {
		if n < 0 {
			return fmt.Errorf("cache.%s must not be negative: %d", name, n)
		}
	}
	if c.Cache.Threads == 0 {
		c.Cache.Threads = defaultCacheThreads
	}
	if c.Cache.Sections == 0 {
		c.Cache.Sections = defaultCacheSections
	}
	if c.Cache.Events == 0 {
		c.Cache.Events = defaultCacheEvents
	}
	if c.Cache.Users == 0 {
		c.Cache.Users = defaultCacheUsers
	}

	if c.Locks.Duration.Duration() == 0 {
		c.Locks.Duration = Duration(defaultLockDuration)
	}
	if c.Locks.Duration.Duration() < minLockDuration {
		return fmt.Errorf("locks.duration must be at least %s, got %s", minLockDuration, c.Locks.Duration.Duration())
	}

	if c.Security.RateLimit.RPS <= 0 {
		c.Security.RateLimit.RPS = defaultRateRPS
	}
	if c.Security.RateLimit.Burst <= 0 {
		c.Security.RateLimit.Burst = defaultRateBurst
	}

	if c.Telemetry.Cron == "" {
		c.Telemetry.Cron = defaultTelemetryCron
	}
	if !gronx.IsValid(c.Telemetry.Cron) {
		return fmt.Errorf("invalid telemetry cron expression: %s", c.Telemetry.Cron)
	}
	if c.Telemetry.BufferSize.Int64() == 0 {
		c.Telemetry.BufferSize = SizeBytes(defaultTelemetryBufferSize)
	}
	if c.Telemetry.FileMaxSize.Int64() == 0 {
		c.Telemetry.FileMaxSize = SizeBytes(defaultTelemetryFileMaxSize)
	}
	if c.Telemetry.FlushInterval.Duration() == 0 {
		c.Telemetry.FlushInterval = Duration(defaultTelemetryFlushInterval)
	}
	if c.Telemetry.QueueCapacity <= 0 {
		c.Telemetry.QueueCapacity = defaultTelemetryQueueCapacity
	}

	if c.WS.SendBuffer <= 0 {
		c.WS.SendBuffer = defaultWSSendBuffer
	}
	if c.WS.MaxMessageSize.Int64() <= 0 {
		c.WS.MaxMessageSize = SizeBytes(defaultWSMaxMessageSize)
	}
	return nil
}

// ResolveConfigPath returns the config file path, preferring flag, then env.
func ResolveConfigPath(flagPath string, flagSet bool) string {
	if flagSet {
		return flagPath
	}
	if p := os.Getenv("ENCELADUS_CONFIG"); p != "" {
		return p
	}
	return flagPath
}
