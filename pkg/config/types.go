package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config is the main configuration struct.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Security  SecurityConfig  `yaml:"security"`
	Logging   LoggingConfig   `yaml:"logging"`
	Cache     CacheConfig     `yaml:"cache"`
	Locks     LocksConfig     `yaml:"locks"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	WS        WSConfig        `yaml:"ws"`
}

// ServerConfig holds listener and storage settings.
type ServerConfig struct {
	Address     string `yaml:"address"`    // REST listener, host:port
	WSAddress   string `yaml:"ws_address"` // broadcast listener, host:port
	DBPath      string `yaml:"db_path"`
	DebugRoutes bool   `yaml:"debug_routes"`
}

// SecurityConfig holds security related settings.
type SecurityConfig struct {
	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`
	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`
	IPWhitelist []string `yaml:"ip_whitelist"`
	JWTSecret   string   `yaml:"jwt_secret"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// CacheConfig bounds each entity cache. Zero selects the default.
type CacheConfig struct {
	Threads  int `yaml:"threads"`
	Sections int `yaml:"sections"`
	Events   int `yaml:"events"`
	Users    int `yaml:"users"`
}

type LocksConfig struct {
	Duration Duration `yaml:"duration"`
}

// TelemetryConfig controls request traces and the client-count report.
type TelemetryConfig struct {
	Enabled       bool      `yaml:"enabled"`
	Cron          string    `yaml:"cron"`
	BufferSize    SizeBytes `yaml:"buffer_size"`
	FileMaxSize   SizeBytes `yaml:"file_max_size"`
	FlushInterval Duration  `yaml:"flush_interval"`
	QueueCapacity int       `yaml:"queue_capacity"`
}

// WSConfig tunes the broadcast listener.
type WSConfig struct {
	SendBuffer     int       `yaml:"send_buffer"`
	MaxMessageSize SizeBytes `yaml:"max_message_size"`
}

// SizeBytes represents a number of bytes, unmarshaled from human-friendly strings like "64KB" or plain integers.
type SizeBytes int64

func (s *SizeBytes) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*s = 0
		return nil
	}
	v, err := parseSize(node.Value)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func parseSize(raw string) (SizeBytes, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if v, err := humanize.ParseBytes(raw); err == nil {
		return SizeBytes(v), nil
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return SizeBytes(i), nil
	}
	return 0, fmt.Errorf("invalid size value: %q", raw)
}

func (s SizeBytes) Int64() int64 { return int64(s) }

func (s SizeBytes) String() string { return humanize.IBytes(uint64(s)) }

// Duration is a wrapper around time.Duration that supports YAML parsing from strings like "600s" or plain numbers (interpreted as seconds).
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*d = Duration(0)
		return nil
	}
	v, err := parseDuration(node.Value)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

func parseDuration(raw string) (Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if td, err := time.ParseDuration(raw); err == nil {
		return Duration(td), nil
	}
	// allow numeric seconds
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return Duration(time.Duration(f * float64(time.Second))), nil
	}
	return 0, fmt.Errorf("invalid duration value: %q", raw)
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }
