package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	DefaultFile = "sessiond.yaml"
	EnvPrefix   = "SESSIOND_"
)

type Config struct {
	Session   SessionConfig   `koanf:"session"`
	Transport TransportConfig `koanf:"transport"`
	Reconnect ReconnectConfig `koanf:"reconnect"`
	Server    ServerConfig    `koanf:"server"`
	Redis     RedisConfig     `koanf:"redis"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Log       LogConfig       `koanf:"log"`
}

type SessionConfig struct {
	WSURL          string        `koanf:"ws_url"`
	Token          string        `koanf:"token"`
	SessionID      string        `koanf:"session_id"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
	SendInit       bool          `koanf:"send_init"`
	InitialPrompt  string        `koanf:"initial_prompt"`
	// AutoConnect dials as soon as the daemon starts.
	AutoConnect bool `koanf:"auto_connect"`
}

type TransportConfig struct {
	HandshakeTimeout time.Duration `koanf:"handshake_timeout"`
	WriteTimeout     time.Duration `koanf:"write_timeout"`
	PingInterval     time.Duration `koanf:"ping_interval"`
	PongWait         time.Duration `koanf:"pong_wait"`
	MaxFrameBytes    int64         `koanf:"max_frame_bytes"`
}

type ReconnectConfig struct {
	Mode                string        `koanf:"mode"` // manual, backoff
	MaxAttempts         uint          `koanf:"max_attempts"`
	InitialInterval     time.Duration `koanf:"initial_interval"`
	MaxInterval         time.Duration `koanf:"max_interval"`
	Multiplier          float64       `koanf:"multiplier"`
	RandomizationFactor float64       `koanf:"randomization_factor"`
	MaxElapsedTime      time.Duration `koanf:"max_elapsed_time"`
}

type ServerConfig struct {
	Addr         string        `koanf:"addr"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

type RedisConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json, text
}

var defaults = map[string]any{
	"session.connect_timeout":        15 * time.Second,
	"session.send_init":              true,
	"transport.handshake_timeout":    10 * time.Second,
	"transport.write_timeout":        10 * time.Second,
	"transport.ping_interval":        25 * time.Second,
	"transport.pong_wait":            60 * time.Second,
	"transport.max_frame_bytes":      int64(8 << 20),
	"reconnect.mode":                 "manual",
	"reconnect.max_attempts":         uint(5),
	"reconnect.initial_interval":     time.Second,
	"reconnect.max_interval":         30 * time.Second,
	"reconnect.multiplier":           2.0,
	"reconnect.randomization_factor": 0.5,
	"reconnect.max_elapsed_time":     10 * time.Minute,
	"server.addr":                    "127.0.0.1:8787",
	"server.read_timeout":            30 * time.Second,
	"server.write_timeout":           120 * time.Second,
	"redis.addr":                     "localhost:6379",
	"metrics.enabled":                true,
	"metrics.addr":                   "127.0.0.1:9090",
	"log.level":                      "info",
	"log.format":                     "json",
}

// Load reads path (missing is fine), then SESSIOND_* environment
// variables, then fills defaults. Nested keys use a double underscore:
// SESSIOND_SESSION__WS_URL sets session.ws_url.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path == "" {
		path = DefaultFile
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	for key, val := range defaults {
		if !k.Exists(key) {
			k.Set(key, val)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Session.WSURL == "" {
		errs = append(errs, errors.New("session.ws_url is required"))
	}
	if c.Session.SessionID == "" {
		errs = append(errs, errors.New("session.session_id is required"))
	}
	switch c.Reconnect.Mode {
	case "manual", "backoff":
	default:
		errs = append(errs, fmt.Errorf("reconnect.mode %q must be manual or backoff", c.Reconnect.Mode))
	}
	if c.Reconnect.RandomizationFactor < 0 || c.Reconnect.RandomizationFactor > 1 {
		errs = append(errs, fmt.Errorf("reconnect.randomization_factor %v out of range [0,1]", c.Reconnect.RandomizationFactor))
	}
	if c.Transport.PingInterval > 0 && c.Transport.PongWait > 0 && c.Transport.PingInterval >= c.Transport.PongWait {
		errs = append(errs, errors.New("transport.ping_interval must be shorter than transport.pong_wait"))
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required when redis is enabled"))
	}
	return errors.Join(errs...)
}
