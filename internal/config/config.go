package config

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	envConfigPath     = "SNAPWATCH_CONFIG"
	DefaultConfigPath = "/etc/snapwatch/watcher.yaml"
)

const (
	defaultIntervalSeconds = 5
	defaultCooldownMinutes = 10
	defaultHysteresis      = 1
	defaultTimeoutSeconds  = 3
	defaultListenAddr      = "127.0.0.1:8090"
)

type Config struct {
	Watch  WatchConfig  `yaml:"watch"`
	Device DeviceConfig `yaml:"device"`
	Ntfy   NtfyConfig   `yaml:"ntfy"`
	API    APIConfig    `yaml:"api"`
}

type WatchConfig struct {
	Dir             string   `yaml:"dir"`
	Extensions      []string `yaml:"extensions"`
	IntervalSeconds float64  `yaml:"interval_seconds"`
	CooldownMinutes int      `yaml:"cooldown_minutes"`
}

// Interval is the loop's poll cadence.
func (w WatchConfig) Interval() time.Duration {
	return time.Duration(w.IntervalSeconds * float64(time.Second))
}

// Cooldown is the minimum spacing between two motion alerts.
func (w WatchConfig) Cooldown() time.Duration {
	return time.Duration(w.CooldownMinutes) * time.Minute
}

type DeviceConfig struct {
	HealthURL      string  `yaml:"health_url"`
	PingHost       string  `yaml:"ping_host"`
	TimeoutSeconds float64 `yaml:"timeout_seconds"`
	Hysteresis     int     `yaml:"hysteresis"`
}

// Timeout bounds one reachability probe.
func (d DeviceConfig) Timeout() time.Duration {
	return time.Duration(d.TimeoutSeconds * float64(time.Second))
}

type NtfyConfig struct {
	Server        string              `yaml:"server"`
	Topic         string              `yaml:"topic"`
	RatePerMinute int                 `yaml:"rate_per_minute"`
	Defaults      Template            `yaml:"defaults"`
	Templates     map[string]Template `yaml:"templates"`
	Vars          map[string]string   `yaml:"vars"`
}

// Template describes one notification rendering: header fields plus a
// message body with {placeholder} substitution.
type Template struct {
	Title    string   `yaml:"title"`
	Priority int      `yaml:"priority"`
	Tags     []string `yaml:"tags"`
	Message  string   `yaml:"message"`
}

type APIConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	AutoStart  bool   `yaml:"auto_start"`
}

// defaults returns a Config pre-seeded with the fallback values. Load
// unmarshals the file over it, so only keys absent from the file keep
// their defaults; explicit zeros survive and go through Validate.
func defaults() Config {
	return Config{
		Watch: WatchConfig{
			IntervalSeconds: defaultIntervalSeconds,
			CooldownMinutes: defaultCooldownMinutes,
		},
		Device: DeviceConfig{
			TimeoutSeconds: defaultTimeoutSeconds,
			Hysteresis:     defaultHysteresis,
		},
		API: APIConfig{
			ListenAddr: defaultListenAddr,
		},
	}
}

func Load(ctx context.Context, path string) (Config, error) {
	cfg := defaults()

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return cfg, fmt.Errorf("open config %q: %w", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return cfg, fmt.Errorf("read config %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %q: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validate config %q: %w", path, err)
	}

	return cfg, nil
}

func LoadFromEnv(ctx context.Context) (Config, error) {
	path := os.Getenv(envConfigPath)
	if path == "" {
		path = DefaultConfigPath
	}
	return Load(ctx, path)
}

// Validate enforces the invariants the watcher relies on. A cooldown of
// zero is legal and disables alert spacing; interval, timeout, and
// hysteresis must be positive even when written out explicitly.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Watch.Dir) == "" {
		return fmt.Errorf("watch.dir is required")
	}
	if len(c.Watch.Extensions) == 0 {
		return fmt.Errorf("watch.extensions must list at least one extension")
	}
	if c.Watch.IntervalSeconds <= 0 {
		return fmt.Errorf("watch.interval_seconds must be positive, got %v", c.Watch.IntervalSeconds)
	}
	if c.Watch.CooldownMinutes < 0 {
		return fmt.Errorf("watch.cooldown_minutes must not be negative, got %d", c.Watch.CooldownMinutes)
	}
	if c.Device.Hysteresis < 1 {
		return fmt.Errorf("device.hysteresis must be at least 1, got %d", c.Device.Hysteresis)
	}
	if c.Device.TimeoutSeconds <= 0 {
		return fmt.Errorf("device.timeout_seconds must be positive, got %v", c.Device.TimeoutSeconds)
	}
	if c.Device.HealthURL == "" && c.Device.PingHost == "" {
		return fmt.Errorf("device.health_url or device.ping_host is required")
	}
	if c.Ntfy.RatePerMinute < 0 {
		return fmt.Errorf("ntfy.rate_per_minute must not be negative, got %d", c.Ntfy.RatePerMinute)
	}
	return nil
}
