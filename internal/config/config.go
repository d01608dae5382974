// Package config loads and saves tburn configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config holds all tburn configuration.
type Config struct {
	General  GeneralConfig  `toml:"general"`
	Tibber   TibberConfig   `toml:"tibber"`
	Daemon   DaemonConfig   `toml:"daemon"`
	Subsidy  SubsidyConfig  `toml:"subsidy"`
	MQTT     MQTTConfig     `toml:"mqtt"`
	InfluxDB InfluxDBConfig `toml:"influxdb"`
	Archive  ArchiveConfig  `toml:"archive"`
}

// GeneralConfig holds general preferences.
type GeneralConfig struct {
	Timezone string `toml:"timezone,omitempty"`
	LogLevel string `toml:"log_level"`
	LogJSON  bool   `toml:"log_json"`
	Theme    string `toml:"theme"`
}

// TibberConfig holds API credentials. Email and password enable grid prices.
type TibberConfig struct {
	AccessToken string `toml:"access_token,omitempty"`
	HomeID      string `toml:"home_id,omitempty"`
	Email       string `toml:"email,omitempty"`
	Password    string `toml:"password,omitempty"`
	APIURL      string `toml:"api_url,omitempty"`
	AppURL      string `toml:"app_url,omitempty"`
}

// DaemonConfig holds settings for the background service.
type DaemonConfig struct {
	Addr            string `toml:"addr"`
	TickIntervalSec int    `toml:"tick_interval_sec"`
	FetchTimeoutSec int    `toml:"fetch_timeout_sec"`
	EventsBuffer    int    `toml:"events_buffer"`
	Notify          bool   `toml:"notify"`
}

// MQTTConfig holds the Home Assistant MQTT sink settings.
type MQTTConfig struct {
	Enabled         bool   `toml:"enabled"`
	Broker          string `toml:"broker"`
	Port            int    `toml:"port"`
	Username        string `toml:"username,omitempty"`
	Password        string `toml:"password,omitempty"`
	TopicPrefix     string `toml:"topic_prefix"`
	DiscoveryPrefix string `toml:"discovery_prefix"`
}

// InfluxDBConfig holds the InfluxDB v2 sink settings.
type InfluxDBConfig struct {
	Enabled bool   `toml:"enabled"`
	URL     string `toml:"url"`
	Token   string `toml:"token,omitempty"`
	Org     string `toml:"org"`
	Bucket  string `toml:"bucket"`
}

// ArchiveConfig holds the snapshot archive settings.
type ArchiveConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		General: GeneralConfig{
			LogLevel: "info",
			Theme:    "flexoki-dark",
		},
		Daemon: DaemonConfig{
			Addr:            "127.0.0.1:8787",
			TickIntervalSec: 15,
			FetchTimeoutSec: 30,
			EventsBuffer:    200,
		},
		MQTT: MQTTConfig{
			Port:            1883,
			TopicPrefix:     "tburn",
			DiscoveryPrefix: "homeassistant",
		},
		InfluxDB: InfluxDBConfig{
			URL:    "http://localhost:8086",
			Bucket: "tibber",
		},
		Archive: ArchiveConfig{
			Enabled: true,
		},
	}
}

// ConfigDir returns the XDG-compliant config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "tburn")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "tburn")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// DataDir returns the XDG-compliant data directory used for the archive
// and the daemon pid/log files.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "tburn")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "tburn")
}

// ArchivePath returns the configured archive path or the default one.
func (c Config) ArchivePath() string {
	if c.Archive.Path != "" {
		return c.Archive.Path
	}
	return filepath.Join(DataDir(), "archive.db")
}

// Location resolves the configured timezone, falling back to the local zone.
func (c Config) Location() (*time.Location, error) {
	if c.General.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.General.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: timezone %q: %w", c.General.Timezone, err)
	}
	return loc, nil
}

// GridPricesEnabled reports whether app credentials are configured.
func (c Config) GridPricesEnabled() bool {
	return c.Tibber.Email != "" && c.Tibber.Password != ""
}

// TickInterval returns the coordinator tick period.
func (c Config) TickInterval() time.Duration {
	if c.Daemon.TickIntervalSec <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.Daemon.TickIntervalSec) * time.Second
}

// FetchTimeout returns the per-fetch deadline.
func (c Config) FetchTimeout() time.Duration {
	if c.Daemon.FetchTimeoutSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Daemon.FetchTimeoutSec) * time.Second
}

// Load reads the config file, returning defaults if it doesn't exist.
// Environment overrides are applied afterwards.
func Load() (Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads the config at path. A missing file yields defaults.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path) //nolint:gosec // user-selected config path
	if err != nil {
		if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
	} else if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	loadDotEnv()
	applyEnv(&cfg)
	return cfg, nil
}

// loadDotEnv loads the first .env file found. Existing variables win.
func loadDotEnv() {
	candidates := []string{
		".env",
		filepath.Join(ConfigDir(), ".env"),
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err == nil {
			return
		}
	}
}

func applyEnv(cfg *Config) {
	overrides := []struct {
		env string
		dst *string
	}{
		{"TIBBER_ACCESS_TOKEN", &cfg.Tibber.AccessToken},
		{"TIBBER_HOME_ID", &cfg.Tibber.HomeID},
		{"TIBBER_EMAIL", &cfg.Tibber.Email},
		{"TIBBER_PASSWORD", &cfg.Tibber.Password},
		{"TBURN_MQTT_PASSWORD", &cfg.MQTT.Password},
		{"TBURN_INFLUX_TOKEN", &cfg.InfluxDB.Token},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.dst = v
		}
	}
}

// Save writes the config to disk.
func Save(cfg Config) error {
	return SaveTo(ConfigPath(), cfg)
}

// SaveTo writes the config to path, creating its directory.
func SaveTo(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600) //nolint:gosec // user-selected config path
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	enc := toml.NewEncoder(f)
	return enc.Encode(cfg)
}

// Exists returns true if a config file exists on disk.
func Exists() bool {
	_, err := os.Stat(ConfigPath())
	return err == nil
}

// Validate reports missing required settings.
func (c Config) Validate() error {
	if c.Tibber.AccessToken == "" {
		return fmt.Errorf("config: tibber access token is not set (run `tburn setup` or set TIBBER_ACCESS_TOKEN)")
	}
	if (c.Tibber.Email == "") != (c.Tibber.Password == "") {
		return fmt.Errorf("config: tibber email and password must be set together")
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("config: mqtt is enabled but no broker is set")
	}
	if c.InfluxDB.Enabled && (c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "") {
		return fmt.Errorf("config: influxdb requires org and bucket")
	}
	return c.Subsidy.Params().Validate()
}
