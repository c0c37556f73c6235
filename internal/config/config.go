package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/jengzang/roadsurvey-backend-go/internal/analysis"
	"github.com/jengzang/roadsurvey-backend-go/internal/models"
)

// Config 应用配置
type Config struct {
	Port      string
	DBPath    string
	JWTSecret string
	LogFormat string // text or json
	LogLevel  slog.Level

	// Stream session
	Feed      string   // feed subscribed to at startup
	Feeds     []string // accepted feeds; empty accepts any
	Presence  analysis.PresenceMode
	QueueSize int

	Thresholds      models.ThresholdSnapshot
	ThresholdSource string // profile or config

	// Transports, tried in the order replay, serial, MQTT
	MQTT       MQTTConfig
	Serial     SerialConfig
	ReplayFile string // line-delimited JSON replayed instead of a live transport

	RateLimit       int
	RateLimitWindow time.Duration

	v *viper.Viper
}

// Startup threshold sources
const (
	ThresholdSourceProfile = "profile" // the stored default profile
	ThresholdSourceConfig  = "config"  // the thresholds section and env overrides
)

// MQTTConfig describes the broker connection
type MQTTConfig struct {
	Broker      string // empty disables the MQTT transport
	TopicPrefix string
	ClientID    string
	Username    string
	Password    string
}

// SerialConfig describes a directly attached survey unit
type SerialConfig struct {
	Port     string // empty disables the serial transport
	BaudRate int
}

// Topic returns the subscription topic for a feed
func (m MQTTConfig) Topic(feed string) string {
	return m.TopicPrefix + feed
}

// Load 加载配置. CONFIG_FILE names an optional YAML/JSON/TOML file; environment
// variables always win over the file.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("CONFIG_FILE"))
}

// LoadFile loads configuration from path (may be empty) and the environment
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// names that do not follow the key.path -> KEY_PATH rule
	bindings := map[string]string{
		"thresholds.roughness": "ROUGHNESS_THRESHOLD",
		"thresholds.rut_depth": "RUT_DEPTH_THRESHOLD",
		"thresholds.cracking":  "CRACKING_THRESHOLD",
		"thresholds.ravelling": "RAVELLING_THRESHOLD",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		Port:      v.GetString("port"),
		DBPath:    v.GetString("db_path"),
		JWTSecret: v.GetString("jwt_secret"),
		LogFormat: strings.ToLower(v.GetString("log.format")),
		Feed:      strings.TrimSpace(v.GetString("feed")),
		Feeds:     splitList(v.GetStringSlice("feeds")),
		QueueSize: v.GetInt("queue_size"),
		MQTT: MQTTConfig{
			Broker:      v.GetString("mqtt.broker"),
			TopicPrefix: v.GetString("mqtt.topic_prefix"),
			ClientID:    v.GetString("mqtt.client_id"),
			Username:    v.GetString("mqtt.username"),
			Password:    v.GetString("mqtt.password"),
		},
		Serial: SerialConfig{
			Port:     v.GetString("serial.port"),
			BaudRate: v.GetInt("serial.baud"),
		},
		ReplayFile:      v.GetString("replay_file"),
		RateLimit:       v.GetInt("rate_limit.requests"),
		RateLimitWindow: v.GetDuration("rate_limit.window"),
		v:               v,
	}

	if !strings.Contains(cfg.Port, ":") {
		cfg.Port = ":" + cfg.Port
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString("log.level"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	presence, err := analysis.ParsePresenceMode(v.GetString("presence_mode"))
	if err != nil {
		return nil, err
	}
	cfg.Presence = presence

	if cfg.QueueSize <= 0 {
		return nil, fmt.Errorf("QUEUE_SIZE must be positive, got %d", cfg.QueueSize)
	}

	if cfg.RateLimit <= 0 || cfg.RateLimitWindow <= 0 {
		return nil, errors.New("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive")
	}

	cfg.ThresholdSource = strings.ToLower(v.GetString("thresholds.source"))
	if cfg.ThresholdSource != ThresholdSourceProfile && cfg.ThresholdSource != ThresholdSourceConfig {
		return nil, fmt.Errorf("THRESHOLDS_SOURCE must be %q or %q, got %q",
			ThresholdSourceProfile, ThresholdSourceConfig, cfg.ThresholdSource)
	}

	cfg.Thresholds = thresholdsFrom(v)
	if err := cfg.Thresholds.Validate(); err != nil {
		return nil, err
	}

	if cfg.Feed != "" && len(cfg.Feeds) > 0 && !contains(cfg.Feeds, cfg.Feed) {
		return nil, fmt.Errorf("FEED %q is not listed in FEEDS", cfg.Feed)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := models.DefaultThresholds()

	v.SetDefault("port", ":8080")
	v.SetDefault("db_path", "./data/roadsurvey.db")
	v.SetDefault("jwt_secret", "your-secret-key-change-in-production")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.level", "info")
	v.SetDefault("feed", "")
	v.SetDefault("feeds", []string{})
	v.SetDefault("presence_mode", string(analysis.PresenceTruthy))
	v.SetDefault("queue_size", 256)
	v.SetDefault("thresholds.source", ThresholdSourceProfile)
	v.SetDefault("thresholds.roughness", d.RoughnessThreshold)
	v.SetDefault("thresholds.rut_depth", d.RutDepthThreshold)
	v.SetDefault("thresholds.cracking", d.CrackingThreshold)
	v.SetDefault("thresholds.ravelling", d.RavellingThreshold)
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.topic_prefix", "survey/")
	v.SetDefault("mqtt.client_id", "roadsurvey-backend")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("serial.port", "")
	v.SetDefault("serial.baud", 115200)
	v.SetDefault("replay_file", "")
	v.SetDefault("rate_limit.requests", 30)
	v.SetDefault("rate_limit.window", time.Minute)
}

func thresholdsFrom(v *viper.Viper) models.ThresholdSnapshot {
	return models.ThresholdSnapshot{
		RoughnessThreshold: v.GetFloat64("thresholds.roughness"),
		RutDepthThreshold:  v.GetFloat64("thresholds.rut_depth"),
		CrackingThreshold:  v.GetFloat64("thresholds.cracking"),
		RavellingThreshold: v.GetFloat64("thresholds.ravelling"),
	}
}

// ErrNoConfigFile is returned by WatchThresholds when no file was loaded
var ErrNoConfigFile = errors.New("no config file to watch")

// WatchThresholds calls fn with the thresholds section every time the config
// file changes. Invalid values are logged and skipped.
func (c *Config) WatchThresholds(fn func(models.ThresholdSnapshot)) error {
	if c.v == nil || c.v.ConfigFileUsed() == "" {
		return ErrNoConfigFile
	}

	c.v.OnConfigChange(func(e fsnotify.Event) {
		t := thresholdsFrom(c.v)
		if err := t.Validate(); err != nil {
			slog.Warn("ignoring thresholds from config file", "file", e.Name, "err", err)
			return
		}
		fn(t)
	})
	c.v.WatchConfig()
	return nil
}

// splitList accepts both list values and comma separated strings
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
