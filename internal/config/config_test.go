package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/roadsurvey-backend-go/internal/analysis"
	"github.com/jengzang/roadsurvey-backend-go/internal/models"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFile("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, analysis.PresenceTruthy, cfg.Presence)
	assert.Equal(t, 256, cfg.QueueSize)
	assert.Equal(t, models.DefaultThresholds(), cfg.Thresholds)
	assert.Equal(t, ThresholdSourceProfile, cfg.ThresholdSource)
	assert.Empty(t, cfg.Feeds)
	assert.Equal(t, 115200, cfg.Serial.BaudRate)
	assert.Empty(t, cfg.MQTT.Broker)
	assert.Equal(t, "survey/vehicle-1", cfg.MQTT.Topic("vehicle-1"))
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("PRESENCE_MODE", "explicit")
	t.Setenv("QUEUE_SIZE", "16")
	t.Setenv("FEEDS", "vehicle-1, vehicle-2")
	t.Setenv("FEED", "vehicle-2")
	t.Setenv("ROUGHNESS_THRESHOLD", "3000")
	t.Setenv("MQTT_BROKER", "tcp://broker:1883")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadFile("")
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Port)
	assert.Equal(t, analysis.PresenceExplicit, cfg.Presence)
	assert.Equal(t, 16, cfg.QueueSize)
	assert.Equal(t, []string{"vehicle-1", "vehicle-2"}, cfg.Feeds)
	assert.Equal(t, "vehicle-2", cfg.Feed)
	assert.Equal(t, 3000.0, cfg.Thresholds.RoughnessThreshold)
	assert.Equal(t, 5.0, cfg.Thresholds.RutDepthThreshold)
	assert.Equal(t, "tcp://broker:1883", cfg.MQTT.Broker)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name, env, value string
	}{
		{"presence", "PRESENCE_MODE", "sometimes"},
		{"queue", "QUEUE_SIZE", "0"},
		{"threshold", "RUT_DEPTH_THRESHOLD", "-1"},
		{"log level", "LOG_LEVEL", "loud"},
		{"threshold source", "THRESHOLDS_SOURCE", "database"},
		{"rate limit window", "RATE_LIMIT_WINDOW", "0s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.env, tt.value)
			_, err := LoadFile("")
			assert.Error(t, err)
		})
	}

	t.Run("feed not listed", func(t *testing.T) {
		t.Setenv("FEEDS", "vehicle-1")
		t.Setenv("FEED", "vehicle-9")
		_, err := LoadFile("")
		assert.Error(t, err)
	})
}

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestLoadFileAndWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roadsurvey.yaml")
	writeConfig(t, path, `
feeds: [vehicle-1]
mqtt:
  topic_prefix: "fleet/"
thresholds:
  roughness: 2600
  rut_depth: 4
  cracking: 5
  ravelling: 1
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"vehicle-1"}, cfg.Feeds)
	assert.Equal(t, "fleet/vehicle-1", cfg.MQTT.Topic("vehicle-1"))
	assert.Equal(t, 2600.0, cfg.Thresholds.RoughnessThreshold)
	assert.Equal(t, 4.0, cfg.Thresholds.RutDepthThreshold)

	var (
		mu  sync.Mutex
		got []models.ThresholdSnapshot
	)
	require.NoError(t, cfg.WatchThresholds(func(ts models.ThresholdSnapshot) {
		mu.Lock()
		got = append(got, ts)
		mu.Unlock()
	}))

	writeConfig(t, path, `
feeds: [vehicle-1]
thresholds:
  roughness: 2200
  rut_depth: 4
  cracking: 5
  ravelling: 1
`)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0 && got[len(got)-1].RoughnessThreshold == 2200
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWatchWithoutFile(t *testing.T) {
	cfg, err := LoadFile("")
	require.NoError(t, err)
	assert.ErrorIs(t, cfg.WatchThresholds(func(models.ThresholdSnapshot) {}), ErrNoConfigFile)
}
