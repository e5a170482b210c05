package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
mongo:
  url: mongodb://localhost:27017
broker:
  url: ssl://broker:8883
  topic: quotes/all
`)

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "mongodb://localhost:27017", c.Mongo.URL)
	assert.Equal(t, "quotes", c.Mongo.Database)
	assert.Equal(t, "quote-ingest", c.Broker.ClientID)
	assert.Equal(t, 10000, c.Auth.TimeoutMs)
	assert.Equal(t, 30, c.Auth.ExpirySkewS)
	assert.Equal(t, 5000, c.Feed.ReconnectFloorMs)
	assert.Equal(t, 900000, c.Feed.ReconnectCeilingMs)
	assert.Equal(t, 30, c.Feed.WatchdogIntervalSecs)
	assert.Equal(t, 300, c.Feed.WatchdogGapSecs)
	assert.Equal(t, 300, c.Cache.TTLSeconds)
	assert.Equal(t, "*/30 * * * *", c.Cache.SweepCron)
	assert.Equal(t, 587, c.Alerts.SMTPPort)
	assert.Equal(t, "Asia/Ho_Chi_Minh", c.Session.Timezone)
	assert.Equal(t, ":8080", c.API.Addr)
}

func TestLoadExplicitValuesWin(t *testing.T) {
	path := writeConfig(t, `
debug: true
feed:
  reconnect_floor_ms: 2000
  watchdog_gap_seconds: 120
cache:
  ttl_seconds: 60
session:
  timezone: UTC
`)

	c, err := Load(path)
	require.NoError(t, err)

	assert.True(t, c.Debug)
	assert.Equal(t, 2000, c.Feed.ReconnectFloorMs)
	assert.Equal(t, 120, c.Feed.WatchdogGapSecs)
	assert.Equal(t, 60, c.Cache.TTLSeconds)
	assert.Equal(t, "UTC", c.Session.Timezone)
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("TEST_BROKER_PASSWORD", "s3cret")

	path := writeConfig(t, `
auth:
  username: svc
  password: ${TEST_BROKER_PASSWORD}
`)

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", c.Auth.Password)
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "mongo: [unclosed"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse config")
	})
}
