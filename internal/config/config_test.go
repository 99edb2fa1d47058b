package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestMustLoad(t *testing.T) {
	t.Run("Fills defaults", func(t *testing.T) {
		// Given: a config file that only sets the log level
		path := writeConfig(t, "log-level: debug\n")

		// When: loading it
		conf := MustLoad(path)

		// Then: everything else takes its default
		assert.Equal(t, "debug", conf.LogLevel)
		assert.Equal(t, "9090", conf.HTTPPort)
		assert.Equal(t, "8081", conf.SocketPort)
		assert.Equal(t, StoreRedis, conf.Rendezvous.Store)
		assert.Equal(t, 30*time.Second, conf.Rendezvous.ClaimTTL)
		assert.Equal(t, ModeSignal, conf.Play.Mode)
		assert.Equal(t, 3, conf.Play.SyncEvery)
		assert.Equal(t, 16*time.Millisecond, conf.Play.FrameInterval)
		assert.False(t, conf.TURN.Enabled)
		require.NoError(t, conf.Validate())
	})

	t.Run("Reads nested sections", func(t *testing.T) {
		path := writeConfig(t, `
rendezvous:
  store: memory
  claim-ttl: 1m
ice-servers:
  - urls: ["stun:stun.l.google.com:19302"]
turn:
  enabled: true
  public-ip: 203.0.113.7
  users:
    alice: secret
play:
  mode: guest
  room-id: room-1
`)

		conf := MustLoad(path)

		assert.Equal(t, StoreMemory, conf.Rendezvous.Store)
		assert.Equal(t, time.Minute, conf.Rendezvous.ClaimTTL)
		require.Len(t, conf.ICEServers, 1)
		assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, conf.ICEServers[0].URLs)
		assert.Equal(t, map[string]string{"alice": "secret"}, conf.TURN.Users)
		assert.Equal(t, "turn:203.0.113.7:3478?transport=udp", conf.TURN.TURNURL())
		assert.Equal(t, ModeGuest, conf.Play.Mode)
		assert.Equal(t, "room-1", conf.Play.RoomID)
	})

	t.Run("Panics on a missing file", func(t *testing.T) {
		assert.Panics(t, func() {
			MustLoad(filepath.Join(t.TempDir(), "missing.yml"))
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(conf *Config)
		wantErr bool
	}{
		{name: "Defaults are valid", modify: func(*Config) {}},
		{name: "Unknown play mode", modify: func(conf *Config) { conf.Play.Mode = "spectator" }, wantErr: true},
		{name: "Unknown store", modify: func(conf *Config) { conf.Rendezvous.Store = "etcd" }, wantErr: true},
		{
			name: "Guest without a signal url",
			modify: func(conf *Config) {
				conf.Play.Mode = ModeGuest
				conf.Play.SignalURL = " "
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf := &Config{
				Rendezvous: Rendezvous{Store: StoreRedis},
				Play:       Play{Mode: ModeSignal, SignalURL: "ws://localhost:8081/ws"},
			}
			tt.modify(conf)

			err := conf.Validate()

			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRedis_GetRedisAddr(t *testing.T) {
	assert.Equal(t, "localhost:6379", (&Redis{Host: "localhost", Port: "6379"}).GetRedisAddr())
	assert.Empty(t, (&Redis{Port: "6379"}).GetRedisAddr())
}

func TestConfig_Level(t *testing.T) {
	testCases := []struct {
		logLevel string
		expected slog.Level
	}{
		{logLevel: "debug", expected: slog.LevelDebug},
		{logLevel: "info", expected: slog.LevelInfo},
		{logLevel: "WARN", expected: slog.LevelWarn},
		{logLevel: "error", expected: slog.LevelError},
		{logLevel: "verbose", expected: slog.LevelInfo},
		{logLevel: "", expected: slog.LevelInfo},
	}

	for _, tc := range testCases {
		t.Run(tc.logLevel, func(t *testing.T) {
			conf := &Config{LogLevel: tc.logLevel}

			assert.Equal(t, tc.expected, conf.Level())
		})
	}
}
