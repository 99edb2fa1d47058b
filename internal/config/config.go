package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Mode string

const (
	ModeSignal Mode = "signal"
	ModeHost   Mode = "host"
	ModeGuest  Mode = "guest"
)

type Store string

const (
	StoreRedis  Store = "redis"
	StoreMemory Store = "memory"
)

type Config struct {
	LogLevel   string      `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort   string      `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	SocketPort string      `yaml:"socket-port" env:"SOCKET_PORT" env-default:"8081"`
	Redis      Redis       `yaml:"redis"`
	Rendezvous Rendezvous  `yaml:"rendezvous"`
	ICEServers []ICEServer `yaml:"ice-servers"`
	TURN       TURN        `yaml:"turn"`
	Play       Play        `yaml:"play"`
}

type Redis struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// Rendezvous - how peer ids are claimed and signals relayed.
type Rendezvous struct {
	Store     Store         `yaml:"store" env:"RENDEZVOUS_STORE" env-default:"redis"`
	ClaimTTL  time.Duration `yaml:"claim-ttl" env:"RENDEZVOUS_CLAIM_TTL" env-default:"30s"`
	KeepAlive time.Duration `yaml:"keepalive" env:"RENDEZVOUS_KEEPALIVE" env-default:"10s"`
}

type ICEServer struct {
	URLs       []string `yaml:"urls"`
	Username   string   `yaml:"username"`
	Credential string   `yaml:"credential"`
}

type TURN struct {
	Enabled  bool              `yaml:"enabled" env:"TURN_ENABLED" env-default:"false"`
	Port     int               `yaml:"port" env:"TURN_PORT" env-default:"3478"`
	Realm    string            `yaml:"realm" env:"TURN_REALM" env-default:"arcade"`
	PublicIP string            `yaml:"public-ip" env:"TURN_PUBLIC_IP"`
	Users    map[string]string `yaml:"users" env:"TURN_USERS"`
}

// Play - settings of a headless host or guest.
type Play struct {
	Mode          Mode          `yaml:"mode" env:"PLAY_MODE" env-default:"signal"`
	Game          string        `yaml:"game" env:"PLAY_GAME" env-default:"neon-tennis"`
	RoomID        string        `yaml:"room-id" env:"PLAY_ROOM_ID"`
	PlayerName    string        `yaml:"player-name" env:"PLAY_PLAYER_NAME" env-default:"Player"`
	SignalURL     string        `yaml:"signal-url" env:"PLAY_SIGNAL_URL" env-default:"ws://localhost:8081/ws"`
	OpenTimeout   time.Duration `yaml:"open-timeout" env:"PLAY_OPEN_TIMEOUT" env-default:"10s"`
	SyncEvery     int           `yaml:"sync-every" env:"PLAY_SYNC_EVERY" env-default:"3"`
	FrameInterval time.Duration `yaml:"frame-interval" env:"PLAY_FRAME_INTERVAL" env-default:"16ms"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	return config
}

func (that *Redis) GetRedisAddr() string {
	if that.Host == "" || that.Port == "" {
		return ""
	}

	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}

// TURNURL - the turn: uri clients use for the embedded relay.
func (that *TURN) TURNURL() string {
	return fmt.Sprintf("turn:%s:%d?transport=udp", that.PublicIP, that.Port)
}

func (that Mode) IsValid() bool {
	switch that {
	case ModeSignal, ModeHost, ModeGuest:
		return true
	default:
		return false
	}
}

func (that Store) IsValid() bool {
	return that == StoreRedis || that == StoreMemory
}

// Validate - rejects values cleanenv cannot check by itself.
func (that *Config) Validate() error {
	if !that.Play.Mode.IsValid() {
		return fmt.Errorf("unknown play mode %q", that.Play.Mode)
	}

	if !that.Rendezvous.Store.IsValid() {
		return fmt.Errorf("unknown rendezvous store %q", that.Rendezvous.Store)
	}

	if that.Play.Mode != ModeSignal && strings.TrimSpace(that.Play.SignalURL) == "" {
		return fmt.Errorf("signal url is required in %s mode", that.Play.Mode)
	}

	return nil
}

// Level - slog level for log-level; unknown values fall back to info.
func (that *Config) Level() slog.Level {
	switch strings.ToLower(that.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
