package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerHost string
	ServerPort string
	StaticDir  string

	// Idle-room eviction. A zero TTL disables the sweep and rooms live
	// for the process lifetime.
	RoomIdleTTL       time.Duration
	RoomSweepInterval time.Duration

	// Observability
	JaegerEndpoint string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		ServerHost: getEnv("SERVER_HOST", "0.0.0.0"),
		ServerPort: getEnv("SERVER_PORT", "3000"),
		StaticDir:  getEnv("STATIC_DIR", "./web/static"),

		RoomIdleTTL:       time.Duration(getEnvInt("ROOM_IDLE_TTL", 0)) * time.Second,
		RoomSweepInterval: time.Duration(getEnvInt("ROOM_SWEEP_INTERVAL", 60)) * time.Second,

		JaegerEndpoint: getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
	}

	return cfg, nil
}

// Addr is the host:port the HTTP server binds to.
func (c *Config) Addr() string {
	return c.ServerHost + ":" + c.ServerPort
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
