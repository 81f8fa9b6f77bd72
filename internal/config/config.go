// internal/config/config.go
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Config holds every setting read from the environment.
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	RoomStore string // "memory" or "redis"
	RedisAddr string
	RedisDB   int

	RoomTTL      time.Duration
	TurnSeconds  int
	DecoyTimeout time.Duration

	DatabaseURL string

	HistorianQueue     string
	HistorianBatchSize int
	HistorianFlush     time.Duration

	RedactRoomState bool

	WSMessagesPerSecond float64
	WSBurst             int
	AllowedOrigins      []string
}

// Load reads the configuration from environment variables, falling back to defaults.
func Load() Config {
	return Config{
		Port:                getEnv("PORT", "8080"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormat:           getEnv("LOG_FORMAT", "text"),
		RoomStore:           strings.ToLower(getEnv("ROOM_STORE", "memory")),
		RedisAddr:           getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:             getEnvInt("REDIS_DB", 0),
		RoomTTL:             getEnvDuration("ROOM_TTL", 24*time.Hour),
		TurnSeconds:         getEnvInt("TURN_SECONDS", 30),
		DecoyTimeout:        getEnvDuration("DECOY_TIMEOUT", 5*time.Second),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		HistorianQueue:      getEnv("HISTORIAN_QUEUE_NAME", "shadow_signal_actions"),
		HistorianBatchSize:  getEnvInt("HISTORIAN_BATCH_SIZE", 20),
		HistorianFlush:      time.Duration(getEnvInt("HISTORIAN_FLUSH_MS", 500)) * time.Millisecond,
		RedactRoomState:     getEnvBool("REDACT_ROOM_STATE", false),
		WSMessagesPerSecond: getEnvFloat("WS_MESSAGES_PER_SECOND", 5),
		WSBurst:             getEnvInt("WS_BURST", 10),
		AllowedOrigins:      getEnvList("ALLOWED_ORIGINS"),
	}
}

// NewLogger builds the process logger from LogLevel and LogFormat.
func (c Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if c.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvList splits a comma separated variable, dropping empty items.
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func getEnvFloat(key string, def float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

// getEnvDuration accepts Go durations ("90s") or a bare number of seconds.
func getEnvDuration(key string, def time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}
