package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DBDriver           string
	DBHost             string
	DBPort             string
	DBUser             string
	DBPassword         string
	DBName             string
	DBPath             string
	RedisHost          string
	RedisPort          string
	ReplicationEnabled bool
	ReplicationChannel string
	GinMode            string
	HTTPAddr           string
	Timezone           string
	SaveDebounce       time.Duration
	MissedSweepSpec    string
	LogLevel           string
}

func Load() *Config {
	return &Config{
		DBDriver:           getEnv("DB_DRIVER", "sqlite"),
		DBHost:             getEnv("DB_HOST", "localhost"),
		DBPort:             getEnv("DB_PORT", "3306"),
		DBUser:             getEnv("DB_USER", "planner"),
		DBPassword:         getEnv("DB_PASSWORD", "plannerpassword"),
		DBName:             getEnv("DB_NAME", "task_planner"),
		DBPath:             getEnv("DB_PATH", "planner.db"),
		RedisHost:          getEnv("REDIS_HOST", "localhost"),
		RedisPort:          getEnv("REDIS_PORT", "6379"),
		ReplicationEnabled: getEnvBool("REPLICATION_ENABLED", false),
		ReplicationChannel: getEnv("REPLICATION_CHANNEL", "task-planner:snapshots"),
		GinMode:            getEnv("GIN_MODE", "debug"),
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		Timezone:           getEnv("PLANNER_TIMEZONE", "UTC"),
		SaveDebounce:       getEnvDuration("SAVE_DEBOUNCE", 500*time.Millisecond),
		MissedSweepSpec:    getEnv("MISSED_SWEEP_SPEC", "0 5 0 * * *"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}
}

// RedisAddr returns the host:port pair of the replication broker.
func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

// Location resolves the configured planner timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid PLANNER_TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil || value < 0 {
		return defaultValue
	}
	return value
}
