package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type Config struct {
	Port           int
	APIBase        string
	DBPath         string
	SessionBackend string
	RedisAddr      string
	SessionSecret  string
	SecureCookies  bool
	FetchTimeout   time.Duration
	Timezone       string
	LogLevel       string
	LogFile        string
}

// LoadDotEnv reads the given .env files into the process environment
// without overriding variables that are already set. Missing files are
// ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

func GetConfig() Config {
	config := Config{
		Port:           8080, // default port
		APIBase:        "https://api.kochchibazaar.lk/api",
		DBPath:         "data/kochchi.db",
		SessionBackend: BackendSQLite,
		RedisAddr:      "localhost:6379",
		FetchTimeout:   10 * time.Second,
		Timezone:       "Asia/Colombo",
		LogLevel:       "info",
	}

	// Override with environment variables if present
	if port := os.Getenv("KOCHCHI_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Port = p
		}
	}

	config.APIBase = getEnv("KOCHCHI_API_BASE", config.APIBase)
	config.DBPath = getEnv("KOCHCHI_DB_PATH", config.DBPath)
	config.SessionBackend = strings.ToLower(getEnv("KOCHCHI_SESSION_BACKEND", config.SessionBackend))
	config.RedisAddr = getEnv("KOCHCHI_REDIS_ADDR", config.RedisAddr)
	config.SessionSecret = getEnv("KOCHCHI_SESSION_SECRET", "")
	config.Timezone = getEnv("KOCHCHI_TIMEZONE", config.Timezone)
	config.LogLevel = getEnv("KOCHCHI_LOG_LEVEL", config.LogLevel)
	config.LogFile = getEnv("KOCHCHI_LOG_FILE", "")

	if v := os.Getenv("KOCHCHI_FETCH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			config.FetchTimeout = d
		}
	}
	if v := os.Getenv("KOCHCHI_SECURE_COOKIES"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.SecureCookies = b
		}
	}

	return config
}

// Validate reports settings the server cannot start with.
func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	switch c.SessionBackend {
	case BackendSQLite, BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("unknown session backend %q", c.SessionBackend)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return nil
}

func (c Config) GetAddress() string {
	return fmt.Sprintf(":%d", c.Port)
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}
