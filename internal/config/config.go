package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	JournalModeMemory   = "memory"
	JournalModePostgres = "postgres"
)

type Config struct {
	ConsolePort          string
	BackendURL           string
	BackendTimeout       time.Duration
	BackendHealthTimeout time.Duration
	JournalMode          string
	PostgresURL          string
	ReportFormat         string
	JournalListLimit     int
}

func Load() Config {
	postgresURL := getEnv("POSTGRES_URL", "")
	if postgresURL == "" {
		postgresURL = buildPostgresURL()
	}
	return Config{
		ConsolePort:          getEnv("CONSOLE_PORT", "8090"),
		BackendURL:           getEnv("BACKEND_URL", "http://localhost:5000"),
		BackendTimeout:       getEnvDuration("BACKEND_TIMEOUT", 120*time.Second),
		BackendHealthTimeout: getEnvDuration("BACKEND_HEALTH_TIMEOUT", 2*time.Second),
		JournalMode:          normalizeJournalMode(getEnv("JOURNAL_MODE", JournalModeMemory)),
		PostgresURL:          postgresURL,
		ReportFormat:         strings.ToLower(strings.TrimSpace(getEnv("REPORT_FORMAT", "lite"))),
		JournalListLimit:     getEnvInt("JOURNAL_LIST_LIMIT", 50),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("90s") and bare seconds ("90").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
		return parsed
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}

func normalizeJournalMode(mode string) string {
	if strings.EqualFold(strings.TrimSpace(mode), JournalModePostgres) {
		return JournalModePostgres
	}
	return JournalModeMemory
}

func buildPostgresURL() string {
	user := getEnv("POSTGRES_USER", "console")
	password := getEnv("POSTGRES_PASSWORD", "console")
	host := getEnv("POSTGRES_HOST", "localhost")
	port := getEnv("POSTGRES_PORT", "5432")
	database := getEnv("POSTGRES_DB", "console")
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, database)
}
