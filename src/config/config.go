package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application.
// The values are loaded from environment variables.
type AppConfig struct {
	// Core settings
	Port     string
	LogLevel string

	// Storage settings
	Runtime          string // "native" selects the relational backend, "browser" the blob backend
	DatabasePath     string
	BlobSnapshotPath string

	// State settings
	TransactionPageSize int

	// Host API settings
	MaxImportSizeBytes int64
	RateLimitRPS       float64
	RateLimitBurst     int
	AllowedOrigins     []string
}

// Cfg is a global instance of the AppConfig.
var Cfg *AppConfig

// LoadConfig loads configuration from environment variables or a .env file.
func LoadConfig() *AppConfig {
	errEnv := godotenv.Load()
	if errEnv != nil {
		errEnv = godotenv.Load("../.env")
	}

	if errEnv != nil {
		if os.IsNotExist(errEnv) {
			log.Println("Info: No .env file found in current or parent directory. Relying on OS environment variables.")
		} else {
			log.Printf("Warning: Error loading .env file: %v. Relying on OS environment variables.", errEnv)
		}
	}

	Cfg = &AppConfig{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		Runtime:          strings.ToLower(getEnv("LEDGER_RUNTIME", "native")),
		DatabasePath:     getEnv("DATABASE_PATH", "./easyledger.db"),
		BlobSnapshotPath: getEnv("BLOB_SNAPSHOT_PATH", ""),

		TransactionPageSize: getEnvAsInt("TRANSACTION_PAGE_SIZE", 50),

		MaxImportSizeBytes: getEnvAsInt64("MAX_IMPORT_SIZE_BYTES", 10*1024*1024),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 30),
		AllowedOrigins:     getList("ALLOWED_ORIGINS", "http://localhost:3000"),
	}

	if Cfg.TransactionPageSize <= 0 {
		log.Printf("WARNING: TRANSACTION_PAGE_SIZE must be positive, got %d. Using 50.", Cfg.TransactionPageSize)
		Cfg.TransactionPageSize = 50
	}

	log.Printf("Configuration loaded: Runtime=%s, LogLevel=%s, DBPath=%s, PageSize=%d",
		Cfg.Runtime, Cfg.LogLevel, Cfg.DatabasePath, Cfg.TransactionPageSize)
	return Cfg
}

// getEnv retrieves an environment variable or returns a fallback value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvAsInt retrieves an environment variable as an integer or returns a fallback.
func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

func getEnvAsInt64(key string, fallback int64) int64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	log.Printf("Invalid float value for %s ('%s'), using default: %g", key, valueStr, fallback)
	return fallback
}

// getList parses a comma-separated variable, dropping blanks.
func getList(key, fallback string) []string {
	raw := getEnv(key, fallback)
	out := []string{}
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
