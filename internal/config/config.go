// Package config provides configuration for the chat client.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the chat client configuration.
type Config struct {
	// Remote agent runtime
	APIBaseURL string

	// Upload relay server
	RelayPort int
	UploadDir string

	// Local transcript archive
	ArchiveDSN string

	// Tool approval policy (empty means built-in default)
	PolicyFile string

	// Timeouts
	StreamTimeout time.Duration

	// Logging
	Debug bool
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		APIBaseURL:    getEnv("CAGENT_API_BASE_URL", "http://localhost:8080/api"),
		RelayPort:     getEnvInt("RELAY_PORT", 3001),
		UploadDir:     getEnv("UPLOAD_DIR", os.TempDir()),
		ArchiveDSN:    getEnv("ARCHIVE_DSN", "file:agentchat.db?cache=shared&mode=rwc"),
		PolicyFile:    getEnv("POLICY_FILE", ""),
		StreamTimeout: time.Duration(getEnvInt("STREAM_TIMEOUT_MS", 300000)) * time.Millisecond,
		Debug:         getEnvBool("DEBUG", false),
	}
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if boolVal, err := strconv.ParseBool(val); err == nil {
			return boolVal
		}
	}
	return defaultVal
}
