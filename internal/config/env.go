package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoadEnv loads environment variables from the first .env file found in the
// current directory or its parents. Variables already set in the process
// environment win.
func LoadEnv() error {
	envPaths := []string{".env", "../.env", "../../.env"}

	for _, envPath := range envPaths {
		if _, err := os.Stat(envPath); err != nil {
			continue
		}
		return godotenv.Load(envPath)
	}
	return nil
}

// GetEnv gets environment variable with default
func GetEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvInt gets integer environment variable with default
func GetEnvInt(key string, defaultValue int) int {
	if value := GetEnv(key, ""); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvFloat gets float environment variable with default
func GetEnvFloat(key string, defaultValue float64) float64 {
	if value := GetEnv(key, ""); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// GetEnvBool gets boolean environment variable with default
func GetEnvBool(key string, defaultValue bool) bool {
	if value := GetEnv(key, ""); value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return defaultValue
}
