package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	AppName     = "pricebanner"
	EnvFileName = "config.env"

	DefaultAddr = ":8080"
	DefaultRPS  = 1.0
)

// Settings is the runtime configuration read from the environment.
type Settings struct {
	GeminiAPIKey string
	BotToken     string // Optional; the Telegram front end is off without it
	Addr         string
	RPS          float64 // Gemini requests per second
}

// FromEnv reads Settings from the environment, applying defaults.
func FromEnv() (Settings, error) {
	s := Settings{
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		BotToken:     os.Getenv("BOT_TOKEN"),
		Addr:         os.Getenv("PRICEBANNER_ADDR"),
		RPS:          DefaultRPS,
	}
	if s.Addr == "" {
		s.Addr = DefaultAddr
	}
	if v := os.Getenv("PRICEBANNER_RPS"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil || rps <= 0 {
			return Settings{}, fmt.Errorf("PRICEBANNER_RPS must be a positive number, got %q", v)
		}
		s.RPS = rps
	}
	return s, nil
}

// Dir returns the application's config directory, creating it if needed.
func Dir() (string, error) {
	configBase, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}

	configDir := filepath.Join(configBase, AppName)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// FilePath returns the full path to config.env.
func FilePath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, EnvFileName), nil
}

// LoadEnvFile loads environment variables from the config file in the user's
// config directory. Errors are ignored since the file may not exist.
// Variables already present in the environment win.
func LoadEnvFile() {
	configBase, err := os.UserConfigDir()
	if err != nil {
		return
	}
	_ = godotenv.Load(filepath.Join(configBase, AppName, EnvFileName))
}

// RequiredEnvVars lists the environment variables that must be set to start.
var RequiredEnvVars = []string{"GEMINI_API_KEY"}

// MissingRequired returns the names of required variables that are unset.
func MissingRequired() []string {
	var missing []string
	for _, v := range RequiredEnvVars {
		if os.Getenv(v) == "" {
			missing = append(missing, v)
		}
	}
	return missing
}

// WriteEnvFile writes values to config.env in a stable key order.
// The file holds secrets so it is created with 0600.
func WriteEnvFile(values map[string]string, order []string) (string, error) {
	path, err := FilePath()
	if err != nil {
		return "", err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return "", fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	for _, key := range order {
		val, ok := values[key]
		if !ok || val == "" {
			continue
		}
		if _, err := fmt.Fprintf(f, "%s=%q\n", key, val); err != nil {
			return "", fmt.Errorf("failed to write %s: %w", key, err)
		}
	}

	return path, nil
}
