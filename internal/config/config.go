package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type Config struct {
	DBPath           string
	ServerPort       string
	LogLevel         string
	PredictionWindow int
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	window, err := strconv.Atoi(getEnv("PREDICTION_WINDOW", "10"))
	if err != nil {
		return nil, fmt.Errorf("PREDICTION_WINDOW must be an integer: %w", err)
	}
	if window < 1 {
		return nil, fmt.Errorf("PREDICTION_WINDOW must be positive, got %d", window)
	}

	cfg := &Config{
		DBPath:           getEnv("DB_PATH", "riverrace.db"),
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		PredictionWindow: window,
	}

	logger.Info().
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Int("prediction_window", cfg.PredictionWindow).
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

var Module = fx.Provide(Load)
