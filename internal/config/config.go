package config

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig
	Spectrogram SpectrogramConfig
	Aggregate   AggregateConfig
}

// ServerConfig holds process-level configuration
type ServerConfig struct {
	Env      string
	LogLevel string
}

// SpectrogramConfig holds transform parameters
type SpectrogramConfig struct {
	WindowSize int
	HopSize    int
	Window     string
	Scale      string
	Workers    int
}

// AggregateConfig holds aggregation parameters
type AggregateConfig struct {
	Mode string
}

// Load loads configuration from environment variables and .env files
func Load() (*Config, error) {
	// Set defaults
	viper.SetDefault("ENVIRONMENT", "dev")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("WINDOW_SIZE", 2048)
	viper.SetDefault("HOP_SIZE", 1024)
	viper.SetDefault("WINDOW_FUNCTION", "hann")
	viper.SetDefault("OUTPUT_SCALE", "power")
	viper.SetDefault("AGGREGATION_MODE", "mean")
	viper.SetDefault("WORKERS", 0)

	// Read from .env files based on environment
	env := viper.GetString("ENVIRONMENT")
	if env == "" {
		env = "dev"
	}

	viper.SetConfigName(".env." + env)
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	// Read .env file (ignore error if file doesn't exist)
	_ = viper.ReadInConfig()

	// Environment variables override .env file values
	viper.AutomaticEnv()

	viper.BindEnv("ENVIRONMENT")
	viper.BindEnv("LOG_LEVEL")
	viper.BindEnv("WINDOW_SIZE")
	viper.BindEnv("HOP_SIZE")
	viper.BindEnv("WINDOW_FUNCTION")
	viper.BindEnv("OUTPUT_SCALE")
	viper.BindEnv("AGGREGATION_MODE")
	viper.BindEnv("WORKERS")

	var config Config
	config.Server.Env = viper.GetString("ENVIRONMENT")
	config.Server.LogLevel = viper.GetString("LOG_LEVEL")
	config.Spectrogram.WindowSize = viper.GetInt("WINDOW_SIZE")
	config.Spectrogram.HopSize = viper.GetInt("HOP_SIZE")
	config.Spectrogram.Window = viper.GetString("WINDOW_FUNCTION")
	config.Spectrogram.Scale = viper.GetString("OUTPUT_SCALE")
	config.Spectrogram.Workers = viper.GetInt("WORKERS")
	config.Aggregate.Mode = viper.GetString("AGGREGATION_MODE")

	log.Debug().
		Int("window_size", config.Spectrogram.WindowSize).
		Int("hop_size", config.Spectrogram.HopSize).
		Str("window", config.Spectrogram.Window).
		Str("mode", config.Aggregate.Mode).
		Msg("configuration loaded")

	return &config, nil
}
