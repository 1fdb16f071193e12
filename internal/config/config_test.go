package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2048, cfg.Spectrogram.WindowSize)
	assert.Equal(t, 1024, cfg.Spectrogram.HopSize)
	assert.Equal(t, "hann", cfg.Spectrogram.Window)
	assert.Equal(t, "power", cfg.Spectrogram.Scale)
	assert.Equal(t, 0, cfg.Spectrogram.Workers)
	assert.Equal(t, "mean", cfg.Aggregate.Mode)
	assert.Equal(t, "info", cfg.Server.LogLevel)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("WINDOW_SIZE", "512")
	t.Setenv("HOP_SIZE", "128")
	t.Setenv("WINDOW_FUNCTION", "blackman")
	t.Setenv("AGGREGATION_MODE", "max")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 512, cfg.Spectrogram.WindowSize)
	assert.Equal(t, 128, cfg.Spectrogram.HopSize)
	assert.Equal(t, "blackman", cfg.Spectrogram.Window)
	assert.Equal(t, "max", cfg.Aggregate.Mode)
}
