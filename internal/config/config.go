// Package config loads application configuration by layering defaults, an
// optional YAML file, and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lordslab/lordslab/internal/audio"
)

// Config is the resolved application configuration.
type Config struct {
	// GeminiAPIKey may be empty: insight then serves fallbacks only and the
	// voice lab is disabled with a visible message.
	GeminiAPIKey string `koanf:"gemini_api_key"`

	InsightModel string `koanf:"insight_model"`
	LiveModel    string `koanf:"live_model"`

	DataDir  string `koanf:"data_dir"`
	LogLevel string `koanf:"log_level"`

	FrameSamples     int `koanf:"frame_samples"`
	QueueDepth       int `koanf:"queue_depth"`
	TranscriptWindow int `koanf:"transcript_window"`
	CaptureRateHz    int `koanf:"capture_rate_hz"`
	PlaybackRateHz   int `koanf:"playback_rate_hz"`
}

// New returns the defaults the loader layers file and env values over.
func New() *Config {
	return &Config{
		InsightModel:     "gemini-2.0-flash",
		LiveModel:        "models/gemini-2.0-flash-live-001",
		DataDir:          defaultDataDir(),
		LogLevel:         "info",
		FrameSamples:     audio.FrameSamples,
		QueueDepth:       32,
		TranscriptWindow: 50,
		CaptureRateHz:    audio.CaptureRateHz,
		PlaybackRateHz:   audio.PlaybackRateHz,
	}
}

func defaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "lordslab")
}

// Validate checks the loaded configuration.
func (c *Config) Validate() error {
	if c.InsightModel == "" || c.LiveModel == "" {
		return errors.New("model names must not be empty")
	}
	if c.DataDir == "" {
		return errors.New("data_dir must not be empty")
	}
	if c.FrameSamples <= 0 {
		return fmt.Errorf("frame_samples must be positive, got %d", c.FrameSamples)
	}
	if c.QueueDepth <= 0 {
		return fmt.Errorf("queue_depth must be positive, got %d", c.QueueDepth)
	}
	if c.TranscriptWindow <= 0 {
		return fmt.Errorf("transcript_window must be positive, got %d", c.TranscriptWindow)
	}
	if c.CaptureRateHz <= 0 || c.PlaybackRateHz <= 0 {
		return errors.New("sample rates must be positive")
	}
	return nil
}
