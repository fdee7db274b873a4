// Package config loads the flat, JSON-decodable engine configuration
// (SPEC_FULL.md §2: sample rate, max frames, track/scene limits, job
// fanout). Grounded on the teacher's pkg/manifest/util.go
// (json.Unmarshal + Validate pattern) translated from plugin-manifest
// JSON to session-engine JSON.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config is the engine's static, process-lifetime configuration. It is
// read once at startup; nothing in the audio-thread hot path consults
// it directly (components are constructed from its values instead).
type Config struct {
	SampleRate float64 `json:"sample_rate"`
	MaxFrames  int     `json:"max_frames"`

	MaxTracks  int `json:"max_tracks"`
	MaxScenes  int `json:"max_scenes"`
	FXPerTrack int `json:"fx_per_track"`

	// JobFanoutCap bounds the nested thread-pool extension's
	// recursion depth (C8, §4.7 bullet 2). Zero means "use the
	// package default".
	JobFanoutCap int `json:"job_fanout_cap"`
	// ParallelThreshold overrides jobs.DefaultParallelThreshold. Zero
	// means "use the package default".
	ParallelThreshold int `json:"parallel_threshold"`

	SentryDSN         string `json:"sentry_dsn"`
	SentryEnvironment string `json:"sentry_environment"`
}

// Default returns the configuration a bare `go run ./cmd/engine` boots
// with: 48kHz, 2048-sample max block, 64 tracks, 8 scenes, 8 FX slots
// per track.
func Default() Config {
	return Config{
		SampleRate:        48000,
		MaxFrames:         2048,
		MaxTracks:         64,
		MaxScenes:         8,
		FXPerTrack:        8,
		JobFanoutCap:      0,
		ParallelThreshold: 0,
	}
}

// Load reads and parses a JSON config file, filling any field absent
// from the file with Default's value.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %v", c.SampleRate)
	}
	if c.MaxFrames <= 0 {
		return fmt.Errorf("max_frames must be positive, got %d", c.MaxFrames)
	}
	if c.MaxTracks <= 0 {
		return fmt.Errorf("max_tracks must be positive, got %d", c.MaxTracks)
	}
	if c.MaxScenes <= 0 {
		return fmt.Errorf("max_scenes must be positive, got %d", c.MaxScenes)
	}
	if c.FXPerTrack < 0 {
		return fmt.Errorf("fx_per_track must not be negative, got %d", c.FXPerTrack)
	}
	return nil
}
