// Package config defines the pitchfinder configuration schema and its YAML
// loader.
package config

import (
	"log/slog"
	"time"

	"github.com/0xlemi/pitchfinder/internal/audio"
	"github.com/0xlemi/pitchfinder/internal/detector"
	"github.com/0xlemi/pitchfinder/internal/pitch"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// SlogLevel maps l to a slog level. Unknown levels map to Info.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Config is the root configuration.
type Config struct {
	Audio    AudioConfig    `yaml:"audio"`
	Detector DetectorConfig `yaml:"detector"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// AudioConfig describes the capture stream.
type AudioConfig struct {
	SampleRate int `yaml:"sample_rate"`

	// FrameSize is the samples per analysis frame. Must be a power of two.
	FrameSize int `yaml:"frame_size"`

	Channels int `yaml:"channels"`

	// Device selects an input by 1-based index or name prefix. Empty means
	// the system default.
	Device string `yaml:"device"`

	Amplification    float64 `yaml:"amplification"`
	EchoCancellation bool    `yaml:"echo_cancellation"`
	NoiseSuppression bool    `yaml:"noise_suppression"`
	AutoGainControl  bool    `yaml:"auto_gain_control"`
}

// DetectorConfig tunes the pitch pipeline.
type DetectorConfig struct {
	// TickRate is the interval between pipeline steps.
	TickRate time.Duration `yaml:"tick_rate"`

	SilenceThreshold     float64 `yaml:"silence_threshold"`
	MinFrequency         float64 `yaml:"min_frequency"`
	MaxFrequency         float64 `yaml:"max_frequency"`
	CorrelationThreshold float64 `yaml:"correlation_threshold"`
	PeakRatio            float64 `yaml:"peak_ratio"`
	HistorySize          int     `yaml:"history_size"`
	StabilityTolerance   float64 `yaml:"stability_tolerance"`
	CentsDebounce        int     `yaml:"cents_debounce"`
	ReferencePitch       float64 `yaml:"reference_pitch"`
	HoldNote             bool    `yaml:"hold_note"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level LogLevel `yaml:"level"`

	// File receives log output in TUI mode. Empty discards it.
	File string `yaml:"file"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address for /metrics. Empty disables the endpoint.
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	stream := audio.DefaultConfig()
	est := pitch.DefaultEstimatorConfig()
	return &Config{
		Audio: AudioConfig{
			SampleRate:       stream.SampleRate,
			FrameSize:        stream.FrameSize,
			Channels:         stream.Channels,
			Amplification:    stream.Amplification,
			EchoCancellation: stream.EchoCancellation,
			NoiseSuppression: stream.NoiseSuppression,
			AutoGainControl:  stream.AutoGainControl,
		},
		Detector: DetectorConfig{
			TickRate:             time.Second / 60,
			SilenceThreshold:     pitch.DefaultSilenceThreshold,
			MinFrequency:         est.MinFrequency,
			MaxFrequency:         est.MaxFrequency,
			CorrelationThreshold: est.Threshold,
			PeakRatio:            est.PeakRatio,
			HistorySize:          pitch.DefaultHistorySize,
			StabilityTolerance:   pitch.DefaultStabilityTolerance,
			CentsDebounce:        detector.DefaultCentsDebounce,
			ReferencePitch:       pitch.DefaultReferencePitch,
			HoldNote:             true,
		},
		Log: LogConfig{
			Level: LogInfo,
		},
	}
}

// StreamConfig returns the audio section as a stream config.
func (c *Config) StreamConfig() audio.Config {
	return audio.Config{
		SampleRate:       c.Audio.SampleRate,
		FrameSize:        c.Audio.FrameSize,
		Channels:         c.Audio.Channels,
		Device:           c.Audio.Device,
		Amplification:    c.Audio.Amplification,
		EchoCancellation: c.Audio.EchoCancellation,
		NoiseSuppression: c.Audio.NoiseSuppression,
		AutoGainControl:  c.Audio.AutoGainControl,
	}
}

// DetectorOptions builds controller options. Logger and Metrics are left
// for the caller.
func (c *Config) DetectorOptions() detector.Options {
	d := c.Detector
	return detector.Options{
		Stream:           c.StreamConfig(),
		SilenceThreshold: d.SilenceThreshold,
		Estimator: pitch.EstimatorConfig{
			MinFrequency: d.MinFrequency,
			MaxFrequency: d.MaxFrequency,
			Threshold:    d.CorrelationThreshold,
			PeakRatio:    d.PeakRatio,
		},
		HistorySize:        d.HistorySize,
		StabilityTolerance: d.StabilityTolerance,
		CentsDebounce:      d.CentsDebounce,
		ReferencePitch:     d.ReferencePitch,
		HoldNote:           d.HoldNote,
	}
}
