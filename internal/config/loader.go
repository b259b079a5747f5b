package config

import (
	"errors"
	"fmt"
	"io"
	"math/bits"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r over [Default] and validates
// the result. Keys missing from r keep their default values; unknown keys
// are an error.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Audio
	a := cfg.Audio
	if a.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate must be positive, got %d", a.SampleRate))
	}
	if a.FrameSize <= 0 || bits.OnesCount(uint(a.FrameSize)) != 1 {
		errs = append(errs, fmt.Errorf("audio.frame_size must be a power of two, got %d", a.FrameSize))
	}
	if a.Channels <= 0 {
		errs = append(errs, fmt.Errorf("audio.channels must be positive, got %d", a.Channels))
	}
	if a.Amplification <= 0 {
		errs = append(errs, fmt.Errorf("audio.amplification must be positive, got %.2f", a.Amplification))
	}

	// Detector
	d := cfg.Detector
	if d.TickRate <= 0 {
		errs = append(errs, fmt.Errorf("detector.tick_rate must be positive, got %s", d.TickRate))
	}
	if d.SilenceThreshold <= 0 || d.SilenceThreshold >= 1 {
		errs = append(errs, fmt.Errorf("detector.silence_threshold %.4f is out of range (0, 1)", d.SilenceThreshold))
	}
	if d.MinFrequency <= 0 {
		errs = append(errs, fmt.Errorf("detector.min_frequency must be positive, got %.2f", d.MinFrequency))
	}
	if d.MaxFrequency <= d.MinFrequency {
		errs = append(errs, fmt.Errorf("detector.max_frequency %.2f must exceed min_frequency %.2f", d.MaxFrequency, d.MinFrequency))
	}
	if a.SampleRate > 0 && d.MaxFrequency >= float64(a.SampleRate)/2 {
		errs = append(errs, fmt.Errorf("detector.max_frequency %.2f must be below the Nyquist frequency %.2f", d.MaxFrequency, float64(a.SampleRate)/2))
	}
	if a.SampleRate > 0 && a.FrameSize > 0 && d.MinFrequency > 0 &&
		float64(a.SampleRate)/d.MinFrequency >= float64(a.FrameSize) {
		errs = append(errs, fmt.Errorf("detector.min_frequency %.2f needs a period shorter than audio.frame_size %d", d.MinFrequency, a.FrameSize))
	}
	if d.CorrelationThreshold <= 0 || d.CorrelationThreshold >= 1 {
		errs = append(errs, fmt.Errorf("detector.correlation_threshold %.2f is out of range (0, 1)", d.CorrelationThreshold))
	}
	if d.PeakRatio <= 0 || d.PeakRatio > 1 {
		errs = append(errs, fmt.Errorf("detector.peak_ratio %.2f is out of range (0, 1]", d.PeakRatio))
	}
	if d.HistorySize < 1 {
		errs = append(errs, fmt.Errorf("detector.history_size must be at least 1, got %d", d.HistorySize))
	}
	if d.StabilityTolerance <= 0 {
		errs = append(errs, fmt.Errorf("detector.stability_tolerance must be positive, got %.2f", d.StabilityTolerance))
	}
	if d.CentsDebounce < 0 || d.CentsDebounce > 50 {
		errs = append(errs, fmt.Errorf("detector.cents_debounce %d is out of range [0, 50]", d.CentsDebounce))
	}
	if d.ReferencePitch < 400 || d.ReferencePitch > 480 {
		errs = append(errs, fmt.Errorf("detector.reference_pitch %.2f is out of range [400, 480]", d.ReferencePitch))
	}

	// Log
	if cfg.Log.Level != "" && !cfg.Log.Level.IsValid() {
		errs = append(errs, fmt.Errorf("log.level %q is invalid; valid values: debug, info, warn, error", cfg.Log.Level))
	}

	return errors.Join(errs...)
}
