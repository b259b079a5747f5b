package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/0xlemi/pitchfinder/internal/config"
)

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()
	if err := config.Validate(config.Default()); err != nil {
		t.Fatalf("default config is invalid: %v", err)
	}
}

func TestLoadFromReader_KeepsDefaults(t *testing.T) {
	t.Parallel()
	yaml := `
audio:
  frame_size: 4096
detector:
  reference_pitch: 442
  hold_note: false
  tick_rate: 20ms
log:
  level: debug
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	def := config.Default()
	if cfg.Audio.FrameSize != 4096 {
		t.Errorf("frame_size = %d, want 4096", cfg.Audio.FrameSize)
	}
	if cfg.Audio.SampleRate != def.Audio.SampleRate {
		t.Errorf("sample_rate = %d, want default %d", cfg.Audio.SampleRate, def.Audio.SampleRate)
	}
	if cfg.Detector.ReferencePitch != 442 || cfg.Detector.HoldNote {
		t.Errorf("detector = %+v", cfg.Detector)
	}
	if cfg.Detector.TickRate != 20*time.Millisecond {
		t.Errorf("tick_rate = %s, want 20ms", cfg.Detector.TickRate)
	}
	if cfg.Detector.MinFrequency != def.Detector.MinFrequency {
		t.Errorf("min_frequency = %v, want default", cfg.Detector.MinFrequency)
	}
	if cfg.Log.Level != config.LogDebug {
		t.Errorf("log.level = %q", cfg.Log.Level)
	}
}

func TestLoadFromReader_Empty(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if *cfg != *config.Default() {
		t.Errorf("empty input = %+v, want defaults", cfg)
	}
}

func TestLoadFromReader_UnknownKey(t *testing.T) {
	t.Parallel()
	yaml := `
detector:
  reference_pich: 442
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown key, got nil")
	}
	if !strings.Contains(err.Error(), "reference_pich") {
		t.Errorf("error should name the key, got: %v", err)
	}
}

func TestValidate_AggregatesErrors(t *testing.T) {
	t.Parallel()
	yaml := `
audio:
  frame_size: 1000
detector:
  max_frequency: 50
  cents_debounce: -1
log:
  level: verbose
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected validation errors, got nil")
	}
	for _, want := range []string{"audio.frame_size", "detector.max_frequency", "detector.cents_debounce", "log.level"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s, got: %v", want, err)
		}
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"nyquist", func(c *config.Config) { c.Audio.SampleRate = 2000 }, "Nyquist"},
		{"period longer than frame", func(c *config.Config) { c.Audio.FrameSize = 512 }, "min_frequency"},
		{"threshold", func(c *config.Config) { c.Detector.CorrelationThreshold = 1 }, "correlation_threshold"},
		{"peak ratio", func(c *config.Config) { c.Detector.PeakRatio = 0 }, "peak_ratio"},
		{"history", func(c *config.Config) { c.Detector.HistorySize = 0 }, "history_size"},
		{"tolerance", func(c *config.Config) { c.Detector.StabilityTolerance = -1 }, "stability_tolerance"},
		{"reference", func(c *config.Config) { c.Detector.ReferencePitch = 0 }, "reference_pitch"},
		{"tick rate", func(c *config.Config) { c.Detector.TickRate = 0 }, "tick_rate"},
		{"zero tolerance", func(c *config.Config) { c.Detector.StabilityTolerance = 0 }, "stability_tolerance"},
		{"silence", func(c *config.Config) { c.Detector.SilenceThreshold = -0.1 }, "silence_threshold"},
		{"zero silence", func(c *config.Config) { c.Detector.SilenceThreshold = 0 }, "silence_threshold"},
		{"gain", func(c *config.Config) { c.Audio.Amplification = 0 }, "amplification"},
		{"channels", func(c *config.Config) { c.Audio.Channels = 0 }, "audio.channels"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := config.Default()
			tt.mutate(cfg)
			err := config.Validate(cfg)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error should mention %s, got: %v", tt.want, err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "pitchfinder.yaml")
	if err := os.WriteFile(path, []byte("metrics:\n  addr: \":9090\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Metrics.Addr != ":9090" {
		t.Errorf("metrics.addr = %q", cfg.Metrics.Addr)
	}

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load(missing) = %v, want os.ErrNotExist", err)
	}
}

func TestLogLevel(t *testing.T) {
	t.Parallel()

	for _, l := range []config.LogLevel{config.LogDebug, config.LogInfo, config.LogWarn, config.LogError} {
		if !l.IsValid() {
			t.Errorf("%q should be valid", l)
		}
	}
	if config.LogLevel("trace").IsValid() {
		t.Error("trace should be invalid")
	}
	if got := config.LogDebug.SlogLevel().String(); got != "DEBUG" {
		t.Errorf("SlogLevel(debug) = %s", got)
	}
	if got := config.LogLevel("").SlogLevel().String(); got != "INFO" {
		t.Errorf("SlogLevel(\"\") = %s", got)
	}
}

func TestDetectorOptions(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Audio.Device = "2"
	cfg.Detector.ReferencePitch = 442
	cfg.Detector.HoldNote = false

	opts := cfg.DetectorOptions()
	if opts.Stream.Device != "2" || opts.Stream.FrameSize != cfg.Audio.FrameSize {
		t.Errorf("stream = %+v", opts.Stream)
	}
	if opts.ReferencePitch != 442 || opts.HoldNote {
		t.Errorf("options = %+v", opts)
	}
	if opts.Estimator.Threshold != cfg.Detector.CorrelationThreshold {
		t.Errorf("estimator = %+v", opts.Estimator)
	}
}
