package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/0xlemi/pitchfinder/internal/audio"
	"github.com/0xlemi/pitchfinder/internal/config"
	"github.com/0xlemi/pitchfinder/internal/detector"
	"github.com/0xlemi/pitchfinder/internal/observe"
	"github.com/0xlemi/pitchfinder/internal/ui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
)

var version = "dev"

const title = "PitchFinder - Musical Note Detector"

// flags holds the command line; file values are overridden only by flags
// the user actually set.
type flags struct {
	configPath     string
	device         string
	input          string
	loop           bool
	tone           float64
	sampleRate     int
	frameSize      int
	gain           float64
	tickRate       time.Duration
	referencePitch float64
	holdNote       bool
	headless       bool
	logLevel       string
	logFile        string
	metricsAddr    string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	def := config.Default()

	cmd := &cobra.Command{
		Use:           "pitchfinder",
		Short:         "Detect the musical note of a monophonic audio input",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, f)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&f.configPath, "config", "", "path to a YAML configuration file")
	fs.StringVar(&f.device, "device", "", "input device by index or name prefix (see 'pitchfinder devices')")
	fs.StringVar(&f.input, "input", "", "analyze a PCM WAV file instead of a device")
	fs.BoolVar(&f.loop, "loop", false, "replay --input from the start when it ends")
	fs.Float64Var(&f.tone, "tone", 0, "analyze a generated sine wave of this frequency (Hz)")
	fs.IntVar(&f.sampleRate, "sample-rate", def.Audio.SampleRate, "capture sample rate (Hz)")
	fs.IntVar(&f.frameSize, "frame-size", def.Audio.FrameSize, "samples per analysis frame, power of two")
	fs.Float64Var(&f.gain, "gain", def.Audio.Amplification, "input amplification")
	fs.DurationVar(&f.tickRate, "tick-rate", def.Detector.TickRate, "interval between detection steps")
	fs.Float64Var(&f.referencePitch, "reference-pitch", def.Detector.ReferencePitch, "frequency of A4 (Hz)")
	fs.BoolVar(&f.holdNote, "hold-note", def.Detector.HoldNote, "keep the last note on screen through silence")
	fs.BoolVar(&f.headless, "headless", false, "log notes instead of drawing the terminal UI")
	fs.StringVar(&f.logLevel, "log-level", string(def.Log.Level), "log level: debug, info, warn, error")
	fs.StringVar(&f.logFile, "log-file", "", "log file used while the terminal UI runs")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	cmd.MarkFlagsMutuallyExclusive("device", "input", "tone")

	cmd.AddCommand(newDevicesCmd())
	return cmd
}

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio input devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			devices, err := audio.ListDevices()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(devices) == 0 {
				fmt.Fprintln(out, "no input devices found")
				return nil
			}
			for _, d := range devices {
				mark := " "
				if d.Default {
					mark = "*"
				}
				fmt.Fprintf(out, "%s %2d  %-40s %-12s %d ch  %.0f Hz\n",
					mark, d.Index, d.Name, d.HostAPI, d.MaxInputChannels, d.DefaultSampleRate)
			}
			return nil
		},
	}
}

// loadConfig reads the config file, if any, and applies explicitly set flags.
func loadConfig(cmd *cobra.Command, f *flags) (*config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		var err error
		if cfg, err = config.Load(f.configPath); err != nil {
			return nil, err
		}
	}

	changed := cmd.Flags().Changed
	if changed("device") {
		cfg.Audio.Device = f.device
	}
	if changed("sample-rate") {
		cfg.Audio.SampleRate = f.sampleRate
	}
	if changed("frame-size") {
		cfg.Audio.FrameSize = f.frameSize
	}
	if changed("gain") {
		cfg.Audio.Amplification = f.gain
	}
	if changed("tick-rate") {
		cfg.Detector.TickRate = f.tickRate
	}
	if changed("reference-pitch") {
		cfg.Detector.ReferencePitch = f.referencePitch
	}
	if changed("hold-note") {
		cfg.Detector.HoldNote = f.holdNote
	}
	if changed("log-level") {
		cfg.Log.Level = config.LogLevel(f.logLevel)
	}
	if changed("log-file") {
		cfg.Log.File = f.logFile
	}
	if changed("metrics-addr") {
		cfg.Metrics.Addr = f.metricsAddr
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// nopCloser stands in for a log sink the process does not own.
type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func newLogger(cfg config.LogConfig, headless bool) (*slog.Logger, io.Closer, error) {
	opts := &slog.HandlerOptions{Level: cfg.Level.SlogLevel()}
	if headless {
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nopCloser{}, nil
	}
	// the terminal belongs to the UI
	if cfg.File == "" {
		return slog.New(slog.NewTextHandler(io.Discard, opts)), nopCloser{}, nil
	}
	f, err := tea.LogToFile(cfg.File, "pitchfinder")
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return slog.New(slog.NewTextHandler(f, opts)), f, nil
}

func newSource(f *flags) audio.Source {
	switch {
	case f.input != "":
		src := audio.NewWAVSource(f.input)
		src.Loop = f.loop
		src.Realtime = true
		return src
	case f.tone > 0:
		return audio.NewToneSource(f.tone, 0.5)
	default:
		return audio.NewPortAudioSource()
	}
}

func run(parent context.Context, cfg *config.Config, f *flags) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, closer, err := newLogger(cfg.Log, f.headless)
	if err != nil {
		return err
	}
	defer closer.Close()
	slog.SetDefault(logger)

	opts := cfg.DetectorOptions()
	opts.Logger = logger

	var server *http.Server
	if cfg.Metrics.Addr != "" {
		shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
		if err != nil {
			return fmt.Errorf("init metrics: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(sctx); err != nil {
				logger.Warn("metrics shutdown", "err", err)
			}
		}()

		if opts.Metrics, err = observe.NewMetrics(otel.GetMeterProvider()); err != nil {
			return fmt.Errorf("init metrics: %w", err)
		}

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		server = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	}

	ctrl := detector.New(newSource(f), opts)
	if err := ctrl.Start(ctx); err != nil && f.headless {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return ctrl.Run(gctx, cfg.Detector.TickRate)
	})

	if server != nil {
		g.Go(func() error {
			logger.Info("serving metrics", "addr", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			return server.Shutdown(sctx)
		})
	}

	if f.headless {
		g.Go(func() error {
			defer cancel()
			return watch(gctx, ctrl, cfg.Detector.TickRate, logger)
		})
	} else {
		p := tea.NewProgram(ui.NewModel(ctrl, title), tea.WithAltScreen())
		g.Go(func() error {
			defer cancel()
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("ui: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			p.Quit()
			return nil
		})
	}

	return g.Wait()
}

// watch logs every change of the displayed note until ctx is done or the
// session ends.
func watch(ctx context.Context, ctrl *detector.Controller, interval time.Duration, logger *slog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last detector.Snapshot
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		snap := ctrl.Snapshot()
		if snap.HasNote != last.HasNote || snap.Note != last.Note {
			if snap.HasNote {
				logger.Info("note",
					"note", snap.Note.String(),
					"frequency", fmt.Sprintf("%.2f", snap.Note.Frequency),
					"cents", snap.Note.Cents)
			} else if last.HasNote {
				logger.Info("note cleared")
			}
		}
		last = snap

		if snap.State == detector.Idle {
			return snap.Err
		}
	}
}
