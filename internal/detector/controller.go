// Package detector owns the detection state machine. A Controller pulls one
// frame per tick from an audio stream and runs it through the pitch pipeline:
// gate and window, estimate, stability filter, note mapping.
package detector

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/0xlemi/pitchfinder/internal/audio"
	"github.com/0xlemi/pitchfinder/internal/observe"
	"github.com/0xlemi/pitchfinder/internal/pitch"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// DefaultCentsDebounce is the cents change below which a note with the same
// name is not redisplayed.
const DefaultCentsDebounce = 5

// Options configures a Controller.
type Options struct {
	Stream audio.Config

	SilenceThreshold   float64
	Estimator          pitch.EstimatorConfig
	HistorySize        int
	StabilityTolerance float64 // Hz
	CentsDebounce      int
	ReferencePitch     float64 // A4 in Hz

	// HoldNote keeps the displayed note through silence until the next
	// stable reading replaces it. When false, silence clears it at once.
	HoldNote bool

	Logger  *slog.Logger
	Metrics *observe.Metrics
}

// DefaultOptions returns the settings the detector is tuned for.
func DefaultOptions() Options {
	return Options{
		Stream:             audio.DefaultConfig(),
		SilenceThreshold:   pitch.DefaultSilenceThreshold,
		Estimator:          pitch.DefaultEstimatorConfig(),
		HistorySize:        pitch.DefaultHistorySize,
		StabilityTolerance: pitch.DefaultStabilityTolerance,
		CentsDebounce:      DefaultCentsDebounce,
		ReferencePitch:     pitch.DefaultReferencePitch,
		HoldNote:           true,
	}
}

// Controller owns all detection state. Its methods are safe for concurrent
// use; Tick, Start and Stop are serialized so no pipeline step runs after
// Stop returns.
type Controller struct {
	source   audio.Source
	opts     Options
	detector *pitch.Detector
	filter   *pitch.StabilityFilter
	mapper   pitch.Mapper
	log      *slog.Logger
	metrics  *observe.Metrics

	mu        sync.Mutex
	state     State
	stream    audio.Stream
	note      *pitch.Note
	frequency float64
	hasFreq   bool
	lastErr   error
}

// New creates an idle controller reading from source. A zero silence
// threshold, tolerance, history size or reference pitch selects its default.
func New(source audio.Source, opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = observe.Noop()
	}
	if opts.SilenceThreshold <= 0 {
		opts.SilenceThreshold = pitch.DefaultSilenceThreshold
	}
	if opts.StabilityTolerance <= 0 {
		opts.StabilityTolerance = pitch.DefaultStabilityTolerance
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = pitch.DefaultHistorySize
	}
	if opts.CentsDebounce < 0 {
		opts.CentsDebounce = DefaultCentsDebounce
	}

	return &Controller{
		source:   source,
		opts:     opts,
		detector: pitch.NewDetector(opts.SilenceThreshold, opts.Estimator),
		filter:   pitch.NewStabilityFilter(opts.HistorySize, opts.StabilityTolerance),
		mapper:   pitch.NewMapper(opts.ReferencePitch),
		log:      opts.Logger,
		metrics:  opts.Metrics,
	}
}

// Start opens the audio stream and begins listening. Calling Start while
// already capturing does nothing. An open failure is returned as an
// *audio.Error, recorded for LastError, and leaves the controller Idle.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Idle {
		return nil
	}
	c.lastErr = nil

	stream, err := c.source.Open(ctx, c.opts.Stream)
	if err != nil {
		err = audio.Wrap(audio.StreamInitFailed, "open", err)
		c.fail(ctx, err)
		return err
	}

	c.stream = stream
	c.filter.Reset()
	c.clearReading()
	c.state = Listening
	c.metrics.ActiveStreams.Add(ctx, 1)
	c.log.Info("listening",
		"sample_rate", c.opts.Stream.SampleRate,
		"frame_size", c.opts.Stream.FrameSize,
		"device", c.opts.Stream.Device)
	return nil
}

// Stop closes the stream and returns to Idle, clearing history and the
// displayed note. Stopping an idle controller does nothing.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Idle {
		return nil
	}
	err := c.release(context.Background())
	c.log.Info("stopped")
	return err
}

// Tick runs one pipeline step. It is a no-op while Idle. The returned error
// is non-nil only when the stream failed and the session ended.
func (c *Controller) Tick() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Idle {
		return nil
	}
	ctx := context.Background()

	frame, err := c.stream.NextFrame()
	switch {
	case err == nil:
	case errors.Is(err, audio.ErrNoFrame):
		return nil
	case errors.Is(err, io.EOF):
		c.log.Info("input exhausted")
		if cerr := c.release(ctx); cerr != nil {
			c.log.Warn("closing stream", "err", cerr)
		}
		return nil
	default:
		err = audio.Wrap(audio.DeviceUnavailable, "read", err)
		if cerr := c.release(ctx); cerr != nil {
			c.log.Warn("closing stream", "err", cerr)
		}
		c.fail(ctx, err)
		return err
	}

	started := time.Now()
	candidate, err := c.detector.DetectPitch(frame)
	c.metrics.EstimateDuration.Record(ctx, time.Since(started).Seconds())
	if err != nil {
		c.absent(ctx, err)
		return nil
	}
	c.metrics.RecordFrame(ctx, observe.OutcomeCandidate)

	frequency, stable := c.filter.Observe(candidate)
	if !stable {
		c.state = Listening
		return nil
	}
	c.promote(ctx, frequency)
	return nil
}

// Run ticks every interval until ctx is done, then stops the controller.
// The loop itself never starts capturing; call Start for that.
func (c *Controller) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return c.Stop()
		case <-ticker.C:
			// failures are kept for LastError
			_ = c.Tick()
		}
	}
}

// absent handles a frame without a candidate: history is cleared at once.
func (c *Controller) absent(ctx context.Context, reason error) {
	switch {
	case errors.Is(reason, pitch.ErrSilence):
		c.metrics.RecordFrame(ctx, observe.OutcomeSilence)
	case errors.Is(reason, pitch.ErrMalformedFrame):
		c.metrics.RecordFrame(ctx, observe.OutcomeMalformed)
		c.log.Debug("dropping malformed frame")
	default:
		c.metrics.RecordFrame(ctx, observe.OutcomeRejected)
	}

	c.filter.Reset()
	c.state = Listening
	if !c.opts.HoldNote {
		c.clearReading()
	}
}

// promote applies the note replacement policy to a stable frequency.
func (c *Controller) promote(ctx context.Context, frequency float64) {
	c.state = Stable
	c.frequency = frequency
	c.hasFreq = true
	c.metrics.StableReadings.Add(ctx, 1)

	note, err := c.mapper.Note(frequency)
	if err != nil {
		return
	}
	if c.note != nil && !c.replaces(note) {
		return
	}

	c.note = &note
	c.metrics.NoteChanges.Add(ctx, 1, metric.WithAttributes(attribute.String("note", note.Name.String())))
	c.log.Debug("note", "note", note.String(), "frequency", frequency, "cents", note.Cents)
}

// replaces reports whether note differs enough from the displayed one.
func (c *Controller) replaces(note pitch.Note) bool {
	if note.Name != c.note.Name || note.Octave != c.note.Octave {
		return true
	}
	d := note.Cents - c.note.Cents
	if d < 0 {
		d = -d
	}
	return d > c.opts.CentsDebounce
}

// release closes the stream and resets everything to Idle.
func (c *Controller) release(ctx context.Context) error {
	var err error
	if c.stream != nil {
		err = c.stream.Close()
		c.stream = nil
		c.metrics.ActiveStreams.Add(ctx, -1)
	}
	c.state = Idle
	c.filter.Reset()
	c.clearReading()
	return err
}

func (c *Controller) fail(ctx context.Context, err error) {
	c.lastErr = err
	kind := "unknown"
	var ae *audio.Error
	if errors.As(err, &ae) {
		kind = ae.Kind.String()
	}
	c.metrics.RecordStreamError(ctx, kind)
	c.log.Error("audio stream failed", "err", err, "kind", kind)
}

func (c *Controller) clearReading() {
	c.note = nil
	c.frequency = 0
	c.hasFreq = false
}

// IsListening reports whether the controller is capturing.
func (c *Controller) IsListening() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != Idle
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CurrentNote returns the displayed note, if any.
func (c *Controller) CurrentNote() (pitch.Note, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.note == nil {
		return pitch.Note{}, false
	}
	return *c.note, true
}

// CurrentFrequency returns the most recent stable frequency, if any.
func (c *Controller) CurrentFrequency() (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frequency, c.hasFreq
}

// LastError returns the error that ended the last session, if any.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Snapshot returns every readable value under one lock.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		State:        c.state,
		Frequency:    c.frequency,
		HasFrequency: c.hasFreq,
		Err:          c.lastErr,
	}
	if c.note != nil {
		s.Note = *c.note
		s.HasNote = true
	}
	return s
}
