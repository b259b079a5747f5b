package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVSource replays a PCM WAV file as if it were a capture device.
// The file's own sample rate takes precedence over Config.SampleRate.
type WAVSource struct {
	Path string

	// Loop rewinds to the start instead of reporting io.EOF.
	Loop bool

	// Realtime paces frames at the file's sample rate; NextFrame returns
	// ErrNoFrame until a frame period has elapsed.
	Realtime bool
}

// NewWAVSource creates a replay source for the file at path.
func NewWAVSource(path string) *WAVSource {
	return &WAVSource{Path: path}
}

// Open opens the file and validates its header.
func (s *WAVSource) Open(ctx context.Context, cfg Config) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, Wrap(StreamInitFailed, "open", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, Wrap(StreamInitFailed, "open", err)
	}

	f, err := os.Open(s.Path)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrPermission):
			return nil, Wrap(PermissionDenied, "open", err)
		case errors.Is(err, fs.ErrNotExist):
			return nil, Wrap(DeviceUnavailable, "open", err)
		default:
			return nil, Wrap(StreamInitFailed, "open", err)
		}
	}

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		f.Close()
		return nil, Errorf(StreamInitFailed, "open", "%s: invalid WAV file", s.Path)
	}
	if decoder.WavAudioFormat != 1 {
		f.Close()
		return nil, Errorf(StreamInitFailed, "open", "%s: unsupported WAV format %d, need PCM", s.Path, decoder.WavAudioFormat)
	}

	channels := int(decoder.NumChans)
	sampleRate := int(decoder.SampleRate)
	if channels <= 0 || sampleRate <= 0 || decoder.BitDepth == 0 {
		f.Close()
		return nil, Errorf(StreamInitFailed, "open", "%s: malformed WAV header", s.Path)
	}

	return &wavStream{
		file:       f,
		decoder:    decoder,
		loop:       s.Loop,
		realtime:   s.Realtime,
		frameSize:  cfg.FrameSize,
		channels:   channels,
		sampleRate: sampleRate,
		bitDepth:   int(decoder.BitDepth),
		gain:       cfg.Amplification,
		buf: &goaudio.IntBuffer{
			Format: decoder.Format(),
			Data:   make([]int, cfg.FrameSize*channels),
		},
		period: time.Duration(float64(cfg.FrameSize) / float64(sampleRate) * float64(time.Second)),
		now:    time.Now,
	}, nil
}

type wavStream struct {
	mu         sync.Mutex
	file       *os.File
	decoder    *wav.Decoder
	buf        *goaudio.IntBuffer
	loop       bool
	realtime   bool
	frameSize  int
	channels   int
	sampleRate int
	bitDepth   int
	gain       float64
	period     time.Duration
	next       time.Time
	now        func() time.Time
	closed     bool
}

// NextFrame decodes the next block of the file.
func (s *wavStream) NextFrame() (*Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, Wrap(DeviceUnavailable, "read", errStreamClosed)
	}

	if s.realtime {
		now := s.now()
		if now.Before(s.next) {
			return nil, ErrNoFrame
		}
		if s.next.IsZero() || now.Sub(s.next) > s.period {
			s.next = now
		}
		s.next = s.next.Add(s.period)
	}

	n, err := s.decoder.PCMBuffer(s.buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, Wrap(DeviceUnavailable, "read", err)
	}
	if n == 0 {
		if !s.loop {
			return nil, io.EOF
		}
		if err := s.rewind(); err != nil {
			return nil, err
		}
		if n, err = s.decoder.PCMBuffer(s.buf); err != nil && !errors.Is(err, io.EOF) {
			return nil, Wrap(DeviceUnavailable, "read", err)
		}
		if n == 0 {
			return nil, io.EOF
		}
	}

	frame := &Frame{
		Samples:    make([]float64, s.frameSize),
		SampleRate: s.sampleRate,
	}
	s.convert(frame.Samples, s.buf.Data[:n])
	return frame, nil
}

// convert normalizes interleaved PCM ints to mono floats. Samples past the
// end of a short final block stay zero.
func (s *wavStream) convert(dst []float64, pcm []int) {
	scale := float64(int(1) << (s.bitDepth - 1))
	offset := 0
	if s.bitDepth == 8 {
		// 8-bit WAV is unsigned
		offset = 128
	}

	gain := s.gain
	if gain <= 0 {
		gain = 1
	}

	frames := len(pcm) / s.channels
	for i := 0; i < frames && i < len(dst); i++ {
		sum := 0
		for ch := 0; ch < s.channels; ch++ {
			sum += pcm[i*s.channels+ch] - offset
		}
		dst[i] = float64(sum) / float64(s.channels) / scale * gain
	}
}

func (s *wavStream) rewind() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return Wrap(DeviceUnavailable, "rewind", err)
	}
	s.decoder = wav.NewDecoder(s.file)
	if !s.decoder.IsValidFile() {
		return Errorf(DeviceUnavailable, "rewind", "%s: header no longer valid", s.file.Name())
	}
	return nil
}

// Close closes the underlying file.
func (s *wavStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.file.Close(); err != nil {
		return Wrap(StreamInitFailed, "close", fmt.Errorf("%s: %w", s.file.Name(), err))
	}
	return nil
}
