package audio

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
)

var errStreamClosed = errors.New("stream closed")

// PortAudioSource captures from a live input device using PortAudio.
// EchoCancellation, NoiseSuppression and AutoGainControl are not available
// through PortAudio and are ignored.
type PortAudioSource struct{}

// NewPortAudioSource creates a new capture source.
func NewPortAudioSource() *PortAudioSource {
	return &PortAudioSource{}
}

// Open initializes PortAudio and starts an input stream on the configured device.
// Every failure path terminates PortAudio again before returning.
func (s *PortAudioSource) Open(ctx context.Context, cfg Config) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, Wrap(StreamInitFailed, "open", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, Wrap(StreamInitFailed, "open", err)
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, classify("initialize", err)
	}

	stream, err := openInput(cfg)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, err
	}
	return stream, nil
}

// portAudioStream keeps the most recent captured block. Each block is handed
// out once; NextFrame reports ErrNoFrame until the callback delivers the next.
type portAudioStream struct {
	mu         sync.Mutex
	stream     *portaudio.Stream
	channels   int
	gain       float64
	sampleRate int
	latest     []float64
	seq        uint64
	delivered  uint64
	closed     bool
}

func openInput(cfg Config) (*portAudioStream, error) {
	device, err := lookupDevice(cfg.Device)
	if err != nil {
		return nil, err
	}
	if device.MaxInputChannels < cfg.Channels {
		return nil, Errorf(DeviceUnavailable, "open", "device %q has %d input channels, need %d",
			device.Name, device.MaxInputChannels, cfg.Channels)
	}

	gain := cfg.Amplification
	if gain < 0.1 {
		gain = 0.1
	}

	s := &portAudioStream{
		channels:   cfg.Channels,
		gain:       gain,
		sampleRate: cfg.SampleRate,
		latest:     make([]float64, cfg.FrameSize),
	}

	params := portaudio.LowLatencyParameters(device, nil)
	params.Input.Channels = cfg.Channels
	params.Output.Channels = 0
	params.SampleRate = float64(cfg.SampleRate)
	params.FramesPerBuffer = cfg.FrameSize

	s.stream, err = portaudio.OpenStream(params, s.processAudio)
	if err != nil {
		return nil, classify("open", err)
	}

	if err := s.stream.Start(); err != nil {
		_ = s.stream.Close()
		return nil, classify("start", err)
	}
	return s, nil
}

// processAudio is the PortAudio callback.
func (s *portAudioStream) processAudio(in, _ []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frames := len(in) / s.channels
	if frames != len(s.latest) {
		s.latest = make([]float64, frames)
	}
	downmix(s.latest, in, s.channels, s.gain)
	s.seq++
}

// NextFrame returns a copy of the newest captured block.
func (s *portAudioStream) NextFrame() (*Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, Wrap(DeviceUnavailable, "read", errStreamClosed)
	}
	if s.seq == s.delivered {
		return nil, ErrNoFrame
	}
	s.delivered = s.seq

	frame := &Frame{
		Samples:    make([]float64, len(s.latest)),
		SampleRate: s.sampleRate,
	}
	copy(frame.Samples, s.latest)
	return frame, nil
}

// Close stops the stream and terminates PortAudio.
func (s *portAudioStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	// Stop waits for the callback to finish, so it must run without the lock.
	var errs []error
	if err := s.stream.Stop(); err != nil {
		errs = append(errs, err)
	}
	if err := s.stream.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := portaudio.Terminate(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return Wrap(StreamInitFailed, "close", err)
	}
	return nil
}

// DeviceInfo describes an input device.
type DeviceInfo struct {
	Index             int // 1-based, accepted by Config.Device
	Name              string
	HostAPI           string
	MaxInputChannels  int
	DefaultSampleRate float64
	Default           bool
}

// ListDevices returns the input-capable devices PortAudio can see.
func ListDevices() ([]DeviceInfo, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, classify("initialize", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, classify("list", err)
	}

	var defaultName string
	if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil {
		defaultName = def.Name
	}

	var out []DeviceInfo
	for i, d := range devices {
		if d.MaxInputChannels <= 0 {
			continue
		}
		info := DeviceInfo{
			Index:             i + 1,
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			Default:           d.Name == defaultName,
		}
		if d.HostApi != nil {
			info.HostAPI = d.HostApi.Name
		}
		out = append(out, info)
	}
	return out, nil
}

// lookupDevice resolves a device by 1-based index or name prefix.
// An empty name selects the default input device.
func lookupDevice(name string) (*portaudio.DeviceInfo, error) {
	if name == "" {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, classify("open", err)
		}
		if device == nil {
			return nil, Errorf(DeviceUnavailable, "open", "no default input device")
		}
		return device, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, classify("open", err)
	}

	if i, err := strconv.Atoi(name); err == nil && i > 0 && i <= len(devices) {
		return devices[i-1], nil
	}
	for _, d := range devices {
		if d.MaxInputChannels > 0 && strings.HasPrefix(d.Name, name) {
			return d, nil
		}
	}
	return nil, Errorf(DeviceUnavailable, "open", "device not found: %s", name)
}

// classify maps PortAudio errors onto the audio error kinds.
func classify(op string, err error) error {
	switch {
	case errors.Is(err, portaudio.DeviceUnavailable),
		errors.Is(err, portaudio.InvalidDevice):
		return Wrap(DeviceUnavailable, op, err)
	default:
		return Wrap(StreamInitFailed, op, err)
	}
}
