package detector

import "github.com/0xlemi/pitchfinder/internal/pitch"

// State is the detection state machine's position.
type State int

const (
	// Idle: not capturing.
	Idle State = iota
	// Listening: capturing, no stable reading yet.
	Listening
	// Stable: the last tick promoted a stable reading.
	Stable
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Listening:
		return "listening"
	case Stable:
		return "stable"
	default:
		return "unknown"
	}
}

// Snapshot is a consistent copy of everything a consumer can read.
type Snapshot struct {
	State        State
	Note         pitch.Note
	HasNote      bool
	Frequency    float64
	HasFrequency bool
	Err          error
}
