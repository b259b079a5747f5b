package pitch

import (
	"fmt"
	"math"
)

// PitchClass is one of the 12 equal-tempered pitch classes, C = 0.
type PitchClass int

const (
	C PitchClass = iota
	CSharp
	D
	DSharp
	E
	F
	FSharp
	G
	GSharp
	A
	ASharp
	B
)

// All note names in chromatic order.
var pitchClassNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

func (p PitchClass) String() string {
	if p < C || p > B {
		return fmt.Sprintf("PitchClass(%d)", int(p))
	}
	return pitchClassNames[p]
}

// IsSharp reports whether the pitch class is an accidental.
func (p PitchClass) IsSharp() bool {
	switch p {
	case CSharp, DSharp, FSharp, GSharp, ASharp:
		return true
	}
	return false
}

// Natural returns the natural the accidental is built on (C# -> C).
func (p PitchClass) Natural() PitchClass {
	if p.IsSharp() {
		return p - 1
	}
	return p
}

// Note represents a musical note.
type Note struct {
	Name      PitchClass
	Octave    int     // 4 for middle C (C4)
	Frequency float64 // measured frequency in Hz
	Cents     int     // deviation from the tempered pitch, -50 to +50
}

// String returns scientific pitch notation, e.g. "A4".
func (n Note) String() string {
	return fmt.Sprintf("%s%d", n.Name, n.Octave)
}

// DefaultReferencePitch is concert A4 in Hz.
const DefaultReferencePitch = 440.0

// Mapper converts frequencies to equal-tempered notes.
type Mapper struct {
	c0 float64
}

// NewMapper creates a mapper tuned to the given A4 frequency.
// A non-positive reference selects 440 Hz.
func NewMapper(a4 float64) Mapper {
	if a4 <= 0 || math.IsNaN(a4) || math.IsInf(a4, 0) {
		a4 = DefaultReferencePitch
	}
	// C0 sits 4 octaves and 9 semitones below A4
	return Mapper{c0: a4 * math.Pow(2, -4.75)}
}

// Note maps a frequency to the nearest note. Note numbers round half away
// from zero, so cents fall in [-50, 50].
func (m Mapper) Note(frequency float64) (Note, error) {
	if frequency <= 0 || math.IsNaN(frequency) || math.IsInf(frequency, 0) {
		return Note{}, fmt.Errorf("%w: %v", ErrInvalidFrequency, frequency)
	}
	if m.c0 == 0 {
		m = NewMapper(DefaultReferencePitch)
	}

	halfSteps := 12 * math.Log2(frequency/m.c0)
	noteNumber := int(math.Round(halfSteps))

	return Note{
		Name:      PitchClass(floorMod(noteNumber, 12)),
		Octave:    floorDiv(noteNumber, 12),
		Frequency: frequency,
		Cents:     int(math.Round((halfSteps - float64(noteNumber)) * 100)),
	}, nil
}

// Frequency returns the tempered frequency of a pitch class in an octave.
func (m Mapper) Frequency(name PitchClass, octave int) float64 {
	if m.c0 == 0 {
		m = NewMapper(DefaultReferencePitch)
	}
	return m.c0 * math.Pow(2, float64(octave*12+int(name))/12)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	r := a % b
	if r < 0 {
		r += b
	}
	return r
}
