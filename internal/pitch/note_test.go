package pitch

import (
	"errors"
	"math"
	"testing"
)

func TestMapperNote(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		a4        float64
		frequency float64
		want      PitchClass
		octave    int
		cents     int
		tolerance int
	}{
		{"concert A", 440, 440, A, 4, 0, 0},
		{"A sharp", 440, 466.16, ASharp, 4, 0, 1},
		{"middle C", 440, 261.63, C, 4, 0, 1},
		{"C5", 440, 523.25, C, 5, 0, 1},
		{"A5", 440, 880, A, 5, 0, 0},
		{"A0", 440, 27.5, A, 0, 0, 0},
		{"C0", 440, 16.3516, C, 0, 0, 1},
		{"low E string", 440, 82.41, E, 2, 0, 1},
		{"sharp A", 440, 442, A, 4, 8, 0},
		{"flat A", 440, 438, A, 4, -8, 0},
		{"recalibrated A", 442, 442, A, 4, 0, 0},
		{"below C0", 440, 10, DSharp, -1, 49, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := NewMapper(tt.a4).Note(tt.frequency)
			if err != nil {
				t.Fatalf("Note(%v): %v", tt.frequency, err)
			}
			if got.Name != tt.want || got.Octave != tt.octave {
				t.Errorf("Note(%v) = %s, want %s%d", tt.frequency, got, tt.want, tt.octave)
			}
			if d := got.Cents - tt.cents; d < -tt.tolerance || d > tt.tolerance {
				t.Errorf("Note(%v).Cents = %d, want %d±%d", tt.frequency, got.Cents, tt.cents, tt.tolerance)
			}
			if got.Frequency != tt.frequency {
				t.Errorf("Note(%v).Frequency = %v", tt.frequency, got.Frequency)
			}
		})
	}
}

func TestMapperNoteInvalid(t *testing.T) {
	t.Parallel()

	m := NewMapper(DefaultReferencePitch)
	for _, f := range []float64{0, -440, math.NaN(), math.Inf(1), math.Inf(-1)} {
		if _, err := m.Note(f); !errors.Is(err, ErrInvalidFrequency) {
			t.Errorf("Note(%v) error = %v, want ErrInvalidFrequency", f, err)
		}
	}
}

func TestMapperCentsRange(t *testing.T) {
	t.Parallel()

	m := NewMapper(DefaultReferencePitch)
	for f := 20.0; f < 5000; f *= 1.0009 {
		n, err := m.Note(f)
		if err != nil {
			t.Fatalf("Note(%v): %v", f, err)
		}
		if n.Cents < -50 || n.Cents > 50 {
			t.Fatalf("Note(%v).Cents = %d, outside [-50, 50]", f, n.Cents)
		}
	}
}

func TestMapperFrequency(t *testing.T) {
	t.Parallel()

	m := NewMapper(DefaultReferencePitch)
	tests := []struct {
		name   PitchClass
		octave int
		want   float64
	}{
		{A, 4, 440},
		{A, 3, 220},
		{C, 4, 261.6256},
		{E, 2, 82.4069},
	}
	for _, tt := range tests {
		if got := m.Frequency(tt.name, tt.octave); math.Abs(got-tt.want) > 1e-3 {
			t.Errorf("Frequency(%s, %d) = %.4f, want %.4f", tt.name, tt.octave, got, tt.want)
		}
	}

	// every tempered pitch maps back onto itself
	for octave := 0; octave <= 8; octave++ {
		for p := C; p <= B; p++ {
			n, err := m.Note(m.Frequency(p, octave))
			if err != nil {
				t.Fatal(err)
			}
			if n.Name != p || n.Octave != octave || n.Cents != 0 {
				t.Errorf("round trip %s%d = %s %+d", p, octave, n, n.Cents)
			}
		}
	}
}

func TestNewMapperInvalidReference(t *testing.T) {
	t.Parallel()

	for _, a4 := range []float64{0, -1, math.NaN()} {
		n, err := NewMapper(a4).Note(440)
		if err != nil {
			t.Fatal(err)
		}
		if n.Name != A || n.Octave != 4 || n.Cents != 0 {
			t.Errorf("NewMapper(%v).Note(440) = %s %+d, want A4 +0", a4, n, n.Cents)
		}
	}
}

func TestPitchClass(t *testing.T) {
	t.Parallel()

	tests := []struct {
		p       PitchClass
		str     string
		sharp   bool
		natural PitchClass
	}{
		{C, "C", false, C},
		{CSharp, "C#", true, C},
		{DSharp, "D#", true, D},
		{E, "E", false, E},
		{FSharp, "F#", true, F},
		{GSharp, "G#", true, G},
		{ASharp, "A#", true, A},
		{B, "B", false, B},
	}
	for _, tt := range tests {
		if got := tt.p.String(); got != tt.str {
			t.Errorf("String() = %q, want %q", got, tt.str)
		}
		if got := tt.p.IsSharp(); got != tt.sharp {
			t.Errorf("%s.IsSharp() = %v", tt.p, got)
		}
		if got := tt.p.Natural(); got != tt.natural {
			t.Errorf("%s.Natural() = %s, want %s", tt.p, got, tt.natural)
		}
	}

	if got := PitchClass(12).String(); got != "PitchClass(12)" {
		t.Errorf("out of range String() = %q", got)
	}
}

func TestFloorDivMod(t *testing.T) {
	t.Parallel()

	tests := []struct{ a, b, div, mod int }{
		{57, 12, 4, 9},
		{12, 12, 1, 0},
		{0, 12, 0, 0},
		{-1, 12, -1, 11},
		{-12, 12, -1, 0},
		{-13, 12, -2, 11},
	}
	for _, tt := range tests {
		if got := floorDiv(tt.a, tt.b); got != tt.div {
			t.Errorf("floorDiv(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.div)
		}
		if got := floorMod(tt.a, tt.b); got != tt.mod {
			t.Errorf("floorMod(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.mod)
		}
	}
}
