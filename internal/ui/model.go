package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/0xlemi/pitchfinder/internal/detector"
	"github.com/0xlemi/pitchfinder/internal/pitch"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// How often the view polls the detector.
const refreshInterval = 100 * time.Millisecond

// Cells on each side of the centre of the cents meter.
const meterHalfWidth = 10

var (
	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			PaddingLeft(2).
			PaddingRight(2).
			MarginBottom(1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#CCCCCC"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF5F5F"))

	inTuneStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FF00"))

	offTuneStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFA500"))

	// Note colors
	noteColors = map[pitch.PitchClass]string{
		pitch.C: "#E8D6B0", // Beige
		pitch.D: "#A020F0", // Purple
		pitch.E: "#FFFF00", // Yellow
		pitch.F: "#FFA500", // Orange
		pitch.G: "#00FF00", // Green
		pitch.A: "#FF0000", // Red
		pitch.B: "#0000FF", // Blue
	}
)

// Detector is what the view needs from the detection controller.
type Detector interface {
	Start(ctx context.Context) error
	Stop() error
	Snapshot() detector.Snapshot
}

// Model represents the UI state.
type Model struct {
	detector Detector
	snapshot detector.Snapshot
	title    string
	width    int
	height   int
}

// NewModel creates a UI model polling d.
func NewModel(d Detector, title string) Model {
	return Model{
		detector: d,
		snapshot: d.Snapshot(),
		title:    title,
	}
}

// TickMsg represents a timer tick.
type TickMsg time.Time

// toggledMsg reports the outcome of a start/stop key press.
type toggledMsg struct{ err error }

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// Init initializes the UI model.
func (m Model) Init() tea.Cmd {
	return tick()
}

// Update updates the UI model based on messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			_ = m.detector.Stop()
			return m, tea.Quit
		case "s", " ":
			return m, m.toggle()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case TickMsg:
		m.snapshot = m.detector.Snapshot()
		return m, tick()

	case toggledMsg:
		// errors are already in the snapshot
		m.snapshot = m.detector.Snapshot()
	}

	return m, nil
}

func (m Model) toggle() tea.Cmd {
	d := m.detector
	listening := m.snapshot.State != detector.Idle
	return func() tea.Msg {
		if listening {
			return toggledMsg{err: d.Stop()}
		}
		return toggledMsg{err: d.Start(context.Background())}
	}
}

// View renders the UI.
func (m Model) View() string {
	s := titleStyle.Render(m.title)
	s += "\n"

	snap := m.snapshot
	if snap.HasNote {
		s += renderNote(snap.Note)
		s += "\n"
		s += renderMeter(snap.Note.Cents)
		s += "\n"

		info := fmt.Sprintf("Frequency: %.2f Hz | Cents: %+d", snap.Note.Frequency, snap.Note.Cents)
		if snap.HasFrequency && snap.Frequency != snap.Note.Frequency {
			info += fmt.Sprintf(" | Now: %.2f Hz", snap.Frequency)
		}
		s += infoStyle.Render(info)
	} else if snap.State != detector.Idle {
		s += infoStyle.Render("Listening for audio...")
	} else {
		s += infoStyle.Render("Not listening")
	}

	s += "\n\n"
	s += infoStyle.Render("State: " + snap.State.String())
	if snap.Err != nil {
		s += "\n"
		s += errorStyle.Render("Error: " + snap.Err.Error())
	}

	s += "\n\n"
	s += infoStyle.Render("Press s to start/stop, q to quit")

	return s
}

// renderNote draws the note name; sharps get a split color box made of the
// natural below and the natural above.
func renderNote(n pitch.Note) string {
	if !n.Name.IsSharp() {
		return lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color(noteColors[n.Name])).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#333333")).
			Padding(2, 4).
			MarginBottom(1).
			Render(n.String())
	}

	base := n.Name.Natural()
	next := base + 1

	leftStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FAFAFA")).
		Background(lipgloss.Color(noteColors[base])).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#333333")).
		BorderLeft(true).
		BorderTop(true).
		BorderBottom(true).
		BorderRight(false).
		PaddingLeft(2).
		PaddingRight(1).
		PaddingTop(2).
		PaddingBottom(2)

	rightStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FAFAFA")).
		Background(lipgloss.Color(noteColors[next])).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#333333")).
		BorderLeft(false).
		BorderTop(true).
		BorderBottom(true).
		BorderRight(true).
		PaddingLeft(1).
		PaddingRight(2).
		PaddingTop(2).
		PaddingBottom(2)

	return lipgloss.JoinHorizontal(lipgloss.Top,
		leftStyle.Render(base.String()),
		rightStyle.Render(fmt.Sprintf("#%d", n.Octave)))
}

// renderMeter draws a -50..+50 cents scale with a marker at cents.
func renderMeter(cents int) string {
	cells := make([]string, 2*meterHalfWidth+1)
	for i := range cells {
		cells[i] = "-"
	}
	cells[meterHalfWidth] = "|"

	pos := meterHalfWidth + meterPosition(cents)
	style := offTuneStyle
	if cents >= -5 && cents <= 5 {
		style = inTuneStyle
	}
	cells[pos] = style.Render("^")

	return infoStyle.Render("-50 ") + strings.Join(cells, "") + infoStyle.Render(" +50")
}

// meterPosition maps cents to a cell offset from the centre.
func meterPosition(cents int) int {
	if cents > 50 {
		cents = 50
	}
	if cents < -50 {
		cents = -50
	}
	// round half away from zero
	off := (cents*meterHalfWidth + 25*sign(cents)) / 50
	return off
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
