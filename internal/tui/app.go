package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mfalme0/open-zengee/internal/bridge"
	"github.com/mfalme0/open-zengee/internal/stats"
)

// Colors
var (
	cyanColor  = lipgloss.Color("#00FFFF")
	grayColor  = lipgloss.Color("#666666")
	whiteColor = lipgloss.Color("#FFFFFF")
	greenColor = lipgloss.Color("#00CC66")
	redColor   = lipgloss.Color("#FF6666")
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(whiteColor).
			Background(lipgloss.Color("#1a1a2e")).
			Padding(0, 2)

	statsStyle = lipgloss.NewStyle().
			Foreground(whiteColor)

	labelStyle = lipgloss.NewStyle().
			Foreground(grayColor)

	swatchStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(cyanColor).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(grayColor)
)

// KeyMap defines keybindings
type KeyMap struct {
	Reset key.Binding
	Quit  key.Binding
}

var keys = KeyMap{
	Reset: key.NewBinding(key.WithKeys("r")),
	Quit:  key.NewBinding(key.WithKeys("q", "ctrl+c")),
}

// Model is the dashboard model. It only reads the tracker; all bridge
// state flows in through snapshots on a tick.
type Model struct {
	tracker *stats.Tracker
	cfg     bridge.Config
	snap    stats.Snapshot
	width   int
	height  int
}

// NewModel creates the dashboard model.
func NewModel(tracker *stats.Tracker, cfg bridge.Config) Model {
	return Model{
		tracker: tracker,
		cfg:     cfg,
		snap:    tracker.Snapshot(),
	}
}

// TickMsg is a message for periodic updates
type TickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	return tickCmd()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Reset):
			m.tracker.Reset()
			m.snap = m.tracker.Snapshot()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case TickMsg:
		m.snap = m.tracker.Snapshot()
		return m, tickCmd()
	}

	return m, nil
}

func (m Model) View() string {
	s := titleStyle.Render("open-zengee") + "\n\n"

	device := labelStyle.Render("Device: ") + m.cfg.DeviceAddr + "  "
	if m.snap.DeviceUp {
		device += lipgloss.NewStyle().Foreground(greenColor).Render("connected")
	} else {
		device += lipgloss.NewStyle().Foreground(redColor).Render("unreachable")
	}
	s += device + "\n"

	source := "-"
	if m.snap.LastSource != "" {
		source = m.snap.LastSource
	}
	s += labelStyle.Render("Universe: ") + fmt.Sprintf("%d", m.cfg.Universe) +
		labelStyle.Render("   Source: ") + source + "\n\n"

	s += m.renderPixels() + "\n\n"
	s += m.renderStats() + "\n"

	s += "\n" + helpStyle.Render("r: reset counters | q: quit")
	return s
}

func (m Model) renderPixels() string {
	if len(m.snap.Pixels) == 0 {
		return helpStyle.Render("Waiting for sACN data...")
	}

	var swatches []string
	for i, c := range m.snap.Pixels {
		hex := fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
		block := lipgloss.NewStyle().
			Background(lipgloss.Color(hex)).
			Render("      ")
		content := fmt.Sprintf("px %d\n%s\n%s", i, block, hex)
		swatches = append(swatches, swatchStyle.Render(content))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, swatches...)
}

func (m Model) renderStats() string {
	line1 := fmt.Sprintf(
		"Rate: %.1f fps | Accepted: %d | Forwarded: %d",
		m.snap.Rate, m.snap.Accepted, m.snap.Forwarded,
	)
	line2 := fmt.Sprintf(
		"Dropped: %d stale, %d other universe | Malformed: %d | Short frames: %d | Device errors: %d",
		m.snap.DroppedStale, m.snap.DroppedUniverse, m.snap.Malformed,
		m.snap.Insufficient, m.snap.DeviceErrors,
	)
	return statsStyle.Render(line1) + "\n" + statsStyle.Render(line2)
}
