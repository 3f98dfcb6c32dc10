package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/termenv"

	"tiltd/pkg/engine"
	"tiltd/pkg/protocol"
)

const (
	gaugeHalfWidth = 20
	statsRefresh   = time.Second
)

type sampleMsg protocol.Sample

type statsMsg engine.Stats

type tickMsg time.Time

type tuiConfig struct {
	out     io.Writer
	in      io.Reader
	stats   func() engine.Stats
	onQuit  func()
	title   string
	profile termenv.Profile
}

type TUIOption func(*tuiConfig)

func WithTUIOutput(w io.Writer) TUIOption {
	return func(c *tuiConfig) {
		if w != nil {
			c.out = w
		}
	}
}

// WithTUIInput sets where key presses come from. A nil reader disables input.
func WithTUIInput(r io.Reader) TUIOption {
	return func(c *tuiConfig) {
		c.in = r
	}
}

// WithStats polls fn once a second for the counters line.
func WithStats(fn func() engine.Stats) TUIOption {
	return func(c *tuiConfig) {
		c.stats = fn
	}
}

// WithOnQuit is called when the user quits the view.
func WithOnQuit(fn func()) TUIOption {
	return func(c *tuiConfig) {
		c.onQuit = fn
	}
}

func WithTitle(title string) TUIOption {
	return func(c *tuiConfig) {
		if title != "" {
			c.title = title
		}
	}
}

func WithTUIProfile(p termenv.Profile) TUIOption {
	return func(c *tuiConfig) {
		c.profile = p
	}
}

// TUI is a full-screen terminal gauge. Report forwards samples into the
// bubbletea event loop, which owns all view state.
type TUI struct {
	program *tea.Program
}

func newTUIConfig(opts []TUIOption) tuiConfig {
	cfg := tuiConfig{
		title:   "Ship Tilt",
		profile: termenv.ColorProfile(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func NewTUI(ctx context.Context, opts ...TUIOption) *TUI {
	cfg := newTUIConfig(opts)

	progOpts := []tea.ProgramOption{
		tea.WithContext(ctx),
		tea.WithoutSignalHandler(),
	}
	if cfg.out != nil {
		progOpts = append(progOpts, tea.WithOutput(cfg.out))
	}
	if cfg.in != nil {
		progOpts = append(progOpts, tea.WithInput(cfg.in))
	} else {
		progOpts = append(progOpts, tea.WithInput(nil))
	}
	return &TUI{program: tea.NewProgram(newModel(cfg), progOpts...)}
}

// Run blocks until the user quits, Quit is called or ctx is done.
func (t *TUI) Run() error {
	_, err := t.program.Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

func (t *TUI) Report(s protocol.Sample) {
	t.program.Send(sampleMsg(s))
}

func (t *TUI) Quit() {
	t.program.Quit()
}

type model struct {
	cfg     tuiConfig
	sample  protocol.Sample
	have    bool
	reports uint64
	stats   engine.Stats
}

func newModel(cfg tuiConfig) model {
	return model{cfg: cfg}
}

func (m model) Init() tea.Cmd {
	if m.cfg.stats == nil {
		return nil
	}
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(statsRefresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case sampleMsg:
		m.sample = protocol.Sample(msg)
		m.have = true
		m.reports++
		return m, nil
	case statsMsg:
		m.stats = engine.Stats(msg)
		return m, nil
	case tickMsg:
		if m.cfg.stats == nil {
			return m, nil
		}
		stats := m.cfg.stats()
		return m, tea.Batch(func() tea.Msg { return statsMsg(stats) }, tick())
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			if m.cfg.onQuit != nil {
				m.cfg.onQuit()
			}
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n  %s\n\n", m.cfg.title)
	if !m.have {
		b.WriteString("  waiting for data...\n")
	} else {
		fmt.Fprintf(&b, "  Roll   %s  %s\n", m.angle(m.sample.Roll), gauge(m.sample.Roll))
		fmt.Fprintf(&b, "  Pitch  %s  %s\n\n", m.angle(m.sample.Pitch), gauge(m.sample.Pitch))
		fmt.Fprintf(&b, "  Status %s\n", m.sample.ChecksumStatus())
		fmt.Fprintf(&b, "  Hex    %s\n", protocol.FormatRecord(m.sample.Frame[:]))
	}
	fmt.Fprintf(&b, "\n  %d reports", m.reports)
	if m.cfg.stats != nil {
		fmt.Fprintf(&b, "  %d records  %d errors  %d checksum  %d dropped",
			m.stats.Records, m.stats.Errors(), m.stats.ChecksumMismatch, m.stats.Dropped)
	}
	b.WriteString("\n\n  q to quit\n")
	return b.String()
}

func (m model) angle(v float64) string {
	text := fmt.Sprintf("%6s°", FormatAngle(v))
	return m.cfg.profile.String(text).Foreground(m.cfg.profile.Color(AngleColor(v))).String()
}

// gauge draws a horizontal bar centered on level, full scale at ±90°.
func gauge(angle float64) string {
	pos := int(math.Round(angle / protocol.DefaultMaxAngle * gaugeHalfWidth))
	pos = max(min(pos, gaugeHalfWidth), -gaugeHalfWidth)

	cells := make([]byte, 2*gaugeHalfWidth+1)
	for i := range cells {
		cells[i] = '-'
	}
	cells[gaugeHalfWidth] = '|'
	lo, hi := gaugeHalfWidth, gaugeHalfWidth+pos
	if pos < 0 {
		lo, hi = gaugeHalfWidth+pos, gaugeHalfWidth
	}
	for i := lo; i <= hi; i++ {
		if i != gaugeHalfWidth {
			cells[i] = '='
		}
	}
	return "[" + string(cells) + "]"
}
