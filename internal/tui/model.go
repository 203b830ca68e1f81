// Package tui is an interactive front-end for sector recommendations: a
// sector field, the list area and a bar chart. Enter submits; it never
// leaves the program.
package tui

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/okian/ecoinvest/internal/recommend"
	"github.com/okian/ecoinvest/internal/recommend/term"
	"github.com/okian/ecoinvest/pkg/logger"
)

// FieldName is the name of the sector input.
const FieldName = "sector"

const defaultWidth = 80

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#34A853"))
	hintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	textStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	barStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#4BC0C0"))
)

// replyMsg carries the outcome of one submission.
type replyMsg struct {
	sector string
	reply  recommend.Reply
	err    error
}

// Model is the bubbletea model.
type Model struct {
	ctx     context.Context
	timeout time.Duration
	handler *recommend.Handler
	area    *term.ListArea
	chart   *term.BarChart

	input   textinput.Model
	spinner spinner.Model
	pending int
	err     error
	width   int
}

// Option configures a Model.
type Option func(*config)

type config struct {
	timeout    time.Duration
	latestOnly bool
	log        logger.Logger
	initial    string
}

// WithTimeout bounds each submission.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithLatestOnly drops replies of superseded submissions.
func WithLatestOnly() Option {
	return func(c *config) { c.latestOnly = true }
}

// WithLogger sets the logger passed to the handler.
func WithLogger(l logger.Logger) Option {
	return func(c *config) { c.log = l }
}

// WithSector pre-fills the sector field.
func WithSector(s string) Option {
	return func(c *config) { c.initial = s }
}

// New creates a model submitting through submitter.
func New(ctx context.Context, submitter recommend.Submitter, opts ...Option) Model {
	cfg := config{log: logger.Nop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	area := term.NewListArea(io.Discard)
	chart := term.NewBarChart(io.Discard, term.WithWidth(defaultWidth))
	hopts := []recommend.Option{recommend.WithLogger(cfg.log)}
	if cfg.latestOnly {
		hopts = append(hopts, recommend.WithLatestOnly())
	}

	input := textinput.New()
	input.Prompt = FieldName + "> "
	input.Placeholder = "e.g. hydropower"
	input.SetValue(cfg.initial)
	input.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot

	return Model{
		ctx:     ctx,
		timeout: cfg.timeout,
		handler: recommend.New(submitter, area, chart, hopts...),
		area:    area,
		chart:   chart,
		input:   input,
		spinner: s,
		width:   defaultWidth,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(msg.Width-len(m.input.Prompt)-1, 10)
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			m.pending++
			return m, tea.Batch(m.submit(m.input.Value()), m.spinner.Tick)
		}

	case replyMsg:
		m.pending--
		switch {
		case errors.Is(msg.err, recommend.ErrSuperseded):
		case msg.err != nil:
			m.err = msg.err
		default:
			m.err = nil
		}
		return m, nil

	case spinner.TickMsg:
		if m.pending == 0 {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit(sector string) tea.Cmd {
	return func() tea.Msg {
		ctx := m.ctx
		if m.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, m.timeout)
			defer cancel()
		}
		reply, err := m.handler.Submit(ctx, sector)
		return replyMsg{sector: sector, reply: reply, err: err}
	}
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Eco-invest recommendations"))
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	if m.pending > 0 {
		b.WriteString(" " + m.spinner.View())
	}
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render(m.err.Error()))
		b.WriteString("\n\n")
	}

	if text := m.area.Text(); text != "" {
		b.WriteString(textStyle.Render(text))
		b.WriteString("\n")
	}
	for _, item := range m.area.Items() {
		b.WriteString("  • " + item + "\n")
	}
	if chart, ok := m.chart.Last(); ok {
		b.WriteString("\n")
		term.RenderBars(&b, chart, m.width, func(s string) string { return barStyle.Render(s) })
	}

	b.WriteString("\n")
	b.WriteString(hintStyle.Render("enter: submit • esc: quit"))
	b.WriteString("\n")
	return b.String()
}

// Value returns the current sector field.
func (m Model) Value() string { return m.input.Value() }
