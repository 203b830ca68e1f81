package term

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/okian/ecoinvest/internal/recommend"
)

const (
	defaultWidth = 80
	barRune      = "█"
	maxLabel     = 24
)

// BarChart draws horizontal bars, one per label, scaled to the largest value.
type BarChart struct {
	mu    sync.Mutex
	w     io.Writer
	width int
	bar   *color.Color
	last  recommend.Chart
	drawn bool
}

// ChartOption configures a BarChart.
type ChartOption func(*BarChart)

// WithWidth fixes the total line width. Zero detects it from the terminal.
func WithWidth(n int) ChartOption {
	return func(c *BarChart) {
		if n > 0 {
			c.width = n
		}
	}
}

// WithNoColor prints plain bars.
func WithNoColor() ChartOption {
	return func(c *BarChart) { c.bar.DisableColor() }
}

// NewBarChart creates a chart writing to w.
func NewBarChart(w io.Writer, opts ...ChartOption) *BarChart {
	c := &BarChart{w: w, bar: color.New(color.FgGreen)}
	for _, opt := range opts {
		opt(c)
	}
	if c.width == 0 {
		c.width = detectWidth(w)
	}
	return c
}

func detectWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return defaultWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return defaultWidth
	}
	return width
}

// Draw renders the first dataset of chart.
func (c *BarChart) Draw(chart recommend.Chart) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last, c.drawn = chart, true
	RenderBars(c.w, chart, c.width, func(s string) string { return c.bar.Sprint(s) })
}

// RenderBars writes the first dataset of chart as labelled horizontal bars
// fitting width columns. paint styles each bar.
func RenderBars(w io.Writer, chart recommend.Chart, width int, paint func(string) string) {
	if len(chart.Datasets) == 0 {
		return
	}
	ds := chart.Datasets[0]
	_, _ = fmt.Fprintf(w, "%s\n", ds.Label)
	if len(chart.Labels) == 0 {
		_, _ = fmt.Fprintln(w, "  (no data)")
		return
	}

	labelWidth := 0
	for _, l := range chart.Labels {
		labelWidth = max(labelWidth, min(utf8.RuneCountInString(l), maxLabel))
	}
	values := make([]string, len(ds.Data))
	valueWidth := 0
	for i, v := range ds.Data {
		values[i] = recommend.FormatScore(v)
		valueWidth = max(valueWidth, len(values[i]))
	}
	barWidth := max(width-labelWidth-valueWidth-6, 1)

	lo, hi := scale(ds.Data, chart.BeginAtZero)
	for i, label := range chart.Labels {
		var v float64
		var shown string
		if i < len(ds.Data) {
			v, shown = ds.Data[i], values[i]
		}
		n := 0
		if hi > lo {
			n = int(math.Round((v - lo) / (hi - lo) * float64(barWidth)))
		}
		n = min(max(n, 0), barWidth)
		_, _ = fmt.Fprintf(w, "  %-*s │%s %s\n", labelWidth, truncate(label, maxLabel), paint(strings.Repeat(barRune, n)), shown)
	}
}

// Last returns the most recently drawn chart and whether one was drawn.
func (c *BarChart) Last() (recommend.Chart, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last, c.drawn
}

// scale returns the axis range; with fromZero the axis starts at 0 unless
// values go below it.
func scale(data []float64, fromZero bool) (lo, hi float64) {
	if len(data) == 0 {
		return 0, 0
	}
	lo, hi = data[0], data[0]
	for _, v := range data[1:] {
		lo, hi = min(lo, v), max(hi, v)
	}
	if fromZero {
		lo, hi = min(lo, 0), max(hi, 0)
	}
	return lo, hi
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
