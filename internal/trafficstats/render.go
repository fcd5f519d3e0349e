package trafficstats

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

const (
	defaultBarWidth = 30
	defaultIndent   = "  "
)

type barLayout struct {
	labels       []string
	values       []string
	percents     []string
	labelWidth   int
	valueWidth   int
	percentWidth int
	max          int64
}

func buildLayout(labels []string, values []int64, mode Mode) barLayout {
	l := barLayout{
		labels:   labels,
		values:   make([]string, len(values)),
		percents: make([]string, len(values)),
	}
	var total int64
	for i, v := range values {
		l.values[i] = mode.Format(v)
		total += v
		if v > l.max {
			l.max = v
		}
		l.labelWidth = max(l.labelWidth, runewidth.StringWidth(labels[i]))
		l.valueWidth = max(l.valueWidth, runewidth.StringWidth(l.values[i]))
	}
	if l.max == 0 {
		l.max = 1
	}
	for i, v := range values {
		l.percents[i] = formatPercent(v, total)
		l.percentWidth = max(l.percentWidth, len(l.percents[i]))
	}
	return l
}

// RenderBars draws one horizontal bar per entry. width bounds the bar
// itself; zero picks the default.
func RenderBars(bars []Bar, mode Mode, width int) string {
	if len(bars) == 0 {
		return defaultIndent + "no traffic recorded\n"
	}
	if width <= 0 {
		width = defaultBarWidth
	}
	labels := make([]string, len(bars))
	values := make([]int64, len(bars))
	for i, b := range bars {
		labels[i] = b.Label
		values[i] = b.Value
	}
	l := buildLayout(labels, values, mode)

	var b strings.Builder
	for i, bar := range bars {
		b.WriteString(defaultIndent)
		b.WriteString(runewidth.FillRight(l.labels[i], l.labelWidth))
		b.WriteString(" | ")
		b.WriteString(colorize(renderBar(bar.Value, l.max, width), bar.Color))
		b.WriteString(" (")
		b.WriteString(runewidth.FillRight(l.values[i], l.valueWidth))
		b.WriteString(") ")
		b.WriteString(fmt.Sprintf("%*s", l.percentWidth, l.percents[i]))
		b.WriteString("\n")
	}
	return b.String()
}

// RenderTimeline draws one bar per bucket labelled with its local time.
func RenderTimeline(points []Point, mode Mode, width int) string {
	if len(points) == 0 {
		return defaultIndent + "no timeline data\n"
	}
	bars := make([]Bar, len(points))
	for i, p := range points {
		bars[i] = Bar{Label: formatBucket(p.At), Value: p.Value}
	}
	return RenderBars(bars, mode, width)
}

func formatBucket(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("15:04:05")
}

func renderBar(value, maxValue int64, width int) string {
	if maxValue < 1 {
		maxValue = 1
	}
	if value < 0 {
		value = 0
	}
	fill := 0
	if value > 0 {
		fill = int(math.Round(float64(value) / float64(maxValue) * float64(width)))
		if fill == 0 {
			fill = 1
		}
	}
	if fill > width {
		fill = width
	}
	return strings.Repeat("█", fill) + strings.Repeat("░", width-fill)
}

func colorize(bar, color string) string {
	if color == "" {
		return bar
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(bar)
}

func formatPercent(value, total int64) string {
	if total <= 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(value)/float64(total)*100)
}
