package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/unkn0wn-root/mizuview/internal/errdef"
	"github.com/unkn0wn-root/mizuview/internal/trafficstats"
)

func (m *Model) loadStatsCmd() tea.Cmd {
	if m.api == nil {
		return nil
	}
	m.stats.loading = true
	m.stats.err = nil
	m.refreshStats()
	api := m.api
	return func() tea.Msg {
		ctx, cancel := restContext()
		defer cancel()
		pie, err := api.GetPieStats(ctx)
		if err != nil {
			return statsLoadedMsg{err: err}
		}
		timeline, err := api.GetTimelineStats(ctx)
		return statsLoadedMsg{pie: pie, timeline: timeline, err: err}
	}
}

func (m *Model) loadTappingCmd() tea.Cmd {
	if m.api == nil {
		return nil
	}
	api := m.api
	return func() tea.Msg {
		ctx, cancel := restContext()
		defer cancel()
		status, err := api.GetTappingStatus(ctx)
		return tappingStatusMsg{status: status, err: err}
	}
}

func (m *Model) handleStatsLoaded(msg statsLoadedMsg) {
	m.stats.loading = false
	if msg.err != nil {
		m.stats.err = msg.err
		m.log.Warn("traffic stats", "err", msg.err)
		m.setStatusMessage(statusMsg{text: "Failed to load traffic statistics", level: statusError})
	} else {
		m.stats.err = nil
		m.stats.pie = msg.pie
		m.stats.timeline = msg.timeline
	}
	m.refreshStats()
}

func (m *Model) handleTappingStatus(msg tappingStatusMsg) {
	if msg.err != nil {
		m.log.Debug("tapping status", "err", msg.err)
		return
	}
	m.stats.tapping = msg.status
	m.refreshStats()
}

func (m *Model) cycleStatsMode() {
	m.stats.mode = m.stats.mode.Next()
	m.refreshStats()
}

func (m *Model) nextStatsProtocol() {
	choices := trafficstats.Protocols(m.stats.pie)
	next := 0
	for i, p := range choices {
		if p == m.stats.protocol {
			next = (i + 1) % len(choices)
			break
		}
	}
	m.stats.protocol = choices[next]
	m.refreshStats()
}

func (m *Model) statsContent(width int) string {
	switch {
	case m.stats.loading && len(m.stats.pie) == 0:
		return m.theme.ListItemDimmedTitle.Render("Loading statistics...")
	case m.stats.err != nil && len(m.stats.pie) == 0:
		return m.theme.Error.Render(errdef.Message(m.stats.err))
	}

	barWidth := max(width-40, 10)
	bars := trafficstats.Breakdown(m.stats.pie, m.stats.mode, m.stats.protocol)
	points := trafficstats.Timeline(m.stats.timeline, m.stats.mode, m.stats.protocol)

	var b strings.Builder
	title := m.theme.PaneTitle
	fmt.Fprintf(&b, "%s  %s  %s\n\n",
		title.Render("Traffic statistics"),
		m.theme.StatusBarKey.Render(m.stats.mode.String()),
		m.theme.StatusBarValue.Render(m.stats.protocol),
	)
	b.WriteString(trafficstats.RenderBars(bars, m.stats.mode, barWidth))
	fmt.Fprintf(&b, "\n  total %s\n\n", m.stats.mode.Format(trafficstats.Total(bars)))
	b.WriteString(title.Render("Timeline"))
	b.WriteString("\n\n")
	b.WriteString(trafficstats.RenderTimeline(points, m.stats.mode, barWidth))

	if pods := m.stats.tapping.Pods; len(pods) > 0 {
		tapped := 0
		for _, p := range pods {
			if p.IsTapped {
				tapped++
			}
		}
		fmt.Fprintf(&b, "\n%s\n\n  %s of %s pods tapped\n",
			title.Render("Tapping"),
			humanize.Comma(int64(tapped)),
			humanize.Comma(int64(len(pods))),
		)
	}
	return b.String()
}

func (m *Model) refreshStats() {
	m.stats.viewport.SetContent(m.statsContent(m.stats.viewport.Width))
}
