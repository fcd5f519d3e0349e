package ui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"

	"github.com/unkn0wn-root/mizuview/internal/config"
	"github.com/unkn0wn-root/mizuview/internal/stream"
	"github.com/unkn0wn-root/mizuview/internal/traffic"
)

const statusBarLeftMaxRatio = 0.7

func (m Model) View() string {
	if !m.ready {
		return "Initialising..."
	}
	if m.showHelp {
		return m.renderWithinAppFrame(m.renderHelp())
	}

	var body string
	switch m.view {
	case viewStats:
		body = m.stats.viewport.View()
	case viewOAS:
		body = m.renderOAS()
	case viewReplay:
		body = m.renderReplay()
	case viewHistory:
		body = m.renderHistory()
	default:
		body = m.renderTraffic()
	}
	body = lipgloss.NewStyle().Height(m.paneSizes().bodyHeight).MaxHeight(m.paneSizes().bodyHeight).Render(body)

	content := lipgloss.JoinVertical(
		lipgloss.Left,
		m.renderHeader(),
		m.renderQueryBar(),
		body,
		m.renderNotification(),
		m.renderStatusBar(),
	)
	return m.renderWithinAppFrame(content)
}

func (m Model) renderWithinAppFrame(content string) string {
	if m.width > 0 {
		content = lipgloss.Place(
			m.width,
			max(m.height, lipgloss.Height(content)),
			lipgloss.Top,
			lipgloss.Left,
			content,
			lipgloss.WithWhitespaceChars(" "),
		)
	}
	return m.theme.AppFrame.Render(content)
}

func (m Model) renderHeader() string {
	sep := m.theme.HeaderSeparator.Render(" │ ")
	segments := []string{
		m.theme.HeaderBrand.Render("mizuview"),
		m.renderConnState(),
		m.theme.HeaderTitle.Render(m.view.String()),
	}
	if m.cfg.Server != "" {
		segments = append(segments, m.theme.HeaderValue.Render(m.cfg.Server))
	}
	segments = append(segments, m.theme.HeaderValue.Render(m.entriesSummary()))
	line := strings.Join(segments, sep)
	return m.theme.Header.Render(ansi.Truncate(line, max(m.width-2, 1), "…"))
}

func (m Model) renderConnState() string {
	label := "● " + m.feedState.String()
	switch {
	case m.paused:
		return m.theme.ConnConnecting.Render("❚❚ PAUSED")
	case m.feedState == stream.StateOpen:
		return m.theme.ConnOpen.Render(label)
	case m.feedState == stream.StateConnecting:
		return m.theme.ConnConnecting.Render(label)
	default:
		return m.theme.ConnClosed.Render(label)
	}
}

// entriesSummary mirrors the web UI footer: how many entries are shown out
// of how many the server has captured.
func (m Model) entriesSummary() string {
	shown := humanize.Comma(int64(len(m.entries)))
	if m.metadata.Total > 0 {
		s := fmt.Sprintf("%s / %s entries", shown, humanize.Comma(int64(m.metadata.Total)))
		if !m.startTime.IsZero() {
			s += " since " + m.startTime.Format(time.TimeOnly)
		}
		return s
	}
	return shown + " entries"
}

func (m Model) renderQueryBar() string {
	if m.focus == focusQuery && m.view == viewTraffic {
		return m.theme.CommandBar.Render(m.query.View())
	}
	q := m.activeQuery
	if q == "" {
		q = m.theme.CommandBarHint.Render("/ to filter traffic")
	} else {
		q = m.theme.QueryInput.Render(q)
	}
	return m.theme.CommandBar.Render(m.theme.QueryPrompt.Render(m.query.Prompt) + q)
}

func (m Model) renderNotification() string {
	if len(m.toasts) == 0 {
		return ""
	}
	parts := make([]string, 0, len(m.toasts))
	for _, item := range m.toasts {
		style := m.theme.Notification
		switch toastLevel(item.toast.Type) {
		case statusError:
			style = style.Foreground(m.theme.Error.GetForeground())
		case statusWarn:
			style = style.Foreground(m.theme.Warning.GetForeground())
		case statusSuccess:
			style = style.Foreground(m.theme.Success.GetForeground())
		}
		parts = append(parts, style.Render(item.toast.Text))
	}
	return ansi.Truncate(strings.Join(parts, " "), max(m.width, 1), "…")
}

func (m Model) renderStatusBar() string {
	lineWidth := max(m.width-2, 1)
	text := strings.TrimSpace(m.statusMessage.text)
	var left string
	if text != "" {
		style := m.theme.StatusBarValue
		switch m.statusMessage.level {
		case statusError:
			style = m.theme.Error
		case statusWarn:
			style = m.theme.Warning
		case statusSuccess:
			style = m.theme.Success
		}
		left = style.Render(text)
	}
	maxLeft := int(float64(lineWidth) * statusBarLeftMaxRatio)
	left = ansi.Truncate(left, maxLeft, "…")

	right := m.theme.StatusBarKey.Render("?") + m.theme.StatusBarValue.Render(" help")
	if m.pendingChord != "" {
		right = m.theme.StatusBarKey.Render(m.pendingChord+" …") + "  " + right
	}
	if v := strings.TrimSpace(m.cfg.Version); v != "" {
		right += m.theme.StatusBarValue.Render("  " + v)
	}
	gap := max(lineWidth-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return m.theme.StatusBar.Render(left + strings.Repeat(" ", gap) + right)
}

func (m Model) renderTraffic() string {
	p := m.paneSizes()
	list := m.renderEntries(p.listWidth, p.listHeight)
	detail := m.renderDetail(p.detailWidth, p.detailHeight)
	if m.layout.MainSplit == config.LayoutMainSplitHorizontal {
		divider := m.theme.PaneDivider.Render(strings.Repeat("─", max(m.width, 1)))
		return lipgloss.JoinVertical(lipgloss.Left, list, divider, detail)
	}
	divider := m.theme.PaneDivider.Render(strings.TrimRight(strings.Repeat("│\n", p.bodyHeight), "\n"))
	return lipgloss.JoinHorizontal(lipgloss.Top, list, divider, detail)
}

func (m Model) paneTitle(title string, focused bool) string {
	style := m.theme.PaneTitle
	if focused {
		style = style.Foreground(m.theme.PaneBorderFocus)
	}
	return style.Render(title)
}

func (m Model) renderEntries(width, height int) string {
	lines := make([]string, 0, height)
	title := "Entries"
	if m.evicted > 0 {
		title += fmt.Sprintf(" (%s older dropped)", humanize.Comma(int64(m.evicted)))
	}
	lines = append(lines, m.paneTitle(title, m.focus == focusEntries))

	rows := max(height-1, 0)
	if len(m.entries) == 0 {
		lines = append(lines, m.theme.ListItemDimmedTitle.Render(m.emptyEntriesText()))
	}
	end := min(m.offset+rows, len(m.entries))
	for i := m.offset; i < end; i++ {
		lines = append(lines, m.renderEntryRow(m.entries[i], i == m.cursor, width))
	}
	return lipgloss.NewStyle().Width(width).Height(height).MaxHeight(height).Render(strings.Join(lines, "\n"))
}

func (m Model) emptyEntriesText() string {
	switch {
	case m.paused:
		return "Feed paused"
	case m.feedState == stream.StateConnecting:
		return "Connecting..."
	case m.feedState != stream.StateOpen:
		return "Not connected"
	default:
		return "Waiting for traffic..."
	}
}

// renderEntryRow lays out one summary as
// "ABBR STATUS METHOD path  src → dst  time".
func (m Model) renderEntryRow(e traffic.EntrySummary, selected bool, width int) string {
	abbr := e.Protocol.Abbreviation
	if abbr == "" {
		abbr = strings.ToUpper(e.Protocol.Name)
	}
	protoStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	if bg := e.Protocol.BackgroundColor; bg != "" {
		protoStyle = protoStyle.Background(lipgloss.Color(bg))
	}
	if fg := e.Protocol.ForegroundColor; fg != "" {
		protoStyle = protoStyle.Foreground(lipgloss.Color(fg))
	}

	status := "   "
	if e.Status > 0 {
		status = strconv.Itoa(e.Status)
	}
	statusStyle := lipgloss.NewStyle().Foreground(m.theme.StatusColors.For(e.Status))
	methodStyle := lipgloss.NewStyle().Foreground(m.theme.MethodColors.For(e.Method)).Bold(true)

	path := e.Path
	if path == "" {
		path = e.Summary
	}
	route := e.Src.Display() + " → " + e.Dst.Display()
	stamp := ""
	if t := e.Time(); !t.IsZero() {
		stamp = t.Format(time.TimeOnly)
	}

	prefix := protoStyle.Render(abbr) + " " + statusStyle.Render(status) + " " +
		methodStyle.Render(runewidth.FillRight(e.Method, 7)) + " "
	suffix := "  " + m.theme.ListItemDescription.Render(route+"  "+stamp)
	if e.ContractStatus == traffic.ContractBreached {
		suffix += " " + m.theme.Error.Render("✗ contract")
	}
	if e.Rules.NumberOfRules > 0 {
		mark := m.theme.Success.Render("✓ rules")
		if !e.Rules.Status {
			mark = m.theme.Error.Render("✗ rules")
		}
		suffix += " " + mark
	}

	avail := width - lipgloss.Width(prefix) - lipgloss.Width(suffix)
	if avail < 8 {
		suffix = ""
		avail = width - lipgloss.Width(prefix)
	}
	path = runewidth.Truncate(path, max(avail, 1), "…")
	row := prefix + runewidth.FillRight(path, max(avail, 0)) + suffix
	row = ansi.Truncate(row, width, "…")
	if selected {
		marker := lipgloss.NewStyle().Foreground(m.theme.PaneBorderFocus).Render("▌")
		return marker + ansi.Truncate(row, max(width-1, 1), "…")
	}
	return " " + ansi.Truncate(row, max(width-1, 1), "…")
}

func (m Model) renderDetail(width, height int) string {
	return lipgloss.NewStyle().Width(width).Height(height).MaxHeight(height).Render(
		lipgloss.JoinVertical(lipgloss.Left, m.renderTabs(width), "", m.detail.viewport.View()),
	)
}

func (m Model) renderTabs(width int) string {
	labels := m.detail.tabs.Labels()
	if m.detail.view == nil || len(labels) == 0 {
		return m.paneTitle("Entry", m.focus == focusDetail)
	}
	active := m.detail.tabs.Active()
	parts := make([]string, 0, len(labels))
	for _, label := range labels {
		if label == active {
			parts = append(parts, m.theme.TabActive.Render(label))
			continue
		}
		parts = append(parts, m.theme.TabInactive.Render(label))
	}
	return ansi.Truncate(m.theme.Tabs.Render(strings.Join(parts, "")), width, "…")
}

func (m Model) renderOAS() string {
	divider := m.theme.PaneDivider.Render(strings.TrimRight(strings.Repeat("│\n", m.paneSizes().bodyHeight), "\n"))
	return lipgloss.JoinHorizontal(lipgloss.Top, m.oas.services.View(), divider, m.oas.viewport.View())
}

func (m Model) renderReplay() string {
	return lipgloss.JoinVertical(lipgloss.Left, m.replay.url.View(), "", m.replay.viewport.View())
}

func (m Model) renderHistory() string {
	if m.hist.loading && len(m.hist.list.Items()) == 0 {
		return m.theme.ListItemDimmedTitle.Render("Loading history...")
	}
	if len(m.hist.list.Items()) == 0 {
		return m.theme.ListItemDimmedTitle.Render("No queries yet")
	}
	return m.hist.list.View()
}

func (m Model) renderHelp() string {
	var b strings.Builder
	b.WriteString(m.theme.PaneTitle.Render("Keys"))
	b.WriteString("\n\n")
	lines := m.keys.Help()
	keyWidth := 0
	for _, l := range lines {
		keyWidth = max(keyWidth, runewidth.StringWidth(l.Keys))
	}
	for _, l := range lines {
		fmt.Fprintf(&b, "  %s  %s\n",
			m.theme.StatusBarKey.Render(runewidth.FillRight(l.Keys, keyWidth)),
			m.theme.StatusBarValue.Render(l.Description),
		)
	}
	b.WriteString("\n  ")
	b.WriteString(m.theme.CommandBarHint.Render("esc to close"))
	return b.String()
}
