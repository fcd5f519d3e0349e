package ui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/unkn0wn-root/mizuview/internal/entry"
	"github.com/unkn0wn-root/mizuview/internal/errdef"
	"github.com/unkn0wn-root/mizuview/internal/tabs"
)

func (m *Model) selectedEntryID() string {
	if m.cursor < 0 || m.cursor >= len(m.entries) {
		return ""
	}
	return m.entries[m.cursor].ID
}

// selectEntryCmd focuses the entry under the cursor and fetches its full
// representation. Results for an entry that is no longer focused are dropped.
func (m *Model) selectEntryCmd() tea.Cmd {
	id := m.selectedEntryID()
	if id == "" || id == m.detail.id {
		return nil
	}
	m.detail.id = id
	m.detail.loading = true
	m.detail.err = nil
	m.refreshDetail()
	if m.api == nil {
		return nil
	}
	api := m.api
	return func() tea.Msg {
		ctx, cancel := restContext()
		defer cancel()
		full, err := api.GetEntry(ctx, id)
		return entryLoadedMsg{id: id, full: full, err: err}
	}
}

func (m *Model) handleEntryLoaded(msg entryLoadedMsg) {
	if msg.id != m.detail.id {
		return
	}
	m.detail.loading = false
	if msg.err != nil {
		m.detail.err = msg.err
		m.detail.view = nil
		m.log.Warn("get entry", "id", msg.id, "err", msg.err)
		m.setStatusMessage(statusMsg{text: "Failed to load entry", level: statusError})
		m.refreshDetail()
		return
	}
	view, err := entry.NewView(msg.full)
	if err != nil {
		m.detail.err = err
		m.detail.view = nil
		m.refreshDetail()
		return
	}
	m.detail.err = nil
	m.detail.view = &view
	m.detail.tabs.Rebuild(view.Flags())
	m.refreshDetail()
	m.detail.viewport.GotoTop()
}

func (m *Model) clearDetail() {
	m.detail.id = ""
	m.detail.loading = false
	m.detail.view = nil
	m.detail.err = nil
	m.detail.tabs.Rebuild(tabs.Flags{})
	m.refreshDetail()
}

func (m *Model) nextTab() {
	m.detail.tabs.Next()
	m.refreshDetail()
	m.detail.viewport.GotoTop()
}

func (m *Model) prevTab() {
	m.detail.tabs.Prev()
	m.refreshDetail()
	m.detail.viewport.GotoTop()
}

func (m *Model) renderOptions(width int) entry.RenderOptions {
	styles := entry.DefaultStyles()
	styles.Title = m.theme.PaneTitle
	styles.Error = m.theme.Error
	styles.Passed = m.theme.Success
	styles.Failed = m.theme.Error
	return entry.RenderOptions{
		Width:     width,
		Highlight: true,
		Markdown:  true,
		Selectors: m.detail.selectors,
		Styles:    styles,
	}
}

// detailContent is the text of the active tab, before scrolling.
func (m *Model) detailContent(width int) string {
	switch {
	case m.detail.id == "":
		if len(m.entries) == 0 {
			return m.theme.ListItemDimmedTitle.Render("Waiting for traffic...")
		}
		return m.theme.ListItemDimmedTitle.Render("Select an entry")
	case m.detail.loading:
		return m.theme.ListItemDimmedTitle.Render("Loading entry...")
	case m.detail.err != nil:
		return m.theme.Error.Render(ansi.Truncate(errdef.Message(m.detail.err), max(width, 1), "…"))
	case m.detail.view == nil:
		return ""
	}
	blocks := m.detail.view.Blocks(m.detail.tabs.Active())
	out := entry.Render(blocks, m.renderOptions(width))
	if strings.TrimSpace(out) == "" {
		return m.theme.ListItemDimmedTitle.Render("Nothing to show")
	}
	return out
}

func (m *Model) refreshDetail() {
	m.detail.viewport.SetContent(m.detailContent(m.detail.viewport.Width))
}

// copyDetail puts the plain text of the visible tab on the clipboard.
func (m *Model) copyDetail() {
	if m.detail.view == nil {
		m.setStatusMessage(statusMsg{text: "Nothing to copy", level: statusWarn})
		return
	}
	opts := m.renderOptions(0)
	opts.Highlight = false
	opts.Markdown = false
	text := ansi.Strip(entry.Render(m.detail.view.Blocks(m.detail.tabs.Active()), opts))
	if err := m.copyText(text); err != nil {
		m.log.Warn("clipboard", "err", err)
		m.setStatusMessage(statusMsg{text: "Clipboard unavailable", level: statusWarn})
		return
	}
	m.setStatusMessage(statusMsg{text: "Copied " + m.detail.tabs.Active() + " to clipboard", level: statusSuccess})
}
