package ui

import (
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/unkn0wn-root/mizuview/internal/errdef"
	"github.com/unkn0wn-root/mizuview/internal/history"
)

func (m *Model) showHistory() tea.Cmd {
	if m.history == nil {
		m.setStatusMessage(statusMsg{text: "Query history is unavailable", level: statusWarn})
		return nil
	}
	m.view = viewHistory
	m.hist.loading = true
	m.hist.err = nil
	store := m.history
	return func() tea.Msg {
		ctx, cancel := restContext()
		defer cancel()
		entries, err := store.Entries(ctx)
		return historyLoadedMsg{entries: entries, err: err}
	}
}

func (m *Model) handleHistoryLoaded(msg historyLoadedMsg) tea.Cmd {
	m.hist.loading = false
	if msg.err != nil {
		m.hist.err = msg.err
		m.log.Warn("load history", "err", msg.err)
		m.setStatusMessage(statusMsg{text: "Failed to load history: " + errdef.Message(msg.err), level: statusError})
		return nil
	}
	m.hist.err = nil
	return m.hist.list.SetItems(historyItems(msg.entries))
}

func historyItems(entries []history.Entry) []list.Item {
	items := make([]list.Item, 0, len(entries))
	for _, e := range entries {
		desc := humanize.Time(e.ExecutedAt)
		if e.Server != "" {
			desc += " · " + e.Server
		}
		items = append(items, listItem{id: e.ID, title: e.Query, desc: desc})
	}
	return items
}

// recallHistory puts the selected query in the query bar and runs it.
func (m *Model) recallHistory() tea.Cmd {
	item, ok := m.hist.list.SelectedItem().(listItem)
	if !ok {
		return nil
	}
	m.query.SetValue(item.title)
	m.view = viewTraffic
	m.setStatusMessage(statusMsg{text: "Query recalled", level: statusInfo})
	return m.openFeed(item.title)
}

func (m *Model) deleteHistoryEntry() tea.Cmd {
	item, ok := m.hist.list.SelectedItem().(listItem)
	if !ok || m.history == nil {
		return nil
	}
	m.hist.list.RemoveItem(m.hist.list.Index())
	store := m.history
	log := m.log
	return func() tea.Msg {
		ctx, cancel := restContext()
		defer cancel()
		if _, err := store.Delete(ctx, item.id); err != nil {
			log.Warn("delete history entry", "id", item.id, "err", err)
			return statusMsg{text: "Failed to delete history entry", level: statusError}
		}
		return statusMsg{text: "History entry deleted", level: statusSuccess}
	}
}
