package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/unkn0wn-root/mizuview/internal/bindings"
	"github.com/unkn0wn-root/mizuview/internal/stream"
)

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, func() tea.Msg { return startFeedMsg{} }}
	if cmd := m.nextStreamMsgCmd(); cmd != nil {
		cmds = append(cmds, cmd)
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = max(typed.Width-2, 0)
		m.height = max(typed.Height-2, 0)
		m.ready = true
		m.applyLayout()
	case startFeedMsg:
		cmds = append(cmds, m.openFeed(m.activeQuery))
	case feedEventMsg:
		cmds = append(cmds, m.handleFeedEvents(typed), m.nextStreamMsgCmd())
	case feedStateMsg:
		m.handleFeedState(typed)
		cmds = append(cmds, m.nextStreamMsgCmd())
	case feedCompleteMsg:
		cmds = append(cmds, m.nextStreamMsgCmd())
	case entryLoadedMsg:
		m.handleEntryLoaded(typed)
	case statsLoadedMsg:
		m.handleStatsLoaded(typed)
	case tappingStatusMsg:
		m.handleTappingStatus(typed)
	case oasServicesMsg:
		cmds = append(cmds, m.handleOASServices(typed))
	case oasSpecMsg:
		m.handleOASSpec(typed)
	case replayDoneMsg:
		m.handleReplayDone(typed)
	case historyLoadedMsg:
		cmds = append(cmds, m.handleHistoryLoaded(typed))
	case toastExpiredMsg:
		m.expireToast(typed.seq)
	case statusMsg:
		m.setStatusMessage(typed)
	case tea.KeyMsg:
		cmds = append(cmds, m.handleKey(typed))
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	key := bindings.NormalizeKeyString(msg.String())

	if prefix := m.pendingChord; prefix != "" {
		m.pendingChord = ""
		if b, ok := m.keys.ResolveChord(prefix, key); ok {
			return m.runAction(b.Action)
		}
		return nil
	}
	if b, ok := m.keys.MatchSingle(key); ok && b.Action == bindings.ActionQuit {
		return m.runAction(b.Action)
	}

	switch {
	case m.view == viewTraffic && m.focus == focusQuery:
		return m.handleQueryKey(msg)
	case m.view == viewReplay && m.replay.editing:
		return m.handleReplayEditKey(msg, key)
	case m.view == viewHistory && m.hist.list.FilterState() == list.Filtering:
		var cmd tea.Cmd
		m.hist.list, cmd = m.hist.list.Update(msg)
		return cmd
	case m.view == viewOAS && !m.oas.focusDoc && m.oas.services.FilterState() == list.Filtering:
		return m.updateOASList(msg)
	}

	if msg.Type == tea.KeyEsc {
		m.handleEscape()
		return nil
	}
	if key == "/" && m.listFocused() {
		return m.handleNavKey(msg)
	}
	if m.keys.HasChordPrefix(key) {
		m.pendingChord = key
		return nil
	}
	if b, ok := m.keys.MatchSingle(key); ok {
		return m.runAction(b.Action)
	}
	return m.handleNavKey(msg)
}

// listFocused reports whether a filterable list has the keyboard, in which
// case "/" starts filtering instead of editing the query.
func (m *Model) listFocused() bool {
	return m.view == viewHistory || (m.view == viewOAS && !m.oas.focusDoc)
}

func (m *Model) handleQueryKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEnter:
		query := strings.TrimSpace(m.query.Value())
		m.query.SetValue(query)
		m.query.Blur()
		m.focus = focusEntries
		return m.openFeed(query)
	case tea.KeyEsc:
		m.query.SetValue(m.activeQuery)
		m.query.Blur()
		m.focus = focusEntries
		return nil
	}
	var cmd tea.Cmd
	m.query, cmd = m.query.Update(msg)
	return cmd
}

func (m *Model) handleReplayEditKey(msg tea.KeyMsg, key string) tea.Cmd {
	if b, ok := m.keys.MatchSingle(key); ok {
		switch b.Action {
		case bindings.ActionSendReplay:
			return m.sendReplayCmd()
		case bindings.ActionCycleMethod:
			m.cycleReplayMethod()
			return nil
		}
	}
	switch msg.Type {
	case tea.KeyEnter:
		m.replay.editing = false
		m.replay.url.Blur()
		return m.sendReplayCmd()
	case tea.KeyEsc:
		m.replay.editing = false
		m.replay.url.Blur()
		return nil
	}
	var cmd tea.Cmd
	m.replay.url, cmd = m.replay.url.Update(msg)
	return cmd
}

func (m *Model) handleEscape() {
	switch {
	case m.showHelp:
		m.showHelp = false
	case m.view != viewTraffic:
		m.view = viewTraffic
	case m.focus == focusDetail:
		m.focus = focusEntries
	}
}

func (m *Model) runAction(action bindings.ActionID) tea.Cmd {
	switch action {
	case bindings.ActionQuit:
		return tea.Quit
	case bindings.ActionToggleHelp:
		m.showHelp = !m.showHelp
		return nil
	case bindings.ActionFocusQuery:
		m.view = viewTraffic
		m.focus = focusQuery
		return m.query.Focus()
	case bindings.ActionShowTraffic:
		m.view = viewTraffic
		return nil
	case bindings.ActionShowStats:
		m.view = viewStats
		return tea.Batch(m.loadStatsCmd(), m.loadTappingCmd())
	case bindings.ActionShowOAS:
		return m.showOAS()
	case bindings.ActionShowReplay:
		return m.showReplay()
	case bindings.ActionShowHistory:
		return m.showHistory()
	case bindings.ActionToggleSplit:
		return m.toggleSplit()
	case bindings.ActionRefresh:
		return m.refreshView()
	}

	switch m.view {
	case viewTraffic:
		return m.runTrafficAction(action)
	case viewStats:
		switch action {
		case bindings.ActionCycleStatsMode:
			m.cycleStatsMode()
		case bindings.ActionNextProtocol:
			m.nextStatsProtocol()
		}
	case viewOAS:
		if action == bindings.ActionCycleFocus || action == bindings.ActionCycleFocusBack {
			m.oas.focusDoc = !m.oas.focusDoc
		}
	case viewReplay:
		switch action {
		case bindings.ActionCycleMethod:
			m.cycleReplayMethod()
		case bindings.ActionSendReplay:
			return m.sendReplayCmd()
		}
	}
	return nil
}

func (m *Model) runTrafficAction(action bindings.ActionID) tea.Cmd {
	switch action {
	case bindings.ActionCycleFocus, bindings.ActionCycleFocusBack:
		if m.focus == focusDetail {
			m.focus = focusEntries
		} else {
			m.focus = focusDetail
		}
	case bindings.ActionNextTab:
		m.nextTab()
	case bindings.ActionPrevTab:
		m.prevTab()
	case bindings.ActionToggleFeed:
		if m.paused || m.feedState == stream.StateClosed {
			return m.openFeed(m.activeQuery)
		}
		m.pauseFeed()
	case bindings.ActionClearEntries:
		m.resetEntries()
		m.setStatusMessage(statusMsg{text: "Entries cleared", level: statusInfo})
	case bindings.ActionCopyEntry:
		m.copyDetail()
	case bindings.ActionToggleSelectors:
		m.detail.selectors = !m.detail.selectors
		m.refreshDetail()
	}
	return nil
}

func (m *Model) refreshView() tea.Cmd {
	switch m.view {
	case viewStats:
		return tea.Batch(m.loadStatsCmd(), m.loadTappingCmd())
	case viewOAS:
		if m.catalogue.Enabled() {
			m.catalogue.Reset()
		}
		m.oas.spec = nil
		m.oas.service = ""
		return m.showOAS()
	case viewHistory:
		return m.showHistory()
	case viewReplay:
		return nil
	default:
		return m.openFeed(m.activeQuery)
	}
}

func (m *Model) handleNavKey(msg tea.KeyMsg) tea.Cmd {
	switch m.view {
	case viewTraffic:
		if m.focus == focusDetail {
			switch msg.String() {
			case "left", "h":
				m.prevTab()
				return nil
			case "right", "l":
				m.nextTab()
				return nil
			}
			var cmd tea.Cmd
			m.detail.viewport, cmd = m.detail.viewport.Update(msg)
			return cmd
		}
		return m.handleEntriesKey(msg)
	case viewStats:
		var cmd tea.Cmd
		m.stats.viewport, cmd = m.stats.viewport.Update(msg)
		return cmd
	case viewOAS:
		if m.oas.focusDoc {
			var cmd tea.Cmd
			m.oas.viewport, cmd = m.oas.viewport.Update(msg)
			return cmd
		}
		if msg.Type == tea.KeyEnter {
			m.oas.focusDoc = true
			return nil
		}
		return m.updateOASList(msg)
	case viewReplay:
		if msg.Type == tea.KeyEnter || msg.String() == "e" {
			m.replay.editing = true
			return m.replay.url.Focus()
		}
		var cmd tea.Cmd
		m.replay.viewport, cmd = m.replay.viewport.Update(msg)
		return cmd
	case viewHistory:
		switch msg.String() {
		case "enter":
			return m.recallHistory()
		case "d", "delete":
			return m.deleteHistoryEntry()
		}
		var cmd tea.Cmd
		m.hist.list, cmd = m.hist.list.Update(msg)
		return cmd
	}
	return nil
}

func (m *Model) updateOASList(msg tea.KeyMsg) tea.Cmd {
	var cmd tea.Cmd
	m.oas.services, cmd = m.oas.services.Update(msg)
	return tea.Batch(cmd, m.loadOASSpecCmd())
}

func (m *Model) handleEntriesKey(msg tea.KeyMsg) tea.Cmd {
	page := m.entriesHeight()
	switch msg.String() {
	case "up", "k":
		return m.moveCursor(-1)
	case "down", "j":
		return m.moveCursor(1)
	case "pgup", "ctrl+u":
		return m.moveCursor(-page)
	case "pgdown", "ctrl+d":
		return m.moveCursor(page)
	case "home":
		return m.moveCursor(-len(m.entries))
	case "end", "G":
		return m.moveCursor(len(m.entries))
	case "enter":
		if m.detail.id != "" {
			m.focus = focusDetail
		}
	}
	return nil
}

// moveCursor focuses another entry. Reaching the newest entry turns follow
// mode back on so the list keeps scrolling with the feed.
func (m *Model) moveCursor(delta int) tea.Cmd {
	if len(m.entries) == 0 {
		return nil
	}
	m.cursor = max(min(m.cursor+delta, len(m.entries)-1), 0)
	m.follow = m.cursor == len(m.entries)-1
	m.ensureCursorVisible()
	return m.selectEntryCmd()
}
