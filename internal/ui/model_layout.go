package ui

import (
	"math"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/unkn0wn-root/mizuview/internal/config"
)

const (
	// header, query bar, notification line and status bar
	chromeHeight    = 4
	tabBarHeight    = 2
	minPaneHeight   = 3
	minPaneWidth    = 20
	oasListRatio    = 0.3
	replayURLHeight = 2
)

type paneSizes struct {
	listWidth    int
	listHeight   int
	detailWidth  int
	detailHeight int
	bodyHeight   int
}

func (m *Model) paneSizes() paneSizes {
	body := max(m.height-chromeHeight, minPaneHeight)
	var p paneSizes
	p.bodyHeight = body
	if m.layout.MainSplit == config.LayoutMainSplitHorizontal {
		p.listWidth = m.width
		p.detailWidth = m.width
		p.listHeight = max(int(math.Round(float64(body)*m.layout.ListWidth)), minPaneHeight)
		p.detailHeight = max(body-p.listHeight-1, minPaneHeight)
		return p
	}
	p.listWidth = max(int(math.Round(float64(m.width)*m.layout.ListWidth)), minPaneWidth)
	p.detailWidth = max(m.width-p.listWidth-1, minPaneWidth)
	p.listHeight = body
	p.detailHeight = body
	return p
}

// applyLayout resizes every pane after the window or split changed and
// re-renders content that depends on width.
func (m *Model) applyLayout() {
	if !m.ready {
		return
	}
	p := m.paneSizes()

	m.query.Width = max(m.width-len(m.query.Prompt)-2, 10)

	m.detail.viewport.Width = p.detailWidth
	m.detail.viewport.Height = max(p.detailHeight-tabBarHeight, 1)

	m.stats.viewport.Width = m.width
	m.stats.viewport.Height = p.bodyHeight

	listWidth := max(int(float64(m.width)*oasListRatio), minPaneWidth)
	m.oas.services.SetSize(listWidth, p.bodyHeight)
	m.oas.viewport.Width = max(m.width-listWidth-1, minPaneWidth)
	m.oas.viewport.Height = p.bodyHeight

	m.replay.url.Width = max(m.width-len(m.replay.url.Prompt)-2, 10)
	m.replay.viewport.Width = m.width
	m.replay.viewport.Height = max(p.bodyHeight-replayURLHeight, 1)

	m.hist.list.SetSize(m.width, p.bodyHeight)

	m.ensureCursorVisible()
	m.refreshDetail()
	m.refreshStats()
	m.refreshOAS()
	m.refreshReplay()
}

func (m *Model) toggleSplit() tea.Cmd {
	if m.layout.MainSplit == config.LayoutMainSplitHorizontal {
		m.layout.MainSplit = config.LayoutMainSplitVertical
	} else {
		m.layout.MainSplit = config.LayoutMainSplitHorizontal
	}
	m.applyLayout()

	save := m.cfg.SaveLayout
	if save == nil {
		return nil
	}
	layout := m.layout
	log := m.log
	return func() tea.Msg {
		if err := save(layout); err != nil {
			log.Warn("save layout", "err", err)
			return statusMsg{text: "Failed to save layout", level: statusWarn}
		}
		return nil
	}
}

func (m *Model) entriesHeight() int {
	// one line is taken by the pane title
	return max(m.paneSizes().listHeight-1, 1)
}

func (m *Model) ensureCursorVisible() {
	h := m.entriesHeight()
	n := len(m.entries)
	if m.follow {
		m.offset = max(n-h, 0)
		return
	}
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+h {
		m.offset = m.cursor - h + 1
	}
	m.offset = max(min(m.offset, n-h), 0)
}
