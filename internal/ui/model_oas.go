package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/unkn0wn-root/mizuview/internal/errdef"
	"github.com/unkn0wn-root/mizuview/internal/openapi"
	"github.com/unkn0wn-root/mizuview/internal/stream"
)

// showOAS opens the service catalogue. The feed is paused while it is open,
// matching the web UI which closes its socket before showing the specs.
func (m *Model) showOAS() tea.Cmd {
	if !m.catalogue.Enabled() {
		m.setStatusMessage(statusMsg{text: "OpenAPI catalogue is disabled (features.oas_enabled)", level: statusWarn})
		return nil
	}
	if m.feedState == stream.StateOpen || m.feedState == stream.StateConnecting {
		m.pauseFeed()
	}
	m.view = viewOAS
	m.oas.focusDoc = false
	m.oas.loading = true
	m.oas.err = nil
	cat := m.catalogue
	return func() tea.Msg {
		ctx, cancel := restContext()
		defer cancel()
		services, err := cat.Services(ctx)
		return oasServicesMsg{services: services, err: err}
	}
}

func (m *Model) handleOASServices(msg oasServicesMsg) tea.Cmd {
	m.oas.loading = false
	if msg.err != nil {
		m.oas.err = msg.err
		m.log.Warn("oas services", "err", msg.err)
		m.setStatusMessage(statusMsg{text: "Failed to load OpenAPI services", level: statusError})
		m.refreshOAS()
		return nil
	}
	items := make([]list.Item, 0, len(msg.services))
	for _, svc := range msg.services {
		items = append(items, listItem{id: svc, title: svc, desc: "inferred OpenAPI spec"})
	}
	cmd := m.oas.services.SetItems(items)
	m.refreshOAS()
	if len(items) == 0 {
		return cmd
	}
	return tea.Batch(cmd, m.loadOASSpecCmd())
}

func (m *Model) loadOASSpecCmd() tea.Cmd {
	item, ok := m.oas.services.SelectedItem().(listItem)
	if !ok || (item.id == m.oas.service && m.oas.spec != nil) {
		return nil
	}
	service := item.id
	m.oas.service = service
	m.oas.spec = nil
	m.oas.loading = true
	m.refreshOAS()
	cat := m.catalogue
	return func() tea.Msg {
		ctx, cancel := restContext()
		defer cancel()
		spec, err := cat.Spec(ctx, service)
		return oasSpecMsg{service: service, spec: spec, err: err}
	}
}

func (m *Model) handleOASSpec(msg oasSpecMsg) {
	if msg.service != m.oas.service {
		return
	}
	m.oas.loading = false
	if msg.err != nil {
		m.oas.err = msg.err
		m.log.Warn("oas spec", "service", msg.service, "err", msg.err)
		m.setStatusMessage(statusMsg{text: "Failed to load spec for " + msg.service, level: statusError})
	} else {
		m.oas.err = nil
		m.oas.spec = msg.spec
	}
	m.refreshOAS()
	m.oas.viewport.GotoTop()
}

func (m *Model) oasContent(width int) string {
	switch {
	case m.oas.err != nil:
		return m.theme.Error.Render(errdef.Message(m.oas.err))
	case m.oas.loading:
		return m.theme.ListItemDimmedTitle.Render("Loading...")
	case m.oas.spec == nil:
		if len(m.oas.services.Items()) == 0 {
			return m.theme.ListItemDimmedTitle.Render("No services have been inferred yet")
		}
		return m.theme.ListItemDimmedTitle.Render("Select a service")
	}
	out := openapi.Render(m.oas.spec, "dark", width)
	if out == "" {
		return m.theme.ListItemDimmedTitle.Render(fmt.Sprintf("%s has no operations", m.oas.spec.Service))
	}
	return out
}

func (m *Model) refreshOAS() {
	m.oas.viewport.SetContent(m.oasContent(m.oas.viewport.Width))
}
