package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/unkn0wn-root/mizuview/internal/entry"
	"github.com/unkn0wn-root/mizuview/internal/errdef"
	"github.com/unkn0wn-root/mizuview/internal/replay"
)

// showReplay copies the focused entry's request into the replay editor.
func (m *Model) showReplay() tea.Cmd {
	if m.detail.view == nil {
		m.setStatusMessage(statusMsg{text: "Select a loaded entry to replay", level: statusWarn})
		return nil
	}
	req, err := replay.FromEntry(m.detail.view.Entry)
	if err != nil {
		m.setStatusMessage(statusMsg{text: "Cannot replay: " + errdef.Message(err), level: statusError})
		return nil
	}
	m.replay.request = &req
	m.replay.captured = m.detail.view.Entry
	m.replay.result = nil
	m.replay.err = nil
	m.replay.sending = false
	m.replay.url.SetValue(req.FullURL())
	m.replay.editing = true
	m.view = viewReplay
	m.refreshReplay()
	return m.replay.url.Focus()
}

func (m *Model) cycleReplayMethod() {
	if m.replay.request == nil {
		return
	}
	m.replay.request.CycleMethod()
	m.refreshReplay()
}

func (m *Model) sendReplayCmd() tea.Cmd {
	if m.replay.request == nil || m.replay.sending || m.api == nil {
		return nil
	}
	req := *m.replay.request
	req.URL = strings.TrimSpace(m.replay.url.Value())
	req.Params = nil
	m.replay.sending = true
	m.replay.err = nil
	m.refreshReplay()
	api := m.api
	return func() tea.Msg {
		ctx, cancel := restContext()
		defer cancel()
		res, err := replay.Run(ctx, api, req)
		return replayDoneMsg{result: res, err: err}
	}
}

func (m *Model) handleReplayDone(msg replayDoneMsg) {
	m.replay.sending = false
	if msg.err != nil {
		m.replay.err = msg.err
		m.replay.result = nil
		m.log.Warn("replay", "request_id", msg.result.RequestID, "err", msg.err)
		m.setStatusMessage(statusMsg{text: "Replay failed: " + errdef.Message(msg.err), level: statusError})
	} else {
		res := msg.result
		m.replay.result = &res
		m.replay.err = nil
		m.setStatusMessage(statusMsg{text: "Replay sent", level: statusSuccess})
	}
	m.refreshReplay()
	m.replay.viewport.GotoTop()
}

func (m *Model) replayContent(width int) string {
	r := m.replay.request
	if r == nil {
		return m.theme.ListItemDimmedTitle.Render("Nothing to replay")
	}
	var b strings.Builder
	title := m.theme.PaneTitle
	method := m.theme.StatusBarKey.Foreground(m.theme.MethodColors.For(r.Method)).Render(r.Method)
	fmt.Fprintf(&b, "%s %s\n\n", title.Render("Method"), method)

	if len(r.Headers) > 0 {
		b.WriteString(title.Render("Headers"))
		b.WriteString("\n")
		for _, h := range r.Headers {
			fmt.Fprintf(&b, "  %s: %s\n", m.theme.ListItemDescription.Render(h.Key), h.Value)
		}
		b.WriteString("\n")
	}
	if r.Body != "" {
		b.WriteString(title.Render("Body"))
		b.WriteString("\n")
		b.WriteString(entry.FormatBody(r.Body, r.Mime, m.renderOptions(width)))
		b.WriteString("\n\n")
	}

	switch {
	case m.replay.sending:
		b.WriteString(m.theme.ListItemDimmedTitle.Render("Sending..."))
	case m.replay.err != nil:
		b.WriteString(m.theme.Error.Render(errdef.Message(m.replay.err)))
	case m.replay.result != nil:
		res := m.replay.result
		fmt.Fprintf(&b, "%s %s\n\n", title.Render("Request id"), res.RequestID)
		if res.Entry.HasResponse() {
			b.WriteString(title.Render("Response"))
			b.WriteString("\n")
			b.WriteString(entry.Render(entry.Sections(res.Entry.Response), m.renderOptions(width)))
			b.WriteString("\n")
			if diff := replay.Diff(m.replay.captured, res.Entry); diff != "" {
				b.WriteString(title.Render("Diff against captured response"))
				b.WriteString("\n")
				b.WriteString(entry.Highlight(diff, "text/x-diff", ""))
			} else {
				b.WriteString(m.theme.Success.Render("Response body matches the captured one"))
			}
		} else {
			b.WriteString(m.theme.ListItemDimmedTitle.Render("The server returned no response"))
		}
	default:
		hint := "ctrl+s send · ctrl+t method · esc back"
		b.WriteString(m.theme.CommandBarHint.Render(hint))
	}
	return b.String()
}

func (m *Model) refreshReplay() {
	m.replay.viewport.SetContent(m.replayContent(m.replay.viewport.Width))
}
