package ui

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/unkn0wn-root/mizuview/internal/traffic"
)

func (m *Model) setStatusMessage(msg statusMsg) {
	m.statusMessage = msg
	if msg.level == statusError && strings.TrimSpace(msg.text) != "" {
		m.log.Debug("status", "text", msg.text)
	}
}

// pushToast shows a server notification. Toasts close themselves after
// their autoClose delay in milliseconds, or a default when none is given.
func (m *Model) pushToast(t traffic.Toast) tea.Cmd {
	if strings.TrimSpace(t.Text) == "" {
		return nil
	}
	if m.layout.HideToasts {
		m.setStatusMessage(statusMsg{text: t.Text, level: toastLevel(t.Type)})
		return nil
	}
	m.toastSq++
	seq := m.toastSq
	m.toasts = append(m.toasts, toastItem{seq: seq, toast: t})
	if len(m.toasts) > maxToasts {
		m.toasts = append(m.toasts[:0:0], m.toasts[len(m.toasts)-maxToasts:]...)
	}
	ttl := defaultToastTTL
	if t.AutoClose > 0 {
		ttl = time.Duration(t.AutoClose) * time.Millisecond
	}
	return tea.Tick(ttl, func(time.Time) tea.Msg { return toastExpiredMsg{seq: seq} })
}

func (m *Model) expireToast(seq int) {
	for i, item := range m.toasts {
		if item.seq == seq {
			m.toasts = append(m.toasts[:i:i], m.toasts[i+1:]...)
			return
		}
	}
}

func toastLevel(kind string) statusLevel {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "error":
		return statusError
	case "warning", "warn":
		return statusWarn
	case "success":
		return statusSuccess
	default:
		return statusInfo
	}
}
