package ui

import (
	"context"
	"errors"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"nhooyr.io/websocket"

	"github.com/unkn0wn-root/mizuview/internal/errdef"
	"github.com/unkn0wn-root/mizuview/internal/feed"
	"github.com/unkn0wn-root/mizuview/internal/history"
	"github.com/unkn0wn-root/mizuview/internal/stream"
	"github.com/unkn0wn-root/mizuview/internal/traffic"
)

const defaultStreamBatchWindow = 25 * time.Millisecond

// openFeed replaces the current socket with a fresh one for query. Entries
// are reset because the server replays everything matching the new query.
func (m *Model) openFeed(query string) tea.Cmd {
	if m.feed == nil {
		return nil
	}
	m.feed.Close()
	m.resetEntries()
	m.activeQuery = query
	m.paused = false
	m.feedErr = nil

	if err := m.feed.Open(context.Background(), query); err != nil {
		m.feedState = stream.StateClosed
		m.feedErr = err
		m.setStatusMessage(statusMsg{text: errdef.Message(err), level: statusError})
		return nil
	}
	session := m.feed.Session()
	listener, ok := m.feed.Subscribe()
	if session == nil || !ok {
		return nil
	}
	m.feedSessionID = session.ID()
	m.feedState = stream.StateConnecting
	go runFeedListener(m.streamMsgChan, m.streamBatchWindow, session, listener)
	return m.recordQuery(query)
}

func (m *Model) pauseFeed() {
	if m.feed == nil {
		return
	}
	m.paused = true
	m.feed.Close()
	// the handshake may still be running; a paused feed reads as closed
	m.feedState = stream.StateClosed
	m.setStatusMessage(statusMsg{text: "Feed paused", level: statusInfo})
}

// runFeedListener forwards one session's events to the program in small
// batches until the subscription ends.
func runFeedListener(ch chan<- tea.Msg, batchWindow time.Duration, session *stream.Session, listener stream.Listener) {
	defer listener.Cancel()
	id := session.ID()
	emit := func(msg tea.Msg) { ch <- msg }

	if snapshot := listener.Snapshot.Events; len(snapshot) > 0 {
		emit(feedEventMsg{sessionID: id, events: append([]*stream.Event(nil), snapshot...)})
	}

	if batchWindow <= 0 {
		batchWindow = defaultStreamBatchWindow
	}

	var (
		batch []*stream.Event
		timer *time.Timer
	)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		emit(feedEventMsg{sessionID: id, events: append([]*stream.Event(nil), batch...)})
		batch = batch[:0]
	}
	finish := func() {
		flush()
		state, err := session.State()
		emit(feedStateMsg{sessionID: id, state: state, err: err})
		emit(feedCompleteMsg{sessionID: id})
	}

	for {
		if timer == nil {
			evt, ok := <-listener.C
			if !ok {
				finish()
				return
			}
			batch = append(batch, evt)
			timer = time.NewTimer(batchWindow)
			continue
		}

		select {
		case evt, ok := <-listener.C:
			if !ok {
				timer.Stop()
				timer = nil
				finish()
				return
			}
			batch = append(batch, evt)
		case <-timer.C:
			timer = nil
			flush()
		}
	}
}

func (m *Model) nextStreamMsgCmd() tea.Cmd {
	if m.streamMsgChan == nil {
		return nil
	}
	ch := m.streamMsgChan
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

func (m *Model) handleFeedEvents(msg feedEventMsg) tea.Cmd {
	if msg.sessionID != m.feedSessionID {
		return nil
	}
	var cmds []tea.Cmd
	for _, evt := range msg.events {
		if evt == nil {
			continue
		}
		switch evt.Type {
		case stream.EventOpen:
			m.feedState = stream.StateOpen
			m.setStatusMessage(statusMsg{text: "Connected", level: statusSuccess})
			if m.activeQuery == "" {
				// the server waits for a first query frame before streaming
				cmds = append(cmds, m.sendQueryCmd(""))
			}
		case stream.EventMessage:
			if evt.Direction != stream.DirReceive {
				continue
			}
			if cmd := m.applyFrame(evt.Payload); cmd != nil {
				cmds = append(cmds, cmd)
			}
		case stream.EventError:
			m.feedErr = evt.Err
			m.log.Warn("feed error", "session", msg.sessionID, "err", evt.Err)
			m.setStatusMessage(statusMsg{text: "Feed error: " + errdef.Message(evt.Err), level: statusError})
		case stream.EventClose:
			m.feedState = stream.StateClosed
			if m.paused {
				continue
			}
			if evt.Code != websocket.StatusNormalClosure && evt.Reason != "" {
				m.setStatusMessage(statusMsg{text: "Feed closed: " + evt.Reason, level: statusWarn})
			} else if m.feedErr == nil {
				m.setStatusMessage(statusMsg{text: "Feed closed", level: statusInfo})
			}
		}
	}
	return tea.Batch(cmds...)
}

func (m *Model) handleFeedState(msg feedStateMsg) {
	if msg.sessionID != m.feedSessionID {
		return
	}
	m.feedState = msg.state
	if m.paused && msg.state == stream.StateClosing {
		m.feedState = stream.StateClosed
	}
	if msg.err != nil && m.feedErr == nil {
		m.feedErr = msg.err
	}
}

func (m *Model) sendQueryCmd(query string) tea.Cmd {
	f := m.feed
	if f == nil {
		return nil
	}
	return func() tea.Msg {
		f.Send(context.Background(), query)
		return nil
	}
}

// applyFrame decodes one inbound payload and folds it into the model.
func (m *Model) applyFrame(payload []byte) tea.Cmd {
	frame, err := feed.DecodeFrame(payload)
	if err != nil {
		m.log.Warn("bad feed frame", "err", err)
		m.setStatusMessage(statusMsg{text: errdef.Message(err), level: statusWarn})
		return nil
	}
	switch frame.Type {
	case feed.MessageTypeEntry:
		return m.appendEntry(*frame.Entry)
	case feed.MessageTypeToast:
		return m.pushToast(*frame.Toast)
	case feed.MessageTypeQueryMetadata:
		m.metadata = *frame.Metadata
	case feed.MessageTypeStartTime:
		m.startTime = frame.StartTime
	case feed.MessageTypeFullEntry:
		m.log.Debug("ignoring full entry frame")
	default:
		m.log.Debug("unknown feed frame", "type", string(frame.Type))
	}
	return nil
}

// appendEntry keeps at most maxEntries summaries, dropping the oldest. The
// focused entry only changes when nothing is focused yet or when it was
// evicted.
func (m *Model) appendEntry(e traffic.EntrySummary) tea.Cmd {
	m.entries = append(m.entries, e)
	evictedFocus := false
	if m.maxEntries > 0 && len(m.entries) > m.maxEntries {
		drop := len(m.entries) - m.maxEntries
		m.entries = append(m.entries[:0:0], m.entries[drop:]...)
		m.evicted += drop
		m.cursor -= drop
		m.offset = max(m.offset-drop, 0)
		if m.cursor < 0 {
			m.cursor = 0
			evictedFocus = true
		}
	}
	if m.detail.id == "" {
		m.cursor = len(m.entries) - 1
	}
	m.ensureCursorVisible()
	if m.detail.id == "" || evictedFocus {
		return m.selectEntryCmd()
	}
	return nil
}

func (m *Model) resetEntries() {
	m.entries = nil
	m.evicted = 0
	m.cursor = 0
	m.offset = 0
	m.follow = true
	m.metadata = traffic.QueryMetadata{}
	m.startTime = time.Time{}
	m.clearDetail()
}

func (m *Model) recordQuery(query string) tea.Cmd {
	store := m.history
	if store == nil || strings.TrimSpace(query) == "" {
		return nil
	}
	server := m.cfg.Server
	log := m.log
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), defaultRESTTimeout)
		defer cancel()
		err := store.Append(ctx, history.Entry{Query: query, ExecutedAt: time.Now(), Server: server})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("record query", "err", err)
		}
		return nil
	}
}
