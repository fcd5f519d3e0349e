package ui

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/unkn0wn-root/mizuview/internal/config"
	"github.com/unkn0wn-root/mizuview/internal/stream"
	"github.com/unkn0wn-root/mizuview/internal/traffic"
)

type fakeFeed struct {
	mu      sync.Mutex
	session *stream.Session
	opened  []string
	sent    []string
	closed  int
	openErr error
}

func (f *fakeFeed) Open(_ context.Context, query string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return f.openErr
	}
	f.session = stream.NewSession(context.Background(), stream.Config{})
	f.opened = append(f.opened, query)
	return nil
}

func (f *fakeFeed) Send(_ context.Context, query string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, query)
	return true
}

func (f *fakeFeed) Subscribe() (stream.Listener, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session == nil {
		return stream.Listener{}, false
	}
	return f.session.Subscribe(), true
}

func (f *fakeFeed) Session() *stream.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session
}

func (f *fakeFeed) State() stream.State {
	s := f.Session()
	if s == nil {
		return stream.StateClosed
	}
	state, _ := s.State()
	return state
}

func (f *fakeFeed) Close() {
	f.mu.Lock()
	f.closed++
	s := f.session
	f.mu.Unlock()
	if s != nil {
		s.Close(nil)
	}
}

func (f *fakeFeed) Teardown() { f.Close() }

type fakeAPI struct {
	mu       sync.Mutex
	entries  map[string]traffic.FullEntry
	pie      []traffic.ProtocolStats
	timeline []traffic.TimelineStats
	replays  []traffic.ReplayDetails
	replay   traffic.ReplayResponse
	err      error
}

func (a *fakeAPI) GetEntry(_ context.Context, id string) (traffic.FullEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return traffic.FullEntry{}, a.err
	}
	return a.entries[id], nil
}

func (a *fakeAPI) GetPieStats(context.Context) ([]traffic.ProtocolStats, error) {
	return a.pie, a.err
}

func (a *fakeAPI) GetTimelineStats(context.Context) ([]traffic.TimelineStats, error) {
	return a.timeline, a.err
}

func (a *fakeAPI) GetTappingStatus(context.Context) (traffic.TappingStatus, error) {
	return traffic.TappingStatus{}, a.err
}

func (a *fakeAPI) Replay(_ context.Context, details traffic.ReplayDetails, _ string) (traffic.ReplayResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.replays = append(a.replays, details)
	return a.replay, a.err
}

func newTestModel(t *testing.T, f *fakeFeed, api *fakeAPI) Model {
	t.Helper()
	cfg := Config{
		Settings:    config.Defaults(),
		BatchWindow: time.Millisecond,
		CopyText:    func(string) error { return nil },
	}
	if f != nil {
		cfg.Feed = f
	}
	if api != nil {
		cfg.API = api
	}
	m := New(cfg)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return updated.(Model)
}

func entryFrame(t *testing.T, e traffic.EntrySummary) []byte {
	t.Helper()
	data, err := json.Marshal(map[string]any{"messageType": "entry", "data": e})
	if err != nil {
		t.Fatalf("marshal entry frame: %v", err)
	}
	return data
}

// drainFeed applies bridged feed messages until cond holds.
func drainFeed(t *testing.T, m *Model, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case msg := <-m.streamMsgChan:
			switch typed := msg.(type) {
			case feedEventMsg:
				m.handleFeedEvents(typed)
			case feedStateMsg:
				m.handleFeedState(typed)
			}
		case <-deadline:
			t.Fatalf("timed out waiting for feed messages")
		}
	}
}

// runCmd executes a command synchronously and feeds its message back.
func runCmd(m Model, cmd tea.Cmd) Model {
	for cmd != nil {
		msg := cmd()
		if msg == nil {
			return m
		}
		if batch, ok := msg.(tea.BatchMsg); ok {
			for _, c := range batch {
				m = runCmd(m, c)
			}
			return m
		}
		var next tea.Model
		next, cmd = m.Update(msg)
		m = next.(Model)
		if _, ok := msg.(feedEventMsg); ok {
			return m
		}
	}
	return m
}

const testRepresentation = `{
  "request": [
    {"type": "table", "title": "Details", "data": "[{\"name\":\"Method\",\"value\":\"GET\"},{\"name\":\"URL\",\"value\":\"http://catalogue/items\"}]"},
    {"type": "body", "title": "Body", "mime_type": "application/json", "data": "{\"a\":1}"}
  ],
  "response": [
    {"type": "body", "title": "Body", "mime_type": "application/json", "data": "{\"ok\":true}"}
  ]
}`
