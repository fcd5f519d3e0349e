package ui

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/unkn0wn-root/mizuview/internal/config"
	"github.com/unkn0wn-root/mizuview/internal/replay"
	"github.com/unkn0wn-root/mizuview/internal/stream"
	"github.com/unkn0wn-root/mizuview/internal/tabs"
	"github.com/unkn0wn-root/mizuview/internal/traffic"
	"github.com/unkn0wn-root/mizuview/internal/trafficstats"
)

// execCmd runs cmd and every command nested in a batch, returning the
// messages they produced.
func execCmd(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, execCmd(c)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestFeedBridgeAppliesEntries(t *testing.T) {
	f := &fakeFeed{}
	m := newTestModel(t, f, nil)
	t.Cleanup(f.Close)

	m.openFeed("http")
	if len(f.opened) != 1 || f.opened[0] != "http" {
		t.Fatalf("expected feed opened with query, got %v", f.opened)
	}
	if m.feedState != stream.StateConnecting {
		t.Fatalf("expected connecting state, got %v", m.feedState)
	}

	session := f.Session()
	session.MarkOpen()
	session.Publish(&stream.Event{Type: stream.EventOpen})
	session.Publish(&stream.Event{
		Type:      stream.EventMessage,
		Direction: stream.DirReceive,
		Payload:   entryFrame(t, traffic.EntrySummary{ID: "1", Method: "GET", Path: "/items", Status: 200}),
	})

	drainFeed(t, &m, func() bool { return len(m.entries) == 1 })
	if m.feedState != stream.StateOpen {
		t.Fatalf("expected open state, got %v", m.feedState)
	}
	if m.detail.id != "1" {
		t.Fatalf("expected first entry focused, got %q", m.detail.id)
	}
	if m.entries[0].Path != "/items" {
		t.Fatalf("unexpected entry %+v", m.entries[0])
	}
}

func TestFeedIgnoresEventsFromOldSession(t *testing.T) {
	m := newTestModel(t, &fakeFeed{}, nil)
	m.feedSessionID = "ws-current"
	m.handleFeedEvents(feedEventMsg{
		sessionID: "ws-old",
		events: []*stream.Event{{
			Type:      stream.EventMessage,
			Direction: stream.DirReceive,
			Payload:   entryFrame(t, traffic.EntrySummary{ID: "9"}),
		}},
	})
	if len(m.entries) != 0 {
		t.Fatalf("stale session events must be dropped, got %d entries", len(m.entries))
	}
}

func TestOpenWithEmptyQuerySendsFirstFrame(t *testing.T) {
	f := &fakeFeed{}
	m := newTestModel(t, f, nil)
	t.Cleanup(f.Close)

	m.openFeed("")
	cmd := m.handleFeedEvents(feedEventMsg{
		sessionID: m.feedSessionID,
		events:    []*stream.Event{{Type: stream.EventOpen}},
	})
	execCmd(cmd)

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) != 1 || f.sent[0] != "" {
		t.Fatalf("expected one empty query frame, got %v", f.sent)
	}
}

func TestOpenFailureReportsStatus(t *testing.T) {
	f := &fakeFeed{openErr: errors.New("dial refused")}
	m := newTestModel(t, f, nil)
	m.openFeed("http")
	if m.feedState != stream.StateClosed || m.feedErr == nil {
		t.Fatalf("expected closed state with error, got %v %v", m.feedState, m.feedErr)
	}
	if m.statusMessage.level != statusError {
		t.Fatalf("expected error status, got %+v", m.statusMessage)
	}
}

func TestPausedFeedReportsClosed(t *testing.T) {
	f := &fakeFeed{}
	m := newTestModel(t, f, nil)
	t.Cleanup(f.Close)

	m.openFeed("http")
	m.pauseFeed()
	if m.feedState != stream.StateClosed {
		t.Fatalf("expected CLOSED after pause, got %s", m.feedState)
	}
	// the listener ends while the close handshake is still running
	m.handleFeedState(feedStateMsg{sessionID: m.feedSessionID, state: stream.StateClosing})
	if m.feedState != stream.StateClosed {
		t.Fatalf("paused feed must stay CLOSED, got %s", m.feedState)
	}
	if view := m.View(); strings.Contains(view, "CLOSING") || !strings.Contains(view, "PAUSED") {
		t.Fatalf("header should show the paused feed:\n%s", view)
	}
}

func TestAppendEntryEvictsOldest(t *testing.T) {
	m := newTestModel(t, nil, nil)
	m.maxEntries = 3
	for _, id := range []string{"1", "2", "3", "4", "5"} {
		m.appendEntry(traffic.EntrySummary{ID: id})
	}
	var ids []string
	for _, e := range m.entries {
		ids = append(ids, e.ID)
	}
	if strings.Join(ids, ",") != "3,4,5" {
		t.Fatalf("unexpected entries %v", ids)
	}
	if m.evicted != 2 {
		t.Fatalf("expected 2 evicted, got %d", m.evicted)
	}
	if m.detail.id != "3" {
		t.Fatalf("evicted focus should move to the oldest kept entry, got %q", m.detail.id)
	}
}

func TestAppendEntryKeepsFocus(t *testing.T) {
	m := newTestModel(t, nil, nil)
	m.appendEntry(traffic.EntrySummary{ID: "a"})
	m.appendEntry(traffic.EntrySummary{ID: "b"})
	if m.detail.id != "a" {
		t.Fatalf("new entries must not steal focus, got %q", m.detail.id)
	}
	if !m.follow {
		t.Fatalf("expected follow mode on")
	}
}

func TestApplyFrameMetadataAndToast(t *testing.T) {
	m := newTestModel(t, nil, nil)
	m.applyFrame([]byte(`{"messageType":"queryMetadata","data":{"current":4,"total":10,"leftOff":2}}`))
	if m.metadata.Total != 10 || m.metadata.Current != 4 {
		t.Fatalf("unexpected metadata %+v", m.metadata)
	}
	cmd := m.applyFrame([]byte(`{"messageType":"toast","data":{"type":"error","text":"tapper lost","autoClose":10}}`))
	if cmd == nil || len(m.toasts) != 1 {
		t.Fatalf("expected toast with expiry, got %d toasts", len(m.toasts))
	}
	m.applyFrame([]byte(`{"messageType":`))
	if m.statusMessage.level != statusWarn {
		t.Fatalf("malformed frame should warn, got %+v", m.statusMessage)
	}
}

func TestEntryLoadedBuildsTabs(t *testing.T) {
	m := newTestModel(t, nil, nil)
	m.detail.id = "1"
	m.detail.loading = true
	m.handleEntryLoaded(entryLoadedMsg{id: "1", full: traffic.FullEntry{
		Representation: testRepresentation,
		IsRulesEnabled: true,
		ContractStatus: traffic.ContractBreached,
	}})
	if m.detail.loading || m.detail.view == nil {
		t.Fatalf("expected loaded view")
	}
	want := []string{tabs.Request, tabs.Response, tabs.Rules, tabs.Contract}
	if got := m.detail.tabs.Labels(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected tabs %v", got)
	}

	m.handleEntryLoaded(entryLoadedMsg{id: "2", err: errors.New("late")})
	if m.detail.err != nil || m.detail.view == nil {
		t.Fatalf("result for an unfocused entry must be ignored")
	}
}

func TestEntryLoadedKeepsActiveTab(t *testing.T) {
	m := newTestModel(t, nil, nil)
	m.detail.id = "1"
	m.handleEntryLoaded(entryLoadedMsg{id: "1", full: traffic.FullEntry{Representation: testRepresentation}})
	m.nextTab()
	if m.detail.tabs.Active() != tabs.Response {
		t.Fatalf("expected response tab, got %s", m.detail.tabs.Active())
	}
	m.detail.id = "2"
	m.handleEntryLoaded(entryLoadedMsg{id: "2", full: traffic.FullEntry{Representation: testRepresentation, IsRulesEnabled: true}})
	if m.detail.tabs.Active() != tabs.Response {
		t.Fatalf("active tab should survive a rebuild, got %s", m.detail.tabs.Active())
	}
}

func TestCopyDetail(t *testing.T) {
	var copied string
	m := newTestModel(t, nil, nil)
	m.copyText = func(s string) error { copied = s; return nil }

	m.copyDetail()
	if m.statusMessage.text != "Nothing to copy" {
		t.Fatalf("unexpected status %q", m.statusMessage.text)
	}

	m.detail.id = "1"
	m.handleEntryLoaded(entryLoadedMsg{id: "1", full: traffic.FullEntry{Representation: testRepresentation}})
	m.copyDetail()
	if !strings.Contains(copied, "catalogue/items") || strings.Contains(copied, "\x1b[") {
		t.Fatalf("expected plain request text, got %q", copied)
	}
}

func TestToasts(t *testing.T) {
	m := newTestModel(t, nil, nil)
	for i := 0; i < maxToasts+1; i++ {
		if cmd := m.pushToast(traffic.Toast{Type: "info", Text: "note"}); cmd == nil {
			t.Fatalf("expected expiry command")
		}
	}
	if len(m.toasts) != maxToasts {
		t.Fatalf("expected %d toasts, got %d", maxToasts, len(m.toasts))
	}
	first := m.toasts[0].seq
	m.expireToast(first)
	if len(m.toasts) != maxToasts-1 || m.toasts[0].seq == first {
		t.Fatalf("toast %d not expired", first)
	}
	if m.pushToast(traffic.Toast{Text: "  "}) != nil {
		t.Fatalf("blank toast must be ignored")
	}

	m.layout.HideToasts = true
	m.pushToast(traffic.Toast{Type: "warning", Text: "quiet"})
	if m.statusMessage.text != "quiet" || m.statusMessage.level != statusWarn {
		t.Fatalf("hidden toast should land in the status bar, got %+v", m.statusMessage)
	}
}

func TestStatsCycling(t *testing.T) {
	m := newTestModel(t, nil, nil)
	m.cycleStatsMode()
	if m.stats.mode != trafficstats.ModeVolume {
		t.Fatalf("expected volume mode")
	}
	m.cycleStatsMode()
	if m.stats.mode != trafficstats.ModeRequests {
		t.Fatalf("expected requests mode")
	}

	m.stats.pie = []traffic.ProtocolStats{{Name: "HTTP", EntriesCount: 3}, {Name: "Custom", EntriesCount: 1}}
	choices := trafficstats.Protocols(m.stats.pie)
	for i := 1; i < len(choices); i++ {
		m.nextStatsProtocol()
		if m.stats.protocol != choices[i] {
			t.Fatalf("step %d: expected %s, got %s", i, choices[i], m.stats.protocol)
		}
	}
	m.nextStatsProtocol()
	if m.stats.protocol != trafficstats.AllProtocols {
		t.Fatalf("expected wrap to all protocols, got %s", m.stats.protocol)
	}
}

func TestStatsLoad(t *testing.T) {
	api := &fakeAPI{pie: []traffic.ProtocolStats{{Name: "HTTP", EntriesCount: 12}}}
	m := newTestModel(t, nil, api)
	for _, msg := range execCmd(m.loadStatsCmd()) {
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	if m.stats.loading || len(m.stats.pie) != 1 {
		t.Fatalf("expected stats loaded, got %+v", m.stats.pie)
	}
	if !strings.Contains(m.statsContent(80), "HTTP") {
		t.Fatalf("stats view should list HTTP")
	}
}

func TestReplayRoundTrip(t *testing.T) {
	replayed := strings.Replace(testRepresentation, `{\"ok\":true}`, `{\"ok\":false}`, 1)
	data, err := json.Marshal(map[string]string{"representation": replayed})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	api := &fakeAPI{replay: traffic.ReplayResponse{Success: true, Data: data}}
	m := newTestModel(t, nil, api)

	if m.showReplay() != nil || m.view == viewReplay {
		t.Fatalf("replay without a loaded entry must stay put")
	}

	m.detail.id = "1"
	m.handleEntryLoaded(entryLoadedMsg{id: "1", full: traffic.FullEntry{Representation: testRepresentation}})
	m.showReplay()
	if m.view != viewReplay || !m.replay.editing {
		t.Fatalf("expected replay editor")
	}
	if got := m.replay.url.Value(); got != "http://catalogue/items" {
		t.Fatalf("unexpected url %q", got)
	}

	m.replay.url.SetValue("http://catalogue/items?v=2")
	msgs := execCmd(m.sendReplayCmd())
	if !m.replay.sending || len(msgs) != 1 {
		t.Fatalf("expected one replay result")
	}
	m.handleReplayDone(msgs[0].(replayDoneMsg))

	if len(api.replays) != 1 {
		t.Fatalf("expected one replay call, got %d", len(api.replays))
	}
	if sent := api.replays[0]; sent.Method != "GET" || sent.URL != "http://catalogue/items?v=2" {
		t.Fatalf("unexpected replay details %+v", sent)
	}
	if m.replay.result == nil || m.replay.result.RequestID == "" {
		t.Fatalf("expected result with request id")
	}
	if replay.Diff(m.replay.captured, m.replay.result.Entry) == "" {
		t.Fatalf("expected differing response bodies")
	}
}

func TestReplayFailure(t *testing.T) {
	api := &fakeAPI{err: errors.New("boom")}
	m := newTestModel(t, nil, api)
	req := replay.Request{Method: "GET", URL: "http://x"}
	m.replay.request = &req
	m.replay.url.SetValue(req.URL)
	msgs := execCmd(m.sendReplayCmd())
	m.handleReplayDone(msgs[0].(replayDoneMsg))
	if m.replay.err == nil || m.replay.sending || m.statusMessage.level != statusError {
		t.Fatalf("expected replay error state")
	}
}

func TestKeyFocusQueryAndSubmit(t *testing.T) {
	f := &fakeFeed{}
	m := newTestModel(t, f, nil)
	t.Cleanup(f.Close)

	press := func(msg tea.KeyMsg) {
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	press(keyRunes("/"))
	if m.focus != focusQuery {
		t.Fatalf("expected query focus")
	}
	press(keyRunes("p"))
	if m.paused {
		t.Fatalf("keys typed into the query must not trigger actions")
	}
	press(tea.KeyMsg{Type: tea.KeyBackspace})
	for _, r := range "http" {
		press(keyRunes(string(r)))
	}
	press(tea.KeyMsg{Type: tea.KeyEnter})
	if m.focus != focusEntries || m.activeQuery != "http" {
		t.Fatalf("expected submitted query, got focus %v query %q", m.focus, m.activeQuery)
	}
	if len(f.opened) != 1 || f.opened[0] != "http" {
		t.Fatalf("expected feed opened with http, got %v", f.opened)
	}

	press(keyRunes("p"))
	if !m.paused {
		t.Fatalf("expected feed paused")
	}
	press(keyRunes("p"))
	if m.paused || len(f.opened) != 2 {
		t.Fatalf("expected feed resumed, opened %v", f.opened)
	}
}

func TestKeyChordSwitchesView(t *testing.T) {
	api := &fakeAPI{}
	m := newTestModel(t, nil, api)
	next, _ := m.Update(keyRunes("g"))
	m = next.(Model)
	if m.pendingChord != "g" {
		t.Fatalf("expected pending chord, got %q", m.pendingChord)
	}
	next, cmd := m.Update(keyRunes("s"))
	m = next.(Model)
	if m.view != viewStats || m.pendingChord != "" {
		t.Fatalf("expected stats view, got %v", m.view)
	}
	if cmd == nil {
		t.Fatalf("expected stats load command")
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = next.(Model)
	if m.view != viewTraffic {
		t.Fatalf("escape should return to traffic, got %v", m.view)
	}

	next, _ = m.Update(keyRunes("?"))
	m = next.(Model)
	if !m.showHelp || !strings.Contains(m.View(), "Quit") {
		t.Fatalf("expected help overlay")
	}
}

func TestEntriesNavigation(t *testing.T) {
	m := newTestModel(t, nil, nil)
	for _, id := range []string{"1", "2", "3"} {
		m.appendEntry(traffic.EntrySummary{ID: id})
	}
	next, _ := m.Update(keyRunes("j"))
	m = next.(Model)
	if m.cursor != 1 || m.detail.id != "2" || m.follow {
		t.Fatalf("unexpected cursor %d id %q follow %v", m.cursor, m.detail.id, m.follow)
	}
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnd})
	m = next.(Model)
	if m.cursor != 2 || !m.follow {
		t.Fatalf("end should resume follow mode")
	}
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	if m.focus != focusDetail {
		t.Fatalf("enter should focus the detail pane")
	}
}

func TestToggleSplitSavesLayout(t *testing.T) {
	m := newTestModel(t, nil, nil)
	var saved []config.LayoutSettings
	m.cfg.SaveLayout = func(l config.LayoutSettings) error {
		saved = append(saved, l)
		return nil
	}

	if msgs := execCmd(m.toggleSplit()); len(msgs) != 0 {
		t.Fatalf("expected a silent save, got %v", msgs)
	}
	if len(saved) != 1 || saved[0].MainSplit != config.LayoutMainSplitHorizontal {
		t.Fatalf("expected horizontal layout saved, got %+v", saved)
	}

	m.cfg.SaveLayout = func(config.LayoutSettings) error { return errors.New("read-only") }
	msgs := execCmd(m.toggleSplit())
	if m.layout.MainSplit != config.LayoutMainSplitVertical {
		t.Fatalf("split should toggle back, got %q", m.layout.MainSplit)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected a status message, got %v", msgs)
	}
	if st, ok := msgs[0].(statusMsg); !ok || st.level != statusWarn {
		t.Fatalf("unexpected message %#v", msgs[0])
	}
}

func TestViewRendersChrome(t *testing.T) {
	m := newTestModel(t, nil, nil)
	m.appendEntry(traffic.EntrySummary{ID: "1", Method: "GET", Path: "/health", Status: 200})
	out := m.View()
	for _, want := range []string{"mizuview", "TRAFFIC", "CLOSED", "/health"} {
		if !strings.Contains(out, want) {
			t.Fatalf("view missing %q", want)
		}
	}
}
