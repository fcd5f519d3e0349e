package feed

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"github.com/unkn0wn-root/mizuview/internal/errdef"
	"github.com/unkn0wn-root/mizuview/internal/stream"
)

type fakeConn struct {
	mu       sync.Mutex
	writes   [][]byte
	closes   int
	writeErr error

	reads     chan []byte
	readErr   chan error
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		reads:   make(chan []byte, 8),
		readErr: make(chan error, 1),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) Read(ctx context.Context) (websocket.MessageType, []byte, error) {
	select {
	case data := <-c.reads:
		return websocket.MessageText, data, nil
	case err := <-c.readErr:
		return 0, nil, err
	case <-c.closed:
		return 0, nil, net.ErrClosed
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

func (c *fakeConn) Write(_ context.Context, _ websocket.MessageType, p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.writes = append(c.writes, append([]byte(nil), p...))
	return nil
}

func (c *fakeConn) Close(websocket.StatusCode, string) error {
	c.mu.Lock()
	c.closes++
	c.mu.Unlock()
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) counts() (writes, closes int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.writes), c.closes
}

func (c *fakeConn) written(i int) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i >= len(c.writes) {
		return ""
	}
	return string(c.writes[i])
}

func fakeDialer(conn *fakeConn, dials *int, mu *sync.Mutex) DialFunc {
	return func(context.Context, string, *websocket.DialOptions) (Conn, *http.Response, error) {
		mu.Lock()
		*dials++
		mu.Unlock()
		return conn, nil, nil
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestManagerSendsQueryOnceOpen(t *testing.T) {
	conn := newFakeConn()
	var dials int
	var mu sync.Mutex
	m := NewManager(Options{URL: "http://localhost:8899", Dial: fakeDialer(conn, &dials, &mu)})
	defer m.Teardown()

	if err := m.Open(context.Background(), `http and response.status == 500`); err != nil {
		t.Fatalf("open: %v", err)
	}
	waitFor(t, "query write", func() bool {
		w, _ := conn.counts()
		return w == 1
	})
	if m.State() != stream.StateOpen {
		t.Fatalf("expected OPEN, got %s", m.State())
	}
	want := `{"query":"http and response.status == 500","enableFullEntries":false}`
	if got := conn.written(0); got != want {
		t.Fatalf("unexpected query frame %s", got)
	}
}

func TestManagerOpenIsNoopWhileOpen(t *testing.T) {
	conn := newFakeConn()
	var dials int
	var mu sync.Mutex
	m := NewManager(Options{URL: "http://localhost:8899", Dial: fakeDialer(conn, &dials, &mu)})
	defer m.Teardown()

	if err := m.Open(context.Background(), ""); err != nil {
		t.Fatalf("open: %v", err)
	}
	waitFor(t, "open state", func() bool { return m.State() == stream.StateOpen })
	if err := m.Open(context.Background(), "http"); err != nil {
		t.Fatalf("second open: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if dials != 1 {
		t.Fatalf("expected a single dial, got %d", dials)
	}
	if w, _ := conn.counts(); w != 0 {
		t.Fatalf("expected no query from the ignored open, got %d writes", w)
	}
}

func TestManagerCloseTwiceClosesSocketOnce(t *testing.T) {
	conn := newFakeConn()
	var dials int
	var mu sync.Mutex
	m := NewManager(Options{URL: "http://localhost:8899", Dial: fakeDialer(conn, &dials, &mu)})

	if err := m.Open(context.Background(), ""); err != nil {
		t.Fatalf("open: %v", err)
	}
	waitFor(t, "open state", func() bool { return m.State() == stream.StateOpen })
	listener, ok := m.Subscribe()
	if !ok {
		t.Fatalf("expected subscription on open manager")
	}

	m.Close()
	m.Close()

	select {
	case _, open := <-listener.C:
		if open {
			t.Fatalf("expected listener channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatalf("listener was not cancelled")
	}
	waitFor(t, "closed state", func() bool { return m.State() == stream.StateClosed })
	if _, closes := conn.counts(); closes != 1 {
		t.Fatalf("expected one underlying close, got %d", closes)
	}
	if m.LastError() != nil {
		t.Fatalf("local close should not record an error, got %v", m.LastError())
	}
}

func TestManagerCloseDoesNotWaitForPeer(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()
		// never reads, so the client's close frame is never answered
		<-release
	}))
	defer srv.Close()
	defer close(release)

	m := NewManager(Options{URL: srv.URL})
	if err := m.Open(context.Background(), ""); err != nil {
		t.Fatalf("open: %v", err)
	}
	waitFor(t, "open state", func() bool { return m.State() == stream.StateOpen })

	start := time.Now()
	m.Close()
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("Close blocked for %s", elapsed)
	}
	if state := m.State(); state != stream.StateClosing && state != stream.StateClosed {
		t.Fatalf("expected socket to leave OPEN, got %s", state)
	}
	m.Close()
}

func TestManagerSendDroppedUnlessOpen(t *testing.T) {
	m := NewManager(Options{URL: "http://localhost:8899"})
	if m.Send(context.Background(), "http") {
		t.Fatalf("expected send on idle manager to be dropped")
	}

	release := make(chan struct{})
	conn := newFakeConn()
	m = NewManager(Options{
		URL: "http://localhost:8899",
		Dial: func(ctx context.Context, _ string, _ *websocket.DialOptions) (Conn, *http.Response, error) {
			select {
			case <-release:
				return conn, nil, nil
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			}
		},
	})
	defer m.Teardown()

	if err := m.Open(context.Background(), ""); err != nil {
		t.Fatalf("open: %v", err)
	}
	if m.State() != stream.StateConnecting {
		t.Fatalf("expected CONNECTING, got %s", m.State())
	}
	if m.Send(context.Background(), "http") {
		t.Fatalf("expected send while connecting to be dropped")
	}
	close(release)
	waitFor(t, "open state", func() bool { return m.State() == stream.StateOpen })
	if w, _ := conn.counts(); w != 0 {
		t.Fatalf("dropped query must not be replayed, got %d writes", w)
	}
	if !m.Send(context.Background(), "dns") {
		t.Fatalf("expected send on open socket to succeed")
	}
}

func TestManagerCloseWhileConnectingAbandonsDial(t *testing.T) {
	dialed := make(chan struct{})
	m := NewManager(Options{
		URL: "http://localhost:8899",
		Dial: func(ctx context.Context, _ string, _ *websocket.DialOptions) (Conn, *http.Response, error) {
			close(dialed)
			<-ctx.Done()
			return nil, nil, ctx.Err()
		},
	})

	if err := m.Open(context.Background(), "http"); err != nil {
		t.Fatalf("open: %v", err)
	}
	<-dialed
	m.Close()

	waitFor(t, "closed state", func() bool { return m.State() == stream.StateClosed })
	if m.LastError() != nil {
		t.Fatalf("abandoned dial should not record an error, got %v", m.LastError())
	}
}

func TestManagerDialFailureClosesWithError(t *testing.T) {
	m := NewManager(Options{
		URL:   "http://localhost:8899",
		Token: "secret-token",
		Dial: func(context.Context, string, *websocket.DialOptions) (Conn, *http.Response, error) {
			return nil, nil, errors.New("connection refused")
		},
	})
	defer m.Teardown()

	if err := m.Open(context.Background(), "http"); err != nil {
		t.Fatalf("open: %v", err)
	}
	waitFor(t, "closed state", func() bool { return m.State() == stream.StateClosed })

	err := m.LastError()
	if !errdef.Is(err, errdef.CodeFeed) {
		t.Fatalf("expected feed error, got %v", err)
	}
	if strings.Contains(err.Error(), "secret-token") {
		t.Fatalf("token leaked into error: %v", err)
	}
}

func TestManagerRemoteCloseEndsSession(t *testing.T) {
	conn := newFakeConn()
	var dials int
	var mu sync.Mutex
	m := NewManager(Options{URL: "http://localhost:8899", Dial: fakeDialer(conn, &dials, &mu)})
	defer m.Teardown()

	if err := m.Open(context.Background(), ""); err != nil {
		t.Fatalf("open: %v", err)
	}
	waitFor(t, "open state", func() bool { return m.State() == stream.StateOpen })
	conn.reads <- []byte(`{"messageType":"toast","data":{"type":"info","autoClose":3000,"text":"hi"}}`)
	waitFor(t, "last message", func() bool { return m.LastMessage() != nil })

	conn.readErr <- websocket.CloseError{Code: websocket.StatusGoingAway, Reason: "restart"}
	waitFor(t, "closed state", func() bool { return m.State() == stream.StateClosed })

	if _, closes := conn.counts(); closes != 0 {
		t.Fatalf("remote close must not trigger a local close, got %d", closes)
	}
	if m.Send(context.Background(), "http") {
		t.Fatalf("expected send after remote close to be dropped")
	}
	if got := string(m.LastMessage().Payload); !strings.Contains(got, `"toast"`) {
		t.Fatalf("last message not kept after close: %s", got)
	}
}

func TestManagerTeardownNilSafe(t *testing.T) {
	var m *Manager
	m.Teardown()

	idle := NewManager(Options{URL: "http://localhost:8899"})
	idle.Teardown()
	idle.Teardown()
	if idle.State() != stream.StateClosed {
		t.Fatalf("expected CLOSED, got %s", idle.State())
	}
	if _, ok := idle.Subscribe(); ok {
		t.Fatalf("expected no subscription without a socket")
	}
}

func TestManagerOpenRejectsBadURL(t *testing.T) {
	m := NewManager(Options{URL: "ftp://localhost"})
	err := m.Open(context.Background(), "")
	if !errdef.Is(err, errdef.CodeConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestManagerStreamsEntriesFromServer(t *testing.T) {
	queries := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws/tok" {
			http.Error(w, "bad path "+r.URL.Path, http.StatusNotFound)
			return
		}
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			t.Errorf("websocket accept failed: %v", err)
			return
		}
		defer func() {
			_ = conn.Close(websocket.StatusNormalClosure, "bye")
		}()

		ctx := r.Context()
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		queries <- string(data)
		entry := `{"messageType":"entry","data":{"id":"1","proto":{"name":"http","abbr":"HTTP"},"method":"GET","path":"/health","status":200,"timestamp":1650000000000}}`
		if err := conn.Write(ctx, websocket.MessageText, []byte(entry)); err != nil {
			return
		}
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	m := NewManager(Options{URL: srv.URL, Token: "tok"})
	defer m.Teardown()
	if err := m.Open(context.Background(), "http"); err != nil {
		t.Fatalf("open: %v", err)
	}
	listener, ok := m.Subscribe()
	if !ok {
		t.Fatalf("expected subscription")
	}

	select {
	case q := <-queries:
		if !strings.Contains(q, `"query":"http"`) {
			t.Fatalf("unexpected query frame %s", q)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("server never received the query")
	}

	events := append([]*stream.Event(nil), listener.Snapshot.Events...)
	deadline := time.After(2 * time.Second)
	for {
		if frame, ok := findEntry(events); ok {
			if frame.Entry.Path != "/health" || frame.Entry.Protocol.Abbreviation != "HTTP" {
				t.Fatalf("unexpected entry %+v", frame.Entry)
			}
			return
		}
		select {
		case evt, open := <-listener.C:
			if !open {
				t.Fatalf("listener closed before entry arrived")
			}
			events = append(events, evt)
		case <-deadline:
			t.Fatalf("timed out waiting for entry frame")
		}
	}
}

func findEntry(events []*stream.Event) (Frame, bool) {
	for _, evt := range events {
		if evt.Type != stream.EventMessage || evt.Direction != stream.DirReceive {
			continue
		}
		frame, err := DecodeFrame(evt.Payload)
		if err == nil && frame.Entry != nil {
			return frame, true
		}
	}
	return Frame{}, false
}
