package feed

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptrace"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/unkn0wn-root/mizuview/internal/errdef"
	"github.com/unkn0wn-root/mizuview/internal/nettrace"
	"github.com/unkn0wn-root/mizuview/internal/stream"
	"github.com/unkn0wn-root/mizuview/internal/telemetry"
)

const defaultDialTimeout = 15 * time.Second

// Conn is the subset of *websocket.Conn the manager drives.
type Conn interface {
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Close(code websocket.StatusCode, reason string) error
}

type DialFunc func(ctx context.Context, url string, opts *websocket.DialOptions) (Conn, *http.Response, error)

func dialWebSocket(ctx context.Context, url string, opts *websocket.DialOptions) (Conn, *http.Response, error) {
	conn, resp, err := websocket.Dial(ctx, url, opts)
	if err != nil {
		return nil, resp, err
	}
	return conn, resp, nil
}

type Options struct {
	URL         string
	Token       string
	DialTimeout time.Duration
	HTTPClient  *http.Client
	Header      http.Header
	ReadLimit   int64
	Session     stream.Config
	Logger      *slog.Logger
	Telemetry   telemetry.Instrumenter
	Dial        DialFunc
}

// Manager owns at most one live socket to the traffic feed. Every exported
// method is safe to call from any goroutine and never blocks on the network
// except Send, which waits for its single frame write.
type Manager struct {
	opts Options
	dial DialFunc
	log  *slog.Logger
	tel  telemetry.Instrumenter

	mu          sync.Mutex
	session     *stream.Session
	conn        Conn
	closeIssued bool
	lastErr     error
	subs        []stream.Listener
	span        telemetry.Span
}

func NewManager(opts Options) *Manager {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaultDialTimeout
	}
	dial := opts.Dial
	if dial == nil {
		dial = dialWebSocket
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	tel := opts.Telemetry
	if tel == nil {
		tel = telemetry.Noop()
	}
	return &Manager{opts: opts, dial: dial, log: logger, tel: tel}
}

// State reports the lifecycle of the current socket. A manager that never
// opened one reports StateClosed.
func (m *Manager) State() stream.State {
	m.mu.Lock()
	session := m.session
	m.mu.Unlock()
	if session == nil {
		return stream.StateClosed
	}
	state, _ := session.State()
	return state
}

func (m *Manager) LastMessage() *stream.Event {
	m.mu.Lock()
	session := m.session
	m.mu.Unlock()
	if session == nil {
		return nil
	}
	return session.LastMessage()
}

func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Session exposes the current socket's event session, or nil.
func (m *Manager) Session() *stream.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Open starts connecting a new socket and returns immediately. It is a no-op
// while a socket is connecting or open. A non-empty query is sent as soon as
// the socket reaches OPEN.
func (m *Manager) Open(ctx context.Context, query string) error {
	target, err := SocketURL(m.opts.URL, m.opts.Token)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if m.session != nil {
		if state, _ := m.session.State(); state == stream.StateConnecting || state == stream.StateOpen {
			m.mu.Unlock()
			return nil
		}
	}
	session := stream.NewSession(context.Background(), m.opts.Session)
	_, span := m.tel.StartFeed(context.Background(), telemetry.FeedStart{
		SessionID: session.ID(),
		URL:       redactURL(target, m.opts.Token),
		Query:     query,
	})
	m.session = session
	m.conn = nil
	m.closeIssued = false
	m.lastErr = nil
	m.span = span
	m.mu.Unlock()

	m.log.Info("opening feed", "url", redactURL(target, m.opts.Token), "session", session.ID())
	go func() {
		received, err := m.connect(ctx, session, span, target, query)
		span.End(telemetry.Result{Err: err, Messages: received})
	}()
	return nil
}

// connect runs one socket from dial to close and reports how many messages
// it received and the error that ended it, if any.
func (m *Manager) connect(ctx context.Context, session *stream.Session, span telemetry.Span, target, query string) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	dialCtx, cancel := context.WithTimeout(session.Context(), m.opts.DialTimeout)
	stop := context.AfterFunc(ctx, cancel)
	timing := nettrace.NewCollector()
	dialCtx = httptrace.WithClientTrace(dialCtx, timing.ClientTrace())
	conn, resp, err := m.dial(dialCtx, target, m.dialOptions())
	stop()
	cancel()
	if tl := timing.Finish(err); tl != nil {
		m.log.Debug("feed dial", "session", session.ID(), "timing", tl)
		span.Event("mizuview.feed.dial", tl.Attributes())
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if session.Context().Err() != nil {
			// closed by the owner while connecting
			session.Close(nil)
			return 0, nil
		}
		wrapped := errdef.Wrap(errdef.CodeFeed, err, "dial %s", redactURL(target, m.opts.Token))
		m.fail(session, wrapped)
		return 0, wrapped
	}

	m.mu.Lock()
	if m.session != session || session.Context().Err() != nil {
		m.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "")
		session.Close(nil)
		return 0, nil
	}
	m.conn = conn
	session.MarkOpen()
	m.mu.Unlock()

	if m.opts.ReadLimit > 0 {
		if limiter, ok := conn.(interface{ SetReadLimit(int64) }); ok {
			limiter.SetReadLimit(m.opts.ReadLimit)
		}
	}

	session.Publish(&stream.Event{Type: stream.EventOpen, Direction: stream.DirNA})
	m.log.Info("feed open", "session", session.ID())

	if query != "" {
		m.Send(session.Context(), query)
	}
	return m.readLoop(session, conn)
}

func (m *Manager) dialOptions() *websocket.DialOptions {
	opts := &websocket.DialOptions{HTTPClient: m.opts.HTTPClient}
	if len(m.opts.Header) > 0 {
		opts.HTTPHeader = m.opts.Header.Clone()
	}
	return opts
}

func (m *Manager) readLoop(session *stream.Session, conn Conn) (int, error) {
	ctx := session.Context()
	received := 0
	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			var ce websocket.CloseError
			switch {
			case errors.As(err, &ce):
				session.Publish(&stream.Event{
					Type:      stream.EventClose,
					Direction: stream.DirReceive,
					Code:      ce.Code,
					Reason:    ce.Reason,
				})
				m.log.Info("feed closed", "session", session.ID(), "code", int(ce.Code), "reason", ce.Reason)
				session.Close(nil)
			case ctx.Err() != nil || m.isLocalClose(session, err):
				session.Publish(&stream.Event{
					Type:      stream.EventClose,
					Direction: stream.DirSend,
					Code:      websocket.StatusNormalClosure,
				})
				session.Close(nil)
			default:
				wrapped := errdef.Wrap(errdef.CodeFeed, err, "read websocket message")
				m.fail(session, wrapped)
				return received, wrapped
			}
			return received, nil
		}
		if msgType != websocket.MessageText && msgType != websocket.MessageBinary {
			continue
		}
		received++
		session.Publish(&stream.Event{
			Type:      stream.EventMessage,
			Direction: stream.DirReceive,
			Payload:   append([]byte(nil), data...),
		})
	}
}

func (m *Manager) isLocalClose(session *stream.Session, err error) bool {
	m.mu.Lock()
	issued := m.closeIssued && m.session == session
	m.mu.Unlock()
	return issued && (errors.Is(err, net.ErrClosed) || websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled))
}

// fail forwards a transport error to subscribers as data, then closes.
// There is no retry; reconnecting is the caller's decision.
func (m *Manager) fail(session *stream.Session, err error) {
	m.mu.Lock()
	if m.session == session {
		m.lastErr = err
	}
	m.mu.Unlock()
	m.log.Warn("feed error", "session", session.ID(), "err", err)
	session.Publish(&stream.Event{Type: stream.EventError, Direction: stream.DirNA, Err: err})
	session.Publish(&stream.Event{
		Type:      stream.EventClose,
		Direction: stream.DirNA,
		Code:      websocket.StatusAbnormalClosure,
		Reason:    errdef.Message(err),
	})
	session.Close(err)
}

// Send writes the query envelope when the socket is OPEN and reports whether
// a frame was written. In any other state the query is dropped silently.
func (m *Manager) Send(ctx context.Context, query string) bool {
	m.mu.Lock()
	session, conn, span := m.session, m.conn, m.span
	m.mu.Unlock()
	if session == nil || conn == nil {
		return false
	}
	if state, _ := session.State(); state != stream.StateOpen {
		return false
	}

	payload, err := EncodeQuery(query)
	if err != nil {
		return false
	}
	if ctx == nil {
		ctx = session.Context()
	}
	if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
		wrapped := errdef.Wrap(errdef.CodeFeed, err, "send query")
		m.mu.Lock()
		m.lastErr = wrapped
		m.mu.Unlock()
		session.Publish(&stream.Event{Type: stream.EventError, Direction: stream.DirSend, Err: wrapped})
		return false
	}
	session.Publish(&stream.Event{Type: stream.EventMessage, Direction: stream.DirSend, Payload: payload})
	if span != nil {
		span.Event("mizuview.feed.query", map[string]string{"query": query})
	}
	m.log.Debug("query sent", "session", session.ID(), "query", query)
	return true
}

// Subscribe registers a listener on the current socket. The subscription is
// owned by the manager too: Close cancels it along with every other one.
func (m *Manager) Subscribe() (stream.Listener, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return stream.Listener{}, false
	}
	l := m.session.Subscribe()
	m.subs = append(m.subs, l)
	return l, true
}

// Close is idempotent and returns without waiting for the peer. The socket is
// closed only if it is OPEN and only once; every subscription is removed on
// each call. A socket still connecting is abandoned and reported CLOSED at
// once, so a following Open starts fresh.
func (m *Manager) Close() {
	m.mu.Lock()
	session, conn := m.session, m.conn
	subs := m.subs
	m.subs = nil
	var state stream.State = stream.StateClosed
	if session != nil {
		state, _ = session.State()
	}
	doClose := session != nil && conn != nil && state == stream.StateOpen && !m.closeIssued
	if doClose {
		m.closeIssued = true
		session.MarkClosing()
	}
	m.mu.Unlock()

	for _, l := range subs {
		l.Cancel()
	}
	if session == nil {
		return
	}
	session.CancelListeners()

	switch {
	case doClose:
		// the close handshake waits for the peer, so it runs off the caller
		go func() {
			if err := conn.Close(websocket.StatusNormalClosure, "client closed"); err != nil &&
				!errors.Is(err, net.ErrClosed) && websocket.CloseStatus(err) == -1 {
				m.log.Debug("feed close", "session", session.ID(), "err", err)
			}
			session.Cancel()
		}()
	case state == stream.StateConnecting:
		session.Close(nil)
	}
}

// Teardown is what an owning component calls when it goes away. It is safe
// on a nil manager and on one that never opened.
func (m *Manager) Teardown() {
	if m == nil {
		return
	}
	m.Close()
}
