package stream

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DropPolicy decides what a full subscriber queue does with a new event.
type DropPolicy int

const (
	DropOldest DropPolicy = iota
	DropNewest
)

type Config struct {
	BufferSize     int
	ListenerBuffer int
	DropPolicy     DropPolicy
}

func (c Config) withDefaults() Config {
	if c.BufferSize <= 0 {
		c.BufferSize = 1024
	}
	if c.ListenerBuffer <= 0 {
		c.ListenerBuffer = 64
	}
	if c.DropPolicy != DropNewest {
		c.DropPolicy = DropOldest
	}
	return c
}

// Session records the lifecycle of one socket: its state, a bounded event
// history and the listeners currently subscribed to it.
type Session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	cfg    Config

	mu          sync.RWMutex
	state       State
	err         error
	history     *ringBuffer
	lastMessage *Event
	subs        map[uint64]*subscriber
	nextSub     uint64
	closed      bool
	stats       Stats
}

type Stats struct {
	StartedAt   time.Time
	EndedAt     time.Time
	EventsTotal uint64
	BytesTotal  uint64
	Dropped     uint64
}

// Listener is a scoped subscription. Cancel is safe to call more than once
// and from any goroutine; C is closed once the subscription ends.
type Listener struct {
	C        <-chan *Event
	Cancel   func()
	Snapshot Snapshot
}

// Snapshot is the session as a new listener first sees it.
type Snapshot struct {
	Events []*Event
	State  State
	Err    error
}

type subscriber struct {
	mu     sync.Mutex
	ch     chan *Event
	policy DropPolicy
	done   bool
}

// offer queues evt, reporting false when it, or an older event, had to be
// dropped.
func (sub *subscriber) offer(evt *Event) bool {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.done {
		return false
	}
	select {
	case sub.ch <- evt:
		return true
	default:
	}
	if sub.policy == DropNewest {
		return false
	}
	select {
	case <-sub.ch:
	default:
	}
	select {
	case sub.ch <- evt:
	default:
	}
	return false
}

func (sub *subscriber) stop() {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if !sub.done {
		sub.done = true
		close(sub.ch)
	}
}

func NewSession(parent context.Context, cfg Config) *Session {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(parent)
	return &Session{
		id:      "ws-" + uuid.NewString(),
		ctx:     ctx,
		cancel:  cancel,
		cfg:     cfg,
		state:   StateConnecting,
		history: newRingBuffer(cfg.BufferSize),
		subs:    make(map[uint64]*subscriber),
		stats:   Stats{StartedAt: time.Now()},
	}
}

func (s *Session) ID() string {
	return s.id
}

// Context is cancelled when the session closes.
func (s *Session) Context() context.Context {
	return s.ctx
}

func (s *Session) Cancel() {
	s.cancel()
}

func (s *Session) State() (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, s.err
}

func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

func (s *Session) StatsSnapshot() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// LastMessage returns the most recent inbound message event, or nil.
func (s *Session) LastMessage() *Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastMessage
}

func (s *Session) ListenerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// Subscribe registers a listener. On a closed session the listener's
// channel is already closed and only the snapshot is meaningful.
func (s *Session) Subscribe() Listener {
	sub := &subscriber{
		ch:     make(chan *Event, s.cfg.ListenerBuffer),
		policy: s.cfg.DropPolicy,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{Events: s.history.snapshot(), State: s.state, Err: s.err}
	if s.closed {
		sub.stop()
		return Listener{C: sub.ch, Cancel: func() {}, Snapshot: snap}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = sub
	return Listener{C: sub.ch, Cancel: func() { s.unsubscribe(id) }, Snapshot: snap}
}

func (s *Session) unsubscribe(id uint64) {
	s.mu.Lock()
	sub := s.subs[id]
	delete(s.subs, id)
	s.mu.Unlock()
	if sub != nil {
		sub.stop()
	}
}

// CancelListeners ends every subscription without touching the session state.
func (s *Session) CancelListeners() {
	s.mu.Lock()
	subs := s.subs
	s.subs = make(map[uint64]*subscriber)
	s.mu.Unlock()
	for _, sub := range subs {
		sub.stop()
	}
}

// Publish stamps evt, keeps it in the history and fans it out.
func (s *Session) Publish(evt *Event) {
	if evt == nil {
		return
	}
	evt.Sequence = nextSequence()
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	s.mu.Lock()
	s.history.append(evt)
	s.stats.EventsTotal++
	s.stats.BytesTotal += uint64(len(evt.Payload))
	switch {
	case evt.Type == EventMessage && evt.Direction == DirReceive:
		s.lastMessage = evt
	case evt.Type == EventError && evt.Err != nil:
		s.err = evt.Err
	}
	subs := make([]*subscriber, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	var dropped uint64
	for _, sub := range subs {
		if !sub.offer(evt) {
			dropped++
		}
	}
	if dropped > 0 {
		s.mu.Lock()
		s.stats.Dropped += dropped
		s.mu.Unlock()
	}
}

func (s *Session) MarkOpen() {
	s.setState(StateOpen, nil)
}

func (s *Session) MarkClosing() {
	s.setState(StateClosing, nil)
}

// Close moves the session to CLOSED, records err if non-nil and ends every
// subscription. Calls after the first only update the error.
func (s *Session) Close(err error) {
	s.mu.Lock()
	s.state = StateClosed
	if err != nil {
		s.err = err
	}
	first := !s.closed
	if first {
		s.closed = true
		s.stats.EndedAt = time.Now()
	}
	s.mu.Unlock()

	s.cancel()
	if first {
		s.CancelListeners()
	}
}

// setState is a no-op once the session is closed.
func (s *Session) setState(state State, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.state = state
	if err != nil {
		s.err = err
	}
}
