package nettrace

import (
	"crypto/tls"
	"net/http/httptrace"
	"sort"
	"sync"
	"time"
)

// Collector records connection phases reported by net/http while a request
// is in flight. Bind its ClientTrace to the dial context, then call Finish.
type Collector struct {
	now func() time.Time

	mu      sync.Mutex
	started time.Time
	active  map[PhaseKind]Phase
	phases  []Phase
	reused  bool
	err     string
}

func NewCollector() *Collector {
	return &Collector{now: time.Now, active: make(map[PhaseKind]Phase)}
}

func (c *Collector) begin(kind PhaseKind, addr string) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started.IsZero() {
		c.started = now
	}
	c.active[kind] = Phase{Kind: kind, Start: now, Addr: addr}
}

func (c *Collector) end(kind PhaseKind, addr string, err error) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.active[kind]
	if !ok {
		return
	}
	delete(c.active, kind)
	p.Duration = now.Sub(p.Start)
	if addr != "" {
		p.Addr = addr
	}
	if err != nil {
		p.Err = err.Error()
		if c.err == "" {
			c.err = p.Err
		}
	}
	c.phases = append(c.phases, p)
}

// ClientTrace returns hooks feeding this collector.
func (c *Collector) ClientTrace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		DNSStart: func(info httptrace.DNSStartInfo) {
			c.begin(PhaseDNS, info.Host)
		},
		DNSDone: func(info httptrace.DNSDoneInfo) {
			addr := ""
			if len(info.Addrs) > 0 {
				addr = info.Addrs[0].String()
			}
			c.end(PhaseDNS, addr, info.Err)
		},
		ConnectStart: func(_, addr string) {
			c.begin(PhaseConnect, addr)
		},
		ConnectDone: func(_, addr string, err error) {
			c.end(PhaseConnect, addr, err)
		},
		GotConn: func(info httptrace.GotConnInfo) {
			c.mu.Lock()
			c.reused = info.Reused
			c.mu.Unlock()
		},
		TLSHandshakeStart: func() {
			c.begin(PhaseTLS, "")
		},
		TLSHandshakeDone: func(_ tls.ConnectionState, err error) {
			c.end(PhaseTLS, "", err)
		},
		WroteRequest: func(info httptrace.WroteRequestInfo) {
			if info.Err != nil {
				c.Fail(info.Err)
				return
			}
			c.begin(PhaseUpgrade, "")
		},
		GotFirstResponseByte: func() {
			c.end(PhaseUpgrade, "", nil)
		},
	}
}

func (c *Collector) Fail(err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	if c.err == "" {
		c.err = err.Error()
	}
	c.mu.Unlock()
}

// Finish closes phases still open, marking them incomplete, and returns the
// timeline ordered by start time. It returns nil when nothing was traced.
func (c *Collector) Finish(err error) *Timeline {
	c.Fail(err)
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	for kind, p := range c.active {
		p.Duration = now.Sub(p.Start)
		p.Err = "incomplete"
		c.phases = append(c.phases, p)
		delete(c.active, kind)
	}
	if c.started.IsZero() && len(c.phases) == 0 {
		return nil
	}
	phases := append([]Phase(nil), c.phases...)
	sort.SliceStable(phases, func(i, j int) bool { return phases[i].Start.Before(phases[j].Start) })
	return &Timeline{
		Started:  c.started,
		Duration: now.Sub(c.started),
		Reused:   c.reused,
		Err:      c.err,
		Phases:   phases,
	}
}
