package nettrace

import (
	"log/slog"
	"strconv"
	"time"
)

type PhaseKind string

const (
	PhaseDNS     PhaseKind = "dns"
	PhaseConnect PhaseKind = "connect"
	PhaseTLS     PhaseKind = "tls"
	// PhaseUpgrade runs from the request being written to the first byte of
	// the server's answer; for a websocket dial that is the upgrade round trip.
	PhaseUpgrade PhaseKind = "upgrade"
)

type Phase struct {
	Kind     PhaseKind
	Start    time.Time
	Duration time.Duration
	Addr     string
	Err      string
}

// Timeline is the outcome of one traced dial.
type Timeline struct {
	Started  time.Time
	Duration time.Duration
	Reused   bool
	Err      string
	Phases   []Phase
}

// Phase returns the first recorded phase of kind.
func (tl *Timeline) Phase(kind PhaseKind) (Phase, bool) {
	if tl == nil {
		return Phase{}, false
	}
	for _, p := range tl.Phases {
		if p.Kind == kind {
			return p, true
		}
	}
	return Phase{}, false
}

// Attributes flattens the timeline for span events. Durations are in
// milliseconds.
func (tl *Timeline) Attributes() map[string]string {
	if tl == nil {
		return nil
	}
	out := map[string]string{
		"total_ms": formatMillis(tl.Duration),
		"reused":   strconv.FormatBool(tl.Reused),
	}
	for _, p := range tl.Phases {
		out[string(p.Kind)+"_ms"] = formatMillis(p.Duration)
		if p.Addr != "" {
			out[string(p.Kind)+"_addr"] = p.Addr
		}
	}
	if tl.Err != "" {
		out["error"] = tl.Err
	}
	return out
}

// LogValue lets a timeline be passed straight to slog.
func (tl *Timeline) LogValue() slog.Value {
	if tl == nil {
		return slog.StringValue("none")
	}
	attrs := make([]slog.Attr, 0, len(tl.Phases)+2)
	attrs = append(attrs, slog.Duration("total", tl.Duration))
	for _, p := range tl.Phases {
		attrs = append(attrs, slog.Duration(string(p.Kind), p.Duration))
	}
	if tl.Err != "" {
		attrs = append(attrs, slog.String("err", tl.Err))
	}
	return slog.GroupValue(attrs...)
}

func formatMillis(d time.Duration) string {
	return strconv.FormatFloat(float64(d)/float64(time.Millisecond), 'f', 1, 64)
}
