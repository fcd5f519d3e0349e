package trafficstats

import (
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/unkn0wn-root/mizuview/internal/traffic"
)

type Mode int

const (
	ModeRequests Mode = iota
	ModeVolume
)

func (m Mode) String() string {
	if m == ModeVolume {
		return "VOLUME"
	}
	return "REQUESTS"
}

func (m Mode) Next() Mode {
	if m == ModeVolume {
		return ModeRequests
	}
	return ModeVolume
}

// Format renders a value the way the mode counts it.
func (m Mode) Format(v int64) string {
	if m == ModeVolume {
		if v < 0 {
			v = 0
		}
		return humanize.IBytes(uint64(v))
	}
	return humanize.Comma(v)
}

func (m Mode) value(entries, volume int64) int64 {
	if m == ModeVolume {
		return volume
	}
	return entries
}

const AllProtocols = "ALL PROTOCOLS"

var defaultProtocols = []string{AllProtocols, "gRPC", "REDIS", "HTTP", "GQL", "AMQP", "KFAKA"}

// Protocols returns the filter choices: the default list followed by any
// protocol the server reported that the list does not already name.
func Protocols(stats []traffic.ProtocolStats) []string {
	out := append([]string(nil), defaultProtocols...)
	seen := make(map[string]bool, len(out))
	for _, p := range out {
		seen[strings.ToLower(p)] = true
	}
	for _, s := range stats {
		if s.Name == "" || seen[strings.ToLower(s.Name)] {
			continue
		}
		seen[strings.ToLower(s.Name)] = true
		out = append(out, s.Name)
	}
	return out
}

type Bar struct {
	Label string
	Value int64
	Color string
}

// Breakdown returns one bar per protocol for AllProtocols, otherwise one bar
// per method of the named protocol. Bars are sorted by value, largest first.
func Breakdown(stats []traffic.ProtocolStats, mode Mode, protocol string) []Bar {
	var bars []Bar
	if protocol == "" || protocol == AllProtocols {
		for _, s := range stats {
			bars = append(bars, Bar{Label: s.Name, Value: mode.value(s.EntriesCount, s.VolumeSizeBytes), Color: s.Color})
		}
	} else {
		for _, s := range stats {
			if !strings.EqualFold(s.Name, protocol) {
				continue
			}
			for _, m := range s.Methods {
				bars = append(bars, Bar{Label: m.Name, Value: mode.value(m.EntriesCount, m.VolumeSizeBytes), Color: s.Color})
			}
		}
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Value > bars[j].Value })
	return bars
}

type Point struct {
	At    time.Time
	Value int64
}

// Timeline sums each bucket for the selected protocol, or for all of them.
func Timeline(buckets []traffic.TimelineStats, mode Mode, protocol string) []Point {
	points := make([]Point, 0, len(buckets))
	for _, b := range buckets {
		var total int64
		for _, p := range b.Protocols {
			if protocol != "" && protocol != AllProtocols && !strings.EqualFold(p.Name, protocol) {
				continue
			}
			total += mode.value(p.EntriesCount, p.VolumeSizeBytes)
		}
		points = append(points, Point{At: b.Time(), Value: total})
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].At.Before(points[j].At) })
	return points
}

func Total(bars []Bar) int64 {
	var sum int64
	for _, b := range bars {
		sum += b.Value
	}
	return sum
}
