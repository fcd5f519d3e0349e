package trafficstats

import (
	"strings"
	"testing"

	"github.com/unkn0wn-root/mizuview/internal/traffic"
)

func sampleStats() []traffic.ProtocolStats {
	return []traffic.ProtocolStats{
		{Name: "HTTP", EntriesCount: 10, VolumeSizeBytes: 500, Methods: []traffic.MethodStats{
			{Name: "GET", EntriesCount: 7, VolumeSizeBytes: 100},
			{Name: "POST", EntriesCount: 3, VolumeSizeBytes: 400},
		}},
		{Name: "AMQP", EntriesCount: 20, VolumeSizeBytes: 2048},
	}
}

func TestModeFormat(t *testing.T) {
	cases := []struct {
		mode Mode
		v    int64
		want string
	}{
		{ModeRequests, 1234567, "1,234,567"},
		{ModeVolume, 500, "500 B"},
		{ModeVolume, 2048, "2.0 KiB"},
		{ModeVolume, -1, "0 B"},
	}
	for _, tc := range cases {
		if got := tc.mode.Format(tc.v); got != tc.want {
			t.Fatalf("%s(%d): expected %q, got %q", tc.mode, tc.v, tc.want, got)
		}
	}
	if ModeRequests.Next() != ModeVolume || ModeVolume.Next() != ModeRequests {
		t.Fatalf("mode toggle broken")
	}
}

func TestBreakdownAllProtocols(t *testing.T) {
	bars := Breakdown(sampleStats(), ModeRequests, AllProtocols)
	if len(bars) != 2 || bars[0].Label != "AMQP" || bars[0].Value != 20 {
		t.Fatalf("unexpected bars %+v", bars)
	}
	if Total(bars) != 30 {
		t.Fatalf("expected total 30, got %d", Total(bars))
	}
}

func TestBreakdownByMethod(t *testing.T) {
	bars := Breakdown(sampleStats(), ModeVolume, "http")
	if len(bars) != 2 || bars[0].Label != "POST" || bars[0].Value != 400 || bars[1].Label != "GET" {
		t.Fatalf("unexpected bars %+v", bars)
	}
	if got := Breakdown(sampleStats(), ModeVolume, "REDIS"); len(got) != 0 {
		t.Fatalf("expected no bars for absent protocol, got %+v", got)
	}
}

func TestProtocolsAppendsUnknown(t *testing.T) {
	got := Protocols([]traffic.ProtocolStats{{Name: "http"}, {Name: "Kafka"}})
	if got[0] != AllProtocols || got[len(got)-1] != "Kafka" || len(got) != len(defaultProtocols)+1 {
		t.Fatalf("unexpected protocols %v", got)
	}
}

func TestTimelineFiltersAndSorts(t *testing.T) {
	buckets := []traffic.TimelineStats{
		{Timestamp: 2000, Protocols: []traffic.ProtocolStats{{Name: "HTTP", EntriesCount: 4}, {Name: "AMQP", EntriesCount: 1}}},
		{Timestamp: 1000, Protocols: []traffic.ProtocolStats{{Name: "HTTP", EntriesCount: 2}}},
	}
	all := Timeline(buckets, ModeRequests, AllProtocols)
	if len(all) != 2 || all[0].Value != 2 || all[1].Value != 5 {
		t.Fatalf("unexpected timeline %+v", all)
	}
	amqp := Timeline(buckets, ModeRequests, "AMQP")
	if amqp[0].Value != 0 || amqp[1].Value != 1 {
		t.Fatalf("unexpected filtered timeline %+v", amqp)
	}
}

func TestRenderBars(t *testing.T) {
	out := RenderBars([]Bar{{Label: "GET", Value: 10}, {Label: "DELETE", Value: 5}}, ModeRequests, 10)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", out)
	}
	if lines[0] != "  GET    | ██████████ (10) 66.7%" {
		t.Fatalf("unexpected first line %q", lines[0])
	}
	if lines[1] != "  DELETE | █████░░░░░ (5 ) 33.3%" {
		t.Fatalf("unexpected second line %q", lines[1])
	}
}

func TestRenderBarSmallValueStillVisible(t *testing.T) {
	if got := renderBar(1, 1000, 10); got != "█░░░░░░░░░" {
		t.Fatalf("unexpected bar %q", got)
	}
	if got := renderBar(0, 0, 3); got != "░░░" {
		t.Fatalf("unexpected empty bar %q", got)
	}
}

func TestRenderEmpty(t *testing.T) {
	if !strings.Contains(RenderBars(nil, ModeRequests, 0), "no traffic") {
		t.Fatalf("expected placeholder")
	}
	if !strings.Contains(RenderTimeline(nil, ModeRequests, 0), "no timeline") {
		t.Fatalf("expected timeline placeholder")
	}
}
