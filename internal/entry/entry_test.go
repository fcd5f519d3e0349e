package entry

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"

	"github.com/unkn0wn-root/mizuview/internal/errdef"
	"github.com/unkn0wn-root/mizuview/internal/tabs"
	"github.com/unkn0wn-root/mizuview/internal/traffic"
)

const sampleRepresentation = `{
  "request": [
    {"type": "table", "title": "Details", "data": "[{\"name\":\"Method\",\"value\":\"GET\",\"selector\":\"request.method\"},{\"name\":\"Path\",\"value\":\"/health\",\"selector\":\"request.path\"},{\"name\":\"Port\",\"value\":8080}]"},
    {"type": "body", "title": "Body", "encoding": "base64", "mime_type": "application/json", "data": "eyJvayI6dHJ1ZX0="},
    {"type": "graph", "data": "ignored"}
  ],
  "response": [
    {"type": "table", "title": "Headers", "data": "[{\"name\":\"Content-Type\",\"value\":\"application/json\"}]"}
  ]
}`

func TestParseEmptyRepresentations(t *testing.T) {
	for _, raw := range []string{"", "   ", "null", "\nnull\n"} {
		e, err := Parse(raw)
		if err != nil {
			t.Fatalf("Parse(%q): %v", raw, err)
		}
		if !e.IsEmpty() || e.HasResponse() {
			t.Fatalf("Parse(%q) expected empty entry, got %+v", raw, e)
		}
	}
}

func TestParseMalformedRepresentation(t *testing.T) {
	_, err := Parse(`{"request": [`)
	if !errdef.Is(err, errdef.CodeParse) {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestParseResponsePresence(t *testing.T) {
	e, err := Parse(`{"request":[],"response":[]}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !e.HasResponse() {
		t.Fatalf("empty response array still counts as a response")
	}
	e, err = Parse(`{"request":[],"response":null}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if e.HasResponse() {
		t.Fatalf("null response must not count")
	}
}

func TestSectionsPreserveOrderAndSkipUnknown(t *testing.T) {
	e, err := Parse(sampleRepresentation)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	blocks := Sections(e.Request)
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(blocks))
	}
	table, ok := blocks[0].(TableBlock)
	if !ok {
		t.Fatalf("expected table first, got %T", blocks[0])
	}
	if table.Title != "Details" || len(table.Rows) != 3 {
		t.Fatalf("unexpected table %+v", table)
	}
	if table.Rows[0].Selector != "request.method" || table.Rows[2].Text() != "8080" {
		t.Fatalf("unexpected rows %+v", table.Rows)
	}
	body, ok := blocks[1].(BodyBlock)
	if !ok {
		t.Fatalf("expected body second, got %T", blocks[1])
	}
	if body.Encoding != "base64" || body.MimeType != "application/json" {
		t.Fatalf("body hints lost: %+v", body)
	}
}

func TestSectionsEmptyInput(t *testing.T) {
	if got := Sections(nil); len(got) != 0 {
		t.Fatalf("expected no blocks, got %d", len(got))
	}
	if got := Render(nil, RenderOptions{}); got != "" {
		t.Fatalf("expected empty render, got %q", got)
	}
}

func TestSectionsBadTableData(t *testing.T) {
	blocks := Sections([]Section{{Type: SectionTable, Title: "Broken", Data: "{nope"}})
	tb := blocks[0].(TableBlock)
	if tb.Err == nil || tb.Raw != "{nope" {
		t.Fatalf("expected decode error with raw data, got %+v", tb)
	}
	out := Render(blocks, RenderOptions{})
	if !strings.Contains(out, "{nope") {
		t.Fatalf("raw data missing from output: %q", out)
	}
}

func TestBodyDecoded(t *testing.T) {
	b := BodyBlock{Data: base64.StdEncoding.EncodeToString([]byte("hello")), Encoding: "base64"}
	got, err := b.Decoded()
	if err != nil || got != "hello" {
		t.Fatalf("decoded = %q, %v", got, err)
	}

	b = BodyBlock{Data: "%%%", Encoding: "base64"}
	got, err = b.Decoded()
	if err == nil || got != "%%%" {
		t.Fatalf("expected error and raw data, got %q, %v", got, err)
	}
}

func TestRenderRepresentation(t *testing.T) {
	out, err := RenderRepresentation("", tabs.Request, RenderOptions{})
	if err != nil || out != "" {
		t.Fatalf("blank representation: %q, %v", out, err)
	}

	out, err = RenderRepresentation(sampleRepresentation, tabs.Request, RenderOptions{Selectors: true})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	plain := ansi.Strip(out)
	details := strings.Index(plain, "Details")
	body := strings.Index(plain, `"ok": true`)
	if details < 0 || body < 0 || details > body {
		t.Fatalf("expected table before pretty body, got:\n%s", plain)
	}
	if !strings.Contains(plain, "request.method") {
		t.Fatalf("selectors missing:\n%s", plain)
	}

	out, err = RenderRepresentation(sampleRepresentation, tabs.Response, RenderOptions{})
	if err != nil {
		t.Fatalf("render response: %v", err)
	}
	if !strings.Contains(ansi.Strip(out), "Content-Type") {
		t.Fatalf("response headers missing:\n%s", out)
	}

	if _, err := RenderRepresentation("{", tabs.Request, RenderOptions{}); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestRenderTruncatesWideLines(t *testing.T) {
	blocks := []Block{BodyBlock{Data: strings.Repeat("x", 50), MimeType: "text/plain"}}
	out := Render(blocks, RenderOptions{Width: 10})
	for _, line := range strings.Split(out, "\n") {
		if ansi.StringWidth(line) > 10 {
			t.Fatalf("line wider than 10: %q", line)
		}
	}
}

func TestHighlightUnknownMediaType(t *testing.T) {
	src := "plain words"
	if got := Highlight(src, "application/x-unknown-thing", ""); got != src {
		t.Fatalf("expected passthrough, got %q", got)
	}
	got := Highlight(`{"a":1}`, "application/json", "")
	if ansi.Strip(got) != `{"a":1}` {
		t.Fatalf("highlight changed content: %q", ansi.Strip(got))
	}
}

func TestRulesLatencyCheck(t *testing.T) {
	rb := Rules([]traffic.RuleMatch{
		{Matched: true, Rule: traffic.RulePolicy{Type: "latency", Latency: 100, Name: "fast"}},
		{Matched: true, Rule: traffic.RulePolicy{Type: "latency", Latency: 10, Name: "faster"}},
		{Matched: false, Rule: traffic.RulePolicy{Type: "header", Key: "X-Id", Name: "has id"}},
	}, 50)
	if !rb.Checks[0].Passed || rb.Checks[1].Passed || rb.Checks[2].Passed {
		t.Fatalf("unexpected checks %+v", rb.Checks)
	}
	out := ansi.Strip(Render([]Block{rb}, RenderOptions{}))
	if !strings.Contains(out, "latency 50ms (limit 10ms)") || !strings.Contains(out, "has id") {
		t.Fatalf("unexpected rules output:\n%s", out)
	}
}

func TestViewBlocksFollowTabs(t *testing.T) {
	v, err := NewView(traffic.FullEntry{
		Representation: sampleRepresentation,
		IsRulesEnabled: true,
		ContractStatus: traffic.ContractBreached,
		ContractReason: "response status 500 not documented",
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if got := tabs.Build(v.Flags()); len(got) != 4 {
		t.Fatalf("expected four tabs, got %v", got)
	}
	contract := v.Blocks(tabs.Contract)
	if len(contract) != 1 {
		t.Fatalf("expected contract block")
	}
	if cb := contract[0].(ContractBlock); cb.Reason == "" {
		t.Fatalf("contract reason missing")
	}

	v.Full.ContractStatus = traffic.ContractPassed
	if got := v.Blocks(tabs.Contract); got != nil {
		t.Fatalf("hidden tab must render nothing, got %v", got)
	}
	if got := v.Blocks("Unknown"); got != nil {
		t.Fatalf("unknown tab must render nothing")
	}
}
