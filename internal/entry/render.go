package entry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime"
	"strings"

	"github.com/alecthomas/chroma"
	"github.com/alecthomas/chroma/formatters"
	"github.com/alecthomas/chroma/lexers"
	"github.com/alecthomas/chroma/styles"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"

	"github.com/unkn0wn-root/mizuview/internal/traffic"
)

const (
	passMark = "✓"
	failMark = "✗"
)

type Styles struct {
	Title    lipgloss.Style
	Key      lipgloss.Style
	Value    lipgloss.Style
	Selector lipgloss.Style
	Passed   lipgloss.Style
	Failed   lipgloss.Style
	Muted    lipgloss.Style
	Error    lipgloss.Style
}

func DefaultStyles() Styles {
	return Styles{
		Title:    lipgloss.NewStyle().Bold(true),
		Key:      lipgloss.NewStyle().Faint(true),
		Value:    lipgloss.NewStyle(),
		Selector: lipgloss.NewStyle().Faint(true).Italic(true),
		Passed:   lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")),
		Failed:   lipgloss.NewStyle().Foreground(lipgloss.Color("#F44336")),
		Muted:    lipgloss.NewStyle().Faint(true),
		Error:    lipgloss.NewStyle().Foreground(lipgloss.Color("#F44336")),
	}
}

type RenderOptions struct {
	// Width truncates every output line when positive.
	Width int
	// Highlight enables chroma colouring of bodies; ChromaStyle names the
	// style and defaults to "monokai".
	Highlight   bool
	ChromaStyle string
	// Markdown renders text/markdown bodies with glamour.
	Markdown      bool
	MarkdownStyle string
	// Selectors shows each row's query selector next to its name.
	Selectors bool
	Styles    Styles
}

// RenderRepresentation renders one tab of a raw representation. A blank
// representation renders as the empty string.
func RenderRepresentation(raw, tab string, opts RenderOptions) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	e, err := Parse(raw)
	if err != nil {
		return "", err
	}
	v := View{Entry: e}
	return Render(v.Blocks(tab), opts), nil
}

func Render(blocks []Block, opts RenderOptions) string {
	if len(blocks) == 0 {
		return ""
	}
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		var out string
		switch b := b.(type) {
		case TableBlock:
			out = renderTable(b, opts)
		case BodyBlock:
			out = renderBody(b, opts)
		case RulesBlock:
			out = renderRules(b, opts)
		case ContractBlock:
			out = renderContract(b, opts)
		}
		if out != "" {
			parts = append(parts, out)
		}
	}
	return truncateLines(strings.Join(parts, "\n\n"), opts.Width)
}

func renderTable(b TableBlock, opts RenderOptions) string {
	st := opts.Styles
	var sb strings.Builder
	if b.Title != "" {
		sb.WriteString(st.Title.Render(b.Title))
		sb.WriteString("\n")
	}
	if b.Err != nil {
		sb.WriteString(st.Error.Render(b.Err.Error()))
		if b.Raw != "" {
			sb.WriteString("\n")
			sb.WriteString(b.Raw)
		}
		return sb.String()
	}
	if len(b.Rows) == 0 {
		sb.WriteString(st.Muted.Render("(empty)"))
		return sb.String()
	}

	keyWidth := 0
	for _, row := range b.Rows {
		if w := runewidth.StringWidth(row.Name); w > keyWidth {
			keyWidth = w
		}
	}
	for i, row := range b.Rows {
		if i > 0 {
			sb.WriteString("\n")
		}
		name := row.Name + strings.Repeat(" ", keyWidth-runewidth.StringWidth(row.Name))
		sb.WriteString(st.Key.Render(name))
		sb.WriteString("  ")
		sb.WriteString(st.Value.Render(row.Text()))
		if opts.Selectors && row.Selector != "" {
			sb.WriteString("  ")
			sb.WriteString(st.Selector.Render(row.Selector))
		}
	}
	return sb.String()
}

func renderBody(b BodyBlock, opts RenderOptions) string {
	st := opts.Styles
	text, err := b.Decoded()
	var sb strings.Builder
	if b.Title != "" {
		sb.WriteString(st.Title.Render(b.Title))
		sb.WriteString("\n")
	}
	if err != nil {
		sb.WriteString(st.Error.Render(err.Error()))
		sb.WriteString("\n")
	}
	if strings.TrimSpace(text) == "" {
		sb.WriteString(st.Muted.Render("(no body)"))
		return sb.String()
	}
	sb.WriteString(FormatBody(text, b.MimeType, opts))
	return sb.String()
}

// FormatBody pretty prints and optionally colours body text according to
// its MIME type.
func FormatBody(text, mimeType string, opts RenderOptions) string {
	media := baseMediaType(mimeType)
	if isJSON(media) || (media == "" && json.Valid([]byte(text))) {
		var buf bytes.Buffer
		if err := json.Indent(&buf, []byte(text), "", "  "); err == nil {
			text = buf.String()
			if media == "" {
				media = "application/json"
			}
		}
	}
	if opts.Markdown && media == "text/markdown" {
		style := opts.MarkdownStyle
		if style == "" {
			style = "dark"
		}
		if out, err := glamour.Render(text, style); err == nil {
			return strings.Trim(out, "\n")
		}
	}
	if opts.Highlight {
		return Highlight(text, media, opts.ChromaStyle)
	}
	return text
}

// Highlight colours source for a terminal. Unknown media types and any
// lexer failure return the input unchanged.
func Highlight(source, mediaType, style string) string {
	if isJSON(mediaType) {
		mediaType = "application/json"
	}
	lexer := lexers.MatchMimeType(mediaType)
	if lexer == nil {
		return source
	}
	lexer = chroma.Coalesce(lexer)
	if style == "" {
		style = "monokai"
	}
	it, err := lexer.Tokenise(nil, source)
	if err != nil {
		return source
	}
	var buf bytes.Buffer
	if err := formatters.Get("terminal256").Format(&buf, styles.Get(style), it); err != nil {
		return source
	}
	return buf.String()
}

func renderRules(b RulesBlock, opts RenderOptions) string {
	st := opts.Styles
	var sb strings.Builder
	sb.WriteString(st.Title.Render(b.Title))
	if len(b.Checks) == 0 {
		sb.WriteString("\n")
		sb.WriteString(st.Muted.Render("No rules could be applied to this request."))
		return sb.String()
	}
	for _, c := range b.Checks {
		sb.WriteString("\n")
		mark := st.Passed.Render(passMark)
		if !c.Passed {
			mark = st.Failed.Render(failMark)
		}
		sb.WriteString(mark)
		sb.WriteString(" ")
		name := c.Policy.Name
		if name == "" {
			name = c.Policy.Type
		}
		sb.WriteString(name)
		sb.WriteString(st.Muted.Render(" " + ruleDetail(c.Policy, b.Elapsed)))
	}
	return sb.String()
}

func ruleDetail(p traffic.RulePolicy, elapsed int64) string {
	if strings.EqualFold(p.Type, "latency") {
		return fmt.Sprintf("latency %dms (limit %dms)", elapsed, p.Latency)
	}
	fields := make([]string, 0, 3)
	if p.Type != "" {
		fields = append(fields, p.Type)
	}
	if p.Key != "" {
		fields = append(fields, p.Key)
	}
	if p.Value != "" {
		fields = append(fields, "= "+p.Value)
	}
	return strings.Join(fields, " ")
}

func renderContract(b ContractBlock, opts RenderOptions) string {
	st := opts.Styles
	var sb strings.Builder
	sb.WriteString(st.Title.Render(b.Title))
	sb.WriteString("\n")
	if b.Reason != "" {
		sb.WriteString(st.Failed.Render(b.Reason))
	}
	if strings.TrimSpace(b.Content) != "" {
		sb.WriteString("\n\n")
		if opts.Highlight {
			sb.WriteString(Highlight(b.Content, "text/x-yaml", opts.ChromaStyle))
		} else {
			sb.WriteString(b.Content)
		}
	}
	return sb.String()
}

func truncateLines(s string, width int) string {
	if width <= 0 || s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if ansi.StringWidth(line) > width {
			lines[i] = ansi.Truncate(line, width, "…")
		}
	}
	return strings.Join(lines, "\n")
}

func baseMediaType(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	media, _, err := mime.ParseMediaType(v)
	if err != nil {
		if i := strings.IndexByte(v, ';'); i >= 0 {
			v = v[:i]
		}
		return strings.ToLower(strings.TrimSpace(v))
	}
	return media
}

func isJSON(media string) bool {
	return media == "application/json" || strings.HasSuffix(media, "+json")
}
