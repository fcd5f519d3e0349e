package openapi

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"

	"github.com/unkn0wn-root/mizuview/internal/errdef"
)

// Source is the part of the API client the catalogue reads from.
type Source interface {
	GetOASServices(ctx context.Context) ([]string, error)
	GetOASByService(ctx context.Context, serviceID string) (json.RawMessage, error)
}

// Catalogue lists inferred service specs. It is inert unless enabled, the
// same way the server only serves them with the OAS feature switched on.
type Catalogue struct {
	src     Source
	enabled bool

	mu    sync.Mutex
	specs map[string]*Spec
}

func NewCatalogue(src Source, enabled bool) *Catalogue {
	return &Catalogue{src: src, enabled: enabled, specs: make(map[string]*Spec)}
}

func (c *Catalogue) Enabled() bool {
	return c != nil && c.enabled && c.src != nil
}

func (c *Catalogue) Services(ctx context.Context) ([]string, error) {
	if !c.Enabled() {
		return nil, errdef.New(errdef.CodeConfig, "OpenAPI catalogue is disabled")
	}
	services, err := c.src.GetOASServices(ctx)
	if err != nil {
		return nil, err
	}
	out := append([]string(nil), services...)
	sort.Strings(out)
	return out, nil
}

// Spec fetches and parses one service's document; parsed specs are kept
// until Reset.
func (c *Catalogue) Spec(ctx context.Context, service string) (*Spec, error) {
	if !c.Enabled() {
		return nil, errdef.New(errdef.CodeConfig, "OpenAPI catalogue is disabled")
	}
	c.mu.Lock()
	spec, ok := c.specs[service]
	c.mu.Unlock()
	if ok {
		return spec, nil
	}

	raw, err := c.src.GetOASByService(ctx, service)
	if err != nil {
		return nil, err
	}
	spec, err = Parse(ctx, service, raw)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.specs[service] = spec
	c.mu.Unlock()
	return spec, nil
}

func (c *Catalogue) Reset() {
	c.mu.Lock()
	c.specs = make(map[string]*Spec)
	c.mu.Unlock()
}

// Markdown describes a spec as a markdown document.
func Markdown(spec *Spec) string {
	if spec == nil {
		return ""
	}
	var b strings.Builder
	title := spec.Title
	if title == "" {
		title = spec.Service
	}
	fmt.Fprintf(&b, "# %s", title)
	if spec.Version != "" {
		fmt.Fprintf(&b, " (%s)", spec.Version)
	}
	b.WriteString("\n\n")
	if d := strings.TrimSpace(spec.Description); d != "" {
		b.WriteString(d)
		b.WriteString("\n\n")
	}
	for _, srv := range spec.Servers {
		fmt.Fprintf(&b, "- server `%s`\n", srv.URL)
	}
	if len(spec.Servers) > 0 {
		b.WriteString("\n")
	}
	for _, op := range spec.Operations {
		fmt.Fprintf(&b, "## %s `%s`\n\n", op.Method, op.Path)
		if op.Deprecated {
			b.WriteString("_deprecated_\n\n")
		}
		if op.Summary != "" {
			b.WriteString(op.Summary)
			b.WriteString("\n\n")
		}
		if d := strings.TrimSpace(op.Description); d != "" && d != op.Summary {
			b.WriteString(d)
			b.WriteString("\n\n")
		}
		for _, p := range op.Parameters {
			req := ""
			if p.Required {
				req = " (required)"
			}
			fmt.Fprintf(&b, "- %s `%s`%s\n", p.Location, p.Name, req)
		}
		for _, r := range op.Responses {
			fmt.Fprintf(&b, "- **%s** %s\n", r.StatusCode, r.Description)
		}
		if len(op.Parameters) > 0 || len(op.Responses) > 0 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Render draws the spec for the terminal. style is a glamour style name;
// when rendering fails the plain markdown is returned.
func Render(spec *Spec, style string, width int) string {
	md := Markdown(spec)
	if md == "" {
		return ""
	}
	if style == "" {
		style = "dark"
	}
	opts := []glamour.TermRendererOption{glamour.WithStandardStyle(style)}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}
