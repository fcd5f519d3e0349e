package tabs

import "github.com/unkn0wn-root/mizuview/internal/traffic"

const (
	Request  = "Request"
	Response = "Response"
	Rules    = "Rules"
	Contract = "Contract"
)

// Flags are the facts about an entry that decide which panels exist.
type Flags struct {
	HasResponse    bool
	RulesEnabled   bool
	ContractStatus traffic.ContractStatus
}

type Descriptor struct {
	Label   string
	Visible func(Flags) bool
}

var catalogue = []Descriptor{
	{Label: Request, Visible: func(Flags) bool { return true }},
	{Label: Response, Visible: func(f Flags) bool { return f.HasResponse }},
	{Label: Rules, Visible: func(f Flags) bool { return f.RulesEnabled }},
	{Label: Contract, Visible: func(f Flags) bool { return f.ContractStatus == traffic.ContractBreached }},
}

// Build returns the visible tab labels in display order. Request is always
// first.
func Build(flags Flags) []string {
	out := make([]string, 0, len(catalogue))
	for _, d := range catalogue {
		if d.Visible(flags) {
			out = append(out, d.Label)
		}
	}
	return out
}

// Lookup finds a descriptor by label.
func Lookup(label string) (Descriptor, bool) {
	for _, d := range catalogue {
		if d.Label == label {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Controller tracks the active tab by label so that rebuilding the list
// never shifts the selection onto a different panel.
type Controller struct {
	labels  []string
	index   map[string]int
	current string
}

func NewController(flags Flags) *Controller {
	c := &Controller{}
	c.Rebuild(flags)
	return c
}

func (c *Controller) Rebuild(flags Flags) {
	c.labels = Build(flags)
	c.index = make(map[string]int, len(c.labels))
	for i, label := range c.labels {
		c.index[label] = i
	}
	if _, ok := c.index[c.current]; !ok {
		c.current = c.labels[0]
	}
}

func (c *Controller) Labels() []string {
	return append([]string(nil), c.labels...)
}

// Select sets the active label. Labels not in the list are kept as the
// selection but Active resolves them to the first tab.
func (c *Controller) Select(label string) {
	c.current = label
}

func (c *Controller) Active() string {
	if _, ok := c.index[c.current]; ok {
		return c.current
	}
	return c.labels[0]
}

func (c *Controller) ActiveIndex() int {
	if i, ok := c.index[c.current]; ok {
		return i
	}
	return 0
}

func (c *Controller) Next() string {
	i := (c.ActiveIndex() + 1) % len(c.labels)
	c.current = c.labels[i]
	return c.current
}

func (c *Controller) Prev() string {
	i := c.ActiveIndex() - 1
	if i < 0 {
		i = len(c.labels) - 1
	}
	c.current = c.labels[i]
	return c.current
}
