package bindings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/mizuview/internal/errdef"
)

type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

var decoders = map[Format]func([]byte, any) error{
	FormatTOML: toml.Unmarshal,
	FormatYAML: yaml.Unmarshal,
	FormatJSON: json.Unmarshal,
}

// Source is the file a Map was read from. Path is empty for the defaults.
type Source struct {
	Path   string
	Format Format
}

type ActionID string

// Binding is one key sequence of an action: a single key or a two-key chord.
type Binding struct {
	Action ActionID
	Steps  []string
}

// Map resolves keys to actions. A nil Map resolves nothing.
type Map struct {
	single   map[string]ActionID
	chords   map[string]map[string]ActionID
	byAction map[ActionID][]Binding
}

type fileLayout struct {
	Bindings map[string][]string `json:"bindings" toml:"bindings" yaml:"bindings"`
}

// Load reads bindings.toml, bindings.yaml or bindings.json from dir. The
// first file present wins; actions it names replace their default keys.
// Without any file the defaults are returned.
func Load(dir string) (*Map, Source, error) {
	for _, format := range []Format{FormatTOML, FormatYAML, FormatJSON} {
		src := Source{Path: filepath.Join(dir, "bindings."+string(format)), Format: format}
		data, err := os.ReadFile(src.Path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, Source{}, errdef.Wrap(errdef.CodeConfig, err, "read bindings %q", src.Path)
		}
		var layout fileLayout
		if err := decoders[format](data, &layout); err != nil {
			return nil, Source{}, errdef.Wrap(errdef.CodeConfig, err, "parse bindings %q", src.Path)
		}
		m, err := build(layout.Bindings)
		if err != nil {
			return nil, Source{}, errdef.Wrap(errdef.CodeConfig, err, "apply bindings %q", src.Path)
		}
		return m, src, nil
	}
	m, err := build(nil)
	if err != nil {
		return nil, Source{}, err
	}
	return m, Source{Format: FormatTOML}, nil
}

// DefaultMap returns the built-in keys.
func DefaultMap() *Map {
	m, err := build(nil)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *Map) MatchSingle(key string) (Binding, bool) {
	if m == nil {
		return Binding{}, false
	}
	id, ok := m.single[key]
	if !ok {
		return Binding{}, false
	}
	return Binding{Action: id, Steps: []string{key}}, true
}

// HasChordPrefix reports whether key opens a chord.
func (m *Map) HasChordPrefix(key string) bool {
	if m == nil {
		return false
	}
	_, ok := m.chords[key]
	return ok
}

func (m *Map) ResolveChord(prefix, next string) (Binding, bool) {
	if m == nil {
		return Binding{}, false
	}
	id, ok := m.chords[prefix][next]
	if !ok {
		return Binding{}, false
	}
	return Binding{Action: id, Steps: []string{prefix, next}}, true
}

// Bindings returns copies of the sequences bound to action.
func (m *Map) Bindings(action ActionID) []Binding {
	if m == nil {
		return nil
	}
	src := m.byAction[action]
	out := make([]Binding, len(src))
	for i, b := range src {
		out[i] = Binding{Action: b.Action, Steps: slices.Clone(b.Steps)}
	}
	return out
}

func build(overrides map[string][]string) (*Map, error) {
	keys := make(map[ActionID][][]string, len(definitions))
	for _, def := range definitions {
		keys[def.id] = def.defaults
	}
	for name, specs := range overrides {
		id := ActionID(name)
		if _, ok := definitionLookup[id]; !ok {
			return nil, fmt.Errorf("unknown action %q", name)
		}
		seqs := make([][]string, 0, len(specs))
		for _, spec := range specs {
			seq, err := parseSequence(spec)
			if err != nil {
				return nil, fmt.Errorf("action %q: %w", name, err)
			}
			seqs = append(seqs, seq)
		}
		keys[id] = seqs
	}

	m := &Map{
		single:   make(map[string]ActionID),
		chords:   make(map[string]map[string]ActionID),
		byAction: make(map[ActionID][]Binding, len(keys)),
	}
	// walk in declaration order so conflicts report deterministically
	for _, def := range definitions {
		for _, seq := range keys[def.id] {
			if err := m.add(def.id, seq); err != nil {
				return nil, err
			}
		}
	}
	for prefix := range m.chords {
		if id, ok := m.single[prefix]; ok {
			return nil, fmt.Errorf("key %q opens a chord and is also bound to %s", prefix, id)
		}
	}
	return m, nil
}

func (m *Map) add(id ActionID, seq []string) error {
	switch {
	case len(seq) == 0:
		return nil
	case len(seq) > 2:
		return fmt.Errorf("action %s: at most two keys per binding", id)
	case id == ActionQuit && len(seq) != 1:
		return fmt.Errorf("action %s must be a single key", id)
	}

	if len(seq) == 1 {
		if other, ok := m.single[seq[0]]; ok {
			return fmt.Errorf("key %q bound to both %s and %s", seq[0], other, id)
		}
		m.single[seq[0]] = id
	} else {
		next := m.chords[seq[0]]
		if next == nil {
			next = make(map[string]ActionID)
			m.chords[seq[0]] = next
		}
		if other, ok := next[seq[1]]; ok {
			return fmt.Errorf("chord %q bound to both %s and %s", strings.Join(seq, " "), other, id)
		}
		next[seq[1]] = id
	}
	m.byAction[id] = append(m.byAction[id], Binding{Action: id, Steps: slices.Clone(seq)})
	return nil
}

func parseSequence(spec string) ([]string, error) {
	fields := strings.Fields(spec)
	if len(fields) == 0 {
		return nil, errors.New("empty binding")
	}
	out := make([]string, len(fields))
	for i, f := range fields {
		step, err := normalizeStep(f)
		if err != nil {
			return nil, err
		}
		out[i] = step
	}
	return out, nil
}

var modifierAliases = map[string]string{
	"ctrl":    "ctrl",
	"control": "ctrl",
	"alt":     "alt",
	"option":  "alt",
	"shift":   "shift",
	"cmd":     "cmd",
	"command": "cmd",
	"meta":    "cmd",
}

var modifierOrder = []string{"ctrl", "alt", "shift", "cmd"}

// normalizeStep maps a key name to the form bubbletea reports, with
// modifiers in a fixed order ("Alt+Ctrl+X" becomes "ctrl+alt+x").
func normalizeStep(raw string) (string, error) {
	if raw == " " {
		return "space", nil
	}
	switch raw = strings.TrimSpace(raw); raw {
	case "":
		return "", errors.New("empty key step")
	case "?":
		return "shift+/", nil
	}
	if utf8.RuneCountInString(raw) == 1 {
		r, _ := utf8.DecodeRuneInString(raw)
		if unicode.IsUpper(r) {
			return "shift+" + string(unicode.ToLower(r)), nil
		}
		return raw, nil
	}

	mods := make(map[string]bool)
	var key []string
	for _, part := range strings.Split(strings.ToLower(raw), "+") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if mod, ok := modifierAliases[part]; ok {
			mods[mod] = true
			continue
		}
		key = append(key, part)
	}
	if len(key) == 0 {
		return "", fmt.Errorf("binding %q missing key", raw)
	}
	var out []string
	for _, mod := range modifierOrder {
		if mods[mod] {
			out = append(out, mod)
		}
	}
	return strings.Join(append(out, strings.Join(key, "+")), "+"), nil
}

// NormalizeKeyString converts a runtime key string for lookup. Unparseable
// keys yield "".
func NormalizeKeyString(raw string) string {
	step, err := normalizeStep(raw)
	if err != nil {
		return ""
	}
	return step
}
