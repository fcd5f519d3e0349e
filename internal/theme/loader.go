package theme

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatBuiltin Format = "builtin"
	FormatJSON    Format = "json"
	FormatTOML    Format = "toml"
	FormatYAML    Format = "yaml"
)

var extFormats = map[string]Format{
	".toml": FormatTOML,
	".json": FormatJSON,
	".yaml": FormatYAML,
	".yml":  FormatYAML,
}

// Definition is a theme with the key it is selected by.
type Definition struct {
	Key      string
	Name     string
	Metadata Metadata
	Theme    Theme
	Format   Format
	Path     string
}

// Catalog keeps the built-in themes first, then user themes by name.
type Catalog struct {
	defs  []Definition
	byKey map[string]int
}

func (c Catalog) All() []Definition {
	return append([]Definition(nil), c.defs...)
}

func (c Catalog) Keys() []string {
	keys := make([]string, len(c.defs))
	for i, def := range c.defs {
		keys[i] = def.Key
	}
	return keys
}

func (c Catalog) Get(key string) (Definition, bool) {
	i, ok := c.byKey[key]
	if !ok {
		return Definition{}, false
	}
	return c.defs[i], true
}

// Resolve returns the theme for key, or the default theme when key is
// empty or unknown.
func (c Catalog) Resolve(key string) Definition {
	if def, ok := c.Get(strings.ToLower(strings.TrimSpace(key))); ok {
		return def
	}
	if def, ok := c.Get("default"); ok {
		return def
	}
	return builtins()[0]
}

func (c *Catalog) add(def Definition) {
	if c.byKey == nil {
		c.byKey = make(map[string]int)
	}
	base, key := def.Key, def.Key
	for n := 1; ; n++ {
		if _, taken := c.byKey[key]; !taken {
			break
		}
		key = fmt.Sprintf("%s-%d", base, n)
	}
	def.Key = key
	c.byKey[key] = len(c.defs)
	c.defs = append(c.defs, def)
}

func builtins() []Definition {
	return []Definition{
		{Key: "default", Name: "Default", Metadata: Metadata{Name: "Default"}, Theme: DefaultTheme(), Format: FormatBuiltin},
		{Key: "light", Name: "Light", Metadata: Metadata{Name: "Light"}, Theme: LightTheme(), Format: FormatBuiltin},
	}
}

// LoadCatalog reads every theme file in dirs on top of the default theme.
// Missing directories are skipped. Files that fail to load are reported in
// the returned error while the rest of the catalog stays usable.
func LoadCatalog(dirs []string) (Catalog, error) {
	var (
		catalog Catalog
		user    []Definition
		errs    []error
	)
	for _, def := range builtins() {
		catalog.add(def)
	}

	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		entries, err := os.ReadDir(dir)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("themes: read directory %q: %w", dir, err))
			continue
		}
		for _, entry := range entries {
			format, ok := extFormats[strings.ToLower(filepath.Ext(entry.Name()))]
			if entry.IsDir() || !ok {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			def, err := readTheme(path, format)
			if err != nil {
				errs = append(errs, fmt.Errorf("themes: load %q: %w", path, err))
				continue
			}
			user = append(user, def)
		}
	}

	sort.SliceStable(user, func(i, j int) bool {
		return strings.ToLower(user[i].Name) < strings.ToLower(user[j].Name)
	})
	for _, def := range user {
		catalog.add(def)
	}
	return catalog, errors.Join(errs...)
}

func readTheme(path string, format Format) (Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, err
	}
	spec, err := decodeSpec(data, format)
	if err != nil {
		return Definition{}, err
	}
	th, err := ApplySpec(DefaultTheme(), spec)
	if err != nil {
		return Definition{}, err
	}

	def := Definition{Theme: th, Format: format, Path: path}
	if spec.Metadata != nil {
		def.Metadata = *spec.Metadata
	}
	def.Key = slug(def.Metadata.Name)
	if def.Key == "" {
		def.Key = slug(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	}
	if def.Key == "" {
		def.Key = "theme"
	}
	def.Name = strings.TrimSpace(def.Metadata.Name)
	if def.Name == "" {
		def.Name = def.Key
	}
	return def, nil
}

// decodeSpec rejects unknown fields so typos in a theme file surface.
func decodeSpec(data []byte, format Format) (ThemeSpec, error) {
	var spec ThemeSpec
	var err error
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&spec)
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&spec)
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&spec)
	default:
		err = fmt.Errorf("unsupported format %q", format)
	}
	return spec, err
}

func slug(name string) string {
	fields := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	return strings.Join(fields, "-")
}
