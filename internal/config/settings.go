package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/mizuview/internal/errdef"
)

const (
	SettingsFormatTOML SettingsFormat = "toml"
	SettingsFormatYAML SettingsFormat = "yaml"
	SettingsFormatJSON SettingsFormat = "json"
)

const (
	DefaultURL         = "http://localhost:8899"
	DefaultDialTimeout = 15 * time.Second
	DefaultMaxEntries  = 10000
	DefaultNamespace   = "mizu"
)

type Settings struct {
	URL          string         `json:"url"           toml:"url"           yaml:"url"`
	Token        string         `json:"token"         toml:"token"         yaml:"token"`
	DefaultTheme string         `json:"default_theme" toml:"default_theme" yaml:"default_theme"`
	Features     Features       `json:"features"      toml:"features"      yaml:"features"`
	Feed         FeedSettings   `json:"feed"          toml:"feed"          yaml:"feed"`
	Kube         KubeSettings   `json:"kube"          toml:"kube"          yaml:"kube"`
	Layout       LayoutSettings `json:"layout"        toml:"layout"        yaml:"layout"`
}

// Features replaces the browser globals of the web UI with explicit flags.
type Features struct {
	OASEnabled        bool `json:"oas_enabled"         toml:"oas_enabled"         yaml:"oas_enabled"`
	ServiceMapEnabled bool `json:"service_map_enabled" toml:"service_map_enabled" yaml:"service_map_enabled"`
}

type FeedSettings struct {
	DialTimeout string `json:"dial_timeout" toml:"dial_timeout" yaml:"dial_timeout"`
	MaxEntries  int    `json:"max_entries"  toml:"max_entries"  yaml:"max_entries"`
	Query       string `json:"query"        toml:"query"        yaml:"query"`
}

func (f FeedSettings) DialTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(f.DialTimeout))
	if err != nil || d <= 0 {
		return DefaultDialTimeout
	}
	return d
}

type KubeSettings struct {
	Enabled   bool   `json:"enabled"   toml:"enabled"   yaml:"enabled"`
	Namespace string `json:"namespace" toml:"namespace" yaml:"namespace"`
	Config    string `json:"config"    toml:"config"    yaml:"config"`
	Context   string `json:"context"   toml:"context"   yaml:"context"`
}

type SettingsFormat string
type SettingsHandle struct {
	Path   string
	Format SettingsFormat
}

func Defaults() Settings {
	return Settings{
		URL: DefaultURL,
		Feed: FeedSettings{
			DialTimeout: DefaultDialTimeout.String(),
			MaxEntries:  DefaultMaxEntries,
		},
		Kube:   KubeSettings{Namespace: DefaultNamespace},
		Layout: DefaultLayoutSettings(),
	}
}

// Normalise fills unset values with defaults.
func Normalise(s Settings) Settings {
	def := Defaults()
	s.URL = strings.TrimSpace(s.URL)
	if s.URL == "" {
		s.URL = def.URL
	}
	s.Token = strings.TrimSpace(s.Token)
	if strings.TrimSpace(s.Feed.DialTimeout) == "" {
		s.Feed.DialTimeout = def.Feed.DialTimeout
	}
	if s.Feed.MaxEntries <= 0 {
		s.Feed.MaxEntries = def.Feed.MaxEntries
	}
	if strings.TrimSpace(s.Kube.Namespace) == "" {
		s.Kube.Namespace = def.Kube.Namespace
	}
	s.Layout = NormaliseLayoutSettings(s.Layout)
	return s
}

// tries TOML, then YAML, then JSON; returns defaults if none exists.
// parse errors fail immediately but missing files just skip to the next format.
func LoadSettings() (Settings, SettingsHandle, error) {
	dir := Dir()
	candidates := []SettingsHandle{
		{Path: filepath.Join(dir, "settings.toml"), Format: SettingsFormatTOML},
		{Path: filepath.Join(dir, "settings.yaml"), Format: SettingsFormatYAML},
		{Path: filepath.Join(dir, "settings.yml"), Format: SettingsFormatYAML},
		{Path: filepath.Join(dir, "settings.json"), Format: SettingsFormatJSON},
	}

	var accumulated error
	for _, candidate := range candidates {
		data, err := os.ReadFile(candidate.Path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			accumulated = errors.Join(
				accumulated,
				errdef.Wrap(errdef.CodeConfig, err, "read settings %q", candidate.Path),
			)
			continue
		}

		settings, err := decodeSettings(data, candidate.Format)
		if err != nil {
			return Settings{}, SettingsHandle{}, errdef.Wrap(
				errdef.CodeConfig,
				err,
				"parse settings %q",
				candidate.Path,
			)
		}
		return Normalise(settings), candidate, nil
	}

	if accumulated != nil {
		return Settings{}, SettingsHandle{}, accumulated
	}

	return Defaults(), SettingsHandle{
		Path:   candidates[0].Path,
		Format: SettingsFormatTOML,
	}, nil
}

func decodeSettings(data []byte, format SettingsFormat) (Settings, error) {
	var settings Settings
	switch format {
	case SettingsFormatTOML:
		if err := toml.Unmarshal(data, &settings); err != nil {
			return Settings{}, err
		}
	case SettingsFormatYAML:
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&settings); err != nil && !errors.Is(err, io.EOF) {
			return Settings{}, err
		}
	case SettingsFormatJSON:
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&settings); err != nil {
			return Settings{}, err
		}
	default:
		return Settings{}, fmt.Errorf("unsupported settings format %q", format)
	}
	return settings, nil
}

func SaveSettings(settings Settings, handle SettingsHandle) error {
	settings.Layout = NormaliseLayoutSettings(settings.Layout)
	path := handle.Path
	format := handle.Format
	if path == "" {
		path = filepath.Join(Dir(), "settings.toml")
	}
	if format == "" {
		format = SettingsFormatTOML
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errdef.Wrap(errdef.CodeConfig, err, "ensure settings directory")
	}

	data, err := encodeSettings(settings, format)
	if err != nil {
		return errdef.Wrap(errdef.CodeConfig, err, "encode settings")
	}

	if err := writeFileAtomic(path, data, 0o600); err != nil {
		return errdef.Wrap(errdef.CodeConfig, err, "write settings %q", path)
	}
	return nil
}

// SaveLayout stores layout in the settings file, leaving the rest of the
// file as it was. Values that came from the environment or flags are not
// written back.
func SaveLayout(layout LayoutSettings) error {
	settings, handle, err := LoadSettings()
	if err != nil {
		return err
	}
	settings.Layout = layout
	return SaveSettings(settings, handle)
}

func encodeSettings(settings Settings, format SettingsFormat) ([]byte, error) {
	switch format {
	case SettingsFormatTOML:
		return toml.Marshal(settings)
	case SettingsFormatYAML:
		return yaml.Marshal(settings)
	case SettingsFormatJSON:
		buffer := &bytes.Buffer{}
		encoder := json.NewEncoder(buffer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(settings); err != nil {
			return nil, err
		}
		return buffer.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported settings format %q", format)
	}
}

// write to temp file then rename so readers never see partial/corrupt data.
func writeFileAtomic(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".mizuview-*.tmp")
	if err != nil {
		return err
	}

	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		closeErr := tmp.Close()
		if closeErr != nil {
			return errors.Join(err, closeErr)
		}
		return err
	}

	if err := tmp.Chmod(perm); err != nil {
		closeErr := tmp.Close()
		if closeErr != nil {
			return errors.Join(err, closeErr)
		}
		return err
	}

	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpPath, path)
}
