package bindings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/unkn0wn-root/mizuview/internal/errdef"
)

func TestDefaultMapContainsExpectedBindings(t *testing.T) {
	m := DefaultMap()

	if binding, ok := m.MatchSingle("ctrl+c"); !ok || binding.Action != ActionQuit {
		t.Fatalf("expected ctrl+c -> ActionQuit, got %+v (ok=%v)", binding, ok)
	}
	if binding, ok := m.MatchSingle("/"); !ok || binding.Action != ActionFocusQuery {
		t.Fatalf("expected / -> ActionFocusQuery, got %+v (ok=%v)", binding, ok)
	}
	if binding, ok := m.MatchSingle(NormalizeKeyString("?")); !ok || binding.Action != ActionToggleHelp {
		t.Fatalf("expected ? -> ActionToggleHelp, got %+v (ok=%v)", binding, ok)
	}
	if binding, ok := m.ResolveChord("g", "s"); !ok || binding.Action != ActionShowStats {
		t.Fatalf("expected g s -> ActionShowStats, got %+v (ok=%v)", binding, ok)
	}
	if !m.HasChordPrefix("g") {
		t.Fatalf("expected HasChordPrefix('g') to be true")
	}
	if got := NormalizeKeyString(" "); got != "space" {
		t.Fatalf("expected space key, got %q", got)
	}
	if got := NormalizeKeyString("Alt+Ctrl+X"); got != "ctrl+alt+x" {
		t.Fatalf("expected ordered modifiers, got %q", got)
	}
	for raw, want := range map[string]string{
		"Control+Option+k": "ctrl+alt+k",
		"Command+s":        "cmd+s",
		"Meta+Shift+Enter": "shift+cmd+enter",
	} {
		if got := NormalizeKeyString(raw); got != want {
			t.Fatalf("NormalizeKeyString(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestLoadOverridesBindings(t *testing.T) {
	dir := t.TempDir()
	payload := `
[bindings]
copy_entry = ["ctrl+y"]
toggle_help = ["F1"]
`
	path := filepath.Join(dir, "bindings.toml")
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write bindings: %v", err)
	}

	m, src, err := Load(dir)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if src.Format != FormatTOML {
		t.Fatalf("expected toml source, got %q", src.Format)
	}
	if binding, ok := m.MatchSingle("y"); ok {
		t.Fatalf("expected y to be unbound, got %v", binding.Action)
	}
	if binding, ok := m.MatchSingle("ctrl+y"); !ok || binding.Action != ActionCopyEntry {
		t.Fatalf("expected ctrl+y -> copy_entry, got %+v (ok=%v)", binding, ok)
	}
	if binding, ok := m.MatchSingle("f1"); !ok || binding.Action != ActionToggleHelp {
		t.Fatalf("expected f1 -> toggle_help, got %+v (ok=%v)", binding, ok)
	}
}

func TestLoadYAMLBindings(t *testing.T) {
	dir := t.TempDir()
	payload := "bindings:\n  show_stats: [\"g x\"]\n"
	if err := os.WriteFile(filepath.Join(dir, "bindings.yaml"), []byte(payload), 0o644); err != nil {
		t.Fatalf("write bindings: %v", err)
	}
	m, src, err := Load(dir)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if src.Format != FormatYAML {
		t.Fatalf("expected yaml source, got %q", src.Format)
	}
	if binding, ok := m.ResolveChord("g", "x"); !ok || binding.Action != ActionShowStats {
		t.Fatalf("expected g x -> show_stats, got %+v (ok=%v)", binding, ok)
	}
}

func TestLoadRejectsConflictingBindings(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"duplicate single", "[bindings]\ncopy_entry = [\"x\"]\n"},
		{"unknown action", "[bindings]\nlaunch_rockets = [\"r\"]\n"},
		{"chord quit", "[bindings]\nquit = [\"g q\"]\n"},
		{"prefix clash", "[bindings]\ncopy_entry = [\"g\"]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, "bindings.toml"), []byte(tt.payload), 0o644); err != nil {
				t.Fatalf("write bindings: %v", err)
			}
			_, _, err := Load(dir)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errdef.Is(err, errdef.CodeConfig) {
				t.Fatalf("expected config error, got %v", err)
			}
		})
	}
}

func TestHelpListsActions(t *testing.T) {
	lines := DefaultMap().Help()
	if len(lines) != len(definitions) {
		t.Fatalf("expected %d help lines, got %d", len(definitions), len(lines))
	}
	if lines[0].Keys != "ctrl+c, ctrl+q" || lines[0].Description != "Quit" {
		t.Fatalf("unexpected first help line %+v", lines[0])
	}
}
