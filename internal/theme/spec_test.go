package theme

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func strPtr(value string) *string {
	return &value
}

func boolPtr(value bool) *bool {
	return &value
}

func TestApplySpecOverridesStylesAndColors(t *testing.T) {
	base := DefaultTheme()
	spec := ThemeSpec{
		Colors: ColorsSpec{
			PaneActiveForeground: strPtr("#123456"),
			MethodDELETE:         strPtr("#ff0000"),
			Status4xx:            strPtr("#ffff00"),
		},
		Styles: StylesSpec{
			ListItemTitle: &StyleSpec{Foreground: strPtr("#222233")},
			TabActive:     &StyleSpec{Bold: boolPtr(false)},
			PaneBorder:    &StyleSpec{BorderStyle: strPtr("double")},
		},
	}

	updated, err := ApplySpec(base, spec)
	if err != nil {
		t.Fatalf("ApplySpec returned error: %v", err)
	}
	if got := updated.PaneActiveForeground; got != "#123456" {
		t.Errorf("expected pane active foreground %q, got %q", "#123456", got)
	}
	if got := updated.MethodColors.For("DELETE"); got != "#ff0000" {
		t.Errorf("expected delete colour override, got %q", got)
	}
	if got := updated.StatusColors.For(404); got != "#ffff00" {
		t.Errorf("expected 4xx colour override, got %q", got)
	}
	if got := updated.ListItemTitle.GetForeground(); got != lipgloss.Color("#222233") {
		t.Errorf("expected list item title override, got %v", got)
	}
	if updated.TabActive.GetBold() {
		t.Errorf("expected tab_active bold disabled")
	}
	if updated.PaneBorder.GetBorderStyle() != lipgloss.DoubleBorder() {
		t.Errorf("expected double border")
	}
	if base.MethodColors.DELETE == "#ff0000" {
		t.Errorf("base theme mutated")
	}
}

func TestApplySpecRejectsInvalidValues(t *testing.T) {
	cases := []ThemeSpec{
		{Colors: ColorsSpec{MethodGET: strPtr("  ")}},
		{Styles: StylesSpec{Header: &StyleSpec{Align: strPtr("diagonal")}}},
		{Styles: StylesSpec{AppFrame: &StyleSpec{BorderStyle: strPtr("zigzag")}}},
	}
	for i, spec := range cases {
		if _, err := ApplySpec(DefaultTheme(), spec); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func TestStatusColorsByClass(t *testing.T) {
	c := DefaultTheme().StatusColors
	cases := map[int]lipgloss.Color{
		0:   c.Default,
		204: c.Success,
		301: c.Redirect,
		418: c.ClientError,
		503: c.ServerError,
	}
	for code, want := range cases {
		if got := c.For(code); got != want {
			t.Fatalf("status %d: expected %q, got %q", code, want, got)
		}
	}
}
