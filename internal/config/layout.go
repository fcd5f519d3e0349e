package config

import "strings"

type LayoutMainSplit string

const (
	LayoutMainSplitVertical   LayoutMainSplit = "vertical"
	LayoutMainSplitHorizontal LayoutMainSplit = "horizontal"
)

// LayoutSettings control how the entries list and the entry detail share
// the screen.
type LayoutSettings struct {
	ListWidth  float64         `json:"list_width"  toml:"list_width"  yaml:"list_width"`
	MainSplit  LayoutMainSplit `json:"main_split"  toml:"main_split"  yaml:"main_split"`
	HideToasts bool            `json:"hide_toasts" toml:"hide_toasts" yaml:"hide_toasts"`
}

const (
	LayoutListWidthDefault = 0.45
	LayoutListWidthMin     = 0.2
	LayoutListWidthMax     = 0.8
)

func DefaultLayoutSettings() LayoutSettings {
	return LayoutSettings{
		ListWidth: LayoutListWidthDefault,
		MainSplit: LayoutMainSplitVertical,
	}
}

func NormaliseLayoutSettings(in LayoutSettings) LayoutSettings {
	layout := DefaultLayoutSettings()
	layout.ListWidth = clampFloat(
		in.ListWidth,
		LayoutListWidthMin,
		LayoutListWidthMax,
		LayoutListWidthDefault,
	)
	layout.MainSplit = normaliseMainSplit(in.MainSplit, layout.MainSplit)
	layout.HideToasts = in.HideToasts
	return layout
}

func normaliseMainSplit(in LayoutMainSplit, def LayoutMainSplit) LayoutMainSplit {
	switch strings.ToLower(strings.TrimSpace(string(in))) {
	case string(LayoutMainSplitHorizontal):
		return LayoutMainSplitHorizontal
	case string(LayoutMainSplitVertical):
		return LayoutMainSplitVertical
	default:
		return def
	}
}

func clampFloat[T ~float64](value, min, max, fallback T) T {
	if value == 0 {
		return fallback
	}
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
