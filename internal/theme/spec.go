package theme

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type Metadata struct {
	Name        string   `json:"name"        toml:"name"        yaml:"name"`
	Description string   `json:"description" toml:"description" yaml:"description"`
	Author      string   `json:"author"      toml:"author"      yaml:"author"`
	Version     string   `json:"version"     toml:"version"     yaml:"version"`
	Tags        []string `json:"tags"        toml:"tags"        yaml:"tags"`
}

type ThemeSpec struct {
	Metadata *Metadata  `json:"metadata" toml:"metadata" yaml:"metadata"`
	Styles   StylesSpec `json:"styles"   toml:"styles"   yaml:"styles"`
	Colors   ColorsSpec `json:"colors"   toml:"colors"   yaml:"colors"`
}

type StylesSpec struct {
	AppFrame                    *StyleSpec `json:"app_frame"                      toml:"app_frame"                      yaml:"app_frame"`
	Header                      *StyleSpec `json:"header"                         toml:"header"                         yaml:"header"`
	HeaderBrand                 *StyleSpec `json:"header_brand"                   toml:"header_brand"                   yaml:"header_brand"`
	HeaderTitle                 *StyleSpec `json:"header_title"                   toml:"header_title"                   yaml:"header_title"`
	HeaderValue                 *StyleSpec `json:"header_value"                   toml:"header_value"                   yaml:"header_value"`
	HeaderSeparator             *StyleSpec `json:"header_separator"               toml:"header_separator"               yaml:"header_separator"`
	StatusBar                   *StyleSpec `json:"status_bar"                     toml:"status_bar"                     yaml:"status_bar"`
	StatusBarKey                *StyleSpec `json:"status_bar_key"                 toml:"status_bar_key"                 yaml:"status_bar_key"`
	StatusBarValue              *StyleSpec `json:"status_bar_value"               toml:"status_bar_value"               yaml:"status_bar_value"`
	CommandBar                  *StyleSpec `json:"command_bar"                    toml:"command_bar"                    yaml:"command_bar"`
	CommandBarHint              *StyleSpec `json:"command_bar_hint"               toml:"command_bar_hint"               yaml:"command_bar_hint"`
	Tabs                        *StyleSpec `json:"tabs"                           toml:"tabs"                           yaml:"tabs"`
	TabActive                   *StyleSpec `json:"tab_active"                     toml:"tab_active"                     yaml:"tab_active"`
	TabInactive                 *StyleSpec `json:"tab_inactive"                   toml:"tab_inactive"                   yaml:"tab_inactive"`
	Notification                *StyleSpec `json:"notification"                   toml:"notification"                   yaml:"notification"`
	Error                       *StyleSpec `json:"error"                          toml:"error"                          yaml:"error"`
	Success                     *StyleSpec `json:"success"                        toml:"success"                        yaml:"success"`
	Warning                     *StyleSpec `json:"warning"                        toml:"warning"                        yaml:"warning"`
	PaneTitle                   *StyleSpec `json:"pane_title"                     toml:"pane_title"                     yaml:"pane_title"`
	PaneBorder                  *StyleSpec `json:"pane_border"                    toml:"pane_border"                    yaml:"pane_border"`
	PaneDivider                 *StyleSpec `json:"pane_divider"                   toml:"pane_divider"                   yaml:"pane_divider"`
	QueryPrompt                 *StyleSpec `json:"query_prompt"                   toml:"query_prompt"                   yaml:"query_prompt"`
	QueryInput                  *StyleSpec `json:"query_input"                    toml:"query_input"                    yaml:"query_input"`
	ListItemTitle               *StyleSpec `json:"list_item_title"                toml:"list_item_title"                yaml:"list_item_title"`
	ListItemDescription         *StyleSpec `json:"list_item_description"          toml:"list_item_description"          yaml:"list_item_description"`
	ListItemSelectedTitle       *StyleSpec `json:"list_item_selected_title"       toml:"list_item_selected_title"       yaml:"list_item_selected_title"`
	ListItemSelectedDescription *StyleSpec `json:"list_item_selected_description" toml:"list_item_selected_description" yaml:"list_item_selected_description"`
	ListItemDimmedTitle         *StyleSpec `json:"list_item_dimmed_title"         toml:"list_item_dimmed_title"         yaml:"list_item_dimmed_title"`
	DetailContent               *StyleSpec `json:"detail_content"                 toml:"detail_content"                 yaml:"detail_content"`
	ConnOpen                    *StyleSpec `json:"conn_open"                      toml:"conn_open"                      yaml:"conn_open"`
	ConnConnecting              *StyleSpec `json:"conn_connecting"                toml:"conn_connecting"                yaml:"conn_connecting"`
	ConnClosed                  *StyleSpec `json:"conn_closed"                    toml:"conn_closed"                    yaml:"conn_closed"`
}

type ColorsSpec struct {
	PaneBorderFocus      *string `json:"pane_border_focus"      toml:"pane_border_focus"      yaml:"pane_border_focus"`
	PaneActiveForeground *string `json:"pane_active_foreground" toml:"pane_active_foreground" yaml:"pane_active_foreground"`
	MethodGET            *string `json:"method_get"             toml:"method_get"             yaml:"method_get"`
	MethodPOST           *string `json:"method_post"            toml:"method_post"            yaml:"method_post"`
	MethodPUT            *string `json:"method_put"             toml:"method_put"             yaml:"method_put"`
	MethodPATCH          *string `json:"method_patch"           toml:"method_patch"           yaml:"method_patch"`
	MethodDELETE         *string `json:"method_delete"          toml:"method_delete"          yaml:"method_delete"`
	MethodHEAD           *string `json:"method_head"            toml:"method_head"            yaml:"method_head"`
	MethodOPTIONS        *string `json:"method_options"         toml:"method_options"         yaml:"method_options"`
	MethodDefault        *string `json:"method_default"         toml:"method_default"         yaml:"method_default"`
	Status2xx            *string `json:"status_2xx"             toml:"status_2xx"             yaml:"status_2xx"`
	Status3xx            *string `json:"status_3xx"             toml:"status_3xx"             yaml:"status_3xx"`
	Status4xx            *string `json:"status_4xx"             toml:"status_4xx"             yaml:"status_4xx"`
	Status5xx            *string `json:"status_5xx"             toml:"status_5xx"             yaml:"status_5xx"`
}

type StyleSpec struct {
	Foreground       *string `json:"foreground"        toml:"foreground"        yaml:"foreground"`
	Background       *string `json:"background"        toml:"background"        yaml:"background"`
	BorderColor      *string `json:"border_color"      toml:"border_color"      yaml:"border_color"`
	BorderBackground *string `json:"border_background" toml:"border_background" yaml:"border_background"`
	BorderStyle      *string `json:"border_style"      toml:"border_style"      yaml:"border_style"`
	Bold             *bool   `json:"bold"              toml:"bold"              yaml:"bold"`
	Italic           *bool   `json:"italic"            toml:"italic"            yaml:"italic"`
	Underline        *bool   `json:"underline"         toml:"underline"         yaml:"underline"`
	Faint            *bool   `json:"faint"             toml:"faint"             yaml:"faint"`
	Strikethrough    *bool   `json:"strikethrough"     toml:"strikethrough"     yaml:"strikethrough"`
	Align            *string `json:"align"             toml:"align"             yaml:"align"`
}

type styleTarget struct {
	name     string
	target   *lipgloss.Style
	override *StyleSpec
}

type colorTarget struct {
	name     string
	target   *lipgloss.Color
	override *string
}

func ApplySpec(base Theme, spec ThemeSpec) (Theme, error) {
	t := base
	s := spec.Styles
	styles := []styleTarget{
		{"app_frame", &t.AppFrame, s.AppFrame},
		{"header", &t.Header, s.Header},
		{"header_brand", &t.HeaderBrand, s.HeaderBrand},
		{"header_title", &t.HeaderTitle, s.HeaderTitle},
		{"header_value", &t.HeaderValue, s.HeaderValue},
		{"header_separator", &t.HeaderSeparator, s.HeaderSeparator},
		{"status_bar", &t.StatusBar, s.StatusBar},
		{"status_bar_key", &t.StatusBarKey, s.StatusBarKey},
		{"status_bar_value", &t.StatusBarValue, s.StatusBarValue},
		{"command_bar", &t.CommandBar, s.CommandBar},
		{"command_bar_hint", &t.CommandBarHint, s.CommandBarHint},
		{"tabs", &t.Tabs, s.Tabs},
		{"tab_active", &t.TabActive, s.TabActive},
		{"tab_inactive", &t.TabInactive, s.TabInactive},
		{"notification", &t.Notification, s.Notification},
		{"error", &t.Error, s.Error},
		{"success", &t.Success, s.Success},
		{"warning", &t.Warning, s.Warning},
		{"pane_title", &t.PaneTitle, s.PaneTitle},
		{"pane_border", &t.PaneBorder, s.PaneBorder},
		{"pane_divider", &t.PaneDivider, s.PaneDivider},
		{"query_prompt", &t.QueryPrompt, s.QueryPrompt},
		{"query_input", &t.QueryInput, s.QueryInput},
		{"list_item_title", &t.ListItemTitle, s.ListItemTitle},
		{"list_item_description", &t.ListItemDescription, s.ListItemDescription},
		{"list_item_selected_title", &t.ListItemSelectedTitle, s.ListItemSelectedTitle},
		{"list_item_selected_description", &t.ListItemSelectedDescription, s.ListItemSelectedDescription},
		{"list_item_dimmed_title", &t.ListItemDimmedTitle, s.ListItemDimmedTitle},
		{"detail_content", &t.DetailContent, s.DetailContent},
		{"conn_open", &t.ConnOpen, s.ConnOpen},
		{"conn_connecting", &t.ConnConnecting, s.ConnConnecting},
		{"conn_closed", &t.ConnClosed, s.ConnClosed},
	}
	for _, st := range styles {
		next, err := st.override.apply(*st.target)
		if err != nil {
			return Theme{}, fmt.Errorf("%s: %w", st.name, err)
		}
		*st.target = next
	}

	c := spec.Colors
	colors := []colorTarget{
		{"pane_border_focus", &t.PaneBorderFocus, c.PaneBorderFocus},
		{"pane_active_foreground", &t.PaneActiveForeground, c.PaneActiveForeground},
		{"method_get", &t.MethodColors.GET, c.MethodGET},
		{"method_post", &t.MethodColors.POST, c.MethodPOST},
		{"method_put", &t.MethodColors.PUT, c.MethodPUT},
		{"method_patch", &t.MethodColors.PATCH, c.MethodPATCH},
		{"method_delete", &t.MethodColors.DELETE, c.MethodDELETE},
		{"method_head", &t.MethodColors.HEAD, c.MethodHEAD},
		{"method_options", &t.MethodColors.OPTIONS, c.MethodOPTIONS},
		{"method_default", &t.MethodColors.Default, c.MethodDefault},
		{"status_2xx", &t.StatusColors.Success, c.Status2xx},
		{"status_3xx", &t.StatusColors.Redirect, c.Status3xx},
		{"status_4xx", &t.StatusColors.ClientError, c.Status4xx},
		{"status_5xx", &t.StatusColors.ServerError, c.Status5xx},
	}
	for _, ct := range colors {
		if ct.override == nil {
			continue
		}
		color, err := toColor(ct.name, *ct.override)
		if err != nil {
			return Theme{}, err
		}
		*ct.target = color
	}
	return t, nil
}

func (s *StyleSpec) apply(base lipgloss.Style) (lipgloss.Style, error) {
	if s == nil {
		return base, nil
	}
	current := base
	if s.Foreground != nil {
		color, err := toColor("foreground", *s.Foreground)
		if err != nil {
			return lipgloss.Style{}, err
		}
		current = current.Foreground(color)
	}
	if s.Background != nil {
		color, err := toColor("background", *s.Background)
		if err != nil {
			return lipgloss.Style{}, err
		}
		current = current.Background(color)
	}
	if s.BorderColor != nil {
		color, err := toColor("border_color", *s.BorderColor)
		if err != nil {
			return lipgloss.Style{}, err
		}
		current = current.BorderForeground(color)
	}
	if s.BorderBackground != nil {
		color, err := toColor("border_background", *s.BorderBackground)
		if err != nil {
			return lipgloss.Style{}, err
		}
		current = current.BorderBackground(color)
	}
	if s.BorderStyle != nil {
		normalized := strings.ToLower(strings.TrimSpace(*s.BorderStyle))
		if normalized != "inherit" {
			border, err := parseBorderStyle(normalized)
			if err != nil {
				return lipgloss.Style{}, err
			}
			current = current.BorderStyle(border)
		}
	}
	if s.Bold != nil {
		current = current.Bold(*s.Bold)
	}
	if s.Italic != nil {
		current = current.Italic(*s.Italic)
	}
	if s.Underline != nil {
		current = current.Underline(*s.Underline)
	}
	if s.Faint != nil {
		current = current.Faint(*s.Faint)
	}
	if s.Strikethrough != nil {
		current = current.Strikethrough(*s.Strikethrough)
	}
	if s.Align != nil {
		align, err := parseAlign(*s.Align)
		if err != nil {
			return lipgloss.Style{}, err
		}
		current = current.Align(align)
	}
	return current, nil
}

func toColor(field string, value string) (lipgloss.Color, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("%s: colour value may not be empty", field)
	}
	return lipgloss.Color(trimmed), nil
}

func parseAlign(value string) (lipgloss.Position, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "left", "start", "default", "":
		return lipgloss.Left, nil
	case "center", "centre", "middle":
		return lipgloss.Center, nil
	case "right", "end":
		return lipgloss.Right, nil
	default:
		return lipgloss.Left, fmt.Errorf("align: unknown alignment %q", value)
	}
}

func parseBorderStyle(value string) (lipgloss.Border, error) {
	switch value {
	case "":
		return lipgloss.Border{}, fmt.Errorf("border_style: value may not be empty")
	case "none", "hidden", "off":
		return lipgloss.Border{}, nil
	case "normal", "single":
		return lipgloss.NormalBorder(), nil
	case "rounded":
		return lipgloss.RoundedBorder(), nil
	case "thick", "heavy":
		return lipgloss.ThickBorder(), nil
	case "double":
		return lipgloss.DoubleBorder(), nil
	case "block":
		return lipgloss.BlockBorder(), nil
	default:
		return lipgloss.Border{}, fmt.Errorf("border_style: unknown border style %q", value)
	}
}
