package theme

import "github.com/charmbracelet/lipgloss"

type Theme struct {
	AppFrame                    lipgloss.Style
	Header                      lipgloss.Style
	HeaderBrand                 lipgloss.Style
	HeaderTitle                 lipgloss.Style
	HeaderValue                 lipgloss.Style
	HeaderSeparator             lipgloss.Style
	StatusBar                   lipgloss.Style
	StatusBarKey                lipgloss.Style
	StatusBarValue              lipgloss.Style
	CommandBar                  lipgloss.Style
	CommandBarHint              lipgloss.Style
	Tabs                        lipgloss.Style
	TabActive                   lipgloss.Style
	TabInactive                 lipgloss.Style
	Notification                lipgloss.Style
	Error                       lipgloss.Style
	Success                     lipgloss.Style
	Warning                     lipgloss.Style
	PaneTitle                   lipgloss.Style
	PaneBorder                  lipgloss.Style
	PaneDivider                 lipgloss.Style
	QueryPrompt                 lipgloss.Style
	QueryInput                  lipgloss.Style
	ListItemTitle               lipgloss.Style
	ListItemDescription         lipgloss.Style
	ListItemSelectedTitle       lipgloss.Style
	ListItemSelectedDescription lipgloss.Style
	ListItemDimmedTitle         lipgloss.Style
	DetailContent               lipgloss.Style
	ConnOpen                    lipgloss.Style
	ConnConnecting              lipgloss.Style
	ConnClosed                  lipgloss.Style
	PaneBorderFocus             lipgloss.Color
	PaneActiveForeground        lipgloss.Color
	MethodColors                MethodColors
	StatusColors                StatusColors
}

type MethodColors struct {
	GET     lipgloss.Color
	POST    lipgloss.Color
	PUT     lipgloss.Color
	PATCH   lipgloss.Color
	DELETE  lipgloss.Color
	HEAD    lipgloss.Color
	OPTIONS lipgloss.Color
	Default lipgloss.Color
}

// StatusColors colour response codes by class.
type StatusColors struct {
	Success     lipgloss.Color
	Redirect    lipgloss.Color
	ClientError lipgloss.Color
	ServerError lipgloss.Color
	Default     lipgloss.Color
}

func (m MethodColors) For(method string) lipgloss.Color {
	switch method {
	case "GET":
		return m.GET
	case "POST":
		return m.POST
	case "PUT":
		return m.PUT
	case "PATCH":
		return m.PATCH
	case "DELETE":
		return m.DELETE
	case "HEAD":
		return m.HEAD
	case "OPTIONS":
		return m.OPTIONS
	default:
		return m.Default
	}
}

func (s StatusColors) For(code int) lipgloss.Color {
	switch {
	case code >= 500:
		return s.ServerError
	case code >= 400:
		return s.ClientError
	case code >= 300:
		return s.Redirect
	case code >= 200:
		return s.Success
	default:
		return s.Default
	}
}

func DefaultTheme() Theme {
	accent := lipgloss.Color("#7D56F4")
	return Theme{
		AppFrame: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#403B59")),
		Header:          lipgloss.NewStyle().Foreground(lipgloss.Color("#E5E1FF")).Padding(0, 1),
		HeaderTitle:     lipgloss.NewStyle().Foreground(accent).Bold(true),
		HeaderValue:     lipgloss.NewStyle().Foreground(lipgloss.Color("#D1CFF6")),
		HeaderSeparator: lipgloss.NewStyle().Foreground(lipgloss.Color("#867CC1")).Bold(true),
		HeaderBrand: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#1A1020")).
			Background(lipgloss.Color("#FBC859")).
			Bold(true).
			Padding(0, 1),
		StatusBar:      lipgloss.NewStyle().Foreground(lipgloss.Color("#A6A1BB")).Padding(0, 1),
		StatusBarKey:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FF8B39")).Bold(true),
		StatusBarValue: lipgloss.NewStyle().Foreground(lipgloss.Color("#EAEAEA")),
		CommandBar:     lipgloss.NewStyle().Foreground(lipgloss.Color("#C2C0D9")).Padding(0, 1),
		CommandBarHint: lipgloss.NewStyle().Foreground(accent).Bold(true),
		Tabs:           lipgloss.NewStyle().Foreground(lipgloss.Color("#A6A1BB")).Padding(0, 1),
		TabActive: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FDFBFF")).
			Background(accent).
			Bold(true).
			Padding(0, 2),
		TabInactive: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#5E5A72")).
			Padding(0, 1),
		Notification: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E0DEF4")).
			Background(lipgloss.Color("#433C59")).
			Padding(0, 1),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6E6E")),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("#6EF17E")),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB61E")),
		PaneTitle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A6A1BB")).
			Bold(true),
		PaneBorder: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#403B59")),
		PaneDivider:                 lipgloss.NewStyle().Foreground(lipgloss.Color("#3A3547")),
		QueryPrompt:                 lipgloss.NewStyle().Foreground(lipgloss.Color("#15AABF")).Bold(true),
		QueryInput:                  lipgloss.NewStyle().Foreground(lipgloss.Color("#E6E1FF")),
		ListItemTitle:               lipgloss.NewStyle().Foreground(lipgloss.Color("#E6E1FF")),
		ListItemDescription:         lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6A86")),
		ListItemSelectedTitle:       lipgloss.NewStyle().Foreground(lipgloss.Color("#0F111A")).Background(lipgloss.Color("#FFD46A")).Bold(true),
		ListItemSelectedDescription: lipgloss.NewStyle().Foreground(lipgloss.Color("#0F111A")).Background(lipgloss.Color("#FFD46A")),
		ListItemDimmedTitle:         lipgloss.NewStyle().Foreground(lipgloss.Color("#5E5A72")),
		DetailContent:               lipgloss.NewStyle().Foreground(lipgloss.Color("#E6E1FF")),
		ConnOpen:                    lipgloss.NewStyle().Foreground(lipgloss.Color("#33C481")).Bold(true),
		ConnConnecting:              lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB61E")).Bold(true),
		ConnClosed:                  lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6E6E")).Bold(true),
		PaneBorderFocus:             accent,
		PaneActiveForeground:        lipgloss.Color("#F5F2FF"),
		MethodColors: MethodColors{
			GET:     lipgloss.Color("#34d399"),
			POST:    lipgloss.Color("#60a5fa"),
			PUT:     lipgloss.Color("#f59e0b"),
			PATCH:   lipgloss.Color("#14b8a6"),
			DELETE:  lipgloss.Color("#f87171"),
			HEAD:    lipgloss.Color("#a1a1aa"),
			OPTIONS: lipgloss.Color("#c084fc"),
			Default: lipgloss.Color("#9ca3af"),
		},
		StatusColors: StatusColors{
			Success:     lipgloss.Color("#6EF17E"),
			Redirect:    lipgloss.Color("#60a5fa"),
			ClientError: lipgloss.Color("#FFB61E"),
			ServerError: lipgloss.Color("#FF6E6E"),
			Default:     lipgloss.Color("#A6A1BB"),
		},
	}
}

// LightTheme swaps the default palette for terminals with a light background.
func LightTheme() Theme {
	t := DefaultTheme()
	ink := lipgloss.Color("#1F1D2B")
	muted := lipgloss.Color("#6B6880")
	accent := lipgloss.Color("#5B3CC4")
	t.Header = t.Header.Foreground(ink)
	t.HeaderTitle = t.HeaderTitle.Foreground(accent)
	t.HeaderValue = t.HeaderValue.Foreground(ink)
	t.StatusBar = t.StatusBar.Foreground(muted)
	t.StatusBarValue = t.StatusBarValue.Foreground(ink)
	t.CommandBar = t.CommandBar.Foreground(muted)
	t.CommandBarHint = t.CommandBarHint.Foreground(accent)
	t.Tabs = t.Tabs.Foreground(muted)
	t.TabActive = t.TabActive.Background(accent)
	t.TabInactive = t.TabInactive.Foreground(muted)
	t.QueryInput = t.QueryInput.Foreground(ink)
	t.ListItemTitle = t.ListItemTitle.Foreground(ink)
	t.ListItemDescription = t.ListItemDescription.Foreground(muted)
	t.DetailContent = t.DetailContent.Foreground(ink)
	t.PaneBorderFocus = accent
	t.PaneActiveForeground = ink
	return t
}
