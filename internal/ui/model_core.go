package ui

import (
	"context"
	"log/slog"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/unkn0wn-root/mizuview/internal/bindings"
	"github.com/unkn0wn-root/mizuview/internal/config"
	"github.com/unkn0wn-root/mizuview/internal/entry"
	"github.com/unkn0wn-root/mizuview/internal/history"
	"github.com/unkn0wn-root/mizuview/internal/openapi"
	"github.com/unkn0wn-root/mizuview/internal/replay"
	"github.com/unkn0wn-root/mizuview/internal/stream"
	"github.com/unkn0wn-root/mizuview/internal/tabs"
	"github.com/unkn0wn-root/mizuview/internal/theme"
	"github.com/unkn0wn-root/mizuview/internal/traffic"
	"github.com/unkn0wn-root/mizuview/internal/trafficstats"
)

const (
	streamMsgBuffer    = 128
	defaultRESTTimeout = 20 * time.Second
	defaultToastTTL    = 4 * time.Second
	maxToasts          = 3
)

// Feed is the connection the traffic view reads from. *feed.Manager
// implements it.
type Feed interface {
	Open(ctx context.Context, query string) error
	Send(ctx context.Context, query string) bool
	Subscribe() (stream.Listener, bool)
	Session() *stream.Session
	State() stream.State
	Close()
	Teardown()
}

// API is the REST surface the views use. *api.Client implements it.
type API interface {
	GetEntry(ctx context.Context, id string) (traffic.FullEntry, error)
	GetPieStats(ctx context.Context) ([]traffic.ProtocolStats, error)
	GetTimelineStats(ctx context.Context) ([]traffic.TimelineStats, error)
	GetTappingStatus(ctx context.Context) (traffic.TappingStatus, error)
	replay.Sender
}

type Config struct {
	Settings  config.Settings
	Feed      Feed
	API       API
	History   *history.Store
	Catalogue *openapi.Catalogue
	Theme     *theme.Theme
	Bindings  *bindings.Map
	Logger    *slog.Logger
	CopyText  func(string) error

	// Server labels the target in the header; usually the API base URL.
	Server  string
	Version string

	// SaveLayout persists split changes; nil keeps them for the session only.
	SaveLayout func(config.LayoutSettings) error

	// BatchWindow groups feed events into one UI update.
	BatchWindow time.Duration
}

type paneFocus int

const (
	focusEntries paneFocus = iota
	focusDetail
	focusQuery
)

type viewMode int

const (
	viewTraffic viewMode = iota
	viewStats
	viewOAS
	viewReplay
	viewHistory
)

func (v viewMode) String() string {
	switch v {
	case viewStats:
		return "STATS"
	case viewOAS:
		return "OPENAPI"
	case viewReplay:
		return "REPLAY"
	case viewHistory:
		return "HISTORY"
	default:
		return "TRAFFIC"
	}
}

type detailState struct {
	id        string
	loading   bool
	view      *entry.View
	err       error
	tabs      *tabs.Controller
	viewport  viewport.Model
	selectors bool
}

type statsState struct {
	loading  bool
	err      error
	mode     trafficstats.Mode
	protocol string
	pie      []traffic.ProtocolStats
	timeline []traffic.TimelineStats
	tapping  traffic.TappingStatus
	viewport viewport.Model
}

type oasState struct {
	loading  bool
	err      error
	services list.Model
	service  string
	spec     *openapi.Spec
	viewport viewport.Model
	focusDoc bool
}

type replayState struct {
	request  *replay.Request
	url      textinput.Model
	editing  bool
	sending  bool
	result   *replay.Result
	err      error
	captured entry.Entry
	viewport viewport.Model
}

type historyState struct {
	list    list.Model
	err     error
	loading bool
}

type toastItem struct {
	seq   int
	toast traffic.Toast
}

type Model struct {
	cfg       Config
	theme     theme.Theme
	keys      *bindings.Map
	log       *slog.Logger
	feed      Feed
	api       API
	history   *history.Store
	catalogue *openapi.Catalogue
	copyText  func(string) error

	width  int
	height int
	ready  bool

	focus        paneFocus
	view         viewMode
	layout       config.LayoutSettings
	pendingChord string
	showHelp     bool

	query       textinput.Model
	activeQuery string

	feedSessionID     string
	feedState         stream.State
	feedErr           error
	paused            bool
	streamMsgChan     chan tea.Msg
	streamBatchWindow time.Duration

	entries    []traffic.EntrySummary
	maxEntries int
	evicted    int
	cursor     int
	offset     int
	follow     bool
	metadata   traffic.QueryMetadata
	startTime  time.Time

	detail  detailState
	stats   statsState
	oas     oasState
	replay  replayState
	hist    historyState
	toasts  []toastItem
	toastSq int

	statusMessage statusMsg
}

func New(cfg Config) Model {
	th := theme.DefaultTheme()
	if cfg.Theme != nil {
		th = *cfg.Theme
	}
	keys := cfg.Bindings
	if keys == nil {
		keys = bindings.DefaultMap()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	copyText := cfg.CopyText
	if copyText == nil {
		copyText = clipboard.WriteAll
	}
	settings := config.Normalise(cfg.Settings)

	query := textinput.New()
	query.Prompt = "query ❯ "
	query.Placeholder = `e.g. http and response.status == 500`
	query.PromptStyle = th.QueryPrompt
	query.TextStyle = th.QueryInput
	query.SetValue(settings.Feed.Query)

	replayURL := textinput.New()
	replayURL.Prompt = "url ❯ "
	replayURL.PromptStyle = th.QueryPrompt
	replayURL.TextStyle = th.QueryInput

	m := Model{
		cfg:               cfg,
		theme:             th,
		keys:              keys,
		log:               logger,
		feed:              cfg.Feed,
		api:               cfg.API,
		history:           cfg.History,
		catalogue:         cfg.Catalogue,
		copyText:          copyText,
		layout:            settings.Layout,
		query:             query,
		activeQuery:       settings.Feed.Query,
		feedState:         stream.StateClosed,
		streamMsgChan:     make(chan tea.Msg, streamMsgBuffer),
		streamBatchWindow: cfg.BatchWindow,
		maxEntries:        settings.Feed.MaxEntries,
		follow:            true,
		detail: detailState{
			tabs:     tabs.NewController(tabs.Flags{}),
			viewport: viewport.New(0, 0),
		},
		stats: statsState{
			mode:     trafficstats.ModeRequests,
			protocol: trafficstats.AllProtocols,
			viewport: viewport.New(0, 0),
		},
		oas: oasState{
			services: newThemedList(th, "Services"),
			viewport: viewport.New(0, 0),
		},
		replay: replayState{
			url:      replayURL,
			viewport: viewport.New(0, 0),
		},
		hist: historyState{list: newThemedList(th, "Query history")},
	}
	return m
}

// Teardown releases the feed. The program calls it once after the UI exits.
func (m *Model) Teardown() {
	if m.feed != nil {
		m.feed.Teardown()
	}
}

func restContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), defaultRESTTimeout)
}
