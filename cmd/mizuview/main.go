package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/MakeNowJust/heredoc"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/mizuview/internal/api"
	"github.com/unkn0wn-root/mizuview/internal/bindings"
	"github.com/unkn0wn-root/mizuview/internal/config"
	"github.com/unkn0wn-root/mizuview/internal/errdef"
	"github.com/unkn0wn-root/mizuview/internal/feed"
	"github.com/unkn0wn-root/mizuview/internal/history"
	"github.com/unkn0wn-root/mizuview/internal/kube"
	"github.com/unkn0wn-root/mizuview/internal/openapi"
	"github.com/unkn0wn-root/mizuview/internal/telemetry"
	"github.com/unkn0wn-root/mizuview/internal/theme"
	"github.com/unkn0wn-root/mizuview/internal/ui"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", errdef.Message(err))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	return buildRootCmd(&rootOptions{})
}

func buildRootCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mizuview",
		Short: "Terminal viewer for mizu captured traffic",
		Long: heredoc.Doc(`
			mizuview streams the traffic captured by a mizu deployment and shows
			every entry with its request, response, rules and contract panels.

			Point it at the API server with --url, or let it find the server in
			the cluster with --kube.
		`),
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runViewer(cmd.Context(), cmd, opts)
		},
	}
	opts.register(cmd)
	cmd.AddCommand(newConfigCmd(), newStatsCmd(opts), newOASCmd(opts), newLogoutCmd(opts),
		newHistoryCmd())
	return cmd
}

// session is everything a command needs to talk to one API server.
type session struct {
	settings  config.Settings
	client    *api.Client
	transport http.RoundTripper
	tel       telemetry.Instrumenter
	log       *slog.Logger
	closeLog  func()
}

// feedManager checks the socket endpoint once before the UI starts. The
// manager derives it again from the API base URL and token on every Open.
func (s *session) feedManager() (*feed.Manager, error) {
	base := s.client.BaseURL()
	if _, err := feed.SocketURL(base, s.settings.Token); err != nil {
		return nil, err
	}
	var httpClient *http.Client
	if s.transport != nil {
		httpClient = &http.Client{Transport: s.transport}
	}
	return feed.NewManager(feed.Options{
		URL:         base,
		Token:       s.settings.Token,
		DialTimeout: s.settings.Feed.DialTimeoutDuration(),
		HTTPClient:  httpClient,
		Logger:      s.log.With("component", "feed"),
		Telemetry:   s.tel,
	}), nil
}

func (s *session) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if s.tel != nil {
		if err := s.tel.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "telemetry shutdown: %v\n", err)
		}
	}
	if s.closeLog != nil {
		s.closeLog()
	}
}

// connect resolves settings, opens the log, discovers the cluster target when
// asked to and builds the REST client.
func connect(ctx context.Context, cmd *cobra.Command, opts *rootOptions) (*session, error) {
	if _, err := config.LoadDotEnv(opts.envFiles()...); err != nil {
		return nil, err
	}
	settings, _, err := resolveSettings(opts, cmd.Flags(), os.LookupEnv)
	if err != nil {
		return nil, err
	}

	logger, closeLog, err := openLogger(config.LogPath(), opts.logLevel)
	if err != nil {
		return nil, err
	}
	s := &session{settings: settings, log: logger, closeLog: closeLog}

	telCfg := telemetry.ConfigFromEnv(os.Getenv)
	telCfg.Version = version
	tel, err := telemetry.New(telCfg)
	if err != nil {
		logger.Warn("telemetry init", "err", err)
		tel = telemetry.Noop()
	}
	s.tel = tel

	if settings.Kube.Enabled {
		target, err := kube.Discover(ctx, kube.Options{
			Kubeconfig: settings.Kube.Config,
			Context:    settings.Kube.Context,
			Namespace:  settings.Kube.Namespace,
			Logger:     logger,
		})
		if err != nil {
			s.Close()
			return nil, err
		}
		s.settings.URL = target.BaseURL
		s.transport = target.Transport
	}

	client, err := api.NewClient(api.Options{
		BaseURL:   s.settings.URL,
		Token:     s.settings.Token,
		Transport: s.transport,
		Logger:    logger.With("component", "api"),
		Telemetry: tel,
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	s.client = client
	logger.Info("connected", "url", client.BaseURL(), "kube", settings.Kube.Enabled)
	return s, nil
}

func runViewer(ctx context.Context, cmd *cobra.Command, opts *rootOptions) error {
	s, err := connect(ctx, cmd, opts)
	if err != nil {
		return err
	}
	defer s.Close()
	logger := s.log

	manager, err := s.feedManager()
	if err != nil {
		return err
	}

	store := history.NewStore(config.HistoryPath(), 0)
	if err := store.Load(); err != nil {
		logger.Warn("history load", "err", err)
		store = nil
	} else {
		defer func() {
			if err := store.Close(); err != nil {
				logger.Warn("history close", "err", err)
			}
		}()
	}

	if termenv.EnvNoColor() {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
	th := resolveTheme(s.settings.DefaultTheme, logger)

	keys, _, err := bindings.Load(config.Dir())
	if err != nil {
		logger.Warn("bindings load", "err", err)
		keys = bindings.DefaultMap()
	}

	model := ui.New(ui.Config{
		Settings:   s.settings,
		Feed:       manager,
		API:        s.client,
		History:    store,
		Catalogue:  openapi.NewCatalogue(s.client, s.settings.Features.OASEnabled),
		Theme:      &th,
		Bindings:   keys,
		Logger:     logger.With("component", "ui"),
		Server:     s.client.BaseURL(),
		Version:    version,
		SaveLayout: config.SaveLayout,
	})

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := program.Run()
	if m, ok := final.(ui.Model); ok {
		m.Teardown()
	} else {
		manager.Teardown()
	}
	if err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}

func resolveTheme(key string, logger *slog.Logger) theme.Theme {
	catalog, err := theme.LoadCatalog([]string{config.ThemeDir()})
	if err != nil {
		logger.Warn("theme load", "err", err)
	}
	def := catalog.Resolve(key)
	if key = strings.TrimSpace(key); key != "" && !strings.EqualFold(def.Key, key) {
		logger.Warn("theme not found, using default", "theme", key)
	}
	return def.Theme
}
