package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/unkn0wn-root/mizuview/internal/config"
	"github.com/unkn0wn-root/mizuview/internal/errdef"
	"github.com/unkn0wn-root/mizuview/internal/settings"
)

type rootOptions struct {
	url         string
	token       string
	query       string
	namespace   string
	kubeconfig  string
	kubeContext string
	kube        bool
	theme       string
	logLevel    string
	envFile     string
	sets        []string
}

// flagKeys maps flags that mirror a setting onto its settings key.
var flagKeys = map[string]string{
	"url":          "url",
	"token":        "token",
	"query":        "feed.query",
	"namespace":    "kube.namespace",
	"kube-config":  "kube.config",
	"kube-context": "kube.context",
	"kube":         "kube.enabled",
	"theme":        "default_theme",
}

func (o *rootOptions) register(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVar(&o.url, "url", "", "API server address (default "+config.DefaultURL+")")
	f.StringVar(&o.token, "token", "", "Access token for the feed and REST calls")
	f.StringVarP(&o.query, "query", "q", "", "Query sent when the feed opens")
	f.StringVarP(&o.namespace, "namespace", "n", "", "Namespace of the mizu resources")
	f.StringVar(&o.kubeconfig, "kube-config", "", "Path to the kubeconfig file")
	f.StringVar(&o.kubeContext, "kube-context", "", "Kubeconfig context to use")
	f.BoolVar(&o.kube, "kube", false, "Discover the API server through the Kubernetes API")
	f.StringVar(&o.theme, "theme", "", "Theme key")
	f.StringVar(&o.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	f.StringVar(&o.envFile, "env-file", "", "Load environment variables from this file")
	f.StringArrayVar(&o.sets, "set", nil, "Override a setting (key=value), can be repeated")
}

func (o *rootOptions) envFiles() []string {
	if strings.TrimSpace(o.envFile) == "" {
		return nil
	}
	return []string{o.envFile}
}

// flagOverrides collects the settings keys of flags the user actually set.
func (o *rootOptions) flagOverrides(flags *pflag.FlagSet) map[string]string {
	values := map[string]string{
		"url":          o.url,
		"token":        o.token,
		"query":        o.query,
		"namespace":    o.namespace,
		"kube-config":  o.kubeconfig,
		"kube-context": o.kubeContext,
		"kube":         strconv.FormatBool(o.kube),
		"theme":        o.theme,
	}
	out := make(map[string]string)
	for name, key := range flagKeys {
		if flags != nil && flags.Changed(name) {
			out[key] = values[name]
		}
	}
	return out
}

// resolveSettings layers the settings file, then the environment, then
// --set assignments and finally explicit flags.
func resolveSettings(o *rootOptions, flags *pflag.FlagSet, lookup func(string) (string, bool)) (config.Settings, config.SettingsHandle, error) {
	s, handle, err := config.LoadSettings()
	if err != nil {
		return config.Settings{}, handle, err
	}
	applier := settings.ForSettings(&s)

	if _, err := applier.ApplyAll(config.EnvOverrides(lookup)); err != nil {
		return config.Settings{}, handle, err
	}

	assigned, bad := settings.ParseAssignments(o.sets)
	if len(bad) > 0 {
		return config.Settings{}, handle, errdef.New(errdef.CodeConfig, "invalid --set value %q (use key=value)", bad[0])
	}
	left, err := applier.ApplyAll(assigned)
	if err != nil {
		return config.Settings{}, handle, err
	}
	if len(left) > 0 {
		keys := make([]string, 0, len(left))
		for k := range left {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return config.Settings{}, handle, errdef.New(errdef.CodeConfig, "unknown setting %q", keys[0])
	}

	if _, err := applier.ApplyAll(o.flagOverrides(flags)); err != nil {
		return config.Settings{}, handle, err
	}
	return config.Normalise(s), handle, nil
}

func parseLevel(raw string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return slog.LevelInfo, errdef.Wrap(errdef.CodeConfig, err, "invalid log level %q", raw)
	}
	return level, nil
}

// openLogger writes structured logs to path; the terminal belongs to the UI.
func openLogger(path, level string) (*slog.Logger, func(), error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, nil, err
	}
	var w io.Writer = io.Discard
	closeFn := func() {}
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, errdef.Wrap(errdef.CodeConfig, err, "create log directory")
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, nil, errdef.Wrap(errdef.CodeConfig, err, "open log file %q", path)
		}
		w = f
		closeFn = func() { _ = f.Close() }
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
	return logger, closeFn, nil
}
