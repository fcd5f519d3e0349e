package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/unkn0wn-root/mizuview/internal/errdef"
)

// envKeys maps environment variables to settings keys.
var envKeys = map[string]string{
	"MIZUVIEW_URL":                 "url",
	"MIZUVIEW_TOKEN":               "token",
	"MIZUVIEW_THEME":               "default_theme",
	"MIZUVIEW_OAS_ENABLED":         "features.oas_enabled",
	"MIZUVIEW_SERVICE_MAP_ENABLED": "features.service_map_enabled",
	"MIZUVIEW_DIAL_TIMEOUT":        "feed.dial_timeout",
	"MIZUVIEW_MAX_ENTRIES":         "feed.max_entries",
	"MIZUVIEW_QUERY":               "feed.query",
	"MIZUVIEW_NAMESPACE":           "kube.namespace",
	"MIZUVIEW_KUBECONFIG":          "kube.config",
}

// LoadDotEnv reads .env files into the process environment without
// overriding variables that are already set. With no paths it looks for
// .env in the working directory and in the config dir. Missing files are
// ignored.
func LoadDotEnv(paths ...string) ([]string, error) {
	if len(paths) == 0 {
		paths = []string{".env", filepath.Join(Dir(), ".env")}
	}
	var loaded []string
	for _, path := range paths {
		if strings.TrimSpace(path) == "" {
			continue
		}
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return loaded, errdef.Wrap(errdef.CodeConfig, err, "load env file %q", path)
		}
		loaded = append(loaded, path)
	}
	return loaded, nil
}

// EnvOverrides collects settings keys from the environment. lookup is
// os.LookupEnv in production.
func EnvOverrides(lookup func(string) (string, bool)) map[string]string {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	out := make(map[string]string)
	for env, key := range envKeys {
		if val, ok := lookup(env); ok && strings.TrimSpace(val) != "" {
			out[key] = val
		}
	}
	return out
}
