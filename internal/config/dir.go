package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	appName      = "mizuview"
	configDirEnv = "MIZUVIEW_CONFIG_DIR"
)

// Dir resolves the configuration directory. MIZUVIEW_CONFIG_DIR wins,
// then the OS user config dir, then ~/.mizuview.
func Dir() string {
	if dir := strings.TrimSpace(os.Getenv(configDirEnv)); dir != "" {
		return dir
	}
	if base, err := os.UserConfigDir(); err == nil && base != "" {
		return filepath.Join(base, appName)
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, "."+appName)
	}
	return "." + appName
}

func LogPath() string {
	return filepath.Join(Dir(), appName+".log")
}

func HistoryPath() string {
	return filepath.Join(Dir(), "history.db")
}

func ThemeDir() string {
	return filepath.Join(Dir(), "themes")
}
