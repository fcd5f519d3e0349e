package config

import (
	"os"
	"path/filepath"

	"github.com/MakeNowJust/heredoc"

	"github.com/unkn0wn-root/mizuview/internal/errdef"
)

// Template is the commented settings file written by `mizuview config`.
func Template() string {
	return heredoc.Doc(`
		# mizuview settings
		# Location: $MIZUVIEW_CONFIG_DIR/settings.toml (settings.yaml and settings.json also work)

		# Address of the mizu API server. With [kube] enabled it is discovered instead.
		url = "http://localhost:8899"

		# Appended to the feed socket path and sent as x-mizu-token on REST calls.
		token = ""

		default_theme = ""

		[features]
		oas_enabled = false
		service_map_enabled = false

		[feed]
		dial_timeout = "15s"
		max_entries = 10000
		# Query sent when the feed opens.
		query = ""

		[kube]
		enabled = false
		namespace = "mizu"
		# Defaults to $KUBECONFIG or ~/.kube/config.
		config = ""
		context = ""

		[layout]
		list_width = 0.45
		main_split = "vertical"
		hide_toasts = false
	`)
}

// WriteTemplate writes Template to path, creating parent directories.
func WriteTemplate(path string) error {
	if path == "" {
		path = filepath.Join(Dir(), "settings.toml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errdef.Wrap(errdef.CodeConfig, err, "ensure settings directory")
	}
	if err := writeFileAtomic(path, []byte(Template()), 0o600); err != nil {
		return errdef.Wrap(errdef.CodeConfig, err, "write template %q", path)
	}
	return nil
}
