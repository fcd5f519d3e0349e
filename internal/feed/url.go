package feed

import (
	"net/url"
	"strings"

	"github.com/unkn0wn-root/mizuview/internal/errdef"
)

const defaultSocketPath = "/ws"

// SocketURL derives the feed endpoint from the API base URL. The scheme is
// switched to ws/wss, "/ws" is used when the base has no path and a
// non-empty token is appended as its own path segment.
func SocketURL(base, token string) (string, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		return "", errdef.New(errdef.CodeConfig, "feed url is empty")
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", errdef.Wrap(errdef.CodeConfig, err, "parse feed url")
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", errdef.New(errdef.CodeConfig, "unsupported feed url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errdef.New(errdef.CodeConfig, "feed url %q has no host", base)
	}

	path := strings.TrimRight(u.Path, "/")
	if path == "" || !strings.HasSuffix(path, defaultSocketPath) {
		path += defaultSocketPath
	}
	u.Path = path
	u.RawPath = ""
	if token = strings.TrimSpace(token); token != "" {
		// the token stays one segment even when it holds '/'
		u.RawPath = u.EscapedPath() + "/" + url.PathEscape(token)
		u.Path = path + "/" + token
	}
	return u.String(), nil
}

// redactURL hides the trailing token segment so it never reaches logs or
// error text.
func redactURL(raw, token string) string {
	token = strings.TrimSpace(token)
	if token == "" {
		return raw
	}
	if seg := "/" + url.PathEscape(token); strings.HasSuffix(raw, seg) {
		return strings.TrimSuffix(raw, seg) + "/***"
	}
	return raw
}
