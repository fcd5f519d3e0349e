package settings

import (
	"strconv"
	"strings"
	"time"

	"github.com/unkn0wn-root/mizuview/internal/config"
	"github.com/unkn0wn-root/mizuview/internal/errdef"
)

// ForSettings returns an applier that writes recognised keys into s.
func ForSettings(s *config.Settings) *Applier {
	return New(
		ConnectionHandler(s),
		FeaturesHandler(&s.Features),
		FeedHandler(&s.Feed),
		KubeHandler(&s.Kube),
		LayoutHandler(&s.Layout),
	)
}

func ConnectionHandler(s *config.Settings) Handler {
	return Handler{
		Match: KeyMatcher("url", "token", "default_theme", "theme"),
		Apply: func(key, val string) error {
			switch key {
			case "url":
				s.URL = strings.TrimSpace(val)
			case "token":
				s.Token = strings.TrimSpace(val)
			default:
				s.DefaultTheme = strings.TrimSpace(val)
			}
			return nil
		},
	}
}

func FeaturesHandler(f *config.Features) Handler {
	return Handler{
		Match: PrefixMatcher("features."),
		Apply: func(key, val string) error {
			switch key {
			case "features.oas_enabled":
				return setBool(&f.OASEnabled, key, val)
			case "features.service_map_enabled":
				return setBool(&f.ServiceMapEnabled, key, val)
			}
			return unknownKey(key)
		},
	}
}

func FeedHandler(f *config.FeedSettings) Handler {
	return Handler{
		Match: PrefixMatcher("feed."),
		Apply: func(key, val string) error {
			switch key {
			case "feed.dial_timeout":
				d, err := time.ParseDuration(strings.TrimSpace(val))
				if err != nil || d <= 0 {
					return errdef.New(errdef.CodeConfig, "invalid %s %q", key, val)
				}
				f.DialTimeout = d.String()
			case "feed.max_entries":
				n, err := strconv.Atoi(strings.TrimSpace(val))
				if err != nil || n <= 0 {
					return errdef.New(errdef.CodeConfig, "invalid %s %q", key, val)
				}
				f.MaxEntries = n
			case "feed.query":
				f.Query = val
			default:
				return unknownKey(key)
			}
			return nil
		},
	}
}

func KubeHandler(k *config.KubeSettings) Handler {
	return Handler{
		Match: PrefixMatcher("kube."),
		Apply: func(key, val string) error {
			val = strings.TrimSpace(val)
			switch key {
			case "kube.enabled":
				return setBool(&k.Enabled, key, val)
			case "kube.namespace":
				k.Namespace = val
			case "kube.config":
				k.Config = val
			case "kube.context":
				k.Context = val
			default:
				return unknownKey(key)
			}
			return nil
		},
	}
}

func LayoutHandler(l *config.LayoutSettings) Handler {
	return Handler{
		Match: PrefixMatcher("layout."),
		Apply: func(key, val string) error {
			switch key {
			case "layout.list_width":
				f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
				if err != nil {
					return errdef.New(errdef.CodeConfig, "invalid %s %q", key, val)
				}
				l.ListWidth = f
			case "layout.main_split":
				l.MainSplit = config.LayoutMainSplit(strings.TrimSpace(val))
			case "layout.hide_toasts":
				return setBool(&l.HideToasts, key, val)
			default:
				return unknownKey(key)
			}
			*l = config.NormaliseLayoutSettings(*l)
			return nil
		},
	}
}

func setBool(dst *bool, key, val string) error {
	b, err := strconv.ParseBool(strings.TrimSpace(val))
	if err != nil {
		return errdef.New(errdef.CodeConfig, "invalid %s %q (use true or false)", key, val)
	}
	*dst = b
	return nil
}

func unknownKey(key string) error {
	return errdef.New(errdef.CodeConfig, "unknown setting %q", key)
}
