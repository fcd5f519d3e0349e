package settings

import (
	"sort"
	"strings"
)

// Handler claims the keys it matches and applies their values.
type Handler struct {
	Match func(key string) bool
	Apply func(key, val string) error
}

type Applier struct {
	handlers []Handler
}

func New(handlers ...Handler) *Applier {
	return &Applier{handlers: handlers}
}

// ApplyAll applies every key claimed by a handler, in key order, and returns
// the keys nobody claimed.
func (a *Applier) ApplyAll(settings map[string]string) (map[string]string, error) {
	norm := normalize(settings)
	keys := make([]string, 0, len(norm))
	for k := range norm {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	left := make(map[string]string)
	for _, key := range keys {
		val := norm[key]
		claimed := false
		for _, h := range a.handlers {
			if h.Match == nil || !h.Match(key) {
				continue
			}
			claimed = true
			if err := h.Apply(key, val); err != nil {
				return left, err
			}
			break
		}
		if !claimed {
			left[key] = val
		}
	}
	return left, nil
}

func PrefixMatcher(prefix string) func(string) bool {
	p := strings.ToLower(strings.TrimSpace(prefix))
	return func(key string) bool {
		return strings.HasPrefix(key, p)
	}
}

func KeyMatcher(keys ...string) func(string) bool {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[strings.ToLower(strings.TrimSpace(k))] = struct{}{}
	}
	return func(key string) bool {
		_, ok := set[key]
		return ok
	}
}

// ParseAssignments turns repeated key=value flags into a map.
func ParseAssignments(pairs []string) (map[string]string, []string) {
	out := make(map[string]string, len(pairs))
	var bad []string
	for _, pair := range pairs {
		key, val, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			bad = append(bad, pair)
			continue
		}
		out[key] = strings.TrimSpace(val)
	}
	return out, bad
}

func normalize(settings map[string]string) map[string]string {
	norm := make(map[string]string, len(settings))
	for k, v := range settings {
		norm[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return norm
}
