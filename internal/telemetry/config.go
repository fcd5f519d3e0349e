package telemetry

import (
	"strconv"
	"strings"
	"time"

	"github.com/unkn0wn-root/mizuview/internal/errdef"
)

const (
	envEndpoint    = "MIZUVIEW_OTEL_ENDPOINT"
	envInsecure    = "MIZUVIEW_OTEL_INSECURE"
	envService     = "MIZUVIEW_OTEL_SERVICE"
	envDialTimeout = "MIZUVIEW_OTEL_DIAL_TIMEOUT"
	envHeaders     = "MIZUVIEW_OTEL_HEADERS"

	defaultServiceName = "mizuview"
)

type Config struct {
	Endpoint    string
	Insecure    bool
	ServiceName string
	Version     string
	DialTimeout time.Duration
	Headers     map[string]string
}

func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Endpoint) != ""
}

// ConfigFromEnv reads the OTLP exporter settings. Malformed values fall back
// to defaults rather than failing startup.
func ConfigFromEnv(getenv func(string) string) Config {
	cfg := Config{
		Endpoint:    strings.TrimSpace(getenv(envEndpoint)),
		ServiceName: strings.TrimSpace(getenv(envService)),
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = defaultServiceName
	}
	if raw := strings.TrimSpace(getenv(envInsecure)); raw != "" {
		if b, err := strconv.ParseBool(raw); err == nil {
			cfg.Insecure = b
		}
	}
	if raw := strings.TrimSpace(getenv(envDialTimeout)); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cfg.DialTimeout = d
		}
	}
	if headers, err := ParseHeaders(getenv(envHeaders)); err == nil {
		cfg.Headers = headers
	}
	return cfg
}

// ParseHeaders parses "k=v, k2=v2". Blank input yields nil.
func ParseHeaders(raw string) (map[string]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	out := make(map[string]string)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, val, ok := strings.Cut(part, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, errdef.New(errdef.CodeConfig, "invalid telemetry header %q", part)
		}
		out[key] = strings.TrimSpace(val)
	}
	return out, nil
}
