package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/publicsuffix"

	"github.com/unkn0wn-root/mizuview/internal/errdef"
	"github.com/unkn0wn-root/mizuview/internal/telemetry"
	"github.com/unkn0wn-root/mizuview/internal/traffic"
)

const (
	TokenHeader    = "x-mizu-token"
	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 32 << 20
)

type Options struct {
	BaseURL   string
	Token     string
	Timeout   time.Duration
	Transport http.RoundTripper
	Logger    *slog.Logger
	Telemetry telemetry.Instrumenter
}

// Client talks to the mizu API server REST endpoints.
type Client struct {
	base *url.URL
	opts Options
	http *http.Client
	log  *slog.Logger
	tel  telemetry.Instrumenter
}

func NewClient(opts Options) (*Client, error) {
	base, err := parseBase(opts.BaseURL)
	if err != nil {
		return nil, err
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	transport := opts.Transport
	if transport == nil {
		transport, err = newTransport()
		if err != nil {
			return nil, err
		}
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeHTTP, err, "create cookie jar")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	tel := opts.Telemetry
	if tel == nil {
		tel = telemetry.Noop()
	}
	return &Client{
		base: base,
		opts: opts,
		http: &http.Client{Transport: transport, Jar: jar, Timeout: opts.Timeout},
		log:  logger,
		tel:  tel,
	}, nil
}

func parseBase(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errdef.New(errdef.CodeConfig, "api url is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeConfig, err, "parse api url")
	}
	switch u.Scheme {
	case "http", "https":
	default:
		return nil, errdef.New(errdef.CodeConfig, "unsupported api url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errdef.New(errdef.CodeConfig, "api url has no host")
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

func newTransport() (*http.Transport, error) {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	if err := http2.ConfigureTransport(transport); err != nil {
		return nil, errdef.Wrap(errdef.CodeHTTP, err, "enable http2")
	}
	return transport, nil
}

// BaseURL returns the server root every endpoint is resolved against.
func (c *Client) BaseURL() string {
	return c.base.String()
}

func (c *Client) endpoint(path string) string {
	u := *c.base
	u.Path = c.base.Path + path
	return u.String()
}

// do performs one call and decodes a JSON response into out when out is
// non-nil. Non-2xx statuses are errors carrying the server's message.
func (c *Client) do(ctx context.Context, op, method, path string, body any, header http.Header, out any) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var reader io.Reader
	if body != nil {
		payload, mErr := json.Marshal(body)
		if mErr != nil {
			return errdef.Wrap(errdef.CodeHTTP, mErr, "%s: encode body", op)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), reader)
	if err != nil {
		return errdef.Wrap(errdef.CodeHTTP, err, "%s: build request", op)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.opts.Token != "" {
		req.Header.Set(TokenHeader, c.opts.Token)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	ctx, span := c.tel.Start(ctx, telemetry.CallStart{Operation: op, HTTPRequest: req})
	req = req.WithContext(ctx)
	var (
		status int
		size   int64
	)
	defer func() {
		span.End(telemetry.Result{Err: err, StatusCode: status, Bytes: size})
	}()

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("api call failed", "op", op, "err", err)
		return errdef.Wrap(errdef.CodeHTTP, err, "%s", op)
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return errdef.Wrap(errdef.CodeHTTP, err, "%s: read body", op)
	}
	size = int64(len(data))
	c.log.Debug("api call", "op", op, "status", status, "bytes", size, "took", time.Since(start))

	if status < 200 || status > 299 {
		return errdef.Wrap(errdef.CodeHTTP, &StatusError{Code: status, Body: serverMessage(data)}, "%s", op)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errdef.Wrap(errdef.CodeParse, err, "%s: decode response", op)
	}
	return nil
}

// StatusError is returned, wrapped, for responses outside 2xx.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("status %d", e.Code)
	}
	return fmt.Sprintf("status %d: %s", e.Code, e.Body)
}

func serverMessage(data []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"msg"`
	}
	if json.Unmarshal(data, &payload) == nil {
		switch {
		case payload.Error != "":
			return payload.Error
		case payload.Message != "":
			return payload.Message
		}
	}
	msg := strings.TrimSpace(string(data))
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	return msg
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, "logout", http.MethodPost, "/user/logout", nil, nil, nil)
}

// GetOASServices lists the services the server has inferred specs for.
func (c *Client) GetOASServices(ctx context.Context) ([]string, error) {
	var out []string
	if err := c.do(ctx, "oas.services", http.MethodGet, "/oas", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetOASAllSpecs returns every inferred OpenAPI document keyed by service.
func (c *Client) GetOASAllSpecs(ctx context.Context) (map[string]json.RawMessage, error) {
	out := map[string]json.RawMessage{}
	if err := c.do(ctx, "oas.all", http.MethodGet, "/oas/all", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetOASByService(ctx context.Context, serviceID string) (json.RawMessage, error) {
	if strings.TrimSpace(serviceID) == "" {
		return nil, errdef.New(errdef.CodeHTTP, "oas.service: empty service id")
	}
	var out json.RawMessage
	path := "/oas/" + url.PathEscape(serviceID)
	if err := c.do(ctx, "oas.service", http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetEntry(ctx context.Context, id string) (traffic.FullEntry, error) {
	var out traffic.FullEntry
	if strings.TrimSpace(id) == "" {
		return out, errdef.New(errdef.CodeHTTP, "entry: empty id")
	}
	err := c.do(ctx, "entry", http.MethodGet, "/entries/"+url.PathEscape(id), nil, nil, &out)
	return out, err
}

func (c *Client) GetPieStats(ctx context.Context) ([]traffic.ProtocolStats, error) {
	var out []traffic.ProtocolStats
	if err := c.do(ctx, "stats.accumulative", http.MethodGet, "/status/accumulative", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetTimelineStats(ctx context.Context) ([]traffic.TimelineStats, error) {
	var out []traffic.TimelineStats
	if err := c.do(ctx, "stats.timing", http.MethodGet, "/status/accumulativeTiming", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Replay asks the server to resend a captured request. requestID, when set,
// travels in the x-mizu header so the replayed entry can be found again.
func (c *Client) Replay(ctx context.Context, details traffic.ReplayDetails, requestID string) (traffic.ReplayResponse, error) {
	var out traffic.ReplayResponse
	var header http.Header
	if requestID != "" {
		header = http.Header{}
		header.Set("x-mizu", requestID)
	}
	if err := c.do(ctx, "replay", http.MethodPost, "/replay/", details, header, &out); err != nil {
		return out, err
	}
	if !out.Success && out.ErrorMessage != "" {
		return out, errdef.New(errdef.CodeHTTP, "replay: %s", out.ErrorMessage)
	}
	return out, nil
}

func (c *Client) GetTappingStatus(ctx context.Context) (traffic.TappingStatus, error) {
	var out traffic.TappingStatus
	err := c.do(ctx, "status.tap", http.MethodGet, "/status/tap", nil, nil, &out)
	return out, err
}
