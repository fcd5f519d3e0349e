package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/unkn0wn-root/mizuview/internal/telemetry"

const (
	keyOperation     = attribute.Key("mizuview.api.operation")
	keyResponseBytes = attribute.Key("mizuview.response.bytes")
	keyFeedSession   = attribute.Key("mizuview.feed.session")
	keyFeedQuery     = attribute.Key("mizuview.feed.query")
	keyFeedMessages  = attribute.Key("mizuview.feed.messages")
	keyHTTPHost      = attribute.Key("http.host")
)

// Instrumenter starts spans for REST calls and feed sessions.
type Instrumenter interface {
	Start(ctx context.Context, info CallStart) (context.Context, Span)
	StartFeed(ctx context.Context, info FeedStart) (context.Context, Span)
	Shutdown(ctx context.Context) error
}

// CallStart describes one REST call. Operation names the client method.
type CallStart struct {
	Operation   string
	HTTPRequest *http.Request
}

type FeedStart struct {
	SessionID string
	URL       string
	Query     string
}

// Result closes a span. Messages is only recorded on feed spans.
type Result struct {
	Err        error
	StatusCode int
	Bytes      int64
	Messages   int
}

type Span interface {
	Event(name string, attrs map[string]string)
	End(result Result)
}

type settings struct {
	exporter   sdktrace.SpanExporter
	processors []sdktrace.SpanProcessor
}

type Option func(*settings)

// WithSpanProcessor adds a processor next to the exporter; tests pass a
// tracetest.SpanRecorder here.
func WithSpanProcessor(proc sdktrace.SpanProcessor) Option {
	return func(s *settings) {
		if proc != nil {
			s.processors = append(s.processors, proc)
		}
	}
}

func WithExporter(exp sdktrace.SpanExporter) Option {
	return func(s *settings) {
		if exp != nil {
			s.exporter = exp
		}
	}
}

type tracer struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
	once     sync.Once
}

// New builds an OTLP-backed instrumenter. Without an endpoint, exporter or
// processor it returns Noop.
func New(cfg Config, opts ...Option) (Instrumenter, error) {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}
	if !cfg.Enabled() && s.exporter == nil && len(s.processors) == 0 {
		return Noop(), nil
	}

	res, err := resource.New(
		context.Background(),
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithAttributes(serviceAttributes(cfg)...),
	)
	if err != nil {
		return nil, err
	}
	if s.exporter == nil && cfg.Enabled() {
		if s.exporter, err = dialExporter(cfg); err != nil {
			return nil, err
		}
	}

	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if s.exporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(s.exporter))
	}
	for _, proc := range s.processors {
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(proc))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)
	return &tracer{tracer: tp.Tracer(tracerName), provider: tp}, nil
}

func (t *tracer) Start(ctx context.Context, info CallStart) (context.Context, Span) {
	if info.HTTPRequest == nil {
		return ctx, noopSpan{}
	}
	ctx, span := t.tracer.Start(ctx, callName(info),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(callAttributes(info)...),
	)
	return ctx, &otelSpan{span: span}
}

func (t *tracer) StartFeed(ctx context.Context, info FeedStart) (context.Context, Span) {
	attrs := []attribute.KeyValue{keyFeedSession.String(info.SessionID)}
	if info.URL != "" {
		attrs = append(attrs, semconv.HTTPURLKey.String(info.URL))
	}
	if q := strings.TrimSpace(info.Query); q != "" {
		attrs = append(attrs, keyFeedQuery.String(q))
	}
	ctx, span := t.tracer.Start(ctx, "feed.session",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	return ctx, &otelSpan{span: span, feed: true}
}

// Shutdown flushes pending spans. Calls after the first return nil.
func (t *tracer) Shutdown(ctx context.Context) error {
	var err error
	t.once.Do(func() { err = t.provider.Shutdown(ctx) })
	return err
}

type otelSpan struct {
	span trace.Span
	feed bool
}

func (s *otelSpan) Event(name string, attrs map[string]string) {
	kv := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		kv = append(kv, attribute.String(k, v))
	}
	s.span.AddEvent(name, trace.WithAttributes(kv...), trace.WithTimestamp(time.Now()))
}

func (s *otelSpan) End(r Result) {
	if r.StatusCode > 0 {
		s.span.SetAttributes(semconv.HTTPStatusCodeKey.Int(r.StatusCode))
	}
	if r.Bytes > 0 {
		s.span.SetAttributes(keyResponseBytes.Int64(r.Bytes))
	}
	if s.feed {
		s.span.SetAttributes(keyFeedMessages.Int(r.Messages))
	}
	if r.Err != nil {
		s.span.RecordError(r.Err)
	}
	s.span.SetStatus(status(r))
	s.span.End()
}

// status maps a result to a span status: transport errors first, then
// HTTP 4xx and 5xx.
func status(r Result) (codes.Code, string) {
	switch {
	case r.Err != nil:
		return codes.Error, r.Err.Error()
	case r.StatusCode >= 400:
		return codes.Error, fmt.Sprintf("HTTP %d", r.StatusCode)
	default:
		return codes.Ok, "OK"
	}
}

func Noop() Instrumenter {
	return noopInstrumenter{}
}

type noopInstrumenter struct{}

type noopSpan struct{}

func (noopInstrumenter) Start(ctx context.Context, _ CallStart) (context.Context, Span) {
	return ctx, noopSpan{}
}

func (noopInstrumenter) StartFeed(ctx context.Context, _ FeedStart) (context.Context, Span) {
	return ctx, noopSpan{}
}

func (noopInstrumenter) Shutdown(context.Context) error { return nil }

func (noopSpan) Event(string, map[string]string) {}

func (noopSpan) End(Result) {}

func dialExporter(cfg Config) (sdktrace.SpanExporter, error) {
	if !cfg.Enabled() {
		return nil, errors.New("telemetry endpoint is required")
	}
	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
	}
	return otlptrace.New(ctx, otlptracegrpc.NewClient(opts...))
}

func serviceAttributes(cfg Config) []attribute.KeyValue {
	attrs := []attribute.KeyValue{semconv.ServiceName(cfg.ServiceName)}
	if v := strings.TrimSpace(cfg.Version); v != "" {
		attrs = append(attrs, semconv.ServiceVersion(v))
	}
	return attrs
}

func callAttributes(info CallStart) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if op := strings.TrimSpace(info.Operation); op != "" {
		attrs = append(attrs, keyOperation.String(op))
	}
	req := info.HTTPRequest
	if req.Method != "" {
		attrs = append(attrs, semconv.HTTPMethodKey.String(req.Method))
	}
	if u := req.URL; u != nil {
		if u.Scheme != "" {
			attrs = append(attrs, semconv.HTTPSchemeKey.String(u.Scheme))
		}
		if u.Host != "" {
			attrs = append(attrs, keyHTTPHost.String(u.Host))
		}
		attrs = append(attrs, semconv.HTTPTargetKey.String(u.RequestURI()))
	}
	return attrs
}

// callName prefers the client operation, then "METHOD /path".
func callName(info CallStart) string {
	if op := strings.TrimSpace(info.Operation); op != "" {
		return "api." + op
	}
	req := info.HTTPRequest
	switch {
	case req.Method == "":
		return "http.request"
	case req.URL == nil || req.URL.Path == "":
		return req.Method
	default:
		return req.Method + " " + req.URL.Path
	}
}
