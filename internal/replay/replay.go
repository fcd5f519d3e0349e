package replay

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"sort"
	"strings"

	"github.com/aymanbagabas/go-udiff"
	"github.com/google/uuid"

	"github.com/unkn0wn-root/mizuview/internal/entry"
	"github.com/unkn0wn-root/mizuview/internal/errdef"
	"github.com/unkn0wn-root/mizuview/internal/traffic"
)

const RequestIDHeader = "x-mizu"

var methods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}

// Param is one ordered key/value pair of a query string or header list.
type Param struct {
	Key   string
	Value string
}

// Request is an editable copy of a captured HTTP request.
type Request struct {
	Method  string
	URL     string
	Params  []Param
	Headers []Param
	Body    string
	Mime    string
}

// FromEntry lifts the request half of a representation into an editable
// request. Tables titled Details, Headers and Query String feed the method
// and URL, headers and params; the first body section becomes the body.
func FromEntry(e entry.Entry) (Request, error) {
	var req Request
	for _, block := range entry.Sections(e.Request) {
		switch b := block.(type) {
		case entry.TableBlock:
			if b.Err != nil {
				continue
			}
			switch normalTitle(b.Title) {
			case "details", "general":
				for _, row := range b.Rows {
					switch strings.ToLower(row.Name) {
					case "method":
						req.Method = strings.ToUpper(row.Text())
					case "url":
						req.URL = row.Text()
					case "path":
						if req.URL == "" {
							req.URL = row.Text()
						}
					}
				}
			case "headers":
				req.Headers = appendRows(req.Headers, b.Rows)
			case "query string", "query", "params":
				req.Params = appendRows(req.Params, b.Rows)
			}
		case entry.BodyBlock:
			if req.Body != "" {
				continue
			}
			data, err := b.Decoded()
			if err != nil {
				return req, err
			}
			req.Body = data
			req.Mime = b.MimeType
		}
	}
	if req.Method == "" {
		req.Method = "GET"
	}
	if req.URL == "" {
		return req, errdef.New(errdef.CodeParse, "entry has no request url")
	}
	req.URL, req.Params = splitQuery(req.URL, req.Params)
	return req, nil
}

func normalTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

func appendRows(dst []Param, rows []entry.TableRow) []Param {
	for _, row := range rows {
		if row.Name == "" {
			continue
		}
		dst = append(dst, Param{Key: row.Name, Value: row.Text()})
	}
	return dst
}

// splitQuery moves a query string embedded in the URL into params, keeping
// params already known from the query table.
func splitQuery(raw string, params []Param) (string, []Param) {
	base, query, ok := strings.Cut(raw, "?")
	if !ok {
		return raw, params
	}
	if len(params) > 0 {
		return base, params
	}
	values, err := url.ParseQuery(query)
	if err != nil {
		return raw, params
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range values[k] {
			params = append(params, Param{Key: k, Value: v})
		}
	}
	return base, params
}

// FullURL rebuilds the target from the path and params in order.
func (r Request) FullURL() string {
	if len(r.Params) == 0 {
		return r.URL
	}
	var b strings.Builder
	b.WriteString(r.URL)
	sep := "?"
	if strings.Contains(r.URL, "?") {
		sep = "&"
	}
	for _, p := range r.Params {
		b.WriteString(sep)
		b.WriteString(url.QueryEscape(p.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Value))
		sep = "&"
	}
	return b.String()
}

// CycleMethod steps through the supported verbs.
func (r *Request) CycleMethod() {
	for i, m := range methods {
		if m == r.Method {
			r.Method = methods[(i+1)%len(methods)]
			return
		}
	}
	r.Method = methods[0]
}

// Details is the payload the replay endpoint expects.
func (r Request) Details() traffic.ReplayDetails {
	headers := make(map[string]string, len(r.Headers))
	for _, h := range r.Headers {
		headers[h.Key] = h.Value
	}
	return traffic.ReplayDetails{
		Method:  strings.ToUpper(r.Method),
		URL:     r.FullURL(),
		Body:    r.Body,
		Headers: headers,
	}
}

// Sender is the part of the API client a replay needs.
type Sender interface {
	Replay(ctx context.Context, details traffic.ReplayDetails, requestID string) (traffic.ReplayResponse, error)
}

type Result struct {
	RequestID string
	Response  traffic.ReplayResponse
	Entry     entry.Entry
}

// Run sends the request under a fresh request id. When the server answers
// with a representation it is parsed so the response can be rendered and
// compared.
func Run(ctx context.Context, s Sender, r Request) (Result, error) {
	id := uuid.NewString()
	resp, err := s.Replay(ctx, r.Details(), id)
	if err != nil {
		return Result{RequestID: id}, err
	}
	res := Result{RequestID: id, Response: resp}
	if rep := representationOf(resp.Data); rep != "" {
		e, err := entry.Parse(rep)
		if err != nil {
			return res, err
		}
		res.Entry = e
	}
	return res, nil
}

func representationOf(data json.RawMessage) string {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return ""
	}
	var wrapped struct {
		Representation string `json:"representation"`
	}
	if json.Unmarshal(data, &wrapped) == nil && wrapped.Representation != "" {
		return wrapped.Representation
	}
	var s string
	if json.Unmarshal(data, &s) == nil {
		return s
	}
	return ""
}

// ResponseBody returns the first decoded body of an entry's response.
func ResponseBody(e entry.Entry) string {
	for _, block := range entry.Sections(e.Response) {
		b, ok := block.(entry.BodyBlock)
		if !ok {
			continue
		}
		data, err := b.Decoded()
		if err != nil {
			return b.Data
		}
		return prettyJSON(data)
	}
	return ""
}

func prettyJSON(s string) string {
	var buf bytes.Buffer
	if json.Indent(&buf, []byte(s), "", "  ") != nil {
		return s
	}
	return buf.String()
}

// Diff renders a unified diff between the captured and the replayed
// response bodies. Identical bodies produce an empty string.
func Diff(captured, replayed entry.Entry) string {
	left := ensureNewline(ResponseBody(captured))
	right := ensureNewline(ResponseBody(replayed))
	if left == right {
		return ""
	}
	return udiff.Unified("captured", "replayed", left, right)
}

func ensureNewline(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
