package entry

import (
	"encoding/json"
	"strings"

	"github.com/unkn0wn-root/mizuview/internal/errdef"
)

type SectionType string

const (
	SectionTable SectionType = "table"
	SectionBody  SectionType = "body"
)

type Section struct {
	Type     SectionType `json:"type"`
	Title    string      `json:"title,omitempty"`
	Data     string      `json:"data"`
	Encoding string      `json:"encoding,omitempty"`
	MimeType string      `json:"mime_type,omitempty"`
	Selector string      `json:"selector,omitempty"`
}

// Entry is one parsed representation. A nil Response means the
// representation carried none; an empty non-nil slice is still a response.
type Entry struct {
	Request  []Section `json:"request"`
	Response []Section `json:"response"`
}

func (e Entry) HasResponse() bool {
	return e.Response != nil
}

func (e Entry) IsEmpty() bool {
	return e.Request == nil && e.Response == nil
}

// Parse decodes a representation string. Blank input and a literal null
// yield an empty Entry; anything else that is not an object is an error.
func Parse(representation string) (Entry, error) {
	trimmed := strings.TrimSpace(representation)
	if trimmed == "" || trimmed == "null" {
		return Entry{}, nil
	}
	var e Entry
	if err := json.Unmarshal([]byte(trimmed), &e); err != nil {
		return Entry{}, errdef.Wrap(errdef.CodeParse, err, "parse entry representation")
	}
	return e, nil
}

// TableRow is one element of a table section's data array.
type TableRow struct {
	Name     string          `json:"name"`
	Value    json.RawMessage `json:"value"`
	Selector string          `json:"selector,omitempty"`
}

// Text renders the value the way it should appear in a table: strings
// unquoted, null as empty, everything else as compact JSON.
func (r TableRow) Text() string {
	raw := strings.TrimSpace(string(r.Value))
	if raw == "" || raw == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(r.Value, &s); err == nil {
		return s
	}
	return raw
}

func decodeRows(data string) ([]TableRow, error) {
	data = strings.TrimSpace(data)
	if data == "" || data == "null" {
		return nil, nil
	}
	var rows []TableRow
	if err := json.Unmarshal([]byte(data), &rows); err != nil {
		return nil, errdef.Wrap(errdef.CodeParse, err, "decode table rows")
	}
	return rows, nil
}
