package entry

import (
	"encoding/base64"
	"strings"

	"github.com/unkn0wn-root/mizuview/internal/errdef"
	"github.com/unkn0wn-root/mizuview/internal/traffic"
)

// Block is one renderable piece of an entry panel.
type Block interface {
	block()
}

type TableBlock struct {
	Title string
	Rows  []TableRow
	// Err is set when the section data could not be decoded; Raw keeps it.
	Err error
	Raw string
}

type BodyBlock struct {
	Title    string
	Data     string
	Encoding string
	MimeType string
	Selector string
}

type RuleCheck struct {
	Policy traffic.RulePolicy
	Passed bool
}

type RulesBlock struct {
	Title   string
	Elapsed int64
	Checks  []RuleCheck
}

type ContractBlock struct {
	Title   string
	Reason  string
	Content string
}

func (TableBlock) block()    {}
func (BodyBlock) block()     {}
func (RulesBlock) block()    {}
func (ContractBlock) block() {}

// Sections maps sections to blocks in input order. Unknown section types are
// skipped so newer servers can add kinds without breaking the view.
func Sections(list []Section) []Block {
	blocks := make([]Block, 0, len(list))
	for _, s := range list {
		switch s.Type {
		case SectionTable:
			rows, err := decodeRows(s.Data)
			tb := TableBlock{Title: s.Title, Rows: rows, Err: err}
			if err != nil {
				tb.Raw = s.Data
			}
			blocks = append(blocks, tb)
		case SectionBody:
			blocks = append(blocks, BodyBlock{
				Title:    s.Title,
				Data:     s.Data,
				Encoding: s.Encoding,
				MimeType: s.MimeType,
				Selector: s.Selector,
			})
		}
	}
	return blocks
}

// Decoded returns the body content with its transfer encoding removed.
func (b BodyBlock) Decoded() (string, error) {
	if !strings.EqualFold(strings.TrimSpace(b.Encoding), "base64") {
		return b.Data, nil
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b.Data))
	if err != nil {
		return b.Data, errdef.Wrap(errdef.CodeParse, err, "decode base64 body")
	}
	return string(raw), nil
}

// Rules builds the policy table for an entry. Latency policies pass while
// the entry stayed within the budget; every other policy passes when the
// server reported a match.
func Rules(matches []traffic.RuleMatch, elapsed int64) RulesBlock {
	rb := RulesBlock{Title: "Rule", Elapsed: elapsed}
	for _, m := range matches {
		check := RuleCheck{Policy: m.Rule, Passed: m.Matched}
		if strings.EqualFold(m.Rule.Type, "latency") {
			check.Passed = m.Rule.Latency >= elapsed
		}
		rb.Checks = append(rb.Checks, check)
	}
	return rb
}

func Contract(full traffic.FullEntry) ContractBlock {
	return ContractBlock{Title: "Contract", Reason: full.ContractReason, Content: full.ContractContent}
}
