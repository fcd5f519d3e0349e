package entry

import (
	"github.com/unkn0wn-root/mizuview/internal/tabs"
	"github.com/unkn0wn-root/mizuview/internal/traffic"
)

// View pairs a full entry with its parsed representation.
type View struct {
	Entry Entry
	Full  traffic.FullEntry
}

func NewView(full traffic.FullEntry) (View, error) {
	e, err := Parse(full.Representation)
	if err != nil {
		return View{}, err
	}
	return View{Entry: e, Full: full}, nil
}

func (v View) Flags() tabs.Flags {
	return tabs.Flags{
		HasResponse:    v.Entry.HasResponse(),
		RulesEnabled:   v.Full.IsRulesEnabled,
		ContractStatus: v.Full.ContractStatus,
	}
}

// Blocks returns the content of one tab. Tabs that are not visible for
// this entry yield nothing.
func (v View) Blocks(label string) []Block {
	d, ok := tabs.Lookup(label)
	if !ok || !d.Visible(v.Flags()) {
		return nil
	}
	switch label {
	case tabs.Request:
		return Sections(v.Entry.Request)
	case tabs.Response:
		return Sections(v.Entry.Response)
	case tabs.Rules:
		return []Block{Rules(v.Full.RulesMatched, v.Full.ElapsedTime)}
	case tabs.Contract:
		return []Block{Contract(v.Full)}
	}
	return nil
}
