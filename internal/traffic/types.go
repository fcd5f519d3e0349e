package traffic

import (
	"encoding/json"
	"time"
)

type Protocol struct {
	Name            string `json:"name"`
	LongName        string `json:"longName,omitempty"`
	Abbreviation    string `json:"abbr"`
	Macro           string `json:"macro,omitempty"`
	Version         string `json:"version,omitempty"`
	BackgroundColor string `json:"backgroundColor,omitempty"`
	ForegroundColor string `json:"foregroundColor,omitempty"`
}

type Peer struct {
	IP   string `json:"ip"`
	Port string `json:"port"`
	Name string `json:"name"`
}

func (p Peer) Display() string {
	if p.Name != "" {
		return p.Name
	}
	if p.Port == "" {
		return p.IP
	}
	return p.IP + ":" + p.Port
}

type RulesSummary struct {
	Status        bool  `json:"status"`
	Latency       int64 `json:"latency"`
	NumberOfRules int   `json:"numberOfRules"`
}

type ContractStatus int

const (
	ContractNotApplicable ContractStatus = iota
	ContractPassed
	ContractBreached
)

func (c ContractStatus) String() string {
	switch c {
	case ContractPassed:
		return "passed"
	case ContractBreached:
		return "breached"
	default:
		return "n/a"
	}
}

// EntrySummary is the base entry the server pushes for every captured
// interaction matching the active query.
type EntrySummary struct {
	ID             string         `json:"id"`
	Protocol       Protocol       `json:"proto"`
	Method         string         `json:"method"`
	Path           string         `json:"path"`
	Summary        string         `json:"summary"`
	Status         int            `json:"status"`
	StatusQuery    string         `json:"statusQuery,omitempty"`
	Src            Peer           `json:"src"`
	Dst            Peer           `json:"dst"`
	Timestamp      int64          `json:"timestamp"`
	ElapsedTime    int64          `json:"elapsedTime"`
	IsOutgoing     bool           `json:"isOutgoing"`
	Latency        int64          `json:"latency"`
	Rules          RulesSummary   `json:"rules"`
	ContractStatus ContractStatus `json:"contractStatus"`
}

func (e EntrySummary) Time() time.Time {
	if e.Timestamp <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(e.Timestamp)
}

// UnmarshalJSON accepts numeric ids as well as strings; older servers send
// the storage row id as a number.
func (e *EntrySummary) UnmarshalJSON(data []byte) error {
	type alias EntrySummary
	aux := struct {
		*alias
		ID json.RawMessage `json:"id"`
	}{alias: (*alias)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	e.ID = rawID(aux.ID)
	return nil
}

func rawID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return string(raw)
}

type RulePolicy struct {
	Type    string `json:"Type"`
	Service string `json:"Service"`
	Path    string `json:"Path"`
	Method  string `json:"Method"`
	Key     string `json:"Key"`
	Value   string `json:"Value"`
	Latency int64  `json:"Latency"`
	Name    string `json:"Name"`
}

type RuleMatch struct {
	Matched bool       `json:"matched"`
	Rule    RulePolicy `json:"rule"`
}

type FullEntry struct {
	Protocol        Protocol        `json:"protocol"`
	Representation  string          `json:"representation"`
	BodySize        int64           `json:"bodySize"`
	Data            json.RawMessage `json:"data"`
	IsRulesEnabled  bool            `json:"isRulesEnabled"`
	RulesMatched    []RuleMatch     `json:"rulesMatched"`
	ContractStatus  ContractStatus  `json:"contractStatus"`
	ContractReason  string          `json:"contractReason"`
	ContractContent string          `json:"contractContent"`
	ElapsedTime     int64           `json:"elapsedTime"`
}

type Toast struct {
	Type      string `json:"type"`
	AutoClose int    `json:"autoClose"`
	Text      string `json:"text"`
}

type QueryMetadata struct {
	Current  int `json:"current"`
	Total    int `json:"total"`
	LeftOff  int `json:"leftOff"`
	Truncate int `json:"truncatedTimestamp,omitempty"`
}

type ReplayDetails struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Body    string            `json:"body"`
	Headers map[string]string `json:"headers"`
}

type TappingStatus struct {
	Pods      []TappedPod `json:"pods"`
	TapperIDs []string    `json:"tapperIds,omitempty"`
}

type TappedPod struct {
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
	IsTapped  bool   `json:"isTapped"`
}

type MethodStats struct {
	Name            string `json:"name"`
	EntriesCount    int64  `json:"entriesCount"`
	VolumeSizeBytes int64  `json:"volumeSizeBytes"`
}

type ProtocolStats struct {
	Name            string        `json:"name"`
	EntriesCount    int64         `json:"entriesCount"`
	VolumeSizeBytes int64         `json:"volumeSizeBytes"`
	Color           string        `json:"color"`
	Methods         []MethodStats `json:"methods"`
}

// TimelineStats is one time bucket of the accumulative timing endpoint;
// Timestamp is in unix milliseconds.
type TimelineStats struct {
	Timestamp int64           `json:"timestamp"`
	Protocols []ProtocolStats `json:"protocols"`
}

func (t TimelineStats) Time() time.Time {
	return time.UnixMilli(t.Timestamp)
}

// ReplayResponse is what the server returns after re-sending a request.
type ReplayResponse struct {
	Success      bool            `json:"success"`
	Data         json.RawMessage `json:"data"`
	ErrorMessage string          `json:"errorMessage"`
}
