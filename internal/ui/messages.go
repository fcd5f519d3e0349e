package ui

import (
	"github.com/unkn0wn-root/mizuview/internal/history"
	"github.com/unkn0wn-root/mizuview/internal/openapi"
	"github.com/unkn0wn-root/mizuview/internal/replay"
	"github.com/unkn0wn-root/mizuview/internal/stream"
	"github.com/unkn0wn-root/mizuview/internal/traffic"
)

type statusLevel int

const (
	statusInfo statusLevel = iota
	statusWarn
	statusError
	statusSuccess
)

type statusMsg struct {
	text  string
	level statusLevel
}

type feedEventMsg struct {
	sessionID string
	events    []*stream.Event
}

type feedStateMsg struct {
	sessionID string
	state     stream.State
	err       error
}

type feedCompleteMsg struct {
	sessionID string
}

type entryLoadedMsg struct {
	id   string
	full traffic.FullEntry
	err  error
}

type statsLoadedMsg struct {
	pie      []traffic.ProtocolStats
	timeline []traffic.TimelineStats
	err      error
}

type tappingStatusMsg struct {
	status traffic.TappingStatus
	err    error
}

type oasServicesMsg struct {
	services []string
	err      error
}

type oasSpecMsg struct {
	service string
	spec    *openapi.Spec
	err     error
}

type replayDoneMsg struct {
	result replay.Result
	err    error
}

type historyLoadedMsg struct {
	entries []history.Entry
	err     error
}

type toastExpiredMsg struct {
	seq int
}

type startFeedMsg struct{}
