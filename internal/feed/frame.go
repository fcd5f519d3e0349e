package feed

import (
	"encoding/json"
	"time"

	"github.com/unkn0wn-root/mizuview/internal/errdef"
	"github.com/unkn0wn-root/mizuview/internal/traffic"
)

type MessageType string

const (
	MessageTypeEntry         MessageType = "entry"
	MessageTypeFullEntry     MessageType = "fullEntry"
	MessageTypeToast         MessageType = "toast"
	MessageTypeQueryMetadata MessageType = "queryMetadata"
	MessageTypeStartTime     MessageType = "startTime"
)

// QueryRequest is the only frame the client ever writes.
type QueryRequest struct {
	Query             string `json:"query"`
	EnableFullEntries bool   `json:"enableFullEntries"`
}

func EncodeQuery(query string) ([]byte, error) {
	return json.Marshal(QueryRequest{Query: query, EnableFullEntries: false})
}

type envelope struct {
	Type MessageType     `json:"messageType"`
	Data json.RawMessage `json:"data"`
}

// Frame is a decoded inbound message. Exactly one of the typed fields is set
// for known message types; Raw always holds the original payload.
type Frame struct {
	Type      MessageType
	Entry     *traffic.EntrySummary
	FullEntry *traffic.FullEntry
	Toast     *traffic.Toast
	Metadata  *traffic.QueryMetadata
	StartTime time.Time
	Raw       []byte
}

func DecodeFrame(payload []byte) (Frame, error) {
	frame := Frame{Raw: payload}
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return frame, errdef.Wrap(errdef.CodeParse, err, "decode feed frame")
	}
	frame.Type = env.Type

	var target any
	switch env.Type {
	case MessageTypeEntry:
		frame.Entry = &traffic.EntrySummary{}
		target = frame.Entry
	case MessageTypeFullEntry:
		frame.FullEntry = &traffic.FullEntry{}
		target = frame.FullEntry
	case MessageTypeToast:
		frame.Toast = &traffic.Toast{}
		target = frame.Toast
	case MessageTypeQueryMetadata:
		frame.Metadata = &traffic.QueryMetadata{}
		target = frame.Metadata
	case MessageTypeStartTime:
		var ms int64
		if err := json.Unmarshal(env.Data, &ms); err != nil {
			return frame, errdef.Wrap(errdef.CodeParse, err, "decode start time")
		}
		frame.StartTime = time.UnixMilli(ms)
		return frame, nil
	default:
		return frame, nil
	}

	if len(env.Data) == 0 || string(env.Data) == "null" {
		return frame, errdef.New(errdef.CodeParse, "%s frame has no data", env.Type)
	}
	if err := json.Unmarshal(env.Data, target); err != nil {
		return frame, errdef.Wrap(errdef.CodeParse, err, "decode %s frame", env.Type)
	}
	return frame, nil
}
