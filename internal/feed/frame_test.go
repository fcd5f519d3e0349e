package feed

import (
	"testing"

	"github.com/unkn0wn-root/mizuview/internal/errdef"
	"github.com/unkn0wn-root/mizuview/internal/traffic"
)

func TestEncodeQueryDisablesFullEntries(t *testing.T) {
	data, err := EncodeQuery(`dns`)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(data) != `{"query":"dns","enableFullEntries":false}` {
		t.Fatalf("unexpected envelope %s", data)
	}
}

func TestDecodeFrameTypes(t *testing.T) {
	entry, err := DecodeFrame([]byte(`{"messageType":"entry","data":{"id":42,"method":"POST","path":"/login","status":401,"contractStatus":2}}`))
	if err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	if entry.Entry == nil || entry.Entry.ID != "42" || entry.Entry.ContractStatus != traffic.ContractBreached {
		t.Fatalf("unexpected entry %+v", entry.Entry)
	}

	toast, err := DecodeFrame([]byte(`{"messageType":"toast","data":{"type":"error","autoClose":5000,"text":"Syntax error"}}`))
	if err != nil {
		t.Fatalf("decode toast: %v", err)
	}
	if toast.Toast == nil || toast.Toast.Text != "Syntax error" {
		t.Fatalf("unexpected toast %+v", toast.Toast)
	}

	meta, err := DecodeFrame([]byte(`{"messageType":"queryMetadata","data":{"current":10,"total":250,"leftOff":3}}`))
	if err != nil {
		t.Fatalf("decode metadata: %v", err)
	}
	if meta.Metadata == nil || meta.Metadata.Total != 250 {
		t.Fatalf("unexpected metadata %+v", meta.Metadata)
	}

	start, err := DecodeFrame([]byte(`{"messageType":"startTime","data":1650000000000}`))
	if err != nil {
		t.Fatalf("decode start time: %v", err)
	}
	if start.StartTime.UnixMilli() != 1650000000000 {
		t.Fatalf("unexpected start time %v", start.StartTime)
	}
}

func TestDecodeFrameUnknownTypeKeepsRaw(t *testing.T) {
	payload := []byte(`{"messageType":"serviceMap","data":{}}`)
	frame, err := DecodeFrame(payload)
	if err != nil {
		t.Fatalf("unknown types should not fail: %v", err)
	}
	if frame.Type != "serviceMap" || string(frame.Raw) != string(payload) {
		t.Fatalf("unexpected frame %+v", frame)
	}
}

func TestDecodeFrameErrors(t *testing.T) {
	for _, payload := range []string{`not json`, `{"messageType":"entry"}`, `{"messageType":"toast","data":null}`, `{"messageType":"entry","data":"x"}`} {
		if _, err := DecodeFrame([]byte(payload)); !errdef.Is(err, errdef.CodeParse) {
			t.Fatalf("expected parse error for %s, got %v", payload, err)
		}
	}
}
