package mapper

import (
	"encoding/json"
	"testing"

	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"
)

func TestRawParamsMarshalsVerbatim(t *testing.T) {
	in := rawParams(`{"url":"https://example.com"}`)
	w := jwriter.Writer{}
	in.MarshalEasyJSON(&w)
	if w.Error != nil {
		t.Fatalf("MarshalEasyJSON error: %v", w.Error)
	}
	buf, err := w.BuildBytes()
	if err != nil {
		t.Fatalf("BuildBytes error: %v", err)
	}
	var got, want map[string]interface{}
	if err := json.Unmarshal(buf, &got); err != nil {
		t.Fatalf("result isn't valid JSON: %v, buf=%s", err, buf)
	}
	_ = json.Unmarshal([]byte(in), &want)
	if got["url"] != want["url"] {
		t.Errorf("round-tripped url = %v, want %v", got["url"], want["url"])
	}
}

func TestRawParamsEmptyMarshalsNull(t *testing.T) {
	var in rawParams
	w := jwriter.Writer{}
	in.MarshalEasyJSON(&w)
	buf, err := w.BuildBytes()
	if err != nil {
		t.Fatalf("BuildBytes error: %v", err)
	}
	if string(buf) != "null" {
		t.Errorf("empty rawParams marshaled to %q, want \"null\"", buf)
	}
}

func TestRawResultCapturesRawBytes(t *testing.T) {
	l := jlexer.Lexer{Data: []byte(`{"windowId":7}`)}
	var res rawResult
	res.UnmarshalEasyJSON(&l)
	if err := l.Error(); err != nil {
		t.Fatalf("lexer error: %v", err)
	}
	var got map[string]interface{}
	if err := json.Unmarshal(res.data, &got); err != nil {
		t.Fatalf("captured data isn't valid JSON: %v, data=%s", err, res.data)
	}
	if got["windowId"] != float64(7) {
		t.Errorf("captured windowId = %v, want 7", got["windowId"])
	}
}

func TestTargetBySessionIDAndForContext(t *testing.T) {
	s := &Session{contextTargets: map[string]*CdpTarget{
		"ctx-1": {SessionID: "sess-1"},
	}}
	if got := s.targetBySessionID("sess-1"); got == nil {
		t.Error("targetBySessionID did not find the attached target by its CDP session id")
	}
	if got := s.targetBySessionID("missing"); got != nil {
		t.Error("targetBySessionID found a target for an unknown session id")
	}
	if got := s.targetForContext("ctx-1"); got == nil {
		t.Error("targetForContext did not find the attached target by context id")
	}
}
