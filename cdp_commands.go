package mapper

import (
	"context"
	"encoding/json"

	"github.com/chromedp/cdproto/cdp"
	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"
)

// rawParams wraps an already-encoded JSON object as an
// easyjson.Marshaler, for forwarding cdp.sendCommand's caller-supplied
// params verbatim instead of decoding them into a typed cdproto struct.
type rawParams json.RawMessage

func (r rawParams) MarshalEasyJSON(w *jwriter.Writer) {
	if len(r) == 0 {
		w.RawString("null")
		return
	}
	w.Raw(r, nil)
}

// rawResult captures a CDP response's raw JSON for cdp.sendCommand to
// hand straight back to the client.
type rawResult struct {
	data json.RawMessage
}

func (r *rawResult) UnmarshalEasyJSON(l *jlexer.Lexer) {
	r.data = append(json.RawMessage{}, l.Raw()...)
}

type sendCommandParams struct {
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	Session string          `json:"session,omitempty"`
}

// cmdCdpSendCommand implements cdp.sendCommand: the raw escape hatch
// that forwards an arbitrary CDP method/params pair either to the
// browser-level client (no session) or to the CDP session backing a
// BiDi browsing context, and returns CDP's raw result (§4's cdp
// module).
func (s *Session) cmdCdpSendCommand(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p sendCommandParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	var executor cdp.Executor = s.client
	if p.Session != "" {
		t := s.targetBySessionID(p.Session)
		if t == nil {
			return nil, NewError(ErrorCodeInvalidArgument, "no such cdp session: "+p.Session)
		}
		executor = t
	}
	var res rawResult
	if err := executor.Execute(ctx, p.Method, rawParams(p.Params), &res); err != nil {
		return nil, NewError(ErrorCodeUnknownError, err.Error())
	}
	if len(res.data) == 0 {
		return map[string]interface{}{}, nil
	}
	return res.data, nil
}

type getSessionParams struct {
	Context string `json:"context"`
}

// cmdCdpGetSession implements cdp.getSession: the CDP session id
// backing a BiDi browsing context, for callers that want to drive it
// directly with cdp.sendCommand.
func (s *Session) cmdCdpGetSession(raw json.RawMessage) (interface{}, error) {
	var p getSessionParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	t := s.targetForContext(p.Context)
	if t == nil {
		return nil, NewError(ErrorCodeNoSuchFrame, "no such context: "+p.Context)
	}
	return map[string]interface{}{"session": string(t.SessionID)}, nil
}

type resolveRealmParams struct {
	Realm string `json:"realm"`
}

// cmdCdpResolveRealm implements cdp.resolveRealm: the CDP execution
// context id backing a BiDi realm.
func (s *Session) cmdCdpResolveRealm(raw json.RawMessage) (interface{}, error) {
	var p resolveRealmParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	r := s.realmStorage.Get(p.Realm)
	if r == nil {
		return nil, NewError(ErrorCodeNoSuchFrame, "no such realm: "+p.Realm)
	}
	return map[string]interface{}{"executionContextId": int64(r.ExecutionContextID)}, nil
}

// targetBySessionID resolves an attached target by its CDP session id,
// the inverse lookup cdp.sendCommand needs that contextTargets (keyed
// by BiDi context id) doesn't provide directly.
func (s *Session) targetBySessionID(sessionID string) *CdpTarget {
	s.targetsMu.RLock()
	defer s.targetsMu.RUnlock()
	for _, t := range s.contextTargets {
		if string(t.SessionID) == sessionID {
			return t
		}
	}
	return nil
}

// targetForContext resolves an attached target by its BiDi context id.
func (s *Session) targetForContext(contextID string) *CdpTarget {
	s.targetsMu.RLock()
	defer s.targetsMu.RUnlock()
	return s.contextTargets[contextID]
}
