package mapper

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	cdpdom "github.com/chromedp/cdproto/dom"
	cdpinput "github.com/chromedp/cdproto/input"

	"github.com/webbidi/mapper/kb"
	"github.com/webbidi/mapper/realm"
)

// inputSource tracks one input.performActions source's currently held
// state between calls, so input.releaseActions can replay the inverse
// of whatever is still down when the client asks to reset (§4's input
// module, "releaseActions replays the inverse of whatever keys/buttons
// are currently held per top-level context").
type inputSource struct {
	heldKeys    map[rune]bool
	heldButtons map[cdpinput.ButtonType]bool
	x, y        float64
}

// inputState is the per-context registry of live input sources.
type inputState struct {
	mu      sync.Mutex
	sources map[string]*inputSource // sourceID -> state
}

func newInputState() *inputState {
	return &inputState{sources: make(map[string]*inputSource)}
}

func (st *inputState) get(id string) *inputSource {
	st.mu.Lock()
	defer st.mu.Unlock()
	src, ok := st.sources[id]
	if !ok {
		src = &inputSource{heldKeys: make(map[rune]bool), heldButtons: make(map[cdpinput.ButtonType]bool)}
		st.sources[id] = src
	}
	return src
}

func (st *inputState) all() map[string]*inputSource {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make(map[string]*inputSource, len(st.sources))
	for k, v := range st.sources {
		out[k] = v
	}
	return out
}

func (st *inputState) clear() {
	st.mu.Lock()
	st.sources = make(map[string]*inputSource)
	st.mu.Unlock()
}

// inputStateFor returns the per-context input source registry,
// creating it on first use.
func (s *Session) inputStateFor(contextID string) *inputState {
	s.inputMu.Lock()
	defer s.inputMu.Unlock()
	if s.inputStates == nil {
		s.inputStates = make(map[string]*inputState)
	}
	st, ok := s.inputStates[contextID]
	if !ok {
		st = newInputState()
		s.inputStates[contextID] = st
	}
	return st
}

type actionWire struct {
	Type    string `json:"type"`
	ID      string `json:"id"`
	Actions []struct {
		Type       string  `json:"type"`
		Value      string  `json:"value"`
		Button     int64   `json:"button"`
		X          float64 `json:"x"`
		Y          float64 `json:"y"`
		DeltaX     float64 `json:"deltaX"`
		DeltaY     float64 `json:"deltaY"`
		Duration   int64   `json:"duration"`
		Origin     interface{} `json:"origin"`
	} `json:"actions"`
}

type performActionsParams struct {
	Context string       `json:"context"`
	Actions []actionWire `json:"actions"`
}

var mouseButtons = map[int64]cdpinput.ButtonType{
	0: cdpinput.ButtonLeft,
	1: cdpinput.ButtonMiddle,
	2: cdpinput.ButtonRight,
	3: cdpinput.ButtonBack,
	4: cdpinput.ButtonForward,
}

// cmdInputPerformActions implements input.performActions: each source
// is replayed tick by tick, dispatching one CDP input event per
// action at that tick index (§4's input module).
func (s *Session) cmdInputPerformActions(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p performActionsParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	sess, err := s.requireSession(p.Context)
	if err != nil {
		return nil, err
	}
	st := s.inputStateFor(p.Context)

	maxTicks := 0
	for _, src := range p.Actions {
		if len(src.Actions) > maxTicks {
			maxTicks = len(src.Actions)
		}
	}

	for tick := 0; tick < maxTicks; tick++ {
		for _, src := range p.Actions {
			if tick >= len(src.Actions) {
				continue
			}
			a := src.Actions[tick]
			source := st.get(src.ID)
			switch src.Type {
			case "key":
				if err := dispatchKeyAction(ctx, sess, source, a.Type, a.Value); err != nil && !isCdpCloseError(err) {
					return nil, NewError(ErrorCodeUnknownError, err.Error())
				}
			case "pointer":
				if err := dispatchPointerAction(ctx, sess, source, a.Type, a.Button, a.X, a.Y); err != nil && !isCdpCloseError(err) {
					return nil, NewError(ErrorCodeUnknownError, err.Error())
				}
			case "wheel":
				if a.Type == "scroll" {
					if err := cdpinput.DispatchMouseEvent(cdpinput.MouseWheel, a.X, a.Y).
						WithDeltaX(a.DeltaX).WithDeltaY(a.DeltaY).
						Do(cdp.WithExecutor(ctx, sess)); err != nil && !isCdpCloseError(err) {
						return nil, NewError(ErrorCodeUnknownError, err.Error())
					}
				}
			case "none":
				// pause-only source; nothing to dispatch.
			}
		}
	}
	return map[string]interface{}{}, nil
}

func dispatchKeyAction(ctx context.Context, sess realm.CdpSession, source *inputSource, actionType, value string) error {
	r := []rune(value)
	if len(r) == 0 {
		return nil
	}
	first := r[0]
	switch actionType {
	case "keyDown":
		source.heldKeys[first] = true
		if kb.IsModifier(first) {
			ev := cdpinput.DispatchKeyEvent(cdpinput.KeyDown).WithKey(keyNameFor(first)).WithModifiers(modifiersHeld(source))
			return ev.Do(cdp.WithExecutor(ctx, sess))
		}
		for _, params := range kb.Encode(first) {
			if params.Type == cdpinput.KeyUp {
				continue
			}
			params.Modifiers |= modifiersHeld(source)
			if err := params.Do(cdp.WithExecutor(ctx, sess)); err != nil {
				return err
			}
		}
		return nil
	case "keyUp":
		delete(source.heldKeys, first)
		if kb.IsModifier(first) {
			ev := cdpinput.DispatchKeyEvent(cdpinput.KeyUp).WithKey(keyNameFor(first)).WithModifiers(modifiersHeld(source))
			return ev.Do(cdp.WithExecutor(ctx, sess))
		}
		for _, params := range kb.Encode(first) {
			if params.Type != cdpinput.KeyUp {
				continue
			}
			params.Modifiers |= modifiersHeld(source)
			if err := params.Do(cdp.WithExecutor(ctx, sess)); err != nil {
				return err
			}
		}
		return nil
	}
	return nil
}

func keyNameFor(r rune) string {
	if v, ok := kb.Keys[r]; ok {
		return v.Key
	}
	return "Unidentified"
}

func modifiersHeld(source *inputSource) cdpinput.Modifier {
	var mods cdpinput.Modifier
	for r := range source.heldKeys {
		mods |= kb.ModifierBit(r)
	}
	return mods
}

func dispatchPointerAction(ctx context.Context, sess realm.CdpSession, source *inputSource, actionType string, button int64, x, y float64) error {
	switch actionType {
	case "pointerMove":
		source.x, source.y = x, y
		return cdpinput.DispatchMouseEvent(cdpinput.MouseMoved, x, y).Do(cdp.WithExecutor(ctx, sess))
	case "pointerDown":
		btn, ok := mouseButtons[button]
		if !ok {
			btn = cdpinput.ButtonLeft
		}
		source.heldButtons[btn] = true
		return cdpinput.DispatchMouseEvent(cdpinput.MousePressed, source.x, source.y).
			WithButton(btn).WithClickCount(1).Do(cdp.WithExecutor(ctx, sess))
	case "pointerUp":
		btn, ok := mouseButtons[button]
		if !ok {
			btn = cdpinput.ButtonLeft
		}
		delete(source.heldButtons, btn)
		return cdpinput.DispatchMouseEvent(cdpinput.MouseReleased, source.x, source.y).
			WithButton(btn).WithClickCount(1).Do(cdp.WithExecutor(ctx, sess))
	}
	return nil
}

type releaseActionsParams struct {
	Context string `json:"context"`
}

// cmdInputReleaseActions implements input.releaseActions: replays a
// keyUp/pointerUp for every key and button still held in this
// context, then drops the source registry (§4's input module).
func (s *Session) cmdInputReleaseActions(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p releaseActionsParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	sess, err := s.requireSession(p.Context)
	if err != nil {
		return nil, err
	}
	st := s.inputStateFor(p.Context)
	for _, source := range st.all() {
		for r := range source.heldKeys {
			if err := dispatchKeyAction(ctx, sess, source, "keyUp", string(r)); err != nil && !isCdpCloseError(err) {
				return nil, NewError(ErrorCodeUnknownError, err.Error())
			}
		}
		for btn := range source.heldButtons {
			if err := cdpinput.DispatchMouseEvent(cdpinput.MouseReleased, source.x, source.y).
				WithButton(btn).WithClickCount(1).Do(cdp.WithExecutor(ctx, sess)); err != nil && !isCdpCloseError(err) {
				return nil, NewError(ErrorCodeUnknownError, err.Error())
			}
		}
	}
	st.clear()
	return map[string]interface{}{}, nil
}

type setFilesParams struct {
	Context  string   `json:"context"`
	Element  struct {
		SharedID string `json:"sharedId"`
	} `json:"element"`
	Files []string `json:"files"`
}

// cmdInputSetFiles implements input.setFiles: resolves the element's
// sharedId to a backend node and drives DOM.setFileInputFiles
// directly, without needing a live JS handle (§4's input module).
func (s *Session) cmdInputSetFiles(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p setFilesParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	sess, err := s.requireSession(p.Context)
	if err != nil {
		return nil, err
	}
	backendID, err := realm.ParseSharedID(p.Context, p.Element.SharedID)
	if err != nil {
		return nil, NewError(ErrorCodeNoSuchNode, err.Error())
	}
	if err := cdpdom.SetFileInputFiles(p.Files).WithBackendNodeID(backendID).Do(cdp.WithExecutor(ctx, sess)); err != nil {
		return nil, NewError(ErrorCodeUnknownError, err.Error())
	}
	return map[string]interface{}{}, nil
}
