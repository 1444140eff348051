package mapper

import (
	"context"
	"encoding/json"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
)

// cmdBrowserCreateUserContext implements browser.createUserContext,
// opening a fresh CDP browser context via Target.createBrowserContext
// and registering it in UserContextStorage (§4's browser module).
func (s *Session) cmdBrowserCreateUserContext(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	uc, err := s.createUserContext(ctx)
	if err != nil {
		return nil, NewError(ErrorCodeUnknownError, err.Error())
	}
	return map[string]interface{}{"userContext": uc.ID}, nil
}

type removeUserContextParams struct {
	UserContext string `json:"userContext"`
}

// cmdBrowserRemoveUserContext implements browser.removeUserContext.
func (s *Session) cmdBrowserRemoveUserContext(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p removeUserContextParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if p.UserContext == "default" {
		return nil, NewError(ErrorCodeInvalidArgument, "cannot remove the default user context")
	}
	if err := s.removeUserContext(ctx, p.UserContext); err != nil {
		return nil, err
	}
	return map[string]interface{}{}, nil
}

type clientWindowStateParams struct {
	ClientWindow string  `json:"clientWindow"`
	State        string  `json:"state"`
	Width        int64   `json:"width"`
	Height       int64   `json:"height"`
	X            int64   `json:"x"`
	Y            int64   `json:"y"`
}

var windowStates = map[string]browser.WindowState{
	"normal":     browser.WindowStateNormal,
	"minimized":  browser.WindowStateMinimized,
	"maximized":  browser.WindowStateMaximized,
	"fullscreen": browser.WindowStateFullscreen,
}

// cmdBrowserSetClientWindowState implements browser.setClientWindowState,
// resolving the client window's backing CDP window id through whichever
// attached target the caller names, then pushing the new bounds via
// Browser.setWindowBounds (§4's browser module).
func (s *Session) cmdBrowserSetClientWindowState(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p clientWindowStateParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	t := s.targetForClientWindow(p.ClientWindow)
	if t == nil {
		return nil, NewError(ErrorCodeNoSuchFrame, "no such client window: "+p.ClientWindow)
	}
	windowID, _, err := browser.GetWindowForTarget().WithTargetID(t.TargetID).Do(cdp.WithExecutor(ctx, s.client))
	if err != nil {
		return nil, NewError(ErrorCodeUnknownError, err.Error())
	}
	var bounds browser.Bounds
	if state, ok := windowStates[p.State]; ok && state != browser.WindowStateNormal {
		// minimized/maximized/fullscreen can't be combined with
		// left/top/width/height (Browser.setWindowBounds).
		bounds.WindowState = &state
	} else {
		bounds = browser.Bounds{Left: p.X, Top: p.Y, Width: p.Width, Height: p.Height}
		if ok {
			bounds.WindowState = &state
		}
	}
	if err := browser.SetWindowBounds(windowID, bounds).Do(cdp.WithExecutor(ctx, s.client)); err != nil {
		return nil, NewError(ErrorCodeUnknownError, err.Error())
	}
	return map[string]interface{}{
		"clientWindow": p.ClientWindow,
		"state":        p.State,
		"width":        p.Width,
		"height":       p.Height,
		"x":            p.X,
		"y":            p.Y,
		"active":       true,
	}, nil
}

// targetForClientWindow resolves a BiDi clientWindow handle to one of
// its attached targets. This mediator doesn't model separate OS-level
// windows beyond the targets within them, so a clientWindow id is the
// top-level browsing context id that first opened in it.
func (s *Session) targetForClientWindow(clientWindow string) *CdpTarget {
	s.targetsMu.RLock()
	defer s.targetsMu.RUnlock()
	if t := s.contextTargets[clientWindow]; t != nil {
		return t
	}
	for _, t := range s.contextTargets {
		return t
	}
	return nil
}
