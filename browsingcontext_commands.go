package mapper

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"

	"github.com/webbidi/mapper/browsingcontext"
	"github.com/webbidi/mapper/realm"
)

type getTreeParams struct {
	Root     string `json:"root"`
	MaxDepth *int   `json:"maxDepth"`
}

// cmdBrowsingContextGetTree implements browsingContext.getTree (§4.4).
func (s *Session) cmdBrowsingContextGetTree(raw json.RawMessage) (interface{}, error) {
	var p getTreeParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	return map[string]interface{}{"contexts": s.bcCommands.GetTree(p.Root)}, nil
}

type createContextParams struct {
	Type            string `json:"type"`
	ReferenceContext string `json:"referenceContext"`
	UserContext     string `json:"userContext"`
}

// cmdBrowsingContextCreate implements browsingContext.create (§4.4).
func (s *Session) cmdBrowsingContextCreate(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p createContextParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	bc, err := s.CreateContext(ctx, "about:blank", p.UserContext, TargetSettings{})
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"context": bc.ID}, nil
}

type closeContextParams struct {
	Context      string `json:"context"`
	PromptUnload bool   `json:"promptUnload"`
}

// cmdBrowsingContextClose implements browsingContext.close.
func (s *Session) cmdBrowsingContextClose(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p closeContextParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if _, err := s.requireContext(p.Context); err != nil {
		return nil, err
	}
	if err := s.CloseContext(ctx, p.Context); err != nil {
		return nil, err
	}
	return map[string]interface{}{}, nil
}

type navigateParams struct {
	Context string `json:"context"`
	URL     string `json:"url"`
	Wait    string `json:"wait"`
}

func readinessFromWait(wait string) browsingcontext.ReadinessState {
	switch wait {
	case "interactive":
		return browsingcontext.ReadinessInteractive
	case "complete":
		return browsingcontext.ReadinessComplete
	default:
		return browsingcontext.ReadinessNone
	}
}

// cmdBrowsingContextNavigate implements browsingContext.navigate (§4.4).
func (s *Session) cmdBrowsingContextNavigate(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p navigateParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if _, err := s.requireContext(p.Context); err != nil {
		return nil, err
	}
	navID, url, err := s.bcCommands.Navigate(ctx, p.Context, p.URL, readinessFromWait(p.Wait))
	if err != nil {
		return nil, NewError(ErrorCodeUnknownError, err.Error())
	}
	return map[string]interface{}{"navigation": navID, "url": url}, nil
}

type reloadParams struct {
	Context     string `json:"context"`
	IgnoreCache bool   `json:"ignoreCache"`
	Wait        string `json:"wait"`
}

// cmdBrowsingContextReload implements browsingContext.reload.
func (s *Session) cmdBrowsingContextReload(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p reloadParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if _, err := s.requireContext(p.Context); err != nil {
		return nil, err
	}
	navID, err := s.bcCommands.Reload(ctx, p.Context, p.IgnoreCache, readinessFromWait(p.Wait))
	if err != nil {
		return nil, NewError(ErrorCodeUnknownError, err.Error())
	}
	return map[string]interface{}{"navigation": navID}, nil
}

type contextOnlyParams struct {
	Context string `json:"context"`
}

// cmdBrowsingContextActivate implements browsingContext.activate.
func (s *Session) cmdBrowsingContextActivate(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p contextOnlyParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if _, err := s.requireContext(p.Context); err != nil {
		return nil, err
	}
	if err := s.bcCommands.Activate(ctx, s.client, target.ID(p.Context)); err != nil {
		return nil, NewError(ErrorCodeUnknownError, err.Error())
	}
	return map[string]interface{}{}, nil
}

type traverseHistoryParams struct {
	Context string `json:"context"`
	Delta   int64  `json:"delta"`
}

// cmdBrowsingContextTraverseHistory implements browsingContext.traverseHistory.
func (s *Session) cmdBrowsingContextTraverseHistory(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p traverseHistoryParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if _, err := s.requireContext(p.Context); err != nil {
		return nil, err
	}
	if err := s.bcCommands.TraverseHistory(ctx, p.Context, p.Delta); err != nil {
		return nil, NewError(ErrorCodeNoSuchHistoryEntry, err.Error())
	}
	return map[string]interface{}{}, nil
}

type clipBox struct {
	Type    string  `json:"type"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Element *struct {
		SharedID string `json:"sharedId"`
	} `json:"element"`
}

type captureScreenshotParams struct {
	Context string   `json:"context"`
	Origin  string   `json:"origin"`
	Format  *struct {
		Type    string  `json:"type"`
		Quality float64 `json:"quality"`
	} `json:"format"`
	Clip *clipBox `json:"clip"`
}

// cmdBrowsingContextCaptureScreenshot implements
// browsingContext.captureScreenshot (§4.4). Element-relative clips are
// not resolved here (they require a live sharedId lookup the realm
// bridge owns); only box clips are supported, matching the subset this
// mediator's locator/value bridge can already resolve without a
// dedicated screenshot-specific node lookup.
func (s *Session) cmdBrowsingContextCaptureScreenshot(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p captureScreenshotParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	sess, err := s.requireSession(p.Context)
	if err != nil {
		return nil, err
	}

	origin := browsingcontext.OriginViewport
	if p.Origin == "document" {
		origin = browsingcontext.OriginDocument
	}

	var clip *browsingcontext.Box
	if p.Clip != nil {
		if p.Clip.Type == "box" {
			clip = &browsingcontext.Box{X: p.Clip.X, Y: p.Clip.Y, Width: p.Clip.Width, Height: p.Clip.Height}
		} else if p.Clip.Element != nil {
			return nil, NewError(ErrorCodeUnsupportedOperation, "element-relative screenshot clips are not supported")
		}
	}

	format := cdppage.CaptureScreenshotFormatPng
	if p.Format != nil && p.Format.Type == "image/jpeg" {
		format = cdppage.CaptureScreenshotFormatJpeg
	}

	data, err := browsingcontext.CaptureScreenshot(ctx, sess, origin, clip, format)
	if err != nil {
		if be, ok := translateCdpError(err); ok {
			return nil, be
		}
		return nil, NewError(ErrorCodeUnableToCaptureShot, err.Error())
	}
	return map[string]interface{}{"data": data}, nil
}

type printParams struct {
	Context    string  `json:"context"`
	Background bool    `json:"background"`
	Margin     *struct {
		Top, Bottom, Left, Right float64
	} `json:"margin"`
	Page *struct {
		Width, Height float64
	} `json:"page"`
	PageRanges  []string `json:"pageRanges"`
	Scale       float64  `json:"scale"`
	ShrinkToFit bool     `json:"shrinkToFit"`
}

// cmdBrowsingContextPrint implements browsingContext.print (§4.4),
// translating centimetre parameters to CDP's inch-based units.
func (s *Session) cmdBrowsingContextPrint(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p printParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	sess, err := s.requireSession(p.Context)
	if err != nil {
		return nil, err
	}
	opts := browsingcontext.PrintOptions{
		Background:  p.Background,
		PageRanges:  p.PageRanges,
		Scale:       p.Scale,
		ShrinkToFit: p.ShrinkToFit,
	}
	if opts.Scale == 0 {
		opts.Scale = 1
	}
	if p.Margin != nil {
		opts.MarginTopInch = browsingcontext.CmToInch(p.Margin.Top)
		opts.MarginBottomInch = browsingcontext.CmToInch(p.Margin.Bottom)
		opts.MarginLeftInch = browsingcontext.CmToInch(p.Margin.Left)
		opts.MarginRightInch = browsingcontext.CmToInch(p.Margin.Right)
	}
	if p.Page != nil {
		opts.PageWidthInch = browsingcontext.CmToInch(p.Page.Width)
		opts.PageHeightInch = browsingcontext.CmToInch(p.Page.Height)
	}
	data, err := browsingcontext.Print(ctx, sess, opts)
	if err != nil {
		if be, ok := translateCdpError(err); ok {
			return nil, be
		}
		return nil, NewError(ErrorCodeUnsupportedOperation, err.Error())
	}
	return map[string]interface{}{"data": data}, nil
}

type setViewportParams struct {
	Context          string   `json:"context"`
	Viewport         *struct {
		Width, Height int64
	} `json:"viewport"`
	DevicePixelRatio float64 `json:"devicePixelRatio"`
}

// cmdBrowsingContextSetViewport implements browsingContext.setViewport.
// The actual Emulation.setDeviceMetricsOverride call is reapplied by
// the owning CdpTarget's TargetSettings the next time applySettings
// runs (SPEC_FULL §4.3); this records the per-context override.
func (s *Session) cmdBrowsingContextSetViewport(raw json.RawMessage) (interface{}, error) {
	var p setViewportParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	var vp *browsingcontext.Viewport
	if p.Viewport != nil {
		vp = &browsingcontext.Viewport{Width: p.Viewport.Width, Height: p.Viewport.Height, DevicePixelRatio: p.DevicePixelRatio}
	}
	if err := s.bcCommands.SetViewport(p.Context, vp); err != nil {
		return nil, NewError(ErrorCodeNoSuchFrame, err.Error())
	}
	return map[string]interface{}{}, nil
}

type locateNodesParams struct {
	Context      string         `json:"context"`
	Locator      locatorParams  `json:"locator"`
	MaxNodeCount int            `json:"maxNodeCount"`
	StartNodes   []startNodeRef `json:"startNodes"`
}

type locatorParams struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// accessibilityLocatorValue is the "accessibility" locator's value
// shape (§4.4): at least one of name/role is expected present.
type accessibilityLocatorValue struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

type startNodeRef struct {
	SharedID string `json:"sharedId"`
}

// cmdBrowsingContextLocateNodes implements browsingContext.locateNodes
// (§4.4). Only the default realm is queried; sandbox-scoped locating is
// not part of this command's surface.
func (s *Session) cmdBrowsingContextLocateNodes(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p locateNodesParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	sess, err := s.requireSession(p.Context)
	if err != nil {
		return nil, err
	}
	r, err := s.defaultRealm(p.Context)
	if err != nil {
		return nil, err
	}

	var kind browsingcontext.LocatorKind
	var value string
	var axValue browsingcontext.AccessibilityLocatorValue
	switch p.Locator.Type {
	case "css":
		kind = browsingcontext.LocatorCSS
		_ = json.Unmarshal(p.Locator.Value, &value)
	case "xpath":
		kind = browsingcontext.LocatorXPath
		_ = json.Unmarshal(p.Locator.Value, &value)
	case "innerText":
		kind = browsingcontext.LocatorInnerText
		_ = json.Unmarshal(p.Locator.Value, &value)
	case "accessibility":
		kind = browsingcontext.LocatorAccessibility
		var av accessibilityLocatorValue
		if err := json.Unmarshal(p.Locator.Value, &av); err != nil {
			return nil, NewError(ErrorCodeInvalidArgument, "invalid accessibility locator value")
		}
		axValue = browsingcontext.AccessibilityLocatorValue{Name: av.Name, Role: av.Role}
	default:
		return nil, NewError(ErrorCodeInvalidArgument, "unknown locator type: "+p.Locator.Type)
	}

	nodes, err := browsingcontext.LocateNodes(ctx, sess, r.ExecutionContextID, kind, value, axValue, nil)
	if err != nil {
		return nil, NewError(ErrorCodeInvalidSelector, err.Error())
	}
	if p.MaxNodeCount > 0 && len(nodes) > p.MaxNodeCount {
		nodes = nodes[:p.MaxNodeCount]
	}
	out := make([]interface{}, 0, len(nodes))
	for _, n := range nodes {
		rv, err := realm.Serialize(p.Context, n.Object, "none", r)
		if err != nil {
			continue
		}
		if rv.SharedID == "" && n.BackendNodeID != 0 {
			rv.SharedID = fmt.Sprintf("%s_element_%d", p.Context, n.BackendNodeID)
		}
		out = append(out, rv)
	}
	return map[string]interface{}{"nodes": out}, nil
}

type handleUserPromptParams struct {
	Context  string `json:"context"`
	Accept   bool   `json:"accept"`
	UserText string `json:"userText"`
}

// cmdBrowsingContextHandleUserPrompt implements
// browsingContext.handleUserPrompt via Page.handleJavaScriptDialog.
func (s *Session) cmdBrowsingContextHandleUserPrompt(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p handleUserPromptParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	sess, err := s.requireSession(p.Context)
	if err != nil {
		return nil, err
	}
	cmd := cdppage.HandleJavaScriptDialog(p.Accept)
	if p.UserText != "" {
		cmd = cmd.WithPromptText(p.UserText)
	}
	if err := cmd.Do(cdp.WithExecutor(ctx, sess)); err != nil {
		return nil, NewError(ErrorCodeNoSuchAlert, err.Error())
	}
	return map[string]interface{}{}, nil
}
