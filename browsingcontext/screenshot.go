package browsingcontext

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/chromedp/cdproto/accessibility"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
)

// unmarshalRemoteValue decodes a Runtime.evaluate result's by-value
// payload into out.
func unmarshalRemoteValue(res *runtime.RemoteObject, out interface{}) error {
	if res == nil || len(res.Value) == 0 {
		return fmt.Errorf("evaluate returned no value")
	}
	return json.Unmarshal(res.Value, out)
}

// mustJSON marshals a simple Go value (string, number, bool) for use
// as a Runtime.CallArgument.Value; these inputs always marshal
// successfully.
func mustJSON(v interface{}) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

// translateEvalError is the hook point for mapping a raw CDP
// evaluation error onto a more specific BiDi error; today it passes
// the error through unchanged.
func translateEvalError(err error) error { return err }

// ScreenshotOrigin selects the coordinate space captureScreenshot's
// clip is relative to (§4.4).
type ScreenshotOrigin int

const (
	OriginViewport ScreenshotOrigin = iota
	OriginDocument
)

// Box is a clip rectangle in CSS pixels.
type Box struct {
	X, Y, Width, Height float64
}

// normalise mirrors puppeteer's rounding (also used by the teacher's
// Screenshot action in context.go): negative widths/heights are
// folded into the origin so the rect always has non-negative extent.
func (b Box) normalise() Box {
	x, y := b.X, b.Y
	w, h := b.Width, b.Height
	if w < 0 {
		x += w
		w = -w
	}
	if h < 0 {
		y += h
		h = -h
	}
	return Box{X: math.Round(x), Y: math.Round(y), Width: math.Round(w), Height: math.Round(h)}
}

// intersect returns the overlap of b and other, and whether it has
// positive area.
func (b Box) intersect(other Box) (Box, bool) {
	x1 := math.Max(b.X, other.X)
	y1 := math.Max(b.Y, other.Y)
	x2 := math.Min(b.X+b.Width, other.X+other.Width)
	y2 := math.Min(b.Y+b.Height, other.Y+other.Height)
	if x2 <= x1 || y2 <= y1 {
		return Box{}, false
	}
	return Box{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}, true
}

const originRectScript = `(() => {
	const de = document.documentElement;
	return {
		viewport: {x: 0, y: 0, width: window.innerWidth, height: window.innerHeight},
		document: {x: 0, y: 0, width: de.scrollWidth, height: de.scrollHeight},
	};
})()`

type originRects struct {
	Viewport Box `json:"viewport"`
	Document Box `json:"document"`
}

// CaptureScreenshot resolves the origin rect, intersects it with an
// optional clip box, and issues Page.captureScreenshot. Zero-area
// clips fail with the caller-recognisable errUnableToCaptureShot
// sentinel (§4.4: "reject with unable to capture screen if zero area").
func CaptureScreenshot(ctx context.Context, sess CdpSession, origin ScreenshotOrigin, clip *Box, format cdppage.CaptureScreenshotFormat) ([]byte, error) {
	var rects originRects
	res, _, err := runtime.Evaluate(originRectScript).WithReturnByValue(true).Do(cdp.WithExecutor(ctx, sess))
	if err != nil {
		return nil, err
	}
	if err := unmarshalRemoteValue(res, &rects); err != nil {
		return nil, err
	}

	base := rects.Viewport
	if origin == OriginDocument {
		base = rects.Document
	}

	box := base
	if clip != nil {
		normalised := clip.normalise()
		overlap, ok := base.intersect(normalised)
		if !ok {
			return nil, errUnableToCaptureShot
		}
		box = overlap
	}
	if box.Width <= 0 || box.Height <= 0 {
		return nil, errUnableToCaptureShot
	}

	return cdppage.CaptureScreenshot().
		WithFormat(format).
		WithCaptureBeyondViewport(true).
		WithClip(&cdppage.Viewport{X: box.X, Y: box.Y, Width: box.Width, Height: box.Height, Scale: 1}).
		Do(cdp.WithExecutor(ctx, sess))
}

// errUnableToCaptureShot is a sentinel the command processor maps onto
// ErrorCodeUnableToCaptureShot.
type captureError string

func (e captureError) Error() string { return string(e) }

const errUnableToCaptureShot captureError = "unable to capture screen: zero-area clip"

// PrintOptions mirrors browsingContext.print's parameters, already
// translated to CDP's inch-based units by the caller via CmToInch.
type PrintOptions struct {
	Background          bool
	MarginTopInch       float64
	MarginBottomInch    float64
	MarginLeftInch      float64
	MarginRightInch     float64
	PageWidthInch       float64
	PageHeightInch      float64
	PageRanges          []string
	Scale               float64
	ShrinkToFit         bool
}

// Print issues Page.printToPDF after validating the page-range syntax.
func Print(ctx context.Context, sess CdpSession, opts PrintOptions) ([]byte, error) {
	if _, err := ParsePageRanges(opts.PageRanges, 1<<30); err != nil {
		return nil, err
	}
	ranges := ""
	for i, r := range opts.PageRanges {
		if i > 0 {
			ranges += ","
		}
		ranges += r
	}
	cmd := cdppage.PrintToPDF().
		WithPrintBackground(opts.Background).
		WithMarginTop(opts.MarginTopInch).
		WithMarginBottom(opts.MarginBottomInch).
		WithMarginLeft(opts.MarginLeftInch).
		WithMarginRight(opts.MarginRightInch).
		WithPaperWidth(opts.PageWidthInch).
		WithPaperHeight(opts.PageHeightInch).
		WithScale(opts.Scale).
		WithPreferCSSPageSize(!opts.ShrinkToFit)
	if ranges != "" {
		cmd = cmd.WithPageRanges(ranges)
	}
	data, _, err := cmd.Do(cdp.WithExecutor(ctx, sess))
	return data, err
}

// LocatorKind selects locateNodes' matching strategy (§4.4).
type LocatorKind int

const (
	LocatorCSS LocatorKind = iota
	LocatorXPath
	LocatorInnerText
	LocatorAccessibility
)

var locatorScripts = map[LocatorKind]string{
	LocatorCSS: `function(root, value) {
		const scope = root || document;
		return Array.from(scope.querySelectorAll(value));
	}`,
	LocatorXPath: `function(root, value) {
		const scope = root && root.ownerDocument ? root : document;
		const result = document.evaluate(value, root || document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
		const out = [];
		for (let i = 0; i < result.snapshotLength; i++) out.push(result.snapshotItem(i));
		return out;
	}`,
	LocatorInnerText: `function(root, value) {
		const scope = root || document;
		const walker = document.createTreeWalker(scope, NodeFilter.SHOW_ELEMENT);
		const out = [];
		let node = walker.currentNode;
		while (node) {
			if (node.textContent && node.textContent.includes(value)) out.push(node);
			node = walker.nextNode();
		}
		return out;
	}`,
}

// LocatedNode pairs a matched element's CDP object handle with its
// backend node id, the two pieces §4.5 needs to mint a sharedId
// (<navigableId>_element_<backendNodeId>) without the caller having to
// re-derive it from the handle.
type LocatedNode struct {
	Object        *runtime.RemoteObject
	BackendNodeID dom.BackendNodeID
}

// AccessibilityLocatorValue is the "accessibility" locator's value
// (§4.4): at least one of Name/Role is expected non-empty.
type AccessibilityLocatorValue struct {
	Name string
	Role string
}

// LocateNodes evaluates the locator's matching function in the
// context's default realm via Runtime.callFunctionOn, returning the
// matched elements together with their backend node ids. An empty
// innerText query and CSS/XPath syntax errors are the caller's job to
// translate into ErrorCodeInvalidSelector (§4.4).
func LocateNodes(ctx context.Context, sess CdpSession, execCtx runtime.ExecutionContextID, kind LocatorKind, value string, axValue AccessibilityLocatorValue, startNodes []runtime.RemoteObjectID) ([]LocatedNode, error) {
	if kind == LocatorAccessibility {
		return locateByAccessibility(ctx, sess, execCtx, axValue)
	}
	if kind == LocatorInnerText && value == "" {
		return nil, fmt.Errorf("invalid selector: empty innerText query")
	}
	script, ok := locatorScripts[kind]
	if !ok {
		return nil, fmt.Errorf("unsupported locator kind")
	}

	roots := startNodes
	if len(roots) == 0 {
		roots = []runtime.RemoteObjectID{""}
	}

	var all []LocatedNode
	for _, root := range roots {
		args := []*runtime.CallArgument{argObjectOrUndefined(root), {Value: mustJSON(value)}}
		cmd := runtime.CallFunctionOn(script).
			WithArguments(args).
			WithReturnByValue(false).
			WithExecutionContextID(execCtx)
		obj, exc, err := cmd.Do(cdp.WithExecutor(ctx, sess))
		if err != nil {
			return nil, translateEvalError(err)
		}
		if exc != nil {
			return nil, fmt.Errorf("invalid selector: %s", exc.Text)
		}
		elems, err := expandArray(ctx, sess, obj)
		if err != nil {
			return nil, err
		}
		all = append(all, elems...)
	}
	return all, nil
}

// locateByAccessibility matches Accessibility.queryAXTree's own
// accessibleName/role filtering against the whole document, mirroring
// how the "accessibility" locator's matching is delegated straight to
// CDP rather than walked by hand (§4.4).
func locateByAccessibility(ctx context.Context, sess CdpSession, execCtx runtime.ExecutionContextID, axValue AccessibilityLocatorValue) ([]LocatedNode, error) {
	if err := accessibility.Enable().Do(cdp.WithExecutor(ctx, sess)); err != nil {
		return nil, err
	}
	cmd := accessibility.QueryAXTree()
	if axValue.Name != "" {
		cmd = cmd.WithAccessibleName(axValue.Name)
	}
	if axValue.Role != "" {
		cmd = cmd.WithRole(axValue.Role)
	}
	axNodes, err := cmd.Do(cdp.WithExecutor(ctx, sess))
	if err != nil {
		return nil, fmt.Errorf("invalid selector: %w", err)
	}

	var out []LocatedNode
	for _, n := range axNodes {
		if n == nil || n.Ignored || n.BackendDOMNodeID == nil {
			continue
		}
		backendID := *n.BackendDOMNodeID
		obj, err := dom.ResolveNode().WithBackendNodeID(backendID).WithExecutionContextID(execCtx).Do(cdp.WithExecutor(ctx, sess))
		if err != nil || obj == nil {
			continue
		}
		out = append(out, LocatedNode{Object: obj, BackendNodeID: backendID})
	}
	return out, nil
}

func expandArray(ctx context.Context, sess CdpSession, obj *runtime.RemoteObject) ([]LocatedNode, error) {
	if obj == nil || obj.ObjectID == "" {
		return nil, nil
	}
	props, _, _, _, err := runtime.GetProperties(obj.ObjectID).WithOwnProperties(true).Do(cdp.WithExecutor(ctx, sess))
	if err != nil {
		return nil, err
	}
	var out []LocatedNode
	for _, p := range props {
		if p.Enumerable && p.Value != nil && p.Value.Type == runtime.TypeObject {
			out = append(out, resolveLocatedNode(ctx, sess, p.Value))
		}
	}
	return out, nil
}

// resolveLocatedNode fetches the backend node id behind a live element
// handle via DOM.describeNode, so the caller can mint a sharedId
// without CDP having to run a deep serialization pass over the match.
func resolveLocatedNode(ctx context.Context, sess CdpSession, obj *runtime.RemoteObject) LocatedNode {
	ln := LocatedNode{Object: obj}
	if obj.ObjectID == "" {
		return ln
	}
	node, err := dom.DescribeNode().WithObjectID(obj.ObjectID).Do(cdp.WithExecutor(ctx, sess))
	if err == nil && node != nil {
		ln.BackendNodeID = dom.BackendNodeID(node.BackendNodeID)
	}
	return ln
}

func argObjectOrUndefined(id runtime.RemoteObjectID) *runtime.CallArgument {
	if id == "" {
		return &runtime.CallArgument{}
	}
	return &runtime.CallArgument{ObjectID: id}
}
