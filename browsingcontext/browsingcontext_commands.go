package browsingcontext

import (
	"fmt"
	"strconv"
	"strings"

	"context"

	"github.com/chromedp/cdproto/cdp"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/mailru/easyjson"
)

// CdpSession is the slice of CdpTarget's behaviour this package needs
// to issue commands: a scoped Execute, matching cdp.Executor exactly
// (easyjson.Marshaler/Unmarshaler, not encoding/json's) so a
// *mapper.CdpTarget satisfies it without this package importing
// mapper (which would cycle, since mapper imports browsingcontext).
type CdpSession interface {
	Execute(ctx context.Context, method string, params easyjson.Marshaler, res easyjson.Unmarshaler) error
}

// Commands implements the browsingContext.* command surface over a
// Storage tree. SessionFor resolves the CdpSession backing a context's
// top-level traversable.
type Commands struct {
	Storage    *Storage
	SessionFor func(contextID string) CdpSession
}

// Info is the wire shape of one entry in browsingContext.getTree's result.
type Info struct {
	Context  string `json:"context"`
	URL      string `json:"url"`
	Children []Info `json:"children,omitempty"`
}

// GetTree returns the context tree rooted at root (or every top-level
// context if root == "").
func (c *Commands) GetTree(root string) []Info {
	var roots []string
	if root != "" {
		roots = []string{root}
	} else {
		roots = c.Storage.AllTopLevel()
	}
	out := make([]Info, 0, len(roots))
	for _, id := range roots {
		out = append(out, c.infoFor(id))
	}
	return out
}

func (c *Commands) infoFor(id string) Info {
	bc := c.Storage.Get(id)
	info := Info{Context: id}
	if bc != nil && bc.Tracker != nil {
		info.URL = bc.Tracker.CurrentURL()
	}
	for _, childID := range c.Storage.Children(id) {
		info.Children = append(info.Children, c.infoFor(childID))
	}
	return info
}

// CreateTarget opens a new top-level CDP target via Target.createTarget,
// grounded on the teacher's newSession in context.go. It returns the
// freshly-created target id; the mapper root is responsible for
// attaching to it (AttachTarget) and inserting it into Storage once the
// session id is known, so contextCreated can be emitted only after the
// target's unblocked latch resolves (§4.4).
func (c *Commands) CreateTarget(ctx context.Context, browser CdpSession, url string) (target.ID, error) {
	if url == "" {
		url = "about:blank"
	}
	return target.CreateTarget(url).Do(cdp.WithExecutor(ctx, browser))
}

// Close disposes ctxID and its descendants and returns the disposed
// ids in post-order. Closing the underlying CDP target is the caller's
// responsibility (Target.closeTarget), issued before or after this
// call depending on promptUnload handling.
func (c *Commands) Close(ctxID string) []string {
	return c.Storage.Dispose(ctxID)
}

// Navigate issues Page.navigate and returns the minted navigation id,
// awaiting the requested readiness before returning (§4.4).
func (c *Commands) Navigate(ctx context.Context, contextID, url string, readiness ReadinessState) (navigationID string, committedURL string, err error) {
	bc := c.Storage.Get(contextID)
	if bc == nil {
		return "", "", fmt.Errorf("no such context: %s", contextID)
	}
	sess := c.SessionFor(contextID)
	if sess == nil {
		return "", "", fmt.Errorf("no cdp session for context: %s", contextID)
	}

	n := bc.Tracker.Navigate(url)

	_, loaderID, errText, err := cdppage.Navigate(url).Do(cdp.WithExecutor(ctx, sess))
	if err != nil {
		n.finish(NavigationAborted)
		return "", "", err
	}
	if errText != "" {
		n.finish(NavigationFailed)
		return n.ID, "", fmt.Errorf("navigation failed: %s", errText)
	}
	if loaderID != "" {
		bc.Tracker.FrameStartedNavigating(string(loaderID), url)
	}

	if err := n.WaitReady(ctx, readiness); err != nil {
		return n.ID, "", err
	}
	return n.ID, bc.Tracker.CurrentURL(), nil
}

// Reload issues Page.reload and awaits readiness the same way Navigate
// does, reusing the frame's current URL as the pending navigation's URL.
func (c *Commands) Reload(ctx context.Context, contextID string, ignoreCache bool, readiness ReadinessState) (navigationID string, err error) {
	bc := c.Storage.Get(contextID)
	if bc == nil {
		return "", fmt.Errorf("no such context: %s", contextID)
	}
	sess := c.SessionFor(contextID)
	if sess == nil {
		return "", fmt.Errorf("no cdp session for context: %s", contextID)
	}

	n := bc.Tracker.Navigate(bc.Tracker.CurrentURL())
	if err := cdppage.Reload().WithIgnoreCache(ignoreCache).Do(cdp.WithExecutor(ctx, sess)); err != nil {
		n.finish(NavigationAborted)
		return "", err
	}
	if err := n.WaitReady(ctx, readiness); err != nil {
		return n.ID, err
	}
	return n.ID, nil
}

// Activate brings ctxID's top-level target to the front via
// Target.activateTarget.
func (c *Commands) Activate(ctx context.Context, browser CdpSession, targetID target.ID) error {
	return target.ActivateTarget(targetID).Do(cdp.WithExecutor(ctx, browser))
}

// TraverseHistory issues Page.getNavigationHistory then
// Page.navigateToHistoryEntry delta entries forward/back.
func (c *Commands) TraverseHistory(ctx context.Context, contextID string, delta int64) error {
	sess := c.SessionFor(contextID)
	if sess == nil {
		return fmt.Errorf("no cdp session for context: %s", contextID)
	}
	currentIndex, entries, err := cdppage.GetNavigationHistory().Do(cdp.WithExecutor(ctx, sess))
	if err != nil {
		return err
	}
	targetIndex := currentIndex + delta
	if targetIndex < 0 || int(targetIndex) >= len(entries) {
		return fmt.Errorf("no such history entry at offset %d", delta)
	}
	return cdppage.NavigateToHistoryEntry(entries[targetIndex].ID).Do(cdp.WithExecutor(ctx, sess))
}

// SetViewport records a per-context viewport override; the actual CDP
// Emulation.setDeviceMetricsOverride call is issued by the mapper
// root's applySettings, which owns the target's TargetSettings.
func (c *Commands) SetViewport(contextID string, vp *Viewport) error {
	bc := c.Storage.Get(contextID)
	if bc == nil {
		return fmt.Errorf("no such context: %s", contextID)
	}
	bc.Viewport = vp
	return nil
}

// ParsePageRanges validates the print module's page-range syntax:
// "N" or "N-M" with N<=M; an empty bound means 1 or MAX (§4.4).
func ParsePageRanges(ranges []string, maxPage int) ([][2]int, error) {
	out := make([][2]int, 0, len(ranges))
	for _, r := range ranges {
		lo, hi := 1, maxPage
		parts := strings.SplitN(r, "-", 2)
		if len(parts) == 1 {
			n, err := strconv.Atoi(strings.TrimSpace(parts[0]))
			if err != nil || n < 1 {
				return nil, fmt.Errorf("invalid page range %q", r)
			}
			lo, hi = n, n
		} else {
			if s := strings.TrimSpace(parts[0]); s != "" {
				n, err := strconv.Atoi(s)
				if err != nil || n < 1 {
					return nil, fmt.Errorf("invalid page range %q", r)
				}
				lo = n
			}
			if s := strings.TrimSpace(parts[1]); s != "" {
				n, err := strconv.Atoi(s)
				if err != nil || n < 1 {
					return nil, fmt.Errorf("invalid page range %q", r)
				}
				hi = n
			}
		}
		if lo > hi {
			return nil, fmt.Errorf("invalid page range %q: start after end", r)
		}
		out = append(out, [2]int{lo, hi})
	}
	return out, nil
}

// cmPerInch is used by print to translate BiDi's centimetre margins
// and paper dimensions into CDP's inch-based printToPDF parameters.
const cmPerInch = 2.54

// CmToInch converts a centimetre measurement to inches.
func CmToInch(cm float64) float64 { return cm / cmPerInch }
