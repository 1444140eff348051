// Package browsingcontext implements the BiDi BrowsingContext tree and
// the per-frame navigation state machine that tracks CDP's
// loader-based navigation lifecycle and translates it into the
// opaque, UUID-identified navigations BiDi clients see.
package browsingcontext

import (
	"context"
	"sync"
)

// ReadinessState decides which lifecycle deferred a navigate/reload
// command awaits before returning (§4.4).
type ReadinessState int

const (
	ReadinessNone ReadinessState = iota
	ReadinessInteractive
	ReadinessComplete
)

// NavigationResult is how a navigation settles.
type NavigationResult int

const (
	NavigationLoad NavigationResult = iota
	NavigationFragment
	NavigationAborted
	NavigationFailed
)

func (r NavigationResult) String() string {
	switch r {
	case NavigationLoad:
		return "load"
	case NavigationFragment:
		return "fragmentNavigated"
	case NavigationAborted:
		return "navigationAborted"
	case NavigationFailed:
		return "navigationFailed"
	default:
		return "unknown"
	}
}

// latch is a single-shot, wait-once signal: the minimal Deferred this
// package needs, kept file-local to avoid a dependency back on the
// mapper root package's generic Deferred[T] (which would cycle).
type latch struct {
	mu   sync.Mutex
	done chan struct{}
	set  bool
}

func newLatch() *latch { return &latch{done: make(chan struct{})} }

func (l *latch) settle() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.set {
		return
	}
	l.set = true
	close(l.done)
}

func (l *latch) wait(ctx context.Context) error {
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Navigation is one in-flight or completed navigation, identified by
// an opaque id the mediator mints — CDP loaderIds never cross the
// BiDi surface (§4.4).
type Navigation struct {
	ID       string
	LoaderID string // CDP loader id, internal only
	URL      string

	Result NavigationResult

	domContentLoaded *latch
	loaded           *latch
	finished         *latch

	aborted bool
}

func newNavigation(id string) *Navigation {
	return &Navigation{
		ID:               id,
		domContentLoaded: newLatch(),
		loaded:           newLatch(),
		finished:         newLatch(),
	}
}

// WaitReady blocks until the navigation has reached the requested
// readiness, or the context is cancelled.
func (n *Navigation) WaitReady(ctx context.Context, readiness ReadinessState) error {
	switch readiness {
	case ReadinessNone:
		return nil
	case ReadinessInteractive:
		return n.domContentLoaded.wait(ctx)
	default:
		return n.loaded.wait(ctx)
	}
}

// finish settles the navigation with a terminal result. Idempotent.
func (n *Navigation) finish(result NavigationResult) {
	n.finished.mu.Lock()
	already := n.finished.set
	n.finished.mu.Unlock()
	if already {
		return
	}
	n.Result = result
	n.domContentLoaded.settle()
	n.loaded.settle()
	n.finished.settle()
}

// FrameTracker is the navigation state machine for exactly one frame
// (§4.4's "Each frame tracks a currentNavigation and an optional
// pendingNavigation"). Top-level and nested frames each own one.
type FrameTracker struct {
	mu sync.Mutex

	current *Navigation
	pending *Navigation

	byLoaderID map[string]*Navigation

	url string

	// onEvent fires a BiDi browsingContext.* event; passed in by the
	// owning BrowsingContext so this package stays decoupled from the
	// event/subscription machinery.
	onEvent func(name string, navigationID string, url string)

	newID func() string
}

// NewFrameTracker constructs a tracker. newID mints a fresh navigation
// id (backed by uuid.NewString in the mediator); onEvent publishes a
// browsingContext.* event carrying the given navigation id and url.
func NewFrameTracker(newID func() string, onEvent func(name, navigationID, url string)) *FrameTracker {
	return &FrameTracker{
		byLoaderID: make(map[string]*Navigation),
		onEvent:    onEvent,
		newID:      newID,
	}
}

// CurrentURL returns the frame's last-committed URL.
func (f *FrameTracker) CurrentURL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.url
}

// Current returns the in-flight navigation, if any has committed.
func (f *FrameTracker) Current() *Navigation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// Navigate starts a new pending navigation for a `navigate(url)`
// command, aborting whatever was previously pending.
func (f *FrameTracker) Navigate(url string) *Navigation {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.pending != nil {
		f.pending.finish(NavigationAborted)
	}
	n := newNavigation(f.newID())
	n.URL = url
	f.pending = n
	return n
}

// FrameStartedNavigating handles CDP Page.frameStartedNavigating.
func (f *FrameTracker) FrameStartedNavigating(loaderID, url string) *Navigation {
	f.mu.Lock()
	n := f.pending
	if n == nil {
		n = newNavigation(f.newID())
		f.pending = n
	}
	n.LoaderID = loaderID
	n.URL = url
	f.byLoaderID[loaderID] = n
	f.mu.Unlock()

	f.onEvent("browsingContext.navigationStarted", n.ID, url)
	return n
}

// FrameNavigated handles CDP Page.frameNavigated.
func (f *FrameTracker) FrameNavigated(loaderID, url string) {
	f.mu.Lock()
	n, ok := f.byLoaderID[loaderID]
	if !ok {
		n = newNavigation(f.newID())
		n.LoaderID = loaderID
		f.byLoaderID[loaderID] = n
	}
	if f.current != nil && f.current != n {
		f.current.finish(NavigationAborted)
	}
	f.current = n
	if f.pending == n {
		f.pending = nil
	}
	f.url = url
	f.mu.Unlock()

	f.onEvent("browsingContext.navigationCommitted", n.ID, url)
}

// NavigatedWithinDocument handles CDP Page.navigatedWithinDocument for
// a fragment (same-document) navigation.
func (f *FrameTracker) NavigatedWithinDocument(url string) {
	f.mu.Lock()
	n := f.pending
	if n == nil || n.LoaderID != "" {
		n = newNavigation(f.newID())
	} else {
		f.pending = nil
	}
	f.url = url
	currentID := ""
	if f.current != nil {
		currentID = f.current.ID
	}
	f.mu.Unlock()

	n.finish(NavigationFragment)
	f.onEvent("browsingContext.fragmentNavigated", n.ID, url)
	_ = currentID // the current navigation id is unchanged by design (§4.4)
}

// LifecycleEvent handles CDP Page.lifecycleEvent on the current loader.
func (f *FrameTracker) LifecycleEvent(loaderID, name string) {
	f.mu.Lock()
	n, ok := f.byLoaderID[loaderID]
	f.mu.Unlock()
	if !ok {
		return
	}
	switch name {
	case "DOMContentLoaded":
		n.domContentLoaded.settle()
		f.onEvent("browsingContext.domContentLoaded", n.ID, f.CurrentURL())
	case "load":
		n.loaded.settle()
		n.finish(NavigationLoad)
		f.onEvent("browsingContext.load", n.ID, f.CurrentURL())
	}
}

// NetworkLoadingFailed handles a network-level load failure on a
// navigation's loader id.
func (f *FrameTracker) NetworkLoadingFailed(loaderID string) {
	f.mu.Lock()
	n, ok := f.byLoaderID[loaderID]
	f.mu.Unlock()
	if !ok {
		return
	}
	n.finish(NavigationFailed)
	f.onEvent("browsingContext.navigationFailed", n.ID, "")
}

// FrameStartedNavigatingConcurrently aborts the current navigation
// when a new one starts before it finished (§4.4's last transition
// row).
func (f *FrameTracker) FrameStartedNavigatingConcurrently() {
	f.mu.Lock()
	cur := f.current
	f.mu.Unlock()
	if cur != nil {
		cur.finish(NavigationAborted)
	}
}
