package mapper

import (
	"context"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/target"
)

// TargetSettings holds the per-target overrides applied at attach time
// and re-applied whenever emulation.* or browsingContext.setViewport
// changes them (§3, "CdpTarget... per-target settings"; SPEC_FULL §4.3).
type TargetSettings struct {
	AcceptInsecureCerts bool

	Geolocation *GeolocationOverride
	Locale      string
	Timezone    string

	Viewport    *Viewport
	Orientation *ScreenOrientation

	UserAgent string
}

// GeolocationOverride mirrors CDP Emulation.setGeolocationOverride's
// parameters.
type GeolocationOverride struct {
	Latitude, Longitude, Accuracy float64
}

// Viewport mirrors the device-metrics half of
// Emulation.setDeviceMetricsOverride.
type Viewport struct {
	Width, Height int64
	DevicePixelRatio float64
	Mobile           bool
}

// ScreenOrientation mirrors the orientation half of
// Emulation.setDeviceMetricsOverride.
type ScreenOrientation struct {
	Type  string
	Angle int64
}

// CdpTarget is the mediator's per-browsing-context-group CDP session: a
// single flat-mode CDP session id, the enablement flags it has actually
// applied, the settings currently in force, and the fan-out point for
// every CDP event CDP delivers on this session (§3, "CdpTarget. One
// per... attached CDP target/session").
type CdpTarget struct {
	client   *CdpClient
	TargetID target.ID
	SessionID target.SessionID

	events *EventEmitter

	// unblocked settles once the domain-enable sequence (§4.3) has run
	// and, if the target was created paused (waitForDebuggerOnStart),
	// once Runtime.runIfWaitingForDebugger has been sent. Commands that
	// need the target interactive wait on this before proceeding.
	unblocked *Deferred[struct{}]

	networkEnabled bool
	fetchEnabled   bool

	settings TargetSettings

	isWorker bool

	logf, errf func(string, ...interface{})
}

// TargetOption configures a CdpTarget at construction time.
type TargetOption func(*CdpTarget)

// WithTargetLogf sets the target's general logging func.
func WithTargetLogf(f func(string, ...interface{})) TargetOption {
	return func(t *CdpTarget) { t.logf = f }
}

// WithTargetErrorf sets the target's error logging func.
func WithTargetErrorf(f func(string, ...interface{})) TargetOption {
	return func(t *CdpTarget) { t.errf = f }
}

// WithWorker marks the target as backing a dedicated/shared worker
// rather than a browsing context.
func WithWorker() TargetOption {
	return func(t *CdpTarget) { t.isWorker = true }
}

// newCdpTarget constructs a CdpTarget and registers it with client so
// incoming flat-mode traffic for sessionID is routed here. It does not
// run the domain-enable sequence; that is target_lifecycle.go's job.
func newCdpTarget(client *CdpClient, targetID target.ID, sessionID target.SessionID, opts ...TargetOption) *CdpTarget {
	t := &CdpTarget{
		client:    client,
		TargetID:  targetID,
		SessionID: sessionID,
		events:    NewEventEmitter(),
		unblocked: NewDeferred[struct{}](),
		logf:      client.logf,
		errf:      client.errf,
	}
	for _, o := range opts {
		o(t)
	}
	client.registerTarget(t)
	return t
}

// dispose unregisters the target from its client. Called once the
// BrowsingContext (or worker realm) it backs is torn down.
func (t *CdpTarget) dispose() {
	t.client.unregisterTarget(t.SessionID)
}

// Execute sends a CDP command scoped to this target's session,
// satisfying cdp.Executor the way cdproto's generated command types
// expect (§4.5, "the realm/value bridge issues Runtime.callFunctionOn
// through the owning CdpTarget's Execute").
func (t *CdpTarget) Execute(ctx context.Context, method string, params easyJSONMarshaler, res easyJSONUnmarshaler) error {
	if cdproto.MethodType(method) == target.CommandCloseTarget {
		return Error("to close a browsing context, use browsingContext.close, not a raw cdp.sendCommand")
	}
	return t.client.execute(ctx, t.SessionID, method, params, res)
}

// On subscribes to one or more CDP event methods delivered on this
// target's session (e.g. "Page.frameNavigated"), or to the synthetic
// "cdp.*" event dispatchEvent emits for every CDP event, which is how
// the `cdp.*` BiDi event funnel (§4.8) is implemented. An empty events
// list registers a wildcard listener for every emitted event.
func (t *CdpTarget) On(handler EventHandler, events ...string) (cancel func()) {
	if len(events) == 0 {
		return t.events.OnAny(handler)
	}
	return t.events.On(handler, events...)
}

// dispatchEvent is called by the owning CdpClient's read loop for
// every event addressed to this session. It unmarshals the event into
// its concrete cdproto type (when known) and fans it out under both
// its bare event name and its CDP method string, so BiDi's cdp.*
// pass-through listeners (which want the raw method+params) and this
// mediator's own typed listeners (which want e.g. *page.EventFrameNavigated)
// can share one emitter.
func (t *CdpTarget) dispatchEvent(msg *cdproto.Message) {
	ev, err := cdproto.UnmarshalMessage(msg)
	if err != nil {
		t.errf("could not unmarshal event %s: %v", msg.Method, err)
		return
	}
	t.events.Emit(string(msg.Method), ev)
	t.events.Emit("cdp.*", cdpRawEvent{Session: t.SessionID, Method: string(msg.Method), Params: msg.Params})
}

// cdpRawEvent is what a `cdp.*` BiDi subscriber actually receives: the
// untyped method name and raw params, plus the CDP session id it came
// from; session.go's wireCdpEvents turns it into a BiDi
// `cdp.<method>` event carrying {event, params, session}.
type cdpRawEvent struct {
	Session target.SessionID
	Method  string
	Params  []byte
}
