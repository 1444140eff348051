package mapper

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/cdp"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"

	"github.com/webbidi/mapper/browsingcontext"
	"github.com/webbidi/mapper/network"
	"github.com/webbidi/mapper/realm"
)

// CommandSource is the out-of-scope BiDi transport's read side (§4.1).
type CommandSource interface {
	ReadCommand(ctx context.Context) ([]byte, error)
}

// UserContext is a BiDi user context: a CDP browser context plus the
// top-level traversables created within it.
type UserContext struct {
	ID              string
	BrowserContextID target.BrowserContextID
}

// Session is the mediator's single aggregate root: one event loop
// (modelled here as one goroutine per Serve call, §5's "single-threaded,
// cooperative" scheduling collapsed onto Go's scheduler with storages
// guarded by their own locks per §5's note that a parallel runtime must
// serialise access), one root CDP connection, and the five storages
// named in SPEC_FULL's DATA MODEL section.
type Session struct {
	client *CdpClient

	bcStorage  *browsingcontext.Storage
	bcCommands *browsingcontext.Commands

	realmStorage   *realm.Storage
	preloadStorage *realm.PreloadScriptStorage

	networkStorage   *network.Storage
	interceptStorage *network.InterceptStorage
	dataCollectors   *network.DataCollectorStorage

	userContextsMu sync.Mutex
	userContexts   map[string]*UserContext

	subs  *SubscriptionManager
	events *EventManager
	queue *ProcessingQueue

	// contextTargets maps a top-level browsing-context id to the
	// CdpTarget backing it, so command processors can resolve a
	// browsingcontext.CdpSession from a bare context id. requestTargets
	// maps a CDP network requestId to the target that reported it, so
	// network.continueRequest and friends can resolve a CdpSession from
	// a bare BiDi requestId (§4.7).
	targetsMu      sync.RWMutex
	contextTargets map[string]*CdpTarget
	requestTargets map[string]*CdpTarget

	// inputStates holds each context's held-key/held-button bookkeeping
	// for input.performActions/releaseActions.
	inputMu     sync.Mutex
	inputStates map[string]*inputState

	logf, errf func(string, ...interface{})
}

// SessionOption configures a Session at construction time, mirroring
// BrowserOption/ContextOption in the teacher.
type SessionOption func(*Session)

// WithSessionLogf sets the session's general logging func.
func WithSessionLogf(f func(string, ...interface{})) SessionOption {
	return func(s *Session) { s.logf = f }
}

// WithSessionErrorf sets the session's error logging func.
func WithSessionErrorf(f func(string, ...interface{})) SessionOption {
	return func(s *Session) { s.errf = f }
}

// NewSession wires a fresh CdpClient over conn to the five storages and
// the command/event machinery, ready to Serve once Run is started.
func NewSession(conn CdpTransport, sink ResponseSink, opts ...SessionOption) *Session {
	s := &Session{
		bcStorage:        browsingcontext.NewStorage(),
		realmStorage:     realm.NewStorage(),
		preloadStorage:   realm.NewPreloadScriptStorage(),
		networkStorage:   network.NewStorage(),
		interceptStorage: network.NewInterceptStorage(),
		dataCollectors:   network.NewDataCollectorStorage(),
		userContexts:     make(map[string]*UserContext),
		contextTargets:   make(map[string]*CdpTarget),
		requestTargets:   make(map[string]*CdpTarget),
		subs:             NewSubscriptionManager(),
		logf:             func(string, ...interface{}) {},
		errf:             func(string, ...interface{}) {},
	}
	for _, o := range opts {
		o(s)
	}
	s.client = NewCdpClient(conn, s.logf, s.errf)
	s.queue = NewProcessingQueue(sink, s.errf)
	s.events = NewEventManager(s.subs, s.queue)
	s.bcCommands = &browsingcontext.Commands{Storage: s.bcStorage, SessionFor: s.sessionFor}
	return s
}

// sessionFor resolves the CdpSession backing contextID's top-level
// traversable, satisfying browsingcontext.Commands.SessionFor.
func (s *Session) sessionFor(contextID string) browsingcontext.CdpSession {
	top := s.bcStorage.TopLevelAncestor(contextID)
	s.targetsMu.RLock()
	defer s.targetsMu.RUnlock()
	t := s.contextTargets[top]
	if t == nil {
		return nil
	}
	return t
}

// Run starts the root CDP connection's read/dispatch loop. Call once,
// before Serve.
func (s *Session) Run(ctx context.Context) { s.client.Run(ctx) }

// Serve reads BiDi command frames from source until ctx is cancelled,
// dispatching each through ProcessCommand and draining the outgoing
// queue into the sink concurrently (§4.1).
func (s *Session) Serve(ctx context.Context, source CommandSource) error {
	go s.queue.Run(ctx)

	for {
		raw, err := source.ReadCommand(ctx)
		if err != nil {
			return err
		}
		frame, parseErr := parseCommandFrame(raw)
		if parseErr != nil {
			s.queue.Push(OutgoingMessage{Message: ErrorResponse{Code: ErrorCodeInvalidArgument, Message: parseErr.Error()}})
			continue
		}
		go s.ProcessCommand(ctx, frame)
	}
}

// ProcessCommand implements §4.1's "parse params -> invoke processor ->
// wrap as success response" pipeline for one command frame.
func (s *Session) ProcessCommand(ctx context.Context, frame CommandFrame) {
	result, err := s.dispatch(ctx, frame)
	if err != nil {
		id := frame.ID
		s.queue.Push(OutgoingMessage{
			Message: ToErrorResponse(&id, err),
			Channel: frame.ChannelTag,
		})
		return
	}
	s.queue.Push(OutgoingMessage{
		Message: SuccessResponse{ID: frame.ID, Result: result},
		Channel: frame.ChannelTag,
	})
}

// emitBrowsingContextEvent is the onEvent callback handed to every
// FrameTracker this session creates; it's how browsingcontext stays
// decoupled from the EventManager/SubscriptionManager (§4.4, §4.8).
func (s *Session) emitBrowsingContextEvent(contextID, userContextID string) func(name, navigationID, url string) {
	return func(name, navigationID, url string) {
		top := s.bcStorage.TopLevelAncestor(contextID)
		params := map[string]interface{}{
			"context":    contextID,
			"navigation": navigationID,
			"url":        url,
		}
		s.events.RegisterEvent(name, params, userContextID, top)
	}
}

// attachContext creates the BrowsingContext tree entry and
// FrameTracker for a freshly-attached CDP target, registers the
// target under its context id, and emits contextCreated once the
// target is interactive (§4.4: "contextCreated is emitted only after
// the target's unblocked latch resolves").
func (s *Session) attachContext(ctx context.Context, t *CdpTarget, parentID, userContextID string) *browsingcontext.BrowsingContext {
	contextID := string(t.TargetID)

	s.targetsMu.Lock()
	s.contextTargets[contextID] = t
	s.targetsMu.Unlock()

	tracker := browsingcontext.NewFrameTracker(NewID, s.emitBrowsingContextEvent(contextID, userContextID))
	bc := s.bcStorage.Create(contextID, parentID, userContextID, tracker)

	s.wireFrameEvents(t, tracker)
	s.wireRealmEvents(t, contextID, userContextID)
	s.wireNetworkEvents(t, contextID, userContextID)
	s.wireCdpEvents(t, contextID, userContextID)
	s.applyPreloadScripts(ctx, t, contextID)

	go func() {
		if err := t.awaitUnblocked(ctx); err != nil {
			return
		}
		s.events.RegisterEvent("browsingContext.contextCreated", map[string]interface{}{
			"context":  contextID,
			"parent":   parentID,
			"url":      "about:blank",
		}, userContextID, s.bcStorage.TopLevelAncestor(contextID))
	}()

	return bc
}

// wireFrameEvents subscribes to the CDP Page/Network events that drive
// tracker's state machine and this session's NetworkRequest join
// logic, translating each into the corresponding BiDi event (§4.4,
// §4.7).
func (s *Session) wireFrameEvents(t *CdpTarget, tracker *browsingcontext.FrameTracker) {
	// Page.frameStartedNavigating is a newer CDP event with no verified
	// call site anywhere in the retrieval pack; FrameTracker exposes
	// FrameStartedNavigating for callers on CDP builds that have it, but
	// this mediator drives the state machine from frameNavigated alone,
	// which already mints a navigation on demand when one wasn't
	// pre-registered (see FrameTracker.FrameNavigated).
	t.On(func(_ string, data interface{}) {
		switch ev := data.(type) {
		case *cdppage.EventFrameNavigated:
			if ev.Frame != nil {
				tracker.FrameNavigated(string(ev.Frame.LoaderID), ev.Frame.URL)
			}
		case *cdppage.EventNavigatedWithinDocument:
			tracker.NavigatedWithinDocument(ev.URL)
		case *cdppage.EventLifecycleEvent:
			tracker.LifecycleEvent(string(ev.LoaderID), ev.Name)
		}
	},
		string(cdproto.EventPageFrameNavigated),
		string(cdproto.EventPageNavigatedWithinDocument),
		string(cdproto.EventPageLifecycleEvent),
	)
}

// wireCdpEvents funnels every CDP event t receives into a BiDi
// `cdp.<method>` event carrying {event,params,session} (§4.3, §4.8),
// the raw pass-through stream clients subscribed to the `cdp` module
// rely on instead of this mediator's own typed BiDi events.
func (s *Session) wireCdpEvents(t *CdpTarget, contextID, userContextID string) {
	top := s.bcStorage.TopLevelAncestor(contextID)
	t.On(func(_ string, data interface{}) {
		raw, ok := data.(cdpRawEvent)
		if !ok {
			return
		}
		var params interface{}
		if len(raw.Params) > 0 {
			_ = json.Unmarshal(raw.Params, &params)
		}
		s.events.RegisterEvent("cdp."+raw.Method, map[string]interface{}{
			"event":   raw.Method,
			"params":  params,
			"session": string(raw.Session),
		}, userContextID, top)
	}, "cdp.*")
}

// wireRealmEvents subscribes to Runtime.executionContext{Created,Destroyed}
// on t and mirrors them into realmStorage, emitting script.realmCreated/
// realmDestroyed (§4.5, §4.8). The realm carrying auxData.isDefault is
// what script.evaluate (no sandbox) resolves to for this context.
func (s *Session) wireRealmEvents(t *CdpTarget, contextID, userContextID string) {
	t.On(func(_ string, data interface{}) {
		ev, ok := data.(*runtime.EventExecutionContextCreated)
		if !ok || ev.Context == nil {
			return
		}
		origin := ev.Context.Origin
		r := s.realmStorage.Create(NewID, realm.TypeWindow, contextID, origin, t, ev.Context.ID)
		top := s.bcStorage.TopLevelAncestor(contextID)
		s.events.RegisterEvent("script.realmCreated", map[string]interface{}{
			"realm":   r.ID,
			"origin":  origin,
			"type":    string(r.Type),
			"context": contextID,
		}, userContextID, top)
	}, string(cdproto.EventRuntimeExecutionContextCreated))

	t.On(func(_ string, data interface{}) {
		ev, ok := data.(*runtime.EventExecutionContextDestroyed)
		if !ok {
			return
		}
		if r := s.realmStorage.ByExecutionContext(t, ev.ExecutionContextID); r != nil {
			s.realmStorage.Delete(r.ID)
			top := s.bcStorage.TopLevelAncestor(contextID)
			s.events.RegisterEvent("script.realmDestroyed", map[string]interface{}{"realm": r.ID}, userContextID, top)
		}
	}, string(cdproto.EventRuntimeExecutionContextDestroyed))
}

// sessionForRequest resolves the CdpTarget that reported requestID via
// Fetch.requestPaused, for network.continueRequest and friends (§4.7).
func (s *Session) sessionForRequest(requestID string) *CdpTarget {
	s.targetsMu.RLock()
	defer s.targetsMu.RUnlock()
	return s.requestTargets[requestID]
}

// applyPreloadScripts initialises every globally- or context-scoped
// preload script registered so far on a freshly-attached target, once
// it becomes interactive (§4.3: "initialise all globally-scoped
// preload scripts in the target").
func (s *Session) applyPreloadScripts(ctx context.Context, t *CdpTarget, contextID string) {
	go func() {
		if err := t.awaitUnblocked(ctx); err != nil {
			return
		}
		for _, script := range s.preloadStorage.All() {
			if !preloadScriptAppliesTo(script, contextID) {
				continue
			}
			cdpID, err := realm.AddPreloadScript(ctx, t, script.Source)
			if err != nil {
				continue
			}
			script.RecordApplied(contextID, cdpID)
		}
	}()
}

// defaultRealm resolves contextID's current window realm, failing with
// ErrorCodeNoSuchFrame when the target hasn't produced one yet (e.g.
// immediately after create, before the first execution context fires).
func (s *Session) defaultRealm(contextID string) (*realm.Realm, error) {
	realms := s.realmStorage.ForContext(contextID)
	if len(realms) == 0 {
		return nil, NewError(ErrorCodeNoSuchFrame, "no realm yet for context: "+contextID)
	}
	return realms[0], nil
}

// CreateContext opens a new top-level browsing context via
// Target.createTarget, attaches to it, and waits for it to become
// interactive before returning — the systems-language shape of
// browsingContext.create (§4.4).
func (s *Session) CreateContext(ctx context.Context, url, userContextID string, settings TargetSettings) (*browsingcontext.BrowsingContext, error) {
	targetID, err := s.bcCommands.CreateTarget(ctx, s.client, url)
	if err != nil {
		return nil, err
	}
	sessionID, err := target.AttachToTarget(targetID).WithFlatten(true).Do(cdp.WithExecutor(ctx, s.client))
	if err != nil {
		return nil, err
	}
	t := AttachTarget(ctx, s.client, targetID, sessionID, settings, func() bool { return false })
	if err := t.awaitUnblocked(ctx); err != nil {
		return nil, err
	}
	return s.attachContext(ctx, t, "", userContextID), nil
}

// getUserContext looks up a registered BiDi user context by id.
func (s *Session) getUserContext(id string) *UserContext {
	s.userContextsMu.Lock()
	defer s.userContextsMu.Unlock()
	return s.userContexts[id]
}

// createUserContext opens a fresh CDP browser context via
// Target.createBrowserContext and registers it as a new BiDi user
// context, the systems-language shape of browser.createUserContext.
func (s *Session) createUserContext(ctx context.Context) (*UserContext, error) {
	bctx, err := target.CreateBrowserContext().Do(cdp.WithExecutor(ctx, s.client))
	if err != nil {
		return nil, err
	}
	uc := &UserContext{ID: NewID(), BrowserContextID: bctx}
	s.userContextsMu.Lock()
	s.userContexts[uc.ID] = uc
	s.userContextsMu.Unlock()
	return uc, nil
}

// removeUserContext disposes id's CDP browser context (and every
// target still open within it) and forgets it, the systems-language
// shape of browser.removeUserContext.
func (s *Session) removeUserContext(ctx context.Context, id string) error {
	uc := s.getUserContext(id)
	if uc == nil {
		return NewError(ErrorCodeNoSuchUserContext, "no such user context: "+id)
	}
	if err := target.DisposeBrowserContext(uc.BrowserContextID).Do(cdp.WithExecutor(ctx, s.client)); err != nil && !isCdpCloseError(err) {
		return err
	}
	s.userContextsMu.Lock()
	delete(s.userContexts, id)
	s.userContextsMu.Unlock()
	return nil
}

// CloseContext closes ctxID's CDP target and disposes its subtree,
// cascading realm/network teardown per §4.4.
func (s *Session) CloseContext(ctx context.Context, contextID string) error {
	sess := s.sessionFor(contextID)
	if sess == nil {
		return NewError(ErrorCodeNoSuchFrame, "no such context: "+contextID)
	}
	top := s.bcStorage.TopLevelAncestor(contextID)
	disposed := s.bcCommands.Close(contextID)
	for _, id := range disposed {
		for _, r := range s.realmStorage.DeleteForContext(id) {
			s.events.RegisterEvent("script.realmDestroyed", map[string]interface{}{"realm": r.ID}, "", top)
		}
		s.targetsMu.Lock()
		delete(s.contextTargets, id)
		s.targetsMu.Unlock()
		s.events.RegisterEvent("browsingContext.contextDestroyed", map[string]interface{}{"context": id}, "", top)
	}
	return target.CloseTarget(target.ID(contextID)).Do(cdp.WithExecutor(ctx, s.client))
}

func parseCommandFrame(raw []byte) (CommandFrame, error) {
	var frame CommandFrame
	if err := unmarshalJSONInto(raw, &frame); err != nil {
		return CommandFrame{}, fmt.Errorf("malformed command frame: %w", err)
	}
	return frame, nil
}
