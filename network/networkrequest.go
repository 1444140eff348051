// Package network implements the BiDi NetworkRequest state machine:
// joining Network.* and Fetch.requestPaused events by requestId into
// a single BiDi-visible request, and deciding when each is "ready" for
// emission (§4.7).
package network

import (
	"sync"

	cdpnetwork "github.com/chromedp/cdproto/network"
)

// Phase is the interception phase a request is currently blocked at,
// or PhaseNone when it isn't intercepted (§4.7).
type Phase int

const (
	PhaseNone Phase = iota
	PhaseBeforeRequestSent
	PhaseResponseStarted
	PhaseAuthRequired
)

// Request accumulates every CDP event fragment the mediator has seen
// for one requestId, and tracks which BiDi events have already fired.
type Request struct {
	ID           string
	RedirectCount int

	willBeSent          *cdpnetwork.EventRequestWillBeSent
	willBeSentExtraInfo *cdpnetwork.EventRequestWillBeSentExtraInfo
	responseReceived    *cdpnetwork.EventResponseReceived
	responseExtraInfo   *cdpnetwork.EventResponseReceivedExtraInfo
	servedFromCache     bool

	beforeRequestSentEmitted bool
	responseCompletedEmitted bool

	Phase      Phase
	FetchReqID string // Fetch.requestPaused's own request id, for continue/fail/provide

	AuthChallenge *cdpnetwork.AuthChallenge
}

// beforeRequestSentReady implements §4.7's first bullet.
func (r *Request) beforeRequestSentReady() bool {
	if r.willBeSent == nil || r.beforeRequestSentEmitted {
		return false
	}
	return r.willBeSentExtraInfo != nil ||
		r.servedFromCache ||
		(r.responseReceived != nil && !r.responseReceived.HasExtraInfo) ||
		r.Phase == PhaseBeforeRequestSent
}

// responseCompletedReady implements §4.7's second bullet.
func (r *Request) responseCompletedReady() bool {
	if r.responseReceived == nil || r.responseCompletedEmitted {
		return false
	}
	return r.responseExtraInfo != nil ||
		r.servedFromCache ||
		!r.responseReceived.HasExtraInfo ||
		r.Phase == PhaseResponseStarted
}

// Storage tracks in-flight Requests by CDP requestId, plus the set of
// requests currently blocked on a Fetch interception phase (§4.7:
// "Register the request in NetworkStorage's blocked set").
type Storage struct {
	mu       sync.Mutex
	requests map[string]*Request
	blocked  map[string]bool
}

// NewStorage returns an empty registry.
func NewStorage() *Storage {
	return &Storage{requests: make(map[string]*Request), blocked: make(map[string]bool)}
}

func (s *Storage) getOrCreate(id string) *Request {
	r, ok := s.requests[id]
	if !ok {
		r = &Request{ID: id}
		s.requests[id] = r
	}
	return r
}

// Get returns the tracked request, or nil.
func (s *Storage) Get(id string) *Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[id]
}

// Delete forgets a completed/failed/disposed request.
func (s *Storage) Delete(id string) {
	s.mu.Lock()
	delete(s.requests, id)
	delete(s.blocked, id)
	s.mu.Unlock()
}

// Events is the set of BiDi events a state transition newly unblocked,
// in the order they should be emitted.
type Events struct {
	BeforeRequestSent  bool
	ResponseStarted    bool
	ResponseCompleted  bool
	FetchError         bool
	AuthRequired       bool
	RedirectedRequest  *Request // set when a redirect leg must be flushed first
}

// OnRequestWillBeSent handles Network.requestWillBeSent. A non-nil
// RedirectResponse means the previous leg completed and must be
// synthesised as a response-completed event before the new leg's
// request-info is installed (§4.7).
func (s *Storage) OnRequestWillBeSent(ev *cdpnetwork.EventRequestWillBeSent) Events {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out Events
	r := s.getOrCreate(string(ev.RequestID))

	if ev.RedirectResponse != nil {
		redirected := &Request{ID: r.ID, RedirectCount: r.RedirectCount}
		*redirected = *r
		redirected.responseReceived = &cdpnetwork.EventResponseReceived{
			RequestID: ev.RequestID,
			Response:  ev.RedirectResponse,
		}
		redirected.responseCompletedEmitted = false
		if redirected.responseCompletedReady() {
			out.RedirectedRequest = redirected
		}
		r.RedirectCount++
	}

	r.willBeSent = ev
	r.beforeRequestSentEmitted = false
	r.responseReceived = nil
	r.responseExtraInfo = nil
	r.responseCompletedEmitted = false

	if r.beforeRequestSentReady() {
		r.beforeRequestSentEmitted = true
		out.BeforeRequestSent = true
	}
	return out
}

// OnRequestWillBeSentExtraInfo handles Network.requestWillBeSentExtraInfo.
func (s *Storage) OnRequestWillBeSentExtraInfo(ev *cdpnetwork.EventRequestWillBeSentExtraInfo) Events {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.getOrCreate(string(ev.RequestID))
	r.willBeSentExtraInfo = ev
	var out Events
	if r.beforeRequestSentReady() {
		r.beforeRequestSentEmitted = true
		out.BeforeRequestSent = true
	}
	return out
}

// OnResponseReceived handles Network.responseReceived. Chromium is
// known to send incorrect extra-info for disk-cache responses; it is
// dropped before emitting (§4.7).
func (s *Storage) OnResponseReceived(ev *cdpnetwork.EventResponseReceived, servedFromCache bool) Events {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.getOrCreate(string(ev.RequestID))
	r.responseReceived = ev
	r.servedFromCache = servedFromCache
	if servedFromCache {
		r.responseExtraInfo = nil
	}
	var out Events
	if r.responseCompletedReady() {
		r.responseCompletedEmitted = true
		out.ResponseCompleted = true
	}
	return out
}

// OnResponseReceivedExtraInfo handles Network.responseReceivedExtraInfo.
func (s *Storage) OnResponseReceivedExtraInfo(ev *cdpnetwork.EventResponseReceivedExtraInfo) Events {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.getOrCreate(string(ev.RequestID))
	if r.servedFromCache {
		return Events{}
	}
	r.responseExtraInfo = ev
	var out Events
	if r.responseCompletedReady() {
		r.responseCompletedEmitted = true
		out.ResponseCompleted = true
	}
	return out
}

// OnLoadingFailed handles Network.loadingFailed: the request's
// lifecycle ends with fetchError.
func (s *Storage) OnLoadingFailed(requestID string) Events {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[requestID]; !ok {
		return Events{}
	}
	delete(s.requests, requestID)
	delete(s.blocked, requestID)
	return Events{FetchError: true}
}

// FetchPhase decides the interception phase for a Fetch.requestPaused
// event, per §4.7: no response code/error -> BeforeRequestSent; status
// 401 "Unauthorized" -> AuthRequired; otherwise ResponseStarted.
func FetchPhase(responseStatusCode int64, responseErrorReason string, responseStatusText string) Phase {
	if responseStatusCode == 0 && responseErrorReason == "" {
		return PhaseBeforeRequestSent
	}
	if responseStatusCode == 401 && responseStatusText == "Unauthorized" {
		return PhaseAuthRequired
	}
	return PhaseResponseStarted
}

// OnRequestPaused registers the interception and reports which BiDi
// event should carry isBlocked=true.
func (s *Storage) OnRequestPaused(networkRequestID, fetchRequestID string, phase Phase, challenge *cdpnetwork.AuthChallenge) Events {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.getOrCreate(networkRequestID)
	r.Phase = phase
	r.FetchReqID = fetchRequestID
	r.AuthChallenge = challenge
	s.blocked[networkRequestID] = true

	var out Events
	switch phase {
	case PhaseBeforeRequestSent:
		if r.beforeRequestSentReady() {
			r.beforeRequestSentEmitted = true
			out.BeforeRequestSent = true
		}
	case PhaseResponseStarted:
		out.ResponseStarted = true
	case PhaseAuthRequired:
		out.AuthRequired = true
	}
	return out
}

// RequestSnapshot exposes the raw CDP event fragments a Request has
// accumulated, for a caller (the mapper root's event wiring) to build
// the BiDi wire-shaped event params from.
type RequestSnapshot struct {
	WillBeSent          *cdpnetwork.EventRequestWillBeSent
	WillBeSentExtraInfo *cdpnetwork.EventRequestWillBeSentExtraInfo
	ResponseReceived    *cdpnetwork.EventResponseReceived
	ResponseExtraInfo   *cdpnetwork.EventResponseReceivedExtraInfo
	ServedFromCache     bool
	RedirectCount       int
	FetchReqID          string
	Phase               Phase
	AuthChallenge       *cdpnetwork.AuthChallenge
}

// Snapshot returns r's current accumulated state for event-param
// construction.
func (r *Request) Snapshot() RequestSnapshot {
	return RequestSnapshot{
		WillBeSent:          r.willBeSent,
		WillBeSentExtraInfo: r.willBeSentExtraInfo,
		ResponseReceived:    r.responseReceived,
		ResponseExtraInfo:   r.responseExtraInfo,
		ServedFromCache:     r.servedFromCache,
		RedirectCount:       r.RedirectCount,
		FetchReqID:          r.FetchReqID,
		Phase:               r.Phase,
		AuthChallenge:       r.AuthChallenge,
	}
}

// ClearPhase clears a request's interception phase after
// continueRequest/continueResponse/continueWithAuth/failRequest/
// provideResponse resolves it.
func (s *Storage) ClearPhase(requestID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.requests[requestID]; ok {
		r.Phase = PhaseNone
	}
	delete(s.blocked, requestID)
}

// IsBlocked reports whether requestID is currently intercepted.
func (s *Storage) IsBlocked(requestID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blocked[requestID]
}
