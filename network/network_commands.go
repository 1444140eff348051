package network

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	cdpfetch "github.com/chromedp/cdproto/fetch"
	cdpnetwork "github.com/chromedp/cdproto/network"
	"github.com/mailru/easyjson"
)

// CdpSession is the slice of CdpTarget's behaviour this package needs;
// see browsingcontext.CdpSession for why this is declared locally
// instead of importing the mapper root package.
type CdpSession interface {
	Execute(ctx context.Context, method string, params easyjson.Marshaler, res easyjson.Unmarshaler) error
}

// URLPatternKind mirrors network.UrlPattern's two variants.
type URLPatternKind int

const (
	PatternString URLPatternKind = iota
	PatternParsed
)

// URLPattern is one network.addIntercept pattern.
type URLPattern struct {
	Kind     URLPatternKind
	Pattern  string // PatternString
	Protocol string // PatternParsed fields
	Hostname string
	Port     string
	Pathname string
	Search   string
}

func (p URLPattern) toFetchPattern(phase string) *cdpfetch.RequestPattern {
	var url string
	switch p.Kind {
	case PatternString:
		url = p.Pattern
	default:
		url = p.Protocol + "://" + p.Hostname
		if p.Port != "" {
			url += ":" + p.Port
		}
		url += p.Pathname + p.Search
	}
	return &cdpfetch.RequestPattern{
		URLPattern:   url,
		RequestStage: cdpfetch.RequestStage(phase),
	}
}

// Intercept is one network.addIntercept registration.
type Intercept struct {
	ID       string
	Phases   []string
	Patterns []URLPattern
	ContextIDs []string
}

// InterceptStorage tracks registered intercepts so removeIntercept can
// recompute the union of patterns still needed across a target.
type InterceptStorage struct {
	mu         sync.Mutex
	intercepts map[string]*Intercept
}

// NewInterceptStorage returns an empty registry.
func NewInterceptStorage() *InterceptStorage {
	return &InterceptStorage{intercepts: make(map[string]*Intercept)}
}

// Add registers a new intercept, minting its id via newID.
func (s *InterceptStorage) Add(newID func() string, phases []string, patterns []URLPattern, contextIDs []string) *Intercept {
	ic := &Intercept{ID: newID(), Phases: phases, Patterns: patterns, ContextIDs: contextIDs}
	s.mu.Lock()
	s.intercepts[ic.ID] = ic
	s.mu.Unlock()
	return ic
}

// Remove deletes an intercept by id, returning an error usable as
// no such intercept when absent.
func (s *InterceptStorage) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.intercepts[id]; !ok {
		return fmt.Errorf("no such intercept: %s", id)
	}
	delete(s.intercepts, id)
	return nil
}

// All returns every registered intercept.
func (s *InterceptStorage) All() []*Intercept {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Intercept, 0, len(s.intercepts))
	for _, ic := range s.intercepts {
		out = append(out, ic)
	}
	return out
}

// ApplyFetchEnable recomputes the union of Fetch.RequestPatterns
// across every registered intercept and reapplies it to sess via
// disable-then-enable (mirroring the mediator's fetchApply sequencing
// at the mapper root, since Fetch domain state is target-scoped).
func (s *InterceptStorage) ApplyFetchEnable(ctx context.Context, sess CdpSession, handleAuthRequests bool) error {
	s.mu.Lock()
	var patterns []*cdpfetch.RequestPattern
	for _, ic := range s.intercepts {
		for _, phase := range ic.Phases {
			for _, p := range ic.Patterns {
				patterns = append(patterns, p.toFetchPattern(phase))
			}
		}
	}
	s.mu.Unlock()

	if err := cdpfetch.Disable().Do(cdp.WithExecutor(ctx, sess)); err != nil {
		return err
	}
	if len(patterns) == 0 {
		return nil
	}
	return cdpfetch.Enable().WithPatterns(patterns).WithHandleAuthRequests(handleAuthRequests).Do(cdp.WithExecutor(ctx, sess))
}

// ContinueRequest translates network.continueRequest to Fetch.continueRequest.
func ContinueRequest(ctx context.Context, sess CdpSession, fetchRequestID string, reqStorage *Storage, requestID string) error {
	reqStorage.ClearPhase(requestID)
	return cdpfetch.ContinueRequest(cdpfetch.RequestID(fetchRequestID)).Do(cdp.WithExecutor(ctx, sess))
}

// ContinueResponse translates network.continueResponse to Fetch.continueResponse.
func ContinueResponse(ctx context.Context, sess CdpSession, fetchRequestID string, reqStorage *Storage, requestID string) error {
	reqStorage.ClearPhase(requestID)
	return cdpfetch.ContinueResponse(cdpfetch.RequestID(fetchRequestID)).Do(cdp.WithExecutor(ctx, sess))
}

// ContinueWithAuth translates network.continueWithAuth to
// Fetch.continueWithAuth.
func ContinueWithAuth(ctx context.Context, sess CdpSession, fetchRequestID string, username, password string, reqStorage *Storage, requestID string) error {
	reqStorage.ClearPhase(requestID)
	resp := &cdpfetch.AuthChallengeResponse{
		Response: cdpfetch.AuthChallengeResponseResponseProvideCredentials,
		Username: username,
		Password: password,
	}
	if username == "" && password == "" {
		resp.Response = cdpfetch.AuthChallengeResponseResponseDefault
	}
	return cdpfetch.ContinueWithAuth(cdpfetch.RequestID(fetchRequestID), resp).Do(cdp.WithExecutor(ctx, sess))
}

// FailRequest translates network.failRequest to Fetch.failRequest.
func FailRequest(ctx context.Context, sess CdpSession, fetchRequestID string, reqStorage *Storage, requestID string) error {
	reqStorage.ClearPhase(requestID)
	return cdpfetch.FailRequest(cdpfetch.RequestID(fetchRequestID), cdpnetwork.ErrorReasonFailed).Do(cdp.WithExecutor(ctx, sess))
}

// ProvideResponse translates network.provideResponse to
// Fetch.fulfillRequest.
func ProvideResponse(ctx context.Context, sess CdpSession, fetchRequestID string, statusCode int64, headers []*cdpfetch.HeaderEntry, body []byte, reqStorage *Storage, requestID string) error {
	reqStorage.ClearPhase(requestID)
	cmd := cdpfetch.FulfillRequest(cdpfetch.RequestID(fetchRequestID), statusCode).WithResponseHeaders(headers)
	if len(body) > 0 {
		cmd = cmd.WithBody(string(body))
	}
	return cmd.Do(cdp.WithExecutor(ctx, sess))
}

// SetCacheBehavior translates network.setCacheBehavior to
// Network.setCacheDisabled.
func SetCacheBehavior(ctx context.Context, sess CdpSession, bypass bool) error {
	return cdpnetwork.SetCacheDisabled(bypass).Do(cdp.WithExecutor(ctx, sess))
}

// DataCollector tracks a network.addDataCollector registration: a
// buffer of response bodies keyed by requestId, capped by
// maxEncodedDataSize (§4.7 follows network.addDataCollector's
// semantics — bodies are retained until getData/disownData or the
// collector itself is removed).
type DataCollector struct {
	ID                string
	DataTypes         []string
	MaxEncodedDataSize int64

	mu   sync.Mutex
	data map[string][]byte
}

// DataCollectorStorage tracks live collectors.
type DataCollectorStorage struct {
	mu         sync.Mutex
	collectors map[string]*DataCollector
}

// NewDataCollectorStorage returns an empty registry.
func NewDataCollectorStorage() *DataCollectorStorage {
	return &DataCollectorStorage{collectors: make(map[string]*DataCollector)}
}

// Add registers a new collector.
func (s *DataCollectorStorage) Add(newID func() string, dataTypes []string, maxSize int64) *DataCollector {
	dc := &DataCollector{ID: newID(), DataTypes: dataTypes, MaxEncodedDataSize: maxSize, data: make(map[string][]byte)}
	s.mu.Lock()
	s.collectors[dc.ID] = dc
	s.mu.Unlock()
	return dc
}

// Get returns the collector by id, or nil.
func (s *DataCollectorStorage) Get(id string) *DataCollector {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collectors[id]
}

// Remove deletes a collector by id.
func (s *DataCollectorStorage) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collectors[id]; !ok {
		return fmt.Errorf("no such data collector: %s", id)
	}
	delete(s.collectors, id)
	return nil
}

// Record stores a response body fragment for requestID, subject to
// MaxEncodedDataSize.
func (dc *DataCollector) Record(requestID string, body []byte) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	existing := dc.data[requestID]
	if dc.MaxEncodedDataSize > 0 && int64(len(existing)+len(body)) > dc.MaxEncodedDataSize {
		return
	}
	dc.data[requestID] = append(existing, body...)
}

// GetData returns the buffered body for requestID, or nil.
func (dc *DataCollector) GetData(requestID string) []byte {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	return dc.data[requestID]
}

// Disown drops the buffered body for requestID.
func (dc *DataCollector) Disown(requestID string) {
	dc.mu.Lock()
	delete(dc.data, requestID)
	dc.mu.Unlock()
}
