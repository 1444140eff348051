package mapper

import (
	"context"
	"encoding/json"

	cdpfetch "github.com/chromedp/cdproto/fetch"

	"github.com/webbidi/mapper/network"
)

type urlPatternWire struct {
	Type     string `json:"type"`
	Pattern  string `json:"pattern"`
	Protocol string `json:"protocol"`
	Hostname string `json:"hostname"`
	Port     string `json:"port"`
	Pathname string `json:"pathname"`
	Search   string `json:"search"`
}

func toURLPattern(w urlPatternWire) network.URLPattern {
	if w.Type == "pattern" {
		return network.URLPattern{
			Kind: network.PatternParsed, Protocol: w.Protocol, Hostname: w.Hostname,
			Port: w.Port, Pathname: w.Pathname, Search: w.Search,
		}
	}
	return network.URLPattern{Kind: network.PatternString, Pattern: w.Pattern}
}

type addInterceptParams struct {
	Phases   []string         `json:"phases"`
	URLPatterns []urlPatternWire `json:"urlPatterns"`
	Contexts []string         `json:"contexts"`
}

// targetsInScope resolves the live CdpTargets belonging to contextIDs,
// or every attached target when contextIDs is empty (§4.7's intercepts
// are registered globally unless scoped to specific contexts).
func (s *Session) targetsInScope(contextIDs []string) []*CdpTarget {
	s.targetsMu.RLock()
	defer s.targetsMu.RUnlock()
	if len(contextIDs) == 0 {
		out := make([]*CdpTarget, 0, len(s.contextTargets))
		for _, t := range s.contextTargets {
			out = append(out, t)
		}
		return out
	}
	out := make([]*CdpTarget, 0, len(contextIDs))
	for _, id := range contextIDs {
		if t := s.contextTargets[id]; t != nil {
			out = append(out, t)
		}
	}
	return out
}

func (s *Session) reapplyIntercepts(ctx context.Context, contextIDs []string) error {
	for _, t := range s.targetsInScope(contextIDs) {
		if err := s.interceptStorage.ApplyFetchEnable(ctx, t, true); err != nil && !isCdpCloseError(err) {
			return err
		}
	}
	return nil
}

// cmdNetworkAddIntercept implements network.addIntercept (§4.7).
func (s *Session) cmdNetworkAddIntercept(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p addInterceptParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	patterns := make([]network.URLPattern, 0, len(p.URLPatterns))
	for _, w := range p.URLPatterns {
		patterns = append(patterns, toURLPattern(w))
	}
	ic := s.interceptStorage.Add(NewID, p.Phases, patterns, p.Contexts)
	if err := s.reapplyIntercepts(ctx, p.Contexts); err != nil {
		return nil, NewError(ErrorCodeUnknownError, err.Error())
	}
	return map[string]interface{}{"intercept": ic.ID}, nil
}

type removeInterceptParams struct {
	Intercept string `json:"intercept"`
}

// cmdNetworkRemoveIntercept implements network.removeIntercept.
func (s *Session) cmdNetworkRemoveIntercept(raw json.RawMessage) (interface{}, error) {
	var p removeInterceptParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if err := s.interceptStorage.Remove(p.Intercept); err != nil {
		return nil, NewError(ErrorCodeNoSuchIntercept, err.Error())
	}
	go s.reapplyIntercepts(context.Background(), nil)
	return map[string]interface{}{}, nil
}

type continueRequestParams struct {
	Request string `json:"request"`
}

// cmdNetworkContinueRequest implements network.continueRequest.
func (s *Session) cmdNetworkContinueRequest(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p continueRequestParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	r := s.networkStorage.Get(p.Request)
	t := s.sessionForRequest(p.Request)
	if r == nil || t == nil {
		return nil, NewError(ErrorCodeNoSuchRequest, "no such request: "+p.Request)
	}
	if err := network.ContinueRequest(ctx, t, r.Snapshot().FetchReqID, s.networkStorage, p.Request); err != nil {
		return nil, NewError(ErrorCodeUnknownError, err.Error())
	}
	return map[string]interface{}{}, nil
}

type continueResponseParams struct {
	Request string `json:"request"`
}

// cmdNetworkContinueResponse implements network.continueResponse.
func (s *Session) cmdNetworkContinueResponse(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p continueResponseParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	r := s.networkStorage.Get(p.Request)
	t := s.sessionForRequest(p.Request)
	if r == nil || t == nil {
		return nil, NewError(ErrorCodeNoSuchRequest, "no such request: "+p.Request)
	}
	if err := network.ContinueResponse(ctx, t, r.Snapshot().FetchReqID, s.networkStorage, p.Request); err != nil {
		return nil, NewError(ErrorCodeUnknownError, err.Error())
	}
	return map[string]interface{}{}, nil
}

type continueWithAuthParams struct {
	Request  string `json:"request"`
	Action   string `json:"action"`
	Credentials *struct {
		Username string `json:"username"`
		Password string `json:"password"`
	} `json:"credentials"`
}

// cmdNetworkContinueWithAuth implements network.continueWithAuth.
func (s *Session) cmdNetworkContinueWithAuth(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p continueWithAuthParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	r := s.networkStorage.Get(p.Request)
	t := s.sessionForRequest(p.Request)
	if r == nil || t == nil {
		return nil, NewError(ErrorCodeNoSuchRequest, "no such request: "+p.Request)
	}
	var username, password string
	if p.Credentials != nil {
		username, password = p.Credentials.Username, p.Credentials.Password
	}
	if err := network.ContinueWithAuth(ctx, t, r.Snapshot().FetchReqID, username, password, s.networkStorage, p.Request); err != nil {
		return nil, NewError(ErrorCodeUnknownError, err.Error())
	}
	return map[string]interface{}{}, nil
}

type failRequestParams struct {
	Request string `json:"request"`
}

// cmdNetworkFailRequest implements network.failRequest.
func (s *Session) cmdNetworkFailRequest(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p failRequestParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	r := s.networkStorage.Get(p.Request)
	t := s.sessionForRequest(p.Request)
	if r == nil || t == nil {
		return nil, NewError(ErrorCodeNoSuchRequest, "no such request: "+p.Request)
	}
	if err := network.FailRequest(ctx, t, r.Snapshot().FetchReqID, s.networkStorage, p.Request); err != nil {
		return nil, NewError(ErrorCodeUnknownError, err.Error())
	}
	return map[string]interface{}{}, nil
}

type headerEntryWire struct {
	Name  string `json:"name"`
	Value struct {
		Value string `json:"value"`
	} `json:"value"`
}

type provideResponseParams struct {
	Request    string            `json:"request"`
	StatusCode int64             `json:"statusCode"`
	Headers    []headerEntryWire `json:"headers"`
	Body       *struct {
		Value string `json:"value"`
	} `json:"body"`
}

// cmdNetworkProvideResponse implements network.provideResponse.
func (s *Session) cmdNetworkProvideResponse(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p provideResponseParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	r := s.networkStorage.Get(p.Request)
	t := s.sessionForRequest(p.Request)
	if r == nil || t == nil {
		return nil, NewError(ErrorCodeNoSuchRequest, "no such request: "+p.Request)
	}
	headers := make([]*cdpfetch.HeaderEntry, 0, len(p.Headers))
	for _, h := range p.Headers {
		headers = append(headers, &cdpfetch.HeaderEntry{Name: h.Name, Value: h.Value.Value})
	}
	var body []byte
	if p.Body != nil {
		body = []byte(p.Body.Value)
	}
	statusCode := p.StatusCode
	if statusCode == 0 {
		statusCode = 200
	}
	if err := network.ProvideResponse(ctx, t, r.Snapshot().FetchReqID, statusCode, headers, body, s.networkStorage, p.Request); err != nil {
		return nil, NewError(ErrorCodeUnknownError, err.Error())
	}
	return map[string]interface{}{}, nil
}

type setCacheBehaviorParams struct {
	CacheBehavior string   `json:"cacheBehavior"`
	Contexts      []string `json:"contexts"`
}

// cmdNetworkSetCacheBehavior implements network.setCacheBehavior.
func (s *Session) cmdNetworkSetCacheBehavior(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p setCacheBehaviorParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	bypass := p.CacheBehavior == "bypass"
	for _, t := range s.targetsInScope(p.Contexts) {
		if err := network.SetCacheBehavior(ctx, t, bypass); err != nil && !isCdpCloseError(err) {
			return nil, NewError(ErrorCodeUnknownError, err.Error())
		}
	}
	return map[string]interface{}{}, nil
}

type addDataCollectorParams struct {
	DataTypes          []string `json:"dataTypes"`
	MaxEncodedDataSize int64    `json:"maxEncodedDataSize"`
}

// cmdNetworkAddDataCollector implements network.addDataCollector.
func (s *Session) cmdNetworkAddDataCollector(raw json.RawMessage) (interface{}, error) {
	var p addDataCollectorParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	dc := s.dataCollectors.Add(NewID, p.DataTypes, p.MaxEncodedDataSize)
	return map[string]interface{}{"collector": dc.ID}, nil
}

type removeDataCollectorParams struct {
	Collector string `json:"collector"`
}

// cmdNetworkRemoveDataCollector implements network.removeDataCollector.
func (s *Session) cmdNetworkRemoveDataCollector(raw json.RawMessage) (interface{}, error) {
	var p removeDataCollectorParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if err := s.dataCollectors.Remove(p.Collector); err != nil {
		return nil, NewError(ErrorCodeInvalidArgument, err.Error())
	}
	return map[string]interface{}{}, nil
}

type getDataParams struct {
	Collector string `json:"collector"`
	Request   string `json:"request"`
}

// cmdNetworkGetData implements network.getData.
func (s *Session) cmdNetworkGetData(raw json.RawMessage) (interface{}, error) {
	var p getDataParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	dc := s.dataCollectors.Get(p.Collector)
	if dc == nil {
		return nil, NewError(ErrorCodeInvalidArgument, "no such data collector: "+p.Collector)
	}
	data := dc.GetData(p.Request)
	if data == nil {
		return nil, NewError(ErrorCodeNoSuchRequest, "no buffered data for request: "+p.Request)
	}
	return map[string]interface{}{"bytes": map[string]interface{}{"type": "base64", "value": data}}, nil
}

type disownDataParams struct {
	Collector string `json:"collector"`
	Request   string `json:"request"`
}

// cmdNetworkDisownData implements network.disownData.
func (s *Session) cmdNetworkDisownData(raw json.RawMessage) (interface{}, error) {
	var p disownDataParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	dc := s.dataCollectors.Get(p.Collector)
	if dc == nil {
		return nil, NewError(ErrorCodeInvalidArgument, "no such data collector: "+p.Collector)
	}
	dc.Disown(p.Request)
	return map[string]interface{}{}, nil
}
