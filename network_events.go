package mapper

import (
	cdpfetch "github.com/chromedp/cdproto/fetch"
	cdpnetwork "github.com/chromedp/cdproto/network"

	"github.com/webbidi/mapper/network"
)

// headersToWire translates CDP's loose Headers map into BiDi's
// ordered header-entry list (§4.7). Order is not preserved by CDP's
// representation, so this mediator emits entries in map iteration
// order, matching the teacher's general stance of not fighting
// non-deterministic upstream ordering it didn't create.
func headersToWire(h cdpnetwork.Headers) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(h))
	for k, v := range h {
		out = append(out, map[string]interface{}{
			"name":  k,
			"value": map[string]interface{}{"type": "string", "value": toHeaderString(v)},
		})
	}
	return out
}

func toHeaderString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// baseRequestParams builds the requestData object shared by every
// network.* event (§4.7).
func baseRequestParams(requestID string, snap network.RequestSnapshot) map[string]interface{} {
	req := map[string]interface{}{
		"request": requestID,
	}
	if snap.WillBeSent != nil && snap.WillBeSent.Request != nil {
		r := snap.WillBeSent.Request
		req["url"] = r.URL
		req["method"] = r.Method
		req["headers"] = headersToWire(r.Headers)
		req["headersSize"] = -1
		req["bodySize"] = len(r.PostData)
		req["timings"] = map[string]interface{}{}
	}
	return req
}

func eventTimestamp(snap network.RequestSnapshot) float64 {
	if snap.WillBeSent != nil {
		return float64(snap.WillBeSent.WallTime) * 1000
	}
	return 0
}

// networkEventParams builds the BiDi params object for one of the
// network module's events from requestID's accumulated snapshot
// (§4.7). kind selects which event shape to build.
func networkEventParams(contextID, requestID string, snap network.RequestSnapshot, kind string) map[string]interface{} {
	params := map[string]interface{}{
		"context":        contextID,
		"isBlocked":      snap.Phase != network.PhaseNone,
		"navigation":     nil,
		"redirectCount":  snap.RedirectCount,
		"request":        baseRequestParams(requestID, snap),
		"timestamp":      eventTimestamp(snap),
	}
	if snap.WillBeSent != nil {
		params["initiator"] = map[string]interface{}{"type": "other"}
	}

	switch kind {
	case "responseStarted", "responseCompleted":
		if snap.ResponseReceived != nil && snap.ResponseReceived.Response != nil {
			resp := snap.ResponseReceived.Response
			params["response"] = map[string]interface{}{
				"url":          resp.URL,
				"status":       resp.Status,
				"statusText":   resp.StatusText,
				"fromCache":    resp.FromDiskCache || snap.ServedFromCache,
				"headers":      headersToWire(resp.Headers),
				"mimeType":     resp.MimeType,
				"bytesReceived": resp.EncodedDataLength,
				"headersSize":  -1,
				"bodySize":     -1,
				"content":      map[string]interface{}{"size": resp.EncodedDataLength},
			}
		}
	case "authRequired":
		if snap.AuthChallenge != nil {
			params["response"] = map[string]interface{}{
				"statusCode": 401,
			}
		}
	}
	return params
}

// wireNetworkEvents subscribes to the CDP Network/Fetch events that
// drive networkStorage's join logic, translating every newly-unblocked
// BiDi event into the corresponding network.* event (§4.7). t's
// session is recorded against each requestId it reports in
// Fetch.requestPaused, so
// network.continueRequest/failRequest/provideResponse/continueWithAuth
// can resolve a CdpSession from a bare BiDi requestId.
func (s *Session) wireNetworkEvents(t *CdpTarget, contextID, userContextID string) {
	top := func() string { return s.bcStorage.TopLevelAncestor(contextID) }

	emit := func(kind, requestID string, snap network.RequestSnapshot) {
		s.events.RegisterEvent("network."+kind, networkEventParams(contextID, requestID, snap, kind), userContextID, top())
	}

	t.On(func(_ string, data interface{}) {
		ev, ok := data.(*cdpnetwork.EventRequestWillBeSent)
		if !ok {
			return
		}
		out := s.networkStorage.OnRequestWillBeSent(ev)
		if out.RedirectedRequest != nil {
			emit("responseCompleted", out.RedirectedRequest.ID, out.RedirectedRequest.Snapshot())
		}
		if out.BeforeRequestSent {
			if r := s.networkStorage.Get(string(ev.RequestID)); r != nil {
				emit("beforeRequestSent", r.ID, r.Snapshot())
			}
		}
	}, "Network.requestWillBeSent")

	t.On(func(_ string, data interface{}) {
		ev, ok := data.(*cdpnetwork.EventRequestWillBeSentExtraInfo)
		if !ok {
			return
		}
		out := s.networkStorage.OnRequestWillBeSentExtraInfo(ev)
		if out.BeforeRequestSent {
			if r := s.networkStorage.Get(string(ev.RequestID)); r != nil {
				emit("beforeRequestSent", r.ID, r.Snapshot())
			}
		}
	}, "Network.requestWillBeSentExtraInfo")

	t.On(func(_ string, data interface{}) {
		ev, ok := data.(*cdpnetwork.EventResponseReceived)
		if !ok {
			return
		}
		servedFromCache := ev.Response != nil && ev.Response.FromDiskCache
		out := s.networkStorage.OnResponseReceived(ev, servedFromCache)
		if out.ResponseCompleted {
			if r := s.networkStorage.Get(string(ev.RequestID)); r != nil {
				emit("responseCompleted", r.ID, r.Snapshot())
			}
		}
	}, "Network.responseReceived")

	t.On(func(_ string, data interface{}) {
		ev, ok := data.(*cdpnetwork.EventResponseReceivedExtraInfo)
		if !ok {
			return
		}
		out := s.networkStorage.OnResponseReceivedExtraInfo(ev)
		if out.ResponseCompleted {
			if r := s.networkStorage.Get(string(ev.RequestID)); r != nil {
				emit("responseCompleted", r.ID, r.Snapshot())
			}
		}
	}, "Network.responseReceivedExtraInfo")

	t.On(func(_ string, data interface{}) {
		ev, ok := data.(*cdpnetwork.EventLoadingFailed)
		if !ok {
			return
		}
		out := s.networkStorage.OnLoadingFailed(string(ev.RequestID))
		if out.FetchError {
			emit("fetchError", string(ev.RequestID), network.RequestSnapshot{})
		}
	}, "Network.loadingFailed")

	t.On(func(_ string, data interface{}) {
		fev, ok := data.(*cdpfetch.EventRequestPaused)
		if !ok {
			return
		}
		phase := network.FetchPhase(fev.ResponseStatusCode, string(fev.ResponseErrorReason), fev.ResponseStatusText)
		networkRequestID := string(fev.NetworkID)
		if networkRequestID == "" {
			networkRequestID = string(fev.RequestID)
		}

		s.targetsMu.Lock()
		s.requestTargets[networkRequestID] = t
		s.targetsMu.Unlock()

		out := s.networkStorage.OnRequestPaused(networkRequestID, string(fev.RequestID), phase, nil)
		r := s.networkStorage.Get(networkRequestID)
		if r == nil {
			return
		}
		if out.BeforeRequestSent {
			emit("beforeRequestSent", r.ID, r.Snapshot())
		}
		if out.ResponseStarted {
			emit("responseStarted", r.ID, r.Snapshot())
		}
		if out.AuthRequired {
			emit("authRequired", r.ID, r.Snapshot())
		}
	}, "Fetch.requestPaused")
}
