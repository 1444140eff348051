package mapper

import "encoding/json"

// cmdSessionStatus implements session.status: always ready, since this
// mediator has no concept of a remote-end capacity limit.
func (s *Session) cmdSessionStatus() (interface{}, error) {
	return map[string]interface{}{"ready": true, "message": "ready"}, nil
}

type subscribeParams struct {
	Events                 []string `json:"events"`
	UserContexts           []string `json:"userContexts"`
	Contexts               []string `json:"contexts"`
}

// cmdSessionSubscribe implements session.subscribe (§4.2). channel is
// the subscribing command's own side-channel tag, if any: subsequent
// events this subscription is the reason for are tagged with it.
func (s *Session) cmdSessionSubscribe(raw json.RawMessage, channel string) (interface{}, error) {
	var p subscribeParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	id := s.subs.Subscribe(p.Events, SubscriptionScope{
		UserContextIDs:         p.UserContexts,
		TopLevelTraversableIDs: p.Contexts,
	}, channel)
	return map[string]interface{}{"subscription": id}, nil
}

type unsubscribeParams struct {
	Events       []string `json:"events"`
	UserContexts []string `json:"userContexts"`
	Contexts     []string `json:"contexts"`
}

// cmdSessionUnsubscribe implements session.unsubscribe by attributes.
func (s *Session) cmdSessionUnsubscribe(raw json.RawMessage) (interface{}, error) {
	var p unsubscribeParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if err := s.subs.UnsubscribeByAttributes(p.Events, SubscriptionScope{
		UserContextIDs:         p.UserContexts,
		TopLevelTraversableIDs: p.Contexts,
	}); err != nil {
		return nil, err
	}
	return map[string]interface{}{}, nil
}

type unsubscribeByIDParams struct {
	Subscriptions []string `json:"subscriptions"`
}

// cmdSessionUnsubscribeByID implements session.unsubscribeById.
func (s *Session) cmdSessionUnsubscribeByID(raw json.RawMessage) (interface{}, error) {
	var p unsubscribeByIDParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if err := s.subs.UnsubscribeByID(p.Subscriptions); err != nil {
		return nil, err
	}
	return map[string]interface{}{}, nil
}
