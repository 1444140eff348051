package mapper

import (
	"sort"

	"golang.org/x/exp/maps"
)

// moduleEvents is the static module-name -> leaf-event-name table used
// to unroll a subscription at `subscribe` time (§4.2: "module names are
// unrolled to the leaf event names at subscription time, so later-added
// leaves are not retroactively included").
var moduleEvents = map[string][]string{
	"browsingContext": {
		"browsingContext.contextCreated",
		"browsingContext.contextDestroyed",
		"browsingContext.navigationStarted",
		"browsingContext.navigationCommitted",
		"browsingContext.fragmentNavigated",
		"browsingContext.navigationAborted",
		"browsingContext.navigationFailed",
		"browsingContext.domContentLoaded",
		"browsingContext.load",
		"browsingContext.userPromptOpened",
		"browsingContext.userPromptClosed",
	},
	"network": {
		"network.beforeRequestSent",
		"network.responseStarted",
		"network.responseCompleted",
		"network.fetchError",
		"network.authRequired",
	},
	"script": {
		"script.realmCreated",
		"script.realmDestroyed",
		"script.message",
	},
	"log": {
		"log.entryAdded",
	},
}

// leafEventsFor unrolls a subscription request's event list: a bare
// module name expands to every leaf event it currently has; a leaf
// event name (or "cdp.<eventName>") passes through unchanged.
func leafEventsFor(events []string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(e string) {
		if !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	for _, e := range events {
		if leaves, ok := moduleEvents[e]; ok {
			for _, leaf := range leaves {
				add(leaf)
			}
			continue
		}
		add(e)
	}
	sort.Strings(out)
	return out
}

// moduleOf returns the module name an event or event prefix belongs
// to: "browsingContext.load" -> "browsingContext", "cdp.Page.frameNavigated"
// -> "cdp".
func moduleOf(event string) string {
	for i, r := range event {
		if r == '.' {
			return event[:i]
		}
	}
	return event
}

// subscription is one flat subscription record (§4.2: "Subscriptions
// are flat records, not a nested map").
type subscription struct {
	id     string
	events map[string]bool // leaf event names, already unrolled

	userContextIDs        map[string]bool
	topLevelTraversableIDs map[string]bool
	// global is true iff both scope sets above are empty.

	// channel is this subscription's side-channel tag (§3,
	// "Subscription... side-channel tag"), echoed on every event this
	// subscription is the reason for delivering. Empty means untagged.
	channel string
}

func (s *subscription) matchesEvent(event string) bool {
	if s.events[event] {
		return true
	}
	// a subscription keyed by a bare module name (no leaves existed for
	// it yet, or a synthetic cdp.* wildcard) also matches by prefix.
	if s.events[moduleOf(event)] || s.events[moduleOf(event)+".*"] {
		return true
	}
	return false
}

func (s *subscription) matchesScope(userContextID, topLevelTraversableID string) bool {
	if len(s.userContextIDs) > 0 {
		return s.userContextIDs[userContextID]
	}
	if len(s.topLevelTraversableIDs) > 0 {
		return s.topLevelTraversableIDs[topLevelTraversableID]
	}
	return true
}

// SubscriptionManager resolves "who receives event E for context C?" by
// linear scan over flat subscription records (§4.2).
type SubscriptionManager struct {
	subs map[string]*subscription
}

// NewSubscriptionManager returns an empty manager.
func NewSubscriptionManager() *SubscriptionManager {
	return &SubscriptionManager{subs: make(map[string]*subscription)}
}

// SubscriptionScope describes the scope parameters accepted by
// session.subscribe.
type SubscriptionScope struct {
	UserContextIDs        []string
	TopLevelTraversableIDs []string
}

// Subscribe registers a new flat subscription and returns its id.
// channel is the side-channel tag the command frame carried (empty if
// none), recorded on the record so matching events are delivered
// tagged with it (§3, §8 invariant 2).
func (m *SubscriptionManager) Subscribe(events []string, scope SubscriptionScope, channel string) string {
	id := NewID()
	leaves := leafEventsFor(events)
	set := make(map[string]bool, len(leaves))
	for _, e := range leaves {
		set[e] = true
	}
	s := &subscription{id: id, events: set, channel: channel}
	if len(scope.UserContextIDs) > 0 {
		s.userContextIDs = toSet(scope.UserContextIDs)
	}
	if len(scope.TopLevelTraversableIDs) > 0 {
		s.topLevelTraversableIDs = toSet(scope.TopLevelTraversableIDs)
	}
	m.subs[id] = s
	return id
}

func toSet(vs []string) map[string]bool {
	set := make(map[string]bool, len(vs))
	for _, v := range vs {
		set[v] = true
	}
	return set
}

// UnsubscribeByID removes whole records atomically; it fails with
// ErrorCodeInvalidArgument (without mutating anything) if any id is
// unknown (§4.2).
func (m *SubscriptionManager) UnsubscribeByID(ids []string) error {
	for _, id := range ids {
		if _, ok := m.subs[id]; !ok {
			return NewError(ErrorCodeInvalidArgument, "no such subscription: "+id)
		}
	}
	for _, id := range ids {
		delete(m.subs, id)
	}
	return nil
}

// UnsubscribeByAttributes requires every event and every context in
// the request to match at least one existing record; if any doesn't,
// it fails with ErrorCodeInvalidArgument and performs no mutation. A
// record that only partially matches is split: the request's slice is
// carved out and the remainder kept under the same id (§4.2, "When
// partial matches split a record, the record is replaced by the
// remainder(s)").
func (m *SubscriptionManager) UnsubscribeByAttributes(events []string, contexts SubscriptionScope) error {
	leaves := leafEventsFor(events)

	matched := make(map[string]bool, len(leaves))
	for _, e := range leaves {
		for _, s := range m.subs {
			if s.events[e] && scopeOverlaps(s, contexts) {
				matched[e] = true
				break
			}
		}
	}
	for _, e := range leaves {
		if !matched[e] {
			return NewError(ErrorCodeInvalidArgument, "no matching subscription for event "+e)
		}
	}

	leafSet := toSet(leaves)
	for id, s := range m.subs {
		if !scopeOverlaps(s, contexts) {
			continue
		}
		remaining := make(map[string]bool, len(s.events))
		for e := range s.events {
			if !leafSet[e] {
				remaining[e] = true
			}
		}
		if len(remaining) == 0 {
			delete(m.subs, id)
		} else {
			s.events = remaining
		}
	}
	return nil
}

func scopeOverlaps(s *subscription, req SubscriptionScope) bool {
	if len(req.UserContextIDs) == 0 && len(req.TopLevelTraversableIDs) == 0 {
		return true
	}
	for _, id := range req.UserContextIDs {
		if len(s.userContextIDs) == 0 || s.userContextIDs[id] {
			return true
		}
	}
	for _, id := range req.TopLevelTraversableIDs {
		if len(s.topLevelTraversableIDs) == 0 || s.topLevelTraversableIDs[id] {
			return true
		}
	}
	return false
}

// Recipients returns the subscription ids whose scope and event set
// match the given event for the given context (empty context id
// arguments match only globally-scoped subscriptions).
func (m *SubscriptionManager) Recipients(event, userContextID, topLevelTraversableID string) []string {
	var ids []string
	for id, s := range m.subs {
		if s.matchesEvent(event) && s.matchesScope(userContextID, topLevelTraversableID) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// HasRecipient reports whether at least one subscription wants event
// for the given context; registerEvent (§4.8) uses this to decide
// whether the event is worth serialising at all.
func (m *SubscriptionManager) HasRecipient(event, userContextID, topLevelTraversableID string) bool {
	for _, s := range m.subs {
		if s.matchesEvent(event) && s.matchesScope(userContextID, topLevelTraversableID) {
			return true
		}
	}
	return false
}

// RecipientChannels returns the distinct side-channel tags that should
// receive event for the given context scope — one entry per distinct
// tag among matching subscriptions, "" included if an untagged
// subscription matches (§8 invariant 2: "a BiDi event is delivered to
// a channel tag T iff the subscription manager has at least one record
// whose channel=T... and whose scope matches").
func (m *SubscriptionManager) RecipientChannels(event, userContextID, topLevelTraversableID string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range m.subs {
		if s.matchesEvent(event) && s.matchesScope(userContextID, topLevelTraversableID) {
			if !seen[s.channel] {
				seen[s.channel] = true
				out = append(out, s.channel)
			}
		}
	}
	sort.Strings(out)
	return out
}

// SubscriptionIDs returns every currently-registered subscription id,
// used by session.status-style introspection and tests.
func (m *SubscriptionManager) SubscriptionIDs() []string {
	ids := maps.Keys(m.subs)
	sort.Strings(ids)
	return ids
}
