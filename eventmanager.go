package mapper

// EventManager wires the SubscriptionManager's recipient resolution to
// the per-connection ProcessingQueue (§4.8).
type EventManager struct {
	subs  *SubscriptionManager
	queue *ProcessingQueue
}

// NewEventManager returns a manager publishing through queue and
// resolving recipients through subs.
func NewEventManager(subs *SubscriptionManager, queue *ProcessingQueue) *EventManager {
	return &EventManager{subs: subs, queue: queue}
}

// Event is a fully-built BiDi event ready to marshal, e.g.
// {"type":"event","method":"browsingContext.load","params":{...}}.
type Event struct {
	Type   string      `json:"type"`
	Method string      `json:"method"`
	Params interface{} `json:"params"`
}

// NewEvent builds a wire-ready Event envelope.
func NewEvent(method string, params interface{}) Event {
	return Event{Type: "event", Method: method, Params: params}
}

// RegisterEvent resolves event's recipients for the given context
// scope and pushes one copy per distinct side-channel tag that wants
// it (already fully resolved — no promise involved) onto the
// processing queue (§4.8, §8 invariant 2).
func (m *EventManager) RegisterEvent(method string, params interface{}, userContextID, topLevelTraversableID string) {
	channels := m.subs.RecipientChannels(method, userContextID, topLevelTraversableID)
	for _, ch := range channels {
		m.queue.Push(OutgoingMessage{Message: NewEvent(method, params), Channel: ch})
	}
}

// RegisterPromiseEvent is the async counterpart: a slot is reserved on
// the processing queue immediately — preserving this event's position
// relative to everything enqueued before and after it — and resolve
// fills that slot once buildParams completes. If nothing is subscribed,
// the promise is still run (its side effects may be needed regardless)
// but its result is dropped rather than enqueued.
func (m *EventManager) RegisterPromiseEvent(method string, userContextID, topLevelTraversableID string, buildParams func() (interface{}, error)) {
	channels := m.subs.RecipientChannels(method, userContextID, topLevelTraversableID)
	resolves := make([]func(OutgoingMessage), len(channels))
	for i := range channels {
		resolves[i] = m.queue.PushFuture()
	}
	go func() {
		params, err := buildParams()
		for i, ch := range channels {
			if err != nil {
				resolves[i](OutgoingMessage{Message: ToErrorResponse(nil, err), Channel: ch})
				continue
			}
			resolves[i](OutgoingMessage{Message: NewEvent(method, params), Channel: ch})
		}
	}()
}
