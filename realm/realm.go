// Package realm implements the BiDi Realm registry and the value
// bridge that translates between BiDi's RemoteValue wire format and
// CDP's Runtime.RemoteObject.
package realm

import (
	"context"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/runtime"
	"github.com/mailru/easyjson"
)

// CdpSession is the slice of CdpTarget behaviour this package needs.
// See browsingcontext.CdpSession for why this is a local interface
// rather than an import of the mapper root package.
type CdpSession interface {
	Execute(ctx context.Context, method string, params easyjson.Marshaler, res easyjson.Unmarshaler) error
}

// Type is a BiDi realm type (§3, GLOSSARY).
type Type string

const (
	TypeWindow         Type = "window"
	TypeDedicatedWorker Type = "dedicated-worker"
	TypeSharedWorker   Type = "shared-worker"
	TypeServiceWorker  Type = "service-worker"
	TypeWorklet        Type = "worklet"
)

// Realm is one CDP execution context wearing a BiDi identity.
type Realm struct {
	ID            string
	Type          Type
	BrowsingContextID string // empty for worker/worklet realms
	Origin        string
	Session       CdpSession
	ExecutionContextID runtime.ExecutionContextID

	mu           sync.Mutex
	knownHandles map[string]bool // objectId -> owned by this realm
}

func newRealm(id string, typ Type, contextID, origin string, sess CdpSession, execID runtime.ExecutionContextID) *Realm {
	return &Realm{
		ID:                 id,
		Type:               typ,
		BrowsingContextID:  contextID,
		Origin:             origin,
		Session:            sess,
		ExecutionContextID: execID,
		knownHandles:       make(map[string]bool),
	}
}

// RecordHandle remembers an objectId returned with resultOwnership=root
// (§4.5: "the returned handle is recorded in knownHandles -> realmId").
func (r *Realm) RecordHandle(objectID string) {
	r.mu.Lock()
	r.knownHandles[objectID] = true
	r.mu.Unlock()
}

// Owns reports whether objectID was recorded as owned by this realm.
func (r *Realm) Owns(objectID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.knownHandles[objectID]
}

// Disown forgets objectID and fires Runtime.releaseObject. Handles not
// owned by this realm are ignored (§4.5).
func (r *Realm) Disown(ctx context.Context, objectID string) error {
	r.mu.Lock()
	owned := r.knownHandles[objectID]
	if owned {
		delete(r.knownHandles, objectID)
	}
	r.mu.Unlock()
	if !owned {
		return nil
	}
	return runtime.ReleaseObject(runtime.RemoteObjectID(objectID)).Do(cdp.WithExecutor(ctx, r.Session))
}

// ReleaseFireAndForget releases an object CDP returned without
// resultOwnership=root, without blocking the caller on the result.
func (r *Realm) ReleaseFireAndForget(objectID string) {
	go func() {
		_ = runtime.ReleaseObject(runtime.RemoteObjectID(objectID)).Do(cdp.WithExecutor(context.Background(), r.Session))
	}()
}

// Storage is the registry of live realms (§3, "RealmStorage").
type Storage struct {
	mu     sync.RWMutex
	realms map[string]*Realm
}

// NewStorage returns an empty registry.
func NewStorage() *Storage {
	return &Storage{realms: make(map[string]*Realm)}
}

// Create registers a fresh realm, minting its id via newID.
func (s *Storage) Create(newID func() string, typ Type, contextID, origin string, sess CdpSession, execID runtime.ExecutionContextID) *Realm {
	r := newRealm(newID(), typ, contextID, origin, sess, execID)
	s.mu.Lock()
	s.realms[r.ID] = r
	s.mu.Unlock()
	return r
}

// Get returns the realm by id, or nil.
func (s *Storage) Get(id string) *Realm {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.realms[id]
}

// ByExecutionContext finds the realm backed by a given CDP execution
// context within one session, or nil.
func (s *Storage) ByExecutionContext(sess CdpSession, execID runtime.ExecutionContextID) *Realm {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.realms {
		if r.Session == sess && r.ExecutionContextID == execID {
			return r
		}
	}
	return nil
}

// ForContext returns every realm belonging to a browsing context, used
// by script.getRealms and by disposal cascades.
func (s *Storage) ForContext(contextID string) []*Realm {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Realm
	for _, r := range s.realms {
		if r.BrowsingContextID == contextID {
			out = append(out, r)
		}
	}
	return out
}

// Delete removes a realm, e.g. on Runtime.executionContextDestroyed or
// a browsing-context disposal cascade.
func (s *Storage) Delete(id string) {
	s.mu.Lock()
	delete(s.realms, id)
	s.mu.Unlock()
}

// DeleteForContext removes and returns every realm owned by contextID.
func (s *Storage) DeleteForContext(contextID string) []*Realm {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Realm
	for id, r := range s.realms {
		if r.BrowsingContextID == contextID {
			out = append(out, r)
			delete(s.realms, id)
		}
	}
	return out
}
