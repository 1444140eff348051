package realm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
)

// LocalValue is the BiDi wire shape accepted as a script argument
// (§4.5's "Deserialisation (BiDi LocalValue -> CDP CallArgument)").
type LocalValue struct {
	Type     string                 `json:"type"`
	Value    interface{}            `json:"value,omitempty"`
	Handle   string                 `json:"handle,omitempty"`
	SharedID string                 `json:"sharedId,omitempty"`
	Channel  map[string]interface{} `json:"channel,omitempty"`
}

// ResolveNodeFunc resolves a sharedId's backend node to a CDP
// RemoteObjectID bound to this realm's execution context, via
// DOM.resolveNode. It must verify the sharedId's navigableId matches
// this realm's browsing context, returning errNoSuchNode otherwise.
type ResolveNodeFunc func(ctx context.Context, backendNodeID dom.BackendNodeID) (runtime.RemoteObjectID, error)

type bridgeError string

func (e bridgeError) Error() string { return string(e) }

const (
	errNoSuchNode   bridgeError = "no such node"
	errNoSuchHandle bridgeError = "no such handle"
)

// Deserialize converts one LocalValue into a CDP CallArgument for use
// with Runtime.callFunctionOn. Containers are reconstructed in-realm by
// the caller via a small factory function (§4.5); this function
// produces the flattened leaf arguments that factory consumes, and
// resolves object/node references to handles up front.
func Deserialize(ctx context.Context, navigableID string, r *Realm, resolveNode ResolveNodeFunc, lv LocalValue) (*runtime.CallArgument, error) {
	switch lv.Type {
	case "undefined":
		return &runtime.CallArgument{}, nil
	case "null":
		return &runtime.CallArgument{Value: []byte("null")}, nil
	case "string", "boolean":
		return &runtime.CallArgument{Value: mustJSONValue(lv.Value)}, nil
	case "number":
		switch v := lv.Value.(type) {
		case string:
			return &runtime.CallArgument{UnserializableValue: runtime.UnserializableValue(v)}, nil
		default:
			return &runtime.CallArgument{Value: mustJSONValue(lv.Value)}, nil
		}
	case "bigint":
		s, _ := lv.Value.(string)
		return &runtime.CallArgument{UnserializableValue: runtime.UnserializableValue(s + "n")}, nil
	case "date":
		s, _ := lv.Value.(string)
		return &runtime.CallArgument{UnserializableValue: runtime.UnserializableValue(fmt.Sprintf("new Date(%q)", s))}, nil
	case "regexp":
		m, _ := lv.Value.(map[string]interface{})
		pattern, _ := m["pattern"].(string)
		flags, _ := m["flags"].(string)
		return &runtime.CallArgument{UnserializableValue: runtime.UnserializableValue(fmt.Sprintf("new RegExp(%q, %q)", pattern, flags))}, nil
	case "map", "object", "array", "set":
		// Reconstructed in-realm by the caller's container factory; this
		// bridge only validates and passes through the raw value, whose
		// nested LocalValues the factory resolves recursively itself.
		return &runtime.CallArgument{Value: mustJSONValue(lv.Value)}, nil
	case "node":
		return resolveSharedID(ctx, navigableID, resolveNode, lv.SharedID)
	case "channel":
		// A channel value is accepted only when lv.Handle already
		// carries a ChannelProxy's sendMessage handle; no caller in this
		// module creates a ChannelProxy before deserialization, so a
		// channel value without a handle fails with errNoSuchHandle.
		if lv.Handle == "" {
			return nil, errNoSuchHandle
		}
		return &runtime.CallArgument{ObjectID: runtime.RemoteObjectID(lv.Handle)}, nil
	default:
		if lv.Handle != "" {
			if r != nil && !r.Owns(lv.Handle) {
				return nil, errNoSuchHandle
			}
			return &runtime.CallArgument{ObjectID: runtime.RemoteObjectID(lv.Handle)}, nil
		}
		return nil, fmt.Errorf("unsupported local value type %q", lv.Type)
	}
}

// resolveSharedID parses "<navigableId>_element_<backendNodeId>",
// rejects a mismatched navigableId with errNoSuchNode, and resolves
// the backend node through DOM.resolveNode.
func resolveSharedID(ctx context.Context, navigableID string, resolveNode ResolveNodeFunc, sharedID string) (*runtime.CallArgument, error) {
	backendID, err := ParseSharedID(navigableID, sharedID)
	if err != nil {
		return nil, err
	}
	objID, err := resolveNode(ctx, backendID)
	if err != nil {
		return nil, errNoSuchNode
	}
	return &runtime.CallArgument{ObjectID: objID}, nil
}

// ParseSharedID parses a BiDi node sharedId of the form
// "<navigableId>_element_<backendNodeId>" and verifies it belongs to
// navigableID, for callers outside this package that need the bare
// backend node id without going through Deserialize (e.g.
// input.setFiles's DOM.setFileInputFiles).
func ParseSharedID(navigableID, sharedID string) (dom.BackendNodeID, error) {
	if sharedID == "" {
		return 0, errNoSuchHandle
	}
	parts := strings.SplitN(sharedID, "_element_", 2)
	if len(parts) != 2 {
		return 0, errNoSuchHandle
	}
	if parts[0] != navigableID {
		return 0, errNoSuchNode
	}
	var backendID int64
	if _, err := fmt.Sscanf(parts[1], "%d", &backendID); err != nil {
		return 0, errNoSuchHandle
	}
	return dom.BackendNodeID(backendID), nil
}

// ErrNoSuchNode and ErrNoSuchHandle let callers outside this package
// map ParseSharedID's errors to the right BiDi error code.
var (
	ErrNoSuchNode   = errNoSuchNode
	ErrNoSuchHandle = errNoSuchHandle
)

// DefaultResolveNode builds a ResolveNodeFunc bound to sess and the
// realm's execution context, via DOM.resolveNode.
func DefaultResolveNode(sess CdpSession, execID runtime.ExecutionContextID) ResolveNodeFunc {
	return func(ctx context.Context, backendNodeID dom.BackendNodeID) (runtime.RemoteObjectID, error) {
		obj, err := dom.ResolveNode().WithBackendNodeID(backendNodeID).WithExecutionContextID(execID).Do(cdp.WithExecutor(ctx, sess))
		if err != nil {
			return "", err
		}
		if obj == nil {
			return "", errNoSuchNode
		}
		return obj.ObjectID, nil
	}
}

func mustJSONValue(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("null")
	}
	return b
}
