package realm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/runtime"
)

// RemoteValue is the BiDi wire shape produced by serializing a CDP
// RemoteObject (§4.5). Only the fields actually populated for a given
// type are set; json tags with omitempty keep the wire form compact.
type RemoteValue struct {
	Type       string      `json:"type"`
	Value      interface{} `json:"value,omitempty"`
	Handle     string      `json:"handle,omitempty"`
	InternalID string      `json:"internalId,omitempty"`
	SharedID   string      `json:"sharedId,omitempty"`
}

// Serialize translates one CDP RemoteObject (produced with
// serialization:"deep" whenever the caller requested it via
// EvaluateOptions/CallFunctionOptions) into a BiDi RemoteValue, per
// §4.5's post-processing rules: weakLocalObjectReference -> internalId,
// platformobject -> {type:"object"}, node values get a sharedId, empty
// namespaceURI becomes null, generator/iterator subtypes override type
// and drop value.
//
// navigableID is folded into node sharedIds; callers that resolve a
// node's backendNodeId themselves (browsingContext.locateNodes, which
// runs outside Runtime.evaluate's deep-serialization path) can set
// SharedID on the returned value afterward instead of relying on this
// function to find one.
func Serialize(navigableID string, obj *runtime.RemoteObject, ownership string, r *Realm) (RemoteValue, error) {
	if obj == nil {
		return RemoteValue{Type: "undefined"}, nil
	}

	rv := RemoteValue{Type: string(obj.Type)}

	if obj.ObjectID != "" {
		if ownership == "root" {
			rv.Handle = string(obj.ObjectID)
			if r != nil {
				r.RecordHandle(string(obj.ObjectID))
			}
		} else if r != nil {
			r.ReleaseFireAndForget(string(obj.ObjectID))
		}
	}

	switch obj.Subtype {
	case runtime.SubtypeNode:
		rv.Type = "node"
	case runtime.SubtypeGenerator:
		rv.Type = "generator"
		rv.Value = nil
		return rv, nil
	case "iterator":
		rv.Type = "iterator"
		rv.Value = nil
		return rv, nil
	}

	if obj.DeepSerializedValue != nil {
		dv := serializeDeep(navigableID, obj.DeepSerializedValue, r)
		rv.Type = dv.Type
		rv.Value = dv.Value
		if dv.SharedID != "" {
			rv.SharedID = dv.SharedID
		}
	} else if len(obj.Value) > 0 {
		var v interface{}
		if err := json.Unmarshal(obj.Value, &v); err != nil {
			return RemoteValue{}, err
		}
		rv.Value = normaliseNamespaceURI(v)
	} else if obj.UnserializableValue != "" {
		rv.Value = string(obj.UnserializableValue)
		rv.Type = unserializableType(string(obj.UnserializableValue), rv.Type)
	}

	// weakLocalObjectReference -> internalId; CDP surfaces this as a
	// non-empty obj.Description tag in some contexts; mediators that
	// see it attach an opaque internalId instead of a handle.
	if obj.Subtype == "weakref" {
		rv.InternalID = fmt.Sprintf("internal_%s", obj.ObjectID)
		rv.Handle = ""
	}

	// platformobject -> plain {type:"object"}
	if obj.Subtype == "platformobject" || obj.ClassName == "PlatformObject" {
		return RemoteValue{Type: "object"}, nil
	}

	return rv, nil
}

func unserializableType(uv, fallback string) string {
	switch {
	case uv == "NaN", uv == "-0", uv == "Infinity", uv == "-Infinity":
		return "number"
	case strings.HasSuffix(uv, "n"):
		return "bigint"
	}
	return fallback
}

func normaliseNamespaceURI(v interface{}) interface{} {
	m, ok := v.(map[string]interface{})
	if !ok {
		return v
	}
	if ns, present := m["namespaceURI"]; present {
		if s, ok := ns.(string); ok && s == "" {
			m["namespaceURI"] = nil
		}
	}
	for k, child := range m {
		m[k] = normaliseNamespaceURI(child)
	}
	return m
}

// deepNode is the JSON shape CDP puts in a "node"-typed
// DeepSerializedValue's Value field.
type deepNode struct {
	BackendNodeID  int64                         `json:"backendNodeId"`
	NodeType       int64                         `json:"nodeType"`
	NodeValue      string                        `json:"nodeValue"`
	LocalName      string                        `json:"localName"`
	Attributes     []string                      `json:"attributes"`
	ChildNodeCount int64                         `json:"childNodeCount"`
	Children       []runtime.DeepSerializedValue `json:"children"`
	ShadowRootType string                        `json:"shadowRootType"`
}

// serializeDeep walks one CDP deep-serialized value tree into a
// RemoteValue tree, folding node values' backendNodeId into sharedId
// along the way (§4.5). This is the sole place sharedId is derived
// from a Runtime.evaluate/callFunctionOn result.
func serializeDeep(navigableID string, dv *runtime.DeepSerializedValue, r *Realm) RemoteValue {
	rv := RemoteValue{Type: string(dv.Type)}

	switch dv.Type {
	case runtime.DeepSerializedValueTypeUndefined, runtime.DeepSerializedValueTypeNull:
		return rv

	case runtime.DeepSerializedValueTypeNode:
		rv.Type = "node"
		var n deepNode
		if len(dv.Value) > 0 {
			_ = json.Unmarshal(dv.Value, &n)
		}
		if n.BackendNodeID != 0 {
			rv.SharedID = fmt.Sprintf("%s_element_%d", navigableID, n.BackendNodeID)
		}
		rv.Value = nodeProperties(navigableID, n, r)
		return rv

	case runtime.DeepSerializedValueTypeArray, runtime.DeepSerializedValueTypeSet:
		var items []runtime.DeepSerializedValue
		if len(dv.Value) > 0 {
			_ = json.Unmarshal(dv.Value, &items)
		}
		out := make([]RemoteValue, 0, len(items))
		for i := range items {
			out = append(out, serializeDeep(navigableID, &items[i], r))
		}
		rv.Value = out
		return rv

	case runtime.DeepSerializedValueTypeObject, runtime.DeepSerializedValueTypeMap:
		var pairs [][2]runtime.DeepSerializedValue
		if len(dv.Value) > 0 {
			_ = json.Unmarshal(dv.Value, &pairs)
		}
		out := make([][2]RemoteValue, 0, len(pairs))
		for _, pair := range pairs {
			out = append(out, [2]RemoteValue{
				serializeDeep(navigableID, &pair[0], r),
				serializeDeep(navigableID, &pair[1], r),
			})
		}
		rv.Value = out
		return rv

	default:
		if len(dv.Value) > 0 {
			var v interface{}
			if err := json.Unmarshal(dv.Value, &v); err == nil {
				rv.Value = normaliseNamespaceURI(v)
			}
		}
		return rv
	}
}

// nodeProperties builds §4.5's NodeProperties shape (nodeType,
// childNodeCount, attributes, children, localName/namespaceURI for
// elements) from a deep-serialized node.
func nodeProperties(navigableID string, n deepNode, r *Realm) map[string]interface{} {
	m := map[string]interface{}{
		"nodeType":       n.NodeType,
		"nodeValue":      n.NodeValue,
		"childNodeCount": n.ChildNodeCount,
	}
	if n.LocalName != "" {
		m["localName"] = n.LocalName
		m["namespaceURI"] = nil
	}
	if len(n.Attributes) > 0 {
		attrs := make(map[string]string, len(n.Attributes)/2)
		for i := 0; i+1 < len(n.Attributes); i += 2 {
			attrs[n.Attributes[i]] = n.Attributes[i+1]
		}
		m["attributes"] = attrs
	}
	if len(n.Children) > 0 {
		children := make([]RemoteValue, 0, len(n.Children))
		for i := range n.Children {
			children = append(children, serializeDeep(navigableID, &n.Children[i], r))
		}
		m["children"] = children
	}
	return m
}
