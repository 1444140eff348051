package realm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/mailru/easyjson"
)

// SerializationOptions mirrors script.SerializationOptions (§4.5):
// maxDomDepth/maxObjectDepth/includeShadowTree, threaded into CDP's
// serialization:"deep" request via additionalParameters so
// Evaluate/CallFunction's result actually carries container contents
// instead of a bare type+handle.
type SerializationOptions struct {
	MaxDomDepth       *int64
	MaxObjectDepth    *int64
	IncludeShadowTree string // "none", "open", or "all"
}

// defaultMaxObjectDepth bounds container depth when the caller leaves
// maxObjectDepth unset, matching BiDi's "unspecified means a
// reasonably deep default" guidance rather than CDP's own default of 0.
const defaultMaxObjectDepth = 10

func (o SerializationOptions) cdpOptions() *runtime.SerializationOptions {
	maxDepth := int64(defaultMaxObjectDepth)
	if o.MaxObjectDepth != nil {
		maxDepth = *o.MaxObjectDepth
	}
	maxNodeDepth := int64(0)
	if o.MaxDomDepth != nil {
		maxNodeDepth = *o.MaxDomDepth
	}
	includeShadowTree := o.IncludeShadowTree
	if includeShadowTree == "" {
		includeShadowTree = "none"
	}
	additional, _ := json.Marshal(map[string]interface{}{
		"maxNodeDepth":      maxNodeDepth,
		"includeShadowTree": includeShadowTree,
	})
	return &runtime.SerializationOptions{
		Serialization:        runtime.SerializationOptionsSerializationDeep,
		MaxDepth:             maxDepth,
		AdditionalParameters: easyjson.RawMessage(additional),
	}
}

// ExceptionResult is script.evaluate/callFunction's error shape
// (§4.5's "Exception results"). lineOffset is 0 for evaluate and 1 for
// callFunction, because the mediator wraps the function body in one
// extra line when invoking Runtime.callFunctionOn.
type ExceptionResult struct {
	RealmID    string
	Exception  RemoteValue
	Text       string
	LineNumber int64
	ColumnNumber int64
	CallFrames []runtime.CallFrame
}

// EvaluateResult is either a success RemoteValue or an ExceptionResult.
type EvaluateResult struct {
	Success   bool
	Value     RemoteValue
	Exception *ExceptionResult
}

func toExceptionResult(realmID string, exc *runtime.ExceptionDetails, lineOffset int64) *ExceptionResult {
	if exc == nil {
		return nil
	}
	r := &ExceptionResult{
		RealmID:      realmID,
		Text:         exc.Text,
		LineNumber:   exc.LineNumber - lineOffset,
		ColumnNumber: exc.ColumnNumber,
	}
	if exc.Exception != nil {
		rv, err := Serialize("", exc.Exception, "none", nil)
		if err == nil {
			r.Exception = rv
		}
	}
	if exc.StackTrace != nil {
		r.CallFrames = exc.StackTrace.CallFrames
	}
	return r
}

// Evaluate runs expression as a top-level script (lineOffset 0).
func Evaluate(ctx context.Context, navigableID string, r *Realm, expression string, awaitPromise bool, ownership string, opts SerializationOptions) (EvaluateResult, error) {
	res, exc, err := runtime.Evaluate(expression).
		WithContextID(r.ExecutionContextID).
		WithAwaitPromise(awaitPromise).
		WithReturnByValue(false).
		WithSerializationOptions(opts.cdpOptions()).
		Do(cdp.WithExecutor(ctx, r.Session))
	if err != nil {
		return EvaluateResult{}, err
	}
	if exc != nil {
		return EvaluateResult{Success: false, Exception: toExceptionResult(r.ID, exc, 0)}, nil
	}
	rv, err := Serialize(navigableID, res, ownership, r)
	if err != nil {
		return EvaluateResult{}, err
	}
	return EvaluateResult{Success: true, Value: rv}, nil
}

// CallFunction invokes functionDeclaration with already-deserialized
// CDP CallArguments (lineOffset 1: the mediator wraps the declaration
// in one extra line before handing it to Runtime.callFunctionOn).
func CallFunction(ctx context.Context, navigableID string, r *Realm, functionDeclaration string, thisArg *runtime.CallArgument, args []*runtime.CallArgument, awaitPromise bool, ownership string, opts SerializationOptions) (EvaluateResult, error) {
	wrapped := "function(...args) { return (\n" + functionDeclaration + "\n).apply(this, args); }"
	cmd := runtime.CallFunctionOn(wrapped).
		WithExecutionContextID(r.ExecutionContextID).
		WithArguments(args).
		WithAwaitPromise(awaitPromise).
		WithReturnByValue(false).
		WithSerializationOptions(opts.cdpOptions())
	if thisArg != nil && thisArg.ObjectID != "" {
		cmd = cmd.WithObjectID(thisArg.ObjectID)
	}
	res, exc, err := cmd.Do(cdp.WithExecutor(ctx, r.Session))
	if err != nil {
		return EvaluateResult{}, err
	}
	if exc != nil {
		return EvaluateResult{Success: false, Exception: toExceptionResult(r.ID, exc, 1)}, nil
	}
	rv, err := Serialize(navigableID, res, ownership, r)
	if err != nil {
		return EvaluateResult{}, err
	}
	return EvaluateResult{Success: true, Value: rv}, nil
}

// Disown releases a handle the caller no longer needs, ignoring
// handles this realm does not own (§4.5).
func Disown(ctx context.Context, r *Realm, handle string) error {
	return r.Disown(ctx, handle)
}

// Info is script.getRealms' wire shape for one realm.
type Info struct {
	Realm             string `json:"realm"`
	Origin             string `json:"origin"`
	Type               string `json:"type"`
	BrowsingContext    string `json:"context,omitempty"`
}

// GetRealms lists realms, optionally filtered to one browsing context
// and/or realm type.
func GetRealms(s *Storage, contextID string, typ Type) []Info {
	var realms []*Realm
	if contextID != "" {
		realms = s.ForContext(contextID)
	} else {
		s.mu.RLock()
		for _, r := range s.realms {
			realms = append(realms, r)
		}
		s.mu.RUnlock()
	}
	out := make([]Info, 0, len(realms))
	for _, r := range realms {
		if typ != "" && r.Type != typ {
			continue
		}
		out = append(out, Info{Realm: r.ID, Origin: r.Origin, Type: string(r.Type), BrowsingContext: r.BrowsingContextID})
	}
	return out
}

// AddPreloadScript registers source to run via Page.addScriptToEvaluateOnNewDocument
// before every future document of the given contexts, per script.addPreloadScript.
func AddPreloadScript(ctx context.Context, sess CdpSession, source string) (page.ScriptIdentifier, error) {
	id, err := page.AddScriptToEvaluateOnNewDocument(source).Do(cdp.WithExecutor(ctx, sess))
	if err != nil {
		return "", fmt.Errorf("addPreloadScript: %w", err)
	}
	return id, nil
}

// RemovePreloadScript undoes AddPreloadScript.
func RemovePreloadScript(ctx context.Context, sess CdpSession, id page.ScriptIdentifier) error {
	return page.RemoveScriptToEvaluateOnNewDocument(id).Do(cdp.WithExecutor(ctx, sess))
}
