package mapper

import (
	"context"
	"encoding/json"

	"github.com/chromedp/cdproto/runtime"

	"github.com/webbidi/mapper/realm"
)

type scriptTarget struct {
	Context string `json:"context"`
	Sandbox string `json:"sandbox"`
	Realm   string `json:"realm"`
}

// resolveTargetRealm implements script's "target" union: either a bare
// realm id, or a browsing-context id (+ optional sandbox, not yet
// backed by a dedicated isolated world — resolved against the
// context's default realm).
func (s *Session) resolveTargetRealm(t scriptTarget) (*realm.Realm, string, error) {
	if t.Realm != "" {
		r := s.realmStorage.Get(t.Realm)
		if r == nil {
			return nil, "", NewError(ErrorCodeNoSuchFrame, "no such realm: "+t.Realm)
		}
		return r, r.BrowsingContextID, nil
	}
	if t.Context == "" {
		return nil, "", NewError(ErrorCodeInvalidArgument, "script target requires context or realm")
	}
	if _, err := s.requireContext(t.Context); err != nil {
		return nil, "", err
	}
	r, err := s.defaultRealm(t.Context)
	if err != nil {
		return nil, "", err
	}
	return r, t.Context, nil
}

func evaluateResultToWire(res realm.EvaluateResult) interface{} {
	if res.Success {
		return map[string]interface{}{"type": "success", "result": res.Value}
	}
	exc := res.Exception
	return map[string]interface{}{
		"type": "exception",
		"exceptionDetails": map[string]interface{}{
			"text":         exc.Text,
			"lineNumber":   exc.LineNumber,
			"columnNumber": exc.ColumnNumber,
			"exception":    exc.Exception,
			"stackTrace":   map[string]interface{}{"callFrames": exc.CallFrames},
		},
	}
}

type serializationOptionsParams struct {
	MaxDomDepth       *int64 `json:"maxDomDepth"`
	MaxObjectDepth    *int64 `json:"maxObjectDepth"`
	IncludeShadowTree string `json:"includeShadowTree"`
}

func (p serializationOptionsParams) toRealm() realm.SerializationOptions {
	return realm.SerializationOptions{
		MaxDomDepth:       p.MaxDomDepth,
		MaxObjectDepth:    p.MaxObjectDepth,
		IncludeShadowTree: p.IncludeShadowTree,
	}
}

type evaluateParams struct {
	Expression            string                     `json:"expression"`
	Target                scriptTarget               `json:"target"`
	AwaitPromise          bool                       `json:"awaitPromise"`
	ResultOwnership       string                     `json:"resultOwnership"`
	SerializationOptions  serializationOptionsParams `json:"serializationOptions"`
}

// cmdScriptEvaluate implements script.evaluate (§4.5).
func (s *Session) cmdScriptEvaluate(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p evaluateParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	r, navigableID, err := s.resolveTargetRealm(p.Target)
	if err != nil {
		return nil, err
	}
	ownership := p.ResultOwnership
	if ownership == "" {
		ownership = "none"
	}
	res, err := realm.Evaluate(ctx, navigableID, r, p.Expression, p.AwaitPromise, ownership, p.SerializationOptions.toRealm())
	if err != nil {
		if be, ok := translateCdpError(err); ok {
			return nil, be
		}
		return nil, NewError(ErrorCodeUnknownError, err.Error())
	}
	return evaluateResultToWire(res), nil
}

type callFunctionParams struct {
	FunctionDeclaration  string                     `json:"functionDeclaration"`
	Target               scriptTarget               `json:"target"`
	This                 *realm.LocalValue          `json:"this"`
	Arguments            []realm.LocalValue         `json:"arguments"`
	AwaitPromise         bool                       `json:"awaitPromise"`
	ResultOwnership      string                     `json:"resultOwnership"`
	SerializationOptions serializationOptionsParams `json:"serializationOptions"`
}

// cmdScriptCallFunction implements script.callFunction (§4.5).
func (s *Session) cmdScriptCallFunction(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p callFunctionParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	r, navigableID, err := s.resolveTargetRealm(p.Target)
	if err != nil {
		return nil, err
	}

	resolveNode := realm.DefaultResolveNode(r.Session, r.ExecutionContextID)

	var thisArg *runtime.CallArgument
	if p.This != nil {
		thisArg, err = realm.Deserialize(ctx, navigableID, r, resolveNode, *p.This)
		if err != nil {
			return nil, deserializeError(err)
		}
	}

	args := make([]*runtime.CallArgument, 0, len(p.Arguments))
	for _, lv := range p.Arguments {
		arg, err := realm.Deserialize(ctx, navigableID, r, resolveNode, lv)
		if err != nil {
			return nil, deserializeError(err)
		}
		args = append(args, arg)
	}

	ownership := p.ResultOwnership
	if ownership == "" {
		ownership = "none"
	}

	res, err := realm.CallFunction(ctx, navigableID, r, p.FunctionDeclaration, thisArg, args, p.AwaitPromise, ownership, p.SerializationOptions.toRealm())
	if err != nil {
		if be, ok := translateCdpError(err); ok {
			return nil, be
		}
		return nil, NewError(ErrorCodeUnknownError, err.Error())
	}
	return evaluateResultToWire(res), nil
}

func deserializeError(err error) error {
	switch err.Error() {
	case "no such node":
		return NewError(ErrorCodeNoSuchNode, err.Error())
	case "no such handle":
		return NewError(ErrorCodeNoSuchHandle, err.Error())
	default:
		return NewError(ErrorCodeInvalidArgument, err.Error())
	}
}

type scriptDisownParams struct {
	Target  scriptTarget `json:"target"`
	Handles []string     `json:"handles"`
}

// cmdScriptDisown implements script.disown.
func (s *Session) cmdScriptDisown(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p scriptDisownParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	r, _, err := s.resolveTargetRealm(p.Target)
	if err != nil {
		return nil, err
	}
	for _, h := range p.Handles {
		if err := realm.Disown(ctx, r, h); err != nil {
			return nil, NewError(ErrorCodeUnknownError, err.Error())
		}
	}
	return map[string]interface{}{}, nil
}

type getRealmsParams struct {
	Context string `json:"context"`
	Type    string `json:"type"`
}

// cmdScriptGetRealms implements script.getRealms.
func (s *Session) cmdScriptGetRealms(raw json.RawMessage) (interface{}, error) {
	var p getRealmsParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	infos := realm.GetRealms(s.realmStorage, p.Context, realm.Type(p.Type))
	return map[string]interface{}{"realms": infos}, nil
}

type addPreloadScriptParams struct {
	FunctionDeclaration string   `json:"functionDeclaration"`
	Sandbox              string  `json:"sandbox"`
	Contexts             []string `json:"contexts"`
	UserContexts         []string `json:"userContexts"`
}

// cmdScriptAddPreloadScript implements script.addPreloadScript (§4.5):
// the script is registered and immediately applied to every currently
// live top-level target in scope via Page.addScriptToEvaluateOnNewDocument;
// attachContext applies it to targets created afterwards.
func (s *Session) cmdScriptAddPreloadScript(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p addPreloadScriptParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	source := "(" + p.FunctionDeclaration + ")()"
	script := s.preloadStorage.Add(NewID, source, p.Sandbox, p.Contexts, p.UserContexts)

	s.targetsMu.RLock()
	targets := make(map[string]*CdpTarget, len(s.contextTargets))
	for id, t := range s.contextTargets {
		targets[id] = t
	}
	s.targetsMu.RUnlock()

	for contextID, t := range targets {
		if !preloadScriptAppliesTo(script, contextID) {
			continue
		}
		cdpID, err := realm.AddPreloadScript(ctx, t, source)
		if err != nil {
			continue
		}
		script.RecordApplied(contextID, cdpID)
	}
	return map[string]interface{}{"script": script.ID}, nil
}

func preloadScriptAppliesTo(p *realm.PreloadScript, contextID string) bool {
	if len(p.ContextIDs) == 0 {
		return true
	}
	for _, id := range p.ContextIDs {
		if id == contextID {
			return true
		}
	}
	return false
}

type removePreloadScriptParams struct {
	Script string `json:"script"`
}

// cmdScriptRemovePreloadScript implements script.removePreloadScript.
func (s *Session) cmdScriptRemovePreloadScript(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p removePreloadScriptParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	script := s.preloadStorage.Remove(p.Script)
	if script == nil {
		return nil, NewError(ErrorCodeNoSuchScript, "no such script: "+p.Script)
	}
	s.targetsMu.RLock()
	defer s.targetsMu.RUnlock()
	for contextID, cdpID := range script.Applied() {
		t := s.contextTargets[contextID]
		if t == nil {
			continue
		}
		_ = realm.RemovePreloadScript(ctx, t, cdpID)
	}
	return map[string]interface{}{}, nil
}
