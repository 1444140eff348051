package mapper

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/webbidi/mapper/browsingcontext"
)

// dispatch routes one command frame to its processor. Per §9's
// REDESIGN FLAG ("dynamic dispatch by method-string belongs in a
// tagged enum + a match arm, not a map of function pointers"), the
// outer method-string lookup is necessarily a map (client input isn't
// known at compile time), but every case body below is a direct,
// statically-typed call — no closures are stored in the table itself.
func (s *Session) dispatch(ctx context.Context, frame CommandFrame) (interface{}, error) {
	switch frame.Method {
	case "session.status":
		return s.cmdSessionStatus()
	case "session.subscribe":
		return s.cmdSessionSubscribe(frame.Params, frame.ChannelTag)
	case "session.unsubscribe":
		return s.cmdSessionUnsubscribe(frame.Params)
	case "session.unsubscribeById":
		return s.cmdSessionUnsubscribeByID(frame.Params)

	case "browsingContext.getTree":
		return s.cmdBrowsingContextGetTree(frame.Params)
	case "browsingContext.create":
		return s.cmdBrowsingContextCreate(ctx, frame.Params)
	case "browsingContext.close":
		return s.cmdBrowsingContextClose(ctx, frame.Params)
	case "browsingContext.navigate":
		return s.cmdBrowsingContextNavigate(ctx, frame.Params)
	case "browsingContext.reload":
		return s.cmdBrowsingContextReload(ctx, frame.Params)
	case "browsingContext.activate":
		return s.cmdBrowsingContextActivate(ctx, frame.Params)
	case "browsingContext.traverseHistory":
		return s.cmdBrowsingContextTraverseHistory(ctx, frame.Params)
	case "browsingContext.captureScreenshot":
		return s.cmdBrowsingContextCaptureScreenshot(ctx, frame.Params)
	case "browsingContext.print":
		return s.cmdBrowsingContextPrint(ctx, frame.Params)
	case "browsingContext.setViewport":
		return s.cmdBrowsingContextSetViewport(frame.Params)
	case "browsingContext.locateNodes":
		return s.cmdBrowsingContextLocateNodes(ctx, frame.Params)
	case "browsingContext.handleUserPrompt":
		return s.cmdBrowsingContextHandleUserPrompt(ctx, frame.Params)

	case "script.evaluate":
		return s.cmdScriptEvaluate(ctx, frame.Params)
	case "script.callFunction":
		return s.cmdScriptCallFunction(ctx, frame.Params)
	case "script.disown":
		return s.cmdScriptDisown(ctx, frame.Params)
	case "script.getRealms":
		return s.cmdScriptGetRealms(frame.Params)
	case "script.addPreloadScript":
		return s.cmdScriptAddPreloadScript(ctx, frame.Params)
	case "script.removePreloadScript":
		return s.cmdScriptRemovePreloadScript(ctx, frame.Params)

	case "network.addIntercept":
		return s.cmdNetworkAddIntercept(ctx, frame.Params)
	case "network.removeIntercept":
		return s.cmdNetworkRemoveIntercept(frame.Params)
	case "network.continueRequest":
		return s.cmdNetworkContinueRequest(ctx, frame.Params)
	case "network.continueResponse":
		return s.cmdNetworkContinueResponse(ctx, frame.Params)
	case "network.continueWithAuth":
		return s.cmdNetworkContinueWithAuth(ctx, frame.Params)
	case "network.failRequest":
		return s.cmdNetworkFailRequest(ctx, frame.Params)
	case "network.provideResponse":
		return s.cmdNetworkProvideResponse(ctx, frame.Params)
	case "network.setCacheBehavior":
		return s.cmdNetworkSetCacheBehavior(ctx, frame.Params)
	case "network.addDataCollector":
		return s.cmdNetworkAddDataCollector(frame.Params)
	case "network.removeDataCollector":
		return s.cmdNetworkRemoveDataCollector(frame.Params)
	case "network.getData":
		return s.cmdNetworkGetData(frame.Params)
	case "network.disownData":
		return s.cmdNetworkDisownData(frame.Params)

	case "storage.getCookies":
		return s.cmdStorageGetCookies(ctx, frame.Params)
	case "storage.setCookie":
		return s.cmdStorageSetCookie(ctx, frame.Params)
	case "storage.deleteCookies":
		return s.cmdStorageDeleteCookies(ctx, frame.Params)

	case "input.performActions":
		return s.cmdInputPerformActions(ctx, frame.Params)
	case "input.releaseActions":
		return s.cmdInputReleaseActions(ctx, frame.Params)
	case "input.setFiles":
		return s.cmdInputSetFiles(ctx, frame.Params)

	case "permissions.setPermission":
		return s.cmdPermissionsSetPermission(ctx, frame.Params)

	case "emulation.setGeolocationOverride":
		return s.cmdEmulationSetGeolocationOverride(ctx, frame.Params)
	case "emulation.setLocaleOverride":
		return s.cmdEmulationSetLocaleOverride(ctx, frame.Params)
	case "emulation.setScreenOrientationOverride":
		return s.cmdEmulationSetScreenOrientationOverride(ctx, frame.Params)
	case "emulation.setTimezoneOverride":
		return s.cmdEmulationSetTimezoneOverride(ctx, frame.Params)

	case "browser.createUserContext":
		return s.cmdBrowserCreateUserContext(ctx, frame.Params)
	case "browser.removeUserContext":
		return s.cmdBrowserRemoveUserContext(ctx, frame.Params)
	case "browser.setClientWindowState":
		return s.cmdBrowserSetClientWindowState(ctx, frame.Params)

	case "bluetooth.simulateAdapter":
		return s.cmdBluetoothSimulateAdapter(ctx, frame.Params)

	case "webExtension.install":
		return s.cmdWebExtensionInstall(ctx, frame.Params)
	case "webExtension.uninstall":
		return s.cmdWebExtensionUninstall(ctx, frame.Params)

	case "cdp.sendCommand":
		return s.cmdCdpSendCommand(ctx, frame.Params)
	case "cdp.getSession":
		return s.cmdCdpGetSession(frame.Params)
	case "cdp.resolveRealm":
		return s.cmdCdpResolveRealm(frame.Params)

	default:
		return nil, NewError(ErrorCodeUnknownCommand, frame.Method)
	}
}

// decodeParams is the shared params-decoding step every command
// processor starts with; a malformed params object is always
// ErrorCodeInvalidArgument (§6, §7).
func decodeParams(raw json.RawMessage, out interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return NewError(ErrorCodeInvalidArgument, err.Error())
	}
	return nil
}

// requireContext resolves a browsing context by id or fails with
// ErrorCodeNoSuchFrame, the BiDi error for an absent browsing context.
func (s *Session) requireContext(contextID string) (*browsingcontext.BrowsingContext, error) {
	bc := s.bcStorage.Get(contextID)
	if bc == nil {
		return nil, NewError(ErrorCodeNoSuchFrame, fmt.Sprintf("no such context: %s", contextID))
	}
	return bc, nil
}

// requireSession resolves contextID's CdpSession or fails with
// ErrorCodeNoSuchFrame.
func (s *Session) requireSession(contextID string) (browsingcontext.CdpSession, error) {
	sess := s.sessionFor(contextID)
	if sess == nil {
		return nil, NewError(ErrorCodeNoSuchFrame, fmt.Sprintf("no such context: %s", contextID))
	}
	return sess, nil
}
