package mapper

import (
	"context"
	"encoding/json"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
)

type permissionDescriptorWire struct {
	Name string `json:"name"`
}

type setPermissionParams struct {
	Descriptor permissionDescriptorWire `json:"descriptor"`
	State      string                   `json:"state"`
	Origin     string                   `json:"origin"`
	UserContext string                  `json:"userContext"`
}

// cmdPermissionsSetPermission implements permissions.setPermission,
// translating a BiDi origin+state pair to Browser.setPermission
// scoped to a user context's CDP browser-context id, the way
// browser.createUserContext already maps BiDi user contexts onto CDP
// browser contexts.
func (s *Session) cmdPermissionsSetPermission(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p setPermissionParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	setting := browser.PermissionSetting(p.State)
	cmd := browser.SetPermission(browser.PermissionDescriptor{Name: p.Descriptor.Name}, setting).WithOrigin(p.Origin)
	if p.UserContext != "" && p.UserContext != "default" {
		uc := s.getUserContext(p.UserContext)
		if uc == nil {
			return nil, NewError(ErrorCodeNoSuchUserContext, "no such user context: "+p.UserContext)
		}
		cmd = cmd.WithBrowserContextID(browser.BrowserContextID(uc.BrowserContextID))
	}
	if err := cmd.Do(cdp.WithExecutor(ctx, s.client)); err != nil {
		return nil, NewError(ErrorCodeUnknownError, err.Error())
	}
	return map[string]interface{}{}, nil
}
