package mapper

import (
	"context"
	"encoding/json"
)

type extensionPathSource struct {
	Type string `json:"type"`
	Path string `json:"path"`
}

type installParams struct {
	ExtensionData extensionPathSource `json:"extensionData"`
}

// cmdWebExtensionInstall implements webExtension.install by loading an
// unpacked extension through CDP's Extensions domain on the browser
// client; browsers without that domain (older Chrome) surface
// ErrorCodeUnsupportedOperation (SPEC_FULL's webExtension module).
func (s *Session) cmdWebExtensionInstall(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p installParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if p.ExtensionData.Type != "path" {
		return nil, NewError(ErrorCodeUnsupportedOperation, "only path-based extension installs are supported")
	}
	params, _ := json.Marshal(map[string]string{"path": p.ExtensionData.Path})
	var res struct {
		ID string `json:"id"`
	}
	var raw2 rawResult
	if err := s.client.Execute(ctx, "Extensions.loadUnpacked", rawParams(params), &raw2); err != nil {
		return nil, NewError(ErrorCodeUnsupportedOperation, err.Error())
	}
	if err := json.Unmarshal(raw2.data, &res); err != nil || res.ID == "" {
		return nil, NewError(ErrorCodeUnsupportedOperation, "browser returned no extension id")
	}
	return map[string]interface{}{"extension": res.ID}, nil
}

type uninstallParams struct {
	Extension string `json:"extension"`
}

// cmdWebExtensionUninstall implements webExtension.uninstall.
func (s *Session) cmdWebExtensionUninstall(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p uninstallParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	params, _ := json.Marshal(map[string]string{"id": p.Extension})
	var res rawResult
	if err := s.client.Execute(ctx, "Extensions.uninstall", rawParams(params), &res); err != nil {
		return nil, NewError(ErrorCodeUnsupportedOperation, err.Error())
	}
	return map[string]interface{}{}, nil
}
