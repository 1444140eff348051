package mapper

import (
	"context"
	"encoding/json"
)

// emulationScope resolves the set of top-level targets an emulation.*
// override applies to: the union of explicitly named contexts and
// every top-level context belonging to a named user context, or every
// attached target when both are empty (mirrors targetsInScope's
// contexts-only case for network.addIntercept).
func (s *Session) emulationScope(contexts, userContexts []string) []*CdpTarget {
	if len(contexts) == 0 && len(userContexts) == 0 {
		return s.targetsInScope(nil)
	}
	ids := make(map[string]bool, len(contexts))
	for _, c := range contexts {
		ids[c] = true
	}
	if len(userContexts) > 0 {
		want := make(map[string]bool, len(userContexts))
		for _, u := range userContexts {
			want[u] = true
		}
		for _, top := range s.bcStorage.AllTopLevel() {
			bc := s.bcStorage.Get(top)
			if bc != nil && want[bc.UserContextID] {
				ids[top] = true
			}
		}
	}
	out := make([]string, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	return s.targetsInScope(out)
}

type emulationScopeParams struct {
	Contexts     []string `json:"contexts"`
	UserContexts []string `json:"userContexts"`
}

type setGeolocationOverrideParams struct {
	emulationScopeParams
	Coordinates *struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Accuracy  float64 `json:"accuracy"`
	} `json:"coordinates"`
}

// cmdEmulationSetGeolocationOverride implements
// emulation.setGeolocationOverride by recording the override on every
// target in scope and re-pushing its settings (§4.3).
func (s *Session) cmdEmulationSetGeolocationOverride(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p setGeolocationOverrideParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	for _, t := range s.emulationScope(p.Contexts, p.UserContexts) {
		if p.Coordinates == nil {
			t.settings.Geolocation = nil
		} else {
			t.settings.Geolocation = &GeolocationOverride{
				Latitude: p.Coordinates.Latitude, Longitude: p.Coordinates.Longitude, Accuracy: p.Coordinates.Accuracy,
			}
		}
		if err := t.applySettings(ctx); err != nil && !isCdpCloseError(err) {
			return nil, NewError(ErrorCodeUnknownError, err.Error())
		}
	}
	return map[string]interface{}{}, nil
}

type setLocaleOverrideParams struct {
	emulationScopeParams
	Locale string `json:"locale"`
}

// cmdEmulationSetLocaleOverride implements emulation.setLocaleOverride.
func (s *Session) cmdEmulationSetLocaleOverride(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p setLocaleOverrideParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	for _, t := range s.emulationScope(p.Contexts, p.UserContexts) {
		t.settings.Locale = p.Locale
		if err := t.applySettings(ctx); err != nil && !isCdpCloseError(err) {
			return nil, NewError(ErrorCodeUnknownError, err.Error())
		}
	}
	return map[string]interface{}{}, nil
}

type setScreenOrientationOverrideParams struct {
	emulationScopeParams
	ScreenOrientation *struct {
		Type  string `json:"type"`
		Angle int64  `json:"angle"`
	} `json:"screenOrientation"`
}

// cmdEmulationSetScreenOrientationOverride implements
// emulation.setScreenOrientationOverride.
func (s *Session) cmdEmulationSetScreenOrientationOverride(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p setScreenOrientationOverrideParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	scope := s.emulationScope(p.Contexts, p.UserContexts)
	for _, t := range scope {
		if p.ScreenOrientation == nil {
			t.settings.Orientation = nil
		} else {
			t.settings.Orientation = &ScreenOrientation{Type: p.ScreenOrientation.Type, Angle: p.ScreenOrientation.Angle}
		}
		// Emulation.setDeviceMetricsOverride carries orientation
		// alongside device metrics, so a viewport override must already
		// be in force (from browsingContext.setViewport) for the
		// orientation change to take effect; lacking one, only the
		// target's recorded settings change, ready for the next
		// setViewport call to apply. t.TargetID doubles as the BiDi
		// context id (attachContext keys contextTargets by the same
		// string), so the target's own viewport is looked up directly.
		if t.settings.Viewport == nil {
			if bc := s.bcStorage.Get(string(t.TargetID)); bc != nil && bc.Viewport != nil {
				t.settings.Viewport = &Viewport{Width: bc.Viewport.Width, Height: bc.Viewport.Height, DevicePixelRatio: bc.Viewport.DevicePixelRatio}
			}
		}
		if t.settings.Viewport == nil {
			continue
		}
		if err := t.applySettings(ctx); err != nil && !isCdpCloseError(err) {
			return nil, NewError(ErrorCodeUnknownError, err.Error())
		}
	}
	return map[string]interface{}{}, nil
}

type setTimezoneOverrideParams struct {
	emulationScopeParams
	Timezone string `json:"timezone"`
}

// cmdEmulationSetTimezoneOverride implements
// emulation.setTimezoneOverride.
func (s *Session) cmdEmulationSetTimezoneOverride(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p setTimezoneOverrideParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	for _, t := range s.emulationScope(p.Contexts, p.UserContexts) {
		t.settings.Timezone = p.Timezone
		if err := t.applySettings(ctx); err != nil && !isCdpCloseError(err) {
			return nil, NewError(ErrorCodeUnknownError, err.Error())
		}
	}
	return map[string]interface{}{}, nil
}
