package mapper

import (
	"testing"

	"github.com/chromedp/cdproto/target"

	"github.com/webbidi/mapper/browsingcontext"
)

func newTestSessionWithTargets(t *testing.T, contexts ...string) *Session {
	t.Helper()
	s := &Session{
		bcStorage:      browsingcontext.NewStorage(),
		contextTargets: make(map[string]*CdpTarget),
	}
	for _, id := range contexts {
		s.bcStorage.Create(id, "", "", nil)
		s.contextTargets[id] = &CdpTarget{TargetID: target.ID(id)}
	}
	return s
}

func TestEmulationScopeEmptyReturnsAllTargets(t *testing.T) {
	s := newTestSessionWithTargets(t, "ctx-1", "ctx-2")
	scope := s.emulationScope(nil, nil)
	if len(scope) != 2 {
		t.Fatalf("emulationScope(nil, nil) returned %d targets, want 2", len(scope))
	}
}

func TestEmulationScopeFiltersByContext(t *testing.T) {
	s := newTestSessionWithTargets(t, "ctx-1", "ctx-2")
	scope := s.emulationScope([]string{"ctx-1"}, nil)
	if len(scope) != 1 || string(scope[0].TargetID) != "ctx-1" {
		t.Fatalf("emulationScope([ctx-1], nil) = %+v, want exactly ctx-1", scope)
	}
}

func TestEmulationScopeFiltersByUserContext(t *testing.T) {
	s := &Session{
		bcStorage:      browsingcontext.NewStorage(),
		contextTargets: make(map[string]*CdpTarget),
	}
	s.bcStorage.Create("ctx-1", "", "user-a", nil)
	s.bcStorage.Create("ctx-2", "", "user-b", nil)
	s.contextTargets["ctx-1"] = &CdpTarget{TargetID: target.ID("ctx-1")}
	s.contextTargets["ctx-2"] = &CdpTarget{TargetID: target.ID("ctx-2")}

	scope := s.emulationScope(nil, []string{"user-a"})
	if len(scope) != 1 || string(scope[0].TargetID) != "ctx-1" {
		t.Fatalf("emulationScope(nil, [user-a]) = %+v, want exactly ctx-1", scope)
	}
}

func TestScreenOrientationOverrideUsesTargetOwnViewport(t *testing.T) {
	s := newTestSessionWithTargets(t, "ctx-1")
	bc := s.bcStorage.Get("ctx-1")
	bc.Viewport = &browsingcontext.Viewport{Width: 800, Height: 600, DevicePixelRatio: 1}

	scope := s.emulationScope(nil, nil)
	tgt := scope[0]
	if tgt.settings.Viewport != nil {
		t.Fatal("precondition: target should start with no viewport override")
	}
	// Mirror cmdEmulationSetScreenOrientationOverride's fallback lookup
	// without driving CDP: a target with no viewport override picks up
	// its browsing context's recorded viewport by its own TargetID.
	if got := s.bcStorage.Get(string(tgt.TargetID)); got == nil || got.Viewport == nil {
		t.Fatal("expected to resolve the target's own recorded viewport via its TargetID")
	}
}
