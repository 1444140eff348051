package mapper

import (
	"testing"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/target"
)

func TestTargetForClientWindowPrefersExactMatch(t *testing.T) {
	s := &Session{contextTargets: map[string]*CdpTarget{
		"ctx-1": {TargetID: target.ID("ctx-1")},
		"ctx-2": {TargetID: target.ID("ctx-2")},
	}}
	got := s.targetForClientWindow("ctx-2")
	if got == nil || string(got.TargetID) != "ctx-2" {
		t.Fatalf("targetForClientWindow(ctx-2) = %+v, want the ctx-2 target", got)
	}
}

func TestTargetForClientWindowFallsBackToAnyTarget(t *testing.T) {
	s := &Session{contextTargets: map[string]*CdpTarget{
		"ctx-1": {TargetID: target.ID("ctx-1")},
	}}
	got := s.targetForClientWindow("unknown")
	if got == nil {
		t.Fatal("targetForClientWindow(unknown) = nil, want a fallback target when one is attached")
	}
}

func TestTargetForClientWindowNoTargetsReturnsNil(t *testing.T) {
	s := &Session{contextTargets: map[string]*CdpTarget{}}
	if got := s.targetForClientWindow("anything"); got != nil {
		t.Fatalf("targetForClientWindow with no attached targets = %+v, want nil", got)
	}
}

func TestWindowStatesTable(t *testing.T) {
	tests := map[string]browser.WindowState{
		"normal":     browser.WindowStateNormal,
		"minimized":  browser.WindowStateMinimized,
		"maximized":  browser.WindowStateMaximized,
		"fullscreen": browser.WindowStateFullscreen,
	}
	for name, want := range tests {
		got, ok := windowStates[name]
		if !ok {
			t.Errorf("windowStates[%q] missing", name)
			continue
		}
		if got != want {
			t.Errorf("windowStates[%q] = %v, want %v", name, got, want)
		}
	}
	if _, ok := windowStates["bogus"]; ok {
		t.Error("windowStates has an entry for an undefined state")
	}
}
