package mapper

import (
	"testing"

	cdpinput "github.com/chromedp/cdproto/input"

	"github.com/webbidi/mapper/kb"
)

func TestInputStateGetCreatesLazily(t *testing.T) {
	st := newInputState()
	src := st.get("source-1")
	if src == nil {
		t.Fatal("get returned nil source")
	}
	if src.heldKeys == nil || src.heldButtons == nil {
		t.Error("newly created source has nil held-state maps")
	}
	if again := st.get("source-1"); again != src {
		t.Error("get returned a different source for the same id on second call")
	}
}

func TestInputStateAllReturnsSnapshot(t *testing.T) {
	st := newInputState()
	st.get("a")
	st.get("b")
	snap := st.all()
	if len(snap) != 2 {
		t.Fatalf("all() returned %d sources, want 2", len(snap))
	}
	st.get("c")
	if len(snap) != 2 {
		t.Error("all()'s snapshot was mutated by a later get()")
	}
}

func TestInputStateClearResetsSources(t *testing.T) {
	st := newInputState()
	st.get("a")
	st.clear()
	if len(st.all()) != 0 {
		t.Error("clear() did not empty the source registry")
	}
}

func TestInputStateForLazyInitializesOnSession(t *testing.T) {
	s := &Session{}
	st1 := s.inputStateFor("ctx-1")
	st2 := s.inputStateFor("ctx-1")
	if st1 != st2 {
		t.Error("inputStateFor returned different states for the same context id")
	}
	st3 := s.inputStateFor("ctx-2")
	if st3 == st1 {
		t.Error("inputStateFor returned the same state for two different context ids")
	}
}

func TestMouseButtonsMapping(t *testing.T) {
	tests := []struct {
		button int64
		want   cdpinput.ButtonType
	}{
		{0, cdpinput.ButtonLeft},
		{1, cdpinput.ButtonMiddle},
		{2, cdpinput.ButtonRight},
		{3, cdpinput.ButtonBack},
		{4, cdpinput.ButtonForward},
	}
	for _, tt := range tests {
		got, ok := mouseButtons[tt.button]
		if !ok {
			t.Errorf("mouseButtons[%d] missing", tt.button)
			continue
		}
		if got != tt.want {
			t.Errorf("mouseButtons[%d] = %v, want %v", tt.button, got, tt.want)
		}
	}
	if _, ok := mouseButtons[99]; ok {
		t.Error("mouseButtons has an entry for an undefined button code")
	}
}

func TestKeyNameForKnownAndUnknownRune(t *testing.T) {
	if got := keyNameFor('a'); got != "a" {
		t.Errorf("keyNameFor('a') = %q, want \"a\"", got)
	}
	var arrowLeft rune = -1
	for r, v := range kb.Keys {
		if v.Key == "ArrowLeft" {
			arrowLeft = r
			break
		}
	}
	if arrowLeft == -1 {
		t.Fatal("kb.Keys has no entry for ArrowLeft")
	}
	if got := keyNameFor(arrowLeft); got != "ArrowLeft" {
		t.Errorf("keyNameFor(ArrowLeft) = %q, want ArrowLeft", got)
	}
}

func TestModifiersHeldCombinesBits(t *testing.T) {
	source := &inputSource{heldKeys: map[rune]bool{}}
	if got := modifiersHeld(source); got != 0 {
		t.Errorf("modifiersHeld(no held keys) = %v, want 0", got)
	}
	var shift, control rune = -1, -1
	for r, v := range kb.Keys {
		switch v.Key {
		case "Shift":
			shift = r
		case "Control":
			control = r
		}
	}
	if shift == -1 || control == -1 {
		t.Fatal("kb.Keys has no entry for Shift or Control")
	}
	source.heldKeys[shift] = true
	source.heldKeys[control] = true
	if got, want := modifiersHeld(source), cdpinput.ModifierShift|cdpinput.ModifierCtrl; got != want {
		t.Errorf("modifiersHeld(Shift+Control) = %v, want %v", got, want)
	}
}
