package kb

import (
	"testing"

	"github.com/chromedp/cdproto/input"
)

func TestIsModifier(t *testing.T) {
	tests := []struct {
		name string
		r    rune
		want bool
	}{
		{"shift", keyShift, true},
		{"control", keyControl, true},
		{"alt", keyAlt, true},
		{"meta", keyMeta, true},
		{"enter", keyEnter, false},
		{"plain letter", 'a', false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsModifier(tt.r); got != tt.want {
				t.Errorf("IsModifier(%q) = %v, want %v", tt.r, got, tt.want)
			}
		})
	}
}

func TestModifierBit(t *testing.T) {
	tests := []struct {
		name string
		r    rune
		want input.Modifier
	}{
		{"shift", keyShift, input.ModifierShift},
		{"control", keyControl, input.ModifierCtrl},
		{"alt", keyAlt, input.ModifierAlt},
		{"meta", keyMeta, input.ModifierMeta},
		{"non-modifier", 'x', 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ModifierBit(tt.r); got != tt.want {
				t.Errorf("ModifierBit(%q) = %v, want %v", tt.r, got, tt.want)
			}
		})
	}
}

func TestEncodeLowercaseLetter(t *testing.T) {
	events := Encode('a')
	if len(events) != 3 {
		t.Fatalf("Encode('a') returned %d events, want 3 (down, char, up)", len(events))
	}
	if events[0].Type != input.KeyDown || events[2].Type != input.KeyUp {
		t.Errorf("Encode('a') event types = %v, %v; want KeyDown, KeyUp", events[0].Type, events[2].Type)
	}
	if events[1].Type != input.KeyChar || events[1].Text != "a" {
		t.Errorf("Encode('a') char event = %+v, want Text \"a\"", events[1])
	}
	if events[0].Code != "KeyA" {
		t.Errorf("Encode('a') code = %q, want KeyA", events[0].Code)
	}
}

func TestEncodeUppercaseLetterCarriesShift(t *testing.T) {
	events := Encode('A')
	if len(events) != 3 {
		t.Fatalf("Encode('A') returned %d events, want 3", len(events))
	}
	if events[0].Modifiers&input.ModifierShift == 0 {
		t.Errorf("Encode('A') keyDown.Modifiers = %v, want ModifierShift set", events[0].Modifiers)
	}
}

func TestEncodeNamedKeyHasNoCharEvent(t *testing.T) {
	events := Encode(keyArrowLeft)
	if len(events) != 2 {
		t.Fatalf("Encode(ArrowLeft) returned %d events, want 2 (down, up)", len(events))
	}
	if events[0].Key != "ArrowLeft" || events[1].Key != "ArrowLeft" {
		t.Errorf("Encode(ArrowLeft) key names = %q, %q, want ArrowLeft", events[0].Key, events[1].Key)
	}
}

func TestEncodeNewlineAliasesCarriageReturn(t *testing.T) {
	nl := Encode('\n')
	cr := Encode('\r')
	if len(nl) != len(cr) {
		t.Fatalf("Encode('\\n') and Encode('\\r') returned different event counts: %d vs %d", len(nl), len(cr))
	}
	for i := range nl {
		if nl[i].Key != cr[i].Key || nl[i].Code != cr[i].Code {
			t.Errorf("event %d differs between \\n and \\r: %+v vs %+v", i, nl[i], cr[i])
		}
	}
}

func TestEncodeUnidentifiedFallsBackForUnknownRune(t *testing.T) {
	// A rune with no table entry and no printable representation.
	events := EncodeUnidentified('')
	if len(events) != 2 {
		t.Fatalf("EncodeUnidentified(unprintable) returned %d events, want 2", len(events))
	}
	if events[0].Key != "Unidentified" {
		t.Errorf("EncodeUnidentified key = %q, want Unidentified", events[0].Key)
	}
}

func TestDigitsAndPunctuationPopulated(t *testing.T) {
	for r := '0'; r <= '9'; r++ {
		if _, ok := Keys[r]; !ok {
			t.Errorf("Keys missing digit %q", r)
		}
	}
	for _, r := range []rune{'-', '=', '[', ']', '\\', ';', '\'', '`', ',', '.', '/'} {
		if _, ok := Keys[r]; !ok {
			t.Errorf("Keys missing punctuation %q", r)
		}
	}
	for _, r := range []rune{'!', '@', '#', '$', '%', '^', '&', '*', '(', ')'} {
		v, ok := Keys[r]
		if !ok {
			t.Fatalf("Keys missing shifted punctuation %q", r)
		}
		if !v.Shift {
			t.Errorf("Keys[%q].Shift = false, want true", r)
		}
	}
}

func TestNamedKeyValuesAreDistinct(t *testing.T) {
	seen := make(map[rune]bool)
	for r, v := range Keys {
		if r < '' || r > '' {
			continue
		}
		if seen[r] {
			t.Errorf("duplicate named key rune %U (%s)", r, v.Key)
		}
		seen[r] = true
	}
}
