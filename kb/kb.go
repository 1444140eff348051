// Package kb maps the runes and WebDriver normalised key values that
// can appear in a BiDi input.performActions key action to the DOM
// key/code/virtual-keycode triples CDP's Input.dispatchKeyEvent
// expects.
//
// This is a hand-grounded subset of what Chromium's own
// keycode_converter data (and the generator the teacher vendors at
// kb/gen.go) produces: printable ASCII plus the named keys WebDriver
// BiDi's normalised key value table enumerates, rather than the full
// generated table.
package kb

import (
	"unicode"

	"github.com/chromedp/cdproto/input"
)

// Key is one DOM key definition.
type Key struct {
	Code       string
	Key        string
	Text       string
	Unmodified string
	Native     int64
	Windows    int64
	Shift      bool
	Print      bool
}

// WebDriver's normalised key values, one rune per key in Unicode's
// private-use area, per the Actions spec's key value table.
const (
	keyUnidentified = ''
	keyCancel       = ''
	keyHelp         = ''
	keyBackspace    = ''
	keyTab          = ''
	keyClear        = ''
	keyReturn       = ''
	keyEnter        = ''
	keyShift        = ''
	keyControl      = ''
	keyAlt          = ''
	keyPause        = ''
	keyEscape       = ''
	keySpace        = ''
	keyPageUp       = ''
	keyPageDown     = ''
	keyEnd          = ''
	keyHome         = ''
	keyArrowLeft    = ''
	keyArrowUp      = ''
	keyArrowRight   = ''
	keyArrowDown    = ''
	keyInsert       = ''
	keyDelete       = ''
	keyF1           = ''
	keyF2           = ''
	keyF3           = ''
	keyF4           = ''
	keyF5           = ''
	keyF6           = ''
	keyF7           = ''
	keyF8           = ''
	keyF9           = ''
	keyF10          = ''
	keyF11          = ''
	keyF12          = ''
	keyMeta         = ''
)

// IsModifier reports whether r is one of the four modifier keys
// (Shift, Control, Alt, Meta) BiDi input sources track as "held" for
// input.releaseActions rather than as a plain keypress.
func IsModifier(r rune) bool {
	switch r {
	case keyShift, keyControl, keyAlt, keyMeta:
		return true
	}
	return false
}

// ModifierBit returns the input.Modifier bit r contributes while held,
// or 0 if r isn't a modifier key.
func ModifierBit(r rune) input.Modifier {
	switch r {
	case keyShift:
		return input.ModifierShift
	case keyControl:
		return input.ModifierCtrl
	case keyAlt:
		return input.ModifierAlt
	case keyMeta:
		return input.ModifierMeta
	}
	return 0
}

// EncodeUnidentified encodes a keyDown/char/keyUp sequence for a rune
// with no table entry.
func EncodeUnidentified(r rune) []*input.DispatchKeyEventParams {
	keyDown := input.DispatchKeyEventParams{Key: "Unidentified"}
	keyUp := keyDown
	keyDown.Type, keyUp.Type = input.KeyDown, input.KeyUp
	if unicode.IsPrint(r) {
		keyChar := keyDown
		keyChar.Type = input.KeyChar
		keyChar.Text = string(r)
		keyChar.UnmodifiedText = string(r)
		return []*input.DispatchKeyEventParams{&keyDown, &keyChar, &keyUp}
	}
	return []*input.DispatchKeyEventParams{&keyDown, &keyUp}
}

// Encode encodes a keyDown, optional char, and keyUp sequence for r,
// which is either a printable grapheme or one of WebDriver's
// normalised key values (keyEnter and friends, above).
func Encode(r rune) []*input.DispatchKeyEventParams {
	if r == '\n' {
		r = '\r'
	}
	v, ok := Keys[r]
	if !ok {
		return EncodeUnidentified(r)
	}
	keyDown := input.DispatchKeyEventParams{
		Key:                   v.Key,
		Code:                  v.Code,
		NativeVirtualKeyCode:  v.Native,
		WindowsVirtualKeyCode: v.Windows,
	}
	if v.Shift {
		keyDown.Modifiers |= input.ModifierShift
	}
	keyUp := keyDown
	keyDown.Type, keyUp.Type = input.KeyDown, input.KeyUp
	if v.Print {
		keyChar := keyDown
		keyChar.Type = input.KeyChar
		keyChar.Text = v.Text
		keyChar.UnmodifiedText = v.Unmodified
		keyChar.NativeVirtualKeyCode = int64(r)
		keyChar.WindowsVirtualKeyCode = int64(r)
		return []*input.DispatchKeyEventParams{&keyDown, &keyChar, &keyUp}
	}
	return []*input.DispatchKeyEventParams{&keyDown, &keyUp}
}

func asciiPrintable(code, key string, shift bool) *Key {
	return &Key{Code: code, Key: key, Text: key, Unmodified: key, Print: true, Shift: shift}
}

// Keys is the table of runes this mediator recognises, seeded with
// the generator's own special-cases (backspace, tab, CR) plus
// printable ASCII and WebDriver's named keys, populated below in
// init.
var Keys = map[rune]*Key{
	'\b': {Code: "Backspace", Key: "Backspace", Native: 0x08, Windows: 0x08},
	'\t': {Code: "Tab", Key: "Tab", Native: 0x09, Windows: 0x09},
	'\r': {Code: "Enter", Key: "Enter", Text: "\r", Unmodified: "\r", Native: 0x0d, Windows: 0x0d, Print: true},
	' ':  {Code: "Space", Key: " ", Text: " ", Unmodified: " ", Native: 0x20, Windows: 0x20, Print: true},

	keyUnidentified: {Key: "Unidentified"},
	keyCancel:       {Code: "Cancel", Key: "Cancel"},
	keyHelp:         {Code: "Help", Key: "Help"},
	keyBackspace:    {Code: "Backspace", Key: "Backspace", Native: 0x08, Windows: 0x08},
	keyTab:          {Code: "Tab", Key: "Tab", Native: 0x09, Windows: 0x09},
	keyClear:        {Code: "Clear", Key: "Clear"},
	keyReturn:       {Code: "Enter", Key: "Enter", Text: "\r", Unmodified: "\r", Native: 0x0d, Windows: 0x0d, Print: true},
	keyEnter:        {Code: "Enter", Key: "Enter", Text: "\r", Unmodified: "\r", Native: 0x0d, Windows: 0x0d, Print: true},
	keyShift:        {Code: "ShiftLeft", Key: "Shift", Native: 0x10, Windows: 0x10},
	keyControl:      {Code: "ControlLeft", Key: "Control", Native: 0x11, Windows: 0x11},
	keyAlt:          {Code: "AltLeft", Key: "Alt", Native: 0x12, Windows: 0x12},
	keyPause:        {Code: "Pause", Key: "Pause"},
	keyEscape:       {Code: "Escape", Key: "Escape", Native: 0x1b, Windows: 0x1b},
	keySpace:        {Code: "Space", Key: " ", Text: " ", Unmodified: " ", Native: 0x20, Windows: 0x20, Print: true},
	keyPageUp:       {Code: "PageUp", Key: "PageUp"},
	keyPageDown:     {Code: "PageDown", Key: "PageDown"},
	keyEnd:          {Code: "End", Key: "End"},
	keyHome:         {Code: "Home", Key: "Home"},
	keyArrowLeft:    {Code: "ArrowLeft", Key: "ArrowLeft"},
	keyArrowUp:      {Code: "ArrowUp", Key: "ArrowUp"},
	keyArrowRight:   {Code: "ArrowRight", Key: "ArrowRight"},
	keyArrowDown:    {Code: "ArrowDown", Key: "ArrowDown"},
	keyInsert:       {Code: "Insert", Key: "Insert"},
	keyDelete:       {Code: "Delete", Key: "Delete", Native: 0x2e, Windows: 0x2e},
	keyF1:           {Code: "F1", Key: "F1"},
	keyF2:           {Code: "F2", Key: "F2"},
	keyF3:           {Code: "F3", Key: "F3"},
	keyF4:           {Code: "F4", Key: "F4"},
	keyF5:           {Code: "F5", Key: "F5"},
	keyF6:           {Code: "F6", Key: "F6"},
	keyF7:           {Code: "F7", Key: "F7"},
	keyF8:           {Code: "F8", Key: "F8"},
	keyF9:           {Code: "F9", Key: "F9"},
	keyF10:          {Code: "F10", Key: "F10"},
	keyF11:          {Code: "F11", Key: "F11"},
	keyF12:          {Code: "F12", Key: "F12"},
	keyMeta:         {Code: "MetaLeft", Key: "Meta", Native: 0x5b, Windows: 0x5b},
}

func init() {
	for r := 'a'; r <= 'z'; r++ {
		Keys[r] = asciiPrintable("Key"+string(unicode.ToUpper(r)), string(r), false)
	}
	for r := 'A'; r <= 'Z'; r++ {
		Keys[r] = asciiPrintable("Key"+string(r), string(r), true)
	}
	for r := '0'; r <= '9'; r++ {
		Keys[r] = asciiPrintable("Digit"+string(r), string(r), false)
	}
	for r, code := range map[rune]string{
		'-': "Minus", '=': "Equal", '[': "BracketLeft", ']': "BracketRight",
		'\\': "Backslash", ';': "Semicolon", '\'': "Quote", '`': "Backquote",
		',': "Comma", '.': "Period", '/': "Slash",
	} {
		Keys[r] = asciiPrintable(code, string(r), false)
	}
	for r, code := range map[rune]string{
		'_': "Minus", '+': "Equal", '{': "BracketLeft", '}': "BracketRight",
		'|': "Backslash", ':': "Semicolon", '"': "Quote", '~': "Backquote",
		'<': "Comma", '>': "Period", '?': "Slash", '!': "Digit1", '@': "Digit2",
		'#': "Digit3", '$': "Digit4", '%': "Digit5", '^': "Digit6", '&': "Digit7",
		'*': "Digit8", '(': "Digit9", ')': "Digit0",
	} {
		Keys[r] = asciiPrintable(code, string(r), true)
	}
}
