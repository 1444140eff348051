package realm

import (
	"testing"

	"github.com/chromedp/cdproto/dom"
)

func TestParseSharedID(t *testing.T) {
	tests := []struct {
		name        string
		navigableID string
		sharedID    string
		want        dom.BackendNodeID
		wantErr     error
	}{
		{"valid", "nav-1", "nav-1_element_42", 42, nil},
		{"empty sharedId", "nav-1", "", 0, errNoSuchHandle},
		{"malformed", "nav-1", "garbage", 0, errNoSuchHandle},
		{"wrong navigable", "nav-1", "nav-2_element_42", 0, errNoSuchNode},
		{"non-numeric backend id", "nav-1", "nav-1_element_xyz", 0, errNoSuchHandle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSharedID(tt.navigableID, tt.sharedID)
			if err != tt.wantErr {
				t.Fatalf("ParseSharedID(%q, %q) error = %v, want %v", tt.navigableID, tt.sharedID, err, tt.wantErr)
			}
			if tt.wantErr == nil && got != tt.want {
				t.Errorf("ParseSharedID(%q, %q) = %v, want %v", tt.navigableID, tt.sharedID, got, tt.want)
			}
		})
	}
}

func TestParseSharedIDExportedErrorsAliasInternal(t *testing.T) {
	if ErrNoSuchNode != errNoSuchNode {
		t.Error("ErrNoSuchNode does not alias errNoSuchNode")
	}
	if ErrNoSuchHandle != errNoSuchHandle {
		t.Error("ErrNoSuchHandle does not alias errNoSuchHandle")
	}
}
