package subject

import "testing"

func TestFromRequestCustomNameWins(t *testing.T) {
	tests := []struct {
		name     string
		id       int64
		custom   string
		wantID   int64
		wantName string
		wantZero bool
	}{
		{name: "id only", id: 4, wantID: 4},
		{name: "custom only", custom: " Physics ", wantName: "Physics"},
		{name: "both prefers custom", id: 4, custom: "Chemistry", wantName: "Chemistry"},
		{name: "blank custom falls back to id", id: 9, custom: "   ", wantID: 9},
		{name: "nothing", wantZero: true},
		{name: "negative id", id: -1, wantZero: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ref := FromRequest(tc.id, tc.custom)
			if ref.IsZero() != tc.wantZero {
				t.Fatalf("IsZero=%v, want %v", ref.IsZero(), tc.wantZero)
			}
			if tc.wantZero {
				return
			}
			if tc.wantName != "" {
				name, ok := ref.Name()
				if !ok || name != tc.wantName {
					t.Fatalf("Name()=(%q,%v), want %q", name, ok, tc.wantName)
				}
				if _, ok := ref.ID(); ok {
					t.Fatalf("named ref must not report an id")
				}
				return
			}
			id, ok := ref.ID()
			if !ok || id != tc.wantID {
				t.Fatalf("ID()=(%d,%v), want %d", id, ok, tc.wantID)
			}
		})
	}
}

func TestNormalizeNameNFC(t *testing.T) {
	decomposed := "Qui\u0301mica"
	composed := "Qu\u00edmica"
	if NormalizeName("  "+decomposed+" ") != composed {
		t.Fatalf("expected decomposed name to normalise to %q, got %q", composed, NormalizeName(decomposed))
	}
}

func TestRefString(t *testing.T) {
	if got := Existing(3).String(); got != "id:3" {
		t.Fatalf("unexpected string %q", got)
	}
	if got := NewByName("Math").String(); got != "name:Math" {
		t.Fatalf("unexpected string %q", got)
	}
	if got := (Ref{}).String(); got != "unset" {
		t.Fatalf("unexpected string %q", got)
	}
}
