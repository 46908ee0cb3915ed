package question

import "testing"

func TestLetterFor(t *testing.T) {
	tests := map[int]string{0: "", 1: "A", 2: "B", 3: "C", 4: "D", 5: ""}
	for in, want := range tests {
		if got := LetterFor(in); got != want {
			t.Fatalf("LetterFor(%d)=%q, want %q", in, got, want)
		}
	}
}

func TestIndexForLetter(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"A", 1, true},
		{"d", 4, true},
		{" c ", 3, true},
		{"E", 0, false},
		{"AB", 0, false},
		{"", 0, false},
		{"1", 0, false},
	}
	for _, tc := range tests {
		got, ok := IndexForLetter(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("IndexForLetter(%q)=(%d,%v), want (%d,%v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestParseDifficulty(t *testing.T) {
	if d, ok := ParseDifficulty("HARD"); !ok || d != DifficultyHard {
		t.Fatalf("expected hard, got %q %v", d, ok)
	}
	if d, ok := ParseDifficulty(""); !ok || d != "" {
		t.Fatalf("expected empty difficulty to parse, got %q %v", d, ok)
	}
	if _, ok := ParseDifficulty("extreme"); ok {
		t.Fatalf("expected extreme to be rejected")
	}
	if Difficulty("").OrDefault() != DifficultyMedium {
		t.Fatalf("expected medium default")
	}
}
