package knowledge

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases", "What Are Your Hours?", "what are your hours?"},
		{"trims surrounding whitespace", "  hours?  ", "hours?"},
		{"collapses internal whitespace", "do\tyou   take\nwalk-ins?", "do you take walk-ins?"},
		{"keeps punctuation", "Open Sunday?!", "open sunday?!"},
		{"blank becomes empty", " \t ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	q := "  Do  YOU accept   Cards? "
	once := Normalize(q)
	if twice := Normalize(once); twice != once {
		t.Errorf("Normalize not idempotent: %q then %q", once, twice)
	}
}

func TestValidateEntry(t *testing.T) {
	if err := ValidateEntry(EntryContext{Question: "Hours?", Answer: "9 to 5"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateEntry(EntryContext{Question: "  ", Answer: "9 to 5"}); err == nil {
		t.Error("expected error for blank question")
	}
	if err := ValidateEntry(EntryContext{Question: "Hours?", Answer: " "}); err == nil {
		t.Error("expected error for blank answer")
	}
}
