package core

import "testing"

func TestEqualFold(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"Acme", "ACME", true},
		{" acme ", "Acme", true},
		{"Straße", "STRASSE", true},
		{"Acme", "Acme Inc", false},
	}
	for _, tt := range tests {
		if got := EqualFold(tt.a, tt.b); got != tt.want {
			t.Errorf("EqualFold(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Jane@X.COM "); got != "jane@x.com" {
		t.Errorf("NormalizeEmail() = %q", got)
	}
}

func TestNormalizeHeader(t *testing.T) {
	tests := map[string]string{
		"First Name":   "first_name",
		" lead-score ": "lead_score",
		`"EMAIL"`:      "email",
	}
	for in, want := range tests {
		if got := NormalizeHeader(in); got != want {
			t.Errorf("NormalizeHeader(%q) = %q, want %q", in, got, want)
		}
	}
}
