package textutil

import "testing"

func TestValidateProjectID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"proj-42", false},
		{"Reef_2026.v2", false},
		{"", true},
		{"   ", true},
		{".hidden", true},
		{"../escape", true},
		{"a/b", true},
		{"spaces here", true},
	}
	for _, tc := range tests {
		err := ValidateProjectID(tc.id)
		if (err != nil) != tc.wantErr {
			t.Errorf("ValidateProjectID(%q) error = %v, wantErr %v", tc.id, err, tc.wantErr)
		}
	}
}

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"Coral Reefs!":      "coral-reefs",
		"  ":                "untitled",
		"--A-b--":           "a-b",
		"reef_fish 02":      "reef-fish-02",
		"Café Crème":        "caf-cr-me",
		"nested/clip.final": "nested-clip-final",
	}
	for input, want := range tests {
		if got := Slug(input); got != want {
			t.Errorf("Slug(%q) = %q, want %q", input, got, want)
		}
	}
}
