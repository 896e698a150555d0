package utils

import (
	"strings"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain host", "example.com", "example.com"},
		{"slashes replaced", "docs/api/v2", "docs_api_v2"},
		{"wildcards and colons replaced", `a:b*c?d`, "a_b_c_d"},
		{"consecutive underscores collapse", "a//b", "a_b"},
		{"leading and trailing underscores trimmed", "/path/", "path"},
		{"empty becomes untitled", "///", "untitled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFilename(tt.input); got != tt.expected {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSanitizeFilenameLength(t *testing.T) {
	long := strings.Repeat("a", 300)
	got := SanitizeFilename(long)
	if len(got) > 100 {
		t.Errorf("sanitized length = %d, want <= 100", len(got))
	}
}
