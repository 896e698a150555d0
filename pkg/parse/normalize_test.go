package parse

import (
	"net/url"
	"testing"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercases scheme and host", "HTTP://EXAMPLE.COM/Path", "http://example.com/Path"},
		{"strips default http port", "http://example.com:80/page", "http://example.com/page"},
		{"strips default https port", "https://example.com:443/page", "https://example.com/page"},
		{"keeps non-default port", "http://example.com:8080/page", "http://example.com:8080/page"},
		{"empty path becomes root", "https://example.com", "https://example.com/"},
		{"removes trailing slash", "https://example.com/docs/", "https://example.com/docs"},
		{"keeps root slash", "https://example.com/", "https://example.com/"},
		{"removes fragment", "https://example.com/page#section", "https://example.com/page"},
		{"preserves query", "https://example.com/search?q=go&page=2", "https://example.com/search?q=go&page=2"},
		{"query differs means different URL", "https://example.com/a?x=1", "https://example.com/a?x=1"},
		{"path case preserved", "https://example.com/Docs/API", "https://example.com/Docs/API"},
		{"removes repeated trailing slashes", "https://example.com/a//", "https://example.com/a"},
		{"slash-only path becomes root", "https://example.com///", "https://example.com/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := url.Parse(tt.input)
			if err != nil {
				t.Fatalf("url.Parse(%q) failed: %v", tt.input, err)
			}
			got := NormalizeURL(u)
			if got != tt.expected {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizeURLIdempotent(t *testing.T) {
	inputs := []string{
		"HTTP://EXAMPLE.COM:80/Path/",
		"https://example.com/a//",
		"https://example.com///",
		"https://example.com/search?q=go#frag",
		"https://example.com",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			u, err := url.Parse(in)
			if err != nil {
				t.Fatalf("url.Parse(%q) failed: %v", in, err)
			}
			once := NormalizeURL(u)
			reparsed, err := url.Parse(once)
			if err != nil {
				t.Fatalf("url.Parse(%q) failed: %v", once, err)
			}
			twice := NormalizeURL(reparsed)
			if once != twice {
				t.Errorf("normalization not idempotent: first %q, second %q", once, twice)
			}
		})
	}
}

func TestNormalizeURLNil(t *testing.T) {
	if got := NormalizeURL(nil); got != "" {
		t.Errorf("NormalizeURL(nil) = %q, want empty", got)
	}
}

func TestNormalizeURLDoesNotMutateInput(t *testing.T) {
	u, _ := url.Parse("HTTP://Example.COM/docs/#frag")
	NormalizeURL(u)
	if u.Scheme != "HTTP" || u.Fragment != "frag" {
		t.Errorf("input URL was modified: %+v", u)
	}
}

func TestParseAndNormalize(t *testing.T) {
	t.Run("valid URL", func(t *testing.T) {
		norm, parsed, err := ParseAndNormalize("https://Example.com/docs/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if norm != "https://example.com/docs" {
			t.Errorf("normalized = %q, want %q", norm, "https://example.com/docs")
		}
		if parsed.Hostname() != "Example.com" {
			t.Errorf("parsed host = %q", parsed.Hostname())
		}
	})

	t.Run("missing scheme is rejected", func(t *testing.T) {
		_, _, err := ParseAndNormalize("example.com/docs")
		if err == nil {
			t.Error("expected error for scheme-less URL")
		}
	})

	t.Run("garbage is rejected", func(t *testing.T) {
		_, _, err := ParseAndNormalize("://nope")
		if err == nil {
			t.Error("expected error for malformed URL")
		}
	})
}
