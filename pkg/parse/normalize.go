package parse

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// NormalizeURL standardizes a URL for comparison and storage
// It lowercases the scheme and host, removes default ports (80 for http, 443 for https), removes trailing slashes from paths (unless root "/"), ensures empty path becomes "/", and removes fragments
// Query strings are preserved: two URLs differing only in query identify different pages
// Does not modify the input *url.URL
func NormalizeURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	// Work on a copy
	normalized := *u

	normalized.Scheme = strings.ToLower(normalized.Scheme)
	normalized.Host = strings.ToLower(normalized.Host)

	// Remove default ports
	host, port, err := net.SplitHostPort(normalized.Host)
	if err == nil { // Host included a port
		if (normalized.Scheme == "http" && port == "80") ||
			(normalized.Scheme == "https" && port == "443") {
			normalized.Host = host // Use hostname without default port
		}
	} // If no port or error, Host remains unchanged

	// Handle path normalization: strip all trailing slashes so repeated
	// normalization is a no-op, then restore "/" for the root
	normalized.Path = strings.TrimRight(normalized.Path, "/")
	if normalized.Path == "" {
		normalized.Path = "/"
	}

	normalized.Fragment = "" // Remove fragment

	return normalized.String()
}

// ParseAndNormalize parses a URL string, requiring a scheme, and normalizes it using NormalizeURL
// Returns the normalized string, the parsed URL object, and any parse error
func ParseAndNormalize(urlStr string) (string, *url.URL, error) {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return "", nil, err
	}
	if parsed.Scheme == "" {
		return "", nil, fmt.Errorf("missing scheme in URL %q", urlStr)
	}
	normalizedStr := NormalizeURL(parsed)
	return normalizedStr, parsed, nil
}
