// internal/models/domain.go
package models

import "strings"

// CanonicalDomain reduces a raw domain or URL to its canonical form:
// lowercase, no scheme, no www prefix, no path, no trailing slash.
// Canonicalization happens once at write time and is never re-derived.
func CanonicalDomain(raw string) string {
	d := strings.TrimSpace(strings.ToLower(raw))
	if d == "" {
		return ""
	}

	for _, scheme := range []string{"https://", "http://"} {
		d = strings.TrimPrefix(d, scheme)
	}
	d = strings.TrimPrefix(d, "www.")

	// Drop any path, query or fragment.
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}

	// Drop port.
	if i := strings.Index(d, ":"); i >= 0 {
		d = d[:i]
	}

	return strings.TrimSuffix(d, "/")
}
