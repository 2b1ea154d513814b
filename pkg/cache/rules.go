package cache

import (
	"net/http"
	"regexp"
	"time"
)

// Rule maps a URL pattern to the TTL its responses are cached with.
type Rule struct {
	// Pattern is matched against the request path (query excluded).
	Pattern *regexp.Regexp

	// TTL is the time-to-live for responses of matching requests.
	TTL time.Duration
}

// Rules is an ordered cacheability policy: the first matching rule governs a
// URL and at most one rule applies. Only GET requests are ever cacheable.
type Rules []Rule

// Resolve returns the TTL of the first rule matching the path, and whether
// any rule matched. Non-GET methods never match.
func (rs Rules) Resolve(method, path string) (time.Duration, bool) {
	if method != http.MethodGet {
		return 0, false
	}
	for _, r := range rs {
		if r.Pattern.MatchString(path) {
			return r.TTL, true
		}
	}
	return 0, false
}

// DefaultRules returns the cacheability policy for the storefront backend:
// read-mostly catalog and price endpoints, ordered so the listing rule cannot
// swallow item lookups.
func DefaultRules() Rules {
	return Rules{
		{Pattern: regexp.MustCompile(`^/catalog/items/?$`), TTL: 5 * time.Minute},
		{Pattern: regexp.MustCompile(`^/catalog/items/[^/]+$`), TTL: 10 * time.Minute},
		{Pattern: regexp.MustCompile(`^/prices/live$`), TTL: 2 * time.Minute},
		{Pattern: regexp.MustCompile(`^/prices/history$`), TTL: 5 * time.Minute},
	}
}
