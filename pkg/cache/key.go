package cache

import "net/url"

// Key builds the deterministic cache key for a request: the path plus the
// serialized query. url.Values.Encode sorts parameters by name, so requests
// that differ only in parameter order share a key.
func Key(path string, query url.Values) string {
	if len(query) == 0 {
		return path
	}
	return path + "?" + query.Encode()
}
