package ws

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
)

var (
	originsMu sync.RWMutex
	origins   []string
)

// SetAllowedOrigins replaces the extra origins accepted besides the server's
// own. Entries are compared case-insensitively as scheme://host[:port].
func SetAllowedOrigins(list []string) {
	clean := make([]string, 0, len(list))
	for _, o := range list {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			clean = append(clean, strings.ToLower(o))
		}
	}
	originsMu.Lock()
	origins = clean
	originsMu.Unlock()
}

// OriginAllowed accepts requests without an Origin header (non-browser
// clients), same-origin requests and configured origins.
func OriginAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}

	want := strings.ToLower(u.Scheme + "://" + u.Host)
	originsMu.RLock()
	defer originsMu.RUnlock()
	for _, o := range origins {
		if o == want {
			return true
		}
	}
	return false
}
