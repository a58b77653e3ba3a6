package appshellcache

import (
	"net/http"
	"strings"
)

// Classification is the policy tag assigned to an intercepted request.
type Classification string

const (
	// NoCache marks requests to live/authoritative hosts that must
	// never be served stale.
	NoCache Classification = "no-cache"
	// Navigation marks top-level page loads.
	Navigation Classification = "navigation"
	// Asset marks every remaining GET request.
	Asset Classification = "asset"
)

// Classify assigns the request to exactly one policy tag.
// It is deterministic, has no side effects, and is total over all
// GET requests reaching it.
func (e *Engine) Classify(r *http.Request) Classification {
	host := r.URL.Host
	if host == "" {
		host = r.Host
	}
	for _, substr := range e.noCacheHosts {
		if strings.Contains(host, substr) {
			return NoCache
		}
	}
	if r.Header.Get("Sec-Fetch-Mode") == "navigate" ||
		strings.Contains(r.Header.Get("Accept"), "text/html") {
		return Navigation
	}
	return Asset
}
