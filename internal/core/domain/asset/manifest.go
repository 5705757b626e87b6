package asset

import (
	"net/url"
	"path"
	"strings"
)

// Manifest is the build-time list of URLs that must be cached on install.
type Manifest []string

// DefaultFallbackPath is served when both the cache and the network fail.
const DefaultFallbackPath = "./index.html"

// DefaultManifest lists the wheel widget assets.
func DefaultManifest() Manifest {
	return Manifest{
		"./",
		"./index.html",
		"./style.css",
		"./app.js",
		"./manifest.json",
		"./icon-192.png",
		"./icon-512.png",
		"./tick.wav",
		"./celebration.wav",
	}
}

// ParseManifest splits a comma separated list, dropping blanks.
func ParseManifest(raw string) Manifest {
	var m Manifest
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			m = append(m, p)
		}
	}
	return m
}

// Requests resolves every manifest URL against scope and returns GET requests.
func (m Manifest) Requests(scope string) []*Request {
	out := make([]*Request, 0, len(m))
	for _, u := range m {
		out = append(out, NewRequest(ResolveInScope(scope, u)))
	}
	return out
}

// ResolveInScope resolves a manifest-relative URL against the scope path.
func ResolveInScope(scope, rawURL string) string {
	base := &url.URL{Path: normalizeScope(scope)}
	ref, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return base.ResolveReference(ref).RequestURI()
}

// InScope reports whether key lies under scope.
func InScope(scope, key string) bool {
	return strings.HasPrefix(key, normalizeScope(scope))
}

func normalizeScope(scope string) string {
	if scope == "" {
		return "/"
	}
	s := path.Clean("/" + strings.TrimPrefix(scope, "./"))
	if !strings.HasSuffix(s, "/") {
		s += "/"
	}
	return s
}
