package network

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/avatarctic/funwheel-offline/internal/core/domain/asset"
)

// hop-by-hop headers are connection scoped and never forwarded
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

type HTTPFetcherConfig struct {
	OriginURL string
	Timeout   time.Duration
}

// HTTPFetcher forwards intercepted requests to the origin that hosts the
// application assets.
type HTTPFetcher struct {
	origin *url.URL
	client *http.Client
	logger *logrus.Logger
}

func NewHTTPFetcher(cfg *HTTPFetcherConfig, client *http.Client, logger *logrus.Logger) (*HTTPFetcher, error) {
	origin, err := url.Parse(cfg.OriginURL)
	if err != nil {
		return nil, fmt.Errorf("invalid origin url %q: %w", cfg.OriginURL, err)
	}
	if origin.Scheme == "" || origin.Host == "" {
		return nil, fmt.Errorf("origin url %q must be absolute", cfg.OriginURL)
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTPFetcher{origin: origin, client: client, logger: logger}, nil
}

// Origin returns the upstream base URL.
func (f *HTTPFetcher) Origin() string { return f.origin.String() }

func (f *HTTPFetcher) Fetch(ctx context.Context, req *asset.Request) (*asset.Response, error) {
	target := f.resolve(req.URL)
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	upstream, err := http.NewRequestWithContext(ctx, method, target, req.Body)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	upstream.Header = cloneForwardHeaders(req.Header)
	if req.Cacheable() {
		// cached bodies are replayed to every client, so they must be
		// identity encoded; the transport negotiates gzip and decodes it
		upstream.Header.Del("Accept-Encoding")
	}

	resp, err := f.client.Do(upstream)
	if err != nil {
		if f.logger != nil {
			f.logger.WithFields(logrus.Fields{"method": method, "url": target}).WithError(err).Debug("upstream request failed")
		}
		return nil, fmt.Errorf("%w: %s %s: %w", asset.ErrNetwork, method, target, err)
	}

	header := resp.Header.Clone()
	for _, h := range hopHeaders {
		header.Del(h)
	}
	return &asset.Response{Status: resp.StatusCode, Header: header, Body: resp.Body}, nil
}

// resolve maps a request URL onto the origin, keeping path and query.
func (f *HTTPFetcher) resolve(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return f.origin.String()
	}
	out := *f.origin
	out.Path = strings.TrimSuffix(f.origin.Path, "/") + "/" + strings.TrimPrefix(asset.NormalizeKey(u.Path), "/")
	out.RawQuery = u.RawQuery
	return out.String()
}

func cloneForwardHeaders(h http.Header) http.Header {
	out := h.Clone()
	if out == nil {
		out = http.Header{}
	}
	for _, name := range hopHeaders {
		out.Del(name)
	}
	return out
}
