package asset

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Generation names one cache store instance. Exactly one generation is
// current at a time; all others are stale.
type Generation string

const DefaultGeneration Generation = "funwheel-v1"

func (g Generation) Validate() error {
	if strings.TrimSpace(string(g)) == "" {
		return ErrInvalidGeneration
	}
	return nil
}

func (g Generation) String() string { return string(g) }

// Request is an outgoing request intercepted by the cache manager.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   io.Reader
}

// NewRequest builds a GET request for url.
func NewRequest(rawURL string) *Request {
	return &Request{Method: http.MethodGet, URL: rawURL, Header: http.Header{}}
}

// Cacheable reports whether the request may be read from or written to a
// cache store. Only GET qualifies.
func (r *Request) Cacheable() bool {
	return r.Method == "" || r.Method == http.MethodGet
}

// Key returns the cache key of the request: the normalized path and query.
func (r *Request) Key() string {
	return NormalizeKey(r.URL)
}

// IsNavigation reports whether the request looks like a document load.
func (r *Request) IsNavigation() bool {
	if r.Header == nil {
		return false
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

// NormalizeKey resolves a relative or absolute URL to a root-relative cache key.
// "./" and "/" map to "/", "./style.css" and "style.css" map to "/style.css".
func NormalizeKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	root := &url.URL{Path: "/"}
	resolved := root.ResolveReference(&url.URL{Path: u.Path, RawQuery: u.RawQuery})
	key := resolved.Path
	if key == "" {
		key = "/"
	}
	if resolved.RawQuery != "" {
		key += "?" + resolved.RawQuery
	}
	return key
}

// Response is a network or cached response. Body can be consumed once;
// use Clone when the response must be both stored and returned.
type Response struct {
	Status int
	Header http.Header
	Body   io.ReadCloser
}

// Clone buffers the body and returns an independent copy. After Clone both r
// and the returned response are readable from the start.
func (r *Response) Clone() (*Response, error) {
	data, err := r.readAll()
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	return &Response{
		Status: r.Status,
		Header: r.Header.Clone(),
		Body:   io.NopCloser(bytes.NewReader(data)),
	}, nil
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Stored drains the body into a StoredResponse for url. The response body is
// consumed; callers that still need it must Clone first.
func (r *Response) Stored(rawURL string) (*StoredResponse, error) {
	data, err := r.readAll()
	if err != nil {
		return nil, err
	}
	return &StoredResponse{
		URL:      NormalizeKey(rawURL),
		Status:   r.Status,
		Header:   r.Header.Clone(),
		Body:     data,
		StoredAt: time.Now().UTC(),
	}, nil
}

func (r *Response) readAll() ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return data, nil
}

// StoredResponse is the persisted form of a response inside a cache store.
type StoredResponse struct {
	URL      string      `json:"url"`
	Status   int         `json:"status"`
	Header   http.Header `json:"header"`
	Body     []byte      `json:"body"`
	StoredAt time.Time   `json:"stored_at"`
}

// Response materializes a fresh readable response. Each call returns a new
// body reader over the same bytes.
func (s *StoredResponse) Response() *Response {
	return &Response{
		Status: s.Status,
		Header: s.Header.Clone(),
		Body:   io.NopCloser(bytes.NewReader(s.Body)),
	}
}

// Entry pairs a request with the response to be stored under its key.
type Entry struct {
	Request  *Request
	Response *StoredResponse
}
