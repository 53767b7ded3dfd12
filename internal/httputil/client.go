package httputil

import (
	"net/http"
	"time"
)

const (
	DefaultTimeout = 30 * time.Second
	UserAgent      = "meteodaily/1.0 (+https://github.com/lox/meteodaily)"
)

// NewClient returns an HTTP client with the standard timeout that identifies
// itself to the bulk endpoint.
func NewClient() *http.Client {
	return &http.Client{
		Timeout:   DefaultTimeout,
		Transport: &userAgent{base: http.DefaultTransport},
	}
}

type userAgent struct {
	base http.RoundTripper
}

func (t *userAgent) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return t.base.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	r.Header.Set("User-Agent", UserAgent)
	return t.base.RoundTrip(r)
}
