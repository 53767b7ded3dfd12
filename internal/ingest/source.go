package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jlaffaye/ftp"

	"github.com/lox/meteodaily/internal/httputil"
	"github.com/lox/meteodaily/internal/metrics"
)

// ErrNotFound is returned when the endpoint has no file for a station.
var ErrNotFound = errors.New("remote file not found")

// Source retrieves raw bulk files by endpoint path.
type Source interface {
	Fetch(ctx context.Context, path string) ([]byte, error)
}

// NewSource picks an HTTP or FTP source from the endpoint URL scheme.
func NewSource(endpoint string) (Source, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	switch u.Scheme {
	case "http", "https":
		return NewHTTPSource(endpoint, httputil.NewClient()), nil
	case "ftp":
		return NewFTPSource(u), nil
	}
	return nil, fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
}

type HTTPSource struct {
	baseURL        string
	client         *http.Client
	maxElapsedTime time.Duration
}

func NewHTTPSource(baseURL string, client *http.Client) *HTTPSource {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &HTTPSource{
		baseURL:        baseURL,
		client:         client,
		maxElapsedTime: 2 * time.Minute,
	}
}

// SetMaxElapsedTime bounds how long Fetch keeps retrying.
func (s *HTTPSource) SetMaxElapsedTime(d time.Duration) {
	s.maxElapsedTime = d
}

func (s *HTTPSource) Fetch(ctx context.Context, path string) ([]byte, error) {
	u := s.baseURL + strings.TrimPrefix(path, "/")
	granularity, _, _ := strings.Cut(path, "/")

	var body []byte
	operation := func() error {
		start := time.Now()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		resp, err := s.client.Do(req)
		if err != nil {
			metrics.RemoteFetchTotal.WithLabelValues(granularity, "error").Inc()
			return backoff.Permanent(fmt.Errorf("fetch %s: %w", path, err))
		}
		defer resp.Body.Close()
		metrics.RemoteFetchLatency.WithLabelValues(granularity).Observe(time.Since(start).Seconds())
		metrics.RemoteFetchTotal.WithLabelValues(granularity, fmt.Sprint(resp.StatusCode)).Inc()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(fmt.Errorf("fetch %s: %w", path, ErrNotFound))
		case resp.StatusCode == http.StatusTooManyRequests,
			resp.StatusCode == http.StatusForbidden,
			resp.StatusCode == http.StatusUnauthorized,
			resp.StatusCode >= 500:
			return fmt.Errorf("fetch %s: status %d", path, resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return backoff.Permanent(fmt.Errorf("fetch %s: status %d: %s", path, resp.StatusCode, string(b)))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("read body: %w", err))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = s.maxElapsedTime
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return body, nil
}

// FTPSource reads bulk files from an FTP mirror of the endpoint.
type FTPSource struct {
	addr     string
	root     string
	user     string
	password string
}

func NewFTPSource(u *url.URL) *FTPSource {
	addr := u.Host
	if u.Port() == "" {
		addr += ":21"
	}
	s := &FTPSource{
		addr:     addr,
		root:     strings.TrimSuffix(u.Path, "/"),
		user:     "anonymous",
		password: "anonymous",
	}
	if u.User != nil {
		s.user = u.User.Username()
		if p, ok := u.User.Password(); ok {
			s.password = p
		}
	}
	return s
}

func (s *FTPSource) Fetch(ctx context.Context, path string) ([]byte, error) {
	granularity, _, _ := strings.Cut(path, "/")
	start := time.Now()

	conn, err := ftp.Dial(s.addr, ftp.DialWithTimeout(30*time.Second), ftp.DialWithContext(ctx))
	if err != nil {
		metrics.RemoteFetchTotal.WithLabelValues(granularity, "error").Inc()
		return nil, fmt.Errorf("ftp dial: %w", err)
	}
	defer conn.Quit()

	if err := conn.Login(s.user, s.password); err != nil {
		metrics.RemoteFetchTotal.WithLabelValues(granularity, "error").Inc()
		return nil, fmt.Errorf("ftp login: %w", err)
	}

	resp, err := conn.Retr(s.root + "/" + strings.TrimPrefix(path, "/"))
	if err != nil {
		err = retrError(path, err)
		if errors.Is(err, ErrNotFound) {
			metrics.RemoteFetchTotal.WithLabelValues(granularity, "not_found").Inc()
		} else {
			metrics.RemoteFetchTotal.WithLabelValues(granularity, "error").Inc()
		}
		return nil, err
	}
	defer resp.Close()

	body, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	metrics.RemoteFetchLatency.WithLabelValues(granularity).Observe(time.Since(start).Seconds())
	metrics.RemoteFetchTotal.WithLabelValues(granularity, "ok").Inc()
	return body, nil
}

// retrError maps a RETR failure. Only a 550 reply (file unavailable) means
// the station has no file; anything else is a transfer failure.
func retrError(path string, err error) error {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) && tpErr.Code == ftp.StatusFileUnavailable {
		return fmt.Errorf("ftp retr %s: %w: %v", path, ErrNotFound, err)
	}
	return fmt.Errorf("ftp retr %s: %w", path, err)
}
