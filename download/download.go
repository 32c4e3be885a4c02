// Package download retrieves model archives from HTTP(S) locations.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	slogcontext "github.com/veqryn/slog-context"
	"oras.land/oras-go/v2/registry/remote/retry"
)

var (
	// ErrConnectivity is returned when the remote could not be reached or the transfer timed out.
	ErrConnectivity = errors.New("connectivity error")
	// ErrNotFound is returned when the remote reports that the archive does not exist.
	ErrNotFound = errors.New("remote archive not found")
	// ErrMalformedURL is returned for URLs that cannot address a remote archive.
	ErrMalformedURL = errors.New("malformed url")
	// ErrStatus is returned for any other unsuccessful HTTP status.
	ErrStatus = errors.New("unexpected http status")
)

// Client fetches the content behind a URL.
// The caller must close the returned reader.
type Client interface {
	Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

// HTTPClient is the default Client. Transient failures are retried by the
// underlying transport according to the oras retry policy.
type HTTPClient struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
}

type Option func(*HTTPClient)

// WithTimeout bounds the complete transfer, including reading the body.
// Zero disables the timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *HTTPClient) {
		c.timeout = timeout
	}
}

// WithHTTPClient replaces the http.Client used for requests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *HTTPClient) {
		c.client = client
	}
}

func WithUserAgent(userAgent string) Option {
	return func(c *HTTPClient) {
		c.userAgent = userAgent
	}
}

const defaultUserAgent = "modelarchive"

func NewHTTPClient(opts ...Option) *HTTPClient {
	c := &HTTPClient{
		client:    &http.Client{Transport: retry.NewTransport(http.DefaultTransport)},
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ Client = (*HTTPClient)(nil)

// Fetch issues a GET request for rawURL and returns the response body on success.
func (c *HTTPClient) Fetch(ctx context.Context, rawURL string) (_ io.ReadCloser, err error) {
	u, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}

	cancel := context.CancelFunc(func() {})
	if c.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
	}
	defer func() {
		if err != nil {
			cancel()
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedURL, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	logger := slogcontext.FromCtx(ctx).With(slog.String("realm", "download"), slog.String("url", u.Redacted()))
	logger.Log(ctx, slog.LevelDebug, "fetching remote archive")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectivity, u.Redacted(), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain a bounded amount so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		closeErr := resp.Body.Close()
		logger.Log(ctx, slog.LevelDebug, "remote archive request failed", slog.Int("status", resp.StatusCode))
		switch resp.StatusCode {
		case http.StatusNotFound, http.StatusGone:
			return nil, errors.Join(fmt.Errorf("%w: %s: %s", ErrNotFound, u.Redacted(), resp.Status), closeErr)
		default:
			return nil, errors.Join(fmt.Errorf("%w: %s: %s", ErrStatus, u.Redacted(), resp.Status), closeErr)
		}
	}

	return &body{ReadCloser: resp.Body, cancel: cancel}, nil
}

// body releases the timeout context together with the response body.
type body struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *body) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if err != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
		err = fmt.Errorf("%w: %w", ErrConnectivity, err)
	}
	return n, err
}

func (b *body) Close() error {
	defer b.cancel()
	return b.ReadCloser.Close()
}

// ParseURL parses rawURL and checks that it addresses a remote archive:
// the scheme must be http or https and the host must be a valid host name or IP address.
func ParseURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedURL, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrMalformedURL, u.Scheme)
	}
	if err := validateHost(u.Hostname()); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedURL, rawURL, err)
	}
	if port := u.Port(); port != "" {
		if p, err := strconv.Atoi(port); err != nil || p < 1 || p > 65535 {
			return nil, fmt.Errorf("%w: invalid port %q", ErrMalformedURL, port)
		}
	}
	return u, nil
}

func validateHost(host string) error {
	if host == "" {
		return errors.New("missing host")
	}
	if net.ParseIP(host) != nil {
		return nil
	}
	if len(host) > 253 {
		return errors.New("host name too long")
	}
	for _, label := range strings.Split(strings.TrimSuffix(host, "."), ".") {
		if label == "" || len(label) > 63 {
			return fmt.Errorf("invalid host %q", host)
		}
		if label[0] == '-' || label[len(label)-1] == '-' {
			return fmt.Errorf("invalid host %q", host)
		}
		for _, r := range label {
			if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_') {
				return fmt.Errorf("invalid host %q", host)
			}
		}
	}
	return nil
}
