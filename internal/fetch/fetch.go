// Package fetch retrieves candidate job pages over HTTP with per-request
// timeouts, bounded retries and an optional conditional-GET cache.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hyperifyio/jobcrawler/internal/cache"
)

// DefaultMaxBytes bounds how much of a page body is read.
const DefaultMaxBytes = 5 << 20

// StatusError is returned for a non-2xx, non-304 response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	if e.Code >= 500 {
		return fmt.Sprintf("server error: %d", e.Code)
	}
	return fmt.Sprintf("unexpected status: %d", e.Code)
}

// Client wraps http.Client and provides timeouts and limited retry on transient errors.
type Client struct {
	HTTPClient *http.Client
	UserAgent  string
	// MaxAttempts includes the initial attempt. Minimum 1.
	MaxAttempts int
	// PerRequestTimeout bounds each request.
	PerRequestTimeout time.Duration
	// RetryDelay is multiplied by the attempt number between tries. Zero means 200ms.
	RetryDelay time.Duration
	// MaxBytes caps the body size read per page. Zero means DefaultMaxBytes.
	MaxBytes int64
	// Optional on-disk cache for HTTP GET bodies and headers.
	Cache *cache.HTTPCache
	// If true, skip conditional headers and fetch fresh, but still save the
	// latest response to cache.
	BypassCache bool
	// RedirectMaxHops caps redirect following. Zero means 5.
	RedirectMaxHops int
}

func (c *Client) getHTTPClient() *http.Client {
	if c.HTTPClient != nil {
		// Clone to attach our redirect policy without mutating caller's client
		base := *c.HTTPClient
		base.CheckRedirect = c.checkRedirectFunc()
		return &base
	}
	return &http.Client{Timeout: c.PerRequestTimeout, CheckRedirect: c.checkRedirectFunc()}
}

// Get issues a GET with context, user-agent, and bounded retry for transient
// errors. It returns the body and its content type.
func (c *Client) Get(ctx context.Context, url string) ([]byte, string, error) {
	var etag, lastMod string
	if c.Cache != nil && !c.BypassCache {
		if meta, err := c.Cache.LoadMeta(ctx, url); err == nil && meta != nil {
			etag = meta.ETag
			lastMod = meta.LastModified
		}
	}
	attempts := c.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := c.RetryDelay
	if delay <= 0 {
		delay = 200 * time.Millisecond
	}
	var lastErr error
	refetched := false
	for i := 0; i < attempts; i++ {
		res, err := c.tryOnce(ctx, url, etag, lastMod)
		if err == nil {
			if res.status == http.StatusNotModified && c.Cache != nil {
				if cached, cerr := c.Cache.LoadBody(ctx, url); cerr == nil {
					ct := res.contentType
					if meta, merr := c.Cache.LoadMeta(ctx, url); merr == nil && ct == "" {
						ct = meta.ContentType
					}
					return cached, ct, nil
				}
				if refetched {
					return nil, "", fmt.Errorf("cached body missing for %s", url)
				}
				// Cache lost its body; refetch unconditionally.
				refetched = true
				etag, lastMod = "", ""
				i--
				continue
			}
			if c.Cache != nil && res.status == http.StatusOK {
				_ = c.Cache.Save(ctx, url, res.contentType, res.etag, res.lastModified, res.body)
			}
			return res.body, res.contentType, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		if !isTransient(err) || i == attempts-1 {
			return nil, "", err
		}
		if err := sleepCtx(ctx, time.Duration(i+1)*delay); err != nil {
			return nil, "", err
		}
	}
	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return nil, "", lastErr
}

type response struct {
	body         []byte
	contentType  string
	etag         string
	lastModified string
	status       int
}

func (c *Client) tryOnce(ctx context.Context, rawURL string, etag string, lastMod string) (response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return response{}, fmt.Errorf("new request: %w", err)
	}
	if !isHTTPScheme(req.URL) {
		return response{}, fmt.Errorf("unsupported URL scheme: %q", req.URL.String())
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastMod != "" {
		req.Header.Set("If-Modified-Since", lastMod)
	}

	httpClient := c.getHTTPClient()
	if c.PerRequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(req.Context(), c.PerRequestTimeout)
		defer cancel()
		req = req.WithContext(ctx)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return response{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return response{
			contentType:  resp.Header.Get("Content-Type"),
			etag:         resp.Header.Get("ETag"),
			lastModified: resp.Header.Get("Last-Modified"),
			status:       resp.StatusCode,
		}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return response{status: resp.StatusCode}, &StatusError{Code: resp.StatusCode}
	}

	contentType := resp.Header.Get("Content-Type")
	if !isAllowedHTMLContentType(contentType) {
		return response{status: resp.StatusCode}, fmt.Errorf("unsupported content type: %s", contentType)
	}
	limit := c.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return response{status: resp.StatusCode}, fmt.Errorf("read body: %w", err)
	}
	return response{
		body:         b,
		contentType:  contentType,
		etag:         resp.Header.Get("ETag"),
		lastModified: resp.Header.Get("Last-Modified"),
		status:       resp.StatusCode,
	}, nil
}

// isTransient reports whether a retry may succeed: 5xx, 429, timeouts and
// network failures.
func isTransient(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == http.StatusTooManyRequests
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var oe *net.OpError
	return errors.As(err, &oe)
}

func (c *Client) checkRedirectFunc() func(req *http.Request, via []*http.Request) error {
	max := c.RedirectMaxHops
	if max <= 0 {
		max = 5
	}
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= max {
			return errors.New("too many redirects")
		}
		if !isHTTPScheme(req.URL) {
			return errors.New("redirect to unsupported scheme")
		}
		return nil
	}
}

func isHTTPScheme(u *url.URL) bool {
	if u == nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

func isAllowedHTMLContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	return strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml+xml")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
