package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultUserAgent is sent on every request unless overridden.
const DefaultUserAgent = "MalaysiaIndicatorMonitor/1.0 (+https://github.com/iafilius/MalaysiaIndicatorMonitor)"

// maxBodyBytes caps a single download; the largest DOSM workbooks are a few MB.
const maxBodyBytes = 64 << 20

// HTTPError is returned for any response with status >= 400.
type HTTPError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %s", e.URL, e.Status)
}

// ClientOptions configures a Client. Zero values fall back to defaults.
type ClientOptions struct {
	Timeout   time.Duration // per-request total timeout including body transfer
	UserAgent string
	Token     string        // data.gov.my API token; sent as "Authorization: Token <t>"
	Interval  time.Duration // minimum spacing between requests; 0 disables throttling
	Burst     int
	HTTP      *http.Client
}

// Client performs the outbound GET/HEAD requests for every indicator.
type Client struct {
	http      *http.Client
	userAgent string
	token     string
	limiter   *rate.Limiter
}

// NewClient builds a Client from opts.
func NewClient(opts ClientOptions) *Client {
	hc := opts.HTTP
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = httpTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	var lim *rate.Limiter
	if opts.Interval > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Every(opts.Interval), burst)
	}
	return &Client{http: hc, userAgent: ua, token: strings.TrimSpace(opts.Token), limiter: lim}
}

func (c *Client) newRequest(ctx context.Context, method, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Token "+c.token)
	}
	return req, nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// do sends one request, retrying once on a transient network error.
func (c *Client) do(ctx context.Context, method, url string) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}
		req, err := c.newRequest(ctx, method, url)
		if err != nil {
			return nil, err
		}
		start := time.Now()
		resp, err := c.http.Do(req)
		if err == nil {
			Debugf("[http] %s %s -> %d in %s", method, url, resp.StatusCode, time.Since(start).Round(time.Millisecond))
			return resp, nil
		}
		lastErr = err
		if !isTransientNetErr(err) || ctx.Err() != nil {
			break
		}
		Warnf("[http] %s %s transient error, retrying once: %v", method, url, err)
	}
	return nil, lastErr
}

// Get returns the full response body; any status >= 400 is an *HTTPError.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &HTTPError{URL: url, StatusCode: resp.StatusCode, Status: resp.Status}
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body %s: %w", url, err)
	}
	if len(b) > maxBodyBytes {
		return nil, fmt.Errorf("read body %s: larger than %d bytes", url, maxBodyBytes)
	}
	return b, nil
}

// Head returns the status code of a HEAD request.
func (c *Client) Head(ctx context.Context, url string) (int, error) {
	resp, err := c.do(ctx, http.MethodHead, url)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

// isTransientNetErr returns true for common transient network errors where a single retry may succeed.
func isTransientNetErr(err error) bool {
	if err == nil {
		return false
	}
	es := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), strings.HasSuffix(es, ": eof"):
		return true
	case strings.Contains(es, "connection reset by peer"):
		return true
	case strings.Contains(es, "broken pipe"):
		return true
	case strings.Contains(es, "http2") && strings.Contains(es, "stream closed"):
		return true
	case strings.Contains(es, "temporary") || strings.Contains(es, "timeout"):
		// a hit deadline is final
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(es, "context deadline exceeded") {
			return false
		}
		return true
	default:
		return false
	}
}
