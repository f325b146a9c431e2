// Package gateway is a resilient client for the HTTP gateway that fronts the
// messaging platform. The gateway owns the live sessions; this side only names
// them, asks it to import contacts and reads back who is registered
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"rollcall/internal/platform/config"
	perr "rollcall/internal/platform/errors"
	"rollcall/internal/platform/logger"

	"golang.org/x/time/rate"
)

const (
	baseURLDefault   = "http://127.0.0.1:8081"
	defaultTimeout   = 30 * time.Second
	defaultUA        = "rollcall"
	defaultMaxRetry  = 3
	defaultRetryBase = 500 * time.Millisecond
	defaultRPS       = 1.0
	defaultBurst     = 1
	maxBackoff       = 30 * time.Second
)

// Options configures the Client
type Options struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration

	// Per session request rate against the gateway
	RPS   float64
	Burst int

	// Retry config for transport errors, 429 and 5xx
	MaxRetries int
	RetryBase  time.Duration
}

// OptionsFromConfig reads GATEWAY_* keys
func OptionsFromConfig(c config.Conf) Options {
	return Options{
		BaseURL:    c.MayString("BASE_URL", baseURLDefault),
		Timeout:    c.MayDuration("TIMEOUT", defaultTimeout),
		RPS:        c.MayFloat64("RPS", defaultRPS),
		Burst:      c.MayInt("BURST", defaultBurst),
		MaxRetries: c.MayInt("MAX_RETRIES", defaultMaxRetry),
		RetryBase:  c.MayDuration("RETRY_BASE", defaultRetryBase),
	}
}

// Client talks to the gateway with per session rate limiting and retries
type Client struct {
	http *http.Client
	opts Options
	log  logger.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewClient creates a new Client with sane defaults
func NewClient(o Options) *Client {
	if o.BaseURL == "" {
		o.BaseURL = baseURLDefault
	}
	if o.UserAgent == "" {
		o.UserAgent = defaultUA
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.RPS <= 0 {
		o.RPS = defaultRPS
	}
	if o.Burst <= 0 {
		o.Burst = defaultBurst
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBase <= 0 {
		o.RetryBase = defaultRetryBase
	}
	return &Client{
		http:     &http.Client{Timeout: o.Timeout},
		opts:     o,
		log:      *logger.Named("gateway"),
		limiters: map[string]*rate.Limiter{},
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

func (c *Client) limiter(session string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[session]
	if !ok {
		l = rate.NewLimiter(rate.Limit(c.opts.RPS), c.opts.Burst)
		c.limiters[session] = l
	}
	return l
}

// do sends in as JSON and decodes a 2xx body into out (when non nil).
// 401 and 403 come back as authorization errors and are never retried;
// transport errors, 429 and 5xx are retried and end as transient errors
func (c *Client) do(ctx context.Context, session, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return perr.Wrapf(err, perr.ErrorCodeJSON, "gateway encode %s", path)
		}
		body = b
	}

	url := c.opts.BaseURL + path
	attempts := 0
	for {
		if err := c.limiter(session).Wait(ctx); err != nil {
			return perr.Wrapf(err, perr.ErrorCodeTransient, "gateway rate wait %s", path)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
		if err != nil {
			return perr.Wrapf(err, perr.ErrorCodeUnknown, "gateway new request failed")
		}
		req.Header.Set("User-Agent", c.opts.UserAgent)
		req.Header.Set("Accept", "application/json")
		if in != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		start := c.now()
		resp, err := c.http.Do(req)
		lat := c.now().Sub(start)

		if err != nil {
			if ctx.Err() != nil || !c.shouldRetry(attempts) {
				return perr.Wrapf(err, perr.ErrorCodeTransient, "gateway %s %s failed", method, path)
			}
			back := c.backoff(attempts)
			c.log.Warn().Err(err).Dur("retry_in", back).Int("attempt", attempts).Msg("gateway transport error retrying")
			if err := c.sleep(ctx, back); err != nil {
				return perr.Wrapf(err, perr.ErrorCodeTransient, "gateway %s %s cancelled", method, path)
			}
			attempts++
			continue
		}

		retryAfter := parseRetryAfter(resp.Header, c.now())
		c.log.Debug().
			Str("session", session).
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Int("attempt", attempts).
			Dur("latency", lat).
			Msg("gateway http response")

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return decodeBody(resp.Body, out, path)
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			msg := readTail(resp.Body)
			return perr.Authorizationf("gateway rejected session %s: %s", session, msg)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			_ = drainAndClose(resp.Body)
			if !c.shouldRetry(attempts) {
				return perr.Transientf("gateway %s %s status %d after %d attempts", method, path, resp.StatusCode, attempts+1)
			}
			wait := retryAfter
			if wait <= 0 {
				wait = c.backoff(attempts)
			}
			c.log.Warn().Int("status", resp.StatusCode).Dur("sleep", wait).Msg("gateway busy backing off")
			if err := c.sleep(ctx, wait); err != nil {
				return perr.Wrapf(err, perr.ErrorCodeTransient, "gateway %s %s cancelled", method, path)
			}
			attempts++
			continue
		case resp.StatusCode == http.StatusNotFound:
			msg := readTail(resp.Body)
			return perr.NotFoundf("gateway %s %s: %s", method, path, msg)
		default:
			msg := readTail(resp.Body)
			return perr.Newf(perr.ErrorCodeUnknown, "gateway unexpected status %d body %s", resp.StatusCode, msg)
		}
	}
}

func decodeBody(rc io.ReadCloser, out any, path string) error {
	defer func() { _ = rc.Close() }()
	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(rc, 4096))
		return nil
	}
	b, err := io.ReadAll(io.LimitReader(rc, 8<<20))
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeTransient, "gateway read %s", path)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeJSON, "gateway decode %s", path)
	}
	return nil
}

func (c *Client) backoff(attempt int) time.Duration {
	d := c.opts.RetryBase << uint(attempt)
	if d <= 0 || d > maxBackoff {
		return maxBackoff
	}
	return d
}

func (c *Client) shouldRetry(attempt int) bool {
	return attempt < c.opts.MaxRetries
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
