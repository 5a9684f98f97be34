package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultMaxRetries = 3
	defaultBaseWait   = 2 * time.Second

	// Shared 429 backoff: doubles per consecutive limit, capped at 15 minutes.
	maxLimitBackoff = 900 * time.Second
)

// httpClient wraps one backend's HTTP access with two rate limiters (a
// minimum inter-request interval and a sliding-window cap), bounded retries
// with exponential backoff and jitter, and a 429 backoff state shared across
// every caller using this backend — not per request.
type httpClient struct {
	name     string
	http     *http.Client
	interval *rate.Limiter
	window   *rate.Limiter
	retries  int
	baseWait time.Duration

	mu                sync.Mutex
	consecutiveLimits int
	backoffUntil      time.Time
}

func newHTTPClient(name string, minInterval time.Duration, perMinute int, retries int, baseWait time.Duration) *httpClient {
	if retries <= 0 {
		retries = defaultMaxRetries
	}
	if baseWait <= 0 {
		baseWait = defaultBaseWait
	}
	return &httpClient{
		name:     name,
		http:     &http.Client{Timeout: 10 * time.Second},
		interval: rate.NewLimiter(rate.Every(minInterval), 1),
		window:   rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute),
		retries:  retries,
		baseWait: baseWait,
	}
}

// getJSON fetches url and decodes the JSON body into out.
func (c *httpClient) getJSON(ctx context.Context, url string, out any) error {
	for attempt := 0; attempt <= c.retries; attempt++ {
		if err := c.waitForBackoff(ctx); err != nil {
			return fmt.Errorf("%s: backoff wait: %w", c.name, err)
		}
		if err := c.interval.Wait(ctx); err != nil {
			return fmt.Errorf("%s: rate limiter: %w", c.name, err)
		}
		if err := c.window.Wait(ctx); err != nil {
			return fmt.Errorf("%s: rate limiter: %w", c.name, err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if attempt == c.retries {
				return fmt.Errorf("%s: request failed after %d retries: %w", c.name, c.retries, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			c.enterLimitBackoff()
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == c.retries {
				return fmt.Errorf("%s: server error %d after %d retries", c.name, resp.StatusCode, c.retries)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("%s: client error %d: %s", c.name, resp.StatusCode, string(body))
		}

		c.resetLimitBackoff()

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("%s: decode response: %w", c.name, err)
		}
		return nil
	}
	return fmt.Errorf("%s: exhausted %d retries", c.name, c.retries)
}

// enterLimitBackoff records a 429 and pushes the shared backoff window out.
// Duration doubles with each consecutive limit and is capped at maxLimitBackoff.
func (c *httpClient) enterLimitBackoff() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.consecutiveLimits++
	backoff := time.Duration(math.Min(
		maxLimitBackoff.Seconds(),
		c.baseWait.Seconds()*math.Pow(2, float64(c.consecutiveLimits)),
	) * float64(time.Second))
	jitter := 0.8 + 0.4*rand.Float64()
	backoff = time.Duration(float64(backoff) * jitter)

	c.backoffUntil = time.Now().Add(backoff)
	slog.Warn("rate limited by backend",
		"backend", c.name,
		"consecutive", c.consecutiveLimits,
		"backoff", backoff.Round(time.Second),
	)
}

func (c *httpClient) resetLimitBackoff() {
	c.mu.Lock()
	c.consecutiveLimits = 0
	c.mu.Unlock()
}

// waitForBackoff blocks until the shared 429 backoff window has passed.
func (c *httpClient) waitForBackoff(ctx context.Context) error {
	c.mu.Lock()
	until := c.backoffUntil
	c.mu.Unlock()

	wait := time.Until(until)
	if wait <= 0 {
		return nil
	}
	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sleep waits with exponential backoff and jitter, respecting the context.
func (c *httpClient) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt)) * float64(c.baseWait))
	wait = time.Duration(float64(wait) * (0.8 + 0.4*rand.Float64()))
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
