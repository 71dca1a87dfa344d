package httpx

import (
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	DefaultTimeout   = 25 * time.Second
	DefaultRetryMax  = 6
	DefaultBaseDelay = 1500 * time.Millisecond
	maxRetryDelay    = 60 * time.Second
)

// StatusError is returned by CheckStatus for non-2xx responses.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %d for %s", e.StatusCode, e.URL)
}

func IsRateLimited(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusTooManyRequests
}

func CheckStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	u := ""
	if resp.Request != nil && resp.Request.URL != nil {
		u = redactKey(resp.Request.URL)
	}
	return &StatusError{StatusCode: resp.StatusCode, URL: u}
}

func IsRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// Transport adds a browser User-Agent and bounded retries with exponential
// backoff. Only GET/HEAD requests without a body are retried.
type Transport struct {
	Base      http.RoundTripper
	RetryMax  int
	BaseDelay time.Duration

	ua    *uaPool
	sleep func(time.Duration, <-chan struct{}) bool
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	canRetry := (req.Method == http.MethodGet || req.Method == http.MethodHead) && req.Body == nil
	maxRetries := t.RetryMax
	if maxRetries < 0 || !canRetry {
		maxRetries = 0
	}
	delay := t.BaseDelay
	if delay <= 0 {
		delay = DefaultBaseDelay
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		r := req.Clone(req.Context())
		t.applyDefaults(r)

		resp, err := base.RoundTrip(r)
		if err == nil && !IsRetryableStatus(resp.StatusCode) {
			return resp, nil
		}
		if attempt >= maxRetries {
			return resp, err
		}
		if req.Context().Err() != nil {
			if resp != nil {
				return resp, err
			}
			return nil, req.Context().Err()
		}

		wait := delay
		if err != nil {
			lastErr = err
		} else {
			lastErr = &StatusError{StatusCode: resp.StatusCode, URL: redactKey(req.URL)}
			if ra := retryAfter(resp); ra > 0 {
				wait = ra
			}
			drainAndClose(resp)
		}
		if !t.wait(wait, req.Context().Done()) {
			return nil, fmt.Errorf("retry interrupted: %w", errors.Join(req.Context().Err(), lastErr))
		}
		delay *= 2
		if delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
}

func (t *Transport) applyDefaults(r *http.Request) {
	if r.Header.Get("User-Agent") == "" {
		pool := t.ua
		if pool == nil {
			pool = globalUA
		}
		r.Header.Set("User-Agent", pool.random())
	}
	if r.Header.Get("Accept-Language") == "" {
		r.Header.Set("Accept-Language", "en-US,en;q=0.9")
	}
	if r.Header.Get("Referer") == "" && isYouTubeHost(r.URL) {
		r.Header.Set("Referer", "https://www.youtube.com/")
	}
}

func (t *Transport) wait(d time.Duration, done <-chan struct{}) bool {
	if t.sleep != nil {
		return t.sleep(d, done)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-done:
		return false
	}
}

type Options struct {
	Timeout   time.Duration
	RetryMax  int
	BaseDelay time.Duration
	Jar       http.CookieJar
	ProxyURL  string
}

func NewClient(opts Options) (*http.Client, error) {
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.TLSHandshakeTimeout = 10 * time.Second
	base.ResponseHeaderTimeout = 20 * time.Second
	if p := strings.TrimSpace(opts.ProxyURL); p != "" {
		u, err := url.Parse(p)
		if err != nil {
			return nil, fmt.Errorf("parse proxy URL: %w", err)
		}
		base.Proxy = http.ProxyURL(u)
	}

	retryMax := opts.RetryMax
	if retryMax == 0 {
		retryMax = DefaultRetryMax
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Transport: &Transport{
			Base:      base,
			RetryMax:  retryMax,
			BaseDelay: opts.BaseDelay,
			ua:        globalUA,
		},
		Jar:     opts.Jar,
		Timeout: timeout,
	}, nil
}

// NewCookieClient builds a client whose jar is loaded from a Netscape
// cookies.txt file. An empty path yields a client without cookies.
func NewCookieClient(cookiesPath string, opts Options) (*http.Client, error) {
	if strings.TrimSpace(cookiesPath) != "" {
		jar, err := LoadCookieJar(cookiesPath)
		if err != nil {
			return nil, err
		}
		opts.Jar = jar
	} else if opts.Jar == nil {
		jar, _ := cookiejar.New(nil)
		opts.Jar = jar
	}
	return NewClient(opts)
}

func retryAfter(resp *http.Response) time.Duration {
	v := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	d := time.Duration(secs) * time.Second
	if d > maxRetryDelay {
		d = maxRetryDelay
	}
	return d
}

func drainAndClose(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	buf := make([]byte, 4096)
	for i := 0; i < 16; i++ {
		if _, err := resp.Body.Read(buf); err != nil {
			break
		}
	}
	_ = resp.Body.Close()
}

func isYouTubeHost(u *url.URL) bool {
	if u == nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == "youtube.com" || strings.HasSuffix(host, ".youtube.com")
}

func redactKey(u *url.URL) string {
	if u == nil {
		return ""
	}
	c := *u
	q := c.Query()
	if q.Has("key") {
		q.Set("key", "REDACTED")
		c.RawQuery = q.Encode()
	}
	return c.String()
}

type uaPool struct {
	mu  sync.Mutex
	rnd *rand.Rand
	uas []string
}

func (p *uaPool) random() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.uas[p.rnd.Intn(len(p.uas))]
}

var globalUA = newUAPool()

func newUAPool() *uaPool {
	uas := []string{
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	}
	return &uaPool{
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
		uas: uas,
	}
}
