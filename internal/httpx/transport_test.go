package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTransport(retryMax int, waits *[]time.Duration) *Transport {
	return &Transport{
		Base:      http.DefaultTransport,
		RetryMax:  retryMax,
		BaseDelay: 1500 * time.Millisecond,
		ua:        globalUA,
		sleep: func(d time.Duration, _ <-chan struct{}) bool {
			*waits = append(*waits, d)
			return true
		},
	}
}

func TestTransport_RetriesRateLimitWithExponentialBackoff(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	var waits []time.Duration
	client := &http.Client{Transport: newTestTransport(6, &waits)}
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(4), calls.Load())
	assert.Equal(t, []time.Duration{1500 * time.Millisecond, 3 * time.Second, 6 * time.Second}, waits)
}

func TestTransport_GivesUpAfterRetryMax(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	var waits []time.Duration
	client := &http.Client{Transport: newTestTransport(2, &waits)}
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
	assert.Error(t, CheckStatus(resp))
}

func TestTransport_DoesNotRetryNonRetryableOrPost(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	var waits []time.Duration
	client := &http.Client{Transport: newTestTransport(6, &waits)}

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, int32(1), calls.Load())

	resp, err = client.Post(srv.URL, "text/plain", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, int32(2), calls.Load())
	assert.Empty(t, waits)
}

func TestTransport_HonoursRetryAfter(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "4")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var waits []time.Duration
	client := &http.Client{Transport: newTestTransport(6, &waits)}
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, []time.Duration{4 * time.Second}, waits)
}

func TestTransport_StopsOnCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	tr := &Transport{Base: http.DefaultTransport, RetryMax: 6, BaseDelay: time.Hour, ua: globalUA}
	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	start := time.Now()
	_, err = tr.RoundTrip(req)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestTransport_SetsBrowserHeaders(t *testing.T) {
	var ua, lang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		lang = r.Header.Get("Accept-Language")
	}))
	defer srv.Close()

	var waits []time.Duration
	client := &http.Client{Transport: newTestTransport(0, &waits)}
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Contains(t, ua, "Mozilla/5.0")
	assert.Equal(t, "en-US,en;q=0.9", lang)
}

func TestIsRateLimited(t *testing.T) {
	assert.True(t, IsRateLimited(&StatusError{StatusCode: 429}))
	assert.False(t, IsRateLimited(&StatusError{StatusCode: 500}))
	assert.False(t, IsRateLimited(nil))
}

func TestRedactKey(t *testing.T) {
	u, _ := url.Parse("https://www.googleapis.com/youtube/v3/videos?id=a&key=secret")
	assert.NotContains(t, redactKey(u), "secret")
}

func TestLoadCookieJar(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cookies.txt")
	content := "# Netscape HTTP Cookie File\n" +
		".youtube.com\tTRUE\t/\tTRUE\t0\tPREF\tf6=40000000\n" +
		"#HttpOnly_.youtube.com\tTRUE\t/\tTRUE\t0\tSID\tabc123\n" +
		"broken line without tabs\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	jar, err := LoadCookieJar(path)
	require.NoError(t, err)

	u, _ := url.Parse("https://www.youtube.com/watch?v=x")
	names := map[string]string{}
	for _, c := range jar.Cookies(u) {
		names[c.Name] = c.Value
	}
	assert.Equal(t, "f6=40000000", names["PREF"])
	assert.Equal(t, "abc123", names["SID"])
}

func TestLoadCookieJar_MissingFile(t *testing.T) {
	_, err := LoadCookieJar(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}
