package loader

import (
	"context"
	"github.com/Borislavv/go-ash-imgcache/config"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func loaderCfg(policy config.CachePolicy) config.LoaderCfg {
	return config.LoaderCfg{
		MaxConnections:  4,
		RequestTimeout:  time.Second,
		ResourceTimeout: 2 * time.Second,
		CachePolicy:     policy,
		UserAgent:       "imgcache-test",
	}
}

// TestHTTPFetcher_Fetch_ReturnsBodyWithHints sends cache policy and user agent headers.
func TestHTTPFetcher_Fetch_ReturnsBodyWithHints(t *testing.T) {
	var cacheControl, userAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cacheControl, userAgent = r.Header.Get("Cache-Control"), r.Header.Get("User-Agent")
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	data, err := NewHTTPFetcher(loaderCfg(config.CachePolicyReturnCacheElseLoad)).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), data)
	require.Equal(t, "max-stale", cacheControl)
	require.Equal(t, "imgcache-test", userAgent)

	_, err = NewHTTPFetcher(loaderCfg(config.CachePolicyReload)).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, "no-cache", cacheControl)
}

// TestHTTPFetcher_Fetch_BadStatus maps non-2xx responses to ErrBadStatus.
func TestHTTPFetcher_Fetch_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(loaderCfg(config.CachePolicyReload)).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrBadStatus))
}

// TestHTTPFetcher_Fetch_ResourceTimeout aborts downloads slower than the resource timeout.
func TestHTTPFetcher_Fetch_ResourceTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	cfg := loaderCfg(config.CachePolicyReload)
	cfg.ResourceTimeout = 100 * time.Millisecond

	start := time.Now()
	_, err := NewHTTPFetcher(cfg).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	require.Less(t, time.Since(start), time.Second)
}

// TestHTTPFetcher_Fetch_CapsConnections never runs more downloads than MaxConnections.
func TestHTTPFetcher_Fetch_CapsConnections(t *testing.T) {
	var active, peak atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		active.Add(-1)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	cfg := loaderCfg(config.CachePolicyReload)
	cfg.MaxConnections = 2
	f := NewHTTPFetcher(cfg)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.Fetch(context.Background(), srv.URL); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	require.LessOrEqual(t, peak.Load(), int64(2))
	require.Positive(t, peak.Load())
}
