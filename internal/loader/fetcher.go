package loader

import (
	"context"
	"github.com/Borislavv/go-ash-imgcache/config"
	"github.com/cockroachdb/errors"
	"golang.org/x/sync/semaphore"
	"io"
	"net"
	"net/http"
	"time"
)

// maxBodyBytes bounds a single image download.
const maxBodyBytes = 32 << 20

var (
	ErrBadStatus    = errors.New("unexpected response status")
	ErrBodyTooLarge = errors.New("response body exceeds limit")
)

// Fetcher downloads raw bytes of a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, url string) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, url string) ([]byte, error) { return f(ctx, url) }

// HTTPFetcher issues GET requests with a bounded number of simultaneous connections.
type HTTPFetcher struct {
	client       *http.Client
	sem          *semaphore.Weighted
	cacheControl string
	userAgent    string
}

func NewHTTPFetcher(cfg config.LoaderCfg) *HTTPFetcher {
	conns := cfg.MaxConnections
	if conns <= 0 {
		conns = config.DefaultMaxConnections
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          conns * 2,
		MaxConnsPerHost:       conns,
		MaxIdleConnsPerHost:   conns,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.RequestTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
		DialContext: (&net.Dialer{
			Timeout:   cfg.RequestTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &HTTPFetcher{
		client:       &http.Client{Timeout: cfg.ResourceTimeout, Transport: transport},
		sem:          semaphore.NewWeighted(int64(conns)),
		cacheControl: cacheControl(cfg.CachePolicy),
		userAgent:    cfg.UserAgent,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := f.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer f.sem.Release(1)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "build request for %s", url)
	}
	if f.cacheControl != "" {
		req.Header.Set("Cache-Control", f.cacheControl)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "get %s", url)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, errors.Wrapf(ErrBadStatus, "get %s: %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, errors.Wrapf(err, "read body of %s", url)
	}
	if len(data) > maxBodyBytes {
		return nil, errors.Wrapf(ErrBodyTooLarge, "get %s", url)
	}
	return data, nil
}

func cacheControl(policy config.CachePolicy) string {
	switch policy {
	case config.CachePolicyReload:
		return "no-cache"
	case config.CachePolicyReturnCacheElseLoad:
		return "max-stale"
	default:
		return ""
	}
}
