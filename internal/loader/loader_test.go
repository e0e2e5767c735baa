package loader

import (
	"bytes"
	"context"
	"encoding/binary"
	"github.com/Borislavv/go-ash-imgcache/config"
	"github.com/Borislavv/go-ash-imgcache/internal/cache"
	"github.com/Borislavv/go-ash-imgcache/internal/cache/memory"
	"github.com/Borislavv/go-ash-imgcache/internal/dispatch"
	"github.com/Borislavv/go-ash-imgcache/internal/imaging"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"hash/crc32"
	"image"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const waitFor = 5 * time.Second

// fakeFetcher serves canned bytes. When release is set, fetches block until it is closed
// (or, if honorCtx is set, until the request context is done).
type fakeFetcher struct {
	mu       sync.Mutex
	bodies   map[string][]byte
	err      error
	release  chan struct{}
	honorCtx bool

	calls     atomic.Int64
	cancelled atomic.Int64
	started   chan string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{bodies: make(map[string][]byte), started: make(chan string, 64), honorCtx: true}
}

func (f *fakeFetcher) serve(url string, body []byte) *fakeFetcher {
	f.mu.Lock()
	f.bodies[url] = body
	f.mu.Unlock()
	return f
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.calls.Add(1)
	f.started <- url

	if f.release != nil {
		done := ctx.Done()
		if !f.honorCtx {
			done = nil
		}
		select {
		case <-done:
			f.cancelled.Add(1)
			return nil, ctx.Err()
		case <-f.release:
		}
	}

	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[url], nil
}

func jpegOf(t *testing.T, w, h int) []byte {
	t.Helper()
	data, err := imaging.EncodeJPEG(image.NewRGBA(image.Rect(0, 0, w, h)), 90)
	require.NoError(t, err)
	return data
}

func newTestLoader(t *testing.T, f Fetcher) (*Loader, cache.Cacher) {
	t.Helper()
	mem := memory.New(context.Background(), config.MemoryCfg{CostLimitBytes: 8 << 20, Shards: 4}, slog.Default(), nil)
	cfg := config.TransformCfg{MaxDimension: 400, CostQuality: 70, MaxPixels: config.DefaultMaxPixels}
	c := cache.NewMemoryOnly(cfg, mem, dispatch.Inline{})
	l := New(context.Background(), cfg, slog.Default(), c, f, dispatch.Inline{})
	t.Cleanup(func() { _ = l.Close() })
	return l, c
}

func receive(t *testing.T, ch <-chan image.Image) image.Image {
	t.Helper()
	select {
	case img, ok := <-ch:
		require.True(t, ok, "exactly one value precedes close")
		_, open := <-ch
		require.False(t, open, "channel is closed after the value")
		return img
	case <-time.After(waitFor):
		t.Fatal("no result delivered")
		return nil
	}
}

func awaitStarted(t *testing.T, f *fakeFetcher, url string) {
	t.Helper()
	select {
	case got := <-f.started:
		require.Equal(t, url, got)
	case <-time.After(waitFor):
		t.Fatal("fetch was not started")
	}
}

// TestLoader_MemoryHit_NoNetwork completes from memory without fetching.
func TestLoader_MemoryHit_NoNetwork(t *testing.T) {
	f := newFakeFetcher()
	l, c := newTestLoader(t, f)
	url := "https://x/a.jpg"
	c.Set(url, image.NewRGBA(image.Rect(0, 0, 10, 10)))

	img := receive(t, l.LoadImage(context.Background(), url))
	require.NotNil(t, img)
	require.Zero(t, f.calls.Load())
	require.Equal(t, int64(1), l.Metrics().MemoryHits)
}

// TestLoader_Fetch_StoresAndDelivers decodes a downloaded image and caches it.
func TestLoader_Fetch_StoresAndDelivers(t *testing.T) {
	url := "https://x/a.jpg"
	f := newFakeFetcher().serve(url, jpegOf(t, 120, 80))
	l, c := newTestLoader(t, f)

	img := receive(t, l.LoadImage(context.Background(), url))
	require.NotNil(t, img)
	require.Equal(t, 120, img.Bounds().Dx())

	_, ok := c.Get(url)
	require.True(t, ok)
	require.Equal(t, int64(1), f.calls.Load())
	require.Zero(t, l.InFlight())

	img = receive(t, l.LoadImage(context.Background(), url))
	require.NotNil(t, img)
	require.Equal(t, int64(1), f.calls.Load(), "second load is served from memory")
}

// TestLoader_DecodeFailure_IsAbsent reports absent for undecodable bytes.
func TestLoader_DecodeFailure_IsAbsent(t *testing.T) {
	url := "https://x/broken.jpg"
	f := newFakeFetcher().serve(url, []byte("<html>not an image</html>"))
	l, c := newTestLoader(t, f)

	require.Nil(t, receive(t, l.LoadImage(context.Background(), url)))
	_, ok := c.Get(url)
	require.False(t, ok)
	require.Equal(t, int64(1), l.Metrics().DecodeFailures)
}

// TestLoader_OversizedImage_IsAbsent rejects a payload whose header announces too many pixels.
func TestLoader_OversizedImage_IsAbsent(t *testing.T) {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], 20000)
	binary.BigEndian.PutUint32(ihdr[4:8], 20000)
	ihdr[8], ihdr[9] = 8, 2
	var body bytes.Buffer
	body.WriteString("\x89PNG\r\n\x1a\n")
	_ = binary.Write(&body, binary.BigEndian, uint32(len(ihdr)))
	body.WriteString("IHDR")
	body.Write(ihdr)
	_ = binary.Write(&body, binary.BigEndian, crc32.ChecksumIEEE(append([]byte("IHDR"), ihdr...)))

	url := "https://x/huge.png"
	f := newFakeFetcher().serve(url, body.Bytes())
	l, c := newTestLoader(t, f)

	require.Nil(t, receive(t, l.LoadImage(context.Background(), url)))
	_, ok := c.Get(url)
	require.False(t, ok)
	require.Equal(t, int64(1), l.Metrics().DecodeFailures)
}

// TestLoader_NetworkFailure_IsAbsent reports absent when the fetch fails.
func TestLoader_NetworkFailure_IsAbsent(t *testing.T) {
	f := newFakeFetcher()
	f.err = errors.New("connection refused")
	l, _ := newTestLoader(t, f)

	require.Nil(t, receive(t, l.LoadImage(context.Background(), "https://x/a.jpg")))
	require.Equal(t, int64(1), l.Metrics().FetchFailures)
}

// TestLoader_CancelLoad_PreventsDelivery never delivers a result of a cancelled download.
func TestLoader_CancelLoad_PreventsDelivery(t *testing.T) {
	url := "https://x/slow.jpg"
	f := newFakeFetcher().serve(url, jpegOf(t, 20, 20))
	f.release = make(chan struct{})
	f.honorCtx = false
	l, _ := newTestLoader(t, f)

	ch := l.LoadImage(context.Background(), url)
	awaitStarted(t, f, url)
	require.Equal(t, 1, l.InFlight())

	l.CancelLoad(url)
	require.Zero(t, l.InFlight())
	close(f.release)

	require.Nil(t, receive(t, ch))
	require.Equal(t, int64(1), l.Metrics().Cancelled)

	l.CancelLoad(url) // no-op
	require.Equal(t, int64(1), l.Metrics().Cancelled)
}

// TestLoader_ConcurrentLoads_Coalesce issues one fetch for simultaneous requests of a URL.
func TestLoader_ConcurrentLoads_Coalesce(t *testing.T) {
	url := "https://x/shared.jpg"
	f := newFakeFetcher().serve(url, jpegOf(t, 30, 30))
	f.release = make(chan struct{})
	l, _ := newTestLoader(t, f)

	first := l.LoadImage(context.Background(), url)
	second := l.LoadImage(context.Background(), url)
	awaitStarted(t, f, url)
	close(f.release)

	require.NotNil(t, receive(t, first))
	require.NotNil(t, receive(t, second))
	require.Equal(t, int64(1), f.calls.Load())
	require.Equal(t, int64(1), l.Metrics().Coalesced)
}

// TestLoader_LastWaiterGone_CancelsDownload cancels the network task when nobody waits.
func TestLoader_LastWaiterGone_CancelsDownload(t *testing.T) {
	url := "https://x/abandoned.jpg"
	f := newFakeFetcher().serve(url, jpegOf(t, 30, 30))
	f.release = make(chan struct{})
	defer close(f.release)
	l, _ := newTestLoader(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	ch := l.LoadImage(ctx, url)
	awaitStarted(t, f, url)

	cancel()
	require.Nil(t, receive(t, ch))
	require.Eventually(t, func() bool { return f.cancelled.Load() == 1 }, waitFor, 5*time.Millisecond)
	require.Zero(t, l.InFlight())
}

// TestLoader_CancelAll_AbsentForEveryone cancels all downloads at once.
func TestLoader_CancelAll_AbsentForEveryone(t *testing.T) {
	a, b := "https://x/a.jpg", "https://x/b.jpg"
	f := newFakeFetcher().serve(a, jpegOf(t, 8, 8)).serve(b, jpegOf(t, 8, 8))
	f.release = make(chan struct{})
	defer close(f.release)
	l, _ := newTestLoader(t, f)

	chA := l.LoadImage(context.Background(), a)
	chB := l.LoadImage(context.Background(), b)
	<-f.started
	<-f.started

	l.CancelAll()
	require.Nil(t, receive(t, chA))
	require.Nil(t, receive(t, chB))
	require.Zero(t, l.InFlight())
}

// TestLoader_Closed_IsAbsent answers absent after Close.
func TestLoader_Closed_IsAbsent(t *testing.T) {
	f := newFakeFetcher()
	l, _ := newTestLoader(t, f)
	require.NoError(t, l.Close())

	require.Nil(t, receive(t, l.LoadImage(context.Background(), "https://x/a.jpg")))
	require.Zero(t, f.calls.Load())
}

// TestLoader_CloseDuringLoads_DeliversEveryResult races loads against Close, every load still completes.
func TestLoader_CloseDuringLoads_DeliversEveryResult(t *testing.T) {
	f := newFakeFetcher()
	f.release = make(chan struct{})
	l, _ := newTestLoader(t, f)

	const n = 32
	results := make(chan (<-chan image.Image), n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results <- l.LoadImage(context.Background(), "https://x/"+strconv.Itoa(i)+".jpg")
		}(i)
	}
	require.NoError(t, l.Close())
	wg.Wait()
	close(results)

	for ch := range results {
		require.Nil(t, receive(t, ch))
	}
	require.Zero(t, l.InFlight())

	require.Nil(t, receive(t, l.LoadImage(context.Background(), "https://x/late.jpg")))
}

// TestSlot_Rebind_DiscardsStaleResult applies only the image of the currently bound URL.
func TestSlot_Rebind_DiscardsStaleResult(t *testing.T) {
	first, second := "https://x/first.jpg", "https://x/second.jpg"
	f := newFakeFetcher().serve(first, jpegOf(t, 11, 11)).serve(second, jpegOf(t, 22, 22))
	f.release = make(chan struct{})
	l, _ := newTestLoader(t, f)

	applied := make(chan image.Image, 4)
	apply := func(img image.Image) { applied <- img }

	slot := NewSlot(l)
	slot.Bind(context.Background(), first, apply)
	awaitStarted(t, f, first)
	slot.Bind(context.Background(), second, apply)
	awaitStarted(t, f, second)
	require.Equal(t, second, slot.URL())
	close(f.release)

	select {
	case img := <-applied:
		require.NotNil(t, img)
		require.Equal(t, 22, img.Bounds().Dx())
	case <-time.After(waitFor):
		t.Fatal("bound image was not applied")
	}
	require.Never(t, func() bool { return len(applied) > 0 }, 100*time.Millisecond, 10*time.Millisecond)
}

// TestSlot_Reset_DropsPendingResult applies nothing after the slot is unbound.
func TestSlot_Reset_DropsPendingResult(t *testing.T) {
	url := "https://x/a.jpg"
	f := newFakeFetcher().serve(url, jpegOf(t, 10, 10))
	f.release = make(chan struct{})
	l, _ := newTestLoader(t, f)

	var calls atomic.Int64
	slot := NewSlot(l)
	slot.Bind(context.Background(), url, func(image.Image) { calls.Add(1) })
	awaitStarted(t, f, url)

	slot.Reset()
	close(f.release)

	require.Empty(t, slot.URL())
	require.Never(t, func() bool { return calls.Load() > 0 }, 100*time.Millisecond, 10*time.Millisecond)
}
