package fetcher

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"canopy/internal/bridge"
	"canopy/internal/engine"
	"canopy/internal/model"
	"canopy/internal/tiling"
)

type fakeEngine struct {
	url         string
	renderErr   error
	renderCalls atomic.Int32
}

func (f *fakeEngine) Classify(ctx context.Context, boundary *geojson.Geometry, window engine.DateWindow) (*engine.Classification, error) {
	return nil, errors.New("not used in fetcher tests")
}

func (f *fakeEngine) RenderURL(ctx context.Context, raster engine.Raster, region *geojson.Geometry, spec engine.RenderSpec) (string, error) {
	f.renderCalls.Add(1)
	if f.renderErr != nil {
		return "", f.renderErr
	}
	return f.url, nil
}

func (f *fakeEngine) Histogram(ctx context.Context, raster engine.Raster, region *geojson.Geometry, spec engine.HistogramSpec) (map[model.Class]float64, error) {
	return nil, errors.New("not used in fetcher tests")
}

func testTile() tiling.Tile {
	return tiling.Tile{Index: 0, Rect: orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encoding test png: %v", err)
	}
	return buf.Bytes()
}

func newTestFetcher(t *testing.T, eng engine.Engine) *Fetcher {
	t.Helper()
	br, err := bridge.New(16)
	if err != nil {
		t.Fatalf("bridge.New: %v", err)
	}
	f := New(eng, br)
	f.RetryDelay = 10 * time.Millisecond
	return f
}

func TestFetchDecodesTileImage(t *testing.T) {
	data := pngBytes(t, 32, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(data)
	}))
	defer srv.Close()

	f := newTestFetcher(t, &fakeEngine{url: srv.URL})
	result, err := f.Fetch(context.Background(), "raster-1", testTile())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	b := result.Image.Bounds()
	if b.Dx() != 32 || b.Dy() != 16 {
		t.Errorf("decoded image is %dx%d, want 32x16", b.Dx(), b.Dy())
	}
	if result.Tile.Index != 0 {
		t.Errorf("result tile index = %d, want 0", result.Tile.Index)
	}
}

func TestFetchRetriesAndGivesUp(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := newTestFetcher(t, &fakeEngine{url: srv.URL})

	start := time.Now()
	result, err := f.Fetch(context.Background(), "raster-1", testTile())
	elapsed := time.Since(start)

	if err == nil {
		t.Fatalf("expected an error after exhausting retries, got result %v", result)
	}
	if got := hits.Load(); got != MaxAttempts {
		t.Errorf("server saw %d attempts, want exactly %d", got, MaxAttempts)
	}
	if min := 2 * f.RetryDelay; elapsed < min {
		t.Errorf("retries finished in %v, want at least %v of backoff", elapsed, min)
	}
}

func TestFetchRecoversAfterTransientFailures(t *testing.T) {
	data := pngBytes(t, 8, 8)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write(data)
	}))
	defer srv.Close()

	f := newTestFetcher(t, &fakeEngine{url: srv.URL})
	result, err := f.Fetch(context.Background(), "raster-1", testTile())
	if err != nil {
		t.Fatalf("Fetch should succeed on the final attempt: %v", err)
	}
	if result == nil || result.Image == nil {
		t.Fatalf("successful fetch returned no image")
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("server saw %d attempts, want 3", got)
	}
}

func TestFetchRequestsFreshRenderURLPerAttempt(t *testing.T) {
	eng := &fakeEngine{renderErr: errors.New("render export failed")}
	f := newTestFetcher(t, eng)

	if _, err := f.Fetch(context.Background(), "raster-1", testTile()); err == nil {
		t.Fatalf("expected an error when every render request fails")
	}
	if got := eng.renderCalls.Load(); got != MaxAttempts {
		t.Errorf("engine saw %d render requests, want %d", got, MaxAttempts)
	}
}

func TestFetchStopsOnCanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := newTestFetcher(t, &fakeEngine{url: srv.URL})
	f.RetryDelay = 5 * time.Second

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := f.Fetch(ctx, "raster-1", testTile())
	if err == nil {
		t.Fatalf("expected an error from the canceled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("cancellation took %v, the backoff was not interrupted", elapsed)
	}
}

func TestRetryPolicyConstants(t *testing.T) {
	if MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", MaxAttempts)
	}
	if DefaultRetryDelay != 2*time.Second {
		t.Errorf("DefaultRetryDelay = %v, want 2s", DefaultRetryDelay)
	}
	if DownloadTimeout != 120*time.Second {
		t.Errorf("DownloadTimeout = %v, want 120s", DownloadTimeout)
	}
}
