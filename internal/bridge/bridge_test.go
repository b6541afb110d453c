package bridge

import (
	"sync"
	"testing"

	"github.com/paulmach/orb"
)

func TestConvertMemoizesByEncoding(t *testing.T) {
	b, err := New(16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	const wktGeom = "POLYGON((0 0,1 0,1 1,0 1,0 0))"
	first, err := b.Convert(wktGeom)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	second, err := b.Convert(wktGeom)
	if err != nil {
		t.Fatalf("Convert (cached): %v", err)
	}

	if first != second {
		t.Errorf("repeated conversion of the same encoding rebuilt the geometry")
	}
	if b.Len() != 1 {
		t.Errorf("cache holds %d entries, want 1", b.Len())
	}
}

func TestConvertRejectsBadEncoding(t *testing.T) {
	b, err := New(16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := b.Convert("not a geometry"); err == nil {
		t.Fatalf("expected error for a non-WKT input")
	}
	if b.Len() != 0 {
		t.Errorf("failed conversions must not be cached, got %d entries", b.Len())
	}
}

func TestConvertBound(t *testing.T) {
	b, err := New(16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rect := orb.Bound{Min: orb.Point{10, 20}, Max: orb.Point{11, 21}}
	geom, err := b.ConvertBound(rect)
	if err != nil {
		t.Fatalf("ConvertBound: %v", err)
	}

	poly, ok := geom.Geometry().(orb.Polygon)
	if !ok {
		t.Fatalf("converted rect is %T, want orb.Polygon", geom.Geometry())
	}
	if got := poly.Bound(); got != rect {
		t.Errorf("converted rect bound = %v, want %v", got, rect)
	}

	again, err := b.ConvertBound(rect)
	if err != nil {
		t.Fatalf("ConvertBound (cached): %v", err)
	}
	if geom != again {
		t.Errorf("same rectangle converted twice rebuilt the geometry")
	}
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	b, err := New(2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	first, _ := b.Convert("POLYGON((0 0,1 0,1 1,0 1,0 0))")
	if _, err := b.Convert("POLYGON((2 2,3 2,3 3,2 3,2 2))"); err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if _, err := b.Convert("POLYGON((4 4,5 4,5 5,4 5,4 4))"); err != nil {
		t.Fatalf("Convert: %v", err)
	}

	if b.Len() != 2 {
		t.Fatalf("cache holds %d entries, want capacity 2", b.Len())
	}

	rebuilt, err := b.Convert("POLYGON((0 0,1 0,1 1,0 1,0 0))")
	if err != nil {
		t.Fatalf("Convert after eviction: %v", err)
	}
	if rebuilt == first {
		t.Errorf("evicted entry came back identical, eviction did not happen")
	}
}

func TestConvertConcurrent(t *testing.T) {
	b, err := New(8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	encodings := []string{
		"POLYGON((0 0,1 0,1 1,0 1,0 0))",
		"POLYGON((2 2,3 2,3 3,2 3,2 2))",
		"POLYGON((4 4,5 4,5 5,4 5,4 4))",
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if _, err := b.Convert(encodings[(n+j)%len(encodings)]); err != nil {
					t.Errorf("Convert: %v", err)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	if b.Len() != len(encodings) {
		t.Errorf("cache holds %d entries, want %d", b.Len(), len(encodings))
	}
}
