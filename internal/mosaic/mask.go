package mosaic

import (
	"image"
	"image/color"
	"math"
	"sort"

	"golang.org/x/image/draw"

	"canopy/internal/geometry"
)

// ApplyBoundaryMask blacks out every pixel whose center falls outside the
// boundary polygon. Holes count as outside.
func ApplyBoundaryMask(img image.Image, boundary *geometry.Boundary) *image.NRGBA {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	mask := rasterizeBoundary(boundary, w, h)

	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(out, out.Bounds(), image.NewUniform(color.NRGBA{0, 0, 0, 255}), image.Point{}, draw.Src)
	draw.DrawMask(out, out.Bounds(), img, bounds.Min, mask, image.Point{}, draw.Over)
	return out
}

type pixelPoint struct {
	X, Y float64
}

// rasterizeBoundary renders the boundary as an 8-bit coverage mask using
// even-odd scanline filling. Each polygon part fills independently, so
// sibling parts cannot cancel each other while holes within a part do.
func rasterizeBoundary(boundary *geometry.Boundary, w, h int) *image.Alpha {
	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	bbox := boundary.Bounds()
	spanX := bbox.Max[0] - bbox.Min[0]
	spanY := bbox.Max[1] - bbox.Min[1]
	if spanX <= 0 || spanY <= 0 || w <= 0 || h <= 0 {
		return mask
	}

	for _, part := range boundary.PartsWithHoles() {
		rings := make([][]pixelPoint, 0, len(part))
		for _, ring := range part {
			px := make([]pixelPoint, len(ring))
			for i, pt := range ring {
				px[i] = pixelPoint{
					X: (pt[0] - bbox.Min[0]) / spanX * float64(w),
					Y: (bbox.Max[1] - pt[1]) / spanY * float64(h),
				}
			}
			rings = append(rings, px)
		}
		fillPart(mask, rings, w, h)
	}
	return mask
}

// fillPart marks the pixels of one polygon part. A pixel counts as inside
// when its center clears an odd number of ring edges on the way to the left
// image border.
func fillPart(mask *image.Alpha, rings [][]pixelPoint, w, h int) {
	xs := make([]float64, 0, 16)
	for y := 0; y < h; y++ {
		sy := float64(y) + 0.5
		xs = xs[:0]
		for _, ring := range rings {
			n := len(ring)
			for i := 0; i < n; i++ {
				a, b := ring[i], ring[(i+1)%n]
				if (a.Y <= sy) == (b.Y <= sy) {
					continue
				}
				t := (sy - a.Y) / (b.Y - a.Y)
				xs = append(xs, a.X+t*(b.X-a.X))
			}
		}
		if len(xs) < 2 {
			continue
		}
		sort.Float64s(xs)
		row := mask.Pix[y*mask.Stride:]
		for i := 0; i+1 < len(xs); i += 2 {
			start := max(int(math.Ceil(xs[i]-0.5)), 0)
			end := min(int(math.Ceil(xs[i+1]-0.5))-1, w-1)
			for x := start; x <= end; x++ {
				row[x] = 255
			}
		}
	}
}
