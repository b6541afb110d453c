// Package legend composes the final artifact image: the classified mosaic
// on a white canvas with a title line and a color key for every class.
package legend

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"canopy/internal/model"
)

const (
	legendWidth = 200
	legendRowH  = 50
	legendPad   = 20

	mapOffsetX = 10
	mapOffsetY = 50

	titleX = 10
	titleY = 10

	rowStep      = 30
	swatchSize   = 20
	labelIndent  = 30
	labelYOffset = 5

	heightPad = 60
)

var (
	white = color.NRGBA{255, 255, 255, 255}
	black = color.NRGBA{0, 0, 0, 255}
)

// Compose lays the mosaic and the class legend out on a white canvas. The
// canvas grows with the mosaic but never drops below the legend's height.
func Compose(mosaic image.Image, date string) *image.NRGBA {
	mapW := mosaic.Bounds().Dx()
	mapH := mosaic.Bounds().Dy()
	legendHeight := model.NumClasses*legendRowH + legendPad

	canvasW := mapW + legendPad + legendWidth
	canvasH := max(mapH, legendHeight) + heightPad
	canvas := image.NewNRGBA(image.Rect(0, 0, canvasW, canvasH))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(white), image.Point{}, draw.Src)

	title := fmt.Sprintf("Natural Forest Classification (%s)", date)
	drawText(canvas, titleX, titleY, title)

	draw.Draw(canvas, image.Rect(mapOffsetX, mapOffsetY, mapOffsetX+mapW, mapOffsetY+mapH),
		mosaic, mosaic.Bounds().Min, draw.Src)

	legendX := mapW + legendPad
	for i, class := range model.Classes() {
		rowY := mapOffsetY + i*rowStep
		swatch := image.Rect(legendX, rowY, legendX+swatchSize, rowY+swatchSize)
		draw.Draw(canvas, swatch, image.NewUniform(class.Color()), image.Point{}, draw.Src)
		strokeRect(canvas, swatch, black)
		drawText(canvas, legendX+labelIndent, rowY+labelYOffset, class.Label())
	}
	return canvas
}

// drawText renders s with its top-left corner at (x, y).
func drawText(dst draw.Image, x, y int, s string) {
	face := basicfont.Face7x13
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(black),
		Face: face,
		Dot:  fixed.P(x, y+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(s)
}

func strokeRect(dst draw.Image, r image.Rectangle, c color.Color) {
	for x := r.Min.X; x < r.Max.X; x++ {
		dst.Set(x, r.Min.Y, c)
		dst.Set(x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		dst.Set(r.Min.X, y, c)
		dst.Set(r.Max.X-1, y, c)
	}
}
