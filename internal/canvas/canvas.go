// Package canvas provides the drawing primitives used by scene renderers and
// overlays: filled and outlined rounded rectangles, lines, anchored text and
// scaled image blits on top of an *image.RGBA frame.
package canvas

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/ivlev/reelmaker/internal/timeline"
)

// Anchor selects which point of the text box the x coordinate refers to.
type Anchor int

const (
	Left Anchor = iota
	Center
	Right
)

// kappa places cubic control points for a quarter circle.
const kappa = 0.5522847498

type Canvas struct {
	Img   *image.RGBA
	Fonts *FontBook
	// BG is the background color used by Blend.
	BG timeline.RGB
}

func New(img *image.RGBA, fonts *FontBook, bg timeline.RGB) *Canvas {
	return &Canvas{Img: img, Fonts: fonts, BG: bg}
}

func (c *Canvas) Width() int  { return c.Img.Rect.Dx() }
func (c *Canvas) Height() int { return c.Img.Rect.Dy() }

// Clear overwrites every pixel with col.
func (c *Canvas) Clear(col color.Color) {
	draw.Draw(c.Img, c.Img.Rect, image.NewUniform(col), image.Point{}, draw.Src)
}

// Blend mixes col with the canvas background at the given opacity and
// returns an opaque color.
func (c *Canvas) Blend(col timeline.RGB, alpha float64) color.RGBA {
	return Blend(col, c.BG, alpha)
}

func Blend(col, bg timeline.RGB, alpha float64) color.RGBA {
	mix := func(a, b uint8) uint8 {
		return uint8(float64(a)*alpha + float64(b)*(1-alpha))
	}
	return color.RGBA{R: mix(col.R, bg.R), G: mix(col.G, bg.G), B: mix(col.B, bg.B), A: 0xff}
}

// FillRect composites col over r.
func (c *Canvas) FillRect(r image.Rectangle, col color.Color) {
	draw.Draw(c.Img, r, image.NewUniform(col), image.Point{}, draw.Over)
}

// RoundedRect fills r with rounded corners of the given radius.
func (c *Canvas) RoundedRect(r image.Rectangle, radius float64, col color.Color) {
	r = r.Canon()
	if r.Empty() {
		return
	}
	z := vector.NewRasterizer(r.Dx(), r.Dy())
	roundedPath(z, 0, 0, float32(r.Dx()), float32(r.Dy()), float32(radius), false)
	z.Draw(c.Img, r, image.NewUniform(col), image.Point{})
}

// RoundedRectOutline strokes the border of r with the given line width.
func (c *Canvas) RoundedRectOutline(r image.Rectangle, radius, width float64, col color.Color) {
	r = r.Canon()
	if r.Empty() || width <= 0 {
		return
	}
	w, h := float32(r.Dx()), float32(r.Dy())
	lw := float32(width)
	z := vector.NewRasterizer(r.Dx(), r.Dy())
	roundedPath(z, 0, 0, w, h, float32(radius), false)
	if 2*lw < w && 2*lw < h {
		inner := float32(radius) - lw
		if inner < 0 {
			inner = 0
		}
		// Opposite winding cancels coverage and leaves the ring.
		roundedPath(z, lw, lw, w-lw, h-lw, inner, true)
	}
	z.Draw(c.Img, r, image.NewUniform(col), image.Point{})
}

func roundedPath(z *vector.Rasterizer, x0, y0, x1, y1, rad float32, reverse bool) {
	maxR := (x1 - x0) / 2
	if (y1-y0)/2 < maxR {
		maxR = (y1 - y0) / 2
	}
	if rad > maxR {
		rad = maxR
	}
	k := rad * kappa

	if !reverse {
		z.MoveTo(x0+rad, y0)
		z.LineTo(x1-rad, y0)
		z.CubeTo(x1-rad+k, y0, x1, y0+rad-k, x1, y0+rad)
		z.LineTo(x1, y1-rad)
		z.CubeTo(x1, y1-rad+k, x1-rad+k, y1, x1-rad, y1)
		z.LineTo(x0+rad, y1)
		z.CubeTo(x0+rad-k, y1, x0, y1-rad+k, x0, y1-rad)
		z.LineTo(x0, y0+rad)
		z.CubeTo(x0, y0+rad-k, x0+rad-k, y0, x0+rad, y0)
	} else {
		z.MoveTo(x0+rad, y0)
		z.CubeTo(x0+rad-k, y0, x0, y0+rad-k, x0, y0+rad)
		z.LineTo(x0, y1-rad)
		z.CubeTo(x0, y1-rad+k, x0+rad-k, y1, x0+rad, y1)
		z.LineTo(x1-rad, y1)
		z.CubeTo(x1-rad+k, y1, x1, y1-rad+k, x1, y1-rad)
		z.LineTo(x1, y0+rad)
		z.CubeTo(x1, y0+rad-k, x1-rad+k, y0, x1-rad, y0)
	}
	z.ClosePath()
}

// Line draws a straight segment of the given width.
func (c *Canvas) Line(x0, y0, x1, y1, width float64, col color.Color) {
	dx, dy := x1-x0, y1-y0
	length := math.Hypot(dx, dy)
	if length == 0 || width <= 0 {
		return
	}
	nx, ny := -dy/length*width/2, dx/length*width/2

	b := c.Img.Rect
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	z.MoveTo(float32(x0+nx), float32(y0+ny))
	z.LineTo(float32(x1+nx), float32(y1+ny))
	z.LineTo(float32(x1-nx), float32(y1-ny))
	z.LineTo(float32(x0-nx), float32(y0-ny))
	z.ClosePath()
	z.Draw(c.Img, b, image.NewUniform(col), image.Point{})
}

// Measure returns the ink extent of s in pixels.
func (c *Canvas) Measure(s string, spec FontSpec) (w, h int) {
	bounds, _ := font.BoundString(c.Fonts.Face(spec), s)
	return (bounds.Max.X - bounds.Min.X).Ceil(), (bounds.Max.Y - bounds.Min.Y).Ceil()
}

// Text draws s with its ink box vertically centered on cy. x is the left
// edge, center or right edge depending on anchor.
func (c *Canvas) Text(s string, x, cy int, anchor Anchor, spec FontSpec, col color.Color) {
	if s == "" {
		return
	}
	face := c.Fonts.Face(spec)
	bounds, advance := font.BoundString(face, s)

	var left fixed.Int26_6
	switch anchor {
	case Center:
		left = fixed.I(x) - (bounds.Min.X+bounds.Max.X)/2
	case Right:
		left = fixed.I(x) - advance
	default:
		left = fixed.I(x) - bounds.Min.X
	}
	baseline := fixed.I(cy) - (bounds.Min.Y+bounds.Max.Y)/2

	d := font.Drawer{
		Dst:  c.Img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.Point26_6{X: left, Y: baseline},
	}
	d.DrawString(s)
}

// DrawScaled blits the sr portion of src into dr with bilinear filtering.
func (c *Canvas) DrawScaled(src image.Image, sr, dr image.Rectangle) {
	xdraw.ApproxBiLinear.Scale(c.Img, dr, src, sr, draw.Over, nil)
}
