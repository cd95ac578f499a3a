package scaffold

import (
	"image"
	"image/draw"
	"math"
)

// Detector finds high-contrast regions (text blocks, figures) on a page with
// a Sobel pass, a dilation to merge nearby edges, and connected components.
type Detector struct {
	MinArea       int     // px², smaller components are dropped
	EdgeThreshold float64 // gradient magnitude counted as an edge
	DilateRadius  int
	Iterations    int
}

func NewDetector() *Detector {
	return &Detector{
		MinArea:       500,
		EdgeThreshold: 30,
		DilateRadius:  2,
		Iterations:    2,
	}
}

// Detect returns region bounds in the image's coordinate space.
func (d *Detector) Detect(img image.Image) []image.Rectangle {
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)

	mask := sobel(gray, d.EdgeThreshold)
	for i := 0; i < d.Iterations; i++ {
		mask = dilate(mask, gray.Rect.Dx(), gray.Rect.Dy(), d.DilateRadius)
	}

	var regions []image.Rectangle
	for _, r := range components(mask, gray.Rect.Dx(), gray.Rect.Dy()) {
		if r.Dx()*r.Dy() >= d.MinArea {
			regions = append(regions, r.Add(b.Min))
		}
	}
	return regions
}

// sobel returns a w*h edge mask.
func sobel(g *image.Gray, threshold float64) []bool {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	mask := make([]bool, w*h)
	px := func(x, y int) float64 { return float64(g.Pix[y*g.Stride+x]) }

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx := -px(x-1, y-1) + px(x+1, y-1) -
				2*px(x-1, y) + 2*px(x+1, y) -
				px(x-1, y+1) + px(x+1, y+1)
			gy := -px(x-1, y-1) - 2*px(x, y-1) - px(x+1, y-1) +
				px(x-1, y+1) + 2*px(x, y+1) + px(x+1, y+1)
			mask[y*w+x] = math.Hypot(gx, gy) > threshold
		}
	}
	return mask
}

func dilate(mask []bool, w, h, r int) []bool {
	out := make([]bool, len(mask))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !mask[y*w+x] {
				continue
			}
			for dy := -r; dy <= r; dy++ {
				yy := y + dy
				if yy < 0 || yy >= h {
					continue
				}
				for dx := -r; dx <= r; dx++ {
					xx := x + dx
					if xx >= 0 && xx < w {
						out[yy*w+xx] = true
					}
				}
			}
		}
	}
	return out
}

// components returns the bounding box of every 4-connected set region.
func components(mask []bool, w, h int) []image.Rectangle {
	visited := make([]bool, len(mask))
	var rects []image.Rectangle
	var stack []int

	for start := range mask {
		if !mask[start] || visited[start] {
			continue
		}
		minX, minY := start%w, start/w
		maxX, maxY := minX, minY
		stack = append(stack[:0], start)
		visited[start] = true

		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := i%w, i/w
			minX, maxX = min(minX, x), max(maxX, x)
			minY, maxY = min(minY, y), max(maxY, y)

			push := func(j int) {
				if mask[j] && !visited[j] {
					visited[j] = true
					stack = append(stack, j)
				}
			}
			if x > 0 {
				push(i - 1)
			}
			if x < w-1 {
				push(i + 1)
			}
			if y > 0 {
				push(i - w)
			}
			if y < h-1 {
				push(i + w)
			}
		}
		rects = append(rects, image.Rect(minX, minY, maxX+1, maxY+1))
	}
	return rects
}
