package renderer

import (
	"fmt"
	"image"
	"math"

	"github.com/skip2/go-qrcode"

	"github.com/ivlev/reelmaker/internal/canvas"
	"github.com/ivlev/reelmaker/internal/config"
	"github.com/ivlev/reelmaker/internal/timeline"
)

// style collects what every variant needs from the scene and config.
type style struct {
	cfg    config.Config
	accent timeline.RGB
	label  string
}

func newStyle(s timeline.Scene, cfg config.Config) style {
	accent := s.Color
	if accent == (timeline.RGB{}) {
		accent = cfg.Palette.White
	}
	return style{cfg: cfg, accent: accent, label: s.Label}
}

func (st style) px(v float64) int { return st.cfg.Px(v) }

// fitText shrinks font until text fits in maxW, stopping at minSize.
func fitText(c *canvas.Canvas, text string, font canvas.FontSpec, maxW int, minSize float64) canvas.FontSpec {
	for font.Size > minSize {
		if w, _ := c.Measure(text, font); w <= maxW {
			break
		}
		font.Size -= 4
	}
	if font.Size < minSize {
		font.Size = minSize
	}
	return font
}

// Title shows a headline that slides up and fades in, an accent rule that
// grows under it, and a delayed subtitle.
type Title struct {
	style
	headline string
	subtitle string
}

func NewTitle(s timeline.Scene, cfg config.Config) *Title {
	headline := s.Visual.Headline
	if headline == "" {
		headline = s.Label
	}
	return &Title{style: newStyle(s, cfg), headline: headline, subtitle: s.Visual.Subtitle}
}

func (t *Title) Render(c *canvas.Canvas, progress float64) {
	pal := t.cfg.Palette
	w, h := c.Width(), c.Height()
	cx := w / 2

	in := easeOutCubic(phase(progress, 0, 0.15))
	cy := int(float64(h)*0.40) + int(float64(t.px(60))*(1-in))

	c.Text(t.label, cx, cy-t.px(170), canvas.Center,
		canvas.FontSpec{Family: canvas.Mono, Size: float64(t.px(28))}, c.Blend(pal.Gray, in))

	font := fitText(c, t.headline, canvas.FontSpec{Family: canvas.Sans, Size: float64(t.px(96)), Bold: true}, w-2*t.px(60), float64(t.px(36)))
	c.Text(t.headline, cx, cy, canvas.Center, font, c.Blend(t.accent, in))

	rule := float64(t.px(560)) * easeOutCubic(phase(progress, 0.1, 0.4))
	if rule > 0 {
		ry := float64(cy + t.px(90))
		c.Line(float64(cx)-rule/2, ry, float64(cx)+rule/2, ry, float64(t.px(6)), t.accent.Color())
	}

	if t.subtitle != "" {
		sub := phase(progress, 0.25, 0.45)
		subSpec := fitText(c, t.subtitle, canvas.FontSpec{Family: canvas.Sans, Size: float64(t.px(44))}, w-2*t.px(80), float64(t.px(24)))
		c.Text(t.subtitle, cx, cy+t.px(170), canvas.Center, subSpec, c.Blend(pal.White, sub))
	}
}

// Bullets reveals one card per line in sequence across the scene.
type Bullets struct {
	style
	header string
	lines  []string
}

func NewBullets(s timeline.Scene, cfg config.Config) *Bullets {
	header := s.Visual.Headline
	if header == "" {
		header = s.Label
	}
	return &Bullets{style: newStyle(s, cfg), header: header, lines: append([]string(nil), s.Visual.Lines...)}
}

// reveal returns the visibility of line i in [0, 1]. Lines appear evenly
// between 5% and 85% of the scene, each fading in over half its slot.
func (b *Bullets) reveal(i int, progress float64) float64 {
	slot := 0.8 / float64(len(b.lines))
	start := 0.05 + slot*float64(i)
	return easeOutCubic(phase(progress, start, start+slot/2))
}

func (b *Bullets) Render(c *canvas.Canvas, progress float64) {
	pal := b.cfg.Palette
	w := c.Width()
	pad := b.px(70)

	headSpec := fitText(c, b.header, canvas.FontSpec{Family: canvas.Sans, Size: float64(b.px(64)), Bold: true}, w-2*pad, float64(b.px(28)))
	c.Text(b.header, w/2, b.px(360), canvas.Center, headSpec, c.Blend(b.accent, easeOutCubic(phase(progress, 0, 0.08))))

	cardH, gap := b.px(150), b.px(40)
	y := b.px(500)
	for i, line := range b.lines {
		a := b.reveal(i, progress)
		if a <= 0 {
			break
		}
		dx := int(float64(b.px(40)) * (1 - a))
		card := image.Rect(pad+dx, y, w-pad+dx, y+cardH)

		c.RoundedRect(card, float64(b.px(18)), c.Blend(pal.White, 0.05*a))
		c.RoundedRectOutline(card, float64(b.px(18)), float64(b.px(3)), c.Blend(b.accent, a))

		font := fitText(c, line, canvas.FontSpec{Family: canvas.Sans, Size: float64(b.px(44))}, card.Dx()-2*b.px(40), float64(b.px(22)))
		c.Text(line, card.Min.X+b.px(40), y+cardH/2, canvas.Left, font, c.Blend(pal.White, a))

		y += cardH + gap
	}
}

// Slide shows a still image through a keyframed camera.
type Slide struct {
	style
	img       image.Image
	keyframes []timeline.Keyframe
	headline  string
}

func NewSlide(s timeline.Scene, cfg config.Config, img image.Image) *Slide {
	return &Slide{
		style:     newStyle(s, cfg),
		img:       img,
		keyframes: append([]timeline.Keyframe(nil), s.Visual.Keyframes...),
		headline:  s.Visual.Headline,
	}
}

// viewport is the area available between the progress bar and captions.
func (s *Slide) viewport(w, h int) image.Rectangle {
	top := s.px(200)
	if s.headline != "" {
		top = s.px(300)
	}
	return image.Rect(s.px(60), top, w-s.px(60), h-s.px(300))
}

// fitRect centers an iw x ih box scaled to fit inside view.
func fitRect(iw, ih int, view image.Rectangle) image.Rectangle {
	scale := math.Min(float64(view.Dx())/float64(iw), float64(view.Dy())/float64(ih))
	dw, dh := int(float64(iw)*scale), int(float64(ih)*scale)
	x0 := view.Min.X + (view.Dx()-dw)/2
	y0 := view.Min.Y + (view.Dy()-dh)/2
	return image.Rect(x0, y0, x0+dw, y0+dh)
}

// cropRect returns the source region the camera sees.
func cropRect(b image.Rectangle, cam Camera) image.Rectangle {
	iw, ih := float64(b.Dx()), float64(b.Dy())
	cw, ch := iw/cam.Zoom, ih/cam.Zoom
	x0 := math.Max(0, math.Min(cam.X*iw-cw/2, iw-cw))
	y0 := math.Max(0, math.Min(cam.Y*ih-ch/2, ih-ch))
	return image.Rect(
		b.Min.X+int(x0), b.Min.Y+int(y0),
		b.Min.X+int(math.Round(x0+cw)), b.Min.Y+int(math.Round(y0+ch)),
	)
}

func (s *Slide) Render(c *canvas.Canvas, progress float64) {
	w, h := c.Width(), c.Height()
	if s.headline != "" {
		font := fitText(c, s.headline, canvas.FontSpec{Family: canvas.Sans, Size: float64(s.px(56)), Bold: true}, w-2*s.px(60), float64(s.px(28)))
		c.Text(s.headline, w/2, s.px(220), canvas.Center, font, s.accent.Color())
	}

	b := s.img.Bounds()
	if b.Empty() {
		return
	}
	dr := fitRect(b.Dx(), b.Dy(), s.viewport(w, h))
	sr := cropRect(b, CameraAt(s.keyframes, progress))
	c.DrawScaled(s.img, sr, dr)
	c.RoundedRectOutline(dr.Inset(-s.px(6)), float64(s.px(18)), float64(s.px(4)), s.accent.Color())
}

// QR draws a scannable code for a call to action and scales it in.
type QR struct {
	style
	url      string
	headline string
	bitmap   [][]bool
}

func NewQR(s timeline.Scene, cfg config.Config) (*QR, error) {
	if s.Visual.URL == "" {
		return nil, fmt.Errorf("qr visual needs a url")
	}
	code, err := qrcode.New(s.Visual.URL, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	headline := s.Visual.Headline
	if headline == "" {
		headline = s.Label
	}
	return &QR{style: newStyle(s, cfg), url: s.Visual.URL, headline: headline, bitmap: code.Bitmap()}, nil
}

// Modules returns the side length of the code in modules, quiet zone included.
func (q *QR) Modules() int {
	return len(q.bitmap)
}

func (q *QR) Render(c *canvas.Canvas, progress float64) {
	pal := q.cfg.Palette
	w, h := c.Width(), c.Height()
	cx, cy := w/2, int(float64(h)*0.45)

	in := easeOutCubic(phase(progress, 0, 0.3))

	font := fitText(c, q.headline, canvas.FontSpec{Family: canvas.Sans, Size: float64(q.px(64)), Bold: true}, w-2*q.px(60), float64(q.px(28)))
	c.Text(q.headline, cx, q.px(360), canvas.Center, font, c.Blend(q.accent, in))

	n := len(q.bitmap)
	if n == 0 {
		return
	}
	side := int(float64(q.px(640)) * (0.6 + 0.4*in))
	module := float64(side) / float64(n)
	left, top := cx-side/2, cy-side/2

	panel := image.Rect(left, top, left+side, top+side).Inset(-q.px(24))
	c.RoundedRect(panel, float64(q.px(24)), pal.White.Color())

	dark := pal.Background.Color()
	for row := 0; row < n; row++ {
		y0 := top + int(float64(row)*module)
		y1 := top + int(float64(row+1)*module)
		for col := 0; col < n; col++ {
			if !q.bitmap[row][col] {
				continue
			}
			x0 := left + int(float64(col)*module)
			x1 := left + int(float64(col+1)*module)
			c.FillRect(image.Rect(x0, y0, x1, y1), dark)
		}
	}

	c.Text(q.url, cx, panel.Max.Y+q.px(70), canvas.Center,
		fitText(c, q.url, canvas.FontSpec{Family: canvas.Mono, Size: float64(q.px(32))}, w-2*q.px(60), float64(q.px(16))),
		c.Blend(pal.Gray, in))
}

// Blank leaves the cleared background untouched.
type Blank struct{}

func (Blank) Render(*canvas.Canvas, float64) {}
