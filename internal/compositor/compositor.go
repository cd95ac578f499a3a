// Package compositor turns a time coordinate into a finished frame: the
// active scene's content plus the shared progress bar and caption overlays.
package compositor

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"
	"strconv"

	"github.com/ivlev/reelmaker/internal/canvas"
	"github.com/ivlev/reelmaker/internal/config"
	"github.com/ivlev/reelmaker/internal/renderer"
	"github.com/ivlev/reelmaker/internal/system"
	"github.com/ivlev/reelmaker/internal/timeline"
)

// Layout at the 1080 px reference width.
const (
	barY       = 55
	barH       = 10
	barPad     = 40
	barRadius  = 5
	barGap     = 4
	labelDY    = 30
	labelSize  = 24
	captionDY  = 170 // caption center above the bottom edge
	captionSz  = 48
	captionPX  = 50
	captionPY  = 28
	captionRad = 14
)

// captionPanel is black at 75% opacity.
var captionPanel = color.NRGBA{A: 191}

// MissingRendererError is returned in strict mode when scenes have no
// registered renderer.
type MissingRendererError struct {
	SceneIDs []int
}

func (e *MissingRendererError) Error() string {
	return fmt.Sprintf("no renderer registered for scenes %v", e.SceneIDs)
}

type Compositor struct {
	tl     *timeline.Timeline
	cfg    config.Config
	reg    *renderer.Registry
	fonts  *canvas.FontBook
	pool   *system.ImagePool
	bounds image.Rectangle
	segX   []int
	logger *slog.Logger
}

// New prepares a compositor. Scenes without a renderer are drawn as plain
// background and logged as a warning, or rejected when cfg.Strict is set.
func New(tl *timeline.Timeline, cfg config.Config, reg *renderer.Registry, logger *slog.Logger) (*Compositor, error) {
	if missing := reg.Missing(tl); len(missing) > 0 {
		if cfg.Strict {
			return nil, &MissingRendererError{SceneIDs: missing}
		}
		logger.Warn("scenes without renderer will show the plain background", "scene_ids", missing)
	}
	for _, pair := range tl.OverlappingCaptions() {
		a, b := tl.Captions[pair[0]], tl.Captions[pair[1]]
		logger.Warn("overlapping captions, earlier one wins",
			"first", a.Text, "second", b.Text, "from", b.Start, "to", math.Min(a.End, b.End))
	}

	c := &Compositor{
		tl:     tl,
		cfg:    cfg,
		reg:    reg,
		fonts:  canvas.NewFontBook(),
		pool:   system.NewImagePool(),
		bounds: image.Rect(0, 0, cfg.Width, cfg.Height),
		logger: logger,
	}
	c.segX = segmentEdges(tl, cfg.Px(barPad), cfg.Width-2*cfg.Px(barPad))
	return c, nil
}

// segmentEdges returns len(scenes)+1 x positions. Edges are rounded from
// the cumulative scene end so the widths always add up to totalW.
func segmentEdges(tl *timeline.Timeline, x0, totalW int) []int {
	edges := make([]int, len(tl.Scenes)+1)
	edges[0] = x0
	for i, s := range tl.Scenes {
		edges[i+1] = x0 + int(math.Round(float64(totalW)*s.End/tl.Duration))
	}
	return edges
}

// SegmentWidths returns the progress bar segment widths for a bar of the
// given total width, one per scene in order.
func SegmentWidths(tl *timeline.Timeline, totalWidth int) []int {
	edges := segmentEdges(tl, 0, totalWidth)
	widths := make([]int, len(tl.Scenes))
	for i := range widths {
		widths[i] = edges[i+1] - edges[i]
	}
	return widths
}

// SegmentWidths reports the widths used by this compositor's bar.
func (c *Compositor) SegmentWidths() []int {
	return SegmentWidths(c.tl, c.cfg.Width-2*c.cfg.Px(barPad))
}

// Frame renders the frame at time t. The returned image belongs to the
// caller until handed back with Release.
func (c *Compositor) Frame(t float64) *image.RGBA {
	img := c.pool.Get(c.bounds)
	cv := canvas.New(img, c.fonts, c.cfg.Palette.Background)
	cv.Clear(c.cfg.Palette.Background.Color())

	scene := c.tl.SceneAt(t)
	if r, ok := c.reg.Lookup(scene.ID); ok {
		r.Render(cv, timeline.Progress(scene, t))
	}

	c.drawProgressBar(cv, t, scene)
	c.drawCaption(cv, t)
	return img
}

// Release returns a frame buffer to the pool.
func (c *Compositor) Release(img *image.RGBA) {
	c.pool.Put(img)
}

func (c *Compositor) Close() error {
	return c.fonts.Close()
}

func (c *Compositor) drawProgressBar(cv *canvas.Canvas, t float64, active timeline.Scene) {
	px := c.cfg.Px
	pal := c.cfg.Palette
	y0, y1 := px(barY), px(barY+barH)
	radius := float64(px(barRadius))
	gap := px(barGap)
	track := cv.Blend(pal.White, 0.08)

	for i, s := range c.tl.Scenes {
		x, segW := c.segX[i], c.segX[i+1]-c.segX[i]
		cv.RoundedRect(image.Rect(x, y0, x+segW-gap, y1), radius, track)

		p := segmentProgress(s, t)
		if p > 0 {
			fw := int(float64(segW-gap) * p)
			if fw < gap {
				fw = gap
			}
			cv.RoundedRect(image.Rect(x, y0, x+fw, y1), radius, s.Color.Color())
		}
	}

	labelY := px(barY + labelDY)
	spec := canvas.FontSpec{Family: canvas.Mono, Size: float64(px(labelSize))}
	gray := pal.Gray.Color()
	cv.Text(active.Label, px(barPad), labelY, canvas.Left, spec, gray)
	cv.Text(TimeReadout(t, c.tl.Duration), c.cfg.Width-px(barPad), labelY, canvas.Right, spec, gray)
}

// segmentProgress is 0 before the scene, 1 after it and linear inside.
func segmentProgress(s timeline.Scene, t float64) float64 {
	switch {
	case t < s.Start:
		return 0
	case t > s.End:
		return 1
	default:
		return timeline.Progress(s, t)
	}
}

// TimeReadout formats "<whole seconds elapsed>s / <duration>s".
func TimeReadout(t, duration float64) string {
	return strconv.Itoa(int(t)) + "s / " + strconv.FormatFloat(duration, 'f', -1, 64) + "s"
}

func (c *Compositor) drawCaption(cv *canvas.Canvas, t float64) {
	capt, ok := c.tl.CaptionAt(t)
	if !ok || capt.Text == "" {
		return
	}
	px := c.cfg.Px
	spec := canvas.FontSpec{Family: canvas.Mono, Size: float64(px(captionSz)), Bold: true}

	cx, cy := c.cfg.Width/2, c.cfg.Height-px(captionDY)
	tw, th := cv.Measure(capt.Text, spec)
	pw, ph := tw+px(captionPX), th+px(captionPY)
	rx, ry := cx-pw/2, cy-ph/2

	cv.RoundedRect(image.Rect(rx, ry, rx+pw, ry+ph), float64(px(captionRad)), captionPanel)
	cv.Text(capt.Text, cx, cy, canvas.Center, spec, c.cfg.Palette.White.Color())
}
