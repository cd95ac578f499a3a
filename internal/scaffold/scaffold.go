// Package scaffold drafts a timeline from a slide deck: one slide scene per
// page, with camera keyframes that visit the detected content regions in
// reading order. Narration text and captions are left for the author.
package scaffold

import (
	"fmt"
	"image"
	"log/slog"
	"math"
	"sort"

	"github.com/ivlev/reelmaker/internal/config"
	"github.com/ivlev/reelmaker/internal/renderer"
	"github.com/ivlev/reelmaker/internal/source"
	"github.com/ivlev/reelmaker/internal/timeline"
)

// Pages is the part of source.Source the scaffold reads.
type Pages interface {
	PageCount() int
	RenderPage(index int, dpi int) (image.Image, error)
}

var _ Pages = (source.Source)(nil)

type Options struct {
	SceneDuration float64
	FPS           int
	AnalysisDPI   int // detection resolution; keyframes are resolution independent
	SlideDPI      int // written to the scene for rendering
	MaxRegions    int

	// Camera pacing, seconds.
	Intro    float64
	Outro    float64
	MinDwell float64
	MaxDwell float64
}

func DefaultOptions() Options {
	return Options{
		SceneDuration: 6,
		FPS:           30,
		AnalysisDPI:   72,
		SlideDPI:      source.DefaultDPI,
		MaxRegions:    4,
		Intro:         1,
		Outro:         1,
		MinDwell:      1,
		MaxDwell:      3,
	}
}

// rowTolerance is the vertical distance, as a fraction of page height,
// within which two regions count as the same row.
const rowTolerance = 0.02

// Build renders every page of pages, detects regions and returns a valid
// timeline referencing sourcePath.
func Build(pages Pages, sourcePath string, det *Detector, cfg config.Config, opts Options, logger *slog.Logger) (*timeline.Timeline, error) {
	n := pages.PageCount()
	if n == 0 {
		return nil, fmt.Errorf("%s has no pages", sourcePath)
	}
	colors := []timeline.RGB{cfg.Palette.Red, cfg.Palette.Green, cfg.Palette.Blue, cfg.Palette.Yellow}

	scenes := make([]timeline.Scene, 0, n)
	for i := 0; i < n; i++ {
		img, err := pages.RenderPage(i, opts.AnalysisDPI)
		if err != nil {
			return nil, fmt.Errorf("render page %d: %w", i+1, err)
		}
		regions := ReadingOrder(det.Detect(img), img.Bounds().Dy())
		if len(regions) > opts.MaxRegions && opts.MaxRegions > 0 {
			regions = largest(regions, opts.MaxRegions)
		}
		logger.Info("page analyzed", "page", i+1, "regions", len(regions))

		start := float64(i) * opts.SceneDuration
		scenes = append(scenes, timeline.Scene{
			ID:    i + 1,
			Start: start,
			End:   start + opts.SceneDuration,
			Label: fmt.Sprintf("Page %d", i+1),
			Color: colors[i%len(colors)],
			Visual: timeline.Visual{
				Kind:      string(renderer.KindSlide),
				Source:    sourcePath,
				Page:      i,
				DPI:       opts.SlideDPI,
				Keyframes: Keyframes(regions, img.Bounds(), opts),
			},
		})
	}

	tl, err := timeline.New(scenes, nil, float64(n)*opts.SceneDuration, opts.FPS)
	if err != nil {
		return nil, err
	}
	tl.Version = "1"
	return tl, nil
}

// ReadingOrder sorts regions top to bottom, then left to right within a row.
func ReadingOrder(regions []image.Rectangle, pageHeight int) []image.Rectangle {
	sorted := append([]image.Rectangle(nil), regions...)
	tol := int(math.Round(rowTolerance * float64(pageHeight)))
	sort.SliceStable(sorted, func(i, j int) bool {
		dy := sorted[i].Min.Y - sorted[j].Min.Y
		if dy > tol || dy < -tol {
			return dy < 0
		}
		return sorted[i].Min.X < sorted[j].Min.X
	})
	return sorted
}

// largest keeps the k biggest regions, preserving their order.
func largest(regions []image.Rectangle, k int) []image.Rectangle {
	idx := make([]int, len(regions))
	for i := range idx {
		idx[i] = i
	}
	area := func(r image.Rectangle) int { return r.Dx() * r.Dy() }
	sort.SliceStable(idx, func(a, b int) bool { return area(regions[idx[a]]) > area(regions[idx[b]]) })
	keep := idx[:k]
	sort.Ints(keep)

	out := make([]image.Rectangle, 0, k)
	for _, i := range keep {
		out = append(out, regions[i])
	}
	return out
}

// Keyframes opens and closes on the whole page and dwells on each region in
// between. Times are converted to scene progress.
func Keyframes(regions []image.Rectangle, page image.Rectangle, opts Options) []timeline.Keyframe {
	d := opts.SceneDuration
	whole := func(at float64) timeline.Keyframe {
		return timeline.Keyframe{At: at, X: 0.5, Y: 0.5, Zoom: 1}
	}
	if len(regions) == 0 || d <= 0 {
		return []timeline.Keyframe{whole(0)}
	}

	dwell := dwellTime(d, len(regions), opts)
	kfs := []timeline.Keyframe{whole(0)}
	at := opts.Intro
	for _, r := range regions {
		if at >= d {
			break
		}
		kfs = append(kfs, timeline.Keyframe{
			At:   at / d,
			X:    (float64(r.Min.X+r.Max.X)/2 - float64(page.Min.X)) / float64(page.Dx()),
			Y:    (float64(r.Min.Y+r.Max.Y)/2 - float64(page.Min.Y)) / float64(page.Dy()),
			Zoom: zoomFor(r, page),
		})
		at += dwell
	}
	return append(kfs, whole(math.Min(at/d, 1)))
}

func dwellTime(total float64, regions int, opts Options) float64 {
	available := total - opts.Intro - opts.Outro
	if available <= 0 {
		available = total
	}
	dwell := available / float64(regions)
	return math.Max(opts.MinDwell, math.Min(opts.MaxDwell, dwell))
}

// zoomFor fits the region into 90% of the frame, clamped to [1, 3].
func zoomFor(r, page image.Rectangle) float64 {
	if r.Dx() == 0 || r.Dy() == 0 {
		return 1
	}
	const padding = 0.9
	zx := padding * float64(page.Dx()) / float64(r.Dx())
	zy := padding * float64(page.Dy()) / float64(r.Dy())
	return math.Max(1, math.Min(3, math.Min(zx, zy)))
}
