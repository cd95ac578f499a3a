// Package renderer holds the scene content variants and the registry that
// maps scene ids to them.
package renderer

import (
	"fmt"
	"sort"

	"github.com/ivlev/reelmaker/internal/canvas"
	"github.com/ivlev/reelmaker/internal/config"
	"github.com/ivlev/reelmaker/internal/source"
	"github.com/ivlev/reelmaker/internal/timeline"
)

// Renderer paints one scene's content for a given scene progress in [0, 1].
// The canvas is already cleared to the background; overlays are drawn
// afterwards by the compositor. Implementations must be deterministic.
type Renderer interface {
	Render(c *canvas.Canvas, progress float64)
}

// Kind names a content variant in the timeline file.
type Kind string

const (
	KindTitle   Kind = "title"
	KindBullets Kind = "bullets"
	KindSlide   Kind = "slide"
	KindQR      Kind = "qr"
	KindBlank   Kind = "blank"
)

// Registry maps scene ids to renderers.
type Registry struct {
	renderers map[int]Renderer
}

func NewRegistry() *Registry {
	return &Registry{renderers: make(map[int]Renderer)}
}

func (r *Registry) Register(id int, rend Renderer) {
	r.renderers[id] = rend
}

func (r *Registry) Lookup(id int) (Renderer, bool) {
	rend, ok := r.renderers[id]
	return rend, ok
}

func (r *Registry) Len() int {
	return len(r.renderers)
}

// Missing lists scene ids in tl that have no renderer, in scene order.
func (r *Registry) Missing(tl *timeline.Timeline) []int {
	var ids []int
	for _, s := range tl.Scenes {
		if _, ok := r.renderers[s.ID]; !ok {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

// Build creates a renderer for every scene that declares a visual. Scenes
// without one are left unregistered. Slide images are loaded through images,
// which may be nil when no scene uses a slide.
func Build(tl *timeline.Timeline, cfg config.Config, images *source.Cache) (*Registry, error) {
	reg := NewRegistry()
	for _, s := range tl.Scenes {
		if s.Visual.Kind == "" {
			continue
		}
		rend, err := newVariant(s, cfg, images)
		if err != nil {
			return nil, fmt.Errorf("scene %d: %w", s.ID, err)
		}
		reg.Register(s.ID, rend)
	}
	return reg, nil
}

func newVariant(s timeline.Scene, cfg config.Config, images *source.Cache) (Renderer, error) {
	switch Kind(s.Visual.Kind) {
	case KindTitle:
		return NewTitle(s, cfg), nil
	case KindBullets:
		if len(s.Visual.Lines) == 0 {
			return nil, fmt.Errorf("bullets visual needs at least one line")
		}
		return NewBullets(s, cfg), nil
	case KindSlide:
		if s.Visual.Source == "" {
			return nil, fmt.Errorf("slide visual needs a source")
		}
		if images == nil {
			images = source.NewCache()
		}
		img, err := images.Image(s.Visual.Source, s.Visual.Page, s.Visual.DPI)
		if err != nil {
			return nil, err
		}
		return NewSlide(s, cfg, img), nil
	case KindQR:
		return NewQR(s, cfg)
	case KindBlank:
		return Blank{}, nil
	default:
		return nil, fmt.Errorf("unknown visual kind %q (want one of %v)", s.Visual.Kind, Kinds())
	}
}

// Kinds lists the supported variants.
func Kinds() []string {
	k := []string{string(KindTitle), string(KindBullets), string(KindSlide), string(KindQR), string(KindBlank)}
	sort.Strings(k)
	return k
}
