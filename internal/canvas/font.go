package canvas

import (
	"fmt"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

type Family int

const (
	Sans Family = iota
	Mono
)

// FontSpec selects a face from a FontBook.
type FontSpec struct {
	Family Family
	Size   float64
	Bold   bool
}

func (s FontSpec) String() string {
	name := "sans"
	if s.Family == Mono {
		name = "mono"
	}
	if s.Bold {
		name += "-bold"
	}
	return fmt.Sprintf("%s@%g", name, s.Size)
}

// FontBook parses the embedded Go fonts once and caches faces by spec.
// Faces keep glyph caches, so a book must not be shared between goroutines
// that draw concurrently; give each compositor its own.
type FontBook struct {
	mu    sync.Mutex
	fonts map[fontKey]*opentype.Font
	faces map[FontSpec]font.Face
}

type fontKey struct {
	family Family
	bold   bool
}

var fontData = map[fontKey][]byte{
	{Sans, false}: goregular.TTF,
	{Sans, true}:  gobold.TTF,
	{Mono, false}: gomono.TTF,
	{Mono, true}:  gomonobold.TTF,
}

func NewFontBook() *FontBook {
	return &FontBook{
		fonts: make(map[fontKey]*opentype.Font),
		faces: make(map[FontSpec]font.Face),
	}
}

// Face returns the face for spec. If the font cannot be loaded the fixed
// 7x13 bitmap face is returned so drawing never fails.
func (b *FontBook) Face(spec FontSpec) font.Face {
	b.mu.Lock()
	defer b.mu.Unlock()

	if f, ok := b.faces[spec]; ok {
		return f
	}

	face, err := b.load(spec)
	if err != nil {
		face = basicfont.Face7x13
	}
	b.faces[spec] = face
	return face
}

func (b *FontBook) load(spec FontSpec) (font.Face, error) {
	key := fontKey{spec.Family, spec.Bold}
	f, ok := b.fonts[key]
	if !ok {
		parsed, err := opentype.Parse(fontData[key])
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", spec, err)
		}
		b.fonts[key] = parsed
		f = parsed
	}

	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    spec.Size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// Close releases all cached faces.
func (b *FontBook) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for spec, f := range b.faces {
		if f != basicfont.Face7x13 {
			f.Close()
		}
		delete(b.faces, spec)
	}
	return nil
}
