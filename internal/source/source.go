// Package source rasterizes still images (PDF pages, image files) used as
// slide backdrops.
package source

import (
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gen2brain/go-fitz"
)

type Source interface {
	PageCount() int
	GetPageDimensions(index int) (width, height float64, err error)
	RenderPage(index int, dpi int) (image.Image, error)
	Close() error
}

type FitzPDFSource struct {
	doc  *fitz.Document
	path string
	mu   sync.Mutex
}

func NewFitzPDFSource(path string) (*FitzPDFSource, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, err
	}
	return &FitzPDFSource{doc: doc, path: path}, nil
}

func (f *FitzPDFSource) PageCount() int {
	return f.doc.NumPage()
}

func (f *FitzPDFSource) GetPageDimensions(index int) (float64, float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rect, err := f.doc.Bound(index)
	if err != nil {
		return 0, 0, err
	}
	return float64(rect.Dx()), float64(rect.Dy()), nil
}

// RenderPage rasterizes one page. The document handle is not safe for
// concurrent use, so calls are serialized.
func (f *FitzPDFSource) RenderPage(index int, dpi int) (image.Image, error) {
	if index < 0 || index >= f.doc.NumPage() {
		return nil, fmt.Errorf("page %d out of range (document has %d)", index, f.doc.NumPage())
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.doc.ImageDPI(index, float64(dpi))
}

func (f *FitzPDFSource) Close() error {
	return f.doc.Close()
}

// Open picks the source implementation by file extension.
func Open(path string) (Source, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return NewFitzPDFSource(path)
	default:
		return NewImageSource(path)
	}
}

const DefaultDPI = 150

type cacheKey struct {
	path string
	page int
	dpi  int
}

// Cache rasterizes each (path, page, dpi) once and keeps the result for the
// life of a render.
type Cache struct {
	mu     sync.Mutex
	images map[cacheKey]image.Image
}

func NewCache() *Cache {
	return &Cache{images: make(map[cacheKey]image.Image)}
}

// Image returns the rasterized page. page is zero-based; dpi <= 0 uses
// DefaultDPI.
func (c *Cache) Image(path string, page, dpi int) (image.Image, error) {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	key := cacheKey{path, page, dpi}

	c.mu.Lock()
	defer c.mu.Unlock()
	if img, ok := c.images[key]; ok {
		return img, nil
	}

	src, err := Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source %q: %w", path, err)
	}
	defer src.Close()

	img, err := src.RenderPage(page, dpi)
	if err != nil {
		return nil, fmt.Errorf("render %q page %d: %w", path, page, err)
	}
	c.images[key] = img
	return img, nil
}
