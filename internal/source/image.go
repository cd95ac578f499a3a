package source

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"slices"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var imageExts = []string{".bmp", ".jpeg", ".jpg", ".png", ".webp"}

// ImageSource serves raster files as pages: one file, or every image in a
// directory in name order. Resolution is fixed, so dpi is ignored.
type ImageSource struct {
	root  string
	pages []string
}

func NewImageSource(path string) (*ImageSource, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		if !isImage(path) {
			return nil, fmt.Errorf("%s: unsupported image type (want one of %v)", path, imageExts)
		}
		return &ImageSource{root: path, pages: []string{path}}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	s := &ImageSource{root: path}
	for _, e := range entries {
		if e.Type().IsRegular() && isImage(e.Name()) {
			s.pages = append(s.pages, filepath.Join(path, e.Name()))
		}
	}
	if len(s.pages) == 0 {
		return nil, fmt.Errorf("no images in %s", path)
	}
	slices.Sort(s.pages)
	return s, nil
}

func isImage(name string) bool {
	return slices.Contains(imageExts, strings.ToLower(filepath.Ext(name)))
}

func (s *ImageSource) PageCount() int { return len(s.pages) }

func (s *ImageSource) page(index int) (*os.File, error) {
	if index < 0 || index >= len(s.pages) {
		return nil, fmt.Errorf("%s: page %d out of range [0, %d)", s.root, index, len(s.pages))
	}
	return os.Open(s.pages[index])
}

func (s *ImageSource) GetPageDimensions(index int) (float64, float64, error) {
	f, err := s.page(index)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w", f.Name(), err)
	}
	return float64(cfg.Width), float64(cfg.Height), nil
}

func (s *ImageSource) RenderPage(index int, _ int) (image.Image, error) {
	f, err := s.page(index)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.Name(), err)
	}
	return img, nil
}

func (s *ImageSource) Close() error { return nil }
