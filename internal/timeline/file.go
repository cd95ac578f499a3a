package timeline

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/reelmaker/internal/system"
)

// Write stores a timeline as YAML.
func Write(tl *Timeline, path string) error {
	data, err := yaml.Marshal(tl)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Read loads and validates a timeline YAML file.
func Read(path string) (*Timeline, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("timeline: open %q: %w", path, err)
	}
	defer f.Close()

	tl, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("timeline: %q: %w", path, err)
	}
	return tl, nil
}

// Decode parses a timeline from r. Unknown fields are rejected.
func Decode(r io.Reader) (*Timeline, error) {
	var tl Timeline
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&tl); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if err := tl.Validate(); err != nil {
		return nil, err
	}
	return &tl, nil
}

// FindLatest returns the most recently modified timeline file in dir.
func FindLatest(dir string) (string, error) {
	return system.FindLatestFile(dir, ".yaml", ".yml")
}
