package system

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ProvisionalPath returns a hidden sibling of final used while an output is
// being produced, e.g. out/.reel.partial.mp4 for out/reel.mp4. The extension
// is kept so ffmpeg can infer the container.
func ProvisionalPath(final string) string {
	dir, base := filepath.Split(final)
	ext := filepath.Ext(base)
	return filepath.Join(dir, "."+strings.TrimSuffix(base, ext)+".partial"+ext)
}

// Commit moves a finished provisional file into place.
func Commit(provisional, final string) error {
	if err := os.Rename(provisional, final); err != nil {
		os.Remove(provisional)
		return fmt.Errorf("commit %s: %w", final, err)
	}
	return nil
}

// Discard removes a provisional file after a failure. Missing files are
// not an error.
func Discard(provisional string) {
	os.Remove(provisional)
}
