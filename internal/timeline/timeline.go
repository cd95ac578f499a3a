// Package timeline holds the scene/caption model shared by the frame
// compositor and the narration pipeline. Both resolve "what belongs at time t"
// through the lookups defined here.
package timeline

import (
	"fmt"
	"math"
	"strings"
)

// boundaryEpsilon absorbs float noise when checking scene contiguity.
const boundaryEpsilon = 1e-9

// Scene is one contiguous window of the video with its own visual treatment
// and narration script.
type Scene struct {
	ID     int     `yaml:"id"`
	Start  float64 `yaml:"start"`
	End    float64 `yaml:"end"`
	Label  string  `yaml:"label"`
	Color  RGB     `yaml:"color"`
	Text   string  `yaml:"text"`
	Visual Visual  `yaml:"visual,omitempty"`
}

// Duration returns the length of the scene window in seconds.
func (s Scene) Duration() float64 {
	return s.End - s.Start
}

// Caption is a short on-screen phrase shown for [Start, End).
type Caption struct {
	Start float64 `yaml:"start"`
	End   float64 `yaml:"end"`
	Text  string  `yaml:"text"`
}

// Active reports whether the caption is shown at t.
func (c Caption) Active(t float64) bool {
	return c.Start <= t && t < c.End
}

// Timeline is the full declarative description of one render.
type Timeline struct {
	Version  string    `yaml:"version,omitempty"`
	Title    string    `yaml:"title,omitempty"`
	Duration float64   `yaml:"duration"`
	FPS      int       `yaml:"fps"`
	Scenes   []Scene   `yaml:"scenes"`
	Captions []Caption `yaml:"captions"`
}

// InvalidTimelineError lists every problem found while validating a timeline.
type InvalidTimelineError struct {
	Problems []string
}

func (e *InvalidTimelineError) Error() string {
	return "invalid timeline: " + strings.Join(e.Problems, "; ")
}

// New builds a validated timeline. The slices are copied so later mutation by
// the caller cannot change the timeline.
func New(scenes []Scene, captions []Caption, duration float64, fps int) (*Timeline, error) {
	tl := &Timeline{
		Duration: duration,
		FPS:      fps,
		Scenes:   append([]Scene(nil), scenes...),
		Captions: append([]Caption(nil), captions...),
	}
	if err := tl.Validate(); err != nil {
		return nil, err
	}
	return tl, nil
}

// Validate checks ordering, coverage and basic ranges. It returns an
// *InvalidTimelineError describing all problems, or nil.
func (tl *Timeline) Validate() error {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if tl.FPS <= 0 {
		addf("fps must be positive, got %d", tl.FPS)
	}
	if tl.Duration <= 0 {
		addf("duration must be positive, got %g", tl.Duration)
	}
	if len(tl.Scenes) == 0 {
		addf("timeline has no scenes")
	}

	seen := make(map[int]bool, len(tl.Scenes))
	for i, s := range tl.Scenes {
		if seen[s.ID] {
			addf("scene %d: duplicate id", s.ID)
		}
		seen[s.ID] = true

		if s.End <= s.Start {
			addf("scene %d: end %g must be greater than start %g", s.ID, s.End, s.Start)
		}

		if i == 0 {
			if math.Abs(s.Start) > boundaryEpsilon {
				addf("scene %d: first scene must start at 0, starts at %g", s.ID, s.Start)
			}
			continue
		}

		prev := tl.Scenes[i-1]
		switch {
		case s.Start < prev.Start:
			addf("scene %d: starts at %g before scene %d (%g); scenes must be ordered", s.ID, s.Start, prev.ID, prev.Start)
		case s.Start < prev.End-boundaryEpsilon:
			addf("scene %d: overlaps scene %d ([%g, %g) vs [%g, %g))", s.ID, prev.ID, s.Start, s.End, prev.Start, prev.End)
		case s.Start > prev.End+boundaryEpsilon:
			addf("gap between scene %d (ends %g) and scene %d (starts %g)", prev.ID, prev.End, s.ID, s.Start)
		}
	}

	if n := len(tl.Scenes); n > 0 && tl.Duration > 0 {
		if last := tl.Scenes[n-1]; tl.Duration < last.End-boundaryEpsilon {
			addf("duration %g is shorter than last scene end %g", tl.Duration, last.End)
		}
	}

	for i, c := range tl.Captions {
		if c.End <= c.Start {
			addf("caption %d (%q): end %g must be greater than start %g", i, c.Text, c.End, c.Start)
		}
	}

	if len(problems) > 0 {
		return &InvalidTimelineError{Problems: problems}
	}
	return nil
}

// SceneAt returns the scene whose window contains t. When no scene matches
// (t at or past the final boundary) the last scene is returned.
func (tl *Timeline) SceneAt(t float64) Scene {
	for _, s := range tl.Scenes {
		if s.Start <= t && t < s.End {
			return s
		}
	}
	return tl.Scenes[len(tl.Scenes)-1]
}

// SceneIndexAt is SceneAt returning the index into Scenes.
func (tl *Timeline) SceneIndexAt(t float64) int {
	for i, s := range tl.Scenes {
		if s.Start <= t && t < s.End {
			return i
		}
	}
	return len(tl.Scenes) - 1
}

// CaptionAt returns the first caption active at t.
func (tl *Timeline) CaptionAt(t float64) (Caption, bool) {
	for _, c := range tl.Captions {
		if c.Active(t) {
			return c, true
		}
	}
	return Caption{}, false
}

// Progress returns the normalized position of t inside the scene window,
// clamped to [0, 1].
func Progress(s Scene, t float64) float64 {
	d := s.End - s.Start
	if d <= 0 {
		return 1
	}
	return clamp01((t - s.Start) / d)
}

// TotalFrames is the authoritative number of frames in the render.
func (tl *Timeline) TotalFrames() int {
	return int(math.Round(tl.Duration * float64(tl.FPS)))
}

// FrameTime maps a frame index to its time coordinate.
func (tl *Timeline) FrameTime(frame int) float64 {
	return float64(frame) / float64(tl.FPS)
}

// OverlappingCaptions returns index pairs of captions whose ranges overlap.
// Overlap is tolerated (first match wins) but usually an authoring mistake.
func (tl *Timeline) OverlappingCaptions() [][2]int {
	var pairs [][2]int
	for i := 0; i < len(tl.Captions); i++ {
		for j := i + 1; j < len(tl.Captions); j++ {
			a, b := tl.Captions[i], tl.Captions[j]
			if a.Start < b.End && b.Start < a.End {
				pairs = append(pairs, [2]int{i, j})
			}
		}
	}
	return pairs
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
