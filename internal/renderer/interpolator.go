package renderer

import (
	"github.com/ivlev/reelmaker/internal/timeline"
)

// Camera is the slide viewport at a moment of scene progress.
type Camera struct {
	X    float64 // focus center, fraction of image width
	Y    float64 // focus center, fraction of image height
	Zoom float64 // 1.0 = whole image
}

var defaultCamera = Camera{X: 0.5, Y: 0.5, Zoom: 1.0}

func cameraOf(kf timeline.Keyframe) Camera {
	c := Camera{X: kf.X, Y: kf.Y, Zoom: kf.Zoom}
	if c.Zoom < 1 {
		c.Zoom = 1
	}
	return c
}

// CameraAt interpolates keyframes (sorted by At) at the given scene progress.
func CameraAt(keyframes []timeline.Keyframe, progress float64) Camera {
	if len(keyframes) == 0 {
		return defaultCamera
	}

	if progress <= keyframes[0].At {
		return cameraOf(keyframes[0])
	}
	last := keyframes[len(keyframes)-1]
	if progress >= last.At {
		return cameraOf(last)
	}

	var prev, next timeline.Keyframe
	for i := 0; i < len(keyframes)-1; i++ {
		if progress >= keyframes[i].At && progress < keyframes[i+1].At {
			prev, next = keyframes[i], keyframes[i+1]
			break
		}
	}

	span := next.At - prev.At
	if span <= 0 {
		return cameraOf(next)
	}
	t := easeInOutCubic((progress - prev.At) / span)

	a, b := cameraOf(prev), cameraOf(next)
	return Camera{
		X:    lerp(a.X, b.X, t),
		Y:    lerp(a.Y, b.Y, t),
		Zoom: lerp(a.Zoom, b.Zoom, t),
	}
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	u := -2*t + 2
	return 1 - u*u*u/2
}

func easeOutCubic(t float64) float64 {
	u := 1 - clamp01(t)
	return 1 - u*u*u
}

// phase maps progress into the [from, to] sub-window, clamped to [0, 1].
func phase(progress, from, to float64) float64 {
	if to <= from {
		if progress >= to {
			return 1
		}
		return 0
	}
	return clamp01((progress - from) / (to - from))
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
