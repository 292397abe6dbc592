package compositor

import (
	"math"
	"time"

	"cartolapse/internal/raster"
)

// MotionMetric grows with the largest change between two zoom windows:
// 1 + max(|dx|, |dy|, |dsize|) / normalization.
func MotionMetric(prev, cur raster.BoundingBox, normalization float64) float64 {
	delta := max(absInt(cur.X-prev.X), absInt(cur.Y-prev.Y), absInt(cur.Size-prev.Size))
	if normalization <= 0 {
		return 1
	}
	return 1 + float64(delta)/normalization
}

// TransitionFrameCount is round(base * metric), never below one.
func TransitionFrameCount(base int, metric float64) int {
	return max(int(math.Round(float64(base)*metric)), 1)
}

// Interpolate linearly blends two windows. t=0 returns a and t=1 returns b.
func Interpolate(a, b raster.BoundingBox, t float64) raster.BoundingBox {
	return raster.BoundingBox{
		X:    lerp(a.X, b.X, t),
		Y:    lerp(a.Y, b.Y, t),
		Size: max(lerp(a.Size, b.Size, t), 1),
	}
}

// Steps returns count+1 evenly spaced samples of [0,1], endpoints exact.
func Steps(count int) []float64 {
	if count < 1 {
		return []float64{1}
	}
	steps := make([]float64, count+1)
	for i := range steps {
		steps[i] = float64(i) / float64(count)
	}
	steps[count] = 1
	return steps
}

// HoldFrames converts a hold duration to a frame count at fps, at least one.
func HoldFrames(hold time.Duration, fps int) int {
	if fps <= 0 {
		return 1
	}
	return max(int(math.Round(hold.Seconds()*float64(fps))), 1)
}

func lerp(a, b int, t float64) int {
	return int(math.Round(float64(a) + float64(b-a)*t))
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
