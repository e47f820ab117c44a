package util

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

func abs(x float32) float32 {
	return float32(math.Abs(float64(x)))
}

func Floor(x float32) float32 {
	return float32(math.Floor(float64(x)))
}

func Ceil(x float32) float32 {
	return float32(math.Ceil(float64(x)))
}

// ClampLength scales v down to maxLen if it is longer. A maxLen <= 0 disables the clamp.
func ClampLength(v mgl32.Vec3, maxLen float32) mgl32.Vec3 {
	if maxLen <= 0 {
		return v
	}
	length := v.Len()
	if length <= maxLen {
		return v
	}
	return v.Mul(maxLen / length)
}

func IsFinite(v mgl32.Vec3) bool {
	for _, c := range v {
		if math.IsNaN(float64(c)) || math.IsInf(float64(c), 0) {
			return false
		}
	}
	return true
}
