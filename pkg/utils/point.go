package utils

import "math"

// Clamp rounds a model-space coordinate and clamps it to [0, imageMax].
func Clamp[T float32 | float64](pt T, imageMax int) int {
	p := int(math.Round(float64(pt)))
	if p < 0 {
		p = 0
	}
	if p > imageMax {
		p = imageMax
	}
	return p
}
