// Package level provides simple signal level measurements over float32 sample buffers.
package level

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

func toFloat64(samples []float32) []float64 {
	result := make([]float64, len(samples))
	for idx, v := range samples {
		result[idx] = float64(v)
	}
	return result
}

// Energy returns the sum of squared samples.
func Energy(samples []float32) float64 {
	s := toFloat64(samples)
	return floats.Dot(s, s)
}

// RMS returns the root mean square of the samples (0 for an empty buffer).
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	return math.Sqrt(Energy(samples) / float64(len(samples)))
}

// Peak returns the largest absolute sample value (0 for an empty buffer).
func Peak(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	return floats.Norm(toFloat64(samples), math.Inf(1))
}

// DBFS converts a linear level into decibels relative to full scale.
func DBFS(linear float64) float64 {
	if linear <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(linear)
}
