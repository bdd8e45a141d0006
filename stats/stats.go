// Package stats holds the numeric primitives shared by the quality scorer and
// the anomaly detector.
package stats

import (
	"math"
	"sort"
)

func Mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev is the sample standard deviation (n-1 denominator).
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return math.NaN()
	}
	mean := Mean(values)
	var sum float64
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

// PopStdDev is the population standard deviation (n denominator).
func PopStdDev(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	mean := Mean(values)
	var sum float64
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}

// ZScores computes population z-scores for every value. Returns nil when the
// standard deviation is zero or undefined, so callers can skip degenerate
// columns.
func ZScores(values []float64) []float64 {
	std := PopStdDev(values)
	if std == 0 || math.IsNaN(std) {
		return nil
	}
	mean := Mean(values)
	scores := make([]float64, len(values))
	for i, v := range values {
		scores[i] = (v - mean) / std
	}
	return scores
}

// Quantile uses linear interpolation between closest ranks, matching the
// convention of most numeric toolkits. q must be in [0,1].
func Quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	pos := q * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}
	frac := pos - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}

// QuantileLower takes the value at the floored fractional rank instead of
// interpolating. On small samples this keeps the quartiles inside the bulk
// of the data, so a single far value still lands outside the IQR fence.
func QuantileLower(values []float64, q float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	pos := int(math.Floor(q * float64(len(sorted)-1)))
	return sorted[pos]
}

func Median(values []float64) float64 {
	return Quantile(values, 0.5)
}

func Min(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	min := values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
	}
	return min
}

func Max(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	max := values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
	}
	return max
}

func Sum(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum
}

// Mode returns the most frequent value; ties break toward the value seen
// first.
func Mode(values []string) (string, bool) {
	if len(values) == 0 {
		return "", false
	}
	counts := make(map[string]int, len(values))
	best := values[0]
	bestCount := 0
	for _, v := range values {
		counts[v]++
		if counts[v] > bestCount {
			best = v
			bestCount = counts[v]
		}
	}
	return best, true
}

// Round2 rounds to two decimal places, the precision every score in the
// system is reported at.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
