// Package metrics computes latency statistics of the successful requests.
package metrics

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// ErrNoSuccessfulResponses indicates that there is no data to compute the metrics from.
const ErrNoSuccessfulResponses = Error("no successful responses")

// decimals is the number of decimal places of all the latencies.
const decimals = 3

// Error is a metrics error.
type Error string

// Error implements the error interface.
func (e Error) Error() string {
	return string(e)
}

// Summary is the latency statistics in milliseconds, rounded to 3 decimal places.
type Summary struct {
	Count  int
	Mean   float64
	Median float64
	P90    float64
}

// Compute computes the mean, the median and the 90th percentile of the durations in milliseconds.
//
// The 90th percentile uses the nearest-rank method: it is the value at index ceil(0.9 * n) - 1 of the sorted
// durations.
//
// If there is no duration, ErrNoSuccessfulResponses is returned with an empty summary. The input is not modified.
func Compute(durations []float64) (Summary, error) {
	n := len(durations)
	if n == 0 {
		return Summary{}, ErrNoSuccessfulResponses
	}

	sorted := make([]float64, n)
	copy(sorted, durations)
	sort.Float64s(sorted)

	var sum float64

	for _, d := range sorted {
		sum += d
	}

	var median float64

	if mid := n / 2; n%2 == 1 {
		median = sorted[mid]
	} else {
		median = (sorted[mid-1] + sorted[mid]) / 2
	}

	return Summary{
		Count:  n,
		Mean:   Round(sum / float64(n)),
		Median: Round(median),
		P90:    Round(sorted[p90Index(n)]),
	}, nil
}

// p90Index returns clamp(ceil(0.9 * n) - 1, 0, n - 1) without floating point errors.
func p90Index(n int) int {
	i := (9*n+9)/10 - 1 // nolint: gomnd // ceil(9n/10) - 1.

	switch {
	case i < 0:
		return 0

	case i > n-1:
		return n - 1
	}

	return i
}

// Round rounds a latency to 3 decimal places, halves are rounded away from zero.
//
// The rounding is done on the shortest decimal representation of v, so 0.5005 is a half and becomes 0.501 even though
// its binary value is slightly below 0.5005.
func Round(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}

	digits, ok := scaledDigits(math.Abs(v))
	if !ok { // Too large to be a latency, the binary rounding is good enough.
		p := math.Pow10(decimals)

		return math.Round(v*p) / p
	}

	r := float64(digits) / math.Pow10(decimals)

	if v < 0 {
		return -r
	}

	return r
}

// scaledDigits returns v * 10^decimals rounded half up, computed on the shortest decimal representation of v.
func scaledDigits(v float64) (uint64, bool) {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	intPart, fracPart := s, ""

	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
	}

	roundUp := len(fracPart) > decimals && fracPart[decimals] >= '5'

	if len(fracPart) > decimals {
		fracPart = fracPart[:decimals]
	} else {
		fracPart += strings.Repeat("0", decimals-len(fracPart))
	}

	n, err := strconv.ParseUint(intPart+fracPart, 10, 64)
	if err != nil || n == math.MaxUint64 {
		return 0, false
	}

	if roundUp {
		n++
	}

	return n, true
}

// Format rounds and formats a latency with exactly 3 decimal places.
func Format(v float64) string {
	return strconv.FormatFloat(Round(v), 'f', decimals, 64)
}
