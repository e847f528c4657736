package domain

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// QuantileMethod names the interpolation rule used to read a percentile off
// a pooled sample.
type QuantileMethod string

const (
	// QuantileLinear interpolates linearly between order statistics at rank
	// (n-1)*p/100. This is the numpy/R type 7 default.
	QuantileLinear QuantileMethod = "linear"

	// QuantileEmpirical is the inverse of the empirical CDF (no interpolation).
	QuantileEmpirical QuantileMethod = "empirical"

	// QuantileLinInterp interpolates the empirical CDF (R type 4).
	QuantileLinInterp QuantileMethod = "lininterp"
)

// ParseQuantileMethod validates a method name. Empty selects linear.
func ParseQuantileMethod(s string) (QuantileMethod, error) {
	switch QuantileMethod(s) {
	case "", QuantileLinear:
		return QuantileLinear, nil
	case QuantileEmpirical:
		return QuantileEmpirical, nil
	case QuantileLinInterp:
		return QuantileLinInterp, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrQuantileMethod, s)
	}
}

// Percentile returns the p-th percentile (0–100) of values, ignoring no-data.
// values is reordered in place. An empty or all-NaN input yields NaN.
func Percentile(values []float64, p float64, method QuantileMethod) float64 {
	valid := values[:0]
	for _, v := range values {
		if !IsNoData(v) {
			valid = append(valid, v)
		}
	}
	sort.Float64s(valid)
	return sortedPercentile(valid, p, method)
}

// sortedPercentile expects ascending, NaN-free input.
func sortedPercentile(sorted []float64, p float64, method QuantileMethod) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}
	switch method {
	case QuantileEmpirical:
		return stat.Quantile(p/100, stat.Empirical, sorted, nil)
	case QuantileLinInterp:
		return stat.Quantile(p/100, stat.LinInterp, sorted, nil)
	}

	h := float64(n-1) * p / 100
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sorted[n-1]
	}
	frac := h - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}
