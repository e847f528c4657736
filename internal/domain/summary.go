package domain

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Summary describes the valid pixels of an output grid.
type Summary struct {
	Valid  int     `json:"valid" msgpack:"valid"`
	NoData int     `json:"nodata" msgpack:"nodata"`
	Min    float64 `json:"min" msgpack:"min"`
	Max    float64 `json:"max" msgpack:"max"`
	Mean   float64 `json:"mean" msgpack:"mean"`
}

// Summarize computes min/max/mean over valid pixels. Statistics are NaN when
// no pixel is valid.
func Summarize(g Grid) Summary {
	valid := make([]float64, 0, len(g.Values))
	for _, v := range g.Values {
		if !IsNoData(v) {
			valid = append(valid, v)
		}
	}
	s := Summary{Valid: len(valid), NoData: len(g.Values) - len(valid)}
	if len(valid) == 0 {
		s.Min, s.Max, s.Mean = math.NaN(), math.NaN(), math.NaN()
		return s
	}
	s.Min = floats.Min(valid)
	s.Max = floats.Max(valid)
	s.Mean = floats.Sum(valid) / float64(len(valid))
	return s
}
