// Package timeseries keeps bounded windows of float samples for the
// moving-average and volatility math the planners run on demand and
// price observations.
package timeseries

import "math"

// Series is a capacity-bounded, append-only sample window. Appending
// past capacity evicts the oldest sample. Not safe for concurrent use;
// callers hold their own lock.
type Series struct {
	limit int
	data  []float64
}

// New builds a series holding at most limit samples.
func New(limit int) *Series {
	if limit <= 0 {
		limit = 1
	}
	return &Series{limit: limit}
}

// Append adds one sample.
func (s *Series) Append(v float64) {
	s.data = append(s.data, v)
	if len(s.data) > s.limit {
		s.data = s.data[len(s.data)-s.limit:]
	}
}

// Len is the number of samples currently held.
func (s *Series) Len() int {
	return len(s.data)
}

// Last returns up to n most recent samples, oldest first, detached
// from the series.
func (s *Series) Last(n int) []float64 {
	if n <= 0 || len(s.data) == 0 {
		return nil
	}
	if n > len(s.data) {
		n = len(s.data)
	}
	out := make([]float64, n)
	copy(out, s.data[len(s.data)-n:])
	return out
}

// Mean averages the n most recent samples. Zero when empty.
func (s *Series) Mean(n int) float64 {
	window := s.Last(n)
	if len(window) == 0 {
		return 0
	}
	var sum float64
	for _, v := range window {
		sum += v
	}
	return sum / float64(len(window))
}

// Std is the population standard deviation of the n most recent
// samples. Zero with fewer than two samples.
func (s *Series) Std(n int) float64 {
	window := s.Last(n)
	if len(window) < 2 {
		return 0
	}
	var sum float64
	for _, v := range window {
		sum += v
	}
	mean := sum / float64(len(window))

	var sq float64
	for _, v := range window {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(window)))
}
