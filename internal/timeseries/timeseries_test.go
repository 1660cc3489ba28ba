package timeseries

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendEvictsOldest(t *testing.T) {
	s := New(3)
	for _, v := range []float64{1, 2, 3, 4, 5} {
		s.Append(v)
	}

	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []float64{3, 4, 5}, s.Last(3))
}

func TestLastIsDetached(t *testing.T) {
	s := New(5)
	s.Append(1)
	s.Append(2)

	window := s.Last(2)
	window[0] = 99
	assert.Equal(t, []float64{1, 2}, s.Last(2))
}

func TestLastClampsToLength(t *testing.T) {
	s := New(10)
	s.Append(7)

	assert.Equal(t, []float64{7}, s.Last(5))
	assert.Nil(t, s.Last(0))
	assert.Nil(t, New(3).Last(2))
}

func TestMeanAndStd(t *testing.T) {
	s := New(10)
	for _, v := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		s.Append(v)
	}

	require.InDelta(t, 5.0, s.Mean(8), 1e-9)
	// population std of the classic 2,4,4,4,5,5,7,9 sequence
	require.InDelta(t, 2.0, s.Std(8), 1e-9)

	assert.Zero(t, New(3).Mean(3))
	assert.Zero(t, New(3).Std(3))

	single := New(3)
	single.Append(42)
	assert.Zero(t, single.Std(3), "std needs two samples")
}
