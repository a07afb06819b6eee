package slicex

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBounds(t *testing.T) {
	s := []float64{1.3, 1.8, 2.5}

	testCases := []struct {
		given         float64
		expectedUpper int
		expectedLower int
	}{
		{0, 0, 0},
		{1.3, 1, 0},
		{1.5, 1, 1},
		{1.8, 2, 1},
		{2.5, 3, 2},
		{9, 3, 3},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expectedUpper, UpperBound(s, tc.given), "upper bound of %v", tc.given)
		assert.Equal(t, tc.expectedLower, LowerBound(s, tc.given), "lower bound of %v", tc.given)
	}
}
