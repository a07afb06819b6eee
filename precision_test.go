package fit_estimator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrecision_BitsPerWeight(t *testing.T) {
	testCases := []struct {
		given    Precision
		expected float64
	}{
		{PrecisionF32, 32},
		{PrecisionF16, 16},
		{PrecisionBF16, 16},
		{PrecisionQ8_0, 8},
		{PrecisionQ4_K_M, 4},
		{PrecisionQ2_K, 2},
		{"", DefaultBitsPerWeight},
		{"q7_z", DefaultBitsPerWeight},
	}
	for _, tc := range testCases {
		t.Run(tc.given.String(), func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.given.BitsPerWeight())
		})
	}
}

func TestPrecision_Downgrade(t *testing.T) {
	testCases := []struct {
		given    Precision
		expected Precision
		ok       bool
	}{
		{PrecisionF32, PrecisionF16, true},
		{PrecisionF16, PrecisionQ8_0, true},
		{PrecisionQ8_0, PrecisionQ6_K, true},
		{PrecisionQ6_K, PrecisionQ5_K_M, true},
		{PrecisionQ5_K_M, PrecisionQ4_K_M, true},
		{PrecisionQ4_K_M, PrecisionQ4_K_M, false},
		// Off the ladder.
		{PrecisionBF16, PrecisionQ4_K_M, true},
		{PrecisionFP8, PrecisionQ4_K_M, true},
		{PrecisionQ4_0, PrecisionQ4_0, false},
		{PrecisionQ2_K, PrecisionQ2_K, false},
		{"unknown-key", PrecisionQ4_K_M, true},
	}
	for _, tc := range testCases {
		t.Run(tc.given.String(), func(t *testing.T) {
			actual, ok := tc.given.Downgrade()
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.expected, actual)
		})
	}
}

func TestPrecision_DowngradeTerminates(t *testing.T) {
	for _, p := range Precisions() {
		c, steps := p, 0
		for {
			n, ok := c.Downgrade()
			if !ok {
				break
			}
			assert.Less(t, n.BitsPerWeight(), c.BitsPerWeight()+1e-9, "downgrade of %s must not add bits", c)
			c, steps = n, steps+1
			if !assert.LessOrEqual(t, steps, len(_PrecisionDowngradeLadder), "downgrade of %s loops", p) {
				break
			}
		}
	}
}

func TestParsePrecision(t *testing.T) {
	testCases := []struct {
		given    string
		expected Precision
	}{
		{"fp16", PrecisionF16},
		{"F16", PrecisionF16},
		{" q4_k_m ", PrecisionQ4_K_M},
		{"int4", PrecisionQ4_K_M},
		{"Q8", PrecisionQ8_0},
	}
	for _, tc := range testCases {
		t.Run(tc.given, func(t *testing.T) {
			actual, err := ParsePrecision(tc.given)
			if !assert.NoError(t, err) {
				return
			}
			assert.Equal(t, tc.expected, actual)
		})
	}

	_, err := ParsePrecision("q9")
	assert.Error(t, err)
	_, err = ParsePrecision("")
	assert.Error(t, err)
}

func TestParseKVCachePrecision(t *testing.T) {
	p, err := ParseKVCachePrecision("q8_0")
	if assert.NoError(t, err) {
		assert.Equal(t, PrecisionQ8_0, p)
	}

	_, err = ParseKVCachePrecision("q4_k_m")
	assert.Error(t, err)
}

func TestPrecisions(t *testing.T) {
	ps := Precisions()
	assert.Len(t, ps, len(_PrecisionTraits))
	assert.Equal(t, PrecisionF32, ps[0])
	assert.Equal(t, PrecisionQ2_K, ps[len(ps)-1])
}
