package fit_estimator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWeightGiBPerLayer(t *testing.T) {
	testCases := []struct {
		name     string
		given    ModelSpec
		expected float64
	}{
		{
			name:     "7B 4-bit 32 layers",
			given:    ModelSpec{ParametersBillion: 7, Precision: PrecisionQ4_K_M, Layers: 32},
			expected: 0.1018634,
		},
		{
			name:     "7B 16-bit 32 layers",
			given:    ModelSpec{ParametersBillion: 7, Precision: PrecisionF16, Layers: 32},
			expected: 0.4074536,
		},
		{
			name:     "unknown precision falls back to 16-bit",
			given:    ModelSpec{ParametersBillion: 7, Precision: "q9_x", Layers: 32},
			expected: 0.4074536,
		},
		{
			name:     "zero layers",
			given:    ModelSpec{ParametersBillion: 7, Precision: PrecisionQ4_K_M, Layers: 0},
			expected: 0,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.expected, float64(WeightGiBPerLayer(tc.given)), 1e-6)
		})
	}
}

func TestKVCacheGiBPerLayer(t *testing.T) {
	testCases := []struct {
		name     string
		given    ModelSpec
		expected float64
	}{
		{
			name:     "4096 context 16-bit",
			given:    ModelSpec{ContextLength: 4096, HiddenSize: 4096, BatchSize: 1, KVCachePrecision: PrecisionF16},
			expected: 0.0625,
		},
		{
			name:     "4096 context 8-bit batch 2",
			given:    ModelSpec{ContextLength: 4096, HiddenSize: 4096, BatchSize: 2, KVCachePrecision: PrecisionQ8_0},
			expected: 0.0625,
		},
		{
			name:     "zero hidden size",
			given:    ModelSpec{ContextLength: 4096, HiddenSize: 0, BatchSize: 1, KVCachePrecision: PrecisionF16},
			expected: 0,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, float64(KVCacheGiBPerLayer(tc.given)))
		})
	}
}

func TestActivationGiBPerLayer(t *testing.T) {
	m := ModelSpec{BatchSize: 4, HiddenSize: 4096}
	assert.Equal(t, float64(4*4096*16)/(1<<30), float64(ActivationGiBPerLayer(m)))

	m.HiddenSize = 0
	assert.Zero(t, ActivationGiBPerLayer(m))
}

func TestEstimateLayerFootprint(t *testing.T) {
	m := DefaultModelSpec()
	fp := EstimateLayerFootprint(m)
	assert.Equal(t, WeightGiBPerLayer(m), fp.Weight)
	assert.Equal(t, KVCacheGiBPerLayer(m), fp.KVCache)
	assert.Equal(t, ActivationGiBPerLayer(m), fp.Activation)
	assert.Equal(t, fp.Weight+fp.KVCache+fp.Activation, fp.Sum())

	s := fp.Scale(3)
	assert.Equal(t, fp.Weight*3, s.Weight)
	assert.Equal(t, fp.KVCache*3, s.KVCache)
	assert.Equal(t, fp.Activation*3, s.Activation)

	// No panic and no NaN on an empty model.
	assert.Equal(t, LayerFootprint{}, EstimateLayerFootprint(ModelSpec{}))
}
