package fit_estimator

// _ActivationOverheadFactor stands in for the attention and MLP scratch buffers,
// counted as 4 float32 values per hidden unit.
const _ActivationOverheadFactor = 4 * 4

// LayerFootprint represents the memory usage of one transformer layer, in GiB.
type LayerFootprint struct {
	// Weight is the memory usage of the layer weights.
	Weight GiBytesScalar `json:"weight"`
	// KVCache is the memory usage of caching previous keys and values.
	KVCache GiBytesScalar `json:"kvCache"`
	// Activation is the memory usage of the computation scratch.
	Activation GiBytesScalar `json:"activation"`
}

// Sum returns the total memory usage of the layer.
func (f LayerFootprint) Sum() GiBytesScalar {
	return f.Weight + f.KVCache + f.Activation
}

// Scale returns the memory usage of n layers.
func (f LayerFootprint) Scale(n int) LayerFootprint {
	return LayerFootprint{
		Weight:     f.Weight * GiBytesScalar(n),
		KVCache:    f.KVCache * GiBytesScalar(n),
		Activation: f.Activation * GiBytesScalar(n),
	}
}

// WeightGiBPerLayer returns the weight memory usage of one layer,
// zero if the model has no layers.
func WeightGiBPerLayer(m ModelSpec) GiBytesScalar {
	if m.Layers <= 0 {
		return 0
	}
	return GiBytesScalar(m.ParametersBillion * _Billion * m.Precision.BytesPerWeight() / float64(m.Layers) / _Gi)
}

// KVCacheGiBPerLayer returns the KV cache memory usage of one layer,
// zero if the model has no hidden dimension.
func KVCacheGiBPerLayer(m ModelSpec) GiBytesScalar {
	if m.HiddenSize <= 0 {
		return 0
	}
	return GiBytesScalar(2 * float64(m.ContextLength) * float64(m.HiddenSize) * float64(m.BatchSize) * m.KVCachePrecision.BytesPerWeight() / _Gi)
}

// ActivationGiBPerLayer returns the activation memory usage of one layer,
// zero if the model has no hidden dimension.
func ActivationGiBPerLayer(m ModelSpec) GiBytesScalar {
	if m.HiddenSize <= 0 {
		return 0
	}
	return GiBytesScalar(float64(m.BatchSize) * float64(m.HiddenSize) * _ActivationOverheadFactor / _Gi)
}

// EstimateLayerFootprint returns the memory usage of one layer of the model.
func EstimateLayerFootprint(m ModelSpec) LayerFootprint {
	return LayerFootprint{
		Weight:     WeightGiBPerLayer(m),
		KVCache:    KVCacheGiBPerLayer(m),
		Activation: ActivationGiBPerLayer(m),
	}
}
