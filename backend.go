package fit_estimator

import (
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/gpustack/fit-estimator-go/util/osx"
)

// BackendEnv is the environment variable selecting the numeric backend,
// "native" disables the vectorized backend.
const BackendEnv = "FIT_ESTIMATOR_BACKEND"

// Backend evaluates the size formulas for a batch of models.
//
// All backends must return bit-identical results for the same input.
type Backend interface {
	// Name returns the name of the backend.
	Name() string
	// LayerFootprints returns the per-layer footprint of each model, in the given order.
	LayerFootprints(ms []ModelSpec) []LayerFootprint
}

// NativeBackend evaluates the size formulas one model at a time.
type NativeBackend struct{}

func (NativeBackend) Name() string {
	return "native"
}

func (NativeBackend) LayerFootprints(ms []ModelSpec) []LayerFootprint {
	fps := make([]LayerFootprint, len(ms))
	for i := range ms {
		fps[i] = EstimateLayerFootprint(ms[i])
	}
	return fps
}

// VectorBackend evaluates the size formulas column-wise with gonum,
// it keeps the operand order of NativeBackend,
// so that both produce the same bits.
type VectorBackend struct{}

func (VectorBackend) Name() string {
	return "vector"
}

func (VectorBackend) LayerFootprints(ms []ModelSpec) []LayerFootprint {
	n := len(ms)
	if n == 0 {
		return []LayerFootprint{}
	}

	var (
		params  = make([]float64, n)
		bpw     = make([]float64, n)
		kvBpw   = make([]float64, n)
		layers  = make([]float64, n)
		ctx     = make([]float64, n)
		hidden  = make([]float64, n)
		batch   = make([]float64, n)
		weight  = make([]float64, n)
		kvCache = make([]float64, n)
		act     = make([]float64, n)
	)
	for i := range ms {
		params[i] = ms[i].ParametersBillion
		bpw[i] = ms[i].Precision.BytesPerWeight()
		kvBpw[i] = ms[i].KVCachePrecision.BytesPerWeight()
		layers[i] = float64(ms[i].Layers)
		if ms[i].Layers <= 0 {
			layers[i] = 1
		}
		ctx[i] = float64(ms[i].ContextLength)
		hidden[i] = float64(ms[i].HiddenSize)
		batch[i] = float64(ms[i].BatchSize)
	}

	// Weight.
	floats.ScaleTo(weight, _Billion, params)
	floats.Mul(weight, bpw)
	floats.Div(weight, layers)
	floats.Scale(1.0/_Gi, weight)

	// KV cache.
	floats.ScaleTo(kvCache, 2, ctx)
	floats.Mul(kvCache, hidden)
	floats.Mul(kvCache, batch)
	floats.Mul(kvCache, kvBpw)
	floats.Scale(1.0/_Gi, kvCache)

	// Activation.
	floats.MulTo(act, batch, hidden)
	floats.Scale(_ActivationOverheadFactor, act)
	floats.Scale(1.0/_Gi, act)

	fps := make([]LayerFootprint, n)
	for i := range ms {
		if ms[i].Layers > 0 {
			fps[i].Weight = GiBytesScalar(weight[i])
		}
		if ms[i].HiddenSize > 0 {
			fps[i].KVCache = GiBytesScalar(kvCache[i])
			fps[i].Activation = GiBytesScalar(act[i])
		}
	}
	return fps
}

// _BackendCanaries are the models a backend must agree on with NativeBackend before being used.
var _BackendCanaries = []ModelSpec{
	DefaultModelSpec(),
	{ParametersBillion: 70, Precision: PrecisionF16, KVCachePrecision: PrecisionQ8_0, ContextLength: 131072, BatchSize: 4, HiddenSize: 8192, Layers: 80},
	{ParametersBillion: 0.5, Precision: PrecisionQ2_K, KVCachePrecision: PrecisionF32, ContextLength: 1, BatchSize: 1, HiddenSize: 0, Layers: 0},
	{ParametersBillion: 13, Precision: "unknown", KVCachePrecision: PrecisionQ4_0, ContextLength: 10000, BatchSize: 3, HiddenSize: 5120, Layers: 40},
}

var loadBackend = sync.OnceValue(func() Backend {
	if osx.EnvEqualFold(BackendEnv, NativeBackend{}.Name()) {
		return NativeBackend{}
	}
	if !BackendAgrees(VectorBackend{}, _BackendCanaries) {
		return NativeBackend{}
	}
	return VectorBackend{}
})

// LoadBackend returns the numeric backend,
// the vectorized one if it is enabled and agrees with NativeBackend, otherwise NativeBackend.
//
// The backend is selected once, concurrent callers share the same selection.
func LoadBackend() Backend {
	return loadBackend()
}

// BackendAgrees returns true if the backend produces the same footprints as NativeBackend,
// for the given models.
func BackendAgrees(b Backend, ms []ModelSpec) bool {
	var (
		expected = NativeBackend{}.LayerFootprints(ms)
		actual   = b.LayerFootprints(ms)
	)
	if len(expected) != len(actual) {
		return false
	}
	for i := range expected {
		if expected[i] != actual[i] {
			return false
		}
	}
	return true
}
