package fit_estimator

import (
	"math"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
)

func TestModelSpec_Default(t *testing.T) {
	m := ModelSpec{
		ParametersBillion: math.NaN(),
		ContextLength:     -1,
		BatchSize:         0,
		HiddenSize:        -4096,
		Layers:            -1,
		GPULayers:         -2,
		CPULayers:         -3,
		Mode:              "turbo",
	}.Default()
	t.Log("\n", spew.Sdump(m), "\n")

	assert.Equal(t, ModelSpec{
		ParametersBillion: 0,
		Precision:         PrecisionF16,
		KVCachePrecision:  PrecisionF16,
		ContextLength:     DefaultContextLength,
		BatchSize:         DefaultBatchSize,
		Mode:              ExecutionModeHybrid,
	}, m)

	assert.Equal(t, DefaultModelSpec(), DefaultModelSpec().Default())
	assert.Equal(t, "7 B", DefaultModelSpec().Parameters().String())
}

func TestModelSpec_LayersUnset(t *testing.T) {
	m := DefaultModelSpec()
	assert.True(t, m.layersUnset())

	m.GPULayers = 3
	assert.False(t, m.layersUnset())

	m.GPULayers, m.CPULayers = 0, 32
	assert.False(t, m.layersUnset())

	m.CPULayers, m.Layers = 0, 0
	assert.False(t, m.layersUnset())
}

func TestExecutionMode_Normalize(t *testing.T) {
	testCases := []struct {
		given    ExecutionMode
		expected ExecutionMode
	}{
		{ExecutionModeGPUOnly, ExecutionModeGPUOnly},
		{ExecutionModeCPUOnly, ExecutionModeCPUOnly},
		{ExecutionModeHybrid, ExecutionModeHybrid},
		{"", ExecutionModeHybrid},
		{"GPUONLY", ExecutionModeHybrid},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expected, tc.given.Normalize(), "mode %q", tc.given)
	}
}

func TestSortDevices(t *testing.T) {
	ds := []DeviceSpec{
		{ID: "c", Position: 2},
		{ID: "a", Position: 0},
		{ID: "b1", Position: 1},
		{ID: "b2", Position: 1},
	}

	sorted := SortDevices(ds)
	ids := make([]string, len(sorted))
	for i := range sorted {
		ids[i] = sorted[i].ID
	}
	assert.Equal(t, []string{"a", "b1", "b2", "c"}, ids)
	assert.Equal(t, "c", ds[0].ID)
	assert.Empty(t, SortDevices(nil))
}

func TestHostConfig_Default(t *testing.T) {
	h := HostConfig{
		OS:             "Darwin",
		RAMGB:          math.Inf(1),
		MemorySpeedMTs: -1,
		Storage:        "SSD",
		CPUArch:        "aarch64",
		CPUCores:       -8,
		Software:       "LM-Studio",
	}.Default()

	assert.Equal(t, HostConfig{
		OS:             OSClassMacOS,
		RAMGB:          32,
		MemorySpeedMTs: 4800,
		Storage:        StorageClassSATASSD,
		CPUArch:        CPUArchClassARM,
		CPUCores:       8,
		CPUThreads:     16,
		Software:       InferenceSoftwareLMStudio,
	}, h)

	assert.Equal(t, DefaultHostConfig(), DefaultHostConfig().Default())
	assert.Equal(t, DefaultHostConfig(), HostConfig{}.Default())

	p := HostConfig{RAMGB: math.NaN(), CPUCores: 4, MemoryCASLatency: -1}.Default()
	assert.Equal(t, 32.0, p.RAMGB)
	assert.Equal(t, 4, p.CPUCores)
	assert.Equal(t, 16, p.CPUThreads)
	assert.Equal(t, 0, p.MemoryCASLatency)
}

func TestHostConfig_Default_Calculate(t *testing.T) {
	m := DefaultModelSpec()
	m.Mode = ExecutionModeGPUOnly
	ds := []DeviceSpec{{ID: "gpu0", CapacityGB: 24}}

	partial := Calculate([]ModelSpec{m}, ds, HostConfig{OS: OSClassLinux})
	full := Calculate([]ModelSpec{m}, ds, DefaultHostConfig())
	assert.Equal(t, GiBytesScalar(32), partial.RAM.Available)
	assert.Equal(t, MultiplierScalar(1), partial.Performance.RAMPenalty)
	assert.Equal(t, full.Performance, partial.Performance)

	m.Mode = ExecutionModeCPUOnly
	h := DefaultHostConfig()
	h.CPUCores = 0
	r := Calculate([]ModelSpec{m}, nil, h)
	assert.InDelta(t, 0.225, float64(r.Performance.Base), 1e-12)
	assert.Greater(t, float64(r.Performance.Composite), 0.0)
}

func TestInferenceSoftware_Normalize(t *testing.T) {
	testCases := []struct {
		given    InferenceSoftware
		expected InferenceSoftware
	}{
		{"ollama", InferenceSoftwareOllama},
		{"vLLM", InferenceSoftwareVLLM},
		{"exl2", InferenceSoftwareExLLaMAV2},
		{"llama.cpp", InferenceSoftwareLLaMACpp},
		{"koboldcpp", InferenceSoftwareLLaMACpp},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expected, tc.given.Normalize(), "software %q", tc.given)
	}
}

func TestParseExecutionMode(t *testing.T) {
	testCases := []struct {
		given    string
		expected ExecutionMode
	}{
		{"gpuOnly", ExecutionModeGPUOnly},
		{"gpu-only", ExecutionModeGPUOnly},
		{"CPU", ExecutionModeCPUOnly},
		{"", ExecutionModeHybrid},
		{" Hybrid ", ExecutionModeHybrid},
	}
	for _, tc := range testCases {
		actual, err := ParseExecutionMode(tc.given)
		if assert.NoError(t, err, tc.given) {
			assert.Equal(t, tc.expected, actual, tc.given)
		}
	}

	_, err := ParseExecutionMode("turbo")
	assert.Error(t, err)
}
