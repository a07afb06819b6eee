package fit_estimator

import (
	"fmt"
	"math"
	"strings"
)

// ExecutionMode describes where the layers of a model run.
type ExecutionMode string

// ExecutionMode constants.
const (
	// ExecutionModeGPUOnly places every layer on the accelerators.
	ExecutionModeGPUOnly ExecutionMode = "gpuOnly"
	// ExecutionModeHybrid splits the layers between the accelerators and host memory.
	ExecutionModeHybrid ExecutionMode = "hybrid"
	// ExecutionModeCPUOnly places every layer in host memory.
	ExecutionModeCPUOnly ExecutionMode = "cpuOnly"
)

// Normalize returns the ExecutionMode,
// an unrecognized mode is treated as ExecutionModeHybrid.
func (m ExecutionMode) Normalize() ExecutionMode {
	switch m {
	case ExecutionModeGPUOnly, ExecutionModeCPUOnly:
		return m
	default:
		return ExecutionModeHybrid
	}
}

func (m ExecutionMode) String() string {
	return string(m.Normalize())
}

// ParseExecutionMode parses the given string to an ExecutionMode,
// case-insensitive, e.g. "gpuOnly", "gpu-only", "hybrid", "cpu".
func ParseExecutionMode(s string) (ExecutionMode, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "") {
	case "gpuonly", "gpu":
		return ExecutionModeGPUOnly, nil
	case "hybrid", "offload", "":
		return ExecutionModeHybrid, nil
	case "cpuonly", "cpu":
		return ExecutionModeCPUOnly, nil
	}
	return "", fmt.Errorf("invalid execution mode %q", s)
}

// Defaults of ModelSpec.
const (
	DefaultParametersBillion = 7
	DefaultContextLength     = 4096
	DefaultBatchSize         = 1
	DefaultHiddenSize        = 4096
	DefaultLayers            = 32
)

// ModelSpec represents one model configuration under evaluation.
//
// ModelSpec is a value,
// every estimation returns a new ModelSpec instead of mutating the given one.
type ModelSpec struct {
	// ID identifies the model within an inventory.
	ID string `json:"id" yaml:"id" toml:"id"`
	// ParametersBillion is the count of parameters in billions.
	ParametersBillion float64 `json:"parametersBillion" yaml:"parametersBillion" toml:"parametersBillion"`
	// Precision is the precision of the weights.
	Precision Precision `json:"precision" yaml:"precision" toml:"precision"`
	// KVCachePrecision is the precision of the KV cache.
	KVCachePrecision Precision `json:"kvCachePrecision" yaml:"kvCachePrecision" toml:"kvCachePrecision"`
	// ContextLength is the number of tokens the KV cache holds.
	ContextLength int `json:"contextLength" yaml:"contextLength" toml:"contextLength"`
	// BatchSize is the number of sequences decoded together.
	BatchSize int `json:"batchSize" yaml:"batchSize" toml:"batchSize"`
	// HiddenSize is the hidden (embedding) dimension.
	HiddenSize int `json:"hiddenSize" yaml:"hiddenSize" toml:"hiddenSize"`
	// Layers is the number of transformer layers.
	Layers int `json:"layers" yaml:"layers" toml:"layers"`
	// Mode is the execution mode.
	Mode ExecutionMode `json:"mode" yaml:"mode" toml:"mode"`
	// GPULayers is the number of layers assigned to the accelerators.
	GPULayers int `json:"gpuLayers" yaml:"gpuLayers" toml:"gpuLayers"`
	// CPULayers is the number of layers assigned to host memory.
	CPULayers int `json:"cpuLayers" yaml:"cpuLayers" toml:"cpuLayers"`
}

// DefaultModelSpec returns the ModelSpec a caller starts from.
func DefaultModelSpec() ModelSpec {
	return ModelSpec{
		ID:                "model",
		ParametersBillion: DefaultParametersBillion,
		Precision:         PrecisionQ4_K_M,
		KVCachePrecision:  PrecisionF16,
		ContextLength:     DefaultContextLength,
		BatchSize:         DefaultBatchSize,
		HiddenSize:        DefaultHiddenSize,
		Layers:            DefaultLayers,
		Mode:              ExecutionModeHybrid,
	}
}

// Default returns a copy of the ModelSpec,
// with the invalid or missing numeric fields replaced by the defaults.
//
// Zero HiddenSize and Layers are kept,
// the size formulas treat them as zero contributions.
func (m ModelSpec) Default() ModelSpec {
	if m.ParametersBillion < 0 || math.IsNaN(m.ParametersBillion) || math.IsInf(m.ParametersBillion, 0) {
		m.ParametersBillion = 0
	}
	if m.ContextLength < 1 {
		m.ContextLength = DefaultContextLength
	}
	if m.BatchSize < 1 {
		m.BatchSize = DefaultBatchSize
	}
	if m.HiddenSize < 0 {
		m.HiddenSize = 0
	}
	if m.Layers < 0 {
		m.Layers = 0
	}
	if m.GPULayers < 0 {
		m.GPULayers = 0
	}
	if m.CPULayers < 0 {
		m.CPULayers = 0
	}
	if m.Precision == "" {
		m.Precision = PrecisionF16
	}
	if m.KVCachePrecision == "" {
		m.KVCachePrecision = PrecisionF16
	}
	m.Mode = m.Mode.Normalize()
	return m
}

// Parameters returns the count of parameters.
func (m ModelSpec) Parameters() ParametersScalar {
	return ParametersScalarFromBillion(m.ParametersBillion)
}

// layersUnset returns true if neither layer count has been assigned yet.
func (m ModelSpec) layersUnset() bool {
	return m.GPULayers == 0 && m.CPULayers == 0 && m.Layers > 0
}
