package fit_estimator

import (
	"math"

	"github.com/gpustack/fit-estimator-go/util/slicex"
)

// Constants of the performance model.
const (
	// UnifiedMemoryMultiplier is the base multiplier of unified memory devices.
	UnifiedMemoryMultiplier = 1.4
	// ContextPenaltyMinimum is the floor of the context penalty.
	ContextPenaltyMinimum = 0.15

	_DualDeviceMultiplier      = 1.8
	_ExtraDeviceMultiplierStep = 0.5
	_ReferenceMemorySpeedMTs   = 4800
	_ContextPenaltyScale       = 10000
	_ContextPenaltyExponent    = 1.2
)

var (
	// _VRAMOverflowThresholds and _VRAMOverflowPenalties form the VRAM overflow penalty table,
	// a ratio in [_VRAMOverflowThresholds[i-1], _VRAMOverflowThresholds[i]) gets _VRAMOverflowPenalties[i].
	_VRAMOverflowThresholds = []float64{1.3, 1.8, 2.5}
	_VRAMOverflowPenalties  = []float64{0.5, 0.2, 0.1, 0.05}

	// _RAMOverflowThresholds and _RAMOverflowPenalties form the RAM overflow penalty table,
	// slight overflows are tolerated.
	_RAMOverflowThresholds = []float64{1.2, 1.5, 2.0}
	_RAMOverflowPenalties  = []float64{1.0, 0.5, 0.1, 0.01}

	// _CPUBaseMultipliers holds the CPU base multipliers per architecture,
	// indexed by the core tier: [0, 8), [8, 16), [16, ∞).
	_CPUBaseMultipliers = map[CPUArchClass][3]float64{
		CPUArchClassX86:   {0.2, 0.3, 0.4},
		CPUArchClassARM:   {0.15, 0.25, 0.35},
		CPUArchClassApple: {0.3, 0.45, 0.6},
	}
	_CPUCoreTiers = []int{8, 16}

	_SoftwareMultipliers = map[InferenceSoftware]float64{
		InferenceSoftwareLLaMACpp:  1.0,
		InferenceSoftwareOllama:    0.95,
		InferenceSoftwareLMStudio:  0.9,
		InferenceSoftwareVLLM:      1.2,
		InferenceSoftwareExLLaMAV2: 1.15,
	}

	_OSMultipliers = map[OSClass]float64{
		OSClassLinux:   1.0,
		OSClassMacOS:   0.95,
		OSClassWindows: 0.9,
	}
)

// PerformanceEstimate represents the relative inference throughput,
// decomposed into independent factors.
type PerformanceEstimate struct {
	// Base is the multiplier of the hardware class,
	// folded with the inference software and the operating system.
	Base MultiplierScalar `json:"base"`
	// VRAMPenalty is the penalty of overflowing the devices.
	VRAMPenalty MultiplierScalar `json:"vramPenalty"`
	// RAMPenalty is the penalty of overflowing the host memory.
	RAMPenalty MultiplierScalar `json:"ramPenalty"`
	// ContextPenalty is the penalty of the longest context.
	ContextPenalty MultiplierScalar `json:"contextPenalty"`
	// Composite is the product of all factors.
	Composite MultiplierScalar `json:"composite"`
}

// PerformanceInput holds the input of EstimatePerformance.
type PerformanceInput struct {
	// Devices is the devices handling layers.
	Devices []DeviceSpec
	// Host is the host.
	Host HostConfig
	// GPUActive indicates any layer runs on the devices.
	GPUActive bool
	// UsedVRAM and AvailableVRAM are the memory usage and the usable capacity of the devices.
	UsedVRAM, AvailableVRAM GiBytesScalar
	// UsedRAM and AvailableRAM are the memory usage and the size of the host memory.
	UsedRAM, AvailableRAM GiBytesScalar
	// MaxContextLength is the longest context length across the models.
	MaxContextLength int
}

// EstimatePerformance returns the composite performance multiplier and its factors.
func EstimatePerformance(in PerformanceInput) (e PerformanceEstimate) {
	e.Base = BaseMultiplier(in.Devices, in.Host, in.GPUActive)
	e.VRAMPenalty = VRAMOverflowPenalty(OverflowRatio(in.UsedVRAM, in.AvailableVRAM))
	e.RAMPenalty = RAMOverflowPenalty(OverflowRatio(in.UsedRAM, in.AvailableRAM))
	e.ContextPenalty = ContextPenalty(in.MaxContextLength)
	e.Composite = e.Base * e.VRAMPenalty * e.RAMPenalty * e.ContextPenalty
	return e
}

// BaseMultiplier returns the multiplier of the hardware class.
//
// Unified memory devices get UnifiedMemoryMultiplier,
// discrete devices scale with diminishing returns on the device count,
// and without active devices the CPU path is rated by architecture, core tier,
// thread efficiency and memory speed.
// The result is folded with the inference software and operating system multipliers.
func BaseMultiplier(devices []DeviceSpec, host HostConfig, gpuActive bool) MultiplierScalar {
	host = host.Default()

	var b float64
	switch {
	case !gpuActive || len(devices) == 0:
		b = cpuMultiplier(host)
	case anyUnified(devices):
		b = UnifiedMemoryMultiplier
	default:
		b = discreteMultiplier(len(devices))
	}
	return MultiplierScalar(b * _SoftwareMultipliers[host.Software] * _OSMultipliers[host.OS])
}

func anyUnified(devices []DeviceSpec) bool {
	for i := range devices {
		if devices[i].Unified {
			return true
		}
	}
	return false
}

func discreteMultiplier(n int) float64 {
	switch {
	case n <= 1:
		return 1
	case n == 2:
		return _DualDeviceMultiplier
	default:
		return _DualDeviceMultiplier + _ExtraDeviceMultiplierStep*float64(n-2)
	}
}

func cpuMultiplier(host HostConfig) float64 {
	return _CPUBaseMultipliers[host.CPUArch][slicex.UpperBound(_CPUCoreTiers, host.CPUCores)] *
		ThreadEfficiency(host.CPUCores, host.CPUThreads) *
		MemorySpeedFactor(host.MemorySpeedMTs)
}

// ThreadEfficiency returns min(1, cores×1.5/threads),
// 1 if the thread count is unknown.
func ThreadEfficiency(cores, threads int) float64 {
	if threads <= 0 {
		return 1
	}
	return min(1, float64(cores)*1.5/float64(threads))
}

// MemorySpeedFactor returns the host memory speed relative to DDR5-4800,
// clamped to [0.5, 1.5], 1 if the speed is unknown.
func MemorySpeedFactor(mts int) float64 {
	if mts <= 0 {
		return 1
	}
	return min(1.5, max(0.5, float64(mts)/_ReferenceMemorySpeedMTs))
}

// OverflowRatio returns used/available,
// an empty capacity gives 0 if nothing is used, otherwise +Inf.
func OverflowRatio(used, available GiBytesScalar) float64 {
	if available <= 0 {
		if used <= 0 {
			return 0
		}
		return math.Inf(1)
	}
	return float64(used / available)
}

// VRAMOverflowPenalty returns the penalty of the given VRAM overflow ratio,
// non-increasing in the ratio.
func VRAMOverflowPenalty(ratio float64) MultiplierScalar {
	if ratio <= 1 || math.IsNaN(ratio) {
		return 1
	}
	return MultiplierScalar(_VRAMOverflowPenalties[slicex.UpperBound(_VRAMOverflowThresholds, ratio)])
}

// RAMOverflowPenalty returns the penalty of the given RAM overflow ratio,
// non-increasing in the ratio.
func RAMOverflowPenalty(ratio float64) MultiplierScalar {
	if ratio <= 1 || math.IsNaN(ratio) {
		return 1
	}
	return MultiplierScalar(_RAMOverflowPenalties[slicex.UpperBound(_RAMOverflowThresholds, ratio)])
}

// ContextPenalty returns max(0.15, 1/(1+(ctx/10000)^1.2)),
// decaying continuously with the context length.
func ContextPenalty(maxContextLength int) MultiplierScalar {
	if maxContextLength <= 0 {
		return 1
	}
	p := 1 / (1 + math.Pow(float64(maxContextLength)/_ContextPenaltyScale, _ContextPenaltyExponent))
	return MultiplierScalar(max(ContextPenaltyMinimum, p))
}
