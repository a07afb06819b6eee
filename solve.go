package fit_estimator

import (
	"strconv"

	"github.com/gpustack/fit-estimator-go/util/slicex"
)

// _ContextLengthLadder lists the context lengths a downgrade steps through,
// in ascending order, the first one is the shortest a downgrade can reach.
var _ContextLengthLadder = []int{2048, 4096, 8192, 16384, 32768, 65536, 131072}

// AdjustmentKind describes which setting a downgrade changed.
type AdjustmentKind string

// AdjustmentKind constants.
const (
	AdjustmentKindContextLength AdjustmentKind = "contextLength"
	AdjustmentKindPrecision     AdjustmentKind = "precision"
	AdjustmentKindMode          AdjustmentKind = "mode"
)

// Adjustment records one downgrade applied by the solver.
type Adjustment struct {
	// Kind is the changed setting.
	Kind AdjustmentKind `json:"kind"`
	// From is the value before the change.
	From string `json:"from"`
	// To is the value after the change.
	To string `json:"to"`
}

func (a Adjustment) String() string {
	return string(a.Kind) + ": " + a.From + " -> " + a.To
}

// SolveResult represents the result of solving a model against the inventory.
type SolveResult struct {
	// Model is the downgraded model, with the layers assigned.
	Model ModelSpec `json:"model"`
	// Fits is the flag to indicate whether the model fits into the limit,
	// true for fits.
	Fits bool `json:"fits"`
	// Exhausted is the flag to indicate whether the solver ran out of attempts or downgrades,
	// without fitting the model.
	Exhausted bool `json:"exhausted"`
	// Attempts is the number of attempts spent.
	Attempts int `json:"attempts"`
	// Adjustments is the downgrades applied, in order.
	Adjustments []Adjustment `json:"adjustments,omitempty"`
	// Required is the memory usage of the downgraded model.
	Required GiBytesScalar `json:"required"`
	// Limit is the memory available to the downgraded model.
	Limit GiBytesScalar `json:"limit"`
}

// RequiredCapacity returns the memory usage of all layers of the model.
func RequiredCapacity(m ModelSpec, opts ...EstimateOption) GiBytesScalar {
	o := newEstimateOptions(opts)
	m = m.Default()
	return requiredCapacity(m, o.footprint(m))
}

func requiredCapacity(m ModelSpec, fp LayerFootprint) GiBytesScalar {
	return fp.Sum() * GiBytesScalar(m.Layers)
}

// CapacityLimit returns the memory available to a model of the given execution mode.
//
// ExecutionModeGPUOnly is limited by the usable capacity of the devices,
// ExecutionModeCPUOnly is limited by the host memory left to the models,
// and ExecutionModeHybrid is limited by both.
func CapacityLimit(mode ExecutionMode, devices []DeviceSpec, host HostConfig, opts ...EstimateOption) GiBytesScalar {
	o := newEstimateOptions(opts)
	return capacityLimit(mode.Normalize(), devices, host.Default(), o)
}

func capacityLimit(mode ExecutionMode, devices []DeviceSpec, host HostConfig, o *_EstimateOptions) GiBytesScalar {
	var (
		vram = TotalUsableCapacity(devices, *o.DeviceReserved)
		ram  = GiBytesScalar((1 - *o.HostReservedFraction) * host.RAMGB)
	)
	switch mode {
	case ExecutionModeGPUOnly:
		return vram
	case ExecutionModeCPUOnly:
		return ram
	default:
		return vram + ram
	}
}

// Solve downgrades the model until it fits into the inventory,
// at most one downgrade per attempt, in the following order:
//
//  1. Step the context length down the ladder, until 2048.
//  2. Step the weight precision down the ladder, see Precision.Downgrade.
//  3. Switch ExecutionModeGPUOnly to ExecutionModeHybrid.
//
// Solve stops when the model fits, no downgrade is left,
// or the attempts run out, see WithSolveAttemptsMaximum.
// Then the layers of the downgraded model are assigned as PlanLayers does under WithStrictFit.
//
// A model that still does not fit is returned as well, flagged as Exhausted.
func Solve(m ModelSpec, devices []DeviceSpec, host HostConfig, opts ...EstimateOption) SolveResult {
	o := newEstimateOptions(opts)
	return solve(m.Default(), SortDevices(devices), host.Default(), o)
}

func solve(m ModelSpec, devices []DeviceSpec, host HostConfig, o *_EstimateOptions) (r SolveResult) {
	check := func() bool {
		r.Required = requiredCapacity(m, o.footprint(m))
		r.Limit = capacityLimit(m.Mode, devices, host, o)
		return r.Required <= r.Limit
	}

	for r.Attempts < *o.SolveAttemptsMaximum {
		r.Attempts++
		if r.Fits = check(); r.Fits {
			break
		}
		adj, ok := downgrade(&m)
		if !ok {
			break
		}
		r.Adjustments = append(r.Adjustments, adj)
	}
	if !r.Fits {
		// The last downgrade has not been checked yet.
		r.Fits = check()
	}
	r.Exhausted = !r.Fits

	so := *o
	so.StrictFit = true
	r.Model = planLayers(m, o.footprint(m).Sum(), devices, &so)
	return r
}

// downgrade applies the next available downgrade to the model,
// returns false if none is left.
func downgrade(m *ModelSpec) (Adjustment, bool) {
	if m.ContextLength > _ContextLengthLadder[0] {
		// Step to the largest rung below the current context length.
		c := _ContextLengthLadder[slicex.LowerBound(_ContextLengthLadder, m.ContextLength)-1]
		adj := Adjustment{
			Kind: AdjustmentKindContextLength,
			From: strconv.Itoa(m.ContextLength),
			To:   strconv.Itoa(c),
		}
		m.ContextLength = c
		return adj, true
	}

	if p, ok := m.Precision.Downgrade(); ok {
		adj := Adjustment{
			Kind: AdjustmentKindPrecision,
			From: m.Precision.String(),
			To:   p.String(),
		}
		m.Precision = p
		return adj, true
	}

	if m.Mode == ExecutionModeGPUOnly {
		adj := Adjustment{
			Kind: AdjustmentKindMode,
			From: ExecutionModeGPUOnly.String(),
			To:   ExecutionModeHybrid.String(),
		}
		m.Mode = ExecutionModeHybrid
		return adj, true
	}

	return Adjustment{}, false
}
