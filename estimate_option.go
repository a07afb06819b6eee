package fit_estimator

import (
	"github.com/gpustack/fit-estimator-go/util/ptr"
)

// Defaults of the estimation.
const (
	// DeviceReservedGiB is the memory reserved on every device before computing its usable capacity.
	DeviceReservedGiB = 0.5
	// HostReservedFraction is the fraction of the host memory reserved for the operating system.
	HostReservedFraction = 0.2
	// SolveAttemptsMaximum is the maximum number of attempts of one constraint solving.
	SolveAttemptsMaximum = 10
)

type (
	_EstimateOptions struct {
		StrictFit            bool
		DeviceReserved       *GiBytesScalar
		HostReservedFraction *float64
		SolveAttemptsMaximum *int
		Backend              Backend
	}

	// EstimateOption is the options for the estimation.
	EstimateOption func(*_EstimateOptions)
)

// WithStrictFit forbids overloading the inventory,
// a model that does not fit is downgraded until it fits or no downgrade is left.
func WithStrictFit() EstimateOption {
	return func(o *_EstimateOptions) {
		o.StrictFit = true
	}
}

// WithDeviceReservation sets the memory reserved on every device, in GiB.
func WithDeviceReservation(gib float64) EstimateOption {
	return func(o *_EstimateOptions) {
		if gib < 0 {
			return
		}
		o.DeviceReserved = ptr.To(GiBytesScalar(gib))
	}
}

// WithHostReservedFraction sets the fraction of the host memory reserved for the operating system,
// the fraction must be in the range of [0, 1).
func WithHostReservedFraction(f float64) EstimateOption {
	return func(o *_EstimateOptions) {
		if f < 0 || f >= 1 {
			return
		}
		o.HostReservedFraction = &f
	}
}

// WithSolveAttemptsMaximum sets the maximum number of attempts of one constraint solving.
func WithSolveAttemptsMaximum(n int) EstimateOption {
	return func(o *_EstimateOptions) {
		if n <= 0 {
			return
		}
		o.SolveAttemptsMaximum = &n
	}
}

// WithBackend sets the numeric backend evaluating the size formulas,
// default is the one returned by LoadBackend.
func WithBackend(b Backend) EstimateOption {
	return func(o *_EstimateOptions) {
		if b == nil {
			return
		}
		o.Backend = b
	}
}

func newEstimateOptions(opts []EstimateOption) *_EstimateOptions {
	var o _EstimateOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.DeviceReserved == nil {
		o.DeviceReserved = ptr.To(GiBytesScalar(DeviceReservedGiB))
	}
	if o.HostReservedFraction == nil {
		o.HostReservedFraction = ptr.To(HostReservedFraction)
	}
	if o.SolveAttemptsMaximum == nil {
		o.SolveAttemptsMaximum = ptr.To(SolveAttemptsMaximum)
	}
	if o.Backend == nil {
		o.Backend = LoadBackend()
	}
	return &o
}

// footprint returns the per-layer footprint of the model through the backend.
func (o *_EstimateOptions) footprint(m ModelSpec) LayerFootprint {
	return o.Backend.LayerFootprints([]ModelSpec{m})[0]
}
