package fit_estimator

import (
	"math"
)

// DeviceUsage represents the usage of one device.
type DeviceUsage struct {
	// Device is the device.
	Device DeviceSpec `json:"device"`
	// Layers is the number of layers the device handles.
	Layers int `json:"layers"`
	// Used is the memory usage of the handled layers.
	Used GiBytesScalar `json:"used"`
	// Usable is the capacity available to the handled layers,
	// i.e. the capacity left after the reservation and the layers placed before.
	Usable GiBytesScalar `json:"usable"`
	// Overflow is the amount of Used exceeding the capacity available to it,
	// zero if the layers fit.
	Overflow GiBytesScalar `json:"overflow"`
}

// UsableCapacity returns the capacity of the device after the reservation,
// never negative, an unknown (NaN) capacity counts as empty.
func UsableCapacity(d DeviceSpec, reserved GiBytesScalar) GiBytesScalar {
	c := GiBytesScalar(d.CapacityGB) - reserved
	if math.IsNaN(float64(c)) || c <= 0 {
		return 0
	}
	return c
}

// TotalUsableCapacity returns the sum of the usable capacity of the devices.
func TotalUsableCapacity(devices []DeviceSpec, reserved GiBytesScalar) (t GiBytesScalar) {
	for i := range devices {
		t += UsableCapacity(devices[i], reserved)
	}
	return t
}

// FittingLayers returns the number of layers of the given footprint,
// that the devices hold without overflowing any of them.
//
// A non-positive footprint fits unboundedly, returns math.MaxInt.
func FittingLayers(footprint GiBytesScalar, devices []DeviceSpec, reserved GiBytesScalar) int {
	return fittingLayers(footprint, usableCapacities(SortDevices(devices), reserved))
}

// fittingLayers is FittingLayers over the given residual capacity of each device.
func fittingLayers(footprint GiBytesScalar, residual []GiBytesScalar) int {
	if math.IsNaN(float64(footprint)) {
		return 0
	}
	if footprint <= 0 {
		return math.MaxInt
	}
	var n float64
	for _, r := range residual {
		if r > 0 {
			n += math.Floor(float64(r / footprint))
		}
	}
	switch {
	case math.IsNaN(n):
		return 0
	case n >= math.MaxInt32:
		return math.MaxInt32
	}
	return int(n)
}

// PlanLayers returns a copy of the model with the layers assigned,
// according to the execution mode.
//
// ExecutionModeGPUOnly assigns all layers to the devices without clamping,
// so that an overflow stays visible.
// ExecutionModeHybrid assigns as many layers as the devices hold under WithStrictFit,
// otherwise keeps the given assignment, or splits evenly if none was given.
// Host memory is never checked here.
func PlanLayers(m ModelSpec, devices []DeviceSpec, opts ...EstimateOption) ModelSpec {
	o := newEstimateOptions(opts)
	m = m.Default()
	return planLayers(m, o.footprint(m).Sum(), devices, o)
}

func planLayers(m ModelSpec, footprint GiBytesScalar, devices []DeviceSpec, o *_EstimateOptions) ModelSpec {
	n := m.Layers
	switch m.Mode {
	case ExecutionModeGPUOnly:
		m.GPULayers, m.CPULayers = n, 0
	case ExecutionModeCPUOnly:
		m.GPULayers, m.CPULayers = 0, n
	default:
		switch {
		case o.StrictFit:
			m.GPULayers = min(n, FittingLayers(footprint, devices, *o.DeviceReserved))
		case m.layersUnset():
			m.GPULayers = n / 2
		default:
			m.GPULayers = min(max(m.GPULayers, 0), n)
		}
		m.CPULayers = n - m.GPULayers
	}
	return m
}

// AllocateDevices returns the usage of each device after placing the GPU layers of the model,
// in allocation priority order.
//
// The devices are filled first-fit,
// each device takes as many layers as its residual capacity holds before moving to the next one.
// Layers left when all devices are full are placed on the last device and reported as Overflow.
func AllocateDevices(m ModelSpec, devices []DeviceSpec, opts ...EstimateOption) []DeviceUsage {
	o := newEstimateOptions(opts)
	m = m.Default()
	ds := SortDevices(devices)
	us, _ := allocateDevices(o.footprint(m).Sum(), m.GPULayers, ds, usableCapacities(ds, *o.DeviceReserved))
	return us
}

func usableCapacities(sortedDevices []DeviceSpec, reserved GiBytesScalar) []GiBytesScalar {
	rs := make([]GiBytesScalar, len(sortedDevices))
	for i := range sortedDevices {
		rs[i] = UsableCapacity(sortedDevices[i], reserved)
	}
	return rs
}

// allocateDevices places the layers onto the sorted devices with the given residual capacity,
// returns the usage of each device and the residual capacity afterward.
func allocateDevices(footprint GiBytesScalar, layers int, sortedDevices []DeviceSpec, residual []GiBytesScalar) ([]DeviceUsage, []GiBytesScalar) {
	us := make([]DeviceUsage, len(sortedDevices))
	rs := make([]GiBytesScalar, len(sortedDevices))

	remain := max(layers, 0)
	for i := range sortedDevices {
		us[i].Device = sortedDevices[i]
		us[i].Usable = max(0, residual[i])
		rs[i] = residual[i]
		if remain == 0 {
			continue
		}
		take := remain
		if footprint > 0 {
			if q := math.Floor(float64(us[i].Usable / footprint)); q < float64(remain) {
				take = int(q)
			}
		}
		us[i].Layers = take
		us[i].Used = footprint * GiBytesScalar(take)
		rs[i] -= us[i].Used
		remain -= take
	}

	// Spill onto the last device.
	if l := len(us) - 1; remain > 0 && l >= 0 {
		spill := footprint * GiBytesScalar(remain)
		us[l].Layers += remain
		us[l].Used += spill
		rs[l] -= spill
	}
	for i := range us {
		us[i].Overflow = max(0, us[i].Used-us[i].Usable)
	}

	return us, rs
}
