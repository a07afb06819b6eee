package fit_estimator

// Types for the calculation.
type (
	// CalculationResult represents the estimated result of running the models on the inventory.
	//
	// CalculationResult is derived, recalculate it after any change of the inputs.
	CalculationResult struct {
		// Models is the result of each model, in the given order.
		Models []ModelResult `json:"models"`
		// Totals is the memory usage summed across the models.
		Totals Totals `json:"totals"`
		// Devices is the usage of each device summed across the models,
		// in allocation priority order.
		Devices []DeviceUsage `json:"devices"`
		// VRAM is the memory usage of all devices.
		VRAM MemoryUsage `json:"vram"`
		// RAM is the memory usage of the host, including the overhead.
		RAM MemoryUsage `json:"ram"`
		// Overcapacity is the amount of layers' usage exceeding the usable capacity of the devices,
		// zero if all layers fit.
		Overcapacity GiBytesScalar `json:"overcapacity"`
		// Performance is the relative throughput of the inventory.
		Performance PerformanceEstimate `json:"performance"`
		// Backend is the name of the numeric backend in use.
		Backend string `json:"backend"`
	}

	// ModelResult represents the estimated result of one model.
	ModelResult struct {
		// Model is the model with the layers assigned,
		// downgraded if WithStrictFit is given.
		Model ModelSpec `json:"model"`
		// Footprint is the memory usage of one layer.
		Footprint LayerFootprint `json:"footprint"`
		// GPUWeight is the weight memory usage of the GPU layers.
		GPUWeight GiBytesScalar `json:"gpuWeight"`
		// CPUWeight is the weight memory usage of the CPU layers.
		CPUWeight GiBytesScalar `json:"cpuWeight"`
		// KVCache is the KV cache memory usage of all layers.
		KVCache GiBytesScalar `json:"kvCache"`
		// Activation is the activation memory usage of all layers.
		Activation GiBytesScalar `json:"activation"`
		// GPUUsage is the memory usage of the GPU layers.
		GPUUsage GiBytesScalar `json:"gpuUsage"`
		// CPUUsage is the memory usage of the CPU layers.
		CPUUsage GiBytesScalar `json:"cpuUsage"`
		// Devices is the usage of each device by this model.
		Devices []DeviceUsage `json:"devices"`
		// Overcapacity is the amount of GPUUsage exceeding the capacity left to this model.
		Overcapacity GiBytesScalar `json:"overcapacity"`
		// Solve is the result of the constraint solving,
		// only available with WithStrictFit.
		Solve *SolveResult `json:"solve,omitempty"`
	}

	// Totals represents the memory usage summed across the models.
	Totals struct {
		// GPUWeight is the weight memory usage on the devices.
		GPUWeight GiBytesScalar `json:"gpuWeight"`
		// CPUWeight is the weight memory usage in the host memory.
		CPUWeight GiBytesScalar `json:"cpuWeight"`
		// KVCache is the KV cache memory usage.
		KVCache GiBytesScalar `json:"kvCache"`
		// Activation is the activation memory usage.
		Activation GiBytesScalar `json:"activation"`
		// Overhead is the memory usage of the host operating system.
		Overhead GiBytesScalar `json:"overhead"`
	}

	// MemoryUsage represents the usage of a memory pool.
	MemoryUsage struct {
		// Used is the memory usage.
		Used GiBytesScalar `json:"used"`
		// Available is the size of the pool.
		Available GiBytesScalar `json:"available"`
		// Overflow is the amount of Used exceeding Available.
		Overflow GiBytesScalar `json:"overflow"`
	}
)

// Calculate estimates the memory usage and the relative performance of running the models on the inventory.
//
// Calculate assigns the layers of each model as PlanLayers does,
// or as Solve does with WithStrictFit,
// then places the GPU layers onto the devices model by model,
// each model taking the capacity left by the previous ones.
// With WithStrictFit, a hybrid model offloads only as many layers as that residual capacity holds.
func Calculate(models []ModelSpec, devices []DeviceSpec, host HostConfig, opts ...EstimateOption) (r CalculationResult) {
	o := newEstimateOptions(opts)
	ds, h := SortDevices(devices), host.Default()
	r.Backend = o.Backend.Name()

	// Layers.
	var (
		ms = make([]ModelSpec, len(models))
		ss = make([]*SolveResult, len(models))
	)
	for i := range models {
		m := models[i].Default()
		if o.StrictFit {
			sr := solve(m, ds, h, o)
			ms[i], ss[i] = sr.Model, &sr
			continue
		}
		ms[i] = planLayers(m, o.footprint(m).Sum(), ds, o)
	}

	// Models.
	fps := o.Backend.LayerFootprints(ms)
	rs := usableCapacities(ds, *o.DeviceReserved)
	r.Models = make([]ModelResult, len(ms))
	for i := range ms {
		if o.StrictFit && ms[i].Mode == ExecutionModeHybrid {
			// Fit into the capacity left by the previous models.
			ms[i].GPULayers = min(ms[i].Layers, fittingLayers(fps[i].Sum(), rs))
			ms[i].CPULayers = ms[i].Layers - ms[i].GPULayers
			ss[i].Model = ms[i]
		}

		mr := &r.Models[i]
		mr.Model, mr.Footprint, mr.Solve = ms[i], fps[i], ss[i]

		g, c := fps[i].Scale(ms[i].GPULayers), fps[i].Scale(ms[i].CPULayers)
		mr.GPUWeight, mr.CPUWeight = g.Weight, c.Weight
		mr.KVCache = g.KVCache + c.KVCache
		mr.Activation = g.Activation + c.Activation
		mr.GPUUsage, mr.CPUUsage = g.Sum(), c.Sum()

		var avail GiBytesScalar
		mr.Devices, rs = allocateDevices(fps[i].Sum(), ms[i].GPULayers, ds, rs)
		for j := range mr.Devices {
			avail += mr.Devices[j].Usable
		}
		mr.Overcapacity = max(0, mr.GPUUsage-avail)
	}

	r.summarize(ds, h, o)
	return r
}

// summarize folds the model results into the totals, the device usages and the performance.
func (r *CalculationResult) summarize(sortedDevices []DeviceSpec, host HostConfig, o *_EstimateOptions) {
	var (
		gpuLayers int
		maxCtx    int
		dus       = make([][]DeviceUsage, len(r.Models))
	)
	for i := range r.Models {
		mr := &r.Models[i]
		r.Totals.GPUWeight += mr.GPUWeight
		r.Totals.CPUWeight += mr.CPUWeight
		r.Totals.KVCache += mr.KVCache
		r.Totals.Activation += mr.Activation
		r.VRAM.Used += mr.GPUUsage
		r.RAM.Used += mr.CPUUsage
		gpuLayers += mr.Model.GPULayers
		maxCtx = max(maxCtx, mr.Model.ContextLength)
		dus[i] = mr.Devices
	}
	r.Totals.Overhead = HostOverhead(host)

	// Devices.
	r.Devices = MergeDeviceUsages(sortedDevices, *o.DeviceReserved, dus...)

	// VRAM.
	r.VRAM.Available = TotalUsableCapacity(sortedDevices, *o.DeviceReserved)
	r.VRAM.Overflow = max(0, r.VRAM.Used-r.VRAM.Available)
	r.Overcapacity = r.VRAM.Overflow

	// RAM.
	r.RAM.Used += r.Totals.Overhead
	r.RAM.Available = GiBytesScalar(host.RAMGB)
	r.RAM.Overflow = max(0, r.RAM.Used-r.RAM.Available)

	// Performance.
	var active []DeviceSpec
	for i := range r.Devices {
		if r.Devices[i].Layers > 0 {
			active = append(active, r.Devices[i].Device)
		}
	}
	r.Performance = EstimatePerformance(PerformanceInput{
		Devices:          active,
		Host:             host,
		GPUActive:        gpuLayers > 0,
		UsedVRAM:         r.VRAM.Used,
		AvailableVRAM:    r.VRAM.Available,
		UsedRAM:          r.RAM.Used,
		AvailableRAM:     r.RAM.Available,
		MaxContextLength: maxCtx,
	})
}

// MergeDeviceUsages sums the given per-model device usages into one usage per device.
//
// Every usage list must be aligned with the sorted devices,
// as the ones in ModelResult are.
func MergeDeviceUsages(sortedDevices []DeviceSpec, reserved GiBytesScalar, usages ...[]DeviceUsage) []DeviceUsage {
	us := make([]DeviceUsage, len(sortedDevices))
	for i := range sortedDevices {
		us[i].Device = sortedDevices[i]
		us[i].Usable = UsableCapacity(sortedDevices[i], reserved)
	}
	for _, mus := range usages {
		for i := 0; i < len(mus) && i < len(us); i++ {
			us[i].Layers += mus[i].Layers
			us[i].Used += mus[i].Used
		}
	}
	for i := range us {
		us[i].Overflow = max(0, us[i].Used-us[i].Usable)
	}
	return us
}

// HostOverhead returns the memory usage of the host operating system,
// an additive base plus a proportion of the host memory per OS class.
func HostOverhead(host HostConfig) GiBytesScalar {
	host = host.Default()
	switch host.OS {
	case OSClassWindows:
		return GiBytesScalar(2.0 + 0.05*host.RAMGB)
	case OSClassMacOS:
		return GiBytesScalar(1.5 + 0.04*host.RAMGB)
	default:
		return GiBytesScalar(0.5 + 0.02*host.RAMGB)
	}
}
