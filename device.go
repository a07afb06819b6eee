package fit_estimator

import (
	"math"
	"slices"
	"strings"
)

// DeviceSpec represents an accelerator in the inventory.
type DeviceSpec struct {
	// ID identifies the device within an inventory.
	ID string `json:"id" yaml:"id" toml:"id"`
	// Name is the display name.
	Name string `json:"name" yaml:"name" toml:"name"`
	// CapacityGB is the usable capacity in GiB, before the reservation.
	CapacityGB float64 `json:"capacityGB" yaml:"capacityGB" toml:"capacityGB"`
	// Position is the allocation priority, starts from 0,
	// lower position is filled first.
	Position int `json:"position" yaml:"position" toml:"position"`
	// Unified indicates the device shares one memory pool with the host,
	// e.g. Apple silicon.
	Unified bool `json:"unified,omitempty" yaml:"unified,omitempty" toml:"unified,omitempty"`
}

// SortDevices returns a copy of the given devices in allocation priority order,
// devices with the same position keep their given order.
func SortDevices(devices []DeviceSpec) []DeviceSpec {
	ds := slices.Clone(devices)
	slices.SortStableFunc(ds, func(a, b DeviceSpec) int {
		return a.Position - b.Position
	})
	return ds
}

// Types for HostConfig.
type (
	// OSClass is the class of the host operating system.
	OSClass string

	// StorageClass is the class of the storage the weights are loaded from.
	StorageClass string

	// CPUArchClass is the class of the host CPU architecture.
	CPUArchClass string

	// InferenceSoftware is the inference runtime serving the models.
	InferenceSoftware string
)

// OSClass constants.
const (
	OSClassLinux   OSClass = "linux"
	OSClassWindows OSClass = "windows"
	OSClassMacOS   OSClass = "macos"
)

// StorageClass constants.
const (
	StorageClassHDD     StorageClass = "hdd"
	StorageClassSATASSD StorageClass = "sata_ssd"
	StorageClassNVMe    StorageClass = "nvme"
)

// CPUArchClass constants.
const (
	CPUArchClassX86   CPUArchClass = "x86"
	CPUArchClassARM   CPUArchClass = "arm"
	CPUArchClassApple CPUArchClass = "apple"
)

// InferenceSoftware constants.
const (
	InferenceSoftwareLLaMACpp  InferenceSoftware = "llama.cpp"
	InferenceSoftwareOllama    InferenceSoftware = "ollama"
	InferenceSoftwareLMStudio  InferenceSoftware = "lmstudio"
	InferenceSoftwareVLLM      InferenceSoftware = "vllm"
	InferenceSoftwareExLLaMAV2 InferenceSoftware = "exllamav2"
)

// Normalize returns the OSClass, an unrecognized class is treated as OSClassLinux.
func (c OSClass) Normalize() OSClass {
	switch c := OSClass(strings.ToLower(string(c))); c {
	case OSClassWindows, OSClassMacOS:
		return c
	case "darwin", "mac", "osx":
		return OSClassMacOS
	case "win", "win32":
		return OSClassWindows
	default:
		return OSClassLinux
	}
}

// Normalize returns the StorageClass, an unrecognized class is treated as StorageClassNVMe.
func (c StorageClass) Normalize() StorageClass {
	switch c := StorageClass(strings.ToLower(string(c))); c {
	case StorageClassHDD, StorageClassSATASSD:
		return c
	case "ssd", "sata":
		return StorageClassSATASSD
	default:
		return StorageClassNVMe
	}
}

// Normalize returns the CPUArchClass, an unrecognized class is treated as CPUArchClassX86.
func (c CPUArchClass) Normalize() CPUArchClass {
	switch c := CPUArchClass(strings.ToLower(string(c))); c {
	case CPUArchClassARM, CPUArchClassApple:
		return c
	case "arm64", "aarch64":
		return CPUArchClassARM
	case "apple_silicon", "m1", "m2", "m3", "m4":
		return CPUArchClassApple
	default:
		return CPUArchClassX86
	}
}

// Normalize returns the InferenceSoftware,
// an unrecognized software is treated as InferenceSoftwareLLaMACpp.
func (s InferenceSoftware) Normalize() InferenceSoftware {
	switch s := InferenceSoftware(strings.ToLower(string(s))); s {
	case InferenceSoftwareOllama, InferenceSoftwareLMStudio, InferenceSoftwareVLLM, InferenceSoftwareExLLaMAV2:
		return s
	case "lm-studio", "lm_studio":
		return InferenceSoftwareLMStudio
	case "exllama", "exl2":
		return InferenceSoftwareExLLaMAV2
	default:
		return InferenceSoftwareLLaMACpp
	}
}

// HostConfig represents the host the accelerators are attached to.
//
// HostConfig only affects the overhead and the performance multiplier,
// never whether a model fits.
type HostConfig struct {
	// OS is the operating system class.
	OS OSClass `json:"os" yaml:"os" toml:"os"`
	// RAMGB is the size of the host memory in GiB.
	RAMGB float64 `json:"ramGB" yaml:"ramGB" toml:"ramGB"`
	// MemorySpeedMTs is the memory transfer rate in MT/s.
	MemorySpeedMTs int `json:"memorySpeedMTs" yaml:"memorySpeedMTs" toml:"memorySpeedMTs"`
	// MemoryCASLatency is the memory CAS latency in cycles, 0 for unknown.
	MemoryCASLatency int `json:"memoryCASLatency" yaml:"memoryCASLatency" toml:"memoryCASLatency"`
	// Storage is the storage class.
	Storage StorageClass `json:"storage" yaml:"storage" toml:"storage"`
	// CPUArch is the CPU architecture class.
	CPUArch CPUArchClass `json:"cpuArch" yaml:"cpuArch" toml:"cpuArch"`
	// CPUCores is the count of physical cores.
	CPUCores int `json:"cpuCores" yaml:"cpuCores" toml:"cpuCores"`
	// CPUThreads is the count of hardware threads.
	CPUThreads int `json:"cpuThreads" yaml:"cpuThreads" toml:"cpuThreads"`
	// Software is the inference runtime.
	Software InferenceSoftware `json:"software" yaml:"software" toml:"software"`
}

// DefaultHostConfig returns the HostConfig a caller starts from.
func DefaultHostConfig() HostConfig {
	return HostConfig{
		OS:             OSClassLinux,
		RAMGB:          32,
		MemorySpeedMTs: 4800,
		Storage:        StorageClassNVMe,
		CPUArch:        CPUArchClassX86,
		CPUCores:       8,
		CPUThreads:     16,
		Software:       InferenceSoftwareLLaMACpp,
	}
}

// Default returns a copy of the HostConfig,
// with the missing or invalid fields replaced by the ones of DefaultHostConfig,
// except MemoryCASLatency, which stays 0 for unknown.
func (h HostConfig) Default() HostConfig {
	d := DefaultHostConfig()
	h.OS = h.OS.Normalize()
	h.Storage = h.Storage.Normalize()
	h.CPUArch = h.CPUArch.Normalize()
	h.Software = h.Software.Normalize()
	if h.RAMGB <= 0 || math.IsNaN(h.RAMGB) || math.IsInf(h.RAMGB, 0) {
		h.RAMGB = d.RAMGB
	}
	if h.MemorySpeedMTs <= 0 {
		h.MemorySpeedMTs = d.MemorySpeedMTs
	}
	if h.MemoryCASLatency < 0 {
		h.MemoryCASLatency = 0
	}
	if h.CPUCores <= 0 {
		h.CPUCores = d.CPUCores
	}
	if h.CPUThreads <= 0 {
		h.CPUThreads = d.CPUThreads
	}
	return h
}
