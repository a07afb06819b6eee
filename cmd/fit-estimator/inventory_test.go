package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/gpustack/fit-estimator-go"
)

const (
	testInventoryJSON = `{
  "host": {"os": "windows", "ramGB": 64},
  "devices": [
    {"id": "gpu1", "name": "RTX 3060", "capacityGB": 12, "position": 1},
    {"id": "gpu0", "name": "RTX 4090", "capacityGB": 24, "position": 0}
  ],
  "models": [
    {"id": "llama", "parametersBillion": 8, "precision": "q4", "kvCachePrecision": "f16", "contextLength": 8192, "hiddenSize": 4096, "layers": 32, "mode": "gpu-only"}
  ]
}`
	testInventoryYAML = `
host:
  os: windows
  ramGB: 64
devices:
  - id: gpu1
    name: RTX 3060
    capacityGB: 12
    position: 1
  - id: gpu0
    name: RTX 4090
    capacityGB: 24
    position: 0
models:
  - id: llama
    parametersBillion: 8
    precision: q4
    kvCachePrecision: f16
    contextLength: 8192
    hiddenSize: 4096
    layers: 32
    mode: gpu-only
`
	testInventoryTOML = `
[host]
os = "windows"
ramGB = 64.0

[[devices]]
id = "gpu1"
name = "RTX 3060"
capacityGB = 12.0
position = 1

[[devices]]
id = "gpu0"
name = "RTX 4090"
capacityGB = 24.0
position = 0

[[models]]
id = "llama"
parametersBillion = 8.0
precision = "q4"
kvCachePrecision = "f16"
contextLength = 8192
hiddenSize = 4096
layers = 32
mode = "gpu-only"
`
)

func writeInventory(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadInventory(t *testing.T) {
	testCases := []struct {
		name    string
		content string
	}{
		{"workstation.json", testInventoryJSON},
		{"workstation.yaml", testInventoryYAML},
		{"workstation.toml", testInventoryTOML},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			inv, err := LoadInventory(writeInventory(t, tc.name, tc.content))
			if !assert.NoError(t, err) {
				return
			}
			inv = inv.Normalize()

			assert.Equal(t, "workstation", inv.Name)
			assert.Equal(t, OSClassWindows, inv.Host.OS)
			assert.Equal(t, 64.0, inv.Host.RAMGB)
			// Unspecified host fields keep the defaults.
			assert.Equal(t, DefaultHostConfig().CPUCores, inv.Host.CPUCores)
			assert.Equal(t, DefaultHostConfig().Software, inv.Host.Software)

			if assert.Len(t, inv.Devices, 2) {
				assert.Equal(t, "RTX 3060", inv.Devices[0].Name)
				assert.Equal(t, 24.0, inv.Devices[1].CapacityGB)
			}
			if assert.Len(t, inv.Models, 1) {
				m := inv.Models[0]
				assert.Equal(t, "llama", m.ID)
				assert.Equal(t, 8.0, m.ParametersBillion)
				assert.Equal(t, PrecisionQ4_K_M, m.Precision)
				assert.Equal(t, PrecisionF16, m.KVCachePrecision)
				assert.Equal(t, ExecutionModeGPUOnly, m.Mode)
				assert.Equal(t, 8192, m.ContextLength)
			}

			r := Calculate(inv.Models, inv.Devices, inv.Host)
			if assert.Len(t, r.Devices, 2) {
				assert.Equal(t, "gpu0", r.Devices[0].Device.ID)
				assert.Equal(t, 32, r.Devices[0].Layers)
			}
		})
	}
}

func TestLoadInventory_Invalid(t *testing.T) {
	testCases := []struct {
		name    string
		content string
	}{
		{"unknown.ini", "[host]"},
		{"broken.json", "{"},
		{"empty.yaml", "devices: []"},
		{"precision.yaml", "models:\n  - precision: q9\n"},
		{"kv.yaml", "models:\n  - kvCachePrecision: q6_k\n"},
		{"mode.yaml", "models:\n  - mode: turbo\n"},
		{"capacity.yaml", "models:\n  - id: a\ndevices:\n  - capacityGB: -1\n"},
		{"nan.yaml", "models:\n  - id: a\ndevices:\n  - capacityGB: .nan\n"},
		{"inf.yaml", "models:\n  - id: a\ndevices:\n  - capacityGB: .inf\n"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadInventory(writeInventory(t, tc.name, tc.content))
			assert.Error(t, err)
		})
	}

	_, err := LoadInventory(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestParseDevice(t *testing.T) {
	testCases := []struct {
		given    string
		position int
		expected DeviceSpec
	}{
		{"RTX 4090=24G", 0, DeviceSpec{ID: "gpu0", Name: "RTX 4090", CapacityGB: 24, Position: 0}},
		{" A100 = 80GiB ", 1, DeviceSpec{ID: "gpu1", Name: "A100", CapacityGB: 80, Position: 1}},
		{"12", 2, DeviceSpec{ID: "gpu2", Name: "device-2", CapacityGB: 12, Position: 2}},
		{"T4=16384M", 3, DeviceSpec{ID: "gpu3", Name: "T4", CapacityGB: 16, Position: 3}},
	}
	for _, tc := range testCases {
		t.Run(tc.given, func(t *testing.T) {
			actual, err := ParseDevice(tc.given, tc.position)
			if assert.NoError(t, err) {
				assert.Equal(t, tc.expected, actual)
			}
		})
	}

	_, err := ParseDevice("RTX 4090=lots", 0)
	assert.Error(t, err)
}
