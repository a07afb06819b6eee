package main

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/gpustack/fit-estimator-go/util/json"

	. "github.com/gpustack/fit-estimator-go"
)

// Inventory is the hardware and the models to evaluate together.
type Inventory struct {
	// Name is the display name, defaults to the file name.
	Name string `json:"name" yaml:"name" toml:"name"`
	// Host is the host, unspecified fields keep DefaultHostConfig.
	Host HostConfig `json:"host" yaml:"host" toml:"host"`
	// Devices is the accelerators.
	Devices []DeviceSpec `json:"devices" yaml:"devices" toml:"devices"`
	// Models is the models under evaluation.
	Models []ModelSpec `json:"models" yaml:"models" toml:"models"`
}

// LoadInventory reads an inventory file based on its extension,
// supports .json, .yaml/.yml and .toml.
func LoadInventory(path string) (Inventory, error) {
	inv := Inventory{
		Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Host: DefaultHostConfig(),
	}
	if path == "" {
		return inv, errors.New("empty inventory path")
	}

	bs, err := os.ReadFile(path)
	if err != nil {
		return inv, fmt.Errorf("read inventory: %w", err)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(bs, &inv)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(bs, &inv)
	case ".toml":
		err = toml.Unmarshal(bs, &inv)
	default:
		return inv, fmt.Errorf("unsupported inventory extension: %s", ext)
	}
	if err != nil {
		return inv, fmt.Errorf("decode inventory %s: %w", path, err)
	}

	return inv, inv.Validate()
}

// Validate checks the inventory,
// rejecting unknown precisions and execution modes instead of falling back to the defaults.
func (inv Inventory) Validate() error {
	if len(inv.Models) == 0 {
		return fmt.Errorf("inventory %s: no models", inv.Name)
	}
	for i, m := range inv.Models {
		if m.Precision != "" {
			if _, err := ParsePrecision(string(m.Precision)); err != nil {
				return fmt.Errorf("inventory %s: model %d: %w", inv.Name, i, err)
			}
		}
		if m.KVCachePrecision != "" {
			if _, err := ParseKVCachePrecision(string(m.KVCachePrecision)); err != nil {
				return fmt.Errorf("inventory %s: model %d: %w", inv.Name, i, err)
			}
		}
		if _, err := ParseExecutionMode(string(m.Mode)); err != nil {
			return fmt.Errorf("inventory %s: model %d: %w", inv.Name, i, err)
		}
	}
	for i, d := range inv.Devices {
		if d.CapacityGB < 0 || math.IsNaN(d.CapacityGB) || math.IsInf(d.CapacityGB, 0) {
			return fmt.Errorf("inventory %s: device %d: invalid capacity %v", inv.Name, i, d.CapacityGB)
		}
	}
	return nil
}

// Normalize returns a copy of the inventory,
// with the precision aliases and the execution modes resolved.
func (inv Inventory) Normalize() Inventory {
	ms := make([]ModelSpec, len(inv.Models))
	for i, m := range inv.Models {
		if p, err := ParsePrecision(string(m.Precision)); err == nil {
			m.Precision = p
		}
		if p, err := ParseKVCachePrecision(string(m.KVCachePrecision)); err == nil {
			m.KVCachePrecision = p
		}
		if md, err := ParseExecutionMode(string(m.Mode)); err == nil {
			m.Mode = md
		}
		if m.ID == "" {
			m.ID = fmt.Sprintf("model-%d", i)
		}
		ms[i] = m
	}
	inv.Models = ms
	inv.Host = inv.Host.Default()
	return inv
}

// ParseDevice parses a device from "NAME=CAPACITY", e.g. "RTX 4090=24G",
// the position is the given index.
func ParseDevice(s string, position int) (DeviceSpec, error) {
	name, capacity, ok := strings.Cut(s, "=")
	if !ok {
		name, capacity = fmt.Sprintf("device-%d", position), s
	}
	name = strings.TrimSpace(name)
	c, err := ParseGiBytesScalar(strings.TrimSpace(capacity))
	if err != nil {
		return DeviceSpec{}, fmt.Errorf("parse device %q: %w", s, err)
	}
	return DeviceSpec{
		ID:         fmt.Sprintf("gpu%d", position),
		Name:       name,
		CapacityGB: float64(c),
		Position:   position,
	}, nil
}
