package fit_estimator

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/exp/maps"
)

// Types for Precision.
type (
	// Precision is a named weight or KV cache encoding,
	// e.g. a float width or a quantization level.
	Precision string

	// PrecisionTrait holds the trait of a Precision.
	PrecisionTrait struct {
		BitsPerWeight float64
		Quantized     bool
		// KVCache indicates the precision is allowed for the KV cache.
		KVCache bool
	}
)

// Precision constants.
const (
	PrecisionF32    Precision = "fp32"
	PrecisionF16    Precision = "fp16"
	PrecisionBF16   Precision = "bf16"
	PrecisionFP8    Precision = "fp8"
	PrecisionQ8_0   Precision = "q8_0"
	PrecisionQ6_K   Precision = "q6_k"
	PrecisionQ5_K_M Precision = "q5_k_m"
	PrecisionQ4_K_M Precision = "q4_k_m"
	PrecisionQ4_0   Precision = "q4_0"
	PrecisionQ3_K_M Precision = "q3_k_m"
	PrecisionQ2_K   Precision = "q2_k"
)

// DefaultBitsPerWeight is the bits per weight of an unrecognized Precision.
const DefaultBitsPerWeight = 16

// _PrecisionTraits is a table of PrecisionTrait for Precision.
var _PrecisionTraits = map[Precision]PrecisionTrait{
	PrecisionF32:    {BitsPerWeight: 32, KVCache: true},
	PrecisionF16:    {BitsPerWeight: 16, KVCache: true},
	PrecisionBF16:   {BitsPerWeight: 16, KVCache: true},
	PrecisionFP8:    {BitsPerWeight: 8},
	PrecisionQ8_0:   {BitsPerWeight: 8, Quantized: true, KVCache: true},
	PrecisionQ6_K:   {BitsPerWeight: 6, Quantized: true},
	PrecisionQ5_K_M: {BitsPerWeight: 5, Quantized: true},
	PrecisionQ4_K_M: {BitsPerWeight: 4, Quantized: true},
	PrecisionQ4_0:   {BitsPerWeight: 4, Quantized: true, KVCache: true},
	PrecisionQ3_K_M: {BitsPerWeight: 3, Quantized: true},
	PrecisionQ2_K:   {BitsPerWeight: 2, Quantized: true},
}

// _PrecisionAliases maps the spellings used by common runtimes to a Precision.
var _PrecisionAliases = map[string]Precision{
	"f32":     PrecisionF32,
	"float32": PrecisionF32,
	"f16":     PrecisionF16,
	"float16": PrecisionF16,
	"half":    PrecisionF16,
	"int8":    PrecisionQ8_0,
	"q8":      PrecisionQ8_0,
	"q6":      PrecisionQ6_K,
	"q5":      PrecisionQ5_K_M,
	"q5_k":    PrecisionQ5_K_M,
	"int4":    PrecisionQ4_K_M,
	"q4":      PrecisionQ4_K_M,
	"q4_k":    PrecisionQ4_K_M,
	"q3":      PrecisionQ3_K_M,
	"q3_k":    PrecisionQ3_K_M,
	"q2":      PrecisionQ2_K,
}

// _PrecisionDowngradeLadder lists the weight precisions from the richest to the cheapest,
// the last one is the cheapest level a downgrade can reach.
var _PrecisionDowngradeLadder = []Precision{
	PrecisionF32,
	PrecisionF16,
	PrecisionQ8_0,
	PrecisionQ6_K,
	PrecisionQ5_K_M,
	PrecisionQ4_K_M,
}

// Trait returns the PrecisionTrait of the Precision.
func (p Precision) Trait() (PrecisionTrait, bool) {
	pt, ok := _PrecisionTraits[p]
	return pt, ok
}

// IsValid returns true if the Precision is recognized.
func (p Precision) IsValid() bool {
	_, ok := _PrecisionTraits[p]
	return ok
}

// BitsPerWeight returns the bits per weight of the Precision,
// or DefaultBitsPerWeight if the Precision is unrecognized.
func (p Precision) BitsPerWeight() float64 {
	if pt, ok := _PrecisionTraits[p]; ok {
		return pt.BitsPerWeight
	}
	return DefaultBitsPerWeight
}

// BytesPerWeight returns the bytes per weight of the Precision.
func (p Precision) BytesPerWeight() float64 {
	return p.BitsPerWeight() / 8
}

// IsCheapest returns true if the Precision is the cheapest level of the downgrade ladder.
func (p Precision) IsCheapest() bool {
	return p == _PrecisionDowngradeLadder[len(_PrecisionDowngradeLadder)-1]
}

// Downgrade returns the next cheaper Precision on the downgrade ladder,
// and false if no downgrade is available.
//
// A Precision off the ladder jumps to the cheapest level,
// but only when that lowers the bits per weight.
func (p Precision) Downgrade() (Precision, bool) {
	cheapest := _PrecisionDowngradeLadder[len(_PrecisionDowngradeLadder)-1]
	switch idx := slices.Index(_PrecisionDowngradeLadder, p); {
	case idx == len(_PrecisionDowngradeLadder)-1:
		return p, false
	case idx >= 0:
		return _PrecisionDowngradeLadder[idx+1], true
	default:
		if cheapest.BitsPerWeight() < p.BitsPerWeight() {
			return cheapest, true
		}
		return p, false
	}
}

func (p Precision) String() string {
	if p == "" {
		return "unknown"
	}
	return string(p)
}

// ParsePrecision parses the Precision from the string,
// the given string is case-insensitive and accepts the common aliases.
func ParsePrecision(s string) (Precision, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", errors.New("invalid Precision")
	}
	if p := Precision(s); p.IsValid() {
		return p, nil
	}
	if p, ok := _PrecisionAliases[s]; ok {
		return p, nil
	}
	return "", fmt.Errorf("unknown precision %q, select from %v", s, Precisions())
}

// ParseKVCachePrecision is similar to ParsePrecision,
// but only accepts the precisions allowed for the KV cache.
func ParseKVCachePrecision(s string) (Precision, error) {
	p, err := ParsePrecision(s)
	if err != nil {
		return "", err
	}
	if !_PrecisionTraits[p].KVCache {
		return "", fmt.Errorf("precision %q is not allowed for the KV cache", p)
	}
	return p, nil
}

// Precisions returns all recognized precisions,
// sorted from the richest to the cheapest.
func Precisions() []Precision {
	ps := maps.Keys(_PrecisionTraits)
	slices.SortStableFunc(ps, func(a, b Precision) int {
		if ba, bb := a.BitsPerWeight(), b.BitsPerWeight(); ba != bb {
			if ba > bb {
				return -1
			}
			return 1
		}
		return strings.Compare(string(a), string(b))
	})
	return ps
}
