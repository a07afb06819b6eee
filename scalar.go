package fit_estimator

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

const (
	_Ki = 1 << ((iota + 1) * 10)
	_Mi
	_Gi
	_Ti
	_Pi
)

const (
	_K = 1e3
	_M = 1e6
	_G = 1e9
	_T = 1e12
	_P = 1e15
)

const (
	_Thousand    = 1e3
	_Million     = 1e6
	_Billion     = 1e9
	_Trillion    = 1e12
	_Quadrillion = 1e15
)

type (
	// GiBytesScalar is the scalar for memory sizes in GiB (1024^3 bytes).
	//
	// The estimation formulas work in fractional GiB,
	// so the scalar is a float rather than a byte count.
	GiBytesScalar float64

	// MultiplierScalar is the scalar for relative performance multipliers.
	MultiplierScalar float64

	// ParametersScalar is the scalar for parameters.
	ParametersScalar uint64
)

var (
	// _GeneralBaseUnitMatrix is the base unit matrix for bytes.
	_GeneralBaseUnitMatrix = []struct {
		Base float64
		Unit string
	}{
		{_Pi, "Pi"},
		{_P, "P"},
		{_Ti, "Ti"},
		{_T, "T"},
		{_Gi, "Gi"},
		{_G, "G"},
		{_Mi, "Mi"},
		{_M, "M"},
		{_Ki, "Ki"},
		{_K, "K"},
	}

	// _SizeBaseUnitMatrix is the base unit matrix for size.
	_SizeBaseUnitMatrix = []struct {
		Base float64
		Unit string
	}{
		{_Pi, "P"},
		{_Ti, "T"},
		{_Gi, "G"},
		{_Mi, "M"},
		{_Ki, "K"},
	}

	// _NumberBaseUnitMatrix is the base unit matrix for numbers.
	_NumberBaseUnitMatrix = []struct {
		Base float64
		Unit string
	}{
		{_Quadrillion, "Q"},
		{_Trillion, "T"},
		{_Billion, "B"},
		{_Million, "M"},
		{_Thousand, "K"},
	}
)

// ParseGiBytesScalar parses the GiBytesScalar from the string.
//
// A bare number is taken as GiB,
// e.g. "24" and "24G" and "24GiB" are all 24 GiB,
// while "512M" is 0.5 GiB and "24GB" is 24e9 bytes.
func ParseGiBytesScalar(s string) (_ GiBytesScalar, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("invalid GiBytesScalar")
	}
	b := float64(_Gi)
	switch {
	case strings.HasSuffix(s, "iB"):
		s = strings.TrimSuffix(s, "B")
		for i := range _GeneralBaseUnitMatrix {
			if strings.HasSuffix(s, _GeneralBaseUnitMatrix[i].Unit) {
				b = _GeneralBaseUnitMatrix[i].Base
				s = strings.TrimSuffix(s, _GeneralBaseUnitMatrix[i].Unit)
				break
			}
		}
	case strings.HasSuffix(s, "B"):
		s = strings.TrimSuffix(s, "B")
		b = 1
		for i := range _GeneralBaseUnitMatrix {
			if strings.HasSuffix(s, _GeneralBaseUnitMatrix[i].Unit) {
				b = _GeneralBaseUnitMatrix[i].Base
				s = strings.TrimSuffix(s, _GeneralBaseUnitMatrix[i].Unit)
				break
			}
		}
	default:
		for i := range _SizeBaseUnitMatrix {
			if strings.HasSuffix(s, _SizeBaseUnitMatrix[i].Unit) {
				b = _SizeBaseUnitMatrix[i].Base
				s = strings.TrimSuffix(s, _SizeBaseUnitMatrix[i].Unit)
				break
			}
		}
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.New("invalid GiBytesScalar")
	}
	return GiBytesScalar(f * b / _Gi), nil
}

// Bytes returns the scalar in bytes.
func (s GiBytesScalar) Bytes() float64 {
	return float64(s) * _Gi
}

func (s GiBytesScalar) String() string {
	if s == 0 {
		return "0 B"
	}
	if math.IsInf(float64(s), 0) || math.IsNaN(float64(s)) {
		return strconv.FormatFloat(float64(s), 'f', -1, 64)
	}
	v, sign := s.Bytes(), ""
	if v < 0 {
		v, sign = -v, "-"
	}
	b, u := float64(1), ""
	for i := range _SizeBaseUnitMatrix {
		if v >= _SizeBaseUnitMatrix[i].Base {
			b = _SizeBaseUnitMatrix[i].Base
			u = _SizeBaseUnitMatrix[i].Unit + "i"
			break
		}
	}
	f := strconv.FormatFloat(v/b, 'f', 2, 64)
	return sign + strings.TrimSuffix(f, ".00") + " " + u + "B"
}

func (s MultiplierScalar) String() string {
	if s <= 0 {
		return "0x"
	}
	return strconv.FormatFloat(float64(s), 'f', 2, 64) + "x"
}

// ParametersScalarFromBillion converts the given billions to a ParametersScalar.
func ParametersScalarFromBillion(b float64) ParametersScalar {
	if b <= 0 || math.IsNaN(b) {
		return 0
	}
	return ParametersScalar(b * _Billion)
}

func (s ParametersScalar) String() string {
	if s == 0 {
		return "0"
	}
	b, u := float64(1), ""
	for i := range _NumberBaseUnitMatrix {
		if float64(s) >= _NumberBaseUnitMatrix[i].Base {
			b = _NumberBaseUnitMatrix[i].Base
			u = _NumberBaseUnitMatrix[i].Unit
			break
		}
	}
	f := strconv.FormatFloat(float64(s)/b, 'f', 2, 64)
	return strings.TrimSuffix(f, ".00") + " " + u
}
