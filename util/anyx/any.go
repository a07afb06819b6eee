package anyx

import (
	"fmt"
	"strconv"

	"golang.org/x/exp/constraints"
)

// String converts any type to a string,
// prefers the String method of the value.
func String(v any) string {
	switch vv := v.(type) {
	case nil:
		return ""
	case string:
		return vv
	case []byte:
		return string(vv)
	case fmt.Stringer:
		return vv.String()
	case error:
		return vv.Error()
	case bool:
		return strconv.FormatBool(vv)
	case int:
		return strconv.Itoa(vv)
	case int32:
		return integer(vv)
	case int64:
		return integer(vv)
	case uint:
		return unsigned(vv)
	case uint32:
		return unsigned(vv)
	case uint64:
		return unsigned(vv)
	case float32:
		return strconv.FormatFloat(float64(vv), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(vv, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Strings converts each value to a string.
func Strings(vs ...any) []string {
	ss := make([]string, len(vs))
	for i := range vs {
		ss[i] = String(vs[i])
	}
	return ss
}

func integer[T constraints.Signed](v T) string {
	return strconv.FormatInt(int64(v), 10)
}

func unsigned[T constraints.Unsigned](v T) string {
	return strconv.FormatUint(uint64(v), 10)
}
