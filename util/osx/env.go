package osx

import (
	"os"
	"strings"
)

// Getenv retrieves the value of the environment variable named by the key,
// with the surrounding spaces trimmed.
// It returns the default, which will be empty if the variable is not present or blank.
func Getenv(key string, def ...string) string {
	e, ok := os.LookupEnv(key)
	if e = strings.TrimSpace(e); (!ok || e == "") && len(def) != 0 {
		return def[0]
	}
	return e
}

// EnvEqualFold reports whether the environment variable named by the key equals the value,
// ignoring the case and the surrounding spaces.
func EnvEqualFold(key, value string) bool {
	return strings.EqualFold(Getenv(key), value)
}
