package osx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetenv(t *testing.T) {
	const key = "FIT_ESTIMATOR_OSX_TEST"

	assert.Equal(t, "", Getenv(key))
	assert.Equal(t, "def", Getenv(key, "def"))

	t.Setenv(key, "  ")
	assert.Equal(t, "def", Getenv(key, "def"))

	t.Setenv(key, " Native ")
	assert.Equal(t, "Native", Getenv(key, "def"))
	assert.True(t, EnvEqualFold(key, "native"))
	assert.False(t, EnvEqualFold(key, "vector"))
}
