package anyx

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	testCases := []struct {
		given    any
		expected string
	}{
		{nil, ""},
		{"x", "x"},
		{[]byte("y"), "y"},
		{time.Second, "1s"},
		{errors.New("boom"), "boom"},
		{true, "true"},
		{-3, "-3"},
		{int64(42), "42"},
		{uint32(7), "7"},
		{0.5, "0.5"},
		{float32(1.25), "1.25"},
		{[]int{1, 2}, "[1 2]"},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expected, String(tc.given))
	}
}

func TestStrings(t *testing.T) {
	assert.Equal(t, []string{"a", "1", "1s"}, Strings("a", 1, time.Second))
	assert.Empty(t, Strings())
}
