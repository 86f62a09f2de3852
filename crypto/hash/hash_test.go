package hash

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
)

// S1 — SHA-256 truncated hash of "reticulum" (spec.md §8).
func TestTrunc16Reticulum(t *testing.T) {
	full := sha256.Sum256([]byte("reticulum"))
	want := full[:16]

	got := Trunc16([]byte("reticulum"))
	assert.Equal(t, want, got[:])
}

func TestNameDeterministic(t *testing.T) {
	a := Name("test.a")
	b := Name("test.a")
	assert.Equal(t, a, b)

	c := Name("test.b")
	assert.NotEqual(t, a, c)
}
