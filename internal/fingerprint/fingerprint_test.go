package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOfDeterministic(t *testing.T) {
	a := Of("minecraft:diamond", "c0ffee", "origin-1")
	b := Of("minecraft:diamond", "c0ffee", "origin-1")

	assert.Equal(t, a, b)
	assert.Len(t, a, Size*2)
}

func TestOfOriginChangesFingerprint(t *testing.T) {
	a := Of("minecraft:diamond", "c0ffee", "origin-1")
	b := Of("minecraft:diamond", "c0ffee", "origin-2")

	assert.NotEqual(t, a, b)
}

func TestOfFieldBoundaries(t *testing.T) {
	assert.NotEqual(t, Of("ab", "c", ""), Of("a", "bc", ""))
	assert.NotEqual(t, Of("", "", "x"), Of("x", "", ""))
}

func TestContentHash(t *testing.T) {
	assert.Equal(t, ContentHash([]byte("{}")), ContentHash([]byte("{}")))
	assert.NotEqual(t, ContentHash([]byte("{}")), ContentHash([]byte("{ }")))
}
