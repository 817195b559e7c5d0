package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintArgsDistinguishesTypes(t *testing.T) {
	assert.NotEqual(t, FingerprintArgs([]any{1}), FingerprintArgs([]any{"1"}))
	assert.Equal(t, FingerprintArgs([]any{1, "a", nil}), FingerprintArgs([]any{1, "a", nil}))
	assert.NotEqual(t, FingerprintArgs([]any{"ab", "c"}), FingerprintArgs([]any{"a", "bc"}))
}

func TestFingerprintArgsFollowsPointers(t *testing.T) {
	name := "a"
	before := FingerprintArgs([]any{&name})
	name = "b"
	after := FingerprintArgs([]any{&name})

	assert.NotEqual(t, before, after)
	assert.Equal(t, FingerprintArgs([]any{"b"}), after)

	var none *string
	assert.Equal(t, FingerprintArgs([]any{nil}), FingerprintArgs([]any{none}))
}

func TestMixAll(t *testing.T) {
	a, b, c := U64("a"), U64("b"), U64("c")
	assert.Equal(t, Mix64(Mix64(a, b), c), MixAll(a, b, c))
	assert.Equal(t, a, MixAll(a))
	assert.NotEqual(t, MixAll(a, b), MixAll(b, a))
}
