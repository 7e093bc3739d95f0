package endpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandRangePattern(t *testing.T) {
	eps, err := Expand("224.0.1.{1-3}:{5004-5005}", true)
	require.NoError(t, err)
	require.Len(t, eps, 6)

	want := []Endpoint{
		{Addr: "224.0.1.1", Port: 5004},
		{Addr: "224.0.1.1", Port: 5005},
		{Addr: "224.0.1.2", Port: 5004},
		{Addr: "224.0.1.2", Port: 5005},
		{Addr: "224.0.1.3", Port: 5004},
		{Addr: "224.0.1.3", Port: 5005},
	}
	assert.Equal(t, want, eps)
}

func TestExpandSingleAddressDefaultPort(t *testing.T) {
	eps, err := Expand("224.0.1.42", true)
	require.NoError(t, err)
	require.Len(t, eps, 1)
	assert.Equal(t, Endpoint{Addr: "224.0.1.42", Port: 5004}, eps[0])
	assert.Equal(t, "224.0.1.42:5004", eps[0].String())
	assert.Equal(t, "224_0_1_42_5004", eps[0].FilePrefix())
}

func TestExpandRejectsNonMulticastInMonitorMode(t *testing.T) {
	_, err := Expand("10.0.0.1:5004", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not_multicast")
}

func TestExpandAllowsUnicastOutsideMonitorMode(t *testing.T) {
	eps, err := Expand("10.0.0.1:5004", false)
	require.NoError(t, err)
	require.Len(t, eps, 1)
}

func TestExpandRejectsEmbeddedWhitespace(t *testing.T) {
	_, err := Expand("224.0.1. 1:5004", true)
	require.Error(t, err)
}

func TestExpandTrimsSurroundingWhitespace(t *testing.T) {
	eps, err := Expand("  224.0.1.1:5004  ", true)
	require.NoError(t, err)
	require.Len(t, eps, 1)
}

func TestExpandRejectsOutOfBoundsOctet(t *testing.T) {
	_, err := Expand("224.0.1.{250-300}", true)
	require.Error(t, err)
}

func TestExpandRejectsInvertedRange(t *testing.T) {
	_, err := Expand("224.0.1.{5-1}", true)
	require.Error(t, err)
}

func TestExpandRejectsTooLarge(t *testing.T) {
	_, err := Expand("224.{0-255}.{0-255}.{0-255}:{1-2}", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "range_too_large")
}

// Invariant from spec.md §8.7: expand is idempotent when re-rendered as a
// literal pattern per expanded endpoint.
func TestExpandIdempotentPerEndpoint(t *testing.T) {
	eps, err := Expand("224.0.1.{1-3}:5004", true)
	require.NoError(t, err)
	for _, e := range eps {
		again, err := Expand(e.String(), true)
		require.NoError(t, err)
		require.Len(t, again, 1)
		assert.Equal(t, e, again[0])
	}
}
