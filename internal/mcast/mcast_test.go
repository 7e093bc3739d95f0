package mcast

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinInterfacesDefaultsToNonLoopbackMulticast(t *testing.T) {
	ifaces, err := joinInterfaces(nil)
	require.NoError(t, err)
	for _, ifi := range ifaces {
		assert.Zero(t, ifi.Flags&net.FlagLoopback)
		assert.NotZero(t, ifi.Flags&net.FlagMulticast)
	}
}

func TestJoinInterfacesHonorsExplicitChoice(t *testing.T) {
	explicit := &net.Interface{Name: "lo0", Index: 1}
	ifaces, err := joinInterfaces(explicit)
	require.NoError(t, err)
	require.Len(t, ifaces, 1)
	assert.Equal(t, explicit, ifaces[0])
}

// Datagrams larger than MaxDatagramSize are dropped and counted rather
// than returned as errors, per spec.md §4.2. This test exercises the
// counter directly since opening a real multicast socket requires
// network capabilities not guaranteed to be present in every CI sandbox.
func TestTruncatedCounter(t *testing.T) {
	r := &Receiver{}
	assert.EqualValues(t, 0, r.Truncated())
	r.mu.Lock()
	r.truncated = 3
	r.mu.Unlock()
	assert.EqualValues(t, 3, r.Truncated())
}
