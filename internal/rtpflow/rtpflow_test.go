package rtpflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildParseRoundTrip(t *testing.T) {
	in := Packet{
		PayloadType:    0,
		Marker:         true,
		SequenceNumber: 1234,
		Timestamp:      999999,
		SSRC:           0xdeadbeef,
		Payload:        []byte{1, 2, 3, 4, 5},
	}
	buf, err := Build(in)
	require.NoError(t, err)

	out, err := Parse(buf)
	require.NoError(t, err)
	assert.Equal(t, in.PayloadType, out.PayloadType)
	assert.Equal(t, in.Marker, out.Marker)
	assert.Equal(t, in.SequenceNumber, out.SequenceNumber)
	assert.Equal(t, in.Timestamp, out.Timestamp)
	assert.Equal(t, in.SSRC, out.SSRC)
	assert.Equal(t, in.Payload, out.Payload)
}

func TestParseRejectsShortPacket(t *testing.T) {
	_, err := Parse([]byte{1, 2, 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed_rtp")
}

func TestParseRejectsBadVersion(t *testing.T) {
	buf := make([]byte, 12)
	buf[0] = 0x00 // version 0, not 2
	_, err := Parse(buf)
	require.Error(t, err)
}
