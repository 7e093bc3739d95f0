package codec

import (
	"github.com/zaf/g711"
)

// g711Codec wraps github.com/zaf/g711, the same G.711 library the
// blitss-sip-tg-bridge retrieval pack pulls in for its SIP media path.
// G.711 is stateless: each call decodes/encodes independently, per
// spec.md §4.4.
type g711Codec struct {
	alaw bool
}

func newG711Decoder(alaw bool) *g711Codec { return &g711Codec{alaw: alaw} }
func newG711Encoder(alaw bool) *g711Codec { return &g711Codec{alaw: alaw} }

func (c *g711Codec) Decode(payload []byte) ([]int16, error) {
	var pcm []byte
	if c.alaw {
		pcm = g711.DecodeAlaw(payload)
	} else {
		pcm = g711.DecodeUlaw(payload)
	}
	return bytesLEToInt16(pcm), nil
}

func (c *g711Codec) Encode(samples []int16) ([]byte, error) {
	pcm := int16ToBytesLE(samples)
	if c.alaw {
		return g711.EncodeAlaw(pcm), nil
	}
	return g711.EncodeUlaw(pcm), nil
}

func (c *g711Codec) SampleRate() int   { return 8000 }
func (c *g711Codec) RTPClockHz() int   { return 8000 }
func (c *g711Codec) FrameSamples() int { return 160 }
func (c *g711Codec) Reset()            {}
