package codec

import (
	"github.com/gotranspile/g722"

	"github.com/cwsl/pagewatch/internal/perr"
)

// g722Codec wraps github.com/gotranspile/g722 (a Go transpile of the
// reference ITU G.722 implementation, pulled from the
// blitss-sip-tg-bridge retrieval pack's indirect dependency set). G.722's
// RTP clock runs at 8 kHz while the decoded audio is 16 kHz, per spec.md
// §3 — RTPClockHz and SampleRate deliberately differ.
type g722Codec struct {
	enc *g722.Encoder
	dec *g722.Decoder
}

func newG722Decoder() *g722Codec {
	return &g722Codec{dec: g722.NewDecoder(g722.Rate64000, 0)}
}

func newG722Encoder() *g722Codec {
	return &g722Codec{enc: g722.NewEncoder(g722.Rate64000, 0)}
}

func (c *g722Codec) Decode(payload []byte) ([]int16, error) {
	if c.dec == nil {
		return nil, perr.Newf(perr.CodecBackendFailure, "", "g722 decoder not initialized")
	}
	out := make([]int16, len(payload)*2)
	n := c.dec.Decode(out, payload)
	return out[:n], nil
}

func (c *g722Codec) Encode(samples []int16) ([]byte, error) {
	if c.enc == nil {
		return nil, perr.Newf(perr.CodecBackendFailure, "", "g722 encoder not initialized")
	}
	out := make([]byte, len(samples)/2+1)
	n := c.enc.Encode(out, samples)
	return out[:n], nil
}

func (c *g722Codec) SampleRate() int   { return 16000 }
func (c *g722Codec) RTPClockHz() int   { return 8000 }
func (c *g722Codec) FrameSamples() int { return 320 } // 20ms @ 16kHz

func (c *g722Codec) Reset() {
	if c.dec != nil {
		c.dec = g722.NewDecoder(g722.Rate64000, 0)
	}
	if c.enc != nil {
		c.enc = g722.NewEncoder(g722.Rate64000, 0)
	}
}
