//go:build opus

package codec

import (
	opus "gopkg.in/hraban/opus.v2"

	"github.com/cwsl/pagewatch/internal/perr"
)

// opusCodec wraps gopkg.in/hraban/opus.v2, exactly as the teacher's
// opus_support.go does (cgo-backed libopus, gated behind the "opus"
// build tag). Stateful: the encoder/decoder carry internal history
// across frames, per spec.md §4.4.
type opusCodec struct {
	enc *opus.Encoder
	dec *opus.Decoder
}

func newOpusDecoder(sampleRate, channels int) (Decoder, error) {
	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, perr.New(perr.CodecBackendFailure, "", err)
	}
	return &opusCodec{dec: dec}, nil
}

func newOpusEncoder(sampleRate, channels int, opts Options) (Encoder, error) {
	enc, err := opus.NewEncoder(sampleRate, channels, opus.AppVoIP)
	if err != nil {
		return nil, perr.New(perr.CodecBackendFailure, "", err)
	}
	if opts.Bitrate > 0 {
		if err := enc.SetBitrate(opts.Bitrate); err != nil {
			return nil, perr.New(perr.InvalidOptions, "", err)
		}
	}
	if opts.Complexity > 0 {
		if err := enc.SetComplexity(opts.Complexity); err != nil {
			return nil, perr.New(perr.InvalidOptions, "", err)
		}
	}
	return &opusCodec{enc: enc}, nil
}

func (c *opusCodec) Decode(payload []byte) ([]int16, error) {
	pcm := make([]int16, 5760) // max frame: 120ms @ 48kHz
	n, err := c.dec.Decode(payload, pcm)
	if err != nil {
		return nil, perr.New(perr.CodecBackendFailure, "", err)
	}
	return pcm[:n], nil
}

func (c *opusCodec) Encode(samples []int16) ([]byte, error) {
	data := make([]byte, 4000)
	n, err := c.enc.Encode(samples, data)
	if err != nil {
		return nil, perr.New(perr.CodecBackendFailure, "", err)
	}
	return data[:n], nil
}

func (c *opusCodec) SampleRate() int   { return 48000 }
func (c *opusCodec) RTPClockHz() int   { return 48000 }
func (c *opusCodec) FrameSamples() int { return 960 } // 20ms @ 48kHz
func (c *opusCodec) Reset()            {}
