// Package codec is the payload-type-to-decoder registry (C4, spec.md
// §4.4): static RTP payload type assignments, dynamic PT hint handling,
// and encoder construction by name for the transmit pipeline.
package codec

import (
	"github.com/cwsl/pagewatch/internal/perr"
)

// Decoder turns an RTP payload into PCM samples. Decoders are stateless
// where the codec permits it (G.711, L16) and stateful otherwise (G.722,
// Opus), per spec.md §4.4.
type Decoder interface {
	Decode(payload []byte) ([]int16, error)
	SampleRate() int   // audio sample rate, Hz
	RTPClockHz() int   // RTP timestamp clock rate, Hz (differs from SampleRate for G.722)
	FrameSamples() int // nominal samples per typical frame, for frame-size hints
	Reset()
}

// Encoder turns PCM samples into an RTP payload for the transmit pipeline.
type Encoder interface {
	Encode(samples []int16) ([]byte, error)
	SampleRate() int
	RTPClockHz() int
	FrameSamples() int
}

// Descriptor describes a codec's wire mapping, per spec.md §3.
type Descriptor struct {
	Name         string
	StaticPT     uint8
	IsStatic     bool
	SampleRate   int
	RTPClockHz   int
	FrameSamples int
	Channels     int
}

// Static payload type table from spec.md §3.
var staticDescriptors = map[uint8]Descriptor{
	0:  {Name: "g711ulaw", StaticPT: 0, IsStatic: true, SampleRate: 8000, RTPClockHz: 8000, FrameSamples: 160, Channels: 1},
	8:  {Name: "g711alaw", StaticPT: 8, IsStatic: true, SampleRate: 8000, RTPClockHz: 8000, FrameSamples: 160, Channels: 1},
	9:  {Name: "g722", StaticPT: 9, IsStatic: true, SampleRate: 16000, RTPClockHz: 8000, FrameSamples: 160, Channels: 1},
	10: {Name: "l16stereo44k", StaticPT: 10, IsStatic: true, SampleRate: 44100, RTPClockHz: 44100, FrameSamples: 441, Channels: 2},
	11: {Name: "l16mono44k", StaticPT: 11, IsStatic: true, SampleRate: 44100, RTPClockHz: 44100, FrameSamples: 441, Channels: 1},
}

var namedDescriptors = map[string]Descriptor{
	"g711ulaw":     staticDescriptors[0],
	"g711alaw":     staticDescriptors[8],
	"g722":         staticDescriptors[9],
	"l16stereo44k": staticDescriptors[10],
	"l16mono44k":   staticDescriptors[11],
	"opus": {Name: "opus", IsStatic: false, SampleRate: 48000, RTPClockHz: 48000, FrameSamples: 960, Channels: 1},
}

// Options configures encoder construction (spec.md §4.4's InvalidOptions
// path). Bitrate/Complexity only apply to Opus; zero values take the
// encoder's own defaults.
type Options struct {
	Bitrate    int
	Complexity int
}

// DynamicDefault is the codec assumed for PT 96-127 absent a user hint,
// per spec.md §9.
const DynamicDefault = "opus"

// DecoderFor resolves a decoder for a payload type. hint, when non-empty,
// overrides the PT-derived codec choice (spec.md §4.4) — this applies to
// both static and dynamic PTs, since a forced hint always wins.
func DecoderFor(pt uint8, hint string) (Decoder, error) {
	name := hint
	if name == "" {
		if d, ok := staticDescriptors[pt]; ok {
			name = d.Name
		} else if pt >= 96 && pt <= 127 {
			name = DynamicDefault
		} else {
			return nil, perr.Newf(perr.UnsupportedPayload, "", "no codec mapping for payload type %d", pt)
		}
	}
	return newDecoder(name)
}

// EncoderByName constructs an encoder for the transmit pipeline.
func EncoderByName(name string, opts Options) (Encoder, error) {
	return newEncoder(name, opts)
}

// DescriptorByName exposes a codec's wire parameters, e.g. so the
// transmitter knows what payload type and frame size to use.
func DescriptorByName(name string) (Descriptor, error) {
	d, ok := namedDescriptors[name]
	if !ok {
		return Descriptor{}, perr.Newf(perr.UnknownCodec, "", "unknown codec %q", name)
	}
	return d, nil
}

func newDecoder(name string) (Decoder, error) {
	switch name {
	case "g711ulaw":
		return newG711Decoder(false), nil
	case "g711alaw":
		return newG711Decoder(true), nil
	case "g722":
		return newG722Decoder(), nil
	case "l16mono44k":
		return newL16Decoder(44100, 1), nil
	case "l16stereo44k":
		return newL16Decoder(44100, 2), nil
	case "opus":
		return newOpusDecoder(48000, 1)
	default:
		return nil, perr.Newf(perr.UnsupportedPayload, "", "no decoder for codec %q", name)
	}
}

func newEncoder(name string, opts Options) (Encoder, error) {
	switch name {
	case "g711ulaw":
		return newG711Encoder(false), nil
	case "g711alaw":
		return newG711Encoder(true), nil
	case "g722":
		return newG722Encoder(), nil
	case "l16mono44k":
		return newL16Encoder(44100, 1), nil
	case "l16stereo44k":
		return newL16Encoder(44100, 2), nil
	case "opus":
		if opts.Bitrate < 0 || opts.Complexity < 0 || opts.Complexity > 10 {
			return nil, perr.Newf(perr.InvalidOptions, "", "invalid opus options %+v", opts)
		}
		return newOpusEncoder(48000, 1, opts)
	default:
		return nil, perr.Newf(perr.UnknownCodec, "", "unknown codec %q", name)
	}
}
