//go:build !opus

package codec

import "github.com/cwsl/pagewatch/internal/perr"

// Stub Opus codec for builds without the "opus" tag (no libopus/cgo
// available), matching the teacher's opus_stub.go fallback. Opus packets
// surface as CodecBackendFailure rather than silently dropping audio,
// per spec.md §7.
type opusCodec struct{}

func newOpusDecoder(sampleRate, channels int) (Decoder, error) {
	return nil, perr.Newf(perr.CodecBackendFailure, "", "opus support not compiled in (build with -tags opus)")
}

func newOpusEncoder(sampleRate, channels int, opts Options) (Encoder, error) {
	return nil, perr.Newf(perr.CodecBackendFailure, "", "opus support not compiled in (build with -tags opus)")
}
