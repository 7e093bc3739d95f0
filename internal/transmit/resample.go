package transmit

import (
	"fmt"

	resampler "github.com/tphakala/go-audio-resampler"

	"github.com/cwsl/pagewatch/internal/perr"
)

// Resampler converts mono PCM16 between sample rates. It wraps
// github.com/tphakala/go-audio-resampler, grounded on its presence in
// blitss-sip-tg-bridge's go.mod (the other telephony-adjacent repo in the
// pack) as the resampling dependency for mismatched source/codec rates.
type Resampler struct {
	r        *resampler.Resampler
	sourceHz int
	targetHz int
}

// NewResampler builds a Resampler for the given rate pair. When
// sourceHz == targetHz, Resample is a no-op passthrough.
func NewResampler(sourceHz, targetHz int) (*Resampler, error) {
	if sourceHz == targetHz {
		return &Resampler{sourceHz: sourceHz, targetHz: targetHz}, nil
	}
	r, err := resampler.New(sourceHz, targetHz, 1)
	if err != nil {
		return nil, perr.New(perr.CodecBackendFailure, "", fmt.Errorf("constructing resampler %dHz->%dHz: %w", sourceHz, targetHz, err))
	}
	return &Resampler{r: r, sourceHz: sourceHz, targetHz: targetHz}, nil
}

// Resample converts in (at sourceHz) to targetHz.
func (rs *Resampler) Resample(in []int16) ([]int16, error) {
	if rs.r == nil {
		return in, nil
	}
	out, err := rs.r.Resample(in)
	if err != nil {
		return nil, perr.New(perr.CodecBackendFailure, "", fmt.Errorf("resampling: %w", err))
	}
	return out, nil
}
