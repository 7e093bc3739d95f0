// Package transmit implements the transmit pipeline (C10, spec.md
// §4.10): read a PCM source, downmix to mono, resample to the codec's
// target rate, encode, packetize as RTP, and pace-send onto a multicast
// group. Grounded on the teacher's paced send loops (deadline-based
// scheduling appears throughout main.go's worker goroutines) adapted
// from periodic broadcast to frame-paced RTP send.
package transmit

import (
	"context"
	"fmt"
	"time"

	"github.com/cwsl/pagewatch/internal/codec"
	"github.com/cwsl/pagewatch/internal/perr"
)

// lateFrameThreshold: if the scheduler falls behind by more than this
// many frame periods, it drops to "now" and counts the frame as late,
// per spec.md §4.10 step 5.
const lateFrameThreshold = 3

// Options configures one transmit run.
type Options struct {
	Address   string
	Port      uint16
	CodecName string
	Loop      bool
	TTL       int
	CodecOpts codec.Options
}

// Result reports what one transmit run did.
type Result struct {
	FramesSent int
	LateFrames int
}

// Run executes the pipeline described by spec.md §4.10 against src until
// EOF (or forever if opts.Loop), or until ctx is canceled.
func Run(ctx context.Context, src PCMSource, opts Options) (Result, error) {
	if opts.TTL < 1 || opts.TTL > 255 {
		return Result{}, perr.Newf(perr.InvalidOptions, "", "ttl %d out of range [1,255]", opts.TTL)
	}

	desc, err := codec.DescriptorByName(opts.CodecName)
	if err != nil {
		return Result{}, err
	}
	enc, err := codec.EncoderByName(opts.CodecName, opts.CodecOpts)
	if err != nil {
		return Result{}, err
	}

	resampler, err := NewResampler(src.SampleRate(), desc.SampleRate)
	if err != nil {
		return Result{}, err
	}

	sender, err := newPacketSender(opts.Address, opts.Port, opts.TTL, desc.StaticPT)
	if err != nil {
		return Result{}, err
	}
	defer sender.close()

	framePeriod := time.Duration(float64(desc.FrameSamples)/float64(desc.SampleRate)*1e9) * time.Nanosecond

	res := Result{}
	firstOfRun := true
	channels := src.Channels()
	if channels < 1 {
		channels = 1
	}
	rawFrame := make([]int16, desc.FrameSamples*channels)

	nextDeadline := time.Now()
	for {
		n, rerr := src.Read(rawFrame)
		if n > 0 {
			mono := downmix(rawFrame[:n], channels)
			resampled, rserr := resampler.Resample(mono)
			if rserr != nil {
				return res, rserr
			}
			for off := 0; off < len(resampled); off += desc.FrameSamples {
				end := off + desc.FrameSamples
				var chunk []int16
				if end > len(resampled) {
					// Pad the final partial frame with silence, so the
					// encoder always sees a full frame.
					padded := make([]int16, desc.FrameSamples)
					copy(padded, resampled[off:])
					chunk = padded
				} else {
					chunk = resampled[off:end]
				}

				payload, eerr := enc.Encode(chunk)
				if eerr != nil {
					return res, eerr
				}

				now := time.Now()
				if now.Sub(nextDeadline) > time.Duration(lateFrameThreshold)*framePeriod {
					nextDeadline = now
					res.LateFrames++
				}
				wait := time.Until(nextDeadline)
				if wait > 0 {
					select {
					case <-ctx.Done():
						return res, ctx.Err()
					case <-time.After(wait):
					}
				}

				if err := sender.send(ctx, payload, uint32(desc.FrameSamples), firstOfRun); err != nil {
					return res, err
				}
				firstOfRun = false
				res.FramesSent++
				nextDeadline = nextDeadline.Add(framePeriod)
			}
		}

		if rerr != nil {
			if !opts.Loop {
				return res, nil
			}
			if err := src.Rewind(); err != nil {
				return res, fmt.Errorf("rewinding for --loop: %w", err)
			}
			// marker=1 after any intentional restart, per spec.md §4.10 step 4.
			firstOfRun = true
			continue
		}

		select {
		case <-ctx.Done():
			return res, ctx.Err()
		default:
		}
	}
}

// downmix averages interleaved channels into mono, per spec.md §4.10 step 1.
func downmix(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return samples
	}
	n := len(samples) / channels
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		var sum int32
		for c := 0; c < channels; c++ {
			sum += int32(samples[i*channels+c])
		}
		out[i] = int16(sum / int32(channels))
	}
	return out
}
