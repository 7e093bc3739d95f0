package analyzer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sineInt16(n int, freqHz, sampleRate, amplitude float64) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(amplitude * math.Sin(2*math.Pi*freqHz*float64(i)/sampleRate))
	}
	return out
}

// Invariant from spec.md §8.8: dominant frequency on a pure 1kHz sine at
// 8kHz sampling, W=1024, is within +/-10 Hz.
func TestDominantFrequencyPure1kHzSine(t *testing.T) {
	a := New(8000, 1024)
	samples := sineInt16(1024*8, 1000, 8000, 16000)
	a.Process(samples, 1)

	snap := a.Snapshot()
	assert.InDelta(t, 1000, snap.DominantFreqHz, 10)
	assert.Zero(t, snap.Clipped)
	assert.Zero(t, snap.Glitches)
}

func TestClippingDetected(t *testing.T) {
	a := New(8000, 1024)
	samples := sineInt16(1024, 1000, 8000, 32767)
	a.Process(samples, 1)
	snap := a.Snapshot()
	assert.Greater(t, snap.Clipped, uint64(0))
}

func TestGlitchDetectedOnDiscontinuity(t *testing.T) {
	a := New(8000, 1024)
	samples := make([]int16, 1024)
	samples[500] = 0
	samples[501] = 30000 // abrupt jump >= GlitchThreshold
	a.Process(samples, 1)
	snap := a.Snapshot()
	assert.GreaterOrEqual(t, snap.Glitches, uint64(1))
}

func TestStereoDownmixAverages(t *testing.T) {
	a := New(8000, 1024)
	stereo := make([]int16, 1024*2)
	for i := 0; i < 1024; i++ {
		stereo[2*i] = 100
		stereo[2*i+1] = -100
	}
	a.Process(stereo, 2)
	assert.EqualValues(t, 1024, a.SampleCount())
	snap := a.Snapshot()
	// averaged samples are all 0 -> silence floor, no NaN/Inf.
	assert.False(t, math.IsNaN(snap.RMSdB))
	assert.False(t, math.IsInf(snap.RMSdB, 0))
}

func TestSnapshotEmptyHasNoNaN(t *testing.T) {
	a := New(8000, 1024)
	snap := a.Snapshot()
	assert.False(t, math.IsNaN(snap.RMSdB))
	assert.Equal(t, Snapshot{}, snap)
}
