// Package analyzer implements the per-frame and windowed-FFT audio
// analysis accumulator (C6, spec.md §4.6): RMS/peak/clipping/glitch/ZCR/DC
// in the time domain, dominant-frequency voting via a windowed real FFT.
package analyzer

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	// DefaultWindowSamples is W from spec.md §4.6.
	DefaultWindowSamples = 1024
	// ClipThreshold: |sample| at or above this counts as clipping.
	ClipThreshold = 32760
	// GlitchThreshold: sample-to-sample jump at or above this counts as a glitch.
	GlitchThreshold = 16384
	// SpectralSNRFloor: a window's dominant bin only votes if its
	// magnitude is at least this many times the window's mean magnitude.
	SpectralSNRFloor = 4.0
	fullScale        = 32768.0
)

// Snapshot is the on-request derived view from spec.md §4.6, used both by
// the metrics ticker and by page-close finalization.
type Snapshot struct {
	RMSdB          float64
	PeakDB         float64
	MaxPeakDB      float64
	DominantFreqHz float64
	Glitches       uint64
	Clipped        uint64
	ZeroCrossRate  float64
}

// Analyzer accumulates statistics for one page's worth of decoded PCM.
// Not safe for concurrent use — owned by a single endpoint's worker
// goroutine, per spec.md §5.
type Analyzer struct {
	sampleRate int
	windowSize int

	fft    *fourier.FFT
	hann   []float64
	window []float64
	winIdx int

	sampleCount   uint64
	sumSquares    float64
	peakAbs       int64
	glitchCount   uint64
	clipCount     uint64
	zeroCrossings uint64
	dcSum         float64

	freqVotes map[int]uint64

	peakRMSdB float64
	havePeak  bool

	prevSample int16
	haveLast   bool
}

// New creates an Analyzer for PCM sampled at sampleRate Hz, using a
// windowSize-sample Hann-windowed FFT for dominant-frequency voting. Pass
// 0 for windowSize to use DefaultWindowSamples.
func New(sampleRate, windowSize int) *Analyzer {
	if windowSize <= 0 {
		windowSize = DefaultWindowSamples
	}
	a := &Analyzer{
		sampleRate: sampleRate,
		windowSize: windowSize,
		fft:        fourier.NewFFT(windowSize),
		hann:       make([]float64, windowSize),
		window:     make([]float64, windowSize),
		freqVotes:  make(map[int]uint64),
	}
	for i := range a.hann {
		a.hann[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(windowSize-1)))
	}
	return a
}

// Process feeds decoded PCM into the accumulator. raw is downmixed to
// mono by averaging channels when channels > 1, per spec.md §4.6.
func (a *Analyzer) Process(raw []int16, channels int) {
	if channels <= 1 {
		for _, s := range raw {
			a.processSample(s)
		}
		return
	}
	for i := 0; i+channels <= len(raw); i += channels {
		sum := 0
		for c := 0; c < channels; c++ {
			sum += int(raw[i+c])
		}
		a.processSample(int16(sum / channels))
	}
}

func (a *Analyzer) processSample(s int16) {
	a.sampleCount++
	fs := float64(s)
	a.sumSquares += fs * fs
	a.dcSum += fs

	abs := int64(s)
	if abs < 0 {
		abs = -abs
	}
	if abs > a.peakAbs {
		a.peakAbs = abs
	}
	if abs >= ClipThreshold {
		a.clipCount++
	}

	if a.haveLast {
		dcEstimate := a.dcSum / float64(a.sampleCount)
		prevCentered := float64(a.prevSample) - dcEstimate
		curCentered := fs - dcEstimate
		if (prevCentered < 0) != (curCentered < 0) && (prevCentered != 0 || curCentered != 0) {
			a.zeroCrossings++
		}
		diff := int64(s) - int64(a.prevSample)
		if diff < 0 {
			diff = -diff
		}
		if diff >= GlitchThreshold {
			a.glitchCount++
		}
	}
	a.prevSample = s
	a.haveLast = true

	a.window[a.winIdx] = fs
	a.winIdx++
	if a.winIdx >= a.windowSize {
		a.winIdx = 0
		a.processWindow()
	}
}

func (a *Analyzer) processWindow() {
	windowed := make([]float64, a.windowSize)
	sumSq := 0.0
	for i, v := range a.window {
		windowed[i] = v * a.hann[i]
		sumSq += v * v
	}

	coeffs := a.fft.Coefficients(nil, windowed)

	nyquistBin := a.windowSize / 2
	if nyquistBin > len(coeffs) {
		nyquistBin = len(coeffs)
	}
	mags := make([]float64, nyquistBin)
	sum := 0.0
	for i := 0; i < nyquistBin; i++ {
		m := cmplx.Abs(coeffs[i])
		mags[i] = m
		sum += m
	}
	mean := 0.0
	if nyquistBin > 0 {
		mean = sum / float64(nyquistBin)
	}

	if nyquistBin > 1 {
		maxBin := 1
		maxMag := mags[1]
		for k := 2; k < nyquistBin; k++ {
			if mags[k] > maxMag {
				maxMag = mags[k]
				maxBin = k
			}
		}
		if mean > 0 && maxMag >= SpectralSNRFloor*mean {
			freq := float64(maxBin) * float64(a.sampleRate) / float64(a.windowSize)
			bucket := int(math.Round(freq/10) * 10)
			a.freqVotes[bucket]++
		}
	}

	rms := math.Sqrt(sumSq / float64(a.windowSize))
	rmsDB := dbFullScale(rms)
	if !a.havePeak || rmsDB > a.peakRMSdB {
		a.peakRMSdB = rmsDB
		a.havePeak = true
	}
}

func dbFullScale(v float64) float64 {
	if v <= 0 {
		return -120.0 // silence floor, never propagated as NaN/-Inf
	}
	return 20 * math.Log10(v/fullScale)
}

// Snapshot derives the current view without clearing counters, per
// spec.md §4.6 ("does not clear counters").
func (a *Analyzer) Snapshot() Snapshot {
	if a.sampleCount == 0 {
		return Snapshot{}
	}
	avgRMS := math.Sqrt(a.sumSquares / float64(a.sampleCount))
	maxPeakDB := dbFullScale(float64(a.peakAbs))

	dominant := 0.0
	var bestBucket int
	var bestVotes uint64
	for bucket, votes := range a.freqVotes {
		if votes > bestVotes {
			bestVotes = votes
			bestBucket = bucket
		}
	}
	if bestVotes > 0 {
		dominant = float64(bestBucket)
	}

	return Snapshot{
		RMSdB:          dbFullScale(avgRMS),
		PeakDB:         a.peakRMSdB,
		MaxPeakDB:      maxPeakDB,
		DominantFreqHz: dominant,
		Glitches:       a.glitchCount,
		Clipped:        a.clipCount,
		ZeroCrossRate:  float64(a.zeroCrossings) / float64(a.sampleCount),
	}
}

// SampleCount reports how many mono samples have been processed.
func (a *Analyzer) SampleCount() uint64 { return a.sampleCount }
