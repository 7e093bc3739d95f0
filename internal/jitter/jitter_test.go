package jitter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Invariant from spec.md §8.1/§8.2: a clean run of N sequential packets has
// packets_received == N and packets_received + packets_lost == expected.
func TestNoLossSequentialRun(t *testing.T) {
	s := NewStream(8000)
	const n = 100
	for i := 0; i < n; i++ {
		obs := s.Observe(uint16(i), uint32(i*160), float64(i)*0.02)
		if i == 0 {
			assert.Equal(t, ObsFirst, obs)
		} else {
			assert.Equal(t, ObsAdvance, obs)
		}
	}
	stats := s.Stats()
	assert.EqualValues(t, n, stats.Packets)
	assert.EqualValues(t, n, stats.Expected)
	assert.EqualValues(t, 0, stats.Lost)
	assert.Equal(t, 0.0, stats.LossPercent)
}

// Invariant from spec.md §8.2/§8.3: dropping every 10th packet yields
// ~10% loss and packets_received + packets_lost == expected.
func TestEveryTenthPacketDropped(t *testing.T) {
	s := NewStream(8000)
	const n = 1000
	received := 0
	for i := 0; i < n; i++ {
		if i%10 == 9 {
			continue // dropped at the socket
		}
		s.Observe(uint16(i), uint32(i*160), float64(i)*0.02)
		received++
	}
	stats := s.Stats()
	assert.EqualValues(t, received, stats.Packets)
	// seq 999 is itself dropped, so the highest seen sequence is 998.
	assert.EqualValues(t, n-1, stats.Expected)
	assert.InDelta(t, 10.0, stats.LossPercent, 0.5)
	assert.True(t, stats.LossPercent >= 0 && stats.LossPercent <= 100)
}

func TestSequenceWrapAroundNoFalseLoss(t *testing.T) {
	s := NewStream(8000)
	seqs := []uint16{65533, 65534, 65535, 0, 1, 2}
	for i, seq := range seqs {
		s.Observe(seq, uint32(i*160), float64(i)*0.02)
	}
	stats := s.Stats()
	assert.EqualValues(t, len(seqs), stats.Packets)
	assert.EqualValues(t, len(seqs), stats.Expected)
	assert.EqualValues(t, 0, stats.Lost)
}

func TestDuplicateAndSmallReorderNotLoss(t *testing.T) {
	s := NewStream(8000)
	s.Observe(10, 1600, 0.0)
	obs := s.Observe(10, 1600, 0.02) // duplicate
	assert.Equal(t, ObsReorder, obs)
	obs = s.Observe(9, 1440, 0.04) // small backward reorder
	assert.Equal(t, ObsReorder, obs)
	obs = s.Observe(11, 1760, 0.06)
	assert.Equal(t, ObsAdvance, obs)
}

func TestLargeBackwardJumpIsRestart(t *testing.T) {
	s := NewStream(8000)
	s.Observe(40000, 0, 0.0)
	obs := s.Observe(30000, 160, 0.02) // 10000 back, beyond MaxDropout
	assert.Equal(t, ObsRestart, obs)
}

func TestJitterAccumulatesTowardZeroForPerfectPacing(t *testing.T) {
	s := NewStream(8000)
	for i := 0; i < 50; i++ {
		s.Observe(uint16(i), uint32(i*160), float64(i)*0.02)
	}
	assert.InDelta(t, 0.0, s.JitterMs(), 0.1)
}
