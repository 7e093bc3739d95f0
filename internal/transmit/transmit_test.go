package transmit

import (
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwsl/pagewatch/internal/codec"
)

func writeTestWAV(t *testing.T, path string, sampleRate int, samples []int16) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	dataSize := len(samples) * 2
	require.NoError(t, binary.Write(f, binary.LittleEndian, []byte("RIFF")))
	require.NoError(t, binary.Write(f, binary.LittleEndian, uint32(36+dataSize)))
	require.NoError(t, binary.Write(f, binary.LittleEndian, []byte("WAVE")))
	require.NoError(t, binary.Write(f, binary.LittleEndian, []byte("fmt ")))
	require.NoError(t, binary.Write(f, binary.LittleEndian, uint32(16)))
	require.NoError(t, binary.Write(f, binary.LittleEndian, uint16(1)))
	require.NoError(t, binary.Write(f, binary.LittleEndian, uint16(1)))
	require.NoError(t, binary.Write(f, binary.LittleEndian, uint32(sampleRate)))
	require.NoError(t, binary.Write(f, binary.LittleEndian, uint32(sampleRate*2)))
	require.NoError(t, binary.Write(f, binary.LittleEndian, uint16(2)))
	require.NoError(t, binary.Write(f, binary.LittleEndian, uint16(16)))
	require.NoError(t, binary.Write(f, binary.LittleEndian, []byte("data")))
	require.NoError(t, binary.Write(f, binary.LittleEndian, uint32(dataSize)))
	for _, s := range samples {
		require.NoError(t, binary.Write(f, binary.LittleEndian, s))
	}
}

func TestOpenWAVFileReadsSamples(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tone.wav")
	samples := make([]int16, 4410)
	for i := range samples {
		samples[i] = int16(1000 * math.Sin(2*math.Pi*1000*float64(i)/44100))
	}
	writeTestWAV(t, path, 44100, samples)

	src, err := OpenWAVFile(path)
	require.NoError(t, err)
	assert.Equal(t, 44100, src.SampleRate())
	assert.Equal(t, 1, src.Channels())

	buf := make([]int16, 4410)
	n, err := src.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 4410, n)
}

func TestDownmixAverages(t *testing.T) {
	stereo := []int16{100, -100, 200, -200}
	mono := downmix(stereo, 2)
	require.Len(t, mono, 2)
	assert.EqualValues(t, 0, mono[0])
	assert.EqualValues(t, 0, mono[1])
}

func TestRunSendsFramesAtL16Rate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tone.wav")
	samples := make([]int16, 441*5)
	for i := range samples {
		samples[i] = int16(1000 * math.Sin(2*math.Pi*440*float64(i)/44100))
	}
	writeTestWAV(t, path, 44100, samples)

	src, err := OpenWAVFile(path)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	res, err := Run(ctx, src, Options{
		Address:   "239.5.5.5",
		Port:      15004,
		CodecName: "l16mono44k",
		TTL:       1,
		CodecOpts: codec.Options{},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, res.FramesSent)
	assert.Zero(t, res.LateFrames)
}

func TestRunRejectsOutOfRangeTTL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tone.wav")
	writeTestWAV(t, path, 44100, make([]int16, 441))
	src, err := OpenWAVFile(path)
	require.NoError(t, err)

	_, err = Run(context.Background(), src, Options{
		Address:   "239.5.5.6",
		Port:      15005,
		CodecName: "l16mono44k",
		TTL:       0,
	})
	require.Error(t, err)
}
