package wav

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Invariant from spec.md §8.5: sample_count*2 + 44 == file size.
func TestWriteThenCloseProducesCanonicalHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page_0001_224_0_1_42_5004.wav")
	w, err := Open(path, 8000)
	require.NoError(t, err)

	samples := make([]int16, 4000)
	for i := range samples {
		samples[i] = int16(i)
	}
	require.NoError(t, w.WriteSamples(samples))
	require.NoError(t, w.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.EqualValues(t, int64(len(samples))*2+44, info.Size())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var h riffHeader
	require.NoError(t, binary.Read(f, binary.LittleEndian, &h))
	assert.Equal(t, [4]byte{'R', 'I', 'F', 'F'}, h.ChunkID)
	assert.Equal(t, [4]byte{'W', 'A', 'V', 'E'}, h.Format)
	assert.EqualValues(t, 1, h.AudioFormat)
	assert.EqualValues(t, 1, h.NumChannels)
	assert.EqualValues(t, 8000, h.SampleRate)
	assert.EqualValues(t, 16, h.BitsPerSample)
	assert.EqualValues(t, len(samples)*2, h.Subchunk2Size)
}

func TestEmptyRecordingStillValid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.wav")
	w, err := Open(path, 8000)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.EqualValues(t, 44, info.Size())
}
