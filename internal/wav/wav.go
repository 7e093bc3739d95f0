// Package wav implements the mono 16-bit WAV recorder (C8, spec.md §4.8):
// deferred header finalization, appended sample writes, and a guarantee
// that any graceful shutdown leaves a valid file. Grounded on the
// teacher's decoder_wav.go WAVWriter, generalized from radiod-format
// big-endian PCM to mono little-endian samples from pagewatch's codec
// decoders.
package wav

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/cwsl/pagewatch/internal/perr"
)

const (
	headerSize    = 44
	bitsPerSample = 16
	channels      = 1
)

type riffHeader struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

// Writer writes a canonical 44-byte-header mono PCM16 WAV file, patching
// the size fields on Close. Per spec.md §4.8, pagewatch finalizes on any
// graceful shutdown rather than periodically rewriting size fields
// (option (b)); SIGKILL before Close leaves an invalid trailer, which is
// the documented tradeoff.
type Writer struct {
	file       *os.File
	sampleRate int
	dataSize   int64
}

// Open creates path and writes a placeholder header.
func Open(path string, sampleRate int) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, perr.New(perr.RecorderIoError, "", fmt.Errorf("creating %s: %w", path, err))
	}
	w := &Writer{file: f, sampleRate: sampleRate}
	if err := w.writeHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

func (w *Writer) writeHeader() error {
	h := riffHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     0xFFFFFFFF,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   channels,
		SampleRate:    uint32(w.sampleRate),
		ByteRate:      uint32(w.sampleRate * channels * bitsPerSample / 8),
		BlockAlign:    channels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: 0xFFFFFFFF,
	}
	if err := binary.Write(w.file, binary.LittleEndian, &h); err != nil {
		return perr.New(perr.RecorderIoError, "", err)
	}
	return nil
}

// WriteSamples appends PCM16 samples, retrying once on a partial/failed
// write per spec.md §4.8's "partial writes are retried".
func (w *Writer) WriteSamples(samples []int16) error {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(s))
	}

	n, err := w.file.Write(buf)
	if err != nil || n < len(buf) {
		n2, err2 := w.file.Write(buf[n:])
		if err2 != nil {
			return perr.New(perr.RecorderIoError, "", fmt.Errorf("write retry: %w", err2))
		}
		n += n2
	}
	w.dataSize += int64(n)
	return nil
}

// Close patches the RIFF/data sizes and closes the file. Per spec.md
// §8.5's invariant (sample_count*2 + 44 == file size), Close must be
// reached for the WAV to be valid.
func (w *Writer) Close() error {
	if w.file == nil {
		return nil
	}
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		w.file.Close()
		return perr.New(perr.RecorderIoError, "", err)
	}
	h := riffHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(w.dataSize + headerSize - 8),
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   channels,
		SampleRate:    uint32(w.sampleRate),
		ByteRate:      uint32(w.sampleRate * channels * bitsPerSample / 8),
		BlockAlign:    channels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: uint32(w.dataSize),
	}
	if err := binary.Write(w.file, binary.LittleEndian, &h); err != nil {
		w.file.Close()
		return perr.New(perr.RecorderIoError, "", err)
	}
	err := w.file.Close()
	w.file = nil
	if err != nil {
		return perr.New(perr.RecorderIoError, "", err)
	}
	return nil
}

// DataSize reports bytes written to the data chunk so far.
func (w *Writer) DataSize() int64 { return w.dataSize }

// SampleCount reports PCM16 mono samples written so far.
func (w *Writer) SampleCount() int64 { return w.dataSize / 2 }
