package transmit

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/cwsl/pagewatch/internal/perr"
)

// PCMSource abstracts the transmit pipeline's audio input, per spec.md
// §4.10: "opaque; exposes read, sample_rate, channels". Grounded on the
// same riffHeader layout as internal/wav, read instead of written.
type PCMSource interface {
	Read(buf []int16) (int, error)
	SampleRate() int
	Channels() int
	// Rewind restarts the source at its beginning, for --loop.
	Rewind() error
}

type wavFileSource struct {
	file       *os.File
	dataStart  int64
	dataEnd    int64
	sampleRate int
	channels   int
}

// OpenWAVFile opens a canonical PCM16 WAV file (mono or stereo) as a
// PCMSource.
func OpenWAVFile(path string) (PCMSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, perr.New(perr.InvalidOptions, "", fmt.Errorf("opening %s: %w", path, err))
	}

	var riff [12]byte
	if _, err := io.ReadFull(f, riff[:]); err != nil {
		f.Close()
		return nil, perr.New(perr.InvalidOptions, "", fmt.Errorf("reading RIFF header: %w", err))
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		f.Close()
		return nil, perr.Newf(perr.InvalidOptions, "", "%s is not a RIFF/WAVE file", path)
	}

	var sampleRate, channels int
	var dataStart, dataEnd int64
	for {
		var chunkID [4]byte
		var chunkSize uint32
		if _, err := io.ReadFull(f, chunkID[:]); err != nil {
			break
		}
		if err := binary.Read(f, binary.LittleEndian, &chunkSize); err != nil {
			break
		}
		switch string(chunkID[:]) {
		case "fmt ":
			var fmtBody struct {
				AudioFormat   uint16
				NumChannels   uint16
				SampleRate    uint32
				ByteRate      uint32
				BlockAlign    uint16
				BitsPerSample uint16
			}
			if err := binary.Read(f, binary.LittleEndian, &fmtBody); err != nil {
				f.Close()
				return nil, perr.New(perr.InvalidOptions, "", err)
			}
			if fmtBody.BitsPerSample != 16 {
				f.Close()
				return nil, perr.Newf(perr.InvalidOptions, "", "%s: only 16-bit PCM is supported", path)
			}
			sampleRate = int(fmtBody.SampleRate)
			channels = int(fmtBody.NumChannels)
			if remaining := int64(chunkSize) - 16; remaining > 0 {
				f.Seek(remaining, io.SeekCurrent)
			}
		case "data":
			pos, _ := f.Seek(0, io.SeekCurrent)
			dataStart = pos
			dataEnd = pos + int64(chunkSize)
			if _, err := f.Seek(int64(chunkSize), io.SeekCurrent); err != nil {
				f.Close()
				return nil, perr.New(perr.InvalidOptions, "", err)
			}
		default:
			if _, err := f.Seek(int64(chunkSize), io.SeekCurrent); err != nil {
				f.Close()
				return nil, perr.New(perr.InvalidOptions, "", err)
			}
		}
		if dataStart != 0 && sampleRate != 0 {
			break
		}
	}
	if sampleRate == 0 || dataStart == 0 {
		f.Close()
		return nil, perr.Newf(perr.InvalidOptions, "", "%s: missing fmt or data chunk", path)
	}

	if _, err := f.Seek(dataStart, io.SeekStart); err != nil {
		f.Close()
		return nil, perr.New(perr.InvalidOptions, "", err)
	}

	return &wavFileSource{
		file:       f,
		dataStart:  dataStart,
		dataEnd:    dataEnd,
		sampleRate: sampleRate,
		channels:   channels,
	}, nil
}

func (s *wavFileSource) Read(buf []int16) (int, error) {
	pos, err := s.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, perr.New(perr.InvalidOptions, "", err)
	}
	want := len(buf) * 2
	if remaining := s.dataEnd - pos; remaining < int64(want) {
		want = int(remaining)
	}
	if want <= 0 {
		return 0, io.EOF
	}

	raw := make([]byte, want)
	n, err := io.ReadFull(s.file, raw)
	if n == 0 {
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return 0, perr.New(perr.InvalidOptions, "", err)
		}
		return 0, io.EOF
	}
	samples := n / 2
	for i := 0; i < samples; i++ {
		buf[i] = int16(binary.LittleEndian.Uint16(raw[2*i:]))
	}
	return samples, nil
}

func (s *wavFileSource) SampleRate() int { return s.sampleRate }
func (s *wavFileSource) Channels() int   { return s.channels }

func (s *wavFileSource) Rewind() error {
	_, err := s.file.Seek(s.dataStart, io.SeekStart)
	return err
}

func (s *wavFileSource) Close() error { return s.file.Close() }
