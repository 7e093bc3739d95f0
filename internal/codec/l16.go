package codec

// l16Codec implements uncompressed linear PCM16, network byte order, per
// RFC 3551. Stateless: decode frame size equals input byte count / 2, per
// spec.md §4.4.
type l16Codec struct {
	sampleRate int
	channels   int
}

func newL16Decoder(sampleRate, channels int) *l16Codec { return &l16Codec{sampleRate, channels} }
func newL16Encoder(sampleRate, channels int) *l16Codec { return &l16Codec{sampleRate, channels} }

func (c *l16Codec) Decode(payload []byte) ([]int16, error) {
	return bytesBEToInt16(payload), nil
}

func (c *l16Codec) Encode(samples []int16) ([]byte, error) {
	return int16ToBytesBE(samples), nil
}

func (c *l16Codec) SampleRate() int   { return c.sampleRate }
func (c *l16Codec) RTPClockHz() int   { return c.sampleRate }
func (c *l16Codec) FrameSamples() int { return c.sampleRate / 100 * c.channels }
func (c *l16Codec) Reset()            {}
