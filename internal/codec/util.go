package codec

// bytesLEToInt16 converts little-endian PCM16 bytes to samples.
func bytesLEToInt16(b []byte) []int16 {
	n := len(b) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(uint16(b[2*i]) | uint16(b[2*i+1])<<8)
	}
	return out
}

// int16ToBytesLE converts PCM16 samples to little-endian bytes.
func int16ToBytesLE(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[2*i] = byte(uint16(s))
		out[2*i+1] = byte(uint16(s) >> 8)
	}
	return out
}

// bytesBEToInt16 converts big-endian PCM16 bytes (network byte order, as
// RTP L16 payloads use) to samples.
func bytesBEToInt16(b []byte) []int16 {
	n := len(b) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(uint16(b[2*i])<<8 | uint16(b[2*i+1]))
	}
	return out
}

// int16ToBytesBE converts PCM16 samples to big-endian bytes.
func int16ToBytesBE(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[2*i] = byte(uint16(s) >> 8)
		out[2*i+1] = byte(uint16(s))
	}
	return out
}
