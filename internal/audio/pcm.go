package audio

import "encoding/binary"

func putSamples(dst []byte, samples []int16) {
	for i, s := range samples {
		binary.LittleEndian.PutUint16(dst[2*i:], uint16(s))
	}
}

// Samples decodes PCM16-LE bytes. A trailing odd byte is dropped.
func Samples(data []byte) []int16 {
	n := len(data) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(data[2*i:]))
	}
	return out
}

// Bytes encodes samples as PCM16-LE.
func Bytes(samples []int16) []byte {
	b := make([]byte, len(samples)*2)
	putSamples(b, samples)
	return b
}

// fillFrame copies the next frame of samples into buf starting at offset,
// zero-padding the tail, and returns the new offset.
func fillFrame(buf, samples []int16, offset int) int {
	n := copy(buf, samples[offset:])
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
	return offset + n
}
