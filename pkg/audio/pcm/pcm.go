package pcm

import (
	"encoding/binary"
	"time"
)

// Split de-interleaves a stereo block into its two channels. The input
// must hold an even number of samples; a trailing odd sample is dropped.
func Split(interleaved []int16) (left, right []int16) {
	n := len(interleaved) / 2
	left = make([]int16, n)
	right = make([]int16, n)
	for i, j := 0, 0; i < n; i, j = i+1, j+2 {
		left[i] = interleaved[j]
		right[i] = interleaved[j+1]
	}
	return left, right
}

// Interleave combines two equal-length channels into one stereo block.
// If the channels differ in length, the longer one is truncated.
func Interleave(left, right []int16) []int16 {
	n := min(len(left), len(right))
	out := make([]int16, 2*n)
	for i, j := 0, 0; i < n; i, j = i+1, j+2 {
		out[j] = left[i]
		out[j+1] = right[i]
	}
	return out
}

// Bytes encodes samples as little-endian bytes.
func Bytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// Samples decodes little-endian bytes into samples. A trailing odd byte
// is dropped.
func Samples(b []byte) []int16 {
	n := len(b) / 2
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}

// Duration returns the play time of a mono sample count at the given rate.
func Duration(samples, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}

// SamplesInDuration returns the number of mono samples in d at the given rate.
func SamplesInDuration(d time.Duration, sampleRate int) int {
	return int(time.Duration(sampleRate) * d / time.Second)
}
