package audio

import (
	"encoding/binary"
	"math"
)

// PCMToFloat32 converts 16-bit signed little-endian PCM audio to float32
// samples normalised to the range [-1.0, 1.0]. The input length must be
// even (two bytes per sample); any trailing odd byte is silently ignored.
func PCMToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	samples := make([]float32, n)
	for i := range n {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		samples[i] = float32(sample) / 32768.0
	}
	return samples
}

// Float32ToPCM converts normalised float32 samples to 16-bit signed
// little-endian PCM bytes. Samples outside [-1.0, 1.0] are clamped.
func Float32ToPCM(samples []float32) []byte {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := int16(clamp(s) * 32767.0)
		binary.LittleEndian.PutUint16(pcm[i*2:i*2+2], uint16(v))
	}
	return pcm
}

// Float32ToInt16 converts normalised float32 samples to int16 samples,
// clamping out-of-range values. Used by acoustic backends that operate on
// raw 16-bit samples (e.g., keyword spotters).
func Float32ToInt16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		out[i] = int16(clamp(s) * 32767.0)
	}
	return out
}

// BytesToFloat32 reinterprets little-endian IEEE-754 float32 PCM bytes as
// samples. Any trailing partial sample is ignored.
func BytesToFloat32(b []byte) []float32 {
	n := len(b) / 4
	samples := make([]float32, n)
	for i := range n {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4 : i*4+4]))
	}
	return samples
}

// RMS returns the root-mean-square energy of the samples, the cheapest
// speech-vs-silence signal available. Returns 0 for an empty slice.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// ZeroPad returns samples extended with trailing zeros to exactly size
// samples. If samples is already size or longer it is returned unchanged.
// Scoring backends require fixed-size windows; the final partial window of a
// frame is padded rather than rejected.
func ZeroPad(samples []float32, size int) []float32 {
	if len(samples) >= size {
		return samples
	}
	padded := make([]float32, size)
	copy(padded, samples)
	return padded
}

func clamp(s float32) float32 {
	if s > 1.0 {
		return 1.0
	}
	if s < -1.0 {
		return -1.0
	}
	return s
}
