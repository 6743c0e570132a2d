// Package sound holds the PCM helpers used between the microphone and the
// recogniser.
package sound

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
)

// ResampleInt16 converts pcm recorded at rate from to rate to. The signal is
// resampled in the frequency domain, so the output holds exactly
// len(pcm)*to/from samples covering the same duration.
func ResampleInt16(pcm []int16, from, to int) []int16 {
	if len(pcm) == 0 || from <= 0 || to <= 0 {
		return nil
	}
	if from == to {
		out := make([]int16, len(pcm))
		copy(out, pcm)
		return out
	}

	n := len(pcm)
	m := int(int64(n) * int64(to) / int64(from))
	if m == 0 {
		return nil
	}

	samples := make([]float64, n)
	for i, s := range pcm {
		samples[i] = float64(s)
	}
	spectrum := fft.FFTReal(samples)

	// keep the positive and negative frequencies both lengths can represent
	half := min(n, m) / 2
	resized := make([]complex128, m)
	copy(resized[:half], spectrum[:half])
	copy(resized[m-half:], spectrum[n-half:])
	if half == 0 {
		resized[0] = spectrum[0]
	}

	scale := float64(m) / float64(n)
	signal := fft.IFFT(resized)
	out := make([]int16, m)
	for i, v := range signal {
		out[i] = clamp16(real(v) * scale)
	}
	return out
}

func clamp16(v float64) int16 {
	v = math.Round(v)
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}

func ConvertInt16ToInt(pcm []int16) []int {
	out := make([]int, len(pcm))
	for i, s := range pcm {
		out[i] = int(s)
	}
	return out
}

// ConvertInt16ToFloat32 scales samples into [-1, 1).
func ConvertInt16ToFloat32(pcm []int16) []float32 {
	out := make([]float32, len(pcm))
	for i, s := range pcm {
		out[i] = float32(s) / 32768
	}
	return out
}

// RMS returns the root mean square of the buffer, a cheap loudness measure.
func RMS(pcm []int16) float64 {
	if len(pcm) == 0 {
		return 0
	}
	var sumSquares float64
	for _, s := range pcm {
		v := float64(s)
		sumSquares += v * v
	}
	return math.Sqrt(sumSquares / float64(len(pcm)))
}
