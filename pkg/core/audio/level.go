package audio

import (
	"encoding/base64"
	"math"
)

// amplitudeScale maps RMS onto the 0..1 range the UI visualiser expects.
// Normal speech rarely exceeds half of full scale.
const amplitudeScale = 16384.0

// Amplitude returns the RMS level of 16-bit little-endian mono PCM divided
// by 16384 and clamped to [0, 1]. Empty input yields 0.
func Amplitude(pcm []byte) float64 {
	samples := len(pcm) / 2
	if samples == 0 {
		return 0
	}

	var sum float64
	for i := 0; i+1 < len(pcm); i += 2 {
		sample := float64(int16(uint16(pcm[i]) | uint16(pcm[i+1])<<8))
		sum += sample * sample
	}
	rms := math.Sqrt(sum / float64(samples))
	return math.Min(rms/amplitudeScale, 1)
}

// AmplitudeBase64 decodes a base64 PCM chunk and returns its Amplitude.
// Undecodable input yields 0.
func AmplitudeBase64(data string) float64 {
	pcm, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return 0
	}
	return Amplitude(pcm)
}

// PeakAmplitude returns the maximum absolute sample in [0, 1].
func PeakAmplitude(pcm []byte) float64 {
	if len(pcm) < 2 {
		return 0
	}

	var maxAbs float64
	for i := 0; i+1 < len(pcm); i += 2 {
		sample := int16(uint16(pcm[i]) | uint16(pcm[i+1])<<8)
		// float64 avoids overflow when negating -32768
		abs := math.Abs(float64(sample))
		if abs > maxAbs {
			maxAbs = abs
		}
	}
	return maxAbs / 32768.0
}
