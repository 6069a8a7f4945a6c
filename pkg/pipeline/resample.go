package pipeline

import "math"

// TargetSampleRate is the rate Whisper expects (Component G's input).
const TargetSampleRate = 16000

// Resample linearly interpolates mono samples from inRate to outRate.
// length = ceil(len(in) * outRate / inRate); a no-op copy when the rates
// already match. Grounded on original_source/src-tauri/src/audio.rs's
// resample_to_16khz.
func Resample(in []float32, inRate, outRate int) []float32 {
	if inRate == outRate || len(in) == 0 {
		out := make([]float32, len(in))
		copy(out, in)
		return out
	}

	ratio := float64(inRate) / float64(outRate)
	outLen := int(math.Ceil(float64(len(in)) / ratio))
	if outLen < 1 {
		outLen = 1
	}

	out := make([]float32, outLen)
	lastIdx := float64(len(in) - 1)
	for i := 0; i < outLen; i++ {
		srcPos := float64(i) * ratio
		if srcPos > lastIdx {
			srcPos = lastIdx
		}
		lo := int(srcPos)
		hi := lo + 1
		frac := srcPos - float64(lo)
		if hi >= len(in) {
			out[i] = in[lo]
			continue
		}
		out[i] = in[lo] + float32(frac)*(in[hi]-in[lo])
	}
	return out
}

// ToMono16k is the Component J contract: resample an arbitrary-rate,
// arbitrary-channel segment down to 16 kHz mono. Stereo input is folded to
// mono by averaging channels before resampling.
func ToMono16k(samples []float32, sampleRate, channels int) []float32 {
	mono := samples
	if channels > 1 {
		mono = make([]float32, len(samples)/channels)
		for i := range mono {
			var sum float32
			for c := 0; c < channels; c++ {
				sum += samples[i*channels+c]
			}
			mono[i] = sum / float32(channels)
		}
	}
	return Resample(mono, sampleRate, TargetSampleRate)
}
