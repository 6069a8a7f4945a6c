package pipeline

import "math"

// Feature thresholds shared across modes. Grounded on
// original_source/src-tauri/src/processor.rs's SpeechDetector::with_defaults.
const (
	transientZCRThreshold      = 0.45
	transientCentroidThreshold = 6500.0
	centroidGateDB             = -55.0
)

// ExtractFeatures computes the per-batch analysis record for a mono batch.
// No FFT: the centroid is a first-difference approximation deliberately
// chosen to stay off the hot path. Batches shorter than two samples return
// a Features with AmplitudeDB at -Inf and every other field zero (caller
// should treat them as silence and ignore).
func ExtractFeatures(mono []float32, sampleRate int) Features {
	n := len(mono)
	if n < 2 {
		return Features{AmplitudeDB: math.Inf(-1)}
	}

	rms := calculateRMS(mono)
	ampDB := amplitudeToDB(rms)
	zcr := calculateZCR(mono)
	centroid := estimateSpectralCentroid(mono, sampleRate, ampDB)

	isTransient := zcr > transientZCRThreshold && centroid > transientCentroidThreshold

	return Features{
		AmplitudeDB: ampDB,
		ZCR:         zcr,
		CentroidHz:  centroid,
		IsTransient: isTransient,
	}
}

func calculateRMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sumSq float64
	for _, s := range samples {
		v := float64(s)
		sumSq += v * v
	}
	return math.Sqrt(sumSq / float64(len(samples)))
}

func amplitudeToDB(rms float64) float64 {
	if rms <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(rms)
}

func calculateZCR(samples []float32) float64 {
	if len(samples) < 2 {
		return 0
	}
	crossings := 0
	for i := 1; i < len(samples); i++ {
		prev, cur := samples[i-1], samples[i]
		if (prev >= 0) != (cur >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(samples)-1)
}

// estimateSpectralCentroid approximates the spectral centroid from the mean
// absolute first difference relative to mean absolute amplitude, scaled by
// the sample rate. Gated to 0 below centroidGateDB to suppress silence
// noise jitter, matching processor.rs's estimate_spectral_centroid.
func estimateSpectralCentroid(samples []float32, sampleRate int, ampDB float64) float64 {
	if ampDB < centroidGateDB || len(samples) < 2 {
		return 0
	}

	var sumAbsDelta, sumAbs float64
	for i := 1; i < len(samples); i++ {
		sumAbsDelta += math.Abs(float64(samples[i]) - float64(samples[i-1]))
	}
	for _, s := range samples {
		sumAbs += math.Abs(float64(s))
	}

	n := float64(len(samples))
	meanAbsDelta := sumAbsDelta / (n - 1)
	meanAbs := sumAbs / n
	if meanAbs == 0 {
		return 0
	}

	return float64(sampleRate) * meanAbsDelta / (2 * meanAbs)
}
