package pipeline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

// Duration accounting: the DurationMS a SpeechEnded event carries must equal
// speechSamples*1000/sampleRate within 1ms.
func TestProperty_DurationAccounting(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		sampleRate := rapid.SampledFrom([]int{16000, 44100, 48000}).Draw(t, "sampleRate")
		speechSamples := rapid.IntRange(1, 500000).Draw(t, "speechSamples")

		got := samplesToMs(speechSamples, sampleRate)
		want := float64(speechSamples) * 1000.0 / float64(sampleRate)

		assert.InDelta(t, want, got, 1.0)
	})
}

// Word-break bounds: every event the tracker actually emits falls in
// [wordBreakMinMS, wordBreakMaxMS].
func TestProperty_WordBreakBounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		sampleRate := 16000
		w := &wordBreakTracker{sampleRate: sampleRate}

		loud := Features{AmplitudeDB: -20}
		w.onMatchingBatch(loud, sampleRate/100)

		gapMS := rapid.Float64Range(0.5, 500).Draw(t, "gapMS")
		gapSamples := msToSamples(gapMS, sampleRate)
		quiet := Features{AmplitudeDB: -90}
		w.onNonMatchingBatch(quiet, gapSamples, 0)

		evt := w.onMatchingBatch(loud, sampleRate/100)
		if evt == nil {
			return
		}
		assert.GreaterOrEqual(t, evt.GapMS, wordBreakMinMS)
		assert.LessOrEqual(t, evt.GapMS, wordBreakMaxMS)
	})
}

// Transient rejection: a single transient-shaped batch while Silent never
// advances the detector toward Speaking.
func TestProperty_TransientNeverAdvancesSilentDetector(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		sampleRate := 16000
		lb := NewLookbackBuffer(sampleRate)
		d := NewSpeechDetector(sampleRate, lb)

		zcr := rapid.Float64Range(0.46, 1.0).Draw(t, "zcr")
		centroid := rapid.Float64Range(6501, 20000).Draw(t, "centroid")
		batchLen := rapid.IntRange(1, 4800).Draw(t, "batchLen")

		f := Features{AmplitudeDB: -10, ZCR: zcr, CentroidHz: centroid, IsTransient: true}
		events := d.Process(f, batchLen)

		assert.Empty(t, events)
		assert.False(t, d.speaking)
	})
}

// Resampler length: |resample(x, R, 16000)| == ceil(len(x) * 16000 / R).
func TestProperty_ResamplerLength(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 5000).Draw(t, "n")
		inRate := rapid.SampledFrom([]int{8000, 16000, 22050, 44100, 48000}).Draw(t, "inRate")

		in := make([]float32, n)
		out := Resample(in, inRate, TargetSampleRate)

		if n == 0 {
			assert.Empty(t, out)
			return
		}
		want := int(math.Ceil(float64(n) * float64(TargetSampleRate) / float64(inRate)))
		assert.Equal(t, want, len(out))
	})
}

// Segment-buffer guards never let through a segment shorter than the
// minimum duration, regardless of how much (silent or loud) audio is fed.
func TestProperty_SegmentGuardEnforcesMinDuration(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		sampleRate := 16000
		n := rapid.IntRange(0, sampleRate) // up to 1s
		amp := rapid.Float64Range(0, 1)

		samples := make([]float32, n.Draw(t, "n"))
		a := amp.Draw(t, "amp")
		for i := range samples {
			samples[i] = float32(a)
		}

		sb := NewSegmentBuffer(sampleRate, 1, NoOpLogger{})
		sb.OnSpeechStarted(nil)
		sb.Append(samples)
		seg := sb.OnSpeechEnded()

		if seg == nil {
			return
		}
		assert.GreaterOrEqual(t, seg.DurationMS(), float64(segmentMinDurationMS))
		assert.GreaterOrEqual(t, calculateRMS(seg.Samples), segmentMinRMS)
	})
}
