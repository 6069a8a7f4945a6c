package pipeline

// modeParams holds one detector's static thresholds. Values grounded on
// original_source/src-tauri/src/processor.rs's SpeechDetector::with_defaults,
// which is the unambiguous source for these constants (the distilled spec
// restates them but this file is ground truth for evaluation order and
// edge handling).
type modeParams struct {
	thresholdDB          float64
	zcrMin, zcrMax       float64
	centroidMin, centMax float64
	onsetMS              float64
}

var (
	voicedParams  = modeParams{thresholdDB: -42, zcrMin: 0.01, zcrMax: 0.30, centroidMin: 200, centMax: 5500, onsetMS: 80}
	whisperParams = modeParams{thresholdDB: -52, zcrMin: 0.08, zcrMax: 0.45, centroidMin: 300, centMax: 7000, onsetMS: 120}
)

const (
	silenceHoldMS     = 300.0
	onsetGraceMS      = 30.0
	wordBreakRatio    = 0.5
	wordBreakMinMS    = 15.0
	wordBreakMaxMS    = 200.0
	wordBreakWindowMS = 100.0
)

func matchesMode(f Features, p modeParams) bool {
	return f.AmplitudeDB >= p.thresholdDB &&
		f.ZCR >= p.zcrMin && f.ZCR <= p.zcrMax &&
		f.CentroidHz >= p.centroidMin && f.CentroidHz <= p.centMax
}

func samplesToMs(n int, sampleRate int) float64 {
	if sampleRate == 0 {
		return 0
	}
	return float64(n) * 1000.0 / float64(sampleRate)
}

// VADEventKind distinguishes the three events a SpeechDetector can emit per
// batch (never more than one SpeechStarted/SpeechEnded, optionally plus a
// WordBreak on the same batch that ends a gap).
type VADEventKind int

const (
	VADSpeechStarted VADEventKind = iota
	VADSpeechEnded
	VADWordBreak
)

// VADEvent is a single detector output, as described in spec.md §4.E.
type VADEvent struct {
	Kind            VADEventKind
	LookbackSamples []float32 // SpeechStarted only
	OffsetMS        float64   // SpeechStarted (lookback offset) / WordBreak (gap offset)
	DurationMS      float64   // SpeechEnded only
	GapMS           float64   // WordBreak only
}

// wordBreakTracker implements the sliding-window gap detector described in
// spec.md §4.E, active only while the detector is Speaking.
type wordBreakTracker struct {
	sampleRate            int
	runningAvgRMS         float64
	inGap                 bool
	gapSamples            int
	gapStartSpeechSamples int
}

func (w *wordBreakTracker) reset() {
	sr := w.sampleRate
	*w = wordBreakTracker{sampleRate: sr}
}

// SpeechDetector is Component E: two parallel threshold detectors (Voiced,
// Whisper) plus shared word-break tracking, fed a lookback buffer to
// recover the true leading edge of an utterance once an onset confirms.
type SpeechDetector struct {
	sampleRate int
	lookback   *LookbackBuffer

	speaking      bool
	speechSamples int

	voicedOnsetMS, whisperOnsetMS float64
	voicedGraceMS, whisperGraceMS float64
	silenceHold                   float64

	wordBreak wordBreakTracker

	lastFeatures Features
}

// NewSpeechDetector creates a detector sharing the given lookback buffer
// (which the owning pipeline also feeds on every batch, regardless of
// speech state).
func NewSpeechDetector(sampleRate int, lookback *LookbackBuffer) *SpeechDetector {
	return &SpeechDetector{
		sampleRate: sampleRate,
		lookback:   lookback,
		wordBreak:  wordBreakTracker{sampleRate: sampleRate},
	}
}

// GetMetrics exposes the detector's last-seen features and speaking state,
// for the visualization-frame producer (Component I supplement).
func (d *SpeechDetector) GetMetrics() (f Features, speaking bool, speechSamples int) {
	return d.lastFeatures, d.speaking, d.speechSamples
}

// Process evaluates one batch's features against the detector's state
// machine and returns any events produced (usually none, sometimes exactly
// one, sometimes a WordBreak alongside bookkeeping). batchLen is the number
// of mono samples the Features were computed over.
func (d *SpeechDetector) Process(f Features, batchLen int) []VADEvent {
	if batchLen <= 0 {
		return nil
	}
	d.lastFeatures = f
	lms := samplesToMs(batchLen, d.sampleRate)

	if f.IsTransient && !d.speaking {
		d.voicedOnsetMS, d.whisperOnsetMS = 0, 0
		d.voicedGraceMS, d.whisperGraceMS = 0, 0
		return nil
	}

	matchesVoiced := matchesMode(f, voicedParams)
	matchesWhisper := matchesMode(f, whisperParams)

	if d.speaking {
		return d.processSpeaking(f, batchLen, lms, matchesVoiced || matchesWhisper)
	}
	return d.processPending(batchLen, lms, matchesVoiced, matchesWhisper)
}

func (d *SpeechDetector) processSpeaking(f Features, batchLen int, lms float64, matches bool) []VADEvent {
	var events []VADEvent

	if matches {
		if wb := d.wordBreak.onMatchingBatch(f, batchLen); wb != nil {
			events = append(events, *wb)
		}
		d.speechSamples += batchLen
		d.silenceHold = 0
		return events
	}

	d.wordBreak.onNonMatchingBatch(f, batchLen, d.speechSamples)
	d.silenceHold += lms
	if d.silenceHold >= silenceHoldMS {
		durationMS := samplesToMs(d.speechSamples, d.sampleRate)
		events = append(events, VADEvent{Kind: VADSpeechEnded, DurationMS: durationMS})
		d.resetToSilent()
	}
	return events
}

func (d *SpeechDetector) processPending(batchLen int, lms float64, matchesVoiced, matchesWhisper bool) []VADEvent {
	// Voiced is evaluated first so it wins onset ties within the same batch.
	if matchesVoiced {
		d.voicedGraceMS = 0
		d.voicedOnsetMS += lms
		if d.voicedOnsetMS >= voicedParams.onsetMS {
			return []VADEvent{d.confirmSpeechStart(batchLen)}
		}
	} else {
		d.voicedGraceMS += lms
		if d.voicedGraceMS >= onsetGraceMS {
			d.voicedOnsetMS = 0
		}
	}

	if matchesWhisper {
		d.whisperGraceMS = 0
		d.whisperOnsetMS += lms
		if d.whisperOnsetMS >= whisperParams.onsetMS {
			return []VADEvent{d.confirmSpeechStart(batchLen)}
		}
	} else {
		d.whisperGraceMS += lms
		if d.whisperGraceMS >= onsetGraceMS {
			d.whisperOnsetMS = 0
		}
	}

	return nil
}

func (d *SpeechDetector) confirmSpeechStart(confirmingBatchLen int) VADEvent {
	d.speaking = true
	d.speechSamples = confirmingBatchLen
	d.silenceHold = 0
	d.voicedOnsetMS, d.whisperOnsetMS = 0, 0
	d.voicedGraceMS, d.whisperGraceMS = 0, 0
	d.wordBreak.reset()

	var lb []float32
	var offsetMS float64
	if d.lookback != nil {
		lb, offsetMS = d.lookback.Scan()
	}

	return VADEvent{Kind: VADSpeechStarted, LookbackSamples: lb, OffsetMS: offsetMS}
}

func (d *SpeechDetector) resetToSilent() {
	d.speaking = false
	d.speechSamples = 0
	d.silenceHold = 0
	d.voicedOnsetMS, d.whisperOnsetMS = 0, 0
	d.voicedGraceMS, d.whisperGraceMS = 0, 0
	d.wordBreak.reset()
}

// onNonMatchingBatch opens or extends the gap tracker; called only while
// Speaking and only when the overall matches predicate failed this batch.
// speechSamplesBeforeBatch is the speech-sample count as of the start of
// this batch, recorded as the gap's offset if it turns out to open one.
func (w *wordBreakTracker) onNonMatchingBatch(f Features, batchLen, speechSamplesBeforeBatch int) {
	rms := dbToLinear(f.AmplitudeDB)
	if !w.inGap {
		if w.runningAvgRMS > 0 && rms < wordBreakRatio*w.runningAvgRMS {
			w.inGap = true
			w.gapSamples = batchLen
			w.gapStartSpeechSamples = speechSamplesBeforeBatch
			return
		}
		w.updateAverage(rms, batchLen)
		return
	}
	w.gapSamples += batchLen
}

// onMatchingBatch closes an open gap (emitting a WordBreak when the gap
// duration falls in [wordBreakMinMS,wordBreakMaxMS]) and folds this batch
// into the running average.
func (w *wordBreakTracker) onMatchingBatch(f Features, batchLen int) *VADEvent {
	rms := dbToLinear(f.AmplitudeDB)

	var emitted *VADEvent
	if w.inGap {
		gapMS := samplesToMs(w.gapSamples, w.sampleRate)
		if gapMS >= wordBreakMinMS && gapMS <= wordBreakMaxMS {
			emitted = &VADEvent{
				Kind:     VADWordBreak,
				OffsetMS: samplesToMs(w.gapStartSpeechSamples, w.sampleRate),
				GapMS:    gapMS,
			}
		}
		w.inGap = false
		w.gapSamples = 0
	}
	w.updateAverage(rms, batchLen)
	return emitted
}

func (w *wordBreakTracker) updateAverage(rms float64, batchLen int) {
	// Exponential moving average approximating a 100ms sliding window,
	// the same kind of proportional-scaling approximation processor.rs
	// uses for update_speech_amplitude_average: an implementer's choice,
	// since spec.md's P4 constrains only the emitted bounds, not this
	// internal policy (see DESIGN.md Open Question 3).
	if w.runningAvgRMS == 0 {
		w.runningAvgRMS = rms
		return
	}
	alpha := 1.0
	if batchLen > 0 {
		alpha = samplesToMs(batchLen, w.sampleRate) / wordBreakWindowMS
		if alpha > 1 {
			alpha = 1
		}
	}
	w.runningAvgRMS = w.runningAvgRMS*(1-alpha) + rms*alpha
}
