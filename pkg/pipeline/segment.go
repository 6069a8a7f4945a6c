package pipeline

import "time"

const (
	segmentCapacitySeconds = 30
	segmentMinDurationMS   = 200
	segmentMinRMS          = 0.01
	segmentWordBreakCutMS  = 2000
	segmentWordBreakSeenMS = 1500
)

// SegmentBuffer is Component F: a time-ordered store of mono samples
// captured during Speaking, prefixed by the lookback slice handed over on
// SpeechStarted. It cuts segments on speech end, word break, or PTT
// release, and applies the emission guards from spec.md §4.F itself, since
// only it has the accumulated sample buffer needed to evaluate them.
type SegmentBuffer struct {
	sampleRate int
	channels   int
	logger     Logger

	open bool

	samples   []float32
	startedAt time.Time

	hasLookbackPrefix bool
	lookbackLen       int
	baseSpeechSamples int
	sawWordBreak      bool
}

// NewSegmentBuffer creates a buffer for mono audio at sampleRate/channels.
func NewSegmentBuffer(sampleRate, channels int, logger Logger) *SegmentBuffer {
	if logger == nil {
		logger = NoOpLogger{}
	}
	return &SegmentBuffer{sampleRate: sampleRate, channels: channels, logger: logger}
}

// OnSpeechStarted opens a new segment, prefixed by the VAD's lookback scan.
func (s *SegmentBuffer) OnSpeechStarted(lookback []float32) {
	s.open = true
	s.startedAt = time.Now()
	s.samples = append([]float32(nil), lookback...)
	s.hasLookbackPrefix = len(lookback) > 0
	s.lookbackLen = len(lookback)
	s.baseSpeechSamples = 0
	s.sawWordBreak = false
}

// OpenWithoutLookback opens a segment with no pre-onset audio: used by PTT
// recording, where the whole press-to-release duration is the segment and
// there is no VAD-confirmed onset to look back from.
func (s *SegmentBuffer) OpenWithoutLookback() {
	s.open = true
	s.startedAt = time.Now()
	s.samples = nil
	s.hasLookbackPrefix = false
	s.lookbackLen = 0
	s.baseSpeechSamples = 0
	s.sawWordBreak = false
}

// Append adds a mono batch to the open segment. No-op if no segment is open.
// Past segmentCapacitySeconds a warning is logged, but the batch is still
// appended and the segment is not cut.
func (s *SegmentBuffer) Append(mono []float32) {
	if !s.open {
		return
	}
	s.samples = append(s.samples, mono...)
	if len(s.samples) > s.sampleRate*segmentCapacitySeconds {
		s.logger.Warn("segment: exceeded capacity", "samples", len(s.samples))
	}
}

// OnWordBreak evaluates a word-break event against the cut policy in
// spec.md §4.F. offsetMS/gapMS are expressed in the VAD's running
// speech-sample coordinate (see vad.go's wordBreakTracker). The caller must
// have already appended the batch that closed the gap, so its samples fall
// on the correct side of the cut. Returns the cut segment (post-guard, nil
// if dropped); the buffer continues accumulating a new open segment
// starting from the gap midpoint.
func (s *SegmentBuffer) OnWordBreak(offsetMS, gapMS float64) *Segment {
	if !s.open {
		return nil
	}
	durationMS := s.currentDurationMS()
	shouldCut := durationMS >= segmentWordBreakCutMS ||
		(durationMS >= segmentWordBreakSeenMS && s.sawWordBreak)
	s.sawWordBreak = true
	if !shouldCut {
		return nil
	}

	gapStartGlobal := msToSamples(offsetMS, s.sampleRate)
	gapSamples := msToSamples(gapMS, s.sampleRate)
	cutGlobal := gapStartGlobal + gapSamples/2

	localCut := s.lookbackLen + (cutGlobal - s.baseSpeechSamples)
	if localCut < 0 {
		localCut = 0
	}
	if localCut > len(s.samples) {
		localCut = len(s.samples)
	}

	head := s.samples[:localCut]
	tail := append([]float32(nil), s.samples[localCut:]...)

	seg := s.buildSegment(head, ReasonWordBreak)

	s.samples = tail
	s.hasLookbackPrefix = false
	s.lookbackLen = 0
	s.baseSpeechSamples = cutGlobal
	s.sawWordBreak = false
	s.startedAt = time.Now()

	return s.applyGuards(seg)
}

// OnSpeechEnded closes the open segment on VAD-confirmed silence.
func (s *SegmentBuffer) OnSpeechEnded() *Segment {
	if !s.open {
		return nil
	}
	seg := s.buildSegment(s.samples, ReasonSpeechEnd)
	s.reset()
	return s.applyGuards(seg)
}

// OnPttRelease closes whatever is open regardless of VAD hold-time state.
func (s *SegmentBuffer) OnPttRelease() *Segment {
	if !s.open {
		return nil
	}
	seg := s.buildSegment(s.samples, ReasonPttRelease)
	s.reset()
	return s.applyGuards(seg)
}

// Finalize is called on shutdown: drop an open segment shorter than the
// minimum duration, otherwise emit it.
func (s *SegmentBuffer) Finalize() *Segment {
	if !s.open {
		return nil
	}
	seg := s.buildSegment(s.samples, ReasonFinalize)
	s.reset()
	return s.applyGuards(seg)
}

func (s *SegmentBuffer) buildSegment(samples []float32, reason EndedReason) Segment {
	out := make([]float32, len(samples))
	copy(out, samples)
	return Segment{
		Samples:     out,
		SampleRate:  s.sampleRate,
		Channels:    s.channels,
		StartedAt:   s.startedAt,
		EndedReason: reason,
	}
}

// applyGuards drops segments that are too short or too quiet for Whisper to
// usefully process, per spec.md §4.F. The queue-full guard is the caller's
// responsibility (only the queue knows its own fullness).
func (s *SegmentBuffer) applyGuards(seg Segment) *Segment {
	if seg.DurationMS() < segmentMinDurationMS {
		s.logger.Debug("segment: dropped, too short", "duration_ms", seg.DurationMS())
		return nil
	}
	if calculateRMS(seg.Samples) < segmentMinRMS {
		s.logger.Debug("segment: dropped, too quiet")
		return nil
	}
	return &seg
}

func (s *SegmentBuffer) currentDurationMS() float64 {
	if s.sampleRate == 0 || s.channels == 0 {
		return 0
	}
	frames := len(s.samples) / s.channels
	return float64(frames) * 1000.0 / float64(s.sampleRate)
}

func (s *SegmentBuffer) reset() {
	s.open = false
	s.samples = nil
	s.hasLookbackPrefix = false
	s.lookbackLen = 0
	s.baseSpeechSamples = 0
	s.sawWordBreak = false
}

func msToSamples(ms float64, sampleRate int) int {
	return int(ms * float64(sampleRate) / 1000.0)
}
