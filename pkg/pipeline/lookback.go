package pipeline

import "math"

const (
	lookbackCapacityMS  = 200
	lookbackThresholdDB = -55.0
	lookbackScanChunk   = 128
	lookbackMarginMS    = 20
)

// LookbackBuffer is a fixed-capacity circular buffer of recent mono samples
// (Component D). It is written on every batch regardless of speech state so
// that, once the VAD confirms an onset, the true leading edge of the
// utterance can be recovered retroactively.
//
// Grounded on original_source/src-tauri/src/processor.rs's
// push_to_lookback_buffer / get_lookback_buffer_contents / find_lookback_start.
type LookbackBuffer struct {
	buf        []float32
	writePos   int
	filled     bool
	sampleRate int
}

// NewLookbackBuffer creates a buffer sized to hold lookbackCapacityMS of
// audio at sampleRate.
func NewLookbackBuffer(sampleRate int) *LookbackBuffer {
	capacity := sampleRate * lookbackCapacityMS / 1000
	if capacity < 1 {
		capacity = 1
	}
	return &LookbackBuffer{
		buf:        make([]float32, capacity),
		sampleRate: sampleRate,
	}
}

// Push appends mono samples, wrapping around the ring as needed.
func (l *LookbackBuffer) Push(mono []float32) {
	for _, s := range mono {
		l.buf[l.writePos] = s
		l.writePos = (l.writePos + 1) % len(l.buf)
		if l.writePos == 0 {
			l.filled = true
		}
	}
}

// contents returns the buffer's contents in chronological (oldest-first)
// order.
func (l *LookbackBuffer) contents() []float32 {
	if !l.filled {
		out := make([]float32, l.writePos)
		copy(out, l.buf[:l.writePos])
		return out
	}
	out := make([]float32, len(l.buf))
	copy(out, l.buf[l.writePos:])
	copy(out[len(l.buf)-l.writePos:], l.buf[:l.writePos])
	return out
}

// Scan finds the earliest point, scanning backward in lookbackScanChunk-sample
// chunks, whose peak absolute amplitude exceeds lookbackThresholdDB, then
// extends the start back by lookbackMarginMS. Returns the samples from that
// point to the end of the buffer, and the offset in milliseconds they
// represent (how far before "now" the returned audio begins).
func (l *LookbackBuffer) Scan() (samples []float32, offsetMS float64) {
	chron := l.contents()
	if len(chron) == 0 {
		return nil, 0
	}

	threshold := dbToLinear(lookbackThresholdDB)
	startIdx := len(chron)

	for end := len(chron); end > 0; end -= lookbackScanChunk {
		start := end - lookbackScanChunk
		if start < 0 {
			start = 0
		}
		if peakAbs(chron[start:end]) > threshold {
			startIdx = start
		} else if startIdx < len(chron) {
			break
		}
	}

	marginSamples := l.sampleRate * lookbackMarginMS / 1000
	startIdx -= marginSamples
	if startIdx < 0 {
		startIdx = 0
	}

	result := make([]float32, len(chron)-startIdx)
	copy(result, chron[startIdx:])

	offsetMS = float64(len(chron)-startIdx) * 1000.0 / float64(l.sampleRate)
	return result, offsetMS
}

func peakAbs(samples []float32) float64 {
	var peak float64
	for _, s := range samples {
		v := float64(s)
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	return peak
}

func dbToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}
