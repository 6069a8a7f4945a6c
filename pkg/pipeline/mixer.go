package pipeline

import "math"

const (
	mixerMaxResidueMS  = 500
	echoCorrelationThreshold = 0.55
)

// Mixer is Component B: combines up to two concurrently captured f32
// streams into a single interleaved mono-analysis stream. Per-stream
// residue buffers absorb cadence mismatch between the two sources; the
// correlation math for EchoCancel mode is grounded on the teacher's
// EchoSuppressor (pkg/orchestrator/echo_suppression.go calculateCorrelation),
// repurposed here from "mute echoed TTS audio" to "subtract a reference
// capture stream from the primary capture stream".
type Mixer struct {
	mode RecordingMode

	residue1, residue2 []float32
	sampleRate         int
	logger             Logger
}

// NewMixer creates a mixer for streams at sampleRate.
func NewMixer(sampleRate int, mode RecordingMode, logger Logger) *Mixer {
	if logger == nil {
		logger = NoOpLogger{}
	}
	return &Mixer{mode: mode, sampleRate: sampleRate, logger: logger}
}

// SetMode changes the mixing policy for subsequent batches.
func (m *Mixer) SetMode(mode RecordingMode) {
	m.mode = mode
}

// Push feeds a newly arrived batch from one source into its residue buffer.
func (m *Mixer) Push(batch AudioFrameBatch) {
	if batch.Source == Source1 {
		m.residue1 = append(m.residue1, batch.Samples...)
	} else {
		m.residue2 = append(m.residue2, batch.Samples...)
	}
	m.dropOverflow()
}

// Mix drains as much as it can from the residue buffers and returns the
// combined mono frame. When only one source is active, that source's
// residue is forwarded verbatim. Returns nil when there isn't enough data
// from an active two-source pair to emit anything yet.
func (m *Mixer) Mix(source1Active, source2Active bool) []float32 {
	switch {
	case source1Active && !source2Active:
		out := m.residue1
		m.residue1 = nil
		return out
	case source2Active && !source1Active:
		out := m.residue2
		m.residue2 = nil
		return out
	case source1Active && source2Active:
		return m.mixTwo()
	default:
		return nil
	}
}

func (m *Mixer) mixTwo() []float32 {
	n := len(m.residue1)
	if len(m.residue2) < n {
		n = len(m.residue2)
	}
	if n == 0 {
		return nil
	}

	a := m.residue1[:n]
	b := m.residue2[:n]

	var out []float32
	if m.mode == EchoCancel {
		out = m.echoCancel(a, b)
	} else {
		out = make([]float32, n)
		for i := 0; i < n; i++ {
			out[i] = 0.5*a[i] + 0.5*b[i]
		}
	}

	m.residue1 = append([]float32(nil), m.residue1[n:]...)
	m.residue2 = append([]float32(nil), m.residue2[n:]...)
	return out
}

// echoCancel subtracts a correlation-gated estimate of b (the reference
// stream, e.g. system/loopback audio) from a (the primary microphone
// stream). Falls through to an even 0.5/0.5 mix when the correlation never
// clears the threshold, matching spec.md §4.B's fallback rule.
func (m *Mixer) echoCancel(a, b []float32) []float32 {
	corr := correlation(a, b)
	if corr < echoCorrelationThreshold {
		out := make([]float32, len(a))
		for i := range a {
			out[i] = 0.5*a[i] + 0.5*b[i]
		}
		return out
	}

	out := make([]float32, len(a))
	for i := range a {
		out[i] = a[i] - float32(corr)*b[i]
	}
	return out
}

// correlation computes the normalized cross-correlation between two
// equal-length sample slices, in [0,1]. Grounded on EchoSuppressor.calculateCorrelation.
func correlation(x, y []float32) float64 {
	if len(x) == 0 || len(y) == 0 {
		return 0
	}
	var dot, ex, ey float64
	for i := range x {
		xi, yi := float64(x[i]), float64(y[i])
		dot += xi * yi
		ex += xi * xi
		ey += yi * yi
	}
	if ex == 0 || ey == 0 {
		return 0
	}
	c := dot / math.Sqrt(ex*ey)
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

func (m *Mixer) dropOverflow() {
	maxSamples := m.sampleRate * mixerMaxResidueMS / 1000
	if len(m.residue1)+len(m.residue2) <= maxSamples {
		return
	}
	if len(m.residue1) > maxSamples/2 {
		drop := len(m.residue1) - maxSamples/2
		m.residue1 = m.residue1[drop:]
		m.logger.Warn("mixer: dropped stale residue", "source", "1", "samples", drop)
	}
	if len(m.residue2) > maxSamples/2 {
		drop := len(m.residue2) - maxSamples/2
		m.residue2 = m.residue2[drop:]
		m.logger.Warn("mixer: dropped stale residue", "source", "2", "samples", drop)
	}
}
