// Package transcribe implements Component G: the bounded transcription
// queue and its Whisper-backed worker.
package transcribe

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/keathmilligan/flowstt-core/pkg/pipeline"
)

// MaxQueueSize is the bounded FIFO's capacity, per spec.md §3's
// TranscriptionQueue invariant. Grounded on
// original_source/src-engine/src/transcription/queue.rs's MAX_QUEUE_SIZE.
const MaxQueueSize = 10

const workerIdleSleep = 50 * time.Millisecond

// Transcriber turns 16kHz mono samples into text. Implemented by
// pkg/transcribe.WhisperTranscriber; kept as an interface so the queue's
// FIFO/worker logic can be tested without loading a real model.
type Transcriber interface {
	Transcribe(samples []float32, sampleRate int, durationMS float64) (string, error)
}

// Recorder optionally persists a segment to disk before transcription,
// returning the path written (or "" if persistence is disabled).
type Recorder interface {
	Save(seg pipeline.Segment) (path string, err error)
}

// Queue is a bounded FIFO of segments awaiting transcription, drained by a
// single worker goroutine. Grounded line-for-line on
// original_source/src-engine/src/transcription/queue.rs's TranscriptionQueue:
// overflow drops the incoming segment, and stopping the worker still drains
// whatever is already queued before it exits.
type Queue struct {
	mu    sync.Mutex
	items []pipeline.Segment

	capacity int

	workerActive atomic.Bool
	running      atomic.Bool
	workerDone   chan struct{}

	transcriber Transcriber
	recorder    Recorder
	bus         *pipeline.Bus
	logger      pipeline.Logger
}

// NewQueue constructs a queue bounded at MaxQueueSize. recorder may be nil
// to disable WAV persistence.
func NewQueue(transcriber Transcriber, recorder Recorder, bus *pipeline.Bus, logger pipeline.Logger) *Queue {
	if logger == nil {
		logger = pipeline.NoOpLogger{}
	}
	return &Queue{
		capacity:    MaxQueueSize,
		transcriber: transcriber,
		recorder:    recorder,
		bus:         bus,
		logger:      logger,
		workerDone:  make(chan struct{}),
	}
}

// Depth returns the current queue length.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Submit implements pipeline.SegmentSubmitter: enqueues seg, returning
// false (without adding it) if the queue is at capacity.
func (q *Queue) Submit(seg pipeline.Segment) bool {
	q.mu.Lock()
	if len(q.items) >= q.capacity {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, seg)
	q.mu.Unlock()
	return true
}

func (q *Queue) dequeue() (pipeline.Segment, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return pipeline.Segment{}, false
	}
	seg := q.items[0]
	q.items = q.items[1:]
	return seg, true
}

// StartWorker launches the single consumer goroutine. No-op if already
// running.
func (q *Queue) StartWorker() {
	if !q.workerActive.CompareAndSwap(false, true) {
		return
	}
	q.running.Store(true)
	q.workerDone = make(chan struct{})
	go q.run()
}

func (q *Queue) run() {
	defer close(q.workerDone)
	for {
		if !q.running.Load() && q.Depth() == 0 {
			q.logger.Debug("transcribe: worker exiting, queue drained")
			return
		}

		seg, ok := q.dequeue()
		if !ok {
			time.Sleep(workerIdleSleep)
			continue
		}
		q.process(seg)
	}
}

func (q *Queue) process(seg pipeline.Segment) {
	var wavPath string
	if q.recorder != nil {
		if path, err := q.recorder.Save(seg); err != nil {
			q.logger.Warn("transcribe: failed to persist segment", "error", err)
		} else {
			wavPath = path
		}
	}

	q.bus.Publish(pipeline.Event{Type: pipeline.EventTranscriptionStarted})

	text, err := q.transcriber.Transcribe(seg.Samples, seg.SampleRate, seg.DurationMS())
	if err != nil {
		q.bus.Publish(pipeline.Event{Type: pipeline.EventTranscriptionError, Data: pipeline.TranscriptionErrorData{Err: err}})
	} else {
		q.bus.Publish(pipeline.Event{Type: pipeline.EventTranscriptionComplete, Data: pipeline.TranscriptionCompleteData{
			Text: text, WavPath: wavPath,
		}})
	}

	q.bus.Publish(pipeline.Event{Type: pipeline.EventTranscriptionFinished})
}

// StopWorker signals the worker to exit once the queue drains. It does not
// wait; use Shutdown to block until the worker actually stops.
func (q *Queue) StopWorker() {
	q.running.Store(false)
}

// Shutdown stops accepting the expectation of new work and waits for the
// worker to drain, bounded by timeout.
func (q *Queue) Shutdown(timeout time.Duration) {
	if !q.workerActive.Load() {
		return
	}
	q.StopWorker()
	select {
	case <-q.workerDone:
	case <-time.After(timeout):
		q.logger.Warn("transcribe: worker drain timed out")
	}
	q.workerActive.Store(false)
}
