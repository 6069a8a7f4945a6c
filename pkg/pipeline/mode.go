package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DeviceID identifies a capture device, opaque to the pipeline.
type DeviceID string

// Device is a capture device as enumerated by a CaptureBackend.
type Device struct {
	ID   DeviceID
	Name string
}

// CaptureBackend is Component A's contract, defined here (the consumer)
// rather than in pkg/capture, so the controller never imports the backend
// package directly. Grounded on the teacher's malgo usage in
// pkg/orchestrator/orchestrator.go, generalized to the two-source,
// restart-safe contract spec.md §4.A requires.
type CaptureBackend interface {
	ListInputDevices() ([]Device, error)
	ListSystemDevices() ([]Device, error)
	SampleRate() int
	StartCapture(source1, source2 *DeviceID) error
	StopCapture() error
	TryRecv() (AudioFrameBatch, bool)
}

// SegmentSubmitter is Component G's queue as seen by the controller: a
// bounded sink that reports back whether it accepted the segment.
type SegmentSubmitter interface {
	Submit(Segment) bool
}

const (
	configureSourcesTimeout = 2 * time.Second
	shutdownDrainTimeout    = 5 * time.Second
	audioPollInterval       = 5 * time.Millisecond
)

// Controller is Component H: the state machine mediating hotkeys, VAD
// events, capture start/stop, and segment submission. Its shutdown
// sequencing (sync.Once-guarded, lock-then-cancel-then-wait) is grounded on
// pkg/orchestrator/managed_stream.go's ManagedStream.Close/interrupt.
type Controller struct {
	mu sync.Mutex

	capture CaptureBackend
	queue   SegmentSubmitter
	bus     *Bus
	logger  Logger

	sampleRate int
	mixer      *Mixer
	lookback   *LookbackBuffer
	detector   *SpeechDetector
	segments   *SegmentBuffer

	state  ControllerState
	mode   TranscriptionMode
	source1, source2 *DeviceID

	// stateSnapshot mirrors state for the audio loop goroutine to read
	// without taking mu, which stopCaptureLocked holds while joining that
	// same goroutine.
	stateSnapshot atomic.Int32

	autoModeActive atomic.Bool
	capturing      atomic.Bool

	cancel context.CancelFunc
	loopWG sync.WaitGroup

	shutdownOnce sync.Once
	shutdownDone chan struct{}
}

// NewController builds a controller in the Idle state. Capture's sample
// rate is queried once and used for the whole pipeline's mono analysis;
// restarting capture never changes it (malgo backends fix format at open).
func NewController(capture CaptureBackend, queue SegmentSubmitter, bus *Bus, logger Logger) *Controller {
	if logger == nil {
		logger = NoOpLogger{}
	}
	sampleRate := capture.SampleRate()
	if sampleRate <= 0 {
		sampleRate = 48000
	}

	c := &Controller{
		capture:      capture,
		queue:        queue,
		bus:          bus,
		logger:       logger,
		sampleRate:   sampleRate,
		mixer:        NewMixer(sampleRate, Mixed, logger),
		lookback:     NewLookbackBuffer(sampleRate),
		segments:     NewSegmentBuffer(sampleRate, 1, logger),
		state:        Idle,
		mode:         PushToTalk,
		shutdownDone: make(chan struct{}),
	}
	c.detector = NewSpeechDetector(sampleRate, c.lookback)
	c.stateSnapshot.Store(int32(Idle))
	return c
}

// State returns the controller's current state.
func (c *Controller) State() ControllerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// fastState reads the state without taking mu, safe to call from the audio
// loop goroutine even while mu is held by a stop-in-progress caller.
func (c *Controller) fastState() ControllerState {
	return ControllerState(c.stateSnapshot.Load())
}

// setStateLocked updates both the mutex-guarded state and the lock-free
// snapshot. Callers must already hold mu.
func (c *Controller) setStateLocked(s ControllerState) {
	c.state = s
	c.stateSnapshot.Store(int32(s))
}

// ConfigureSources swaps the active capture sources, synchronously
// stopping and restarting capture if one is already open. Bound to
// configureSourcesTimeout; on exceedance the controller reports an error
// and remains in its prior state.
func (c *Controller) ConfigureSources(source1, source2 *DeviceID) error {
	if source1 == nil && source2 == nil {
		return ErrInvalidArgument
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	wasCapturing := c.capturing.Load()
	prevState := c.state

	done := make(chan error, 1)
	go func() {
		if wasCapturing {
			if err := c.capture.StopCapture(); err != nil {
				done <- err
				return
			}
		}
		c.source1, c.source2 = source1, source2
		if wasCapturing {
			done <- c.capture.StartCapture(source1, source2)
			return
		}
		done <- nil
	}()

	select {
	case err := <-done:
		if err != nil {
			return err
		}
	case <-time.After(configureSourcesTimeout):
		c.setStateLocked(prevState)
		return ErrTimeout
	}

	if c.state == Idle {
		return c.enterConfiguredStateLocked()
	}
	return nil
}

// SetMode changes the transcription mode. From Idle with sources already
// configured, this immediately transitions into the matching armed/running
// state. From an active armed/running state, it behaves like ToggleAutoMode.
func (c *Controller) SetMode(mode TranscriptionMode) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == PttRecording {
		return ErrInvalidArgument
	}

	c.mode = mode
	if c.state == Idle {
		return c.enterConfiguredStateLocked()
	}
	return c.applyModeToRunningStateLocked()
}

// ToggleAutoMode flips between AutomaticRunning and PttArmed, stopping
// capture cleanly if it was running in the old mode.
func (c *Controller) ToggleAutoMode() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != AutomaticRunning && c.state != PttArmed {
		return ErrInvalidArgument
	}
	if c.mode == Automatic {
		c.mode = PushToTalk
	} else {
		c.mode = Automatic
	}
	return c.applyModeToRunningStateLocked()
}

func (c *Controller) enterConfiguredStateLocked() error {
	if c.source1 == nil && c.source2 == nil {
		return nil
	}
	return c.applyModeToRunningStateLocked()
}

func (c *Controller) applyModeToRunningStateLocked() error {
	if c.capturing.Load() {
		if err := c.stopCaptureLocked(); err != nil {
			return err
		}
	}
	if c.mode == Automatic {
		if err := c.startCaptureLocked(); err != nil {
			return err
		}
		c.setStateLocked(AutomaticRunning)
		c.autoModeActive.Store(true)
	} else {
		c.setStateLocked(PttArmed)
		c.autoModeActive.Store(false)
	}
	return nil
}

// PttPressed transitions PttArmed -> PttRecording: starts capture and opens
// a segment with no lookback prefix, since the VAD plays no role in PTT
// recording — the whole press-to-release span is the segment.
func (c *Controller) PttPressed() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != PttArmed {
		return ErrInvalidArgument
	}
	if err := c.startCaptureLocked(); err != nil {
		return err
	}
	c.segments.OpenWithoutLookback()
	c.setStateLocked(PttRecording)
	return nil
}

// PttReleased transitions PttRecording -> PttArmed: stops capture and
// closes the segment unconditionally, even if VAD hold time was never
// reached (there is no VAD in PTT mode to begin with).
func (c *Controller) PttReleased() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != PttRecording {
		return ErrInvalidArgument
	}
	if err := c.stopCaptureLocked(); err != nil {
		return err
	}
	c.setStateLocked(PttArmed)
	if seg := c.segments.OnPttRelease(); seg != nil {
		c.submitSegmentLocked(seg)
	}
	return nil
}

// HandleHotkeyEvent routes a collaborator-delivered hotkey event. PTT
// events are ignored outside PttArmed/PttRecording; the hotkey layer is
// expected to suppress them there anyway, but the controller does not
// trust that filtering blindly.
func (c *Controller) HandleHotkeyEvent(ev HotkeyEvent) {
	switch ev.Type {
	case PttPressed:
		_ = c.PttPressed()
	case PttReleased:
		_ = c.PttReleased()
	case TogglePressed:
		_ = c.ToggleAutoMode()
	}
}

func (c *Controller) startCaptureLocked() error {
	if err := c.capture.StartCapture(c.source1, c.source2); err != nil {
		c.bus.Publish(Event{Type: EventCaptureStateChanged, Data: CaptureStateChangedData{Capturing: false, Err: err}})
		return err
	}
	c.capturing.Store(true)

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.loopWG.Add(1)
	go c.runAudioLoop(ctx)

	c.bus.Publish(Event{Type: EventCaptureStateChanged, Data: CaptureStateChangedData{Capturing: true}})
	return nil
}

func (c *Controller) stopCaptureLocked() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.loopWG.Wait()
	err := c.capture.StopCapture()
	c.capturing.Store(false)
	c.bus.Publish(Event{Type: EventCaptureStateChanged, Data: CaptureStateChangedData{Capturing: false, Err: err}})
	return err
}

// runAudioLoop is the logical audio thread: A -> B -> C -> D -> E, and the
// mono append into F. Never blocks on I/O or a lock held across a batch
// period; TryRecv is non-blocking and an empty result just sleeps briefly.
func (c *Controller) runAudioLoop(ctx context.Context) {
	defer c.loopWG.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		batch, ok := c.capture.TryRecv()
		if !ok {
			time.Sleep(audioPollInterval)
			continue
		}
		c.mixer.Push(batch)

		mono := c.mixer.Mix(c.source1 != nil, c.source2 != nil)
		if len(mono) == 0 {
			continue
		}
		c.lookback.Push(mono)

		state := c.fastState()
		if state == PttRecording {
			c.segments.Append(mono)
			continue
		}
		if state != AutomaticRunning {
			continue
		}

		feats := ExtractFeatures(mono, c.sampleRate)
		_, speaking, _ := c.detector.GetMetrics()
		c.bus.Publish(Event{Type: EventVisualizationFrame, Data: VisualizationFrameData{
			AmplitudeDB: feats.AmplitudeDB, ZCR: feats.ZCR, CentroidHz: feats.CentroidHz, IsSpeaking: speaking,
		}})

		c.processVADBatch(feats, mono)
	}
}

func (c *Controller) processVADBatch(feats Features, mono []float32) {
	events := c.detector.Process(feats, len(mono))
	appended := false

	for _, ev := range events {
		switch ev.Kind {
		case VADSpeechStarted:
			c.segments.OnSpeechStarted(ev.LookbackSamples)
			c.bus.Publish(Event{Type: EventSpeechStarted, Data: SpeechStartedData{
				LookbackSamples: ev.LookbackSamples, OffsetMS: ev.OffsetMS,
			}})
		case VADWordBreak:
			c.segments.Append(mono)
			appended = true
			if seg := c.segments.OnWordBreak(ev.OffsetMS, ev.GapMS); seg != nil {
				c.submitSegment(seg)
			}
			c.bus.Publish(Event{Type: EventWordBreak, Data: WordBreakData{OffsetMS: ev.OffsetMS, GapMS: ev.GapMS}})
		case VADSpeechEnded:
			if seg := c.segments.OnSpeechEnded(); seg != nil {
				c.submitSegment(seg)
			}
			c.bus.Publish(Event{Type: EventSpeechEnded, Data: SpeechEndedData{DurationMS: ev.DurationMS}})
		}
	}

	if _, speaking, _ := c.detector.GetMetrics(); speaking && !appended {
		c.segments.Append(mono)
	}
}

// submitSegment is the audio loop's entry point. It does not take mu: the
// stop paths hold mu while waiting for the audio loop to exit, and the
// queue, bus and logger it touches are fixed at construction.
func (c *Controller) submitSegment(seg *Segment) {
	c.submitSegmentLocked(seg)
}

func (c *Controller) submitSegmentLocked(seg *Segment) {
	resampled := ToMono16k(seg.Samples, seg.SampleRate, seg.Channels)
	out := *seg
	out.Samples = resampled
	out.SampleRate = TargetSampleRate
	out.Channels = 1

	if !c.queue.Submit(out) {
		c.logger.Warn("controller: transcription queue full, dropping segment")
		c.bus.Publish(Event{Type: EventTranscriptionError, Data: TranscriptionErrorData{Err: ErrQueueFull}})
	}
}

// Shutdown stops capture, finalizes and submits any open segment, then
// waits up to shutdownDrainTimeout for the audio loop to exit before
// emitting Shutdown on the bus. Idempotent.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.shutdownOnce.Do(func() {
		c.mu.Lock()
		if c.capturing.Load() {
			_ = c.stopCaptureLocked()
		}
		if seg := c.segments.Finalize(); seg != nil {
			c.submitSegmentLocked(seg)
		}
		c.setStateLocked(Idle)
		c.mu.Unlock()

		drained := make(chan struct{})
		go func() {
			c.loopWG.Wait()
			close(drained)
		}()

		select {
		case <-drained:
		case <-time.After(shutdownDrainTimeout):
			c.logger.Warn("controller: shutdown drain timed out, forcing exit")
		case <-ctx.Done():
		}

		c.bus.Publish(Event{Type: EventShutdown})
		close(c.shutdownDone)
	})
	<-c.shutdownDone
	return nil
}
