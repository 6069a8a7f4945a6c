package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fakeCapture is a CaptureBackend double that replays queued batches
// through TryRecv, mimicking the malgo backend's non-blocking drain
// contract without any real audio hardware.
type fakeCapture struct {
	mu       sync.Mutex
	rate     int
	batches  []AudioFrameBatch
	started  bool
	stopErr  error
	startErr error
}

func newFakeCapture(rate int) *fakeCapture {
	return &fakeCapture{rate: rate}
}

func (f *fakeCapture) ListInputDevices() ([]Device, error) {
	return []Device{{ID: "mic1", Name: "Fake Mic"}}, nil
}

func (f *fakeCapture) ListSystemDevices() ([]Device, error) {
	return []Device{{ID: "sys1", Name: "Fake System"}}, nil
}

func (f *fakeCapture) SampleRate() int { return f.rate }

func (f *fakeCapture) StartCapture(source1, source2 *DeviceID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	return nil
}

func (f *fakeCapture) StopCapture() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = false
	return f.stopErr
}

func (f *fakeCapture) feed(samples []float32, batchSize int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for start := 0; start < len(samples); start += batchSize {
		end := start + batchSize
		if end > len(samples) {
			end = len(samples)
		}
		f.batches = append(f.batches, AudioFrameBatch{Samples: samples[start:end], Source: Source1})
	}
}

func (f *fakeCapture) TryRecv() (AudioFrameBatch, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.batches) == 0 {
		return AudioFrameBatch{}, false
	}
	b := f.batches[0]
	f.batches = f.batches[1:]
	return b, true
}

// fakeSubmitter is a SegmentSubmitter double that records every accepted
// segment, standing in for the transcription queue.
type fakeSubmitter struct {
	mu       sync.Mutex
	segments []Segment
	reject   bool
}

func (f *fakeSubmitter) Submit(seg Segment) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reject {
		return false
	}
	f.segments = append(f.segments, seg)
	return true
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.segments)
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func mic1() *DeviceID {
	id := DeviceID("mic1")
	return &id
}

func TestController_ConfigureSourcesThenSetModeEntersPttArmed(t *testing.T) {
	cap := newFakeCapture(16000)
	sub := &fakeSubmitter{}
	c := NewController(cap, sub, NewBus(16), NoOpLogger{})

	if err := c.ConfigureSources(mic1(), nil); err != nil {
		t.Fatalf("ConfigureSources: %v", err)
	}
	if err := c.SetMode(PushToTalk); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if got := c.State(); got != PttArmed {
		t.Fatalf("expected PttArmed, got %v", got)
	}
}

func TestController_PttPressReleaseProducesSegment(t *testing.T) {
	cap := newFakeCapture(16000)
	sub := &fakeSubmitter{}
	c := NewController(cap, sub, NewBus(16), NoOpLogger{})

	if err := c.ConfigureSources(mic1(), nil); err != nil {
		t.Fatalf("ConfigureSources: %v", err)
	}
	if err := c.SetMode(PushToTalk); err != nil {
		t.Fatalf("SetMode: %v", err)
	}

	if err := c.PttPressed(); err != nil {
		t.Fatalf("PttPressed: %v", err)
	}
	if got := c.State(); got != PttRecording {
		t.Fatalf("expected PttRecording, got %v", got)
	}

	samples := make([]float32, 16000) // 1s, well over the min-duration guard
	for i := range samples {
		if i%2 == 0 {
			samples[i] = 0.5
		} else {
			samples[i] = -0.5
		}
	}
	cap.feed(samples, 160)

	waitUntil(t, time.Second, func() bool { return cap.TryRecvDrained() })

	if err := c.PttReleased(); err != nil {
		t.Fatalf("PttReleased: %v", err)
	}
	if got := c.State(); got != PttArmed {
		t.Fatalf("expected PttArmed after release, got %v", got)
	}
	if sub.count() != 1 {
		t.Fatalf("expected exactly one segment submitted, got %d", sub.count())
	}
}

// TryRecvDrained reports whether the queued batches have all been
// consumed, used by tests to wait for the audio loop to catch up.
func (f *fakeCapture) TryRecvDrained() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches) == 0
}

func TestController_AutomaticModeSpeechStartedThenEndedSubmitsSegment(t *testing.T) {
	sr := 16000
	cap := newFakeCapture(sr)
	sub := &fakeSubmitter{}
	bus := NewBus(32)
	ch, id := bus.Subscribe()
	defer bus.Unsubscribe(id)

	c := NewController(cap, sub, bus, NoOpLogger{})
	if err := c.ConfigureSources(mic1(), nil); err != nil {
		t.Fatalf("ConfigureSources: %v", err)
	}
	if err := c.SetMode(Automatic); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if got := c.State(); got != AutomaticRunning {
		t.Fatalf("expected AutomaticRunning, got %v", got)
	}

	tone := generateTone(600, 500, sr, 0.3)
	cap.feed(tone, sr/100) // 10ms batches

	var sawStarted, sawEnded bool
	deadline := time.After(3 * time.Second)
	for !sawEnded {
		select {
		case evt := <-ch:
			switch evt.Type {
			case EventSpeechStarted:
				sawStarted = true
				// Silence after the tone lets silenceHoldMS elapse and end speech.
				cap.feed(make([]float32, sr/2), sr/100)
			case EventSpeechEnded:
				sawEnded = true
			}
		case <-deadline:
			t.Fatal("timed out waiting for speech_started/speech_ended events")
		}
	}
	if !sawStarted {
		t.Fatal("expected a speech_started event before speech_ended")
	}

	waitUntil(t, time.Second, func() bool { return sub.count() >= 1 })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestController_ShutdownIsIdempotent(t *testing.T) {
	cap := newFakeCapture(16000)
	sub := &fakeSubmitter{}
	c := NewController(cap, sub, NewBus(16), NoOpLogger{})

	if err := c.ConfigureSources(mic1(), nil); err != nil {
		t.Fatalf("ConfigureSources: %v", err)
	}
	if err := c.SetMode(Automatic); err != nil {
		t.Fatalf("SetMode: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Shutdown(ctx); err != nil {
		t.Fatalf("first Shutdown: %v", err)
	}
	if err := c.Shutdown(ctx); err != nil {
		t.Fatalf("second Shutdown should be a no-op, got: %v", err)
	}
	if got := c.State(); got != Idle {
		t.Fatalf("expected Idle after shutdown, got %v", got)
	}
}

func TestController_ToggleAutoModeSwitchesBetweenArmedAndRunning(t *testing.T) {
	cap := newFakeCapture(16000)
	sub := &fakeSubmitter{}
	c := NewController(cap, sub, NewBus(16), NoOpLogger{})

	if err := c.ConfigureSources(mic1(), nil); err != nil {
		t.Fatalf("ConfigureSources: %v", err)
	}
	if err := c.SetMode(PushToTalk); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if got := c.State(); got != PttArmed {
		t.Fatalf("expected PttArmed, got %v", got)
	}

	if err := c.ToggleAutoMode(); err != nil {
		t.Fatalf("ToggleAutoMode: %v", err)
	}
	if got := c.State(); got != AutomaticRunning {
		t.Fatalf("expected AutomaticRunning after toggle, got %v", got)
	}

	if err := c.ToggleAutoMode(); err != nil {
		t.Fatalf("ToggleAutoMode back: %v", err)
	}
	if got := c.State(); got != PttArmed {
		t.Fatalf("expected PttArmed after second toggle, got %v", got)
	}
}

func TestController_PttPressedOutsideArmedIsRejected(t *testing.T) {
	cap := newFakeCapture(16000)
	sub := &fakeSubmitter{}
	c := NewController(cap, sub, NewBus(16), NoOpLogger{})

	if err := c.PttPressed(); err != ErrInvalidArgument {
		t.Fatalf("expected ErrInvalidArgument from Idle, got %v", err)
	}
}
