// Package capture implements Component A, the audio capture backend,
// against the host's real audio devices via malgo.
package capture

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/gen2brain/malgo"

	"github.com/keathmilligan/flowstt-core/pkg/pipeline"
)

const (
	defaultSampleRate   = 48000
	periodSizeInFrames  = 480 // 10ms at 48kHz, matching the ≈10-20ms batch cadence spec.md expects
	batchChannelBufSize = 256
)

type taggedBatch struct {
	samples []float32
	source  pipeline.SourceSlot
}

// Backend implements pipeline.CaptureBackend on top of two independent
// malgo capture devices (source1 "primary"/microphone, source2
// "system"/loopback reference). Adapted from the teacher's single-device
// malgo wiring in cmd/agent/main.go, generalized to the dual-source,
// restart-safe contract of spec.md §4.A.
type Backend struct {
	mu      sync.Mutex
	mctx    *malgo.AllocatedContext
	device1 *malgo.Device
	device2 *malgo.Device

	sampleRate int
	seq        atomic.Uint64

	// deviceCache maps a device's name (our pipeline.DeviceID) back to the
	// malgo.DeviceInfo discovered for it, since malgo addresses devices by
	// raw platform ID rather than by name. Repopulated on every list call.
	deviceCache map[pipeline.DeviceID]malgo.DeviceInfo

	batches chan taggedBatch
	closed  atomic.Bool
}

// New initializes the malgo audio context. Devices are opened lazily on
// StartCapture.
func New() (*Backend, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("capture: init context: %w", err)
	}
	return &Backend{
		mctx:        mctx,
		sampleRate:  defaultSampleRate,
		deviceCache: make(map[pipeline.DeviceID]malgo.DeviceInfo),
		batches:     make(chan taggedBatch, batchChannelBufSize),
	}, nil
}

// SampleRate returns the backend's fixed native sample rate.
func (b *Backend) SampleRate() int {
	return b.sampleRate
}

// ListInputDevices enumerates microphone-class capture devices.
func (b *Backend) ListInputDevices() ([]pipeline.Device, error) {
	return b.listDevices(malgo.Capture)
}

// ListSystemDevices enumerates loopback/system-audio capture devices. Not
// every platform exposes loopback capture through malgo; an empty list is
// a valid (if unfortunate) answer, not an error.
func (b *Backend) ListSystemDevices() ([]pipeline.Device, error) {
	devices, err := b.listDevices(malgo.Loopback)
	if err != nil {
		return nil, nil
	}
	return devices, nil
}

func (b *Backend) listDevices(deviceType malgo.DeviceType) ([]pipeline.Device, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.mctx == nil {
		return nil, pipeline.ErrDeviceUnavailable
	}

	infos, err := b.mctx.Devices(deviceType)
	if err != nil {
		return nil, fmt.Errorf("capture: enumerate devices: %w", err)
	}

	out := make([]pipeline.Device, len(infos))
	for i, info := range infos {
		id := pipeline.DeviceID(info.Name())
		b.deviceCache[id] = info
		out[i] = pipeline.Device{ID: id, Name: info.Name()}
	}
	return out, nil
}

// StartCapture opens one or two malgo devices for the given sources.
// Stops any prior capture first, per spec.md §4.A's restart contract.
func (b *Backend) StartCapture(source1, source2 *pipeline.DeviceID) error {
	if source1 == nil && source2 == nil {
		return pipeline.ErrInvalidArgument
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.stopLocked()

	if source1 != nil {
		dev, err := b.openDeviceLocked(*source1, pipeline.Source1)
		if err != nil {
			return err
		}
		b.device1 = dev
	}
	if source2 != nil {
		dev, err := b.openDeviceLocked(*source2, pipeline.Source2)
		if err != nil {
			if b.device1 != nil {
				b.device1.Uninit()
				b.device1 = nil
			}
			return err
		}
		b.device2 = dev
	}

	if b.device1 != nil {
		if err := b.device1.Start(); err != nil {
			b.stopLocked()
			return fmt.Errorf("capture: start device 1: %w", err)
		}
	}
	if b.device2 != nil {
		if err := b.device2.Start(); err != nil {
			b.stopLocked()
			return fmt.Errorf("capture: start device 2: %w", err)
		}
	}
	return nil
}

func (b *Backend) openDeviceLocked(id pipeline.DeviceID, slot pipeline.SourceSlot) (*malgo.Device, error) {
	deviceConfig := malgo.DeviceConfig{
		DeviceType:         malgo.Capture,
		SampleRate:         uint32(b.sampleRate),
		PeriodSizeInFrames: periodSizeInFrames,
		Capture: malgo.SubConfig{
			Format:   malgo.FormatF32,
			Channels: 1,
		},
	}
	if id != "" {
		if info, ok := b.deviceCache[id]; ok {
			deviceConfig.Capture.DeviceID = info.ID.Pointer()
		}
	}

	onRecv := func(_, input []byte, _ uint32) {
		if len(input) == 0 || b.closed.Load() {
			return
		}
		samples := bytesToFloat32Copy(input)
		b.seq.Add(1)
		select {
		case b.batches <- taggedBatch{samples: samples, source: slot}:
		default:
		}
	}

	device, err := malgo.InitDevice(b.mctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onRecv})
	if err != nil {
		return nil, fmt.Errorf("capture: init device: %w", err)
	}
	return device, nil
}

// StopCapture tears down both open devices, if any.
func (b *Backend) StopCapture() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopLocked()
	return nil
}

func (b *Backend) stopLocked() {
	if b.device1 != nil {
		b.device1.Stop()
		b.device1.Uninit()
		b.device1 = nil
	}
	if b.device2 != nil {
		b.device2.Stop()
		b.device2.Uninit()
		b.device2 = nil
	}
	b.drainStale()
}

func (b *Backend) drainStale() {
	for {
		select {
		case <-b.batches:
		default:
			return
		}
	}
}

// TryRecv returns at most one pending batch, non-blocking.
func (b *Backend) TryRecv() (pipeline.AudioFrameBatch, bool) {
	select {
	case tb := <-b.batches:
		return pipeline.AudioFrameBatch{
			Samples:    tb.samples,
			SampleRate: b.sampleRate,
			Channels:   1,
			Source:     tb.source,
			ArrivalSeq: b.seq.Load(),
		}, true
	default:
		return pipeline.AudioFrameBatch{}, false
	}
}

// Close releases the malgo context. The backend is unusable afterward.
func (b *Backend) Close() error {
	b.closed.Store(true)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopLocked()
	if b.mctx != nil {
		b.mctx.Uninit()
		b.mctx.Free()
		b.mctx = nil
	}
	return nil
}

func bytesToFloat32Copy(data []byte) []float32 {
	n := len(data) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		off := i * 4
		bits := uint32(data[off]) | uint32(data[off+1])<<8 | uint32(data[off+2])<<16 | uint32(data[off+3])<<24
		out[i] = *(*float32)(unsafe.Pointer(&bits))
	}
	return out
}
