package pipeline

import "errors"

var (
	// ErrDeviceUnavailable is returned when the capture backend cannot open
	// a requested source.
	ErrDeviceUnavailable = errors.New("audio device unavailable")

	// ErrQueueFull is reported when a completed segment is dropped because
	// the transcription queue is saturated.
	ErrQueueFull = errors.New("transcription queue full")

	// ErrModelMissing indicates the configured Whisper model file does not
	// exist on disk.
	ErrModelMissing = errors.New("whisper model file missing")

	// ErrModelLoadFailed indicates the model file exists but failed to load.
	ErrModelLoadFailed = errors.New("whisper model failed to load")

	// ErrPermissionDenied is fatal only for hotkey capture start.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInvalidArgument covers request-validation failures.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrConfigIOFailed is non-fatal: in-memory state still applies.
	ErrConfigIOFailed = errors.New("config file io failed")

	// ErrTimeout is returned when a bounded operation (e.g. ConfigureSources)
	// exceeds its deadline.
	ErrTimeout = errors.New("operation timed out")
)
