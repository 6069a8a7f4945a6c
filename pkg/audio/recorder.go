package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/keathmilligan/flowstt-core/pkg/pipeline"
)

// Recorder implements transcribe.Recorder, saving segments as WAV under a
// data directory's recordings subfolder. Filenames follow spec.md §6:
// flowstt-YYYYMMDD-HHMMSS.wav in UTC.
type Recorder struct {
	dir     string
	enabled bool
}

// NewRecorder returns a Recorder rooted at <dataDir>/flowstt/recordings.
// If enabled is false, Save is a no-op that returns an empty path.
func NewRecorder(dataDir string, enabled bool) *Recorder {
	return &Recorder{dir: filepath.Join(dataDir, "flowstt", "recordings"), enabled: enabled}
}

// Save writes seg to disk and returns the path written.
func (r *Recorder) Save(seg pipeline.Segment) (string, error) {
	if !r.enabled {
		return "", nil
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("audio: create recordings dir: %w", err)
	}

	name := fmt.Sprintf("flowstt-%s.wav", time.Now().UTC().Format("20060102-150405"))
	path := filepath.Join(r.dir, name)

	data := EncodeFloat32(seg.Samples, seg.SampleRate, seg.Channels)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("audio: write wav: %w", err)
	}
	return path, nil
}
