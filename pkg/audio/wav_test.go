package audio

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestEncodeFloat32_Headers(t *testing.T) {
	samples := []float32{0.1, -0.2, 0.3, -0.4}
	wav := EncodeFloat32(samples, 16000, 1)

	if !bytes.HasPrefix(wav, []byte("RIFF")) {
		t.Errorf("expected RIFF prefix")
	}
	if !bytes.Contains(wav, []byte("WAVE")) {
		t.Errorf("expected WAVE identifier")
	}

	expectedLen := 44 + len(samples)*4
	if len(wav) != expectedLen {
		t.Errorf("expected length %d, got %d", expectedLen, len(wav))
	}

	audioFormat := binary.LittleEndian.Uint16(wav[20:22])
	if audioFormat != wavFormatFloat {
		t.Errorf("expected IEEE float format tag %d, got %d", wavFormatFloat, audioFormat)
	}
	bits := binary.LittleEndian.Uint16(wav[34:36])
	if bits != bitsPerSampleFloat {
		t.Errorf("expected %d bits per sample, got %d", bitsPerSampleFloat, bits)
	}
}

func TestEncodeFloat32_StereoBlockAlign(t *testing.T) {
	samples := []float32{0.1, 0.2, 0.3, 0.4}
	wav := EncodeFloat32(samples, 48000, 2)

	blockAlign := binary.LittleEndian.Uint16(wav[32:34])
	if blockAlign != 8 {
		t.Errorf("expected block align 8 for stereo float32, got %d", blockAlign)
	}
}
