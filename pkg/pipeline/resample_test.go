package pipeline

import "testing"

func TestResample_NoOpWhenRatesMatch(t *testing.T) {
	in := []float32{0.1, 0.2, 0.3}
	out := Resample(in, 16000, 16000)
	if len(out) != len(in) {
		t.Fatalf("expected same length, got %d", len(out))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("index %d: expected %v, got %v", i, in[i], out[i])
		}
	}
}

func TestResample_Downsamples48kTo16k(t *testing.T) {
	in := make([]float32, 48000)
	for i := range in {
		in[i] = float32(i) / float32(len(in))
	}
	out := Resample(in, 48000, 16000)

	expectedLen := 16000
	if out == nil || len(out) < expectedLen-1 || len(out) > expectedLen+1 {
		t.Errorf("expected roughly %d samples, got %d", expectedLen, len(out))
	}
}

func TestResample_UpsamplesPreservesEndpoints(t *testing.T) {
	in := []float32{0, 1}
	out := Resample(in, 8000, 16000)
	if len(out) == 0 {
		t.Fatal("expected non-empty output")
	}
	if out[0] != in[0] {
		t.Errorf("expected first sample preserved, got %v", out[0])
	}
	if last := out[len(out)-1]; last != in[len(in)-1] {
		t.Errorf("expected last sample preserved, got %v", last)
	}
}

func TestToMono16k_FoldsStereoToMono(t *testing.T) {
	// Interleaved stereo at 16kHz: left=1.0, right=-1.0 -> mono average 0.
	stereo := make([]float32, 1600)
	for i := 0; i < len(stereo); i += 2 {
		stereo[i] = 1.0
		stereo[i+1] = -1.0
	}
	mono := ToMono16k(stereo, 16000, 2)
	if len(mono) != 800 {
		t.Fatalf("expected 800 mono frames, got %d", len(mono))
	}
	for i, s := range mono {
		if s != 0 {
			t.Fatalf("frame %d: expected 0 after averaging opposite channels, got %v", i, s)
		}
	}
}

func TestToMono16k_ResamplesAfterFolding(t *testing.T) {
	stereo := make([]float32, 9600) // 100ms @ 48kHz stereo
	mono := ToMono16k(stereo, 48000, 2)

	expectedLen := 1600 // 100ms @ 16kHz
	if mono == nil || len(mono) < expectedLen-1 || len(mono) > expectedLen+1 {
		t.Errorf("expected roughly %d samples, got %d", expectedLen, len(mono))
	}
}
