// Package audio persists Segments to disk as WAV files, per spec.md §6's
// "Persisted audio artifacts" contract.
package audio

import (
	"bytes"
	"encoding/binary"
)

const (
	wavFormatFloat     = 3
	bitsPerSampleFloat = 32
)

// EncodeFloat32 builds a RIFF/WAVE buffer holding 32-bit IEEE-float PCM,
// the format spec.md §6 requires for persisted segments (original sample
// rate and channel count, no bit-depth downconversion). Adapted from the
// teacher's 16-bit integer PCM writer that used to live in this file.
func EncodeFloat32(samples []float32, sampleRate, channels int) []byte {
	if channels < 1 {
		channels = 1
	}
	dataLen := len(samples) * 4
	blockAlign := channels * 4
	byteRate := sampleRate * blockAlign

	buf := new(bytes.Buffer)
	buf.Grow(44 + dataLen)

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(wavFormatFloat))
	binary.Write(buf, binary.LittleEndian, uint16(channels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSampleFloat))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataLen))
	for _, s := range samples {
		binary.Write(buf, binary.LittleEndian, s)
	}

	return buf.Bytes()
}
