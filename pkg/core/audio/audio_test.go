package audio

import (
	"encoding/base64"
	"encoding/binary"
	"math"
	"testing"
)

func pcmFrom(samples ...int16) []byte {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}
	return pcm
}

func TestAmplitude(t *testing.T) {
	tests := []struct {
		name     string
		pcm      []byte
		expected float64
	}{
		{name: "empty", pcm: nil, expected: 0},
		{name: "single byte", pcm: []byte{0x7f}, expected: 0},
		{name: "silence", pcm: pcmFrom(0, 0, 0, 0), expected: 0},
		{name: "quarter scale", pcm: pcmFrom(8192, -8192, 8192, -8192), expected: 0.5},
		{name: "half scale saturates", pcm: pcmFrom(16384, -16384), expected: 1},
		{name: "full scale clamps", pcm: pcmFrom(32767, -32768), expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Amplitude(tt.pcm)
			if math.Abs(got-tt.expected) > 0.001 {
				t.Fatalf("Amplitude()=%.4f, want %.4f", got, tt.expected)
			}
		})
	}
}

func TestAmplitudeBase64(t *testing.T) {
	enc := base64.StdEncoding.EncodeToString(pcmFrom(8192, 8192))
	if got := AmplitudeBase64(enc); math.Abs(got-0.5) > 0.001 {
		t.Fatalf("AmplitudeBase64()=%.4f, want 0.5", got)
	}
	if got := AmplitudeBase64("%%%not-base64"); got != 0 {
		t.Fatalf("AmplitudeBase64(invalid)=%v, want 0", got)
	}
}

func TestPeakAmplitude(t *testing.T) {
	if got := PeakAmplitude(pcmFrom(100, -32768, 5)); got != 1 {
		t.Fatalf("PeakAmplitude()=%v, want 1", got)
	}
	if got := PeakAmplitude(nil); got != 0 {
		t.Fatalf("PeakAmplitude(nil)=%v, want 0", got)
	}
}

func TestEncodeWAV(t *testing.T) {
	pcm := pcmFrom(1, 2, 3)
	wav := EncodeWAV(pcm, 16000, 1)

	if len(wav) != WAVHeaderSize+len(pcm) {
		t.Fatalf("len=%d, want %d", len(wav), WAVHeaderSize+len(pcm))
	}
	if !IsWAV(wav) {
		t.Fatal("expected RIFF/WAVE header")
	}
	if got := binary.LittleEndian.Uint32(wav[4:8]); got != uint32(36+len(pcm)) {
		t.Fatalf("riff size=%d", got)
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != 16000 {
		t.Fatalf("sample rate=%d", got)
	}
	if got := binary.LittleEndian.Uint32(wav[28:32]); got != 32000 {
		t.Fatalf("byte rate=%d", got)
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != uint32(len(pcm)) {
		t.Fatalf("data size=%d", got)
	}
	if IsWAV(pcm) {
		t.Fatal("raw pcm must not look like WAV")
	}
}

func TestBuffer_TrimsOldest(t *testing.T) {
	f := Speech()
	b := NewBuffer(f, 1) // 32 bytes
	b.Write(make([]byte, 20))
	b.Write([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20})

	if b.Len() != 32 {
		t.Fatalf("len=%d, want 32", b.Len())
	}
	data := b.Take()
	if data[len(data)-1] != 20 {
		t.Fatalf("last byte=%d, want 20", data[len(data)-1])
	}
	if b.Len() != 0 {
		t.Fatalf("len after Take=%d, want 0", b.Len())
	}
}

func TestFormat_Durations(t *testing.T) {
	f := Speech()
	if f.BytesPerSecond() != 32000 {
		t.Fatalf("bytes/s=%d", f.BytesPerSecond())
	}
	if f.DurationMs(16000) != 500 {
		t.Fatalf("duration=%d", f.DurationMs(16000))
	}
	if f.BytesForDurationMs(100) != 3200 {
		t.Fatalf("bytes=%d", f.BytesForDurationMs(100))
	}
}
