package audio

import (
	"bytes"
	"testing"
)

func TestEncodeWAVHeaderSizes(t *testing.T) {
	tests := []struct {
		name       string
		dataLen    int
		sampleRate int
	}{
		{name: "one second at 16k", dataLen: 32000, sampleRate: 16000},
		{name: "empty payload", dataLen: 0, sampleRate: 16000},
		{name: "odd length", dataLen: 12345, sampleRate: 24000},
		{name: "48k sample", dataLen: 96000, sampleRate: 48000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pcm := make([]byte, tt.dataLen)
			for i := range pcm {
				pcm[i] = byte(i)
			}

			wav := EncodeWAV(pcm, tt.sampleRate)
			if len(wav) != 44+tt.dataLen {
				t.Fatalf("total size = %d, want %d", len(wav), 44+tt.dataLen)
			}

			info, err := ParseWAVHeader(wav)
			if err != nil {
				t.Fatalf("ParseWAVHeader: %v", err)
			}
			if info.DataSize != tt.dataLen {
				t.Errorf("data size = %d, want %d", info.DataSize, tt.dataLen)
			}
			if info.SampleRate != tt.sampleRate {
				t.Errorf("sample rate = %d, want %d", info.SampleRate, tt.sampleRate)
			}
			if info.Channels != 1 {
				t.Errorf("channels = %d, want 1", info.Channels)
			}
			if info.BitDepth != 16 {
				t.Errorf("bit depth = %d, want 16", info.BitDepth)
			}
			if !bytes.Equal(wav[44:], pcm) {
				t.Error("payload not preserved after header")
			}
		})
	}
}

func TestEncodeWAVDefaultsSampleRate(t *testing.T) {
	wav := EncodeWAV(make([]byte, 100), 0)
	info, err := ParseWAVHeader(wav)
	if err != nil {
		t.Fatalf("ParseWAVHeader: %v", err)
	}
	if info.SampleRate != 16000 {
		t.Errorf("sample rate = %d, want default 16000", info.SampleRate)
	}
}

func TestParseWAVHeaderRejectsGarbage(t *testing.T) {
	if _, err := ParseWAVHeader([]byte("not a wav")); err == nil {
		t.Error("short input: want error")
	}

	wav := EncodeWAV(make([]byte, 64), 16000)
	copy(wav[0:4], "JUNK")
	if _, err := ParseWAVHeader(wav); err == nil {
		t.Error("bad magic: want error")
	}
}

func TestExtractFirstChannel(t *testing.T) {
	// 3 sample pairs: L0 R0 L1 R1 L2 R2 (little-endian int16)
	interleaved := []byte{
		0x01, 0x00, 0xFF, 0x7F,
		0x02, 0x00, 0x00, 0x80,
		0x03, 0x00, 0x34, 0x12,
	}
	want := []byte{0x01, 0x00, 0x02, 0x00, 0x03, 0x00}

	got := ExtractFirstChannel(interleaved)
	if !bytes.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	// Deterministic: second run yields the same result
	if again := ExtractFirstChannel(interleaved); !bytes.Equal(again, got) {
		t.Error("extraction not deterministic")
	}
}

func TestExtractFirstChannelDropsPartialFrame(t *testing.T) {
	interleaved := []byte{0x01, 0x00, 0x02, 0x00, 0x03}
	got := ExtractFirstChannel(interleaved)
	want := []byte{0x01, 0x00}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	if got := ExtractFirstChannel(nil); len(got) != 0 {
		t.Errorf("nil input: got %d bytes, want 0", len(got))
	}
}
