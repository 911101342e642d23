package audio

import (
	"encoding/binary"
	"fmt"
)

const (
	wavHeaderSize = 44
	pcmFormatTag  = 1
	bitsPerSample = 16
)

// WAVInfo describes a parsed WAV header.
type WAVInfo struct {
	SampleRate int
	Channels   int
	BitDepth   int
	DataSize   int
}

// EncodeWAV wraps raw single-channel 16-bit little-endian PCM in a 44-byte
// RIFF/WAVE header. Deterministic, no side effects.
func EncodeWAV(pcm []byte, sampleRate int) []byte {
	if sampleRate <= 0 {
		sampleRate = 16000
	}

	dataSize := len(pcm)
	channels := 1
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	out := make([]byte, wavHeaderSize+dataSize)

	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+dataSize))
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], pcmFormatTag)
	binary.LittleEndian.PutUint16(out[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], bitsPerSample)

	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(dataSize))

	copy(out[44:], pcm)
	return out
}

// ParseWAVHeader reads back the fields written by EncodeWAV. Used by tests and
// by the purge tool when inspecting archived samples.
func ParseWAVHeader(data []byte) (*WAVInfo, error) {
	if len(data) < wavHeaderSize {
		return nil, fmt.Errorf("wav: data too short (%d bytes)", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("wav: missing RIFF/WAVE magic")
	}
	if string(data[12:16]) != "fmt " || string(data[36:40]) != "data" {
		return nil, fmt.Errorf("wav: unexpected chunk layout")
	}
	if tag := binary.LittleEndian.Uint16(data[20:22]); tag != pcmFormatTag {
		return nil, fmt.Errorf("wav: unsupported format tag %d", tag)
	}

	info := &WAVInfo{
		Channels:   int(binary.LittleEndian.Uint16(data[22:24])),
		SampleRate: int(binary.LittleEndian.Uint32(data[24:28])),
		BitDepth:   int(binary.LittleEndian.Uint16(data[34:36])),
		DataSize:   int(binary.LittleEndian.Uint32(data[40:44])),
	}

	riffSize := int(binary.LittleEndian.Uint32(data[4:8]))
	if riffSize != 36+info.DataSize {
		return nil, fmt.Errorf("wav: RIFF size %d does not match data size %d", riffSize, info.DataSize)
	}
	return info, nil
}
