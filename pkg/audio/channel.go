package audio

// ExtractFirstChannel takes interleaved dual-channel 16-bit little-endian PCM
// and returns only the first channel's samples. The monitor feed mixes the
// assistant's audio into the second channel, so the first channel isolates the
// caller's voice.
//
// A trailing odd byte or half sample pair is dropped rather than guessed at.
func ExtractFirstChannel(interleaved []byte) []byte {
	// 2 bytes per sample, 2 channels per frame
	const frameSize = 4

	frames := len(interleaved) / frameSize
	mono := make([]byte, 0, frames*2)
	for i := 0; i+frameSize <= len(interleaved); i += frameSize {
		mono = append(mono, interleaved[i], interleaved[i+1])
	}
	return mono
}
