// Package audio provides small audio helpers shared by the TTS backends:
// fixed-duration PCM frame slicing and playback-speed adjustment through an
// external ffmpeg transcode.
package audio

// bytesPerSample is the size of one little-endian int16 PCM sample.
const bytesPerSample = 2

// FrameBytes returns the byte size of a PCM frame of durationMs milliseconds
// at the given sample rate and channel count, assuming int16 samples.
func FrameBytes(sampleRate, channels, durationMs int) int {
	samples := sampleRate * durationMs / 1000
	return samples * channels * bytesPerSample
}

// SplitFrames slices pcm into consecutive frames of frameBytes each. The
// trailing partial frame, if any, is returned as-is. Frames alias the input
// buffer; callers must not mutate pcm afterwards. A non-positive frameBytes
// returns the whole buffer as a single frame.
func SplitFrames(pcm []byte, frameBytes int) [][]byte {
	if len(pcm) == 0 {
		return nil
	}
	if frameBytes <= 0 {
		return [][]byte{pcm}
	}
	frames := make([][]byte, 0, (len(pcm)+frameBytes-1)/frameBytes)
	for len(pcm) > 0 {
		end := min(frameBytes, len(pcm))
		frames = append(frames, pcm[:end])
		pcm = pcm[end:]
	}
	return frames
}
