// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a remote speech synthesis service (e.g., Smallest.ai or
// Bhashini) and presents a uniform streaming contract: one call carries a full
// utterance and the result arrives as an ordered, single-pass sequence of audio
// frames. Frame granularity is backend-specific — a container-format backend
// may emit one large frame while a raw-PCM backend emits many small ones — and
// consumers must not assume a frame-size contract.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"
	"errors"
)

// ErrNoAudio indicates a backend call completed without producing any audio
// for non-empty input text.
var ErrNoAudio = errors.New("tts: backend produced no audio")

// ErrInvalidAudio indicates the backend returned a payload that is not valid
// audio (wrong signature, implausibly short, or empty).
var ErrInvalidAudio = errors.New("tts: invalid audio payload")

// Provider is the abstraction over any TTS backend.
//
// Implementations must be safe for concurrent use; multiple synthesis requests
// may run in parallel.
type Provider interface {
	// Synthesize cleans text, issues one network call for the full utterance,
	// and returns a channel emitting audio frames in order. The channel is
	// finite, single-pass, and closed by the implementation once all frames
	// have been emitted or ctx is cancelled; re-consuming requires a new call.
	//
	// When the cleaned text is empty, Synthesize returns a closed channel and
	// a nil error without contacting the backend — nothing to speak is not a
	// failure. A non-nil error means no audio will ever arrive: transport
	// failure, non-success HTTP status, timeout, or an invalid payload.
	Synthesize(ctx context.Context, text string) (<-chan []byte, error)

	// SampleRate returns the sample rate of emitted audio in Hz.
	SampleRate() int

	// Channels returns the channel count of emitted audio.
	Channels() int

	// Close releases pooled network resources. The provider must not be used
	// after Close returns.
	Close() error
}

// EmptyStream returns a closed channel carrying no frames. Backends use it for
// the "nothing to synthesize" success case.
func EmptyStream() <-chan []byte {
	ch := make(chan []byte)
	close(ch)
	return ch
}
