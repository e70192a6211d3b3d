// Package mock provides a test double for the tts.Provider interface.
//
// Use Provider to feed controlled audio frames to consumers and to verify the
// text each synthesis call received.
//
// Example:
//
//	p := &mock.Provider{
//	    SynthesizeFrames: [][]byte{[]byte("frame1"), []byte("frame2")},
//	}
//	ch, _ := p.Synthesize(ctx, "hello")
package mock

import (
	"context"
	"sync"

	"github.com/voxworks/voxrelay/pkg/provider/tts"
)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	// Ctx is the context passed to Synthesize.
	Ctx context.Context
	// Text is the text passed to Synthesize.
	Text string
}

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// SynthesizeFrames is the sequence of audio byte slices emitted on the
	// channel returned by Synthesize.
	SynthesizeFrames [][]byte

	// SynthesizeErr, if non-nil, is returned as the error from Synthesize
	// instead of starting a channel.
	SynthesizeErr error

	// FrameDelay, if set, is called before each frame is emitted. It allows
	// tests to block emission (e.g. until a context is cancelled).
	FrameDelay func(ctx context.Context, frameIndex int)

	// SampleRateValue is returned by SampleRate. Defaults to 24000 if zero.
	SampleRateValue int

	// CloseErr is returned by Close.
	CloseErr error

	// --- Call records ---

	// SynthesizeCalls records every call to Synthesize in order.
	SynthesizeCalls []SynthesizeCall

	// CloseCount is the number of times Close has been called.
	CloseCount int
}

// Synthesize records the call and, if SynthesizeErr is nil, returns a channel
// that emits SynthesizeFrames then closes.
func (p *Provider) Synthesize(ctx context.Context, text string) (<-chan []byte, error) {
	p.mu.Lock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Ctx: ctx, Text: text})
	if p.SynthesizeErr != nil {
		err := p.SynthesizeErr
		p.mu.Unlock()
		return nil, err
	}
	frames := make([][]byte, len(p.SynthesizeFrames))
	copy(frames, p.SynthesizeFrames)
	delay := p.FrameDelay
	p.mu.Unlock()

	ch := make(chan []byte, len(frames))
	go func() {
		defer close(ch)
		for i, frame := range frames {
			if delay != nil {
				delay(ctx, i)
			}
			select {
			case <-ctx.Done():
				return
			case ch <- frame:
			}
		}
	}()
	return ch, nil
}

// SampleRate returns SampleRateValue, defaulting to 24000.
func (p *Provider) SampleRate() int {
	if p.SampleRateValue != 0 {
		return p.SampleRateValue
	}
	return 24000
}

// Channels returns 1.
func (p *Provider) Channels() int { return 1 }

// Close increments CloseCount and returns CloseErr.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CloseCount++
	return p.CloseErr
}

// CallCount returns the number of recorded Synthesize calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.SynthesizeCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = nil
	p.CloseCount = 0
}

// Ensure Provider implements tts.Provider at compile time.
var _ tts.Provider = (*Provider)(nil)
