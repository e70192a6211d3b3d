// Package smallest provides a Smallest.ai-backed TTS provider using the Waves
// lightning-v2 batch API. It implements the tts.Provider interface.
//
// The API returns one raw PCM buffer (little-endian int16, 24 kHz mono) per
// request; speed is a synthesis-time parameter handled server-side. The buffer
// is sliced into 10 ms frames before emission so downstream playback can start
// pacing immediately.
package smallest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/voxworks/voxrelay/pkg/audio"
	"github.com/voxworks/voxrelay/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

const (
	defaultBaseURL = "https://waves-api.smallest.ai/api/v1/lightning-v2/get_speech"
	defaultVoice   = "female_english"
	defaultTimeout = 30 * time.Second

	sampleRate = 24000
	channels   = 1

	// maxTextLen bounds the cleaned utterance sent to the API.
	maxTextLen = 1000

	// minPCMBytes rejects implausibly short payloads (under ~2 ms of audio)
	// that the API occasionally returns on internal errors.
	minPCMBytes = 100

	// frameDurationMs is the duration of each emitted PCM frame.
	frameDurationMs = 10
)

// voices is the built-in catalog mapping voice names to lightning-v2 voice IDs.
var voices = map[string]tts.Voice{
	"female_english":    {Provider: "smallest", ID: "alice", Language: "en", SampleRate: sampleRate},
	"male_english":      {Provider: "smallest", ID: "jack", Language: "en", SampleRate: sampleRate},
	"female_warm":       {Provider: "smallest", ID: "emma", Language: "en", SampleRate: sampleRate},
	"male_professional": {Provider: "smallest", ID: "david", Language: "en", SampleRate: sampleRate},
	"female_bright":     {Provider: "smallest", ID: "sarah", Language: "en", SampleRate: sampleRate},
}

// VoiceNames returns the catalog's voice names in sorted order.
func VoiceNames() []string {
	names := make([]string, 0, len(voices))
	for name := range voices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Option is a functional option for configuring the Smallest.ai Provider.
type Option func(*Provider)

// WithVoice selects a voice from the built-in catalog (e.g., "female_english").
func WithVoice(name string) Option {
	return func(p *Provider) {
		p.voiceName = name
	}
}

// WithSpeed sets the speech rate multiplier. Values outside [0.5, 2.0] are
// clamped, not rejected.
func WithSpeed(speed float64) Option {
	return func(p *Provider) {
		p.speed = tts.ClampSpeed(speed)
	}
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// WithBaseURL overrides the synthesis endpoint. Used by tests.
func WithBaseURL(u string) Option {
	return func(p *Provider) {
		p.baseURL = strings.TrimRight(u, "/")
	}
}

// Provider implements tts.Provider backed by the Smallest.ai lightning-v2 API.
// It is safe for concurrent use; the HTTP client pools connections across
// requests until Close is called.
type Provider struct {
	apiKey     string
	baseURL    string
	voiceName  string
	voice      tts.Voice
	speed      float64
	httpClient *http.Client
}

// New creates a Smallest.ai Provider. apiKey must be non-empty and the
// selected voice must exist in the built-in catalog; both are checked here so
// misconfiguration surfaces at startup rather than on the first call.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("smallest: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		voiceName:  defaultVoice,
		speed:      1.0,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	voice, ok := voices[p.voiceName]
	if !ok {
		return nil, fmt.Errorf("smallest: voice %q not supported; available: %s",
			p.voiceName, strings.Join(VoiceNames(), ", "))
	}
	p.voice = voice
	return p, nil
}

// synthesisRequest is the JSON body sent to the lightning-v2 endpoint.
type synthesisRequest struct {
	Text         string  `json:"text"`
	VoiceID      string  `json:"voice_id"`
	SampleRate   int     `json:"sample_rate"`
	Speed        float64 `json:"speed"`
	Consistency  float64 `json:"consistency"`
	Similarity   float64 `json:"similarity"`
	Enhancement  int     `json:"enhancement"`
	Language     string  `json:"language"`
	OutputFormat string  `json:"output_format"`
}

// Synthesize issues one POST for the full cleaned utterance and returns a
// channel emitting 10 ms PCM frames in order. The trailing partial frame, if
// any, is emitted as-is.
func (p *Provider) Synthesize(ctx context.Context, text string) (<-chan []byte, error) {
	cleaned := tts.Normalize(text, maxTextLen)
	if cleaned == "" {
		return tts.EmptyStream(), nil
	}

	pcm, err := p.fetchPCM(ctx, cleaned)
	if err != nil {
		return nil, err
	}

	frames := audio.SplitFrames(pcm, audio.FrameBytes(sampleRate, channels, frameDurationMs))
	out := make(chan []byte, len(frames))
	go func() {
		defer close(out)
		for _, frame := range frames {
			select {
			case out <- frame:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// fetchPCM performs the HTTP call and validates the raw PCM payload.
func (p *Provider) fetchPCM(ctx context.Context, text string) ([]byte, error) {
	body := synthesisRequest{
		Text:         text,
		VoiceID:      p.voice.ID,
		SampleRate:   sampleRate,
		Speed:        p.speed,
		Consistency:  0.5,
		Similarity:   0,
		Enhancement:  1,
		Language:     p.voice.Language,
		OutputFormat: "pcm",
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("smallest: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("smallest: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("smallest: POST synthesis: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("smallest: synthesis returned status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("smallest: read PCM response: %w", err)
	}
	if len(pcm) < minPCMBytes {
		return nil, fmt.Errorf("smallest: %w: %d bytes of PCM", tts.ErrInvalidAudio, len(pcm))
	}
	return pcm, nil
}

// SampleRate returns the fixed lightning-v2 output rate.
func (p *Provider) SampleRate() int { return sampleRate }

// Channels returns 1; the API synthesizes mono audio.
func (p *Provider) Channels() int { return channels }

// Speed returns the effective (clamped) speech rate multiplier.
func (p *Provider) Speed() float64 { return p.speed }

// Close releases pooled HTTP connections.
func (p *Provider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}
