// Package bhashini provides a Bhashini-backed TTS provider for Indian
// languages. It implements the tts.Provider interface.
//
// The API requires no credential and returns one complete MP3 document per
// request. The document's leading bytes are validated against the ID3 tag and
// MPEG frame-sync signatures before emission. Because speed is not a synthesis
// parameter, a requested speed different from 1.0 is applied afterwards with
// a pitch-preserving ffmpeg transcode; a failed transcode degrades to the
// original audio instead of failing the request.
package bhashini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
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
	defaultBaseURL = "https://tts.bhashini.ai/v1/synthesize"
	defaultVoice   = "english"
	defaultTimeout = 15 * time.Second

	sampleRate = 22050
	channels   = 1

	// maxTextLen bounds the cleaned utterance sent to the API.
	maxTextLen = 500

	// speedTolerance is the band around 1.0 inside which no speed transform
	// is attempted — the transcode costs more than the difference is worth.
	speedTolerance = 0.05
)

// voices is the built-in catalog mapping unified voice names to Bhashini
// language and voice selectors.
var voices = map[string]bhashiniVoice{
	"kannada": {Language: "Kannada", VoiceName: "Male1"},
	"hindi":   {Language: "Hindi", VoiceName: "Male1"},
	"english": {Language: "English", VoiceName: "Female2"},
}

// bhashiniVoice is one catalog entry in the API's own terms.
type bhashiniVoice struct {
	Language  string
	VoiceName string
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

// Option is a functional option for configuring the Bhashini Provider.
type Option func(*Provider)

// WithVoice selects a voice from the built-in catalog (e.g., "hindi").
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

// WithTimeout sets the per-request HTTP timeout. Defaults to 15 s.
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

// WithSpeedAdjuster overrides the speed transform implementation. Used by
// tests and by deployments with a custom transcoder path.
func WithSpeedAdjuster(a audio.SpeedAdjuster) Option {
	return func(p *Provider) {
		p.adjuster = a
	}
}

// Provider implements tts.Provider backed by the Bhashini synthesis API.
// It is safe for concurrent use.
type Provider struct {
	baseURL    string
	voiceName  string
	voice      bhashiniVoice
	speed      float64
	httpClient *http.Client
	adjuster   audio.SpeedAdjuster
}

// New creates a Bhashini Provider. No credential is needed, but the selected
// voice must exist in the built-in catalog.
func New(opts ...Option) (*Provider, error) {
	p := &Provider{
		baseURL:    defaultBaseURL,
		voiceName:  defaultVoice,
		speed:      1.0,
		httpClient: &http.Client{Timeout: defaultTimeout},
		adjuster:   &audio.FFmpeg{},
	}
	for _, o := range opts {
		o(p)
	}
	voice, ok := voices[p.voiceName]
	if !ok {
		return nil, fmt.Errorf("bhashini: voice %q not supported; available: %s",
			p.voiceName, strings.Join(VoiceNames(), ", "))
	}
	p.voice = voice
	return p, nil
}

// synthesisRequest is the JSON body sent to the synthesis endpoint.
type synthesisRequest struct {
	Text      string `json:"text"`
	Language  string `json:"language"`
	VoiceName string `json:"voiceName"`
}

// Synthesize issues one POST for the full cleaned utterance and returns a
// channel emitting the MP3 document as a single frame.
func (p *Provider) Synthesize(ctx context.Context, text string) (<-chan []byte, error) {
	cleaned := tts.Normalize(text, maxTextLen)
	if cleaned == "" {
		return tts.EmptyStream(), nil
	}

	mp3, err := p.fetchMP3(ctx, cleaned)
	if err != nil {
		return nil, err
	}

	if math.Abs(p.speed-1.0) > speedTolerance {
		adjusted, err := p.adjuster.Adjust(ctx, mp3, p.speed)
		if err != nil {
			// Degrade gracefully: the original document is still playable.
			slog.Warn("bhashini: speed adjustment failed, emitting original audio",
				"speed", p.speed, "error", err)
		} else {
			mp3 = adjusted
		}
	}

	out := make(chan []byte, 1)
	out <- mp3
	close(out)
	return out, nil
}

// fetchMP3 performs the HTTP call and validates the MP3 payload signature.
func (p *Provider) fetchMP3(ctx context.Context, text string) ([]byte, error) {
	body := synthesisRequest{
		Text:      text,
		Language:  p.voice.Language,
		VoiceName: p.voice.VoiceName,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("bhashini: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("bhashini: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bhashini: POST synthesis: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("bhashini: synthesis returned status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	mp3, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("bhashini: read MP3 response: %w", err)
	}
	if !isValidMP3(mp3) {
		return nil, fmt.Errorf("bhashini: %w: unrecognized container signature", tts.ErrInvalidAudio)
	}
	return mp3, nil
}

// isValidMP3 checks the document's leading bytes for a known MP3 container
// signature: an ID3 metadata tag or an MPEG frame-sync bit pattern.
func isValidMP3(data []byte) bool {
	if len(data) < 10 {
		return false
	}
	if bytes.HasPrefix(data, []byte("ID3")) {
		return true
	}
	// Frame sync: 11 set bits across the first two bytes (0xFFE0 mask).
	return data[0] == 0xFF && data[1]&0xE0 == 0xE0
}

// SampleRate returns the fixed Bhashini output rate.
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
