package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by [Validate] when fields are left empty.
const (
	DefaultListenAddr     = ":8080"
	DefaultPreferred      = "smallest"
	DefaultVoice          = "english"
	DefaultSpeed          = 1.2
	DefaultAttemptTimeout = 15 * time.Second
)

// validPreferred lists the provider names accepted for tts.preferred.
var validPreferred = []string{"smallest", "bhashini"}

// validVoices lists the unified voice names accepted for tts.voice.
var validVoices = []string{"english", "hindi", "kannada"}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, expands environment references
// in credentials, applies defaults, and validates the result. Useful in tests
// where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if cfg.TTS.Providers.Smallest != nil {
		cfg.TTS.Providers.Smallest.APIKey = os.ExpandEnv(cfg.TTS.Providers.Smallest.APIKey)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values, filling in
// defaults for empty fields. It returns a joined error listing all validation
// failures found. An out-of-range speed is only warned about since synthesis
// clamps it anyway.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.TTS.Preferred == "" {
		cfg.TTS.Preferred = DefaultPreferred
	}
	if !slices.Contains(validPreferred, cfg.TTS.Preferred) {
		errs = append(errs, fmt.Errorf("tts.preferred %q is invalid; valid values: smallest, bhashini", cfg.TTS.Preferred))
	}

	if cfg.TTS.Voice == "" {
		cfg.TTS.Voice = DefaultVoice
	}
	if !slices.Contains(validVoices, cfg.TTS.Voice) {
		errs = append(errs, fmt.Errorf("tts.voice %q is invalid; valid values: english, hindi, kannada", cfg.TTS.Voice))
	}

	if cfg.TTS.Speed == 0 {
		cfg.TTS.Speed = DefaultSpeed
	}
	if cfg.TTS.Speed < 0.5 || cfg.TTS.Speed > 2.0 {
		slog.Warn("tts.speed is out of range [0.5, 2.0] and will be clamped",
			"speed", cfg.TTS.Speed)
	}

	if cfg.TTS.AttemptTimeout == 0 {
		cfg.TTS.AttemptTimeout = DefaultAttemptTimeout
	}
	if cfg.TTS.AttemptTimeout < 0 {
		errs = append(errs, fmt.Errorf("tts.attempt_timeout %v must be positive", cfg.TTS.AttemptTimeout))
	}

	if cfg.TTS.Providers.Smallest == nil && cfg.TTS.Providers.Bhashini == nil {
		errs = append(errs, errors.New("tts.providers must configure at least one backend"))
	}
	if cfg.TTS.Providers.Smallest != nil && cfg.TTS.Providers.Smallest.APIKey == "" {
		errs = append(errs, errors.New("tts.providers.smallest.api_key is required when the backend is configured"))
	}

	return errors.Join(errs...)
}
