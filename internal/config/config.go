// Package config provides the configuration schema and loader for the
// Voxrelay speech-synthesis relay.
package config

import "time"

// LogLevel controls log verbosity for the Voxrelay server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for Voxrelay.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server ServerConfig `yaml:"server"`
	TTS    TTSConfig    `yaml:"tts"`
}

// ServerConfig holds network and logging settings for the Voxrelay server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// TTSConfig holds synthesis routing and provider settings.
type TTSConfig struct {
	// Preferred names the provider that wins priority ties ("smallest" or
	// "bhashini"). Defaults to "smallest".
	Preferred string `yaml:"preferred"`

	// Voice is the unified voice name requested from every provider
	// ("english", "hindi", or "kannada"). Defaults to "english".
	Voice string `yaml:"voice"`

	// Speed is the speech rate multiplier. Values outside [0.5, 2.0] are
	// clamped at synthesis time. Defaults to 1.2.
	Speed float64 `yaml:"speed"`

	// AttemptTimeout bounds a single provider attempt. Defaults to 15s.
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`

	// Providers configures the individual synthesis backends.
	Providers ProvidersConfig `yaml:"providers"`
}

// ProvidersConfig configures the individual synthesis backends. A backend
// with no configuration block is not registered.
type ProvidersConfig struct {
	Smallest *SmallestConfig `yaml:"smallest"`
	Bhashini *BhashiniConfig `yaml:"bhashini"`
}

// SmallestConfig configures the Smallest.ai backend.
type SmallestConfig struct {
	// APIKey authenticates against the Waves API. Supports ${ENV_VAR}
	// expansion so keys can stay out of the config file.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the default API endpoint. Leave empty for the
	// built-in default.
	BaseURL string `yaml:"base_url"`
}

// BhashiniConfig configures the Bhashini backend. The API needs no credential.
type BhashiniConfig struct {
	// BaseURL overrides the default API endpoint. Leave empty for the
	// built-in default.
	BaseURL string `yaml:"base_url"`

	// FFmpegBin overrides the ffmpeg binary used for speed adjustment.
	// Leave empty to resolve "ffmpeg" from PATH.
	FFmpegBin string `yaml:"ffmpeg_bin"`
}
