package config

import (
	"strings"
	"testing"
	"time"
)

const validYAML = `
server:
  listen_addr: ":9090"
  log_level: debug
tts:
  preferred: bhashini
  voice: hindi
  speed: 1.5
  attempt_timeout: 20s
  providers:
    smallest:
      api_key: sk-test
    bhashini: {}
`

func TestLoadFromReader_Valid(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("listen_addr = %q, want :9090", cfg.Server.ListenAddr)
	}
	if cfg.TTS.Preferred != "bhashini" {
		t.Errorf("preferred = %q, want bhashini", cfg.TTS.Preferred)
	}
	if cfg.TTS.Voice != "hindi" {
		t.Errorf("voice = %q, want hindi", cfg.TTS.Voice)
	}
	if cfg.TTS.Speed != 1.5 {
		t.Errorf("speed = %v, want 1.5", cfg.TTS.Speed)
	}
	if cfg.TTS.AttemptTimeout != 20*time.Second {
		t.Errorf("attempt_timeout = %v, want 20s", cfg.TTS.AttemptTimeout)
	}
	if cfg.TTS.Providers.Smallest == nil || cfg.TTS.Providers.Smallest.APIKey != "sk-test" {
		t.Error("smallest provider not parsed")
	}
	if cfg.TTS.Providers.Bhashini == nil {
		t.Error("bhashini provider not parsed")
	}
}

func TestLoadFromReader_Defaults(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(`
tts:
  providers:
    bhashini: {}
`))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.ListenAddr != DefaultListenAddr {
		t.Errorf("listen_addr = %q, want default %q", cfg.Server.ListenAddr, DefaultListenAddr)
	}
	if cfg.TTS.Preferred != DefaultPreferred {
		t.Errorf("preferred = %q, want default %q", cfg.TTS.Preferred, DefaultPreferred)
	}
	if cfg.TTS.Voice != DefaultVoice {
		t.Errorf("voice = %q, want default %q", cfg.TTS.Voice, DefaultVoice)
	}
	if cfg.TTS.Speed != DefaultSpeed {
		t.Errorf("speed = %v, want default %v", cfg.TTS.Speed, DefaultSpeed)
	}
	if cfg.TTS.AttemptTimeout != DefaultAttemptTimeout {
		t.Errorf("attempt_timeout = %v, want default %v", cfg.TTS.AttemptTimeout, DefaultAttemptTimeout)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader(`
server:
  listen_adr: ":8080"
tts:
  providers:
    bhashini: {}
`))
	if err == nil {
		t.Fatal("expected error for unknown field (typo), got nil")
	}
}

func TestLoadFromReader_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_WAVES_KEY", "sk-from-env")
	cfg, err := LoadFromReader(strings.NewReader(`
tts:
  providers:
    smallest:
      api_key: ${TEST_WAVES_KEY}
`))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.TTS.Providers.Smallest.APIKey != "sk-from-env" {
		t.Errorf("api_key = %q, want expanded env value", cfg.TTS.Providers.Smallest.APIKey)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "bad log level",
			yaml: "server:\n  log_level: verbose\ntts:\n  providers:\n    bhashini: {}\n",
			want: "log_level",
		},
		{
			name: "bad preferred",
			yaml: "tts:\n  preferred: elevenlabs\n  providers:\n    bhashini: {}\n",
			want: "preferred",
		},
		{
			name: "bad voice",
			yaml: "tts:\n  voice: tamil\n  providers:\n    bhashini: {}\n",
			want: "voice",
		},
		{
			name: "no backends",
			yaml: "tts:\n  speed: 1.0\n",
			want: "at least one backend",
		},
		{
			name: "smallest without key",
			yaml: "tts:\n  providers:\n    smallest: {}\n",
			want: "api_key",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromReader(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.want)
			}
		})
	}
}

func TestValidate_OutOfRangeSpeedOnlyWarns(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(`
tts:
  speed: 3.5
  providers:
    bhashini: {}
`))
	if err != nil {
		t.Fatalf("out-of-range speed must not fail validation, got: %v", err)
	}
	if cfg.TTS.Speed != 3.5 {
		t.Errorf("speed = %v, want 3.5 kept as configured", cfg.TTS.Speed)
	}
}
