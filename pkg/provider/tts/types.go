package tts

// Speed multiplier bounds. Out-of-range values are clamped rather than
// rejected so that a slightly miscalibrated caller still gets speech.
const (
	MinSpeed = 0.5
	MaxSpeed = 2.0
)

// ClampSpeed clamps a speech rate multiplier to [MinSpeed, MaxSpeed].
func ClampSpeed(speed float64) float64 {
	if speed < MinSpeed {
		return MinSpeed
	}
	if speed > MaxSpeed {
		return MaxSpeed
	}
	return speed
}

// Voice describes one entry of a backend's voice catalog: the backend it
// belongs to, the backend-specific voice identifier, the language, and the
// sample rate the backend synthesizes at. Voices are selected once at
// provider construction; unknown identifiers fail fast there.
type Voice struct {
	// Provider identifies which TTS backend this voice belongs to.
	Provider string

	// ID is the backend-specific voice or style identifier.
	ID string

	// Language is the spoken language of the voice.
	Language string

	// SampleRate is the backend's output sample rate for this voice in Hz.
	SampleRate int
}
