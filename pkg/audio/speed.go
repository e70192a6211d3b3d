package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
)

// SpeedAdjuster changes the playback speed of an encoded audio document while
// preserving pitch. Implementations must leave the input untouched and return
// a freshly allocated result.
type SpeedAdjuster interface {
	// Adjust re-encodes data at the given speed multiplier. speed must already
	// be within the supported range; a failed transform returns an error and
	// the caller decides whether to degrade to the original audio.
	Adjust(ctx context.Context, data []byte, speed float64) ([]byte, error)
}

// FFmpeg adjusts MP3 audio speed by shelling out to the ffmpeg binary with the
// atempo filter, which changes tempo without shifting pitch. The zero value is
// ready to use and looks up "ffmpeg" on PATH.
type FFmpeg struct {
	// Bin overrides the ffmpeg binary path. Empty means "ffmpeg".
	Bin string
}

var _ SpeedAdjuster = (*FFmpeg)(nil)

// Adjust writes data to a temp file, runs ffmpeg with an atempo filter, and
// returns the re-encoded MP3. Temp files are removed on every exit path.
func (f *FFmpeg) Adjust(ctx context.Context, data []byte, speed float64) ([]byte, error) {
	in, err := os.CreateTemp("", "voxrelay-*.mp3")
	if err != nil {
		return nil, fmt.Errorf("audio: create temp input: %w", err)
	}
	inPath := in.Name()
	defer os.Remove(inPath)

	if _, err := in.Write(data); err != nil {
		in.Close()
		return nil, fmt.Errorf("audio: write temp input: %w", err)
	}
	if err := in.Close(); err != nil {
		return nil, fmt.Errorf("audio: close temp input: %w", err)
	}

	outPath := inPath + ".speed.mp3"
	defer os.Remove(outPath)

	cmd := exec.CommandContext(ctx, f.bin(), speedArgs(inPath, outPath, speed)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("audio: ffmpeg atempo=%.2f: %w (%s)", speed, err, out)
	}

	adjusted, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("audio: read ffmpeg output: %w", err)
	}
	return adjusted, nil
}

func (f *FFmpeg) bin() string {
	if f.Bin != "" {
		return f.Bin
	}
	return "ffmpeg"
}

// speedArgs builds the ffmpeg argument list for a pitch-preserving speed
// change. atempo accepts [0.5, 2.0] in a single filter pass, which matches
// the clamped speed range.
func speedArgs(inPath, outPath string, speed float64) []string {
	return []string{
		"-y",
		"-i", inPath,
		"-filter:a", "atempo=" + strconv.FormatFloat(speed, 'f', 2, 64),
		"-acodec", "libmp3lame",
		"-loglevel", "error",
		outPath,
	}
}
