package audio

import (
	"context"
	"strings"
	"testing"
)

func TestSpeedArgs(t *testing.T) {
	args := speedArgs("/tmp/in.mp3", "/tmp/out.mp3", 1.2)
	joined := strings.Join(args, " ")

	if !strings.Contains(joined, "atempo=1.20") {
		t.Errorf("args %q missing atempo filter", joined)
	}
	if !strings.Contains(joined, "libmp3lame") {
		t.Errorf("args %q missing mp3 encoder", joined)
	}
	if args[len(args)-1] != "/tmp/out.mp3" {
		t.Errorf("last arg = %q, want output path", args[len(args)-1])
	}
}

func TestFFmpeg_Adjust_MissingBinary(t *testing.T) {
	f := &FFmpeg{Bin: "/nonexistent/ffmpeg-binary"}
	_, err := f.Adjust(context.Background(), []byte{0xFF, 0xFB, 0x00}, 1.5)
	if err == nil {
		t.Fatal("expected error for missing ffmpeg binary, got nil")
	}
}

func TestFFmpeg_DefaultBin(t *testing.T) {
	f := &FFmpeg{}
	if got := f.bin(); got != "ffmpeg" {
		t.Errorf("bin() = %q, want ffmpeg", got)
	}
	f.Bin = "/usr/local/bin/ffmpeg"
	if got := f.bin(); got != "/usr/local/bin/ffmpeg" {
		t.Errorf("bin() = %q, want override", got)
	}
}
