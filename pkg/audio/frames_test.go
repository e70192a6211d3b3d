package audio

import (
	"bytes"
	"testing"
)

func TestFrameBytes(t *testing.T) {
	tests := []struct {
		name       string
		rate       int
		channels   int
		durationMs int
		want       int
	}{
		{"24kHz mono 10ms", 24000, 1, 10, 480},
		{"22050Hz mono 10ms", 22050, 1, 10, 440},
		{"48kHz stereo 20ms", 48000, 2, 20, 3840},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FrameBytes(tt.rate, tt.channels, tt.durationMs); got != tt.want {
				t.Errorf("FrameBytes(%d, %d, %d) = %d, want %d", tt.rate, tt.channels, tt.durationMs, got, tt.want)
			}
		})
	}
}

func TestSplitFrames(t *testing.T) {
	t.Run("exact split", func(t *testing.T) {
		pcm := bytes.Repeat([]byte{0x01}, 960)
		frames := SplitFrames(pcm, 480)
		if len(frames) != 2 {
			t.Fatalf("got %d frames, want 2", len(frames))
		}
		for i, f := range frames {
			if len(f) != 480 {
				t.Errorf("frame %d length = %d, want 480", i, len(f))
			}
		}
	})

	t.Run("trailing partial frame", func(t *testing.T) {
		pcm := bytes.Repeat([]byte{0x02}, 1000)
		frames := SplitFrames(pcm, 480)
		if len(frames) != 3 {
			t.Fatalf("got %d frames, want 3", len(frames))
		}
		if len(frames[2]) != 40 {
			t.Errorf("trailing frame length = %d, want 40", len(frames[2]))
		}
	})

	t.Run("smaller than one frame", func(t *testing.T) {
		frames := SplitFrames([]byte{1, 2, 3}, 480)
		if len(frames) != 1 || len(frames[0]) != 3 {
			t.Fatalf("frames = %v, want single 3-byte frame", frames)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		if frames := SplitFrames(nil, 480); frames != nil {
			t.Fatalf("frames = %v, want nil", frames)
		}
	})

	t.Run("ordering preserved", func(t *testing.T) {
		pcm := []byte{1, 2, 3, 4, 5, 6}
		frames := SplitFrames(pcm, 2)
		var joined []byte
		for _, f := range frames {
			joined = append(joined, f...)
		}
		if !bytes.Equal(joined, pcm) {
			t.Errorf("reassembled frames = %v, want %v", joined, pcm)
		}
	})
}
