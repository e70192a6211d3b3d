package tts

import "testing"

func TestClampSpeed(t *testing.T) {
	tests := []struct {
		name  string
		input float64
		want  float64
	}{
		{"above max", 3.0, 2.0},
		{"below min", 0.1, 0.5},
		{"normal", 1.0, 1.0},
		{"at min", 0.5, 0.5},
		{"at max", 2.0, 2.0},
		{"slightly fast", 1.2, 1.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClampSpeed(tt.input); got != tt.want {
				t.Errorf("ClampSpeed(%v) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestEmptyStream(t *testing.T) {
	ch := EmptyStream()
	if _, ok := <-ch; ok {
		t.Fatal("EmptyStream channel emitted a frame, want closed empty channel")
	}
}
