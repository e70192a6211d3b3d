package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/voxworks/voxrelay/internal/observe"
	"github.com/voxworks/voxrelay/pkg/provider/tts/mock"
)

// newTestManager builds a Manager with an isolated metrics instance so tests
// do not pollute the global meter provider.
func newTestManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	met, err := observe.NewMetrics(sdkmetric.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return NewManager(append([]Option{WithMetrics(met)}, opts...)...)
}

func collect(t *testing.T, ch <-chan []byte) [][]byte {
	t.Helper()
	var frames [][]byte
	timeout := time.After(2 * time.Second)
	for {
		select {
		case f, ok := <-ch:
			if !ok {
				return frames
			}
			frames = append(frames, f)
		case <-timeout:
			t.Fatal("timed out draining stream")
		}
	}
}

// waitForStatus polls until cond is satisfied or the deadline passes. The
// relay goroutine records outcomes after the output channel closes, so tests
// must allow a short settle window.
func waitForStatus(t *testing.T, m *Manager, cond func([]ProviderStatus) bool) []ProviderStatus {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		s := m.Status()
		if cond(s) {
			return s
		}
		if time.Now().After(deadline) {
			t.Fatalf("status condition never satisfied, last: %+v", s)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func statusOf(statuses []ProviderStatus, name string) ProviderStatus {
	for _, s := range statuses {
		if s.Name == name {
			return s
		}
	}
	return ProviderStatus{}
}

func TestManager_NoProviders(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Synthesize(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error with no providers registered, got nil")
	}
}

func TestManager_DuplicateRegister(t *testing.T) {
	m := newTestManager(t)
	if err := m.Register("p", &mock.Provider{}); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := m.Register("p", &mock.Provider{}); err == nil {
		t.Fatal("expected error on duplicate registration, got nil")
	}
}

func TestManager_SingleProviderSuccess(t *testing.T) {
	m := newTestManager(t)
	p := &mock.Provider{SynthesizeFrames: [][]byte{{1, 2}, {3, 4}, {5, 6}}}
	if err := m.Register("only", p); err != nil {
		t.Fatal(err)
	}

	ch, err := m.Synthesize(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	frames := collect(t, ch)
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}

	s := waitForStatus(t, m, func(s []ProviderStatus) bool {
		return statusOf(s, "only").Successes == 1
	})
	st := statusOf(s, "only")
	if st.Failures != 0 {
		t.Errorf("failures = %d, want 0", st.Failures)
	}
	if st.AvgLatencyMs <= 0 {
		t.Errorf("avg latency = %v, want > 0", st.AvgLatencyMs)
	}
}

func TestManager_SingleProviderFailure(t *testing.T) {
	m := newTestManager(t)
	p := &mock.Provider{SynthesizeErr: errors.New("api down")}
	if err := m.Register("only", p); err != nil {
		t.Fatal(err)
	}

	_, err := m.Synthesize(context.Background(), "hello")
	if !errors.Is(err, ErrAllProvidersFailed) {
		t.Fatalf("error = %v, want ErrAllProvidersFailed", err)
	}
	if got := p.CallCount(); got != 1 {
		t.Errorf("provider called %d times, want 1", got)
	}

	st := statusOf(m.Status(), "only")
	if st.Failures != 1 || st.ConsecutiveFailures != 1 {
		t.Errorf("failures/consecutive = %d/%d, want 1/1", st.Failures, st.ConsecutiveFailures)
	}
}

func TestManager_FallbackOnError(t *testing.T) {
	m := newTestManager(t, WithPreferred("primary"))
	primary := &mock.Provider{SynthesizeErr: errors.New("quota exceeded")}
	backup := &mock.Provider{SynthesizeFrames: [][]byte{{0xAA}}}
	if err := m.Register("primary", primary); err != nil {
		t.Fatal(err)
	}
	if err := m.Register("backup", backup); err != nil {
		t.Fatal(err)
	}

	ch, err := m.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	frames := collect(t, ch)
	if len(frames) != 1 || frames[0][0] != 0xAA {
		t.Fatalf("frames = %v, want backup audio", frames)
	}

	if primary.CallCount() != 1 || backup.CallCount() != 1 {
		t.Errorf("call counts primary/backup = %d/%d, want 1/1",
			primary.CallCount(), backup.CallCount())
	}

	s := waitForStatus(t, m, func(s []ProviderStatus) bool {
		return statusOf(s, "backup").Successes == 1
	})
	if st := statusOf(s, "primary"); st.Failures != 1 {
		t.Errorf("primary failures = %d, want 1", st.Failures)
	}
}

func TestManager_FallbackOnEmptyStream(t *testing.T) {
	m := newTestManager(t, WithPreferred("primary"))
	// Primary returns a stream that closes without a single frame.
	primary := &mock.Provider{SynthesizeFrames: nil}
	backup := &mock.Provider{SynthesizeFrames: [][]byte{{0xBB}}}
	if err := m.Register("primary", primary); err != nil {
		t.Fatal(err)
	}
	if err := m.Register("backup", backup); err != nil {
		t.Fatal(err)
	}

	ch, err := m.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	frames := collect(t, ch)
	if len(frames) != 1 || frames[0][0] != 0xBB {
		t.Fatalf("frames = %v, want backup audio", frames)
	}

	if st := statusOf(m.Status(), "primary"); st.Failures != 1 {
		t.Errorf("primary failures = %d, want 1 (zero-frame stream is a failure)", st.Failures)
	}
}

func TestManager_EmptyTextSkipsProviders(t *testing.T) {
	m := newTestManager(t)
	p := &mock.Provider{SynthesizeFrames: [][]byte{{1}}}
	if err := m.Register("p", p); err != nil {
		t.Fatal(err)
	}

	ch, err := m.Synthesize(context.Background(), "[SCENARIO: greeting] [ACTION: wave]")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if frames := collect(t, ch); len(frames) != 0 {
		t.Errorf("got %d frames for empty text, want 0", len(frames))
	}
	if p.CallCount() != 0 {
		t.Error("provider contacted for text that normalizes to nothing")
	}
}

func TestManager_UnhealthyProviderDemoted(t *testing.T) {
	m := newTestManager(t, WithPreferred("first"))
	first := &mock.Provider{SynthesizeErr: errors.New("down")}
	second := &mock.Provider{SynthesizeFrames: [][]byte{{1}}}
	if err := m.Register("first", first); err != nil {
		t.Fatal(err)
	}
	if err := m.Register("second", second); err != nil {
		t.Fatal(err)
	}

	// Drive "first" past its failure streak limit.
	for i := 0; i < maxConsecutiveFailures+1; i++ {
		ch, err := m.Synthesize(context.Background(), "hello")
		if err != nil {
			t.Fatalf("Synthesize: %v", err)
		}
		collect(t, ch)
	}
	waitForStatus(t, m, func(s []ProviderStatus) bool {
		return statusOf(s, "second").Successes == int64(maxConsecutiveFailures+1)
	})

	firstCalls := first.CallCount()

	// "first" is now unhealthy and must not be contacted first anymore.
	order := m.Providers()
	if order[0] != "second" {
		t.Fatalf("priority order = %v, want second first", order)
	}
	ch, err := m.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	collect(t, ch)
	if first.CallCount() != firstCalls {
		t.Error("unhealthy provider was still tried first")
	}
}

func TestManager_NoRecoveryAfterCommit(t *testing.T) {
	m := newTestManager(t, WithAttemptTimeout(200*time.Millisecond), WithPreferred("slow"))
	// "slow" emits one frame then stalls past the attempt timeout.
	slow := &mock.Provider{
		SynthesizeFrames: [][]byte{{1}, {2}},
		FrameDelay: func(_ context.Context, i int) {
			if i == 1 {
				time.Sleep(time.Second)
			}
		},
	}
	backup := &mock.Provider{SynthesizeFrames: [][]byte{{9}}}
	if err := m.Register("slow", slow); err != nil {
		t.Fatal(err)
	}
	if err := m.Register("backup", backup); err != nil {
		t.Fatal(err)
	}

	ch, err := m.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	frames := collect(t, ch)

	// The stream is truncated, not replaced by backup audio.
	if len(frames) != 1 || frames[0][0] != 1 {
		t.Fatalf("frames = %v, want only the first committed frame", frames)
	}
	if backup.CallCount() != 0 {
		t.Error("fallback attempted after commit")
	}

	waitForStatus(t, m, func(s []ProviderStatus) bool {
		return statusOf(s, "slow").Failures == 1
	})
}

func TestManager_Close(t *testing.T) {
	m := newTestManager(t)
	ok := &mock.Provider{}
	bad := &mock.Provider{CloseErr: errors.New("leak")}
	if err := m.Register("ok", ok); err != nil {
		t.Fatal(err)
	}
	if err := m.Register("bad", bad); err != nil {
		t.Fatal(err)
	}

	err := m.Close()
	if err == nil {
		t.Fatal("expected joined close error, got nil")
	}
	if ok.CloseCount != 1 || bad.CloseCount != 1 {
		t.Errorf("close counts = %d/%d, want 1/1", ok.CloseCount, bad.CloseCount)
	}
}
