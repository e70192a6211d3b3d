// Package resilience provides the synthesis fallback layer: a health tracker
// that scores providers from observed outcomes, and a manager that walks
// providers in priority order until one delivers audio.
//
// The manager commits to a provider on its first emitted frame. Before that
// frame any failure moves on to the next provider; after it the stream is
// relayed verbatim and a mid-stream failure fails the whole request. Partial
// audio from one provider is never stitched to audio from another.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"github.com/voxworks/voxrelay/internal/observe"
	"github.com/voxworks/voxrelay/pkg/provider/tts"
)

// ErrAllProvidersFailed is returned by [Manager.Synthesize] when every
// registered provider fails before producing audio. It wraps the last
// provider's error.
var ErrAllProvidersFailed = errors.New("resilience: all providers failed")

// defaultAttemptTimeout bounds a single provider attempt, including the relay
// of its audio stream.
const defaultAttemptTimeout = 15 * time.Second

// Option is a functional option for configuring the Manager.
type Option func(*Manager)

// WithPreferred names the provider that wins priority ties. An unknown name
// simply never matches.
func WithPreferred(name string) Option {
	return func(m *Manager) {
		m.preferred = name
	}
}

// WithAttemptTimeout sets the per-provider attempt timeout. Defaults to 15 s.
func WithAttemptTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.timeout = d
	}
}

// WithMetrics overrides the metrics instance. Used by tests.
func WithMetrics(met *observe.Metrics) Option {
	return func(m *Manager) {
		m.metrics = met
	}
}

// Manager routes synthesis requests across registered providers, preferring
// the healthiest one and falling back on failure. It is safe for concurrent
// use.
type Manager struct {
	mu        sync.RWMutex
	providers map[string]tts.Provider
	tracker   *Tracker
	preferred string
	timeout   time.Duration
	metrics   *observe.Metrics
}

// NewManager creates a Manager with no providers registered.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		providers: make(map[string]tts.Provider),
		tracker:   NewTracker(),
		timeout:   defaultAttemptTimeout,
	}
	for _, o := range opts {
		o(m)
	}
	if m.metrics == nil {
		m.metrics = observe.DefaultMetrics()
	}
	return m
}

// Register adds a provider under the given name. Returns an error if the name
// is already taken.
func (m *Manager) Register(name string, p tts.Provider) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.providers[name]; ok {
		return fmt.Errorf("resilience: provider %q already registered", name)
	}
	m.providers[name] = p
	m.tracker.Register(name)
	return nil
}

// Providers returns the registered provider names in current priority order.
func (m *Manager) Providers() []string {
	return m.tracker.PriorityOrder(m.preferred)
}

// Status returns a health snapshot of every registered provider.
func (m *Manager) Status() []ProviderStatus {
	return m.tracker.Snapshot()
}

// provider looks up a registered provider by name.
func (m *Manager) provider(name string) tts.Provider {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.providers[name]
}

// Synthesize converts text to audio frames using the best available provider.
//
// Providers are tried in priority order. A provider that errors, times out, or
// closes its stream without a single frame counts as a failed attempt and the
// next provider is tried. Once a provider emits its first frame the request is
// committed to it: the stream is relayed as-is and no further fallback occurs.
//
// Text that normalizes to nothing returns an empty closed channel without
// contacting any provider. When every provider fails the returned error wraps
// [ErrAllProvidersFailed].
func (m *Manager) Synthesize(ctx context.Context, text string) (<-chan []byte, error) {
	ctx, span := observe.StartSpan(ctx, "tts.synthesize")
	defer span.End()

	reqID := uuid.NewString()
	log := observe.Logger(ctx).With("request_id", reqID)

	if tts.Normalize(text, 0) == "" {
		log.Debug("text normalized to nothing, skipping synthesis")
		return tts.EmptyStream(), nil
	}

	order := m.tracker.PriorityOrder(m.preferred)
	if len(order) == 0 {
		return nil, errors.New("resilience: no providers registered")
	}

	var lastErr error
	for i, name := range order {
		p := m.provider(name)
		if p == nil {
			continue
		}

		start := time.Now()
		attemptCtx, cancel := context.WithTimeout(ctx, m.timeout)

		ch, err := p.Synthesize(attemptCtx, text)
		if err != nil {
			cancel()
			lastErr = err
			m.recordAttemptFailure(ctx, name, err, log)
			continue
		}

		firstFrame, ok := m.awaitFirstFrame(attemptCtx, ch)
		if !ok {
			cancel()
			if ctxErr := attemptCtx.Err(); ctxErr != nil {
				lastErr = fmt.Errorf("%s: %w", name, ctxErr)
			} else {
				lastErr = fmt.Errorf("%s: %w", name, tts.ErrNoAudio)
			}
			m.recordAttemptFailure(ctx, name, lastErr, log)
			continue
		}

		// Committed. Everything from here on is this provider's stream.
		if i > 0 {
			m.metrics.RecordFallback(ctx, order[0], name)
		}
		log.Info("synthesis committed", "provider", name, "attempt", i+1)
		return m.relay(attemptCtx, cancel, name, start, firstFrame, ch), nil
	}

	return nil, fmt.Errorf("%w: %v", ErrAllProvidersFailed, lastErr)
}

// awaitFirstFrame blocks until the provider emits its first frame, the stream
// closes empty, or the attempt context expires. ok is true only when a frame
// arrived.
func (m *Manager) awaitFirstFrame(ctx context.Context, ch <-chan []byte) (frame []byte, ok bool) {
	select {
	case frame, ok = <-ch:
		return frame, ok
	case <-ctx.Done():
		return nil, false
	}
}

// relay forwards the committed provider's frames to a fresh output channel.
// Stream completion records a success; a context expiry mid-stream records a
// failure. cancel releases the attempt context once the relay ends.
func (m *Manager) relay(ctx context.Context, cancel context.CancelFunc, name string, start time.Time, firstFrame []byte, ch <-chan []byte) <-chan []byte {
	out := make(chan []byte, 1)
	m.metrics.ActiveStreams.Add(ctx, 1)

	go func() {
		defer close(out)
		defer cancel()
		defer m.metrics.ActiveStreams.Add(context.Background(), -1)

		frame, open := firstFrame, true
		for open {
			select {
			case out <- frame:
			case <-ctx.Done():
				m.finishRelay(name, start, ctx.Err())
				return
			}
			select {
			case frame, open = <-ch:
			case <-ctx.Done():
				m.finishRelay(name, start, ctx.Err())
				return
			}
		}
		m.finishRelay(name, start, nil)
	}()

	return out
}

// finishRelay records the terminal outcome of a committed stream exactly once.
func (m *Manager) finishRelay(name string, start time.Time, err error) {
	ctx := context.Background()
	if err != nil {
		m.tracker.RecordFailure(name)
		m.metrics.RecordProviderRequest(ctx, name, "aborted")
		m.metrics.RecordProviderError(ctx, name)
		m.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(observe.Attr("provider", name), observe.Attr("status", "aborted")))
		observe.Logger(ctx).Warn("committed stream aborted", "provider", name, "error", err)
		return
	}
	m.tracker.RecordSuccess(name, time.Since(start))
	m.metrics.RecordProviderRequest(ctx, name, "success")
	m.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(observe.Attr("provider", name), observe.Attr("status", "success")))
}

// recordAttemptFailure updates health statistics and metrics for a provider
// that failed before producing audio.
func (m *Manager) recordAttemptFailure(ctx context.Context, name string, err error, log *slog.Logger) {
	m.tracker.RecordFailure(name)
	m.metrics.RecordProviderRequest(ctx, name, "error")
	m.metrics.RecordProviderError(ctx, name)
	log.Warn("provider failed, trying next", "provider", name, "error", err)
}

// Close releases every registered provider. Errors are joined.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	for name, p := range m.providers {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
