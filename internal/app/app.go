// Package app wires the Voxrelay subsystems into a running HTTP service.
//
// The App struct owns the full lifecycle: New builds the synthesis providers
// and fallback manager from config and assembles the HTTP surface, Run serves
// until the context is cancelled, and Shutdown tears everything down.
//
// For testing, inject a pre-built manager via [WithManager].
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/voxworks/voxrelay/internal/config"
	"github.com/voxworks/voxrelay/internal/health"
	"github.com/voxworks/voxrelay/internal/observe"
	"github.com/voxworks/voxrelay/internal/resilience"
	"github.com/voxworks/voxrelay/pkg/audio"
	"github.com/voxworks/voxrelay/pkg/provider/tts/bhashini"
	"github.com/voxworks/voxrelay/pkg/provider/tts/smallest"
)

// shutdownTimeout bounds the HTTP server drain when Run's context ends.
const shutdownTimeout = 5 * time.Second

// App owns the fallback manager and the HTTP server.
type App struct {
	cfg     *config.Config
	manager *resilience.Manager
	metrics *observe.Metrics
	srv     *http.Server

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithManager injects a fallback manager instead of building one from config.
func WithManager(m *resilience.Manager) Option {
	return func(a *App) { a.manager = m }
}

// WithMetrics overrides the metrics instance. Used by tests.
func WithMetrics(met *observe.Metrics) Option {
	return func(a *App) { a.metrics = met }
}

// New creates an App by building providers from cfg and assembling the HTTP
// routes. A provider whose construction fails is skipped with a warning; New
// errors only when no provider at all could be built.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.manager == nil {
		m, err := buildManager(cfg, a.metrics)
		if err != nil {
			return nil, err
		}
		a.manager = m
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/synthesize", a.handleSynthesize)
	mux.HandleFunc("GET /v1/synthesize/stream", a.handleSynthesizeStream)
	mux.HandleFunc("GET /v1/providers/health", a.handleProvidersHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	health.New(health.Checker{
		Name:  "providers",
		Check: a.checkProviders,
	}).Register(mux)

	a.srv = &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: observe.Middleware(a.metrics)(mux),
	}
	return a, nil
}

// buildManager constructs the fallback manager and registers every backend
// configured in cfg.
func buildManager(cfg *config.Config, met *observe.Metrics) (*resilience.Manager, error) {
	m := resilience.NewManager(
		resilience.WithPreferred(cfg.TTS.Preferred),
		resilience.WithAttemptTimeout(cfg.TTS.AttemptTimeout),
		resilience.WithMetrics(met),
	)

	registered := 0
	if sc := cfg.TTS.Providers.Smallest; sc != nil {
		opts := []smallest.Option{
			smallest.WithVoice(smallestVoice(cfg.TTS.Voice)),
			smallest.WithSpeed(cfg.TTS.Speed),
		}
		if sc.BaseURL != "" {
			opts = append(opts, smallest.WithBaseURL(sc.BaseURL))
		}
		p, err := smallest.New(sc.APIKey, opts...)
		if err != nil {
			slog.Warn("skipping provider", "provider", "smallest", "error", err)
		} else if err := m.Register("smallest", p); err != nil {
			return nil, err
		} else {
			registered++
			slog.Info("provider registered", "provider", "smallest")
		}
	}
	if bc := cfg.TTS.Providers.Bhashini; bc != nil {
		opts := []bhashini.Option{
			bhashini.WithVoice(cfg.TTS.Voice),
			bhashini.WithSpeed(cfg.TTS.Speed),
		}
		if bc.BaseURL != "" {
			opts = append(opts, bhashini.WithBaseURL(bc.BaseURL))
		}
		if bc.FFmpegBin != "" {
			opts = append(opts, bhashini.WithSpeedAdjuster(&audio.FFmpeg{Bin: bc.FFmpegBin}))
		}
		p, err := bhashini.New(opts...)
		if err != nil {
			slog.Warn("skipping provider", "provider", "bhashini", "error", err)
		} else if err := m.Register("bhashini", p); err != nil {
			return nil, err
		} else {
			registered++
			slog.Info("provider registered", "provider", "bhashini")
		}
	}

	if registered == 0 {
		return nil, errors.New("app: no synthesis provider could be initialised")
	}
	return m, nil
}

// smallestVoice maps the unified voice name onto the Smallest.ai catalog.
// The backend only synthesizes English, so every language falls back to the
// default English voice.
func smallestVoice(unified string) string {
	switch unified {
	case "english", "hindi", "kannada":
		return "female_english"
	default:
		return unified
	}
}

// checkProviders is the readiness check: the service is ready when at least
// one provider is currently healthy.
func (a *App) checkProviders(_ context.Context) error {
	for _, st := range a.manager.Status() {
		if st.Healthy {
			return nil
		}
	}
	return errors.New("no healthy synthesis provider")
}

// Manager exposes the fallback manager, mainly for tests.
func (a *App) Manager() *resilience.Manager { return a.manager }

// Handler returns the root HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler { return a.srv.Handler }

// Run serves HTTP until ctx is cancelled or the listener fails.
func (a *App) Run(ctx context.Context) error {
	slog.Info("http server listening", "addr", a.srv.Addr)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.srv.Shutdown(drainCtx)
	})
	return g.Wait()
}

// Shutdown releases the providers. Safe to call more than once.
func (a *App) Shutdown(_ context.Context) error {
	var err error
	a.stopOnce.Do(func() {
		err = a.manager.Close()
	})
	return err
}
