// Package app wires all AADOS subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves until the context is cancelled, and Shutdown tears
// everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithStore, WithHub, WithMetrics). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/algonox/aados/internal/broadcast"
	"github.com/algonox/aados/internal/config"
	"github.com/algonox/aados/internal/engine"
	"github.com/algonox/aados/internal/health"
	"github.com/algonox/aados/internal/httpapi"
	"github.com/algonox/aados/internal/observe"
	"github.com/algonox/aados/internal/quality"
	"github.com/algonox/aados/internal/resilience"
	"github.com/algonox/aados/internal/respcache"
	"github.com/algonox/aados/internal/store"
	storemock "github.com/algonox/aados/internal/store/mock"
	"github.com/algonox/aados/internal/store/postgres"
	"github.com/algonox/aados/internal/telephony"
	"github.com/algonox/aados/internal/ttscache"
	"github.com/algonox/aados/internal/warmup"
	"github.com/algonox/aados/pkg/provider/llm"
	"github.com/algonox/aados/pkg/provider/tts"
)

// shutdownGrace bounds Shutdown when the caller's context has no deadline.
const shutdownGrace = 15 * time.Second

// Providers bundles the externally constructed provider clients the app runs
// on. Build them from the [config.Registry] in main, or hand in mocks in tests.
type Providers struct {
	LLM llm.Provider
	TTS tts.Provider
}

// Option customizes [New].
type Option func(*options)

type options struct {
	store   store.Store
	hub     *broadcast.Hub
	metrics *observe.Metrics
}

// WithStore injects a pre-built store, bypassing the database.url selection.
func WithStore(st store.Store) Option {
	return func(o *options) { o.store = st }
}

// WithHub injects a pre-built broadcast hub.
func WithHub(h *broadcast.Hub) Option {
	return func(o *options) { o.hub = h }
}

// WithMetrics injects a metrics instance, avoiding the global meter provider.
func WithMetrics(m *observe.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// App is the assembled voice sales agent service.
type App struct {
	cfg     *config.Config
	store   store.Store
	llm     *resilience.LLMFallback
	tts     *resilience.TTSFallback
	engine  *engine.Engine
	hub     *broadcast.Hub
	scorer  *quality.Scorer
	replies *respcache.Cache
	audio   *ttscache.Cache
	warm    *warmup.Controller
	metrics *observe.Metrics
	server  *http.Server

	// closers are called in reverse order during Shutdown.
	closers  []func() error
	stopOnce sync.Once
}

// New assembles the application from cfg and providers. It opens the store,
// builds the caches and the response engine, and prepares (but does not
// start) the HTTP server. On error anything already opened is closed again.
func New(ctx context.Context, cfg *config.Config, providers Providers, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if providers.LLM == nil || providers.TTS == nil {
		return nil, errors.New("app: both an LLM and a TTS provider are required")
	}

	a := &App{cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			a.runClosers()
		}
	}()

	if err := a.initStore(ctx, o.store); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}
	a.initProviders(providers)
	if err := a.initEngine(o.metrics); err != nil {
		return nil, fmt.Errorf("app: init engine: %w", err)
	}
	a.initHub(o.hub)
	a.initServer()
	a.initWarmup()

	ok = true
	return a, nil
}

func (a *App) initStore(ctx context.Context, injected store.Store) error {
	if injected != nil {
		a.store = injected
		return nil
	}
	if a.cfg.Database.URL == "" {
		slog.Warn("no database configured, using the in-memory store")
		a.store = storemock.New()
		return nil
	}
	pg, err := postgres.New(ctx, a.cfg.Database.URL)
	if err != nil {
		return err
	}
	a.store = pg
	a.closers = append(a.closers, func() error {
		pg.Close()
		return nil
	})
	return nil
}

// initProviders wraps the raw provider clients in circuit-breaking fallback
// groups so a misbehaving upstream opens its breaker instead of stalling
// every call turn.
func (a *App) initProviders(providers Providers) {
	llmName := a.cfg.Providers.LLM.Name
	if llmName == "" {
		llmName = "llm"
	}
	ttsName := a.cfg.Providers.TTS.Name
	if ttsName == "" {
		ttsName = "tts"
	}
	a.llm = resilience.NewLLMFallback(providers.LLM, llmName, resilience.FallbackConfig{})
	a.tts = resilience.NewTTSFallback(providers.TTS, ttsName, resilience.FallbackConfig{})
}

func (a *App) initEngine(metrics *observe.Metrics) error {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	a.metrics = metrics

	a.replies = respcache.New(
		respcache.WithTTL(time.Duration(a.cfg.Cache.ResponseTTLSeconds)*time.Second),
		respcache.WithMaxEntries(a.cfg.Cache.ResponseCapacity),
	)
	audio, err := ttscache.New(a.cfg.Cache.TTSDir, ttscache.WithMaxEntries(a.cfg.Cache.TTSMemoryEntries))
	if err != nil {
		return err
	}
	a.audio = audio
	a.scorer = quality.NewScorer(
		quality.WithBaseline(a.cfg.Quality.BaselineScore),
		quality.WithAlertMargin(a.cfg.Quality.AlertMargin),
	)

	a.engine = engine.New(a.llm, a.tts,
		engine.WithResponseCache(a.replies),
		engine.WithTTSCache(a.audio),
		engine.WithScorer(a.scorer),
		engine.WithMetrics(a.metrics),
		engine.WithVoice(a.cfg.Engine.Voice, a.cfg.Engine.Speed, a.cfg.Engine.Format),
		engine.WithSerialTTS(a.cfg.Engine.SerialTTS),
	)
	return nil
}

func (a *App) initHub(injected *broadcast.Hub) {
	if injected != nil {
		a.hub = injected
		return
	}
	a.hub = broadcast.NewHub()
	a.closers = append(a.closers, func() error {
		a.hub.Close()
		return nil
	})
}

func (a *App) initServer() {
	validator := telephony.NewValidator(
		a.cfg.Carrier.AuthToken,
		a.cfg.Carrier.WebhookBaseURL,
		a.cfg.Carrier.SignatureVerificationEnabled(),
	)
	checks := health.New(
		health.Checker{Name: "database", Check: a.store.Ping},
		health.DirWritable("tts_cache", a.cfg.Cache.TTSDir),
		health.Checker{Name: "llm_provider", Check: breakerCheck(a.llm.BreakerStates)},
		health.Checker{Name: "tts_provider", Check: breakerCheck(a.tts.BreakerStates)},
	)
	breakers := func() []resilience.BreakerStatus {
		states := a.llm.BreakerStates()
		return append(states, a.tts.BreakerStates()...)
	}

	srv := httpapi.NewServer(a.store, a.engine,
		httpapi.WithHub(a.hub),
		httpapi.WithValidator(validator),
		httpapi.WithScorer(a.scorer),
		httpapi.WithAudioCache(a.audio),
		httpapi.WithHealth(checks),
		httpapi.WithMetrics(a.metrics),
		httpapi.WithBreakers(breakers),
		httpapi.WithPublicBaseURL(a.cfg.Carrier.WebhookBaseURL),
		httpapi.WithSayVoice(a.cfg.Carrier.SayVoice),
	)

	a.server = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           observe.Middleware(a.metrics)(srv.Router()),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// breakerCheck turns a fallback group's breaker view into a readiness
// check: the provider family is unready only when every entry's breaker is
// open.
func breakerCheck(states func() []resilience.BreakerStatus) func(context.Context) error {
	return func(context.Context) error {
		all := states()
		for _, st := range all {
			if st.State != "open" {
				return nil
			}
		}
		if len(all) == 0 {
			return nil
		}
		return fmt.Errorf("all %d provider breakers open", len(all))
	}
}

func (a *App) initWarmup() {
	var hosts []string
	if u := a.cfg.Providers.LLM.BaseURL; u != "" {
		hosts = append(hosts, u)
	}
	if u := a.cfg.Providers.TTS.BaseURL; u != "" {
		hosts = append(hosts, u)
	}
	a.warm = warmup.New(a.llm, a.engine, warmup.WithHosts(hosts...))
}

// Handler exposes the assembled HTTP handler for in-process tests.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Run starts the warmup pass and the HTTP server, then blocks until ctx is
// cancelled or the server fails. Call [App.Shutdown] afterwards.
func (a *App) Run(ctx context.Context) error {
	if a.cfg.Warmup.Disabled {
		slog.Info("warmup disabled")
	} else {
		go func() {
			if err := a.warm.Run(ctx); err != nil {
				slog.Warn("warmup finished with errors", "err", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if tlsCfg := a.cfg.Server.TLS; tlsCfg != nil {
			slog.Info("listening", "addr", a.cfg.Server.ListenAddr, "tls", true)
			err = a.server.ListenAndServeTLS(tlsCfg.CertFile, tlsCfg.KeyFile)
		} else {
			slog.Info("listening", "addr", a.cfg.Server.ListenAddr)
			err = a.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("app: serve: %w", err)
	}
}

// Shutdown gracefully stops the HTTP server and closes all resources in
// reverse initialization order. Safe to call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	a.stopOnce.Do(func() {
		slog.Info("shutting down")
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, shutdownGrace)
			defer cancel()
		}

		var errs []error
		if a.server != nil {
			if e := a.server.Shutdown(ctx); e != nil {
				errs = append(errs, fmt.Errorf("http server: %w", e))
			}
		}
		if e := a.runClosers(); e != nil {
			errs = append(errs, e)
		}
		err = errors.Join(errs...)
		slog.Info("shutdown complete")
	})
	return err
}

func (a *App) runClosers() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if e := a.closers[i](); e != nil {
			errs = append(errs, e)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
