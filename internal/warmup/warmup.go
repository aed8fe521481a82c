// Package warmup pre-heats the process on startup so the first live call
// does not pay cold-start costs: one minimal LLM completion to open the
// model endpoint, pre-synthesis of the common canned phrases into the audio
// cache, and TCP/TLS dials against the provider hosts.
//
// Run is idempotent and safe to re-run; every step is best-effort and a
// failed step is logged, never fatal. Callers start it in a goroutine so
// readiness is not gated on it.
package warmup

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/algonox/aados/internal/engine"
	"github.com/algonox/aados/internal/quick"
	"github.com/algonox/aados/pkg/provider/llm"
)

// DefaultTimeout bounds one whole warmup run.
const DefaultTimeout = 30 * time.Second

// dialTimeout bounds a single TCP/TLS warm dial.
const dialTimeout = 5 * time.Second

// Controller runs the startup warm path.
type Controller struct {
	llm     llm.Provider
	engine  *engine.Engine
	phrases []string
	hosts   []string
	timeout time.Duration
}

// Option is a functional option for New.
type Option func(*Controller)

// WithPhrases overrides the pre-synthesized phrase set.
func WithPhrases(phrases []string) Option {
	return func(c *Controller) { c.phrases = phrases }
}

// WithHosts sets the provider base URLs to TCP/TLS-warm.
func WithHosts(hosts ...string) Option {
	return func(c *Controller) { c.hosts = hosts }
}

// WithTimeout overrides the whole-run deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) { c.timeout = d }
}

// New builds a Controller. llmP may be nil to skip the completion ping;
// eng may be nil to skip phrase synthesis.
func New(llmP llm.Provider, eng *engine.Engine, opts ...Option) *Controller {
	c := &Controller{
		llm:     llmP,
		engine:  eng,
		phrases: quick.WarmupPhrases,
		timeout: DefaultTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Run executes the warm path. The returned error joins the step failures
// for observability; callers treat it as advisory.
func (c *Controller) Run(ctx context.Context) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var g errgroup.Group

	g.Go(func() error { return c.warmLLM(ctx) })
	g.Go(func() error { return c.warmPhrases(ctx) })
	for _, h := range c.hosts {
		g.Go(func() error { return c.warmHost(ctx, h) })
	}

	err := g.Wait()
	slog.Info("warmup finished",
		slog.Duration("elapsed", time.Since(start)),
		slog.Int("phrases", len(c.phrases)),
		slog.Int("hosts", len(c.hosts)),
		slog.Bool("clean", err == nil))
	return err
}

// warmLLM sends the smallest useful completion so the provider's connection
// pool, auth, and model residency are established before the first call.
func (c *Controller) warmLLM(ctx context.Context) error {
	if c.llm == nil {
		return nil
	}
	_, err := c.llm.Complete(ctx, llm.CompletionRequest{
		Messages:  []llm.Message{{Role: "user", Content: "Reply with the single word: ready"}},
		MaxTokens: 4,
	})
	if err != nil {
		slog.Warn("llm warmup ping failed", slog.Any("error", err))
		return fmt.Errorf("llm ping: %w", err)
	}
	return nil
}

// warmPhrases synthesizes the canned phrase set into the audio cache.
// Phrases already cached cost one lookup each.
func (c *Controller) warmPhrases(ctx context.Context) error {
	if c.engine == nil {
		return nil
	}
	var errs []error
	for _, p := range c.phrases {
		if err := c.engine.Prewarm(ctx, p); err != nil {
			slog.Warn("phrase warmup failed",
				slog.String("phrase", p),
				slog.Any("error", err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// warmHost opens and closes one connection to a provider base URL so the
// first real request skips DNS, TCP, and the TLS handshake.
func (c *Controller) warmHost(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		slog.Warn("unwarmable host url", slog.String("url", rawURL))
		return fmt.Errorf("parse %q: invalid host url", rawURL)
	}

	addr := u.Host
	if u.Port() == "" {
		if u.Scheme == "https" {
			addr += ":443"
		} else {
			addr += ":80"
		}
	}

	dctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	var conn net.Conn
	if u.Scheme == "https" {
		d := tls.Dialer{Config: &tls.Config{ServerName: u.Hostname()}}
		conn, err = d.DialContext(dctx, "tcp", addr)
	} else {
		var d net.Dialer
		conn, err = d.DialContext(dctx, "tcp", addr)
	}
	if err != nil {
		slog.Warn("host warmup dial failed",
			slog.String("host", addr),
			slog.Any("error", err))
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	return conn.Close()
}
