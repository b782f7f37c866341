package interpreter

import (
	"context"
	"io"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Middleware decorates a Gateway.
type Middleware func(Gateway) Gateway

// Wrap applies middlewares left to right: Wrap(g, A, B) is A(B(g)).
func Wrap(inner Gateway, mws ...Middleware) Gateway {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		out = mws[i](out)
	}
	return out
}

// Unwrapper is implemented by middleware gateways.
type Unwrapper interface {
	Unwrap() Gateway
}

// AsModelLister finds a ModelLister beneath any middleware.
func AsModelLister(gw Gateway) (ModelLister, bool) {
	for gw != nil {
		if lister, ok := gw.(ModelLister); ok {
			return lister, true
		}
		u, ok := gw.(Unwrapper)
		if !ok {
			return nil, false
		}
		gw = u.Unwrap()
	}
	return nil, false
}

// WithLogging logs every call at debug level and degraded calls at warn.
func WithLogging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return func(next Gateway) Gateway {
		return &logged{next: next, logger: logger.With("provider", next.Name(), "model", next.Model())}
	}
}

type logged struct {
	next   Gateway
	logger *slog.Logger
}

func (l *logged) Name() string    { return l.next.Name() }
func (l *logged) Model() string   { return l.next.Model() }
func (l *logged) Unwrap() Gateway { return l.next }

func (l *logged) Generate(ctx context.Context, req Request) Response {
	start := time.Now()
	resp := l.next.Generate(ctx, req)
	elapsed := time.Since(start)
	if !resp.OK() {
		l.logger.Warn("interpreter call degraded", "error", resp.Err(), "duration", elapsed)
		return resp
	}
	attrs := []any{"duration", elapsed, "prompt_chars", len(req.Prompt), "content_chars", len(resp.Content)}
	if resp.Usage != nil {
		attrs = append(attrs, "prompt_tokens", resp.Usage.PromptTokens, "completion_tokens", resp.Usage.CompletionTokens)
	}
	l.logger.Debug("interpreter call", attrs...)
	return resp
}

func (l *logged) IsAvailable(ctx context.Context) bool {
	ok := l.next.IsAvailable(ctx)
	l.logger.Debug("interpreter probe", "available", ok)
	return ok
}

// WithProbeCache remembers IsAvailable results for ttl so that a run with
// many failures probes the service once.
func WithProbeCache(ttl time.Duration) Middleware {
	cache, err := lru.New[string, probeResult](64)
	if err != nil {
		panic(err)
	}
	return func(next Gateway) Gateway {
		return &cachedProbe{next: next, ttl: ttl, cache: cache, now: time.Now}
	}
}

type probeResult struct {
	ok bool
	at time.Time
}

type cachedProbe struct {
	next  Gateway
	ttl   time.Duration
	cache *lru.Cache[string, probeResult]
	now   func() time.Time
}

func (c *cachedProbe) Name() string    { return c.next.Name() }
func (c *cachedProbe) Model() string   { return c.next.Model() }
func (c *cachedProbe) Unwrap() Gateway { return c.next }

func (c *cachedProbe) Generate(ctx context.Context, req Request) Response {
	return c.next.Generate(ctx, req)
}

func (c *cachedProbe) IsAvailable(ctx context.Context) bool {
	key := c.next.Name() + "|" + c.next.Model()
	if hit, ok := c.cache.Get(key); ok && c.now().Sub(hit.at) < c.ttl {
		return hit.ok
	}
	ok := c.next.IsAvailable(ctx)
	c.cache.Add(key, probeResult{ok: ok, at: c.now()})
	return ok
}
