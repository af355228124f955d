// Package httpclient implements the connection pool (C6) and single-request
// executor (C7) that sit under the workflow engine. It pools one
// fasthttp.Client per origin and wraps calls through a per-service circuit
// breaker, grounded on the teacher's HTTP tooling and generalized from the
// original implementation's httpx-based connection manager.
package httpclient

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/blackcoderx/gimmeflow/pkg/breaker"
)

// PoolLimits bounds a single origin's client.
type PoolLimits struct {
	MaxConnsPerHost     int
	MaxIdleConnDuration time.Duration
}

// DefaultPoolLimits matches the documented defaults: 100 max connections, 5s
// keep-alive expiry. The 20-max-keepalive-connections figure from the spec
// is a per-client idle pool detail fasthttp doesn't expose separately from
// MaxConnsPerHost, so it folds into the same knob.
func DefaultPoolLimits() PoolLimits {
	return PoolLimits{
		MaxConnsPerHost:     100,
		MaxIdleConnDuration: 5 * time.Second,
	}
}

// Pool lazily creates and shares one *fasthttp.Client per origin
// (scheme://host[:port]), plus the named circuit breakers guarding calls
// made through it.
type Pool struct {
	mu      sync.Mutex
	clients map[string]*fasthttp.Client
	limits  PoolLimits
	Breaker *breaker.Registry
}

// NewPool constructs an empty pool with the given per-origin limits.
func NewPool(limits PoolLimits) *Pool {
	return &Pool{
		clients: make(map[string]*fasthttp.Client),
		limits:  limits,
		Breaker: breaker.NewRegistry(),
	}
}

// originOf returns scheme://host[:port] for rawURL, the pool's sharding key.
func originOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("httpclient: invalid URL %q: %w", rawURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("httpclient: URL %q is missing scheme or host", rawURL)
	}
	return u.Scheme + "://" + u.Host, nil
}

// Client returns the shared *fasthttp.Client for rawURL's origin, creating
// it on first use.
func (p *Pool) Client(rawURL string) (*fasthttp.Client, error) {
	origin, err := originOf(rawURL)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.clients[origin]; ok {
		return c, nil
	}

	c := &fasthttp.Client{
		MaxConnsPerHost:     p.limits.MaxConnsPerHost,
		MaxIdleConnDuration: p.limits.MaxIdleConnDuration,
		Name:                "gimmeflow",
	}
	p.clients[origin] = c
	return c, nil
}

// Close releases every pooled client. fasthttp.Client has no explicit
// shutdown, so this drops the pool's references so idle connections can be
// garbage-collected once in-flight calls finish.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clients = make(map[string]*fasthttp.Client)
}
