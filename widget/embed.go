package widget

import (
	"context"
	"sync"
)

// Embedder keeps at most one live widget per host page.
type Embedder struct {
	mu      sync.Mutex
	opts    []Option
	current *Controller
}

// NewEmbedder returns an Embedder applying opts to every controller it creates.
func NewEmbedder(opts ...Option) *Embedder {
	return &Embedder{opts: opts}
}

// Init replaces any existing widget with a new one built from cfg and mounts it.
// A hydration failure is logged by the controller and does not fail Init.
func (e *Embedder) Init(ctx context.Context, cfg Config) (*Controller, error) {
	c, err := New(cfg, e.opts...)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	prev := e.current
	e.current = c
	e.mu.Unlock()

	if prev != nil {
		prev.Unmount()
	}
	_ = c.Mount(ctx)
	return c, nil
}

// InitFromDataConfig is Init for the declarative data-config attribute.
func (e *Embedder) InitFromDataConfig(ctx context.Context, raw string) (*Controller, error) {
	cfg, err := ParseDataConfig(raw)
	if err != nil {
		return nil, err
	}
	return e.Init(ctx, cfg)
}

func (e *Embedder) Destroy() {
	e.mu.Lock()
	prev := e.current
	e.current = nil
	e.mu.Unlock()

	if prev != nil {
		prev.Unmount()
	}
}

func (e *Embedder) Current() *Controller {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}
