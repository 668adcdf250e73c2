package completion

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"chat-widget/internal/domain"
)

const defaultTimeout = 10 * time.Second

// Mode describes whether replies come from the upstream service or the canned set.
type Mode string

const (
	ModeUpstream Mode = "upstream"
	ModeFallback Mode = "fallback"
)

// Completer is an external text-completion service.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Gateway turns a conversation history into a reply. It never fails: without a
// completer, or when the completer errors, it answers with a canned reply.
type Gateway struct {
	completer    Completer
	timeout      time.Duration
	fallbacks    []string
	intN         func(n int) int
	systemPrompt string
	log          zerolog.Logger
}

type Option func(*Gateway)

func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithFallbacks replaces the canned replies. Blank entries are ignored and an
// empty result keeps the defaults.
func WithFallbacks(replies ...string) Option {
	return func(g *Gateway) {
		var kept []string
		for _, r := range replies {
			if strings.TrimSpace(r) != "" {
				kept = append(kept, r)
			}
		}
		if len(kept) > 0 {
			g.fallbacks = kept
		}
	}
}

// WithRand sets the source used to pick a fallback; intN must return a value in [0, n).
func WithRand(intN func(n int) int) Option {
	return func(g *Gateway) {
		if intN != nil {
			g.intN = intN
		}
	}
}

func WithDefaultSystemPrompt(prompt string) Option {
	return func(g *Gateway) {
		if strings.TrimSpace(prompt) != "" {
			g.systemPrompt = prompt
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(g *Gateway) {
		g.log = l
	}
}

// New creates a Gateway. A nil completer puts the gateway in fallback mode.
func New(c Completer, opts ...Option) *Gateway {
	g := &Gateway{
		completer:    c,
		timeout:      defaultTimeout,
		fallbacks:    Fallbacks(),
		intN:         rand.IntN,
		systemPrompt: DefaultSystemPrompt,
		log:          zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) Mode() Mode {
	if g.completer == nil {
		return ModeFallback
	}
	return ModeUpstream
}

// Generate produces the assistant reply for history, which must already include
// the latest user turn.
func (g *Gateway) Generate(ctx context.Context, history []domain.Turn, systemPrompt string) string {
	if g.completer == nil {
		return g.fallback()
	}
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = g.systemPrompt
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	reply, err := g.complete(ctx, BuildPrompt(systemPrompt, history))
	if err != nil {
		g.log.Warn().Err(err).Msg("completion failed, using fallback reply")
		return g.fallback()
	}
	if strings.TrimSpace(reply) == "" {
		g.log.Warn().Msg("completion returned empty reply, using fallback reply")
		return g.fallback()
	}
	return reply
}

// complete converts a panicking completer into an error.
func (g *Gateway) complete(ctx context.Context, prompt string) (reply string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("completion: completer panicked: %v", r)
		}
	}()
	return g.completer.Complete(ctx, prompt)
}

func (g *Gateway) fallback() string {
	return g.fallbacks[g.intN(len(g.fallbacks))]
}
