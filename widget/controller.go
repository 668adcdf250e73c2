package widget

import (
	"context"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"chat-widget/internal/domain"
)

type State string

const (
	StateClosed        State = "closed"
	StateOpenIdle      State = "open-idle"
	StateAwaitingReply State = "open-awaiting-reply"
)

const (
	msgConnectivity  = "Sorry, I'm having trouble connecting right now. Please try again."
	prefixClientErr  = "Request failed: "
	prefixServiceErr = "Service error: "
)

// DisplayMessage is a chat bubble. IDs are unique enough for rendering only.
type DisplayMessage struct {
	ID        string
	Content   string
	IsUser    bool
	Timestamp time.Time
}

// View receives presentation side effects.
type View interface {
	ScrollToBottom()
	FocusInput()
}

type nopView struct{}

func (nopView) ScrollToBottom() {}
func (nopView) FocusInput()     {}

// Controller owns one widget instance: identity, messages, input and the
// single in-flight exchange.
type Controller struct {
	cfg     Config
	api     API
	storage Storage
	view    View
	log     zerolog.Logger
	now     func() time.Time

	mu             sync.Mutex
	open           bool
	awaiting       bool
	unmounted      bool
	input          string
	messages       []DisplayMessage
	conversationID string
	hydrated       bool

	inflight sync.WaitGroup
}

type Option func(*Controller)

func WithAPI(api API) Option {
	return func(c *Controller) {
		c.api = api
	}
}

func WithStorage(s Storage) Option {
	return func(c *Controller) {
		c.storage = s
	}
}

func WithView(v View) Option {
	return func(c *Controller) {
		c.view = v
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) {
		c.log = l
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// New validates cfg and builds a closed controller. Without WithAPI the
// controller talks HTTP to cfg.APIURL; without WithStorage identity lives in memory.
func New(cfg Config, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.WithDefaults()
	c := &Controller{
		cfg:  cfg,
		view: nopView{},
		log:  zerolog.Nop(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.api == nil {
		c.api = NewClient(cfg.APIURL, cfg.APIPrefix, nil)
	}
	if c.storage == nil {
		c.storage = NewMemoryStorage()
	}
	if c.view == nil {
		c.view = nopView{}
	}
	return c, nil
}

func (c *Controller) Config() Config {
	return c.cfg
}

// Mount resolves the conversation identity and, for a reused identity, loads
// the stored history once while no local message exists yet. A failed history
// load leaves the widget usable with an empty list.
func (c *Controller) Mount(ctx context.Context) error {
	c.mu.Lock()
	reused := c.resolveIdentityLocked()
	shouldHydrate := reused && !c.hydrated && len(c.messages) == 0 && !c.unmounted
	if shouldHydrate {
		c.hydrated = true
	}
	convID := c.conversationID
	c.mu.Unlock()

	if !shouldHydrate {
		return nil
	}

	turns, err := c.api.History(ctx, convID)
	if err != nil {
		c.log.Warn().Err(err).Str("conversation_id", convID).Msg("error fetching conversation history")
		return errors.Wrap(err, "widget: hydrate history")
	}

	c.mu.Lock()
	if c.unmounted || len(c.messages) != 0 {
		c.mu.Unlock()
		return nil
	}
	for _, t := range turns {
		c.messages = append(c.messages, DisplayMessage{
			ID:        newMessageID(c.now()),
			Content:   t.Content,
			IsUser:    t.Role == domain.RoleUser,
			Timestamp: t.Timestamp,
		})
	}
	changed := len(turns) > 0
	c.mu.Unlock()

	if changed {
		c.view.ScrollToBottom()
	}
	return nil
}

// resolveIdentityLocked reports whether a persisted identity was reused.
func (c *Controller) resolveIdentityLocked() bool {
	if c.conversationID != "" {
		return false
	}
	stored, ok, err := c.storage.GetItem(ConversationIDKey)
	if err != nil {
		c.log.Warn().Err(err).Msg("could not read persisted conversation id")
	}
	if err == nil && ok && strings.TrimSpace(stored) != "" {
		c.conversationID = stored
		return true
	}
	c.conversationID = NewConversationID(c.now())
	if err := c.storage.SetItem(ConversationIDKey, c.conversationID); err != nil {
		c.log.Warn().Err(err).Msg("could not persist conversation id")
	}
	return false
}

// Unmount stops applying results; a reply arriving later is dropped.
func (c *Controller) Unmount() {
	c.mu.Lock()
	c.unmounted = true
	c.mu.Unlock()
}

// Toggle opens or closes the chat window.
func (c *Controller) Toggle() {
	c.mu.Lock()
	if c.unmounted {
		c.mu.Unlock()
		return
	}
	c.open = !c.open
	opened := c.open
	c.mu.Unlock()

	if opened {
		c.view.FocusInput()
	}
}

func (c *Controller) SetInput(s string) {
	c.mu.Lock()
	c.input = s
	c.mu.Unlock()
}

// Submit sends the current input. It is a no-op returning false when the
// window is closed, a reply is pending, or the trimmed input is empty.
// Otherwise the user bubble is shown at once and the exchange runs in the
// background; Wait blocks until it settles.
func (c *Controller) Submit(ctx context.Context) bool {
	c.mu.Lock()
	content := strings.TrimSpace(c.input)
	if !c.open || c.awaiting || c.unmounted || content == "" {
		c.mu.Unlock()
		return false
	}
	c.resolveIdentityLocked()
	c.messages = append(c.messages, DisplayMessage{
		ID:        newMessageID(c.now()),
		Content:   content,
		IsUser:    true,
		Timestamp: c.now(),
	})
	c.input = ""
	c.awaiting = true
	convID := c.conversationID
	c.inflight.Add(1)
	c.mu.Unlock()

	c.view.ScrollToBottom()
	c.view.FocusInput()

	go c.exchange(ctx, content, convID)
	return true
}

func (c *Controller) exchange(ctx context.Context, content, convID string) {
	defer c.inflight.Done()

	req := domain.ChatRequest{Message: content, ConversationID: convID}
	if c.cfg.SystemPrompt != "" {
		req.Config = &domain.ChatRequestConfig{SystemPrompt: c.cfg.SystemPrompt}
	}

	reply, err := c.api.Chat(ctx, req)
	text := reply.Response
	if err != nil {
		c.log.Warn().Err(err).Str("conversation_id", convID).Msg("error sending message")
		text = ClassifyError(err)
	}

	c.mu.Lock()
	c.awaiting = false
	if c.unmounted {
		c.mu.Unlock()
		return
	}
	c.messages = append(c.messages, DisplayMessage{
		ID:        newMessageID(c.now()),
		Content:   text,
		IsUser:    false,
		Timestamp: c.now(),
	})
	c.mu.Unlock()

	c.view.ScrollToBottom()
}

// Wait blocks until the in-flight exchange, if any, has settled.
func (c *Controller) Wait() {
	c.inflight.Wait()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case !c.open:
		return StateClosed
	case c.awaiting:
		return StateAwaitingReply
	default:
		return StateOpenIdle
	}
}

func (c *Controller) Messages() []DisplayMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]DisplayMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *Controller) Input() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

func (c *Controller) ConversationID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conversationID
}

// ClassifyError turns a failed exchange into the assistant bubble text.
func ClassifyError(err error) string {
	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode >= 400 && se.StatusCode < 500:
			return prefixClientErr + se.Message
		case se.StatusCode >= 500:
			return prefixServiceErr + se.Message
		}
	}
	return msgConnectivity
}

// NewConversationID returns "conv_<unix ms>_<9 base36 chars>". Not suitable as a secret.
func NewConversationID(now time.Time) string {
	return "conv_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + randomBase36(9)
}

func newMessageID(now time.Time) string {
	return strconv.FormatInt(now.UnixMilli(), 10) + randomBase36(5)
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

func randomBase36(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = base36[rand.IntN(len(base36))]
	}
	return string(b)
}
