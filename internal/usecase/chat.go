package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"chat-widget/internal/domain"
)

// Store is the conversation state consumed by ChatService.
type Store interface {
	Get(ctx context.Context, conversationID string) ([]domain.Turn, error)
	Append(ctx context.Context, conversationID string, turns ...domain.Turn) error
	Lock(conversationID string) (unlock func())
}

// Generator produces an assistant reply. Implementations must not fail; they
// degrade to a canned reply instead.
type Generator interface {
	Generate(ctx context.Context, history []domain.Turn, systemPrompt string) string
}

type ChatService struct {
	store Store
	gen   Generator
	log   zerolog.Logger
	now   func() time.Time
}

type ChatInput struct {
	Message        string
	ConversationID string
	SystemPrompt   string
}

type ChatOutput struct {
	Response       string
	ConversationID string
	Timestamp      time.Time
}

type Option func(*ChatService)

func WithLogger(l zerolog.Logger) Option {
	return func(s *ChatService) {
		s.log = l
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *ChatService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewChatService(s Store, g Generator, opts ...Option) (*ChatService, error) {
	if s == nil {
		return nil, errors.New("usecase: conversation store must not be nil")
	}
	if g == nil {
		return nil, errors.New("usecase: generator must not be nil")
	}
	svc := &ChatService{
		store: s,
		gen:   g,
		log:   zerolog.Nop(),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Chat records the user message, generates a reply and records it. Both turns
// are written while the conversation is locked, so concurrent requests for the
// same conversation are applied one after another.
func (s *ChatService) Chat(ctx context.Context, in ChatInput) (out ChatOutput, err error) {
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return ChatOutput{}, newError(ErrorInvalidInput, "empty_message", nil)
	}
	convID := strings.TrimSpace(in.ConversationID)
	if convID == "" {
		convID = newUUID()
	}

	defer func() {
		if r := recover(); r != nil {
			out = ChatOutput{}
			err = newError(ErrorInternal, "panic", errors.Errorf("%v", r))
		}
	}()

	unlock := s.store.Lock(convID)
	defer unlock()

	history, err := s.store.Get(ctx, convID)
	if err != nil {
		return ChatOutput{}, newError(ErrorInternal, "history_read_error", err)
	}

	userTurn := domain.Turn{Role: domain.RoleUser, Content: message, Timestamp: s.now()}
	history = append(history, userTurn)

	reply := s.gen.Generate(ctx, history, in.SystemPrompt)

	replyTurn := domain.Turn{Role: domain.RoleAssistant, Content: reply, Timestamp: s.now()}
	if err := s.store.Append(ctx, convID, userTurn, replyTurn); err != nil {
		return ChatOutput{}, newError(ErrorInternal, "history_write_error", err)
	}

	s.log.Debug().
		Str("conversation_id", convID).
		Int("history_len", len(history)+1).
		Msg("chat turn recorded")

	return ChatOutput{
		Response:       reply,
		ConversationID: convID,
		Timestamp:      replyTurn.Timestamp,
	}, nil
}

// History returns the stored turns of a conversation, oldest first. Unknown
// conversations have an empty history.
func (s *ChatService) History(ctx context.Context, conversationID string) ([]domain.Turn, error) {
	turns, err := s.store.Get(ctx, strings.TrimSpace(conversationID))
	if err != nil {
		return nil, newError(ErrorInternal, "history_read_error", err)
	}
	if turns == nil {
		turns = []domain.Turn{}
	}
	return turns, nil
}

var newUUID = func() string {
	return uuid.NewString()
}
