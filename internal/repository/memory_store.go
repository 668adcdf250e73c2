package repository

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"chat-widget/internal/domain"
)

// DefaultMaxTurns is the number of most recent turns kept per conversation.
const DefaultMaxTurns = 20

// Store defines the conversation state operations consumed by the chat use case.
type Store interface {
	Get(ctx context.Context, conversationID string) ([]domain.Turn, error)
	Append(ctx context.Context, conversationID string, turns ...domain.Turn) error
	Truncate(ctx context.Context, conversationID string, maxLen int) error
	Lock(conversationID string) (unlock func())
}

// MemoryStore keeps conversations in process memory. Nothing survives a restart.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string][]domain.Turn
	maxTurns      int
	locks         *keyedMutex
}

// NewMemoryStore creates a MemoryStore retaining at most maxTurns per conversation.
// A non-positive maxTurns falls back to DefaultMaxTurns.
func NewMemoryStore(maxTurns int) *MemoryStore {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &MemoryStore{
		conversations: make(map[string][]domain.Turn),
		maxTurns:      maxTurns,
		locks:         newKeyedMutex(),
	}
}

// MaxTurns reports the retention bound applied on every append.
func (s *MemoryStore) MaxTurns() int {
	return s.maxTurns
}

// Get returns a copy of the conversation in chronological order. Unknown ids
// yield an empty slice.
func (s *MemoryStore) Get(_ context.Context, conversationID string) ([]domain.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.conversations[conversationID]
	out := make([]domain.Turn, len(turns))
	copy(out, turns)
	return out, nil
}

// Append adds turns to the end of the conversation, creating it when unseen,
// and evicts the oldest turns beyond the retention bound.
func (s *MemoryStore) Append(_ context.Context, conversationID string, turns ...domain.Turn) error {
	if strings.TrimSpace(conversationID) == "" {
		return errors.New("repository: Append: conversation id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := append(s.conversations[conversationID], turns...)
	s.conversations[conversationID] = lastN(merged, s.maxTurns)
	return nil
}

// Truncate keeps only the most recent maxLen turns of the conversation.
func (s *MemoryStore) Truncate(_ context.Context, conversationID string, maxLen int) error {
	if maxLen < 0 {
		return errors.Errorf("repository: Truncate: invalid length %d", maxLen)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	turns, ok := s.conversations[conversationID]
	if !ok {
		return nil
	}
	s.conversations[conversationID] = lastN(turns, maxLen)
	return nil
}

// Lock serializes callers working on the same conversation. Different
// conversations never block each other.
func (s *MemoryStore) Lock(conversationID string) func() {
	return s.locks.lock(conversationID)
}

// lastN copies the tail so the evicted prefix is not kept alive by the backing array.
func lastN(turns []domain.Turn, n int) []domain.Turn {
	if len(turns) <= n {
		return turns
	}
	out := make([]domain.Turn, n)
	copy(out, turns[len(turns)-n:])
	return out
}
