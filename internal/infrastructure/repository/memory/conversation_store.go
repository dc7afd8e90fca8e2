package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/kirillkom/parts-sales-assistant/internal/core/domain"
)

// ConversationStore keeps conversations in process memory. It is used when
// no database is configured and in tests.
type ConversationStore struct {
	mu            sync.RWMutex
	conversations map[string]domain.ConversationState
}

func NewConversationStore() *ConversationStore {
	return &ConversationStore{conversations: make(map[string]domain.ConversationState)}
}

func (s *ConversationStore) GetConversation(_ context.Context, conversationID string) (*domain.ConversationState, error) {
	s.mu.RLock()
	state, ok := s.conversations[conversationID]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.WrapError(domain.ErrConversationNotFound, "get conversation", fmt.Errorf("id=%s", conversationID))
	}
	clone := state.Clone()
	return &clone, nil
}

// SaveConversation stores a copy of the state; its History already carries
// the new turns.
func (s *ConversationStore) SaveConversation(_ context.Context, state domain.ConversationState, _ []domain.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[state.ConversationID] = state.Clone()
	return nil
}

func (s *ConversationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations)
}
