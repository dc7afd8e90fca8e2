package memory

import (
	"context"
	"sync"

	"github.com/kirillkom/parts-sales-assistant/internal/core/domain"
)

// NotificationRecord is a processed notification as the store keeps it.
type NotificationRecord struct {
	Command domain.NotificationCommand
	Receipt domain.NotificationReceipt
}

// NotificationStore keeps processed notifications in memory, keyed by
// command id. Saving the same id twice keeps the latest receipt.
type NotificationStore struct {
	mu      sync.RWMutex
	records map[string]NotificationRecord
}

func NewNotificationStore() *NotificationStore {
	return &NotificationStore{records: make(map[string]NotificationRecord)}
}

func (s *NotificationStore) SaveInvoice(_ context.Context, cmd domain.NotificationCommand, receipt domain.NotificationReceipt) error {
	s.save(cmd, receipt)
	return nil
}

func (s *NotificationStore) SaveHandover(_ context.Context, cmd domain.NotificationCommand, receipt domain.NotificationReceipt) error {
	s.save(cmd, receipt)
	return nil
}

func (s *NotificationStore) save(cmd domain.NotificationCommand, receipt domain.NotificationReceipt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[cmd.ID] = NotificationRecord{Command: cmd, Receipt: receipt}
}

func (s *NotificationStore) Get(id string) (NotificationRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	return rec, ok
}
