package transactions

import (
	"context"
	"sync"
	"time"

	"github.com/ecotracker/backend/internal/storage/models"
)

// MemoryStore keeps transactions in process memory. IDs start at 1.
type MemoryStore struct {
	mu     sync.Mutex
	items  []models.Transaction
	nextID int
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1, now: time.Now}
}

func (s *MemoryStore) Add(_ context.Context, in models.NewTransaction) (models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := Build(in, s.now())
	t.ID = s.nextID
	s.nextID++
	s.items = append(s.items, t)
	return t, nil
}

func (s *MemoryStore) List(_ context.Context) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Transaction, len(s.items))
	copy(out, s.items)
	return out, nil
}
