package transactions

import (
	"context"
	"time"

	"github.com/ecotracker/backend/internal/storage/models"
)

// Repository persists transactions. *sqlite.Client implements it.
type Repository interface {
	InsertTransaction(ctx context.Context, t *models.Transaction) error
	ListTransactions(ctx context.Context) ([]models.Transaction, error)
}

// PersistentStore applies the transaction rules on top of a Repository.
type PersistentStore struct {
	repo Repository
	now  func() time.Time
}

func NewPersistentStore(repo Repository) *PersistentStore {
	return &PersistentStore{repo: repo, now: time.Now}
}

func (s *PersistentStore) Add(ctx context.Context, in models.NewTransaction) (models.Transaction, error) {
	t := Build(in, s.now())
	if err := s.repo.InsertTransaction(ctx, &t); err != nil {
		return models.Transaction{}, err
	}
	return t, nil
}

func (s *PersistentStore) List(ctx context.Context) ([]models.Transaction, error) {
	return s.repo.ListTransactions(ctx)
}
