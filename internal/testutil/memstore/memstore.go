// Package memstore is an in-memory beer type store for tests above the
// repository layer. It returns the same sentinel errors as the PostgreSQL
// repository.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kegstock/kegstock/internal/model"
	"github.com/kegstock/kegstock/internal/repository"
)

// Store is safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]model.BeerType
	err    error
}

// New returns an empty Store. IDs start at 1.
func New() *Store {
	return &Store{nextID: 1, rows: make(map[int64]model.BeerType)}
}

// FailWith makes every later call return err. Pass nil to recover.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Count returns the stored keg count for id, or -1 if absent.
func (s *Store) Count(id int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	bt, ok := s.rows[id]
	if !ok {
		return -1
	}
	return bt.KegCount
}

func (s *Store) ListBeerTypes(ctx context.Context) ([]*model.BeerType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([]*model.BeerType, 0, len(s.rows))
	for _, bt := range s.rows {
		bt := bt
		out = append(out, &bt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetBeerTypeByID(ctx context.Context, id int64) (*model.BeerType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	bt, ok := s.rows[id]
	if !ok {
		return nil, repository.ErrBeerTypeNotFound
	}
	return &bt, nil
}

func (s *Store) CreateBeerType(ctx context.Context, name string, kegCount int) (*model.BeerType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if kegCount < 0 {
		return nil, repository.ErrNegativeKegCount
	}
	for _, bt := range s.rows {
		if bt.Name == name {
			return nil, repository.ErrBeerTypeNameExists
		}
	}
	now := time.Now().UTC()
	bt := model.BeerType{ID: s.nextID, Name: name, KegCount: kegCount, CreatedAt: now, UpdatedAt: now}
	s.rows[bt.ID] = bt
	s.nextID++
	return &bt, nil
}

func (s *Store) DeleteBeerType(ctx context.Context, id int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	if _, ok := s.rows[id]; !ok {
		return 0, nil
	}
	delete(s.rows, id)
	return 1, nil
}

func (s *Store) SetKegCount(ctx context.Context, id int64, count int) (*model.BeerType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	bt, ok := s.rows[id]
	if !ok {
		return nil, repository.ErrBeerTypeNotFound
	}
	if count < 0 {
		return nil, repository.ErrNegativeKegCount
	}
	bt.KegCount = count
	bt.UpdatedAt = time.Now().UTC()
	s.rows[id] = bt
	return &bt, nil
}

// AdjustKegCount mirrors the guarded UPDATE: it matches nothing when the
// row is absent or the result would be negative.
func (s *Store) AdjustKegCount(ctx context.Context, id int64, delta int) (*model.BeerType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	bt, ok := s.rows[id]
	if !ok || bt.KegCount+delta < 0 {
		return nil, repository.ErrKegCountUnchanged
	}
	bt.KegCount += delta
	bt.UpdatedAt = time.Now().UTC()
	s.rows[id] = bt
	return &bt, nil
}
