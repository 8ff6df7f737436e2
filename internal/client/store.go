package client

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/kegstock/kegstock/internal/model"
)

// Notice titles.
const (
	TitleSuccess = "Success"
	TitleError   = "Error"
)

// ErrInvalidInput is returned when the Store rejects input before calling
// the API.
var ErrInvalidInput = errors.New("invalid input")

// API is the subset of Client the Store uses.
type API interface {
	List(ctx context.Context) ([]model.BeerType, error)
	Create(ctx context.Context, name string, kegCount *int) (*model.BeerType, error)
	Delete(ctx context.Context, id int64) error
	AddKegs(ctx context.Context, id int64, amount int) (*model.BeerType, error)
	RemoveKegs(ctx context.Context, id int64, amount int) (*model.BeerType, error)
	SetKegCount(ctx context.Context, id int64, count int) (*model.BeerType, error)
}

// Store holds the client's copy of the beer type collection. The server is
// authoritative: every successful mutation drops the copy and refetches,
// and a failed mutation leaves the copy untouched. Outcomes are reported
// on Notices.
type Store struct {
	api     API
	notices *Notices

	mu     sync.Mutex
	list   []model.BeerType
	loaded bool
}

// NewStore returns a Store. notices may be nil for a default-sized list.
func NewStore(api API, notices *Notices) *Store {
	if notices == nil {
		notices = NewNotices(0)
	}
	return &Store{api: api, notices: notices}
}

// Notices returns the store's notice list.
func (s *Store) Notices() *Notices {
	return s.notices
}

// BeerTypes returns the cached collection, fetching it on first use or
// after an invalidation.
func (s *Store) BeerTypes(ctx context.Context) ([]model.BeerType, error) {
	s.mu.Lock()
	if s.loaded {
		out := append([]model.BeerType(nil), s.list...)
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()

	return s.Refresh(ctx)
}

// Refresh refetches the collection. On failure the previous copy is kept.
func (s *Store) Refresh(ctx context.Context) ([]model.BeerType, error) {
	list, err := s.api.List(ctx)
	if err != nil {
		s.fail(err, "Failed to load beer types")
		return nil, err
	}

	s.mu.Lock()
	s.list = list
	s.loaded = true
	s.mu.Unlock()

	return append([]model.BeerType(nil), list...), nil
}

// Invalidate drops the cached collection.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.loaded = false
	s.mu.Unlock()
}

// LowStock returns the cached beer types at or below the low stock threshold.
func (s *Store) LowStock(ctx context.Context) ([]model.BeerType, error) {
	list, err := s.BeerTypes(ctx)
	if err != nil {
		return nil, err
	}
	low := make([]model.BeerType, 0, len(list))
	for _, bt := range list {
		if bt.LowStock() {
			low = append(low, bt)
		}
	}
	return low, nil
}

// Create adds a beer type.
func (s *Store) Create(ctx context.Context, name string, kegCount *int) (*model.BeerType, error) {
	if strings.TrimSpace(name) == "" {
		return nil, s.reject("Please enter a beer type name")
	}
	bt, err := s.api.Create(ctx, name, kegCount)
	if err != nil {
		return nil, s.fail(err, "Failed to add beer type")
	}
	s.succeed(ctx, "New beer type added to inventory!")
	return bt, nil
}

// Delete removes a beer type.
func (s *Store) Delete(ctx context.Context, id int64) error {
	if err := s.api.Delete(ctx, id); err != nil {
		return s.fail(err, "Failed to delete beer type")
	}
	s.succeed(ctx, "Beer type deleted successfully!")
	return nil
}

// AddKegs increases the count of a beer type.
func (s *Store) AddKegs(ctx context.Context, id int64, amount int) (*model.BeerType, error) {
	if amount < 1 {
		return nil, s.reject("Please enter a valid amount")
	}
	bt, err := s.api.AddKegs(ctx, id, amount)
	if err != nil {
		return nil, s.fail(err, "Failed to add kegs")
	}
	s.succeed(ctx, "Kegs added to inventory!")
	return bt, nil
}

// RemoveKegs decreases the count of a beer type.
func (s *Store) RemoveKegs(ctx context.Context, id int64, amount int) (*model.BeerType, error) {
	if amount < 1 {
		return nil, s.reject("Please enter a valid amount")
	}
	bt, err := s.api.RemoveKegs(ctx, id, amount)
	if err != nil {
		return nil, s.fail(err, "Failed to remove kegs")
	}
	s.succeed(ctx, "Kegs removed from inventory!")
	return bt, nil
}

// SetKegCount records a stock take.
func (s *Store) SetKegCount(ctx context.Context, id int64, count int) (*model.BeerType, error) {
	if count < 0 {
		return nil, s.reject("Please enter a valid keg count")
	}
	bt, err := s.api.SetKegCount(ctx, id, count)
	if err != nil {
		return nil, s.fail(err, "Failed to set keg count")
	}
	s.succeed(ctx, "Keg count updated!")
	return bt, nil
}

// succeed invalidates and refetches, then reports success. A failed
// refetch is reported as its own notice.
func (s *Store) succeed(ctx context.Context, message string) {
	s.Invalidate()
	s.notices.Push(NoticeSuccess, TitleSuccess, message)
	_, _ = s.Refresh(ctx)
}

// fail reports err and returns it unchanged. The server's message wins over
// the fallback when there is one.
func (s *Store) fail(err error, fallback string) error {
	msg := fallback
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		msg = apiErr.Message
	}
	s.notices.Push(NoticeError, TitleError, msg)
	return err
}

func (s *Store) reject(message string) error {
	s.notices.Push(NoticeError, TitleError, message)
	return ErrInvalidInput
}
