// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kegstock/kegstock/internal/cache"
	"github.com/kegstock/kegstock/internal/metrics"
	"github.com/kegstock/kegstock/internal/model"
	"github.com/kegstock/kegstock/internal/repository"
)

// MaxNameLength is the longest beer type name accepted, in characters.
const MaxNameLength = 100

// MaxKegCount is the largest keg count or amount accepted. keg_count is a
// PostgreSQL integer column.
const MaxKegCount = math.MaxInt32

// BeerTypeStore is the persistence the service needs.
// *repository.Repository satisfies it.
type BeerTypeStore interface {
	ListBeerTypes(ctx context.Context) ([]*model.BeerType, error)
	GetBeerTypeByID(ctx context.Context, id int64) (*model.BeerType, error)
	CreateBeerType(ctx context.Context, name string, kegCount int) (*model.BeerType, error)
	DeleteBeerType(ctx context.Context, id int64) (int64, error)
	SetKegCount(ctx context.Context, id int64, count int) (*model.BeerType, error)
	AdjustKegCount(ctx context.Context, id int64, delta int) (*model.BeerType, error)
}

// ListCache caches the full beer type list. *cache.Cache satisfies it.
//
// Every invalidation bumps a generation. SetBeerTypes stores list only if
// the generation still equals the one read before the list was loaded, and
// returns cache.ErrStaleFill otherwise.
type ListCache interface {
	GetBeerTypes(ctx context.Context) ([]*model.BeerType, error)
	Generation(ctx context.Context) (int64, error)
	SetBeerTypes(ctx context.Context, generation int64, list []*model.BeerType) error
	InvalidateBeerTypes(ctx context.Context) error
}

// BeerTypeService validates requests, checks existence and enforces the
// non-negative keg count before anything reaches storage.
type BeerTypeService struct {
	store   BeerTypeStore
	cache   ListCache
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewBeerTypeService creates a new BeerTypeService. listCache may be nil to
// disable caching.
func NewBeerTypeService(store BeerTypeStore, listCache ListCache, recorder metrics.Recorder, logger *slog.Logger) *BeerTypeService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BeerTypeService{
		store:   store,
		cache:   listCache,
		metrics: recorder,
		logger:  logger.With("component", "service.beer_type"),
	}
}

// CreateBeerTypeInput defines input for creating a beer type.
// A nil KegCount means the field was omitted.
type CreateBeerTypeInput struct {
	Name     string
	KegCount *int
}

// ListBeerTypes returns every beer type ordered by name.
func (s *BeerTypeService) ListBeerTypes(ctx context.Context) ([]*model.BeerType, error) {
	var (
		generation int64
		fill       bool
	)
	if s.cache != nil {
		list, err := s.cache.GetBeerTypes(ctx)
		if err == nil {
			s.metrics.IncListCacheHit()
			return list, nil
		}
		s.metrics.IncListCacheMiss()
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("list cache read failed", "error", err)
		}

		// Read before the store so a mutation landing in between makes
		// the fill below a no-op.
		generation, err = s.cache.Generation(ctx)
		if err != nil {
			s.logger.Warn("list cache generation read failed", "error", err)
		} else {
			fill = true
		}
	}

	list, err := s.store.ListBeerTypes(ctx)
	if err != nil {
		return nil, storage(MsgStorageList, err)
	}

	if fill {
		err := s.cache.SetBeerTypes(ctx, generation, list)
		switch {
		case errors.Is(err, cache.ErrStaleFill):
			s.logger.Debug("list cache fill skipped, list changed during read")
		case err != nil:
			s.logger.Warn("list cache fill failed", "error", err)
		}
	}

	return list, nil
}

// GetBeerType returns a single beer type.
func (s *BeerTypeService) GetBeerType(ctx context.Context, id int64) (*model.BeerType, error) {
	if id <= 0 {
		return nil, notFound()
	}

	bt, err := s.store.GetBeerTypeByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrBeerTypeNotFound) {
			return nil, notFound()
		}
		return nil, storage(MsgStorageGet, err)
	}

	return bt, nil
}

// CreateBeerType validates input and inserts a new beer type.
func (s *BeerTypeService) CreateBeerType(ctx context.Context, input CreateBeerTypeInput) (*model.BeerType, error) {
	name := strings.TrimSpace(input.Name)
	fields := make(map[string]string)

	switch {
	case name == "":
		fields["name"] = "Name is required"
	case utf8.RuneCountInString(name) > MaxNameLength:
		fields["name"] = "Name must be at most 100 characters"
	case strings.IndexFunc(name, unicode.IsControl) >= 0:
		fields["name"] = "Name must not contain control characters"
	case !utf8.ValidString(name):
		fields["name"] = "Name must be valid UTF-8"
	}

	count := 0
	if input.KegCount != nil {
		count = *input.KegCount
		if msg := validateCount(count); msg != "" {
			fields["kegCount"] = msg
		}
	}

	if len(fields) > 0 {
		return nil, NewValidationError(fields)
	}

	bt, err := s.store.CreateBeerType(ctx, name, count)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrBeerTypeNameExists):
			return nil, &Error{Kind: KindConflict, Message: MsgNameExists, Err: err}
		case errors.Is(err, repository.ErrKegCountOutOfRange):
			return nil, NewValidationError(map[string]string{"kegCount": "Keg count is too large"})
		}
		return nil, storage(MsgStorageCreate, err)
	}

	s.metrics.IncBeerTypeCreated()
	s.invalidate(ctx)

	return bt, nil
}

// DeleteBeerType removes a beer type. Unknown ids are reported as not found.
func (s *BeerTypeService) DeleteBeerType(ctx context.Context, id int64) error {
	if id <= 0 {
		return notFound()
	}

	if _, err := s.store.GetBeerTypeByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrBeerTypeNotFound) {
			return notFound()
		}
		return storage(MsgStorageDelete, err)
	}

	if _, err := s.store.DeleteBeerType(ctx, id); err != nil {
		return storage(MsgStorageDelete, err)
	}

	s.metrics.IncBeerTypeDeleted()
	s.invalidate(ctx)

	return nil
}

// AddKegs increases the keg count by amount.
func (s *BeerTypeService) AddKegs(ctx context.Context, id int64, amount int) (*model.BeerType, error) {
	if id <= 0 {
		return nil, notFound()
	}
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	bt, err := s.store.AdjustKegCount(ctx, id, amount)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrKegCountUnchanged):
			// An increase can only miss when the row is absent.
			return nil, notFound()
		case errors.Is(err, repository.ErrKegCountOutOfRange):
			return nil, NewValidationError(map[string]string{"amount": "Amount would exceed the maximum keg count"})
		}
		return nil, storage(MsgStorageAdd, err)
	}

	s.metrics.AddKegsAdded(amount)
	s.invalidate(ctx)

	return bt, nil
}

// RemoveKegs decreases the keg count by amount. The count never goes below
// zero; a removal larger than the stock is rejected without writing.
func (s *BeerTypeService) RemoveKegs(ctx context.Context, id int64, amount int) (*model.BeerType, error) {
	if id <= 0 {
		return nil, notFound()
	}
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	bt, err := s.store.AdjustKegCount(ctx, id, -amount)
	if err == nil {
		s.metrics.AddKegsRemoved(amount)
		s.invalidate(ctx)
		return bt, nil
	}
	if !errors.Is(err, repository.ErrKegCountUnchanged) {
		return nil, storage(MsgStorageRemove, err)
	}

	// The guarded update matched nothing: either the id is unknown or the
	// stock is too low.
	if _, err := s.store.GetBeerTypeByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrBeerTypeNotFound) {
			return nil, notFound()
		}
		return nil, storage(MsgStorageRemove, err)
	}

	s.metrics.IncKegRemovalRejected()
	return nil, &Error{Kind: KindInvariant, Message: MsgNotEnoughKegs}
}

// SetKegCount records a physical stock take, overwriting the count.
func (s *BeerTypeService) SetKegCount(ctx context.Context, id int64, count int) (*model.BeerType, error) {
	if id <= 0 {
		return nil, notFound()
	}
	if msg := validateCount(count); msg != "" {
		return nil, NewValidationError(map[string]string{"kegCount": msg})
	}

	bt, err := s.store.SetKegCount(ctx, id, count)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrBeerTypeNotFound):
			return nil, notFound()
		case errors.Is(err, repository.ErrNegativeKegCount):
			return nil, &Error{Kind: KindInvariant, Message: MsgNotEnoughKegs, Err: err}
		case errors.Is(err, repository.ErrKegCountOutOfRange):
			return nil, NewValidationError(map[string]string{"kegCount": "Keg count is too large"})
		}
		return nil, storage(MsgStorageSetCount, err)
	}

	s.invalidate(ctx)

	return bt, nil
}

func (s *BeerTypeService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateBeerTypes(ctx); err != nil {
		s.logger.Warn("list cache invalidation failed", "error", err)
	}
}

func validateAmount(amount int) error {
	switch {
	case amount < 1:
		return NewValidationError(map[string]string{"amount": "Amount must be a positive integer"})
	case amount > MaxKegCount:
		return NewValidationError(map[string]string{"amount": "Amount is too large"})
	}
	return nil
}

func validateCount(count int) string {
	switch {
	case count < 0:
		return "Keg count must be zero or greater"
	case count > MaxKegCount:
		return "Keg count is too large"
	}
	return ""
}
