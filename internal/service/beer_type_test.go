package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kegstock/kegstock/internal/cache"
	"github.com/kegstock/kegstock/internal/metrics"
	"github.com/kegstock/kegstock/internal/model"
	"github.com/kegstock/kegstock/internal/repository"
)

// fakeStore is an in-memory BeerTypeStore with the same error contract as
// the PostgreSQL repository.
type fakeStore struct {
	mu      sync.Mutex
	nextID  int64
	rows    map[int64]*model.BeerType
	failAll error
	writes  int

	// afterList runs once the list has been read, outside the lock.
	afterList func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{nextID: 1, rows: make(map[int64]*model.BeerType)}
}

func (f *fakeStore) ListBeerTypes(ctx context.Context) ([]*model.BeerType, error) {
	f.mu.Lock()
	if f.failAll != nil {
		f.mu.Unlock()
		return nil, f.failAll
	}
	list := make([]*model.BeerType, 0, len(f.rows))
	for _, bt := range f.rows {
		cp := *bt
		list = append(list, &cp)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	hook := f.afterList
	f.afterList = nil
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return list, nil
}

func (f *fakeStore) GetBeerTypeByID(ctx context.Context, id int64) (*model.BeerType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return nil, f.failAll
	}
	bt, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrBeerTypeNotFound
	}
	cp := *bt
	return &cp, nil
}

func (f *fakeStore) CreateBeerType(ctx context.Context, name string, kegCount int) (*model.BeerType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return nil, f.failAll
	}
	for _, bt := range f.rows {
		if bt.Name == name {
			return nil, repository.ErrBeerTypeNameExists
		}
	}
	now := time.Now().UTC()
	bt := &model.BeerType{ID: f.nextID, Name: name, KegCount: kegCount, CreatedAt: now, UpdatedAt: now}
	f.rows[bt.ID] = bt
	f.nextID++
	f.writes++
	cp := *bt
	return &cp, nil
}

func (f *fakeStore) DeleteBeerType(ctx context.Context, id int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return 0, f.failAll
	}
	if _, ok := f.rows[id]; !ok {
		return 0, nil
	}
	delete(f.rows, id)
	f.writes++
	return 1, nil
}

func (f *fakeStore) SetKegCount(ctx context.Context, id int64, count int) (*model.BeerType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return nil, f.failAll
	}
	bt, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrBeerTypeNotFound
	}
	if count < 0 {
		return nil, repository.ErrNegativeKegCount
	}
	bt.KegCount = count
	f.writes++
	cp := *bt
	return &cp, nil
}

func (f *fakeStore) AdjustKegCount(ctx context.Context, id int64, delta int) (*model.BeerType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return nil, f.failAll
	}
	bt, ok := f.rows[id]
	if !ok || bt.KegCount+delta < 0 {
		return nil, repository.ErrKegCountUnchanged
	}
	bt.KegCount += delta
	f.writes++
	cp := *bt
	return &cp, nil
}

// fakeCache is an in-memory ListCache with the generation check of the
// Redis implementation.
type fakeCache struct {
	mu          sync.Mutex
	list        []*model.BeerType
	generation  int64
	invalidated int
	staleFills  int
	getErr      error
}

func (c *fakeCache) GetBeerTypes(ctx context.Context) ([]*model.BeerType, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	if c.list == nil {
		return nil, cache.ErrCacheMiss
	}
	return c.list, nil
}

func (c *fakeCache) Generation(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation, nil
}

func (c *fakeCache) SetBeerTypes(ctx context.Context, generation int64, list []*model.BeerType) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation {
		c.staleFills++
		return cache.ErrStaleFill
	}
	c.list = list
	return nil
}

func (c *fakeCache) InvalidateBeerTypes(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.list = nil
	c.generation++
	c.invalidated++
	return nil
}

func intPtr(v int) *int { return &v }

func newTestService(t *testing.T) (*BeerTypeService, *fakeStore, *fakeCache, *metrics.InMemoryRecorder) {
	t.Helper()
	store := newFakeStore()
	c := &fakeCache{}
	rec := metrics.NewInMemory()
	return NewBeerTypeService(store, c, rec, nil), store, c, rec
}

func mustCreate(t *testing.T, svc *BeerTypeService, name string, count int) *model.BeerType {
	t.Helper()
	bt, err := svc.CreateBeerType(context.Background(), CreateBeerTypeInput{Name: name, KegCount: intPtr(count)})
	if err != nil {
		t.Fatalf("CreateBeerType(%s) failed: %v", name, err)
	}
	return bt
}

func TestCreateBeerType(t *testing.T) {
	svc, _, _, rec := newTestService(t)
	ctx := context.Background()

	bt, err := svc.CreateBeerType(ctx, CreateBeerTypeInput{Name: "  IPA  ", KegCount: intPtr(10)})
	if err != nil {
		t.Fatalf("CreateBeerType failed: %v", err)
	}
	if bt.ID != 1 || bt.Name != "IPA" || bt.KegCount != 10 {
		t.Errorf("unexpected record: %+v", bt)
	}

	omitted, err := svc.CreateBeerType(ctx, CreateBeerTypeInput{Name: "Stout"})
	if err != nil {
		t.Fatalf("CreateBeerType without count failed: %v", err)
	}
	if omitted.KegCount != 0 {
		t.Errorf("omitted kegCount should default to 0, got %d", omitted.KegCount)
	}

	if got := rec.Snapshot().BeerTypesCreated; got != 2 {
		t.Errorf("BeerTypesCreated = %d, want 2", got)
	}
}

func TestCreateBeerTypeValidationErrors(t *testing.T) {
	svc, store, _, _ := newTestService(t)

	tests := []struct {
		name       string
		input      CreateBeerTypeInput
		wantFields []string
	}{
		{"empty_name", CreateBeerTypeInput{Name: ""}, []string{"name"}},
		{"blank_name", CreateBeerTypeInput{Name: "   "}, []string{"name"}},
		{"long_name", CreateBeerTypeInput{Name: strings.Repeat("x", MaxNameLength+1)}, []string{"name"}},
		{"nul_in_name", CreateBeerTypeInput{Name: "IPA\x00"}, []string{"name"}},
		{"newline_in_name", CreateBeerTypeInput{Name: "Pale\nAle"}, []string{"name"}},
		{"escape_in_name", CreateBeerTypeInput{Name: "Stout\x1b[31m"}, []string{"name"}},
		{"negative_count", CreateBeerTypeInput{Name: "IPA", KegCount: intPtr(-1)}, []string{"kegCount"}},
		{"count_above_int32", CreateBeerTypeInput{Name: "IPA", KegCount: intPtr(math.MaxInt32 + 1)}, []string{"kegCount"}},
		{"both", CreateBeerTypeInput{Name: "", KegCount: intPtr(-5)}, []string{"name", "kegCount"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateBeerType(context.Background(), tt.input)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			var svcErr *Error
			if !errors.As(err, &svcErr) {
				t.Fatalf("expected *Error, got %T", err)
			}
			if len(svcErr.Fields) != len(tt.wantFields) {
				t.Errorf("fields = %v, want keys %v", svcErr.Fields, tt.wantFields)
			}
			for _, f := range tt.wantFields {
				if svcErr.Fields[f] == "" {
					t.Errorf("missing message for field %q", f)
				}
			}
		})
	}

	if store.writes != 0 {
		t.Errorf("validation failures must not write, got %d writes", store.writes)
	}
}

func TestCreateBeerType_DuplicateNameConflicts(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	mustCreate(t, svc, "IPA", 10)

	_, err := svc.CreateBeerType(context.Background(), CreateBeerTypeInput{Name: "IPA", KegCount: intPtr(99)})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	list, _ := svc.ListBeerTypes(context.Background())
	if len(list) != 1 || list[0].KegCount != 10 {
		t.Errorf("duplicate create must not overwrite, got %+v", list)
	}
}

func TestRemoveKegs_MoreThanAvailable(t *testing.T) {
	svc, store, _, rec := newTestService(t)
	bt := mustCreate(t, svc, "IPA", 10)
	writesBefore := store.writes

	_, err := svc.RemoveKegs(context.Background(), bt.ID, 15)
	if !errors.Is(err, ErrInvariant) {
		t.Fatalf("expected invariant error, got %v", err)
	}
	if KindOf(err) != KindInvariant {
		t.Errorf("KindOf = %v, want invariant", KindOf(err))
	}

	current, _ := svc.GetBeerType(context.Background(), bt.ID)
	if current.KegCount != 10 {
		t.Errorf("count changed to %d after rejected removal", current.KegCount)
	}
	if store.writes != writesBefore {
		t.Error("rejected removal must not write")
	}
	if rec.Snapshot().KegRemovalsRejected != 1 {
		t.Error("rejected removal should be counted")
	}
}

func TestRemoveKegs_ExactlyAvailable(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	bt := mustCreate(t, svc, "IPA", 7)

	updated, err := svc.RemoveKegs(context.Background(), bt.ID, 7)
	if err != nil {
		t.Fatalf("RemoveKegs failed: %v", err)
	}
	if updated.KegCount != 0 {
		t.Errorf("KegCount = %d, want 0", updated.KegCount)
	}
}

func TestAddThenRemoveRestoresCount(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	for _, start := range []int{0, 1, 20, 500} {
		bt := mustCreate(t, svc, fmt.Sprintf("Beer-%d", start), start)
		for _, amount := range []int{1, 3, 250} {
			if _, err := svc.AddKegs(ctx, bt.ID, amount); err != nil {
				t.Fatalf("AddKegs failed: %v", err)
			}
			restored, err := svc.RemoveKegs(ctx, bt.ID, amount)
			if err != nil {
				t.Fatalf("RemoveKegs failed: %v", err)
			}
			if restored.KegCount != start {
				t.Errorf("start %d amount %d: count %d after add+remove", start, amount, restored.KegCount)
			}
		}
	}
}

func TestAmountValidation(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	bt := mustCreate(t, svc, "IPA", 10)

	for _, amount := range []int{0, -1, -100} {
		if _, err := svc.AddKegs(context.Background(), bt.ID, amount); !errors.Is(err, ErrValidation) {
			t.Errorf("AddKegs(%d): expected validation error, got %v", amount, err)
		}
		if _, err := svc.RemoveKegs(context.Background(), bt.ID, amount); !errors.Is(err, ErrValidation) {
			t.Errorf("RemoveKegs(%d): expected validation error, got %v", amount, err)
		}
	}
}

func TestUnknownIDIsNotFound(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.GetBeerType(ctx, 42); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetBeerType: expected not found, got %v", err)
	}
	if err := svc.DeleteBeerType(ctx, 42); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteBeerType: expected not found, got %v", err)
	}
	if _, err := svc.AddKegs(ctx, 42, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("AddKegs: expected not found, got %v", err)
	}
	if _, err := svc.RemoveKegs(ctx, 42, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("RemoveKegs: expected not found, got %v", err)
	}
	if _, err := svc.SetKegCount(ctx, 42, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetKegCount: expected not found, got %v", err)
	}
}

func TestNonPositiveIDIsNotFound(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	for _, id := range []int64{0, -3} {
		if _, err := svc.GetBeerType(ctx, id); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetBeerType(%d): expected not found, got %v", id, err)
		}
		if err := svc.DeleteBeerType(ctx, id); !errors.Is(err, ErrNotFound) {
			t.Errorf("DeleteBeerType(%d): expected not found, got %v", id, err)
		}
		if _, err := svc.AddKegs(ctx, id, 1); !errors.Is(err, ErrNotFound) {
			t.Errorf("AddKegs(%d): expected not found, got %v", id, err)
		}
		if _, err := svc.RemoveKegs(ctx, id, 1); !errors.Is(err, ErrNotFound) {
			t.Errorf("RemoveKegs(%d): expected not found, got %v", id, err)
		}
		if _, err := svc.SetKegCount(ctx, id, 1); !errors.Is(err, ErrNotFound) {
			t.Errorf("SetKegCount(%d): expected not found, got %v", id, err)
		}
	}
}

func TestCountsAboveInt32AreRejected(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()
	bt := mustCreate(t, svc, "IPA", 10)
	writesBefore := store.writes
	tooLarge := math.MaxInt32 + 1

	if _, err := svc.AddKegs(ctx, bt.ID, tooLarge); !errors.Is(err, ErrValidation) {
		t.Errorf("AddKegs: expected validation error, got %v", err)
	}
	if _, err := svc.RemoveKegs(ctx, bt.ID, tooLarge); !errors.Is(err, ErrValidation) {
		t.Errorf("RemoveKegs: expected validation error, got %v", err)
	}
	if _, err := svc.SetKegCount(ctx, bt.ID, tooLarge); !errors.Is(err, ErrValidation) {
		t.Errorf("SetKegCount: expected validation error, got %v", err)
	}
	if store.writes != writesBefore {
		t.Errorf("rejected counts must not write, got %d writes", store.writes-writesBefore)
	}

	if _, err := svc.SetKegCount(ctx, bt.ID, MaxKegCount); err != nil {
		t.Errorf("SetKegCount(MaxKegCount) failed: %v", err)
	}
}

func TestDeleteThenGetIsNotFound(t *testing.T) {
	svc, _, _, rec := newTestService(t)
	bt := mustCreate(t, svc, "Porter", 3)

	if err := svc.DeleteBeerType(context.Background(), bt.ID); err != nil {
		t.Fatalf("DeleteBeerType failed: %v", err)
	}
	if _, err := svc.GetBeerType(context.Background(), bt.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found after delete, got %v", err)
	}
	if rec.Snapshot().BeerTypesDeleted != 1 {
		t.Error("delete should be counted")
	}
}

func TestSetKegCount(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	bt := mustCreate(t, svc, "Kolsch", 3)

	updated, err := svc.SetKegCount(context.Background(), bt.ID, 25)
	if err != nil {
		t.Fatalf("SetKegCount failed: %v", err)
	}
	if updated.KegCount != 25 {
		t.Errorf("KegCount = %d, want 25", updated.KegCount)
	}

	if _, err := svc.SetKegCount(context.Background(), bt.ID, -1); !errors.Is(err, ErrValidation) {
		t.Errorf("expected validation error for negative count, got %v", err)
	}
}

func TestKegCountNeverNegative(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()
	bt := mustCreate(t, svc, "Bock", 5)

	ops := []struct {
		add    bool
		amount int
	}{
		{false, 3}, {false, 3}, {true, 1}, {false, 4}, {false, 1}, {true, 10}, {false, 11}, {false, 10},
	}
	for _, op := range ops {
		if op.add {
			_, _ = svc.AddKegs(ctx, bt.ID, op.amount)
		} else {
			_, _ = svc.RemoveKegs(ctx, bt.ID, op.amount)
		}
		if store.rows[bt.ID].KegCount < 0 {
			t.Fatalf("keg count went negative: %d", store.rows[bt.ID].KegCount)
		}
	}
}

func TestStorageErrorsAreKindStorage(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	store.failAll = errors.New("connection refused")
	ctx := context.Background()

	_, err := svc.ListBeerTypes(ctx)
	if KindOf(err) != KindStorage {
		t.Errorf("ListBeerTypes: kind = %v, want storage", KindOf(err))
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("storage error should wrap the cause, got %v", err)
	}

	_, err = svc.CreateBeerType(ctx, CreateBeerTypeInput{Name: "IPA"})
	if !errors.Is(err, ErrStorage) {
		t.Errorf("CreateBeerType: expected storage error, got %v", err)
	}
	if _, err := svc.RemoveKegs(ctx, 1, 1); !errors.Is(err, ErrStorage) {
		t.Errorf("RemoveKegs: expected storage error, got %v", err)
	}
}

func TestListBeerTypes_UsesAndInvalidatesCache(t *testing.T) {
	svc, store, c, rec := newTestService(t)
	ctx := context.Background()
	mustCreate(t, svc, "IPA", 1)

	if _, err := svc.ListBeerTypes(ctx); err != nil {
		t.Fatalf("ListBeerTypes failed: %v", err)
	}
	if c.list == nil {
		t.Fatal("list should be cached after a miss")
	}

	// Served from cache even if storage is down.
	store.failAll = errors.New("down")
	if _, err := svc.ListBeerTypes(ctx); err != nil {
		t.Fatalf("cached ListBeerTypes failed: %v", err)
	}
	store.failAll = nil

	mustCreate(t, svc, "Stout", 2)
	if c.list != nil {
		t.Error("mutation should invalidate the cached list")
	}

	list, _ := svc.ListBeerTypes(ctx)
	if len(list) != 2 {
		t.Errorf("expected fresh list of 2, got %d", len(list))
	}

	snap := rec.Snapshot()
	if snap.ListCacheHits != 1 || snap.ListCacheMisses != 2 {
		t.Errorf("cache hits/misses = %d/%d, want 1/2", snap.ListCacheHits, snap.ListCacheMisses)
	}
}

func TestListBeerTypes_MutationDuringReadIsNotCached(t *testing.T) {
	svc, store, c, _ := newTestService(t)
	ctx := context.Background()
	bt := mustCreate(t, svc, "IPA", 10)

	// AddKegs commits and invalidates after the list was read from the
	// store but before the reader fills the cache.
	store.afterList = func() {
		if _, err := svc.AddKegs(ctx, bt.ID, 5); err != nil {
			t.Errorf("AddKegs failed: %v", err)
		}
	}
	if _, err := svc.ListBeerTypes(ctx); err != nil {
		t.Fatalf("ListBeerTypes failed: %v", err)
	}
	if c.list != nil {
		t.Fatalf("list read before the mutation was cached: %+v", c.list)
	}
	if c.staleFills != 1 {
		t.Errorf("stale fills = %d, want 1", c.staleFills)
	}

	list, err := svc.ListBeerTypes(ctx)
	if err != nil {
		t.Fatalf("ListBeerTypes failed: %v", err)
	}
	if len(list) != 1 || list[0].KegCount != 15 {
		t.Fatalf("ListBeerTypes() = %+v, want IPA with 15 kegs", list)
	}
	cached, err := c.GetBeerTypes(ctx)
	if err != nil || cached[0].KegCount != 15 {
		t.Errorf("cached list = %+v, %v; want count 15", cached, err)
	}
}

func TestListBeerTypes_CacheErrorFallsBackToStore(t *testing.T) {
	svc, _, c, _ := newTestService(t)
	mustCreate(t, svc, "IPA", 1)
	c.getErr = errors.New("redis: connection pool timeout")

	list, err := svc.ListBeerTypes(context.Background())
	if err != nil {
		t.Fatalf("ListBeerTypes failed: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 beer type, got %d", len(list))
	}
}

func TestListBeerTypes_NoCache(t *testing.T) {
	store := newFakeStore()
	svc := NewBeerTypeService(store, nil, nil, nil)
	mustCreate(t, svc, "IPA", 1)

	list, err := svc.ListBeerTypes(context.Background())
	if err != nil {
		t.Fatalf("ListBeerTypes failed: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 beer type, got %d", len(list))
	}
}

func TestKindOf_ForeignError(t *testing.T) {
	if KindOf(errors.New("boom")) != KindStorage {
		t.Error("foreign errors should be treated as storage errors")
	}
	if KindOf(notFound()) != KindNotFound {
		t.Error("KindOf(notFound()) should be KindNotFound")
	}
}
