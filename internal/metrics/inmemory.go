package metrics

import "sync/atomic"

// Snapshot captures current in-memory counters.
type Snapshot struct {
	BeerTypesCreated    uint64
	BeerTypesDeleted    uint64
	KegsAdded           uint64
	KegsRemoved         uint64
	KegRemovalsRejected uint64
	ListCacheHits       uint64
	ListCacheMisses     uint64
}

// InMemoryRecorder stores metrics in memory. It backs the /metrics endpoint.
type InMemoryRecorder struct {
	beerTypesCreated    atomic.Uint64
	beerTypesDeleted    atomic.Uint64
	kegsAdded           atomic.Uint64
	kegsRemoved         atomic.Uint64
	kegRemovalsRejected atomic.Uint64
	listCacheHits       atomic.Uint64
	listCacheMisses     atomic.Uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		BeerTypesCreated:    m.beerTypesCreated.Load(),
		BeerTypesDeleted:    m.beerTypesDeleted.Load(),
		KegsAdded:           m.kegsAdded.Load(),
		KegsRemoved:         m.kegsRemoved.Load(),
		KegRemovalsRejected: m.kegRemovalsRejected.Load(),
		ListCacheHits:       m.listCacheHits.Load(),
		ListCacheMisses:     m.listCacheMisses.Load(),
	}
}

// IncBeerTypeCreated increments the created counter.
func (m *InMemoryRecorder) IncBeerTypeCreated() { m.beerTypesCreated.Add(1) }

// IncBeerTypeDeleted increments the deleted counter.
func (m *InMemoryRecorder) IncBeerTypeDeleted() { m.beerTypesDeleted.Add(1) }

// AddKegsAdded adds n to the kegs-in counter. Non-positive n is ignored.
func (m *InMemoryRecorder) AddKegsAdded(n int) {
	if n > 0 {
		m.kegsAdded.Add(uint64(n))
	}
}

// AddKegsRemoved adds n to the kegs-out counter. Non-positive n is ignored.
func (m *InMemoryRecorder) AddKegsRemoved(n int) {
	if n > 0 {
		m.kegsRemoved.Add(uint64(n))
	}
}

// IncKegRemovalRejected counts removals refused because stock was short.
func (m *InMemoryRecorder) IncKegRemovalRejected() { m.kegRemovalsRejected.Add(1) }

// IncListCacheHit increments the list cache hit counter.
func (m *InMemoryRecorder) IncListCacheHit() { m.listCacheHits.Add(1) }

// IncListCacheMiss increments the list cache miss counter.
func (m *InMemoryRecorder) IncListCacheMiss() { m.listCacheMisses.Add(1) }
