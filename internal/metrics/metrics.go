// Package metrics provides lightweight hooks for instrumentation.
package metrics

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Beer type lifecycle
	IncBeerTypeCreated()
	IncBeerTypeDeleted()

	// Keg movements
	AddKegsAdded(n int)
	AddKegsRemoved(n int)
	IncKegRemovalRejected()

	// List cache
	IncListCacheHit()
	IncListCacheMiss()
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
