package metrics

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) IncBeerTypeCreated()    {}
func (n *NoopRecorder) IncBeerTypeDeleted()    {}
func (n *NoopRecorder) AddKegsAdded(int)       {}
func (n *NoopRecorder) AddKegsRemoved(int)     {}
func (n *NoopRecorder) IncKegRemovalRejected() {}
func (n *NoopRecorder) IncListCacheHit()       {}
func (n *NoopRecorder) IncListCacheMiss()      {}
