package httpapi

import (
	"sync"
	"sync/atomic"
)

// RequestRegistry tracks in-flight voice-chat requests and supports graceful
// draining. When draining is enabled, new requests are rejected while those
// already running finish.
//
// mu makes the draining check and wg.Add in Add atomic, so no request can be
// added after StartDraining returns and before Wait observes it.
type RequestRegistry struct {
	mu       sync.Mutex
	draining bool
	wg       sync.WaitGroup
	count    atomic.Int64
}

// NewRequestRegistry creates a new RequestRegistry.
func NewRequestRegistry() *RequestRegistry {
	return &RequestRegistry{}
}

// Add registers a request. It returns false while draining.
func (rr *RequestRegistry) Add() bool {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	if rr.draining {
		return false
	}
	rr.wg.Add(1)
	rr.count.Add(1)
	return true
}

// Done marks a request as finished. Call it exactly once per successful Add.
func (rr *RequestRegistry) Done() {
	rr.count.Add(-1)
	rr.wg.Done()
}

// StartDraining makes every later Add return false.
func (rr *RequestRegistry) StartDraining() {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	rr.draining = true
}

// IsDraining reports whether the registry is in draining mode.
func (rr *RequestRegistry) IsDraining() bool {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	return rr.draining
}

// ActiveCount returns the number of requests in flight.
func (rr *RequestRegistry) ActiveCount() int64 {
	return rr.count.Load()
}

// Wait blocks until every registered request is done.
func (rr *RequestRegistry) Wait() {
	rr.wg.Wait()
}
