package preview

import (
	"context"
	"sync"
)

// inFlight records which design ids are being rendered so that at most one
// render per id proceeds at a time. Entries carry the cache generation they
// were taken in; reset drops all entries without waiting for their owners.
type inFlight struct {
	mu      sync.Mutex
	running map[string]uint64
	wg      sync.WaitGroup
}

// TryLock marks id as rendering. It returns false when id is already
// rendering.
func (g *inFlight) TryLock(id string, generation uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running == nil {
		g.running = make(map[string]uint64)
	}
	if _, ok := g.running[id]; ok {
		return false
	}
	g.running[id] = generation
	g.wg.Add(1)
	return true
}

// Unlock releases id. Must be called after TryLock returned true.
func (g *inFlight) Unlock(id string, generation uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if gen, ok := g.running[id]; ok && gen == generation {
		delete(g.running, id)
	}
	g.wg.Done()
}

// Reset empties the set.
func (g *inFlight) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.running = make(map[string]uint64)
}

// WaitAll blocks until every render started so far returns or ctx is done.
func (g *inFlight) WaitAll(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
