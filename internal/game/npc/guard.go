package npc

import "sync/atomic"

// TickGuard admits at most one holder at a time without blocking. Callers
// that fail to acquire it skip their work.
type TickGuard struct {
	held    atomic.Bool
	skipped atomic.Uint64
}

// TryAcquire takes the guard if it is free.
//
// Postcondition: Returns true iff the caller now holds the guard and must
// call Release; a false return is counted as a skipped tick.
func (g *TickGuard) TryAcquire() bool {
	if g.held.CompareAndSwap(false, true) {
		return true
	}
	g.skipped.Add(1)
	return false
}

// Release frees the guard.
func (g *TickGuard) Release() {
	g.held.Store(false)
}

// Skipped returns the number of rejected acquisitions.
func (g *TickGuard) Skipped() uint64 {
	return g.skipped.Load()
}
