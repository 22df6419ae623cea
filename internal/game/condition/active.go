package condition

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Status is one status effect applied to an entity.
type Status struct {
	Kind Kind
	// SourceID identifies the entity that applied the status. For Taunt it is
	// the entity the holder is forced to attack.
	SourceID uuid.UUID
	// ExpiresAt is the simulation time in milliseconds at which the status ends.
	// Zero means the status persists until removed.
	ExpiresAt int64
}

// Expired reports whether s has lapsed at now.
func (s Status) Expired(now int64) bool {
	return s.ExpiresAt > 0 && now >= s.ExpiresAt
}

// ActiveSet tracks the statuses currently applied to one entity.
// It is safe for concurrent use.
type ActiveSet struct {
	mu       sync.RWMutex
	statuses []Status
}

// NewActiveSet creates an empty ActiveSet.
func NewActiveSet() *ActiveSet {
	return &ActiveSet{}
}

// Apply adds a status. A status of the same Kind and source is replaced and
// keeps the later expiry.
//
// Precondition: s.Kind must be valid and not None.
// Postcondition: Has(s.Kind) is true.
func (a *ActiveSet) Apply(s Status) error {
	if !s.Kind.Valid() {
		return fmt.Errorf("Apply: %w: %d", ErrUnknownKind, int(s.Kind))
	}
	if s.Kind == None {
		return fmt.Errorf("Apply: kind must not be none")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, existing := range a.statuses {
		if existing.Kind == s.Kind && existing.SourceID == s.SourceID {
			if existing.ExpiresAt == 0 || (s.ExpiresAt != 0 && existing.ExpiresAt > s.ExpiresAt) {
				s.ExpiresAt = existing.ExpiresAt
			}
			a.statuses[i] = s
			return nil
		}
	}
	a.statuses = append(a.statuses, s)
	return nil
}

// Remove deletes every status of kind k.
//
// Postcondition: Has(k) is false.
func (a *ActiveSet) Remove(k Kind) {
	a.mu.Lock()
	defer a.mu.Unlock()
	kept := a.statuses[:0]
	for _, s := range a.statuses {
		if s.Kind != k {
			kept = append(kept, s)
		}
	}
	a.statuses = kept
}

// Clear removes all statuses.
func (a *ActiveSet) Clear() {
	a.mu.Lock()
	a.statuses = nil
	a.mu.Unlock()
}

// Tick removes statuses that have expired at now and returns their kinds.
//
// Postcondition: no remaining status is Expired(now).
func (a *ActiveSet) Tick(now int64) []Kind {
	a.mu.Lock()
	defer a.mu.Unlock()
	var expired []Kind
	kept := a.statuses[:0]
	for _, s := range a.statuses {
		if s.Expired(now) {
			expired = append(expired, s.Kind)
			continue
		}
		kept = append(kept, s)
	}
	a.statuses = kept
	return expired
}

// Has reports whether a status of kind k is active.
func (a *ActiveSet) Has(k Kind) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return Has(a.statuses, k)
}

// All returns a copy of the active statuses in application order.
func (a *ActiveSet) All() []Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Status, len(a.statuses))
	copy(out, a.statuses)
	return out
}
