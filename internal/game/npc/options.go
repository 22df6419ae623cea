package npc

// Fixed controller constants.
const (
	// DefaultFindTargetDelayMs is the minimum interval between target searches.
	DefaultFindTargetDelayMs = 500
	// TargetFailMax is the number of consecutive failed searches tolerated
	// before a reset is forced.
	TargetFailMax = 10
	// ResetMax is the number of unchanged non-zero distance readings tolerated
	// while resetting before the aggro center is dropped.
	ResetMax = 100
	// RegenIntervalMs is the interval between out-of-combat regen pulses.
	RegenIntervalMs = 3000
)

// Options are the global NPC tunables. An Options value is immutable once
// handed to an agent.
type Options struct {
	// AllowResetRadius enables leashing NPCs to the tile where they first aggro'd.
	AllowResetRadius bool
	// ResetRadius is the global minimum leash radius in tiles.
	ResetRadius int
	// AllowNewResetLocationBeforeFinish moves the aggro center on every new
	// target instead of keeping the first one until the reset completes.
	AllowNewResetLocationBeforeFinish bool
	// AllowEngagingWhileResetting lets a resetting NPC fight back when attacked
	// by an entity within its leash radius.
	AllowEngagingWhileResetting bool
	// IntangibleDuringReset lets a resetting NPC walk through other entities.
	IntangibleDuringReset bool
	// ResetIfCombatTimerExceeded forces a reset when the combat timer lapses.
	ResetIfCombatTimerExceeded bool
	// ResetVitalsAndStatuses restores vitals and clears statuses when a reset starts.
	ResetVitalsAndStatuses bool
	// ContinuouslyResetVitalsAndStatuses restores vitals and clears statuses on
	// every tick spent resetting.
	ContinuouslyResetVitalsAndStatuses bool
	// FindTargetDelayMs is the minimum interval between target searches.
	FindTargetDelayMs int64
	// CombatTimeMs is how long a target assignment keeps the NPC in combat.
	CombatTimeMs int64
	// MapWidth and MapHeight are the tile dimensions shared by every map.
	MapWidth  int
	MapHeight int
}

// DefaultOptions returns the stock tunables.
func DefaultOptions() Options {
	return Options{
		AllowResetRadius:           true,
		ResetRadius:                8,
		IntangibleDuringReset:      true,
		ResetIfCombatTimerExceeded: true,
		ResetVitalsAndStatuses:     true,
		FindTargetDelayMs:          DefaultFindTargetDelayMs,
		CombatTimeMs:               10_000,
		MapWidth:                   32,
		MapHeight:                  26,
	}
}
