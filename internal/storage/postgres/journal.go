package postgres

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/cory-johannsen/npcai/internal/config"
	"github.com/cory-johannsen/npcai/internal/game/npc"
)

// shutdownFlushTimeout bounds the final flush after the journal is stopped.
const shutdownFlushTimeout = 5 * time.Second

// EventsTable is the journal's destination table.
const EventsTable = "npc_events"

// EventColumns lists the npc_events columns written per event, in row order.
var EventColumns = []string{
	"occurred_at", "kind", "npc_id", "template", "map_id", "x", "y",
	"target_id", "spell_id", "animation", "attack_time_ms", "loot",
}

// Copier bulk-loads rows. *pgxpool.Pool satisfies it.
type Copier interface {
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, rows pgx.CopyFromSource) (int64, error)
}

// JournalLoot is the jsonb document stored for death events.
type JournalLoot struct {
	Owner    uuid.UUID      `json:"owner"`
	Eligible []uuid.UUID    `json:"eligible"`
	Currency int            `json:"currency"`
	Items    []npc.LootItem `json:"items"`
}

// Journal is an npc.Notifier that persists events to Postgres in batches.
// Notify never blocks: events arriving while the buffer is full are dropped
// and counted.
type Journal struct {
	db       Copier
	events   chan npc.Event
	batch    int
	interval time.Duration
	logger   *zap.Logger

	written atomic.Uint64
	dropped atomic.Uint64
}

// NewJournal creates a Journal writing through db.
//
// Precondition: db must be non-nil; cfg.BufferSize, cfg.BatchSize and
// cfg.FlushInterval must be positive.
func NewJournal(db Copier, cfg config.JournalConfig, logger *zap.Logger) *Journal {
	if db == nil {
		panic("postgres.NewJournal: db must not be nil")
	}
	if cfg.BufferSize < 1 || cfg.BatchSize < 1 || cfg.FlushInterval <= 0 {
		panic("postgres.NewJournal: buffer size, batch size and flush interval must be positive")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Journal{
		db:       db,
		events:   make(chan npc.Event, cfg.BufferSize),
		batch:    cfg.BatchSize,
		interval: cfg.FlushInterval,
		logger:   logger,
	}
}

// Notify enqueues ev for persistence.
func (j *Journal) Notify(ev npc.Event) {
	select {
	case j.events <- ev:
	default:
		if j.dropped.Add(1) == 1 {
			j.logger.Warn("npc event journal full, dropping events")
		}
	}
}

// Written returns the number of events persisted.
func (j *Journal) Written() uint64 { return j.written.Load() }

// Dropped returns the number of events discarded because the buffer was full.
func (j *Journal) Dropped() uint64 { return j.dropped.Load() }

// Run writes buffered events until ctx is cancelled, flushing whenever a
// batch fills or the flush interval elapses. On cancellation the remaining
// buffered events are flushed once more.
//
// Postcondition: Returns nil when ctx is cancelled.
func (j *Journal) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	pending := make([]npc.Event, 0, j.batch)
	for {
		select {
		case <-ctx.Done():
			pending = j.drain(pending)
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownFlushTimeout)
			j.flush(flushCtx, pending)
			cancel()
			return nil
		case ev := <-j.events:
			pending = append(pending, ev)
			if len(pending) >= j.batch {
				j.flush(ctx, pending)
				pending = pending[:0]
			}
		case <-ticker.C:
			if len(pending) > 0 {
				j.flush(ctx, pending)
				pending = pending[:0]
			}
		}
	}
}

func (j *Journal) drain(pending []npc.Event) []npc.Event {
	for {
		select {
		case ev := <-j.events:
			pending = append(pending, ev)
		default:
			return pending
		}
	}
}

// flush writes events in one COPY. A failed batch is logged and discarded.
func (j *Journal) flush(ctx context.Context, events []npc.Event) {
	if len(events) == 0 {
		return
	}
	rows := make([][]any, len(events))
	for i, ev := range events {
		rows[i] = EventRow(ev)
	}
	n, err := j.db.CopyFrom(ctx, pgx.Identifier{EventsTable}, EventColumns, pgx.CopyFromRows(rows))
	if err != nil {
		j.logger.Error("writing npc events",
			zap.Int("events", len(events)),
			zap.Error(fmt.Errorf("copy into %s: %w", EventsTable, err)),
		)
		return
	}
	j.written.Add(uint64(n))
}

// EventRow converts ev to an npc_events row ordered as EventColumns.
func EventRow(ev npc.Event) []any {
	var loot any
	if ev.Loot != nil {
		loot = JournalLoot{
			Owner:    ev.Loot.Owner,
			Eligible: ev.Loot.Eligible,
			Currency: ev.Loot.Result.Currency,
			Items:    ev.Loot.Result.Items,
		}
	}
	return []any{
		time.UnixMilli(ev.At).UTC(),
		ev.Kind.String(),
		ev.NpcID,
		ev.Template,
		ev.Position.MapID,
		ev.Position.X,
		ev.Position.Y,
		nullUUID(ev.TargetID),
		nullString(ev.SpellID),
		nullString(ev.Animation),
		ev.AttackTimeMs,
		loot,
	}
}

func nullUUID(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// StoredEvent is an npc_events row read back from the journal.
type StoredEvent struct {
	ID         int64
	OccurredAt time.Time
	Kind       string
	NpcID      uuid.UUID
	Template   string
	MapID      string
	X, Y       int
	TargetID   *uuid.UUID
	SpellID    *string
}

// Querier runs a query. *pgxpool.Pool satisfies it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// EventsForNpc returns the journaled events of npcID in insertion order.
//
// Postcondition: Returns a non-nil slice (may be empty) or an error.
func EventsForNpc(ctx context.Context, db Querier, npcID uuid.UUID) ([]StoredEvent, error) {
	rows, err := db.Query(ctx,
		`SELECT id, occurred_at, kind, npc_id, template, map_id, x, y, target_id, spell_id
		 FROM npc_events
		 WHERE npc_id = $1
		 ORDER BY id`,
		npcID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying npc events: %w", err)
	}
	defer rows.Close()

	events := []StoredEvent{}
	for rows.Next() {
		var e StoredEvent
		if err := rows.Scan(&e.ID, &e.OccurredAt, &e.Kind, &e.NpcID, &e.Template,
			&e.MapID, &e.X, &e.Y, &e.TargetID, &e.SpellID); err != nil {
			return nil, fmt.Errorf("scanning npc event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating npc events: %w", err)
	}
	return events, nil
}
