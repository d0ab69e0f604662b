/*
hooks.go - Post-commit side effects

PURPOSE:
  After a write commits, the ledger publishes an Event. The Dispatcher runs
  an explicit, ordered list of hooks (logging, cache invalidation, alerts,
  email). Hooks never affect the write: errors and panics are logged and
  swallowed.

ORDERING:
  Hooks run in registration order. In async mode each event is handled on
  its own goroutine, still in hook order; Wait blocks until all in-flight
  events have been handled.

CACHE INVALIDATION:
  The ledger does not own a cache. It names the keys an entry affects
  (CacheKeys) and a hook forwards them to a CacheInvalidator.

SEE ALSO:
  - notify/: Hook implementations
  - cache/redis.go: Redis CacheInvalidator
*/
package generic

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// =============================================================================
// EVENTS
// =============================================================================

type EventType string

const (
	EventCreated          EventType = "created"
	EventCounterRecorded  EventType = "counter_recorded"
	EventPrincipalUpdated EventType = "principal_updated"
	EventSoftDeleted      EventType = "soft_deleted"
	EventRestored         EventType = "restored"
	EventHardDeleted      EventType = "hard_deleted"
	EventOverdue          EventType = "overdue"
)

type Event struct {
	Type  EventType
	Entry Entry
	Actor Actor
	At    time.Time

	// Amount is the amount involved in the change (counter payment amount,
	// new principal). Zero for lifecycle events.
	Amount Money

	// Large is set when the entry's principal reaches the ledger's alert threshold.
	Large bool
}

// =============================================================================
// HOOKS
// =============================================================================

type Hook interface {
	Handle(ctx context.Context, ev Event) error
}

// HookFunc adapts a function to Hook.
type HookFunc func(ctx context.Context, ev Event) error

func (f HookFunc) Handle(ctx context.Context, ev Event) error { return f(ctx, ev) }

// CacheInvalidator removes cached read models.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, keys ...string) error
}

// CacheKeys names every cache key an entry's change affects.
func CacheKeys(e Entry) []string {
	return []string{
		"entry:" + string(e.ID),
		TotalsCacheKey(e.Kind, e.PartyID, nil),
		TotalsCacheKey(e.Kind, e.PartyID, &Month{Year: e.TransactionDate.Time.Year(), Month: e.TransactionDate.Time.Month()}),
		"top:" + string(e.Kind),
		"overdue:" + string(e.Kind),
	}
}

// TotalsCachePrefix starts every totals cache key.
const TotalsCachePrefix = "totals:"

// TotalsCacheKey is the key for a party's totals, optionally for one month.
func TotalsCacheKey(kind Kind, party PartyID, month *Month) string {
	suffix := "all"
	if month != nil {
		suffix = month.String()
	}
	return fmt.Sprintf("%s%s:%s:%s", TotalsCachePrefix, kind, party, suffix)
}

// =============================================================================
// DISPATCHER
// =============================================================================

type Dispatcher struct {
	hooks []Hook
	log   logrus.FieldLogger
	async bool
	wg    sync.WaitGroup
}

// NewDispatcher runs hooks synchronously. Use Async for the server.
func NewDispatcher(log logrus.FieldLogger, hooks ...Hook) *Dispatcher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Dispatcher{hooks: hooks, log: log}
}

// Async makes Publish return immediately.
func (d *Dispatcher) Async() *Dispatcher {
	d.async = true
	return d
}

// Register appends hooks to the end of the chain.
func (d *Dispatcher) Register(hooks ...Hook) {
	d.hooks = append(d.hooks, hooks...)
}

// Publish delivers ev to every hook. It never returns an error.
func (d *Dispatcher) Publish(ctx context.Context, ev Event) {
	if d == nil || len(d.hooks) == 0 {
		return
	}
	if !d.async {
		d.run(ctx, ev)
		return
	}
	// Detach from the request so a finished request does not cancel hooks.
	ctx = context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.run(ctx, ev)
	}()
}

// Wait blocks until all asynchronously published events are handled.
func (d *Dispatcher) Wait() {
	if d != nil {
		d.wg.Wait()
	}
}

func (d *Dispatcher) run(ctx context.Context, ev Event) {
	for i, h := range d.hooks {
		d.safeHandle(ctx, i, h, ev)
	}
}

func (d *Dispatcher) safeHandle(ctx context.Context, i int, h Hook, ev Event) {
	fields := logrus.Fields{
		"module":   "generic",
		"funcName": "Dispatcher.Publish",
		"hook":     i,
		"event":    ev.Type,
		"entry_id": ev.Entry.ID,
	}
	defer func() {
		if r := recover(); r != nil {
			d.log.WithFields(fields).Errorf("hook panicked: %v", r)
		}
	}()
	if err := h.Handle(ctx, ev); err != nil {
		d.log.WithFields(fields).Error(err.Error())
	}
}
