/*
Package notify implements the ledger's post-commit hooks.

HOOKS:
  LogHook:   one structured log line per event
  AlertHook: warning line for entries at or above the alert threshold
  CacheHook: forwards generic.CacheKeys to a CacheInvalidator
  EmailHook: mails the shop owner about large entries and overdue loans

All hooks are registered on a generic.Dispatcher, which swallows their
errors. A hook returning an error only produces a log line.

SEE ALSO:
  - generic/hooks.go: Dispatcher and Event
  - cache/redis.go: Redis invalidator
*/
package notify

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/warp/shop-ledger/generic"
)

// =============================================================================
// LOG HOOK
// =============================================================================

type LogHook struct {
	Log logrus.FieldLogger
}

func (h LogHook) Handle(_ context.Context, ev generic.Event) error {
	h.Log.WithFields(eventFields(ev)).Info("ledger " + string(ev.Type))
	return nil
}

// =============================================================================
// ALERT HOOK
// =============================================================================

// AlertHook logs a warning for creates and principal updates on large entries.
type AlertHook struct {
	Log logrus.FieldLogger
}

func (h AlertHook) Handle(_ context.Context, ev generic.Event) error {
	if !ev.Large {
		return nil
	}
	if ev.Type != generic.EventCreated && ev.Type != generic.EventPrincipalUpdated {
		return nil
	}
	h.Log.WithFields(eventFields(ev)).Warnf("large %s of %s for %s",
		ev.Entry.Kind, ev.Entry.Principal, ev.Entry.Snapshot.Name)
	return nil
}

// =============================================================================
// CACHE HOOK
// =============================================================================

type CacheHook struct {
	Cache generic.CacheInvalidator
}

func (h CacheHook) Handle(ctx context.Context, ev generic.Event) error {
	if ev.Type == generic.EventOverdue {
		return nil
	}
	if err := h.Cache.Invalidate(ctx, generic.CacheKeys(ev.Entry)...); err != nil {
		return fmt.Errorf("invalidate cache for entry %s: %w", ev.Entry.ID, err)
	}
	return nil
}

func eventFields(ev generic.Event) logrus.Fields {
	f := logrus.Fields{
		"module":    "notify",
		"event":     ev.Type,
		"kind":      ev.Entry.Kind,
		"entry_id":  ev.Entry.ID,
		"party_id":  ev.Entry.PartyID,
		"principal": ev.Entry.Principal.String(),
		"balance":   ev.Entry.Balance.String(),
		"active":    ev.Entry.IsActive,
	}
	if ev.Actor.ID != "" {
		f["actor"] = ev.Actor.ID
	}
	if !ev.Amount.IsZero() {
		f["amount"] = ev.Amount.String()
	}
	return f
}
