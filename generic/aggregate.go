package generic

import (
	"context"
	"sort"
)

// =============================================================================
// AGGREGATION QUERIES - Read side over active entries
// =============================================================================

// Totals summarises a set of entries.
type Totals struct {
	Count            int   `json:"count"`
	Principal        Money `json:"principal"`
	Counter          Money `json:"counter"`
	Balance          Money `json:"balance"`
	AveragePrincipal Money `json:"average_principal"`
}

func (t *Totals) add(e Entry) {
	t.Count++
	t.Principal = t.Principal.Add(e.Principal)
	t.Counter = t.Counter.Add(e.Counter)
	t.Balance = t.Balance.Add(e.Balance)
}

func summarize(entries []Entry) Totals {
	var t Totals
	for _, e := range entries {
		t.add(e)
	}
	t.AveragePrincipal = t.Principal.DivInt(t.Count)
	return t
}

// Recipient is a party ranked by the principal it received.
type Recipient struct {
	PartyID PartyID `json:"party_id"`
	Name    string  `json:"name"`
	Total   Money   `json:"total"`
	Count   int     `json:"count"`
}

// List returns this ledger's entries matching f.
func (l *Ledger) List(ctx context.Context, f Filter) ([]Entry, error) {
	f.Kind = l.Rules.Kind
	entries, err := l.Store.List(ctx, f)
	if err != nil {
		return nil, Persist("list entries", err)
	}
	return entries, nil
}

// Summary returns sum/avg/count over the entries matching f.
func (l *Ledger) Summary(ctx context.Context, f Filter) (Totals, error) {
	entries, err := l.List(ctx, f)
	if err != nil {
		return Totals{}, err
	}
	return summarize(entries), nil
}

// TotalsByParty sums the party's active entries, optionally for one month.
func (l *Ledger) TotalsByParty(ctx context.Context, partyID PartyID, month *Month) (Totals, error) {
	f := Filter{PartyID: partyID}
	if month != nil {
		f = f.ForMonth(*month)
	}
	return l.Summary(ctx, f)
}

// Overdue returns active entries whose expected return date is before asOf
// and that still carry a balance, oldest expectation first. Only receivables
// have expected return dates, so other ledgers always return nothing.
func (l *Ledger) Overdue(ctx context.Context, asOf Date) ([]Entry, error) {
	entries, err := l.List(ctx, Filter{OverdueAsOf: &asOf})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].ExpectedReturnDate, entries[j].ExpectedReturnDate
		if !a.Equal(*b) {
			return a.Before(*b)
		}
		return entries[i].ID < entries[j].ID
	})
	return entries, nil
}

// TopRecipients ranks parties by total principal descending, then by entry
// count descending, then by party ID ascending. limit <= 0 returns all.
func (l *Ledger) TopRecipients(ctx context.Context, limit int) ([]Recipient, error) {
	entries, err := l.List(ctx, Filter{})
	if err != nil {
		return nil, err
	}

	byParty := make(map[PartyID]*Recipient)
	latest := make(map[PartyID]Entry)
	for _, e := range entries {
		r, ok := byParty[e.PartyID]
		if !ok {
			r = &Recipient{PartyID: e.PartyID}
			byParty[e.PartyID] = r
		}
		r.Total = r.Total.Add(e.Principal)
		r.Count++
		if prev, ok := latest[e.PartyID]; !ok || e.CreatedAt.After(prev.CreatedAt) {
			latest[e.PartyID] = e
			r.Name = e.Snapshot.Name
		}
	}

	result := make([]Recipient, 0, len(byParty))
	for _, r := range byParty {
		result = append(result, *r)
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if c := a.Total.Cmp(b.Total); c != 0 {
			return c > 0
		}
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.PartyID < b.PartyID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
