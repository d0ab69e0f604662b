/*
scheduler.go - Automated overdue scheduler

PURPOSE:
  Periodically looks for receivables past their expected return date that
  still carry a balance and publishes an overdue event for each, so the
  notification hooks (log line, email to the owner) fire without anyone
  opening the dashboard.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Checks once immediately on start
  - Publishes through the same Dispatcher as the ledgers, so hook failures
    are logged and swallowed there

USAGE:
  scheduler := NewOverdueScheduler(receivablesLedger, dispatcher, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: ScanOverdue endpoint (manual scan)
  - generic/aggregate.go: Overdue query
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/shop-ledger/generic"
)

// OverdueScheduler publishes overdue events on a ticker.
type OverdueScheduler struct {
	Ledger        *generic.Ledger
	Hooks         *generic.Dispatcher
	CheckInterval time.Duration
	Enabled       bool
	Log           logrus.FieldLogger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewOverdueScheduler(ledger *generic.Ledger, hooks *generic.Dispatcher, log logrus.FieldLogger) *OverdueScheduler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &OverdueScheduler{
		Ledger:        ledger,
		Hooks:         hooks,
		CheckInterval: 24 * time.Hour,
		Enabled:       true,
		Log:           log.WithField("module", "scheduler"),
	}
}

// Start begins the scheduler.
func (s *OverdueScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled || s.CheckInterval <= 0 {
		s.Log.Info("overdue scheduler disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run()

	s.Log.WithField("interval", s.CheckInterval.String()).Info("overdue scheduler started")
}

// Stop stops the scheduler and waits for an in-flight check.
func (s *OverdueScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.ticker = nil
		s.Log.Info("overdue scheduler stopped")
	}
}

func (s *OverdueScheduler) run() {
	defer s.wg.Done()

	s.check()

	for {
		select {
		case <-s.ticker.C:
			s.check()
		case <-s.stop:
			return
		}
	}
}

func (s *OverdueScheduler) check() {
	asOf, n, err := s.CheckNow(context.Background())
	fields := logrus.Fields{"funcName": "check", "as_of": asOf.String()}
	if err != nil {
		s.Log.WithFields(fields).Error(err.Error())
		return
	}
	s.Log.WithFields(fields).WithField("published", n).Info("overdue check complete")
}

// CheckNow publishes one overdue event per overdue entry as of today and
// returns the date used and the number of events.
func (s *OverdueScheduler) CheckNow(ctx context.Context) (generic.Date, int, error) {
	now := s.Ledger.Clock.Now()
	asOf := generic.DateOf(now)

	entries, err := s.Ledger.Overdue(ctx, asOf)
	if err != nil {
		return asOf, 0, err
	}
	for _, e := range entries {
		s.Hooks.Publish(ctx, generic.Event{
			Type:   generic.EventOverdue,
			Entry:  e,
			Actor:  generic.SystemActor,
			At:     now,
			Amount: e.Balance,
			Large:  s.Ledger.Rules.IsLarge(e.Principal),
		})
	}
	return asOf, len(entries), nil
}
