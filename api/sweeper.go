/*
sweeper.go - Background maintenance sweeper

PURPOSE:
  Periodically runs the time-driven parts of the engine that no HTTP
  request triggers:
  - Expire stale withdrawal requests (with refund)
  - Expire unredeemed vouchers past their window (no refund)
  - Keep grant payment schedules current
  - Pay grants that have come due

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each pass is independent; a failing step logs and the pass continues
  - RunNow allows tests and admin endpoints to trigger a pass directly

CONFIGURATION:
  - CheckInterval: How often to sweep (default: 15 minutes)
  - Enabled: Whether the sweeper is active (default: true)

USAGE:
  sweeper := NewSweeper(handler)
  sweeper.Start()
  // ... later
  sweeper.Stop()

SEE ALSO:
  - handlers.go: RunSweep endpoint (manual pass)
  - payments: ExpireStale implementations
  - grants/disburse.go: UpdateSchedules, PayDue
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"
)

// Sweeper runs periodic maintenance passes over the engine.
type Sweeper struct {
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSweeper creates a sweeper over the handler's services.
func NewSweeper(handler *Handler) *Sweeper {
	return &Sweeper{
		Handler:       handler,
		CheckInterval: 15 * time.Minute,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the sweeper.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		log.Println("[Sweeper] Disabled, not starting")
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.wg.Add(1)

	go s.run()

	log.Printf("[Sweeper] Started with check interval: %v", s.CheckInterval)
}

// Stop stops the sweeper.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		log.Println("[Sweeper] Stopped")
	}
}

func (s *Sweeper) run() {
	defer s.wg.Done()

	// Run immediately on start
	s.sweep()

	for {
		select {
		case <-s.ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

func (s *Sweeper) sweep() {
	ctx := context.Background()

	expiredWithdrawals, err := s.Handler.Withdrawals.ExpireStale(ctx)
	if err != nil {
		log.Printf("[Sweeper] Error expiring withdrawals: %v", err)
	}

	expiredVouchers, err := s.Handler.CashSend.ExpireStale(ctx)
	if err != nil {
		log.Printf("[Sweeper] Error expiring vouchers: %v", err)
	}

	updated, err := s.Handler.Disburser.UpdateSchedules(ctx)
	if err != nil {
		log.Printf("[Sweeper] Error updating schedules: %v", err)
	}

	paid, err := s.Handler.Disburser.PayDue(ctx)
	if err != nil {
		log.Printf("[Sweeper] Error paying grants: %v", err)
	}

	if expiredWithdrawals > 0 || expiredVouchers > 0 || updated > 0 || paid > 0 {
		log.Printf("[Sweeper] Completed: %d withdrawals expired, %d vouchers expired, %d schedules updated, %d grants paid",
			expiredWithdrawals, expiredVouchers, updated, paid)
	}
}

// RunNow triggers an immediate pass (for testing/admin).
func (s *Sweeper) RunNow() {
	s.sweep()
}

// GetNextRunTime returns when the next scheduled pass will occur.
func (s *Sweeper) GetNextRunTime() time.Time {
	return time.Now().Add(s.CheckInterval)
}
