/*
scheduler.go - Automated allowance refresh scheduler

PURPOSE:
  Periodically sweeps all accounts and persists the monthly allowance
  reset for any account whose last reset month is stale.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - The reset itself is idempotent: the engine writes only when the
    stored month token is behind the current month
  - The lazy reset inside each operation remains the correctness
    mechanism; the sweep just keeps dormant accounts fresh so reads
    and reports show current allowances

CONFIGURATION:
  - CheckInterval: How often to sweep (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewAllowanceScheduler(engine)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - points/allowance.go: CheckAndResetAllowance, RefreshAllAllowances
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/warp/points-engine/points"
)

// AllowanceScheduler handles automated monthly allowance refreshes.
type AllowanceScheduler struct {
	Engine        *points.Engine
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewAllowanceScheduler creates a new scheduler.
func NewAllowanceScheduler(engine *points.Engine) *AllowanceScheduler {
	return &AllowanceScheduler{
		Engine:        engine,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (as *AllowanceScheduler) Start() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if !as.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	as.ticker = time.NewTicker(as.CheckInterval)
	as.wg.Add(1)

	go as.run()

	log.Printf("[Scheduler] Started with check interval: %v", as.CheckInterval)
}

// Stop stops the scheduler.
func (as *AllowanceScheduler) Stop() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.ticker != nil {
		as.ticker.Stop()
		close(as.stop)
		as.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (as *AllowanceScheduler) run() {
	defer as.wg.Done()

	// Run immediately on start
	as.sweep()

	for {
		select {
		case <-as.ticker.C:
			as.sweep()
		case <-as.stop:
			return
		}
	}
}

func (as *AllowanceScheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	log.Printf("[Scheduler] Checking allowances at %v", time.Now())

	refreshed, err := as.Engine.RefreshAllAllowances(ctx)
	if err != nil {
		log.Printf("[Scheduler] Sweep finished with errors (refreshed %d): %v", refreshed, err)
		return
	}

	if refreshed > 0 {
		log.Printf("[Scheduler] Completed: %d accounts refreshed", refreshed)
	}
}

// RunNow triggers an immediate sweep (for testing/admin).
func (as *AllowanceScheduler) RunNow() {
	as.sweep()
}

// GetNextRunTime returns when the next scheduled sweep will occur.
func (as *AllowanceScheduler) GetNextRunTime() time.Time {
	return time.Now().Add(as.CheckInterval)
}
