package driver

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"peakload/internal/stats"
)

// Snapshot is pushed over the updates channel while a run is in flight.
type Snapshot struct {
	Requests uint64
	Success  uint64
	Fail     uint64
	Active   int64

	// Pre-calculated percentiles for the progress display (cheap copy)
	P50Ms float64
	P95Ms float64
	P99Ms float64
	MaxMs float64
}

// SnapshotChan is the channel type
type SnapshotChan chan Snapshot

// SessionFunc runs one simulated user session and returns its records.
type SessionFunc func(ctx context.Context, userID int) []stats.Record

// Driver fans out N sessions with a staggered start and joins them all,
// regardless of individual failures.
type Driver struct {
	RunSession SessionFunc
	Updates    SnapshotChan

	active int64
	live   *stats.Live
}

func New(run SessionFunc, updates SnapshotChan) *Driver {
	if updates == nil {
		// Avoid nil panics if not provided
		updates = make(SnapshotChan, 10)
	}
	return &Driver{
		RunSession: run,
		Updates:    updates,
	}
}

// rampDelay staggers session i of n linearly across the ramp-up window.
func rampDelay(i, n int, rampUp time.Duration) time.Duration {
	if n <= 1 || rampUp <= 0 {
		return 0
	}
	return time.Duration(float64(i) / float64(n-1) * float64(rampUp))
}

// Run executes numSessions sessions and aggregates their records. A session
// that fails every call still contributes its records; the run only errors
// on invalid configuration, before any network activity.
func (d *Driver) Run(ctx context.Context, numSessions int, rampUp time.Duration) (*stats.RunStats, error) {
	if numSessions <= 0 {
		return nil, fmt.Errorf("driver: numSessions must be positive, got %d", numSessions)
	}
	if rampUp < 0 {
		return nil, fmt.Errorf("driver: rampUp must not be negative, got %s", rampUp)
	}

	d.live = stats.NewLive()

	tickCtx, stopTick := context.WithCancel(ctx)
	defer stopTick()
	d.startTickLoop(tickCtx, 200*time.Millisecond)

	var (
		mu      sync.Mutex
		records []stats.Record
		wg      sync.WaitGroup
	)

	start := time.Now()
	for i := 0; i < numSessions; i++ {
		wg.Add(1)
		go func(userID int) {
			defer wg.Done()

			if delay := rampDelay(userID, numSessions, rampUp); delay > 0 {
				timer := time.NewTimer(delay)
				select {
				case <-timer.C:
				case <-ctx.Done():
					// Still run the session; its calls fail fast and the
					// 2-records-per-session invariant holds.
					timer.Stop()
				}
			}

			atomic.AddInt64(&d.active, 1)
			result := d.RunSession(ctx, userID)
			atomic.AddInt64(&d.active, -1)

			for _, r := range result {
				d.live.Add(r)
			}

			mu.Lock()
			records = append(records, result...)
			mu.Unlock()
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(start)

	return stats.Aggregate(records, elapsed.Seconds(), numSessions), nil
}

// Live exposes the in-flight counters for the current run.
func (d *Driver) Live() *stats.Live { return d.live }

func (d *Driver) startTickLoop(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.sendUpdate()
			}
		}
	}()
}

func (d *Driver) sendUpdate() {
	s := Snapshot{
		Requests: atomic.LoadUint64(&d.live.Requests),
		Success:  atomic.LoadUint64(&d.live.Success),
		Fail:     atomic.LoadUint64(&d.live.Fail),
		Active:   atomic.LoadInt64(&d.active),
		P50Ms:    d.live.Latency.QuantileMs(50),
		P95Ms:    d.live.Latency.QuantileMs(95),
		P99Ms:    d.live.Latency.QuantileMs(99),
		MaxMs:    d.live.Latency.MaxMs(),
	}

	// Non-blocking send, drop if the consumer lags
	select {
	case d.Updates <- s:
	default:
	}
}
