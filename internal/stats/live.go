package stats

import (
	"sync/atomic"
	"time"
)

// Live holds real-time counters updated while a run is in flight. The CLI
// progress line reads these; the authoritative numbers come from Aggregate
// once the run completes.
type Live struct {
	Requests uint64
	Success  uint64
	Fail     uint64

	Latency *LatencyHistogram
}

func NewLive() *Live {
	return &Live{Latency: NewLatencyHistogram()}
}

func (l *Live) Add(r Record) {
	atomic.AddUint64(&l.Requests, 1)
	if r.Success() {
		atomic.AddUint64(&l.Success, 1)
	} else {
		atomic.AddUint64(&l.Fail, 1)
	}
	l.Latency.Record(time.Duration(r.ResponseTime * float64(time.Second)))
}

func (l *Live) ErrorRate() float64 {
	reqs := atomic.LoadUint64(&l.Requests)
	if reqs == 0 {
		return 0
	}
	fails := atomic.LoadUint64(&l.Fail)
	return float64(fails) / float64(reqs)
}
