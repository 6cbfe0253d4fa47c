package search

import (
	"context"
	"fmt"
	"time"

	"peakload/internal/stats"
)

// SLA is the service-level objective a concurrency level must satisfy.
type SLA struct {
	// ErrorRateThreshold is the maximum tolerated fraction of non-successful
	// requests, e.g. 0.0001 for a 99.99% success target.
	ErrorRateThreshold float64 `json:"error_rate_threshold"`

	// ResponseTimeThreshold is an advisory latency ceiling in seconds. It is
	// reported alongside results but not enforced by the search.
	ResponseTimeThreshold float64 `json:"response_time_threshold"`
}

func (s SLA) Validate() error {
	if s.ErrorRateThreshold <= 0 || s.ErrorRateThreshold >= 1 {
		return fmt.Errorf("search: error rate threshold must be in (0,1), got %g", s.ErrorRateThreshold)
	}
	if s.ResponseTimeThreshold <= 0 {
		return fmt.Errorf("search: response time threshold must be positive, got %g", s.ResponseTimeThreshold)
	}
	return nil
}

// TargetSuccessRate is the minimum overall success rate that passes.
func (s SLA) TargetSuccessRate() float64 { return 1 - s.ErrorRateThreshold }

// Met applies the SLA predicate to one run's summary.
func (s SLA) Met(rs *stats.RunStats) bool {
	return rs.OverallSuccessRate >= s.TargetSuccessRate()
}

// RunFunc executes one load-test run at the given concurrency. Runs are
// invoked strictly sequentially. Request-level failures are already absorbed
// into the RunStats; an error here means the run could not start at all.
type RunFunc func(ctx context.Context, users int, rampUp time.Duration) (*stats.RunStats, error)

// Strategy selects the search procedure.
type Strategy string

const (
	// StrategyEscalate probes a lower bound, escalates past the upper bound
	// in fixed steps while the SLA holds, and bisects when it breaks.
	StrategyEscalate Strategy = "escalate"
	// StrategySweep evaluates a fixed ascending ladder of levels, then
	// refines around the best passing one.
	StrategySweep Strategy = "sweep"
)

// Trial is one row of the audit trail: a concurrency level and how it fared.
type Trial struct {
	Concurrency       int     `json:"concurrency"`
	SuccessRate       float64 `json:"success_rate"`
	ErrorRate         float64 `json:"error_rate"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	SLAMet            bool    `json:"sla_met"`
}

// Result is the search outcome. SLACompliant distinguishes a genuine pass
// from the degraded fallback when no tested level ever met the SLA.
type Result struct {
	MaxConcurrency int             `json:"max_concurrency"`
	MaxRPS         float64         `json:"max_rps"`
	SLACompliant   bool            `json:"sla_compliant"`
	Trials         []Trial         `json:"trials"`
	Confirmation   *stats.RunStats `json:"confirmation,omitempty"`
}

// Config holds the search parameters. Zero values are filled from defaults.
type Config struct {
	SLA      SLA
	Strategy Strategy

	LowerBound    int // conservative starting level
	UpperBound    int // initial bracket top
	StepSize      int // escalation increment
	SafetyCeiling int // hard stop for escalation
	Precision     int // stop bisecting below this bracket width

	SweepLevels  []int   // ascending ladder for StrategySweep
	SweepFloor   float64 // stop the sweep once success drops below this
	RefineWindow int     // half-width of the refinement bracket

	ProbeRampUp time.Duration // ramp-up for the initial lower-bound probe
	RampUp      time.Duration // ramp-up for every other run
}

func DefaultConfig() Config {
	return Config{
		SLA: SLA{
			ErrorRateThreshold:    0.0001,
			ResponseTimeThreshold: 1.0,
		},
		Strategy:      StrategyEscalate,
		LowerBound:    10,
		UpperBound:    200,
		StepSize:      50,
		SafetyCeiling: 1000,
		Precision:     5,
		SweepLevels:   []int{10, 25, 50, 75, 100, 150, 200, 300, 400, 500},
		SweepFloor:    0.90,
		RefineWindow:  20,
		ProbeRampUp:   2 * time.Second,
		RampUp:        5 * time.Second,
	}
}

// Finder locates the maximum concurrency that still satisfies the SLA.
type Finder struct {
	cfg Config
	run RunFunc

	trials []Trial

	// OnTrial is called after every completed run, for progress reporting
	// and persistence. May be nil.
	OnTrial func(Trial, *stats.RunStats)
}

func NewFinder(cfg Config, run RunFunc) (*Finder, error) {
	if run == nil {
		return nil, fmt.Errorf("search: run function is required")
	}
	if err := cfg.SLA.Validate(); err != nil {
		return nil, err
	}
	if cfg.LowerBound <= 0 || cfg.UpperBound <= cfg.LowerBound {
		return nil, fmt.Errorf("search: need 0 < lower < upper, got %d and %d", cfg.LowerBound, cfg.UpperBound)
	}
	if cfg.StepSize <= 0 || cfg.Precision <= 0 {
		return nil, fmt.Errorf("search: step size and precision must be positive")
	}
	return &Finder{cfg: cfg, run: run}, nil
}

// Find runs the configured strategy. It always terminates with a concrete
// recommendation; the Result says whether it is SLA-compliant.
func (f *Finder) Find(ctx context.Context) (*Result, error) {
	f.trials = nil

	switch f.cfg.Strategy {
	case StrategySweep:
		return f.sweepRefine(ctx)
	case StrategyEscalate, "":
		return f.escalateBisect(ctx)
	default:
		return nil, fmt.Errorf("search: unknown strategy %q", f.cfg.Strategy)
	}
}

// measure runs one trial and records it in the audit trail.
func (f *Finder) measure(ctx context.Context, users int, rampUp time.Duration) (*stats.RunStats, Trial, error) {
	rs, err := f.run(ctx, users, rampUp)
	if err != nil {
		return nil, Trial{}, fmt.Errorf("search: run at %d users: %w", users, err)
	}

	trial := Trial{
		Concurrency:       users,
		SuccessRate:       rs.OverallSuccessRate,
		ErrorRate:         1 - rs.OverallSuccessRate,
		RequestsPerSecond: rs.RequestsPerSecond,
		SLAMet:            f.cfg.SLA.Met(rs),
	}
	f.trials = append(f.trials, trial)
	if f.OnTrial != nil {
		f.OnTrial(trial, rs)
	}
	return rs, trial, nil
}

func (f *Finder) escalateBisect(ctx context.Context) (*Result, error) {
	cfg := f.cfg
	lower, upper := cfg.LowerBound, cfg.UpperBound

	// The service must sustain at least the conservative lower bound,
	// otherwise searching higher is pointless.
	probe, probeTrial, err := f.measure(ctx, lower, cfg.ProbeRampUp)
	if err != nil {
		return nil, err
	}
	if !probeTrial.SLAMet {
		return &Result{
			MaxConcurrency: lower,
			MaxRPS:         probe.RequestsPerSecond,
			SLACompliant:   false,
			Trials:         f.trials,
			Confirmation:   probe,
		}, nil
	}

	best, bestRPS := lower, probe.RequestsPerSecond

	_, upperTrial, err := f.measure(ctx, upper, cfg.RampUp)
	if err != nil {
		return nil, err
	}

	if upperTrial.SLAMet {
		// The bracket top holds; escalate in fixed steps until it breaks
		// or the safety ceiling is reached.
		best, bestRPS = upper, upperTrial.RequestsPerSecond
		current := upper + cfg.StepSize
		for {
			_, trial, err := f.measure(ctx, current, cfg.RampUp)
			if err != nil {
				return nil, err
			}
			if !trial.SLAMet {
				break
			}
			best, bestRPS = current, trial.RequestsPerSecond
			if current >= cfg.SafetyCeiling {
				break
			}
			current += cfg.StepSize
		}
	} else {
		// Bisect between the passing lower bound and the failing upper.
		for upper-lower > cfg.Precision {
			mid := (lower + upper) / 2
			_, trial, err := f.measure(ctx, mid, cfg.RampUp)
			if err != nil {
				return nil, err
			}
			if trial.SLAMet {
				lower = mid
				best, bestRPS = mid, trial.RequestsPerSecond
			} else {
				upper = mid
			}
		}
	}

	return f.confirm(ctx, best, bestRPS)
}

func (f *Finder) sweepRefine(ctx context.Context) (*Result, error) {
	cfg := f.cfg
	if len(cfg.SweepLevels) == 0 {
		return nil, fmt.Errorf("search: sweep strategy needs at least one level")
	}

	best, bestRPS := 0, 0.0
	found := false

	for _, level := range cfg.SweepLevels {
		_, trial, err := f.measure(ctx, level, cfg.RampUp)
		if err != nil {
			return nil, err
		}
		if trial.SLAMet && trial.RequestsPerSecond > bestRPS {
			best, bestRPS = level, trial.RequestsPerSecond
			found = true
		}
		// Higher levels are assumed monotonically worse once the success
		// rate collapses below the hard floor.
		if trial.SuccessRate < cfg.SweepFloor {
			break
		}
	}

	if !found {
		return f.degraded(ctx)
	}

	lo := best - cfg.RefineWindow
	if lo < 1 {
		lo = 1
	}
	hi := best + cfg.RefineWindow
	for hi-lo > cfg.Precision {
		mid := (lo + hi) / 2
		_, trial, err := f.measure(ctx, mid, cfg.RampUp)
		if err != nil {
			return nil, err
		}
		if trial.SLAMet {
			if trial.RequestsPerSecond > bestRPS {
				best, bestRPS = mid, trial.RequestsPerSecond
			}
			lo = mid
		} else {
			hi = mid
		}
	}

	return f.confirm(ctx, best, bestRPS)
}

// confirm re-runs the chosen level once and assembles the final result.
func (f *Finder) confirm(ctx context.Context, best int, bestRPS float64) (*Result, error) {
	rs, _, err := f.measure(ctx, best, f.cfg.RampUp)
	if err != nil {
		return nil, err
	}
	return &Result{
		MaxConcurrency: best,
		MaxRPS:         bestRPS,
		SLACompliant:   true,
		Trials:         f.trials,
		Confirmation:   rs,
	}, nil
}

// degraded picks the least-bad level when nothing ever met the SLA: the
// trial with the best throughput weighted by its success rate. Callers can
// tell this apart from a genuine pass via SLACompliant.
func (f *Finder) degraded(ctx context.Context) (*Result, error) {
	best := f.trials[0]
	bestScore := best.RequestsPerSecond * best.SuccessRate
	for _, t := range f.trials[1:] {
		if score := t.RequestsPerSecond * t.SuccessRate; score > bestScore {
			best, bestScore = t, score
		}
	}

	rs, _, err := f.measure(ctx, best.Concurrency, f.cfg.RampUp)
	if err != nil {
		return nil, err
	}
	return &Result{
		MaxConcurrency: best.Concurrency,
		MaxRPS:         best.RequestsPerSecond,
		SLACompliant:   false,
		Trials:         f.trials,
		Confirmation:   rs,
	}, nil
}
