package sim

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/blochsim/internal/bloch"
	"github.com/san-kum/blochsim/internal/metrics"
)

// Runner drives a bloch.Sim frame by frame. It owns the Sim for the
// duration of a run.
type Runner struct {
	sim       *bloch.Sim
	metrics   []metrics.Metric
	observers []Observer
	log       logrus.FieldLogger
}

func New(s *bloch.Sim, log logrus.FieldLogger) *Runner {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Runner{
		sim:       s,
		metrics:   make([]metrics.Metric, 0),
		observers: make([]Observer, 0),
		log:       log,
	}
}

func (r *Runner) Sim() *bloch.Sim { return r.sim }

func (r *Runner) AddMetric(m metrics.Metric) { r.metrics = append(r.metrics, m) }
func (r *Runner) AddObserver(o Observer)     { r.observers = append(r.observers, o) }

func (r *Runner) Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	steps := int(math.Ceil(cfg.Duration / cfg.Dt))
	every := max(cfg.Every, 1)
	result := &Result{
		Trace:   make([]Sample, 0, steps/every+2),
		Metrics: make(map[string]float64),
	}

	for _, m := range r.metrics {
		m.Reset()
	}

	rng := jitterSource(cfg.Seed)
	start := r.sim.T
	readout := r.sim.Readout(r3.Vec{})
	r.observe(readout)
	result.Trace = append(result.Trace, SampleOf(readout))

	for elapsed := 0.0; elapsed+cfg.Dt/2 < cfg.Duration; {
		select {
		case <-ctx.Done():
			result.Final = readout
			return result, ctx.Err()
		default:
		}

		dt := cfg.Dt
		if cfg.Jitter > 0 {
			dt *= 1 + cfg.Jitter*(2*rng.Float64()-1)
		}
		readout = r.sim.Advance(dt)
		elapsed = r.sim.T - start
		result.StepsTaken++

		r.observe(readout)
		if result.StepsTaken%every == 0 {
			result.Trace = append(result.Trace, SampleOf(readout))
		}
	}

	result.Final = readout
	for _, m := range r.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	r.log.WithFields(logrus.Fields{
		"steps": result.StepsTaken,
		"t":     r.sim.T,
	}).Debug("run complete")
	return result, nil
}

// RunWithCallback advances until the duration elapses, ctx is cancelled or
// callback returns false.
func (r *Runner) RunWithCallback(ctx context.Context, cfg Config, callback func(bloch.Readout) bool) error {
	if err := validateConfig(cfg); err != nil {
		return err
	}
	rng := jitterSource(cfg.Seed)
	start := r.sim.T

	for r.sim.T-start+cfg.Dt/2 < cfg.Duration {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		dt := cfg.Dt
		if cfg.Jitter > 0 {
			dt *= 1 + cfg.Jitter*(2*rng.Float64()-1)
		}
		readout := r.sim.Advance(dt)
		r.observe(readout)
		if !callback(readout) {
			return nil
		}
	}
	return nil
}

func (r *Runner) observe(readout bloch.Readout) {
	for _, m := range r.metrics {
		m.Observe(readout)
	}
	for _, obs := range r.observers {
		obs.OnStep(readout)
	}
}

func validateConfig(cfg Config) error {
	if !(cfg.Dt > 0) || math.IsInf(cfg.Dt, 0) {
		return fmt.Errorf("dt must be positive, got %f", cfg.Dt)
	}
	if !(cfg.Duration > 0) || math.IsInf(cfg.Duration, 0) {
		return fmt.Errorf("duration must be positive, got %f", cfg.Duration)
	}
	if cfg.Jitter < 0 || cfg.Jitter >= 1 {
		return fmt.Errorf("jitter must be in [0, 1), got %f", cfg.Jitter)
	}
	if cfg.Every < 0 {
		return fmt.Errorf("every must not be negative, got %d", cfg.Every)
	}
	return nil
}

func jitterSource(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}
