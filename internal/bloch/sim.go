package bloch

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
)

// SampleMode selects how relaxation is applied.
type SampleMode int

const (
	// Deterministic applies analytic exponential decay to every isochromat.
	Deterministic SampleMode = iota
	// ThermalEnsemble resamples random isochromats instead of decaying them.
	ThermalEnsemble
)

func (m SampleMode) String() string {
	if m == ThermalEnsemble {
		return "thermal"
	}
	return "deterministic"
}

// Frame is the reference frame the sample is observed in.
type Frame int

const (
	FrameStatic Frame = iota
	FrameB0
	FrameB1
)

func (f Frame) String() string {
	switch f {
	case FrameB0:
		return "b0"
	case FrameB1:
		return "b1"
	default:
		return "static"
	}
}

// Signal tells subscribers which group of displayed values changed.
type Signal int

const (
	SignalFields Signal = iota
	SignalGradients
)

func (s Signal) String() string {
	if s == SignalGradients {
		return "gradients"
	}
	return "fields"
}

const dtHistory = 10

// Tuning holds the fixed constants of the model.
type Tuning struct {
	GradScale          float64 `yaml:"grad_scale"`
	B0Max              float64 `yaml:"b0_max"`
	SincZeroCrossings  int     `yaml:"sinc_zero_crossings"`
	SincAreaCorrection float64 `yaml:"sinc_area_correction"`
	SincGuard          float64 `yaml:"sinc_guard"`
	SpoilRate          float64 `yaml:"spoil_rate"`
	SpoilDuration      float64 `yaml:"spoil_duration"`
	ThermalDivisor     float64 `yaml:"thermal_divisor"`
	ThermalEpsilon     float64 `yaml:"thermal_epsilon"`
	GradDuration       float64 `yaml:"grad_duration"`
	MinField           float64 `yaml:"min_field"`
	RefocusMinGradient float64 `yaml:"refocus_min_gradient"`
	RefocusMinWeight   float64 `yaml:"refocus_min_weight"`
	DefaultAmplitude   float64 `yaml:"default_amplitude"`
	RepeatSpoilMargin  float64 `yaml:"repeat_spoil_margin"`
	PlanarSpoilMargin  float64 `yaml:"planar_spoil_margin"`
}

// DefaultTuning returns the constants the sample scenes are designed for.
func DefaultTuning() Tuning {
	return Tuning{
		GradScale:          11,
		B0Max:              6,
		SincZeroCrossings:  4,
		SincAreaCorrection: 0.22571, // Si(2π)/2π
		SincGuard:          0.01,
		SpoilRate:          4.7,
		SpoilDuration:      1.0,
		ThermalDivisor:     10,
		ThermalEpsilon:     0.1,
		GradDuration:       1.0,
		MinField:           1e-12,
		RefocusMinGradient: 0.001,
		RefocusMinWeight:   0.01,
		DefaultAmplitude:   4,
		RepeatSpoilMargin:  0.2,
		PlanarSpoilMargin:  0.3,
	}
}

// Options configures a new Sim.
type Options struct {
	Tuning *Tuning
	Seed   int64
	Logger logrus.FieldLogger
}

// Sim is the simulation context: field state, pulse bookkeeping, session
// state and the isochromat sample.
type Sim struct {
	B0, B1, B1Freq, Gamma float64
	Gx, Gy                float64
	T1, T2                float64
	Phi1                  float64
	GradDirection         float64

	T, TSinceRF, TLeftRF     float64
	AreaLeftRF, AreaLeftGrad float64

	Mode        SampleMode
	Frame       Frame
	FrameLocked bool
	// Planar marks wide planar samples, which spoil earlier in a repetition.
	Planar bool

	FramePhase, FramePhase0 float64

	tuning    Tuning
	env       Envelope
	isocs     []Isochromat
	dts       [dtHistory]float64
	dtIdx     int
	spoilRate float64
	events    EventQueue
	rng       *rand.Rand
	subs      []func(Signal)
	log       logrus.FieldLogger
}

// New returns a Sim at rest: unit gyromagnetic ratio, no fields and
// infinite relaxation times.
func New(opts Options) *Sim {
	t := DefaultTuning()
	if opts.Tuning != nil {
		t = *opts.Tuning
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Sim{
		Gamma:  1,
		T1:     math.Inf(1),
		T2:     math.Inf(1),
		tuning: t,
		rng:    rand.New(rand.NewSource(seed)),
		log:    log,
	}
	s.env = s.envelope(Rect, 0)
	return s
}

// Tuning returns the constants in use.
func (s *Sim) Tuning() Tuning { return s.tuning }

// Rand exposes the seeded random source shared with the thermal model.
func (s *Sim) Rand() *rand.Rand { return s.rng }

// Envelope returns the active RF envelope.
func (s *Sim) Envelope() Envelope { return s.env }

// Load replaces the sample and discards all in-flight pulse, gradient and
// scheduled work.
func (s *Sim) Load(isocs []Isochromat) error {
	if len(isocs) == 0 {
		return ErrEmptySample
	}
	s.isocs = make([]Isochromat, len(isocs))
	copy(s.isocs, isocs)
	for i := range s.isocs {
		s.isocs[i].normalize()
	}
	s.B1 = 0
	s.TLeftRF, s.AreaLeftRF = 0, 0
	if s.AreaLeftGrad != 0 {
		// The pulse owns Gx and Gy while it runs; static gradients stay.
		s.Gx, s.Gy = 0, 0
		s.AreaLeftGrad = 0
	}
	s.spoilRate = 0
	s.events.Clear()
	s.env = s.envelope(Rect, 0)
	s.log.WithFields(logrus.Fields{"isochromats": len(isocs)}).Debug("sample loaded")
	return nil
}

// Isochromats returns the sample. Callers must not retain it across steps.
func (s *Sim) Isochromats() []Isochromat { return s.isocs }

// Subscribe registers fn to be called when pulse or gradient values change.
func (s *Sim) Subscribe(fn func(Signal)) {
	s.subs = append(s.subs, fn)
}

func (s *Sim) notify(sig Signal) {
	for _, fn := range s.subs {
		fn(sig)
	}
}

// Schedule runs fn once at simulation time now+delay.
func (s *Sim) Schedule(delay float64, tag string, fn func(*Sim)) {
	s.events.Push(Event{At: s.T + delay, Tag: tag, Fire: fn})
}

// Every runs fn at now+delay and then every period seconds.
func (s *Sim) Every(delay, period float64, tag string, fn func(*Sim)) {
	s.events.Push(Event{At: s.T + delay, Period: period, Tag: tag, Fire: fn})
}

// Cancel drops pending events with tag.
func (s *Sim) Cancel(tag string) int { return s.events.Cancel(tag) }

// Pending reports whether events with tag are queued.
func (s *Sim) Pending(tag string) bool { return s.events.Pending(tag) }

func (s *Sim) drainEvents() {
	for {
		e, ok := s.events.PopDue(s.T)
		if !ok {
			return
		}
		if e.Period > 0 {
			next := e
			next.At = nextSlot(e.At, e.Period, s.T)
			s.events.Push(next)
		}
		e.Fire(s)
	}
}

// nextSlot is the first time on the grid at+k*period strictly after now.
// Slots missed during a long step are skipped, not replayed.
func nextSlot(at, period, now float64) float64 {
	next := at + period
	if next <= now {
		next = at + period*(math.Floor((now-at)/period)+1)
	}
	if next <= now {
		next = math.Nextafter(now, math.Inf(1))
	}
	return next
}

// recordDt stores dt for the phase pre-correction and advances the display
// frame phase.
func (s *Sim) recordDt(dt float64) {
	s.dts[s.dtIdx] = dt
	s.dtIdx = (s.dtIdx + 1) % dtHistory
	if !s.FrameLocked {
		switch s.Frame {
		case FrameB0:
			s.FramePhase += s.B0 * s.Gamma * dt
		case FrameB1:
			s.FramePhase += s.B1Freq * dt
		}
	}
}

// MeanDt is the average of the recent step sizes.
func (s *Sim) MeanDt() float64 {
	return floats.Sum(s.dts[:]) / dtHistory
}

// Advance is one frame: it records dt, steps the sample, fires events that
// became due and returns the readout.
func (s *Sim) Advance(dt float64) Readout {
	if !(dt > 0) || math.IsInf(dt, 0) {
		return s.Readout(r3.Vec{})
	}
	s.recordDt(dt)
	rf := s.Step(dt)
	s.drainEvents()
	return s.Readout(rf)
}

// Checkpoint is an in-memory copy of the field state and magnetizations.
type Checkpoint struct {
	B0, B1, B1Freq, Gamma, Gx, Gy, T1, T2, Phi1, GradDirection float64
	T, TSinceRF, TLeftRF, AreaLeftRF, AreaLeftGrad             float64
	Env                                                        Envelope
	M                                                          []r3.Vec
}

// Save captures the current state.
func (s *Sim) Save() Checkpoint {
	cp := Checkpoint{
		B0: s.B0, B1: s.B1, B1Freq: s.B1Freq, Gamma: s.Gamma,
		Gx: s.Gx, Gy: s.Gy, T1: s.T1, T2: s.T2,
		Phi1: s.Phi1, GradDirection: s.GradDirection,
		T: s.T, TSinceRF: s.TSinceRF, TLeftRF: s.TLeftRF,
		AreaLeftRF: s.AreaLeftRF, AreaLeftGrad: s.AreaLeftGrad,
		Env: s.env,
		M:   make([]r3.Vec, len(s.isocs)),
	}
	for i, iso := range s.isocs {
		cp.M[i] = iso.M
	}
	return cp
}

// Restore patches a checkpoint back onto the sample it was taken from.
func (s *Sim) Restore(cp Checkpoint) error {
	if len(cp.M) != len(s.isocs) {
		return fmt.Errorf("%w: %d isochromats, checkpoint has %d", ErrCheckpointMismatch, len(s.isocs), len(cp.M))
	}
	s.B0, s.B1, s.B1Freq, s.Gamma = cp.B0, cp.B1, cp.B1Freq, cp.Gamma
	s.Gx, s.Gy, s.T1, s.T2 = cp.Gx, cp.Gy, cp.T1, cp.T2
	s.Phi1, s.GradDirection = cp.Phi1, cp.GradDirection
	s.T, s.TSinceRF, s.TLeftRF = cp.T, cp.TSinceRF, cp.TLeftRF
	s.AreaLeftRF, s.AreaLeftGrad = cp.AreaLeftRF, cp.AreaLeftGrad
	s.env = cp.Env
	for i, m := range cp.M {
		s.isocs[i].M = m
	}
	return nil
}
