package sim

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/blochsim/internal/bloch"
)

// Sample is one row of a run trace. M is the sample magnetization
// normalized by the number of isochromats.
type Sample struct {
	T     float64
	RF    r3.Vec
	RFMag float64
	M     r3.Vec
}

func SampleOf(r bloch.Readout) Sample {
	m := r.Msum
	if n := len(r.Isochromats); n > 0 {
		m = r3.Scale(1/float64(n), m)
	}
	return Sample{T: r.T, RF: r.RF, RFMag: r.RFMag, M: m}
}

type Observer interface {
	OnStep(r bloch.Readout)
}

type ObserverFunc func(r bloch.Readout)

func (f ObserverFunc) OnStep(r bloch.Readout) { f(r) }

type Config struct {
	Dt       float64
	Duration float64
	// Jitter spreads each frame's dt uniformly over Dt*(1±Jitter), like the
	// irregular frame times of an interactive display.
	Jitter float64
	// Every keeps one trace sample per Every steps; 0 or 1 keeps all.
	Every int
	Seed  int64
}

type Result struct {
	Trace      []Sample
	Metrics    map[string]float64
	StepsTaken int
	Final      bloch.Readout
}
