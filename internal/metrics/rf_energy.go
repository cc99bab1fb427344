package metrics

import "github.com/san-kum/blochsim/internal/bloch"

// RFEnergy integrates |B1|² over the run.
type RFEnergy struct {
	name   string
	sum    float64
	lastT  float64
	primed bool
}

func NewRFEnergy() *RFEnergy {
	return &RFEnergy{name: "rf_energy"}
}

func (e *RFEnergy) Name() string { return e.name }

func (e *RFEnergy) Observe(r bloch.Readout) {
	if e.primed && r.T > e.lastT {
		e.sum += r.RFMag * r.RFMag * (r.T - e.lastT)
	}
	e.lastT = r.T
	e.primed = true
}

func (e *RFEnergy) Value() float64 { return e.sum }

func (e *RFEnergy) Reset() {
	e.sum = 0
	e.lastT = 0
	e.primed = false
}
