package metrics

import "github.com/san-kum/blochsim/internal/bloch"

// Metric reduces the readouts of a run to one number.
type Metric interface {
	Name() string
	Observe(r bloch.Readout)
	Value() float64
	Reset()
}

func Defaults() []Metric {
	return []Metric{
		NewSignal(),
		NewNormDrift(),
		NewRFEnergy(),
		NewLongitudinal(),
	}
}
