package metrics

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/blochsim/internal/bloch"
)

// NormDrift is the largest change of any isochromat's |M| from the first
// readout. Without relaxation or spoiling it stays at rounding level.
type NormDrift struct {
	name     string
	initial  []float64
	maxDrift float64
}

func NewNormDrift() *NormDrift {
	return &NormDrift{name: "norm_drift"}
}

func (d *NormDrift) Name() string { return d.name }

func (d *NormDrift) Observe(r bloch.Readout) {
	if d.initial == nil || len(d.initial) != len(r.Isochromats) {
		d.initial = make([]float64, len(r.Isochromats))
		for i, iso := range r.Isochromats {
			d.initial[i] = r3.Norm(iso.M)
		}
		d.maxDrift = 0
		return
	}
	for i, iso := range r.Isochromats {
		d.maxDrift = math.Max(d.maxDrift, math.Abs(r3.Norm(iso.M)-d.initial[i]))
	}
}

func (d *NormDrift) Value() float64 { return d.maxDrift }

func (d *NormDrift) Reset() {
	d.initial = nil
	d.maxDrift = 0
}
