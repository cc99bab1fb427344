package bloch

import "gonum.org/v1/gonum/spatial/r3"

// Isochromat is a spin packet with uniform magnetization, field offset and
// relaxation offsets. Its identity is its slot in the sample.
type Isochromat struct {
	M   r3.Vec
	Pos r3.Vec

	// DB0 is the static local field offset.
	DB0 float64
	// DR1 and DR2 add to the global relaxation rates; 0 means none.
	DR1, DR2 float64
	// M0 is the equilibrium longitudinal magnetization.
	M0 float64

	// ShowCurve marks an isochromat that is plotted on its own.
	ShowCurve bool

	// Detuning is the field-like offset seen by the isochromat on the last
	// step: DB0 plus the gradient contribution at Pos.
	Detuning float64
	// DMRF is the RF torque on the last step. Display only.
	DMRF r3.Vec
}

// NewIsochromat returns an isochromat with magnetization m at pos and the
// default equilibrium magnitude.
func NewIsochromat(m, pos r3.Vec) Isochromat {
	return Isochromat{M: m, Pos: pos, M0: 1}
}

// Transverse returns the magnitude of the transverse magnetization.
func (i *Isochromat) Transverse() float64 {
	return r3.Norm(r3.Vec{X: i.M.X, Y: i.M.Y})
}

func (i *Isochromat) normalize() {
	if !(i.M0 > 0) {
		i.M0 = 1
	}
}

// IsochromatState is the per-isochromat part of a [Readout].
type IsochromatState struct {
	M         r3.Vec
	DMRF      r3.Vec
	Detuning  float64
	ShowCurve bool
}

// Readout is what one frame hands to a renderer.
type Readout struct {
	T           float64
	RF          r3.Vec
	RFMag       float64
	Msum        r3.Vec
	ShowTotal   bool
	Isochromats []IsochromatState
}
