package bloch

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"
)

// ThermalDraw samples cos(theta) of a spin in thermal contact with the main
// field. With probability pol it comes from the density linear in cos(theta)
// that favours alignment, otherwise from the uniform density.
func ThermalDraw(rng *rand.Rand, pol float64) float64 {
	if rng.Float64() < pol {
		return 2*math.Sqrt(rng.Float64()) - 1
	}
	return 2*rng.Float64() - 1
}

// Polarization is B0 relative to the strongest field the ensemble scenes use,
// clamped to [0, 1].
func (s *Sim) Polarization() float64 {
	if s.tuning.B0Max <= 0 {
		return 0
	}
	return math.Max(0, math.Min(1, s.B0/s.tuning.B0Max))
}

// relaxThermal replaces a rate-proportional number of random isochromats
// with fresh thermal draws (T1), then re-randomizes the azimuth of a further
// batch (the part of T2 beyond T1).
func (s *Sim) relaxThermal() {
	n := len(s.isocs)
	if n == 0 {
		return
	}
	k := s.tuning.ThermalDivisor
	eps := s.tuning.ThermalEpsilon

	r1 := 0.0
	if !math.IsInf(s.T1, 1) {
		r1 = 1 / (s.T1 + eps)
		pol := s.Polarization()
		for range int(math.Floor(float64(n) * r1 / k)) {
			iso := &s.isocs[s.rng.Intn(n)]
			mz := ThermalDraw(s.rng, pol)
			mxy := math.Sqrt(1 - mz*mz)
			sin, cos := math.Sincos(2 * math.Pi * s.rng.Float64())
			iso.M = r3.Vec{X: mxy * cos, Y: mxy * sin, Z: mz}
		}
	}

	if math.IsInf(s.T2, 1) {
		return
	}
	r2 := 1 / (s.T2 + eps)
	for range int(math.Floor(float64(n) * (r2 - r1) / k)) {
		iso := &s.isocs[s.rng.Intn(n)]
		mxy := iso.Transverse()
		sin, cos := math.Sincos(2 * math.Pi * s.rng.Float64())
		iso.M.X, iso.M.Y = mxy*cos, mxy*sin
	}
}
