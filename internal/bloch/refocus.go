package bloch

import (
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"
)

// PhaseGradient estimates the first-order transverse phase slope across a
// sample laid out left to right along x. Pairs are weighted by the smaller
// transverse magnitude; pairs that do not step forward in x (row breaks in
// a plane) are skipped. The returned gradient is the phase of the left
// isochromat relative to the right one per unit distance.
func (s *Sim) PhaseGradient() (gradient, weight float64) {
	if len(s.isocs) < 2 {
		return 0, 0
	}
	values := make([]float64, 0, len(s.isocs)-1)
	weights := make([]float64, 0, len(s.isocs)-1)
	left := s.isocs[0]
	for i := 1; i < len(s.isocs); i++ {
		right := s.isocs[i]
		dx := right.Pos.X - left.Pos.X
		if dx <= 0 {
			left = right
			continue
		}
		w := math.Min(left.Transverse(), right.Transverse())
		diff := math.Atan2(left.M.Y, left.M.X) - math.Atan2(right.M.Y, right.M.X)
		values = append(values, wrapPhase(diff)/dx)
		weights = append(weights, w)
		weight += w
		left = right
	}
	if weight == 0 {
		return 0, 0
	}
	return stat.Mean(values, weights), weight
}

// Refocus issues a gradient pulse that cancels the measured phase slope.
// It reports the dephase applied and whether a pulse was issued.
func (s *Sim) Refocus() (float64, bool) {
	g, w := s.PhaseGradient()
	if math.Abs(g) <= s.tuning.RefocusMinGradient || w <= s.tuning.RefocusMinWeight {
		return 0, false
	}
	if err := s.IssueGradientPulse(-g); err != nil {
		s.log.WithError(err).Warn("refocus gradient rejected")
		return 0, false
	}
	s.log.WithFields(logrus.Fields{"gradient": g, "weight": w}).Debug("refocus issued")
	return -g, true
}

// wrapPhase maps a phase difference into (-π, π].
func wrapPhase(p float64) float64 {
	p = math.Mod(p+math.Pi, 2*math.Pi)
	if p <= 0 {
		p += 2 * math.Pi
	}
	return p - math.Pi
}
